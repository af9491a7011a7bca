package dagaz

// sphereBlockSize is the number of spheres tested per call to testBlock. The
// results are packed into a uint32 mask.
const sphereBlockSize = 32

// planeData lays out the six frustum planes for testing two spheres at once.
// The first group holds planes 0 to 3 and the second group holds planes 4 and
// 5 twice, lanes 0 and 1 for the first sphere and lanes 2 and 3 for the
// second.
type planeData struct {
	x0123, y0123, z0123, w0123 [4]float32
	x4545, y4545, z4545, w4545 [4]float32
}

func newPlaneData(f Frustum) planeData {
	var pd planeData
	for i := 0; i < 4; i++ {
		pd.x0123[i] = f[i].Normal[0]
		pd.y0123[i] = f[i].Normal[1]
		pd.z0123[i] = f[i].Normal[2]
		pd.w0123[i] = f[i].D
	}

	for i := 0; i < 4; i++ {
		p := f[4+i%2]
		pd.x4545[i] = p.Normal[0]
		pd.y4545[i] = p.Normal[1]
		pd.z4545[i] = p.Normal[2]
		pd.w4545[i] = p.D
	}
	return pd
}

func planeDistance(nx, ny, nz, d float32, p Vec3) float32 {
	return float32(nx*p[0]) + float32(ny*p[1]) + float32(nz*p[2]) + d
}

// testPair reports for each sphere whether it is not entirely outside any
// plane.
func (pd *planeData) testPair(a, b BoundingSphere) (bool, bool) {
	var outA, outB bool

	for i := 0; i < 4; i++ {
		da := planeDistance(pd.x0123[i], pd.y0123[i], pd.z0123[i], pd.w0123[i], a.Center)
		db := planeDistance(pd.x0123[i], pd.y0123[i], pd.z0123[i], pd.w0123[i], b.Center)
		outA = outA || da > a.Radius
		outB = outB || db > b.Radius
	}

	for i := 0; i < 2; i++ {
		da := planeDistance(pd.x4545[i], pd.y4545[i], pd.z4545[i], pd.w4545[i], a.Center)
		db := planeDistance(pd.x4545[i+2], pd.y4545[i+2], pd.z4545[i+2], pd.w4545[i+2], b.Center)
		outA = outA || da > a.Radius
		outB = outB || db > b.Radius
	}

	return !outA, !outB
}

// testOne is the scalar counterpart of testPair.
func (pd *planeData) testOne(s BoundingSphere) bool {
	for i := 0; i < 4; i++ {
		if planeDistance(pd.x0123[i], pd.y0123[i], pd.z0123[i], pd.w0123[i], s.Center) > s.Radius {
			return false
		}
	}

	for i := 0; i < 2; i++ {
		if planeDistance(pd.x4545[i], pd.y4545[i], pd.z4545[i], pd.w4545[i], s.Center) > s.Radius {
			return false
		}
	}
	return true
}

// testBlock tests up to 32 spheres. Bit i of the result is set when
// spheres[i] is accepted.
func (pd *planeData) testBlock(spheres []BoundingSphere) uint32 {
	var mask uint32

	n := len(spheres)
	i := 0
	for ; i+1 < n; i += 2 {
		a, b := pd.testPair(spheres[i], spheres[i+1])
		if a {
			mask |= 1 << i
		}
		if b {
			mask |= 1 << (i + 1)
		}
	}

	if i < n {
		if a, _ := pd.testPair(spheres[i], spheres[i]); a {
			mask |= 1 << i
		}
	}
	return mask
}

// testBlockScalar returns the same mask as testBlock, one sphere at a time.
func (pd *planeData) testBlockScalar(spheres []BoundingSphere) uint32 {
	var mask uint32
	for i, s := range spheres {
		if pd.testOne(s) {
			mask |= 1 << i
		}
	}
	return mask
}
