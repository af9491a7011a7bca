package smoketest

import (
	"context"
	"io"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/aukilabs/dagaz/models"
	"github.com/aukilabs/dagaz/modules/dagaz"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"
	"golang.org/x/sync/errgroup"
)

const (
	ErrTypeMismatch  = "smoke_test_mismatch"
	ErrTypeDuplicate = "smoke_test_duplicate"

	defaultSamples = 256
	defaultReaders = 4
	defaultExtent  = 100
)

type Options struct {
	// The number of queries of each kind.
	Samples int `json:"samples,omitempty"`

	// The number of goroutines running queries concurrently.
	Readers int `json:"readers,omitempty"`

	// The seed of the sampled query volumes.
	Seed int64 `json:"seed,omitempty"`

	// Called with the results of a run started by HandleSmokeTest.
	SendResult func(context.Context, Results) error `json:"-"`
}

// Results summarizes a smoke test run.
type Results struct {
	Queries    int           `json:"queries"`
	Objects    int           `json:"objects"`
	Mismatches int           `json:"mismatches"`
	Duplicates int           `json:"duplicates"`
	Duration   time.Duration `json:"duration"`
	Invariants string        `json:"invariants"`
}

func (r Results) Passed() bool {
	return r.Mismatches == 0 && r.Duplicates == 0 && r.Invariants == ""
}

// Run samples random box, sphere and frustum queries on the scene and checks
// that the index reports exactly the objects a linear scan finds, each once.
func Run(ctx context.Context, scene *models.Scene, opts Options) (Results, error) {
	if opts.Samples <= 0 {
		opts.Samples = defaultSamples
	}
	if opts.Readers <= 0 {
		opts.Readers = defaultReaders
	}
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}

	extent := scene.WorldExtent()
	if extent <= 0 {
		extent = defaultExtent
	}

	start := time.Now()

	var mutex sync.Mutex
	var res Results
	collect := func(c check) {
		mutex.Lock()
		defer mutex.Unlock()

		res.Queries++
		res.Mismatches += c.mismatches
		res.Duplicates += c.duplicates
	}

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < opts.Readers; i++ {
		rnd := rand.New(rand.NewSource(opts.Seed + int64(i)))
		n := opts.Samples / opts.Readers
		if i < opts.Samples%opts.Readers {
			n++
		}

		g.Go(func() error {
			for j := 0; j < n; j++ {
				if err := ctx.Err(); err != nil {
					return err
				}

				s := newSampler(rnd, extent)
				scene.Inspect(func(objects map[uuid.UUID]*models.Object, grid dagaz.SpatialPartition[*models.Object]) {
					collect(checkBox(objects, grid, s.box()))
					collect(checkSphere(objects, grid, s.sphere()))
					collect(checkFrustum(objects, grid, s.frustum()))
				})
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return res, errors.New("running smoke test queries failed").Wrap(err)
	}

	if err := scene.CheckInvariants(); err != nil {
		res.Invariants = err.Error()
	}
	res.Objects = scene.ObjectCount()
	res.Duration = time.Since(start)

	switch {
	case res.Mismatches != 0:
		return res, errors.New("index results differ from a linear scan").
			WithType(ErrTypeMismatch).
			WithTag("mismatches", res.Mismatches)

	case res.Duplicates != 0:
		return res, errors.New("index reported objects more than once").
			WithType(ErrTypeDuplicate).
			WithTag("duplicates", res.Duplicates)

	case res.Invariants != "":
		return res, errors.New("index invariants are broken").
			WithTag("invariants", res.Invariants)
	}
	return res, nil
}

type check struct {
	mismatches int
	duplicates int
}

func compare(objects map[uuid.UUID]*models.Object, reported map[uuid.UUID]int, expected func(*models.Object) bool) check {
	var c check
	for _, n := range reported {
		if n > 1 {
			c.duplicates++
		}
	}

	for id, o := range objects {
		if (o.AlwaysVisible() || expected(o)) != (reported[id] != 0) {
			c.mismatches++
		}
	}
	return c
}

func checkBox(objects map[uuid.UUID]*models.Object, grid dagaz.SpatialPartition[*models.Object], box dagaz.BoundingBox) check {
	reported := make(map[uuid.UUID]int)
	grid.QueryBox(box, func(_ dagaz.Handle, o *models.Object) bool {
		reported[o.ID]++
		return true
	}, dagaz.QueryParams{})

	return compare(objects, reported, func(o *models.Object) bool {
		return o.Bounds().Box().Overlaps(box)
	})
}

func checkSphere(objects map[uuid.UUID]*models.Object, grid dagaz.SpatialPartition[*models.Object], sphere dagaz.BoundingSphere) check {
	reported := make(map[uuid.UUID]int)
	grid.QuerySphere(sphere.Center, sphere.Radius, func(_ dagaz.Handle, o *models.Object) bool {
		reported[o.ID]++
		return true
	}, dagaz.QueryParams{})

	return compare(objects, reported, func(o *models.Object) bool {
		return o.Bounds().Sphere().Overlaps(sphere)
	})
}

func checkFrustum(objects map[uuid.UUID]*models.Object, grid dagaz.SpatialPartition[*models.Object], f dagaz.Frustum) check {
	reported := make(map[uuid.UUID]int)
	grid.QueryFrustumFunc(f, func(_ dagaz.Handle, o *models.Object) {
		reported[o.ID]++
	}, dagaz.QueryParams{})

	return compare(objects, reported, func(o *models.Object) bool {
		return f.Intersects(o.Bounds().Sphere())
	})
}

type sampler struct {
	rnd    *rand.Rand
	extent float32
}

func newSampler(rnd *rand.Rand, extent float32) sampler {
	return sampler{
		rnd:    rnd,
		extent: extent,
	}
}

func (s sampler) point() dagaz.Vec3 {
	return dagaz.Vec3{s.coord(), s.coord(), s.coord()}
}

func (s sampler) coord() float32 {
	return (s.rnd.Float32()*2 - 1) * s.extent
}

func (s sampler) box() dagaz.BoundingBox {
	return dagaz.NewBoundingBox(s.point(), s.point())
}

func (s sampler) sphere() dagaz.BoundingSphere {
	return dagaz.BoundingSphere{
		Center: s.point(),
		Radius: s.rnd.Float32() * s.extent * 0.5,
	}
}

func (s sampler) frustum() dagaz.Frustum {
	eye := s.point()
	target := s.point()
	if eye == target {
		target = eye.Add(dagaz.Vec3{0, 0, -1})
	}

	up := dagaz.Vec3{0, 1, 0}
	if up.Cross(target.Sub(eye)).Len() == 0 {
		up = dagaz.Vec3{1, 0, 0}
	}

	return dagaz.NewPerspectiveFrustum(eye, target, up,
		30+s.rnd.Float32()*90,
		0.5+s.rnd.Float32()*1.5,
		0.1+s.rnd.Float32(),
		s.extent*(0.5+s.rnd.Float32()),
	)
}

type testCtxKey string

var testCtxKeyValue testCtxKey = "test-context"

type testContext struct {
	context.Context
	Cancel func()
}

// HandleSmokeTest starts a smoke test run in the background. The request
// body may override the sample count, the number of readers and the seed.
func HandleSmokeTest(ctx context.Context, scene *models.Scene, opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := io.ReadAll(r.Body)
		if err != nil {
			logs.Warn(errors.New("reading body failed").Wrap(err))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		runOpts := opts
		if len(b) != 0 {
			if err := json.Unmarshal(b, &runOpts); err != nil {
				logs.WithTag("path", r.URL.Path).Debug(errors.New("decoding smoke test request failed").Wrap(err))
				w.WriteHeader(http.StatusBadRequest)
				return
			}
		}

		go func() {
			defer func() {
				// Signals tests that the run is over.
				if tctx := ctx.Value(testCtxKeyValue); tctx != nil {
					testCtx := tctx.(testContext)
					if testCtx.Cancel != nil {
						testCtx.Cancel()
					}
				}
			}()

			res, err := Run(ctx, scene, runOpts)
			if err != nil {
				logs.WithTag("scene", scene.Name).
					WithTag("results", res).
					Warn(err)
			} else {
				logs.WithTag("scene", scene.Name).
					WithTag("results", res).
					Info("smoke test passed")
			}

			if runOpts.SendResult == nil {
				return
			}
			if err := runOpts.SendResult(ctx, res); err != nil {
				logs.WithTag("scene", scene.Name).
					Warn(errors.New("sending smoke test result failed").Wrap(err))
			}
		}()

		w.WriteHeader(http.StatusOK)
	}
}
