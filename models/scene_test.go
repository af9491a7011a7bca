package models

import (
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/aukilabs/dagaz/modules/dagaz"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newTestScene() *Scene {
	return NewScene(SceneConfig{
		Name:          "test",
		CellSize:      10,
		WorldExtent:   100,
		FrameDuration: time.Millisecond,
	})
}

func TestSceneSpawnDespawn(t *testing.T) {
	scene := newTestScene()
	defer scene.Close()

	o := scene.Spawn(dagaz.Vec3{1, 2, 3}, dagaz.Vec3{}, dagaz.Vec3{1, 1, 1}, 1)
	require.NotEqual(t, uuid.Nil, o.ID)
	require.Equal(t, 1, scene.ObjectCount())
	require.Equal(t, dagaz.Vec3{1, 2, 3}, o.Pose().Position)
	require.Equal(t, uint32(1), o.Category())

	found, ok := scene.ObjectByID(o.ID)
	require.True(t, ok)
	require.Equal(t, o, found)
	require.Len(t, scene.Objects(), 1)

	v, ok := scene.ObjectView(o.ID)
	require.True(t, ok)
	require.Equal(t, o.ID.String(), v.ID)
	require.Equal(t, uint32(1), v.Membership)

	require.True(t, scene.Despawn(o.ID))
	require.False(t, scene.Despawn(o.ID))
	require.Zero(t, scene.ObjectCount())

	_, ok = scene.ObjectView(o.ID)
	require.False(t, ok)
	require.NoError(t, scene.CheckInvariants())
}

func TestSceneMove(t *testing.T) {
	scene := newTestScene()
	defer scene.Close()

	o := scene.Spawn(dagaz.Vec3{5, 5, 5}, dagaz.Vec3{}, dagaz.Vec3{1, 1, 1}, 1)
	require.True(t, scene.Move(o.ID, dagaz.Vec3{50, 5, 5}))
	require.False(t, scene.Move(uuid.New(), dagaz.Vec3{}))

	objects, _ := scene.QueryBox(dagaz.NewBoundingBox(dagaz.Vec3{0, 0, 0}, dagaz.Vec3{10, 10, 10}), dagaz.QueryParams{})
	require.Empty(t, objects)

	objects, stats := scene.QueryBox(dagaz.NewBoundingBox(dagaz.Vec3{45, 0, 0}, dagaz.Vec3{55, 10, 10}), dagaz.QueryParams{})
	require.Equal(t, []*Object{o}, objects)
	require.Equal(t, 1, stats.ObjectsPassed)

	boxes, ok := scene.CellBoxesFor(o.ID)
	require.True(t, ok)
	require.Len(t, boxes, 2)

	_, ok = scene.CellBoxesFor(uuid.New())
	require.False(t, ok)
}

func TestSceneSetCategory(t *testing.T) {
	scene := newTestScene()
	defer scene.Close()

	o := scene.Spawn(dagaz.Vec3{5, 5, 5}, dagaz.Vec3{}, dagaz.Vec3{1, 1, 1}, 1)
	require.True(t, scene.SetCategory(o.ID, 4))
	require.False(t, scene.SetCategory(uuid.New(), 4))
	require.Equal(t, uint32(4), o.Category())

	objects, _ := scene.QuerySphere(dagaz.Vec3{5, 5, 5}, 1, dagaz.QueryParams{Categories: 4})
	require.Equal(t, []*Object{o}, objects)

	objects, _ = scene.QuerySphere(dagaz.Vec3{5, 5, 5}, 1, dagaz.QueryParams{Categories: 1})
	require.Empty(t, objects)
}

func TestSceneStep(t *testing.T) {
	scene := newTestScene()
	defer scene.Close()

	moving := scene.Spawn(dagaz.Vec3{95, 0, 0}, dagaz.Vec3{10, 0, -5}, dagaz.Vec3{2, 2, 2}, 1)
	still := scene.Spawn(dagaz.Vec3{0, 0, 0}, dagaz.Vec3{}, dagaz.Vec3{2, 2, 2}, 1)

	require.Equal(t, uint64(1), scene.Step(1))

	pose := moving.Pose()
	require.Equal(t, dagaz.Vec3{98, 0, -5}, pose.Position)
	require.Equal(t, dagaz.Vec3{-10, 0, -5}, pose.Velocity)
	require.Equal(t, dagaz.Vec3{0, 0, 0}, still.Pose().Position)

	require.Equal(t, uint64(2), scene.Step(0.5))
	require.Equal(t, dagaz.Vec3{93, 0, -7.5}, moving.Pose().Position)

	objects, _ := scene.QuerySphere(dagaz.Vec3{93, 0, -7.5}, 1, dagaz.QueryParams{})
	require.Equal(t, []*Object{moving}, objects)
	require.NoError(t, scene.CheckInvariants())
}

func TestSceneQueryFrustum(t *testing.T) {
	scene := newTestScene()
	defer scene.Close()

	visible := scene.Spawn(dagaz.Vec3{0, 0, -50}, dagaz.Vec3{}, dagaz.Vec3{1, 1, 1}, 1)
	hidden := scene.Spawn(dagaz.Vec3{0, 0, 50}, dagaz.Vec3{}, dagaz.Vec3{1, 1, 1}, 1)
	frame := scene.Step(0)

	f := dagaz.NewPerspectiveFrustum(dagaz.Vec3{}, dagaz.Vec3{0, 0, -1}, dagaz.Vec3{0, 1, 0}, 90, 1, 1, 100)
	objects, stats := scene.QueryFrustum(f, dagaz.QueryParams{})
	require.Equal(t, []*Object{visible}, objects)
	require.Equal(t, 1, stats.ObjectsPassed)

	v, _ := scene.ObjectView(visible.ID)
	require.Zero(t, v.LastVisibleFrame)
	require.Equal(t, "invisible", v.Visibility)

	objects, _ = scene.QueryFrustum(f, dagaz.QueryParams{
		Scratch:    dagaz.NewQueryScratch(),
		Visibility: dagaz.Direct,
	})
	require.Equal(t, []*Object{visible}, objects)

	v, _ = scene.ObjectView(visible.ID)
	require.Equal(t, frame, v.LastVisibleFrame)
	require.Equal(t, "direct", v.Visibility)
	v, _ = scene.ObjectView(hidden.ID)
	require.Zero(t, v.LastVisibleFrame)
	require.Equal(t, "invisible", v.Visibility)

	scene.Step(0)
	scene.Step(0)
	v, _ = scene.ObjectView(visible.ID)
	require.Equal(t, "invisible", v.Visibility)
}

func TestSceneTags(t *testing.T) {
	scene := newTestScene()
	defer scene.Close()

	tree := scene.Spawn(dagaz.Vec3{5, 5, 5}, dagaz.Vec3{}, dagaz.Vec3{1, 1, 1}, 1)
	rock := scene.Spawn(dagaz.Vec3{6, 6, 6}, dagaz.Vec3{}, dagaz.Vec3{1, 1, 1}, 1)

	ok, err := scene.SetTags(tree.ID, "static", "foliage")
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = scene.SetTags(rock.ID, "static")
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = scene.SetTags(uuid.New(), "static")
	require.NoError(t, err)
	require.False(t, ok)

	require.Equal(t, []string{"static", "foliage"}, tree.Tags())
	v, _ := scene.ObjectView(tree.ID)
	require.Equal(t, []string{"static", "foliage"}, v.Tags)

	foliage, err := scene.Tags("foliage")
	require.NoError(t, err)

	objects, stats := scene.QuerySphere(dagaz.Vec3{5, 5, 5}, 3, dagaz.QueryParams{ExcludeTags: foliage})
	require.Equal(t, []*Object{rock}, objects)
	require.Equal(t, 1, stats.ObjectsFiltered)

	objects, _ = scene.QuerySphere(dagaz.Vec3{5, 5, 5}, 3, dagaz.QueryParams{IncludeTags: foliage})
	require.Equal(t, []*Object{tree}, objects)
}

func TestSceneAlwaysVisible(t *testing.T) {
	scene := newTestScene()
	defer scene.Close()

	sky := scene.SpawnAlwaysVisible(2)
	require.True(t, sky.AlwaysVisible())
	require.False(t, scene.Move(sky.ID, dagaz.Vec3{1, 1, 1}))

	scene.Step(1)
	objects, _ := scene.QueryBox(dagaz.NewBoundingBox(dagaz.Vec3{50, 50, 50}, dagaz.Vec3{60, 60, 60}), dagaz.QueryParams{})
	require.Equal(t, []*Object{sky}, objects)

	objects, _ = scene.QueryBox(dagaz.NewBoundingBox(dagaz.Vec3{50, 50, 50}, dagaz.Vec3{60, 60, 60}), dagaz.QueryParams{Categories: 1})
	require.Empty(t, objects)

	v, ok := scene.ObjectView(sky.ID)
	require.True(t, ok)
	require.True(t, v.AlwaysVisible)
	require.Equal(t, "direct", v.Visibility)

	boxes, ok := scene.CellBoxesFor(sky.ID)
	require.True(t, ok)
	require.Empty(t, boxes)

	require.True(t, scene.Despawn(sky.ID))
	require.NoError(t, scene.CheckInvariants())
}

func TestSceneSpawnRandom(t *testing.T) {
	scene := newTestScene()
	defer scene.Close()

	objects := scene.SpawnRandom(rand.New(rand.NewSource(1)), 200, 20, 4)
	require.Len(t, objects, 200)
	require.Equal(t, 200, scene.ObjectCount())

	for i := 0; i < 50; i++ {
		scene.Step(0.1)
	}
	require.NoError(t, scene.CheckInvariants())

	for _, o := range objects {
		p := o.Pose().Position
		for i := 0; i < 3; i++ {
			require.LessOrEqual(t, p[i]+o.HalfExtents[i], float32(100))
			require.GreaterOrEqual(t, p[i]-o.HalfExtents[i], float32(-100))
		}
	}

	all, _ := scene.QueryBox(dagaz.NewBoundingBox(dagaz.Vec3{-100, -100, -100}, dagaz.Vec3{100, 100, 100}), dagaz.QueryParams{})
	require.Len(t, all, 200)

	info := scene.DebugInfo()
	require.Equal(t, 200, info.ObjectCount)
	require.Len(t, scene.CellBoxes(), info.CellCount)

	scene.Compact()
	require.NoError(t, scene.CheckInvariants())
}

func TestSceneDispatchFrames(t *testing.T) {
	scene := newTestScene()
	scene.Spawn(dagaz.Vec3{}, dagaz.Vec3{1, 0, 0}, dagaz.Vec3{1, 1, 1}, 1)

	var mutex sync.Mutex
	var frames []uint64
	done := make(chan struct{})

	cancel := scene.HandleFrame(func(frame uint64) {
		mutex.Lock()
		defer mutex.Unlock()

		frames = append(frames, frame)
		if len(frames) == 3 {
			close(done)
		}
	})

	go scene.StartDispatchFrames()

	select {
	case <-done:
	case <-time.After(time.Second * 5):
		t.Fatal("frames were not dispatched")
	}

	cancel()
	scene.Close()

	mutex.Lock()
	defer mutex.Unlock()
	require.Equal(t, []uint64{1, 2, 3}, frames[:3])
}
