package models

import (
	"math/rand"
	"sync"
	"time"

	"github.com/aukilabs/dagaz/featureflag"
	"github.com/aukilabs/dagaz/modules/dagaz"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/google/uuid"
)

// Objects not seen by a stamping frustum query for more frames than this are
// reported invisible.
const framesBeforeInvisible = 1

type SceneConfig struct {
	// The name used in logs and metrics.
	Name string

	// The edge length of a grid cell.
	CellSize float32

	// Objects are kept inside [-WorldExtent, WorldExtent] on every axis.
	WorldExtent float32

	// The duration of a scene frame.
	FrameDuration time.Duration

	// The number of frames between each reclaim of empty grid cells. 0
	// disables it.
	CompactEvery uint64

	FeatureFlags featureflag.FeatureFlag
}

// Scene is a set of moving objects indexed by a spatial grid. Mutations hold
// the write lock and queries hold the read lock, which is the concurrency
// contract the grid expects from its callers.
type Scene struct {
	Name string

	mutex       sync.RWMutex
	grid        dagaz.SpatialPartition[*Object]
	tags        *dagaz.TagRegistry
	objects     map[uuid.UUID]*Object
	worldExtent float32

	compactEvery    uint64
	frameDuration   time.Duration
	startFrameOnce  sync.Once
	closeFrameChan  chan struct{}
	frameTicker     *time.Ticker
	frameHandlerIDs SequentialIDGenerator
	frameHandlers   map[uint32]func(frame uint64)
	frameMutex      sync.RWMutex

	closeOnce sync.Once
}

func NewScene(conf SceneConfig) *Scene {
	if conf.Name == "" {
		conf.Name = dagaz.DefaultName
	}
	if conf.CellSize == 0 {
		conf.CellSize = dagaz.DefaultCellSize
	}
	if conf.FrameDuration == 0 {
		conf.FrameDuration = time.Millisecond * 15
	}

	return &Scene{
		Name: conf.Name,
		grid: dagaz.New[*Object](
			dagaz.WithCellSize(conf.CellSize),
			dagaz.WithName(conf.Name),
			dagaz.WithFeatureFlags(conf.FeatureFlags),
		),
		tags:           dagaz.NewTagRegistry(),
		objects:        make(map[uuid.UUID]*Object),
		worldExtent:    conf.WorldExtent,
		compactEvery:   conf.CompactEvery,
		frameDuration:  conf.FrameDuration,
		closeFrameChan: make(chan struct{}, 1),
		frameTicker:    time.NewTicker(conf.FrameDuration),
		frameHandlers:  make(map[uint32]func(uint64)),
	}
}

func (s *Scene) Close() {
	s.closeOnce.Do(func() {
		s.frameTicker.Stop()
		s.closeFrameChan <- struct{}{}
	})
}

// Spawn adds an object to the scene.
func (s *Scene) Spawn(position, velocity, halfExtents dagaz.Vec3, category uint32) *Object {
	o := &Object{
		ID:          uuid.New(),
		HalfExtents: halfExtents,
		category:    category,
		pose: Pose{
			Position: position,
			Velocity: velocity,
		},
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	o.handle = s.grid.RegisterObject(boundsAt(position, halfExtents), o, category)
	s.objects[o.ID] = o

	instrumentObjectCount(s.Name, len(s.objects))
	return o
}

// SpawnAlwaysVisible adds an object without bounds that every query reports,
// such as a sky or a directional light.
func (s *Scene) SpawnAlwaysVisible(category uint32) *Object {
	o := &Object{
		ID:            uuid.New(),
		category:      category,
		alwaysVisible: true,
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	o.handle = s.grid.RegisterAlwaysVisible(o, category)
	s.objects[o.ID] = o

	instrumentObjectCount(s.Name, len(s.objects))
	return o
}

// SpawnRandom adds n objects with random positions, velocities and sizes.
func (s *Scene) SpawnRandom(rnd *rand.Rand, n int, maxSpeed, maxHalfExtent float32) []*Object {
	extent := s.worldExtent - maxHalfExtent
	random := func(v float32) float32 {
		return (rnd.Float32()*2 - 1) * v
	}

	objects := make([]*Object, n)
	for i := range objects {
		he := maxHalfExtent * (0.1 + 0.9*rnd.Float32())

		objects[i] = s.Spawn(
			dagaz.Vec3{random(extent), random(extent), random(extent)},
			dagaz.Vec3{random(maxSpeed), random(maxSpeed), random(maxSpeed)},
			dagaz.Vec3{he, he * (0.5 + 0.5*rnd.Float32()), he},
			1<<rnd.Intn(4),
		)
	}
	return objects
}

// Despawn removes the object with the given id. It returns false when there
// is no such object.
func (s *Scene) Despawn(id uuid.UUID) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	o, ok := s.objects[id]
	if !ok {
		return false
	}

	s.grid.RemoveObject(o.handle)
	delete(s.objects, id)

	instrumentObjectCount(s.Name, len(s.objects))
	return true
}

// Move teleports the object with the given id. Always visible objects can't
// be moved.
func (s *Scene) Move(id uuid.UUID, position dagaz.Vec3) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	o, ok := s.objects[id]
	if !ok || o.alwaysVisible {
		return false
	}

	pose := o.Pose()
	pose.Position = position
	o.SetPose(pose)
	s.grid.UpdateObjectBounds(o.handle, o.Bounds())
	return true
}

// SetCategory changes the category of the object with the given id.
func (s *Scene) SetCategory(id uuid.UUID, category uint32) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	o, ok := s.objects[id]
	if !ok {
		return false
	}

	o.setCategory(category)
	s.grid.UpdateObjectCategory(o.handle, category)
	return true
}

// SetTags replaces the tags of the object with the given id. Unknown tag
// names are registered.
func (s *Scene) SetTags(id uuid.UUID, names ...string) (bool, error) {
	tags, err := s.tags.Parse(names...)
	if err != nil {
		return false, err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	o, ok := s.objects[id]
	if !ok {
		return false, nil
	}

	o.setTags(s.tags.Names(tags))
	s.grid.UpdateObjectTags(o.handle, tags)
	return true, nil
}

// Tags returns the tags matching the given names. Unknown names are
// registered, so they match no object yet.
func (s *Scene) Tags(names ...string) (dagaz.TagSet, error) {
	return s.tags.Parse(names...)
}

func (s *Scene) ObjectByID(id uuid.UUID) (*Object, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	o, ok := s.objects[id]
	return o, ok
}

func (s *Scene) Objects() []*Object {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	objects := make([]*Object, 0, len(s.objects))
	for _, o := range s.objects {
		objects = append(objects, o)
	}
	return objects
}

func (s *Scene) ObjectCount() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return len(s.objects)
}

// ObjectView returns the object with its index bookkeeping.
func (s *Scene) ObjectView(id uuid.UUID) (ObjectView, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	o, ok := s.objects[id]
	if !ok {
		return ObjectView{}, false
	}

	info, _, _ := s.grid.Object(o.handle)
	v := o.ToView()
	v.Membership = info.Membership
	v.LastVisibleFrame = info.LastVisibleFrame
	v.Visibility = s.grid.VisibilityState(o.handle, framesBeforeInvisible).String()
	return v, true
}

// Step advances the scene by dt seconds: objects move along their velocity
// and bounce off the world bounds. It returns the new frame.
func (s *Scene) Step(dt float32) uint64 {
	start := time.Now()
	defer instrumentFrameDuration(s.Name, start)

	s.mutex.Lock()
	defer s.mutex.Unlock()

	frame := s.grid.BeginFrame()

	for _, o := range s.objects {
		pose := o.Pose()
		if pose.Velocity == (dagaz.Vec3{}) {
			continue
		}

		pose.Position = pose.Position.Add(pose.Velocity.Mul(dt))
		if s.worldExtent > 0 {
			for i := 0; i < 3; i++ {
				limit := s.worldExtent - o.HalfExtents[i]
				switch {
				case pose.Position[i] > limit:
					pose.Position[i] = limit
					pose.Velocity[i] = -pose.Velocity[i]

				case pose.Position[i] < -limit:
					pose.Position[i] = -limit
					pose.Velocity[i] = -pose.Velocity[i]
				}
			}
		}

		o.SetPose(pose)
		s.grid.UpdateObjectBounds(o.handle, o.Bounds())
	}

	if s.compactEvery != 0 && frame%s.compactEvery == 0 {
		if n := s.grid.Compact(); n != 0 {
			logs.WithTag("scene", s.Name).
				WithTag("frame", frame).
				WithTag("cells", n).
				Debug("empty cells reclaimed")
		}
	}

	return frame
}

func (s *Scene) WorldExtent() float32 {
	return s.worldExtent
}

// Inspect calls fn with the objects and the index of the scene while holding
// the read lock. fn must not modify them.
func (s *Scene) Inspect(fn func(objects map[uuid.UUID]*Object, grid dagaz.SpatialPartition[*Object])) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	fn(s.objects, s.grid)
}

// Frame returns the current frame.
func (s *Scene) Frame() uint64 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.grid.Frame()
}

// QueryBox returns the objects whose box overlaps box. p.Stats is ignored.
func (s *Scene) QueryBox(box dagaz.BoundingBox, p dagaz.QueryParams) ([]*Object, dagaz.QueryStats) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var objects []*Object
	var stats dagaz.QueryStats
	p.Stats = &stats
	s.grid.QueryBox(box, func(_ dagaz.Handle, o *Object) bool {
		objects = append(objects, o)
		return true
	}, p)
	return objects, stats
}

// QuerySphere returns the objects whose bounding sphere overlaps the given
// sphere. p.Stats is ignored.
func (s *Scene) QuerySphere(center dagaz.Vec3, radius float32, p dagaz.QueryParams) ([]*Object, dagaz.QueryStats) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var objects []*Object
	var stats dagaz.QueryStats
	p.Stats = &stats
	s.grid.QuerySphere(center, radius, func(_ dagaz.Handle, o *Object) bool {
		objects = append(objects, o)
		return true
	}, p)
	return objects, stats
}

// QueryFrustum returns the objects visible from the frustum. They are marked
// visible in the current frame unless p.Visibility is dagaz.Invisible.
// p.Stats is ignored.
func (s *Scene) QueryFrustum(f dagaz.Frustum, p dagaz.QueryParams) ([]*Object, dagaz.QueryStats) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var objects []*Object
	var stats dagaz.QueryStats
	p.Stats = &stats
	s.grid.QueryFrustum(f, &objects, p)
	return objects, stats
}

func (s *Scene) DebugInfo() dagaz.DebugInfo {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.grid.DebugInfo()
}

func (s *Scene) CellBoxes() []dagaz.BoundingBox {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.grid.AllCellBoxes()
}

// CellBoxesFor returns the boxes of the cells referencing the object with the
// given id.
func (s *Scene) CellBoxesFor(id uuid.UUID) ([]dagaz.BoundingBox, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	o, ok := s.objects[id]
	if !ok {
		return nil, false
	}
	return s.grid.CellBoxesFor(o.handle), true
}

func (s *Scene) CheckInvariants() error {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.grid.CheckInvariants()
}

func (s *Scene) Compact() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.grid.Compact()
}

// HandleFrame registers a function called after every frame step.
func (s *Scene) HandleFrame(h func(frame uint64)) (cancel func()) {
	s.frameMutex.Lock()
	defer s.frameMutex.Unlock()

	id := s.frameHandlerIDs.New()
	s.frameHandlers[id] = h

	return func() {
		s.frameMutex.Lock()
		defer s.frameMutex.Unlock()

		delete(s.frameHandlers, id)
		s.frameHandlerIDs.Reuse(id)
	}
}

// StartDispatchFrames steps the scene on every tick and calls the frame
// handlers until the scene is closed.
func (s *Scene) StartDispatchFrames() {
	s.startFrameOnce.Do(func() {
		logs.WithTag("scene", s.Name).
			WithTag("frame_duration", s.frameDuration).
			Info("starting scene frames")

		last := time.Now()
		for {
			select {
			case <-s.closeFrameChan:
				logs.WithTag("scene", s.Name).Info("stopping scene frames")
				return

			case now := <-s.frameTicker.C:
				frame := s.Step(float32(now.Sub(last).Seconds()))
				last = now

				s.frameMutex.RLock()
				for _, h := range s.frameHandlers {
					h(frame)
				}
				s.frameMutex.RUnlock()
			}
		}
	})
}
