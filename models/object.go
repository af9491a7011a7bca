package models

import (
	"sync"

	"github.com/aukilabs/dagaz/modules/dagaz"
	"github.com/google/uuid"
)

// Object is a moving box in a scene.
type Object struct {
	ID          uuid.UUID
	HalfExtents dagaz.Vec3

	handle dagaz.Handle

	// Always visible objects have no bounds and never move.
	alwaysVisible bool

	mutex    sync.RWMutex
	pose     Pose
	category uint32
	tags     []string
}

func (o *Object) SetPose(v Pose) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	o.pose = v
}

func (o *Object) Pose() Pose {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	return o.pose
}

func (o *Object) setCategory(v uint32) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	o.category = v
}

func (o *Object) setTags(v []string) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	o.tags = v
}

func (o *Object) Tags() []string {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	return o.tags
}

func (o *Object) AlwaysVisible() bool {
	return o.alwaysVisible
}

func (o *Object) Category() uint32 {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	return o.category
}

// Bounds returns the box centered on the object position.
func (o *Object) Bounds() dagaz.BoxSphere {
	return boundsAt(o.Pose().Position, o.HalfExtents)
}

func boundsAt(position, halfExtents dagaz.Vec3) dagaz.BoxSphere {
	return dagaz.BoxSphere{
		Center:      position,
		HalfExtents: halfExtents,
		Radius:      halfExtents.Len(),
	}
}

// ToView returns the JSON representation of the object.
func (o *Object) ToView() ObjectView {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	return ObjectView{
		ID:          o.ID.String(),
		Position:    o.pose.Position,
		Velocity:    o.pose.Velocity,
		HalfExtents: o.HalfExtents,
		Category:    o.category,
		Tags:        o.tags,

		AlwaysVisible: o.alwaysVisible,
	}
}

func ObjectsToView(objects []*Object) []ObjectView {
	views := make([]ObjectView, len(objects))
	for i, o := range objects {
		views[i] = o.ToView()
	}
	return views
}

type ObjectView struct {
	ID          string     `json:"id"`
	Position    dagaz.Vec3 `json:"position"`
	Velocity    dagaz.Vec3 `json:"velocity"`
	HalfExtents dagaz.Vec3 `json:"half_extents"`
	Category    uint32     `json:"category"`
	Tags        []string   `json:"tags,omitempty"`

	AlwaysVisible    bool   `json:"always_visible,omitempty"`
	Membership       uint32 `json:"membership,omitempty"`
	LastVisibleFrame uint64 `json:"last_visible_frame,omitempty"`
	Visibility       string `json:"visibility,omitempty"`
}

type Pose struct {
	Position dagaz.Vec3
	Velocity dagaz.Vec3
}
