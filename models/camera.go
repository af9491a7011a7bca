package models

import (
	"github.com/aukilabs/dagaz/modules/dagaz"
	"github.com/aukilabs/go-tooling/pkg/errors"
)

const (
	ErrTypeInvalidCamera = "invalid_camera"
)

// Camera describes a perspective view. FOV is the vertical field of view in
// degrees.
type Camera struct {
	Eye    dagaz.Vec3 `json:"eye"`
	Target dagaz.Vec3 `json:"target"`
	Up     dagaz.Vec3 `json:"up"`
	FOV    float32    `json:"fov"`
	Aspect float32    `json:"aspect"`
	Near   float32    `json:"near"`
	Far    float32    `json:"far"`
}

func (c Camera) Validate() error {
	switch {
	case !(c.FOV > 0 && c.FOV < 180):
		return errors.New("camera field of view must be between 0 and 180 degrees").
			WithType(ErrTypeInvalidCamera).
			WithTag("fov", c.FOV)

	case !(c.Aspect > 0):
		return errors.New("camera aspect ratio must be positive").
			WithType(ErrTypeInvalidCamera).
			WithTag("aspect", c.Aspect)

	case !(c.Near > 0 && c.Near < c.Far):
		return errors.New("camera near and far planes must satisfy 0 < near < far").
			WithType(ErrTypeInvalidCamera).
			WithTag("near", c.Near).
			WithTag("far", c.Far)

	case c.Eye == c.Target:
		return errors.New("camera eye and target must differ").
			WithType(ErrTypeInvalidCamera)

	case c.Up.Len() == 0 || c.Up.Cross(c.Target.Sub(c.Eye)).Len() == 0:
		return errors.New("camera up vector must not be null or parallel to the view direction").
			WithType(ErrTypeInvalidCamera)
	}
	return nil
}

func (c Camera) Frustum() dagaz.Frustum {
	return dagaz.NewPerspectiveFrustum(c.Eye, c.Target, c.Up, c.FOV, c.Aspect, c.Near, c.Far)
}
