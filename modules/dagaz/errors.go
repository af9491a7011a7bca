package dagaz

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
)

// Error types attached to precondition violations. The index panics with an
// error of one of these types; they are caller bugs, not recoverable states.
// ErrTypeTooManyTags is returned by TagRegistry instead.
const (
	ErrTypeInvalidHandle       = "dagaz_invalid_handle"
	ErrTypeCoordOutOfRange     = "dagaz_coord_out_of_range"
	ErrTypeMembershipCorrupted = "dagaz_membership_corrupted"
	ErrTypeInvalidBounds       = "dagaz_invalid_bounds"
	ErrTypeAlwaysVisible       = "dagaz_always_visible"
	ErrTypeTooManyTags         = "dagaz_too_many_tags"
)

func panicInvalidHandle(h Handle) {
	panic(errors.New("handle is not registered").
		WithType(ErrTypeInvalidHandle).
		WithTag("handle", h.String()))
}

func panicMembership(msg string, h Handle, coord CellCoord) {
	panic(errors.New(msg).
		WithType(ErrTypeMembershipCorrupted).
		WithTag("handle", h.String()).
		WithTag("cell", coord))
}

func panicAlwaysVisible(op string, h Handle) {
	panic(errors.New("operation is not supported on always visible objects").
		WithType(ErrTypeAlwaysVisible).
		WithTag("op", op).
		WithTag("handle", h.String()))
}
