package http

import (
	"io"
	"net/http"

	"github.com/aukilabs/dagaz/models"
	"github.com/aukilabs/dagaz/modules/dagaz"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/segmentio/encoding/json"
)

const maxRequestSize = 1 << 16

// QueryFilter selects the objects a query may report.
type QueryFilter struct {
	Categories  uint32   `json:"categories,omitempty"`
	IncludeTags []string `json:"include_tags,omitempty"`
	ExcludeTags []string `json:"exclude_tags,omitempty"`
}

func (f QueryFilter) params(scene *models.Scene) (dagaz.QueryParams, error) {
	include, err := scene.Tags(f.IncludeTags...)
	if err != nil {
		return dagaz.QueryParams{}, errors.New("invalid include tags").
			WithType(ErrTypeBadRequest).
			Wrap(err)
	}

	exclude, err := scene.Tags(f.ExcludeTags...)
	if err != nil {
		return dagaz.QueryParams{}, errors.New("invalid exclude tags").
			WithType(ErrTypeBadRequest).
			Wrap(err)
	}

	return dagaz.QueryParams{
		Categories:  f.Categories,
		IncludeTags: include,
		ExcludeTags: exclude,
	}, nil
}

type BoxQueryRequest struct {
	QueryFilter
	Box dagaz.BoundingBox `json:"box"`
}

type SphereQueryRequest struct {
	QueryFilter
	Center dagaz.Vec3 `json:"center"`
	Radius float32    `json:"radius"`
}

// FrustumQueryRequest describes a frustum either by its six outward facing
// planes, ordered left, right, bottom, top, near, far, or by a camera.
// HTTP frustum queries do not mark the objects they report as visible.
type FrustumQueryRequest struct {
	QueryFilter
	Planes []dagaz.Plane  `json:"planes,omitempty"`
	Camera *models.Camera `json:"camera,omitempty"`
}

func (r FrustumQueryRequest) frustum() (dagaz.Frustum, error) {
	switch {
	case r.Camera != nil && len(r.Planes) != 0:
		return dagaz.Frustum{}, errors.New("frustum query takes either planes or a camera").
			WithType(ErrTypeBadRequest)

	case r.Camera != nil:
		if err := r.Camera.Validate(); err != nil {
			return dagaz.Frustum{}, errors.New("invalid camera").
				WithType(ErrTypeBadRequest).
				Wrap(err)
		}
		return r.Camera.Frustum(), nil

	case len(r.Planes) == 6:
		var f dagaz.Frustum
		copy(f[:], r.Planes)
		return f, nil

	default:
		return dagaz.Frustum{}, errors.New("frustum query requires six planes or a camera").
			WithType(ErrTypeBadRequest).
			WithTag("planes", len(r.Planes))
	}
}

type QueryResponse struct {
	Objects   []models.ObjectView `json:"objects"`
	Truncated bool                `json:"truncated,omitempty"`
	Stats     dagaz.QueryStats    `json:"stats"`
}

// QueryHandler serves the spatial queries of a scene.
type QueryHandler struct {
	Scene *models.Scene

	// The maximum number of objects in a response. 0 means no limit.
	MaxResults int
}

func (h QueryHandler) HandleBox(w http.ResponseWriter, r *http.Request) {
	var req BoxQueryRequest
	if err := decodeRequest(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if !req.Box.IsValid() {
		writeError(w, r, errors.New("box min must not exceed max").
			WithType(ErrTypeBadRequest).
			WithTag("box", req.Box))
		return
	}

	p, err := req.params(h.Scene)
	if err != nil {
		writeError(w, r, err)
		return
	}

	objects, stats := h.Scene.QueryBox(req.Box, p)
	h.writeObjects(w, objects, stats)
}

func (h QueryHandler) HandleSphere(w http.ResponseWriter, r *http.Request) {
	var req SphereQueryRequest
	if err := decodeRequest(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if req.Radius < 0 {
		writeError(w, r, errors.New("sphere radius must not be negative").
			WithType(ErrTypeBadRequest).
			WithTag("radius", req.Radius))
		return
	}

	p, err := req.params(h.Scene)
	if err != nil {
		writeError(w, r, err)
		return
	}

	objects, stats := h.Scene.QuerySphere(req.Center, req.Radius, p)
	h.writeObjects(w, objects, stats)
}

func (h QueryHandler) HandleFrustum(w http.ResponseWriter, r *http.Request) {
	var req FrustumQueryRequest
	if err := decodeRequest(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	f, err := req.frustum()
	if err != nil {
		writeError(w, r, err)
		return
	}

	p, err := req.params(h.Scene)
	if err != nil {
		writeError(w, r, err)
		return
	}

	objects, stats := h.Scene.QueryFrustum(f, p)
	h.writeObjects(w, objects, stats)
}

func (h QueryHandler) writeObjects(w http.ResponseWriter, objects []*models.Object, stats dagaz.QueryStats) {
	res := QueryResponse{Stats: stats}
	if h.MaxResults > 0 && len(objects) > h.MaxResults {
		objects = objects[:h.MaxResults]
		res.Truncated = true
	}
	res.Objects = models.ObjectsToView(objects)

	writeJSON(w, http.StatusOK, res)
}

func decodeRequest(r *http.Request, v any) error {
	b, err := io.ReadAll(io.LimitReader(r.Body, maxRequestSize))
	if err != nil {
		return errors.New("reading request body failed").
			WithType(ErrTypeBadRequest).
			Wrap(err)
	}

	if err := json.Unmarshal(b, v); err != nil {
		return errors.New("decoding request body failed").
			WithType(ErrTypeBadRequest).
			Wrap(err)
	}
	return nil
}
