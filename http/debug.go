package http

import (
	"net/http"

	"github.com/aukilabs/dagaz/models"
	"github.com/aukilabs/dagaz/modules/dagaz"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/google/uuid"
)

const objectCellsPath = "/debug/cells/"

type CellsResponse struct {
	ObjectID string              `json:"object_id,omitempty"`
	Cells    []dagaz.BoundingBox `json:"cells"`
}

type InfoResponse struct {
	dagaz.DebugInfo
	Invariants string `json:"invariants"`
}

// DebugHandler exposes the grid of a scene for inspection.
type DebugHandler struct {
	Scene *models.Scene
}

// HandleCells returns the box of every cell in the cell table.
func (h DebugHandler) HandleCells(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, CellsResponse{
		Cells: h.Scene.CellBoxes(),
	})
}

// HandleObjectCells returns the boxes of the cells referencing the object
// identified by the id path value.
func (h DebugHandler) HandleObjectCells(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, r, errors.New("invalid object id").
			WithType(ErrTypeBadRequest).
			WithTag("id", r.PathValue("id")).
			Wrap(err))
		return
	}

	cells, ok := h.Scene.CellBoxesFor(id)
	if !ok {
		writeError(w, r, errors.New("object not found").
			WithType(ErrTypeNotFound).
			WithTag("id", id))
		return
	}

	writeJSON(w, http.StatusOK, CellsResponse{
		ObjectID: id.String(),
		Cells:    cells,
	})
}

func (h DebugHandler) HandleInfo(w http.ResponseWriter, r *http.Request) {
	res := InfoResponse{
		DebugInfo:  h.Scene.DebugInfo(),
		Invariants: "ok",
	}
	if err := h.Scene.CheckInvariants(); err != nil {
		res.Invariants = err.Error()
	}

	writeJSON(w, http.StatusOK, res)
}
