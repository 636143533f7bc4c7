package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/store"
)

// DrawingHandler handles HTTP requests for saved drawings.
type DrawingHandler struct {
	store  *store.Store
	canvas Canvas
}

// NewDrawingHandler creates a new DrawingHandler.
func NewDrawingHandler(s *store.Store, c Canvas) *DrawingHandler {
	return &DrawingHandler{store: s, canvas: c}
}

// ServeHTTP routes /api/drawings, /api/drawings/{id} and
// /api/drawings/{id}/load.
func (h *DrawingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/drawings")
	path = strings.Trim(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.save(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	id, action, _ := strings.Cut(path, "/")
	switch {
	case action == "load":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.load(w, r, id)
	case action != "":
		http.NotFound(w, r)
	case r.Method == http.MethodGet:
		h.get(w, r, id)
	case r.Method == http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type saveDrawingRequest struct {
	Name string `json:"name"`
}

type listDrawingsResponse struct {
	Drawings []*store.Drawing `json:"drawings"`
}

// list handles GET /api/drawings.
func (h *DrawingHandler) list(w http.ResponseWriter, r *http.Request) {
	drawings, err := h.store.Drawings().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list drawings")
		return
	}
	if drawings == nil {
		drawings = []*store.Drawing{}
	}
	writeJSON(w, http.StatusOK, listDrawingsResponse{Drawings: drawings})
}

// save handles POST /api/drawings and stores the current canvas.
func (h *DrawingHandler) save(w http.ResponseWriter, r *http.Request) {
	var req saveDrawingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	size := h.canvas.Size()
	if !size.Known() {
		writeError(w, http.StatusConflict, "Canvas size unknown")
		return
	}

	// Stroke ids are unique across drawings; the same canvas can be saved
	// more than once.
	strokes := toStoreStrokes(h.canvas.Strokes())
	for i := range strokes {
		strokes[i].ID = uuid.New().String()
	}

	d := &store.Drawing{
		ID:      uuid.New().String(),
		Name:    strings.TrimSpace(req.Name),
		Width:   size.Width,
		Height:  size.Height,
		Strokes: strokes,
	}
	if err := h.store.Drawings().Create(d); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save drawing")
		return
	}

	writeJSON(w, http.StatusCreated, d)
}

// get handles GET /api/drawings/{id}.
func (h *DrawingHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	d, err := h.store.Drawings().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Drawing not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get drawing")
		return
	}

	writeJSON(w, http.StatusOK, d)
}

// load handles POST /api/drawings/{id}/load and replaces the canvas with
// the saved strokes.
func (h *DrawingHandler) load(w http.ResponseWriter, r *http.Request, id string) {
	d, err := h.store.Drawings().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Drawing not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get drawing")
		return
	}

	strokes, err := toPaintStrokes(d.Strokes)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Drawing has an invalid stroke")
		return
	}

	if err := h.canvas.LoadStrokes(strokes); err != nil {
		if errors.Is(err, app.ErrNoCanvas) {
			writeError(w, http.StatusConflict, "Canvas size unknown")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to load drawing")
		return
	}

	writeJSON(w, http.StatusOK, h.canvas.State())
}

// delete handles DELETE /api/drawings/{id}.
func (h *DrawingHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Drawings().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Drawing not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete drawing")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
