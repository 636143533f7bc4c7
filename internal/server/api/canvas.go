package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/paint"
	"github.com/ayusman/mudra/internal/store"
)

// CanvasHandler serves the drawing itself: snapshot, clear and style.
type CanvasHandler struct {
	canvas Canvas
	store  *store.Store
}

// NewCanvasHandler creates a CanvasHandler. s may be nil, in which case
// style changes are not persisted.
func NewCanvasHandler(c Canvas, s *store.Store) *CanvasHandler {
	return &CanvasHandler{canvas: c, store: s}
}

type styleRequest struct {
	Color     *string `json:"color"`
	LineWidth *int    `json:"lineWidth"`
}

type styleResponse struct {
	Color     string `json:"color"`
	LineWidth int    `json:"lineWidth"`
}

// Snapshot handles GET /api/snapshot and returns the drawing as PNG.
func (h *CanvasHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	data, err := h.canvas.SnapshotPNG()
	if err != nil {
		if errors.Is(err, app.ErrNoCanvas) {
			writeError(w, http.StatusConflict, "Canvas size unknown")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to render snapshot")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(data)
}

// Clear handles POST /api/clear.
func (h *CanvasHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.canvas.Clear()
	w.WriteHeader(http.StatusNoContent)
}

// Style handles GET and PUT /api/style.
func (h *CanvasHandler) Style(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPut:
		var req styleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
		if req.Color != nil {
			if err := h.canvas.SetColor(*req.Color); err != nil {
				writeStyleError(w, err, "Invalid color")
				return
			}
		}
		if req.LineWidth != nil {
			if err := h.canvas.SetLineWidth(*req.LineWidth); err != nil {
				writeStyleError(w, err, "Invalid line width")
				return
			}
		}
		h.persistStyle()
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	st := h.canvas.State()
	writeJSON(w, http.StatusOK, styleResponse{Color: st.Color, LineWidth: st.LineWidth})
}

// Observe persists the style after a menu selection, so gesture changes
// survive a restart like API changes do. Register it with App.OnFrame.
func (h *CanvasHandler) Observe(st app.FrameState) {
	if st.Selected == "" {
		return
	}
	h.saveStyle(st.Color, st.LineWidth)
}

func (h *CanvasHandler) persistStyle() {
	st := h.canvas.State()
	h.saveStyle(st.Color, st.LineWidth)
}

func (h *CanvasHandler) saveStyle(color string, lineWidth int) {
	if h.store == nil {
		return
	}
	settings := h.store.Settings()
	settings.Set(store.SettingColor, color)
	settings.Set(store.SettingLineWidth, strconv.Itoa(lineWidth))
}

func writeStyleError(w http.ResponseWriter, err error, message string) {
	if errors.Is(err, paint.ErrInvalidStyle) {
		writeError(w, http.StatusBadRequest, message)
		return
	}
	writeError(w, http.StatusInternalServerError, "Failed to update style")
}
