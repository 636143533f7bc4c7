package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/store"
)

// SettingsHandler serves GET and PUT /api/settings.
type SettingsHandler struct {
	canvas Canvas
	store  *store.Store
}

// NewSettingsHandler creates a SettingsHandler. s may be nil, in which case
// settings are applied but not persisted.
func NewSettingsHandler(c Canvas, s *store.Store) *SettingsHandler {
	return &SettingsHandler{canvas: c, store: s}
}

type settingsRequest struct {
	Hand          *string `json:"hand"`
	CameraVisible *bool   `json:"cameraVisible"`
	Width         *int    `json:"width"`
	Height        *int    `json:"height"`
}

type settingsResponse struct {
	Hand          string `json:"hand"`
	CameraVisible bool   `json:"cameraVisible"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	Color         string `json:"color"`
	LineWidth     int    `json:"lineWidth"`
}

func (h *SettingsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPut:
		if !h.update(w, r) {
			return
		}
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	st := h.canvas.State()
	size := h.canvas.Size()
	writeJSON(w, http.StatusOK, settingsResponse{
		Hand:          h.canvas.Preference().String(),
		CameraVisible: h.canvas.CameraVisible(),
		Width:         size.Width,
		Height:        size.Height,
		Color:         st.Color,
		LineWidth:     st.LineWidth,
	})
}

// update applies req and reports whether the response should continue.
func (h *SettingsHandler) update(w http.ResponseWriter, r *http.Request) bool {
	var req settingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return false
	}

	var pref *gesture.Preference
	if req.Hand != nil {
		p, err := gesture.ParsePreference(*req.Hand)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid hand")
			return false
		}
		pref = &p
	}

	if (req.Width == nil) != (req.Height == nil) {
		writeError(w, http.StatusBadRequest, "Width and height must be set together")
		return false
	}
	if req.Width != nil {
		if *req.Width < 0 || *req.Height < 0 {
			writeError(w, http.StatusBadRequest, "Invalid canvas size")
			return false
		}
		if err := h.canvas.SetCanvasSize(gesture.Size{Width: *req.Width, Height: *req.Height}); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to resize canvas")
			return false
		}
	}

	if pref != nil {
		h.canvas.SetPreference(*pref)
		h.persist(store.SettingHand, pref.String())
	}
	if req.CameraVisible != nil {
		h.canvas.SetCameraVisible(*req.CameraVisible)
		h.persist(store.SettingCameraVisible, strconv.FormatBool(*req.CameraVisible))
	}
	return true
}

func (h *SettingsHandler) persist(key, value string) {
	if h.store == nil {
		return
	}
	h.store.Settings().Set(key, value)
}
