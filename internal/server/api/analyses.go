package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/ayusman/mudra/internal/analysis"
	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/store"
)

// AnalysisHandler serves POST/DELETE /api/analyze and GET /api/analyses.
type AnalysisHandler struct {
	canvas  Canvas
	analyst Analyst
	store   *store.Store
}

// NewAnalysisHandler creates an AnalysisHandler. s may be nil, in which case
// the history endpoint is unavailable.
func NewAnalysisHandler(c Canvas, a Analyst, s *store.Store) *AnalysisHandler {
	return &AnalysisHandler{canvas: c, analyst: a, store: s}
}

type analyzeRequest struct {
	Prompt    string `json:"prompt"`
	DrawingID string `json:"drawingId"`
}

type listAnalysesResponse struct {
	Analyses []*store.Analysis `json:"analyses"`
}

// Analyze handles POST /api/analyze, asking the model about the current
// snapshot, and DELETE /api/analyze, which clears cached answers.
func (h *AnalysisHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.analyze(w, r)
	case http.MethodDelete:
		h.clear(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *AnalysisHandler) analyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	image, err := h.canvas.SnapshotPNG()
	if err != nil {
		if errors.Is(err, app.ErrNoCanvas) {
			writeError(w, http.StatusConflict, "Canvas size unknown")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to render snapshot")
		return
	}

	ev, err := h.analyst.Send(r.Context(), analysis.Analyze{
		Prompt:    req.Prompt,
		Image:     image,
		DrawingID: req.DrawingID,
	})
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	switch e := ev.(type) {
	case analysis.Result:
		writeJSON(w, http.StatusOK, e)
	case analysis.Failed:
		writeError(w, http.StatusBadGateway, e.Err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "Unexpected analysis event")
	}
}

func (h *AnalysisHandler) clear(w http.ResponseWriter, r *http.Request) {
	ev, err := h.analyst.Send(r.Context(), analysis.Delete{})
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if f, ok := ev.(analysis.Failed); ok {
		writeError(w, http.StatusInternalServerError, f.Err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// History handles GET /api/analyses?limit=N.
func (h *AnalysisHandler) History(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	list, err := h.store.Analyses().List(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list analyses")
		return
	}
	if list == nil {
		list = []*store.Analysis{}
	}
	writeJSON(w, http.StatusOK, listAnalysesResponse{Analyses: list})
}
