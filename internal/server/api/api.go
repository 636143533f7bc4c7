// Package api provides HTTP API handlers for mudra.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ayusman/mudra/internal/analysis"
	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/paint"
	"github.com/ayusman/mudra/internal/store"
)

// Canvas is the part of app.App the handlers drive.
type Canvas interface {
	Clear()
	SetColor(v string) error
	SetLineWidth(w int) error
	SnapshotPNG() ([]byte, error)
	Strokes() []paint.Stroke
	LoadStrokes(strokes []paint.Stroke) error
	Size() gesture.Size
	SetCanvasSize(size gesture.Size) error
	SetPreference(p gesture.Preference)
	Preference() gesture.Preference
	SetCameraVisible(v bool)
	CameraVisible() bool
	State() app.FrameState
}

// Analyst runs analysis commands. analysis.Session satisfies it.
type Analyst interface {
	Send(ctx context.Context, cmd analysis.Command) (analysis.Event, error)
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func toStoreStrokes(strokes []paint.Stroke) []store.Stroke {
	out := make([]store.Stroke, 0, len(strokes))
	for _, s := range strokes {
		st := store.Stroke{
			ID:        s.ID,
			Color:     paint.FormatColor(s.Color),
			LineWidth: s.LineWidth,
			Points:    make([]store.Point, len(s.Points)),
		}
		for i, p := range s.Points {
			st.Points[i] = store.Point{X: p.X, Y: p.Y}
		}
		out = append(out, st)
	}
	return out
}

func toPaintStrokes(strokes []store.Stroke) ([]paint.Stroke, error) {
	out := make([]paint.Stroke, 0, len(strokes))
	for _, s := range strokes {
		c, err := paint.ParseColor(s.Color)
		if err != nil {
			return nil, err
		}
		ps := paint.Stroke{
			ID:        s.ID,
			Color:     c,
			LineWidth: s.LineWidth,
			Points:    make([]gesture.Landmark, len(s.Points)),
		}
		for i, p := range s.Points {
			ps.Points[i] = gesture.Landmark{X: p.X, Y: p.Y}
		}
		out = append(out, ps)
	}
	return out, nil
}
