package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image/color"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ayusman/mudra/internal/analysis"
	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/paint"
	"github.com/ayusman/mudra/internal/store"
)

// newTestStore creates a new Store with a temporary database for testing.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "mudra-api-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() {
		os.RemoveAll(tmpDir)
	})

	s, err := store.New(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})

	return s
}

// fakeCanvas records what the handlers do to it.
type fakeCanvas struct {
	mu      sync.Mutex
	style   *paint.Style
	size    gesture.Size
	pref    gesture.Preference
	camera  bool
	strokes []paint.Stroke
	clears  int
}

func newFakeCanvas() *fakeCanvas {
	return &fakeCanvas{style: paint.NewStyle(), size: gesture.Size{Width: 400, Height: 300}, camera: true}
}

func (c *fakeCanvas) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clears++
	c.strokes = nil
}

func (c *fakeCanvas) SetColor(v string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.style.SetColorString(v)
}

func (c *fakeCanvas) SetLineWidth(w int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.style.SetLineWidth(w)
}

func (c *fakeCanvas) SnapshotPNG() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.size.Known() {
		return nil, app.ErrNoCanvas
	}
	return []byte("\x89PNG fake"), nil
}

func (c *fakeCanvas) Strokes() []paint.Stroke {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]paint.Stroke(nil), c.strokes...)
}

func (c *fakeCanvas) LoadStrokes(strokes []paint.Stroke) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.size.Known() {
		return app.ErrNoCanvas
	}
	c.strokes = strokes
	return nil
}

func (c *fakeCanvas) Size() gesture.Size {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

func (c *fakeCanvas) SetCanvasSize(size gesture.Size) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.size = size
	return nil
}

func (c *fakeCanvas) SetPreference(p gesture.Preference) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pref = p
}

func (c *fakeCanvas) Preference() gesture.Preference {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pref
}

func (c *fakeCanvas) SetCameraVisible(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.camera = v
}

func (c *fakeCanvas) CameraVisible() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.camera
}

func (c *fakeCanvas) State() app.FrameState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return app.FrameState{
		Size:          c.size,
		Strokes:       len(c.strokes),
		Color:         paint.FormatColor(c.style.Color()),
		LineWidth:     c.style.LineWidth(),
		Preference:    c.pref.String(),
		CameraVisible: c.camera,
	}
}

type fakeAnalyst struct {
	event analysis.Event
	err   error
	got   []analysis.Command
}

func (a *fakeAnalyst) Send(ctx context.Context, cmd analysis.Command) (analysis.Event, error) {
	a.got = append(a.got, cmd)
	return a.event, a.err
}

func sampleStrokes() []paint.Stroke {
	return []paint.Stroke{
		{ID: "s1", Color: color.RGBA{R: 255, A: 255}, LineWidth: 8, Points: []gesture.Landmark{{X: 10, Y: 20}, {X: 30, Y: 40}}},
		{ID: "s2", Color: color.RGBA{B: 255, A: 255}, LineWidth: 4, Points: []gesture.Landmark{{X: 5, Y: 5}}},
	}
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestStrokeConversion(t *testing.T) {
	in := sampleStrokes()

	saved := toStoreStrokes(in)
	if saved[0].Color != "#FF0000" || saved[1].Color != "#0000FF" {
		t.Errorf("colors = %q, %q", saved[0].Color, saved[1].Color)
	}

	out, err := toPaintStrokes(saved)
	if err != nil {
		t.Fatalf("toPaintStrokes() error = %v", err)
	}
	for i := range in {
		if out[i].ID != in[i].ID || out[i].Color != in[i].Color || out[i].LineWidth != in[i].LineWidth {
			t.Errorf("stroke %d = %+v, want %+v", i, out[i], in[i])
		}
		if len(out[i].Points) != len(in[i].Points) || out[i].Points[0] != in[i].Points[0] {
			t.Errorf("stroke %d points = %v, want %v", i, out[i].Points, in[i].Points)
		}
	}

	if _, err := toPaintStrokes([]store.Stroke{{Color: "nope"}}); err == nil {
		t.Error("expected error for an unparsable color")
	}
}

func TestCanvasHandler_Snapshot(t *testing.T) {
	c := newFakeCanvas()
	h := NewCanvasHandler(c, nil)

	rec := do(t, http.HandlerFunc(h.Snapshot), http.MethodGet, "/api/snapshot", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q", ct)
	}

	c.SetCanvasSize(gesture.Size{})
	rec = do(t, http.HandlerFunc(h.Snapshot), http.MethodGet, "/api/snapshot", "")
	if rec.Code != http.StatusConflict {
		t.Errorf("unknown size status = %d, want 409", rec.Code)
	}

	rec = do(t, http.HandlerFunc(h.Snapshot), http.MethodPost, "/api/snapshot", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST status = %d, want 405", rec.Code)
	}
}

func TestCanvasHandler_Clear(t *testing.T) {
	c := newFakeCanvas()
	h := NewCanvasHandler(c, nil)

	if rec := do(t, http.HandlerFunc(h.Clear), http.MethodGet, "/api/clear", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d, want 405", rec.Code)
	}
	if rec := do(t, http.HandlerFunc(h.Clear), http.MethodPost, "/api/clear", ""); rec.Code != http.StatusNoContent {
		t.Errorf("POST status = %d, want 204", rec.Code)
	}
	if c.clears != 1 {
		t.Errorf("clears = %d, want 1", c.clears)
	}
}

func TestCanvasHandler_Style(t *testing.T) {
	s := newTestStore(t)
	c := newFakeCanvas()
	h := http.HandlerFunc(NewCanvasHandler(c, s).Style)

	tests := []struct {
		name      string
		body      string
		wantCode  int
		wantColor string
		wantWidth int
	}{
		{"color name", `{"color":"green"}`, http.StatusOK, "#008000", 12},
		{"width only", `{"lineWidth":4}`, http.StatusOK, "#008000", 4},
		{"both", `{"color":"#00F","lineWidth":20}`, http.StatusOK, "#0000FF", 20},
		{"bad color", `{"color":"notacolor"}`, http.StatusBadRequest, "#0000FF", 20},
		{"bad width", `{"lineWidth":0}`, http.StatusBadRequest, "#0000FF", 20},
		{"bad json", `{`, http.StatusBadRequest, "#0000FF", 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPut, "/api/style", tt.body)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantCode, rec.Body.String())
			}
			st := c.State()
			if st.Color != tt.wantColor || st.LineWidth != tt.wantWidth {
				t.Errorf("style = %s/%d, want %s/%d", st.Color, st.LineWidth, tt.wantColor, tt.wantWidth)
			}
		})
	}

	rec := do(t, h, http.MethodGet, "/api/style", "")
	var got styleResponse
	json.NewDecoder(rec.Body).Decode(&got)
	if got.Color != "#0000FF" || got.LineWidth != 20 {
		t.Errorf("GET /api/style = %+v", got)
	}

	if v, _ := s.Settings().Get(store.SettingLineWidth); v != "20" {
		t.Errorf("persisted line width = %q, want 20", v)
	}
}

func TestCanvasHandler_ObservePersistsSelections(t *testing.T) {
	s := newTestStore(t)
	h := NewCanvasHandler(newFakeCanvas(), s)

	tests := []struct {
		name      string
		st        app.FrameState
		wantColor string
		wantWidth string
	}{
		{"color selection", app.FrameState{Selected: "blue", Color: "#0000FF", LineWidth: 12}, "#0000FF", "12"},
		{"size selection", app.FrameState{Selected: "L", Color: "#0000FF", LineWidth: 20}, "#0000FF", "20"},
		{"frame without selection", app.FrameState{Color: "#FF0000", LineWidth: 4}, "#0000FF", "20"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h.Observe(tt.st)

			color, _ := s.Settings().Get(store.SettingColor)
			width, _ := s.Settings().Get(store.SettingLineWidth)
			if color != tt.wantColor || width != tt.wantWidth {
				t.Errorf("persisted style = %s/%s, want %s/%s", color, width, tt.wantColor, tt.wantWidth)
			}
		})
	}
}

func TestCanvasHandler_ObserveWithoutStore(t *testing.T) {
	h := NewCanvasHandler(newFakeCanvas(), nil)
	h.Observe(app.FrameState{Selected: "blue", Color: "#0000FF", LineWidth: 12})
}

func TestDrawingHandler_Workflow(t *testing.T) {
	s := newTestStore(t)
	c := newFakeCanvas()
	c.strokes = sampleStrokes()
	h := NewDrawingHandler(s, c)

	// Save the current canvas.
	rec := do(t, h, http.MethodPost, "/api/drawings", `{"name":" boat "}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST status = %d: %s", rec.Code, rec.Body.String())
	}
	var created store.Drawing
	json.NewDecoder(rec.Body).Decode(&created)
	if created.ID == "" || created.Name != "boat" || created.Width != 400 || created.Height != 300 {
		t.Errorf("created = %+v", created)
	}

	// The same canvas can be saved again.
	rec = do(t, h, http.MethodPost, "/api/drawings", `{"name":"boat again"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("second POST status = %d: %s", rec.Code, rec.Body.String())
	}

	// List them.
	rec = do(t, h, http.MethodGet, "/api/drawings", "")
	var listed listDrawingsResponse
	json.NewDecoder(rec.Body).Decode(&listed)
	if len(listed.Drawings) != 2 || listed.Drawings[0].StrokeCount != 2 {
		t.Fatalf("listed = %+v", listed)
	}

	// Get it with strokes.
	rec = do(t, h, http.MethodGet, "/api/drawings/"+created.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET status = %d", rec.Code)
	}
	var got store.Drawing
	json.NewDecoder(rec.Body).Decode(&got)
	if len(got.Strokes) != 2 || len(got.Strokes[0].Points) != 2 {
		t.Errorf("got strokes = %+v", got.Strokes)
	}

	// Clear, then load it back.
	c.Clear()
	rec = do(t, h, http.MethodPost, "/api/drawings/"+created.ID+"/load", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("load status = %d: %s", rec.Code, rec.Body.String())
	}
	loaded := c.Strokes()
	if len(loaded) != 2 || loaded[0].Color != (color.RGBA{R: 255, A: 255}) || loaded[0].Points[1] != (gesture.Landmark{X: 30, Y: 40}) {
		t.Errorf("loaded strokes = %+v", loaded)
	}

	// Delete it.
	if rec := do(t, h, http.MethodDelete, "/api/drawings/"+created.ID, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("DELETE status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/drawings/"+created.ID, ""); rec.Code != http.StatusNotFound {
		t.Errorf("GET after delete status = %d, want 404", rec.Code)
	}
}

func TestDrawingHandler_Errors(t *testing.T) {
	s := newTestStore(t)
	c := newFakeCanvas()
	h := NewDrawingHandler(s, c)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"missing drawing", http.MethodGet, "/api/drawings/missing", "", http.StatusNotFound},
		{"delete missing", http.MethodDelete, "/api/drawings/missing", "", http.StatusNotFound},
		{"load missing", http.MethodPost, "/api/drawings/missing/load", "", http.StatusNotFound},
		{"load with GET", http.MethodGet, "/api/drawings/x/load", "", http.StatusMethodNotAllowed},
		{"unknown action", http.MethodPost, "/api/drawings/x/rename", "", http.StatusNotFound},
		{"put collection", http.MethodPut, "/api/drawings", "", http.StatusMethodNotAllowed},
		{"bad json", http.MethodPost, "/api/drawings", "{", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(t, h, tt.method, tt.path, tt.body); rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}

	t.Run("save without canvas size", func(t *testing.T) {
		c.SetCanvasSize(gesture.Size{})
		if rec := do(t, h, http.MethodPost, "/api/drawings", ""); rec.Code != http.StatusConflict {
			t.Errorf("status = %d, want 409", rec.Code)
		}
	})
}

func TestAnalysisHandler_Analyze(t *testing.T) {
	c := newFakeCanvas()

	t.Run("result", func(t *testing.T) {
		fa := &fakeAnalyst{event: analysis.Result{ID: "a1", Prompt: "what?", Answer: "A cat."}}
		h := http.HandlerFunc(NewAnalysisHandler(c, fa, nil).Analyze)

		rec := do(t, h, http.MethodPost, "/api/analyze", `{"prompt":"what?","drawingId":"d1"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
		}
		var res analysis.Result
		json.NewDecoder(rec.Body).Decode(&res)
		if res.Answer != "A cat." {
			t.Errorf("answer = %q", res.Answer)
		}

		cmd, ok := fa.got[0].(analysis.Analyze)
		if !ok {
			t.Fatalf("command = %T, want Analyze", fa.got[0])
		}
		if cmd.Prompt != "what?" || cmd.DrawingID != "d1" || len(cmd.Image) == 0 {
			t.Errorf("command = %+v", cmd)
		}
	})

	t.Run("empty body", func(t *testing.T) {
		fa := &fakeAnalyst{event: analysis.Result{Answer: "x"}}
		h := http.HandlerFunc(NewAnalysisHandler(c, fa, nil).Analyze)

		if rec := do(t, h, http.MethodPost, "/api/analyze", ""); rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
	})

	t.Run("model failure", func(t *testing.T) {
		fa := &fakeAnalyst{event: analysis.Failed{Err: errors.New("service down")}}
		h := http.HandlerFunc(NewAnalysisHandler(c, fa, nil).Analyze)

		rec := do(t, h, http.MethodPost, "/api/analyze", `{}`)
		if rec.Code != http.StatusBadGateway {
			t.Errorf("status = %d, want 502", rec.Code)
		}
	})

	t.Run("session closed", func(t *testing.T) {
		fa := &fakeAnalyst{err: analysis.ErrClosed}
		h := http.HandlerFunc(NewAnalysisHandler(c, fa, nil).Analyze)

		if rec := do(t, h, http.MethodPost, "/api/analyze", `{}`); rec.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", rec.Code)
		}
	})

	t.Run("clear cache", func(t *testing.T) {
		fa := &fakeAnalyst{event: analysis.DeleteDone{}}
		h := http.HandlerFunc(NewAnalysisHandler(c, fa, nil).Analyze)

		if rec := do(t, h, http.MethodDelete, "/api/analyze", ""); rec.Code != http.StatusNoContent {
			t.Errorf("status = %d, want 204", rec.Code)
		}
		if _, ok := fa.got[0].(analysis.Delete); !ok {
			t.Errorf("command = %T, want Delete", fa.got[0])
		}
	})

	t.Run("no canvas", func(t *testing.T) {
		empty := newFakeCanvas()
		empty.size = gesture.Size{}
		fa := &fakeAnalyst{}
		h := http.HandlerFunc(NewAnalysisHandler(empty, fa, nil).Analyze)

		if rec := do(t, h, http.MethodPost, "/api/analyze", `{}`); rec.Code != http.StatusConflict {
			t.Errorf("status = %d, want 409", rec.Code)
		}
		if len(fa.got) != 0 {
			t.Error("analyst should not be called without a canvas")
		}
	})
}

func TestAnalysisHandler_History(t *testing.T) {
	s := newTestStore(t)
	for _, id := range []string{"a1", "a2", "a3"} {
		if err := s.Analyses().Create(&store.Analysis{ID: id, Prompt: "p", Answer: "x"}); err != nil {
			t.Fatalf("failed to create analysis: %v", err)
		}
	}
	h := http.HandlerFunc(NewAnalysisHandler(newFakeCanvas(), &fakeAnalyst{}, s).History)

	rec := do(t, h, http.MethodGet, "/api/analyses?limit=2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got listAnalysesResponse
	json.NewDecoder(rec.Body).Decode(&got)
	if len(got.Analyses) != 2 {
		t.Errorf("analyses = %d, want 2", len(got.Analyses))
	}

	if rec := do(t, h, http.MethodGet, "/api/analyses?limit=x", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", rec.Code)
	}
}

func TestSettingsHandler(t *testing.T) {
	s := newTestStore(t)
	c := newFakeCanvas()
	h := NewSettingsHandler(c, s)

	rec := do(t, h, http.MethodPut, "/api/settings", `{"hand":"Hand L","cameraVisible":false,"width":800,"height":600}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT status = %d: %s", rec.Code, rec.Body.String())
	}

	var got settingsResponse
	json.NewDecoder(rec.Body).Decode(&got)
	want := settingsResponse{Hand: "left", CameraVisible: false, Width: 800, Height: 600, Color: "#FF0000", LineWidth: 12}
	if got != want {
		t.Errorf("settings = %+v, want %+v", got, want)
	}

	if c.Preference() != gesture.PrimaryLeft || c.CameraVisible() || c.Size() != (gesture.Size{Width: 800, Height: 600}) {
		t.Error("settings were not applied to the canvas")
	}

	stored, err := s.Settings().All()
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}
	if stored[store.SettingHand] != "left" || stored[store.SettingCameraVisible] != "false" {
		t.Errorf("stored settings = %v", stored)
	}

	tests := []struct {
		name string
		body string
	}{
		{"bad hand", `{"hand":"both"}`},
		{"width without height", `{"width":10}`},
		{"negative size", `{"width":-1,"height":10}`},
		{"bad json", `nope`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(t, h, http.MethodPut, "/api/settings", tt.body); rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}

	if rec := do(t, h, http.MethodDelete, "/api/settings", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("DELETE status = %d, want 405", rec.Code)
	}
}
