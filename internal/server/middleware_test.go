package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogRequests(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := logRequests(zap.New(core), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/missing" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("ok"))
	}))

	tests := []struct {
		path       string
		wantLogged bool
		wantStatus int64
	}{
		{"/api/health", true, http.StatusOK},
		{"/api/missing", true, http.StatusNotFound},
		{"/index.html", false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			before := logs.Len()
			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tt.path+"?q=1", nil))

			entries := logs.All()[before:]
			if !tt.wantLogged {
				if len(entries) != 0 {
					t.Errorf("logged %d entries, want none", len(entries))
				}
				return
			}
			if len(entries) != 1 {
				t.Fatalf("logged %d entries, want 1", len(entries))
			}
			fields := entries[0].ContextMap()
			if fields["status"] != tt.wantStatus {
				t.Errorf("status = %v, want %d", fields["status"], tt.wantStatus)
			}
			if fields["path"] != tt.path || fields["query"] != "q=1" {
				t.Errorf("path=%v query=%v", fields["path"], fields["query"])
			}
		})
	}
}

func TestStatusRecorder_Flush(t *testing.T) {
	rec := httptest.NewRecorder()
	sr := &statusRecorder{ResponseWriter: rec}

	var w http.ResponseWriter = sr
	f, ok := w.(http.Flusher)
	if !ok {
		t.Fatal("statusRecorder should implement http.Flusher")
	}
	f.Flush()
	if !rec.Flushed {
		t.Error("Flush was not forwarded")
	}

	if _, _, err := sr.Hijack(); err == nil {
		t.Error("Hijack on a recorder without hijack support should fail")
	}
}
