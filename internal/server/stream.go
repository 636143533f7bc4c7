package server

import (
	"fmt"
	"net/http"
	"time"
)

// Compositor renders the current view as JPEG. app.App satisfies it.
type Compositor interface {
	Composite() ([]byte, error)
}

// StreamHandler serves the composited view as MJPEG.
type StreamHandler struct {
	source   Compositor
	interval time.Duration
}

// NewStreamHandler creates a StreamHandler producing at most fps frames per
// second. A non-positive fps means 15.
func NewStreamHandler(source Compositor, fps int) *StreamHandler {
	if fps <= 0 {
		fps = 15
	}
	return &StreamHandler{source: source, interval: time.Second / time.Duration(fps)}
}

// ServeHTTP streams MJPEG frames until the client disconnects.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		data, err := h.source.Composite()
		if err == nil {
			fmt.Fprintf(w, "--frame\r\n")
			fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
			fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(data))
			if _, err := w.Write(data); err != nil {
				return
			}
			fmt.Fprintf(w, "\r\n")

			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}
