package app

import (
	"image/color"
	"testing"
	"time"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/detector"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func TestApp_Loop_DrawsFromCamera(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	cam := capture.NewSolidCamera(640, 480, color.RGBA{30, 30, 30, 255})
	det := detector.NewMockDetector()
	det.SetHands([]detector.HandLandmarks{pinchAt(200, 200, 5)})

	a := newTestApp(t, Config{Camera: cam, Detector: det, ActiveFPS: 50})

	if err := a.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := a.Start(); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}
	if !a.Running() {
		t.Fatal("expected the loop to run")
	}

	if !waitFor(t, 2*time.Second, func() bool {
		s := a.Strokes()
		return len(s) == 1 && len(s[0].Points) >= 3
	}) {
		t.Fatalf("no stroke grew from detected frames: %+v", a.Strokes())
	}

	a.Stop()
	a.Stop()

	if a.Running() || cam.IsOpen() {
		t.Error("Stop() should halt the loop and close the camera")
	}
	if !a.State().Drawing {
		t.Error("Stop() must not finalize the open stroke")
	}

	points := len(a.Strokes()[0].Points)
	time.Sleep(100 * time.Millisecond)
	if got := len(a.Strokes()[0].Points); got != points {
		t.Errorf("stroke grew after Stop: %d -> %d", points, got)
	}
}

func TestApp_Loop_IdleActiveSwitching(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	cam := capture.NewSolidCamera(320, 240, color.RGBA{0, 0, 0, 255})
	det := detector.NewMockDetector()

	a := newTestApp(t, Config{
		Camera:      cam,
		Detector:    det,
		ActiveFPS:   40,
		IdleFPS:     10,
		IdleTimeout: 150 * time.Millisecond,
	})

	if err := a.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer a.Stop()

	if cam.FPS() != 40 {
		t.Errorf("FPS() at start = %d, want 40", cam.FPS())
	}

	// No hands: the loop drops to idle after the timeout.
	if !waitFor(t, 2*time.Second, func() bool { return cam.FPS() == 10 }) {
		t.Fatalf("FPS() = %d, want idle 10", cam.FPS())
	}

	// A hand appears: back to active.
	det.SetHands([]detector.HandLandmarks{openLeft()})
	if !waitFor(t, 2*time.Second, func() bool { return cam.FPS() == 40 }) {
		t.Fatalf("FPS() = %d, want active 40", cam.FPS())
	}
}

func TestApp_Loop_MotionGateWhileIdle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	cam := capture.NewSolidCamera(320, 240, color.RGBA{0, 0, 0, 255})
	det := detector.NewMockDetector()

	a := newTestApp(t, Config{
		Camera:          cam,
		Detector:        det,
		ActiveFPS:       50,
		IdleFPS:         50,
		IdleTimeout:     50 * time.Millisecond,
		MotionThreshold: 1,
	})

	if err := a.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer a.Stop()

	// Let the loop go idle, then check that still frames stop reaching the
	// detector.
	time.Sleep(300 * time.Millisecond)
	calls := det.Calls()
	time.Sleep(200 * time.Millisecond)

	if got := det.Calls(); got > calls+1 {
		t.Errorf("detector called %d times on still idle frames", got-calls)
	}
	if cam.Reads() == 0 {
		t.Error("camera was never read")
	}
}
