package detector

import (
	"context"
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It returns a fixed set of hands, or plays back a queued sequence one
// frame per Detect call before falling back to the fixed set.
type MockDetector struct {
	mu       sync.Mutex
	hands    []HandLandmarks
	sequence [][]HandLandmarks
	err      error
	calls    int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands that will be returned by Detect.
func (m *MockDetector) SetHands(hands []HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
}

// Queue appends frames to be returned by subsequent Detect calls.
func (m *MockDetector) Queue(frames ...[]HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequence = append(m.sequence, frames...)
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect has been invoked.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the next queued frame, the pre-configured hands, or error.
func (m *MockDetector) Detect(ctx context.Context, frame *gocv.Mat) ([]HandLandmarks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.err != nil {
		return nil, m.err
	}
	if len(m.sequence) > 0 {
		next := m.sequence[0]
		m.sequence = m.sequence[1:]
		return next, nil
	}
	return m.hands, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// Pose offsets relative to the wrist for a hand roughly 0.5 units tall
// (wrist to middle fingertip). Y grows downward as in image space.
var (
	openOffsets = [NumLandmarks][2]float64{
		Wrist:    {0, 0},
		ThumbCMC: {0.05, -0.05}, ThumbMCP: {0.12, -0.10}, ThumbIP: {0.18, -0.15}, ThumbTip: {0.23, -0.20},
		IndexMCP: {0.05, -0.12}, IndexPIP: {0.07, -0.25}, IndexDIP: {0.08, -0.35}, IndexTip: {0.08, -0.45},
		MiddleMCP: {0, -0.14}, MiddlePIP: {0, -0.28}, MiddleDIP: {0, -0.40}, MiddleTip: {0, -0.52},
		RingMCP: {-0.05, -0.12}, RingPIP: {-0.07, -0.25}, RingDIP: {-0.08, -0.35}, RingTip: {-0.08, -0.45},
		PinkyMCP: {-0.10, -0.10}, PinkyPIP: {-0.13, -0.20}, PinkyDIP: {-0.15, -0.30}, PinkyTip: {-0.16, -0.38},
	}

	fistOffsets = [NumLandmarks][2]float64{
		Wrist:    {0, 0},
		ThumbCMC: {0.05, -0.05}, ThumbMCP: {0.08, -0.09}, ThumbIP: {0.07, -0.12}, ThumbTip: {0.04, -0.13},
		IndexMCP: {0.05, -0.12}, IndexPIP: {0.05, -0.14}, IndexDIP: {0.03, -0.11}, IndexTip: {0.02, -0.09},
		MiddleMCP: {0, -0.14}, MiddlePIP: {0, -0.16}, MiddleDIP: {-0.01, -0.12}, MiddleTip: {-0.01, -0.10},
		RingMCP: {-0.05, -0.12}, RingPIP: {-0.05, -0.14}, RingDIP: {-0.05, -0.11}, RingTip: {-0.04, -0.09},
		PinkyMCP: {-0.10, -0.10}, PinkyPIP: {-0.10, -0.12}, PinkyDIP: {-0.09, -0.10}, PinkyTip: {-0.08, -0.08},
	}
)

func pose(offsets [NumLandmarks][2]float64, handedness string, wristX, wristY, scale float64) HandLandmarks {
	lm := HandLandmarks{
		Handedness: handedness,
		Score:      0.95,
		Complete:   true,
	}
	for i, o := range offsets {
		lm.Points[i] = Point3D{X: wristX + o[0]*scale, Y: wristY + o[1]*scale}
	}
	return lm
}

// OpenPalmLandmarks returns an open hand with all fingers extended, wrist at
// (wristX, wristY) in raw normalized coordinates. scale 1 gives a hand about
// half the frame tall.
func OpenPalmLandmarks(handedness string, wristX, wristY, scale float64) HandLandmarks {
	return pose(openOffsets, handedness, wristX, wristY, scale)
}

// FistLandmarks returns a closed hand with all fingers curled.
func FistLandmarks(handedness string, wristX, wristY, scale float64) HandLandmarks {
	return pose(fistOffsets, handedness, wristX, wristY, scale)
}

// PinchLandmarks returns a curled hand whose thumb tip and index tip sit
// gap apart horizontally, centred on (x, y) in raw normalized coordinates.
func PinchLandmarks(handedness string, x, y, gap float64) HandLandmarks {
	lm := pose(fistOffsets, handedness, x, y+0.2, 0.8)
	lm.Points[ThumbTip] = Point3D{X: x - gap/2, Y: y}
	lm.Points[IndexTip] = Point3D{X: x + gap/2, Y: y}
	return lm
}
