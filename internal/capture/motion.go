package capture

import (
	"image"
	"sync"

	"gocv.io/x/gocv"
)

const (
	motionBlur = 21
	motionDiff = 25
)

// MotionGate reports whether a frame differs enough from the previous one
// to be worth running hand detection on. It compares blurred grayscale
// frames and counts the pixels whose change exceeds a fixed level.
type MotionGate struct {
	mu        sync.Mutex
	percent   float64
	prev      gocv.Mat
	hasPrev   bool
	lastRatio float64
}

// NewMotionGate opens the gate when more than percent of the pixels change.
// A non-positive percent opens it on every frame.
func NewMotionGate(percent float64) *MotionGate {
	return &MotionGate{percent: percent, prev: gocv.NewMat()}
}

// Open reports whether frame moved relative to the last frame passed in.
// The first frame only sets the baseline and counts as moved.
func (g *MotionGate) Open(frame gocv.Mat) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if frame.Empty() {
		return false
	}
	if g.percent <= 0 {
		return true
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Channels() > 1 {
		gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}
	gocv.GaussianBlur(gray, &gray, image.Pt(motionBlur, motionBlur), 0, 0, gocv.BorderDefault)
	defer gray.CopyTo(&g.prev)

	if !g.hasPrev || g.prev.Rows() != gray.Rows() || g.prev.Cols() != gray.Cols() {
		g.hasPrev = true
		g.lastRatio = 100
		return true
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(gray, g.prev, &diff)
	gocv.Threshold(diff, &diff, motionDiff, 255, gocv.ThresholdBinary)

	g.lastRatio = float64(gocv.CountNonZero(diff)) / float64(diff.Rows()*diff.Cols()) * 100
	return g.lastRatio > g.percent
}

// Changed returns the share of changed pixels, in percent, seen by the last
// call to Open.
func (g *MotionGate) Changed() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastRatio
}

// Reset forgets the baseline frame.
func (g *MotionGate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.hasPrev = false
}

// Close releases the baseline frame.
func (g *MotionGate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prev.Close()
	g.hasPrev = false
}
