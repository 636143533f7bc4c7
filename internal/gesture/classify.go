package gesture

import (
	"github.com/ayusman/mudra/internal/detector"
)

// Classifier defaults.
const (
	// DefaultPinchThreshold is the thumb-index distance in pixels below
	// which a pinch is active.
	DefaultPinchThreshold = 30.0
	// DefaultOpenRatio is how much farther than its knuckle a fingertip
	// must be from the wrist to count as extended.
	DefaultOpenRatio = 1.6
	// DefaultMinExtended is the number of extended fingers (thumb excluded)
	// that makes a hand open.
	DefaultMinExtended = 4
)

// fingers lists (knuckle, tip) landmark pairs for the four long fingers.
var fingers = [4][2]int{
	{detector.IndexMCP, detector.IndexTip},
	{detector.MiddleMCP, detector.MiddleTip},
	{detector.RingMCP, detector.RingTip},
	{detector.PinkyMCP, detector.PinkyTip},
}

// PinchState is the thumb-index pinch of one hand.
type PinchState struct {
	// Point is the midpoint between thumb tip and index tip.
	Point    Landmark `json:"point"`
	Distance float64  `json:"distance"`
	Active   bool     `json:"active"`
}

// Gesture is the per-frame classification of one hand.
type Gesture struct {
	Role  Role
	Pinch PinchState
	Open  bool
}

// Classifier derives gesture signals from a single hand frame. It keeps no
// state between frames.
type Classifier struct {
	PinchThreshold float64
	OpenRatio      float64
	MinExtended    int
}

// NewClassifier returns a Classifier with default thresholds.
func NewClassifier() Classifier {
	return Classifier{
		PinchThreshold: DefaultPinchThreshold,
		OpenRatio:      DefaultOpenRatio,
		MinExtended:    DefaultMinExtended,
	}
}

// Pinch computes the pinch state of h.
func (c Classifier) Pinch(h HandFrame) PinchState {
	thumb := h.Landmarks[detector.ThumbTip]
	index := h.Landmarks[detector.IndexTip]
	distance := thumb.Sub(index).Norm()

	return PinchState{
		Point:    thumb.Add(index).Mul(0.5),
		Distance: distance,
		Active:   distance < c.threshold(),
	}
}

// Extended counts the long fingers whose tip reaches past OpenRatio times
// the wrist-to-knuckle distance. The result does not depend on hand scale.
func (c Classifier) Extended(h HandFrame) int {
	wrist := h.Landmarks[detector.Wrist]
	ratio := c.OpenRatio
	if ratio <= 0 {
		ratio = DefaultOpenRatio
	}

	n := 0
	for _, f := range fingers {
		knuckle := h.Landmarks[f[0]].Sub(wrist).Norm()
		if knuckle < 1e-9 {
			continue
		}
		tip := h.Landmarks[f[1]].Sub(wrist).Norm()
		if tip > ratio*knuckle {
			n++
		}
	}
	return n
}

// IsOpen reports whether h is an open hand.
func (c Classifier) IsOpen(h HandFrame) bool {
	need := c.MinExtended
	if need <= 0 || need > len(fingers) {
		need = DefaultMinExtended
	}
	return c.Extended(h) >= need
}

// Classify returns the full gesture for h.
func (c Classifier) Classify(h HandFrame) Gesture {
	return Gesture{
		Role:  h.Role,
		Pinch: c.Pinch(h),
		Open:  c.IsOpen(h),
	}
}

// Threshold is the effective pinch threshold.
func (c Classifier) Threshold() float64 {
	return c.threshold()
}

func (c Classifier) threshold() float64 {
	if c.PinchThreshold <= 0 {
		return DefaultPinchThreshold
	}
	return c.PinchThreshold
}
