// Package detector provides hand detection interfaces and raw landmark types.
package detector

import "math"

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// Handedness labels reported by the detector.
const (
	Left  = "Left"
	Right = "Right"
)

// Point3D is a raw landmark. X and Y are normalized to [0,1] relative to
// the camera image; Z is relative depth.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// HandLandmarks represents the 21 hand landmarks detected by MediaPipe.
type HandLandmarks struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness string                `json:"handedness"` // "Left" or "Right"
	Score      float64               `json:"score"`

	// Complete is false when the detector returned fewer than
	// NumLandmarks points for this hand.
	Complete bool `json:"-"`
}

// Valid reports whether h can be trusted for one frame: a known handedness
// label, a full set of points and finite coordinates.
func (h *HandLandmarks) Valid() bool {
	if h == nil || !h.Complete {
		return false
	}
	if h.Handedness != Left && h.Handedness != Right {
		return false
	}
	for _, p := range h.Points {
		if !finite(p.X) || !finite(p.Y) {
			return false
		}
	}
	return true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
