package render

import (
	"image/color"

	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/gesture"
)

// connections are the landmark pairs joined when drawing a hand, following
// MediaPipe's HAND_CONNECTIONS.
var connections = [][2]int{
	{detector.Wrist, detector.ThumbCMC}, {detector.ThumbCMC, detector.ThumbMCP},
	{detector.ThumbMCP, detector.ThumbIP}, {detector.ThumbIP, detector.ThumbTip},
	{detector.Wrist, detector.IndexMCP}, {detector.IndexMCP, detector.IndexPIP},
	{detector.IndexPIP, detector.IndexDIP}, {detector.IndexDIP, detector.IndexTip},
	{detector.IndexMCP, detector.MiddleMCP}, {detector.MiddleMCP, detector.MiddlePIP},
	{detector.MiddlePIP, detector.MiddleDIP}, {detector.MiddleDIP, detector.MiddleTip},
	{detector.MiddleMCP, detector.RingMCP}, {detector.RingMCP, detector.RingPIP},
	{detector.RingPIP, detector.RingDIP}, {detector.RingDIP, detector.RingTip},
	{detector.RingMCP, detector.PinkyMCP}, {detector.Wrist, detector.PinkyMCP},
	{detector.PinkyMCP, detector.PinkyPIP}, {detector.PinkyPIP, detector.PinkyDIP},
	{detector.PinkyDIP, detector.PinkyTip},
}

var (
	primaryBone   = color.RGBA{R: 0, G: 200, B: 0, A: 255}
	secondaryBone = color.RGBA{R: 0, G: 120, B: 255, A: 255}
	joint         = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	pinchMarker   = color.RGBA{R: 255, G: 255, B: 0, A: 255}
)

// PinchMarkerRadius is the radius of the dot drawn at the pinch point.
const PinchMarkerRadius = 8

// DrawHand draws the skeleton of h onto l. When pinch is non-nil the pinch
// point is marked.
func DrawHand(l *Layer, h gesture.HandFrame, pinch *gesture.PinchState) {
	bone := primaryBone
	if h.Role == gesture.Secondary {
		bone = secondaryBone
	}

	for _, c := range connections {
		l.Line(Pt(h.Landmarks[c[0]]), Pt(h.Landmarks[c[1]]), bone, 2)
	}
	for _, p := range h.Landmarks {
		l.Dot(Pt(p), 3, joint)
	}

	if pinch != nil {
		l.Dot(Pt(pinch.Point), PinchMarkerRadius, pinchMarker)
	}
}
