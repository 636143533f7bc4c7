package gesture

import (
	"github.com/ayusman/mudra/internal/detector"
)

// AssignRole maps a detector handedness label to a role under pref.
// ok is false for labels other than "Left" and "Right".
func AssignRole(handedness string, pref Preference) (role Role, ok bool) {
	var drawing string
	switch pref {
	case PrimaryLeft:
		drawing = detector.Left
	default:
		drawing = detector.Right
	}

	switch handedness {
	case drawing:
		return Primary, true
	case detector.Left, detector.Right:
		return Secondary, true
	default:
		return 0, false
	}
}

// ToCanvas converts one raw point to canvas pixels, mirroring horizontally
// to match a front-facing camera preview.
func ToCanvas(p detector.Point3D, size Size) Landmark {
	return Landmark{
		X: (1 - p.X) * float64(size.Width),
		Y: p.Y * float64(size.Height),
	}
}

// Normalize converts raw detector hands into canvas-space hand frames.
//
// Invalid hands (unknown handedness, missing points, non-finite values) are
// dropped. When the detector reports the same handedness twice only the
// first occurrence is kept. An unknown canvas size yields an empty frame.
func Normalize(raw []detector.HandLandmarks, size Size, pref Preference) Frame {
	var frame Frame
	if !size.Known() {
		return frame
	}

	for i := range raw {
		hand := &raw[i]
		if !hand.Valid() {
			continue
		}

		role, ok := AssignRole(hand.Handedness, pref)
		if !ok {
			continue
		}

		slot := &frame.Primary
		if role == Secondary {
			slot = &frame.Secondary
		}
		if *slot != nil {
			continue
		}

		hf := &HandFrame{Role: role, Present: true}
		for j, p := range hand.Points {
			hf.Landmarks[j] = ToCanvas(p, size)
		}
		*slot = hf
	}

	return frame
}
