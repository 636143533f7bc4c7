// Package gesture turns raw detector output into canvas-space hands and
// derives per-frame gesture signals (pinch, open hand) from them.
package gesture

import (
	"fmt"
	"strings"

	"github.com/golang/geo/r2"

	"github.com/ayusman/mudra/internal/detector"
)

// Landmark is a hand keypoint in canvas pixel space.
type Landmark = r2.Point

// Role is the job a hand plays in the interaction.
type Role int

const (
	// Primary draws and selects menu items.
	Primary Role = iota
	// Secondary summons the menu.
	Secondary
)

func (r Role) String() string {
	switch r {
	case Primary:
		return "primary"
	case Secondary:
		return "secondary"
	default:
		return "unknown"
	}
}

// Preference names the physical hand the user draws with.
type Preference int

const (
	// PrimaryRight draws with the right hand; the left hand opens the menu.
	PrimaryRight Preference = iota
	// PrimaryLeft draws with the left hand; the right hand opens the menu.
	PrimaryLeft
)

func (p Preference) String() string {
	if p == PrimaryLeft {
		return "left"
	}
	return "right"
}

// ParsePreference accepts "right"/"left" in any case, with or without a
// "hand " prefix ("Hand R", "hand left").
func ParsePreference(s string) (Preference, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.TrimSpace(strings.TrimPrefix(v, "hand"))
	switch v {
	case "right", "r":
		return PrimaryRight, nil
	case "left", "l":
		return PrimaryLeft, nil
	default:
		return PrimaryRight, fmt.Errorf("unknown hand preference %q", s)
	}
}

// Size is the canvas size in pixels.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Known reports whether both dimensions are positive.
func (s Size) Known() bool {
	return s.Width > 0 && s.Height > 0
}

// HandFrame is one hand for one frame, in canvas pixels.
type HandFrame struct {
	Role      Role
	Landmarks [detector.NumLandmarks]Landmark
	Present   bool
}

// Frame holds the hands seen in one video frame, indexed by role.
type Frame struct {
	Primary   *HandFrame
	Secondary *HandFrame
}

// Hands returns the present hands, primary first.
func (f Frame) Hands() []HandFrame {
	var out []HandFrame
	if f.Primary != nil {
		out = append(out, *f.Primary)
	}
	if f.Secondary != nil {
		out = append(out, *f.Secondary)
	}
	return out
}
