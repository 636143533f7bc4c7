package paint

import (
	"image/color"

	"github.com/google/uuid"

	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/render"
)

// Stroke is one continuous line, from pinch start to pinch end. Points are
// in the canvas pixel space in which they were drawn.
type Stroke struct {
	ID        string
	Color     color.RGBA
	LineWidth int
	Points    []gesture.Landmark
}

func newStroke(style *Style, at gesture.Landmark) *Stroke {
	return &Stroke{
		ID:        uuid.New().String(),
		Color:     style.Color(),
		LineWidth: style.LineWidth(),
		Points:    []gesture.Landmark{at},
	}
}

// Clone returns a deep copy.
func (s Stroke) Clone() Stroke {
	s.Points = append([]gesture.Landmark(nil), s.Points...)
	return s
}

// drawFirst marks the anchor point so a stroke of one point is visible.
func (s *Stroke) drawFirst(l *render.Layer) {
	l.Dot(render.Pt(s.Points[0]), s.radius(), s.Color)
}

// drawLast rasterizes only the newest segment.
func (s *Stroke) drawLast(l *render.Layer) {
	n := len(s.Points)
	if n < 2 {
		return
	}
	l.Line(render.Pt(s.Points[n-2]), render.Pt(s.Points[n-1]), s.Color, s.LineWidth)
}

// draw rasterizes the whole stroke.
func (s *Stroke) draw(l *render.Layer) {
	if len(s.Points) == 0 {
		return
	}
	s.drawFirst(l)
	for i := 1; i < len(s.Points); i++ {
		l.Line(render.Pt(s.Points[i-1]), render.Pt(s.Points[i]), s.Color, s.LineWidth)
	}
}

func (s *Stroke) radius() int {
	r := s.LineWidth / 2
	if r < 1 {
		return 1
	}
	return r
}
