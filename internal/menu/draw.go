package menu

import (
	"image"
	"image/color"

	"github.com/golang/geo/r2"

	"github.com/ayusman/mudra/internal/paint"
	"github.com/ayusman/mudra/internal/render"
)

var (
	cellBackground = color.RGBA{R: 240, G: 240, B: 240, A: 255}
	cellBorder     = color.RGBA{R: 60, G: 60, B: 60, A: 255}
	hoverBorder    = color.RGBA{R: 255, G: 215, B: 0, A: 255}
	currentBorder  = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	labelColor     = color.RGBA{R: 20, G: 20, B: 20, A: 255}
)

func rect(r r2.Rect) image.Rectangle {
	return image.Rectangle{Min: render.Pt(r.Lo()), Max: render.Pt(r.Hi())}
}

// Draw renders the menu onto l: items, the hovered item, and markers for
// the current color and width. It draws nothing while the menu is hidden.
func (e *Engine) Draw(l *render.Layer) {
	if !e.visible {
		return
	}

	var current paint.Style
	if e.style != nil {
		current = *e.style
	}

	for i, item := range e.items {
		r := rect(item.Region)

		switch item.Kind {
		case Color:
			l.Rect(r, item.Color, -1)
			if item.Color == current.Color() {
				l.Rect(r.Inset(3), currentBorder, 2)
			}
		case Size:
			l.Rect(r, cellBackground, -1)
			c := render.Pt(item.Region.Center())
			l.Dot(c, max(1, item.Width/2), current.Color())
			if item.Width == current.LineWidth() {
				l.Rect(r.Inset(3), labelColor, 2)
			}
		case Action:
			l.Rect(r, cellBackground, -1)
			org := image.Pt(r.Min.X+4, r.Min.Y+r.Dy()/2+4)
			l.Text(item.Label, org, 0.35, labelColor)
		}

		if i == e.hovered {
			l.Rect(r, hoverBorder, 3)
		} else {
			l.Rect(r, cellBorder, 1)
		}
	}
}
