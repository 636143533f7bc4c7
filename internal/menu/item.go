// Package menu implements the floating palette opened by the secondary hand
// and driven by the primary pinch.
package menu

import (
	"image/color"
	"math"
	"strconv"

	"github.com/golang/geo/r2"
	"golang.org/x/image/colornames"

	"github.com/ayusman/mudra/internal/gesture"
)

// Kind is the category of a menu item.
type Kind int

const (
	// Color items set the stroke color.
	Color Kind = iota
	// Size items set the line width.
	Size
	// Action items run a named operation.
	Action
)

func (k Kind) String() string {
	switch k {
	case Color:
		return "color"
	case Size:
		return "size"
	case Action:
		return "action"
	default:
		return "unknown"
	}
}

// Actions known to the menu.
const (
	ActionClear = "clear"
)

// Item is one selectable cell. Exactly one of Color, Width or Action is
// meaningful, depending on Kind.
type Item struct {
	Kind   Kind
	Label  string
	Region r2.Rect
	Color  color.RGBA
	Width  int
	Action string
}

type swatch struct {
	label string
	rgba  color.RGBA
}

// palette lists the color items in generation order.
var palette = []swatch{
	{"red", colornames.Red},
	{"orange", colornames.Orange},
	{"yellow", colornames.Yellow},
	{"green", colornames.Green},
	{"blue", colornames.Blue},
	{"purple", colornames.Purple},
	{"black", colornames.Black},
}

// widths lists the size items in generation order.
var widths = []int{4, 8, 12, 20}

const (
	minCell = 24
	maxCell = 64
)

// Layout generates the menu for a canvas. Colors form the outer column and
// sizes plus actions the inner one, on the secondary hand's side of the
// mirrored display: the left edge when the primary hand is the right one.
// An unknown size yields no items.
func Layout(size gesture.Size, pref gesture.Preference) []Item {
	if !size.Known() {
		return nil
	}

	cell := math.Min(float64(size.Width), float64(size.Height)) / 10
	cell = math.Max(minCell, math.Min(maxCell, math.Floor(cell)))
	gap := math.Max(2, math.Floor(cell/10))
	margin := math.Floor(cell / 2)

	place := func(col, row int) r2.Rect {
		x0 := margin + float64(col)*(cell+gap)
		y0 := margin + float64(row)*(cell+gap)
		x1 := x0 + cell
		if pref == gesture.PrimaryLeft {
			w := float64(size.Width)
			x0, x1 = w-x1, w-x0
		}
		return r2.RectFromPoints(r2.Point{X: x0, Y: y0}, r2.Point{X: x1, Y: y0 + cell})
	}

	items := make([]Item, 0, len(palette)+len(widths)+1)
	for i, s := range palette {
		items = append(items, Item{Kind: Color, Label: s.label, Region: place(0, i), Color: s.rgba})
	}
	for i, w := range widths {
		items = append(items, Item{Kind: Size, Label: sizeLabel(w), Region: place(1, i), Width: w})
	}
	items = append(items, Item{Kind: Action, Label: ActionClear, Region: place(1, len(widths)), Action: ActionClear})

	return items
}

func sizeLabel(w int) string {
	return strconv.Itoa(w) + "px"
}

// Hit returns the index of the first item containing p, or -1.
func Hit(items []Item, p r2.Point) int {
	for i := range items {
		if items[i].Region.ContainsPoint(p) {
			return i
		}
	}
	return -1
}
