package paint

import (
	"errors"
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"golang.org/x/image/colornames"
)

// ErrInvalidStyle is returned for colors that cannot be parsed and
// non-positive line widths.
var ErrInvalidStyle = errors.New("invalid style")

// Style defaults.
var (
	DefaultColor     = color.RGBA{R: 0xFF, G: 0x00, B: 0x00, A: 0xFF}
	DefaultLineWidth = 12
)

// MaxLineWidth bounds SetLineWidth.
const MaxLineWidth = 200

// Style is the session-wide drawing style. Strokes copy it when they open,
// so later changes never affect a stroke already in progress.
type Style struct {
	color     color.RGBA
	lineWidth int
}

// NewStyle returns the default style (red, 12px).
func NewStyle() *Style {
	return &Style{color: DefaultColor, lineWidth: DefaultLineWidth}
}

// Color returns the current color.
func (s *Style) Color() color.RGBA { return s.color }

// LineWidth returns the current line width in pixels.
func (s *Style) LineWidth() int { return s.lineWidth }

// SetColor sets the color. Alpha is forced opaque.
func (s *Style) SetColor(c color.RGBA) {
	c.A = 0xFF
	s.color = c
}

// SetColorString parses v with ParseColor and sets it. The style is left
// unchanged on error.
func (s *Style) SetColorString(v string) error {
	c, err := ParseColor(v)
	if err != nil {
		return err
	}
	s.SetColor(c)
	return nil
}

// SetLineWidth sets the line width. Values outside 1..MaxLineWidth are
// rejected and leave the style unchanged.
func (s *Style) SetLineWidth(w int) error {
	if w < 1 || w > MaxLineWidth {
		return fmt.Errorf("%w: line width %d", ErrInvalidStyle, w)
	}
	s.lineWidth = w
	return nil
}

// ParseColor accepts "#RRGGBB", "#RGB" or an SVG color name ("red",
// "rebeccapurple").
func ParseColor(v string) (color.RGBA, error) {
	v = strings.TrimSpace(v)
	if c, ok := colornames.Map[strings.ToLower(v)]; ok {
		return c, nil
	}

	hex, ok := strings.CutPrefix(v, "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if !ok || len(hex) != 6 {
		return color.RGBA{}, fmt.Errorf("%w: color %q", ErrInvalidStyle, v)
	}

	n, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("%w: color %q", ErrInvalidStyle, v)
	}
	return color.RGBA{R: uint8(n >> 16), G: uint8(n >> 8), B: uint8(n), A: 0xFF}, nil
}

// FormatColor renders c as "#RRGGBB".
func FormatColor(c color.RGBA) string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}
