// Package render provides the drawing layers that make up the canvas:
// paint, hand skeleton and menu overlays, each cleared and redrawn
// independently and composited in order.
package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/golang/geo/r2"
	"gocv.io/x/gocv"
)

// ErrInvalidSize is returned when a layer is created with a non-positive size.
var ErrInvalidSize = errors.New("layer size must be positive")

var maskOn = color.RGBA{R: 255, G: 255, B: 255, A: 255}

// Layer is a BGR image plus a coverage mask. Pixels outside the mask are
// transparent when the layer is composited.
type Layer struct {
	color  gocv.Mat
	mask   gocv.Mat
	width  int
	height int
}

// NewLayer allocates a transparent layer.
func NewLayer(width, height int) (*Layer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}

	l := &Layer{
		color:  gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC3),
		mask:   gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC1),
		width:  width,
		height: height,
	}
	if l.color.Empty() || l.mask.Empty() {
		l.Close()
		return nil, fmt.Errorf("allocate %dx%d layer", width, height)
	}

	l.Clear()
	return l, nil
}

// Size returns the layer dimensions.
func (l *Layer) Size() (width, height int) {
	return l.width, l.height
}

// Clear makes every pixel transparent.
func (l *Layer) Clear() {
	l.color.SetTo(gocv.NewScalar(0, 0, 0, 0))
	l.mask.SetTo(gocv.NewScalar(0, 0, 0, 0))
}

// Coverage returns the number of opaque pixels.
func (l *Layer) Coverage() int {
	return gocv.CountNonZero(l.mask)
}

// Line draws a segment with round ends.
func (l *Layer) Line(a, b image.Point, c color.RGBA, thickness int) {
	if thickness < 1 {
		thickness = 1
	}
	gocv.Line(&l.color, a, b, c, thickness)
	gocv.Line(&l.mask, a, b, maskOn, thickness)
}

// Dot draws a filled circle.
func (l *Layer) Dot(center image.Point, radius int, c color.RGBA) {
	if radius < 1 {
		radius = 1
	}
	gocv.Circle(&l.color, center, radius, c, -1)
	gocv.Circle(&l.mask, center, radius, maskOn, -1)
}

// Rect draws a rectangle outline, or a filled one when thickness is negative.
func (l *Layer) Rect(r image.Rectangle, c color.RGBA, thickness int) {
	gocv.Rectangle(&l.color, r, c, thickness)
	gocv.Rectangle(&l.mask, r, maskOn, thickness)
}

// Text draws a label with its baseline starting at org.
func (l *Layer) Text(s string, org image.Point, scale float64, c color.RGBA) {
	gocv.PutText(&l.color, s, org, gocv.FontHersheySimplex, scale, c, 1)
	gocv.PutText(&l.mask, s, org, gocv.FontHersheySimplex, scale, maskOn, 1)
}

// Over composites the layer onto dst, which must be a BGR Mat of the same size.
func (l *Layer) Over(dst *gocv.Mat) {
	if dst.Rows() != l.height || dst.Cols() != l.width {
		return
	}
	l.color.CopyToWithMask(dst, l.mask)
}

// Flatten returns a new BGR Mat with the layer drawn over a solid bg.
// The caller owns the returned Mat.
func (l *Layer) Flatten(bg color.RGBA) gocv.Mat {
	out := Solid(l.width, l.height, bg)
	l.Over(&out)
	return out
}

// Close releases the native buffers.
func (l *Layer) Close() {
	l.color.Close()
	l.mask.Close()
}

// Solid returns a new BGR Mat filled with c. The caller owns it.
func Solid(width, height int, c color.RGBA) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(Scalar(c), height, width, gocv.MatTypeCV8UC3)
}

// Compose draws layers over dst in order.
func Compose(dst *gocv.Mat, layers ...*Layer) {
	for _, l := range layers {
		if l != nil {
			l.Over(dst)
		}
	}
}

// Scalar converts c to a BGR(A) scalar.
func Scalar(c color.RGBA) gocv.Scalar {
	return gocv.NewScalar(float64(c.B), float64(c.G), float64(c.R), float64(c.A))
}

// Pt rounds a canvas point to the nearest pixel.
func Pt(p r2.Point) image.Point {
	return image.Pt(int(math.Round(p.X)), int(math.Round(p.Y)))
}

// EncodePNG encodes m as PNG.
func EncodePNG(m gocv.Mat) ([]byte, error) {
	return encode(gocv.PNGFileExt, m)
}

// EncodeJPEG encodes m as JPEG.
func EncodeJPEG(m gocv.Mat) ([]byte, error) {
	return encode(gocv.JPEGFileExt, m)
}

func encode(ext gocv.FileExt, m gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncode(ext, m)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", ext, err)
	}
	defer buf.Close()

	return append([]byte(nil), buf.GetBytes()...), nil
}
