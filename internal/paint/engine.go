// Package paint implements the drawing engine: the state machine that turns
// primary-hand pinches into strokes on a persistent paint layer.
package paint

import (
	"fmt"
	"image"
	"image/color"

	"go.uber.org/zap"

	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/render"
)

// Transition reports what one Update did.
type Transition int

const (
	// Stayed idle or no change.
	None Transition = iota
	// Opened a new stroke.
	Opened
	// Extended the open stroke.
	Extended
	// Closed the open stroke.
	Closed
)

func (t Transition) String() string {
	switch t {
	case Opened:
		return "opened"
	case Extended:
		return "extended"
	case Closed:
		return "closed"
	default:
		return "none"
	}
}

// Config configures an Engine.
type Config struct {
	Size gesture.Size
	// Style is shared with whoever changes colors and widths. Nil gets a
	// fresh default style.
	Style *Style
	// Background replaces transparency in snapshots. Zero means white.
	Background color.RGBA
	Logger     *zap.Logger
}

// Engine owns the committed strokes, the open stroke and the paint layer.
// It is not safe for concurrent use.
type Engine struct {
	style      *Style
	background color.RGBA
	size       gesture.Size
	surface    *render.Layer
	open       *Stroke
	committed  []Stroke
	logger     *zap.Logger
}

// NewEngine allocates the paint layer. Failing to allocate it is fatal.
func NewEngine(cfg Config) (*Engine, error) {
	surface, err := render.NewLayer(cfg.Size.Width, cfg.Size.Height)
	if err != nil {
		return nil, fmt.Errorf("create paint layer: %w", err)
	}

	style := cfg.Style
	if style == nil {
		style = NewStyle()
	}
	bg := cfg.Background
	if bg == (color.RGBA{}) {
		bg = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Engine{
		style:      style,
		background: bg,
		size:       cfg.Size,
		surface:    surface,
		logger:     logger,
	}, nil
}

// Style returns the style the engine reads when opening strokes.
func (e *Engine) Style() *Style { return e.style }

// Size returns the current surface size.
func (e *Engine) Size() gesture.Size { return e.size }

// Drawing reports whether a stroke is open.
func (e *Engine) Drawing() bool { return e.open != nil }

// Update advances the state machine by one frame. pinch is nil when the
// primary hand is absent; blocked is true while the menu owns the pinch.
func (e *Engine) Update(pinch *gesture.PinchState, blocked bool) Transition {
	active := pinch != nil && pinch.Active && !blocked

	switch {
	case active && e.open == nil:
		e.open = newStroke(e.style, pinch.Point)
		e.open.drawFirst(e.surface)
		e.logger.Debug("stroke opened",
			zap.String("stroke", e.open.ID),
			zap.Float64("x", pinch.Point.X),
			zap.Float64("y", pinch.Point.Y))
		return Opened

	case active:
		e.open.Points = append(e.open.Points, pinch.Point)
		e.open.drawLast(e.surface)
		return Extended

	case e.open != nil:
		e.commit()
		return Closed
	}

	return None
}

func (e *Engine) commit() {
	e.logger.Debug("stroke closed",
		zap.String("stroke", e.open.ID),
		zap.Int("points", len(e.open.Points)))
	e.committed = append(e.committed, *e.open)
	e.open = nil
}

// Clear discards all strokes, including the open one, and erases the layer.
func (e *Engine) Clear() {
	e.open = nil
	e.committed = nil
	e.surface.Clear()
	e.logger.Debug("canvas cleared")
}

// Committed returns copies of the finished strokes in drawing order.
func (e *Engine) Committed() []Stroke {
	out := make([]Stroke, len(e.committed))
	for i, s := range e.committed {
		out[i] = s.Clone()
	}
	return out
}

// Count returns the number of strokes, open one included.
func (e *Engine) Count() int {
	if e.open != nil {
		return len(e.committed) + 1
	}
	return len(e.committed)
}

// Open returns a copy of the open stroke, or nil.
func (e *Engine) Open() *Stroke {
	if e.open == nil {
		return nil
	}
	s := e.open.Clone()
	return &s
}

// Strokes returns committed strokes followed by the open one, if any.
func (e *Engine) Strokes() []Stroke {
	out := e.Committed()
	if e.open != nil {
		out = append(out, e.open.Clone())
	}
	return out
}

// LoadStrokes replaces the drawing with strokes, all committed.
func (e *Engine) LoadStrokes(strokes []Stroke) {
	e.open = nil
	e.committed = make([]Stroke, 0, len(strokes))
	for _, s := range strokes {
		if len(s.Points) == 0 {
			continue
		}
		e.committed = append(e.committed, s.Clone())
	}
	e.redraw()
}

// Resize moves the drawing onto a surface of the new size. Stroke points
// keep the coordinates they were drawn at; content outside the new bounds
// is clipped.
func (e *Engine) Resize(size gesture.Size) error {
	if size == e.size {
		return nil
	}
	surface, err := render.NewLayer(size.Width, size.Height)
	if err != nil {
		return fmt.Errorf("resize paint layer: %w", err)
	}

	e.surface.Close()
	e.surface = surface
	e.size = size
	e.redraw()
	return nil
}

func (e *Engine) redraw() {
	e.surface.Clear()
	for i := range e.committed {
		e.committed[i].draw(e.surface)
	}
	if e.open != nil {
		e.open.draw(e.surface)
	}
}

// Layer exposes the paint layer for compositing.
func (e *Engine) Layer() *render.Layer { return e.surface }

// Snapshot returns the drawing flattened over the background color.
func (e *Engine) Snapshot() (image.Image, error) {
	flat := e.surface.Flatten(e.background)
	defer flat.Close()

	img, err := flat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	return img, nil
}

// SnapshotPNG returns Snapshot encoded as PNG.
func (e *Engine) SnapshotPNG() ([]byte, error) {
	flat := e.surface.Flatten(e.background)
	defer flat.Close()

	return render.EncodePNG(flat)
}

// Close releases the paint layer.
func (e *Engine) Close() {
	e.surface.Close()
}
