package menu

import (
	"go.uber.org/zap"

	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/paint"
)

// Selection is reported when a pinch picks an item.
type Selection struct {
	Item Item
}

// Config configures an Engine.
type Config struct {
	// Style receives Color and Size selections. Required.
	Style *paint.Style
	// Actions maps action names to the operations they run.
	Actions map[string]func()
	Logger  *zap.Logger
}

// Engine tracks menu visibility, hover and selection. It is not safe for
// concurrent use.
type Engine struct {
	style   *paint.Style
	actions map[string]func()
	logger  *zap.Logger

	visible bool
	// latched is set by a selection and holds the menu hidden until the
	// secondary hand closes or leaves.
	latched bool
	items   []Item
	hovered int
}

// NewEngine creates a hidden menu.
func NewEngine(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	actions := make(map[string]func(), len(cfg.Actions))
	for k, v := range cfg.Actions {
		actions[k] = v
	}
	return &Engine{
		style:   cfg.Style,
		actions: actions,
		logger:  logger,
		hovered: -1,
	}
}

// Track updates visibility from the secondary hand. secondary is nil when
// that hand is absent. While visible the layout is regenerated for size
// and pref every call.
func (e *Engine) Track(secondary *gesture.Gesture, size gesture.Size, pref gesture.Preference) {
	if secondary == nil || !secondary.Open {
		if e.visible {
			e.logger.Debug("menu hidden")
		}
		e.hide()
		e.latched = false
		return
	}
	if e.latched {
		return
	}

	if !e.visible {
		e.logger.Debug("menu shown", zap.Stringer("primary", pref))
	}
	e.visible = true
	e.items = Layout(size, pref)
}

// Resolve updates hover from the primary pinch and fires the hovered item
// when the pinch is active. A selection hides the menu. pinch is nil when
// the primary hand is absent.
func (e *Engine) Resolve(pinch *gesture.PinchState) *Selection {
	if !e.visible || pinch == nil {
		e.hovered = -1
		return nil
	}

	e.hovered = Hit(e.items, pinch.Point)
	if e.hovered < 0 || !pinch.Active {
		return nil
	}

	item := e.items[e.hovered]
	e.apply(item)
	e.hide()
	e.latched = true

	e.logger.Info("menu selection",
		zap.Stringer("kind", item.Kind),
		zap.String("label", item.Label))
	return &Selection{Item: item}
}

func (e *Engine) apply(item Item) {
	switch item.Kind {
	case Color:
		if e.style != nil {
			e.style.SetColor(item.Color)
		}
	case Size:
		if e.style != nil {
			if err := e.style.SetLineWidth(item.Width); err != nil {
				e.logger.Warn("menu size rejected", zap.Error(err))
			}
		}
	case Action:
		if fn, ok := e.actions[item.Action]; ok && fn != nil {
			fn()
		} else {
			e.logger.Warn("menu action not bound", zap.String("action", item.Action))
		}
	}
}

func (e *Engine) hide() {
	e.visible = false
	e.items = nil
	e.hovered = -1
}

// Visible reports whether the menu is shown.
func (e *Engine) Visible() bool { return e.visible }

// Blocking reports whether the primary pinch belongs to the menu: while it
// is shown, and after a selection until the secondary hand closes. In the
// second case the menu is hidden but the pinch is still withheld from the
// Drawing Engine, so the pinch that made the selection never starts a
// stroke. Pass Blocking, not Visible, to paint.Engine.Update.
func (e *Engine) Blocking() bool { return e.visible || e.latched }

// Items returns a copy of the current layout. It is empty while hidden.
func (e *Engine) Items() []Item {
	return append([]Item(nil), e.items...)
}

// Hovered returns the hovered item, or nil.
func (e *Engine) Hovered() *Item {
	if e.hovered < 0 || e.hovered >= len(e.items) {
		return nil
	}
	item := e.items[e.hovered]
	return &item
}

// HoveredIndex returns the index of the hovered item in Items, or -1.
func (e *Engine) HoveredIndex() int { return e.hovered }

// Reset hides the menu and drops the selection latch.
func (e *Engine) Reset() {
	e.hide()
	e.latched = false
}
