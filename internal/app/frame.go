package app

import (
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/menu"
	"github.com/ayusman/mudra/internal/paint"
	"github.com/ayusman/mudra/internal/render"
)

// HandState is one hand as published to observers.
type HandState struct {
	Role      string             `json:"role"`
	Landmarks []gesture.Landmark `json:"landmarks"`
	Pinch     gesture.PinchState `json:"pinch"`
	Open      bool               `json:"open"`
}

// MenuItemState is one menu cell as published to observers.
type MenuItemState struct {
	Kind   string  `json:"kind"`
	Label  string  `json:"label"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// FrameState summarizes the coordinator after a frame or an imperative
// change.
type FrameState struct {
	Seq        uint64       `json:"seq"`
	Timestamp  int64        `json:"timestamp"`
	Size       gesture.Size `json:"size"`
	Hands      []HandState  `json:"hands"`
	Transition string       `json:"transition,omitempty"`
	Drawing    bool         `json:"drawing"`
	Strokes    int          `json:"strokes"`

	MenuVisible bool            `json:"menuVisible"`
	Menu        []MenuItemState `json:"menu,omitempty"`
	Hovered     int             `json:"hovered"`
	Selected    string          `json:"selected,omitempty"`

	Color         string `json:"color"`
	LineWidth     int    `json:"lineWidth"`
	Preference    string `json:"preference"`
	CameraVisible bool   `json:"cameraVisible"`
}

// frameResult carries what one applied frame produced, for the state.
type frameResult struct {
	at         time.Time
	hands      []HandState
	transition paint.Transition
	selection  *menu.Selection
}

// Apply runs one frame of detection results through the engines and
// redraws the hand and menu layers, all under one lock. It is skipped,
// returning false, while the canvas size is unknown.
func (a *App) Apply(raw []detector.HandLandmarks, at time.Time) (FrameState, bool) {
	a.mu.Lock()
	if !a.size.Known() || a.paint == nil {
		a.mu.Unlock()
		return FrameState{}, false
	}

	frame := gesture.Normalize(raw, a.size, a.pref)
	res := &frameResult{at: at}

	var pinch *gesture.PinchState
	if frame.Primary != nil {
		g := a.classifier.Classify(*frame.Primary)
		pinch = &g.Pinch
		res.hands = append(res.hands, handState(*frame.Primary, g))
	}
	var secondary *gesture.Gesture
	if frame.Secondary != nil {
		g := a.classifier.Classify(*frame.Secondary)
		secondary = &g
		res.hands = append(res.hands, handState(*frame.Secondary, g))
	}

	a.menu.Track(secondary, a.size, a.pref)
	res.transition = a.paint.Update(pinch, a.menu.Blocking())
	res.selection = a.menu.Resolve(pinch)

	a.hands.Clear()
	if frame.Primary != nil {
		render.DrawHand(a.hands, *frame.Primary, pinch)
	}
	if frame.Secondary != nil {
		render.DrawHand(a.hands, *frame.Secondary, nil)
	}
	a.overlay.Clear()
	a.menu.Draw(a.overlay)

	st := a.publishLocked(res)
	a.mu.Unlock()

	if res.transition != paint.None {
		a.logger.Debug("stroke transition", zap.Stringer("transition", res.transition))
	}
	a.notify(st)
	return st, true
}

func handState(h gesture.HandFrame, g gesture.Gesture) HandState {
	return HandState{
		Role:      h.Role.String(),
		Landmarks: append([]gesture.Landmark(nil), h.Landmarks[:]...),
		Pinch:     g.Pinch,
		Open:      g.Open,
	}
}

// publishLocked records and returns the current state. res is nil for
// changes that do not come from a frame.
func (a *App) publishLocked(res *frameResult) FrameState {
	a.seq++
	a.state = a.snapshotState(res)
	return a.state
}

func (a *App) snapshotState(res *frameResult) FrameState {
	st := FrameState{
		Seq:           a.seq,
		Timestamp:     time.Now().UnixMilli(),
		Size:          a.size,
		Hovered:       a.menu.HoveredIndex(),
		MenuVisible:   a.menu.Visible(),
		Color:         paint.FormatColor(a.style.Color()),
		LineWidth:     a.style.LineWidth(),
		Preference:    a.pref.String(),
		CameraVisible: a.cameraVisible,
	}
	if a.paint != nil {
		st.Drawing = a.paint.Drawing()
		st.Strokes = a.paint.Count()
	}
	for _, it := range a.menu.Items() {
		size := it.Region.Size()
		st.Menu = append(st.Menu, MenuItemState{
			Kind:   it.Kind.String(),
			Label:  it.Label,
			X:      it.Region.X.Lo,
			Y:      it.Region.Y.Lo,
			Width:  size.X,
			Height: size.Y,
		})
	}

	if res != nil {
		st.Timestamp = res.at.UnixMilli()
		st.Hands = res.hands
		if res.transition != paint.None {
			st.Transition = res.transition.String()
		}
		if res.selection != nil {
			st.Selected = res.selection.Item.Label
		}
	} else {
		st.Hands = a.state.Hands
	}
	return st
}
