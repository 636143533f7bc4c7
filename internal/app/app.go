// Package app coordinates the per-frame loop of the mudra air-drawing
// system: camera, hand detection, gesture classification, the drawing and
// menu engines, and the rendered layers.
package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"
	"time"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/menu"
	"github.com/ayusman/mudra/internal/paint"
	"github.com/ayusman/mudra/internal/render"
)

// Loop timing defaults.
const (
	ActiveFPS   = 30
	IdleFPS     = 5
	IdleTimeout = 2 * time.Second
)

var (
	// ErrNoCanvas is returned by outputs requested before the canvas size
	// is known.
	ErrNoCanvas = errors.New("canvas size unknown")
	// ErrNoCamera is returned by Start and Tick without a camera.
	ErrNoCamera = errors.New("no camera configured")
)

var white = color.RGBA{R: 255, G: 255, B: 255, A: 255}

// Config holds configuration options for the application.
type Config struct {
	Camera   capture.Camera
	Detector detector.Detector

	// Size is the initial canvas size. It may be zero until SetCanvasSize.
	Size          gesture.Size
	Preference    gesture.Preference
	CameraVisible bool
	Classifier    gesture.Classifier

	Color      string
	LineWidth  int
	Background color.RGBA

	ActiveFPS   int
	IdleFPS     int
	IdleTimeout time.Duration
	// MotionThreshold gates detection while idle: frames with less than
	// this percentage of changed pixels are not sent to the detector.
	// Zero disables the gate.
	MotionThreshold float64

	Logger *zap.Logger
}

// App is the frame loop coordinator.
type App struct {
	config   Config
	logger   *zap.Logger
	camera   capture.Camera
	detector detector.Detector
	motion   *capture.MotionGate

	mu            sync.Mutex
	size          gesture.Size
	pref          gesture.Preference
	cameraVisible bool
	classifier    gesture.Classifier
	style         *paint.Style
	paint         *paint.Engine
	menu          *menu.Engine
	hands         *render.Layer
	overlay       *render.Layer
	frame         gocv.Mat
	hasFrame      bool
	state         FrameState
	seq           uint64
	observers     []func(FrameState)

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates an App. Layers are allocated when the canvas size is known.
func New(config Config) (*App, error) {
	if config.ActiveFPS <= 0 {
		config.ActiveFPS = ActiveFPS
	}
	if config.IdleFPS <= 0 {
		config.IdleFPS = IdleFPS
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = IdleTimeout
	}
	if config.Background == (color.RGBA{}) {
		config.Background = white
	}
	if config.Classifier == (gesture.Classifier{}) {
		config.Classifier = gesture.NewClassifier()
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	style := paint.NewStyle()
	if config.Color != "" {
		if err := style.SetColorString(config.Color); err != nil {
			return nil, err
		}
	}
	if config.LineWidth != 0 {
		if err := style.SetLineWidth(config.LineWidth); err != nil {
			return nil, err
		}
	}

	a := &App{
		config:        config,
		logger:        logger,
		camera:        config.Camera,
		detector:      config.Detector,
		motion:        capture.NewMotionGate(config.MotionThreshold),
		pref:          config.Preference,
		cameraVisible: config.CameraVisible,
		classifier:    config.Classifier,
		style:         style,
		frame:         gocv.NewMat(),
	}
	a.menu = menu.NewEngine(menu.Config{
		Style:   style,
		Actions: map[string]func(){menu.ActionClear: a.clearLocked},
		Logger:  logger.Named("menu"),
	})

	if config.Size.Known() {
		if err := a.allocate(config.Size); err != nil {
			a.frame.Close()
			a.motion.Close()
			return nil, err
		}
	}
	a.state = a.snapshotState(nil)

	return a, nil
}

// allocate creates or resizes the engines and layers for size. Callers hold
// a.mu or own a exclusively.
func (a *App) allocate(size gesture.Size) error {
	hands, err := render.NewLayer(size.Width, size.Height)
	if err != nil {
		return fmt.Errorf("create hand layer: %w", err)
	}
	overlay, err := render.NewLayer(size.Width, size.Height)
	if err != nil {
		hands.Close()
		return fmt.Errorf("create menu layer: %w", err)
	}

	if a.paint == nil {
		a.paint, err = paint.NewEngine(paint.Config{
			Size:       size,
			Style:      a.style,
			Background: a.config.Background,
			Logger:     a.logger.Named("paint"),
		})
	} else {
		err = a.paint.Resize(size)
	}
	if err != nil {
		hands.Close()
		overlay.Close()
		return err
	}

	if a.hands != nil {
		a.hands.Close()
	}
	if a.overlay != nil {
		a.overlay.Close()
	}
	a.hands = hands
	a.overlay = overlay
	a.size = size
	a.hasFrame = false
	return nil
}

// Start opens the camera and begins the frame loop. Starting a running App
// does nothing.
func (a *App) Start() error {
	a.runMu.Lock()
	defer a.runMu.Unlock()

	if a.cancel != nil {
		return nil
	}
	if a.camera == nil {
		return ErrNoCamera
	}
	if err := a.camera.Open(); err != nil {
		return err
	}
	a.camera.SetFPS(a.config.ActiveFPS)

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.done = make(chan struct{})
	go a.run(ctx, a.done)

	a.logger.Info("frame loop started",
		zap.Int("active_fps", a.config.ActiveFPS),
		zap.Int("idle_fps", a.config.IdleFPS))
	return nil
}

// Stop halts the frame loop and closes the camera. It waits for the
// current iteration to finish and can be called any number of times. An
// open stroke stays open.
func (a *App) Stop() {
	a.runMu.Lock()
	defer a.runMu.Unlock()

	if a.cancel == nil {
		return
	}
	a.cancel()
	<-a.done
	a.cancel = nil
	a.done = nil

	if err := a.camera.Close(); err != nil {
		a.logger.Warn("close camera", zap.Error(err))
	}
	a.logger.Info("frame loop stopped")
}

// Running reports whether the frame loop is active.
func (a *App) Running() bool {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	return a.cancel != nil
}

// Close stops the loop and releases the detector and all native buffers.
func (a *App) Close() error {
	a.Stop()

	var err error
	if a.detector != nil {
		err = a.detector.Close()
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.paint != nil {
		a.paint.Close()
	}
	if a.hands != nil {
		a.hands.Close()
	}
	if a.overlay != nil {
		a.overlay.Close()
	}
	a.frame.Close()
	a.motion.Close()
	return err
}

// OnFrame registers fn to receive the state after every applied frame and
// after every imperative change. fn runs outside the App lock.
func (a *App) OnFrame(fn func(FrameState)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.observers = append(a.observers, fn)
}

// SetCanvasSize changes the canvas size. Existing strokes keep their pixel
// coordinates. A zero size pauses frame processing.
func (a *App) SetCanvasSize(size gesture.Size) error {
	a.mu.Lock()
	if !size.Known() {
		a.size = gesture.Size{}
		a.mu.Unlock()
		return nil
	}
	if size == a.size {
		a.mu.Unlock()
		return nil
	}
	err := a.allocate(size)
	if err == nil {
		a.menu.Reset()
	}
	st := a.publishLocked(nil)
	a.mu.Unlock()

	a.notify(st)
	if err == nil {
		a.logger.Info("canvas resized", zap.Int("width", size.Width), zap.Int("height", size.Height))
	}
	return err
}

// Size returns the canvas size, zero while unknown.
func (a *App) Size() gesture.Size {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.size
}

// SetPreference selects which physical hand draws.
func (a *App) SetPreference(p gesture.Preference) {
	a.mu.Lock()
	a.pref = p
	st := a.publishLocked(nil)
	a.mu.Unlock()
	a.notify(st)
	a.logger.Info("hand preference changed", zap.Stringer("primary", p))
}

// Preference returns the current hand preference.
func (a *App) Preference() gesture.Preference {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pref
}

// SetCameraVisible shows or hides the camera image behind the drawing.
func (a *App) SetCameraVisible(v bool) {
	a.mu.Lock()
	a.cameraVisible = v
	st := a.publishLocked(nil)
	a.mu.Unlock()
	a.notify(st)
}

// CameraVisible reports whether the camera image is composited.
func (a *App) CameraVisible() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cameraVisible
}

// Clear erases the drawing.
func (a *App) Clear() {
	a.mu.Lock()
	a.clearLocked()
	st := a.publishLocked(nil)
	a.mu.Unlock()
	a.notify(st)
}

func (a *App) clearLocked() {
	if a.paint != nil {
		a.paint.Clear()
	}
}

// SetColor sets the color for strokes opened from now on.
func (a *App) SetColor(v string) error {
	a.mu.Lock()
	err := a.style.SetColorString(v)
	st := a.publishLocked(nil)
	a.mu.Unlock()
	if err == nil {
		a.notify(st)
	}
	return err
}

// SetLineWidth sets the width for strokes opened from now on.
func (a *App) SetLineWidth(w int) error {
	a.mu.Lock()
	err := a.style.SetLineWidth(w)
	st := a.publishLocked(nil)
	a.mu.Unlock()
	if err == nil {
		a.notify(st)
	}
	return err
}

// Strokes returns every stroke on the canvas, the open one last.
func (a *App) Strokes() []paint.Stroke {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.paint == nil {
		return nil
	}
	return a.paint.Strokes()
}

// LoadStrokes replaces the drawing.
func (a *App) LoadStrokes(strokes []paint.Stroke) error {
	a.mu.Lock()
	if a.paint == nil {
		a.mu.Unlock()
		return ErrNoCanvas
	}
	a.paint.LoadStrokes(strokes)
	st := a.publishLocked(nil)
	a.mu.Unlock()
	a.notify(st)
	return nil
}

// Snapshot returns the drawing over the background color.
func (a *App) Snapshot() (image.Image, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.paint == nil {
		return nil, ErrNoCanvas
	}
	return a.paint.Snapshot()
}

// SnapshotPNG returns Snapshot encoded as PNG.
func (a *App) SnapshotPNG() ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.paint == nil {
		return nil, ErrNoCanvas
	}
	return a.paint.SnapshotPNG()
}

// Composite returns the full view as JPEG: the mirrored camera image (or
// white when hidden), then the drawing, hand skeletons and menu.
func (a *App) Composite() ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.paint == nil {
		return nil, ErrNoCanvas
	}

	var base gocv.Mat
	if a.cameraVisible && a.hasFrame {
		base = a.frame.Clone()
	} else {
		base = render.Solid(a.size.Width, a.size.Height, white)
	}
	defer base.Close()

	render.Compose(&base, a.paint.Layer(), a.hands, a.overlay)
	return render.EncodeJPEG(base)
}

// State returns the state published for the last frame or change.
func (a *App) State() FrameState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *App) notify(st FrameState) {
	a.mu.Lock()
	observers := append([]func(FrameState)(nil), a.observers...)
	a.mu.Unlock()

	for _, fn := range observers {
		fn(st)
	}
}
