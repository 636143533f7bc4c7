// Package tray provides the system tray menu for mudra.
package tray

import (
	"strconv"
	"sync"

	"github.com/getlantern/systray"
)

// Tray is the system tray menu: hand preference, camera visibility, clear,
// open in browser and quit.
type Tray struct {
	mu sync.RWMutex

	leftHand      bool
	cameraVisible bool

	onHand   func(left bool)
	onCamera func(visible bool)
	onClear  func()
	onOpen   func()
	onQuit   func()

	// Menu items stored for later updates
	menuHand   *systray.MenuItem
	menuCamera *systray.MenuItem
	menuStatus *systray.MenuItem
}

// New creates a Tray showing the given initial state.
func New(leftHand, cameraVisible bool) *Tray {
	return &Tray{
		leftHand:      leftHand,
		cameraVisible: cameraVisible,
	}
}

// OnHand sets the callback for the hand toggle. left reports the new state.
func (t *Tray) OnHand(fn func(left bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onHand = fn
}

// OnCamera sets the callback for the camera toggle.
func (t *Tray) OnCamera(fn func(visible bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onCamera = fn
}

// OnClear sets the callback for the clear item.
func (t *Tray) OnClear(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onClear = fn
}

// OnOpen sets the callback for the open-in-browser item.
func (t *Tray) OnOpen(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpen = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the tray from outside the menu.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("Mudra")
	systray.SetTooltip("Mudra air drawing")

	t.mu.Lock()
	t.menuHand = systray.AddMenuItem(handTitle(t.leftHand), "Switch the drawing hand")
	t.menuCamera = systray.AddMenuItem(cameraTitle(t.cameraVisible), "Show or hide the camera image")
	systray.AddSeparator()

	menuClear := systray.AddMenuItem("Clear Canvas", "Erase the drawing")
	menuOpen := systray.AddMenuItem("Open in Browser...", "Open the canvas in a browser")
	systray.AddSeparator()

	t.menuStatus = systray.AddMenuItem("Strokes: 0", "Strokes on the canvas")
	t.menuStatus.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Mudra")

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-t.menuHand.ClickedCh:
				t.handleHand()
			case <-t.menuCamera.ClickedCh:
				t.handleCamera()
			case <-menuClear.ClickedCh:
				t.handleClear()
			case <-menuOpen.ClickedCh:
				t.handleOpen()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

// onExit is called when the system tray is about to exit.
func (t *Tray) onExit() {}

func handTitle(left bool) string {
	if left {
		return "Hand: Left"
	}
	return "Hand: Right"
}

func cameraTitle(visible bool) string {
	if visible {
		return "● Camera Visible"
	}
	return "○ Camera Hidden"
}

// handleHand flips the drawing hand.
func (t *Tray) handleHand() {
	t.mu.Lock()
	t.leftHand = !t.leftHand
	left := t.leftHand
	if t.menuHand != nil {
		t.menuHand.SetTitle(handTitle(left))
	}
	callback := t.onHand
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(left)
	}
}

// handleCamera flips camera visibility.
func (t *Tray) handleCamera() {
	t.mu.Lock()
	t.cameraVisible = !t.cameraVisible
	visible := t.cameraVisible
	if t.menuCamera != nil {
		t.menuCamera.SetTitle(cameraTitle(visible))
	}
	callback := t.onCamera
	t.mu.Unlock()

	if callback != nil {
		callback(visible)
	}
}

func (t *Tray) handleClear() {
	t.mu.RLock()
	callback := t.onClear
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) handleOpen() {
	t.mu.RLock()
	callback := t.onOpen
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// SetStrokes updates the stroke count shown in the menu.
func (t *Tray) SetStrokes(n int) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.menuStatus != nil {
		t.menuStatus.SetTitle("Strokes: " + strconv.Itoa(n))
	}
}

// LeftHand reports whether the left hand draws.
func (t *Tray) LeftHand() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.leftHand
}

// CameraVisible reports the camera toggle state.
func (t *Tray) CameraVisible() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cameraVisible
}
