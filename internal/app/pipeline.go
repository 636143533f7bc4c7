package app

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/gesture"
)

// run is the frame loop. It starts in active mode at ActiveFPS and drops
// to IdleFPS after IdleTimeout without hands, strokes or menu. A tick that
// fires during a long iteration is dropped, so iterations never overlap.
func (a *App) run(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	active := true
	lastBusy := time.Now()

	ticker := time.NewTicker(interval(a.config.ActiveFPS))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		busy, err := a.step(ctx, active)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			a.logger.Debug("frame skipped", zap.Error(err))
			continue
		}

		now := time.Now()
		if busy {
			lastBusy = now
		}

		switch {
		case busy && !active:
			active = true
			a.camera.SetFPS(a.config.ActiveFPS)
			ticker.Reset(interval(a.config.ActiveFPS))
			a.motion.Reset()
			a.logger.Debug("switched to active mode")
		case !busy && active && now.Sub(lastBusy) > a.config.IdleTimeout:
			active = false
			a.camera.SetFPS(a.config.IdleFPS)
			ticker.Reset(interval(a.config.IdleFPS))
			a.logger.Debug("switched to idle mode")
		}
	}
}

func interval(fps int) time.Duration {
	if fps <= 0 {
		fps = 1
	}
	return time.Second / time.Duration(fps)
}

// Tick runs one iteration of the loop in active mode: read a frame,
// detect hands and apply the result. Nothing is applied when ctx is
// cancelled during detection.
func (a *App) Tick(ctx context.Context) error {
	_, err := a.step(ctx, true)
	return err
}

// step runs one iteration and reports whether the frame kept the loop busy.
func (a *App) step(ctx context.Context, active bool) (bool, error) {
	if a.camera == nil {
		return false, ErrNoCamera
	}
	size := a.Size()
	if !size.Known() {
		return false, nil
	}

	frame, err := a.camera.ReadFrame()
	if err != nil {
		return false, err
	}
	defer frame.Close()
	at := time.Now()

	mirrored := capture.Mirror(*frame, size.Width, size.Height)
	a.storeFrame(mirrored, size)

	if !active && !a.motion.Open(*frame) {
		return false, nil
	}

	hands, err := a.detect(ctx, frame)
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		// Treated as a frame without hands.
		a.logger.Debug("hand detection failed", zap.Error(err))
		hands = nil
	}

	st, ok := a.Apply(hands, at)
	if !ok {
		return false, nil
	}
	return len(st.Hands) > 0 || st.Drawing || st.MenuVisible, nil
}

func (a *App) detect(ctx context.Context, frame *gocv.Mat) ([]detector.HandLandmarks, error) {
	if a.detector == nil {
		return nil, errors.New("no detector configured")
	}
	return a.detector.Detect(ctx, frame)
}

// storeFrame keeps the mirrored camera image for Composite. It takes
// ownership of m.
func (a *App) storeFrame(m gocv.Mat, size gesture.Size) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if size != a.size {
		m.Close()
		return
	}
	a.frame.Close()
	a.frame = m
	a.hasFrame = true
}
