package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/image/colornames"

	"github.com/ayusman/mudra/internal/analysis"
	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/logging"
	"github.com/ayusman/mudra/internal/paint"
	"github.com/ayusman/mudra/internal/server"
	"github.com/ayusman/mudra/internal/store"
	"github.com/ayusman/mudra/internal/tray"
)

func main() {
	configPath := flag.String("config", "mudra.yaml", "path to the YAML config file")
	flag.Parse()

	cfg := config.New(*configPath)

	logger, err := logging.New(cfg.Log.Mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting mudra", zap.String("config", *configPath))

	// Initialize the store
	dbPath, err := storePath(cfg.Store.Path)
	if err != nil {
		logger.Fatal("failed to resolve store path", zap.Error(err))
	}
	st, err := store.New(dbPath)
	if err != nil {
		logger.Fatal("failed to initialize store", zap.String("path", dbPath), zap.Error(err))
	}
	defer st.Close()
	restoreSettings(cfg, st, logger)

	pref, err := gesture.ParsePreference(cfg.Gesture.Hand)
	if err != nil {
		logger.Warn("unknown hand preference, drawing with the right hand", zap.Error(err))
	}
	background, err := paint.ParseColor(cfg.Drawing.Background)
	if err != nil {
		logger.Warn("invalid background color, using white", zap.Error(err))
		background = colornames.White
	}

	cam := capture.NewCamera(capture.Config{
		DeviceID: cfg.Camera.DeviceID,
		Width:    cfg.Camera.Width,
		Height:   cfg.Camera.Height,
		FPS:      cfg.Camera.ActiveFPS,
	})

	var det detector.Detector
	mp, err := detector.NewMediaPipeDetector(detector.DefaultConfig(), logger.Named("detector"))
	if err != nil {
		logger.Warn("mediapipe unavailable, no hands will be detected", zap.Error(err))
		det = detector.NewMockDetector()
	} else {
		det = mp
	}

	a, err := app.New(app.Config{
		Camera:        cam,
		Detector:      det,
		Size:          gesture.Size{Width: cfg.Camera.Width, Height: cfg.Camera.Height},
		Preference:    pref,
		CameraVisible: cfg.Camera.Visible,
		Classifier: gesture.Classifier{
			PinchThreshold: cfg.Gesture.PinchThreshold,
			OpenRatio:      cfg.Gesture.OpenRatio,
			MinExtended:    cfg.Gesture.MinExtended,
		},
		Color:           cfg.Drawing.Color,
		LineWidth:       cfg.Drawing.LineWidth,
		Background:      background,
		ActiveFPS:       cfg.Camera.ActiveFPS,
		IdleFPS:         cfg.Camera.IdleFPS,
		IdleTimeout:     cfg.Camera.IdleTimeout,
		MotionThreshold: cfg.Camera.MotionThreshold,
		Logger:          logger.Named("app"),
	})
	if err != nil {
		st.Close()
		logger.Fatal("failed to create app", zap.Error(err))
	}
	// Close also releases the detector.
	defer a.Close()

	session, closeAnalysis := newAnalysis(cfg, st, logger)
	defer closeAnalysis()

	srv := server.New(server.Config{
		StaticDir: findWebDir(cfg.Server.StaticDir),
		App:       a,
		Store:     st,
		Analysis:  session,
		Logger:    logger.Named("server"),
	})
	defer srv.Close()

	startFrameLoop(a, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpServer := &http.Server{Addr: cfg.Server.Addr, Handler: srv}
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.Server.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			// Stop through ctx so the deferred closes still run.
			logger.Error("server failed", zap.Error(err))
			stop()
		}
	}()

	if cfg.Tray.Enabled {
		t := newTray(a, cfg, logger, stop)
		go func() {
			<-ctx.Done()
			t.Quit()
		}()
		// systray needs the main goroutine.
		t.Run()
	} else {
		<-ctx.Done()
	}

	logger.Info("shutting down")
	a.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
}

// startFrameLoop starts the camera loop. Without a camera the API still
// serves snapshots, drawings and analysis, so a failure is only logged.
func startFrameLoop(a *app.App, logger *zap.Logger) bool {
	if err := a.Start(); err != nil {
		logger.Warn("frame loop not started, serving without a camera", zap.Error(err))
		return false
	}
	return true
}

// storePath resolves the SQLite path, defaulting to ~/.mudra/mudra.db.
func storePath(configured string) (string, error) {
	if configured != "" {
		if err := os.MkdirAll(filepath.Dir(configured), 0755); err != nil {
			return "", fmt.Errorf("create data directory: %w", err)
		}
		return configured, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}

	dbDir := filepath.Join(homeDir, ".mudra")
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return "", fmt.Errorf("create data directory: %w", err)
	}
	return filepath.Join(dbDir, "mudra.db"), nil
}

// restoreSettings applies settings saved by a previous run over cfg.
func restoreSettings(cfg *config.Config, st *store.Store, logger *zap.Logger) {
	saved, err := st.Settings().All()
	if err != nil {
		logger.Warn("failed to read saved settings", zap.Error(err))
		return
	}

	if v, ok := saved[store.SettingHand]; ok {
		cfg.Gesture.Hand = v
	}
	if v, ok := saved[store.SettingCameraVisible]; ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Camera.Visible = b
		}
	}
	if v, ok := saved[store.SettingColor]; ok {
		if _, err := paint.ParseColor(v); err == nil {
			cfg.Drawing.Color = v
		}
	}
	if v, ok := saved[store.SettingLineWidth]; ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Drawing.LineWidth = n
		}
	}
}

// newAnalysis builds the analysis session, or returns nil when analysis is
// disabled. The returned func releases the session and cache.
func newAnalysis(cfg *config.Config, st *store.Store, logger *zap.Logger) (*analysis.Session, func()) {
	if !cfg.Analysis.Enabled {
		return nil, func() {}
	}

	var analyzer analysis.Analyzer
	if cfg.Analysis.Command != "" {
		analyzer = analysis.NewExecAnalyzer(cfg.Analysis.Command, cfg.Analysis.Args, cfg.Analysis.Timeout)
	} else {
		analyzer = analysis.NewRemoteAnalyzer(cfg.Analysis.Endpoint, cfg.Analysis.Timeout)
	}

	var cache analysis.Cache
	var redisCache *analysis.RedisCache
	if cfg.Redis.Enabled {
		redisCache = analysis.NewRedisCache(&cfg.Redis)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := redisCache.Ping(ctx)
		cancel()
		if err != nil {
			logger.Warn("redis connection failed, cache disabled", zap.Error(err))
		} else {
			logger.Info("redis connected successfully")
			cache = redisCache
		}
	}

	session, err := analysis.NewSession(analysis.Config{
		Analyzer:      analyzer,
		Cache:         cache,
		Recorder:      st.Analyses(),
		DefaultPrompt: cfg.Analysis.DefaultPrompt,
		Timeout:       cfg.Analysis.Timeout,
		Logger:        logger.Named("analysis"),
	})
	if err != nil {
		logger.Warn("analysis disabled", zap.Error(err))
		if redisCache != nil {
			redisCache.Close()
		}
		return nil, func() {}
	}

	go func() {
		ev, err := session.Send(context.Background(), analysis.Init{})
		if err != nil {
			return
		}
		if f, ok := ev.(analysis.Failed); ok {
			logger.Warn("analysis model not ready", zap.Error(f.Err))
		}
	}()

	return session, func() {
		session.Close()
		if redisCache != nil {
			redisCache.Close()
		}
	}
}

func newTray(a *app.App, cfg *config.Config, logger *zap.Logger, quit func()) *tray.Tray {
	t := tray.New(a.Preference() == gesture.PrimaryLeft, a.CameraVisible())

	t.OnHand(func(left bool) {
		if left {
			a.SetPreference(gesture.PrimaryLeft)
		} else {
			a.SetPreference(gesture.PrimaryRight)
		}
	})
	t.OnCamera(a.SetCameraVisible)
	t.OnClear(a.Clear)
	t.OnOpen(func() {
		if err := openBrowser(browserURL(cfg.Server.Addr)); err != nil {
			logger.Warn("failed to open browser", zap.Error(err))
		}
	})
	t.OnQuit(quit)

	a.OnFrame(func(st app.FrameState) {
		t.SetStrokes(st.Strokes)
	})
	return t
}

func browserURL(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "http://localhost" + addr
	}
	return "http://" + addr
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}

// findWebDir returns configured when set, otherwise the first existing
// directory among "web", "../web", "../../web" and ~/.mudra/web.
func findWebDir(configured string) string {
	if configured != "" {
		return configured
	}

	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	homeWebDir := filepath.Join(homeDir, ".mudra", "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}

	return ""
}
