package detector

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"gocv.io/x/gocv"
	"go.uber.org/zap"
)

// ErrServiceNotFound is returned when the MediaPipe helper script is missing.
var ErrServiceNotFound = errors.New("hand_service.py not found")

// idleShutdown is how long the helper process may sit unused before it is stopped.
const idleShutdown = 30 * time.Second

// MediaPipeDetector implements Detector using a Python MediaPipe subprocess.
//
// Protocol: each request is a 4-byte big-endian length followed by a JPEG
// frame on stdin; each response is one JSON line on stdout of the form
// {"hands":[{"points":[{"x":..,"y":..,"z":..}, ...],"handedness":"Left","score":0.9}]}.
type MediaPipeDetector struct {
	config     Config
	scriptPath string
	logger     *zap.Logger

	mu        sync.Mutex
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	idleTimer *time.Timer
	// idleGen identifies the armed idle timer; lastUsed is the end of the
	// last exchange. A timer callback that lost the race against Detect
	// sees a newer generation and leaves the helper running.
	idleGen  uint64
	lastUsed time.Time
}

// NewMediaPipeDetector locates the helper script. The Python process is
// started lazily on first detection.
func NewMediaPipeDetector(config Config, logger *zap.Logger) (*MediaPipeDetector, error) {
	scriptPath := findFirst(serviceCandidates())
	if scriptPath == "" {
		return nil, ErrServiceNotFound
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &MediaPipeDetector{
		config:     config,
		scriptPath: scriptPath,
		logger:     logger,
	}, nil
}

// Detect sends one frame to the helper and returns the hands it reports.
// The round trip itself is not interruptible; ctx is checked before the
// request is written and after the response is read.
func (d *MediaPipeDetector) Detect(ctx context.Context, frame *gocv.Mat) ([]HandLandmarks, error) {
	if frame == nil || frame.Empty() {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ensureStarted(); err != nil {
		return nil, err
	}

	line, err := d.exchange(buf.GetBytes())
	if err != nil {
		// A broken pipe leaves the helper unusable; restart on next call.
		d.shutdown()
		return nil, err
	}
	d.resetIdleTimer()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var response struct {
		Hands []jsonHand `json:"hands"`
	}
	if err := json.Unmarshal(line, &response); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	hands := make([]HandLandmarks, 0, len(response.Hands))
	for _, h := range response.Hands {
		hands = append(hands, h.toHandLandmarks())
	}
	return hands, nil
}

// Close shuts down the Python process.
func (d *MediaPipeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shutdown()
}

func (d *MediaPipeDetector) exchange(data []byte) ([]byte, error) {
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(data)))

	if _, err := d.stdin.Write(length[:]); err != nil {
		return nil, fmt.Errorf("write length: %w", err)
	}
	if _, err := d.stdin.Write(data); err != nil {
		return nil, fmt.Errorf("write data: %w", err)
	}

	line, err := d.stdout.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return line, nil
}

func (d *MediaPipeDetector) ensureStarted() error {
	if d.cmd != nil {
		return nil
	}

	pythonPath := findFirst(venvCandidates())
	if pythonPath == "" {
		pythonPath = "python3"
	}

	cmd := exec.Command(pythonPath, d.scriptPath,
		"--max-hands", strconv.Itoa(d.config.MaxHands),
		"--min-detection-confidence", strconv.FormatFloat(d.config.MinConfidence, 'f', 2, 64),
		"--min-tracking-confidence", strconv.FormatFloat(d.config.MinTrackingConf, 'f', 2, 64),
	)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start mediapipe service: %w", err)
	}

	d.cmd = cmd
	d.stdin = stdin
	d.stdout = bufio.NewReader(stdout)
	d.logger.Info("mediapipe service started", zap.String("script", d.scriptPath), zap.Int("pid", cmd.Process.Pid))
	return nil
}

func (d *MediaPipeDetector) shutdown() error {
	if d.cmd == nil {
		return nil
	}

	if d.idleTimer != nil {
		d.idleTimer.Stop()
		d.idleTimer = nil
	}
	d.stdin.Close()

	err := d.cmd.Wait()
	d.cmd = nil
	d.stdin = nil
	d.stdout = nil
	d.logger.Info("mediapipe service stopped")

	return err
}

func (d *MediaPipeDetector) resetIdleTimer() {
	if d.idleTimer != nil {
		d.idleTimer.Stop()
	}
	d.idleGen++
	d.lastUsed = time.Now()
	gen := d.idleGen
	d.idleTimer = time.AfterFunc(idleShutdown, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.idleDue(gen, time.Now()) {
			d.shutdown()
		}
	})
}

// idleDue reports whether the timer armed as gen may stop the helper at
// now. Callers hold d.mu.
func (d *MediaPipeDetector) idleDue(gen uint64, now time.Time) bool {
	return gen == d.idleGen && now.Sub(d.lastUsed) >= idleShutdown
}

func serviceCandidates() []string {
	var execDir string
	if execPath, err := os.Executable(); err == nil {
		execDir = filepath.Dir(execPath)
	}
	home, _ := os.UserHomeDir()

	return []string{
		"scripts/hand_service.py",
		"../scripts/hand_service.py",
		filepath.Join(execDir, "scripts/hand_service.py"),
		filepath.Join(home, ".mudra/scripts/hand_service.py"),
	}
}

func venvCandidates() []string {
	var execDir string
	if execPath, err := os.Executable(); err == nil {
		execDir = filepath.Dir(execPath)
	}
	home, _ := os.UserHomeDir()

	return []string{
		"venv/bin/python",
		"../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(home, ".mudra/venv/bin/python"),
	}
}

// findFirst returns the absolute form of the first existing path.
func findFirst(candidates []string) string {
	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if abs, err := filepath.Abs(path); err == nil {
			return abs
		}
		return path
	}
	return ""
}

// jsonHand represents the JSON structure from the Python service.
type jsonHand struct {
	Points     []Point3D `json:"points"`
	Handedness string    `json:"handedness"`
	Score      float64   `json:"score"`
}

func (h jsonHand) toHandLandmarks() HandLandmarks {
	lm := HandLandmarks{
		Handedness: h.Handedness,
		Score:      h.Score,
		Complete:   len(h.Points) == NumLandmarks,
	}
	copy(lm.Points[:], h.Points)
	return lm
}
