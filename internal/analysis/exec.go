package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// ExecAnalyzer runs a local model command once per request.
//
// The command receives {"prompt": "...", "image": "<base64 PNG>"} on stdin
// and must print {"answer": "..."} or {"error": "..."} on stdout.
type ExecAnalyzer struct {
	command string
	args    []string
	timeout time.Duration
}

// NewExecAnalyzer returns an analyzer that runs command with args. A zero
// timeout leaves requests bounded only by their context.
func NewExecAnalyzer(command string, args []string, timeout time.Duration) *ExecAnalyzer {
	return &ExecAnalyzer{command: command, args: args, timeout: timeout}
}

type execRequest struct {
	Prompt string `json:"prompt"`
	Image  []byte `json:"image"`
}

// Init checks that the command can be found.
func (a *ExecAnalyzer) Init(ctx context.Context) error {
	if _, err := exec.LookPath(a.command); err != nil {
		return fmt.Errorf("analysis command: %w", err)
	}
	return nil
}

// Analyze runs the command with prompt and image.
func (a *ExecAnalyzer) Analyze(ctx context.Context, prompt string, image []byte) (string, error) {
	if len(image) == 0 {
		return "", ErrEmptyImage
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	reqJSON, err := json.Marshal(execRequest{Prompt: prompt, Image: image})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	cmd := exec.CommandContext(ctx, a.command, a.args...)
	cmd.Stdin = bytes.NewReader(reqJSON)
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "", fmt.Errorf("analysis command timed out: %w", ctx.Err())
	}
	if err != nil {
		if msg := stderr.String(); msg != "" {
			return "", fmt.Errorf("analysis command failed: %w, stderr: %s", err, msg)
		}
		return "", fmt.Errorf("analysis command failed: %w", err)
	}

	var out remoteResponse
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return "", fmt.Errorf("failed to parse analysis output: %w, stdout: %s", err, stdout.String())
	}
	if out.Error != "" {
		return "", fmt.Errorf("analysis command: %s", out.Error)
	}

	return CleanAnswer(out.Answer), nil
}
