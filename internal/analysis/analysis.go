// Package analysis asks a vision-language model about the current drawing.
//
// A Session serializes Init, Analyze and Delete commands on one goroutine.
// The model itself sits behind the Analyzer interface: RemoteAnalyzer posts
// the snapshot to an HTTP service, ExecAnalyzer runs a local command. Answers
// can be cached by image and prompt in Redis.
package analysis

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"strings"
	"unicode/utf8"
)

// DefaultPrompt is used when the caller sends an empty prompt.
const DefaultPrompt = "Describe the image"

// MaxPromptRunes is the longest prompt forwarded to a model.
const MaxPromptRunes = 100

var (
	// ErrClosed is returned by Send after Close.
	ErrClosed = errors.New("analysis session closed")
	// ErrEmptyImage is returned when Analyze has no image bytes.
	ErrEmptyImage = errors.New("empty image")
)

// Analyzer answers a prompt about a PNG image.
type Analyzer interface {
	Analyze(ctx context.Context, prompt string, image []byte) (string, error)
}

// Initializer is implemented by analyzers that need preparation before the
// first request.
type Initializer interface {
	Init(ctx context.Context) error
}

// NormalizePrompt trims p, substitutes def (or DefaultPrompt) when it is
// empty and caps it at MaxPromptRunes.
func NormalizePrompt(p, def string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		p = strings.TrimSpace(def)
	}
	if p == "" {
		p = DefaultPrompt
	}
	if utf8.RuneCountInString(p) > MaxPromptRunes {
		p = strings.TrimSpace(string([]rune(p)[:MaxPromptRunes]))
	}
	return p
}

// CleanAnswer strips the special tokens the model leaves in its decoded
// output.
func CleanAnswer(s string) string {
	s = strings.Replace(s, "<|endoftext|>\n\n", "", 1)
	s = strings.Replace(s, "<|endoftext|>", "", 2)
	s = strings.Replace(s, "<image>\n\n", "", 1)
	return strings.TrimSpace(s)
}

// ImageMD5 returns the hex MD5 of image.
func ImageMD5(image []byte) string {
	sum := md5.Sum(image)
	return hex.EncodeToString(sum[:])
}

// CacheKey identifies an answer by image content and prompt.
func CacheKey(prompt string, image []byte) string {
	h := md5.New()
	h.Write(image)
	h.Write([]byte{0})
	h.Write([]byte(prompt))
	return hex.EncodeToString(h.Sum(nil))
}
