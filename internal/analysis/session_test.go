package analysis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ayusman/mudra/internal/store"
)

type fakeAnalyzer struct {
	mu      sync.Mutex
	answer  string
	err     error
	delay   time.Duration
	prompts []string
	inits   int
	initErr error
}

func (f *fakeAnalyzer) Init(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inits++
	return f.initErr
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, prompt string, image []byte) (string, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	return f.answer, f.err
}

func (f *fakeAnalyzer) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

type memCache struct {
	mu      sync.Mutex
	data    map[string]string
	getErr  error
	cleared int
}

func newMemCache() *memCache { return &memCache{data: make(map[string]string)} }

func (c *memCache) Get(ctx context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return "", false, c.getErr
	}
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *memCache) Set(ctx context.Context, key, answer string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = answer
	return nil
}

func (c *memCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]string)
	c.cleared++
	return nil
}

type memRecorder struct {
	mu   sync.Mutex
	rows []*store.Analysis
}

func (r *memRecorder) Create(a *store.Analysis) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, a)
	return nil
}

func newTestSession(t *testing.T, cfg Config) *Session {
	t.Helper()
	s, err := NewSession(cfg)
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewSession_RequiresAnalyzer(t *testing.T) {
	if _, err := NewSession(Config{}); err == nil {
		t.Error("expected error without analyzer")
	}
}

func TestSession_Init(t *testing.T) {
	fa := &fakeAnalyzer{}
	s := newTestSession(t, Config{Analyzer: fa})

	for i := 0; i < 2; i++ {
		ev, err := s.Send(context.Background(), Init{})
		if err != nil {
			t.Fatalf("Send(Init) error = %v", err)
		}
		if _, ok := ev.(Ready); !ok {
			t.Fatalf("event = %T, want Ready", ev)
		}
	}
	if fa.inits != 1 {
		t.Errorf("analyzer initialized %d times, want 1", fa.inits)
	}
}

func TestSession_InitFailure(t *testing.T) {
	fa := &fakeAnalyzer{initErr: errors.New("no model")}
	s := newTestSession(t, Config{Analyzer: fa})

	ev, err := s.Send(context.Background(), Init{})
	if err != nil {
		t.Fatalf("Send(Init) error = %v", err)
	}
	failed, ok := ev.(Failed)
	if !ok || failed.Err == nil {
		t.Fatalf("event = %#v, want Failed", ev)
	}

	// Analyze retries initialization.
	ev, _ = s.Send(context.Background(), Analyze{Image: []byte{1}})
	if _, ok := ev.(Failed); !ok {
		t.Errorf("Analyze before a successful Init = %T, want Failed", ev)
	}
	if fa.inits != 2 {
		t.Errorf("inits = %d, want 2", fa.inits)
	}
}

func TestSession_Analyze(t *testing.T) {
	fa := &fakeAnalyzer{answer: "A cat."}
	rec := &memRecorder{}
	s := newTestSession(t, Config{Analyzer: fa, Recorder: rec})

	ev, err := s.Send(context.Background(), Analyze{Prompt: "", Image: []byte("png"), DrawingID: "d1"})
	if err != nil {
		t.Fatalf("Send(Analyze) error = %v", err)
	}
	res, ok := ev.(Result)
	if !ok {
		t.Fatalf("event = %#v, want Result", ev)
	}

	if res.Answer != "A cat." || res.Cached {
		t.Errorf("result = %+v", res)
	}
	if res.Prompt != DefaultPrompt || fa.prompts[0] != DefaultPrompt {
		t.Errorf("empty prompt should become %q, got %q", DefaultPrompt, fa.prompts[0])
	}
	if res.ID == "" {
		t.Error("result should carry an id")
	}

	if len(rec.rows) != 1 {
		t.Fatalf("recorded %d analyses, want 1", len(rec.rows))
	}
	row := rec.rows[0]
	if row.ID != res.ID || row.DrawingID != "d1" || row.ImageMD5 != ImageMD5([]byte("png")) {
		t.Errorf("recorded row = %+v", row)
	}
}

func TestSession_AnalyzeEmptyImage(t *testing.T) {
	fa := &fakeAnalyzer{answer: "x"}
	s := newTestSession(t, Config{Analyzer: fa})

	ev, _ := s.Send(context.Background(), Analyze{Prompt: "p"})
	failed, ok := ev.(Failed)
	if !ok || !errors.Is(failed.Err, ErrEmptyImage) {
		t.Errorf("event = %#v, want Failed{ErrEmptyImage}", ev)
	}
	if fa.calls() != 0 {
		t.Error("analyzer should not be called without an image")
	}
}

func TestSession_AnalyzerError(t *testing.T) {
	fa := &fakeAnalyzer{err: errors.New("service down")}
	rec := &memRecorder{}
	s := newTestSession(t, Config{Analyzer: fa, Recorder: rec})

	ev, _ := s.Send(context.Background(), Analyze{Image: []byte{1}})
	if _, ok := ev.(Failed); !ok {
		t.Fatalf("event = %T, want Failed", ev)
	}
	if len(rec.rows) != 0 {
		t.Error("failed analyses should not be recorded")
	}
}

func TestSession_Cache(t *testing.T) {
	fa := &fakeAnalyzer{answer: "A dog."}
	cache := newMemCache()
	s := newTestSession(t, Config{Analyzer: fa, Cache: cache})

	img := []byte("png")
	first, _ := s.Send(context.Background(), Analyze{Prompt: "what?", Image: img})
	second, _ := s.Send(context.Background(), Analyze{Prompt: " what? ", Image: img})

	if first.(Result).Cached {
		t.Error("first answer should not be cached")
	}
	if r := second.(Result); !r.Cached || r.Answer != "A dog." {
		t.Errorf("second result = %+v, want cached answer", r)
	}
	if fa.calls() != 1 {
		t.Errorf("analyzer calls = %d, want 1", fa.calls())
	}

	ev, _ := s.Send(context.Background(), Delete{})
	if _, ok := ev.(DeleteDone); !ok {
		t.Fatalf("event = %T, want DeleteDone", ev)
	}
	if cache.cleared != 1 {
		t.Errorf("cache cleared %d times", cache.cleared)
	}

	third, _ := s.Send(context.Background(), Analyze{Prompt: "what?", Image: img})
	if third.(Result).Cached {
		t.Error("answer should not be cached after Delete")
	}
}

func TestSession_CacheFailureIgnored(t *testing.T) {
	fa := &fakeAnalyzer{answer: "ok"}
	cache := newMemCache()
	cache.getErr = errors.New("redis down")
	s := newTestSession(t, Config{Analyzer: fa, Cache: cache})

	ev, _ := s.Send(context.Background(), Analyze{Image: []byte{1}})
	if r, ok := ev.(Result); !ok || r.Answer != "ok" {
		t.Errorf("event = %#v, want Result", ev)
	}
}

func TestSession_DeleteWithoutCache(t *testing.T) {
	s := newTestSession(t, Config{Analyzer: &fakeAnalyzer{}})

	ev, _ := s.Send(context.Background(), Delete{})
	if _, ok := ev.(DeleteDone); !ok {
		t.Errorf("event = %T, want DeleteDone", ev)
	}
}

func TestSession_Timeout(t *testing.T) {
	fa := &fakeAnalyzer{answer: "late", delay: time.Second}
	s := newTestSession(t, Config{Analyzer: fa, Timeout: 50 * time.Millisecond})

	ev, _ := s.Send(context.Background(), Analyze{Image: []byte{1}})
	failed, ok := ev.(Failed)
	if !ok || !errors.Is(failed.Err, context.DeadlineExceeded) {
		t.Errorf("event = %#v, want Failed{DeadlineExceeded}", ev)
	}
}

func TestSession_Serializes(t *testing.T) {
	fa := &fakeAnalyzer{answer: "x", delay: 20 * time.Millisecond}
	s := newTestSession(t, Config{Analyzer: fa})

	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Send(context.Background(), Analyze{Image: []byte{1}})
		}()
	}
	wg.Wait()

	if elapsed := time.Since(start); elapsed < 60*time.Millisecond {
		t.Errorf("3 commands finished in %v; they should run one at a time", elapsed)
	}
	if fa.calls() != 3 {
		t.Errorf("calls = %d, want 3", fa.calls())
	}
}

func TestSession_OnEvent(t *testing.T) {
	s := newTestSession(t, Config{Analyzer: &fakeAnalyzer{answer: "x"}})

	var mu sync.Mutex
	var seen []Event
	s.OnEvent(func(ev Event) {
		mu.Lock()
		seen = append(seen, ev)
		mu.Unlock()
	})

	s.Send(context.Background(), Init{})
	s.Send(context.Background(), Analyze{Image: []byte{1}})
	s.Send(context.Background(), Delete{})

	// The observer runs after the reply is sent; wait for the last one.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(seen)
		mu.Unlock()
		if n == 3 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 3 {
		t.Fatalf("observed %d events, want 3", len(seen))
	}
	if _, ok := seen[0].(Ready); !ok {
		t.Errorf("seen[0] = %T", seen[0])
	}
	if _, ok := seen[1].(Result); !ok {
		t.Errorf("seen[1] = %T", seen[1])
	}
	if _, ok := seen[2].(DeleteDone); !ok {
		t.Errorf("seen[2] = %T", seen[2])
	}
}

func TestSession_Closed(t *testing.T) {
	s, err := NewSession(Config{Analyzer: &fakeAnalyzer{}})
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}

	s.Close()
	s.Close()

	if _, err := s.Send(context.Background(), Init{}); !errors.Is(err, ErrClosed) {
		t.Errorf("Send() after Close error = %v, want ErrClosed", err)
	}
}

func TestSession_SendCancelled(t *testing.T) {
	fa := &fakeAnalyzer{answer: "x", delay: 500 * time.Millisecond}
	s := newTestSession(t, Config{Analyzer: fa})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	if _, err := s.Send(ctx, Analyze{Image: []byte{1}}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Send() error = %v, want DeadlineExceeded", err)
	}
}
