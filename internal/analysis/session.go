package analysis

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ayusman/mudra/internal/store"
)

// Command is a message handled by a Session.
type Command interface{ command() }

// Init prepares the analyzer.
type Init struct{}

// Analyze asks Prompt about Image, a PNG snapshot. DrawingID optionally
// links the recorded result to a saved drawing.
type Analyze struct {
	Prompt    string
	Image     []byte
	DrawingID string
}

// Delete clears cached answers.
type Delete struct{}

func (Init) command()    {}
func (Analyze) command() {}
func (Delete) command()  {}

// Event is the reply to a Command.
type Event interface{ event() }

// Ready reports a successful Init.
type Ready struct{}

// Result is the answer to an Analyze command.
type Result struct {
	ID       string        `json:"id"`
	Prompt   string        `json:"prompt"`
	Answer   string        `json:"answer"`
	Duration time.Duration `json:"duration"`
	Cached   bool          `json:"cached"`
}

// DeleteDone reports that the cache was cleared.
type DeleteDone struct{}

// Failed reports a command that could not complete.
type Failed struct {
	Err error
}

func (Ready) event()      {}
func (Result) event()     {}
func (DeleteDone) event() {}
func (Failed) event()     {}

// Recorder persists results. store.AnalysisRepository satisfies it.
type Recorder interface {
	Create(a *store.Analysis) error
}

// Config configures a Session.
type Config struct {
	Analyzer Analyzer
	// Cache is optional.
	Cache Cache
	// Recorder is optional.
	Recorder      Recorder
	DefaultPrompt string
	// Timeout bounds one Analyze call. Zero means no limit beyond the
	// caller's context.
	Timeout time.Duration
	Logger  *zap.Logger
}

type request struct {
	ctx   context.Context
	cmd   Command
	reply chan Event
}

// Session runs analysis commands one at a time on its own goroutine.
type Session struct {
	cfg    Config
	logger *zap.Logger

	requests chan request
	quit     chan struct{}
	done     chan struct{}
	once     sync.Once

	mu        sync.RWMutex
	observers []func(Event)

	// owned by the actor goroutine
	ready bool
}

// NewSession starts a session.
func NewSession(cfg Config) (*Session, error) {
	if cfg.Analyzer == nil {
		return nil, errors.New("analysis: analyzer is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Session{
		cfg:      cfg,
		logger:   logger,
		requests: make(chan request),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go s.run()
	return s, nil
}

// OnEvent registers fn to observe every event. fn runs on the session
// goroutine and must not call Send.
func (s *Session) OnEvent(fn func(Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// Send submits cmd and waits for its event.
func (s *Session) Send(ctx context.Context, cmd Command) (Event, error) {
	req := request{ctx: ctx, cmd: cmd, reply: make(chan Event, 1)}

	select {
	case s.requests <- req:
	case <-s.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case ev := <-req.reply:
		return ev, nil
	case <-s.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops the session after the command in progress. Safe to call more
// than once.
func (s *Session) Close() error {
	s.once.Do(func() { close(s.quit) })
	<-s.done
	return nil
}

func (s *Session) run() {
	defer close(s.done)
	for {
		select {
		case <-s.quit:
			return
		case req := <-s.requests:
			ev := s.handle(req.ctx, req.cmd)
			req.reply <- ev
			s.notify(ev)
		}
	}
}

func (s *Session) notify(ev Event) {
	s.mu.RLock()
	observers := s.observers
	s.mu.RUnlock()
	for _, fn := range observers {
		fn(ev)
	}
}

func (s *Session) handle(ctx context.Context, cmd Command) Event {
	switch c := cmd.(type) {
	case Init:
		if err := s.init(ctx); err != nil {
			return Failed{Err: err}
		}
		return Ready{}
	case Analyze:
		return s.analyze(ctx, c)
	case Delete:
		if s.cfg.Cache != nil {
			if err := s.cfg.Cache.Clear(ctx); err != nil {
				s.logger.Warn("failed to clear analysis cache", zap.Error(err))
			}
		}
		return DeleteDone{}
	default:
		return Failed{Err: errors.New("analysis: unknown command")}
	}
}

func (s *Session) init(ctx context.Context) error {
	if s.ready {
		return nil
	}
	if in, ok := s.cfg.Analyzer.(Initializer); ok {
		if err := in.Init(ctx); err != nil {
			return err
		}
	}
	s.ready = true
	s.logger.Info("analysis session ready")
	return nil
}

func (s *Session) analyze(ctx context.Context, c Analyze) Event {
	if len(c.Image) == 0 {
		return Failed{Err: ErrEmptyImage}
	}
	if err := s.init(ctx); err != nil {
		return Failed{Err: err}
	}

	prompt := NormalizePrompt(c.Prompt, s.cfg.DefaultPrompt)
	key := CacheKey(prompt, c.Image)
	start := time.Now()

	res := Result{ID: uuid.NewString(), Prompt: prompt}

	if s.cfg.Cache != nil {
		answer, ok, err := s.cfg.Cache.Get(ctx, key)
		if err != nil {
			s.logger.Warn("analysis cache lookup failed", zap.Error(err))
		} else if ok {
			res.Answer = answer
			res.Cached = true
		}
	}

	if !res.Cached {
		actx := ctx
		if s.cfg.Timeout > 0 {
			var cancel context.CancelFunc
			actx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
			defer cancel()
		}

		answer, err := s.cfg.Analyzer.Analyze(actx, prompt, c.Image)
		if err != nil {
			s.logger.Warn("analysis failed", zap.String("prompt", prompt), zap.Error(err))
			return Failed{Err: err}
		}
		res.Answer = answer

		if s.cfg.Cache != nil {
			if err := s.cfg.Cache.Set(ctx, key, answer); err != nil {
				s.logger.Warn("failed to cache analysis", zap.Error(err))
			}
		}
	}
	res.Duration = time.Since(start)

	s.logger.Info("analysis complete",
		zap.String("prompt", prompt),
		zap.Duration("duration", res.Duration),
		zap.Bool("cached", res.Cached))

	if s.cfg.Recorder != nil {
		rec := &store.Analysis{
			ID:        res.ID,
			DrawingID: c.DrawingID,
			Prompt:    prompt,
			Answer:    res.Answer,
			ImageMD5:  ImageMD5(c.Image),
			Duration:  res.Duration,
			Cached:    res.Cached,
		}
		if err := s.cfg.Recorder.Create(rec); err != nil {
			s.logger.Warn("failed to record analysis", zap.Error(err))
		}
	}

	return res
}
