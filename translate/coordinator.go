package translate

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Config tunes the coordinator. Zero values take the defaults below.
type Config struct {
	// Timeout is the wall-clock bound covering all attempts of one logical
	// request. Default 18s.
	Timeout time.Duration
	// MaxAttempts bounds the calls per logical request; only transient
	// failures consume extra attempts. Default 2.
	MaxAttempts int
	// RetryDelay is the base delay before a retry; the wait scales with
	// the attempt number. Default 250ms.
	RetryDelay time.Duration
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 18 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 2
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 250 * time.Millisecond
	}
}

// call is one in-flight logical request. Concurrent identical requests
// share it instead of issuing duplicate network calls.
type call struct {
	done   chan struct{}
	cancel context.CancelFunc
	resp   *Response
	err    error
}

// Coordinator turns settled selections into deduplicated, cached, retried,
// cancellable translation calls. Visible state follows the ordering rule:
// only the most recently requested fingerprint may update it.
type Coordinator struct {
	cfg     Config
	backend Backend
	logger  *slog.Logger

	mu        sync.Mutex
	cache     Cache
	inflight  map[string]*call
	latest    string
	lastReq   *Request
	current   *call // owner of the one active cancellation token
	state     State
	listeners []Listener
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithCache injects a session cache (default: a fresh MemoryCache).
func WithCache(cache Cache) Option {
	return func(c *Coordinator) { c.cache = cache }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

// NewCoordinator creates a Coordinator over the given backend.
func NewCoordinator(backend Backend, cfg Config, opts ...Option) *Coordinator {
	cfg.defaults()
	c := &Coordinator{
		cfg:      cfg,
		backend:  backend,
		inflight: make(map[string]*call),
		state:    State{Status: StatusIdle},
	}
	for _, o := range opts {
		o(c)
	}
	if c.cache == nil {
		c.cache = NewMemoryCache()
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// AddListener registers a state listener. Call before issuing requests.
func (c *Coordinator) AddListener(l Listener) {
	c.mu.Lock()
	c.listeners = append(c.listeners, l)
	c.mu.Unlock()
}

// CurrentState returns the externally visible state.
func (c *Coordinator) CurrentState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Translate resolves the request through cache, in-flight deduplication, or
// a fresh network call. It blocks until the result is known; errors follow
// the package taxonomy (ErrSuperseded is returned but never published).
func (c *Coordinator) Translate(ctx context.Context, req *Request, force bool) (*Response, error) {
	if req == nil || req.SelectedText == "" {
		return nil, errors.New("translate: empty request")
	}
	if req.DocumentID == "" {
		err := NoContextError{}
		c.mu.Lock()
		st := State{Status: StatusError, Err: err}
		c.setStateLocked(st)
		listeners := c.snapshotListeners()
		c.mu.Unlock()
		notify(listeners, st)
		return nil, err
	}

	fp := Fingerprint(req)

	c.mu.Lock()
	c.latest = fp
	c.lastReq = req

	if !force {
		if resp, ok := c.cache.Get(fp); ok {
			// Still the latest by construction: visible state may follow.
			st := State{Status: StatusDone, Fingerprint: fp, Response: resp}
			c.setStateLocked(st)
			listeners := c.snapshotListeners()
			c.mu.Unlock()
			notify(listeners, st)
			return resp, nil
		}
		if cl, ok := c.inflight[fp]; ok {
			c.mu.Unlock()
			return awaitCall(ctx, cl)
		}
	}

	// Fresh request: the previous outstanding token is always cancelled
	// before a new one is issued.
	if c.current != nil {
		c.current.cancel()
	}
	taskCtx, cancel := context.WithCancel(context.Background())
	cl := &call{done: make(chan struct{}), cancel: cancel}
	c.current = cl
	c.inflight[fp] = cl

	st := State{Status: StatusLoading, Fingerprint: fp}
	c.setStateLocked(st)
	listeners := c.snapshotListeners()
	c.mu.Unlock()
	notify(listeners, st)

	resp, err := c.attempt(taskCtx, req, fp)
	c.finish(fp, cl, resp, err, force)
	return resp, err
}

// attempt runs the bounded retry loop under one wall-clock timer.
func (c *Coordinator) attempt(taskCtx context.Context, req *Request, fp string) (*Response, error) {
	wallCtx, cancelWall := context.WithTimeout(taskCtx, c.cfg.Timeout)
	defer cancelWall()

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		resp, err := c.backend.Translate(wallCtx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		// A supersede abort (task cancelled) stays silent; a wall-clock
		// expiry becomes a timeout-specific error.
		if taskCtx.Err() != nil {
			return nil, ErrSuperseded
		}
		if wallCtx.Err() == context.DeadlineExceeded {
			return nil, TimeoutError{Fingerprint: fp}
		}

		if attempt >= c.cfg.MaxAttempts || !Transient(err) {
			break
		}

		delay := time.Duration(attempt) * c.cfg.RetryDelay
		c.logger.Debug("translate: transient failure, retrying",
			"attempt", attempt, "delay", delay, "error", err)
		select {
		case <-time.After(delay):
		case <-wallCtx.Done():
			if taskCtx.Err() != nil {
				return nil, ErrSuperseded
			}
			return nil, TimeoutError{Fingerprint: fp}
		}
	}
	return nil, lastErr
}

// finish applies completion rules: cache successful responses, release the
// token, and publish only when the fingerprint is still the latest.
func (c *Coordinator) finish(fp string, cl *call, resp *Response, err error, force bool) {
	c.mu.Lock()
	if c.inflight[fp] == cl {
		delete(c.inflight, fp)
	}
	if c.current == cl {
		c.current = nil
	}
	cl.cancel() // release the token

	var st State
	publish := false
	switch {
	case err == nil:
		if _, exists := c.cache.Get(fp); !exists || force {
			c.cache.Put(fp, resp)
		}
		if c.latest == fp {
			st = State{Status: StatusDone, Fingerprint: fp, Response: resp}
			publish = true
		}
	case errors.Is(err, ErrSuperseded):
		// Silent: the user has moved on.
	default:
		if c.latest == fp {
			st = State{Status: StatusError, Fingerprint: fp, Err: err}
			publish = true
		}
	}
	if publish {
		c.setStateLocked(st)
	}
	listeners := c.snapshotListeners()
	c.mu.Unlock()

	if publish {
		notify(listeners, st)
	}

	cl.resp, cl.err = resp, err
	close(cl.done)
}

// RetryLast replays the most recent request payload, bypassing cache and
// deduplication.
func (c *Coordinator) RetryLast(ctx context.Context) (*Response, error) {
	c.mu.Lock()
	req := c.lastReq
	c.mu.Unlock()
	if req == nil {
		return nil, errors.New("translate: nothing to retry")
	}
	return c.Translate(ctx, req, true)
}

// Clear cancels any outstanding request and resets the visible state.
func (c *Coordinator) Clear() {
	c.mu.Lock()
	if c.current != nil {
		c.current.cancel()
		c.current = nil
	}
	c.latest = ""
	st := State{Status: StatusIdle}
	c.setStateLocked(st)
	listeners := c.snapshotListeners()
	c.mu.Unlock()
	notify(listeners, st)
}

// Close cancels any outstanding request. The coordinator must not be used
// afterwards.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.current != nil {
		c.current.cancel()
		c.current = nil
	}
	c.mu.Unlock()
}

func (c *Coordinator) setStateLocked(st State) { c.state = st }

func (c *Coordinator) snapshotListeners() []Listener {
	out := make([]Listener, len(c.listeners))
	copy(out, c.listeners)
	return out
}

func notify(listeners []Listener, st State) {
	for _, l := range listeners {
		l(st)
	}
}

func awaitCall(ctx context.Context, cl *call) (*Response, error) {
	select {
	case <-cl.done:
		return cl.resp, cl.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
