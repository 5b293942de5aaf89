// Package microblog implements the Twitter-like streaming consumer
// (C8), its filter-union dispatcher (C9), and the image-URL enrichment
// helper (C10) described in spec.md §§4.3-4.5.
package microblog

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/mediamatic/ikdisplay/internal/source"
)

// Args is the monitor's current filter: track (comma-joined terms) and
// follow (comma-joined user ids), spec.md §4.4's setFilters output.
type Args struct {
	Track  string
	Follow string
}

// Empty reports whether neither track nor follow is set, in which case
// the monitor must not attempt to connect (spec.md §4.3).
func (a Args) Empty() bool { return a.Track == "" && a.Follow == "" }

// Delegate receives each status the stream yields.
type Delegate func(source.TwitterStatus)

// Stream is one open streaming connection.
type Stream interface {
	// Statuses yields decoded statuses as they arrive.
	Statuses() <-chan source.TwitterStatus
	// Done is sent the stream's terminal error exactly once (nil for a
	// clean, voluntary close). Classify with ConnectError/HTTPError to
	// pick the back-off bucket (spec.md §4.3's table).
	Done() <-chan error
	// Stop tears the stream down (the "stopProducing" of spec.md §4.3).
	Stop()
}

// Streamer opens a new filtered stream.
type Streamer interface {
	Open(ctx context.Context, args Args) (Stream, error)
}

// ConnectError marks a connect-class failure (refused, timed out,
// connection dropped before any HTTP response): back-off 0.25s→16s.
type ConnectError struct{ Err error }

func (e *ConnectError) Error() string { return "microblog: connect error: " + e.Err.Error() }
func (e *ConnectError) Unwrap() error { return e.Err }

// HTTPError marks an HTTP-class failure (4xx/5xx status): back-off
// 10s→240s.
type HTTPError struct {
	StatusCode int
	Err        error
}

func (e *HTTPError) Error() string { return "microblog: http error: " + e.Err.Error() }
func (e *HTTPError) Unwrap() error { return e.Err }

type errorClass int

const (
	classClean errorClass = iota
	classConnect
	classHTTP
	classOther
)

func classify(err error) errorClass {
	if err == nil {
		return classClean
	}
	var ce *ConnectError
	if errors.As(err, &ce) {
		return classConnect
	}
	var he *HTTPError
	if errors.As(err, &he) {
		return classHTTP
	}
	return classOther
}

// errShutdown is returned internally by pump when the Monitor's own
// context is cancelled, distinguishing a deliberate shutdown from a
// stream-end that should trigger back-off/reconnect.
var errShutdown = errors.New("microblog: monitor stopped")

// Config tunes the three back-off schedules of spec.md §4.3's table.
type Config struct {
	ConnectInitialDelay time.Duration
	ConnectMaxDelay     time.Duration
	ConnectFactor       float64
	HTTPInitialDelay    time.Duration
	HTTPMaxDelay        time.Duration
	HTTPFactor          float64
	CleanCloseDelay     time.Duration
}

// DefaultConfig is spec.md §4.3's table: connect-class 0.25s→16s×2,
// HTTP-class 10s→240s×2, clean close resets to 5s.
func DefaultConfig() Config {
	return Config{
		ConnectInitialDelay: 250 * time.Millisecond,
		ConnectMaxDelay:     16 * time.Second,
		ConnectFactor:       2,
		HTTPInitialDelay:    10 * time.Second,
		HTTPMaxDelay:        240 * time.Second,
		HTTPFactor:          2,
		CleanCloseDelay:     5 * time.Second,
	}
}

// Monitor is the long-lived streaming consumer (C8). It is grounded on
// internal/connwatch.Watcher's two-phase reconnect loop, adapted from a
// single health-check back-off to spec.md §4.3's three independent
// per-error-class schedules, and from a ticker-driven poll to a
// restart-signal channel since a stream, unlike a probe, has no natural
// polling cadence.
type Monitor struct {
	streamer Streamer
	cfg      Config
	logger   *slog.Logger

	mu       sync.Mutex
	args     Args
	delegate Delegate
	started  bool
	cancel   context.CancelFunc
	restart  chan struct{}
	stopped  chan struct{}
}

func NewMonitor(streamer Streamer, cfg Config, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{streamer: streamer, cfg: cfg, logger: logger}
}

// SetFilters implements spec.md §4.3's setFilters: update args/delegate,
// and if already running with different args, force a reconnect so the
// server-side filter refreshes (unchanged args cause no reconnect); if
// not running, start the loop. A nil delegate clears the
// filter and stops the monitor (spec.md §4.4: "otherwise delegate is
// cleared, ensuring the monitor will not attempt to connect").
func (m *Monitor) SetFilters(args Args, delegate Delegate) {
	m.mu.Lock()
	changed := args != m.args
	m.args = args
	m.delegate = delegate
	running := m.started
	m.mu.Unlock()

	if delegate == nil || args.Empty() {
		m.Stop()
		return
	}
	if !running {
		m.start()
		return
	}
	if changed {
		m.Connect(true)
	}
}

// Connect forces a reconnect of the active stream (spec.md §4.3's
// "connect(forceReconnect=true) tears down the active protocol to
// trigger a clean reconnect path"). A no-op if not running.
func (m *Monitor) Connect(forceReconnect bool) {
	if !forceReconnect {
		return
	}
	m.mu.Lock()
	restart := m.restart
	m.mu.Unlock()
	if restart == nil {
		return
	}
	select {
	case restart <- struct{}{}:
	default:
	}
}

// Stop tears the monitor down entirely; SetFilters with a non-nil
// delegate and non-empty args restarts it.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.started = false
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (m *Monitor) start() {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.started = true
	m.cancel = cancel
	m.restart = make(chan struct{}, 1)
	m.stopped = make(chan struct{})
	stopped := m.stopped
	m.mu.Unlock()

	go func() {
		defer close(stopped)
		m.run(ctx)
	}()
}

func (m *Monitor) run(ctx context.Context) {
	delay := m.cfg.ConnectInitialDelay
	for {
		m.mu.Lock()
		args := m.args
		delegate := m.delegate
		m.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		if delegate == nil || args.Empty() {
			return
		}

		stream, err := m.streamer.Open(ctx, args)
		if err != nil {
			class := classify(err)
			if class == classOther {
				m.logger.Error("microblog monitor: giving up after non-retryable connect error", "error", err)
				return
			}
			if !m.sleep(ctx, m.nextDelay(class, &delay)) {
				return
			}
			continue
		}

		endErr := m.pump(ctx, stream, delegate)
		if errors.Is(endErr, errShutdown) {
			return
		}
		class := classify(endErr)
		if class == classOther {
			m.logger.Error("microblog monitor: giving up after stream failure", "error", endErr)
			return
		}
		if class == classClean {
			delay = m.cfg.CleanCloseDelay
			continue
		}
		if !m.sleep(ctx, m.nextDelay(class, &delay)) {
			return
		}
	}
}

// nextDelay returns the delay to use now and advances *delay toward the
// class's ceiling. A carried-over *delay below the class's initial delay
// is raised to it first; a larger one (left by the other class or by a
// clean close's reset) is used as it stands.
func (m *Monitor) nextDelay(class errorClass, delay *time.Duration) time.Duration {
	var initial, max time.Duration
	var factor float64
	if class == classConnect {
		initial, max, factor = m.cfg.ConnectInitialDelay, m.cfg.ConnectMaxDelay, m.cfg.ConnectFactor
	} else {
		initial, max, factor = m.cfg.HTTPInitialDelay, m.cfg.HTTPMaxDelay, m.cfg.HTTPFactor
	}
	if *delay < initial {
		*delay = initial
	}
	current := *delay
	next := time.Duration(float64(*delay) * factor)
	if next > max {
		next = max
	}
	*delay = next
	return current
}

func (m *Monitor) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (m *Monitor) pump(ctx context.Context, stream Stream, delegate Delegate) error {
	defer stream.Stop()
	m.mu.Lock()
	restart := m.restart
	m.mu.Unlock()

	statuses := stream.Statuses()
	for {
		select {
		case <-ctx.Done():
			return errShutdown
		case <-restart:
			return nil
		case err := <-stream.Done():
			return err
		case st, ok := <-statuses:
			if !ok {
				// Statuses exhausted; keep waiting for the authoritative
				// Done() error without busy-looping on the closed channel.
				statuses = nil
				continue
			}
			delegate(st)
		}
	}
}
