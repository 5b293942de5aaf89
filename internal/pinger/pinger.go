// Package pinger implements the pub/sub session liveness monitor (C11,
// spec.md §4.6): a periodic ping/pong against a configured peer that
// escalates to a forced stream restart when the peer goes quiet or
// reports itself gone.
package pinger

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mediamatic/ikdisplay/internal/address"
	"github.com/mediamatic/ikdisplay/internal/dispatcher"
)

// Transport issues the request/response ping. *dispatcher's xmpp
// Transport satisfies this via its own Ping method.
type Transport interface {
	Ping(ctx context.Context, peer address.Address) error
}

// Config tunes spec.md §4.6's pingInterval/reconnectCount/escalation
// delay.
type Config struct {
	Interval        time.Duration
	ReconnectCount  int
	EscalationDelay time.Duration
	RequestTimeout  time.Duration
}

// DefaultConfig is spec.md §4.6's values: pingInterval=30s,
// reconnectCount=2, a 1s-delayed restart on escalation.
func DefaultConfig() Config {
	return Config{
		Interval:        30 * time.Second,
		ReconnectCount:  2,
		EscalationDelay: time.Second,
		RequestTimeout:  30 * time.Second,
	}
}

// Pinger drives the ping loop. Grounded on internal/connwatch.Watcher's
// ticker-driven probe loop (see internal/connwatch/connwatch.go's Phase
// 2), generalized from a ready/down health transition to spec.md §4.6's
// timeoutCount escalation counter.
type Pinger struct {
	transport Transport
	peer      address.Address
	restart   func()
	cfg       Config
	logger    *slog.Logger

	mu           sync.Mutex
	timeoutCount int
}

func New(transport Transport, peer address.Address, restart func(), cfg Config, logger *slog.Logger) *Pinger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pinger{transport: transport, peer: peer, restart: restart, cfg: cfg, logger: logger}
}

// Run blocks, pinging every cfg.Interval until ctx is cancelled.
func (p *Pinger) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.ping(ctx)
		}
	}
}

func (p *Pinger) ping(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, p.cfg.RequestTimeout)
	defer cancel()

	err := p.transport.Ping(pingCtx, p.peer)
	if err == nil {
		p.mu.Lock()
		p.timeoutCount = 0
		p.mu.Unlock()
		return
	}

	if dispatcher.Condition(err) == "remote-server-not-found" {
		p.logger.Warn("pinger: peer reports remote-server-not-found, forcing restart", "peer", p.peer)
		p.scheduleRestart()
		return
	}

	p.mu.Lock()
	p.timeoutCount++
	count := p.timeoutCount
	p.mu.Unlock()

	p.logger.Debug("pinger: ping failed", "peer", p.peer, "timeoutCount", count, "error", err)
	if count >= p.cfg.ReconnectCount {
		p.logger.Warn("pinger: timeout count reached threshold, forcing restart", "peer", p.peer, "timeoutCount", count)
		p.scheduleRestart()
	}
}

// scheduleRestart forces a stream restart after EscalationDelay, the
// "schedule a stream-level error 'connection-timeout' in 1s" of
// spec.md §4.6 — modeled here directly as calling the restart callback,
// since this module has no separate stream-level error-event bus.
func (p *Pinger) scheduleRestart() {
	time.AfterFunc(p.cfg.EscalationDelay, p.restart)
}
