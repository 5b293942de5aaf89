package pinger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mediamatic/ikdisplay/internal/address"
	"github.com/mediamatic/ikdisplay/internal/dispatcher"
)

// fakeTransport scripts Ping results in order, the same queued-error
// style as internal/dispatcher/dispatcher_test.go's fakeTransport.
type fakeTransport struct {
	mu    sync.Mutex
	errs  []error
	calls int
}

func (f *fakeTransport) Ping(ctx context.Context, peer address.Address) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return err
}

func waitForRestart(t *testing.T, restarted chan struct{}) {
	t.Helper()
	select {
	case <-restarted:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for restart callback")
	}
}

func TestPing_Success_ResetsTimeoutCount(t *testing.T) {
	ft := &fakeTransport{}
	p := New(ft, address.Address{Host: "pubsub.example.nl"}, func() { t.Fatal("restart should not be called") }, DefaultConfig(), nil)

	p.mu.Lock()
	p.timeoutCount = 1
	p.mu.Unlock()

	p.ping(context.Background())

	p.mu.Lock()
	got := p.timeoutCount
	p.mu.Unlock()
	if got != 0 {
		t.Errorf("timeoutCount = %d, want 0", got)
	}
}

func TestPing_TransientFailure_IncrementsBelowThreshold(t *testing.T) {
	ft := &fakeTransport{errs: []error{errors.New("timeout")}}
	p := New(ft, address.Address{Host: "pubsub.example.nl"}, func() { t.Fatal("restart should not fire below threshold") },
		Config{Interval: time.Hour, ReconnectCount: 2, EscalationDelay: time.Millisecond, RequestTimeout: time.Second}, nil)

	p.ping(context.Background())

	p.mu.Lock()
	got := p.timeoutCount
	p.mu.Unlock()
	if got != 1 {
		t.Errorf("timeoutCount = %d, want 1", got)
	}
}

func TestPing_ThresholdReached_ForcesRestart(t *testing.T) {
	ft := &fakeTransport{errs: []error{errors.New("t1"), errors.New("t2")}}
	restarted := make(chan struct{})
	p := New(ft, address.Address{Host: "pubsub.example.nl"}, func() { close(restarted) },
		Config{Interval: time.Hour, ReconnectCount: 2, EscalationDelay: time.Millisecond, RequestTimeout: time.Second}, nil)

	p.ping(context.Background())
	p.ping(context.Background())

	waitForRestart(t, restarted)
}

func TestPing_RemoteServerNotFound_ForcesImmediateRestart(t *testing.T) {
	ft := &fakeTransport{errs: []error{&dispatcher.StanzaError{Type: "cancel", Condition: "remote-server-not-found"}}}
	restarted := make(chan struct{})
	p := New(ft, address.Address{Host: "pubsub.example.nl"}, func() { close(restarted) },
		Config{Interval: time.Hour, ReconnectCount: 10, EscalationDelay: time.Millisecond, RequestTimeout: time.Second}, nil)

	p.ping(context.Background())

	waitForRestart(t, restarted)

	p.mu.Lock()
	got := p.timeoutCount
	p.mu.Unlock()
	if got != 0 {
		t.Errorf("remote-server-not-found should not go through the timeoutCount path, got %d", got)
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	ft := &fakeTransport{}
	p := New(ft, address.Address{Host: "pubsub.example.nl"}, func() {}, Config{Interval: time.Millisecond, ReconnectCount: 2, EscalationDelay: time.Millisecond, RequestTimeout: time.Second}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancel")
	}
}
