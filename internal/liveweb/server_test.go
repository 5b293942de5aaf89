package liveweb

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mediamatic/ikdisplay/internal/aggregator"
	"github.com/mediamatic/ikdisplay/internal/notification"
	"github.com/mediamatic/ikdisplay/internal/store"
)

type fakeFeedLookup struct {
	feeds map[string]*store.Feed
}

func (f *fakeFeedLookup) GetFeedByHandle(handle string) (*store.Feed, error) {
	return f.feeds[handle], nil
}

func newTestLiveServer(t *testing.T, feeds *fakeFeedLookup, live LivePages) *httptest.Server {
	t.Helper()
	s := NewServer(feeds, live, nil)
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHandleLive_UnknownHandle_404s(t *testing.T) {
	feeds := &fakeFeedLookup{feeds: map[string]*store.Feed{}}
	live := aggregator.NewLivePageAggregator(nil)
	srv := newTestLiveServer(t, feeds, live)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/live/no-such-feed"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("expected dial to fail for an unknown feed handle")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		code := -1
		if resp != nil {
			code = resp.StatusCode
		}
		t.Errorf("status = %d, want 404", code)
	}
}

func TestHandleLive_AttachesAndStreamsHistory(t *testing.T) {
	feed := &store.Feed{ID: 1, Handle: "ikpoll"}
	feeds := &fakeFeedLookup{feeds: map[string]*store.Feed{"ikpoll": feed}}
	live := aggregator.NewLivePageAggregator(nil)
	if err := live.ProcessNotifications(context.Background(), feed, []notification.Notification{{"title": "history-item"}}); err != nil {
		t.Fatalf("ProcessNotifications: %v", err)
	}

	srv := newTestLiveServer(t, feeds, live)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/live/ikpoll"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if !strings.Contains(string(msg), "history-item") {
		t.Errorf("message = %s, want history replay", msg)
	}
}

// tracingLivePages wraps a real LivePageAggregator to record Attach/Detach
// calls, since LiveClient's fields are unexported and can only be
// produced by the real aggregator.
type tracingLivePages struct {
	*aggregator.LivePageAggregator
	detached chan struct{}
}

func (t *tracingLivePages) Detach(feedID int64, client *aggregator.LiveClient) {
	t.LivePageAggregator.Detach(feedID, client)
	close(t.detached)
}

func TestHandleLive_DisconnectDetachesClient(t *testing.T) {
	feed := &store.Feed{ID: 1, Handle: "ikpoll"}
	feeds := &fakeFeedLookup{feeds: map[string]*store.Feed{"ikpoll": feed}}
	live := &tracingLivePages{
		LivePageAggregator: aggregator.NewLivePageAggregator(nil),
		detached:           make(chan struct{}),
	}

	srv := newTestLiveServer(t, feeds, live)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/live/ikpoll"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	conn.Close()

	select {
	case <-live.detached:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Detach after client disconnect")
	}
}
