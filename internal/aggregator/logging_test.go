package aggregator

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/mediamatic/ikdisplay/internal/notification"
	"github.com/mediamatic/ikdisplay/internal/store"
)

func TestLoggingAggregator_LogsOnePerNotification(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	a := NewLoggingAggregator(logger)

	feed := &store.Feed{ID: 1, Handle: "ikpoll"}
	notifications := []notification.Notification{
		{"title": "first"},
		{"title": "second"},
	}
	if err := a.ProcessNotifications(context.Background(), feed, notifications); err != nil {
		t.Fatalf("ProcessNotifications: %v", err)
	}

	out := buf.String()
	if strings.Count(out, "msg=notification") != len(notifications) {
		t.Errorf("expected %d log lines, got:\n%s", len(notifications), out)
	}
	if !strings.Contains(out, "ikpoll") {
		t.Errorf("expected feed handle in log output, got:\n%s", out)
	}
}

func TestLoggingAggregator_NilLoggerFallsBackToDefault(t *testing.T) {
	a := NewLoggingAggregator(nil)
	feed := &store.Feed{ID: 1, Handle: "ikpoll"}
	if err := a.ProcessNotifications(context.Background(), feed, nil); err != nil {
		t.Fatalf("ProcessNotifications: %v", err)
	}
}
