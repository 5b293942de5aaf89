// Package aggregator implements the three notification fan-out sinks
// (C7): a logger, a pub/sub republisher, and a bounded-history live-page
// pusher (spec.md §4.7).
package aggregator

import (
	"context"
	"log/slog"

	"github.com/mediamatic/ikdisplay/internal/notification"
	"github.com/mediamatic/ikdisplay/internal/store"
)

// LoggingAggregator writes one log line per notification. Grounded on
// the teacher's habit of logging at every sink/boundary with slog
// key/value pairs rather than formatted strings (see connwatch/scheduler
// throughout).
type LoggingAggregator struct {
	logger *slog.Logger
}

func NewLoggingAggregator(logger *slog.Logger) *LoggingAggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingAggregator{logger: logger}
}

func (a *LoggingAggregator) ProcessNotifications(_ context.Context, feed *store.Feed, notifications []notification.Notification) error {
	for _, n := range notifications {
		a.logger.Info("notification", "feed", feed.Handle, "notification", n)
	}
	return nil
}
