package aggregator

import (
	"context"

	"github.com/mediamatic/ikdisplay/internal/address"
	"github.com/mediamatic/ikdisplay/internal/notification"
	"github.com/mediamatic/ikdisplay/internal/store"
)

// Publisher is the subset of internal/dispatcher.Dispatcher the
// PubSubAggregator delegates to.
type Publisher interface {
	PublishNotifications(ctx context.Context, service address.Address, node string, items []notification.Notification) error
}

// PubSubAggregator republishes a feed's notifications back onto the
// pub/sub fabric under the feed's own handle as node name, so that
// other sessions can subscribe to a feed the way they subscribe to any
// other source (spec.md §4.7: "delegate to C5's publishNotifications
// with (configuredService, feed.handle, n)").
type PubSubAggregator struct {
	publisher Publisher
	service   address.Address
}

func NewPubSubAggregator(publisher Publisher, service address.Address) *PubSubAggregator {
	return &PubSubAggregator{publisher: publisher, service: service}
}

func (a *PubSubAggregator) ProcessNotifications(ctx context.Context, feed *store.Feed, notifications []notification.Notification) error {
	return a.publisher.PublishNotifications(ctx, a.service, feed.Handle, notifications)
}
