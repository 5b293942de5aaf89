package dispatcher

import (
	"context"

	"github.com/mediamatic/ikdisplay/internal/address"
	"github.com/mediamatic/ikdisplay/internal/wire"
)

// Transport is the pub/sub fabric operations the Dispatcher drives. A
// concrete go-xmpp-backed implementation lives in xmpp.go; tests use a
// fake, letting the goal-state machine be exercised without a live
// session — the same seam the teacher's homeassistant package gets from
// wrapping *websocket.Conn behind its own sendAndWait, and its ProbeFunc/
// ExecuteFunc style of injecting behavior for tests.
type Transport interface {
	Subscribe(ctx context.Context, service address.Address, node string) error
	Unsubscribe(ctx context.Context, service address.Address, node string) error
	CreateNode(ctx context.Context, service address.Address, node string) error
	Publish(ctx context.Context, service address.Address, node string, items []wire.Notification) error
	Ping(ctx context.Context, peer address.Address) error
}

// ItemsEvent is an inbound pub/sub items notification (spec.md §6).
type ItemsEvent struct {
	Sender    address.Address
	Recipient address.Address
	Node      string
	Items     []*wire.Element
}
