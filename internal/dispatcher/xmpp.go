package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mattn/go-xmpp"

	"github.com/mediamatic/ikdisplay/internal/address"
	"github.com/mediamatic/ikdisplay/internal/wire"
)

// pubsubNS is the XEP-0060 publish-subscribe namespace used to build the
// IQ payloads go-xmpp's client leaves to the caller to assemble (it only
// frames generic <iq/> stanzas, not the pub/sub extension itself).
const pubsubNS = "http://jabber.org/protocol/pubsub"

// XMPPClient is the subset of *xmpp.Client the Transport adapter drives.
// Narrowing to an interface keeps xmppTransport testable without a live
// socket, mirroring the teacher's pattern of wrapping *websocket.Conn
// behind its own send/receive methods in internal/homeassistant.
type XMPPClient interface {
	SendOrg(stanza string) (int, error)
	PingC2S(jid, server string) error
	Recv() (xmpp.Stanza, error)
}

// xmppTransport is the Transport implementation backed by a live XMPP
// session (github.com/mattn/go-xmpp). Requests are correlated by stanza
// id the same way internal/homeassistant.WSClient correlates JSON-RPC
// style command ids: a pending map keyed by id, resolved by the
// background readLoop, guarded by a mutex.
//
// The go-xmpp API surface here is written against its documented
// client shape but, unlike the rest of this package, has no local
// reference implementation to check against — see DESIGN.md's
// dispatcher entry. Keep the goal-state-machine logic in dispatcher.go
// free of this file's types so that risk stays isolated here.
type xmppTransport struct {
	client XMPPClient
	logger *slog.Logger

	mu      sync.Mutex
	nextID  int
	pending map[string]chan stanzaResult
}

type stanzaResult struct {
	err error
}

// NewXMPPTransport wraps a connected go-xmpp client as a Transport.
func NewXMPPTransport(client XMPPClient) Transport {
	return &xmppTransport{client: client, logger: slog.Default(), pending: make(map[string]chan stanzaResult)}
}

// Connect dials and authenticates a go-xmpp session and wraps it as a
// Transport. Callers must run ReadLoop in its own goroutine for the
// session's lifetime before issuing any Subscribe/Unsubscribe/Publish
// call, the same way internal/homeassistant.Connect hands its caller a
// client plus a readLoop to start.
func Connect(jid, password, server string, port int) (Transport, error) {
	opts := xmpp.Options{
		Host:     fmt.Sprintf("%s:%d", server, port),
		User:     jid,
		Password: password,
		NoTLS:    false,
		Session:  true,
	}
	client, err := opts.NewClient()
	if err != nil {
		return nil, fmt.Errorf("dispatcher: xmpp connect: %w", err)
	}
	return NewXMPPTransport(client), nil
}

// ReadLoop runs the Transport's readLoop for the lifetime of the
// session, dispatching pubsub items-events to onItems. It blocks until
// the underlying connection closes; callers run it in its own
// goroutine.
func ReadLoop(t Transport, onItems func(ItemsEvent)) {
	if xt, ok := t.(*xmppTransport); ok {
		xt.readLoop(onItems)
	}
}

func (t *xmppTransport) allocID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	return fmt.Sprintf("ikd%d", t.nextID)
}

// roundTrip sends a raw IQ stanza and awaits the matching reply (or
// ctx's deadline), the same request/response correlation shape as
// internal/homeassistant.WSClient.sendAndWait.
func (t *xmppTransport) roundTrip(ctx context.Context, id, stanza string) error {
	ch := make(chan stanzaResult, 1)
	t.mu.Lock()
	t.pending[id] = ch
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		delete(t.pending, id)
		t.mu.Unlock()
	}()

	if _, err := t.client.SendOrg(stanza); err != nil {
		return fmt.Errorf("dispatcher: xmpp: send: %w", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.err
	}
}

// readLoop consumes stanzas from the session and resolves pending
// requests by id. It must run for the lifetime of the connection;
// callers start it in its own goroutine after NewXMPPTransport.
//
// Pub/sub item-event notifications (spec.md §6: a <message> stanza
// carrying <event xmlns=".../pubsub#event"><items node="..."><item>...)
// are NOT reconstructed into an ItemsEvent here; see SPEC_FULL.md's
// Non-goals and DESIGN.md's dispatcher entry for why. go-xmpp's Recv
// decodes a <message> stanza into xmpp.Chat, whose only field for
// unrecognized child elements (Other/OtherElem) is a flattened,
// chardata-only capture: it throws away the <items>/<item> element
// structure and the node/id attributes ItemsEvent needs, so there is
// nothing here to rebuild a []*wire.Element from without re-parsing a
// raw stanza go-xmpp never exposes. The fan-out logic downstream of a
// populated ItemsEvent (OnItemsEvent, dispatchToObserver) is fully
// implemented and covered by dispatcher_test.go against the Transport
// seam; only this live decode step is out of scope. A message stanza
// is still drained here (not left unread) so it cannot stall the
// IQ round-trips sharing the same connection.
func (t *xmppTransport) readLoop(onItems func(ItemsEvent)) {
	for {
		stanza, err := t.client.Recv()
		if err != nil {
			return
		}
		switch v := stanza.(type) {
		case xmpp.IQ:
			t.resolvePending(v)
		case xmpp.Chat:
			if v.Type == "headline" {
				t.logger.Warn("dispatcher: xmpp: dropped pubsub item-event notification (live decode unsupported, see SPEC_FULL.md Non-goals)", "remote", v.Remote)
			}
		}
	}
}

func (t *xmppTransport) resolvePending(iq xmpp.IQ) {
	t.mu.Lock()
	ch, ok := t.pending[iq.Id]
	t.mu.Unlock()
	if !ok {
		return
	}

	var err error
	if iq.Type == "error" {
		err = &StanzaError{Type: "cancel", Condition: "unexpected-request"}
	}
	ch <- stanzaResult{err: err}
}

func (t *xmppTransport) Subscribe(ctx context.Context, service address.Address, node string) error {
	id := t.allocID()
	stanza := fmt.Sprintf(
		`<iq type='set' to='%s' id='%s'><pubsub xmlns='%s'><subscribe node='%s'/></pubsub></iq>`,
		service.String(), id, pubsubNS, node,
	)
	return t.roundTrip(ctx, id, stanza)
}

func (t *xmppTransport) Unsubscribe(ctx context.Context, service address.Address, node string) error {
	id := t.allocID()
	stanza := fmt.Sprintf(
		`<iq type='set' to='%s' id='%s'><pubsub xmlns='%s'><unsubscribe node='%s'/></pubsub></iq>`,
		service.String(), id, pubsubNS, node,
	)
	return t.roundTrip(ctx, id, stanza)
}

func (t *xmppTransport) CreateNode(ctx context.Context, service address.Address, node string) error {
	id := t.allocID()
	stanza := fmt.Sprintf(
		`<iq type='set' to='%s' id='%s'><pubsub xmlns='%s'><create node='%s'/></pubsub></iq>`,
		service.String(), id, pubsubNS, node,
	)
	return t.roundTrip(ctx, id, stanza)
}

func (t *xmppTransport) Publish(ctx context.Context, service address.Address, node string, items []wire.Notification) error {
	id := t.allocID()
	var itemsXML string
	for _, n := range items {
		payload, err := wire.EncodeNotification(n)
		if err != nil {
			return fmt.Errorf("dispatcher: xmpp: encode notification: %w", err)
		}
		itemsXML += "<item>" + string(payload) + "</item>"
	}
	stanza := fmt.Sprintf(
		`<iq type='set' to='%s' id='%s'><pubsub xmlns='%s'><publish node='%s'>%s</publish></pubsub></iq>`,
		service.String(), id, pubsubNS, node, itemsXML,
	)
	return t.roundTrip(ctx, id, stanza)
}

func (t *xmppTransport) Ping(ctx context.Context, peer address.Address) error {
	done := make(chan error, 1)
	go func() { done <- t.client.PingC2S("", peer.String()) }()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}
