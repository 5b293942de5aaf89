// Package dispatcher implements the goal-driven pub/sub subscription
// state machine (spec.md §4.1): a single session multiplexing many
// logical (service,node) subscriptions, reconciling each toward its
// stored goal under back-off, and routing inbound items-events to the
// sources powered onto the matching Subscription.
//
// The state machine itself is kept behind the Transport seam so it can
// be driven and tested without a live XMPP session, the way the
// teacher's homeassistant package keeps its request/response logic
// behind a wrapped *websocket.Conn and injected Probe/Execute funcs.
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mediamatic/ikdisplay/internal/address"
	"github.com/mediamatic/ikdisplay/internal/notification"
	"github.com/mediamatic/ikdisplay/internal/source"
	"github.com/mediamatic/ikdisplay/internal/store"
	"github.com/mediamatic/ikdisplay/internal/subscription"
	"github.com/mediamatic/ikdisplay/internal/texts"
	"github.com/mediamatic/ikdisplay/internal/wire"
)

// requestTimeout bounds every outbound subscribe/unsubscribe/create-node/
// publish request the dispatcher issues (spec.md §5: "hard per-request
// timeout of 30s"). Pings are bounded by the pinger's own RequestTimeout.
const requestTimeout = 30 * time.Second

// Config tunes the back-off schedule (spec.md §4.1: delay0=0.25s,
// delayMax=16s, factor=2).
type Config struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Factor       float64
}

// DefaultConfig is the spec's back-off schedule.
func DefaultConfig() Config {
	return Config{InitialDelay: 250 * time.Millisecond, MaxDelay: 16 * time.Second, Factor: 2}
}

// FeedResolver looks up a Feed by id, for the language a matched
// observer's formatter runs against. *store.Store satisfies this.
type FeedResolver interface {
	GetFeed(id int64) (*store.Feed, error)
}

// Emitter is where formatted notifications go once a Source has
// produced one: the Feed/aggregator layer (C12/C7), which the
// dispatcher otherwise has no knowledge of.
type Emitter interface {
	Emit(ctx context.Context, feedID int64, notifications []notification.Notification) error
}

// nodeState is the in-memory half of a (service,node)'s subscription
// state (spec.md §3: "Session state per node"). The persisted half
// (store.Subscription.State) is the last state the peer confirmed;
// this struct additionally tracks the desired goal, an in-flight
// request guard, and the current back-off delay.
type nodeState struct {
	subscriptionID int64
	goal           subscription.Goal
	state          string
	pending        bool
	delay          time.Duration
	timer          *time.Timer
}

// Dispatcher is the single-session pub/sub subscription state machine.
type Dispatcher struct {
	registry  *subscription.Registry
	resolver  source.Resolver
	feeds     FeedResolver
	catalog   *texts.Catalog
	transport Transport
	session   address.Address
	emitter   Emitter
	logger    *slog.Logger
	cfg       Config

	mu        sync.Mutex
	connected bool
	nodes     map[string]*nodeState
}

// New builds a Dispatcher bound to a session address. resolver resolves
// a matched observer's Thing/Site references; feeds resolves a Feed by
// id for its language. *store.Store satisfies both.
func New(registry *subscription.Registry, resolver source.Resolver, feeds FeedResolver, catalog *texts.Catalog, transport Transport, session address.Address, emitter Emitter, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		registry:  registry,
		resolver:  resolver,
		feeds:     feeds,
		catalog:   catalog,
		transport: transport,
		session:   session,
		emitter:   emitter,
		logger:    logger,
		cfg:       DefaultConfig(),
		nodes:     make(map[string]*nodeState),
	}
}

// WithConfig overrides the back-off schedule (tests use a fast one).
func (d *Dispatcher) WithConfig(cfg Config) *Dispatcher {
	d.cfg = cfg
	return d
}

func nodeKey(service, node string) string { return service + "|" + node }

// AddObserver finds-or-creates the Subscription for (service,node),
// powers sourceID onto it, and — if connected — drives it toward
// subscribed if it isn't already (spec.md §4.1 public contract).
func (d *Dispatcher) AddObserver(sourceID int64, service address.Address, node string) error {
	sub, err := d.registry.Resolve(service.String(), node)
	if err != nil {
		return fmt.Errorf("dispatcher: addObserver: resolve subscription: %w", err)
	}
	if err := d.registry.PowerUp(sourceID, sub.ID); err != nil {
		return fmt.Errorf("dispatcher: addObserver: power up: %w", err)
	}
	goal, err := d.registry.Goal(sub.ID)
	if err != nil {
		return fmt.Errorf("dispatcher: addObserver: goal: %w", err)
	}

	d.mu.Lock()
	ns := d.nodeFor(sub)
	ns.goal = goal
	d.evaluateLocked(sub.Service, sub.Node, ns)
	d.mu.Unlock()
	return nil
}

// RemoveObserver de-powers sourceID and, if no observers remain on its
// Subscription, drives it toward unsubscribed.
func (d *Dispatcher) RemoveObserver(sourceID int64, service address.Address, node string) error {
	sub, err := d.registry.Resolve(service.String(), node)
	if err != nil {
		return fmt.Errorf("dispatcher: removeObserver: resolve subscription: %w", err)
	}
	if err := d.registry.PowerDown(sourceID); err != nil {
		return fmt.Errorf("dispatcher: removeObserver: power down: %w", err)
	}
	goal, err := d.registry.Goal(sub.ID)
	if err != nil {
		return fmt.Errorf("dispatcher: removeObserver: goal: %w", err)
	}

	d.mu.Lock()
	ns := d.nodeFor(sub)
	ns.goal = goal
	d.evaluateLocked(sub.Service, sub.Node, ns)
	d.mu.Unlock()
	return nil
}

// nodeFor returns the in-memory state for sub, hydrating it from the
// persisted record on first touch. Caller must hold d.mu.
func (d *Dispatcher) nodeFor(sub *store.Subscription) *nodeState {
	k := nodeKey(sub.Service, sub.Node)
	ns, ok := d.nodes[k]
	if !ok {
		ns = &nodeState{subscriptionID: sub.ID, state: sub.State, delay: d.cfg.InitialDelay}
		d.nodes[k] = ns
	}
	return ns
}

// evaluateLocked re-derives the desired action from (state,goal) per
// the state table in spec.md §4.1. Caller must hold d.mu.
func (d *Dispatcher) evaluateLocked(service, node string, ns *nodeState) {
	if !d.connected || ns.pending {
		return
	}
	switch ns.goal {
	case subscription.GoalSubscribed:
		if ns.state != store.StateSubscribed {
			ns.pending = true
			go d.issueSubscribe(service, node)
		}
	case subscription.GoalUnsubscribed:
		if ns.state == store.StateSubscribed {
			ns.pending = true
			go d.issueUnsubscribe(service, node)
		}
	}
}

func (d *Dispatcher) issueSubscribe(service, node string) {
	svc, err := address.Parse(service)
	if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		err = d.transport.Subscribe(ctx, svc, node)
		cancel()
	}
	d.handleSubscribeResult(service, node, err)
}

func (d *Dispatcher) issueUnsubscribe(service, node string) {
	svc, err := address.Parse(service)
	if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		err = d.transport.Unsubscribe(ctx, svc, node)
		cancel()
	}
	d.handleUnsubscribeResult(service, node, err)
}

func (d *Dispatcher) handleSubscribeResult(service, node string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ns := d.nodes[nodeKey(service, node)]
	if ns == nil {
		return
	}
	ns.pending = false

	switch {
	case err == nil:
		ns.state = store.StateSubscribed
		ns.delay = d.cfg.InitialDelay
		d.persistState(ns)
	case IsWait(err):
		d.scheduleRetry(service, node, ns)
		return
	default:
		d.logger.Warn("dispatcher: subscribe abandoned", "service", service, "node", node, "error", err)
	}
	d.evaluateLocked(service, node, ns)
}

func (d *Dispatcher) handleUnsubscribeResult(service, node string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ns := d.nodes[nodeKey(service, node)]
	if ns == nil {
		return
	}
	ns.pending = false

	switch {
	case err == nil || Condition(err) == "unexpected-request":
		// "unexpected-request" on UNSUBSCRIBE means we were already not
		// subscribed — treated as success (spec.md §7).
		ns.state = store.StateUnsubscribed
		ns.delay = d.cfg.InitialDelay
		d.persistState(ns)
	case IsWait(err):
		d.scheduleRetry(service, node, ns)
		return
	default:
		d.logger.Warn("dispatcher: unsubscribe abandoned", "service", service, "node", node, "error", err)
	}
	d.evaluateLocked(service, node, ns)
}

func (d *Dispatcher) persistState(ns *nodeState) {
	if err := d.registry.SetState(ns.subscriptionID, ns.state); err != nil {
		d.logger.Error("dispatcher: persist subscription state", "error", err)
	}
}

// scheduleRetry arms a timer that re-evaluates (service,node) after the
// current back-off delay, then doubles the delay up to MaxDelay for the
// next failure. Caller must hold d.mu.
func (d *Dispatcher) scheduleRetry(service, node string, ns *nodeState) {
	if ns.delay <= 0 {
		ns.delay = d.cfg.InitialDelay
	}
	delay := ns.delay

	next := time.Duration(float64(ns.delay) * d.cfg.Factor)
	if next > d.cfg.MaxDelay {
		next = d.cfg.MaxDelay
	}
	ns.delay = next

	if ns.timer != nil {
		ns.timer.Stop()
	}
	ns.timer = time.AfterFunc(delay, func() {
		d.mu.Lock()
		cur := d.nodes[nodeKey(service, node)]
		if cur != nil {
			d.evaluateLocked(service, node, cur)
		}
		d.mu.Unlock()
	})
}

// OnConnected walks the persisted Subscription set and re-drives each
// toward its stored goal (spec.md §4.1).
func (d *Dispatcher) OnConnected() {
	d.mu.Lock()
	d.connected = true
	d.mu.Unlock()

	subs, err := d.registry.All()
	if err != nil {
		d.logger.Error("dispatcher: onConnected: list subscriptions", "error", err)
		return
	}
	for _, sub := range subs {
		goal, err := d.registry.Goal(sub.ID)
		if err != nil {
			d.logger.Error("dispatcher: onConnected: goal", "subscription", sub.ID, "error", err)
			continue
		}
		d.mu.Lock()
		ns := d.nodeFor(sub)
		ns.goal = goal
		d.evaluateLocked(sub.Service, sub.Node, ns)
		d.mu.Unlock()
	}
}

// OnDisconnected marks the session down and discards all in-flight and
// in-memory node state — the peer has forgotten us (spec.md §4.1).
func (d *Dispatcher) OnDisconnected() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.connected = false
	for _, ns := range d.nodes {
		if ns.timer != nil {
			ns.timer.Stop()
		}
	}
	d.nodes = make(map[string]*nodeState)
}

// OnItemsEvent routes an inbound items-event to the observers powered
// onto its matching Subscription (spec.md §4.1 event routing).
func (d *Dispatcher) OnItemsEvent(e ItemsEvent) {
	if !e.Recipient.EqualBare(d.session) {
		return
	}

	sub, err := d.registry.Get(e.Sender.String(), e.Node)
	if err != nil {
		d.logger.Error("dispatcher: onItemsEvent: lookup subscription", "error", err)
		return
	}
	if sub == nil {
		// Stale server-side state we no longer track: clean it up and
		// drop the event (spec.md §7: "event from unknown node").
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		if err := d.transport.Unsubscribe(ctx, e.Sender, e.Node); err != nil {
			d.logger.Warn("dispatcher: cleanup unsubscribe of unknown node failed", "error", err)
		}
		return
	}

	observers, err := d.registry.Observers(sub.ID)
	if err != nil {
		d.logger.Error("dispatcher: onItemsEvent: list observers", "error", err)
		return
	}
	for _, rec := range observers {
		d.dispatchToObserver(rec, e.Items)
	}
}

// dispatchToObserver formats and emits every item for a single observer.
// A panicking formatter is logged and does not break the fan-out to the
// remaining observers (spec.md §4.1/§7).
func (d *Dispatcher) dispatchToObserver(rec *store.SourceRecord, items []*wire.Element) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("dispatcher: observer panicked", "source", rec.ID, "recovered", r)
		}
	}()

	if !rec.Enabled {
		return
	}
	src, err := source.Load(rec, d.resolver)
	if err != nil {
		d.logger.Error("dispatcher: load source", "source", rec.ID, "error", err)
		return
	}
	feed, err := d.feeds.GetFeed(rec.FeedID)
	if err != nil || feed == nil {
		d.logger.Error("dispatcher: resolve feed", "feed", rec.FeedID, "error", err)
		return
	}
	lang := texts.Language(feed.Language)

	for _, item := range items {
		n, ok := src.FormatPayload(item, d.catalog, lang)
		if !ok {
			continue
		}
		if err := d.emitter.Emit(context.Background(), rec.FeedID, []notification.Notification{n}); err != nil {
			d.logger.Error("dispatcher: emit notification", "feed", rec.FeedID, "error", err)
		}
	}
}

// PublishNotifications sends items as a single publish; on
// "item-not-found" it auto-creates the node and retries once
// (spec.md §4.1, §7).
func (d *Dispatcher) PublishNotifications(ctx context.Context, service address.Address, node string, items []notification.Notification) error {
	wireItems := make([]wire.Notification, len(items))
	for i, n := range items {
		wireItems[i] = wire.Notification(n)
	}

	pubCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	err := d.transport.Publish(pubCtx, service, node, wireItems)
	cancel()
	if err != nil && Condition(err) == "item-not-found" {
		createCtx, cancelCreate := context.WithTimeout(ctx, requestTimeout)
		cerr := d.transport.CreateNode(createCtx, service, node)
		cancelCreate()
		if cerr != nil {
			return fmt.Errorf("dispatcher: publishNotifications: create node: %w", cerr)
		}
		pubCtx, cancel = context.WithTimeout(ctx, requestTimeout)
		err = d.transport.Publish(pubCtx, service, node, wireItems)
		cancel()
	}
	return err
}
