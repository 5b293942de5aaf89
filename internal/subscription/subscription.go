// Package subscription wraps the persisted Subscription record (C3) with
// the observer bookkeeping the dispatcher and source registry need: the
// power-up set size that determines a Subscription's goal state.
package subscription

import (
	"fmt"

	"github.com/mediamatic/ikdisplay/internal/store"
)

// Goal is the desired end state the dispatcher drives a Subscription
// towards.
type Goal string

const (
	GoalSubscribed   Goal = "subscribed"
	GoalUnsubscribed Goal = "unsubscribed"
)

// Registry resolves and mutates Subscription records and their power-up
// counts against the persistent store.
type Registry struct {
	db *store.Store
}

// NewRegistry wraps a store for subscription-level operations.
func NewRegistry(db *store.Store) *Registry {
	return &Registry{db: db}
}

// Resolve returns the Subscription for (service,node), creating it if
// necessary.
func (r *Registry) Resolve(service, node string) (*store.Subscription, error) {
	return r.db.GetOrCreateSubscription(service, node)
}

// Get returns the Subscription for (service,node) without creating one;
// nil, nil if none exists. Used to identify the target Subscription of an
// inbound items-event, where a miss means stale server-side state rather
// than a new subscription to create.
func (r *Registry) Get(service, node string) (*store.Subscription, error) {
	return r.db.GetSubscription(service, node)
}

// Goal reports the desired goal for a Subscription: subscribed if at
// least one enabled source is powered onto it, unsubscribed otherwise
// (spec.md §3: "power-ups' set size > 0 ⇒ target goal is subscribed").
func (r *Registry) Goal(subscriptionID int64) (Goal, error) {
	n, err := r.db.CountEnabledBySubscription(subscriptionID)
	if err != nil {
		return "", fmt.Errorf("subscription: goal: %w", err)
	}
	if n > 0 {
		return GoalSubscribed, nil
	}
	return GoalUnsubscribed, nil
}

// Observers returns every source (enabled or not) powered onto a
// Subscription, in the order the dispatcher should fan inbound items-events
// out to them.
func (r *Registry) Observers(subscriptionID int64) ([]*store.SourceRecord, error) {
	return r.db.ListSourcesBySubscription(subscriptionID)
}

// SetState persists the Subscription's last-confirmed state, as reported
// by the dispatcher's state machine.
func (r *Registry) SetState(subscriptionID int64, state string) error {
	return r.db.UpdateSubscriptionState(subscriptionID, state)
}

// All returns every Subscription, for the onConnected() walk that
// re-drives the whole graph toward its stored goal.
func (r *Registry) All() ([]*store.Subscription, error) {
	return r.db.ListSubscriptions()
}

// PowerUp attaches a source to a Subscription (it becomes an observer).
func (r *Registry) PowerUp(sourceID, subscriptionID int64) error {
	id := subscriptionID
	return r.db.SetSourceSubscription(sourceID, &id)
}

// PowerDown detaches a source from whatever Subscription it was powered
// onto.
func (r *Registry) PowerDown(sourceID int64) error {
	return r.db.SetSourceSubscription(sourceID, nil)
}
