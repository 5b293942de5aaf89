// Package feed implements the logical notification stream (C12):
// collecting sources via power-up and forwarding the notifications they
// produce to a configured aggregator. It is also the integration point
// that keeps a Source's pub/sub subscription and the microblog filter
// union in sync with the persisted source set, per spec.md §6's admin
// surface requirement ("updating a pub/sub-backed source where the
// derived node or enabled changed MUST resubscribe; updating a Twitter
// source MUST call refreshFilters").
package feed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mediamatic/ikdisplay/internal/address"
	"github.com/mediamatic/ikdisplay/internal/notification"
	"github.com/mediamatic/ikdisplay/internal/source"
	"github.com/mediamatic/ikdisplay/internal/store"
)

// Dispatcher is the subset of internal/dispatcher.Dispatcher the Manager
// drives when a pub/sub-backed source is added, removed, or changes its
// node address.
type Dispatcher interface {
	AddObserver(sourceID int64, service address.Address, node string) error
	RemoveObserver(sourceID int64, service address.Address, node string) error
}

// FilterRefresher is the microblog dispatcher's refreshFilters, called
// whenever a Twitter source is added, removed, or edited (spec.md §4.4).
type FilterRefresher interface {
	RefreshFilters()
}

// Aggregator is a notification sink a Feed forwards to (spec.md §4.7).
type Aggregator interface {
	ProcessNotifications(ctx context.Context, feed *store.Feed, notifications []notification.Notification) error
}

// Manager owns the Feed/Source persistence operations and wires their
// side effects (dispatcher subscriptions, microblog filters) and their
// output (aggregator fan-out). It implements dispatcher.Emitter.
type Manager struct {
	db          *store.Store
	dispatcher  Dispatcher
	filters     FilterRefresher
	logger      *slog.Logger
	aggregators map[string]Aggregator
}

// NewManager builds a Manager. filters may be nil if the microblog
// dispatcher isn't wired up (e.g. no Twitter sources configured).
func NewManager(db *store.Store, dispatcher Dispatcher, filters FilterRefresher, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		db:          db,
		dispatcher:  dispatcher,
		filters:     filters,
		logger:      logger,
		aggregators: make(map[string]Aggregator),
	}
}

// RegisterAggregator associates a Feed.AggregatorRef value with an
// Aggregator instance. Feeds referencing an unregistered ref are
// dropped on Emit, with a warning logged on each such Emit.
func (m *Manager) RegisterAggregator(ref string, agg Aggregator) {
	m.aggregators[ref] = agg
}

// AddSource persists a new SourceRecord and drives its initial side
// effects: pub/sub-backed sources are powered onto their derived node's
// Subscription (if enabled and the node address is defined); Twitter
// sources trigger a filter refresh.
func (m *Manager) AddSource(rec *store.SourceRecord) error {
	if err := m.db.CreateSource(rec); err != nil {
		return fmt.Errorf("feed: add source: %w", err)
	}
	return m.syncSource(rec, nil)
}

// UpdateSource persists changes to an existing SourceRecord and
// resubscribes/refreshes as needed, comparing against the record's
// previous on-disk state.
func (m *Manager) UpdateSource(rec *store.SourceRecord) error {
	before, err := m.db.GetSource(rec.ID)
	if err != nil {
		return fmt.Errorf("feed: update source: load previous: %w", err)
	}
	if err := m.db.UpdateSource(rec); err != nil {
		return fmt.Errorf("feed: update source: %w", err)
	}
	return m.syncSource(rec, before)
}

// RemoveSource de-powers and deletes a SourceRecord.
func (m *Manager) RemoveSource(id int64) error {
	rec, err := m.db.GetSource(id)
	if err != nil {
		return fmt.Errorf("feed: remove source: load: %w", err)
	}
	if rec == nil {
		return nil
	}

	if rec.Kind == source.KindTwitter {
		defer m.refreshFilters()
	} else if svc, node, ok := m.nodeAddress(rec); ok {
		defer func() {
			if err := m.dispatcher.RemoveObserver(rec.ID, svc, node); err != nil {
				m.logger.Error("feed: remove observer", "source", rec.ID, "error", err)
			}
		}()
	}
	return m.db.DeleteSource(id)
}

// syncSource reconciles a source's dispatcher/filter state after a
// create or update. before is nil on creation.
func (m *Manager) syncSource(rec *store.SourceRecord, before *store.SourceRecord) error {
	if rec.Kind == source.KindTwitter {
		// Terms/userIDs may have changed even with enabled unchanged;
		// refreshFilters is a no-op when the union is unchanged
		// (spec.md §4.4/P9), so it's always safe to call unconditionally.
		m.refreshFilters()
		return nil
	}

	svc, node, ok := m.nodeAddress(rec)
	if before != nil {
		prevSvc, prevNode, prevOK := m.nodeAddress(before)
		unchanged := prevOK == ok && prevSvc == svc && prevNode == node && before.Enabled == rec.Enabled
		if unchanged {
			return nil
		}
		if prevOK {
			if err := m.dispatcher.RemoveObserver(rec.ID, prevSvc, prevNode); err != nil {
				m.logger.Error("feed: resubscribe: remove observer", "source", rec.ID, "error", err)
			}
		}
	}
	if ok && rec.Enabled {
		if err := m.dispatcher.AddObserver(rec.ID, svc, node); err != nil {
			m.logger.Error("feed: add observer", "source", rec.ID, "error", err)
		}
	}
	return nil
}

func (m *Manager) nodeAddress(rec *store.SourceRecord) (address.Address, string, bool) {
	src, err := source.Load(rec, m.db)
	if err != nil {
		m.logger.Error("feed: load source", "source", rec.ID, "error", err)
		return address.Address{}, "", false
	}
	return src.NodeAddress()
}

func (m *Manager) refreshFilters() {
	if m.filters != nil {
		m.filters.RefreshFilters()
	}
}

// Emit implements dispatcher.Emitter and microblog's delivery target:
// it resolves the owning Feed and forwards to its registered Aggregator.
func (m *Manager) Emit(ctx context.Context, feedID int64, notifications []notification.Notification) error {
	f, err := m.db.GetFeed(feedID)
	if err != nil {
		return fmt.Errorf("feed: emit: load feed: %w", err)
	}
	if f == nil {
		return fmt.Errorf("feed: emit: unknown feed %d", feedID)
	}

	agg, ok := m.aggregators[f.AggregatorRef]
	if !ok {
		m.logger.Warn("feed: no aggregator registered", "feed", f.ID, "aggregatorRef", f.AggregatorRef)
		return nil
	}
	return agg.ProcessNotifications(ctx, f, notifications)
}
