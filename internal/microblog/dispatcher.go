package microblog

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/mediamatic/ikdisplay/internal/notification"
	"github.com/mediamatic/ikdisplay/internal/source"
	"github.com/mediamatic/ikdisplay/internal/store"
)

// Embedder resolves the best image URL for a status (C10).
type Embedder interface {
	AugmentStatusWithImage(ctx context.Context, status *source.TwitterStatus)
}

// SourceLister is the subset of internal/store.Store the Dispatcher
// queries to collect the filter union and fan out statuses.
type SourceLister interface {
	ListEnabledSourcesByKind(kind string) ([]*store.SourceRecord, error)
}

// Emitter is where a matched Twitter source's formatted notification
// goes, the same Feed/aggregator seam internal/dispatcher.Emitter uses.
type Emitter interface {
	Emit(ctx context.Context, feedID int64, notifications []notification.Notification) error
}

// Dispatcher maintains the union filter over all enabled Twitter
// sources and fans incoming statuses to them (C9, spec.md §4.4).
type Dispatcher struct {
	db       SourceLister
	monitor  *Monitor
	embedder Embedder
	emitter  Emitter
	logger   *slog.Logger

	mu       sync.Mutex
	lastArgs Args
}

func NewDispatcher(db SourceLister, monitor *Monitor, embedder Embedder, emitter Emitter, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{db: db, monitor: monitor, embedder: embedder, emitter: emitter, logger: logger}
	d.setFilters()
	return d
}

// collectFilters unions the terms and userIDs of every enabled Twitter
// source (spec.md §4.4).
func (d *Dispatcher) collectFilters() (terms []string, userIDs []string, err error) {
	records, err := d.db.ListEnabledSourcesByKind(source.KindTwitter)
	if err != nil {
		return nil, nil, err
	}

	termSet := make(map[string]struct{})
	idSet := make(map[string]struct{})
	for _, rec := range records {
		src, err := source.Load(rec, nil)
		if err != nil {
			d.logger.Error("microblog dispatcher: load source", "source", rec.ID, "error", err)
			continue
		}
		ts, ok := src.(*source.TwitterSource)
		if !ok {
			continue
		}
		for _, t := range ts.Terms {
			termSet[t] = struct{}{}
		}
		for _, id := range ts.UserIDs {
			idSet[id] = struct{}{}
		}
	}

	for t := range termSet {
		terms = append(terms, t)
	}
	for id := range idSet {
		userIDs = append(userIDs, id)
	}
	return terms, userIDs, nil
}

// setFilters computes the monitor's args from the current filter union
// (spec.md §4.4: track is terms stripped of surrounding quotes,
// comma-joined; follow is userIDs comma-joined) and wires/clears the
// monitor's delegate accordingly.
func (d *Dispatcher) setFilters() {
	terms, userIDs, err := d.collectFilters()
	if err != nil {
		d.logger.Error("microblog dispatcher: collect filters", "error", err)
		return
	}

	stripped := make([]string, len(terms))
	for i, t := range terms {
		stripped[i] = strings.Trim(t, `"`)
	}

	args := Args{
		Track:  strings.Join(stripped, ","),
		Follow: strings.Join(userIDs, ","),
	}

	d.mu.Lock()
	d.lastArgs = args
	d.mu.Unlock()

	var delegate Delegate
	if !args.Empty() {
		delegate = d.onEntry
	}
	d.monitor.SetFilters(args, delegate)
}

// RefreshFilters recomputes the union and hands it to the monitor, which
// reconnects only if the recomputed args differ from the previous ones
// (spec.md §4.4/P9: "toggling enabled on sources that do not change the
// union MUST NOT reconnect"). SetFilters is called every time; the
// monitor short-circuits on an unchanged Args, and this method compares
// the args only to log when they changed.
func (d *Dispatcher) RefreshFilters() {
	d.mu.Lock()
	oldArgs := d.lastArgs
	d.mu.Unlock()

	d.setFilters()

	d.mu.Lock()
	changed := d.lastArgs != oldArgs
	d.mu.Unlock()
	if changed {
		d.logger.Debug("microblog dispatcher: filters changed, reconnecting")
	}
}

// onEntry implements spec.md §4.4: enrich via C10 (best-effort), then
// let every enabled Twitter source independently decide whether it
// matches and format a notification.
func (d *Dispatcher) onEntry(status source.TwitterStatus) {
	ctx := context.Background()

	if d.embedder != nil {
		d.embedder.AugmentStatusWithImage(ctx, &status)
	}

	records, err := d.db.ListEnabledSourcesByKind(source.KindTwitter)
	if err != nil {
		d.logger.Error("microblog dispatcher: list sources", "error", err)
		return
	}

	for _, rec := range records {
		src, err := source.Load(rec, nil)
		if err != nil {
			d.logger.Error("microblog dispatcher: load source", "source", rec.ID, "error", err)
			continue
		}
		ts, ok := src.(*source.TwitterSource)
		if !ok {
			continue
		}
		n, matched := ts.FormatStatus(status)
		if !matched {
			continue
		}
		if err := d.emitter.Emit(ctx, rec.FeedID, []notification.Notification{n}); err != nil {
			d.logger.Error("microblog dispatcher: emit", "source", rec.ID, "error", err)
		}
	}
}
