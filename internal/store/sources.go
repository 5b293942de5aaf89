package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// SourceRecord is the persisted shape of a Source (spec.md §3's sum type).
// Kind-specific fields (question id, terms, site id, ...) live in Attrs;
// the internal/source package interprets Attrs according to Kind. This
// keeps the store agnostic of the variant set, mirroring how the teacher's
// scheduler store keeps task payloads as an opaque JSON blob (see
// scheduler.Store.CreateTask) rather than one column per task type.
type SourceRecord struct {
	ID             int64
	FeedID         int64
	Kind           string
	Enabled        bool
	Via            string
	SubscriptionID *int64
	Attrs          map[string]string
}

// CreateSource inserts a new SourceRecord and fills in its assigned id.
func (s *Store) CreateSource(r *SourceRecord) error {
	attrsJSON, err := json.Marshal(r.Attrs)
	if err != nil {
		return fmt.Errorf("store: marshal source attrs: %w", err)
	}

	res, err := s.db.Exec(
		`INSERT INTO sources (feed_id, kind, enabled, via, subscription_id, attrs_json)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.FeedID, r.Kind, boolToInt(r.Enabled), r.Via, r.SubscriptionID, string(attrsJSON),
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	r.ID = id
	return nil
}

// GetSource retrieves a SourceRecord by id. Returns nil, nil if absent.
func (s *Store) GetSource(id int64) (*SourceRecord, error) {
	row := s.db.QueryRow(
		`SELECT id, feed_id, kind, enabled, via, subscription_id, attrs_json FROM sources WHERE id = ?`, id)
	return scanSourceRow(row)
}

// ListSourcesByFeed returns every source owned by a Feed.
func (s *Store) ListSourcesByFeed(feedID int64) ([]*SourceRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, feed_id, kind, enabled, via, subscription_id, attrs_json FROM sources WHERE feed_id = ? ORDER BY id`,
		feedID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSourceRows(rows)
}

// ListEnabledSourcesByKind returns every enabled source of a given kind
// across all feeds, e.g. for collecting Twitter filter terms (C9) or
// re-deriving node addresses at startup.
func (s *Store) ListEnabledSourcesByKind(kind string) ([]*SourceRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, feed_id, kind, enabled, via, subscription_id, attrs_json
		 FROM sources WHERE kind = ? AND enabled = 1 ORDER BY id`,
		kind,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSourceRows(rows)
}

// ListSourcesBySubscription returns every source (enabled or not) powered
// onto a given Subscription id — the observer set C5 fans items-events out
// to.
func (s *Store) ListSourcesBySubscription(subscriptionID int64) ([]*SourceRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, feed_id, kind, enabled, via, subscription_id, attrs_json
		 FROM sources WHERE subscription_id = ? ORDER BY id`,
		subscriptionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSourceRows(rows)
}

// CountEnabledBySubscription reports how many enabled sources are powered
// onto a Subscription — its "power-up set size" (spec.md §3 invariant: size
// > 0 implies goal "subscribed", size = 0 implies goal "unsubscribed").
func (s *Store) CountEnabledBySubscription(subscriptionID int64) (int, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM sources WHERE subscription_id = ? AND enabled = 1`,
		subscriptionID,
	).Scan(&n)
	return n, err
}

// UpdateSource persists changes to an existing SourceRecord.
func (s *Store) UpdateSource(r *SourceRecord) error {
	attrsJSON, err := json.Marshal(r.Attrs)
	if err != nil {
		return fmt.Errorf("store: marshal source attrs: %w", err)
	}
	_, err = s.db.Exec(
		`UPDATE sources SET feed_id = ?, kind = ?, enabled = ?, via = ?, subscription_id = ?, attrs_json = ?
		 WHERE id = ?`,
		r.FeedID, r.Kind, boolToInt(r.Enabled), r.Via, r.SubscriptionID, string(attrsJSON), r.ID,
	)
	return err
}

// SetSourceSubscription updates only the subscription reference, e.g. when
// a source is newly powered onto (or removed from) a Subscription.
func (s *Store) SetSourceSubscription(sourceID int64, subscriptionID *int64) error {
	_, err := s.db.Exec(`UPDATE sources SET subscription_id = ? WHERE id = ?`, subscriptionID, sourceID)
	return err
}

// DeleteSource removes a SourceRecord.
func (s *Store) DeleteSource(id int64) error {
	_, err := s.db.Exec(`DELETE FROM sources WHERE id = ?`, id)
	return err
}

func scanSourceRow(row *sql.Row) (*SourceRecord, error) {
	var r SourceRecord
	var enabled int
	var via sql.NullString
	var subID sql.NullInt64
	var attrsJSON string

	if err := row.Scan(&r.ID, &r.FeedID, &r.Kind, &enabled, &via, &subID, &attrsJSON); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return finishScan(&r, enabled, via, subID, attrsJSON)
}

func scanSourceRows(rows *sql.Rows) ([]*SourceRecord, error) {
	var out []*SourceRecord
	for rows.Next() {
		var r SourceRecord
		var enabled int
		var via sql.NullString
		var subID sql.NullInt64
		var attrsJSON string

		if err := rows.Scan(&r.ID, &r.FeedID, &r.Kind, &enabled, &via, &subID, &attrsJSON); err != nil {
			return nil, err
		}
		rec, err := finishScan(&r, enabled, via, subID, attrsJSON)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func finishScan(r *SourceRecord, enabled int, via sql.NullString, subID sql.NullInt64, attrsJSON string) (*SourceRecord, error) {
	r.Enabled = enabled == 1
	if via.Valid {
		r.Via = via.String
	}
	if subID.Valid {
		id := subID.Int64
		r.SubscriptionID = &id
	}
	if attrsJSON != "" {
		if err := json.Unmarshal([]byte(attrsJSON), &r.Attrs); err != nil {
			return nil, fmt.Errorf("store: unmarshal source attrs: %w", err)
		}
	}
	if r.Attrs == nil {
		r.Attrs = map[string]string{}
	}
	return r, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
