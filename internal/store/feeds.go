package store

import (
	"database/sql"
	"fmt"
)

// Feed is a logical notification stream. Language controls which text
// catalog entries its sources' formatters resolve against.
type Feed struct {
	ID            int64
	Handle        string
	Title         string
	Language      string
	AggregatorRef string
}

// URI returns the Feed's canonical pub/sub address, per spec.md §3.
func (f *Feed) URI() string {
	return fmt.Sprintf("xmpp:feeds.mediamatic.nl?node=%s", f.Handle)
}

// CreateFeed inserts a new Feed and fills in its assigned id.
func (s *Store) CreateFeed(f *Feed) error {
	if f.Language == "" {
		f.Language = "en"
	}
	res, err := s.db.Exec(
		`INSERT INTO feeds (handle, title, language, aggregator_ref) VALUES (?, ?, ?, ?)`,
		f.Handle, f.Title, f.Language, f.AggregatorRef,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	f.ID = id
	return nil
}

// GetFeed retrieves a Feed by id. Returns nil, nil if absent.
func (s *Store) GetFeed(id int64) (*Feed, error) {
	return s.scanFeed(s.db.QueryRow(
		`SELECT id, handle, title, language, aggregator_ref FROM feeds WHERE id = ?`, id))
}

// GetFeedByHandle retrieves a Feed by its unique handle. Returns nil, nil
// if no feed with that handle exists.
func (s *Store) GetFeedByHandle(handle string) (*Feed, error) {
	return s.scanFeed(s.db.QueryRow(
		`SELECT id, handle, title, language, aggregator_ref FROM feeds WHERE handle = ?`, handle))
}

// ListFeeds returns every Feed, ordered by handle.
func (s *Store) ListFeeds() ([]*Feed, error) {
	rows, err := s.db.Query(`SELECT id, handle, title, language, aggregator_ref FROM feeds ORDER BY handle`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var feeds []*Feed
	for rows.Next() {
		var f Feed
		if err := rows.Scan(&f.ID, &f.Handle, &f.Title, &f.Language, &f.AggregatorRef); err != nil {
			return nil, err
		}
		feeds = append(feeds, &f)
	}
	return feeds, rows.Err()
}

// UpdateFeed persists changes to an existing Feed.
func (s *Store) UpdateFeed(f *Feed) error {
	_, err := s.db.Exec(
		`UPDATE feeds SET handle = ?, title = ?, language = ?, aggregator_ref = ? WHERE id = ?`,
		f.Handle, f.Title, f.Language, f.AggregatorRef, f.ID,
	)
	return err
}

// DeleteFeed removes a Feed and cascades to its sources.
func (s *Store) DeleteFeed(id int64) error {
	_, err := s.db.Exec(`DELETE FROM feeds WHERE id = ?`, id)
	return err
}

func (s *Store) scanFeed(row *sql.Row) (*Feed, error) {
	var f Feed
	if err := row.Scan(&f.ID, &f.Handle, &f.Title, &f.Language, &f.AggregatorRef); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &f, nil
}
