package store

import "database/sql"

// Thing is a referenceable entity with a title and a canonical URI, e.g.
// an ikPoll question or a race. Sources hold Thing ids, not Things, so a
// Thing's own id is the stable reference spec.md §3 requires.
type Thing struct {
	ID    int64
	Title string
	URI   string
}

// CreateThing inserts a new Thing and fills in its assigned id.
func (s *Store) CreateThing(t *Thing) error {
	res, err := s.db.Exec(`INSERT INTO things (title, uri) VALUES (?, ?)`, t.Title, t.URI)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = id
	return nil
}

// GetThing retrieves a Thing by id. Returns nil, nil if absent.
func (s *Store) GetThing(id int64) (*Thing, error) {
	row := s.db.QueryRow(`SELECT id, title, uri FROM things WHERE id = ?`, id)
	var t Thing
	if err := row.Scan(&t.ID, &t.Title, &t.URI); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// DeleteThing removes a Thing by id.
func (s *Store) DeleteThing(id int64) error {
	_, err := s.db.Exec(`DELETE FROM things WHERE id = ?`, id)
	return err
}
