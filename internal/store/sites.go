package store

import "database/sql"

// Site is a referenceable site entity, used by Status/ActivityStream/
// Checkins sources for node derivation and as the fallback "via" title.
type Site struct {
	ID    int64
	Title string
	URI   string
}

// CreateSite inserts a new Site and fills in its assigned id.
func (s *Store) CreateSite(site *Site) error {
	res, err := s.db.Exec(`INSERT INTO sites (title, uri) VALUES (?, ?)`, site.Title, site.URI)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	site.ID = id
	return nil
}

// GetSite retrieves a Site by id. Returns nil, nil if absent.
func (s *Store) GetSite(id int64) (*Site, error) {
	row := s.db.QueryRow(`SELECT id, title, uri FROM sites WHERE id = ?`, id)
	var site Site
	if err := row.Scan(&site.ID, &site.Title, &site.URI); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &site, nil
}

// DeleteSite removes a Site by id.
func (s *Store) DeleteSite(id int64) error {
	_, err := s.db.Exec(`DELETE FROM sites WHERE id = ?`, id)
	return err
}
