package store

import "database/sql"

// Subscription states, per spec.md §3.
const (
	StateNull         = ""
	StateSubscribed   = "subscribed"
	StatePending      = "pending"
	StateUnsubscribed = "unsubscribed"
)

// Subscription is a durable (service,node,state) tuple. Service is the
// address's string form (see internal/address).
type Subscription struct {
	ID      int64
	Service string
	Node    string
	State   string
}

// GetOrCreateSubscription returns the Subscription for (service,node),
// creating it with state StateNull if it does not yet exist.
func (s *Store) GetOrCreateSubscription(service, node string) (*Subscription, error) {
	sub, err := s.GetSubscription(service, node)
	if err != nil {
		return nil, err
	}
	if sub != nil {
		return sub, nil
	}

	res, err := s.db.Exec(
		`INSERT INTO subscriptions (service, node, state) VALUES (?, ?, ?)`,
		service, node, StateNull,
	)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &Subscription{ID: id, Service: service, Node: node, State: StateNull}, nil
}

// GetSubscription retrieves a Subscription by its (service,node) key.
// Returns nil, nil if absent.
func (s *Store) GetSubscription(service, node string) (*Subscription, error) {
	row := s.db.QueryRow(
		`SELECT id, service, node, state FROM subscriptions WHERE service = ? AND node = ?`,
		service, node,
	)
	return scanSubscription(row)
}

// GetSubscriptionByID retrieves a Subscription by its stable id.
func (s *Store) GetSubscriptionByID(id int64) (*Subscription, error) {
	row := s.db.QueryRow(`SELECT id, service, node, state FROM subscriptions WHERE id = ?`, id)
	return scanSubscription(row)
}

// ListSubscriptions returns every Subscription, e.g. for a reconnect walk
// that re-drives each toward its stored goal.
func (s *Store) ListSubscriptions() ([]*Subscription, error) {
	rows, err := s.db.Query(`SELECT id, service, node, state FROM subscriptions ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Subscription
	for rows.Next() {
		var sub Subscription
		if err := rows.Scan(&sub.ID, &sub.Service, &sub.Node, &sub.State); err != nil {
			return nil, err
		}
		out = append(out, &sub)
	}
	return out, rows.Err()
}

// UpdateSubscriptionState persists a new state for a Subscription.
func (s *Store) UpdateSubscriptionState(id int64, state string) error {
	_, err := s.db.Exec(`UPDATE subscriptions SET state = ? WHERE id = ?`, state, id)
	return err
}

// DeleteSubscription removes a Subscription; sources referencing it have
// their subscription_id cleared (ON DELETE SET NULL).
func (s *Store) DeleteSubscription(id int64) error {
	_, err := s.db.Exec(`DELETE FROM subscriptions WHERE id = ?`, id)
	return err
}

func scanSubscription(row *sql.Row) (*Subscription, error) {
	var sub Subscription
	if err := row.Scan(&sub.ID, &sub.Service, &sub.Node, &sub.State); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}
