package subscription

import (
	"path/filepath"
	"testing"

	"github.com/mediamatic/ikdisplay/internal/store"
)

func newTestRegistry(t *testing.T) (*Registry, *store.Store) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "sub_test.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewRegistry(db), db
}

func TestGoal_EmptyPowerUpSetIsUnsubscribed(t *testing.T) {
	r, _ := newTestRegistry(t)

	sub, err := r.Resolve("pubsub.example.nl", "vote/1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	goal, err := r.Goal(sub.ID)
	if err != nil {
		t.Fatalf("Goal: %v", err)
	}
	if goal != GoalUnsubscribed {
		t.Errorf("goal = %q, want unsubscribed", goal)
	}
}

func TestGoal_TracksPowerUps(t *testing.T) {
	r, db := newTestRegistry(t)

	feed := &store.Feed{Handle: "ikpoll", Title: "ikPoll"}
	if err := db.CreateFeed(feed); err != nil {
		t.Fatalf("CreateFeed: %v", err)
	}
	sub, err := r.Resolve("pubsub.example.nl", "vote/1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	src := &store.SourceRecord{FeedID: feed.ID, Kind: "vote", Enabled: true}
	if err := db.CreateSource(src); err != nil {
		t.Fatalf("CreateSource: %v", err)
	}

	if err := r.PowerUp(src.ID, sub.ID); err != nil {
		t.Fatalf("PowerUp: %v", err)
	}
	goal, err := r.Goal(sub.ID)
	if err != nil {
		t.Fatalf("Goal: %v", err)
	}
	if goal != GoalSubscribed {
		t.Errorf("goal after power-up = %q, want subscribed", goal)
	}

	observers, err := r.Observers(sub.ID)
	if err != nil {
		t.Fatalf("Observers: %v", err)
	}
	if len(observers) != 1 || observers[0].ID != src.ID {
		t.Errorf("observers = %+v", observers)
	}

	if err := r.PowerDown(src.ID); err != nil {
		t.Fatalf("PowerDown: %v", err)
	}
	goal, err = r.Goal(sub.ID)
	if err != nil {
		t.Fatalf("Goal: %v", err)
	}
	if goal != GoalUnsubscribed {
		t.Errorf("goal after power-down = %q, want unsubscribed", goal)
	}
}

func TestAll_ListsEverySubscription(t *testing.T) {
	r, _ := newTestRegistry(t)

	if _, err := r.Resolve("pubsub.example.nl", "vote/1"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if _, err := r.Resolve("pubsub.example.nl", "status"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	all, err := r.All()
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("got %d subscriptions, want 2", len(all))
	}
}
