// Package source implements the Source sum type (spec.md §3/§4.2): the
// polymorphic notification sources that each know the pub/sub node they
// want to listen on and how to turn an inbound payload into a
// notification.Notification.
package source

import (
	"fmt"
	"strconv"

	"github.com/mediamatic/ikdisplay/internal/address"
	"github.com/mediamatic/ikdisplay/internal/notification"
	"github.com/mediamatic/ikdisplay/internal/store"
	"github.com/mediamatic/ikdisplay/internal/texts"
	"github.com/mediamatic/ikdisplay/internal/wire"
)

// itoa renders a decimal node-path segment from an integer id.
func itoa(n int64) string { return strconv.FormatInt(n, 10) }

// Kind strings, also used as store.SourceRecord.Kind and as the texts
// catalog's per-variant key.
const (
	KindVote           = "vote"
	KindPresence       = "presence"
	KindIkMic          = "ikmic"
	KindStatus         = "status"
	KindRegDesk        = "regdesk"
	KindRace           = "race"
	KindIkCam          = "ikcam"
	KindActivityStream = "activitystream"
	KindWoW            = "wow"
	KindCheckins       = "checkins"
	KindCommits        = "commits"
	KindTwitter        = "twitter"
	KindSimple         = "simple"
)

// Attrs keys interpreted out of store.SourceRecord.Attrs by Load.
const (
	AttrQuestionID = "question_id"
	AttrTemplate   = "template"
	AttrSiteID     = "site_id"
	AttrEventID    = "event_id"
	AttrUserID     = "user_id"
	AttrRaceID     = "race_id"
	AttrCreatorID  = "creator_id"
	AttrAgentID    = "agent_id"
	AttrActorID    = "actor_id"
	AttrService    = "service"
	AttrNode       = "node_identifier"
	AttrTerms      = "terms"       // comma-joined
	AttrUserIDs    = "user_ids"    // comma-joined decimal ids
	AttrElements   = "elements"    // "notifkey=elementname,..." for Simple
)

// Source is the common interface every variant implements.
type Source interface {
	// ID is the source's stable store id.
	ID() int64
	// Kind identifies the concrete variant, and doubles as its texts
	// catalog key.
	Kind() string
	// Enabled reports the source's enabled flag.
	Enabled() bool
	// NodeAddress returns the pub/sub (service,node) this source wants to
	// listen on. ok is false when the source's reference targets are
	// unset (spec.md §3 invariant (i)) or the source isn't pub/sub-backed
	// at all (Twitter).
	NodeAddress() (service address.Address, node string, ok bool)
	// FormatPayload turns an inbound payload element into a notification.
	// ok is false when the formatter legitimately produced nothing (drop).
	FormatPayload(payload *wire.Element, catalog *texts.Catalog, lang texts.Language) (notification.Notification, bool)
}

// base holds the fields shared by every Source variant.
type base struct {
	id      int64
	feedID  int64
	enabled bool
	via     string
}

func (b base) ID() int64      { return b.id }
func (b base) Enabled() bool  { return b.enabled }
func (b base) FeedID() int64  { return b.feedID }

func baseFrom(r *store.SourceRecord) base {
	return base{id: r.ID, feedID: r.FeedID, enabled: r.Enabled, via: r.Via}
}

// Resolver looks up the Thing/Site entities a SourceRecord's attrs
// reference by id. *store.Store satisfies this.
type Resolver interface {
	GetThing(id int64) (*store.Thing, error)
	GetSite(id int64) (*store.Site, error)
}

// Load builds the concrete Source for a persisted SourceRecord, resolving
// its Thing/Site references through db.
func Load(r *store.SourceRecord, db Resolver) (Source, error) {
	switch r.Kind {
	case KindVote:
		return loadVote(r, db)
	case KindPresence:
		return loadPresence(r, db)
	case KindIkMic:
		return loadIkMic(r, db)
	case KindStatus:
		return loadStatus(r, db)
	case KindRegDesk:
		return loadRegDesk(r, db)
	case KindRace:
		return loadRace(r, db)
	case KindIkCam:
		return loadIkCam(r, db)
	case KindActivityStream:
		return loadActivityStream(r, db)
	case KindWoW:
		return loadWoW(r, db)
	case KindCheckins:
		return loadCheckins(r, db)
	case KindCommits:
		return loadCommits(r)
	case KindTwitter:
		return loadTwitter(r), nil
	case KindSimple:
		return loadSimple(r), nil
	default:
		return nil, fmt.Errorf("source: unknown kind %q for source %d", r.Kind, r.ID)
	}
}

// thingAttr resolves an optional Thing-id attr; returns nil, nil when the
// attribute key is absent or empty (an unset reference target).
func thingAttr(r *store.SourceRecord, db Resolver, key string) (*store.Thing, error) {
	id, ok := intAttr(r, key)
	if !ok {
		return nil, nil
	}
	return db.GetThing(id)
}

func siteAttr(r *store.SourceRecord, db Resolver, key string) (*store.Site, error) {
	id, ok := intAttr(r, key)
	if !ok {
		return nil, nil
	}
	return db.GetSite(id)
}

func intAttr(r *store.SourceRecord, key string) (int64, bool) {
	s, ok := r.Attrs[key]
	if !ok || s == "" {
		return 0, false
	}
	n, ok := notification.ParseIntID(s)
	return n, ok
}
