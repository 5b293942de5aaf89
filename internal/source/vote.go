package source

import (
	"math/rand"

	"github.com/mediamatic/ikdisplay/internal/address"
	"github.com/mediamatic/ikdisplay/internal/notification"
	"github.com/mediamatic/ikdisplay/internal/store"
	"github.com/mediamatic/ikdisplay/internal/texts"
	"github.com/mediamatic/ikdisplay/internal/wire"
)

// VoteSource notifies on ikPoll votes: title is the voter's name (or the
// localized "alien" text), subtitle is the voted-for answer's title.
type VoteSource struct {
	base
	Question *store.Thing
	Template string
}

func loadVote(r *store.SourceRecord, db Resolver) (Source, error) {
	q, err := thingAttr(r, db, AttrQuestionID)
	if err != nil {
		return nil, err
	}
	return &VoteSource{base: baseFrom(r), Question: q, Template: r.Attrs[AttrTemplate]}, nil
}

func (s *VoteSource) Kind() string { return KindVote }

// NodeAddress is undefined when Question is unset (spec.md §3 invariant
// (i)): a vote source with no question cannot be subscribed.
func (s *VoteSource) NodeAddress() (address.Address, string, bool) {
	return voteFamilyNode(s.Question)
}

func (s *VoteSource) FormatPayload(payload *wire.Element, catalog *texts.Catalog, lang texts.Language) (notification.Notification, bool) {
	title := notification.PersonTitleOrAlien(payload, catalog, KindVote, lang)
	subtitle, ok := notification.VoteSubtitle(payload, catalog, KindVote, lang, s.Template)
	if !ok {
		return nil, false
	}
	n := notification.Notification{
		"title":    title,
		"subtitle": subtitle,
		"icon":     notification.PersonIcon(payload),
	}
	kindVia, _ := catalog.Lookup(KindVote, lang, "via")
	if meta := notification.ViaMeta(s.via, kindVia, ""); meta != "" {
		n["meta"] = meta
	}
	return n, true
}

// PresenceSource notifies when someone is present at a vote's location; it
// shares VoteSource's node derivation but replaces the subtitle with a
// fixed localized "present"/"alien_present" line (spec.md §4.2 step 4).
type PresenceSource struct {
	base
	Question *store.Thing
}

func loadPresence(r *store.SourceRecord, db Resolver) (Source, error) {
	q, err := thingAttr(r, db, AttrQuestionID)
	if err != nil {
		return nil, err
	}
	return &PresenceSource{base: baseFrom(r), Question: q}, nil
}

func (s *PresenceSource) Kind() string { return KindPresence }

func (s *PresenceSource) NodeAddress() (address.Address, string, bool) {
	return voteFamilyNode(s.Question)
}

func (s *PresenceSource) FormatPayload(payload *wire.Element, catalog *texts.Catalog, lang texts.Language) (notification.Notification, bool) {
	personTitle := payload.Child("person").Child("title").Text()
	isAlien := personTitle == ""

	key := "present"
	if isAlien {
		key = "alien_present"
	}
	subtitle, _ := catalog.Lookup(KindPresence, lang, key)

	title := personTitle
	if isAlien {
		title, _ = catalog.Lookup(KindPresence, lang, "alien")
	}

	n := notification.Notification{"title": title, "subtitle": subtitle}
	kindVia, _ := catalog.Lookup(KindPresence, lang, "via")
	if meta := notification.ViaMeta(s.via, kindVia, ""); meta != "" {
		n["meta"] = meta
	}
	return n, true
}

// IkMicSource notifies when someone grabs the microphone; subtitle is a
// random line from the localized "interrupt" list (spec.md §4.2 step 4).
type IkMicSource struct {
	base
	Question *store.Thing
}

func loadIkMic(r *store.SourceRecord, db Resolver) (Source, error) {
	q, err := thingAttr(r, db, AttrQuestionID)
	if err != nil {
		return nil, err
	}
	return &IkMicSource{base: baseFrom(r), Question: q}, nil
}

func (s *IkMicSource) Kind() string { return KindIkMic }

func (s *IkMicSource) NodeAddress() (address.Address, string, bool) {
	return voteFamilyNode(s.Question)
}

func (s *IkMicSource) FormatPayload(payload *wire.Element, catalog *texts.Catalog, lang texts.Language) (notification.Notification, bool) {
	title := notification.PersonTitleOrAlien(payload, catalog, KindIkMic, lang)

	lines, ok := catalog.LookupList(KindIkMic, lang, "interrupt")
	if !ok || len(lines) == 0 {
		return nil, false
	}
	subtitle := lines[rand.Intn(len(lines))]

	n := notification.Notification{"title": title, "subtitle": subtitle}
	kindVia, _ := catalog.Lookup(KindIkMic, lang, "via")
	if meta := notification.ViaMeta(s.via, kindVia, ""); meta != "" {
		n["meta"] = meta
	}
	return n, true
}

// voteFamilyNode derives (pubsubHostOf(question.uri), "vote/{idOf(question)}")
// shared by Vote, Presence and IkMic. Undefined when question is unset or
// its uri is malformed (spec.md §3 invariants (i), (iii)).
func voteFamilyNode(question *store.Thing) (address.Address, string, bool) {
	if question == nil {
		return address.Address{}, "", false
	}
	id, err := address.IDOf(question.URI)
	if err != nil {
		return address.Address{}, "", false
	}
	host := address.PubsubHostOf(question.URI)
	return address.Address{Host: host}, fmtNode("vote", id), true
}

func fmtNode(prefix string, id int64) string {
	return prefix + "/" + itoa(id)
}
