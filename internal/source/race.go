package source

import (
	"strings"

	"github.com/mediamatic/ikdisplay/internal/address"
	"github.com/mediamatic/ikdisplay/internal/notification"
	"github.com/mediamatic/ikdisplay/internal/store"
	"github.com/mediamatic/ikdisplay/internal/texts"
	"github.com/mediamatic/ikdisplay/internal/wire"
)

// RaceSource notifies when a participant finishes a timed race.
type RaceSource struct {
	base
	Race *store.Thing
}

func loadRace(r *store.SourceRecord, db Resolver) (Source, error) {
	race, err := thingAttr(r, db, AttrRaceID)
	if err != nil {
		return nil, err
	}
	return &RaceSource{base: baseFrom(r), Race: race}, nil
}

func (s *RaceSource) Kind() string { return KindRace }

func (s *RaceSource) NodeAddress() (address.Address, string, bool) {
	if s.Race == nil {
		return address.Address{}, "", false
	}
	id, err := address.IDOf(s.Race.URI)
	if err != nil {
		return address.Address{}, "", false
	}
	return address.Address{Host: address.PubsubHostOf(s.Race.URI)}, "race/" + itoa(id), true
}

// FormatPayload requires event and time (spec.md §3): title is the
// finisher's person.title (the race catalog defines no "alien" text, so an
// empty person.title gives an empty title), subtitle names the event and
// finish time.
func (s *RaceSource) FormatPayload(payload *wire.Element, catalog *texts.Catalog, lang texts.Language) (notification.Notification, bool) {
	event := payload.Child("event").Text()
	finishTime := payload.Child("time").Text()
	if event == "" || finishTime == "" {
		return nil, false
	}

	title := notification.PersonTitleOrAlien(payload, catalog, KindRace, lang)
	tmpl, _ := catalog.Lookup(KindRace, lang, "finished")
	subtitle := fillTwoPercentS(tmpl, event, finishTime)

	n := notification.Notification{
		"title":    title,
		"subtitle": subtitle,
		"icon":     notification.PersonIcon(payload),
	}
	kindVia, _ := catalog.Lookup(KindRace, lang, "via")
	if meta := notification.ViaMeta(s.via, kindVia, ""); meta != "" {
		n["meta"] = meta
	}
	return n, true
}

// fillTwoPercentS substitutes a template's two "%s" placeholders in
// order, as used by the race-finish template ("finished the %s in %s.").
func fillTwoPercentS(template, first, second string) string {
	s := strings.Replace(template, "%s", first, 1)
	return strings.Replace(s, "%s", second, 1)
}
