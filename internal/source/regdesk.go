package source

import (
	"math/rand"

	"github.com/mediamatic/ikdisplay/internal/address"
	"github.com/mediamatic/ikdisplay/internal/notification"
	"github.com/mediamatic/ikdisplay/internal/store"
	"github.com/mediamatic/ikdisplay/internal/texts"
	"github.com/mediamatic/ikdisplay/internal/wire"
)

// RegDeskSource notifies when a registration desk checks someone in.
type RegDeskSource struct {
	base
	Event *store.Thing
}

func loadRegDesk(r *store.SourceRecord, db Resolver) (Source, error) {
	event, err := thingAttr(r, db, AttrEventID)
	if err != nil {
		return nil, err
	}
	return &RegDeskSource{base: baseFrom(r), Event: event}, nil
}

func (s *RegDeskSource) Kind() string { return KindRegDesk }

func (s *RegDeskSource) NodeAddress() (address.Address, string, bool) {
	if s.Event == nil {
		return address.Address{}, "", false
	}
	id, err := address.IDOf(s.Event.URI)
	if err != nil {
		return address.Address{}, "", false
	}
	return address.Address{Host: address.PubsubHostOf(s.Event.URI)}, "regdesk/by_event/" + itoa(id), true
}

// FormatPayload picks subtitle from a random localized greeting phrase
// (original_source/ikdisplay/source.py:426-441's random.choice over
// TEXTS['regdesk']), not a single fixed string.
func (s *RegDeskSource) FormatPayload(payload *wire.Element, catalog *texts.Catalog, lang texts.Language) (notification.Notification, bool) {
	title := notification.PersonTitleOrAlien(payload, catalog, KindRegDesk, lang)

	phrases, ok := catalog.LookupList(KindRegDesk, lang, "regdesk")
	if !ok || len(phrases) == 0 {
		return nil, false
	}
	subtitle := phrases[rand.Intn(len(phrases))]

	n := notification.Notification{
		"title":    title,
		"subtitle": subtitle,
		"icon":     notification.PersonIcon(payload),
	}
	kindVia, _ := catalog.Lookup(KindRegDesk, lang, "via")
	if meta := notification.ViaMeta(s.via, kindVia, ""); meta != "" {
		n["meta"] = meta
	}
	return n, true
}
