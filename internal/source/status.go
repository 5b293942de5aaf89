package source

import (
	"strings"

	"github.com/mediamatic/ikdisplay/internal/address"
	"github.com/mediamatic/ikdisplay/internal/notification"
	"github.com/mediamatic/ikdisplay/internal/store"
	"github.com/mediamatic/ikdisplay/internal/texts"
	"github.com/mediamatic/ikdisplay/internal/wire"
)

// StatusSource notifies on status updates posted to a site. The body text
// is dropped when empty or exactly "is" (an artifact of status-update UIs
// that pre-fill "is ___").
type StatusSource struct {
	base
	Site  *store.Site
	Event *store.Thing
	User  *store.Thing
}

func loadStatus(r *store.SourceRecord, db Resolver) (Source, error) {
	site, err := siteAttr(r, db, AttrSiteID)
	if err != nil {
		return nil, err
	}
	event, err := thingAttr(r, db, AttrEventID)
	if err != nil {
		return nil, err
	}
	user, err := thingAttr(r, db, AttrUserID)
	if err != nil {
		return nil, err
	}
	return &StatusSource{base: baseFrom(r), Site: site, Event: event, User: user}, nil
}

func (s *StatusSource) Kind() string { return KindStatus }

func (s *StatusSource) NodeAddress() (address.Address, string, bool) {
	if s.Site == nil {
		return address.Address{}, "", false
	}
	return address.Address{Host: address.PubsubHostOf(s.Site.URI)}, "status", true
}

func (s *StatusSource) FormatPayload(payload *wire.Element, catalog *texts.Catalog, lang texts.Language) (notification.Notification, bool) {
	text := strings.TrimSpace(payload.Child("status").Text())
	if text == "" || text == "is" {
		return nil, false
	}

	siteTitle := ""
	if s.Site != nil {
		siteTitle = s.Site.Title
	}

	n := notification.Notification{
		"title":    payload.Child("person").Child("title").Text(),
		"subtitle": text,
		"icon":     notification.PersonIcon(payload),
	}
	kindVia, _ := catalog.Lookup(KindStatus, lang, "via")
	if meta := notification.ViaMeta(s.via, kindVia, siteTitle); meta != "" {
		n["meta"] = meta
	}
	return n, true
}
