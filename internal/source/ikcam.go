package source

import (
	"strings"

	"github.com/mediamatic/ikdisplay/internal/address"
	"github.com/mediamatic/ikdisplay/internal/notification"
	"github.com/mediamatic/ikdisplay/internal/store"
	"github.com/mediamatic/ikdisplay/internal/texts"
	"github.com/mediamatic/ikdisplay/internal/wire"
)

// IkCamSource notifies when a photo is taken by (or at) an IkCam booth.
// Unlike the other activity-stream variants it derives its node from the
// plain content host (not pubsub.*), and builds its title from every
// author's name rather than a single actor (spec.md §4.2).
type IkCamSource struct {
	base
	Event   *store.Thing
	Creator *store.Thing
}

func loadIkCam(r *store.SourceRecord, db Resolver) (Source, error) {
	event, err := thingAttr(r, db, AttrEventID)
	if err != nil {
		return nil, err
	}
	creator, err := thingAttr(r, db, AttrCreatorID)
	if err != nil {
		return nil, err
	}
	return &IkCamSource{base: baseFrom(r), Event: event, Creator: creator}, nil
}

func (s *IkCamSource) Kind() string { return KindIkCam }

// NodeAddress is (hostOf(creator ?? event), "ikcam/{idOf(creator)}") when a
// creator is set, else (hostOf(event), "ikcam/by_event/{idOf(event)}").
// Undefined when both are unset.
func (s *IkCamSource) NodeAddress() (address.Address, string, bool) {
	if s.Creator != nil {
		id, err := address.IDOf(s.Creator.URI)
		if err != nil {
			return address.Address{}, "", false
		}
		return address.Address{Host: address.HostOf(s.Creator.URI)}, "ikcam/" + itoa(id), true
	}
	if s.Event != nil {
		id, err := address.IDOf(s.Event.URI)
		if err != nil {
			return address.Address{}, "", false
		}
		return address.Address{Host: address.HostOf(s.Event.URI)}, "ikcam/by_event/" + itoa(id), true
	}
	return address.Address{}, "", false
}

func (s *IkCamSource) FormatPayload(payload *wire.Element, catalog *texts.Catalog, lang texts.Language) (notification.Notification, bool) {
	present := notification.ExtractVerbs(payload)
	if !present["ikcam"] {
		return nil, false
	}

	if s.Creator != nil && notification.AgentID(payload) != "" && notification.AgentID(payload) != s.Creator.URI {
		return nil, false
	}
	if s.Event != nil {
		if target := notification.TargetTitle(payload); target == "" {
			return nil, false
		}
	}

	names := notification.AuthorNames(payload)
	if len(names) == 0 {
		return nil, false
	}

	key := "singular"
	if len(names) > 1 {
		key = "plural"
	}
	tmpl, _ := catalog.Lookup(KindIkCam, lang, key)
	joinedNames := joinWithAnd(names)
	subtitle := strings.Replace(tmpl, "%s", joinedNames, 1)

	if target := notification.TargetTitle(payload); target != "" {
		subtitle = subtitle + " — " + target
	}

	n := notification.Notification{"title": joinedNames, "subtitle": subtitle}
	if picture := notification.ObjectPicture(payload); picture != "" {
		n["picture"] = picture
	}
	kindVia, _ := catalog.Lookup(KindIkCam, lang, "via")
	if meta := notification.ViaMeta(s.via, kindVia, ""); meta != "" {
		n["meta"] = meta
	}
	return n, true
}

// joinWithAnd joins names with ", " between all but the last pair, and
// " and " before the last (spec.md's IkCam plural credit line: "Alice,
// Bob and Carol").
func joinWithAnd(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	default:
		return strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1]
	}
}
