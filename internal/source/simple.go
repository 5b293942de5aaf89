package source

import (
	"strings"

	"github.com/mediamatic/ikdisplay/internal/address"
	"github.com/mediamatic/ikdisplay/internal/notification"
	"github.com/mediamatic/ikdisplay/internal/store"
	"github.com/mediamatic/ikdisplay/internal/texts"
	"github.com/mediamatic/ikdisplay/internal/wire"
)

// defaultSimpleElements is the element-name map used when a SimpleSource
// is configured without an explicit one: notification key -> payload
// child element name.
var defaultSimpleElements = map[string]string{
	"title":    "title",
	"subtitle": "subtitle",
	"icon":     "image",
}

// SimpleSource notifies on a literal (service, nodeIdentifier) using a
// configurable element map: each notification key is read from the
// payload child element named by its map entry (e.g. "icon" is read
// from "image").
type SimpleSource struct {
	base
	Service        string
	NodeIdentifier string
	Elements       map[string]string
}

func loadSimple(r *store.SourceRecord) Source {
	elements := defaultSimpleElements
	if raw := r.Attrs[AttrElements]; raw != "" {
		elements = parseElementsAttr(raw)
	}
	return &SimpleSource{
		base:           baseFrom(r),
		Service:        r.Attrs[AttrService],
		NodeIdentifier: r.Attrs[AttrNode],
		Elements:       elements,
	}
}

func parseElementsAttr(raw string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) == 2 && kv[0] != "" {
			out[kv[0]] = kv[1]
		}
	}
	return out
}

func (s *SimpleSource) Kind() string { return KindSimple }

func (s *SimpleSource) NodeAddress() (address.Address, string, bool) {
	if s.Service == "" || s.NodeIdentifier == "" {
		return address.Address{}, "", false
	}
	return address.Address{Host: s.Service}, s.NodeIdentifier, true
}

func (s *SimpleSource) FormatPayload(payload *wire.Element, catalog *texts.Catalog, lang texts.Language) (notification.Notification, bool) {
	n := notification.Notification{}
	for notifKey, elementName := range s.Elements {
		if v := payload.Child(elementName).Text(); v != "" {
			n[notifKey] = v
		}
	}
	if !n.HasContent() {
		return nil, false
	}
	kindVia, _ := catalog.Lookup(KindSimple, lang, "via")
	if meta := notification.ViaMeta(s.via, kindVia, ""); meta != "" {
		n["meta"] = meta
	}
	return n, true
}
