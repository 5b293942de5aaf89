package wire

import (
	"bytes"
	"encoding/xml"
	"sort"
)

// NotificationNamespace is the XML namespace used to wrap notifications on
// the wire, per spec.md §6.
const NotificationNamespace = "http://mediamatic.nl/ns/ikdisplay/2009/notification"

// Notification is an open string->string mapping describing a single
// display event. Recognized keys (title, subtitle, icon, picture, meta,
// via, html, link, uri) are conventional, not enforced by this type —
// callers validate "at least title or subtitle" where the spec requires it.
type Notification map[string]string

// HasContent reports whether the notification carries enough information
// to be worth emitting: at least a title or a subtitle.
func (n Notification) HasContent() bool {
	return n["title"] != "" || n["subtitle"] != ""
}

type notificationXML struct {
	XMLName xml.Name    `xml:"notification"`
	Fields  []fieldXML  `xml:",any"`
}

type fieldXML struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

// EncodeNotification renders a Notification as the
// <notification xmlns="...">...</notification> wire element, one child
// element per key, sorted by key for deterministic output.
func EncodeNotification(n Notification) ([]byte, error) {
	keys := make([]string, 0, len(n))
	for k := range n {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	doc := notificationXML{
		XMLName: xml.Name{Space: NotificationNamespace, Local: "notification"},
	}
	for _, k := range keys {
		doc.Fields = append(doc.Fields, fieldXML{
			XMLName: xml.Name{Local: k},
			Value:   n[k],
		})
	}

	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeNotification parses a <notification> wire element back into a
// Notification, preserving every key exactly (round-trip invariant in
// spec.md §6).
func DecodeNotification(data []byte) (Notification, error) {
	var doc notificationXML
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	n := make(Notification, len(doc.Fields))
	for _, f := range doc.Fields {
		n[f.XMLName.Local] = f.Value
	}
	return n, nil
}
