// Package wire provides a small typed-accessor tree over parsed XML
// payloads, so source formatters can write payload.Child("person").Child("title").Text()
// instead of hand-walking encoding/xml tokens. This replaces the dynamic
// attribute access the original Python source relied on (REDESIGN FLAGS,
// spec.md §9).
package wire

import (
	"encoding/xml"
	"strings"
)

// Element is a single node in a parsed payload tree.
type Element struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:"-"`
	chardata string
	children []*Element
}

// rawElement mirrors encoding/xml's generic recursive node shape, used only
// during unmarshalling.
type rawElement struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Chardata string     `xml:",chardata"`
	Children []rawElement `xml:",any"`
}

// Parse decodes an XML payload into an Element tree.
func Parse(data []byte) (*Element, error) {
	var raw rawElement
	if err := xml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return fromRaw(raw), nil
}

func fromRaw(raw rawElement) *Element {
	e := &Element{
		XMLName:  raw.XMLName,
		Attrs:    raw.Attrs,
		chardata: strings.TrimSpace(raw.Chardata),
	}
	for _, c := range raw.Children {
		e.children = append(e.children, fromRaw(c))
	}
	return e
}

// Name returns the local (namespace-stripped) element name.
func (e *Element) Name() string {
	if e == nil {
		return ""
	}
	return e.XMLName.Local
}

// Text returns the element's trimmed character data.
func (e *Element) Text() string {
	if e == nil {
		return ""
	}
	return e.chardata
}

// Attr returns the value of the named attribute, or "" if absent or e is nil.
func (e *Element) Attr(name string) string {
	if e == nil {
		return ""
	}
	for _, a := range e.Attrs {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// Child returns the first direct child with the given local name, or nil.
// Nil-safe: Child on a nil Element returns nil, so chains like
// payload.Child("person").Child("title").Text() never panic.
func (e *Element) Child(name string) *Element {
	if e == nil {
		return nil
	}
	for _, c := range e.children {
		if c.Name() == name {
			return c
		}
	}
	return nil
}

// Children returns all direct children with the given local name.
func (e *Element) Children(name string) []*Element {
	if e == nil {
		return nil
	}
	var out []*Element
	for _, c := range e.children {
		if c.Name() == name {
			out = append(out, c)
		}
	}
	return out
}

// AllChildren returns every direct child regardless of name.
func (e *Element) AllChildren() []*Element {
	if e == nil {
		return nil
	}
	return e.children
}

// LinkHref returns the href of the first atom:link child whose rel
// attribute matches, or "" if none is found. Used by activity-stream
// formatters to pull figure/enclosure URLs off author/object elements.
func (e *Element) LinkHref(rel string) string {
	for _, link := range e.Children("link") {
		if link.Attr("rel") == rel {
			return link.Attr("href")
		}
	}
	return ""
}
