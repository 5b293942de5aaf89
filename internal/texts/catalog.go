// Package texts implements the shared, language-keyed notification text
// catalog described in spec.md §4.2 ("Common formatting"): a per-source-kind
// table of localized strings/templates that aggregates a class hierarchy's
// entries, a subclass's entries overriding or extending its parents'.
package texts

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// Language is one of the two supported feed languages.
type Language string

const (
	English Language = "en"
	Dutch   Language = "nl"
)

// kindEntry is the raw YAML shape for one source kind's catalog section.
type kindEntry struct {
	Parent string                       `yaml:"parent"`
	Texts  map[string]map[string]any    `yaml:"texts"` // lang -> key -> string|[]string
}

type rawCatalog struct {
	Kinds         map[string]kindEntry         `yaml:"kinds"`
	ActivityVerbs map[string]map[string]string `yaml:"activity_verbs"` // verb -> lang -> template
}

// Catalog is the resolved, queryable text store.
type Catalog struct {
	raw rawCatalog
	// merged[kind][lang][key] = value (string or []string, stored as any)
	merged map[string]map[string]map[string]any
}

// Default returns the catalog embedded in the binary. It is parsed once per
// call; callers typically load it a single time at startup and share it.
func Default() (*Catalog, error) {
	return Load(defaultCatalogYAML)
}

// Load parses a catalog from YAML bytes in the embedded schema (kinds:
// {<kind>: {parent: <kind>, texts: {<lang>: {<key>: <string|list>}}}},
// activity_verbs: {<verb>: {<lang>: <template>}}).
func Load(data []byte) (*Catalog, error) {
	var raw rawCatalog
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("texts: parse catalog: %w", err)
	}

	c := &Catalog{raw: raw, merged: make(map[string]map[string]map[string]any)}
	for kind := range raw.Kinds {
		c.merged[kind] = c.resolve(kind, make(map[string]bool))
	}
	return c, nil
}

// resolve builds the merged lang->key->value table for kind by walking its
// parent chain root-first, then overlaying kind's own entries last so that
// a subclass's entries win on key collisions.
func (c *Catalog) resolve(kind string, seen map[string]bool) map[string]map[string]any {
	if seen[kind] {
		return map[string]map[string]any{}
	}
	seen[kind] = true

	entry, ok := c.raw.Kinds[kind]
	if !ok {
		return map[string]map[string]any{}
	}

	out := map[string]map[string]any{}
	if entry.Parent != "" {
		for lang, m := range c.resolve(entry.Parent, seen) {
			out[lang] = make(map[string]any, len(m))
			for k, v := range m {
				out[lang][k] = v
			}
		}
	}
	for lang, m := range entry.Texts {
		if out[lang] == nil {
			out[lang] = make(map[string]any)
		}
		for k, v := range m {
			out[lang][k] = v
		}
	}
	return out
}

// Lookup returns the string text for (kind, lang, key), or "", false if not
// present anywhere in kind's hierarchy for that language.
func (c *Catalog) Lookup(kind string, lang Language, key string) (string, bool) {
	byLang, ok := c.merged[kind]
	if !ok {
		return "", false
	}
	m, ok := byLang[string(lang)]
	if !ok {
		return "", false
	}
	v, ok := m[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// LookupList returns a list-valued text entry, e.g. IkMic's "interrupt"
// list of random lines.
func (c *Catalog) LookupList(kind string, lang Language, key string) ([]string, bool) {
	byLang, ok := c.merged[kind]
	if !ok {
		return nil, false
	}
	m, ok := byLang[string(lang)]
	if !ok {
		return nil, false
	}
	v, ok := m[key]
	if !ok {
		return nil, false
	}
	raw, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out, true
}

// ActivityVerbTemplate returns the localized template for an activity-stream
// verb, or "", false if the verb has no template registered for that
// language — treated by the activity formatter as "drop this notification".
func (c *Catalog) ActivityVerbTemplate(verb string, lang Language) (string, bool) {
	byLang, ok := c.raw.ActivityVerbs[verb]
	if !ok {
		return "", false
	}
	tmpl, ok := byLang[string(lang)]
	return tmpl, ok
}
