package source

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/mediamatic/ikdisplay/internal/address"
	"github.com/mediamatic/ikdisplay/internal/notification"
	"github.com/mediamatic/ikdisplay/internal/store"
	"github.com/mediamatic/ikdisplay/internal/texts"
	"github.com/mediamatic/ikdisplay/internal/wire"
)

// URLEntity mirrors a single entry of a tweet's entities.urls (spec.md §6).
type URLEntity struct {
	URL         string
	ExpandedURL string
	DisplayURL  string
	StartIndex  int
	EndIndex    int
}

// TwitterStatus is the minimal decoded microblog status TwitterSource
// matches and formats against; internal/microblog builds one from each
// inbound streamed status and fills ImageURL in via its image-URL
// enrichment step before fan-out (spec.md §4.5).
type TwitterStatus struct {
	Text        string
	UserID      int64
	URLEntities []URLEntity
	HasMedia    bool
	MediaURL    string
	ImageURL    string
}

// TwitterSource notifies on microblog statuses matching a term/user-id
// filter. It is not pub/sub-backed: the Microblog Monitor/Dispatcher (C8,
// C9) deliver statuses to it directly.
type TwitterSource struct {
	base
	Terms   []string
	UserIDs []string
}

func loadTwitter(r *store.SourceRecord) Source {
	return &TwitterSource{
		base:    baseFrom(r),
		Terms:   splitNonEmpty(r.Attrs[AttrTerms]),
		UserIDs: splitNonEmpty(r.Attrs[AttrUserIDs]),
	}
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (s *TwitterSource) Kind() string { return KindTwitter }

// NodeAddress is always undefined: Twitter sources are fed by the
// Microblog Monitor, not the pub/sub dispatcher.
func (s *TwitterSource) NodeAddress() (address.Address, string, bool) {
	return address.Address{}, "", false
}

// FormatPayload is unused for Twitter sources; use FormatStatus instead.
func (s *TwitterSource) FormatPayload(payload *wire.Element, catalog *texts.Catalog, lang texts.Language) (notification.Notification, bool) {
	return nil, false
}

// Matches implements spec.md §4.2's Twitter matching rules.
func (s *TwitterSource) Matches(status TwitterStatus) bool {
	if len(s.Terms) == 0 && len(s.UserIDs) == 0 {
		return true
	}
	for _, id := range s.UserIDs {
		if id == strconv.FormatInt(status.UserID, 10) {
			return true
		}
	}
	for _, term := range s.Terms {
		if matchesTerm(term, status.Text) {
			return true
		}
	}
	return false
}

// FormatStatus builds a notification from a matching status, rewriting
// any URL entity spans with their display URL (processed in reverse index
// order so earlier indices stay valid) and emitting a parallel "html"
// field with anchor tags over the original entities.
func (s *TwitterSource) FormatStatus(status TwitterStatus) (notification.Notification, bool) {
	if !s.Matches(status) {
		return nil, false
	}

	subtitle := rewriteURLSpans(status.Text, status.URLEntities)
	html := buildHTML(status.Text, status.URLEntities)

	n := notification.Notification{"subtitle": subtitle}
	if html != "" {
		n["html"] = html
	}
	if status.ImageURL != "" {
		n["image_url"] = status.ImageURL
	}
	return n, true
}

func rewriteURLSpans(text string, entities []URLEntity) string {
	sorted := append([]URLEntity(nil), entities...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StartIndex > sorted[j].StartIndex })

	runes := []rune(text)
	for _, e := range sorted {
		if e.StartIndex < 0 || e.EndIndex > len(runes) || e.StartIndex > e.EndIndex {
			continue
		}
		display := e.DisplayURL
		if display == "" {
			display = e.ExpandedURL
		}
		if display == "" {
			display = e.URL
		}
		runes = append(runes[:e.StartIndex], append([]rune(display), runes[e.EndIndex:]...)...)
	}
	return string(runes)
}

func buildHTML(text string, entities []URLEntity) string {
	if len(entities) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(text)
	for _, e := range entities {
		display := e.DisplayURL
		if display == "" {
			display = e.ExpandedURL
		}
		sb.WriteString(fmt.Sprintf(" <a href='%s'>%s</a>", e.URL, display))
	}
	return sb.String()
}

// matchesTerm implements the unquoted-permutation / quoted-phrase rule.
func matchesTerm(term, text string) bool {
	term = strings.TrimSpace(term)
	if len(term) >= 2 && strings.HasPrefix(term, `"`) && strings.HasSuffix(term, `"`) {
		phrase := term[1 : len(term)-1]
		return strings.Contains(strings.ToLower(text), strings.ToLower(phrase))
	}

	words := strings.Fields(term)
	if len(words) == 0 {
		return false
	}
	if len(words) == 1 {
		re := regexp.MustCompile("(?is)" + regexp.QuoteMeta(words[0]))
		return re.MatchString(text)
	}

	for _, perm := range permutations(words) {
		quoted := make([]string, len(perm))
		for i, w := range perm {
			quoted[i] = regexp.QuoteMeta(w)
		}
		re := regexp.MustCompile("(?is)" + strings.Join(quoted, ".*"))
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

func permutations(words []string) [][]string {
	if len(words) <= 1 {
		return [][]string{words}
	}
	var out [][]string
	for i, w := range words {
		rest := make([]string, 0, len(words)-1)
		rest = append(rest, words[:i]...)
		rest = append(rest, words[i+1:]...)
		for _, p := range permutations(rest) {
			out = append(out, append([]string{w}, p...))
		}
	}
	return out
}
