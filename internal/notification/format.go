// Package notification holds the formatting helpers shared across Source
// variants (spec.md §4.2 "Common formatting"): the vote-family lookup
// algorithm, the "via" meta resolution rule, and the activity-stream verb
// matching/template-fill algorithm. Each Source variant (internal/source)
// composes these helpers with its own kind-specific rules.
package notification

import (
	"strconv"
	"strings"

	"github.com/mediamatic/ikdisplay/internal/texts"
	"github.com/mediamatic/ikdisplay/internal/wire"
)

// Notification is the open string-keyed display record. It is the same
// shape as wire.Notification; formatters build one directly rather than
// going through the wire codec (that's only needed at the publish/push
// boundary).
type Notification = wire.Notification

// ViaMeta resolves a notification's "via" field: the source's own
// override, else the source kind's literal default, else (where
// specified) the site title. Returns "" when none apply, in which case
// callers should leave the "meta" key unset.
func ViaMeta(override, kindDefault, siteTitle string) string {
	switch {
	case override != "":
		return "via " + override
	case kindDefault != "":
		return "via " + kindDefault
	case siteTitle != "":
		return "via " + siteTitle
	default:
		return ""
	}
}

// PersonTitleOrAlien looks up payload.person.title, falling back to the
// kind's localized "alien" text when empty (spec.md §4.2 step 1).
func PersonTitleOrAlien(payload *wire.Element, catalog *texts.Catalog, kind string, lang texts.Language) string {
	if title := payload.Child("person").Child("title").Text(); title != "" {
		return title
	}
	alien, _ := catalog.Lookup(kind, lang, "alien")
	return alien
}

// PersonIcon returns payload.person.image.
func PersonIcon(payload *wire.Element) string {
	return payload.Child("person").Child("image").Text()
}

// VoteSubtitle implements spec.md §4.2 step 2: find the
// payload.question.answers child whose answer_id matches
// payload.vote.answer_id_ref, and fill the voted template with its title.
// template, when non-empty, overrides the localized "voted" text.
// Returns "", false when the referenced answer cannot be found.
func VoteSubtitle(payload *wire.Element, catalog *texts.Catalog, kind string, lang texts.Language, template string) (string, bool) {
	ref := payload.Child("vote").Child("answer_id_ref").Text()
	if ref == "" {
		return "", false
	}

	var answerTitle string
	found := false
	for _, item := range payload.Child("question").Child("answers").Children("item") {
		if item.Child("answer_id").Text() == ref {
			answerTitle = item.Child("title").Text()
			found = true
			break
		}
	}
	if !found {
		return "", false
	}

	if template == "" {
		template, _ = catalog.Lookup(kind, lang, "voted")
	}
	if template == "" {
		return "", false
	}
	return fillPercentS(template, answerTitle), true
}

// fillPercentS substitutes the single "%s" placeholder in a printf-style
// template, as used by the "voted" and singular/plural ikcam templates.
func fillPercentS(template, value string) string {
	return strings.Replace(template, "%s", value, 1)
}

// ActorInfo is the author/actor information extracted from an
// activity-stream payload.
type ActorInfo struct {
	Title  string
	Figure string
}

// ExtractActor implements spec.md §4.2 step 4: the actor's title is the
// first atom:name under payload.author; its figure is payload.author's
// link rel="figure" href, with a crop-to-thumbnail query string appended
// when present.
func ExtractActor(payload *wire.Element) ActorInfo {
	author := payload.Child("author")
	info := ActorInfo{Title: author.Child("name").Text()}
	if href := author.LinkHref("figure"); href != "" {
		info.Figure = href + "?width=80&height=80&filter=crop"
	}
	return info
}

// ObjectPicture implements spec.md §4.2 step 5: when payload.object's
// object-type is "attachment", the picture is its link rel="figure" href
// with a display-size query string appended.
func ObjectPicture(payload *wire.Element) string {
	object := payload.Child("object")
	if object.Child("object-type").Text() != "attachment" {
		return ""
	}
	if href := object.LinkHref("figure"); href != "" {
		return href + "?width=480"
	}
	return ""
}

// ExtractVerbs collects the set of verb URIs/strings present on an
// activity-stream payload (its <verb> children).
func ExtractVerbs(payload *wire.Element) map[string]bool {
	verbs := make(map[string]bool)
	for _, v := range payload.Children("verb") {
		if t := v.Text(); t != "" {
			verbs[t] = true
		}
	}
	return verbs
}

// MatchVerb walks supportedVerbs in order (most specific first) and
// returns the first one present in the payload's verb set.
func MatchVerb(supportedVerbs []string, present map[string]bool) (string, bool) {
	for _, v := range supportedVerbs {
		if present[v] {
			return v, true
		}
	}
	return "", false
}

// FillTemplate substitutes %object% and %target% placeholders with the
// given titles (spec.md §4.2 step 6).
func FillTemplate(template, object, target string) string {
	r := strings.NewReplacer("%object%", object, "%target%", target)
	return r.Replace(template)
}

// HasAgent reports whether the payload declares a non-null <agent> child,
// used by the activity-stream formatter's agentVerbs gate.
func HasAgent(payload *wire.Element) bool {
	return payload.Child("agent") != nil
}

// AgentID returns payload.agent.id — the agent's identifying URI.
func AgentID(payload *wire.Element) string {
	return payload.Child("agent").Attr("id")
}

// FirstLine returns the first newline-terminated line of s (used by the
// Commits formatter to append a commit's summary line).
func FirstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// ObjectTitle and TargetTitle are small accessors used by activity-stream
// variants (ActivityStream, WoW, Checkins, Commits, IkCam) to pull the
// title used in %object%/%target% substitution.
func ObjectTitle(payload *wire.Element) string {
	return payload.Child("object").Child("title").Text()
}

func TargetTitle(payload *wire.Element) string {
	return payload.Child("target").Child("title").Text()
}

// AuthorNames collects every atom:name across every <author> element, used
// by the IkCam formatter to build its singular/plural credit line.
func AuthorNames(payload *wire.Element) []string {
	var names []string
	for _, author := range payload.Children("author") {
		if n := author.Child("name").Text(); n != "" {
			names = append(names, n)
		}
	}
	return names
}

// ParseIntID parses a decimal integer id, returning 0 on failure — used
// where a malformed numeric field should simply fail a match rather than
// error out the whole formatter.
func ParseIntID(s string) (int64, bool) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
