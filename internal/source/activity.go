package source

import (
	"github.com/mediamatic/ikdisplay/internal/address"
	"github.com/mediamatic/ikdisplay/internal/notification"
	"github.com/mediamatic/ikdisplay/internal/store"
	"github.com/mediamatic/ikdisplay/internal/texts"
	"github.com/mediamatic/ikdisplay/internal/wire"
)

// activityFormat implements the shared activity-stream algorithm (spec.md
// §4.2): match the first supported verb present on the payload, honor the
// agent gate, fill the verb's localized template from object/target
// titles, and attach actor/picture metadata.
func activityFormat(payload *wire.Element, catalog *texts.Catalog, kind string, lang texts.Language, supportedVerbs []string, agentVerbs map[string]bool, via, siteTitle string) (notification.Notification, bool) {
	present := notification.ExtractVerbs(payload)
	verb, ok := notification.MatchVerb(supportedVerbs, present)
	if !ok {
		return nil, false
	}

	tmpl, ok := catalog.ActivityVerbTemplate(verb, lang)
	if !ok {
		return nil, false
	}

	if notification.HasAgent(payload) && !agentVerbs[verb] {
		return nil, false
	}

	actor := notification.ExtractActor(payload)
	subtitle := notification.FillTemplate(tmpl, notification.ObjectTitle(payload), notification.TargetTitle(payload))

	n := notification.Notification{
		"title":    actor.Title,
		"subtitle": subtitle,
	}
	if actor.Figure != "" {
		n["icon"] = actor.Figure
	}
	if picture := notification.ObjectPicture(payload); picture != "" {
		n["picture"] = picture
	}
	kindVia, _ := catalog.Lookup(kind, lang, "via")
	if meta := notification.ViaMeta(via, kindVia, siteTitle); meta != "" {
		n["meta"] = meta
	}
	return n, true
}

// activityStreamVerbs is the generic ActivityStream variant's supported
// verb set, most specific first; "post"/"like" are agent-gated per WoW's
// narrower requirement, "tag" is not agent-relevant.
var activityStreamVerbs = []string{"tag", "post", "like"}
var activityStreamAgentVerbs = map[string]bool{"post": true, "like": true}

// ActivityStreamSource is the general activity-stream notifier for a site;
// when Actor is set, only activity from that actor is observed.
type ActivityStreamSource struct {
	base
	Site  *store.Site
	Actor *store.Thing
}

func loadActivityStream(r *store.SourceRecord, db Resolver) (Source, error) {
	site, err := siteAttr(r, db, AttrSiteID)
	if err != nil {
		return nil, err
	}
	actor, err := thingAttr(r, db, AttrActorID)
	if err != nil {
		return nil, err
	}
	return &ActivityStreamSource{base: baseFrom(r), Site: site, Actor: actor}, nil
}

func (s *ActivityStreamSource) Kind() string { return KindActivityStream }

func (s *ActivityStreamSource) NodeAddress() (address.Address, string, bool) {
	if s.Site == nil {
		return address.Address{}, "", false
	}
	return address.Address{Host: address.PubsubHostOf(s.Site.URI)}, "activity", true
}

func (s *ActivityStreamSource) FormatPayload(payload *wire.Element, catalog *texts.Catalog, lang texts.Language) (notification.Notification, bool) {
	if s.Actor != nil && notification.AgentID(payload) != "" && notification.AgentID(payload) != s.Actor.URI {
		return nil, false
	}
	siteTitle := ""
	if s.Site != nil {
		siteTitle = s.Site.Title
	}
	return activityFormat(payload, catalog, KindActivityStream, lang, activityStreamVerbs, activityStreamAgentVerbs, s.via, siteTitle)
}

// WoWSource notifies on a specific agent's post/like activity.
type WoWSource struct {
	base
	Agent *store.Thing
}

func loadWoW(r *store.SourceRecord, db Resolver) (Source, error) {
	agent, err := thingAttr(r, db, AttrAgentID)
	if err != nil {
		return nil, err
	}
	return &WoWSource{base: baseFrom(r), Agent: agent}, nil
}

func (s *WoWSource) Kind() string { return KindWoW }

func (s *WoWSource) NodeAddress() (address.Address, string, bool) {
	if s.Agent == nil {
		return address.Address{}, "", false
	}
	return address.Address{Host: address.PubsubHostOf(s.Agent.URI)}, "activity", true
}

// FormatPayload additionally requires payload.agent.id == source.Agent.URI
// (spec.md §4.2: "WoW source additionally requires payload.agent.id ==
// source.agent.uri").
func (s *WoWSource) FormatPayload(payload *wire.Element, catalog *texts.Catalog, lang texts.Language) (notification.Notification, bool) {
	if s.Agent == nil || notification.AgentID(payload) != s.Agent.URI {
		return nil, false
	}
	return activityFormat(payload, catalog, KindWoW, lang, []string{"post", "like"}, map[string]bool{"post": true, "like": true}, s.via, "")
}

// CheckinsSource notifies on checkin activity at a site.
type CheckinsSource struct {
	base
	Site *store.Site
}

func loadCheckins(r *store.SourceRecord, db Resolver) (Source, error) {
	site, err := siteAttr(r, db, AttrSiteID)
	if err != nil {
		return nil, err
	}
	return &CheckinsSource{base: baseFrom(r), Site: site}, nil
}

func (s *CheckinsSource) Kind() string { return KindCheckins }

func (s *CheckinsSource) NodeAddress() (address.Address, string, bool) {
	if s.Site == nil {
		return address.Address{}, "", false
	}
	return address.Address{Host: address.PubsubHostOf(s.Site.URI)}, "activity", true
}

func (s *CheckinsSource) FormatPayload(payload *wire.Element, catalog *texts.Catalog, lang texts.Language) (notification.Notification, bool) {
	siteTitle := ""
	if s.Site != nil {
		siteTitle = s.Site.Title
	}
	return activityFormat(payload, catalog, KindCheckins, lang, []string{"checkin"}, map[string]bool{"checkin": true}, s.via, siteTitle)
}

// CommitsSource notifies on commit activity to an explicit, literal
// (service, nodeIdentifier) — not derived from a Thing/Site reference.
type CommitsSource struct {
	base
	Service        string
	NodeIdentifier string
}

func loadCommits(r *store.SourceRecord) (Source, error) {
	return &CommitsSource{
		base:           baseFrom(r),
		Service:        r.Attrs[AttrService],
		NodeIdentifier: r.Attrs[AttrNode],
	}, nil
}

func (s *CommitsSource) Kind() string { return KindCommits }

func (s *CommitsSource) NodeAddress() (address.Address, string, bool) {
	if s.Service == "" || s.NodeIdentifier == "" {
		return address.Address{}, "", false
	}
	return address.Address{Host: s.Service}, s.NodeIdentifier, true
}

// FormatPayload extends the activity-stream algorithm with the "commit"
// verb and appends the first line of payload.object.message to the
// subtitle (spec.md §4.2).
func (s *CommitsSource) FormatPayload(payload *wire.Element, catalog *texts.Catalog, lang texts.Language) (notification.Notification, bool) {
	n, ok := activityFormat(payload, catalog, KindCommits, lang, []string{"commit"}, map[string]bool{"commit": true}, s.via, "")
	if !ok {
		return nil, false
	}
	if msg := notification.FirstLine(payload.Child("object").Child("message").Text()); msg != "" {
		n["subtitle"] = n["subtitle"] + ": " + msg
	}
	return n, true
}
