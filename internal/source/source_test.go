package source

import (
	"testing"

	"github.com/mediamatic/ikdisplay/internal/store"
	"github.com/mediamatic/ikdisplay/internal/texts"
	"github.com/mediamatic/ikdisplay/internal/wire"
)

// fakeResolver satisfies Resolver without a database, for unit tests.
type fakeResolver struct {
	things map[int64]*store.Thing
	sites  map[int64]*store.Site
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{things: map[int64]*store.Thing{}, sites: map[int64]*store.Site{}}
}

func (f *fakeResolver) GetThing(id int64) (*store.Thing, error) { return f.things[id], nil }
func (f *fakeResolver) GetSite(id int64) (*store.Site, error)   { return f.sites[id], nil }

func mustCatalog(t *testing.T) *texts.Catalog {
	t.Helper()
	c, err := texts.Default()
	if err != nil {
		t.Fatalf("texts.Default: %v", err)
	}
	return c
}

// S1 at the Source level: VoteSource end to end.
func TestVoteSource_S1(t *testing.T) {
	r := newFakeResolver()
	r.things[1] = &store.Thing{ID: 1, Title: "Shadow Search Platform poll", URI: "http://example.mediamatic.nl/id/160225"}

	rec := &store.SourceRecord{ID: 1, Kind: KindVote, Enabled: true, Via: "ikPoll",
		Attrs: map[string]string{AttrQuestionID: "1"}}
	src, err := Load(rec, r)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	svc, node, ok := src.NodeAddress()
	if !ok {
		t.Fatal("expected defined node address")
	}
	if svc.Host != "pubsub.example.mediamatic.nl" || node != "vote/160225" {
		t.Errorf("node address = (%v, %q)", svc, node)
	}

	doc := []byte(`<rsp><vote><answer_id_ref>160252</answer_id_ref></vote>` +
		`<person><title>Fred Pook</title><image>http://example.com/124445.jpg</image></person>` +
		`<question><answers><item><answer_id>160252</answer_id><title>Shadow Search Platform</title></item></answers></question></rsp>`)
	payload, err := wire.Parse(doc)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	catalog := mustCatalog(t)
	n, ok := src.FormatPayload(payload, catalog, texts.English)
	if !ok {
		t.Fatal("expected a notification")
	}
	if n["title"] != "Fred Pook" || n["subtitle"] != "voted for Shadow Search Platform" || n["meta"] != "via ikPoll" {
		t.Errorf("got %+v", n)
	}
}

// P2: nodeAddress is undefined iff all referenced Things are unset.
func TestVoteSource_P2_UndefinedWhenQuestionUnset(t *testing.T) {
	rec := &store.SourceRecord{ID: 1, Kind: KindVote, Enabled: true}
	src, err := Load(rec, newFakeResolver())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, _, ok := src.NodeAddress(); ok {
		t.Error("expected undefined node address with no question reference")
	}
}

func TestPresenceSource_AlienWhenNoPersonTitle(t *testing.T) {
	r := newFakeResolver()
	r.things[1] = &store.Thing{ID: 1, URI: "http://example.mediamatic.nl/id/1"}
	rec := &store.SourceRecord{Kind: KindPresence, Enabled: true, Attrs: map[string]string{AttrQuestionID: "1"}}
	src, err := Load(rec, r)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	payload, _ := wire.Parse([]byte(`<rsp><person><title></title></person></rsp>`))
	n, ok := src.FormatPayload(payload, mustCatalog(t), texts.English)
	if !ok {
		t.Fatal("expected notification")
	}
	if n["title"] != "An illegal alien" || n["subtitle"] != "An illegal alien is present" {
		t.Errorf("got %+v", n)
	}
}

func TestStatusSource_DropsEmptyAndIs(t *testing.T) {
	site := &store.Site{ID: 1, Title: "Mediamatic", URI: "http://www.mediamatic.nl/"}
	r := newFakeResolver()
	r.sites[1] = site
	rec := &store.SourceRecord{Kind: KindStatus, Enabled: true, Attrs: map[string]string{AttrSiteID: "1"}}
	src, err := Load(rec, r)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	for _, body := range []string{"", "is"} {
		payload, _ := wire.Parse([]byte(`<rsp><status>` + body + `</status></rsp>`))
		if _, ok := src.FormatPayload(payload, mustCatalog(t), texts.English); ok {
			t.Errorf("expected drop for status body %q", body)
		}
	}

	payload, _ := wire.Parse([]byte(`<rsp><status>is painting</status><person><title>Joe</title></person></rsp>`))
	n, ok := src.FormatPayload(payload, mustCatalog(t), texts.English)
	if !ok {
		t.Fatal("expected notification")
	}
	if n["subtitle"] != "is painting" || n["meta"] != "via Mediamatic" {
		t.Errorf("got %+v", n)
	}
}

// S4 via the ActivityStreamSource.
func TestActivityStreamSource_TagVerb(t *testing.T) {
	site := &store.Site{ID: 1, Title: "Mediamatic", URI: "http://www.mediamatic.nl/"}
	r := newFakeResolver()
	r.sites[1] = site
	rec := &store.SourceRecord{Kind: KindActivityStream, Enabled: true, Attrs: map[string]string{AttrSiteID: "1"}}
	src, err := Load(rec, r)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	doc := []byte(`<rsp><verb>tag</verb>` +
		`<author><name>Ralph Meijer</name></author>` +
		`<object><title>Birgit Meijer</title></object>` +
		`<target><title>Test artikel</title></target></rsp>`)
	payload, err := wire.Parse(doc)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	n, ok := src.FormatPayload(payload, mustCatalog(t), texts.English)
	if !ok {
		t.Fatal("expected notification")
	}
	if n["title"] != "Ralph Meijer" || n["subtitle"] != "tagged Birgit Meijer in Test artikel" {
		t.Errorf("got %+v", n)
	}
}

func TestCommitsSource_LiteralNodeAndMessageSuffix(t *testing.T) {
	rec := &store.SourceRecord{Kind: KindCommits, Enabled: true,
		Attrs: map[string]string{AttrService: "pubsub.git.example.nl", AttrNode: "repo/ikdisplay"}}
	src, err := Load(rec, newFakeResolver())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	svc, node, ok := src.NodeAddress()
	if !ok || svc.Host != "pubsub.git.example.nl" || node != "repo/ikdisplay" {
		t.Errorf("node address = (%v, %q, %v)", svc, node, ok)
	}

	doc := []byte(`<rsp><verb>commit</verb>` +
		`<author><name>Fred</name></author>` +
		`<object><title>Fixed a bug</title><message>Fixed a bug&#10;longer body</message></object></rsp>`)
	payload, err := wire.Parse(doc)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	n, ok := src.FormatPayload(payload, mustCatalog(t), texts.English)
	if !ok {
		t.Fatal("expected notification")
	}
	if n["subtitle"] != "committed Fixed a bug: Fixed a bug" {
		t.Errorf("got %+v", n)
	}
}

// S6: Twitter unquoted vs quoted term matching.
func TestTwitterSource_S6(t *testing.T) {
	unquoted := &TwitterSource{Terms: []string{"twisted python"}}
	if !unquoted.Matches(TwitterStatus{Text: "twisted python rocks"}) {
		t.Error("unquoted term should match either word order")
	}

	quoted := &TwitterSource{Terms: []string{`"python twisted"`}}
	if quoted.Matches(TwitterStatus{Text: "twisted python rocks"}) {
		t.Error("quoted phrase should only match the literal order")
	}
}

func TestTwitterSource_EmptyFilterMatchesEverything(t *testing.T) {
	s := &TwitterSource{}
	if !s.Matches(TwitterStatus{Text: "anything at all"}) {
		t.Error("empty terms and userIDs should match everything")
	}
}

func TestTwitterSource_UserIDMatch(t *testing.T) {
	s := &TwitterSource{UserIDs: []string{"42"}}
	if !s.Matches(TwitterStatus{UserID: 42, Text: "irrelevant"}) {
		t.Error("expected user id match")
	}
	if s.Matches(TwitterStatus{UserID: 99, Text: "irrelevant"}) {
		t.Error("did not expect match for different user id")
	}
}

func TestTwitterSource_FormatStatus_URLRewrite(t *testing.T) {
	s := &TwitterSource{}
	status := TwitterStatus{
		Text: "check this http://t.co/abc out",
		URLEntities: []URLEntity{
			{URL: "http://t.co/abc", DisplayURL: "example.com/page", StartIndex: 11, EndIndex: 26},
		},
	}
	n, ok := s.FormatStatus(status)
	if !ok {
		t.Fatal("expected formatted notification")
	}
	if n["subtitle"] != "check this example.com/page out" {
		t.Errorf("subtitle = %q", n["subtitle"])
	}
	if n["html"] == "" {
		t.Error("expected html field")
	}
}

// Comment 2 follow-up: per-kind via default is reachable when the
// source has no override of its own.
func TestVoteSource_ViaFallsBackToKindDefault(t *testing.T) {
	r := newFakeResolver()
	r.things[1] = &store.Thing{ID: 1, URI: "http://example.mediamatic.nl/id/1"}
	rec := &store.SourceRecord{Kind: KindVote, Enabled: true, Attrs: map[string]string{AttrQuestionID: "1"}}
	src, err := Load(rec, r)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	doc := []byte(`<rsp><vote><answer_id_ref>1</answer_id_ref></vote>` +
		`<person><title>Fred</title></person>` +
		`<question><answers><item><answer_id>1</answer_id><title>Yes</title></item></answers></question></rsp>`)
	payload, err := wire.Parse(doc)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	n, ok := src.FormatPayload(payload, mustCatalog(t), texts.English)
	if !ok {
		t.Fatal("expected a notification")
	}
	if n["meta"] != "via ikPoll" {
		t.Errorf("meta = %q, want the ikPoll kind default", n["meta"])
	}
}

func TestIkCamSource_PluralJoinsAllNamesWithAnd(t *testing.T) {
	rec := &store.SourceRecord{Kind: KindIkCam, Enabled: true}
	src, err := Load(rec, newFakeResolver())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	doc := []byte(`<rsp><verb>ikcam</verb>` +
		`<author><name>Alice</name></author>` +
		`<author><name>Bob</name></author>` +
		`<author><name>Carol</name></author></rsp>`)
	payload, err := wire.Parse(doc)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	n, ok := src.FormatPayload(payload, mustCatalog(t), texts.English)
	if !ok {
		t.Fatal("expected a notification")
	}
	if n["title"] != "Alice, Bob and Carol" {
		t.Errorf("title = %q, want all names joined with \"and\" before the last", n["title"])
	}
	if n["subtitle"] != "Alice, Bob and Carol took pictures" {
		t.Errorf("subtitle = %q", n["subtitle"])
	}
	if n["meta"] != "via ikCam" {
		t.Errorf("meta = %q, want the ikCam kind default", n["meta"])
	}
}

func TestIkCamSource_SingularAuthorNoAnd(t *testing.T) {
	rec := &store.SourceRecord{Kind: KindIkCam, Enabled: true}
	src, err := Load(rec, newFakeResolver())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	doc := []byte(`<rsp><verb>ikcam</verb><author><name>Alice</name></author></rsp>`)
	payload, err := wire.Parse(doc)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	n, ok := src.FormatPayload(payload, mustCatalog(t), texts.English)
	if !ok {
		t.Fatal("expected a notification")
	}
	if n["title"] != "Alice" || n["subtitle"] != "Alice took a picture" {
		t.Errorf("got %+v", n)
	}
}

func TestRaceSource_SubtitleUsesFinishTemplate(t *testing.T) {
	r := newFakeResolver()
	r.things[1] = &store.Thing{ID: 1, URI: "http://example.mediamatic.nl/id/1"}
	rec := &store.SourceRecord{Kind: KindRace, Enabled: true, Attrs: map[string]string{AttrRaceID: "1"}}
	src, err := Load(rec, r)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	payload, err := wire.Parse([]byte(`<rsp><event>Alleycat</event><time>12:34</time>` +
		`<person><title>Fred</title></person></rsp>`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	n, ok := src.FormatPayload(payload, mustCatalog(t), texts.English)
	if !ok {
		t.Fatal("expected a notification")
	}
	if n["subtitle"] != "finished the Alleycat in 12:34." {
		t.Errorf("subtitle = %q", n["subtitle"])
	}
	if n["meta"] != "via Alleycat" {
		t.Errorf("meta = %q, want the Alleycat kind default", n["meta"])
	}
}

func TestRegDeskSource_SubtitlePicksLocalizedGreeting(t *testing.T) {
	r := newFakeResolver()
	r.things[1] = &store.Thing{ID: 1, URI: "http://example.mediamatic.nl/id/1"}
	rec := &store.SourceRecord{Kind: KindRegDesk, Enabled: true, Attrs: map[string]string{AttrEventID: "1"}}
	src, err := Load(rec, r)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	payload, err := wire.Parse([]byte(`<rsp><person><title>Fred</title></person></rsp>`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	catalog := mustCatalog(t)
	greetings, ok := catalog.LookupList(KindRegDesk, texts.English, "regdesk")
	if !ok || len(greetings) == 0 {
		t.Fatal("expected regdesk greeting list in the catalog")
	}
	isGreeting := make(map[string]bool, len(greetings))
	for _, g := range greetings {
		isGreeting[g] = true
	}

	n, ok := src.FormatPayload(payload, catalog, texts.English)
	if !ok {
		t.Fatal("expected a notification")
	}
	if !isGreeting[n["subtitle"]] {
		t.Errorf("subtitle = %q, want one of %v", n["subtitle"], greetings)
	}
	if n["meta"] != "via Registration Desk" {
		t.Errorf("meta = %q, want the Registration Desk kind default", n["meta"])
	}
}

func TestSimpleSource_DefaultElementMap(t *testing.T) {
	rec := &store.SourceRecord{Kind: KindSimple, Enabled: true,
		Attrs: map[string]string{AttrService: "pubsub.example.nl", AttrNode: "literal/node"}}
	src := loadSimple(rec)

	payload, _ := wire.Parse([]byte(`<rsp><title>Hello</title><subtitle>World</subtitle><image>http://x/i.jpg</image></rsp>`))
	n, ok := src.FormatPayload(payload, mustCatalog(t), texts.English)
	if !ok {
		t.Fatal("expected notification")
	}
	if n["title"] != "Hello" || n["subtitle"] != "World" || n["icon"] != "http://x/i.jpg" {
		t.Errorf("got %+v", n)
	}
}
