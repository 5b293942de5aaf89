package notification

import (
	"testing"

	"github.com/mediamatic/ikdisplay/internal/texts"
	"github.com/mediamatic/ikdisplay/internal/wire"
)

func mustCatalog(t *testing.T) *texts.Catalog {
	t.Helper()
	c, err := texts.Default()
	if err != nil {
		t.Fatalf("texts.Default: %v", err)
	}
	return c
}

// S1: vote with a present person.title and a matching answer.
func TestVoteFormatting_S1(t *testing.T) {
	doc := []byte(`<rsp><vote><answer_id_ref>160252</answer_id_ref></vote>` +
		`<person><title>Fred Pook</title><image>http://example.com/124445.jpg</image></person>` +
		`<question><answers><item><answer_id>160252</answer_id><title>Shadow Search Platform</title></item></answers></question></rsp>`)
	payload, err := wire.Parse(doc)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	catalog := mustCatalog(t)

	title := PersonTitleOrAlien(payload, catalog, "vote", texts.English)
	if title != "Fred Pook" {
		t.Errorf("title = %q", title)
	}

	subtitle, ok := VoteSubtitle(payload, catalog, "vote", texts.English, "")
	if !ok || subtitle != "voted for Shadow Search Platform" {
		t.Errorf("subtitle = %q, %v", subtitle, ok)
	}

	if icon := PersonIcon(payload); icon != "http://example.com/124445.jpg" {
		t.Errorf("icon = %q", icon)
	}
}

// S2: empty person.title falls back to the localized alien string.
func TestVoteFormatting_S2_EmptyPersonTitle(t *testing.T) {
	doc := []byte(`<rsp><vote><answer_id_ref>1</answer_id_ref></vote>` +
		`<person><title></title></person>` +
		`<question><answers><item><answer_id>1</answer_id><title>X</title></item></answers></question></rsp>`)
	payload, err := wire.Parse(doc)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	catalog := mustCatalog(t)

	title := PersonTitleOrAlien(payload, catalog, "vote", texts.English)
	if title != "An illegal alien" {
		t.Errorf("title = %q", title)
	}
}

func TestVoteSubtitle_NoMatchingAnswer(t *testing.T) {
	doc := []byte(`<rsp><vote><answer_id_ref>999</answer_id_ref></vote>` +
		`<question><answers><item><answer_id>1</answer_id><title>X</title></item></answers></question></rsp>`)
	payload, err := wire.Parse(doc)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	catalog := mustCatalog(t)

	if _, ok := VoteSubtitle(payload, catalog, "vote", texts.English, ""); ok {
		t.Error("expected no match for unreferenced answer id")
	}
}

// S4: activity "tag" verb, subtitle built from %object%/%target%.
func TestActivityTemplate_S4(t *testing.T) {
	catalog := mustCatalog(t)
	tmpl, ok := catalog.ActivityVerbTemplate("tag", texts.English)
	if !ok {
		t.Fatal("expected tag template")
	}
	got := FillTemplate(tmpl, "Birgit Meijer", "Test artikel")
	want := "tagged Birgit Meijer in Test artikel"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestExtractActor_FigureQueryString(t *testing.T) {
	doc := []byte(`<rsp><author><name>Ralph Meijer</name>` +
		`<link rel="figure" href="http://example.com/ralph.jpg"/></author></rsp>`)
	payload, err := wire.Parse(doc)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	actor := ExtractActor(payload)
	if actor.Title != "Ralph Meijer" {
		t.Errorf("actor title = %q", actor.Title)
	}
	want := "http://example.com/ralph.jpg?width=80&height=80&filter=crop"
	if actor.Figure != want {
		t.Errorf("actor figure = %q, want %q", actor.Figure, want)
	}
}

func TestMatchVerb_MostSpecificFirst(t *testing.T) {
	present := map[string]bool{"post": true, "like": true}
	verb, ok := MatchVerb([]string{"like", "post"}, present)
	if !ok || verb != "like" {
		t.Errorf("verb = %q, %v, want like", verb, ok)
	}
}

func TestViaMeta_PrecedenceOrder(t *testing.T) {
	if got := ViaMeta("ikPoll", "default-kind", "Mediamatic"); got != "via ikPoll" {
		t.Errorf("override precedence: got %q", got)
	}
	if got := ViaMeta("", "default-kind", "Mediamatic"); got != "via default-kind" {
		t.Errorf("kind-default precedence: got %q", got)
	}
	if got := ViaMeta("", "", "Mediamatic"); got != "via Mediamatic" {
		t.Errorf("site-title fallback: got %q", got)
	}
	if got := ViaMeta("", "", ""); got != "" {
		t.Errorf("expected empty meta, got %q", got)
	}
}

func TestFirstLine(t *testing.T) {
	if got := FirstLine("first\nsecond\nthird"); got != "first" {
		t.Errorf("got %q", got)
	}
	if got := FirstLine("only one line"); got != "only one line" {
		t.Errorf("got %q", got)
	}
}
