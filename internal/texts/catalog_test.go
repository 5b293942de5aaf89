package texts

import "testing"

func TestDefault_VoteTexts(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}

	if got, ok := c.Lookup("vote", English, "alien"); !ok || got != "An illegal alien" {
		t.Errorf("vote.alien = %q, %v", got, ok)
	}
	if got, ok := c.Lookup("vote", English, "voted"); !ok || got != "voted for %s" {
		t.Errorf("vote.voted = %q, %v", got, ok)
	}
}

func TestPresence_InheritsAndExtendsVote(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}

	// inherited from vote
	if got, ok := c.Lookup("presence", English, "alien"); !ok || got != "An illegal alien" {
		t.Errorf("presence.alien = %q, %v, want inherited vote text", got, ok)
	}
	// own override/extension
	if got, ok := c.Lookup("presence", English, "present"); !ok || got != "is present" {
		t.Errorf("presence.present = %q, %v", got, ok)
	}
}

func TestIkMic_InterruptList(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}

	lines, ok := c.LookupList("ikmic", English, "interrupt")
	if !ok || len(lines) == 0 {
		t.Fatalf("ikmic.interrupt = %v, %v", lines, ok)
	}

	// still inherits vote's scalar texts alongside its own list text
	if _, ok := c.Lookup("ikmic", English, "voted"); !ok {
		t.Error("ikmic should inherit vote.voted")
	}
}

func TestActivityVerbTemplate(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}

	tmpl, ok := c.ActivityVerbTemplate("tag", English)
	if !ok || tmpl != "tagged %object% in %target%" {
		t.Errorf("tag template = %q, %v", tmpl, ok)
	}

	if _, ok := c.ActivityVerbTemplate("no-such-verb", English); ok {
		t.Error("unknown verb should have no template")
	}
}

func TestLookup_UnknownKindOrLang(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}

	if _, ok := c.Lookup("no-such-kind", English, "alien"); ok {
		t.Error("unknown kind should not resolve")
	}
	if _, ok := c.Lookup("vote", Language("fr"), "alien"); ok {
		t.Error("unsupported language should not resolve")
	}
}
