package microblog

import (
	"context"
	"testing"

	"github.com/mediamatic/ikdisplay/internal/source"
)

func TestExtractImage_LiteralTinypicPattern(t *testing.T) {
	e := NewEmbedder(nil, "")
	got := e.extractImage(context.Background(), "http://i62.tinypic.com/2u9p1xo.jpg")
	want := "http://i62.tinypic.com/2u9p1xo.jpg"
	if got != want {
		t.Errorf("extractImage() = %q, want %q", got, want)
	}
}

func TestExtractImage_Twitpic(t *testing.T) {
	e := NewEmbedder(nil, "")
	got := e.extractTwitpic(context.Background(), "http://twitpic.com/abc123")
	want := "http://twitpic.com/show/large/abc123"
	if got != want {
		t.Errorf("extractTwitpic() = %q, want %q", got, want)
	}
}

func TestExtractImage_Instagram(t *testing.T) {
	e := NewEmbedder(nil, "")
	got := e.extractInstagram(context.Background(), "http://instagr.am/p/abc123")
	want := "http://instagr.am/p/abc123media?size=l"
	if got != want {
		t.Errorf("extractInstagram() = %q, want %q", got, want)
	}
}

func TestExtractImage_NoMatchingPatternReturnsEmpty(t *testing.T) {
	e := NewEmbedder(nil, "")
	if got := e.extractImage(context.Background(), "http://example.com/whatever"); got != "" {
		t.Errorf("extractImage() = %q, want empty", got)
	}
}

func TestAugmentStatusWithImage_MediaWinsOutright(t *testing.T) {
	e := NewEmbedder(nil, "")
	status := &source.TwitterStatus{
		HasMedia:    true,
		MediaURL:    "http://pbs.twimg.com/media/abc.jpg",
		URLEntities: []source.URLEntity{{ExpandedURL: "http://twitpic.com/shouldnotwin"}},
	}
	e.AugmentStatusWithImage(context.Background(), status)
	if status.ImageURL != "http://pbs.twimg.com/media/abc.jpg" {
		t.Errorf("ImageURL = %q, want the media URL", status.ImageURL)
	}
}

func TestAugmentStatusWithImage_NoURLEntities_LeavesImageEmpty(t *testing.T) {
	e := NewEmbedder(nil, "")
	status := &source.TwitterStatus{Text: "no links here"}
	e.AugmentStatusWithImage(context.Background(), status)
	if status.ImageURL != "" {
		t.Errorf("ImageURL = %q, want empty", status.ImageURL)
	}
}

func TestAugmentStatusWithImage_EarliestMatchingEntityWins(t *testing.T) {
	e := NewEmbedder(nil, "")
	status := &source.TwitterStatus{
		URLEntities: []source.URLEntity{
			{ExpandedURL: "http://example.com/no-match"},
			{ExpandedURL: "http://twitpic.com/second"},
			{ExpandedURL: "http://i1.tinypic.com/first.jpg"},
		},
	}
	// The tinypic entity (index 2) loses to twitpic (index 1) since
	// "order" is the URLEntities slice index, not match success order.
	e.AugmentStatusWithImage(context.Background(), status)
	if status.ImageURL != "http://twitpic.com/show/large/second" {
		t.Errorf("ImageURL = %q, want the lower-index matching entity's result", status.ImageURL)
	}
}
