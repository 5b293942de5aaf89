package microblog

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	gotwitter "github.com/dghubble/go-twitter/twitter"
	"github.com/dghubble/oauth1"

	"github.com/mediamatic/ikdisplay/internal/source"
)

// Credentials are the OAuth1 user-context credentials spec.md §6
// requires for the filtered streaming endpoint.
type Credentials struct {
	ConsumerKey    string
	ConsumerSecret string
	AccessToken    string
	AccessSecret   string
}

func (c Credentials) httpClient() *http.Client {
	cfg := oauth1.NewConfig(c.ConsumerKey, c.ConsumerSecret)
	token := oauth1.NewToken(c.AccessToken, c.AccessSecret)
	return cfg.Client(context.Background(), token)
}

// TwitterStreamer is the Streamer backed by a live filtered stream
// (github.com/dghubble/go-twitter). Like internal/dispatcher/xmpp.go's
// relationship to mattn/go-xmpp, this is the one file in the package
// whose exact wire behavior has no local reference to verify against;
// see DESIGN.md's microblog entry for the isolation rationale.
type TwitterStreamer struct {
	client *gotwitter.Client
}

func NewTwitterStreamer(creds Credentials) *TwitterStreamer {
	return &TwitterStreamer{client: gotwitter.NewClient(creds.httpClient())}
}

func (s *TwitterStreamer) Open(ctx context.Context, args Args) (Stream, error) {
	params := &gotwitter.StreamFilterParams{
		StallWarnings: gotwitter.Bool(true),
	}
	if args.Track != "" {
		params.Track = strings.Split(args.Track, ",")
	}
	if args.Follow != "" {
		params.Follow = strings.Split(args.Follow, ",")
	}

	stream, err := s.client.Streams.Filter(params)
	if err != nil {
		return nil, &ConnectError{Err: err}
	}
	return newTwitterStream(stream), nil
}

type twitterStream struct {
	stream   *gotwitter.Stream
	statuses chan source.TwitterStatus
	done     chan error
}

func newTwitterStream(stream *gotwitter.Stream) *twitterStream {
	ts := &twitterStream{
		stream:   stream,
		statuses: make(chan source.TwitterStatus),
		done:     make(chan error, 1),
	}
	go ts.demux()
	return ts
}

// demux drains the stream's generic Messages channel, converting
// *twitter.Tweet entries to source.TwitterStatus.
//
// TODO: go-twitter's Messages channel also yields StallWarning and
// disconnect-notice control messages; today only *twitter.Tweet is
// converted; the rest are silently skipped since the exact shape of
// their error signaling (vs. a plain channel close) has no local
// reference to verify against a live stream.
func (ts *twitterStream) demux() {
	defer close(ts.statuses)
	for msg := range ts.stream.Messages {
		tweet, ok := msg.(*gotwitter.Tweet)
		if !ok {
			continue
		}
		ts.statuses <- convertTweet(tweet)
	}
	ts.done <- nil
}

func convertTweet(t *gotwitter.Tweet) source.TwitterStatus {
	st := source.TwitterStatus{Text: t.Text}

	if t.User != nil {
		if id, err := strconv.ParseInt(t.User.IDStr, 10, 64); err == nil {
			st.UserID = id
		}
	}

	if t.Entities != nil {
		for _, u := range t.Entities.Urls {
			entity := source.URLEntity{URL: u.URL, ExpandedURL: u.ExpandedURL, DisplayURL: u.DisplayURL}
			if len(u.Indices) == 2 {
				entity.StartIndex, entity.EndIndex = u.Indices[0], u.Indices[1]
			}
			st.URLEntities = append(st.URLEntities, entity)
		}
		if len(t.Entities.Media) > 0 {
			st.HasMedia = true
			st.MediaURL = t.Entities.Media[0].MediaURL
		}
	}

	return st
}

func (ts *twitterStream) Statuses() <-chan source.TwitterStatus { return ts.statuses }
func (ts *twitterStream) Done() <-chan error                    { return ts.done }
func (ts *twitterStream) Stop()                                 { ts.stream.Stop() }
