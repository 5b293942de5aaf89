// Package address parses and compares the routing addresses used by the
// pub/sub messaging fabric (bare/full JID-style identifiers of the form
// local@host/resource) and derives pub/sub service hosts from content URIs.
package address

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Address identifies a peer on the messaging fabric: a mandatory host, an
// optional local part, and an optional resource part.
type Address struct {
	Local    string
	Host     string
	Resource string
}

// Parse splits a string of the form "local@host/resource" into an Address.
// Host is mandatory; Parse returns an error if it is empty.
func Parse(s string) (Address, error) {
	var a Address

	if at := strings.IndexByte(s, '@'); at >= 0 {
		a.Local = s[:at]
		s = s[at+1:]
	}
	if slash := strings.IndexByte(s, '/'); slash >= 0 {
		a.Resource = s[slash+1:]
		s = s[:slash]
	}
	a.Host = s

	if a.Host == "" {
		return Address{}, fmt.Errorf("address: missing host in %q", s)
	}
	return a, nil
}

// MustParse is Parse but panics on error; intended for literals known to be
// valid at compile time (tests, configuration defaults).
func MustParse(s string) Address {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// String renders the full form (local@host/resource), omitting absent parts.
func (a Address) String() string {
	var sb strings.Builder
	if a.Local != "" {
		sb.WriteString(a.Local)
		sb.WriteByte('@')
	}
	sb.WriteString(a.Host)
	if a.Resource != "" {
		sb.WriteByte('/')
		sb.WriteString(a.Resource)
	}
	return sb.String()
}

// Bare returns the address with any resource stripped.
func (a Address) Bare() Address {
	a.Resource = ""
	return a
}

// IsBare reports whether the address carries no resource.
func (a Address) IsBare() bool {
	return a.Resource == ""
}

// Equal compares two addresses. Per spec: equality compares the bare form
// (local+host) unless both sides are full (carry a resource), in which
// case the resource must also match.
func (a Address) Equal(other Address) bool {
	if a.Local != other.Local || a.Host != other.Host {
		return false
	}
	if a.Resource == "" || other.Resource == "" {
		return true
	}
	return a.Resource == other.Resource
}

// EqualBare compares only the bare (local+host) form, ignoring resources
// entirely. Used for routing decisions where a session's full address must
// match an event's recipient regardless of which resource is attached.
func (a Address) EqualBare(other Address) bool {
	return a.Local == other.Local && a.Host == other.Host
}

// PubsubHostOf derives the pub/sub service host that a content URI's
// resources are published under. It strips a leading "www.", and unless
// the resulting host ends in ".local" or contains ".test.", prepends
// "pubsub.". The function is idempotent for hosts that already satisfy
// either of those conditions.
func PubsubHostOf(uri string) string {
	host := hostOf(uri)
	host = strings.TrimPrefix(host, "www.")

	if strings.HasSuffix(host, ".local") || strings.Contains(host, ".test.") {
		return host
	}
	if strings.HasPrefix(host, "pubsub.") {
		return host
	}
	return "pubsub." + host
}

// HostOf extracts the bare host component from a URI (no "pubsub."
// derivation), or returns the input unchanged if it does not parse as a
// URL with a host (e.g. it is already a bare hostname). Used by sources
// that address a node directly on a content host rather than its
// pub/sub counterpart (e.g. IkCam).
func HostOf(uri string) string {
	return hostOf(uri)
}

// hostOf extracts the host component from a URI, or returns the input
// unchanged if it does not parse as a URL with a host (e.g. it is already
// a bare hostname).
func hostOf(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || u.Host == "" {
		return uri
	}
	return u.Hostname()
}

// IDOf extracts the trailing integer path segment of a URI, e.g.
// "http://example.com/id/160225" -> 160225. Returns an error if the last
// path segment is not a valid integer — callers test for this via the
// returned error rather than a sentinel zero value (Open Question (i) in
// spec.md §9: left as "raises").
func IDOf(uri string) (int64, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return 0, fmt.Errorf("address: parse uri %q: %w", uri, err)
	}
	path := strings.TrimRight(u.Path, "/")
	seg := path
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		seg = path[i+1:]
	}
	id, err := strconv.ParseInt(seg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("address: last path segment of %q is not an integer id: %w", uri, err)
	}
	return id, nil
}
