package dispatcher

import "fmt"

// StanzaError is a pub/sub fabric error, classified by the XMPP stanza
// error type/condition vocabulary (spec.md §6, §7).
type StanzaError struct {
	// Type is the XMPP stanza error type: "wait", "modify", "cancel",
	// "auth", "continue". Only "wait" triggers back-off; everything else
	// is treated as permanent.
	Type string
	// Condition is the specific XMPP error condition, e.g.
	// "item-not-found", "remote-server-not-found", "unexpected-request".
	Condition string
}

func (e *StanzaError) Error() string {
	return fmt.Sprintf("stanza error: type=%s condition=%s", e.Type, e.Condition)
}

// IsWait reports whether err is a StanzaError with type "wait" — the
// temporary-failure class that triggers exponential back-off.
func IsWait(err error) bool {
	se, ok := err.(*StanzaError)
	return ok && se.Type == "wait"
}

// Condition extracts the stanza condition from err, or "" if err is not
// a StanzaError.
func Condition(err error) string {
	se, ok := err.(*StanzaError)
	if !ok {
		return ""
	}
	return se.Condition
}
