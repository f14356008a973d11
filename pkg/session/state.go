// Package session holds the per-user state the callback layer depends on:
// the reply-keyboard correlation table, the overflow params table, and the
// pending wait record. Behavior lives in the curry, wait, and dispatch
// packages; this package only owns the data and its persistence.
package session

import (
	"encoding/json"
	"time"
)

// State is one end user's persistent record. A Store initializes it lazily,
// so all maps may be nil until first written through the accessors below.
type State struct {
	// Reply maps a rendered reply-keyboard label to the token it stands for.
	Reply map[string]string `json:"reply,omitempty"`
	// Params is the overflow table for arguments too large to inline into
	// callback data, keyed by short content hash.
	Params map[string]ParamsEntry `json:"params,omitempty"`
	// Wait is the single pending paused call site, if any.
	Wait *WaitState `json:"wait,omitempty"`
	// LastAction records the identifier of the most recently executed
	// handler for this user. Debugging aid only, never consulted for routing.
	LastAction string `json:"last_action,omitempty"`
}

// ParamsEntry is one stored overflow record: the target handler identifier
// plus the JSON-encoded argument list it was rendered with. Entries are
// immutable once written.
type ParamsEntry struct {
	Target string          `json:"target"`
	Args   json.RawMessage `json:"args"`
}

// WaitState is a paused call site awaiting the next matching update from its
// user. At most one instance is live per user; installing a new one replaces
// the previous one.
type WaitState struct {
	// Token is the rendered target callback token, restart-stable.
	Token string `json:"token"`
	// Filters lists the accepted update-shape descriptors.
	Filters []string `json:"filters,omitempty"`
	// CancelKeyword aborts the wait on a case-insensitive exact match.
	CancelKeyword string `json:"cancel_keyword,omitempty"`
	// MessageID is an optional anchor message deleted when the wait clears.
	MessageID int `json:"message_id,omitempty"`
	// ExpiresAt, when set, invalidates the wait on the next update after it.
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the wait carries a deadline that has passed.
func (w *WaitState) Expired(now time.Time) bool {
	return w != nil && !w.ExpiresAt.IsZero() && now.After(w.ExpiresAt)
}

// SetReply records one label → token correlation.
func (s *State) SetReply(label, token string) {
	if s.Reply == nil {
		s.Reply = make(map[string]string)
	}
	s.Reply[label] = token
}

// ReplaceReply swaps the whole correlation table. Only one reply keyboard is
// visible per chat at a time, so stale labels are dropped rather than kept.
func (s *State) ReplaceReply(table map[string]string) {
	s.Reply = table
}

// ReplyToken returns the token recorded for a reply-keyboard label.
func (s *State) ReplyToken(label string) (string, bool) {
	token, ok := s.Reply[label]
	return token, ok
}

// PutParams writes an overflow entry under its content hash. Rewriting an
// existing key is a no-op by construction: identical content hashes carry
// identical entries.
func (s *State) PutParams(key string, entry ParamsEntry) {
	if s.Params == nil {
		s.Params = make(map[string]ParamsEntry)
	}
	if _, ok := s.Params[key]; ok {
		return
	}
	s.Params[key] = entry
}

// LookupParams returns the overflow entry stored under key.
func (s *State) LookupParams(key string) (ParamsEntry, bool) {
	entry, ok := s.Params[key]
	return entry, ok
}
