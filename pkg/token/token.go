// Package token defines the wire grammar for callback tokens and the stable
// identifier derivation for handlers. A token is either direct,
// "_cb:<identifier>[:<jsonArgs>]", or session-indirected, "_ch:<hash8>",
// where the hash keys an overflow entry in the user's session state.
package token

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"recurry/pkg/session"
)

const (
	// SchemeDirect marks tokens carrying the identifier and arguments inline.
	SchemeDirect = "_cb"
	// SchemeSession marks tokens referencing an overflow entry in session
	// state instead of inlining arguments.
	SchemeSession = "_ch"

	// MaxCallbackData is the payload ceiling for data attached to a single
	// UI element. 64 bytes matches the Telegram callback_data limit; direct
	// tokens longer than this overflow into session state.
	MaxCallbackData = 64

	// overflowKeyLen is the length of the short content hash used by the
	// session scheme.
	overflowKeyLen = 8
)

// ErrSessionCallbackNotFound reports a session-scheme token whose overflow
// entry is missing, typically because the external store evicted it or the
// user's state was reset. Callers treat it as "not a callback" and fall
// through to normal update handling.
var ErrSessionCallbackNotFound = errors.New("session callback not found")

// Parts is a decoded token triple. Rest preserves everything after the second
// colon verbatim; embedded JSON may itself contain colons and must never be
// split further.
type Parts struct {
	Scheme string
	Key    string
	Rest   string
}

// Split decodes raw into its scheme, key, and remainder. It reports ok=false
// for anything that does not match the token grammar; malformed input is not
// an error, it just is not a callback token.
func Split(raw string) (Parts, bool) {
	if len(raw) < 5 || raw[0] != '_' || raw[3] != ':' {
		return Parts{}, false
	}
	scheme := raw[:3]
	if scheme != SchemeDirect && scheme != SchemeSession {
		return Parts{}, false
	}

	rest := raw[4:]
	key := rest
	tail := ""
	if i := strings.IndexByte(rest, ':'); i >= 0 {
		key, tail = rest[:i], rest[i+1:]
	}
	if !validKey(key) {
		return Parts{}, false
	}

	return Parts{Scheme: scheme, Key: key, Rest: tail}, true
}

// Direct renders a direct-scheme token. Empty argsJSON renders the short,
// argument-free form.
func Direct(id string, argsJSON string) string {
	if argsJSON == "" {
		return SchemeDirect + ":" + id
	}
	return SchemeDirect + ":" + id + ":" + argsJSON
}

// SessionRef renders a session-scheme token for an overflow key.
func SessionRef(key string) string {
	return SchemeSession + ":" + key
}

// OverflowKey derives the content hash addressing an overflow entry. The
// identifier participates in the digest so byte-identical argument lists for
// different handlers cannot share an entry.
func OverflowKey(id string, argsJSON []byte) string {
	return hashHex(id + ":" + string(argsJSON))[:overflowKeyLen]
}

// StoreOverflow writes the (identifier, arguments) pair into the user's
// overflow table and returns the session-scheme token referencing it.
// Identical pairs reuse the already-stored entry.
func StoreOverflow(st *session.State, id string, argsJSON []byte) string {
	key := OverflowKey(id, argsJSON)
	st.PutParams(key, session.ParamsEntry{
		Target: id,
		Args:   json.RawMessage(bytes.Clone(argsJSON)),
	})
	return SessionRef(key)
}

// Resolve maps decoded token parts to the target identifier and its raw
// argument JSON, dereferencing the overflow table for session-scheme tokens.
func Resolve(parts Parts, st *session.State) (string, []byte, error) {
	switch parts.Scheme {
	case SchemeDirect:
		return parts.Key, []byte(parts.Rest), nil
	case SchemeSession:
		if st == nil {
			return "", nil, fmt.Errorf("%w: %s", ErrSessionCallbackNotFound, parts.Key)
		}
		entry, ok := st.LookupParams(parts.Key)
		if !ok {
			return "", nil, fmt.Errorf("%w: %s", ErrSessionCallbackNotFound, parts.Key)
		}
		return entry.Target, []byte(entry.Args), nil
	default:
		return "", nil, fmt.Errorf("%w: unknown scheme %q", ErrSessionCallbackNotFound, parts.Scheme)
	}
}

// DecodeArgs decodes an argument-list JSON into positional values. Numbers
// are preserved as json.Number so 64-bit identifiers survive undamaged.
// Empty input means no arguments.
func DecodeArgs(argsJSON []byte) ([]any, error) {
	if len(argsJSON) == 0 {
		return nil, nil
	}
	decoder := json.NewDecoder(bytes.NewReader(argsJSON))
	decoder.UseNumber()

	var args []any
	if err := decoder.Decode(&args); err != nil {
		return nil, fmt.Errorf("decode argument list: %w", err)
	}
	return args, nil
}

// EncodeArgs encodes positional values into the argument-list JSON carried by
// direct tokens.
func EncodeArgs(args []any) ([]byte, error) {
	if len(args) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encode argument list: %w", err)
	}
	return raw, nil
}

func validKey(key string) bool {
	if key == "" {
		return false
	}
	for i := 0; i < len(key); i++ {
		c := key[i]
		if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' {
			continue
		}
		return false
	}
	return true
}
