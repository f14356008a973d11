// Package host defines the capability surface a chat platform binding hands
// to handlers. Handlers declare their first parameter as host.Context (or a
// narrower interface it satisfies) and stay independent of any concrete bot
// SDK; the binding for a platform implements Context over its own update
// type.
package host

import (
	"context"

	"recurry/pkg/session"
)

// MessageID identifies a message inside a chat.
type MessageID = int

// Context is the per-update capability bundle passed to handlers. A Context
// is only valid for the duration of one update; bindings construct a fresh
// one per incoming event.
type Context interface {
	// Context returns the cancellation context of the surrounding update.
	Context() context.Context

	// UserID identifies the user the update originated from.
	UserID() int64

	// ChatID identifies the chat the update belongs to.
	ChatID() int64

	// Value returns the textual payload of the update: message text,
	// callback data, or empty when the update carries neither.
	Value() string

	// Matches reports whether the update satisfies a content filter.
	Matches(f Filter) bool

	// State returns the user's mutable session state, never nil. Bindings
	// construct a Context only once the state has loaded, and persist it
	// after the handler returns.
	State() *session.State

	// SendMessage sends a new message to the update's chat.
	SendMessage(text string, opts ...SendOption) (MessageID, error)

	// EditMessage replaces the text (and inline keyboard) of an existing
	// message.
	EditMessage(id MessageID, text string, opts ...SendOption) error

	// DeleteMessages removes messages from the update's chat.
	DeleteMessages(ids ...MessageID) error

	// Ack confirms a callback-query update so the client stops showing a
	// progress indicator. On updates without a query it is a no-op.
	Ack(text string) error
}

// InlineButton is one button of an inline keyboard. Data carries a rendered
// callback token and travels with the message.
type InlineButton struct {
	Text string
	Data string
}

// ReplyButton is one button of a reply keyboard. Token is the callback to
// dispatch when the user presses the button; it never reaches the wire, the
// binding correlates it through session state by the button's label.
type ReplyButton struct {
	Text  string
	Token string
}

// SendOptions collects per-send modifiers. Bindings read the populated
// struct and translate it to their platform's request parameters.
type SendOptions struct {
	InlineKeyboard   [][]InlineButton
	ReplyKeyboard    [][]ReplyButton
	RemoveReplyBoard bool
	OneTimeKeyboard  bool
	DisablePreview   bool
	HTML             bool
}

// SendOption mutates SendOptions.
type SendOption func(*SendOptions)

// WithInlineKeyboard attaches an inline keyboard to the message.
func WithInlineKeyboard(rows ...[]InlineButton) SendOption {
	return func(o *SendOptions) { o.InlineKeyboard = rows }
}

// WithReplyKeyboard attaches a reply keyboard and replaces the chat's
// label-to-callback table with the keyboard's buttons.
func WithReplyKeyboard(rows ...[]ReplyButton) SendOption {
	return func(o *SendOptions) { o.ReplyKeyboard = rows }
}

// WithOneTimeKeyboard hides the reply keyboard after one use.
func WithOneTimeKeyboard() SendOption {
	return func(o *SendOptions) { o.OneTimeKeyboard = true }
}

// WithRemoveReplyKeyboard removes any visible reply keyboard.
func WithRemoveReplyKeyboard() SendOption {
	return func(o *SendOptions) { o.RemoveReplyBoard = true }
}

// WithoutPreview disables link previews for the message.
func WithoutPreview() SendOption {
	return func(o *SendOptions) { o.DisablePreview = true }
}

// WithHTML renders the message text as HTML.
func WithHTML() SendOption {
	return func(o *SendOptions) { o.HTML = true }
}

// BuildSendOptions folds opts into a SendOptions value.
func BuildSendOptions(opts []SendOption) SendOptions {
	var o SendOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
