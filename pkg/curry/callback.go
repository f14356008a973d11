package curry

import (
	"errors"
	"fmt"

	"recurry/pkg/host"
	"recurry/pkg/token"
)

// ErrDataTooLong reports a direct token exceeding the wire ceiling where no
// session state is available to overflow into.
var ErrDataTooLong = errors.New("callback data exceeds wire limit")

// Callback is an identifier with arguments bound to it. Callbacks are
// immutable; Bind returns extended copies, so one callback can fan out into
// a whole keyboard of variants.
type Callback struct {
	reg  *Registry
	id   string
	args []any
}

// ID returns the callback's target identifier.
func (c *Callback) ID() string { return c.id }

// Args returns a copy of the bound arguments.
func (c *Callback) Args() []any { return cloneArgs(c.args) }

// Bind returns a new Callback with extra appended to the bound arguments.
// The receiver is left untouched.
func (c *Callback) Bind(extra ...any) *Callback {
	args := make([]any, 0, len(c.args)+len(extra))
	args = append(args, c.args...)
	args = append(args, extra...)
	return &Callback{reg: c.reg, id: c.id, args: args}
}

// Invoke calls the handler now with the bound arguments followed by extra.
func (c *Callback) Invoke(hc host.Context, extra ...any) (any, error) {
	args := c.args
	if len(extra) > 0 {
		args = append(cloneArgs(c.args), extra...)
	}
	return c.reg.Execute(hc, c.id, args...)
}

// Render serializes the callback to a direct wire token. It fails with
// ErrDataTooLong when the bound arguments do not fit the wire ceiling; use
// RenderFor to overflow into session state instead.
func (c *Callback) Render() (string, error) {
	raw, err := token.EncodeArgs(c.args)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", c.id, err)
	}
	direct := token.Direct(c.id, string(raw))
	if len(direct) > token.MaxCallbackData {
		return "", fmt.Errorf("render %s: %w (%d bytes)", c.id, ErrDataTooLong, len(direct))
	}
	return direct, nil
}

// RenderFor serializes the callback to a wire token that fits the ceiling.
// Tokens within the limit render directly; oversized ones store their
// arguments in the user's session state and render as a session reference.
func (c *Callback) RenderFor(hc host.Context) (string, error) {
	raw, err := token.EncodeArgs(c.args)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", c.id, err)
	}
	direct := token.Direct(c.id, string(raw))
	if len(direct) <= token.MaxCallbackData {
		return direct, nil
	}

	st := hc.State()
	if st == nil {
		return "", fmt.Errorf("render %s: %w and no session state to overflow into", c.id, ErrDataTooLong)
	}
	return token.StoreOverflow(st, c.id, raw), nil
}

// SessionToken serializes the callback without the wire ceiling, for tokens
// kept in session state rather than attached to UI elements.
func (c *Callback) SessionToken() (string, error) {
	raw, err := token.EncodeArgs(c.args)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", c.id, err)
	}
	return token.Direct(c.id, string(raw)), nil
}

// Button builds an inline-keyboard button invoking the callback, rendering
// through RenderFor so oversized arguments overflow into session state.
func (c *Callback) Button(hc host.Context, text string) (host.InlineButton, error) {
	data, err := c.RenderFor(hc)
	if err != nil {
		return host.InlineButton{}, err
	}
	return host.InlineButton{Text: text, Data: data}, nil
}

// ReplyButton builds a reply-keyboard button invoking the callback. Reply
// tokens live in session state rather than on the wire, so no ceiling
// applies.
func (c *Callback) ReplyButton(text string) (host.ReplyButton, error) {
	tok, err := c.SessionToken()
	if err != nil {
		return host.ReplyButton{}, err
	}
	return host.ReplyButton{Text: text, Token: tok}, nil
}
