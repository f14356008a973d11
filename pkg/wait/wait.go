// Package wait implements resumable input prompts. Pausing a conversation
// records a callback token in the user's session; the next matching update,
// in this process or any later one, resolves the token and resumes the
// callback with the update as its input. One wait is pending per user at a
// time; pausing again replaces the previous wait.
package wait

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"recurry/pkg/curry"
	"recurry/pkg/host"
	"recurry/pkg/session"
	"recurry/pkg/token"
)

const (
	// DefaultCancelKeyword aborts a pending wait. The keyword matches the
	// update's text or button data case-insensitively and is checked before
	// the wait's filters.
	DefaultCancelKeyword = "/cancel"
)

// Waiter installs and intercepts pending input waits against a callback
// registry.
type Waiter struct {
	log *slog.Logger
	reg *curry.Registry
	now func() time.Time
}

// NewWaiter returns a Waiter resolving wait targets through reg.
func NewWaiter(reg *curry.Registry, log *slog.Logger) *Waiter {
	if log == nil {
		log = slog.Default()
	}
	return &Waiter{
		log: log.With("component", "wait"),
		reg: reg,
		now: time.Now,
	}
}

type options struct {
	filters []host.Filter
	cancel  string
	message host.MessageID
	timeout time.Duration
}

// Option adjusts how a wait is installed.
type Option func(*options)

// WithFilters restricts which update classes resume the wait. Non-matching
// updates fall through to normal routing and leave the wait pending. The
// default accepts text messages.
func WithFilters(filters ...host.Filter) Option {
	return func(o *options) { o.filters = filters }
}

// WithCancel overrides the cancel keyword. An empty keyword disables
// cancelling.
func WithCancel(keyword string) Option {
	return func(o *options) { o.cancel = keyword }
}

// WithMessage anchors the wait to a prompt message, deleted when the wait
// clears for any reason.
func WithMessage(id host.MessageID) Option {
	return func(o *options) { o.message = id }
}

// WithTimeout expires the wait after d. Expiry is observed lazily: the next
// update from the user clears the stale wait and routes normally.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// Pause installs target as the user's pending wait. Any previously pending
// wait is replaced and its anchor message deleted.
func (w *Waiter) Pause(hc host.Context, target *curry.Callback, opts ...Option) error {
	o := options{
		filters: []host.Filter{host.FilterText},
		cancel:  DefaultCancelKeyword,
	}
	for _, opt := range opts {
		opt(&o)
	}

	tok, err := target.SessionToken()
	if err != nil {
		return err
	}

	st := hc.State()
	replaced := st.Wait
	next := &session.WaitState{
		Token:         tok,
		Filters:       host.FilterNames(o.filters),
		CancelKeyword: o.cancel,
		MessageID:     o.message,
	}
	if o.timeout > 0 {
		next.ExpiresAt = w.now().Add(o.timeout)
	}
	st.Wait = next

	if replaced != nil && replaced.MessageID != 0 && replaced.MessageID != o.message {
		w.deleteAnchor(hc, replaced)
	}

	w.log.Debug("input wait installed",
		"user", hc.UserID(), "target", target.ID(), "filters", next.Filters)
	return nil
}

// Clear removes the user's pending wait, if any, and deletes its anchor.
func (w *Waiter) Clear(hc host.Context) {
	st := hc.State()
	if st.Wait == nil {
		return
	}
	w.clear(hc, st.Wait)
}

// Intercept offers an update to the pending wait. It reports whether the
// update was consumed; unconsumed updates proceed to normal routing. A
// handler returning exactly false keeps the wait pending for another
// attempt; any other completion clears it, unless the handler installed a
// new wait of its own.
func (w *Waiter) Intercept(hc host.Context) (bool, error) {
	st := hc.State()
	if st.Wait == nil {
		return false, nil
	}
	pending := st.Wait

	if pending.Expired(w.now()) {
		w.log.Debug("input wait expired", "user", hc.UserID())
		w.clear(hc, pending)
		return false, nil
	}

	if pending.CancelKeyword != "" &&
		strings.EqualFold(strings.TrimSpace(hc.Value()), pending.CancelKeyword) {
		w.log.Debug("input wait cancelled", "user", hc.UserID())
		w.clear(hc, pending)
		return true, nil
	}

	if !matchesAny(hc, pending.Filters) {
		return false, nil
	}

	id, args, err := w.resolveTarget(pending, st)
	if err != nil {
		// The stored target cannot be resumed, typically after an external
		// store lost the overflow entry. Drop the wait instead of trapping
		// the user in it.
		w.log.Warn("input wait target unresolvable, clearing",
			"user", hc.UserID(), "error", err)
		w.clear(hc, pending)
		return true, nil
	}

	res, err := w.reg.Execute(hc, id, args...)
	if errors.Is(err, curry.ErrUnknownCallback) {
		// A persisted wait can outlive its handler across a redeploy.
		w.log.Warn("input wait target unresolvable, clearing",
			"user", hc.UserID(), "error", err)
		w.clear(hc, pending)
		return true, nil
	}
	if err != nil {
		w.clear(hc, pending)
		return true, err
	}
	if keep, ok := res.(bool); ok && !keep {
		return true, nil
	}
	if st.Wait == pending {
		w.clear(hc, pending)
	}
	return true, nil
}

func (w *Waiter) resolveTarget(pending *session.WaitState, st *session.State) (string, []any, error) {
	parts, ok := token.Split(pending.Token)
	if !ok {
		return "", nil, token.ErrSessionCallbackNotFound
	}
	id, argsJSON, err := token.Resolve(parts, st)
	if err != nil {
		return "", nil, err
	}
	args, err := token.DecodeArgs(argsJSON)
	if err != nil {
		return "", nil, err
	}
	return id, args, nil
}

func (w *Waiter) clear(hc host.Context, pending *session.WaitState) {
	if st := hc.State(); st.Wait == pending {
		st.Wait = nil
	}
	w.deleteAnchor(hc, pending)
}

func (w *Waiter) deleteAnchor(hc host.Context, pending *session.WaitState) {
	if pending.MessageID == 0 {
		return
	}
	if err := hc.DeleteMessages(pending.MessageID); err != nil {
		w.log.Debug("wait anchor delete failed",
			"user", hc.UserID(), "message_id", pending.MessageID, "error", err)
	}
}

func matchesAny(hc host.Context, filters []string) bool {
	for _, f := range host.Filters(filters) {
		if hc.Matches(f) {
			return true
		}
	}
	return false
}
