// Package dispatch routes incoming updates to callback handlers. An update
// first goes to the pending input wait, then to callback-data resolution,
// then to reply-keyboard label correlation; updates nothing claims are
// reported back to the binding for its own fallback handling.
package dispatch

import (
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"recurry/pkg/curry"
	"recurry/pkg/host"
	"recurry/pkg/token"
	"recurry/pkg/wait"
)

const (
	defaultRecentTTL   = time.Minute
	defaultRecentLimit = 256
)

// Router dispatches updates against a callback registry and a waiter.
type Router struct {
	log    *slog.Logger
	reg    *curry.Registry
	waiter *wait.Waiter
	recent *recentCache
}

// RouterOption adjusts router construction.
type RouterOption func(*Router)

// WithRecentTTL bounds how long an update context stays available for
// out-of-band sends after its update was handled.
func WithRecentTTL(d time.Duration) RouterOption {
	return func(r *Router) { r.recent.ttl = d }
}

// WithRecentLimit bounds how many user contexts the recent cache retains.
func WithRecentLimit(n int) RouterOption {
	return func(r *Router) { r.recent.max = n }
}

// NewRouter returns a Router resolving callbacks through reg and offering
// updates to waiter first.
func NewRouter(reg *curry.Registry, waiter *wait.Waiter, log *slog.Logger, opts ...RouterOption) *Router {
	if log == nil {
		log = slog.Default()
	}
	r := &Router{
		log:    log.With("component", "dispatch"),
		reg:    reg,
		waiter: waiter,
		recent: newRecentCache(defaultRecentTTL, defaultRecentLimit),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// HandleUpdate routes one update. It reports whether anything consumed the
// update; the binding falls back to its default handler otherwise.
func (r *Router) HandleUpdate(hc host.Context) (bool, error) {
	cid := uuid.NewString()
	log := r.log.With("correlation_id", cid, "user", hc.UserID())

	r.recent.put(hc.UserID(), hc)

	handled, err := r.waiter.Intercept(hc)
	if (handled || err != nil) && hc.Matches(host.FilterCallbackQuery) {
		// Presses consumed by the wait never reach the ack below.
		if ackErr := hc.Ack(""); ackErr != nil {
			log.Debug("callback ack failed", "error", ackErr)
		}
	}
	if err != nil {
		log.Error("wait resume failed", "error", err)
		return true, err
	}
	if handled {
		log.Debug("update consumed by pending wait")
		return true, nil
	}

	if hc.Matches(host.FilterCallbackQuery) {
		handled, err := r.DispatchData(hc, hc.Value())
		if ackErr := hc.Ack(""); ackErr != nil {
			log.Debug("callback ack failed", "error", ackErr)
		}
		if err != nil {
			log.Error("callback handler failed", "error", err)
			return true, err
		}
		if !handled {
			log.Warn("callback data not routable", "data", hc.Value())
		}
		// A pressed button is consumed even when stale; there is nothing
		// sensible to fall back to.
		return true, nil
	}

	if hc.Matches(host.FilterText) {
		if tok, ok := hc.State().ReplyToken(hc.Value()); ok {
			handled, err := r.DispatchData(hc, tok)
			if err != nil {
				log.Error("reply button handler failed", "label", hc.Value(), "error", err)
				return true, err
			}
			if handled {
				log.Debug("update matched reply button", "label", hc.Value())
				return true, nil
			}
			log.Warn("reply button token not routable", "label", hc.Value())
		}
	}

	return false, nil
}

// DispatchData resolves a wire token and invokes its handler. It reports
// false without error for data that is not a routable token: malformed
// input, evicted session entries, and identifiers this process does not
// know. Handler failures propagate.
func (r *Router) DispatchData(hc host.Context, data string) (bool, error) {
	parts, ok := token.Split(data)
	if !ok {
		return false, nil
	}

	id, argsJSON, err := token.Resolve(parts, hc.State())
	if err != nil {
		r.log.Warn("callback token unresolvable", "user", hc.UserID(), "error", err)
		return false, nil
	}
	args, err := token.DecodeArgs(argsJSON)
	if err != nil {
		r.log.Warn("callback arguments undecodable", "user", hc.UserID(), "target", id, "error", err)
		return false, nil
	}

	if _, err := r.reg.Execute(hc, id, args...); err != nil {
		if errors.Is(err, curry.ErrUnknownCallback) {
			r.log.Warn("callback target unknown", "user", hc.UserID(), "target", id)
			return false, nil
		}
		return true, err
	}
	return true, nil
}

// RecentContext returns the most recent handled update context for a user,
// if one is still fresh. Out-of-band work uses it to reach a chat without an
// update in hand.
func (r *Router) RecentContext(userID int64) (host.Context, bool) {
	return r.recent.get(userID)
}
