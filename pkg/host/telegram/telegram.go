// Package telegram binds the callback router to the Telegram Bot API. It
// consumes updates over long polling, wraps each one in a host.Context
// backed by the user's session, and hands it to the dispatch router.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mymmrac/telego"

	"recurry/pkg/dispatch"
	"recurry/pkg/host"
	"recurry/pkg/session"
)

// Config holds Telegram connection settings.
type Config struct {
	// Token is the bot token from BotFather.
	Token string
	// AllowFrom restricts the bot to these user IDs. Empty allows everyone.
	AllowFrom []int64
}

// Binding connects a dispatch.Router to one Telegram bot.
type Binding struct {
	bot      *telego.Bot
	log      *slog.Logger
	router   *dispatch.Router
	sessions *session.Manager
	allow    map[int64]struct{}
	fallback func(host.Context) error
}

// New creates a Binding for the configured bot.
func New(cfg Config, router *dispatch.Router, sessions *session.Manager, log *slog.Logger) (*Binding, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram.token is required")
	}
	bot, err := telego.NewBot(strings.TrimSpace(cfg.Token))
	if err != nil {
		return nil, fmt.Errorf("initialize telegram bot: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}

	b := &Binding{
		bot:      bot,
		log:      log.With("component", "telegram"),
		router:   router,
		sessions: sessions,
		allow:    make(map[int64]struct{}, len(cfg.AllowFrom)),
	}
	for _, id := range cfg.AllowFrom {
		b.allow[id] = struct{}{}
	}
	return b, nil
}

// OnUnhandled registers a handler for updates nothing routed: no pending
// wait, no callback token, no reply-keyboard label.
func (b *Binding) OnUnhandled(fn func(host.Context) error) {
	b.fallback = fn
}

// Run consumes updates until ctx is cancelled. Updates are handled one at a
// time, so session reads and writes for a user never race with each other.
func (b *Binding) Run(ctx context.Context) error {
	updates, err := b.bot.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		return fmt.Errorf("start long polling: %w", err)
	}

	b.log.Info("Telegram binding started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("telegram updates channel closed")
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Binding) handleUpdate(ctx context.Context, update telego.Update) {
	hc, ok, err := b.contextFor(ctx, update)
	if err != nil {
		b.log.Error("Failed to build update context", "update_id", update.UpdateID, "error", err)
		return
	}
	if !ok {
		b.log.Debug("Ignoring unsupported update", "update_id", update.UpdateID)
		return
	}
	if !b.allowed(hc.userID) {
		b.log.Debug("Ignoring update from unauthorized sender", "sender_id", hc.userID)
		return
	}

	handled, err := b.router.HandleUpdate(hc)
	if err != nil {
		b.log.Error("Failed to process update", "update_id", update.UpdateID, "sender_id", hc.userID, "error", err)
	}
	if !handled && err == nil && b.fallback != nil {
		if err := b.fallback(hc); err != nil {
			b.log.Error("Fallback handler failed", "sender_id", hc.userID, "error", err)
		}
	}

	if err := b.sessions.Flush(ctx, hc.userID); err != nil {
		b.log.Error("Failed to persist session", "sender_id", hc.userID, "error", err)
	}
}

func (b *Binding) allowed(userID int64) bool {
	if len(b.allow) == 0 {
		return true
	}
	_, ok := b.allow[userID]
	return ok
}

// SendTo reaches a user outside any update, for timers and background work.
// It prefers the user's recent update context so group chats keep their chat
// id; without one it assumes a private chat, where the chat id equals the
// user id.
func (b *Binding) SendTo(ctx context.Context, userID int64, text string, opts ...host.SendOption) (host.MessageID, error) {
	if hc, ok := b.router.RecentContext(userID); ok {
		id, err := hc.SendMessage(text, opts...)
		if err != nil {
			return 0, err
		}
		return id, b.sessions.Flush(ctx, userID)
	}

	b.log.Debug("No recent context for user, assuming private chat", "sender_id", userID)
	st, err := b.sessions.State(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("load session for %d: %w", userID, err)
	}
	hc := &updateContext{
		ctx:    ctx,
		b:      b,
		chatID: userID,
		userID: userID,
		kinds:  map[host.Filter]bool{},
		st:     st,
	}
	id, err := hc.SendMessage(text, opts...)
	if err != nil {
		return 0, err
	}
	return id, b.sessions.Flush(ctx, userID)
}
