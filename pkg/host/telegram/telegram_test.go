package telegram

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/mymmrac/telego"

	"recurry/pkg/host"
	"recurry/pkg/session"
)

func newTestBinding() *Binding {
	return &Binding{
		log:      slog.Default(),
		sessions: session.NewManager(session.NewMemoryStore(), slog.Default()),
	}
}

func TestAllowed(t *testing.T) {
	b := &Binding{allow: map[int64]struct{}{1: {}}}
	if !b.allowed(1) {
		t.Fatal("expected sender 1 to be allowed")
	}
	if b.allowed(2) {
		t.Fatal("expected sender 2 to be denied")
	}

	b.allow = nil
	if !b.allowed(99) {
		t.Fatal("expected sender to be allowed when allowlist empty")
	}
}

func TestContextForTextMessage(t *testing.T) {
	b := newTestBinding()
	update := telego.Update{Message: &telego.Message{
		MessageID: 10,
		From:      &telego.User{ID: 7},
		Chat:      telego.Chat{ID: 8},
		Text:      "hello",
	}}

	hc, ok, err := b.contextFor(context.Background(), update)
	if err != nil || !ok {
		t.Fatalf("contextFor = %v, %v", ok, err)
	}
	if hc.UserID() != 7 || hc.ChatID() != 8 {
		t.Fatalf("ids = %d/%d, want 7/8", hc.UserID(), hc.ChatID())
	}
	if hc.Value() != "hello" {
		t.Fatalf("value = %q, want %q", hc.Value(), "hello")
	}
	if !hc.Matches(host.FilterMessage) || !hc.Matches(host.FilterText) {
		t.Fatal("expected message and text filters to match")
	}
	if hc.Matches(host.FilterCallbackQuery) {
		t.Fatal("text message must not match callback_query")
	}
	if hc.State() == nil {
		t.Fatal("expected session state to be loaded")
	}
}

func TestContextForPhotoMessage(t *testing.T) {
	b := newTestBinding()
	update := telego.Update{Message: &telego.Message{
		From:    &telego.User{ID: 7},
		Chat:    telego.Chat{ID: 7},
		Photo:   []telego.PhotoSize{{FileID: "f1"}},
		Caption: "holiday",
	}}

	hc, ok, err := b.contextFor(context.Background(), update)
	if err != nil || !ok {
		t.Fatalf("contextFor = %v, %v", ok, err)
	}
	if !hc.Matches(host.FilterPhoto) || !hc.Matches(host.FilterMessage) {
		t.Fatal("expected photo and message filters to match")
	}
	if hc.Matches(host.FilterText) {
		t.Fatal("captioned photo must not match message:text")
	}
	if hc.Value() != "holiday" {
		t.Fatalf("value = %q, want caption", hc.Value())
	}
}

func TestContextForCallbackQuery(t *testing.T) {
	b := newTestBinding()
	update := telego.Update{CallbackQuery: &telego.CallbackQuery{
		ID:      "q1",
		From:    telego.User{ID: 7},
		Data:    "_cb:abc123",
		Message: &telego.Message{MessageID: 5, Chat: telego.Chat{ID: 99}},
	}}

	hc, ok, err := b.contextFor(context.Background(), update)
	if err != nil || !ok {
		t.Fatalf("contextFor = %v, %v", ok, err)
	}
	if hc.UserID() != 7 || hc.ChatID() != 99 {
		t.Fatalf("ids = %d/%d, want 7/99", hc.UserID(), hc.ChatID())
	}
	if hc.Value() != "_cb:abc123" {
		t.Fatalf("value = %q, want callback data", hc.Value())
	}
	if !hc.Matches(host.FilterCallbackQuery) || hc.Matches(host.FilterMessage) {
		t.Fatal("expected only callback_query filter to match")
	}
}

func TestContextForCallbackQueryWithoutMessage(t *testing.T) {
	b := newTestBinding()
	update := telego.Update{CallbackQuery: &telego.CallbackQuery{
		ID:   "q1",
		From: telego.User{ID: 7},
		Data: "_cb:abc123",
	}}

	hc, ok, err := b.contextFor(context.Background(), update)
	if err != nil || !ok {
		t.Fatalf("contextFor = %v, %v", ok, err)
	}
	if hc.ChatID() != 7 {
		t.Fatalf("chat id = %d, want sender fallback 7", hc.ChatID())
	}
}

func TestContextForUnsupportedUpdate(t *testing.T) {
	b := newTestBinding()
	_, ok, err := b.contextFor(context.Background(), telego.Update{UpdateID: 1})
	if err != nil {
		t.Fatalf("contextFor err = %v", err)
	}
	if ok {
		t.Fatal("expected unsupported update to be skipped")
	}
}

type failingStore struct{}

func (failingStore) Load(context.Context, int64) (*session.State, error) {
	return nil, errors.New("store offline")
}

func (failingStore) Save(context.Context, int64, *session.State) error { return nil }

func (failingStore) Close(context.Context) error { return nil }

func TestContextForStateLoadFailure(t *testing.T) {
	b := &Binding{
		log:      slog.Default(),
		sessions: session.NewManager(failingStore{}, slog.Default()),
	}
	update := telego.Update{Message: &telego.Message{
		From: &telego.User{ID: 7},
		Chat: telego.Chat{ID: 7},
		Text: "hello",
	}}

	_, ok, err := b.contextFor(context.Background(), update)
	if err == nil {
		t.Fatal("expected an error when session state cannot load")
	}
	if ok {
		t.Fatal("no context may be produced without session state")
	}
}

func TestReplyTable(t *testing.T) {
	rows := [][]host.ReplyButton{
		{{Text: "A", Token: "_cb:a1"}, {Text: "B", Token: "_cb:b1"}},
		{{Text: "C", Token: "_cb:c1"}},
	}
	table := replyTable(rows)
	if len(table) != 3 {
		t.Fatalf("table len = %d, want 3", len(table))
	}
	if table["B"] != "_cb:b1" {
		t.Fatalf("table[B] = %q, want %q", table["B"], "_cb:b1")
	}
}

func TestInlineMarkup(t *testing.T) {
	markup := inlineMarkup([][]host.InlineButton{
		{{Text: "Yes", Data: "_cb:y"}, {Text: "No", Data: "_cb:n"}},
	})
	if len(markup.InlineKeyboard) != 1 || len(markup.InlineKeyboard[0]) != 2 {
		t.Fatalf("unexpected keyboard shape: %+v", markup.InlineKeyboard)
	}
	btn := markup.InlineKeyboard[0][1]
	if btn.Text != "No" || btn.CallbackData != "_cb:n" {
		t.Fatalf("button = %+v", btn)
	}
}

func TestReplyMarkup(t *testing.T) {
	markup := replyMarkup([][]host.ReplyButton{
		{{Text: "Menu", Token: "_cb:m"}},
	}, true)
	if len(markup.Keyboard) != 1 || markup.Keyboard[0][0].Text != "Menu" {
		t.Fatalf("unexpected keyboard shape: %+v", markup.Keyboard)
	}
	if !markup.ResizeKeyboard || !markup.OneTimeKeyboard {
		t.Fatal("expected resize and one-time flags")
	}
}
