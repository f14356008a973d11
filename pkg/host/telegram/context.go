package telegram

import (
	"context"
	"fmt"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"recurry/pkg/host"
	"recurry/pkg/session"
)

// updateContext implements host.Context for one Telegram update.
type updateContext struct {
	ctx    context.Context
	b      *Binding
	chatID int64
	userID int64
	value  string
	kinds  map[host.Filter]bool
	st     *session.State
	query  *telego.CallbackQuery
	acked  bool
}

var _ host.Context = (*updateContext)(nil)

// contextFor classifies an update and wraps it. Updates other than messages
// and callback queries report ok=false and are skipped.
func (b *Binding) contextFor(ctx context.Context, update telego.Update) (*updateContext, bool, error) {
	hc := &updateContext{ctx: ctx, b: b, kinds: map[host.Filter]bool{}}

	switch {
	case update.Message != nil && update.Message.From != nil:
		msg := update.Message
		hc.userID = msg.From.ID
		hc.chatID = msg.Chat.ID
		hc.value = msg.Text
		hc.kinds[host.FilterMessage] = true
		if msg.Text != "" {
			hc.kinds[host.FilterText] = true
		}
		if len(msg.Photo) > 0 {
			hc.kinds[host.FilterPhoto] = true
		}
		if msg.Document != nil {
			hc.kinds[host.FilterDocument] = true
		}
		if msg.Voice != nil {
			hc.kinds[host.FilterVoice] = true
		}
		if msg.Contact != nil {
			hc.kinds[host.FilterContact] = true
		}
		if msg.Location != nil {
			hc.kinds[host.FilterLocation] = true
		}
		if hc.value == "" {
			hc.value = msg.Caption
		}
	case update.CallbackQuery != nil:
		q := update.CallbackQuery
		hc.query = q
		hc.userID = q.From.ID
		hc.value = q.Data
		hc.kinds[host.FilterCallbackQuery] = true
		if q.Message != nil {
			hc.chatID = q.Message.GetChat().ID
		} else {
			hc.chatID = q.From.ID
		}
	default:
		return nil, false, nil
	}

	st, err := b.sessions.State(ctx, hc.userID)
	if err != nil {
		return nil, false, fmt.Errorf("load session for %d: %w", hc.userID, err)
	}
	hc.st = st
	return hc, true, nil
}

func (c *updateContext) Context() context.Context { return c.ctx }
func (c *updateContext) UserID() int64            { return c.userID }
func (c *updateContext) ChatID() int64            { return c.chatID }
func (c *updateContext) Value() string            { return c.value }
func (c *updateContext) State() *session.State    { return c.st }

func (c *updateContext) Matches(f host.Filter) bool { return c.kinds[f] }

func (c *updateContext) SendMessage(text string, opts ...host.SendOption) (host.MessageID, error) {
	o := host.BuildSendOptions(opts)
	params := tu.Message(tu.ID(c.chatID), text)

	switch {
	case len(o.InlineKeyboard) > 0:
		params = params.WithReplyMarkup(inlineMarkup(o.InlineKeyboard))
	case len(o.ReplyKeyboard) > 0:
		// The keyboard's labels become the chat's label-to-token table;
		// tokens stay in session state and never reach the wire.
		c.st.ReplaceReply(replyTable(o.ReplyKeyboard))
		params = params.WithReplyMarkup(replyMarkup(o.ReplyKeyboard, o.OneTimeKeyboard))
	case o.RemoveReplyBoard:
		c.st.ReplaceReply(nil)
		params = params.WithReplyMarkup(&telego.ReplyKeyboardRemove{RemoveKeyboard: true})
	}
	if o.DisablePreview {
		params = params.WithLinkPreviewOptions(&telego.LinkPreviewOptions{IsDisabled: true})
	}
	if o.HTML {
		params = params.WithParseMode(telego.ModeHTML)
	}

	msg, err := c.b.bot.SendMessage(c.ctx, params)
	if err != nil {
		return 0, fmt.Errorf("send message to %d: %w", c.chatID, err)
	}
	return msg.MessageID, nil
}

func (c *updateContext) EditMessage(id host.MessageID, text string, opts ...host.SendOption) error {
	o := host.BuildSendOptions(opts)
	params := &telego.EditMessageTextParams{
		ChatID:    tu.ID(c.chatID),
		MessageID: id,
		Text:      text,
	}
	if len(o.InlineKeyboard) > 0 {
		params.ReplyMarkup = inlineMarkup(o.InlineKeyboard)
	}
	if o.HTML {
		params.ParseMode = telego.ModeHTML
	}

	if _, err := c.b.bot.EditMessageText(c.ctx, params); err != nil {
		return fmt.Errorf("edit message %d in %d: %w", id, c.chatID, err)
	}
	return nil
}

func (c *updateContext) DeleteMessages(ids ...host.MessageID) error {
	if len(ids) == 0 {
		return nil
	}
	err := c.b.bot.DeleteMessages(c.ctx, &telego.DeleteMessagesParams{
		ChatID:     tu.ID(c.chatID),
		MessageIDs: ids,
	})
	if err != nil {
		return fmt.Errorf("delete messages in %d: %w", c.chatID, err)
	}
	return nil
}

func (c *updateContext) Ack(text string) error {
	if c.query == nil || c.acked {
		return nil
	}
	params := tu.CallbackQuery(c.query.ID)
	if text != "" {
		params = params.WithText(text)
	}
	if err := c.b.bot.AnswerCallbackQuery(c.ctx, params); err != nil {
		return fmt.Errorf("answer callback query: %w", err)
	}
	c.acked = true
	return nil
}

func inlineMarkup(rows [][]host.InlineButton) *telego.InlineKeyboardMarkup {
	converted := make([][]telego.InlineKeyboardButton, len(rows))
	for i, row := range rows {
		converted[i] = make([]telego.InlineKeyboardButton, len(row))
		for j, btn := range row {
			converted[i][j] = tu.InlineKeyboardButton(btn.Text).WithCallbackData(btn.Data)
		}
	}
	return tu.InlineKeyboard(converted...)
}

func replyMarkup(rows [][]host.ReplyButton, oneTime bool) *telego.ReplyKeyboardMarkup {
	converted := make([][]telego.KeyboardButton, len(rows))
	for i, row := range rows {
		converted[i] = make([]telego.KeyboardButton, len(row))
		for j, btn := range row {
			converted[i][j] = tu.KeyboardButton(btn.Text)
		}
	}
	markup := tu.Keyboard(converted...).WithResizeKeyboard()
	if oneTime {
		markup = markup.WithOneTimeKeyboard()
	}
	return markup
}

func replyTable(rows [][]host.ReplyButton) map[string]string {
	table := make(map[string]string)
	for _, row := range rows {
		for _, btn := range row {
			table[btn.Text] = btn.Token
		}
	}
	return table
}
