// Package hosttest provides a scripted host.Context for tests. A Recorder
// plays one update's content and records every outgoing call so tests can
// assert on the conversation side effects without a live platform binding.
package hosttest

import (
	"context"

	"recurry/pkg/host"
	"recurry/pkg/session"
)

// SentMessage is one recorded SendMessage call.
type SentMessage struct {
	ID      host.MessageID
	Text    string
	Options host.SendOptions
}

// EditedMessage is one recorded EditMessage call.
type EditedMessage struct {
	ID      host.MessageID
	Text    string
	Options host.SendOptions
}

// Recorder implements host.Context with scripted input and recorded output.
type Recorder struct {
	Ctx     context.Context
	User    int64
	Chat    int64
	Val     string
	Filters map[host.Filter]bool
	St      *session.State

	NextID  host.MessageID
	Sent    []SentMessage
	Edits   []EditedMessage
	Deleted []host.MessageID
	Acks    []string

	SendErr   error
	EditErr   error
	DeleteErr error
}

var _ host.Context = (*Recorder)(nil)

// New returns a Recorder for a user with empty session state. Message
// identifiers start at 100 so tests can tell assigned ids from zero values.
func New(userID int64) *Recorder {
	return &Recorder{
		Ctx:     context.Background(),
		User:    userID,
		Chat:    userID,
		Filters: map[host.Filter]bool{},
		St:      &session.State{},
		NextID:  100,
	}
}

// SetText scripts an incoming text message.
func (r *Recorder) SetText(text string) *Recorder {
	r.Val = text
	r.Filters[host.FilterMessage] = true
	r.Filters[host.FilterText] = true
	r.Filters[host.FilterCallbackQuery] = false
	return r
}

// SetCallback scripts an incoming button press carrying data.
func (r *Recorder) SetCallback(data string) *Recorder {
	r.Val = data
	r.Filters[host.FilterMessage] = false
	r.Filters[host.FilterText] = false
	r.Filters[host.FilterCallbackQuery] = true
	return r
}

// SetFilter scripts an additional content class, such as a photo message.
func (r *Recorder) SetFilter(f host.Filter, on bool) *Recorder {
	r.Filters[f] = on
	return r
}

func (r *Recorder) Context() context.Context { return r.Ctx }
func (r *Recorder) UserID() int64            { return r.User }
func (r *Recorder) ChatID() int64            { return r.Chat }
func (r *Recorder) Value() string            { return r.Val }
func (r *Recorder) State() *session.State    { return r.St }

func (r *Recorder) Matches(f host.Filter) bool { return r.Filters[f] }

func (r *Recorder) SendMessage(text string, opts ...host.SendOption) (host.MessageID, error) {
	if r.SendErr != nil {
		return 0, r.SendErr
	}
	id := r.NextID
	r.NextID++
	r.Sent = append(r.Sent, SentMessage{ID: id, Text: text, Options: host.BuildSendOptions(opts)})
	return id, nil
}

func (r *Recorder) EditMessage(id host.MessageID, text string, opts ...host.SendOption) error {
	if r.EditErr != nil {
		return r.EditErr
	}
	r.Edits = append(r.Edits, EditedMessage{ID: id, Text: text, Options: host.BuildSendOptions(opts)})
	return nil
}

func (r *Recorder) DeleteMessages(ids ...host.MessageID) error {
	if r.DeleteErr != nil {
		return r.DeleteErr
	}
	r.Deleted = append(r.Deleted, ids...)
	return nil
}

func (r *Recorder) Ack(text string) error {
	r.Acks = append(r.Acks, text)
	return nil
}

// LastSent returns the most recent SendMessage call.
func (r *Recorder) LastSent() (SentMessage, bool) {
	if len(r.Sent) == 0 {
		return SentMessage{}, false
	}
	return r.Sent[len(r.Sent)-1], true
}
