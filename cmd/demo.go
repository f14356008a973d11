package cmd

import (
	"fmt"
	"strings"
	"time"

	"recurry/pkg/curry"
	"recurry/pkg/host"
	"recurry/pkg/wait"
)

const renameTimeout = 5 * time.Minute

// noteText is deliberately longer than a callback button can carry, so the
// "Long note" flow goes through the session overflow table.
const noteText = "Callbacks whose bound arguments do not fit in sixty-four bytes are " +
	"stored in your session and referenced by a short hash. Pressing this button " +
	"resolved exactly that reference."

// demo wires the showcase conversation: curried inline buttons, a resumable
// rename flow, a reply-keyboard menu, and an oversized-arguments button.
type demo struct {
	reg    *curry.Registry
	waiter *wait.Waiter

	greetCb    *curry.Callback
	menuCb     *curry.Callback
	renameCb   *curry.Callback
	noteCb     *curry.Callback
	setNameCb  *curry.Callback
	openNoteCb *curry.Callback
}

func newDemo(reg *curry.Registry, waiter *wait.Waiter) (*demo, error) {
	d := &demo{reg: reg, waiter: waiter}

	var err error
	if d.greetCb, err = reg.Curry(d.greet); err != nil {
		return nil, err
	}
	if d.menuCb, err = reg.Curry(d.showMenu); err != nil {
		return nil, err
	}
	if d.renameCb, err = reg.Curry(d.askRename); err != nil {
		return nil, err
	}
	if d.noteCb, err = reg.Curry(d.longNote); err != nil {
		return nil, err
	}
	if d.setNameCb, err = reg.Curry(d.setName); err != nil {
		return nil, err
	}
	if d.openNoteCb, err = reg.Curry(d.openNote); err != nil {
		return nil, err
	}
	return d, nil
}

// welcome handles every update nothing else routed.
func (d *demo) welcome(hc host.Context) error {
	menu, err := d.menuCb.ReplyButton("Menu")
	if err != nil {
		return err
	}
	rename, err := d.renameCb.ReplyButton("Rename me")
	if err != nil {
		return err
	}
	note, err := d.noteCb.ReplyButton("Long note")
	if err != nil {
		return err
	}

	_, err = hc.SendMessage("Hi! Pick an option below.",
		host.WithReplyKeyboard(
			[]host.ReplyButton{menu, rename},
			[]host.ReplyButton{note},
		))
	return err
}

func (d *demo) showMenu(hc host.Context) error {
	ann, err := d.greetCb.Bind("Ann", int64(2)).Button(hc, "Greet Ann")
	if err != nil {
		return err
	}
	bob, err := d.greetCb.Bind("Bob", int64(5)).Button(hc, "Greet Bob")
	if err != nil {
		return err
	}

	_, err = hc.SendMessage("Who should I greet?",
		host.WithInlineKeyboard([]host.InlineButton{ann, bob}))
	return err
}

func (d *demo) greet(hc host.Context, name string, waves int64) error {
	_, err := hc.SendMessage(fmt.Sprintf("Hello, %s! %s", name, strings.Repeat("👋", int(waves))))
	return err
}

func (d *demo) askRename(hc host.Context) error {
	id, err := hc.SendMessage("What should I call you? Send /cancel to keep things as they are.")
	if err != nil {
		return err
	}
	return d.waiter.Pause(hc, d.setNameCb,
		wait.WithMessage(id),
		wait.WithTimeout(renameTimeout))
}

// setName consumes the reply to askRename. Returning false keeps the wait
// pending so the user can try again.
func (d *demo) setName(hc host.Context) (bool, error) {
	name := strings.TrimSpace(hc.Value())
	if len(name) < 2 {
		_, err := hc.SendMessage("That name is too short, try again.")
		return false, err
	}
	_, err := hc.SendMessage(fmt.Sprintf("Nice to meet you, %s!", name))
	return true, err
}

func (d *demo) longNote(hc host.Context) error {
	open, err := d.openNoteCb.Bind(noteText).Button(hc, "Open the note")
	if err != nil {
		return err
	}
	_, err = hc.SendMessage("This note does not fit in a button, so the button carries a session reference.",
		host.WithInlineKeyboard([]host.InlineButton{open}))
	return err
}

func (d *demo) openNote(hc host.Context, note string) error {
	_, err := hc.SendMessage(note)
	return err
}
