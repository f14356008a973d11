package dispatch

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recurry/pkg/curry"
	"recurry/pkg/host"
	"recurry/pkg/host/hosttest"
	"recurry/pkg/wait"
)

var errAngry = errors.New("handler blew up")

func pingHandler(hc host.Context) error {
	_, err := hc.SendMessage("pong")
	return err
}

func sumHandler(hc host.Context, a, b int64) error {
	_, err := hc.SendMessage(fmt.Sprintf("%d", a+b))
	return err
}

func angryHandler(hc host.Context) error { return errAngry }

func noteHandler(hc host.Context, note string) error {
	_, err := hc.SendMessage("note: " + note)
	return err
}

func newRouter(t *testing.T) (*Router, *curry.Registry, *wait.Waiter) {
	t.Helper()
	reg := curry.NewRegistry(nil)
	w := wait.NewWaiter(reg, nil)
	return NewRouter(reg, w, nil), reg, w
}

func TestHandleUpdateCallbackQuery(t *testing.T) {
	r, reg, _ := newRouter(t)

	tok, err := reg.MustCurry(sumHandler, int64(2), int64(3)).Render()
	require.NoError(t, err)

	// A fresh context stands in for a process restart: direct tokens carry
	// everything they need.
	hc := hosttest.New(1).SetCallback(tok)
	handled, err := r.HandleUpdate(hc)
	require.NoError(t, err)
	require.True(t, handled)

	sent, ok := hc.LastSent()
	require.True(t, ok)
	assert.Equal(t, "5", sent.Text)
	assert.Equal(t, []string{""}, hc.Acks, "callback queries are acknowledged")
}

func TestHandleUpdateSessionToken(t *testing.T) {
	r, reg, _ := newRouter(t)
	hc := hosttest.New(1)

	big := strings.Repeat("n", 80)
	tok, err := reg.MustCurry(noteHandler, big).RenderFor(hc)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(tok, "_ch:"))

	handled, err := r.HandleUpdate(hc.SetCallback(tok))
	require.NoError(t, err)
	require.True(t, handled)

	sent, ok := hc.LastSent()
	require.True(t, ok)
	assert.Equal(t, "note: "+big, sent.Text)
}

func TestHandleUpdateStaleSessionToken(t *testing.T) {
	r, _, _ := newRouter(t)
	hc := hosttest.New(1).SetCallback("_ch:deadbeef")

	handled, err := r.HandleUpdate(hc)
	require.NoError(t, err)
	require.True(t, handled, "stale button presses are consumed, not retried")
	assert.Empty(t, hc.Sent)
	assert.Equal(t, []string{""}, hc.Acks, "stale presses still stop the spinner")
}

func TestHandleUpdateHandlerError(t *testing.T) {
	r, reg, _ := newRouter(t)

	tok, err := reg.MustCurry(angryHandler).Render()
	require.NoError(t, err)

	handled, err := r.HandleUpdate(hosttest.New(1).SetCallback(tok))
	require.True(t, handled)
	require.ErrorIs(t, err, errAngry)
}

func TestHandleUpdatePlainTextFallsThrough(t *testing.T) {
	r, _, _ := newRouter(t)

	handled, err := r.HandleUpdate(hosttest.New(1).SetText("just chatting"))
	require.NoError(t, err)
	require.False(t, handled)
}

func TestHandleUpdateReplyLabel(t *testing.T) {
	r, reg, _ := newRouter(t)
	hc := hosttest.New(1)

	btn, err := reg.MustCurry(pingHandler).ReplyButton("Ping")
	require.NoError(t, err)
	hc.St.SetReply(btn.Text, btn.Token)

	handled, err := r.HandleUpdate(hc.SetText("Ping"))
	require.NoError(t, err)
	require.True(t, handled)

	sent, ok := hc.LastSent()
	require.True(t, ok)
	assert.Equal(t, "pong", sent.Text)
}

func TestHandleUpdateReplyLabelIsExact(t *testing.T) {
	r, reg, _ := newRouter(t)
	hc := hosttest.New(1)

	btn, err := reg.MustCurry(pingHandler).ReplyButton("Ping")
	require.NoError(t, err)
	hc.St.SetReply(btn.Text, btn.Token)

	handled, err := r.HandleUpdate(hc.SetText("ping"))
	require.NoError(t, err)
	require.False(t, handled, "labels match byte for byte")
}

func TestHandleUpdateWaitRunsFirst(t *testing.T) {
	r, reg, w := newRouter(t)
	hc := hosttest.New(1)

	require.NoError(t, w.Pause(hc, reg.MustCurry(noteHandler, "waited")))

	// Even text matching a reply label goes to the pending wait first.
	btn, err := reg.MustCurry(pingHandler).ReplyButton("Ping")
	require.NoError(t, err)
	hc.St.SetReply(btn.Text, btn.Token)

	handled, err := r.HandleUpdate(hc.SetText("Ping"))
	require.NoError(t, err)
	require.True(t, handled)

	sent, ok := hc.LastSent()
	require.True(t, ok)
	assert.Equal(t, "note: waited", sent.Text)
	assert.Nil(t, hc.St.Wait)
}

func TestHandleUpdateAcksQueryConsumedByWait(t *testing.T) {
	r, reg, w := newRouter(t)
	hc := hosttest.New(1)

	require.NoError(t, w.Pause(hc, reg.MustCurry(pingHandler)))

	handled, err := r.HandleUpdate(hc.SetCallback("/cancel"))
	require.NoError(t, err)
	require.True(t, handled)
	assert.Nil(t, hc.St.Wait)
	assert.Equal(t, []string{""}, hc.Acks, "a press the wait consumed still stops the spinner")
}

func TestHandleUpdateAcksQueryWhenResumeFails(t *testing.T) {
	r, reg, w := newRouter(t)
	hc := hosttest.New(1)

	require.NoError(t, w.Pause(hc, reg.MustCurry(angryHandler), wait.WithFilters(host.FilterCallbackQuery)))

	handled, err := r.HandleUpdate(hc.SetCallback("anything"))
	require.True(t, handled)
	require.ErrorIs(t, err, errAngry)
	assert.Equal(t, []string{""}, hc.Acks)
}

func TestDispatchDataNotAToken(t *testing.T) {
	r, _, _ := newRouter(t)

	for _, data := range []string{"", "hello", "_zz:abc", "_cb:"} {
		handled, err := r.DispatchData(hosttest.New(1), data)
		require.NoError(t, err)
		require.False(t, handled, "data %q", data)
	}
}

func TestDispatchDataUnknownTarget(t *testing.T) {
	r, _, _ := newRouter(t)

	handled, err := r.DispatchData(hosttest.New(1), "_cb:zzzz99999999")
	require.NoError(t, err)
	require.False(t, handled)
}

func TestDispatchDataBadArguments(t *testing.T) {
	r, reg, _ := newRouter(t)
	id := reg.MustRegister(pingHandler)

	handled, err := r.DispatchData(hosttest.New(1), "_cb:"+id+":[broken")
	require.NoError(t, err)
	require.False(t, handled)
}

func TestRecentContext(t *testing.T) {
	r, _, _ := newRouter(t)
	hc := hosttest.New(42).SetText("hi")

	_, err := r.HandleUpdate(hc)
	require.NoError(t, err)

	got, ok := r.RecentContext(42)
	require.True(t, ok)
	assert.Same(t, hc, got)

	_, ok = r.RecentContext(7)
	require.False(t, ok)
}

func TestRecentContextExpires(t *testing.T) {
	r, _, _ := newRouter(t)
	hc := hosttest.New(42).SetText("hi")

	_, err := r.HandleUpdate(hc)
	require.NoError(t, err)

	r.recent.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, ok := r.RecentContext(42)
	require.False(t, ok)
}

func TestRecentCacheLimit(t *testing.T) {
	c := newRecentCache(time.Minute, 2)
	base := time.Now()
	tick := 0
	c.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	c.put(1, hosttest.New(1))
	c.put(2, hosttest.New(2))
	c.put(3, hosttest.New(3))

	_, ok := c.get(1)
	assert.False(t, ok, "oldest entry evicted at capacity")
	_, ok = c.get(2)
	assert.True(t, ok)
	_, ok = c.get(3)
	assert.True(t, ok)

	// Updating an existing user does not evict anyone.
	c.put(2, hosttest.New(2))
	_, ok = c.get(3)
	assert.True(t, ok)
}
