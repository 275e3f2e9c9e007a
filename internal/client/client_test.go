package client

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agyrafa/livecodingtv-bot/internal/policy"
	"github.com/agyrafa/livecodingtv-bot/internal/stanza"
	"github.com/agyrafa/livecodingtv-bot/internal/store"
)

type fakeTransport struct {
	inbound chan stanza.Raw
	sent    []stanza.Raw
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{inbound: make(chan stanza.Raw, 8)}
}

func (f *fakeTransport) Connect(ctx context.Context) error { return nil }
func (f *fakeTransport) Recv() <-chan stanza.Raw           { return f.inbound }
func (f *fakeTransport) Close() error                      { close(f.inbound); return nil }

func (f *fakeTransport) Send(ctx context.Context, s stanza.Raw) error {
	f.sent = append(f.sent, s)
	return nil
}

func newTestClient(t *testing.T, transport Transport, debug bool, now *time.Time) *Client {
	t.Helper()
	kv := store.NewMemoryStore()
	dedup := policy.NewDeduplicator(kv, zerolog.Nop())
	return New(transport, kv, dedup, "golang@chat.example.com", debug, zerolog.Nop(), func() time.Time { return *now })
}

func sentBody(t *testing.T, s stanza.Raw) string {
	t.Helper()
	body, ok := s.Child("body")
	require.True(t, ok)
	require.Len(t, body.Text, 1)
	return body.Text[0]
}

func TestSendMessage(t *testing.T) {
	transport := newFakeTransport()
	now := time.UnixMilli(0)
	c := newTestClient(t, transport, false, &now)

	sent, err := c.SendMessage(context.Background(), "hello room")
	require.NoError(t, err)
	assert.True(t, sent)

	require.Len(t, transport.sent, 1)
	msg := transport.sent[0]
	assert.Equal(t, "message", msg.Name)
	assert.Equal(t, "golang@chat.example.com", msg.Attr("to"))
	assert.Equal(t, "groupchat", msg.Attr("type"))
	assert.NotEmpty(t, msg.Attr("id"))
	assert.Equal(t, "hello room", sentBody(t, msg))
}

func TestSendMessageSuppressesDuplicate(t *testing.T) {
	transport := newFakeTransport()
	now := time.UnixMilli(0)
	c := newTestClient(t, transport, false, &now)

	sent, err := c.SendMessage(context.Background(), "hello")
	require.NoError(t, err)
	require.True(t, sent)

	now = time.UnixMilli(3000)
	sent, err = c.SendMessage(context.Background(), "hello")
	require.NoError(t, err)
	assert.False(t, sent, "duplicate inside the window is silently dropped")
	assert.Len(t, transport.sent, 1)
}

func TestSendMessageDebugMode(t *testing.T) {
	transport := newFakeTransport()
	now := time.UnixMilli(0)
	c := newTestClient(t, transport, true, &now)

	sent, err := c.SendMessage(context.Background(), "hello")
	require.NoError(t, err)
	assert.False(t, sent, "debug mode never sends")
	assert.Empty(t, transport.sent)
}

func TestReplyTo(t *testing.T) {
	transport := newFakeTransport()
	now := time.UnixMilli(0)
	c := newTestClient(t, transport, false, &now)

	sent, err := c.ReplyTo(context.Background(), "alice", "pong")
	require.NoError(t, err)
	require.True(t, sent)

	require.Len(t, transport.sent, 1)
	assert.Equal(t, "@alice: pong", sentBody(t, transport.sent[0]))
}

func TestListenDeliversRawStanzas(t *testing.T) {
	transport := newFakeTransport()
	now := time.UnixMilli(0)
	c := newTestClient(t, transport, false, &now)

	raw := stanza.Raw{Name: "message", Attrs: map[string]string{"from": "room/alice"}}
	transport.inbound <- raw
	transport.Close()

	var got []stanza.Raw
	err := c.Listen(context.Background(), func(r stanza.Raw) {
		got = append(got, r)
	})
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, raw, got[0])
}

func TestListenStopsOnContextCancel(t *testing.T) {
	transport := newFakeTransport()
	now := time.UnixMilli(0)
	c := newTestClient(t, transport, false, &now)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Listen(ctx, func(stanza.Raw) { t.Fatal("no stanza expected") })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGetUser(t *testing.T) {
	transport := newFakeTransport()
	now := time.UnixMilli(0)
	c := newTestClient(t, transport, false, &now)
	ctx := context.Background()

	require.NoError(t, c.SaveSetting(ctx, "leaderboard", map[string]UserRecord{
		"alice": {"messages": 3.0},
	}))

	rec, err := c.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 3.0, rec["messages"])

	rec, err = c.GetUser(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, rec)
	assert.Empty(t, rec, "unknown users get an empty record")
}

func TestSettingsRoundTrip(t *testing.T) {
	transport := newFakeTransport()
	now := time.UnixMilli(0)
	c := newTestClient(t, transport, false, &now)
	ctx := context.Background()

	require.NoError(t, c.SaveSetting(ctx, "greeting", "welcome!"))

	var got string
	require.NoError(t, c.GetSetting(ctx, "greeting", &got))
	assert.Equal(t, "welcome!", got)
}
