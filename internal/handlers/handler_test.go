package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agyrafa/livecodingtv-bot/internal/client"
	"github.com/agyrafa/livecodingtv-bot/internal/policy"
	"github.com/agyrafa/livecodingtv-bot/internal/stanza"
	"github.com/agyrafa/livecodingtv-bot/internal/store"
)

type fakeTransport struct {
	inbound chan stanza.Raw
	sent    []stanza.Raw
}

func (f *fakeTransport) Connect(ctx context.Context) error { return nil }
func (f *fakeTransport) Recv() <-chan stanza.Raw           { return f.inbound }
func (f *fakeTransport) Close() error                      { return nil }

func (f *fakeTransport) Send(ctx context.Context, s stanza.Raw) error {
	f.sent = append(f.sent, s)
	return nil
}

func newTestHandler(t *testing.T) (*Handler, *fakeTransport, store.KV) {
	t.Helper()
	kv := store.NewMemoryStore()
	transport := &fakeTransport{inbound: make(chan stanza.Raw, 8)}
	limiter := policy.NewRateLimiter(kv, zerolog.Nop())
	dedup := policy.NewDeduplicator(kv, zerolog.Nop())
	c := client.New(transport, kv, dedup, "golang@conf.example.com", false, zerolog.Nop(), nil)
	parser := stanza.NewParser(limiter, nil)
	return New(c, parser, limiter, "gobot", zerolog.Nop()), transport, kv
}

func messageEvent(from, body string, limited bool) *stanza.Event {
	return &stanza.Event{Kind: stanza.KindMessage, From: from, Body: body, RateLimited: limited}
}

func lastBody(t *testing.T, transport *fakeTransport) string {
	t.Helper()
	require.NotEmpty(t, transport.sent)
	body, ok := transport.sent[len(transport.sent)-1].Child("body")
	require.True(t, ok)
	return body.Text[0]
}

func TestPingCommand(t *testing.T) {
	h, transport, _ := newTestHandler(t)

	h.Handle(context.Background(), messageEvent("alice", "!ping", false))

	assert.Equal(t, "@alice: pong", lastBody(t, transport))
}

func TestRateLimitedCommandIsDropped(t *testing.T) {
	h, transport, _ := newTestHandler(t)

	h.Handle(context.Background(), messageEvent("alice", "!ping", true))

	assert.Empty(t, transport.sent, "rate-limited commands are silently skipped")
}

func TestOwnMessagesIgnored(t *testing.T) {
	h, transport, _ := newTestHandler(t)

	h.Handle(context.Background(), messageEvent("gobot", "!ping", false))

	assert.Empty(t, transport.sent)
}

func TestMessagesBumpLeaderboard(t *testing.T) {
	h, _, kv := newTestHandler(t)
	ctx := context.Background()

	h.Handle(ctx, messageEvent("alice", "hello", false))
	h.Handle(ctx, messageEvent("alice", "world", false))
	h.Handle(ctx, messageEvent("bob", "hey", false))

	leaderboard := make(map[string]client.UserRecord)
	found, err := kv.Get(ctx, "leaderboard", &leaderboard)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 2.0, leaderboard["alice"]["messages"])
	assert.Equal(t, 1.0, leaderboard["bob"]["messages"])
}

func TestTopCommand(t *testing.T) {
	h, transport, _ := newTestHandler(t)
	ctx := context.Background()

	h.Handle(ctx, messageEvent("alice", "one", false))
	h.Handle(ctx, messageEvent("alice", "two", false))
	h.Handle(ctx, messageEvent("bob", "hi", false))

	h.Handle(ctx, messageEvent("carol", "!top", false))

	assert.Equal(t, "@carol: most active: alice (2), bob (1), carol (1)", lastBody(t, transport))
}

func TestCommandStampsClock(t *testing.T) {
	h, _, kv := newTestHandler(t)
	ctx := context.Background()

	h.Handle(ctx, messageEvent("alice", "!ping", false))

	limiter := policy.NewRateLimiter(kv, zerolog.Nop())
	limited, err := limiter.CheckAndRecord(ctx, "alice", time.Now())
	require.NoError(t, err)
	assert.True(t, limited, "a just-executed command starts a fresh cooldown")
}

func TestHandleRawParsesAndDispatches(t *testing.T) {
	h, transport, _ := newTestHandler(t)

	h.HandleRaw(context.Background(), stanza.Raw{
		Name:     "message",
		Attrs:    map[string]string{"from": "golang@conf.example.com/alice", "type": "groupchat"},
		Children: []stanza.Node{{Name: "body", Text: []string{"!ping"}}},
	})

	assert.Equal(t, "@alice: pong", lastBody(t, transport))
}

func TestHandleRawDropsMalformed(t *testing.T) {
	h, transport, _ := newTestHandler(t)

	h.HandleRaw(context.Background(), stanza.Raw{
		Name:  "message",
		Attrs: map[string]string{"from": "golang@conf.example.com"},
	})

	assert.Empty(t, transport.sent)
}
