// Package client orchestrates the chat-room connection: sending messages
// through the duplicate filter, delivering inbound stanzas to a handler,
// and exposing the settings store.
package client

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/agyrafa/livecodingtv-bot/internal/metrics"
	"github.com/agyrafa/livecodingtv-bot/internal/policy"
	"github.com/agyrafa/livecodingtv-bot/internal/stanza"
	"github.com/agyrafa/livecodingtv-bot/internal/store"
)

// Transport is the chat connection the client sends and receives through.
// The concrete implementation lives in internal/xmppconn; tests supply
// fakes.
type Transport interface {
	// Connect establishes the session and joins the room. It returns once
	// the room has been joined.
	Connect(ctx context.Context) error

	// Recv yields every inbound stanza. The channel closes when the
	// connection shuts down.
	Recv() <-chan stanza.Raw

	// Send delivers an outbound stanza.
	Send(ctx context.Context, s stanza.Raw) error

	// Close tears the connection down.
	Close() error
}

// Client is the chat-room client.
type Client struct {
	transport Transport
	kv        store.KV
	dedup     *policy.Deduplicator
	logger    zerolog.Logger
	room      string
	debug     bool
	clock     func() time.Time
}

// New creates a client. clock may be nil, in which case time.Now is used.
// In debug mode outgoing messages are logged instead of sent.
func New(transport Transport, kv store.KV, dedup *policy.Deduplicator, room string, debug bool, logger zerolog.Logger, clock func() time.Time) *Client {
	if clock == nil {
		clock = time.Now
	}
	return &Client{
		transport: transport,
		kv:        kv,
		dedup:     dedup,
		logger:    logger,
		room:      room,
		debug:     debug,
		clock:     clock,
	}
}

// SendMessage sends text to the room unless it is a too-recent duplicate.
// It reports whether the message actually went out; a suppressed duplicate
// or a debug-mode dry run is (false, nil), not an error.
func (c *Client) SendMessage(ctx context.Context, text string) (bool, error) {
	if c.debug {
		c.logger.Info().Str("text", text).Msg("debug mode, message not sent")
		return false, nil
	}

	send, err := c.dedup.ShouldSend(ctx, text, c.clock())
	if err != nil {
		return false, fmt.Errorf("dedup check: %w", err)
	}
	if !send {
		return false, nil
	}

	msg := stanza.Raw{
		Name: "message",
		Attrs: map[string]string{
			"id":   ulid.Make().String(),
			"to":   c.room,
			"type": "groupchat",
		},
		Children: []stanza.Node{{Name: "body", Text: []string{text}}},
	}
	if err := c.transport.Send(ctx, msg); err != nil {
		return false, fmt.Errorf("send message: %w", err)
	}

	metrics.MessagesSent.Inc()
	return true, nil
}

// ReplyTo sends text addressed to a user in the room.
func (c *Client) ReplyTo(ctx context.Context, username, text string) (bool, error) {
	return c.SendMessage(ctx, "@"+username+": "+text)
}

// Listen delivers every inbound raw stanza to handler until ctx is
// canceled or the connection closes. Stanzas are handed over unparsed;
// handlers run them through the parser themselves.
func (c *Client) Listen(ctx context.Context, handler func(stanza.Raw)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-c.transport.Recv():
			if !ok {
				return nil
			}
			handler(raw)
		}
	}
}

// UserRecord is one user's leaderboard entry: arbitrary structured data
// written by whoever maintains the leaderboard.
type UserRecord map[string]any

// GetUser returns username's leaderboard record, or an empty record when
// the user has none.
func (c *Client) GetUser(ctx context.Context, username string) (UserRecord, error) {
	leaderboard := make(map[string]UserRecord)
	if err := c.GetSetting(ctx, "leaderboard", &leaderboard); err != nil {
		return nil, err
	}
	if rec, ok := leaderboard[username]; ok {
		return rec, nil
	}
	return UserRecord{}, nil
}

// GetSetting reads a settings value into dest. A missing key leaves dest
// untouched.
func (c *Client) GetSetting(ctx context.Context, key string, dest any) error {
	start := time.Now()
	_, err := c.kv.Get(ctx, key, dest)
	metrics.StoreLatency.Observe(time.Since(start).Seconds())
	return err
}

// SaveSetting writes a settings value.
func (c *Client) SaveSetting(ctx context.Context, key string, value any) error {
	start := time.Now()
	err := c.kv.Set(ctx, key, value)
	metrics.StoreLatency.Observe(time.Since(start).Seconds())
	return err
}

// Close shuts the transport down.
func (c *Client) Close() error {
	return c.transport.Close()
}
