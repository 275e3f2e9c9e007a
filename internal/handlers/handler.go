// Package handlers reacts to parsed room events: it keeps the leaderboard
// current and answers chat commands.
package handlers

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/agyrafa/livecodingtv-bot/internal/client"
	"github.com/agyrafa/livecodingtv-bot/internal/metrics"
	"github.com/agyrafa/livecodingtv-bot/internal/policy"
	"github.com/agyrafa/livecodingtv-bot/internal/stanza"
)

const leaderboardKey = "leaderboard"

// Handler processes normalized room events.
type Handler struct {
	client  *client.Client
	parser  *stanza.Parser
	limiter *policy.RateLimiter
	logger  zerolog.Logger
	nick    string // the bot's own nickname, ignored on input
}

// New creates a handler.
func New(c *client.Client, parser *stanza.Parser, limiter *policy.RateLimiter, nick string, logger zerolog.Logger) *Handler {
	return &Handler{client: c, parser: parser, limiter: limiter, logger: logger, nick: nick}
}

// HandleRaw is the listen-loop callback: it runs the stanza through the
// parser and dispatches the event. Unknown stanza kinds are no-ops;
// malformed stanzas are logged and dropped.
func (h *Handler) HandleRaw(ctx context.Context, raw stanza.Raw) {
	ev, err := h.parser.Parse(ctx, raw)
	if err != nil {
		metrics.ParseErrors.Inc()
		h.logger.Warn().Err(err).Str("kind", raw.Name).Msg("stanza dropped")
		return
	}
	if ev == nil {
		return
	}

	metrics.StanzasParsed.WithLabelValues(string(ev.Kind)).Inc()
	h.Handle(ctx, ev)
}

// Handle dispatches one event.
func (h *Handler) Handle(ctx context.Context, ev *stanza.Event) {
	if ev.From == h.nick {
		return
	}

	switch ev.Kind {
	case stanza.KindPresence:
		h.logger.Info().
			Str("user", ev.From).
			Str("status", ev.Status).
			Str("role", ev.Role).
			Msg("presence")
	case stanza.KindMessage:
		h.handleMessage(ctx, ev)
	}
}

func (h *Handler) handleMessage(ctx context.Context, ev *stanza.Event) {
	if err := h.recordActivity(ctx, ev.From); err != nil {
		h.logger.Warn().Err(err).Str("user", ev.From).Msg("leaderboard update failed")
	}

	if !strings.HasPrefix(ev.Body, "!") {
		return
	}
	if ev.RateLimited {
		// Deliberate silent drop; the parser already stamped the clock.
		return
	}

	cmd := strings.Fields(ev.Body)[0]
	var handled bool
	switch cmd {
	case "!ping":
		h.reply(ctx, ev.From, "pong")
		handled = true
	case "!top":
		h.reply(ctx, ev.From, h.topSummary(ctx))
		handled = true
	case "!help":
		h.reply(ctx, ev.From, "commands: !ping !top !help")
		handled = true
	}

	if handled {
		if err := h.limiter.StampCommand(ctx, ev.From, time.Now()); err != nil {
			h.logger.Warn().Err(err).Str("user", ev.From).Msg("command stamp failed")
		}
	}
}

func (h *Handler) reply(ctx context.Context, username, text string) {
	sent, err := h.client.ReplyTo(ctx, username, text)
	if err != nil {
		h.logger.Error().Err(err).Str("user", username).Msg("reply failed")
		return
	}
	if !sent {
		h.logger.Debug().Str("user", username).Msg("reply suppressed")
	}
}

// recordActivity bumps the sender's message count on the leaderboard.
func (h *Handler) recordActivity(ctx context.Context, username string) error {
	leaderboard := make(map[string]client.UserRecord)
	if err := h.client.GetSetting(ctx, leaderboardKey, &leaderboard); err != nil {
		return err
	}

	rec := leaderboard[username]
	if rec == nil {
		rec = client.UserRecord{}
	}
	count, _ := rec["messages"].(float64) // JSON numbers decode as float64
	rec["messages"] = count + 1
	leaderboard[username] = rec

	return h.client.SaveSetting(ctx, leaderboardKey, leaderboard)
}

// topSummary formats the three most active users.
func (h *Handler) topSummary(ctx context.Context) string {
	leaderboard := make(map[string]client.UserRecord)
	if err := h.client.GetSetting(ctx, leaderboardKey, &leaderboard); err != nil || len(leaderboard) == 0 {
		return "no activity yet"
	}

	type entry struct {
		name  string
		count float64
	}
	entries := make([]entry, 0, len(leaderboard))
	for name, rec := range leaderboard {
		count, _ := rec["messages"].(float64)
		entries = append(entries, entry{name, count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].name < entries[j].name
	})

	if len(entries) > 3 {
		entries = entries[:3]
	}
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		parts = append(parts, fmt.Sprintf("%s (%.0f)", e.name, e.count))
	}
	return "most active: " + strings.Join(parts, ", ")
}
