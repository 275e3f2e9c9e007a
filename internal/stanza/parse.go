package stanza

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// defaultStatus is reported for presence stanzas that carry no type
// attribute.
const defaultStatus = "available"

// Event is the normalized form of an incoming stanza.
type Event struct {
	Kind Kind
	From string // room nickname of the sender

	// Message fields.
	Body        string
	RateLimited bool

	// Presence fields.
	Status string
	Role   string // "" when the presence carried no role information
}

// CommandLimiter reports whether a user's message arrived inside the command
// cooldown window, stamping the user's clock as a side effect.
type CommandLimiter interface {
	CheckAndRecord(ctx context.Context, username string, now time.Time) (bool, error)
}

// Parser turns raw stanzas into events. It is stateless apart from the
// command limiter it consults on every message.
type Parser struct {
	limiter CommandLimiter
	clock   func() time.Time
}

// NewParser creates a parser. clock may be nil, in which case time.Now is
// used.
func NewParser(limiter CommandLimiter, clock func() time.Time) *Parser {
	if clock == nil {
		clock = time.Now
	}
	return &Parser{limiter: limiter, clock: clock}
}

// Parse normalizes a raw stanza. Stanzas of an unknown kind return
// (nil, nil); the caller treats them as a no-op. A missing message body or
// an unusable from address returns ErrMalformedStanza.
func (p *Parser) Parse(ctx context.Context, raw Raw) (*Event, error) {
	switch raw.Name {
	case string(KindMessage):
		return p.parseMessage(ctx, raw)
	case string(KindPresence):
		return parsePresence(raw)
	default:
		return nil, nil
	}
}

func (p *Parser) parseMessage(ctx context.Context, raw Raw) (*Event, error) {
	nick, err := Nickname(raw.Attr("from"))
	if err != nil {
		return nil, err
	}

	body, ok := raw.Child("body")
	if !ok {
		return nil, fmt.Errorf("%w: message has no body child", ErrMalformedStanza)
	}

	// Concatenate the body's text fragments in order, then drop every
	// backslash. The chat frontend escapes certain characters with
	// backslashes; the stripped form is what users actually typed.
	text := strings.Join(body.Text, "")
	text = strings.ReplaceAll(text, `\`, "")

	limited, err := p.limiter.CheckAndRecord(ctx, nick, p.clock())
	if err != nil {
		return nil, fmt.Errorf("rate limit check for %s: %w", nick, err)
	}

	return &Event{
		Kind:        KindMessage,
		From:        nick,
		Body:        text,
		RateLimited: limited,
	}, nil
}

func parsePresence(raw Raw) (*Event, error) {
	nick, err := Nickname(raw.Attr("from"))
	if err != nil {
		return nil, err
	}

	status := raw.Attr("type")
	if status == "" {
		status = defaultStatus
	}

	// Occupant role lives at x > item > role. Presence without the chain
	// (e.g. plain status updates) yields an empty role rather than an
	// error.
	var role string
	if x, ok := raw.Child("x"); ok {
		if item, ok := x.Child("item"); ok {
			role = item.Attr("role")
		}
	}

	return &Event{
		Kind:   KindPresence,
		From:   nick,
		Status: status,
		Role:   role,
	}, nil
}
