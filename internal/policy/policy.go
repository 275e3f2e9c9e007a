// Package policy implements the bot's flood-control decisions: per-user
// command rate limiting and duplicate suppression of outgoing messages.
//
// Both policies keep their state in the settings store and share a fixed
// 5-second cooldown window. Every decision is a synchronous
// read-modify-write of the relevant map; each policy serializes its own
// cycles so concurrent stanza handling cannot race two writers past the
// window check.
package policy

import "time"

// CooldownWindow is how long a repeated action (same user command, same
// outgoing text) stays suppressed.
const CooldownWindow = 5 * time.Second

// Store keys for the two policy maps.
const (
	commandLogKey = "userMessages"
	sendLogKey    = "messages"
)

// CommandRecord is the stored last-command time for one user.
type CommandRecord struct {
	LastCommandMillis int64 `json:"lastCommandMillis"`
}

// SendRecord is the stored last-send time for one distinct message text,
// keyed by content hash.
type SendRecord struct {
	Text         string `json:"text"`
	SentAtMillis int64  `json:"sentAtMillis"`
}
