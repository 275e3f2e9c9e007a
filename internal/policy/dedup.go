package policy

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/agyrafa/livecodingtv-bot/internal/metrics"
	"github.com/agyrafa/livecodingtv-bot/internal/store"
)

// Deduplicator suppresses outgoing messages whose text was already sent
// within the cooldown window. State is keyed by content hash, so distinct
// texts never suppress each other.
type Deduplicator struct {
	mu     sync.Mutex
	kv     store.KV
	logger zerolog.Logger
}

// NewDeduplicator creates a deduplicator backed by kv.
func NewDeduplicator(kv store.KV, logger zerolog.Logger) *Deduplicator {
	return &Deduplicator{kv: kv, logger: logger}
}

// ShouldSend reports whether text may go out at now. The send record is
// overwritten with now either way, so a suppressed duplicate still resets
// the window for the next attempt.
func (d *Deduplicator) ShouldSend(ctx context.Context, text string, now time.Time) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	records := make(map[string]SendRecord)
	if _, err := d.kv.Get(ctx, sendLogKey, &records); err != nil {
		return false, err
	}

	h := hashText(text)
	nowMillis := now.UnixMilli()

	prev, seen := records[h]
	send := !seen || nowMillis-prev.SentAtMillis > CooldownWindow.Milliseconds()

	records[h] = SendRecord{Text: text, SentAtMillis: nowMillis}
	if err := d.kv.Set(ctx, sendLogKey, records); err != nil {
		return false, err
	}

	if !send {
		metrics.MessagesSuppressed.Inc()
		d.logger.Debug().
			Str("hash", h).
			Int64("since_ms", nowMillis-prev.SentAtMillis).
			Msg("duplicate message suppressed")
	}
	return send, nil
}

// hashText returns the hex MD5 digest of text. Collision resistance only
// needs to cover short chat strings; MD5 keeps the stored keys compact and
// stable across restarts.
func hashText(text string) string {
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}
