package policy

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/agyrafa/livecodingtv-bot/internal/metrics"
	"github.com/agyrafa/livecodingtv-bot/internal/store"
)

// RateLimiter throttles per-user commands to one per cooldown window.
type RateLimiter struct {
	mu     sync.Mutex
	kv     store.KV
	logger zerolog.Logger
}

// NewRateLimiter creates a rate limiter backed by kv.
func NewRateLimiter(kv store.KV, logger zerolog.Logger) *RateLimiter {
	return &RateLimiter{kv: kv, logger: logger}
}

// CheckAndRecord reports whether username's message arrived inside the
// cooldown window following their previous one. The user's clock is stamped
// to now regardless of the outcome, so the window slides: a suppressed
// command still pushes the next allowed time out.
func (l *RateLimiter) CheckAndRecord(ctx context.Context, username string, now time.Time) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.load(ctx)
	if err != nil {
		return false, err
	}

	last := records[username].LastCommandMillis
	nowMillis := now.UnixMilli()
	limited := last > 0 && nowMillis-last < CooldownWindow.Milliseconds()

	records[username] = CommandRecord{LastCommandMillis: nowMillis}
	if err := l.kv.Set(ctx, commandLogKey, records); err != nil {
		return false, err
	}

	if limited {
		metrics.CommandsRateLimited.Inc()
		l.logger.Debug().
			Str("user", username).
			Int64("since_ms", nowMillis-last).
			Msg("command rate limited")
	}
	return limited, nil
}

// StampCommand records that username just ran a recognized command,
// resetting their cooldown clock to now. Callers use this after executing a
// command so the window counts from completion rather than arrival.
func (l *RateLimiter) StampCommand(ctx context.Context, username string, now time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.load(ctx)
	if err != nil {
		return err
	}

	records[username] = CommandRecord{LastCommandMillis: now.UnixMilli()}
	return l.kv.Set(ctx, commandLogKey, records)
}

func (l *RateLimiter) load(ctx context.Context) (map[string]CommandRecord, error) {
	records := make(map[string]CommandRecord)
	if _, err := l.kv.Get(ctx, commandLogKey, &records); err != nil {
		return nil, err
	}
	return records, nil
}
