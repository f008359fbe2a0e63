package scan

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"inboxsweep/internal/source"
)

// Backoff configures retries of rate-limited page requests.
type Backoff struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultBackoff is three attempts starting at one second.
var DefaultBackoff = Backoff{Attempts: 3, BaseDelay: time.Second, MaxDelay: 30 * time.Second}

// delay returns the wait before retry number attempt (1-based), using full
// jitter: random(0, min(max, base*2^(attempt-1))), floored at 100ms.
func (b Backoff) delay(attempt int) time.Duration {
	exp := float64(b.BaseDelay) * math.Pow(2, float64(attempt-1))
	if exp > float64(b.MaxDelay) {
		exp = float64(b.MaxDelay)
	}
	d := time.Duration(rand.Float64() * exp)
	if d < 100*time.Millisecond {
		d = 100 * time.Millisecond
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// listWithRetry fetches one page, retrying rate-limit errors. When attempts
// run out the error is reported as the adapter being unavailable.
func (o *Orchestrator) listWithRetry(ctx context.Context, log logrus.FieldLogger, a source.Adapter, cursor string) (source.Page, error) {
	attempts := o.backoff.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			d := o.backoff.delay(attempt - 1)
			log.WithFields(logrus.Fields{"attempt": attempt, "wait": d.String()}).Warn("rate limited, backing off")
			if err := o.sleep(ctx, d); err != nil {
				return source.Page{}, err
			}
		}
		page, err := a.ListCandidates(ctx, cursor, o.pageSize)
		if err == nil {
			return page, nil
		}
		if !errors.Is(err, source.ErrRateLimited) {
			return source.Page{}, err
		}
		lastErr = err
	}
	return source.Page{}, fmt.Errorf("%w: gave up after %d attempts: %w", source.ErrAdapterUnavailable, attempts, lastErr)
}
