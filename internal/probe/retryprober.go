package probe

import (
	"context"
	"time"

	"github.com/hamed0406/statusboard/internal/domain"
)

// RetryProber re-probes while the outcome is DOWN. Attempts below 1 mean a
// single attempt.
type RetryProber struct {
	Inner    Prober
	Attempts int
	Backoff  time.Duration
}

func NewRetryProber(inner Prober, attempts int, backoff time.Duration) Prober {
	if attempts <= 1 {
		return inner
	}
	return &RetryProber{Inner: inner, Attempts: attempts, Backoff: backoff}
}

func (r *RetryProber) Probe(ctx context.Context, target string, timeout time.Duration) domain.CheckOutcome {
	attempts := r.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var last domain.CheckOutcome
	for i := 0; i < attempts; i++ {
		last = r.Inner.Probe(ctx, target, timeout)
		if last.Status != domain.StatusDown {
			return last
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return last
		case <-time.After(r.Backoff):
		}
	}
	return last
}
