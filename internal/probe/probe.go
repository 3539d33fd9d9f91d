package probe

import (
	"context"
	"time"

	"github.com/hamed0406/statusboard/internal/domain"
)

const (
	// DefaultTimeout bounds a probe when the caller passes no timeout.
	DefaultTimeout = 30 * time.Second

	// SlowResponseMs is the elapsed time above which a 2xx is reported as WARNING.
	SlowResponseMs int64 = 3000

	UserAgent = "Statusboard Status Checker/1.0"
)

// Prober performs one probe of a URL. Implementations never fail: every
// transport error is classified into the returned outcome.
type Prober interface {
	Probe(ctx context.Context, url string, timeout time.Duration) domain.CheckOutcome
}
