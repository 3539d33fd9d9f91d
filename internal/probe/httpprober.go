package probe

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/hamed0406/statusboard/internal/domain"
)

// Draining only serves connection reuse; it is bounded in bytes and time.
const (
	maxDrainBytes = 64 << 10
	drainTimeout  = 250 * time.Millisecond
)

type HTTPProber struct {
	Client *http.Client
	// Now is the clock used to time attempts.
	Now func() time.Time
}

func NewHTTPProber() *HTTPProber {
	return &HTTPProber{
		Client: &http.Client{Transport: http.DefaultTransport.(*http.Transport).Clone()},
		Now:    time.Now,
	}
}

// Probe issues a GET bounded by timeout and classifies what came back.
func (p *HTTPProber) Probe(ctx context.Context, target string, timeout time.Duration) domain.CheckOutcome {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := p.now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return domain.ErrorOutcome(ClassifyError(err), err.Error(), p.elapsedMs(start))
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := p.client().Do(req)
	elapsed := p.elapsedMs(start)
	if err != nil {
		return domain.ErrorOutcome(ClassifyError(err), err.Error(), elapsed)
	}
	drain(resp.Body)

	return domain.ResponseOutcome(ClassifyResponse(resp.StatusCode, elapsed), resp.StatusCode, elapsed)
}

// drain reads a bounded prefix of body and closes it. A stalled or endless
// stream is cut off after drainTimeout.
func drain(body io.ReadCloser) {
	stop := time.AfterFunc(drainTimeout, func() { _ = body.Close() })
	_, _ = io.CopyN(io.Discard, body, maxDrainBytes)
	stop.Stop()
	_ = body.Close()
}

func (p *HTTPProber) client() *http.Client {
	if p.Client == nil {
		return http.DefaultClient
	}
	return p.Client
}

func (p *HTTPProber) now() time.Time {
	if p.Now == nil {
		return time.Now()
	}
	return p.Now()
}

func (p *HTTPProber) elapsedMs(start time.Time) int64 {
	ms := p.now().Sub(start).Milliseconds()
	if ms < 0 {
		return 0
	}
	return ms
}
