package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimit_AllowsThenBlocks(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	l := newLimiter(1, 2, 10*time.Minute) // 60 req/min, burst 2
	l.now = clk.now
	h := rateLimit(l)(okHandler())

	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "1.2.3.4:1234"

	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != 200 {
			t.Fatalf("want 200 got %d", rr.Code)
		}
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != 429 {
		t.Fatalf("want 429 got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Fatalf("missing Retry-After")
	}

	clk.advance(1100 * time.Millisecond)
	rr2 := httptest.NewRecorder()
	h.ServeHTTP(rr2, req)
	if rr2.Code != 200 {
		t.Fatalf("want 200 after refill got %d", rr2.Code)
	}
}

func TestRateLimit_KeysByAPIKeyBeforeIP(t *testing.T) {
	l := newLimiter(1, 1, time.Minute)
	l.now = (&fakeClock{t: time.Unix(0, 0)}).now
	h := Authenticate(Keys{Public: []string{"a", "b"}})(rateLimit(l)(okHandler()))

	send := func(key string) int {
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = "9.9.9.9:1"
		req.Header.Set("X-API-Key", key)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}
	if send("a") != 200 || send("b") != 200 {
		t.Fatalf("distinct keys on one IP should get their own buckets")
	}
	if send("a") != 429 {
		t.Fatalf("second request for key a should be limited")
	}
}

func TestRateLimit_UnknownKeysShareTheIPBucket(t *testing.T) {
	for name, keys := range map[string]Keys{
		"open":       {},
		"configured": {Public: []string{"a"}},
	} {
		t.Run(name, func(t *testing.T) {
			l := newLimiter(1, 2, time.Minute)
			l.now = (&fakeClock{t: time.Unix(0, 0)}).now
			h := Authenticate(keys)(rateLimit(l)(okHandler()))

			codes := make([]int, 0, 3)
			for _, key := range []string{"rand-1", "rand-2", "rand-3"} {
				req := httptest.NewRequest("GET", "/", nil)
				req.RemoteAddr = "5.6.7.8:1"
				req.Header.Set("X-API-Key", key)
				rr := httptest.NewRecorder()
				h.ServeHTTP(rr, req)
				codes = append(codes, rr.Code)
			}
			if codes[0] != 200 || codes[1] != 200 || codes[2] != 429 {
				t.Fatalf("rotating unknown keys must not escape the IP limit, got %v", codes)
			}
		})
	}
}

func TestLimiter_SweepsIdleBuckets(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	l := newLimiter(1, 1, time.Minute)
	l.now = clk.now

	l.allow("x")
	l.allow("y")
	if l.size() != 2 {
		t.Fatalf("want 2 buckets, got %d", l.size())
	}
	clk.advance(2 * time.Minute)
	l.allow("z")
	if l.size() != 1 {
		t.Fatalf("idle buckets should be swept, got %d", l.size())
	}
}

func TestRateLimit_DisabledPassesThrough(t *testing.T) {
	h := RateLimit(0, 0)(okHandler())
	for i := 0; i < 100; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))
		if rr.Code != 200 {
			t.Fatalf("disabled limiter blocked request %d", i)
		}
	}
}

func TestClientIP_ForwardedFor(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Forwarded-For", " 10.0.0.1 , 172.16.0.1")
	if got := clientIP(req); got != "10.0.0.1" {
		t.Fatalf("want first forwarded address, got %q", got)
	}
}
