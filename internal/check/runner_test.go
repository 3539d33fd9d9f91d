package check

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hamed0406/statusboard/internal/domain"
	"github.com/hamed0406/statusboard/internal/repo/memory"
)

// --- fakes ---

type probeFunc func(ctx context.Context, url string, timeout time.Duration) domain.CheckOutcome

func (f probeFunc) Probe(ctx context.Context, url string, timeout time.Duration) domain.CheckOutcome {
	return f(ctx, url, timeout)
}

func alwaysUp() probeFunc {
	return func(ctx context.Context, url string, timeout time.Duration) domain.CheckOutcome {
		return domain.ResponseOutcome(domain.StatusUp, 200, 5)
	}
}

type fakeStore struct {
	mu        sync.Mutex
	created   map[domain.MonitorID]int
	touched   map[domain.MonitorID]int
	createErr map[domain.MonitorID]error
	touchErr  map[domain.MonitorID]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		created:   map[domain.MonitorID]int{},
		touched:   map[domain.MonitorID]int{},
		createErr: map[domain.MonitorID]error{},
		touchErr:  map[domain.MonitorID]error{},
	}
}

func (f *fakeStore) CreateCheck(ctx context.Context, id domain.MonitorID, o domain.CheckOutcome) (*domain.CheckRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.createErr[id]; err != nil {
		return nil, err
	}
	f.created[id]++
	return &domain.CheckRecord{ID: fmt.Sprintf("%s-%d", id, f.created[id]), MonitorID: id, CheckOutcome: o}, nil
}

func (f *fakeStore) TouchMonitor(ctx context.Context, id domain.MonitorID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.touchErr[id]; err != nil {
		return err
	}
	f.touched[id]++
	return nil
}

func (f *fakeStore) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.created {
		n += c
	}
	for _, c := range f.touched {
		n += c
	}
	return n
}

func monitors(ids ...string) []domain.Monitor {
	out := make([]domain.Monitor, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.Monitor{ID: domain.MonitorID(id), URL: "https://" + id + ".example", IntervalSeconds: 60})
	}
	return out
}

// --- tests ---

func TestCheckAll_EmptyDoesNothing(t *testing.T) {
	var probes int32
	p := probeFunc(func(ctx context.Context, url string, timeout time.Duration) domain.CheckOutcome {
		atomic.AddInt32(&probes, 1)
		return domain.ResponseOutcome(domain.StatusUp, 200, 1)
	})
	store := newFakeStore()
	r := NewRunner(zap.NewNop(), p, store, Config{})

	sum := r.CheckAll(context.Background(), nil)
	if sum.Results == nil || len(sum.Results) != 0 || sum.SucceededCount != 0 || sum.FailedCount != 0 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
	if !sum.Empty() {
		t.Fatalf("want empty summary")
	}
	if atomic.LoadInt32(&probes) != 0 || store.calls() != 0 {
		t.Fatalf("empty batch must not probe or persist")
	}
}

func TestCheckAll_ProbePanicIsIsolated(t *testing.T) {
	p := probeFunc(func(ctx context.Context, url string, timeout time.Duration) domain.CheckOutcome {
		if strings.Contains(url, "m1") {
			panic("boom")
		}
		return domain.ResponseOutcome(domain.StatusUp, 200, 12)
	})
	store := newFakeStore()
	r := NewRunner(zap.NewNop(), p, store, Config{})

	sum := r.CheckAll(context.Background(), monitors("m1", "m2"))
	if len(sum.Results) != 2 {
		t.Fatalf("want 2 results, got %d", len(sum.Results))
	}
	m1, m2 := sum.Results[0], sum.Results[1]
	if m1.MonitorID != "m1" || m1.Succeeded || m1.Outcome != nil || !strings.Contains(m1.ErrorMessage, "boom") {
		t.Fatalf("unexpected m1 result: %+v", m1)
	}
	if m2.MonitorID != "m2" || !m2.Succeeded || m2.Outcome == nil || m2.Outcome.Status != domain.StatusUp || *m2.Outcome.StatusCode != 200 {
		t.Fatalf("unexpected m2 result: %+v", m2)
	}
	if sum.SucceededCount != 1 || sum.FailedCount != 1 {
		t.Fatalf("unexpected counts: %+v", sum)
	}
	if store.created["m1"] != 0 {
		t.Fatalf("nothing should be stored for a panicking probe")
	}
}

func TestCheckAll_PersistenceFailureIsIsolated(t *testing.T) {
	store := newFakeStore()
	store.createErr["m1"] = errors.New("db down")
	r := NewRunner(zap.NewNop(), alwaysUp(), store, Config{})

	sum := r.CheckAll(context.Background(), monitors("m1", "m2", "m3"))
	if sum.FailedCount != 1 || sum.SucceededCount != 2 {
		t.Fatalf("unexpected counts: %+v", sum)
	}
	if sum.Results[0].Succeeded || !strings.Contains(sum.Results[0].ErrorMessage, "db down") {
		t.Fatalf("unexpected m1 result: %+v", sum.Results[0])
	}
	if store.touched["m1"] != 0 {
		t.Fatalf("touch must be skipped when the check was not stored")
	}
	if store.touched["m2"] != 1 || store.touched["m3"] != 1 {
		t.Fatalf("siblings should be touched: %+v", store.touched)
	}
}

func TestCheckAll_TouchFailureFailsUnit(t *testing.T) {
	store := newFakeStore()
	store.touchErr["m1"] = errors.New("timestamp update failed")
	r := NewRunner(zap.NewNop(), alwaysUp(), store, Config{})

	sum := r.CheckAll(context.Background(), monitors("m1"))
	res := sum.Results[0]
	if res.Succeeded || !strings.Contains(res.ErrorMessage, "touch monitor") {
		t.Fatalf("want failed result, got %+v", res)
	}
	if store.created["m1"] != 1 {
		t.Fatalf("check should have been stored before the touch failed")
	}
}

func TestCheckAll_DownIsStillSucceeded(t *testing.T) {
	p := probeFunc(func(ctx context.Context, url string, timeout time.Duration) domain.CheckOutcome {
		return domain.ErrorOutcome(domain.StatusDown, "no such host", 3)
	})
	r := NewRunner(zap.NewNop(), p, newFakeStore(), Config{})

	sum := r.CheckAll(context.Background(), monitors("m1"))
	if !sum.Results[0].Succeeded || sum.Results[0].Outcome.Status != domain.StatusDown {
		t.Fatalf("a DOWN classification is a succeeded check: %+v", sum.Results[0])
	}
}

func TestCheckAll_ProbesRunConcurrently(t *testing.T) {
	const n = 8
	var started sync.WaitGroup
	started.Add(n)
	allStarted := make(chan struct{})
	go func() {
		started.Wait()
		close(allStarted)
	}()

	p := probeFunc(func(ctx context.Context, url string, timeout time.Duration) domain.CheckOutcome {
		started.Done()
		select {
		case <-allStarted:
			return domain.ResponseOutcome(domain.StatusUp, 200, 1)
		case <-time.After(2 * time.Second):
			return domain.ErrorOutcome(domain.StatusDown, "not concurrent", 2000)
		}
	})
	r := NewRunner(zap.NewNop(), p, newFakeStore(), Config{Concurrency: n})

	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("m%d", i)
	}
	sum := r.CheckAll(context.Background(), monitors(ids...))
	for _, res := range sum.Results {
		if res.Outcome == nil || res.Outcome.Status != domain.StatusUp {
			t.Fatalf("probes were not issued concurrently: %+v", res)
		}
	}
}

func TestCheckAll_RespectsConcurrencyLimit(t *testing.T) {
	var active, peak int32
	p := probeFunc(func(ctx context.Context, url string, timeout time.Duration) domain.CheckOutcome {
		cur := atomic.AddInt32(&active, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if cur <= old || atomic.CompareAndSwapInt32(&peak, old, cur) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		return domain.ResponseOutcome(domain.StatusUp, 200, 20)
	})
	r := NewRunner(zap.NewNop(), p, newFakeStore(), Config{Concurrency: 3})

	ids := make([]string, 12)
	for i := range ids {
		ids[i] = fmt.Sprintf("m%d", i)
	}
	sum := r.CheckAll(context.Background(), monitors(ids...))
	if sum.SucceededCount != 12 {
		t.Fatalf("want all 12 succeeded, got %+v", sum)
	}
	if got := atomic.LoadInt32(&peak); got > 3 {
		t.Fatalf("concurrency limit exceeded: peak %d", got)
	}
}

func TestCheckAll_EveryMonitorOnceInInputOrder(t *testing.T) {
	p := probeFunc(func(ctx context.Context, url string, timeout time.Duration) domain.CheckOutcome {
		// finish in reverse order of submission
		if strings.Contains(url, "a.") {
			time.Sleep(30 * time.Millisecond)
		}
		return domain.ResponseOutcome(domain.StatusUp, 200, 1)
	})
	r := NewRunner(zap.NewNop(), p, newFakeStore(), Config{})

	in := monitors("a", "b", "c", "d")
	sum := r.CheckAll(context.Background(), in)
	if len(sum.Results) != len(in) {
		t.Fatalf("want %d results, got %d", len(in), len(sum.Results))
	}
	for i, res := range sum.Results {
		if res.MonitorID != in[i].ID {
			t.Fatalf("result %d is for %s, want %s", i, res.MonitorID, in[i].ID)
		}
	}
}

func TestCheckAll_PassesTimeoutToProber(t *testing.T) {
	var got time.Duration
	p := probeFunc(func(ctx context.Context, url string, timeout time.Duration) domain.CheckOutcome {
		got = timeout
		return domain.ResponseOutcome(domain.StatusUp, 200, 1)
	})
	r := NewRunner(zap.NewNop(), p, newFakeStore(), Config{})
	r.CheckAll(context.Background(), monitors("m1"))
	if got != 30*time.Second {
		t.Fatalf("want default 30s timeout, got %s", got)
	}
}

func TestCheckOne_PersistsThroughMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	m := &domain.Monitor{URL: "https://example.com", IntervalSeconds: 60}
	if err := store.Add(ctx, m); err != nil {
		t.Fatalf("add: %v", err)
	}
	at := time.Date(2025, 8, 18, 12, 0, 0, 0, time.UTC)
	r := NewRunner(zap.NewNop(), alwaysUp(), store, Config{})
	r.Now = func() time.Time { return at }

	res := r.CheckOne(ctx, *m)
	if !res.Succeeded || res.Outcome.Status != domain.StatusUp {
		t.Fatalf("unexpected result: %+v", res)
	}
	rec, err := store.LatestCheck(ctx, m.ID)
	if err != nil || rec == nil || rec.Status != domain.StatusUp || *rec.StatusCode != 200 {
		t.Fatalf("check not stored: %+v err=%v", rec, err)
	}
	got, _ := store.Get(ctx, m.ID)
	if got.LastCheckedAt == nil || !got.LastCheckedAt.Equal(at) {
		t.Fatalf("monitor not touched: %+v", got.LastCheckedAt)
	}
}

func TestCheckOne_UnknownMonitorFails(t *testing.T) {
	r := NewRunner(zap.NewNop(), alwaysUp(), memory.New(), Config{})
	res := r.CheckOne(context.Background(), domain.Monitor{ID: "ghost", URL: "https://ghost.example"})
	if res.Succeeded || res.ErrorMessage == "" {
		t.Fatalf("want failed result for unknown monitor, got %+v", res)
	}
}

func TestCheckOne_SharesInFlightProbe(t *testing.T) {
	var probes int32
	release := make(chan struct{})
	p := probeFunc(func(ctx context.Context, url string, timeout time.Duration) domain.CheckOutcome {
		atomic.AddInt32(&probes, 1)
		<-release
		return domain.ResponseOutcome(domain.StatusUp, 200, 1)
	})
	store := newFakeStore()
	r := NewRunner(zap.NewNop(), p, store, Config{})
	m := monitors("m1")[0]

	var wg sync.WaitGroup
	results := make([]domain.BatchResult, 2)
	for i := range results {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = r.CheckOne(context.Background(), m)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := atomic.LoadInt32(&probes); n != 1 {
		t.Fatalf("want one shared probe, got %d", n)
	}
	for _, res := range results {
		if !res.Succeeded {
			t.Fatalf("unexpected result: %+v", res)
		}
	}
	if store.created["m1"] != 1 {
		t.Fatalf("want one stored check, got %d", store.created["m1"])
	}
}

func TestCheckOne_CancelledCallerDoesNotSpoilSharedRun(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	p := probeFunc(func(ctx context.Context, url string, timeout time.Duration) domain.CheckOutcome {
		once.Do(func() { close(started) })
		select {
		case <-release:
			return domain.ResponseOutcome(domain.StatusUp, 200, 1)
		case <-ctx.Done():
			return domain.ErrorOutcome(domain.StatusDown, ctx.Err().Error(), 1)
		}
	})
	store := memory.New()
	m := &domain.Monitor{URL: "https://shared.example", IntervalSeconds: 60}
	if err := store.Add(context.Background(), m); err != nil {
		t.Fatal(err)
	}
	r := NewRunner(zap.NewNop(), p, store, Config{})

	ctxA, cancelA := context.WithCancel(context.Background())
	resA := make(chan domain.BatchResult, 1)
	go func() { resA <- r.CheckOne(ctxA, *m) }()
	<-started

	resB := make(chan domain.BatchResult, 1)
	go func() { resB <- r.CheckOne(context.Background(), *m) }()
	time.Sleep(20 * time.Millisecond)

	cancelA()
	a := <-resA
	if a.Succeeded || !strings.Contains(a.ErrorMessage, "context canceled") {
		t.Fatalf("cancelled caller should get a failed result, got %+v", a)
	}

	close(release)
	b := <-resB
	if !b.Succeeded || b.Outcome == nil || b.Outcome.Status != domain.StatusUp {
		t.Fatalf("sibling caller should see the real outcome, got %+v", b)
	}

	rec, err := store.LatestCheck(context.Background(), m.ID)
	if err != nil || rec == nil {
		t.Fatalf("want a stored check, got %+v err=%v", rec, err)
	}
	if rec.Status != domain.StatusUp || rec.ErrorMessage != nil {
		t.Fatalf("stored check should be the real UP, got %+v", rec.CheckOutcome)
	}
}

func TestCheckAll_CancelledContextStoresNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var probing sync.WaitGroup
	probing.Add(2)
	p := probeFunc(func(pctx context.Context, url string, timeout time.Duration) domain.CheckOutcome {
		probing.Done()
		<-pctx.Done()
		return domain.ErrorOutcome(domain.StatusDown, pctx.Err().Error(), 1)
	})
	store := newFakeStore()
	r := NewRunner(zap.NewNop(), p, store, Config{})

	go func() {
		probing.Wait()
		cancel()
	}()
	sum := r.CheckAll(ctx, monitors("m1", "m2"))

	if sum.FailedCount != 2 || sum.SucceededCount != 0 {
		t.Fatalf("abandoned units should fail, got %+v", sum)
	}
	for _, res := range sum.Results {
		if !strings.Contains(res.ErrorMessage, "check abandoned") {
			t.Fatalf("unexpected error: %q", res.ErrorMessage)
		}
	}
	if n := store.calls(); n != 0 {
		t.Fatalf("no check may be stored for an abandoned probe, got %d store calls", n)
	}
}

func TestRunner_LogsPipelineFailures(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	store := newFakeStore()
	store.createErr["m1"] = errors.New("db down")
	r := NewRunner(zap.New(core), alwaysUp(), store, Config{})

	r.CheckAll(context.Background(), monitors("m1", "m2"))

	if got := logs.FilterMessage("check_pipeline_failed").Len(); got != 1 {
		t.Fatalf("want one pipeline failure log, got %d", got)
	}
	if got := logs.FilterMessage("check_completed").Len(); got != 1 {
		t.Fatalf("want one completed log, got %d", got)
	}
	entries := logs.FilterMessage("batch_completed").All()
	if len(entries) != 1 || entries[0].ContextMap()["failed"] != int64(1) {
		t.Fatalf("unexpected batch log: %+v", entries)
	}
}
