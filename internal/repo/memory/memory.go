package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hamed0406/statusboard/internal/domain"
	"github.com/hamed0406/statusboard/internal/repo"
)

var (
	_ repo.MonitorStore = (*Store)(nil)
	_ repo.CheckStore   = (*Store)(nil)
	_ repo.AlertStore   = (*Store)(nil)
)

type Store struct {
	mu       sync.RWMutex
	monitors map[domain.MonitorID]*domain.Monitor
	checks   []domain.CheckRecord
	alerts   map[domain.MonitorID]repo.AlertRecord

	// Now stamps CheckedAt on new records.
	Now func() time.Time
}

func New() *Store {
	return &Store{
		monitors: make(map[domain.MonitorID]*domain.Monitor),
		checks:   make([]domain.CheckRecord, 0, 128),
		alerts:   make(map[domain.MonitorID]repo.AlertRecord),
		Now:      func() time.Time { return time.Now().UTC() },
	}
}

// ---- MonitorStore ----

func (m *Store) Add(ctx context.Context, mon *domain.Monitor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.monitors {
		if existing.URL == mon.URL {
			return repo.ErrDuplicate
		}
	}
	if mon.ID == "" {
		mon.ID = domain.MonitorID(uuid.NewString())
	} else if _, ok := m.monitors[mon.ID]; ok {
		return repo.ErrDuplicate
	}
	if mon.CreatedAt.IsZero() {
		mon.CreatedAt = m.Now()
	}
	cp := *mon
	m.monitors[mon.ID] = &cp
	return nil
}

func (m *Store) List(ctx context.Context) ([]domain.Monitor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Monitor, 0, len(m.monitors))
	for _, mon := range m.monitors {
		out = append(out, copyMonitor(mon))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Store) Get(ctx context.Context, id domain.MonitorID) (*domain.Monitor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mon, ok := m.monitors[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := copyMonitor(mon)
	return &cp, nil
}

// ---- CheckStore ----

func (m *Store) CreateCheck(ctx context.Context, id domain.MonitorID, o domain.CheckOutcome) (*domain.CheckRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.monitors[id]; !ok {
		return nil, repo.ErrNotFound
	}
	rec := domain.CheckRecord{
		ID:           uuid.NewString(),
		MonitorID:    id,
		CheckOutcome: copyOutcome(o),
		CheckedAt:    m.Now(),
	}
	m.checks = append(m.checks, rec)
	out := rec
	out.CheckOutcome = copyOutcome(rec.CheckOutcome)
	return &out, nil
}

func (m *Store) TouchMonitor(ctx context.Context, id domain.MonitorID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mon, ok := m.monitors[id]
	if !ok {
		return repo.ErrNotFound
	}
	ts := at
	mon.LastCheckedAt = &ts
	return nil
}

func (m *Store) LatestCheck(ctx context.Context, id domain.MonitorID) (*domain.CheckRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	// records are appended in time order, so the last match wins
	for i := len(m.checks) - 1; i >= 0; i-- {
		if m.checks[i].MonitorID == id {
			rec := m.checks[i]
			rec.CheckOutcome = copyOutcome(rec.CheckOutcome)
			return &rec, nil
		}
	}
	return nil, nil
}

func (m *Store) Latest(ctx context.Context) ([]repo.LatestRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	latest := make(map[domain.MonitorID]domain.CheckRecord)
	for _, r := range m.checks {
		cur, ok := latest[r.MonitorID]
		if !ok || !r.CheckedAt.Before(cur.CheckedAt) {
			latest[r.MonitorID] = r
		}
	}

	out := make([]repo.LatestRow, 0, len(latest))
	for id, r := range latest {
		r.CheckOutcome = copyOutcome(r.CheckOutcome)
		row := repo.LatestRow{CheckRecord: r}
		if mon := m.monitors[id]; mon != nil {
			row.URL = mon.URL
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MonitorID < out[j].MonitorID })
	return out, nil
}

// ---- AlertStore ----

func (m *Store) GetAlert(ctx context.Context, id domain.MonitorID) (*repo.AlertRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.alerts[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *Store) SetAlert(ctx context.Context, id domain.MonitorID, last domain.Status, sentAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := repo.AlertRecord{MonitorID: id, LastStatus: last}
	if prev, ok := m.alerts[id]; ok {
		rec.LastSentAt = prev.LastSentAt
	}
	if !sentAt.IsZero() {
		ts := sentAt
		rec.LastSentAt = &ts
	}
	m.alerts[id] = rec
	return nil
}

func copyMonitor(mon *domain.Monitor) domain.Monitor {
	cp := *mon
	if mon.LastCheckedAt != nil {
		ts := *mon.LastCheckedAt
		cp.LastCheckedAt = &ts
	}
	return cp
}

// copyOutcome detaches the optional fields so callers cannot mutate stored state.
func copyOutcome(o domain.CheckOutcome) domain.CheckOutcome {
	cp := domain.CheckOutcome{Status: o.Status}
	if o.StatusCode != nil {
		v := *o.StatusCode
		cp.StatusCode = &v
	}
	if o.ResponseTimeMs != nil {
		v := *o.ResponseTimeMs
		cp.ResponseTimeMs = &v
	}
	if o.ErrorMessage != nil {
		v := *o.ErrorMessage
		cp.ErrorMessage = &v
	}
	return cp
}
