package repo

import (
	"context"
	"errors"
	"time"

	"github.com/hamed0406/statusboard/internal/domain"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
)

// Ports (interfaces); memory and postgres implement them.
type MonitorStore interface {
	// Add assigns an ID when empty and returns ErrDuplicate for a known URL.
	Add(ctx context.Context, m *domain.Monitor) error
	List(ctx context.Context) ([]domain.Monitor, error)
	Get(ctx context.Context, id domain.MonitorID) (*domain.Monitor, error)
}

// CheckStore is the persistence side of the check pipeline. Implementations
// must be safe for concurrent use across monitors.
type CheckStore interface {
	CreateCheck(ctx context.Context, id domain.MonitorID, o domain.CheckOutcome) (*domain.CheckRecord, error)
	TouchMonitor(ctx context.Context, id domain.MonitorID, at time.Time) error
	// LatestCheck returns nil, nil when the monitor has never been checked.
	LatestCheck(ctx context.Context, id domain.MonitorID) (*domain.CheckRecord, error)
	Latest(ctx context.Context) ([]LatestRow, error)
}

// LatestRow is the most recent check of one monitor joined with its URL.
type LatestRow struct {
	domain.CheckRecord
	URL string `json:"url"`
}
