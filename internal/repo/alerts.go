package repo

import (
	"context"
	"time"

	"github.com/hamed0406/statusboard/internal/domain"
)

// AlertRecord holds the last status we alerted on for a monitor and the last
// time a notification went out (used for cooldown).
type AlertRecord struct {
	MonitorID  domain.MonitorID
	LastStatus domain.Status
	LastSentAt *time.Time
}

// AlertStore is implemented by a persistence layer to store alert state.
type AlertStore interface {
	// GetAlert returns nil, nil if there's no record yet.
	GetAlert(ctx context.Context, id domain.MonitorID) (*AlertRecord, error)
	// SetAlert upserts the record. A zero sentAt keeps the previous send time.
	SetAlert(ctx context.Context, id domain.MonitorID, last domain.Status, sentAt time.Time) error
}
