package domain

import "time"

type MonitorID string

// DefaultIntervalSeconds applies when a monitor is registered without one.
const DefaultIntervalSeconds = 300

// Monitor is a URL registered for periodic probing.
type Monitor struct {
	ID              MonitorID  `json:"id" yaml:"id"`
	Name            string     `json:"name,omitempty" yaml:"name"`
	URL             string     `json:"url" yaml:"url"`
	IntervalSeconds int        `json:"interval_seconds" yaml:"interval_seconds"`
	CreatedAt       time.Time  `json:"created_at" yaml:"-"`
	LastCheckedAt   *time.Time `json:"last_checked_at" yaml:"-"`
}

// Due reports whether the monitor's interval has elapsed since its last check.
// A monitor that was never checked is always due.
func (m Monitor) Due(now time.Time) bool {
	if m.LastCheckedAt == nil {
		return true
	}
	interval := time.Duration(m.IntervalSeconds) * time.Second
	return now.Sub(*m.LastCheckedAt) >= interval
}

// CheckRecord is a persisted CheckOutcome.
type CheckRecord struct {
	ID        string    `json:"id"`
	MonitorID MonitorID `json:"monitor_id"`
	CheckOutcome
	CheckedAt time.Time `json:"checked_at"`
}
