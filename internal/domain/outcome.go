package domain

import (
	"fmt"
	"strings"
)

// Status is the classified state of one probe. UNKNOWN is deliberately not a
// Status; see DisplayStatus.
type Status string

const (
	StatusUp      Status = "UP"
	StatusWarning Status = "WARNING"
	StatusDown    Status = "DOWN"
)

// UnknownDisplay is shown for monitors that have no check yet.
const UnknownDisplay = "UNKNOWN"

func (s Status) Valid() bool {
	switch s {
	case StatusUp, StatusWarning, StatusDown:
		return true
	}
	return false
}

// ParseStatus is the inverse of Status.String for stored values.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("invalid status %q", raw)
	}
	return s, nil
}

func (s Status) String() string { return string(s) }

// CheckOutcome is the result of one probe attempt.
//
// StatusCode is set only when a response was received; ErrorMessage only when
// the attempt failed before a response. ResponseTimeMs is always populated by
// the prober.
type CheckOutcome struct {
	Status         Status  `json:"status"`
	StatusCode     *int    `json:"status_code"`
	ResponseTimeMs *int64  `json:"response_time_ms"`
	ErrorMessage   *string `json:"error_message"`
}

// ResponseOutcome builds the outcome of an attempt that got an HTTP response.
func ResponseOutcome(status Status, code int, elapsedMs int64) CheckOutcome {
	return CheckOutcome{Status: status, StatusCode: &code, ResponseTimeMs: &elapsedMs}
}

// ErrorOutcome builds the outcome of an attempt that failed before a response.
func ErrorOutcome(status Status, msg string, elapsedMs int64) CheckOutcome {
	return CheckOutcome{Status: status, ResponseTimeMs: &elapsedMs, ErrorMessage: &msg}
}

// DisplayStatus maps an optional outcome to the label shown to users.
func DisplayStatus(o *CheckOutcome) string {
	if o == nil {
		return UnknownDisplay
	}
	return o.Status.String()
}
