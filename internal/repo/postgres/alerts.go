package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/hamed0406/statusboard/internal/domain"
	"github.com/hamed0406/statusboard/internal/repo"
)

func (s *Store) GetAlert(ctx context.Context, id domain.MonitorID) (*repo.AlertRecord, error) {
	const q = `SELECT last_status, last_sent_at FROM alerts WHERE monitor_id=$1`
	r := repo.AlertRecord{MonitorID: id}
	var status string
	err := s.pool.QueryRow(ctx, q, string(id)).Scan(&status, &r.LastSentAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get alert: %w", err)
	}
	if r.LastStatus, err = domain.ParseStatus(status); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) SetAlert(ctx context.Context, id domain.MonitorID, last domain.Status, sentAt time.Time) error {
	const q = `
		INSERT INTO alerts (monitor_id, last_status, last_sent_at)
		VALUES ($1,$2,$3)
		ON CONFLICT (monitor_id)
		DO UPDATE SET last_status=EXCLUDED.last_status, last_sent_at=COALESCE(EXCLUDED.last_sent_at, alerts.last_sent_at)
	`
	var ts *time.Time
	if !sentAt.IsZero() {
		ts = &sentAt
	}
	if _, err := s.pool.Exec(ctx, q, string(id), string(last), ts); err != nil {
		return fmt.Errorf("set alert: %w", err)
	}
	return nil
}
