package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hamed0406/statusboard/internal/domain"
	"github.com/hamed0406/statusboard/internal/repo"
)

var (
	_ repo.MonitorStore = (*Store)(nil)
	_ repo.CheckStore   = (*Store)(nil)
	_ repo.AlertStore   = (*Store)(nil)
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func New(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	log.Info("postgres_connected",
		zap.String("host", cfg.ConnConfig.Host),
		zap.Int32("max_conns", cfg.MaxConns),
	)
	return &Store{pool: pool, log: log}, nil
}

func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// ---- MonitorStore ----

func (s *Store) Add(ctx context.Context, m *domain.Monitor) error {
	if m.ID == "" {
		m.ID = domain.MonitorID(uuid.NewString())
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO monitors (id, name, url, interval_seconds, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		string(m.ID), m.Name, m.URL, m.IntervalSeconds, m.CreatedAt,
	)
	if err != nil {
		if pgCode(err) == codeUniqueViolation {
			return repo.ErrDuplicate
		}
		return fmt.Errorf("insert monitor: %w", err)
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]domain.Monitor, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, url, interval_seconds, created_at, last_checked_at
		   FROM monitors
		  ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list monitors: %w", err)
	}
	defer rows.Close()

	var out []domain.Monitor
	for rows.Next() {
		m, err := scanMonitor(rows)
		if err != nil {
			return nil, fmt.Errorf("scan monitor: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) Get(ctx context.Context, id domain.MonitorID) (*domain.Monitor, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, url, interval_seconds, created_at, last_checked_at
		   FROM monitors
		  WHERE id = $1`, string(id))
	m, err := scanMonitor(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		return nil, fmt.Errorf("get monitor: %w", err)
	}
	return &m, nil
}

// ---- CheckStore ----

func (s *Store) CreateCheck(ctx context.Context, id domain.MonitorID, o domain.CheckOutcome) (*domain.CheckRecord, error) {
	rec := &domain.CheckRecord{
		ID:           uuid.NewString(),
		MonitorID:    id,
		CheckOutcome: o,
		CheckedAt:    time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO checks
		   (id, monitor_id, status, status_code, response_time_ms, error_message, checked_at)
		 VALUES
		   ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, string(id), string(o.Status), o.StatusCode, o.ResponseTimeMs, o.ErrorMessage, rec.CheckedAt,
	)
	if err != nil {
		if pgCode(err) == codeForeignKeyViolation {
			return nil, repo.ErrNotFound
		}
		return nil, fmt.Errorf("insert check: %w", err)
	}
	return rec, nil
}

func (s *Store) TouchMonitor(ctx context.Context, id domain.MonitorID, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE monitors SET last_checked_at = $2 WHERE id = $1`, string(id), at)
	if err != nil {
		return fmt.Errorf("touch monitor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (s *Store) LatestCheck(ctx context.Context, id domain.MonitorID) (*domain.CheckRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, monitor_id, status, status_code, response_time_ms, error_message, checked_at
		   FROM checks
		  WHERE monitor_id = $1
		  ORDER BY checked_at DESC
		  LIMIT 1`, string(id))
	rec, err := scanCheck(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // no checks yet
		}
		return nil, fmt.Errorf("latest check: %w", err)
	}
	return &rec, nil
}

func (s *Store) Latest(ctx context.Context) ([]repo.LatestRow, error) {
	rows, err := s.pool.Query(ctx, `
SELECT DISTINCT ON (c.monitor_id)
       c.id,
       c.monitor_id,
       c.status,
       c.status_code,
       c.response_time_ms,
       c.error_message,
       c.checked_at,
       m.url
  FROM checks c
  JOIN monitors m ON m.id = c.monitor_id
 ORDER BY c.monitor_id, c.checked_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("latest: %w", err)
	}
	defer rows.Close()

	var out []repo.LatestRow
	for rows.Next() {
		var (
			r      repo.LatestRow
			id     string
			status string
		)
		if err := rows.Scan(&r.ID, &id, &status, &r.StatusCode, &r.ResponseTimeMs, &r.ErrorMessage, &r.CheckedAt, &r.URL); err != nil {
			return nil, fmt.Errorf("scan latest: %w", err)
		}
		r.MonitorID = domain.MonitorID(id)
		if r.Status, err = domain.ParseStatus(status); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanMonitor(row pgx.Row) (domain.Monitor, error) {
	var (
		m  domain.Monitor
		id string
	)
	if err := row.Scan(&id, &m.Name, &m.URL, &m.IntervalSeconds, &m.CreatedAt, &m.LastCheckedAt); err != nil {
		return domain.Monitor{}, err
	}
	m.ID = domain.MonitorID(id)
	return m, nil
}

func scanCheck(row pgx.Row) (domain.CheckRecord, error) {
	var (
		rec    domain.CheckRecord
		id     string
		status string
	)
	if err := row.Scan(&rec.ID, &id, &status, &rec.StatusCode, &rec.ResponseTimeMs, &rec.ErrorMessage, &rec.CheckedAt); err != nil {
		return domain.CheckRecord{}, err
	}
	rec.MonitorID = domain.MonitorID(id)
	st, err := domain.ParseStatus(status)
	if err != nil {
		return domain.CheckRecord{}, err
	}
	rec.Status = st
	return rec, nil
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
