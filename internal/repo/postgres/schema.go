package postgres

import "context"

// Schema creates the tables used by Store. It is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS monitors (
  id               TEXT PRIMARY KEY,
  name             TEXT NOT NULL DEFAULT '',
  url              TEXT NOT NULL UNIQUE,
  interval_seconds INTEGER NOT NULL CHECK (interval_seconds > 0),
  created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
  last_checked_at  TIMESTAMPTZ NULL
);

CREATE TABLE IF NOT EXISTS checks (
  id               TEXT PRIMARY KEY,
  monitor_id       TEXT NOT NULL REFERENCES monitors(id) ON DELETE CASCADE,
  status           TEXT NOT NULL CHECK (status IN ('UP', 'WARNING', 'DOWN')),
  status_code      INTEGER NULL,
  response_time_ms BIGINT NULL,
  error_message    TEXT NULL,
  checked_at       TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_checks_monitor_time ON checks (monitor_id, checked_at DESC);

CREATE TABLE IF NOT EXISTS alerts (
  monitor_id   TEXT PRIMARY KEY REFERENCES monitors(id) ON DELETE CASCADE,
  last_status  TEXT NOT NULL,
  last_sent_at TIMESTAMPTZ NULL
);
`

func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, Schema)
	return err
}
