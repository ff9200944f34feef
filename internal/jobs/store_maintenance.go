package jobs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// SetDisplayName back-fills the human label for a job.
func (s *Store) SetDisplayName(ctx context.Context, id int64, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	if _, err := s.execWithRetry(ctx,
		`UPDATE jobs SET display_name = ?, updated_at = ? WHERE id = ?`,
		name, now(), id,
	); err != nil {
		return fmt.Errorf("set display name: %w", err)
	}
	return nil
}

// UpdateHeartbeat refreshes the heartbeat of a running job.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64) error {
	timestamp := now()
	if _, err := s.execWithRetry(ctx,
		`UPDATE jobs SET last_heartbeat = ?, updated_at = ? WHERE id = ? AND state = ?`,
		timestamp, timestamp, id, StateRunning,
	); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// ReclaimStale fails running jobs whose heartbeat is older than cutoff.
func (s *Store) ReclaimStale(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE jobs SET state = ?, error = ?, last_heartbeat = NULL, updated_at = ?
         WHERE state = ? AND (last_heartbeat IS NULL OR last_heartbeat < ?)`,
		StateFailed, HeartbeatExpiredReason, now(), StateRunning, formatTime(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale jobs: %w", err)
	}
	return res.RowsAffected()
}

// FailRunning fails every running job. The daemon calls it on startup, since
// no execution can survive a restart.
func (s *Store) FailRunning(ctx context.Context, message string) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE jobs SET state = ?, error = ?, last_heartbeat = NULL, updated_at = ? WHERE state = ?`,
		StateFailed, TruncateError(message), now(), StateRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("fail running jobs: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns a count of jobs grouped by state.
func (s *Store) Stats(ctx context.Context) (map[State]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT state, COUNT(1) FROM jobs GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[State]int)
	for rows.Next() {
		var state State
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, err
		}
		stats[state] = count
	}
	return stats, rows.Err()
}

// DailyCounts reports activity for the days UTC ending at until, oldest
// first, with zero rows for quiet days. Job counts are keyed by creation day.
// Published counts come from the publications ledger, so they survive clears.
func (s *Store) DailyCounts(ctx context.Context, days int, until time.Time) ([]DayCount, error) {
	if days <= 0 {
		return nil, nil
	}
	ctx = ensureContext(ctx)
	until = until.UTC()
	last := time.Date(until.Year(), until.Month(), until.Day(), 0, 0, 0, 0, time.UTC)
	first := last.AddDate(0, 0, -(days - 1))

	out := make([]DayCount, days)
	index := make(map[string]int, days)
	for i := range out {
		out[i].Day = first.AddDate(0, 0, i).Format(time.DateOnly)
		index[out[i].Day] = i
	}
	since := formatTime(first)

	rows, err := s.db.QueryContext(ctx,
		`SELECT substr(created_at, 1, 10), COUNT(1),
                SUM(CASE WHEN state = ? THEN 1 ELSE 0 END),
                SUM(CASE WHEN state = ? THEN 1 ELSE 0 END)
         FROM jobs WHERE created_at >= ? GROUP BY 1`,
		StateCompleted, StateFailed, since,
	)
	if err != nil {
		return nil, fmt.Errorf("daily job counts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var day string
		var created, completed, failed int
		if err := rows.Scan(&day, &created, &completed, &failed); err != nil {
			return nil, err
		}
		if i, ok := index[day]; ok {
			out[i].Created, out[i].Completed, out[i].Failed = created, completed, failed
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	pubs, err := s.db.QueryContext(ctx,
		`SELECT substr(published_at, 1, 10), COUNT(1) FROM publications
         WHERE published_at >= ? AND action <> ? GROUP BY 1`,
		since, ActionSkip,
	)
	if err != nil {
		return nil, fmt.Errorf("daily publication counts: %w", err)
	}
	defer pubs.Close()
	for pubs.Next() {
		var day string
		var published int
		if err := pubs.Scan(&day, &published); err != nil {
			return nil, err
		}
		if i, ok := index[day]; ok {
			out[i].Published = published
		}
	}
	return out, pubs.Err()
}

// Health aggregates job state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for state, count := range stats {
		health.Total += count
		switch state {
		case StateWaiting:
			health.Waiting = count
		case StatePending:
			health.Pending = count
		case StateRunning:
			health.Running = count
		case StateCompleted:
			health.Completed = count
		case StateFailed:
			health.Failed = count
		}
	}
	return health, nil
}

var expectedColumns = strings.Split(strings.ReplaceAll(jobColumns, " ", ""), ",")

// CheckHealth returns diagnostic information about the job database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{DBPath: s.path}
	if s.path == "" {
		return health, errors.New("job database path is unknown")
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return health, nil
		}
		return health, fmt.Errorf("stat job database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("job database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	connCtx, cancel := context.WithTimeout(ensureContext(ctx), 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping job database: %w", err)
	}
	health.DatabaseReadable = true

	if err := s.db.QueryRowContext(connCtx, "PRAGMA user_version").Scan(&health.SchemaVersion); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("read schema version: %w", err)
	}

	rows, err := s.db.QueryContext(connCtx, "SELECT name FROM pragma_table_info('jobs')")
	if err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("table info: %w", err)
	}
	present := map[string]struct{}{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			health.Error = err.Error()
			return health, fmt.Errorf("scan table info: %w", err)
		}
		present[name] = struct{}{}
		health.ColumnsPresent = append(health.ColumnsPresent, name)
	}
	rows.Close()
	health.TableExists = len(present) > 0
	for _, col := range expectedColumns {
		if _, ok := present[col]; !ok {
			health.MissingColumns = append(health.MissingColumns, col)
		}
	}

	if err := s.db.QueryRowContext(connCtx, "PRAGMA integrity_check").Scan(&health.IntegrityCheck); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}
	return health, nil
}

// Remove deletes a job unless it is running. It reports whether a row was deleted.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM jobs WHERE id = ? AND state <> ?`, id, StateRunning)
	if err != nil {
		return false, fmt.Errorf("remove job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ClearCompleted deletes completed jobs. Their publications stay in the ledger.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	return s.deleteWhere(ctx, `state = ?`, StateCompleted)
}

// ClearFailed deletes failed jobs.
func (s *Store) ClearFailed(ctx context.Context) (int64, error) {
	return s.deleteWhere(ctx, `state = ?`, StateFailed)
}

// Clear deletes every job that is not running.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	return s.deleteWhere(ctx, `state <> ?`, StateRunning)
}

func (s *Store) deleteWhere(ctx context.Context, where string, args ...any) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM jobs WHERE `+where, args...)
	if err != nil {
		return 0, fmt.Errorf("clear jobs: %w", err)
	}
	return res.RowsAffected()
}
