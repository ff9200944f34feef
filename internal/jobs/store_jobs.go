package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// Create admits a job for a subject. The job starts waiting, or pending when
// AutoConfirm is set. A subject that already has an active job yields ErrConflict.
func (s *Store) Create(ctx context.Context, req CreateRequest) (*Job, error) {
	if req.SubjectID <= 0 {
		return nil, fmt.Errorf("create job: subject id must be positive, got %d", req.SubjectID)
	}
	options := req.Options
	if len(options) == 0 || string(options) == "null" {
		options = json.RawMessage(`{}`)
	}
	if !json.Valid(options) {
		return nil, errors.New("create job: options snapshot is not valid JSON")
	}

	active, err := s.CountActive(ctx, req.SubjectID)
	if err != nil {
		return nil, err
	}
	if active > 0 {
		return nil, fmt.Errorf("%w: subject %d", ErrConflict, req.SubjectID)
	}

	state := StateWaiting
	if req.AutoConfirm {
		state = StatePending
	}
	timestamp := now()
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO jobs (subject_id, state, options_json, display_name, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		req.SubjectID,
		state,
		string(options),
		nullableString(req.DisplayName),
		timestamp,
		timestamp,
	)
	if err != nil {
		// Lost the race against a concurrent admission for the same subject.
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: subject %d", ErrConflict, req.SubjectID)
		}
		return nil, fmt.Errorf("insert job: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// CountActive returns how many waiting, pending, or running jobs exist for a subject.
func (s *Store) CountActive(ctx context.Context, subjectID int64) (int, error) {
	args := append([]any{subjectID}, stateArgs(activeStates)...)
	var count int
	err := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT COUNT(1) FROM jobs WHERE subject_id = ? AND state IN (`+makePlaceholders(len(activeStates))+`)`,
		args...,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active jobs: %w", err)
	}
	return count, nil
}

// GetByID fetches a job by identifier. A missing job returns (nil, nil).
func (s *Store) GetByID(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// ListPending returns up to limit pending jobs, oldest first.
func (s *Store) ListPending(ctx context.Context, limit int) ([]*Job, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT `+jobColumns+` FROM jobs WHERE state = ? ORDER BY created_at, id LIMIT ?`,
		StatePending,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending jobs: %w", err)
	}
	return scanJobs(rows)
}

// List returns every job in the given states, or every job when none are
// given, newest first.
func (s *Store) List(ctx context.Context, states ...State) ([]*Job, error) {
	items, _, err := s.ListPage(ctx, ListFilter{States: states})
	return items, err
}

// ListPage returns one page of jobs, newest first, and the number of jobs
// matching the filter across all pages.
func (s *Store) ListPage(ctx context.Context, filter ListFilter) ([]*Job, int, error) {
	ctx = ensureContext(ctx)
	var (
		where string
		args  []any
	)
	if len(filter.States) > 0 {
		where = ` WHERE state IN (` + makePlaceholders(len(filter.States)) + `)`
		args = stateArgs(filter.States)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM jobs`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count jobs: %w", err)
	}

	query := `SELECT ` + jobColumns + ` FROM jobs` + where + ` ORDER BY id DESC`
	switch {
	case filter.Limit > 0:
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, max(filter.Offset, 0))
	case filter.Offset > 0:
		query += ` LIMIT -1 OFFSET ?`
		args = append(args, filter.Offset)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list jobs: %w", err)
	}
	items, err := scanJobs(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
