package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// Transition moves a job along one edge of the state graph with a single
// conditional UPDATE. Edges outside the graph return ErrIllegalTransition
// without touching the database. When the row is missing the error wraps
// ErrNotFound; when it is in a different state it wraps ErrPrecondition.
func (s *Store) Transition(ctx context.Context, id int64, from, to State, result *Result) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}
	if result == nil {
		result = &Result{}
	}

	timestamp := now()
	var (
		set  string
		args []any
	)
	switch to {
	case StatePending:
		set = `state = ?, error = NULL, outcome_action = NULL, last_heartbeat = NULL, updated_at = ?`
		args = []any{to, timestamp}
	case StateRunning:
		set = `state = ?, last_heartbeat = ?, updated_at = ?`
		args = []any{to, timestamp, timestamp}
	case StateCompleted:
		action := result.Action
		if action == "" {
			action = ActionCreate
		}
		set = `state = ?, outcome_action = ?, result_ref = ?, fingerprint = COALESCE(?, fingerprint),
               derived_json = ?, error = NULL, last_heartbeat = NULL, updated_at = ?`
		args = []any{to, action, nullableString(result.ResultRef), nullableString(result.Fingerprint), nullableJSON(result.Derived), timestamp}
	case StateFailed:
		msg := strings.TrimSpace(result.Error)
		if msg == "" {
			msg = "job failed"
		}
		set = `state = ?, error = ?, outcome_action = NULL, fingerprint = COALESCE(?, fingerprint),
               last_heartbeat = NULL, updated_at = ?`
		args = []any{to, TruncateError(msg), nullableString(result.Fingerprint), timestamp}
	}
	args = append(args, id, from)

	ctx = ensureContext(ctx)
	query := `UPDATE jobs SET ` + set + ` WHERE id = ? AND state = ?`
	publishes := to == StateCompleted && strings.TrimSpace(result.ResultRef) != ""
	affected, err := withContention(ctx, func() (int64, error) {
		var n int64
		err := s.inTx(ctx, func(tx *sql.Tx) error {
			res, err := tx.ExecContext(ctx, query, args...)
			if err != nil {
				return err
			}
			if n, err = res.RowsAffected(); err != nil {
				return err
			}
			if n == 1 && publishes {
				return recordPublication(ctx, tx, id)
			}
			return nil
		})
		return n, err
	})
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: job %d", ErrConflict, id)
		}
		return fmt.Errorf("transition job %d %s -> %s: %w", id, from, to, err)
	}
	if affected == 1 {
		return nil
	}

	current, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if current == nil {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return fmt.Errorf("%w: job %d is %s, expected %s", ErrPrecondition, id, current.State, from)
}

// Confirm moves a waiting job to pending.
func (s *Store) Confirm(ctx context.Context, id int64) (*Job, error) {
	if err := s.Transition(ctx, id, StateWaiting, StatePending, nil); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

// Claim marks a pending job running. It reports false without error when
// another claimer won the row or the job left pending in the meantime.
func (s *Store) Claim(ctx context.Context, id int64) (bool, error) {
	err := s.Transition(ctx, id, StatePending, StateRunning, nil)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrPrecondition), errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Complete records a successful run.
func (s *Store) Complete(ctx context.Context, id int64, result Result) error {
	return s.Transition(ctx, id, StateRunning, StateCompleted, &result)
}

// Fail records a failed run; the message is truncated to MaxErrorLength runes.
func (s *Store) Fail(ctx context.Context, id int64, message string) error {
	return s.Transition(ctx, id, StateRunning, StateFailed, &Result{Error: message})
}

// Retry moves a failed job back to pending.
func (s *Store) Retry(ctx context.Context, id int64) (*Job, error) {
	if err := s.Transition(ctx, id, StateFailed, StatePending, nil); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

// ConfirmMany confirms each id independently.
func (s *Store) ConfirmMany(ctx context.Context, ids ...int64) (BulkResult, error) {
	return s.sweep(ctx, ids, s.Confirm)
}

// ConfirmAllWaiting confirms every waiting job.
func (s *Store) ConfirmAllWaiting(ctx context.Context) (BulkResult, error) {
	ids, err := s.idsInState(ctx, StateWaiting)
	if err != nil {
		return BulkResult{}, err
	}
	return s.sweep(ctx, ids, s.Confirm)
}

// RetryMany retries each id independently.
func (s *Store) RetryMany(ctx context.Context, ids ...int64) (BulkResult, error) {
	return s.sweep(ctx, ids, s.Retry)
}

// RetryAllFailed retries every failed job.
func (s *Store) RetryAllFailed(ctx context.Context) (BulkResult, error) {
	ids, err := s.idsInState(ctx, StateFailed)
	if err != nil {
		return BulkResult{}, err
	}
	return s.sweep(ctx, ids, s.Retry)
}

// sweep applies action to every id; a failure on one row never blocks the rest.
// Only a cancelled context aborts the sweep early.
func (s *Store) sweep(ctx context.Context, ids []int64, action func(context.Context, int64) (*Job, error)) (BulkResult, error) {
	ctx = ensureContext(ctx)
	result := BulkResult{Items: make([]BulkOutcome, 0, len(ids))}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		outcome := BulkOutcome{ID: id}
		job, err := action(ctx, id)
		switch {
		case err == nil:
			outcome.Outcome = OutcomeUpdated
			if job != nil {
				outcome.State = job.State
			}
			result.Updated++
		case errors.Is(err, ErrNotFound):
			outcome.Outcome = OutcomeNotFound
		case errors.Is(err, ErrPrecondition):
			outcome.Outcome = OutcomeInvalidState
			if current, getErr := s.GetByID(ctx, id); getErr == nil && current != nil {
				outcome.State = current.State
			}
		case errors.Is(err, ErrConflict):
			outcome.Outcome = OutcomeConflict
		default:
			outcome.Outcome = OutcomeError
		}
		if err != nil {
			outcome.Detail = err.Error()
		}
		result.Items = append(result.Items, outcome)
	}
	return result, nil
}

func (s *Store) idsInState(ctx context.Context, state State) ([]int64, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT id FROM jobs WHERE state = ? ORDER BY id`, state)
	if err != nil {
		return nil, fmt.Errorf("list %s job ids: %w", state, err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
