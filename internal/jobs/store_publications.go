package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const publicationColumns = "id, job_id, subject_id, fingerprint, result_ref, action, published_at"

// recordPublication copies the just-completed job's outcome into the ledger.
func recordPublication(ctx context.Context, tx *sql.Tx, jobID int64) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO publications (job_id, subject_id, fingerprint, result_ref, action, published_at)
         SELECT id, subject_id, fingerprint, result_ref, COALESCE(outcome_action, 'create'), updated_at
         FROM jobs WHERE id = ?`,
		jobID,
	); err != nil {
		return fmt.Errorf("record publication: %w", err)
	}
	return nil
}

func scanPublication(row *sql.Row) (*Publication, error) {
	var (
		p           Publication
		fingerprint sql.NullString
		action      string
		published   string
	)
	if err := row.Scan(&p.ID, &p.JobID, &p.SubjectID, &fingerprint, &p.ResultRef, &action, &published); err != nil {
		return nil, err
	}
	p.Fingerprint = fingerprint.String
	p.Action = Action(action)
	if ts, err := parseTimeString(published); err == nil {
		p.PublishedAt = ts
	}
	return &p, nil
}

func (s *Store) publication(ctx context.Context, where string, arg any) (*Publication, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+publicationColumns+` FROM publications WHERE `+where+` ORDER BY id DESC LIMIT 1`, arg)
	p, err := scanPublication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

// FindByFingerprint returns the newest publication carrying the fingerprint,
// or nil when the content was never published.
func (s *Store) FindByFingerprint(ctx context.Context, fingerprint string) (*Publication, error) {
	fingerprint = strings.TrimSpace(fingerprint)
	if fingerprint == "" {
		return nil, nil
	}
	p, err := s.publication(ctx, `fingerprint = ?`, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("find by fingerprint: %w", err)
	}
	return p, nil
}

// LatestPublished returns the newest publication for the subject.
func (s *Store) LatestPublished(ctx context.Context, subjectID int64) (*Publication, error) {
	p, err := s.publication(ctx, `subject_id = ?`, subjectID)
	if err != nil {
		return nil, fmt.Errorf("latest publication: %w", err)
	}
	return p, nil
}
