// Package dedupe decides whether a fetched subject needs a new post, an
// update of an earlier post, or nothing at all.
package dedupe

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strconv"
	"strings"

	"pressroom/internal/jobs"
	"pressroom/internal/logging"
	"pressroom/internal/pipeline"
)

// Lookup reads the publications ledger.
type Lookup interface {
	FindByFingerprint(ctx context.Context, fingerprint string) (*jobs.Publication, error)
	LatestPublished(ctx context.Context, subjectID int64) (*jobs.Publication, error)
}

// Stage fingerprints the subject and sets Action.
type Stage struct {
	lookup Lookup
	logger *slog.Logger
}

// NewStage constructs the dedupe stage.
func NewStage(lookup Lookup, logger *slog.Logger) *Stage {
	return &Stage{lookup: lookup, logger: logging.NewComponentLogger(logger, "dedupe")}
}

func (s *Stage) Name() string { return "dedupe" }

func (s *Stage) Applies(pc *pipeline.Context) bool {
	return pc.Subject != nil && pc.Fingerprint == ""
}

func (s *Stage) Execute(ctx context.Context, pc *pipeline.Context) (*pipeline.Context, error) {
	logger := logging.WithContext(ctx, s.logger)
	pc.Fingerprint = Fingerprint(pc.Subject)

	match, err := s.lookup.FindByFingerprint(ctx, pc.Fingerprint)
	if err != nil {
		return nil, err
	}
	if match != nil && match.ResultRef != "" {
		pc.Action = pipeline.ActionSkip
		pc.ResultRef = match.ResultRef
		logger.Info("subject unchanged since last publish; skipping",
			logging.String("fingerprint", pc.Fingerprint),
			logging.Int64("matched_job_id", match.JobID),
			logging.String("result_ref", match.ResultRef),
		)
		return pc, nil
	}

	previous, err := s.lookup.LatestPublished(ctx, pc.SubjectID)
	if err != nil {
		return nil, err
	}
	if previous != nil && previous.ResultRef != "" {
		pc.Action = pipeline.ActionUpdate
		pc.ResultRef = previous.ResultRef
		logger.Info("subject changed; updating earlier post",
			logging.String("fingerprint", pc.Fingerprint),
			logging.String("result_ref", previous.ResultRef),
		)
		return pc, nil
	}

	pc.Action = pipeline.ActionCreate
	logger.Info("new subject", logging.String("fingerprint", pc.Fingerprint))
	return pc, nil
}

// Fingerprint hashes the fields whose change warrants republishing.
func Fingerprint(s *pipeline.Subject) string {
	parts := []string{
		s.Name,
		s.ShortDescription,
		strconv.FormatInt(s.PriceFinal, 10),
		strconv.Itoa(len(s.Screenshots)),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])[:16]
}
