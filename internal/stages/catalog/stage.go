// Package catalog fills the pipeline subject from the store catalog.
package catalog

import (
	"context"
	"log/slog"
	"strings"

	"pressroom/internal/logging"
	"pressroom/internal/pipeline"
	"pressroom/internal/services/steam"
)

// Source returns catalog metadata for one app.
type Source interface {
	AppDetails(ctx context.Context, appID int64) (*steam.AppDetails, error)
}

// Stage fetches subject data when the context has none yet.
type Stage struct {
	source Source
	logger *slog.Logger
}

// NewStage constructs the fetch stage.
func NewStage(source Source, logger *slog.Logger) *Stage {
	return &Stage{source: source, logger: logging.NewComponentLogger(logger, "catalog")}
}

func (s *Stage) Name() string { return "fetch" }

func (s *Stage) Applies(pc *pipeline.Context) bool {
	return pc.Subject == nil
}

func (s *Stage) Execute(ctx context.Context, pc *pipeline.Context) (*pipeline.Context, error) {
	details, err := s.source.AppDetails(ctx, pc.SubjectID)
	if err != nil {
		return nil, err
	}
	pc.Subject = ToSubject(details)
	logging.WithContext(ctx, s.logger).Info("subject fetched",
		logging.String("name", pc.Subject.Name),
		logging.Int("screenshots", len(pc.Subject.Screenshots)),
		logging.Int64("price_final", pc.Subject.PriceFinal),
	)
	return pc, nil
}

// ToSubject maps the catalog payload onto the pipeline subject.
func ToSubject(d *steam.AppDetails) *pipeline.Subject {
	subject := &pipeline.Subject{
		AppID:               d.AppID,
		Name:                strings.TrimSpace(d.Name),
		ShortDescription:    strings.TrimSpace(d.ShortDescription),
		DetailedDescription: d.DetailedDescription,
		HeaderImage:         d.HeaderImage,
		Website:             d.Website,
		Developers:          d.Developers,
		Publishers:          d.Publishers,
		ReleaseDate:         d.ReleaseDate.Date,
		IsFree:              d.IsFree,
	}
	for _, g := range d.Genres {
		if desc := strings.TrimSpace(g.Description); desc != "" {
			subject.Genres = append(subject.Genres, desc)
		}
	}
	if p := d.PriceOverview; p != nil {
		subject.Currency = p.Currency
		subject.PriceInitial = p.Initial
		subject.PriceFinal = p.Final
		subject.DiscountPercent = p.DiscountPercent
	}
	for _, shot := range d.Screenshots {
		if shot.PathFull != "" {
			subject.Screenshots = append(subject.Screenshots, shot.PathFull)
		}
	}
	return subject
}
