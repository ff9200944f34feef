package notifications

import (
	"context"
	"fmt"
	"log/slog"

	"pressroom/internal/config"
	"pressroom/internal/events"
	"pressroom/internal/logging"
)

// Register subscribes svc to job outcome events allowed by cfg.
func Register(bus *events.Bus, svc Service, cfg config.Notifications, logger *slog.Logger) {
	if bus == nil || svc == nil {
		return
	}
	logger = logging.NewComponentLogger(logger, "notifications")
	if cfg.JobCompleted {
		bus.Register(events.JobCompletedEvent, "ntfy", func(ctx context.Context, payload any) error {
			evt, ok := payload.(events.JobCompleted)
			if !ok {
				return fmt.Errorf("unexpected payload %T", payload)
			}
			data := Payload{
				"subjectID": evt.SubjectID,
				"resultRef": evt.ResultRef,
			}
			if evt.Context != nil {
				data["displayName"] = evt.Context.DisplayName()
				data["action"] = string(evt.Context.Action)
			}
			return svc.Publish(ctx, EventJobCompleted, data)
		})
	}
	if cfg.JobFailed {
		bus.Register(events.JobFailedEvent, "ntfy", func(ctx context.Context, payload any) error {
			evt, ok := payload.(events.JobFailed)
			if !ok {
				return fmt.Errorf("unexpected payload %T", payload)
			}
			data := Payload{
				"subjectID": evt.SubjectID,
				"error":     evt.Error,
			}
			if evt.Context != nil {
				data["displayName"] = evt.Context.DisplayName()
			}
			return svc.Publish(ctx, EventJobFailed, data)
		})
	}
	logger.Debug("notification listeners registered",
		logging.Bool("job_completed", cfg.JobCompleted),
		logging.Bool("job_failed", cfg.JobFailed),
	)
}
