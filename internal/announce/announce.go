// Package announce pushes a deal announcement when a published subject is
// free or heavily discounted.
package announce

import (
	"context"
	"fmt"
	"log/slog"

	"pressroom/internal/events"
	"pressroom/internal/logging"
	"pressroom/internal/notifications"
	"pressroom/internal/pipeline"
)

// DefaultThreshold is the minimum discount percent worth announcing.
const DefaultThreshold = 50

// Announcer listens for job_completed and notifies on qualifying deals.
type Announcer struct {
	notifier  notifications.Service
	threshold int
	logger    *slog.Logger
}

// New constructs an announcer. A threshold outside 1..100 uses DefaultThreshold.
func New(notifier notifications.Service, threshold int, logger *slog.Logger) *Announcer {
	if threshold <= 0 || threshold > 100 {
		threshold = DefaultThreshold
	}
	return &Announcer{
		notifier:  notifier,
		threshold: threshold,
		logger:    logging.NewComponentLogger(logger, "announce"),
	}
}

// Register subscribes the announcer to the bus.
func (a *Announcer) Register(bus *events.Bus) {
	bus.Register(events.JobCompletedEvent, "announce", a.HandleJobCompleted)
}

// HandleJobCompleted is the job_completed handler.
func (a *Announcer) HandleJobCompleted(ctx context.Context, payload any) error {
	evt, ok := payload.(events.JobCompleted)
	if !ok {
		return fmt.Errorf("unexpected payload %T", payload)
	}
	pc := evt.Context
	if pc == nil || pc.Subject == nil || evt.ResultRef == "" || pc.Action == pipeline.ActionSkip {
		return nil
	}
	headline, ok := Headline(pc.Subject, a.threshold)
	if !ok {
		return nil
	}
	a.logger.Info("announcing deal",
		logging.Int64(logging.FieldJobID, evt.JobID),
		logging.String("headline", headline),
		logging.String(logging.FieldEventType, "deal_announced"),
	)
	return a.notifier.Publish(ctx, notifications.EventAnnouncement, notifications.Payload{
		"title":   headline,
		"message": Message(pc.Subject, evt.ResultRef),
	})
}

// Headline reports the announcement title, and whether the subject qualifies.
func Headline(subject *pipeline.Subject, threshold int) (string, bool) {
	switch {
	case subject.IsFree:
		return subject.Name + " is free", true
	case subject.DiscountPercent >= threshold:
		return fmt.Sprintf("%s is %d%% off", subject.Name, subject.DiscountPercent), true
	default:
		return "", false
	}
}

// Message is the announcement body.
func Message(subject *pipeline.Subject, resultRef string) string {
	if subject.IsFree || subject.PriceFinal == 0 {
		return fmt.Sprintf("Free to keep. Post %s", resultRef)
	}
	return fmt.Sprintf("Now %s (was %s). Post %s",
		formatPrice(subject.PriceFinal, subject.Currency),
		formatPrice(subject.PriceInitial, subject.Currency),
		resultRef)
}

func formatPrice(cents int64, currency string) string {
	text := fmt.Sprintf("%d.%02d", cents/100, cents%100)
	if currency != "" {
		text += " " + currency
	}
	return text
}
