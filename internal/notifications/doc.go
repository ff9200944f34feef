// Package notifications delivers job outcomes and announcements via ntfy.
//
// NewService returns a no-op implementation when no topic is configured, so
// listeners can register unconditionally. Register wires the service to the
// event bus, gated by the per-event switches in the [notifications] config.
package notifications
