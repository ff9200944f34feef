package services

import (
	"errors"
	"strings"
)

// Markers classify failures from external services. Match them with errors.Is.
var (
	ErrExternalService = errors.New("external service error")
	ErrValidation      = errors.New("validation error")
	ErrConfiguration   = errors.New("configuration error")
	ErrNotFound        = errors.New("not found")
	ErrTimeout         = errors.New("timeout")
	ErrTransient       = errors.New("transient failure")
)

// Error is a classified failure raised by a service client or stage.
type Error struct {
	Marker  error
	Service string
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Marker.Error())
	parts := 0
	for _, part := range []string{e.Service, e.Op, e.Message} {
		if part = strings.TrimSpace(part); part != "" {
			b.WriteString(": ")
			b.WriteString(part)
			parts++
		}
	}
	if parts == 0 {
		b.WriteString(": service failure")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Marker}
	}
	return []error{e.Marker, e.Err}
}

// Wrap tags err with marker and the service and operation it came from. A nil
// marker means ErrTransient.
func Wrap(marker error, service, op, message string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	return &Error{Marker: marker, Service: service, Op: op, Message: message, Err: err}
}

// Kind reports a short classification label for logging.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrExternalService):
		return "external"
	default:
		return "transient"
	}
}

// Retryable reports whether err is worth a manual retry without operator
// changes.
func Retryable(err error) bool {
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrTimeout)
}
