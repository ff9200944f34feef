package services_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"pressroom/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalService, "catalog", "appdetails", "request failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalService) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"catalog", "appdetails", "request failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{services.Wrap(services.ErrValidation, "analyze", "decode", "bad payload", nil), "validation"},
		{services.Wrap(services.ErrNotFound, "catalog", "lookup", "unknown app", nil), "not_found"},
		{fmt.Errorf("outer: %w", services.Wrap(services.ErrTimeout, "publish", "post", "", nil)), "timeout"},
		{errors.New("plain"), "transient"},
	}
	for _, tc := range tests {
		if got := services.Kind(tc.err); got != tc.want {
			t.Fatalf("Kind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestErrorExposesFields(t *testing.T) {
	err := fmt.Errorf("stage: %w", services.Wrap(services.ErrNotFound, "steam", "appdetails", "unknown app 7", nil))
	var svcErr *services.Error
	if !errors.As(err, &svcErr) {
		t.Fatalf("expected *services.Error in chain, got %T", err)
	}
	if svcErr.Service != "steam" || svcErr.Op != "appdetails" {
		t.Fatalf("unexpected fields %+v", svcErr)
	}
	if got := svcErr.Error(); got != "not found: steam: appdetails: unknown app 7" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestRetryable(t *testing.T) {
	if !services.Retryable(services.Wrap(services.ErrTransient, "llm", "complete", "", nil)) {
		t.Fatal("transient should be retryable")
	}
	if services.Retryable(services.Wrap(services.ErrValidation, "llm", "complete", "", nil)) {
		t.Fatal("validation should not be retryable")
	}
}
