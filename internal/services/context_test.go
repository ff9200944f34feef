package services_test

import (
	"context"
	"testing"

	"pressroom/internal/services"
)

func TestScopeAccumulates(t *testing.T) {
	ctx := services.WithJobID(context.Background(), 42)
	ctx = services.WithSubjectID(ctx, 620)
	ctx = services.WithStage(ctx, "catalog")
	ctx = services.WithRequestID(ctx, "req-123")

	want := services.Scope{JobID: 42, SubjectID: 620, Stage: "catalog", RequestID: "req-123"}
	if got := services.ScopeFrom(ctx); got != want {
		t.Fatalf("scope = %+v, want %+v", got, want)
	}
	if id, ok := services.JobIDFromContext(ctx); !ok || id != 42 {
		t.Fatalf("unexpected job id: %v %v", id, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestScopeIsCopiedNotShared(t *testing.T) {
	parent := services.WithStage(context.Background(), "fetch")
	child := services.WithStage(parent, "publish")

	if stage, _ := services.StageFromContext(parent); stage != "fetch" {
		t.Fatalf("parent stage changed to %q", stage)
	}
	if stage, _ := services.StageFromContext(child); stage != "publish" {
		t.Fatalf("child stage = %q", stage)
	}
}

func TestBlankValuesAreIgnored(t *testing.T) {
	ctx := services.WithRequestID(services.WithStage(context.Background(), ""), "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected no stage value")
	}
	if _, ok := services.RequestIDFromContext(ctx); ok {
		t.Fatal("expected no request id")
	}
	if _, ok := services.JobIDFromContext(context.Background()); ok {
		t.Fatal("expected no job id on a bare context")
	}
}
