package services

import "context"

// Scope is the correlation data a job run or API request carries through its
// context. Zero fields are unset.
type Scope struct {
	JobID     int64
	SubjectID int64
	Stage     string
	RequestID string
}

type scopeKey struct{}

// ScopeFrom returns the scope attached to ctx, or the zero Scope.
func ScopeFrom(ctx context.Context) Scope {
	if ctx == nil {
		return Scope{}
	}
	s, _ := ctx.Value(scopeKey{}).(Scope)
	return s
}

func withScope(ctx context.Context, edit func(*Scope)) context.Context {
	s := ScopeFrom(ctx)
	edit(&s)
	return context.WithValue(ctx, scopeKey{}, s)
}

func WithJobID(ctx context.Context, id int64) context.Context {
	return withScope(ctx, func(s *Scope) { s.JobID = id })
}

func JobIDFromContext(ctx context.Context) (int64, bool) {
	id := ScopeFrom(ctx).JobID
	return id, id != 0
}

func WithSubjectID(ctx context.Context, id int64) context.Context {
	return withScope(ctx, func(s *Scope) { s.SubjectID = id })
}

func SubjectIDFromContext(ctx context.Context) (int64, bool) {
	id := ScopeFrom(ctx).SubjectID
	return id, id != 0
}

// WithStage records the running stage. A blank name leaves ctx untouched.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return withScope(ctx, func(s *Scope) { s.Stage = stage })
}

func StageFromContext(ctx context.Context) (string, bool) {
	stage := ScopeFrom(ctx).Stage
	return stage, stage != ""
}

// WithRequestID records the API correlation id. A blank id leaves ctx untouched.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return withScope(ctx, func(s *Scope) { s.RequestID = id })
}

func RequestIDFromContext(ctx context.Context) (string, bool) {
	id := ScopeFrom(ctx).RequestID
	return id, id != ""
}
