package logging

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type runIDKey struct{}
type projectKey struct{}

// WithRunID attaches a fresh run id to ctx. Every line logged with the
// returned context carries it as run_id.
func WithRunID(ctx context.Context) context.Context {
	return context.WithValue(ctx, runIDKey{}, uuid.NewString())
}

// RunID returns the run id stored in ctx, or "".
func RunID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

// WithProject tags ctx with the project directory being processed. Used by the
// fleet runner so interleaved lines stay attributable.
func WithProject(ctx context.Context, project string) context.Context {
	return context.WithValue(ctx, projectKey{}, project)
}

// ContextFields extracts the logging fields carried by ctx.
func ContextFields(ctx context.Context) []zap.Field {
	if ctx == nil {
		return nil
	}
	var fields []zap.Field
	if id := RunID(ctx); id != "" {
		fields = append(fields, zap.String("run_id", id))
	}
	if p, ok := ctx.Value(projectKey{}).(string); ok && p != "" {
		fields = append(fields, zap.String("project", p))
	}
	return fields
}
