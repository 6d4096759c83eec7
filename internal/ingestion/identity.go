package ingestion

import (
	"context"
	"strings"
)

// Identity supplies the reporter reference of the current caller, if any.
type Identity interface {
	ReporterRef(ctx context.Context) (string, bool)
}

type reporterKey struct{}

// WithReporter attaches an authenticated reporter reference to ctx.
func WithReporter(ctx context.Context, ref string) context.Context {
	return context.WithValue(ctx, reporterKey{}, ref)
}

// ContextIdentity reads the reference set by WithReporter.
type ContextIdentity struct{}

func (ContextIdentity) ReporterRef(ctx context.Context) (string, bool) {
	ref, ok := ctx.Value(reporterKey{}).(string)
	if !ok || strings.TrimSpace(ref) == "" {
		return "", false
	}
	return ref, true
}
