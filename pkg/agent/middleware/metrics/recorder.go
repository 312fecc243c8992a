// Package metrics records latency, token usage and failures of model calls.
package metrics

import (
	"context"
	"time"
)

// Recorder defines the interface for recording model call metrics.
type Recorder interface {
	// ObserveRequest records a completed model request.
	ObserveRequest(
		model, operation string,
		promptTokens, completionTokens int,
		success bool,
		errorType string,
		duration time.Duration,
	)

	// IncThrottle counts requests refused by the token budget.
	IncThrottle(model, reason string)
}

// NoopRecorder discards all metrics.
type NoopRecorder struct{}

// Nop returns a recorder that discards all metrics.
func Nop() Recorder {
	return NoopRecorder{}
}

// ObserveRequest does nothing.
func (NoopRecorder) ObserveRequest(_, _ string, _, _ int, _ bool, _ string, _ time.Duration) {}

// IncThrottle does nothing.
func (NoopRecorder) IncThrottle(_, _ string) {}

type operationKey struct{}

// WithOperation labels model calls made with ctx, for example "extract" or "summarize".
func WithOperation(ctx context.Context, operation string) context.Context {
	return context.WithValue(ctx, operationKey{}, operation)
}

// OperationFromContext returns the operation label, or "unknown".
func OperationFromContext(ctx context.Context) string {
	if op, ok := ctx.Value(operationKey{}).(string); ok && op != "" {
		return op
	}
	return "unknown"
}
