// Tracing instrumentation for the executor.
package workflow

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/vinayprograms/hekmatica/internal/workflow"

// startRunSpan starts a span covering one run.
func startRunSpan(ctx context.Context, runID string, maxAttempts int) (context.Context, trace.Span) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "workflow.run")
	span.SetAttributes(
		attribute.String("run.id", runID),
		attribute.Int("run.max_attempts", maxAttempts),
	)
	return ctx, span
}

// endRunSpan ends the run span with result info.
func endRunSpan(span trace.Span, attempts int, err error) {
	span.SetAttributes(attribute.Int("run.attempts", attempts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// startStepSpan starts a span for one node execution.
func startStepSpan(ctx context.Context, n Node, attempt int) (context.Context, trace.Span) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "step."+n.String())
	span.SetAttributes(
		attribute.String("step.node", n.String()),
		attribute.Int("step.attempt", attempt),
	)
	return ctx, span
}

// endStepSpan ends the step span.
func endStepSpan(span trace.Span, fields Field, err error) {
	span.SetAttributes(attribute.StringSlice("step.fields", fields.Names()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
