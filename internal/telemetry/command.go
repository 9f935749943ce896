package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/jzempel/continuity/internal/types"
)

// Command is the root span of one continuity invocation.
type Command struct {
	name  string
	span  trace.Span
	start time.Time
	runs  metric.Int64Counter
	dur   metric.Float64Histogram
	ended bool
}

// StartCommand opens the span for command name. The returned context
// carries it, so tracker spans started from ctx become its children.
func StartCommand(ctx context.Context, name string) (context.Context, *Command) {
	m := Meter(instrumentationScope)
	runs, _ := m.Int64Counter("continuity.command.runs",
		metric.WithDescription("Total command invocations by result"),
	)
	dur, _ := m.Float64Histogram("continuity.command.duration",
		metric.WithDescription("Command duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	ctx, span := Tracer(instrumentationScope).Start(ctx, "command."+name,
		trace.WithAttributes(attribute.String("continuity.command", name)),
	)
	return ctx, &Command{name: name, span: span, start: time.Now(), runs: runs, dur: dur}
}

// End records err, if any, as the command's outcome and closes the span.
// Calls after the first are ignored, so both the normal and the fatal
// exit paths may call it.
func (c *Command) End(err error) {
	if c == nil || c.ended {
		return
	}
	c.ended = true

	result := "ok"
	if err != nil {
		result = types.ErrorCode(err)
		c.span.RecordError(err)
		c.span.SetStatus(codes.Error, err.Error())
	}
	attrs := metric.WithAttributes(
		attribute.String("continuity.command", c.name),
		attribute.String("continuity.result", result),
	)
	ctx := context.Background()
	c.runs.Add(ctx, 1, attrs)
	c.dur.Record(ctx, float64(time.Since(c.start).Milliseconds()), attrs)
	c.span.End()
}
