package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/jzempel/continuity/internal/tracker"
	"github.com/jzempel/continuity/internal/types"
)

const trackerScopeName = "github.com/jzempel/continuity/tracker"

// InstrumentedAdapter wraps tracker.Adapter with OTel tracing and metrics.
// Every remote call gets a span and is counted in continuity.tracker.*
// metrics. Use WrapAdapter to create one.
type InstrumentedAdapter struct {
	tracker.Adapter
	tracer trace.Tracer
	calls  metric.Int64Counter
	dur    metric.Float64Histogram
	errs   metric.Int64Counter
}

// WrapAdapter returns a decorated with OTel instrumentation.
// When telemetry is disabled, a is returned as-is.
func WrapAdapter(a tracker.Adapter) tracker.Adapter {
	if !Enabled() {
		return a
	}
	return newInstrumentedAdapter(a)
}

func newInstrumentedAdapter(a tracker.Adapter) *InstrumentedAdapter {
	m := Meter(trackerScopeName)
	calls, _ := m.Int64Counter("continuity.tracker.calls",
		metric.WithDescription("Total tracker backend calls"),
	)
	dur, _ := m.Float64Histogram("continuity.tracker.call.duration",
		metric.WithDescription("Tracker backend call duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	errs, _ := m.Int64Counter("continuity.tracker.errors",
		metric.WithDescription("Total tracker backend call errors"),
	)
	return &InstrumentedAdapter{
		Adapter: a,
		tracer:  Tracer(trackerScopeName),
		calls:   calls,
		dur:     dur,
		errs:    errs,
	}
}

func (a *InstrumentedAdapter) op(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span, []attribute.KeyValue, time.Time) {
	all := append([]attribute.KeyValue{
		attribute.String("continuity.tracker", a.Name()),
		attribute.String("continuity.operation", name),
	}, attrs...)
	ctx, span := a.tracer.Start(ctx, "tracker."+name,
		trace.WithAttributes(all...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	a.calls.Add(ctx, 1, metric.WithAttributes(all...))
	return ctx, span, all, time.Now()
}

func (a *InstrumentedAdapter) done(ctx context.Context, span trace.Span, start time.Time, err error, attrs []attribute.KeyValue) {
	ms := float64(time.Since(start).Milliseconds())
	a.dur.Record(ctx, ms, metric.WithAttributes(attrs...))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		a.errs.Add(ctx, 1, metric.WithAttributes(append(attrs,
			attribute.String("continuity.error", types.ErrorCode(err)))...))
	}
	span.End()
}

func (a *InstrumentedAdapter) Init(ctx context.Context, cfg *tracker.Config) error {
	ctx, span, attrs, t := a.op(ctx, "init")
	err := a.Adapter.Init(ctx, cfg)
	a.done(ctx, span, t, err, attrs)
	return err
}

func (a *InstrumentedAdapter) CurrentUser(ctx context.Context) (*types.User, error) {
	ctx, span, attrs, t := a.op(ctx, "current_user")
	v, err := a.Adapter.CurrentUser(ctx)
	a.done(ctx, span, t, err, attrs)
	return v, err
}

func (a *InstrumentedAdapter) ListCandidates(ctx context.Context, filter types.Filter) ([]types.TrackerItem, error) {
	ctx, span, attrs, t := a.op(ctx, "list_candidates",
		attribute.Bool("continuity.filter.assigned", filter.AssignedToCurrentUser),
		attribute.Bool("continuity.filter.unstarted", filter.UnstartedOnly),
	)
	v, err := a.Adapter.ListCandidates(ctx, filter)
	span.SetAttributes(attribute.Int("continuity.item.count", len(v)))
	a.done(ctx, span, t, err, attrs)
	return v, err
}

func (a *InstrumentedAdapter) Fetch(ctx context.Context, id string) (*types.TrackerItem, error) {
	ctx, span, attrs, t := a.op(ctx, "fetch", attribute.String("continuity.item.id", id))
	v, err := a.Adapter.Fetch(ctx, id)
	a.done(ctx, span, t, err, attrs)
	return v, err
}

func (a *InstrumentedAdapter) SetStatus(ctx context.Context, item *types.TrackerItem, target types.Status) (*types.TrackerItem, error) {
	ctx, span, attrs, t := a.op(ctx, "set_status",
		attribute.String("continuity.item.id", item.ID),
		attribute.String("continuity.status.from", string(item.Status)),
		attribute.String("continuity.status.to", string(target)),
	)
	v, err := a.Adapter.SetStatus(ctx, item, target)
	a.done(ctx, span, t, err, attrs)
	return v, err
}

func (a *InstrumentedAdapter) SetTask(ctx context.Context, item *types.TrackerItem, index int, done bool) (*types.TrackerItem, error) {
	ctx, span, attrs, t := a.op(ctx, "set_task",
		attribute.String("continuity.item.id", item.ID),
		attribute.Int("continuity.task.index", index),
		attribute.Bool("continuity.task.done", done),
	)
	v, err := a.Adapter.SetTask(ctx, item, index, done)
	a.done(ctx, span, t, err, attrs)
	return v, err
}

func (a *InstrumentedAdapter) AddComment(ctx context.Context, item *types.TrackerItem, text string) error {
	ctx, span, attrs, t := a.op(ctx, "add_comment", attribute.String("continuity.item.id", item.ID))
	err := a.Adapter.AddComment(ctx, item, text)
	a.done(ctx, span, t, err, attrs)
	return err
}

func (a *InstrumentedAdapter) Comments(ctx context.Context, item *types.TrackerItem) ([]types.Comment, error) {
	ctx, span, attrs, t := a.op(ctx, "comments", attribute.String("continuity.item.id", item.ID))
	v, err := a.Adapter.Comments(ctx, item)
	a.done(ctx, span, t, err, attrs)
	return v, err
}

// TransitionForReview forwards to the wrapped adapter when it supports
// review transitions.
func (a *InstrumentedAdapter) TransitionForReview(ctx context.Context, item *types.TrackerItem) (*types.TrackerItem, bool, error) {
	rt, ok := a.Adapter.(tracker.ReviewTransitioner)
	if !ok {
		return nil, false, nil
	}
	ctx, span, attrs, t := a.op(ctx, "review_transition", attribute.String("continuity.item.id", item.ID))
	v, moved, err := rt.TransitionForReview(ctx, item)
	span.SetAttributes(attribute.Bool("continuity.review.moved", moved))
	a.done(ctx, span, t, err, attrs)
	return v, moved, err
}
