package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/schemascout/schemascout/internal/discover"
	"github.com/schemascout/schemascout/internal/index"
	"github.com/schemascout/schemascout/internal/queue"
)

const pipelineScopeName = "github.com/schemascout/schemascout/pipeline"

// ── Queue ───────────────────────────────────────────────────────────────────

// InstrumentedQueue wraps a queue.Queue with OTel tracing and metrics.
// Acks and nacks double as the jobs-settled counter, so dashboards can
// plot throughput and failure rate without touching worker internals.
type InstrumentedQueue struct {
	inner  queue.Queue
	tracer trace.Tracer
	ops    metric.Int64Counter
	dur    metric.Float64Histogram
	errs   metric.Int64Counter
	jobs   metric.Int64Counter
	depth  metric.Int64Gauge
}

// WrapQueue returns q decorated with OTel instrumentation.
// When telemetry is disabled, q is returned as-is.
func WrapQueue(q queue.Queue) queue.Queue {
	if !Enabled() {
		return q
	}
	m := Meter(pipelineScopeName)
	ops, _ := m.Int64Counter("scout.queue.operations",
		metric.WithDescription("Total queue operations executed"),
	)
	dur, _ := m.Float64Histogram("scout.queue.operation.duration",
		metric.WithDescription("Queue operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	errs, _ := m.Int64Counter("scout.queue.errors",
		metric.WithDescription("Total queue operation errors"),
	)
	jobs, _ := m.Int64Counter("scout.queue.jobs.settled",
		metric.WithDescription("Jobs settled, by outcome (ack or nack)"),
	)
	depth, _ := m.Int64Gauge("scout.queue.depth",
		metric.WithDescription("Approximate queue depth at the last poll"),
	)
	return &InstrumentedQueue{
		inner:  q,
		tracer: Tracer(pipelineScopeName),
		ops:    ops,
		dur:    dur,
		errs:   errs,
		jobs:   jobs,
		depth:  depth,
	}
}

func (q *InstrumentedQueue) op(ctx context.Context, name string) (context.Context, trace.Span, time.Time) {
	attrs := []attribute.KeyValue{attribute.String("queue.operation", name)}
	ctx, span := q.tracer.Start(ctx, "queue."+name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	q.ops.Add(ctx, 1, metric.WithAttributes(attrs...))
	return ctx, span, time.Now()
}

func (q *InstrumentedQueue) done(ctx context.Context, span trace.Span, start time.Time, name string, err error) {
	attrs := metric.WithAttributes(attribute.String("queue.operation", name))
	q.dur.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		q.errs.Add(ctx, 1, attrs)
	}
	span.End()
}

func (q *InstrumentedQueue) Send(ctx context.Context, body []byte) error {
	ctx, span, t := q.op(ctx, "Send")
	err := q.inner.Send(ctx, body)
	q.done(ctx, span, t, "Send", err)
	return err
}

// Receive is polled every few seconds; an empty poll produces no
// telemetry so the poll loop does not drown the real traffic.
func (q *InstrumentedQueue) Receive(ctx context.Context, visibility time.Duration) (*queue.Message, error) {
	start := time.Now()
	msg, err := q.inner.Receive(ctx, visibility)
	if errors.Is(err, queue.ErrNoMessage) {
		return msg, err
	}
	attrs := metric.WithAttributes(attribute.String("queue.operation", "Receive"))
	q.ops.Add(ctx, 1, attrs)
	q.dur.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)
	if err != nil {
		q.errs.Add(ctx, 1, attrs)
	}
	return msg, err
}

func (q *InstrumentedQueue) Ack(ctx context.Context, msg *queue.Message) error {
	ctx, span, t := q.op(ctx, "Ack")
	err := q.inner.Ack(ctx, msg)
	q.done(ctx, span, t, "Ack", err)
	if err == nil {
		q.jobs.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "ack")))
	}
	return err
}

func (q *InstrumentedQueue) Nack(ctx context.Context, msg *queue.Message) error {
	ctx, span, t := q.op(ctx, "Nack")
	err := q.inner.Nack(ctx, msg)
	q.done(ctx, span, t, "Nack", err)
	if err == nil {
		q.jobs.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "nack")))
	}
	return err
}

func (q *InstrumentedQueue) Provision(ctx context.Context) error {
	ctx, span, t := q.op(ctx, "Provision")
	err := q.inner.Provision(ctx)
	q.done(ctx, span, t, "Provision", err)
	return err
}

// ApproximateDepth forwards to the wrapped queue when it reports depth,
// recording the reading as a gauge.
func (q *InstrumentedQueue) ApproximateDepth(ctx context.Context) (int32, error) {
	r, ok := q.inner.(interface {
		ApproximateDepth(context.Context) (int32, error)
	})
	if !ok {
		return 0, errors.New("queue depth not supported")
	}
	n, err := r.ApproximateDepth(ctx)
	if err == nil {
		q.depth.Record(ctx, int64(n))
	}
	return n, err
}

func (q *InstrumentedQueue) Close() error {
	return q.inner.Close()
}

// ── Indexer ─────────────────────────────────────────────────────────────────

// InstrumentedIndexer wraps an index.Indexer with OTel tracing and
// add/delete document counters.
type InstrumentedIndexer struct {
	inner   index.Indexer
	tracer  trace.Tracer
	adds    metric.Int64Counter
	deletes metric.Int64Counter
	errs    metric.Int64Counter
	dur     metric.Float64Histogram
}

// WrapIndexer returns ix decorated with OTel instrumentation.
// When telemetry is disabled, ix is returned as-is.
func WrapIndexer(ix index.Indexer) index.Indexer {
	if !Enabled() {
		return ix
	}
	m := Meter(pipelineScopeName)
	adds, _ := m.Int64Counter("scout.index.documents.added",
		metric.WithDescription("Documents uploaded to the search index"),
	)
	deletes, _ := m.Int64Counter("scout.index.documents.deleted",
		metric.WithDescription("Documents removed from the search index"),
	)
	errs, _ := m.Int64Counter("scout.index.errors",
		metric.WithDescription("Failed index batches"),
	)
	dur, _ := m.Float64Histogram("scout.index.operation.duration",
		metric.WithDescription("Index operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	return &InstrumentedIndexer{
		inner:   ix,
		tracer:  Tracer(pipelineScopeName),
		adds:    adds,
		deletes: deletes,
		errs:    errs,
		dur:     dur,
	}
}

func (ix *InstrumentedIndexer) op(ctx context.Context, name string, count int) (context.Context, trace.Span, time.Time) {
	ctx, span := ix.tracer.Start(ctx, "index."+name,
		trace.WithAttributes(
			attribute.String("index.operation", name),
			attribute.Int("scout.batch.size", count),
		),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	return ctx, span, time.Now()
}

func (ix *InstrumentedIndexer) done(ctx context.Context, span trace.Span, start time.Time, name string, err error) {
	attrs := metric.WithAttributes(attribute.String("index.operation", name))
	ix.dur.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		ix.errs.Add(ctx, 1, attrs)
	}
	span.End()
}

func (ix *InstrumentedIndexer) EnsureIndex(ctx context.Context) error {
	ctx, span, t := ix.op(ctx, "EnsureIndex", 0)
	err := ix.inner.EnsureIndex(ctx)
	ix.done(ctx, span, t, "EnsureIndex", err)
	return err
}

func (ix *InstrumentedIndexer) AddBatch(ctx context.Context, items []index.Item) error {
	ctx, span, t := ix.op(ctx, "AddBatch", len(items))
	err := ix.inner.AddBatch(ctx, items)
	ix.done(ctx, span, t, "AddBatch", err)
	if err == nil {
		ix.adds.Add(ctx, int64(len(items)))
	}
	return err
}

func (ix *InstrumentedIndexer) DeleteBatch(ctx context.Context, ids []string) error {
	ctx, span, t := ix.op(ctx, "DeleteBatch", len(ids))
	err := ix.inner.DeleteBatch(ctx, ids)
	ix.done(ctx, span, t, "DeleteBatch", err)
	if err == nil {
		ix.deletes.Add(ctx, int64(len(ids)))
	}
	return err
}

// ── Discovery ───────────────────────────────────────────────────────────────

// SiteDiscoverer is the discovery surface instrumented by WrapDiscoverer.
// *discover.Discoverer implements it.
type SiteDiscoverer interface {
	Site(ctx context.Context, siteURL, userID string) (*discover.Result, error)
}

// InstrumentedDiscoverer wraps site discovery with a span and duration
// histogram per run.
type InstrumentedDiscoverer struct {
	inner  SiteDiscoverer
	tracer trace.Tracer
	runs   metric.Int64Counter
	dur    metric.Float64Histogram
}

// WrapDiscoverer returns d decorated with OTel instrumentation.
// When telemetry is disabled, d is returned as-is.
func WrapDiscoverer(d SiteDiscoverer) SiteDiscoverer {
	if !Enabled() {
		return d
	}
	m := Meter(pipelineScopeName)
	runs, _ := m.Int64Counter("scout.discovery.runs",
		metric.WithDescription("Site discovery runs, by result"),
	)
	dur, _ := m.Float64Histogram("scout.discovery.duration",
		metric.WithDescription("Site discovery duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	return &InstrumentedDiscoverer{
		inner:  d,
		tracer: Tracer(pipelineScopeName),
		runs:   runs,
		dur:    dur,
	}
}

func (d *InstrumentedDiscoverer) Site(ctx context.Context, siteURL, userID string) (*discover.Result, error) {
	attrs := []attribute.KeyValue{
		attribute.String("scout.site", siteURL),
		attribute.String("scout.user", userID),
	}
	ctx, span := d.tracer.Start(ctx, "discover.Site",
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	start := time.Now()
	res, err := d.inner.Site(ctx, siteURL, userID)
	outcome := "ok"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else if res != nil {
		span.SetAttributes(
			attribute.Int("scout.maps", res.Maps),
			attribute.Int("scout.files.added", res.FilesAdded),
			attribute.Int("scout.files.queued", res.FilesQueued),
			attribute.Int("scout.files.removed", res.FilesRemoved),
		)
	}
	d.dur.Record(ctx, float64(time.Since(start).Milliseconds()),
		metric.WithAttributes(attribute.String("outcome", outcome)))
	d.runs.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	span.End()
	return res, err
}
