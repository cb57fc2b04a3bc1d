package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/schemascout/schemascout/internal/storage"
	"github.com/schemascout/schemascout/internal/types"
)

const storageScopeName = "github.com/schemascout/schemascout/storage"

// InstrumentedStore wraps storage.Store with OTel tracing and metrics.
// Every method gets a span and is counted in scout.store.* metrics.
// Use WrapStorage to create one; it returns the original store unchanged
// when telemetry is disabled.
type InstrumentedStore struct {
	inner    storage.Store
	tracer   trace.Tracer
	ops      metric.Int64Counter
	dur      metric.Float64Histogram
	errs     metric.Int64Counter
	dueGauge metric.Int64Gauge
}

// WrapStorage returns s decorated with OTel instrumentation.
// When telemetry is disabled, s is returned as-is with zero overhead.
func WrapStorage(s storage.Store) storage.Store {
	if !Enabled() {
		return s
	}
	m := Meter(storageScopeName)
	ops, _ := m.Int64Counter("scout.store.operations",
		metric.WithDescription("Total store operations executed"),
	)
	dur, _ := m.Float64Histogram("scout.store.operation.duration",
		metric.WithDescription("Store operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	errs, _ := m.Int64Counter("scout.store.errors",
		metric.WithDescription("Total store operation errors"),
	)
	dueGauge, _ := m.Int64Gauge("scout.sites.due",
		metric.WithDescription("Sites due for processing (snapshot from DueSites)"),
	)
	return &InstrumentedStore{
		inner:    s,
		tracer:   Tracer(storageScopeName),
		ops:      ops,
		dur:      dur,
		errs:     errs,
		dueGauge: dueGauge,
	}
}

// op starts a span and records a metric for the named store operation.
func (s *InstrumentedStore) op(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span, time.Time) {
	all := append([]attribute.KeyValue{attribute.String("db.operation", name)}, attrs...)
	ctx, span := s.tracer.Start(ctx, "store."+name,
		trace.WithAttributes(all...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	s.ops.Add(ctx, 1, metric.WithAttributes(all...))
	return ctx, span, time.Now()
}

// done ends the span, records duration and optional error.
func (s *InstrumentedStore) done(ctx context.Context, span trace.Span, start time.Time, err error, attrs ...attribute.KeyValue) {
	ms := float64(time.Since(start).Milliseconds())
	s.dur.Record(ctx, ms, metric.WithAttributes(attrs...))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.errs.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	span.End()
}

// ── Sites ───────────────────────────────────────────────────────────────────

func (s *InstrumentedStore) AddSite(ctx context.Context, siteURL, userID string, intervalHours int) error {
	attrs := []attribute.KeyValue{
		attribute.String("scout.site", siteURL),
		attribute.String("scout.user", userID),
		attribute.Int("scout.interval_hours", intervalHours),
	}
	ctx, span, t := s.op(ctx, "AddSite", attrs...)
	err := s.inner.AddSite(ctx, siteURL, userID, intervalHours)
	s.done(ctx, span, t, err, attrs...)
	return err
}

func (s *InstrumentedStore) RemoveSite(ctx context.Context, siteURL, userID string) error {
	attrs := []attribute.KeyValue{
		attribute.String("scout.site", siteURL),
		attribute.String("scout.user", userID),
	}
	ctx, span, t := s.op(ctx, "RemoveSite", attrs...)
	err := s.inner.RemoveSite(ctx, siteURL, userID)
	s.done(ctx, span, t, err, attrs...)
	return err
}

func (s *InstrumentedStore) GetSite(ctx context.Context, siteURL, userID string) (*types.Site, error) {
	attrs := []attribute.KeyValue{
		attribute.String("scout.site", siteURL),
		attribute.String("scout.user", userID),
	}
	ctx, span, t := s.op(ctx, "GetSite", attrs...)
	v, err := s.inner.GetSite(ctx, siteURL, userID)
	s.done(ctx, span, t, err, attrs...)
	return v, err
}

func (s *InstrumentedStore) ListSites(ctx context.Context, userID string) ([]*types.Site, error) {
	attrs := []attribute.KeyValue{attribute.String("scout.user", userID)}
	ctx, span, t := s.op(ctx, "ListSites", attrs...)
	v, err := s.inner.ListSites(ctx, userID)
	if err == nil {
		span.SetAttributes(attribute.Int("scout.result.count", len(v)))
	}
	s.done(ctx, span, t, err, attrs...)
	return v, err
}

func (s *InstrumentedStore) DueSites(ctx context.Context, now time.Time) ([]*types.Site, error) {
	ctx, span, t := s.op(ctx, "DueSites")
	v, err := s.inner.DueSites(ctx, now)
	s.done(ctx, span, t, err)
	if err == nil {
		// Gauge snapshot of the scheduling backlog, one point per sweep.
		span.SetAttributes(attribute.Int("scout.result.count", len(v)))
		s.dueGauge.Record(ctx, int64(len(v)))
	}
	return v, err
}

func (s *InstrumentedStore) TouchSiteProcessed(ctx context.Context, siteURL, userID string, at time.Time) error {
	attrs := []attribute.KeyValue{
		attribute.String("scout.site", siteURL),
		attribute.String("scout.user", userID),
	}
	ctx, span, t := s.op(ctx, "TouchSiteProcessed", attrs...)
	err := s.inner.TouchSiteProcessed(ctx, siteURL, userID, at)
	s.done(ctx, span, t, err, attrs...)
	return err
}

func (s *InstrumentedStore) SiteStatus(ctx context.Context, siteURL, userID string) (*types.SiteStatus, error) {
	attrs := []attribute.KeyValue{
		attribute.String("scout.site", siteURL),
		attribute.String("scout.user", userID),
	}
	ctx, span, t := s.op(ctx, "SiteStatus", attrs...)
	v, err := s.inner.SiteStatus(ctx, siteURL, userID)
	s.done(ctx, span, t, err, attrs...)
	return v, err
}

// ── Files ───────────────────────────────────────────────────────────────────

func (s *InstrumentedStore) DiffSiteFiles(ctx context.Context, siteURL, userID, schemaMap string, entries []types.MapEntry) (*types.FileDiff, error) {
	attrs := []attribute.KeyValue{
		attribute.String("scout.site", siteURL),
		attribute.String("scout.user", userID),
		attribute.Int("scout.entry.count", len(entries)),
	}
	ctx, span, t := s.op(ctx, "DiffSiteFiles", attrs...)
	v, err := s.inner.DiffSiteFiles(ctx, siteURL, userID, schemaMap, entries)
	if err == nil && v != nil {
		span.SetAttributes(
			attribute.Int("scout.added.count", len(v.Added)),
			attribute.Int("scout.removed.count", len(v.Removed)),
		)
	}
	s.done(ctx, span, t, err, attrs...)
	return v, err
}

func (s *InstrumentedStore) ListSiteFiles(ctx context.Context, siteURL, userID string) ([]*types.File, error) {
	attrs := []attribute.KeyValue{
		attribute.String("scout.site", siteURL),
		attribute.String("scout.user", userID),
	}
	ctx, span, t := s.op(ctx, "ListSiteFiles", attrs...)
	v, err := s.inner.ListSiteFiles(ctx, siteURL, userID)
	if err == nil {
		span.SetAttributes(attribute.Int("scout.result.count", len(v)))
	}
	s.done(ctx, span, t, err, attrs...)
	return v, err
}

func (s *InstrumentedStore) GetFile(ctx context.Context, fileURL, userID string) (*types.File, error) {
	attrs := []attribute.KeyValue{
		attribute.String("scout.file", fileURL),
		attribute.String("scout.user", userID),
	}
	ctx, span, t := s.op(ctx, "GetFile", attrs...)
	v, err := s.inner.GetFile(ctx, fileURL, userID)
	s.done(ctx, span, t, err, attrs...)
	return v, err
}

func (s *InstrumentedStore) AddManualFile(ctx context.Context, siteURL, userID, fileURL string) error {
	attrs := []attribute.KeyValue{
		attribute.String("scout.site", siteURL),
		attribute.String("scout.user", userID),
		attribute.String("scout.file", fileURL),
	}
	ctx, span, t := s.op(ctx, "AddManualFile", attrs...)
	err := s.inner.AddManualFile(ctx, siteURL, userID, fileURL)
	s.done(ctx, span, t, err, attrs...)
	return err
}

func (s *InstrumentedStore) DeleteFile(ctx context.Context, fileURL, userID string) error {
	attrs := []attribute.KeyValue{
		attribute.String("scout.file", fileURL),
		attribute.String("scout.user", userID),
	}
	ctx, span, t := s.op(ctx, "DeleteFile", attrs...)
	err := s.inner.DeleteFile(ctx, fileURL, userID)
	s.done(ctx, span, t, err, attrs...)
	return err
}

// ── IDs ─────────────────────────────────────────────────────────────────────

func (s *InstrumentedStore) DiffFileIDs(ctx context.Context, fileURL, userID string, newIDs []string) (*types.IDDiff, error) {
	attrs := []attribute.KeyValue{
		attribute.String("scout.file", fileURL),
		attribute.String("scout.user", userID),
		attribute.Int("scout.id.count", len(newIDs)),
	}
	ctx, span, t := s.op(ctx, "DiffFileIDs", attrs...)
	v, err := s.inner.DiffFileIDs(ctx, fileURL, userID, newIDs)
	if err == nil && v != nil {
		span.SetAttributes(
			attribute.Int("scout.added.count", len(v.Added)),
			attribute.Int("scout.removed.count", len(v.Removed)),
		)
	}
	s.done(ctx, span, t, err, attrs...)
	return v, err
}

func (s *InstrumentedStore) ListFileIDs(ctx context.Context, fileURL, userID string) ([]string, error) {
	attrs := []attribute.KeyValue{
		attribute.String("scout.file", fileURL),
		attribute.String("scout.user", userID),
	}
	ctx, span, t := s.op(ctx, "ListFileIDs", attrs...)
	v, err := s.inner.ListFileIDs(ctx, fileURL, userID)
	if err == nil {
		span.SetAttributes(attribute.Int("scout.result.count", len(v)))
	}
	s.done(ctx, span, t, err, attrs...)
	return v, err
}

func (s *InstrumentedStore) RefCount(ctx context.Context, id, userID string) (int, error) {
	attrs := []attribute.KeyValue{attribute.String("scout.user", userID)}
	ctx, span, t := s.op(ctx, "RefCount", attrs...)
	v, err := s.inner.RefCount(ctx, id, userID)
	s.done(ctx, span, t, err, attrs...)
	return v, err
}

// ── Processing errors ───────────────────────────────────────────────────────

func (s *InstrumentedStore) LogError(ctx context.Context, perr *types.ProcessingError) error {
	attrs := []attribute.KeyValue{
		attribute.String("scout.file", perr.FileURL),
		attribute.String("scout.user", perr.UserID),
		attribute.String("scout.error.type", perr.ErrorType),
	}
	ctx, span, t := s.op(ctx, "LogError", attrs...)
	err := s.inner.LogError(ctx, perr)
	s.done(ctx, span, t, err, attrs...)
	return err
}

func (s *InstrumentedStore) ClearErrors(ctx context.Context, fileURL, userID string) error {
	attrs := []attribute.KeyValue{
		attribute.String("scout.file", fileURL),
		attribute.String("scout.user", userID),
	}
	ctx, span, t := s.op(ctx, "ClearErrors", attrs...)
	err := s.inner.ClearErrors(ctx, fileURL, userID)
	s.done(ctx, span, t, err, attrs...)
	return err
}

func (s *InstrumentedStore) ListErrors(ctx context.Context, fileURL, userID string) ([]*types.ProcessingError, error) {
	attrs := []attribute.KeyValue{
		attribute.String("scout.file", fileURL),
		attribute.String("scout.user", userID),
	}
	ctx, span, t := s.op(ctx, "ListErrors", attrs...)
	v, err := s.inner.ListErrors(ctx, fileURL, userID)
	if err == nil {
		span.SetAttributes(attribute.Int("scout.result.count", len(v)))
	}
	s.done(ctx, span, t, err, attrs...)
	return v, err
}

// ── Users ───────────────────────────────────────────────────────────────────

func (s *InstrumentedStore) GetOrCreateUser(ctx context.Context, u *types.User) (*types.User, error) {
	attrs := []attribute.KeyValue{attribute.String("scout.user", u.UserID)}
	ctx, span, t := s.op(ctx, "GetOrCreateUser", attrs...)
	v, err := s.inner.GetOrCreateUser(ctx, u)
	s.done(ctx, span, t, err, attrs...)
	return v, err
}

func (s *InstrumentedStore) GetUser(ctx context.Context, userID string) (*types.User, error) {
	attrs := []attribute.KeyValue{attribute.String("scout.user", userID)}
	ctx, span, t := s.op(ctx, "GetUser", attrs...)
	v, err := s.inner.GetUser(ctx, userID)
	s.done(ctx, span, t, err, attrs...)
	return v, err
}

func (s *InstrumentedStore) GetUserByAPIKey(ctx context.Context, apiKey string) (*types.User, error) {
	// The key itself is a credential and never becomes an attribute.
	ctx, span, t := s.op(ctx, "GetUserByAPIKey")
	v, err := s.inner.GetUserByAPIKey(ctx, apiKey)
	s.done(ctx, span, t, err)
	return v, err
}

func (s *InstrumentedStore) UpdateUserLogin(ctx context.Context, userID string, at time.Time) error {
	attrs := []attribute.KeyValue{attribute.String("scout.user", userID)}
	ctx, span, t := s.op(ctx, "UpdateUserLogin", attrs...)
	err := s.inner.UpdateUserLogin(ctx, userID, at)
	s.done(ctx, span, t, err, attrs...)
	return err
}

// ── Lifecycle ───────────────────────────────────────────────────────────────

func (s *InstrumentedStore) Ping(ctx context.Context) error {
	ctx, span, t := s.op(ctx, "Ping")
	err := s.inner.Ping(ctx)
	s.done(ctx, span, t, err)
	return err
}

func (s *InstrumentedStore) Close() error {
	return s.inner.Close()
}
