// Package engine orchestrates reads and conditional writes of the course graph and the concept
// graph. Every write follows the same shape: load the stored document, check the caller's expected
// version, apply the change to a private copy, and commit it with a compare-and-swap. The store's
// compare-and-swap is the only serialization point; nothing here locks or retries.
package engine

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"course-graph/backend/internal/cache"
	"course-graph/backend/internal/metrics"
	"course-graph/backend/internal/store"
	apperrors "course-graph/backend/pkg/errors"
	"course-graph/backend/pkg/tracing"
)

// documents binds a store and its snapshot cache to one document kind
type documents struct {
	kind   string
	store  store.Store
	cache  cache.SnapshotCache
	logger *zap.Logger
	tracer trace.Tracer
}

func newDocuments(kind string, s store.Store, c cache.SnapshotCache, log *zap.Logger) *documents {
	if c == nil {
		c = cache.Noop{}
	}
	return &documents{
		kind:   kind,
		store:  s,
		cache:  c,
		logger: log,
		tracer: tracing.Tracer("course-graph/engine"),
	}
}

// snapshot serves reads. A cached snapshot may trail the store by at most the cache TTL.
func (d *documents) snapshot(ctx context.Context, courseID string) (*store.Document, error) {
	if doc, ok := d.cache.Get(ctx, d.kind, courseID); ok {
		metrics.CacheLookups.WithLabelValues(d.kind, "hit").Inc()
		return doc, nil
	}
	metrics.CacheLookups.WithLabelValues(d.kind, "miss").Inc()

	doc, err := d.store.Get(ctx, d.kind, courseID)
	if err != nil {
		return nil, err
	}
	d.cache.Set(ctx, doc)
	return doc, nil
}

// latest serves writes and always reads the store
func (d *documents) latest(ctx context.Context, courseID string) (*store.Document, error) {
	return d.store.Get(ctx, d.kind, courseID)
}

func (d *documents) create(ctx context.Context, courseID string, body []byte) (*store.Document, error) {
	doc, err := d.store.Create(ctx, d.kind, courseID, body)
	if err != nil {
		return nil, err
	}
	d.cache.Set(ctx, doc)
	metrics.Commits.WithLabelValues(d.kind, "init").Inc()
	d.logger.Info("Document created",
		zap.String("kind", d.kind),
		zap.String("course_id", courseID),
	)
	return doc, nil
}

// checkVersion rejects a stale expected version before any work is done
func (d *documents) checkVersion(ctx context.Context, op string, doc *store.Document, expected int64) error {
	if doc.Version == expected {
		return nil
	}
	d.conflict(ctx, op, doc.CourseID, expected, doc.Version)
	return apperrors.NewVersionConflict(d.kind, doc.CourseID, expected, doc.Version)
}

func (d *documents) conflict(ctx context.Context, op, courseID string, expected, current int64) {
	d.cache.Invalidate(ctx, d.kind, courseID)
	metrics.Conflicts.WithLabelValues(d.kind, op).Inc()
	d.logger.Warn("Version conflict",
		zap.String("kind", d.kind),
		zap.String("operation", op),
		zap.String("course_id", courseID),
		zap.Int64("expected_version", expected),
		zap.Int64("current_version", current),
	)
}

func (d *documents) reject(op, courseID string, err error) {
	reason := string(apperrors.TypeOf(err))
	if reason == "" {
		reason = "unknown"
	}
	metrics.Rejections.WithLabelValues(d.kind, op, reason).Inc()
	d.logger.Debug("Write rejected",
		zap.String("kind", d.kind),
		zap.String("operation", op),
		zap.String("course_id", courseID),
		zap.Error(err),
	)
}

// commit performs the compare-and-swap. On conflict the cached snapshot is dropped so the
// caller's reload sees the store.
func (d *documents) commit(ctx context.Context, op, courseID string, expected int64, body []byte, audit []store.AuditRecord) (*store.Document, error) {
	doc, err := d.store.CompareAndSwap(ctx, d.kind, courseID, expected, body, audit)
	if err != nil {
		var vc *apperrors.ErrVersionConflict
		if apperrors.As(err, &vc) {
			d.conflict(ctx, op, courseID, expected, vc.CurrentVersion)
			return nil, err
		}
		d.logger.Error("Commit failed",
			zap.String("kind", d.kind),
			zap.String("operation", op),
			zap.String("course_id", courseID),
			zap.Error(err),
		)
		return nil, err
	}

	d.cache.Set(ctx, doc)
	metrics.Commits.WithLabelValues(d.kind, op).Inc()
	d.logger.Info("Document committed",
		zap.String("kind", d.kind),
		zap.String("operation", op),
		zap.String("course_id", courseID),
		zap.Int64("version", doc.Version),
		zap.Int("audit_records", len(audit)),
	)
	return doc, nil
}

// span starts a write span and returns a finisher recording latency and outcome
func (d *documents) span(ctx context.Context, op, courseID string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := d.tracer.Start(ctx, d.kind+"."+op, trace.WithAttributes(
		attribute.String("course.id", courseID),
		attribute.String("document.kind", d.kind),
	))
	return ctx, func(err error) {
		metrics.WriteDuration.WithLabelValues(d.kind, op).Observe(time.Since(start).Seconds())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(apperrors.TypeOf(err)))
		}
		span.End()
	}
}
