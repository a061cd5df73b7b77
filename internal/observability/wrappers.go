package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jkaninda/tabgate/internal/downstream"
)

// InstrumentedBridge wraps a downstream.Bridge with metrics, tracing, and
// anomaly detection. Every remote call is timed, counted per operation and
// status, and fed to the error-rate detector.
type InstrumentedBridge struct {
	inner   downstream.Bridge
	metrics *MetricsCollector
	tracer  trace.Tracer
	anomaly *AnomalyDetector
}

// NewInstrumentedBridge wraps a downstream bridge with observability.
func NewInstrumentedBridge(inner downstream.Bridge, metrics *MetricsCollector, ts *TracerSetup, anomaly *AnomalyDetector) *InstrumentedBridge {
	var tracer trace.Tracer
	if ts != nil {
		tracer = ts.Tracer()
	}
	return &InstrumentedBridge{
		inner:   inner,
		metrics: metrics,
		tracer:  tracer,
		anomaly: anomaly,
	}
}

func (b *InstrumentedBridge) VerifySecret(ctx context.Context, secret string) (bool, error) {
	ctx, done := b.begin(ctx, "verify_secret")
	valid, err := b.inner.VerifySecret(ctx, secret)
	done(ctx, err)
	return valid, err
}

func (b *InstrumentedBridge) Fit(ctx context.Context, secret string, features [][]any, target []any, config map[string]any) (string, error) {
	ctx, done := b.begin(ctx, "fit")
	uid, err := b.inner.Fit(ctx, secret, features, target, config)
	done(ctx, err)
	return uid, err
}

func (b *InstrumentedBridge) Predict(ctx context.Context, secret string, req downstream.PredictRequest) (any, error) {
	ctx, done := b.begin(ctx, "predict")
	preds, err := b.inner.Predict(ctx, secret, req)
	done(ctx, err)
	return preds, err
}

func (b *InstrumentedBridge) ListModels(ctx context.Context, secret string) (map[string][]string, error) {
	ctx, done := b.begin(ctx, "list_models")
	catalog, err := b.inner.ListModels(ctx, secret)
	done(ctx, err)
	return catalog, err
}

// begin starts a span and timer for one downstream operation and returns the
// completion callback that records everything.
func (b *InstrumentedBridge) begin(ctx context.Context, operation string) (context.Context, func(context.Context, error)) {
	if b.tracer != nil {
		var span trace.Span
		ctx, span = b.tracer.Start(ctx, "downstream."+operation,
			trace.WithAttributes(
				attribute.String("downstream.operation", operation),
			))
		start := time.Now()
		return ctx, func(ctx context.Context, err error) {
			b.record(operation, time.Since(start), err)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			span.End()
		}
	}

	start := time.Now()
	return ctx, func(_ context.Context, err error) {
		b.record(operation, time.Since(start), err)
	}
}

func (b *InstrumentedBridge) record(operation string, elapsed time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	if b.metrics != nil {
		b.metrics.DownstreamRequestsTotal.WithLabelValues(operation, status).Inc()
		b.metrics.DownstreamRequestDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
	}

	if b.anomaly != nil {
		if err != nil {
			b.anomaly.RecordError("downstream_" + operation)
		} else {
			b.anomaly.RecordSuccess("downstream_" + operation)
		}
	}
}

// compile-time interface check
var _ downstream.Bridge = (*InstrumentedBridge)(nil)
