package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/jkaninda/tabgate/internal/config"
	"github.com/jkaninda/tabgate/internal/downstream"
)

// --- No-op Path ---

func TestNew_NilConfig(t *testing.T) {
	obs, err := New(nil, nil)
	if err != nil {
		t.Fatalf("New(nil) error: %v", err)
	}
	if obs != nil {
		t.Fatal("expected nil Observability for nil config")
	}
}

func TestNew_AllDisabled(t *testing.T) {
	obs, err := New(&config.ObservabilityConfig{}, nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if obs == nil {
		t.Fatal("expected non-nil Observability")
	}
	if obs.Metrics != nil {
		t.Error("metrics should be nil when not enabled")
	}
	if obs.Tracer != nil {
		t.Error("tracer should be nil when not enabled")
	}
	if obs.Anomaly != nil {
		t.Error("anomaly should be nil when not enabled")
	}
	if obs.Health == nil {
		t.Error("health checker should always be created")
	}
}

func TestObservability_ShutdownNil(t *testing.T) {
	// Should not panic.
	var obs *Observability
	obs.Shutdown(context.Background())
}

func TestTracerOrNil_Nil(t *testing.T) {
	var obs *Observability
	if obs.TracerOrNil() != nil {
		t.Error("expected nil tracer from nil Observability")
	}
}

// --- MetricsCollector ---

func TestMetricsCollector_Created(t *testing.T) {
	m := NewMetricsCollector()
	if m == nil {
		t.Fatal("expected non-nil MetricsCollector")
	}
	if m.Registry == nil {
		t.Fatal("expected non-nil Registry")
	}

	// Initialize some metrics so they appear in Gather (CounterVec only appears after first use).
	m.DownstreamRequestsTotal.WithLabelValues("fit", "success").Inc()
	m.AuthResolutionsTotal.WithLabelValues("matched").Inc()
	m.ModelsTrainedTotal.WithLabelValues("success").Inc()
	m.HTTPRequestsTotal.WithLabelValues("GET", "/test", "200").Inc()

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("gather error: %v", err)
	}

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, expected := range []string{
		"tabgate_downstream_requests_total",
		"tabgate_auth_resolutions_total",
		"tabgate_models_trained_total",
		"tabgate_http_requests_total",
	} {
		if !names[expected] {
			t.Errorf("metric %q not found in registry", expected)
		}
	}
}

func TestMetricsCollector_RecordAndGather(t *testing.T) {
	m := NewMetricsCollector()

	m.DownstreamRequestsTotal.WithLabelValues("predict", "success").Inc()
	m.DownstreamRequestsTotal.WithLabelValues("predict", "success").Inc()
	m.DownstreamRequestsTotal.WithLabelValues("predict", "error").Inc()

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("gather error: %v", err)
	}

	var found bool
	for _, f := range families {
		if f.GetName() == "tabgate_downstream_requests_total" {
			found = true
			for _, metric := range f.GetMetric() {
				labels := labelMap(metric.GetLabel())
				if labels["status"] == "success" {
					if got := metric.GetCounter().GetValue(); got != 2 {
						t.Errorf("success count = %v, want 2", got)
					}
				}
				if labels["status"] == "error" {
					if got := metric.GetCounter().GetValue(); got != 1 {
						t.Errorf("error count = %v, want 1", got)
					}
				}
			}
		}
	}
	if !found {
		t.Error("tabgate_downstream_requests_total not found")
	}
}

func labelMap(pairs []*dto.LabelPair) map[string]string {
	m := make(map[string]string)
	for _, p := range pairs {
		m[p.GetName()] = p.GetValue()
	}
	return m
}

// --- HealthChecker ---

func TestHealthChecker_NoChecks(t *testing.T) {
	h := NewHealthChecker(nil)
	status := h.CheckReady(context.Background())
	if status.Status != "ok" {
		t.Errorf("status = %q, want ok", status.Status)
	}
}

func TestHealthChecker_AllPass(t *testing.T) {
	h := NewHealthChecker(nil)
	h.AddCheck("db", func(ctx context.Context) error { return nil })
	h.AddCheck("downstream", func(ctx context.Context) error { return nil })

	status := h.CheckReady(context.Background())
	if status.Status != "ok" {
		t.Errorf("status = %q, want ok", status.Status)
	}
	if status.Checks["db"].Status != "ok" {
		t.Errorf("db check = %q, want ok", status.Checks["db"].Status)
	}
}

func TestHealthChecker_OneFails(t *testing.T) {
	h := NewHealthChecker(nil)
	h.AddCheck("db", func(ctx context.Context) error { return errors.New("connection refused") })
	h.AddCheck("downstream", func(ctx context.Context) error { return nil })

	status := h.CheckReady(context.Background())
	if status.Status != "degraded" {
		t.Errorf("status = %q, want degraded", status.Status)
	}
	if status.Checks["db"].Status != "fail" {
		t.Errorf("db check = %q, want fail", status.Checks["db"].Status)
	}
	if status.Checks["downstream"].Status != "ok" {
		t.Errorf("downstream check = %q, want ok", status.Checks["downstream"].Status)
	}
}

func TestHealthChecker_Liveness(t *testing.T) {
	h := NewHealthChecker(nil)
	status := h.CheckHealth()
	if status.Status != "ok" {
		t.Errorf("liveness status = %q, want ok", status.Status)
	}
}

// --- AnomalyDetector ---

func TestAnomalyDetector_NilSafe(t *testing.T) {
	// All methods should be no-ops on nil receiver.
	var a *AnomalyDetector
	a.RecordError("test")
	a.RecordSuccess("test")
}

func TestAnomalyDetector_ErrorRateThreshold(t *testing.T) {
	a := NewAnomalyDetector(&config.AnomalyConfig{
		Enabled:            true,
		ErrorRateThreshold: 0.5,
		WindowSeconds:      60,
	}, nil)

	// 6 errors, 4 successes = 60% error rate > 50% threshold.
	for i := 0; i < 4; i++ {
		a.RecordSuccess("test_op")
	}
	for i := 0; i < 6; i++ {
		a.RecordError("test_op")
	}

	// Verify internal counts (not threshold alert, which just logs).
	a.mu.Lock()
	errs := a.errorCounts["test_op"].sum()
	successes := a.successCounts["test_op"].sum()
	a.mu.Unlock()

	if errs != 6 {
		t.Errorf("errors = %v, want 6", errs)
	}
	if successes != 4 {
		t.Errorf("successes = %v, want 4", successes)
	}
}

// --- InstrumentedBridge (wrapper) ---

type mockBridge struct {
	valid   bool
	fitUID  string
	err     error
	called  int
	catalog map[string][]string
}

func (m *mockBridge) VerifySecret(ctx context.Context, secret string) (bool, error) {
	m.called++
	return m.valid, m.err
}

func (m *mockBridge) Fit(ctx context.Context, secret string, features [][]any, target []any, config map[string]any) (string, error) {
	m.called++
	return m.fitUID, m.err
}

func (m *mockBridge) Predict(ctx context.Context, secret string, req downstream.PredictRequest) (any, error) {
	m.called++
	return []any{0.0}, m.err
}

func (m *mockBridge) ListModels(ctx context.Context, secret string) (map[string][]string, error) {
	m.called++
	return m.catalog, m.err
}

func TestInstrumentedBridge_Success(t *testing.T) {
	metrics := NewMetricsCollector()
	inner := &mockBridge{fitUID: "h1"}

	b := NewInstrumentedBridge(inner, metrics, nil, nil)
	uid, err := b.Fit(context.Background(), "secret", [][]any{{1.0}}, []any{0.0}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if uid != "h1" {
		t.Errorf("train set uid = %q, want h1", uid)
	}
	if inner.called != 1 {
		t.Errorf("inner called %d times, want 1", inner.called)
	}

	val := counterValue(t, metrics.Registry, "tabgate_downstream_requests_total", prometheus.Labels{"operation": "fit", "status": "success"})
	if val != 1 {
		t.Errorf("requests_total = %v, want 1", val)
	}
}

func TestInstrumentedBridge_Error(t *testing.T) {
	metrics := NewMetricsCollector()
	inner := &mockBridge{err: errors.New("remote error")}

	b := NewInstrumentedBridge(inner, metrics, nil, nil)
	if _, err := b.Predict(context.Background(), "secret", downstream.PredictRequest{}); err == nil {
		t.Fatal("expected error")
	}

	val := counterValue(t, metrics.Registry, "tabgate_downstream_requests_total", prometheus.Labels{"operation": "predict", "status": "error"})
	if val != 1 {
		t.Errorf("error requests_total = %v, want 1", val)
	}
}

func TestInstrumentedBridge_NilMetrics(t *testing.T) {
	inner := &mockBridge{valid: true}

	// nil metrics should not panic.
	b := NewInstrumentedBridge(inner, nil, nil, nil)
	valid, err := b.VerifySecret(context.Background(), "secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !valid {
		t.Error("expected valid secret")
	}
}

func TestInstrumentedBridge_FeedsAnomalyDetector(t *testing.T) {
	anomaly := NewAnomalyDetector(&config.AnomalyConfig{
		Enabled:            true,
		ErrorRateThreshold: 0.5,
		WindowSeconds:      60,
	}, nil)
	inner := &mockBridge{err: errors.New("remote error")}

	b := NewInstrumentedBridge(inner, nil, nil, anomaly)
	_, _ = b.ListModels(context.Background(), "secret")

	anomaly.mu.Lock()
	errs := anomaly.errorCounts["downstream_list_models"].sum()
	anomaly.mu.Unlock()
	if errs != 1 {
		t.Errorf("anomaly errors = %v, want 1", errs)
	}
}

// --- HTTP Middleware ---

func TestHTTPMetricsMiddleware(t *testing.T) {
	metrics := NewMetricsCollector()

	handler := HTTPMetricsMiddleware(metrics, nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))

	req := httptest.NewRequest("GET", "/test", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}

	val := counterValue(t, metrics.Registry, "tabgate_http_requests_total", prometheus.Labels{"method": "GET", "path": "/test", "status_code": "200"})
	if val != 1 {
		t.Errorf("http requests = %v, want 1", val)
	}
}

func TestHTTPMetricsMiddleware_NilMetrics(t *testing.T) {
	// Should not panic with nil metrics.
	handler := HTTPMetricsMiddleware(nil, nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/test", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

// --- Helpers ---

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels prometheus.Labels) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather error: %v", err)
	}
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, metric := range f.GetMetric() {
			lm := labelMap(metric.GetLabel())
			match := true
			for k, v := range labels {
				if lm[k] != v {
					match = false
					break
				}
			}
			if match {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}
