// Package httpapi implements the HTTP API gateway for TabGate.
//
// Security:
//   - Bearer API key authentication on every /v1/models request
//   - Request body size limits (default 1 MB)
//   - Per-account rate limiting via token bucket
//   - All requests logged with correlation IDs
//   - TLS expected via reverse proxy (not handled here)
package httpapi

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/jkaninda/okapi"

	"github.com/jkaninda/tabgate/internal/auth"
	"github.com/jkaninda/tabgate/internal/domain"
	"github.com/jkaninda/tabgate/internal/downstream"
	"github.com/jkaninda/tabgate/internal/models"
	"github.com/jkaninda/tabgate/internal/observability"
	"github.com/jkaninda/tabgate/internal/ratelimit"
)

const defaultMaxRequestSize = 1 << 20 // 1 MB

// ErrorBody is the standard error response used in OpenAPI documentation.
type ErrorBody struct {
	Error string `json:"error"`
}

// Config configures the HTTP API gateway.
type Config struct {
	ListenAddr     string // e.g., ":8080"
	EnableDocs     bool
	MaxRequestSize int64 // Maximum request body in bytes. 0 = 1 MB default.

	// Observability
	MetricsRegistry *prometheus.Registry            // Custom Prometheus registry for /metrics.
	MetricsPath     string                          // Path for metrics endpoint. Default: "/metrics".
	HealthChecker   *observability.HealthChecker    // Health checker for /readyz endpoint.
	Metrics         *observability.MetricsCollector // Metrics collector for HTTP middleware.
	Tracer          trace.Tracer                    // OTel tracer for HTTP middleware.
}

// Gateway is the HTTP API gateway. It owns the single translation point
// from internal error kinds to HTTP status codes.
type Gateway struct {
	config  Config
	auth    *auth.Service
	models  *models.Service
	limiter *ratelimit.Limiter
	logger  *slog.Logger
	server  *http.Server

	okapi *okapi.Okapi
	group *okapi.Group
}

// NewGateway creates an HTTP API gateway.
func NewGateway(cfg Config, authSvc *auth.Service, modelSvc *models.Service, rl *ratelimit.Limiter, logger *slog.Logger) *Gateway {
	return &Gateway{
		config:  cfg,
		auth:    authSvc,
		models:  modelSvc,
		limiter: rl,
		logger:  logger,
		okapi:   okapi.New(okapi.WithMaxMultipartMemory(defaultMaxRequestSize)),
	}
}

// WithOpenAPIDocs enables the interactive OpenAPI documentation.
func (g *Gateway) WithOpenAPIDocs() *Gateway {
	g.okapi.WithOpenAPIDocs(
		okapi.OpenAPI{
			Title:   "TabGate",
			Version: "v0.1.0",
		},
	)
	return g
}

// Start launches the HTTP server and blocks until it exits or ctx is canceled.
func (g *Gateway) Start(ctx context.Context) error {
	// Metrics/tracing middleware (applied globally).
	if g.config.Metrics != nil || g.config.Tracer != nil {
		g.okapi.UseMiddleware(func(next http.Handler) http.Handler {
			return observability.HTTPMetricsMiddleware(g.config.Metrics, g.config.Tracer, next)
		})
	}

	// Registration (unauthenticated: the caller has no local key yet).
	g.okapi.Post("/v1/auth/setup", g.handleSetup,
		okapi.DocSummary("Exchange a remote service token for a local API key"),
		okapi.DocTags("Authentication"),
		okapi.DocRequestBody(SetupRequest{}),
		okapi.DocResponse(http.StatusCreated, SetupResponse{}),
		okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
		okapi.DocResponse(http.StatusServiceUnavailable, ErrorBody{}),
	)

	// Authenticated model endpoints.
	g.group = g.okapi.Group("/v1", g.authenticate)

	g.group.Post("/models/fit", g.handleFit,
		okapi.DocSummary("Train a new model on tabular data"),
		okapi.DocTags("Models"),
		okapi.DocRequestBody(FitRequest{}),
		okapi.DocResponse(http.StatusCreated, FitResponse{}),
		okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
		okapi.DocResponse(http.StatusUnauthorized, ErrorBody{}),
		okapi.DocResponse(http.StatusTooManyRequests, ErrorBody{}),
		okapi.DocResponse(http.StatusServiceUnavailable, ErrorBody{}),
	)
	g.group.Post("/models/{id}/predict", g.handlePredict,
		okapi.DocSummary("Run inference against a trained model"),
		okapi.DocTags("Models"),
		okapi.DocPathParam("id", "string", "Internal model ID (UUID)"),
		okapi.DocRequestBody(PredictRequest{}),
		okapi.DocResponse(PredictResponse{}),
		okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
		okapi.DocResponse(http.StatusForbidden, ErrorBody{}),
		okapi.DocResponse(http.StatusNotFound, ErrorBody{}),
		okapi.DocResponse(http.StatusTooManyRequests, ErrorBody{}),
	)
	g.group.Get("/models", g.handleList,
		okapi.DocSummary("List the caller's trained models"),
		okapi.DocTags("Models"),
		okapi.DocResponse(ListResponse{}),
		okapi.DocResponse(http.StatusUnauthorized, ErrorBody{}),
	)
	g.group.Get("/models/available", g.handleAvailable,
		okapi.DocSummary("List model systems available on the remote service"),
		okapi.DocTags("Models"),
		okapi.DocResponse(AvailableResponse{}),
		okapi.DocResponse(http.StatusServiceUnavailable, ErrorBody{}),
	)

	// Observability endpoints (unauthenticated).
	g.okapi.Get("/healthz", g.handleLiveness)
	g.okapi.Get("/readyz", g.handleReadiness)

	if g.config.MetricsRegistry != nil {
		path := g.config.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		g.okapi.HandleStd("GET", path, promhttp.HandlerFor(g.config.MetricsRegistry, promhttp.HandlerOpts{}).ServeHTTP)
	}
	if g.config.EnableDocs {
		g.WithOpenAPIDocs()
	}

	g.server = &http.Server{
		Addr:              g.config.ListenAddr,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	g.logger.Info("http api gateway starting", slog.String("addr", g.config.ListenAddr))

	return g.okapi.StartServer(g.server)
}

// Stop gracefully shuts down the HTTP server.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}
	g.logger.Info("http api gateway stopping")
	return g.okapi.Shutdown(g.server)
}

// --- Registration ---

// SetupRequest is the JSON body for POST /v1/auth/setup.
type SetupRequest struct {
	TabPFNToken string `json:"tabpfn_token"`
}

// SetupResponse carries the newly issued API key. This is the only time the
// key is ever returned in plaintext.
type SetupResponse struct {
	APIKey string `json:"api_key"`
}

func (g *Gateway) handleSetup(c *okapi.Context) error {
	var req SetupRequest
	if err := c.Bind(&req); err != nil {
		return c.AbortBadRequest("invalid request body")
	}
	if req.TabPFNToken == "" {
		return c.AbortBadRequest("tabpfn_token is required")
	}

	correlationID := newCorrelationID()
	g.logger.Info("registration request", slog.String("correlation_id", correlationID))

	key, err := g.auth.Register(c.Context(), req.TabPFNToken)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredential):
			return c.AbortBadRequest("the provided token was rejected by the remote service")
		case errors.Is(err, downstream.ErrUnavailable):
			return c.AbortServiceUnavailable("the remote service is unreachable, try again later")
		default:
			g.logger.Error("registration failed",
				slog.String("correlation_id", correlationID),
				slog.String("error", err.Error()),
			)
			return c.AbortInternalServerError("registration failed")
		}
	}

	return c.JSON(http.StatusCreated, SetupResponse{APIKey: key})
}

// --- Model lifecycle ---

// FitRequest is the JSON body for POST /v1/models/fit.
type FitRequest struct {
	Features     [][]any        `json:"features"`
	Target       []any          `json:"target"`
	FeatureNames []string       `json:"feature_names,omitempty"`
	Config       map[string]any `json:"config,omitempty"`
}

// FitResponse is the JSON response after successful training.
type FitResponse struct {
	InternalModelID string `json:"internal_model_id"`
}

func (g *Gateway) handleFit(c *okapi.Context) error {
	account := g.account(c)
	if account == nil {
		return c.AbortUnauthorized("Unauthorized")
	}
	if err := g.allow(c, account); err != nil {
		return err
	}

	var req FitRequest
	if err := c.Bind(&req); err != nil {
		return c.AbortBadRequest("invalid request body")
	}
	if len(req.Features) == 0 {
		return c.AbortBadRequest("features must contain at least one row")
	}
	if len(req.Target) == 0 {
		return c.AbortBadRequest("target must contain at least one value")
	}

	id, err := g.models.Train(c.Context(), account, models.TrainInput{
		Features:     req.Features,
		Target:       req.Target,
		FeatureNames: req.FeatureNames,
		Config:       req.Config,
	})
	if err != nil {
		return g.modelError(c, "training", account.ID, err)
	}

	if g.config.Metrics != nil {
		g.config.Metrics.ModelsTrainedTotal.WithLabelValues("success").Inc()
	}
	return c.JSON(http.StatusCreated, FitResponse{InternalModelID: id.String()})
}

// PredictRequest is the JSON body for POST /v1/models/{id}/predict.
type PredictRequest struct {
	Features   [][]any        `json:"features"`
	Task       string         `json:"task,omitempty"`        // "classification" (default) or "regression"
	OutputType string         `json:"output_type,omitempty"` // e.g. "preds", "probas"
	Config     map[string]any `json:"config,omitempty"`
}

// PredictResponse carries the remote service's predictions verbatim.
type PredictResponse struct {
	InternalModelID string `json:"internal_model_id"`
	Predictions     any    `json:"predictions"`
}

func (g *Gateway) handlePredict(c *okapi.Context) error {
	account := g.account(c)
	if account == nil {
		return c.AbortUnauthorized("Unauthorized")
	}
	if err := g.allow(c, account); err != nil {
		return err
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.AbortBadRequest("invalid model ID")
	}

	var req PredictRequest
	if err := c.Bind(&req); err != nil {
		return c.AbortBadRequest("invalid request body")
	}
	if len(req.Features) == 0 {
		return c.AbortBadRequest("features must contain at least one row")
	}
	task := req.Task
	if task == "" {
		task = "classification"
	}

	predictions, err := g.models.Predict(c.Context(), account, id, models.PredictInput{
		Features:   req.Features,
		Task:       task,
		OutputType: req.OutputType,
		Config:     req.Config,
	})
	if err != nil {
		return g.modelError(c, "prediction", account.ID, err)
	}

	if g.config.Metrics != nil {
		g.config.Metrics.PredictionsTotal.WithLabelValues("success").Inc()
	}
	return c.OK(PredictResponse{
		InternalModelID: id.String(),
		Predictions:     predictions,
	})
}

// ModelSummary is one entry in the caller's model list.
type ModelSummary struct {
	InternalModelID string    `json:"internal_model_id"`
	FeatureCount    int       `json:"feature_count"`
	SampleCount     int       `json:"sample_count"`
	FeatureNames    []string  `json:"feature_names,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// ListResponse is the JSON response for GET /v1/models.
type ListResponse struct {
	Models []ModelSummary `json:"models"`
}

func (g *Gateway) handleList(c *okapi.Context) error {
	account := g.account(c)
	if account == nil {
		return c.AbortUnauthorized("Unauthorized")
	}

	records, err := g.models.ListForAccount(c.Context(), account)
	if err != nil {
		return g.modelError(c, "listing models", account.ID, err)
	}

	resp := ListResponse{Models: make([]ModelSummary, len(records))}
	for i, r := range records {
		resp.Models[i] = ModelSummary{
			InternalModelID: r.InternalModelID.String(),
			FeatureCount:    r.FeatureCount,
			SampleCount:     r.SampleCount,
			FeatureNames:    r.FeatureNames,
			CreatedAt:       r.CreatedAt,
		}
	}
	return c.OK(resp)
}

// AvailableResponse is the JSON response for GET /v1/models/available.
type AvailableResponse struct {
	Models map[string][]string `json:"models"`
}

func (g *Gateway) handleAvailable(c *okapi.Context) error {
	account := g.account(c)
	if account == nil {
		return c.AbortUnauthorized("Unauthorized")
	}

	catalog, err := g.models.ListAvailable(c.Context(), account)
	if err != nil {
		return g.modelError(c, "listing available models", account.ID, err)
	}
	return c.OK(AvailableResponse{Models: catalog})
}

// --- Health ---

// HealthResponse is the JSON response for the liveness probe.
type HealthResponse struct {
	Status string `json:"status"`
}

func (g *Gateway) handleLiveness(c *okapi.Context) error {
	return c.OK(&HealthResponse{Status: "ok"})
}

// handleReadiness checks all registered dependencies and returns 200 or 503.
func (g *Gateway) handleReadiness(c *okapi.Context) error {
	if g.config.HealthChecker == nil {
		return c.OK(&HealthResponse{Status: "ok"})
	}

	status := g.config.HealthChecker.CheckReady(c.Context())
	code := http.StatusOK
	if status.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, status)
}

// --- Authentication ---

// authenticate resolves the bearer key to an account and stores the account
// ID on the request context. Every request pays the full resolution cost;
// there is no session cache.
func (g *Gateway) authenticate(next okapi.HandlerFunc) okapi.HandlerFunc {
	return func(c *okapi.Context) error {
		authHeader := c.Header("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			g.recordResolution("missing_header")
			return c.AbortUnauthorized("missing or invalid Authorization header")
		}
		apiKey := strings.TrimPrefix(authHeader, "Bearer ")

		account, err := g.auth.Resolve(c.Context(), apiKey)
		if err != nil {
			if errors.Is(err, auth.ErrUnauthenticated) {
				g.recordResolution("rejected")
				return c.AbortUnauthorized("invalid API key")
			}
			g.logger.Error("key resolution failed", slog.String("error", err.Error()))
			g.recordResolution("error")
			return c.AbortInternalServerError("authentication failed")
		}

		g.recordResolution("matched")
		c.Set("accountID", account.ID.String())
		return next(c)
	}
}

// account reloads the authenticated account identified by the middleware.
// It returns nil when the caller is not authenticated or the row has since
// been deleted; handlers answer 401 in that case.
func (g *Gateway) account(c *okapi.Context) *domain.Account {
	accountID := c.GetString("accountID")
	if accountID == "" {
		return nil
	}
	id, err := uuid.Parse(accountID)
	if err != nil {
		return nil
	}
	account, err := g.auth.Account(c.Context(), id)
	if err != nil {
		return nil
	}
	return account
}

// allow applies per-account rate limiting.
func (g *Gateway) allow(c *okapi.Context, account *domain.Account) error {
	if g.limiter == nil {
		return nil
	}
	if err := g.limiter.Allow(account.ID.String()); err != nil {
		if g.config.Metrics != nil {
			g.config.Metrics.RateLimitedTotal.WithLabelValues(c.Request().URL.Path).Inc()
		}
		return c.AbortTooManyRequests("rate limit exceeded")
	}
	return nil
}

func (g *Gateway) recordResolution(result string) {
	if g.config.Metrics != nil {
		g.config.Metrics.AuthResolutionsTotal.WithLabelValues(result).Inc()
	}
}

// --- Helpers ---

// modelError is the single translation point from model lifecycle errors to
// HTTP responses. Internal detail never leaks into response bodies.
func (g *Gateway) modelError(c *okapi.Context, op string, accountID uuid.UUID, err error) error {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		return c.AbortBadRequest(verr.Reason)
	case errors.Is(err, models.ErrNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "model not found"})
	case errors.Is(err, models.ErrAccessDenied):
		return c.JSON(http.StatusForbidden, map[string]string{"error": "model belongs to another account"})
	case errors.Is(err, downstream.ErrUnavailable):
		return c.AbortServiceUnavailable("the remote service is unreachable, try again later")
	default:
		g.logger.Error(op+" failed",
			slog.String("account_id", accountID.String()),
			slog.String("error", err.Error()),
		)
		return c.AbortInternalServerError(op + " failed")
	}
}

func newCorrelationID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
