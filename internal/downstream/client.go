package downstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	defaultBaseURL = "https://api.priorlabs.ai"
	usagePath      = "/api/v1/usage"
	fitPath        = "/api/v1/fit"
	predictPath    = "/api/v1/predict"
	modelsPath     = "/api/v1/models"

	defaultTimeout = 60 * time.Second
)

// Client implements Bridge over the remote service's HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures the Client.
type Option func(*Client)

// WithBaseURL overrides the remote API base URL.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a Bridge client for the remote tabular-ML service.
// The caller's secret is supplied per call, not at construction: one client
// serves every registered account.
func NewClient(logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// VerifySecret checks the secret by fetching the account's API usage, the
// cheapest authenticated remote call. Classification of the failure text
// decides the result; see Classify for the caveats.
func (c *Client) VerifySecret(ctx context.Context, secret string) (bool, error) {
	var usage apiUsageResponse
	err := c.call(ctx, http.MethodGet, usagePath, secret, nil, &usage)
	if err == nil {
		return true, nil
	}

	switch Classify(err) {
	case OutcomeAuthInvalid:
		c.logger.WarnContext(ctx, "secret verification rejected by remote service",
			slog.String("error", err.Error()))
		return false, nil
	case OutcomeLimited:
		// Limit reached means the secret itself authenticated fine.
		c.logger.WarnContext(ctx, "secret valid but remote usage limit reached",
			slog.String("error", err.Error()))
		return true, nil
	case OutcomeUnreachable:
		return false, fmt.Errorf("verifying secret: %w: %w", ErrUnavailable, err)
	default:
		c.logger.ErrorContext(ctx, "unclassified failure during secret verification",
			slog.String("error", err.Error()))
		return false, nil
	}
}

// Fit trains a model and returns the remote train-set handle.
func (c *Client) Fit(ctx context.Context, secret string, features [][]any, target []any, config map[string]any) (string, error) {
	req := apiFitRequest{
		Features: features,
		Target:   target,
		Config:   config,
	}
	var resp apiFitResponse
	if err := c.call(ctx, http.MethodPost, fitPath, secret, req, &resp); err != nil {
		return "", c.remoteError("fit", err)
	}
	if resp.TrainSetUID == "" {
		return "", fmt.Errorf("%w: fit response carries no train_set_uid", ErrInterface)
	}

	c.logger.DebugContext(ctx, "remote fit completed",
		slog.String("train_set_uid", resp.TrainSetUID),
		slog.Int("rows", len(features)),
	)
	return resp.TrainSetUID, nil
}

// Predict runs inference against a trained artifact and returns the
// predictions in plain decoded form (nested lists / mappings).
func (c *Client) Predict(ctx context.Context, secret string, req PredictRequest) (any, error) {
	apiReq := apiPredictRequest{
		TrainSetUID: req.TrainSetUID,
		Features:    req.Features,
		Task:        req.Task,
		OutputType:  req.OutputType,
		Config:      req.Config,
	}
	var resp apiPredictResponse
	if err := c.call(ctx, http.MethodPost, predictPath, secret, apiReq, &resp); err != nil {
		return nil, c.remoteError("predict", err)
	}
	if resp.Predictions == nil {
		return nil, fmt.Errorf("%w: predict response carries no predictions", ErrInterface)
	}

	c.logger.DebugContext(ctx, "remote predict completed",
		slog.String("train_set_uid", req.TrainSetUID),
		slog.Int("rows", len(req.Features)),
	)
	return resp.Predictions, nil
}

// ListModels fetches the remote catalog of available model systems per task.
func (c *Client) ListModels(ctx context.Context, secret string) (map[string][]string, error) {
	var resp apiModelsResponse
	if err := c.call(ctx, http.MethodGet, modelsPath, secret, nil, &resp); err != nil {
		return nil, c.remoteError("list models", err)
	}
	return resp.Models, nil
}

// call performs one authenticated round trip. Request encoding and response
// decoding failures are ErrInterface (local); transport and non-2xx failures
// come back unclassified for the caller to Classify.
func (c *Client) call(ctx context.Context, method, path, secret string, in, out any) error {
	var body io.Reader
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%w: encoding request payload: %w", ErrInterface, err)
		}
		body = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%w: creating HTTP request: %w", ErrInterface, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+secret)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return fmt.Errorf("remote service error (status %d): %s", httpResp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("%w: decoding response payload: %w", ErrInterface, err)
		}
	}
	return nil
}

// remoteError converts a raw call failure into the stable error taxonomy for
// train/predict-style operations. Local interface failures pass through.
func (c *Client) remoteError(op string, err error) error {
	if errors.Is(err, ErrInterface) {
		return fmt.Errorf("%s: %w", op, err)
	}
	switch Classify(err) {
	case OutcomeAuthInvalid:
		return fmt.Errorf("%s: %w: %w", op, ErrAuthRejected, err)
	case OutcomeLimited:
		return fmt.Errorf("%s: %w: %w", op, ErrLimited, err)
	case OutcomeUnreachable:
		return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	default:
		c.logger.Error("unclassified remote service failure",
			slog.String("op", op),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%s: %w", op, err)
	}
}

// --- Remote API wire types (unexported) ---

type apiUsageResponse struct {
	Current int `json:"current_usage"`
	Limit   int `json:"usage_limit"`
}

type apiFitRequest struct {
	Features [][]any        `json:"features"`
	Target   []any          `json:"target"`
	Config   map[string]any `json:"config,omitempty"`
}

type apiFitResponse struct {
	TrainSetUID string `json:"train_set_uid"`
}

type apiPredictRequest struct {
	TrainSetUID string         `json:"train_set_uid"`
	Features    [][]any        `json:"features"`
	Task        string         `json:"task"`
	OutputType  string         `json:"output_type,omitempty"`
	Config      map[string]any `json:"config,omitempty"`
}

type apiPredictResponse struct {
	Predictions any `json:"predictions"`
}

type apiModelsResponse struct {
	Models map[string][]string `json:"models"`
}
