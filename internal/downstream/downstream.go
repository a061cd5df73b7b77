// Package downstream wraps all calls to the remote tabular-ML service and
// translates its unstructured failure surface into stable local error kinds.
package downstream

import (
	"context"
	"errors"
)

// ErrUnavailable indicates a connectivity-class failure reaching the remote
// service. The presented secret's validity is indeterminate; callers surface
// this as a transient service error, never as a caller fault.
var ErrUnavailable = errors.New("downstream: remote service unreachable")

// ErrInterface indicates a local data/remote-payload interaction failure
// (unencodable tabular data, malformed remote response). It is raised on our
// side of the wire and kept distinct from remote-service failures.
var ErrInterface = errors.New("downstream: remote interface failure")

// ErrAuthRejected indicates the remote service rejected the stored secret on
// a train/predict call. Registration-time rejection is reported through
// VerifySecret's boolean instead.
var ErrAuthRejected = errors.New("downstream: remote service rejected credentials")

// ErrLimited indicates the remote account hit a usage or rate ceiling.
var ErrLimited = errors.New("downstream: remote usage limit reached")

// PredictRequest carries everything a prediction call needs beyond the secret.
type PredictRequest struct {
	TrainSetUID string
	Features    [][]any
	Task        string // "classification" or "regression"
	OutputType  string // e.g. "preds", "probas"
	Config      map[string]any
}

// Bridge is the call boundary to the remote tabular-ML service.
type Bridge interface {
	// VerifySecret reports whether the secret is accepted by the remote
	// service. A usage-limited account still counts as valid. Connectivity
	// failures return a wrapped ErrUnavailable so callers can distinguish
	// "unknown validity" from "rejected".
	VerifySecret(ctx context.Context, secret string) (bool, error)

	// Fit trains a model on the given tabular data and returns the remote
	// train-set handle identifying the artifact server-side.
	Fit(ctx context.Context, secret string, features [][]any, target []any, config map[string]any) (string, error)

	// Predict runs inference against a previously trained artifact.
	Predict(ctx context.Context, secret string, req PredictRequest) (any, error)

	// ListModels returns the remote catalog: task name to ordered model names.
	ListModels(ctx context.Context, secret string) (map[string][]string, error)
}
