// Package models implements the model lifecycle: training through the remote
// service, ownership-scoped prediction, and persisted model metadata.
package models

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jkaninda/tabgate/internal/domain"
)

// ErrNotFound means the referenced model does not exist.
var ErrNotFound = errors.New("models: model not found")

// ErrAccessDenied means the model exists but belongs to another account.
// Kept distinct from ErrNotFound internally; the boundary decides whether to
// collapse them externally.
var ErrAccessDenied = errors.New("models: model belongs to another account")

// ErrService covers internal failures in the lifecycle path (metadata
// persistence, unclassified remote faults). Details are logged, never
// surfaced to the caller.
var ErrService = errors.New("models: model service failure")

// ValidationError is a caller input error detected before any remote call.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("models: invalid input: %s", e.Reason)
}

// RecordStore is the persistence contract for model metadata. Create must be
// atomic: a failed insert leaves no partial row behind.
type RecordStore interface {
	Create(ctx context.Context, record *domain.ModelRecord) error
	GetByInternalID(ctx context.Context, internalModelID uuid.UUID) (*domain.ModelRecord, error)
	// ListByAccount returns the account's records in creation-time ascending
	// order.
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.ModelRecord, error)
}

// TrainInput is the tabular training payload.
type TrainInput struct {
	Features     [][]any
	Target       []any
	FeatureNames []string
	Config       map[string]any
}

// PredictInput is the tabular inference payload.
type PredictInput struct {
	Features   [][]any
	Task       string
	OutputType string
	Config     map[string]any
}
