package models

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/jkaninda/tabgate/internal/domain"
	"github.com/jkaninda/tabgate/internal/downstream"
	"github.com/jkaninda/tabgate/internal/vault"
)

// Service orchestrates decryption, the downstream bridge, and metadata
// persistence for the model lifecycle.
type Service struct {
	records RecordStore
	vault   *vault.Vault
	bridge  downstream.Bridge
	logger  *slog.Logger
}

// NewService creates the model lifecycle service.
func NewService(records RecordStore, v *vault.Vault, bridge downstream.Bridge, logger *slog.Logger) *Service {
	return &Service{
		records: records,
		vault:   v,
		bridge:  bridge,
		logger:  logger,
	}
}

// Train validates and trains a new model for the account, then persists its
// metadata. The returned UUID is the only identifier ever exposed externally.
//
// A decryption failure here is an internal fault (the credential was accepted
// at registration; server-side key material changed), never a caller error.
// If the remote fit succeeds but persistence fails, the remote artifact is
// orphaned; no compensating remote delete is attempted.
func (s *Service) Train(ctx context.Context, account *domain.Account, in TrainInput) (uuid.UUID, error) {
	secret, err := s.vault.Decrypt(account.EncryptedSecret)
	if err != nil {
		s.logger.ErrorContext(ctx, "decrypting stored secret failed",
			slog.String("account_id", account.ID.String()),
			slog.String("error", err.Error()))
		return uuid.Nil, fmt.Errorf("training model: %w", err)
	}

	if err := validateTrainInput(in); err != nil {
		return uuid.Nil, err
	}

	trainSetUID, err := s.bridge.Fit(ctx, secret, in.Features, in.Target, in.Config)
	if err != nil {
		return uuid.Nil, s.bridgeError(ctx, "remote fit", account.ID, err)
	}

	record := &domain.ModelRecord{
		ID:              domain.NewID(),
		InternalModelID: domain.NewID(),
		TrainSetUID:     trainSetUID,
		AccountID:       account.ID,
		FeatureCount:    len(in.Features[0]),
		SampleCount:     len(in.Features),
		FeatureNames:    in.FeatureNames,
		TrainingConfig:  in.Config,
	}
	if err := s.records.Create(ctx, record); err != nil {
		// The remote artifact trainSetUID is now orphaned; accepted limitation.
		s.logger.ErrorContext(ctx, "persisting model metadata failed",
			slog.String("account_id", account.ID.String()),
			slog.String("error", err.Error()))
		return uuid.Nil, fmt.Errorf("%w: saving model metadata: %w", ErrService, err)
	}

	s.logger.InfoContext(ctx, "model trained",
		slog.String("account_id", account.ID.String()),
		slog.String("internal_model_id", record.InternalModelID.String()),
		slog.Int("feature_count", record.FeatureCount),
		slog.Int("sample_count", record.SampleCount),
	)
	return record.InternalModelID, nil
}

// Predict runs inference against one of the account's trained models.
func (s *Service) Predict(ctx context.Context, account *domain.Account, internalModelID uuid.UUID, in PredictInput) (any, error) {
	record, err := s.records.GetByInternalID(ctx, internalModelID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: loading model record: %w", ErrService, err)
	}
	if record.AccountID != account.ID {
		s.logger.WarnContext(ctx, "prediction denied: model owned by another account",
			slog.String("account_id", account.ID.String()),
			slog.String("internal_model_id", internalModelID.String()))
		return nil, ErrAccessDenied
	}

	secret, err := s.vault.Decrypt(account.EncryptedSecret)
	if err != nil {
		s.logger.ErrorContext(ctx, "decrypting stored secret failed",
			slog.String("account_id", account.ID.String()),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("predicting: %w", err)
	}

	if err := validatePredictInput(in, record.FeatureCount); err != nil {
		return nil, err
	}

	predictions, err := s.bridge.Predict(ctx, secret, downstream.PredictRequest{
		TrainSetUID: record.TrainSetUID,
		Features:    in.Features,
		Task:        in.Task,
		OutputType:  in.OutputType,
		Config:      in.Config,
	})
	if err != nil {
		return nil, s.bridgeError(ctx, "remote predict", account.ID, err)
	}
	return predictions, nil
}

// ListAvailable returns the remote catalog of model systems per task.
// No caller input is involved, so every failure here is internal.
func (s *Service) ListAvailable(ctx context.Context, account *domain.Account) (map[string][]string, error) {
	secret, err := s.vault.Decrypt(account.EncryptedSecret)
	if err != nil {
		return nil, fmt.Errorf("listing available models: %w", err)
	}
	catalog, err := s.bridge.ListModels(ctx, secret)
	if err != nil {
		return nil, s.bridgeError(ctx, "remote catalog", account.ID, err)
	}
	return catalog, nil
}

// ListForAccount returns the account's model records, oldest first.
func (s *Service) ListForAccount(ctx context.Context, account *domain.Account) ([]domain.ModelRecord, error) {
	records, err := s.records.ListByAccount(ctx, account.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: listing models: %w", ErrService, err)
	}
	return records, nil
}

// bridgeError keeps the downstream taxonomy intact: connectivity and
// interface failures pass through for distinct signaling, everything else
// becomes an internal service error.
func (s *Service) bridgeError(ctx context.Context, op string, accountID uuid.UUID, err error) error {
	switch {
	case errors.Is(err, downstream.ErrUnavailable), errors.Is(err, downstream.ErrInterface):
		return err
	default:
		s.logger.ErrorContext(ctx, "downstream call failed",
			slog.String("op", op),
			slog.String("account_id", accountID.String()),
			slog.String("error", err.Error()))
		return fmt.Errorf("%w: %s: %w", ErrService, op, err)
	}
}

func validateTrainInput(in TrainInput) error {
	if len(in.Features) == 0 {
		return &ValidationError{Reason: "features must contain at least one row"}
	}
	cols := len(in.Features[0])
	if cols == 0 {
		return &ValidationError{Reason: "feature rows must not be empty"}
	}
	for i, row := range in.Features {
		if len(row) != cols {
			return &ValidationError{Reason: fmt.Sprintf(
				"all feature rows must have the same number of columns: row 0 has %d, row %d has %d", cols, i, len(row))}
		}
	}
	if len(in.Target) != len(in.Features) {
		return &ValidationError{Reason: fmt.Sprintf(
			"target length %d does not match feature row count %d", len(in.Target), len(in.Features))}
	}
	if in.FeatureNames != nil && len(in.FeatureNames) != cols {
		return &ValidationError{Reason: fmt.Sprintf(
			"feature name count %d does not match column count %d", len(in.FeatureNames), cols)}
	}
	return nil
}

func validatePredictInput(in PredictInput, wantCols int) error {
	if len(in.Features) == 0 {
		return &ValidationError{Reason: "features must contain at least one row"}
	}
	for i, row := range in.Features {
		if len(row) != wantCols {
			return &ValidationError{Reason: fmt.Sprintf(
				"model expects %d feature columns, row %d has %d", wantCols, i, len(row))}
		}
	}
	return nil
}
