package postgres

import (
	"encoding/json"

	"github.com/jkaninda/tabgate/internal/domain"
)

func toAccountDomain(m *AccountModel) *domain.Account {
	return &domain.Account{
		ID:              m.ID,
		HashedAPIKey:    m.HashedAPIKey,
		EncryptedSecret: m.EncryptedSecret,
		CreatedAt:       m.CreatedAt,
	}
}

func toAccountModel(a *domain.Account) AccountModel {
	return AccountModel{
		ID:              a.ID,
		HashedAPIKey:    a.HashedAPIKey,
		EncryptedSecret: a.EncryptedSecret,
		CreatedAt:       a.CreatedAt,
	}
}

func toModelRecordDomain(m *ModelRecordModel) *domain.ModelRecord {
	var names []string
	if len(m.FeatureNames) > 0 {
		_ = json.Unmarshal(m.FeatureNames, &names)
	}
	var config map[string]any
	if len(m.TrainingConfig) > 0 {
		_ = json.Unmarshal(m.TrainingConfig, &config)
	}
	return &domain.ModelRecord{
		ID:              m.ID,
		InternalModelID: m.InternalModelID,
		TrainSetUID:     m.TrainSetUID,
		AccountID:       m.AccountID,
		FeatureCount:    m.FeatureCount,
		SampleCount:     m.SampleCount,
		FeatureNames:    names,
		TrainingConfig:  config,
		CreatedAt:       m.CreatedAt,
	}
}

func toModelRecordModel(r *domain.ModelRecord) ModelRecordModel {
	names, _ := json.Marshal(r.FeatureNames)
	if r.FeatureNames == nil {
		names = []byte("[]")
	}
	config, _ := json.Marshal(r.TrainingConfig)
	if r.TrainingConfig == nil {
		config = []byte("{}")
	}
	return ModelRecordModel{
		ID:              r.ID,
		InternalModelID: r.InternalModelID,
		TrainSetUID:     r.TrainSetUID,
		AccountID:       r.AccountID,
		FeatureCount:    r.FeatureCount,
		SampleCount:     r.SampleCount,
		FeatureNames:    JSONB(names),
		TrainingConfig:  JSONB(config),
		CreatedAt:       r.CreatedAt,
	}
}
