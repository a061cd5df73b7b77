package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jkaninda/tabgate/internal/domain"
	"github.com/jkaninda/tabgate/internal/models"
)

// ModelRecordRepository implements models.RecordStore with PostgreSQL.
type ModelRecordRepository struct {
	db *gorm.DB
}

// NewModelRecordRepository creates a ModelRecordRepository.
func NewModelRecordRepository(db *gorm.DB) *ModelRecordRepository {
	return &ModelRecordRepository{db: db}
}

// Create persists model metadata after a successful remote fit.
func (r *ModelRecordRepository) Create(ctx context.Context, record *domain.ModelRecord) error {
	model := toModelRecordModel(record)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("creating model record: %w", err)
	}
	record.CreatedAt = model.CreatedAt
	return nil
}

// GetByInternalID retrieves a record by its externally visible model ID.
func (r *ModelRecordRepository) GetByInternalID(ctx context.Context, internalModelID uuid.UUID) (*domain.ModelRecord, error) {
	var model ModelRecordModel
	if err := r.db.WithContext(ctx).
		Where("internal_model_id = ?", internalModelID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("getting model record %s: %w", internalModelID, err)
	}
	return toModelRecordDomain(&model), nil
}

// ListByAccount returns the account's records in creation-time ascending order.
func (r *ModelRecordRepository) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.ModelRecord, error) {
	var rows []ModelRecordModel
	if err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing model records for account %s: %w", accountID, err)
	}
	records := make([]domain.ModelRecord, 0, len(rows))
	for i := range rows {
		records = append(records, *toModelRecordDomain(&rows[i]))
	}
	return records, nil
}
