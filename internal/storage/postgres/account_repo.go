package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jkaninda/tabgate/internal/auth"
	"github.com/jkaninda/tabgate/internal/domain"
)

// AccountRepository implements auth.AccountStore with PostgreSQL.
type AccountRepository struct {
	db *gorm.DB
}

// NewAccountRepository creates an AccountRepository.
func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create persists a new account. The insert is a single statement; a failure
// leaves no partial row behind.
func (r *AccountRepository) Create(ctx context.Context, account *domain.Account) error {
	model := toAccountModel(account)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("creating account: %w", err)
	}
	account.CreatedAt = model.CreatedAt
	return nil
}

// List returns all accounts, oldest first. Resolution scans this set.
func (r *AccountRepository) List(ctx context.Context) ([]domain.Account, error) {
	var rows []AccountModel
	if err := r.db.WithContext(ctx).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	accounts := make([]domain.Account, 0, len(rows))
	for i := range rows {
		accounts = append(accounts, *toAccountDomain(&rows[i]))
	}
	return accounts, nil
}

// Get retrieves an account by ID.
func (r *AccountRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	var model AccountModel
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, auth.ErrAccountNotFound
		}
		return nil, fmt.Errorf("getting account %s: %w", id, err)
	}
	return toAccountDomain(&model), nil
}

// Delete soft-deletes an account and hard-deletes its model records in one
// transaction.
func (r *AccountRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("account_id = ?", id).Delete(&ModelRecordModel{}).Error; err != nil {
			return fmt.Errorf("deleting model records for account %s: %w", id, err)
		}
		result := tx.Where("id = ?", id).Delete(&AccountModel{})
		if result.Error != nil {
			return fmt.Errorf("deleting account %s: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			return auth.ErrAccountNotFound
		}
		return nil
	})
}
