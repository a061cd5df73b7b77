package postgres

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JSONB is a json.RawMessage stored in a JSONB column (TEXT under SQLite).
type JSONB json.RawMessage

// AccountModel maps to the "accounts" table.
type AccountModel struct {
	ID              uuid.UUID          `gorm:"type:uuid;primaryKey"`
	HashedAPIKey    string             `gorm:"not null"`
	EncryptedSecret []byte             `gorm:"not null"`
	Records         []ModelRecordModel `gorm:"foreignKey:AccountID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
	DeletedAt       gorm.DeletedAt `gorm:"index"`
}

func (AccountModel) TableName() string { return "accounts" }

// ModelRecordModel maps to the "model_records" table.
type ModelRecordModel struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"`
	InternalModelID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	TrainSetUID     string    `gorm:"not null"`
	AccountID       uuid.UUID `gorm:"type:uuid;not null;index"`
	FeatureCount    int       `gorm:"not null"`
	SampleCount     int       `gorm:"not null"`
	FeatureNames    JSONB     `gorm:"type:jsonb;not null;default:'[]'"`
	TrainingConfig  JSONB     `gorm:"type:jsonb;not null;default:'{}'"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (ModelRecordModel) TableName() string { return "model_records" }
