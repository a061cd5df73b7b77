// Package domain defines cross-cutting entity types used across the system.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Account is a registered caller identity. It holds the bcrypt hash of the
// locally issued API key and the AES-GCM ciphertext of the caller's remote
// TabPFN secret. The plaintext API key is never persisted anywhere; the
// remote secret is recoverable only with the process master key.
type Account struct {
	ID              uuid.UUID
	HashedAPIKey    string
	EncryptedSecret []byte
	CreatedAt       time.Time
}

// ModelRecord links an internally issued model ID to the train-set handle
// returned by the remote service, plus descriptive metadata captured at
// training time. Only InternalModelID is ever exposed to callers; the
// remote handle stays server-side.
type ModelRecord struct {
	ID              uuid.UUID
	InternalModelID uuid.UUID
	TrainSetUID     string
	AccountID       uuid.UUID
	FeatureCount    int
	SampleCount     int
	FeatureNames    []string
	TrainingConfig  map[string]any
	CreatedAt       time.Time
}

// NewID generates a new random UUID.
func NewID() uuid.UUID {
	return uuid.New()
}
