// Package auth implements credential registration and bearer-key resolution.
//
// Registration exchanges a caller's remote-service secret for a locally
// issued API key: the key is returned in plaintext exactly once and only its
// bcrypt hash is stored, alongside the encrypted remote secret. Resolution
// turns a presented key back into the owning account on every request.
package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/jkaninda/tabgate/internal/domain"
)

// ErrInvalidCredential means the remote service rejected the presented
// secret during registration. Caller fault; nothing was persisted.
var ErrInvalidCredential = errors.New("auth: remote secret could not be verified")

// ErrRegistration covers internal failures while persisting a verified
// registration. The caller sees a generic failure; details go to the log.
var ErrRegistration = errors.New("auth: registration failed")

// ErrUnauthenticated means no registered account matches the presented key.
var ErrUnauthenticated = errors.New("auth: no account matches the presented key")

// ErrInternal covers unexpected storage faults during resolution, kept
// distinct from ErrUnauthenticated so the boundary can signal 500 vs 401.
var ErrInternal = errors.New("auth: internal authentication failure")

// ErrAccountNotFound means the referenced account row does not exist.
var ErrAccountNotFound = errors.New("auth: account not found")

// AccountStore is the persistence contract for accounts. Create must be
// atomic: a failed insert leaves no partial row behind.
type AccountStore interface {
	Create(ctx context.Context, account *domain.Account) error
	List(ctx context.Context) ([]domain.Account, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	// Delete removes an account; owned model records cascade. Administrative
	// path only, nothing request-facing calls it.
	Delete(ctx context.Context, id uuid.UUID) error
}
