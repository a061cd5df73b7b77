package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/jkaninda/tabgate/internal/domain"
	"github.com/jkaninda/tabgate/internal/vault"
)

// SecretVerifier is the slice of the downstream bridge that registration needs.
type SecretVerifier interface {
	VerifySecret(ctx context.Context, secret string) (bool, error)
}

// Service orchestrates registration and key resolution.
type Service struct {
	accounts AccountStore
	vault    *vault.Vault
	verifier SecretVerifier
	logger   *slog.Logger
}

// NewService creates the auth service.
func NewService(accounts AccountStore, v *vault.Vault, verifier SecretVerifier, logger *slog.Logger) *Service {
	return &Service{
		accounts: accounts,
		vault:    v,
		verifier: verifier,
		logger:   logger,
	}
}

// Register verifies the remote secret, issues a local API key, and persists
// the new account in a single transaction. The plaintext key is returned
// exactly once and is never stored or logged.
func (s *Service) Register(ctx context.Context, remoteSecret string) (string, error) {
	ok, err := s.verifier.VerifySecret(ctx, remoteSecret)
	if err != nil {
		// Connectivity failures propagate unchanged so the boundary can
		// signal "retry later" instead of "bad credential".
		return "", fmt.Errorf("registering account: %w", err)
	}
	if !ok {
		s.logger.WarnContext(ctx, "registration rejected: remote secret not verified")
		return "", ErrInvalidCredential
	}

	plainKey, err := vault.GenerateKey()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRegistration, err)
	}
	hashedKey, err := vault.HashKey(plainKey)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRegistration, err)
	}
	encryptedSecret, err := s.vault.Encrypt(remoteSecret)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRegistration, err)
	}

	account := &domain.Account{
		ID:              domain.NewID(),
		HashedAPIKey:    hashedKey,
		EncryptedSecret: encryptedSecret,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		s.logger.ErrorContext(ctx, "persisting new account failed",
			slog.String("error", err.Error()))
		return "", fmt.Errorf("%w: %w", ErrRegistration, err)
	}

	s.logger.InfoContext(ctx, "account registered",
		slog.String("account_id", account.ID.String()))
	return plainKey, nil
}

// Resolve maps a presented API key to its owning account.
//
// Stored hashes are salted, so there is no index from plaintext to row: every
// account is loaded and verified in turn until one matches. Resolution is
// therefore O(n) in registered accounts and iteration order is unspecified.
// The returned account carries the encrypted remote secret; decrypting it is
// the caller's job, not the resolver's.
func (s *Service) Resolve(ctx context.Context, presentedKey string) (*domain.Account, error) {
	if presentedKey == "" {
		return nil, ErrUnauthenticated
	}

	accounts, err := s.accounts.List(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "loading accounts for key resolution failed",
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}

	for i := range accounts {
		if vault.VerifyKey(presentedKey, accounts[i].HashedAPIKey) {
			return &accounts[i], nil
		}
	}
	return nil, ErrUnauthenticated
}

// Account loads an account by ID. Unknown IDs map to ErrUnauthenticated since
// the only callers hold IDs minted by Resolve.
func (s *Service) Account(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	account, err := s.accounts.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}
	return account, nil
}
