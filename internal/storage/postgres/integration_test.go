//go:build integration

package postgres

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/jkaninda/tabgate/internal/auth"
	"github.com/jkaninda/tabgate/internal/domain"
	"github.com/jkaninda/tabgate/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set, skipping integration test")
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	db, err := Open(Config{DSN: dsn}, logger)
	if err != nil {
		t.Fatalf("opening postgres: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testAccount(t *testing.T, db *DB) *domain.Account {
	t.Helper()
	repo := NewAccountRepository(db.GormDB())
	account := &domain.Account{
		ID:              domain.NewID(),
		HashedAPIKey:    "$2a$10$testhashnotarealbcryptvalue",
		EncryptedSecret: []byte("opaque-ciphertext"),
	}
	if err := repo.Create(context.Background(), account); err != nil {
		t.Fatalf("creating account: %v", err)
	}
	t.Cleanup(func() { _ = repo.Delete(context.Background(), account.ID) })
	return account
}

func TestAccountRoundTrip(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	repo := NewAccountRepository(db.GormDB())
	account := testAccount(t, db)

	got, err := repo.Get(ctx, account.ID)
	if err != nil {
		t.Fatalf("getting account: %v", err)
	}
	if got.HashedAPIKey != account.HashedAPIKey {
		t.Errorf("hashed key = %q, want %q", got.HashedAPIKey, account.HashedAPIKey)
	}
	if string(got.EncryptedSecret) != string(account.EncryptedSecret) {
		t.Error("encrypted secret did not survive the round trip")
	}

	list, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("listing accounts: %v", err)
	}
	found := false
	for _, a := range list {
		if a.ID == account.ID {
			found = true
		}
	}
	if !found {
		t.Error("created account missing from list")
	}
}

func TestAccountGet_NotFound(t *testing.T) {
	db := testDB(t)
	repo := NewAccountRepository(db.GormDB())

	_, err := repo.Get(context.Background(), domain.NewID())
	if !errors.Is(err, auth.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestModelRecordRoundTrip(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	account := testAccount(t, db)
	repo := NewModelRecordRepository(db.GormDB())

	record := &domain.ModelRecord{
		ID:              domain.NewID(),
		InternalModelID: domain.NewID(),
		TrainSetUID:     "remote-handle-1",
		AccountID:       account.ID,
		FeatureCount:    3,
		SampleCount:     10,
		FeatureNames:    []string{"a", "b", "c"},
		TrainingConfig:  map[string]any{"model": "default"},
	}
	if err := repo.Create(ctx, record); err != nil {
		t.Fatalf("creating model record: %v", err)
	}

	got, err := repo.GetByInternalID(ctx, record.InternalModelID)
	if err != nil {
		t.Fatalf("getting model record: %v", err)
	}
	if got.TrainSetUID != "remote-handle-1" {
		t.Errorf("train set uid = %q", got.TrainSetUID)
	}
	if got.FeatureCount != 3 || got.SampleCount != 10 {
		t.Errorf("dimensions = %d/%d, want 3/10", got.FeatureCount, got.SampleCount)
	}
	if len(got.FeatureNames) != 3 || got.FeatureNames[2] != "c" {
		t.Errorf("feature names = %v", got.FeatureNames)
	}
	if got.TrainingConfig["model"] != "default" {
		t.Errorf("training config = %v", got.TrainingConfig)
	}
}

func TestModelRecordGet_NotFound(t *testing.T) {
	db := testDB(t)
	repo := NewModelRecordRepository(db.GormDB())

	_, err := repo.GetByInternalID(context.Background(), domain.NewID())
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListByAccount_OrderAndScope(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	a := testAccount(t, db)
	b := testAccount(t, db)
	repo := NewModelRecordRepository(db.GormDB())

	for i, owner := range []*domain.Account{a, a, b} {
		record := &domain.ModelRecord{
			ID:              domain.NewID(),
			InternalModelID: domain.NewID(),
			TrainSetUID:     "h",
			AccountID:       owner.ID,
			FeatureCount:    1,
			SampleCount:     i + 1,
		}
		if err := repo.Create(ctx, record); err != nil {
			t.Fatalf("creating record %d: %v", i, err)
		}
	}

	got, err := repo.ListByAccount(ctx, a.ID)
	if err != nil {
		t.Fatalf("listing records: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records for account, got %d", len(got))
	}
	if !got[0].CreatedAt.Before(got[1].CreatedAt) && !got[0].CreatedAt.Equal(got[1].CreatedAt) {
		t.Error("records not in creation-time ascending order")
	}
}

func TestAccountDelete_CascadesModelRecords(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	accountRepo := NewAccountRepository(db.GormDB())
	recordRepo := NewModelRecordRepository(db.GormDB())

	account := &domain.Account{
		ID:              domain.NewID(),
		HashedAPIKey:    "$2a$10$testhashnotarealbcryptvalue",
		EncryptedSecret: []byte("opaque-ciphertext"),
	}
	if err := accountRepo.Create(ctx, account); err != nil {
		t.Fatalf("creating account: %v", err)
	}
	record := &domain.ModelRecord{
		ID:              domain.NewID(),
		InternalModelID: domain.NewID(),
		TrainSetUID:     "h",
		AccountID:       account.ID,
		FeatureCount:    1,
		SampleCount:     1,
	}
	if err := recordRepo.Create(ctx, record); err != nil {
		t.Fatalf("creating record: %v", err)
	}

	if err := accountRepo.Delete(ctx, account.ID); err != nil {
		t.Fatalf("deleting account: %v", err)
	}

	if _, err := recordRepo.GetByInternalID(ctx, record.InternalModelID); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected cascaded delete, got %v", err)
	}
}
