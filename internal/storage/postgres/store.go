package postgres

import (
	"context"
	"sync"

	"github.com/jkaninda/tabgate/internal/auth"
	"github.com/jkaninda/tabgate/internal/models"
	"github.com/jkaninda/tabgate/internal/storage"
)

// Store implements storage.Store backed by PostgreSQL.
// It wraps the existing DB and lazily creates sub-store repositories.
type Store struct {
	pgDB *DB

	mu       sync.Mutex
	accounts auth.AccountStore
	records  models.RecordStore
}

// NewStore wraps an existing DB as a unified Store.
func NewStore(pgDB *DB) *Store {
	return &Store{pgDB: pgDB}
}

func (s *Store) Migrate(_ context.Context) error {
	// PostgreSQL migration is done in Open() via autoMigrate.
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pgDB.Ping(ctx)
}

func (s *Store) Close() error {
	return s.pgDB.Close()
}

func (s *Store) Driver() string {
	return storage.DriverPostgres
}

// GormDB returns the underlying GORM DB for direct access when needed.
func (s *Store) GormDB() *DB {
	return s.pgDB
}

// --- Sub-store accessors ---

func (s *Store) Accounts() auth.AccountStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.accounts == nil {
		s.accounts = NewAccountRepository(s.pgDB.GormDB())
	}
	return s.accounts
}

func (s *Store) Models() models.RecordStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.records == nil {
		s.records = NewModelRecordRepository(s.pgDB.GormDB())
	}
	return s.records
}

// compile-time interface check
var _ storage.Store = (*Store)(nil)
