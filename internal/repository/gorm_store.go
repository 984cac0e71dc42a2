package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/charlesng35/estateportal/internal/database"
)

// GormStore implements Store on a gorm connection.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an open database handle.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if db == nil {
		return nil, errors.New("repository: db is required")
	}
	return &GormStore{db: db}, nil
}

// DB exposes the underlying handle for components that manage their own
// tables, such as the local credential store.
func (s *GormStore) DB() *gorm.DB {
	return s.db
}

func (s *GormStore) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func (s *GormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

// createIsolated runs an insert in a nested transaction. Inside an open
// transaction gorm issues a savepoint, so a constraint violation rolls back
// only the insert.
func (s *GormStore) createIsolated(ctx context.Context, create func(tx *gorm.DB) error) error {
	return s.conn(ctx).Transaction(create)
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// MemoryStore is a GormStore on a private in-memory SQLite database. It exists
// for tests and local demo mode and offers no durability.
type MemoryStore struct {
	*GormStore
}

// NewMemoryStore opens and migrates a fresh in-memory database.
func NewMemoryStore() (*MemoryStore, error) {
	db, err := database.Open(database.Config{Driver: database.DriverMemory})
	if err != nil {
		return nil, err
	}
	if err := database.AutoMigrate(db); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("migrate memory store: %w", err)
	}
	return &MemoryStore{GormStore: &GormStore{db: db}}, nil
}

// Reset empties every table, leaving the schema in place.
func (m *MemoryStore) Reset(ctx context.Context) error {
	tables := database.PortalModels()
	return m.conn(ctx).Transaction(func(tx *gorm.DB) error {
		for i := len(tables) - 1; i >= 0; i-- {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(tables[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Close releases the in-memory database.
func (m *MemoryStore) Close() error {
	return database.Close(m.db)
}
