package repositories

import (
	"context"

	"gorm.io/gorm"
)

// Store groups the repositories so a service can run several of them inside
// one database transaction.
type Store interface {
	Users() UserRepository
	RefreshTokens() RefreshTokenRepository
	Categories() CategoryRepository
	Products() ProductRepository
	Carts() CartRepository
	Orders() OrderRepository

	// Transaction runs fn with a Store bound to a single transaction. Any error
	// returned by fn rolls back every write made through tx.
	Transaction(ctx context.Context, fn func(tx Store) error) error
}

// GORMStore is the GORM implementation of Store.
type GORMStore struct {
	db *gorm.DB
}

// NewGORMStore creates a Store backed by db.
func NewGORMStore(db *gorm.DB) *GORMStore {
	return &GORMStore{db: db}
}

func (s *GORMStore) Users() UserRepository {
	return NewGORMUserRepository(s.db)
}

func (s *GORMStore) RefreshTokens() RefreshTokenRepository {
	return NewGORMRefreshTokenRepository(s.db)
}

func (s *GORMStore) Categories() CategoryRepository {
	return NewGORMCategoryRepository(s.db)
}

func (s *GORMStore) Products() ProductRepository {
	return NewGORMProductRepository(s.db)
}

func (s *GORMStore) Carts() CartRepository {
	return NewGORMCartRepository(s.db)
}

func (s *GORMStore) Orders() OrderRepository {
	return NewGORMOrderRepository(s.db)
}

func (s *GORMStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewGORMStore(tx))
	})
}
