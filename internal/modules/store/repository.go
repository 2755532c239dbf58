package store

import "context"

// Repository defines store data storage.
type Repository interface {
	CreateStore(ctx context.Context, s *Store) error
	GetStoreByID(ctx context.Context, id int64) (*Store, error)
	ListStores(ctx context.Context, ownerID string) ([]*Store, error)
	UpdateStore(ctx context.Context, s *Store) error
	DeleteStore(ctx context.Context, id int64) error
}
