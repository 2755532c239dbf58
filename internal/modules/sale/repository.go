package sale

import (
	"context"

	"github.com/georgemunganga/pos-backend/internal/modules/product"
	"github.com/georgemunganga/pos-backend/internal/modules/store"
)

// Repository defines sale data storage. Sales are never updated.
type Repository interface {
	Insert(ctx context.Context, s *Sale) error
	GetByID(ctx context.Context, id int64) (*Sale, error)
	List(ctx context.Context, f ListFilter) ([]*Sale, error)
	Delete(ctx context.Context, id int64) error
}

// StoreReader is the part of the store repository a sale needs.
type StoreReader interface {
	GetStoreByID(ctx context.Context, id int64) (*store.Store, error)
}

// ProductReader is the part of the product repository a sale needs.
type ProductReader interface {
	GetByID(ctx context.Context, id int64) (*product.Product, error)
	GetByBarcode(ctx context.Context, barcode string) (*product.Product, error)
}

// Repos are repositories bound to one transaction.
type Repos struct {
	Stores   StoreReader
	Products ProductReader
	Ledger   product.Ledger
	Sales    Repository
}

// TxManager runs fn in a transaction that commits only when fn returns nil.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, r Repos) error) error
}
