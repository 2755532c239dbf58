package product

import "context"

// Repository defines product data storage. It never writes stock_quantity
// after creation.
type Repository interface {
	Create(ctx context.Context, p *Product) error
	GetByID(ctx context.Context, id int64) (*Product, error)
	GetByBarcode(ctx context.Context, barcode string) (*Product, error)
	List(ctx context.Context, f ListFilter) ([]*Product, error)
	Update(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id int64) error
}

// Ledger is the only writer of stock levels. Implementations must be bound to
// the caller's transaction so the row lock lives until commit or rollback.
type Ledger interface {
	// ReserveAndDecrement locks the product row, checks stock and decrements it.
	ReserveAndDecrement(ctx context.Context, productID int64, quantity int) (Reservation, error)
	// Restock adds quantity units and returns the updated product.
	Restock(ctx context.Context, productID int64, quantity int) (*Product, error)
}
