package product

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/georgemunganga/pos-backend/internal/apperr"
)

// ErrNotFound is returned when no product matches the lookup.
var ErrNotFound = errors.New("product not found")

// Product is an item a store sells. StockQuantity is owned by the Ledger.
type Product struct {
	ID            int64           `json:"id"`
	StoreID       int64           `json:"store_id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity"`
	Barcode       string          `json:"barcode"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Reservation is what the ledger saw under the row lock when it decremented stock.
type Reservation struct {
	UnitPrice decimal.Decimal
	Remaining int
}

// InsufficientStockError rejects a decrement larger than the stock on hand.
type InsufficientStockError struct {
	ProductID int64
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("Only %d items available", e.Available)
}

func (e *InsufficientStockError) Kind() apperr.Kind { return apperr.KindInsufficientStock }

// CreateProductRequest holds data for creating a product.
type CreateProductRequest struct {
	StoreID       int64           `json:"store_id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity"`
	Barcode       string          `json:"barcode"`
}

// UpdateProductRequest is a partial update. Stock is changed through restock
// and sales only.
type UpdateProductRequest struct {
	Name    *string          `json:"name,omitempty"`
	Price   *decimal.Decimal `json:"price,omitempty"`
	Barcode *string          `json:"barcode,omitempty"`
}

// RestockRequest adds units to a product's stock.
type RestockRequest struct {
	Quantity int `json:"quantity"`
}

// ListFilter narrows product listings. Zero values match everything.
type ListFilter struct {
	StoreID int64
	Barcode string
	Name    string
}
