package product

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/georgemunganga/pos-backend/internal/apperr"
	"github.com/georgemunganga/pos-backend/internal/platform/postgres"
)

type ledgerPostgres struct{ db postgres.DBTX }

// NewPostgresLedger binds the ledger to db. ReserveAndDecrement only holds its
// lock past the call when db is a *sql.Tx.
func NewPostgresLedger(db postgres.DBTX) Ledger { return &ledgerPostgres{db: db} }

func (l *ledgerPostgres) ReserveAndDecrement(ctx context.Context, productID int64, quantity int) (Reservation, error) {
	if quantity <= 0 {
		return Reservation{}, apperr.Invalid("quantity must be greater than zero")
	}

	var (
		price decimal.Decimal
		stock int
	)
	err := l.db.QueryRowContext(ctx,
		`SELECT price, stock_quantity FROM products WHERE id=$1 FOR UPDATE`, productID).
		Scan(&price, &stock)
	if errors.Is(err, sql.ErrNoRows) {
		return Reservation{}, notFound(productID)
	}
	if err != nil {
		return Reservation{}, errors.Wrap(err, "lock product")
	}

	if stock < quantity {
		return Reservation{}, &InsufficientStockError{ProductID: productID, Available: stock, Requested: quantity}
	}

	remaining := stock - quantity
	if _, err := l.db.ExecContext(ctx,
		`UPDATE products SET stock_quantity=$2, updated_at=NOW() WHERE id=$1`,
		productID, remaining); err != nil {
		return Reservation{}, errors.Wrap(err, "decrement stock")
	}
	return Reservation{UnitPrice: price, Remaining: remaining}, nil
}

func (l *ledgerPostgres) Restock(ctx context.Context, productID int64, quantity int) (*Product, error) {
	if quantity <= 0 {
		return nil, apperr.Invalid("quantity must be greater than zero")
	}
	p, err := scanProduct(l.db.QueryRowContext(ctx, `
		UPDATE products SET stock_quantity = stock_quantity + $2, updated_at=NOW()
		WHERE id=$1
		RETURNING `+productColumns, productID, quantity))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(productID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "restock product")
	}
	return p, nil
}
