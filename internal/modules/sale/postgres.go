package sale

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/georgemunganga/pos-backend/internal/apperr"
	"github.com/georgemunganga/pos-backend/internal/modules/product"
	"github.com/georgemunganga/pos-backend/internal/modules/store"
	"github.com/georgemunganga/pos-backend/internal/platform/postgres"
)

const saleColumns = `id, store_id, product_id, quantity, total_price, created_at`

type salePostgres struct{ db postgres.DBTX }

// NewPostgresRepository binds a sale repository to a pool or a transaction.
func NewPostgresRepository(db postgres.DBTX) Repository { return &salePostgres{db: db} }

func notFound(id int64) error {
	return apperr.Wrap(apperr.KindNotFound, ErrNotFound, fmt.Sprintf("sale %d not found", id))
}

func (r *salePostgres) Insert(ctx context.Context, s *Sale) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO sales (store_id, product_id, quantity, total_price)
		VALUES ($1,$2,$3,$4)
		RETURNING id, created_at`,
		s.StoreID, s.ProductID, s.Quantity, s.TotalPrice).
		Scan(&s.ID, &s.CreatedAt)
	return errors.Wrap(err, "insert sale")
}

func (r *salePostgres) GetByID(ctx context.Context, id int64) (*Sale, error) {
	s := &Sale{}
	err := r.db.QueryRowContext(ctx, `SELECT `+saleColumns+` FROM sales WHERE id=$1`, id).
		Scan(&s.ID, &s.StoreID, &s.ProductID, &s.Quantity, &s.TotalPrice, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "get sale")
	}
	return s, nil
}

func (r *salePostgres) List(ctx context.Context, f ListFilter) ([]*Sale, error) {
	var (
		where []string
		args  []interface{}
	)
	add := func(cond string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.StoreID != 0 {
		add("store_id=$%d", f.StoreID)
	}
	if f.ProductID != 0 {
		add("product_id=$%d", f.ProductID)
	}
	if f.From != nil {
		add("created_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("created_at < $%d", *f.To)
	}
	query := `SELECT ` + saleColumns + ` FROM sales`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list sales")
	}
	defer rows.Close()
	sales := []*Sale{}
	for rows.Next() {
		s := &Sale{}
		if err := rows.Scan(&s.ID, &s.StoreID, &s.ProductID, &s.Quantity, &s.TotalPrice, &s.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan sale")
		}
		sales = append(sales, s)
	}
	return sales, errors.Wrap(rows.Err(), "list sales")
}

func (r *salePostgres) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sales WHERE id=$1`, id)
	if err != nil {
		return errors.Wrap(err, "delete sale")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "delete sale")
	}
	if n == 0 {
		return notFound(id)
	}
	return nil
}

type pgTxManager struct{ db *sql.DB }

// NewTxManager runs sale transactions on db at READ COMMITTED. Stock rows are
// serialized by the ledger's row lock, not by the isolation level.
func NewTxManager(db *sql.DB) TxManager { return &pgTxManager{db: db} }

func (m *pgTxManager) WithinTx(ctx context.Context, fn func(ctx context.Context, r Repos) error) error {
	opts := &sql.TxOptions{Isolation: sql.LevelReadCommitted}
	return postgres.WithTx(ctx, m.db, opts, func(tx *sql.Tx) error {
		return fn(ctx, Repos{
			Stores:   store.NewPostgresRepository(tx),
			Products: product.NewPostgresRepository(tx),
			Ledger:   product.NewPostgresLedger(tx),
			Sales:    NewPostgresRepository(tx),
		})
	})
}
