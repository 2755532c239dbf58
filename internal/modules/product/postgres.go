package product

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/georgemunganga/pos-backend/internal/apperr"
	"github.com/georgemunganga/pos-backend/internal/platform/postgres"
)

const productColumns = `id, store_id, name, price, stock_quantity, barcode, created_at, updated_at`

type productPostgres struct{ db postgres.DBTX }

// NewPostgresRepository binds a product repository to a pool or a transaction.
func NewPostgresRepository(db postgres.DBTX) Repository { return &productPostgres{db: db} }

func notFound(id int64) error {
	return apperr.Wrap(apperr.KindNotFound, ErrNotFound, fmt.Sprintf("product %d not found", id))
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanProduct(row scanner) (*Product, error) {
	p := &Product{}
	err := row.Scan(&p.ID, &p.StoreID, &p.Name, &p.Price, &p.StockQuantity, &p.Barcode, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// constraintError maps write failures on the products table to apperr kinds.
func constraintError(err error, p *Product, op string) error {
	switch {
	case err == nil:
		return nil
	case postgres.IsUniqueViolation(err):
		return apperr.Conflict("barcode %s already exists", p.Barcode)
	case postgres.IsForeignKeyViolation(err):
		return apperr.Invalid("store %d does not exist", p.StoreID)
	case postgres.IsCheckViolation(err):
		return apperr.Invalid("price and stock_quantity must not be negative")
	}
	return errors.Wrap(err, op)
}

func (r *productPostgres) Create(ctx context.Context, p *Product) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO products (store_id, name, price, stock_quantity, barcode)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id, created_at, updated_at`,
		p.StoreID, p.Name, p.Price, p.StockQuantity, p.Barcode).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	return constraintError(err, p, "insert product")
}

func (r *productPostgres) GetByID(ctx context.Context, id int64) (*Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "get product")
	}
	return p, nil
}

func (r *productPostgres) GetByBarcode(ctx context.Context, barcode string) (*Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE barcode=$1`, barcode))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Wrap(apperr.KindNotFound, ErrNotFound, fmt.Sprintf("product with barcode %s not found", barcode))
	}
	if err != nil {
		return nil, errors.Wrap(err, "get product by barcode")
	}
	return p, nil
}

func (r *productPostgres) List(ctx context.Context, f ListFilter) ([]*Product, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.StoreID != 0 {
		args = append(args, f.StoreID)
		where = append(where, fmt.Sprintf("store_id=$%d", len(args)))
	}
	if f.Barcode != "" {
		args = append(args, containsPattern(f.Barcode))
		where = append(where, fmt.Sprintf(`barcode ILIKE $%d ESCAPE '\'`, len(args)))
	}
	if f.Name != "" {
		args = append(args, containsPattern(f.Name))
		where = append(where, fmt.Sprintf(`name ILIKE $%d ESCAPE '\'`, len(args)))
	}
	query := `SELECT ` + productColumns + ` FROM products`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	defer rows.Close()
	products := []*Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan product")
		}
		products = append(products, p)
	}
	return products, errors.Wrap(rows.Err(), "list products")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern matches term literally anywhere in a column.
func containsPattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}

func (r *productPostgres) Update(ctx context.Context, p *Product) error {
	err := r.db.QueryRowContext(ctx, `
		UPDATE products SET name=$2, price=$3, barcode=$4, updated_at=NOW()
		WHERE id=$1
		RETURNING stock_quantity, updated_at`,
		p.ID, p.Name, p.Price, p.Barcode).
		Scan(&p.StockQuantity, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound(p.ID)
	}
	return constraintError(err, p, "update product")
}

func (r *productPostgres) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id=$1`, id)
	if err != nil {
		return errors.Wrap(err, "delete product")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "delete product")
	}
	if n == 0 {
		return notFound(id)
	}
	return nil
}
