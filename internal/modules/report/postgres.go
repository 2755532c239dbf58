package report

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

type reportPostgres struct{ db *sqlx.DB }

// NewPostgresRepository wraps db for report queries.
func NewPostgresRepository(db *sql.DB) Repository {
	return &reportPostgres{db: sqlx.NewDb(db, "postgres")}
}

// salesWhere builds the WHERE clause for sales aliased as s.
func salesWhere(f Filter) (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)
	add := func(cond string, v interface{}) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.StoreID != 0 {
		add("s.store_id = $%d", f.StoreID)
	}
	if f.From != nil {
		add("s.created_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("s.created_at < $%d", *f.To)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func salesByProductQuery(f Filter, limit int) (string, []interface{}) {
	where, args := salesWhere(f)
	query := `
		SELECT p.id AS product_id, p.name, p.barcode,
		       SUM(s.quantity) AS total_quantity,
		       SUM(s.total_price) AS total_revenue
		FROM sales s
		JOIN products p ON p.id = s.product_id` + where + `
		GROUP BY p.id, p.name, p.barcode
		ORDER BY total_revenue DESC, p.id`
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	return query, args
}

// Dashboard reads every figure in one read-only repeatable-read transaction
// so counts and sums describe the same snapshot.
func (r *reportPostgres) Dashboard(ctx context.Context, f Filter, threshold, topN int) (*Dashboard, error) {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, errors.Wrap(err, "begin dashboard tx")
	}
	defer tx.Rollback()

	d := &Dashboard{LowStockLimit: threshold}
	err = tx.GetContext(ctx, d, `
		SELECT
		  (SELECT COUNT(*) FROM stores WHERE $1::bigint = 0 OR id = $1) AS total_stores,
		  (SELECT COUNT(*) FROM products WHERE $1::bigint = 0 OR store_id = $1) AS total_products,
		  (SELECT COUNT(*) FROM products WHERE ($1::bigint = 0 OR store_id = $1) AND stock_quantity <= $2) AS low_stock_count`,
		f.StoreID, threshold)
	if err != nil {
		return nil, errors.Wrap(err, "dashboard counts")
	}

	where, args := salesWhere(f)
	err = tx.GetContext(ctx, d, `
		SELECT COUNT(*) AS total_sales,
		       COALESCE(SUM(s.quantity), 0) AS units_sold,
		       COALESCE(SUM(s.total_price), 0) AS total_revenue
		FROM sales s`+where, args...)
	if err != nil {
		return nil, errors.Wrap(err, "dashboard sales totals")
	}

	query, args := salesByProductQuery(f, topN)
	d.TopProducts = []ProductSales{}
	if err := tx.SelectContext(ctx, &d.TopProducts, query, args...); err != nil {
		return nil, errors.Wrap(err, "dashboard top products")
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "commit dashboard tx")
	}
	return d, nil
}

func (r *reportPostgres) SalesByProduct(ctx context.Context, f Filter, limit int) ([]ProductSales, error) {
	query, args := salesByProductQuery(f, limit)
	rows := []ProductSales{}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "sales by product")
	}
	return rows, nil
}

func (r *reportPostgres) Inventory(ctx context.Context, storeID int64) ([]InventoryItem, error) {
	items := []InventoryItem{}
	err := r.db.SelectContext(ctx, &items, `
		SELECT id, store_id, name, barcode, stock_quantity
		FROM products
		WHERE $1::bigint = 0 OR store_id = $1
		ORDER BY id`, storeID)
	if err != nil {
		return nil, errors.Wrap(err, "inventory")
	}
	return items, nil
}

func (r *reportPostgres) LowStock(ctx context.Context, storeID int64, threshold int) ([]InventoryItem, error) {
	items := []InventoryItem{}
	err := r.db.SelectContext(ctx, &items, `
		SELECT id, store_id, name, barcode, stock_quantity
		FROM products
		WHERE ($1::bigint = 0 OR store_id = $1) AND stock_quantity <= $2
		ORDER BY stock_quantity, id`, storeID, threshold)
	if err != nil {
		return nil, errors.Wrap(err, "low stock")
	}
	return items, nil
}
