package report

import (
	"time"

	"github.com/shopspring/decimal"
)

// Filter scopes sales aggregates. Zero values match everything.
type Filter struct {
	StoreID int64
	From    *time.Time
	To      *time.Time
}

// ProductSales aggregates the sales of one product.
type ProductSales struct {
	ProductID     int64           `db:"product_id" json:"product_id"`
	Name          string          `db:"name" json:"name"`
	Barcode       string          `db:"barcode" json:"barcode"`
	TotalQuantity int64           `db:"total_quantity" json:"total_quantity"`
	TotalRevenue  decimal.Decimal `db:"total_revenue" json:"total_revenue"`
}

// InventoryItem is a product's stock level.
type InventoryItem struct {
	ID            int64  `db:"id" json:"id"`
	StoreID       int64  `db:"store_id" json:"store_id"`
	Name          string `db:"name" json:"name"`
	Barcode       string `db:"barcode" json:"barcode"`
	StockQuantity int    `db:"stock_quantity" json:"stock_quantity"`
}

// Dashboard is a consistent snapshot of headline figures.
type Dashboard struct {
	TotalStores   int64           `db:"total_stores" json:"total_stores"`
	TotalProducts int64           `db:"total_products" json:"total_products"`
	LowStockCount int64           `db:"low_stock_count" json:"low_stock_count"`
	TotalSales    int64           `db:"total_sales" json:"total_sales"`
	UnitsSold     int64           `db:"units_sold" json:"units_sold"`
	TotalRevenue  decimal.Decimal `db:"total_revenue" json:"total_revenue"`
	TopProducts   []ProductSales  `db:"-" json:"top_products"`
	LowStockLimit int             `db:"-" json:"low_stock_threshold"`
	GeneratedAt   time.Time       `db:"-" json:"generated_at"`
}
