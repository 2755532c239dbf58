package report

import "context"

// Repository runs read-only aggregation queries over committed data.
type Repository interface {
	Dashboard(ctx context.Context, f Filter, threshold, topN int) (*Dashboard, error)
	SalesByProduct(ctx context.Context, f Filter, limit int) ([]ProductSales, error)
	Inventory(ctx context.Context, storeID int64) ([]InventoryItem, error)
	LowStock(ctx context.Context, storeID int64, threshold int) ([]InventoryItem, error)
}
