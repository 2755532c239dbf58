package report

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/georgemunganga/pos-backend/internal/apperr"
)

const defaultTopProducts = 5

// Service produces aggregate reports.
type Service interface {
	Dashboard(ctx context.Context, f Filter) (*Dashboard, error)
	SalesReport(ctx context.Context, f Filter) ([]ProductSales, error)
	InventoryReport(ctx context.Context, storeID int64) ([]InventoryItem, error)
	LowStock(ctx context.Context, storeID int64, threshold int) ([]InventoryItem, error)
	// DefaultThreshold is the low-stock level used when a caller gives none.
	DefaultThreshold() int
}

type service struct {
	repo      Repository
	threshold int
	now       func() time.Time
}

// NewService creates a report service. threshold is the default low-stock level.
func NewService(repo Repository, threshold int) Service {
	return &service{repo: repo, threshold: threshold, now: time.Now}
}

func (s *service) Dashboard(ctx context.Context, f Filter) (*Dashboard, error) {
	if err := validate(f); err != nil {
		return nil, err
	}
	d, err := s.repo.Dashboard(ctx, f, s.threshold, defaultTopProducts)
	if err != nil {
		return nil, err
	}
	d.GeneratedAt = s.now().UTC()
	return d, nil
}

func (s *service) SalesReport(ctx context.Context, f Filter) ([]ProductSales, error) {
	if err := validate(f); err != nil {
		return nil, err
	}
	return s.repo.SalesByProduct(ctx, f, 0)
}

func (s *service) InventoryReport(ctx context.Context, storeID int64) ([]InventoryItem, error) {
	return s.repo.Inventory(ctx, storeID)
}

func (s *service) LowStock(ctx context.Context, storeID int64, threshold int) ([]InventoryItem, error) {
	if threshold < 0 {
		return nil, apperr.Invalid("threshold must not be negative")
	}
	return s.repo.LowStock(ctx, storeID, threshold)
}

func (s *service) DefaultThreshold() int { return s.threshold }

func validate(f Filter) error {
	if f.From != nil && f.To != nil && !f.From.Before(*f.To) {
		return apperr.Invalid("from must be before to")
	}
	return nil
}

var (
	salesCSVHeader     = []string{"product_id", "name", "barcode", "total_quantity", "total_revenue"}
	inventoryCSVHeader = []string{"id", "store_id", "name", "barcode", "stock_quantity"}
)

// WriteSalesCSV writes one row per product after a header row.
func WriteSalesCSV(w io.Writer, rows []ProductSales) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(salesCSVHeader); err != nil {
		return errors.Wrap(err, "write csv header")
	}
	for _, r := range rows {
		err := cw.Write([]string{
			strconv.FormatInt(r.ProductID, 10),
			r.Name,
			r.Barcode,
			strconv.FormatInt(r.TotalQuantity, 10),
			r.TotalRevenue.StringFixed(2),
		})
		if err != nil {
			return errors.Wrap(err, "write csv row")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flush csv")
}

// WriteInventoryCSV writes one row per product after a header row.
func WriteInventoryCSV(w io.Writer, items []InventoryItem) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(inventoryCSVHeader); err != nil {
		return errors.Wrap(err, "write csv header")
	}
	for _, it := range items {
		err := cw.Write([]string{
			strconv.FormatInt(it.ID, 10),
			strconv.FormatInt(it.StoreID, 10),
			it.Name,
			it.Barcode,
			strconv.Itoa(it.StockQuantity),
		})
		if err != nil {
			return errors.Wrap(err, "write csv row")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flush csv")
}
