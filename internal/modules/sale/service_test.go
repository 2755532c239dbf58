package sale

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/georgemunganga/pos-backend/internal/apperr"
	"github.com/georgemunganga/pos-backend/internal/modules/product"
)

type fixture struct {
	db   *memDB
	idem *memIdempotency
	pub  *recordingPublisher
	svc  Service
}

// newFixture seeds store 1 with product 10 (barcode 123, 9.99, stock 5) and
// store 2 with product 20 (barcode 456, 2.50, stock 100).
func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newMemDB()
	db.addStore(1)
	db.addStore(2)
	db.addProduct(10, 1, "9.99", 5, "123")
	db.addProduct(20, 2, "2.50", 100, "456")

	f := &fixture{db: db, idem: newMemIdempotency(), pub: &recordingPublisher{}}
	f.svc = NewService(db, committedSales{db}, f.idem, f.pub, zap.NewNop(), Config{LowStockThreshold: 3})
	return f
}

func TestRecordSale_DecrementsStockAndComputesTotal(t *testing.T) {
	f := newFixture(t)

	sale, err := f.svc.RecordSale(context.Background(), RecordSaleRequest{StoreID: 1, ProductID: 10, Quantity: 2})
	require.NoError(t, err)

	assert.Equal(t, int64(1), sale.StoreID)
	assert.Equal(t, int64(10), sale.ProductID)
	assert.Equal(t, 2, sale.Quantity)
	assert.Equal(t, "19.98", sale.TotalPrice.StringFixed(2))
	assert.Equal(t, 3, f.db.stock(10))
	assert.Equal(t, 1, f.db.saleCount())

	require.Len(t, f.pub.sales, 1)
	assert.Equal(t, sale.ID, f.pub.sales[0].SaleID)
	assert.Equal(t, 3, f.pub.sales[0].Remaining)
	require.Len(t, f.pub.lowStock, 1)
	assert.Equal(t, int64(10), f.pub.lowStock[0].ProductID)
}

func TestRecordSale_ByBarcodeUsesProductStore(t *testing.T) {
	f := newFixture(t)

	sale, err := f.svc.RecordSale(context.Background(), RecordSaleRequest{Barcode: " 456 ", Quantity: 4})
	require.NoError(t, err)

	assert.Equal(t, int64(2), sale.StoreID)
	assert.Equal(t, int64(20), sale.ProductID)
	assert.True(t, decimal.NewFromInt(10).Equal(sale.TotalPrice))
	assert.Equal(t, 96, f.db.stock(20))
	assert.Empty(t, f.pub.lowStock)
}

func TestRecordSale_InsufficientStock(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.RecordSale(context.Background(), RecordSaleRequest{StoreID: 1, ProductID: 10, Quantity: 6})

	var stockErr *product.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, 5, stockErr.Available)
	assert.Equal(t, "Only 5 items available", apperr.Message(err))
	assert.Equal(t, apperr.KindInsufficientStock, apperr.KindOf(err))
	assert.Equal(t, 5, f.db.stock(10))
	assert.Zero(t, f.db.saleCount())
	assert.Empty(t, f.pub.sales)
}

func TestRecordSale_NotFound(t *testing.T) {
	cases := map[string]RecordSaleRequest{
		"store":   {StoreID: 99, ProductID: 10, Quantity: 1},
		"product": {StoreID: 1, ProductID: 99, Quantity: 1},
		"barcode": {Barcode: "999", Quantity: 1},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)

			_, err := f.svc.RecordSale(context.Background(), req)

			assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
			assert.Equal(t, 5, f.db.stock(10))
			assert.Zero(t, f.db.saleCount())
		})
	}
}

func TestRecordSale_ProductFromOtherStore(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.RecordSale(context.Background(), RecordSaleRequest{StoreID: 2, ProductID: 10, Quantity: 1})

	assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "product 10 does not belong to store 2")
	assert.Equal(t, 5, f.db.stock(10))
}

func TestRecordSale_InvalidRequest(t *testing.T) {
	negative := decimal.RequireFromString("-1")
	cases := map[string]RecordSaleRequest{
		"zero quantity":     {StoreID: 1, ProductID: 10},
		"negative quantity": {StoreID: 1, ProductID: 10, Quantity: -2},
		"no product":        {StoreID: 1, Quantity: 1},
		"id and barcode":    {StoreID: 1, ProductID: 10, Barcode: "123", Quantity: 1},
		"id without store":  {ProductID: 10, Quantity: 1},
		"negative store":    {StoreID: -1, Barcode: "123", Quantity: 1},
		"negative total":    {StoreID: 1, ProductID: 10, Quantity: 1, TotalPrice: &negative},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)

			_, err := f.svc.RecordSale(context.Background(), req)

			assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))
			assert.Equal(t, 5, f.db.stock(10))
		})
	}
}

func TestRecordSale_InsertFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	f.db.insertErr = errors.New("disk full")

	_, err := f.svc.RecordSale(context.Background(), RecordSaleRequest{StoreID: 1, ProductID: 10, Quantity: 2})

	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
	assert.Equal(t, "internal error", apperr.Message(err))
	assert.Equal(t, 5, f.db.stock(10))
	assert.Zero(t, f.db.saleCount())
	assert.Empty(t, f.pub.sales)
}

func TestRecordSale_CancelledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.RecordSale(ctx, RecordSaleRequest{StoreID: 1, ProductID: 10, Quantity: 1})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 5, f.db.stock(10))
}

func TestRecordSale_TotalOverride(t *testing.T) {
	f := newFixture(t)
	discounted := decimal.RequireFromString("15.004")

	sale, err := f.svc.RecordSale(context.Background(), RecordSaleRequest{
		StoreID: 1, ProductID: 10, Quantity: 2, TotalPrice: &discounted,
	})
	require.NoError(t, err)

	assert.Equal(t, "15.00", sale.TotalPrice.StringFixed(2))
	assert.Equal(t, 3, f.db.stock(10))
}

func TestRecordSale_ConcurrentBuyersNeverOversell(t *testing.T) {
	const (
		buyers = 50
		stock  = 20
	)
	f := newFixture(t)
	f.db.addProduct(30, 1, "1.00", stock, "789")

	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		ok, rejected int
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.RecordSale(context.Background(), RecordSaleRequest{StoreID: 1, ProductID: 30, Quantity: 1})
			mu.Lock()
			defer mu.Unlock()
			switch apperr.KindOf(err) {
			case apperr.KindInsufficientStock:
				rejected++
			default:
				if err == nil {
					ok++
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, stock, ok)
	assert.Equal(t, buyers-stock, rejected)
	assert.Equal(t, 0, f.db.stock(30))
	assert.Equal(t, stock, f.db.saleCount())
}

func TestRecordSale_IdempotentReplay(t *testing.T) {
	f := newFixture(t)
	req := RecordSaleRequest{StoreID: 1, ProductID: 10, Quantity: 1, IdempotencyKey: "till-7-0001"}

	first, err := f.svc.RecordSale(context.Background(), req)
	require.NoError(t, err)
	second, err := f.svc.RecordSale(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 4, f.db.stock(10))
	assert.Equal(t, 1, f.db.saleCount())
	assert.Len(t, f.pub.sales, 1)
}

func TestRecordSale_IdempotencyKeyInFlight(t *testing.T) {
	f := newFixture(t)
	req := RecordSaleRequest{StoreID: 1, ProductID: 10, Quantity: 1, IdempotencyKey: "busy"}
	f.idem.keys["busy"] = memClaim{fingerprint: req.Fingerprint()}

	_, err := f.svc.RecordSale(context.Background(), req)

	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.Equal(t, 5, f.db.stock(10))
}

func TestRecordSale_FailedAttemptReleasesKey(t *testing.T) {
	f := newFixture(t)
	req := RecordSaleRequest{StoreID: 1, ProductID: 10, Quantity: 9, IdempotencyKey: "retry-me"}

	_, err := f.svc.RecordSale(context.Background(), req)
	require.Equal(t, apperr.KindInsufficientStock, apperr.KindOf(err))
	assert.NotContains(t, f.idem.keys, "retry-me")

	req.Quantity = 1
	_, err = f.svc.RecordSale(context.Background(), req)
	require.NoError(t, err)
	assert.NotZero(t, f.idem.keys["retry-me"].saleID)
}

func TestRecordSale_IdempotencyKeyReusedWithDifferentRequest(t *testing.T) {
	f := newFixture(t)
	req := RecordSaleRequest{StoreID: 1, ProductID: 10, Quantity: 1, IdempotencyKey: "till-7-0002"}
	_, err := f.svc.RecordSale(context.Background(), req)
	require.NoError(t, err)

	changed := []RecordSaleRequest{
		{StoreID: 1, ProductID: 10, Quantity: 2, IdempotencyKey: "till-7-0002"},
		{StoreID: 2, ProductID: 20, Quantity: 1, IdempotencyKey: "till-7-0002"},
		{Barcode: "123", Quantity: 1, IdempotencyKey: "till-7-0002"},
	}
	for _, c := range changed {
		_, err := f.svc.RecordSale(context.Background(), c)
		assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
		assert.ErrorIs(t, err, ErrKeyReused)
	}

	assert.Equal(t, 4, f.db.stock(10))
	assert.Equal(t, 100, f.db.stock(20))
	assert.Equal(t, 1, f.db.saleCount())
}

func TestRecordSale_ZeroTotalIsComputed(t *testing.T) {
	f := newFixture(t)
	zero := decimal.Zero

	sale, err := f.svc.RecordSale(context.Background(), RecordSaleRequest{
		StoreID: 1, ProductID: 10, Quantity: 2, TotalPrice: &zero,
	})
	require.NoError(t, err)
	assert.Equal(t, "19.98", sale.TotalPrice.StringFixed(2))
}

func TestListSales(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.RecordSale(context.Background(), RecordSaleRequest{StoreID: 1, ProductID: 10, Quantity: 1})
	require.NoError(t, err)
	_, err = f.svc.RecordSale(context.Background(), RecordSaleRequest{StoreID: 2, ProductID: 20, Quantity: 1})
	require.NoError(t, err)

	sales, err := f.svc.ListSales(context.Background(), ListFilter{StoreID: 2})
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.Equal(t, int64(20), sales[0].ProductID)
}

func TestDeleteSale(t *testing.T) {
	f := newFixture(t)
	sale, err := f.svc.RecordSale(context.Background(), RecordSaleRequest{StoreID: 1, ProductID: 10, Quantity: 1})
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteSale(context.Background(), sale.ID))

	_, err = f.svc.GetSale(context.Background(), sale.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTerminalState(t *testing.T) {
	assert.Equal(t, StateRejected, terminalState(&product.InsufficientStockError{}))
	assert.Equal(t, StateRejected, terminalState(apperr.NotFound("x")))
	assert.Equal(t, StateAborted, terminalState(errors.New("connection reset")))
}
