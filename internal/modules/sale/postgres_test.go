package sale

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/georgemunganga/pos-backend/internal/apperr"
	"github.com/georgemunganga/pos-backend/internal/platform/postgres"
)

func expectResolve(mock sqlmock.Sqlmock, stock int) {
	now := time.Now()
	mock.ExpectQuery("FROM stores WHERE id=\\$1").WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "owner_id", "address", "phone_number", "created_at", "updated_at",
		}).AddRow(1, "Corner Shop", uuid.NewString(), "12 Cairo Road", nil, now, now))
	mock.ExpectQuery("FROM products WHERE id=\\$1$").WithArgs(10).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "store_id", "name", "price", "stock_quantity", "barcode", "created_at", "updated_at",
		}).AddRow(10, 1, "Bread", "9.99", stock, "123", now, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT price, stock_quantity FROM products WHERE id=$1 FOR UPDATE")).WithArgs(10).
		WillReturnRows(sqlmock.NewRows([]string{"price", "stock_quantity"}).AddRow("9.99", stock))
}

func newMockService(t *testing.T) (Service, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewService(NewTxManager(db), NewPostgresRepository(db), nil, nil, zap.NewNop(), Config{}), mock
}

func TestTxManager_CommitsSale(t *testing.T) {
	svc, mock := newMockService(t)
	mock.ExpectBegin()
	expectResolve(mock, 5)
	mock.ExpectExec("UPDATE products SET stock_quantity").WithArgs(10, 3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO sales").WithArgs(1, 10, 2, "19.98").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(77, time.Now()))
	mock.ExpectCommit()

	sale, err := svc.RecordSale(context.Background(), RecordSaleRequest{StoreID: 1, ProductID: 10, Quantity: 2})

	require.NoError(t, err)
	assert.Equal(t, int64(77), sale.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTxManager_InsertFailureRollsBack(t *testing.T) {
	svc, mock := newMockService(t)
	mock.ExpectBegin()
	expectResolve(mock, 5)
	mock.ExpectExec("UPDATE products SET stock_quantity").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO sales").WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := svc.RecordSale(context.Background(), RecordSaleRequest{StoreID: 1, ProductID: 10, Quantity: 2})

	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTxManager_InsufficientStockRollsBack(t *testing.T) {
	svc, mock := newMockService(t)
	mock.ExpectBegin()
	expectResolve(mock, 1)
	mock.ExpectRollback()

	_, err := svc.RecordSale(context.Background(), RecordSaleRequest{StoreID: 1, ProductID: 10, Quantity: 2})

	assert.Equal(t, apperr.KindInsufficientStock, apperr.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListSales_BuildsFilter(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE store_id=$1 AND created_at >= $2 ORDER BY created_at DESC")).
		WithArgs(3, from).
		WillReturnRows(sqlmock.NewRows([]string{"id", "store_id", "product_id", "quantity", "total_price", "created_at"}))

	sales, err := NewPostgresRepository(db).List(context.Background(), ListFilter{StoreID: 3, From: &from})

	require.NoError(t, err)
	assert.Empty(t, sales)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestPostgres_ConcurrentSales runs against a real database when
// POSTGRES_TEST_DSN is set.
func TestPostgres_ConcurrentSales(t *testing.T) {
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}
	ctx := context.Background()
	db, err := postgres.Open(ctx, dsn, postgres.PoolConfig{MaxOpenConns: 60, MaxIdleConns: 10})
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, postgres.MigrateUp(db))

	storeID, productID := seed(t, db, 20)
	svc := NewService(NewTxManager(db), NewPostgresRepository(db), nil, nil, zap.NewNop(), Config{Timeout: 10 * time.Second})

	const buyers = 50
	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		ok, rejected int
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.RecordSale(ctx, RecordSaleRequest{StoreID: storeID, ProductID: productID, Quantity: 1})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
			} else if apperr.KindOf(err) == apperr.KindInsufficientStock {
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, ok)
	assert.Equal(t, buyers-20, rejected)

	var stock, sales int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT stock_quantity FROM products WHERE id=$1`, productID).Scan(&stock))
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sales WHERE product_id=$1`, productID).Scan(&sales))
	assert.Zero(t, stock)
	assert.Equal(t, 20, sales)
}

func seed(t *testing.T, db *sql.DB, stock int) (storeID, productID int64) {
	t.Helper()
	ctx := context.Background()
	owner := uuid.New()
	_, err := db.ExecContext(ctx, `INSERT INTO users (id, email, password_hash) VALUES ($1,$2,'x')`,
		owner, owner.String()+"@test.local")
	require.NoError(t, err)
	t.Cleanup(func() { db.ExecContext(context.Background(), `DELETE FROM users WHERE id=$1`, owner) })

	require.NoError(t, db.QueryRowContext(ctx,
		`INSERT INTO stores (name, owner_id, address) VALUES ('test', $1, 'nowhere') RETURNING id`, owner).
		Scan(&storeID))
	barcode := fmt.Sprintf("T%d", time.Now().UnixNano()%1e15)
	require.NoError(t, db.QueryRowContext(ctx,
		`INSERT INTO products (store_id, name, price, stock_quantity, barcode) VALUES ($1,'item',1.00,$2,$3) RETURNING id`,
		storeID, stock, barcode).Scan(&productID))
	return storeID, productID
}
