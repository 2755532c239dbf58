package sale

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/georgemunganga/pos-backend/internal/apperr"
	"github.com/georgemunganga/pos-backend/internal/modules/product"
	"github.com/georgemunganga/pos-backend/internal/modules/store"
)

// memDB is an in-memory stand-in for Postgres. Each product row has its own
// lock, held from ReserveAndDecrement until the transaction ends, and writes
// are buffered until commit.
type memDB struct {
	mu       sync.Mutex
	stores   map[int64]*store.Store
	products map[int64]*product.Product
	sales    map[int64]*Sale
	nextSale int64
	rowLocks map[int64]*sync.Mutex

	insertErr error
}

func newMemDB() *memDB {
	return &memDB{
		stores:   make(map[int64]*store.Store),
		products: make(map[int64]*product.Product),
		sales:    make(map[int64]*Sale),
		rowLocks: make(map[int64]*sync.Mutex),
	}
}

func (db *memDB) addStore(id int64) {
	db.stores[id] = &store.Store{ID: id, Name: fmt.Sprintf("store %d", id)}
}

func (db *memDB) addProduct(id, storeID int64, price string, stock int, barcode string) {
	db.products[id] = &product.Product{
		ID: id, StoreID: storeID, Name: fmt.Sprintf("product %d", id),
		Price: decimal.RequireFromString(price), StockQuantity: stock, Barcode: barcode,
	}
}

func (db *memDB) stock(id int64) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.products[id].StockQuantity
}

func (db *memDB) saleCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.sales)
}

func (db *memDB) rowLock(id int64) *sync.Mutex {
	db.mu.Lock()
	defer db.mu.Unlock()
	l, ok := db.rowLocks[id]
	if !ok {
		l = &sync.Mutex{}
		db.rowLocks[id] = l
	}
	return l
}

func (db *memDB) WithinTx(ctx context.Context, fn func(ctx context.Context, r Repos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &memTx{db: db, stock: make(map[int64]int)}
	defer tx.unlock()

	if err := fn(ctx, Repos{
		Stores:   memStores{tx},
		Products: memProducts{tx},
		Ledger:   memLedger{tx},
		Sales:    memSales{tx},
	}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	tx.commit()
	return nil
}

type memTx struct {
	db     *memDB
	locked []*sync.Mutex
	stock  map[int64]int
	sales  []*Sale
}

func (tx *memTx) unlock() {
	for _, l := range tx.locked {
		l.Unlock()
	}
}

func (tx *memTx) commit() {
	tx.db.mu.Lock()
	defer tx.db.mu.Unlock()
	for id, qty := range tx.stock {
		tx.db.products[id].StockQuantity = qty
	}
	for _, s := range tx.sales {
		tx.db.sales[s.ID] = s
	}
}

type memStores struct{ tx *memTx }

func (m memStores) GetStoreByID(ctx context.Context, id int64) (*store.Store, error) {
	m.tx.db.mu.Lock()
	defer m.tx.db.mu.Unlock()
	s, ok := m.tx.db.stores[id]
	if !ok {
		return nil, apperr.Wrap(apperr.KindNotFound, store.ErrNotFound, fmt.Sprintf("store %d not found", id))
	}
	clone := *s
	return &clone, nil
}

type memProducts struct{ tx *memTx }

func (m memProducts) GetByID(ctx context.Context, id int64) (*product.Product, error) {
	m.tx.db.mu.Lock()
	defer m.tx.db.mu.Unlock()
	p, ok := m.tx.db.products[id]
	if !ok {
		return nil, apperr.Wrap(apperr.KindNotFound, product.ErrNotFound, fmt.Sprintf("product %d not found", id))
	}
	clone := *p
	return &clone, nil
}

func (m memProducts) GetByBarcode(ctx context.Context, barcode string) (*product.Product, error) {
	m.tx.db.mu.Lock()
	defer m.tx.db.mu.Unlock()
	for _, p := range m.tx.db.products {
		if p.Barcode == barcode {
			clone := *p
			return &clone, nil
		}
	}
	return nil, apperr.Wrap(apperr.KindNotFound, product.ErrNotFound, "product not found")
}

type memLedger struct{ tx *memTx }

func (m memLedger) ReserveAndDecrement(ctx context.Context, id int64, qty int) (product.Reservation, error) {
	l := m.tx.db.rowLock(id)
	l.Lock()
	m.tx.locked = append(m.tx.locked, l)

	m.tx.db.mu.Lock()
	p, ok := m.tx.db.products[id]
	var (
		stock int
		price decimal.Decimal
	)
	if ok {
		stock, price = p.StockQuantity, p.Price
	}
	m.tx.db.mu.Unlock()

	if !ok {
		return product.Reservation{}, apperr.Wrap(apperr.KindNotFound, product.ErrNotFound, "product not found")
	}
	if s, ok := m.tx.stock[id]; ok {
		stock = s
	}
	if stock < qty {
		return product.Reservation{}, &product.InsufficientStockError{ProductID: id, Available: stock, Requested: qty}
	}
	m.tx.stock[id] = stock - qty
	return product.Reservation{UnitPrice: price, Remaining: stock - qty}, nil
}

func (m memLedger) Restock(ctx context.Context, id int64, qty int) (*product.Product, error) {
	return nil, errors.New("not used")
}

type memSales struct{ tx *memTx }

func (m memSales) Insert(ctx context.Context, s *Sale) error {
	if err := m.tx.db.insertErr; err != nil {
		return err
	}
	m.tx.db.mu.Lock()
	m.tx.db.nextSale++
	s.ID = m.tx.db.nextSale
	m.tx.db.mu.Unlock()
	clone := *s
	m.tx.sales = append(m.tx.sales, &clone)
	return nil
}

func (m memSales) GetByID(ctx context.Context, id int64) (*Sale, error) {
	return committedSales{m.tx.db}.GetByID(ctx, id)
}

func (m memSales) List(ctx context.Context, f ListFilter) ([]*Sale, error) {
	return committedSales{m.tx.db}.List(ctx, f)
}

func (m memSales) Delete(ctx context.Context, id int64) error {
	return committedSales{m.tx.db}.Delete(ctx, id)
}

// committedSales reads sales outside any transaction.
type committedSales struct{ db *memDB }

func (c committedSales) Insert(ctx context.Context, s *Sale) error {
	return errors.New("insert outside transaction")
}

func (c committedSales) GetByID(ctx context.Context, id int64) (*Sale, error) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	s, ok := c.db.sales[id]
	if !ok {
		return nil, notFound(id)
	}
	clone := *s
	return &clone, nil
}

func (c committedSales) List(ctx context.Context, f ListFilter) ([]*Sale, error) {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	out := []*Sale{}
	for _, s := range c.db.sales {
		if (f.StoreID == 0 || s.StoreID == f.StoreID) && (f.ProductID == 0 || s.ProductID == f.ProductID) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (c committedSales) Delete(ctx context.Context, id int64) error {
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	if _, ok := c.db.sales[id]; !ok {
		return notFound(id)
	}
	delete(c.db.sales, id)
	return nil
}

type memClaim struct {
	fingerprint string
	saleID      int64 // 0 means pending
}

type memIdempotency struct {
	mu   sync.Mutex
	keys map[string]memClaim
}

func newMemIdempotency() *memIdempotency {
	return &memIdempotency{keys: make(map[string]memClaim)}
}

func (m *memIdempotency) Claim(ctx context.Context, key, fingerprint string) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.keys[key]; ok {
		if c.fingerprint != fingerprint {
			return 0, false, ErrKeyReused
		}
		return c.saleID, false, nil
	}
	m.keys[key] = memClaim{fingerprint: fingerprint}
	return 0, true, nil
}

func (m *memIdempotency) Complete(ctx context.Context, key, fingerprint string, saleID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[key] = memClaim{fingerprint: fingerprint, saleID: saleID}
	return nil
}

func (m *memIdempotency) Release(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}

type recordingPublisher struct {
	mu       sync.Mutex
	sales    []SaleRecordedEvent
	lowStock []LowStockEvent
}

func (p *recordingPublisher) SaleRecorded(ctx context.Context, e SaleRecordedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sales = append(p.sales, e)
	return nil
}

func (p *recordingPublisher) LowStock(ctx context.Context, e LowStockEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lowStock = append(p.lowStock, e)
	return nil
}
