package sale

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/georgemunganga/pos-backend/internal/apperr"
)

// ErrNotFound is returned when no sale matches the lookup.
var ErrNotFound = errors.New("sale not found")

// Sale is an immutable record of one product sold in one store.
type Sale struct {
	ID         int64           `json:"id"`
	StoreID    int64           `json:"store_id"`
	ProductID  int64           `json:"product_id"`
	Quantity   int             `json:"quantity"`
	TotalPrice decimal.Decimal `json:"total_price"`
	CreatedAt  time.Time       `json:"created_at"`
}

// RecordSaleRequest asks for quantity units of a product. The product is
// named by ProductID or Barcode; StoreID may be omitted with a barcode.
// A non-zero TotalPrice overrides the computed total.
type RecordSaleRequest struct {
	StoreID    int64            `json:"store_id,omitempty"`
	ProductID  int64            `json:"product_id,omitempty"`
	Barcode    string           `json:"barcode,omitempty"`
	Quantity   int              `json:"quantity"`
	TotalPrice *decimal.Decimal `json:"total_price,omitempty"`

	// IdempotencyKey comes from the Idempotency-Key header or gRPC metadata.
	IdempotencyKey string `json:"-"`
}

// Validate checks the request shape. It does not touch storage.
func (r *RecordSaleRequest) Validate() error {
	r.Barcode = strings.TrimSpace(r.Barcode)
	switch {
	case r.Quantity <= 0:
		return apperr.Invalid("quantity must be greater than zero")
	case r.StoreID < 0:
		return apperr.Invalid("store_id must be a positive integer")
	case r.ProductID < 0:
		return apperr.Invalid("product_id must be a positive integer")
	case r.ProductID == 0 && r.Barcode == "":
		return apperr.Invalid("product_id or barcode is required")
	case r.ProductID != 0 && r.Barcode != "":
		return apperr.Invalid("product_id and barcode are mutually exclusive")
	case r.ProductID != 0 && r.StoreID == 0:
		return apperr.Invalid("store_id is required")
	case r.TotalPrice != nil && r.TotalPrice.IsNegative():
		return apperr.Invalid("total_price must not be negative")
	}
	return nil
}

func (r *RecordSaleRequest) hasTotal() bool {
	return r.TotalPrice != nil && !r.TotalPrice.IsZero()
}

// Fingerprint identifies the request body so a reused idempotency key can be
// told apart from a genuine retry. Call it after Validate.
func (r *RecordSaleRequest) Fingerprint() string {
	total := ""
	if r.hasTotal() {
		total = r.TotalPrice.Round(2).StringFixed(2)
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d|%d|%s|%d|%s", r.StoreID, r.ProductID, r.Barcode, r.Quantity, total)))
	return hex.EncodeToString(sum[:])
}

// ListFilter narrows sale listings. Zero values match everything.
type ListFilter struct {
	StoreID   int64
	ProductID int64
	From      *time.Time
	To        *time.Time
}

// State is a step of RecordSale. A call ends in SaleRecorded, Rejected or Aborted.
type State string

const (
	StateStarted       State = "started"
	StateValidated     State = "validated"
	StateStockReserved State = "stock_reserved"
	StateSaleRecorded  State = "sale_recorded"
	StateRejected      State = "rejected"
	StateAborted       State = "aborted"
)

// terminalState classifies a RecordSale failure.
func terminalState(err error) State {
	switch apperr.KindOf(err) {
	case apperr.KindNotFound, apperr.KindInvalidInput, apperr.KindInsufficientStock, apperr.KindConflict:
		return StateRejected
	}
	return StateAborted
}
