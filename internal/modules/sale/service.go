package sale

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/georgemunganga/pos-backend/internal/apperr"
	"github.com/georgemunganga/pos-backend/internal/modules/product"
)

const (
	tracerName     = "github.com/georgemunganga/pos-backend/internal/modules/sale"
	publishTimeout = 3 * time.Second
)

// Service defines sale business logic.
type Service interface {
	// RecordSale validates stock, decrements it and stores the sale as one
	// atomic unit. Nothing is persisted unless every step succeeds.
	RecordSale(ctx context.Context, req RecordSaleRequest) (*Sale, error)
	GetSale(ctx context.Context, id int64) (*Sale, error)
	ListSales(ctx context.Context, f ListFilter) ([]*Sale, error)
	DeleteSale(ctx context.Context, id int64) error
}

// Config tunes RecordSale.
type Config struct {
	LowStockThreshold int
	// Timeout bounds one RecordSale call, transaction included. Zero disables it.
	Timeout time.Duration
}

type service struct {
	txm    TxManager
	repo   Repository
	idem   IdempotencyStore
	pub    Publisher
	logger *zap.Logger
	tracer trace.Tracer
	cfg    Config
}

// NewService wires the sale service. repo serves reads outside transactions.
// idem may be nil, in which case idempotency keys are ignored.
func NewService(txm TxManager, repo Repository, idem IdempotencyStore, pub Publisher, logger *zap.Logger, cfg Config) Service {
	if pub == nil {
		pub = NoopPublisher()
	}
	return &service{
		txm:    txm,
		repo:   repo,
		idem:   idem,
		pub:    pub,
		logger: logger,
		tracer: otel.Tracer(tracerName),
		cfg:    cfg,
	}
}

func (s *service) RecordSale(ctx context.Context, req RecordSaleRequest) (_ *Sale, err error) {
	ctx, span := s.tracer.Start(ctx, "sale.record", trace.WithAttributes(
		attribute.Int64("sale.store_id", req.StoreID),
		attribute.Int64("sale.product_id", req.ProductID),
		attribute.String("sale.barcode", req.Barcode),
		attribute.Int("sale.quantity", req.Quantity),
	))
	state := StateStarted
	defer func() {
		if err != nil {
			state = terminalState(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, apperr.KindOf(err).String())
		}
		span.SetAttributes(attribute.String("sale.state", string(state)))
		span.End()
	}()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	var (
		sale *Sale
		res  product.Reservation
	)
	if key := req.IdempotencyKey; key != "" && s.idem != nil {
		fingerprint := req.Fingerprint()
		existingID, claimed, claimErr := s.idem.Claim(ctx, key, fingerprint)
		if errors.Is(claimErr, ErrKeyReused) {
			return nil, apperr.Wrap(apperr.KindConflict, claimErr, fmt.Sprintf("idempotency key %s was used with a different request", key))
		}
		if claimErr != nil {
			return nil, claimErr
		}
		if !claimed {
			if existingID == 0 {
				return nil, apperr.Conflict("a sale with idempotency key %s is in progress", key)
			}
			span.SetAttributes(attribute.Bool("sale.replayed", true))
			state = StateSaleRecorded
			return s.repo.GetByID(ctx, existingID)
		}
		defer func() { s.settleKey(ctx, key, fingerprint, sale, err) }()
	}

	err = s.txm.WithinTx(ctx, func(ctx context.Context, r Repos) error {
		p, err := resolve(ctx, r, req)
		if err != nil {
			return err
		}
		state = StateValidated

		res, err = r.Ledger.ReserveAndDecrement(ctx, p.ID, req.Quantity)
		if err != nil {
			return err
		}
		state = StateStockReserved

		total := res.UnitPrice.Mul(decimal.NewFromInt(int64(req.Quantity))).Round(2)
		if req.hasTotal() {
			total = req.TotalPrice.Round(2)
		}
		sale = &Sale{
			StoreID:    p.StoreID,
			ProductID:  p.ID,
			Quantity:   req.Quantity,
			TotalPrice: total,
		}
		return r.Sales.Insert(ctx, sale)
	})
	if err != nil {
		return nil, err
	}
	state = StateSaleRecorded
	span.SetAttributes(attribute.Int64("sale.id", sale.ID))

	s.publish(ctx, sale, res.Remaining)
	return sale, nil
}

// resolve loads the store and product a request names and checks they match.
func resolve(ctx context.Context, r Repos, req RecordSaleRequest) (*product.Product, error) {
	if req.StoreID != 0 {
		if _, err := r.Stores.GetStoreByID(ctx, req.StoreID); err != nil {
			return nil, err
		}
	}

	var (
		p   *product.Product
		err error
	)
	if req.Barcode != "" {
		p, err = r.Products.GetByBarcode(ctx, req.Barcode)
	} else {
		p, err = r.Products.GetByID(ctx, req.ProductID)
	}
	if err != nil {
		return nil, err
	}

	if req.StoreID != 0 && p.StoreID != req.StoreID {
		return nil, apperr.Invalid("product %d does not belong to store %d", p.ID, req.StoreID)
	}
	return p, nil
}

// settleKey records the sale under key, or frees key after a failure so the
// client can retry.
func (s *service) settleKey(ctx context.Context, key, fingerprint string, sale *Sale, failure error) {
	ctx = context.WithoutCancel(ctx)
	if failure != nil {
		if err := s.idem.Release(ctx, key); err != nil {
			s.logger.Warn("release idempotency key", zap.String("key", key), zap.Error(err))
		}
		return
	}
	if err := s.idem.Complete(ctx, key, fingerprint, sale.ID); err != nil {
		s.logger.Warn("complete idempotency key", zap.String("key", key), zap.Int64("sale_id", sale.ID), zap.Error(err))
	}
}

func (s *service) publish(ctx context.Context, sale *Sale, remaining int) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	now := time.Now().UTC()
	err := s.pub.SaleRecorded(ctx, SaleRecordedEvent{
		SaleID:     sale.ID,
		StoreID:    sale.StoreID,
		ProductID:  sale.ProductID,
		Quantity:   sale.Quantity,
		TotalPrice: sale.TotalPrice,
		Remaining:  remaining,
		OccurredAt: now,
	})
	if err != nil {
		s.logger.Warn("publish sale recorded", zap.Int64("sale_id", sale.ID), zap.Error(err))
	}

	if remaining > s.cfg.LowStockThreshold {
		return
	}
	err = s.pub.LowStock(ctx, LowStockEvent{
		StoreID:    sale.StoreID,
		ProductID:  sale.ProductID,
		Remaining:  remaining,
		Threshold:  s.cfg.LowStockThreshold,
		OccurredAt: now,
	})
	if err != nil {
		s.logger.Warn("publish low stock", zap.Int64("product_id", sale.ProductID), zap.Error(err))
	}
}

func (s *service) GetSale(ctx context.Context, id int64) (*Sale, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) ListSales(ctx context.Context, f ListFilter) ([]*Sale, error) {
	if f.From != nil && f.To != nil && !f.From.Before(*f.To) {
		return nil, apperr.Invalid("from must be before to")
	}
	return s.repo.List(ctx, f)
}

func (s *service) DeleteSale(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}
