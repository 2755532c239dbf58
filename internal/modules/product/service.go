package product

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/georgemunganga/pos-backend/internal/apperr"
)

const (
	maxNameLength    = 100
	maxBarcodeLength = 20
)

// Service defines product business logic.
type Service interface {
	CreateProduct(ctx context.Context, req CreateProductRequest) (*Product, error)
	GetProduct(ctx context.Context, id int64) (*Product, error)
	ListProducts(ctx context.Context, f ListFilter) ([]*Product, error)
	UpdateProduct(ctx context.Context, id int64, req UpdateProductRequest) (*Product, error)
	DeleteProduct(ctx context.Context, id int64) error
	Restock(ctx context.Context, id int64, quantity int) (*Product, error)
}

type service struct {
	repo   Repository
	ledger Ledger
}

// NewService creates a new product service.
func NewService(repo Repository, ledger Ledger) Service {
	return &service{repo: repo, ledger: ledger}
}

func (s *service) CreateProduct(ctx context.Context, req CreateProductRequest) (*Product, error) {
	if req.StoreID <= 0 {
		return nil, apperr.Invalid("store_id must be a positive integer")
	}
	if req.StockQuantity < 0 {
		return nil, apperr.Invalid("stock_quantity must not be negative")
	}
	p := &Product{
		StoreID:       req.StoreID,
		Name:          strings.TrimSpace(req.Name),
		Price:         req.Price.Round(2),
		StockQuantity: req.StockQuantity,
		Barcode:       strings.TrimSpace(req.Barcode),
	}
	if err := validate(p); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *service) GetProduct(ctx context.Context, id int64) (*Product, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) ListProducts(ctx context.Context, f ListFilter) ([]*Product, error) {
	f.Barcode = strings.TrimSpace(f.Barcode)
	f.Name = strings.TrimSpace(f.Name)
	return s.repo.List(ctx, f)
}

func (s *service) UpdateProduct(ctx context.Context, id int64, req UpdateProductRequest) (*Product, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		p.Name = strings.TrimSpace(*req.Name)
	}
	if req.Price != nil {
		p.Price = req.Price.Round(2)
	}
	if req.Barcode != nil {
		p.Barcode = strings.TrimSpace(*req.Barcode)
	}
	if err := validate(p); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *service) DeleteProduct(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

func (s *service) Restock(ctx context.Context, id int64, quantity int) (*Product, error) {
	return s.ledger.Restock(ctx, id, quantity)
}

func validate(p *Product) error {
	switch {
	case p.Name == "":
		return apperr.Invalid("name is required")
	case len(p.Name) > maxNameLength:
		return apperr.Invalid("name must be at most %d characters", maxNameLength)
	case p.Price.LessThan(decimal.Zero):
		return apperr.Invalid("price must not be negative")
	case p.Barcode == "":
		return apperr.Invalid("barcode is required")
	case len(p.Barcode) > maxBarcodeLength:
		return apperr.Invalid("barcode must be at most %d characters", maxBarcodeLength)
	}
	return nil
}
