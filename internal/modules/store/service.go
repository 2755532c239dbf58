package store

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/georgemunganga/pos-backend/internal/apperr"
)

const maxPhoneLength = 15

// Service defines store business logic.
type Service interface {
	CreateStore(ctx context.Context, req CreateStoreRequest) (*Store, error)
	GetStore(ctx context.Context, id int64) (*Store, error)
	ListStores(ctx context.Context, ownerID string) ([]*Store, error)
	UpdateStore(ctx context.Context, id int64, req UpdateStoreRequest) (*Store, error)
	DeleteStore(ctx context.Context, id int64) error
}

type service struct{ repo Repository }

// NewService creates a new store service.
func NewService(repo Repository) Service { return &service{repo: repo} }

func (s *service) CreateStore(ctx context.Context, req CreateStoreRequest) (*Store, error) {
	ownerID, err := uuid.Parse(req.OwnerID)
	if err != nil {
		return nil, apperr.Invalid("invalid owner_id: %s", req.OwnerID)
	}
	st := &Store{
		Name:        strings.TrimSpace(req.Name),
		OwnerID:     ownerID,
		Address:     strings.TrimSpace(req.Address),
		PhoneNumber: normalizePhone(req.PhoneNumber),
	}
	if err := validate(st); err != nil {
		return nil, err
	}
	if err := s.repo.CreateStore(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *service) GetStore(ctx context.Context, id int64) (*Store, error) {
	return s.repo.GetStoreByID(ctx, id)
}

func (s *service) ListStores(ctx context.Context, ownerID string) ([]*Store, error) {
	if ownerID != "" {
		if _, err := uuid.Parse(ownerID); err != nil {
			return nil, apperr.Invalid("invalid owner_id: %s", ownerID)
		}
	}
	return s.repo.ListStores(ctx, ownerID)
}

func (s *service) UpdateStore(ctx context.Context, id int64, req UpdateStoreRequest) (*Store, error) {
	st, err := s.repo.GetStoreByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		st.Name = strings.TrimSpace(*req.Name)
	}
	if req.Address != nil {
		st.Address = strings.TrimSpace(*req.Address)
	}
	if req.PhoneNumber != nil {
		st.PhoneNumber = normalizePhone(req.PhoneNumber)
	}
	if err := validate(st); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStore(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *service) DeleteStore(ctx context.Context, id int64) error {
	return s.repo.DeleteStore(ctx, id)
}

func validate(st *Store) error {
	switch {
	case st.Name == "":
		return apperr.Invalid("name is required")
	case len(st.Name) > 100:
		return apperr.Invalid("name must be at most 100 characters")
	case st.Address == "":
		return apperr.Invalid("address is required")
	case st.PhoneNumber != nil && len(*st.PhoneNumber) > maxPhoneLength:
		return apperr.Invalid("phone_number must be at most %d characters", maxPhoneLength)
	}
	return nil
}

// normalizePhone maps a blank phone number to nil.
func normalizePhone(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	if v == "" {
		return nil
	}
	return &v
}
