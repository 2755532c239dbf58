package store

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no store matches the lookup.
var ErrNotFound = errors.New("store not found")

// Store is a shop location owned by a user. Products and sales belong to it.
type Store struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	OwnerID     uuid.UUID `json:"owner_id"`
	Address     string    `json:"address"`
	PhoneNumber *string   `json:"phone_number,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateStoreRequest holds data for creating a store.
type CreateStoreRequest struct {
	Name        string  `json:"name"`
	OwnerID     string  `json:"owner_id"`
	Address     string  `json:"address"`
	PhoneNumber *string `json:"phone_number,omitempty"`
}

// UpdateStoreRequest is a partial update; nil fields are left unchanged.
type UpdateStoreRequest struct {
	Name        *string `json:"name,omitempty"`
	Address     *string `json:"address,omitempty"`
	PhoneNumber *string `json:"phone_number,omitempty"`
}
