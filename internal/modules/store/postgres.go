package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pkg/errors"

	"github.com/georgemunganga/pos-backend/internal/apperr"
	"github.com/georgemunganga/pos-backend/internal/platform/postgres"
)

type storePostgres struct{ db postgres.DBTX }

// NewPostgresRepository binds a store repository to a pool or a transaction.
func NewPostgresRepository(db postgres.DBTX) Repository { return &storePostgres{db: db} }

func notFound(id int64) error {
	return apperr.Wrap(apperr.KindNotFound, ErrNotFound, fmt.Sprintf("store %d not found", id))
}

func (r *storePostgres) CreateStore(ctx context.Context, s *Store) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO stores (name, owner_id, address, phone_number)
		VALUES ($1,$2,$3,$4)
		RETURNING id, created_at, updated_at`,
		s.Name, s.OwnerID, s.Address, s.PhoneNumber).
		Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if postgres.IsForeignKeyViolation(err) {
		return apperr.Invalid("owner %s does not exist", s.OwnerID)
	}
	return errors.Wrap(err, "insert store")
}

func (r *storePostgres) GetStoreByID(ctx context.Context, id int64) (*Store, error) {
	s := &Store{}
	var phone sql.NullString
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, owner_id, address, phone_number, created_at, updated_at
		FROM stores WHERE id=$1`, id).
		Scan(&s.ID, &s.Name, &s.OwnerID, &s.Address, &phone, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "get store")
	}
	if phone.Valid {
		s.PhoneNumber = &phone.String
	}
	return s, nil
}

func (r *storePostgres) ListStores(ctx context.Context, ownerID string) ([]*Store, error) {
	query := `SELECT id, name, owner_id, address, phone_number, created_at, updated_at FROM stores`
	var args []interface{}
	if ownerID != "" {
		query += ` WHERE owner_id=$1`
		args = append(args, ownerID)
	}
	query += ` ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list stores")
	}
	defer rows.Close()

	stores := []*Store{}
	for rows.Next() {
		s := &Store{}
		var phone sql.NullString
		if err := rows.Scan(&s.ID, &s.Name, &s.OwnerID, &s.Address, &phone, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, "scan store")
		}
		if phone.Valid {
			s.PhoneNumber = &phone.String
		}
		stores = append(stores, s)
	}
	return stores, errors.Wrap(rows.Err(), "iterate stores")
}

func (r *storePostgres) UpdateStore(ctx context.Context, s *Store) error {
	err := r.db.QueryRowContext(ctx, `
		UPDATE stores SET name=$1, address=$2, phone_number=$3, updated_at=NOW()
		WHERE id=$4
		RETURNING updated_at`,
		s.Name, s.Address, s.PhoneNumber, s.ID).Scan(&s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound(s.ID)
	}
	return errors.Wrap(err, "update store")
}

func (r *storePostgres) DeleteStore(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM stores WHERE id=$1`, id)
	if err != nil {
		return errors.Wrap(err, "delete store")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(id)
	}
	return nil
}
