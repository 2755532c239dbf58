package user

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/georgemunganga/pos-backend/internal/apperr"
	"github.com/georgemunganga/pos-backend/internal/platform/postgres"
)

type postgresRepository struct {
	db postgres.DBTX
}

// NewPostgresRepository creates a new PostgreSQL user repository.
func NewPostgresRepository(db postgres.DBTX) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) CreateUser(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (id, email, password_hash, first_name, last_name)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query, user.ID, user.Email, user.PasswordHash, user.FirstName, user.LastName).
		Scan(&user.CreatedAt, &user.UpdatedAt)
	if postgres.IsUniqueViolation(err) {
		return apperr.Conflict("email %s is already registered", user.Email)
	}
	return errors.Wrap(err, "insert user")
}

func (r *postgresRepository) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	query := `
		SELECT id, email, password_hash, first_name, last_name, created_at, updated_at
		FROM users
		WHERE email = $1
	`
	return r.scan(r.db.QueryRowContext(ctx, query, email))
}

func (r *postgresRepository) GetUserByID(ctx context.Context, id string) (*User, error) {
	parsedID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperr.Invalid("invalid user id: %s", id)
	}
	query := `
		SELECT id, email, password_hash, first_name, last_name, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	return r.scan(r.db.QueryRowContext(ctx, query, parsedID))
}

func (r *postgresRepository) scan(row *sql.Row) (*User, error) {
	user := &User{}
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.FirstName,
		&user.LastName,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Wrap(apperr.KindNotFound, ErrNotFound, ErrNotFound.Error())
	}
	if err != nil {
		return nil, errors.Wrap(err, "scan user")
	}
	return user, nil
}
