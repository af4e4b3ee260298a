package auth

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"github.com/healthcard/healthcard-api/pkg/database"
	"github.com/healthcard/healthcard-api/pkg/logger"
	"github.com/healthcard/healthcard-api/pkg/types"
)

// UserRepository implements account persistence on Postgres
type UserRepository struct {
	db     *database.DB
	logger *logger.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.DB, log *logger.Logger) *UserRepository {
	return &UserRepository{
		db:     db,
		logger: log,
	}
}

// Create inserts a new account. Email uniqueness is enforced by the
// case-folded unique index; a duplicate surfaces as a Conflict error.
func (r *UserRepository) Create(ctx context.Context, user *types.User) error {
	query := `
		INSERT INTO users (email, password_hash, role, license)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.License,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return types.NewConflictError(types.ErrCodeConflict, "email already exists", "email")
		}
		return types.NewInternalError(types.ErrCodeInternalError, "failed to create user", err)
	}

	r.logger.WithFields(map[string]interface{}{
		"user_id": user.ID,
		"role":    user.Role,
	}).Info("User created")
	return nil
}

// GetByID retrieves an account by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*types.User, error) {
	query := `
		SELECT id, email, password_hash, role, license,
			reset_code, reset_expires, reset_verified, created_at, updated_at
		FROM users
		WHERE id = $1`

	return r.scanUser(r.db.QueryRowContext(ctx, query, id))
}

// GetByEmail retrieves an account by email, case-insensitively
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*types.User, error) {
	query := `
		SELECT id, email, password_hash, role, license,
			reset_code, reset_expires, reset_verified, created_at, updated_at
		FROM users
		WHERE lower(email) = lower($1)`

	return r.scanUser(r.db.QueryRowContext(ctx, query, email))
}

// UpdatePassword replaces the stored password hash
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	query := `
		UPDATE users
		SET password_hash = $2, updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, passwordHash)
	if err != nil {
		return types.NewInternalError(types.ErrCodeInternalError, "failed to update password", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return types.NewNotFoundError(types.ErrCodeNotFound, "User not found")
	}
	return nil
}

// SetResetChallenge stores the forgot-password challenge state
func (r *UserRepository) SetResetChallenge(ctx context.Context, id, code string, expires *time.Time, verified bool) error {
	query := `
		UPDATE users
		SET reset_code = $2, reset_expires = $3, reset_verified = $4, updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, code, expires, verified)
	if err != nil {
		return types.NewInternalError(types.ErrCodeInternalError, "failed to store reset challenge", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return types.NewNotFoundError(types.ErrCodeNotFound, "User not found")
	}
	return nil
}

func (r *UserRepository) scanUser(row *sql.Row) (*types.User, error) {
	var user types.User
	var resetExpires sql.NullTime

	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.License,
		&user.ResetCode,
		&resetExpires,
		&user.ResetVerified,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, types.NewNotFoundError(types.ErrCodeNotFound, "User not found")
	}
	if err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to read user", err)
	}

	if resetExpires.Valid {
		t := resetExpires.Time
		user.ResetExpires = &t
	}
	return &user, nil
}
