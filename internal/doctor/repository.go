package doctor

import (
	"context"
	"database/sql"

	"github.com/healthcard/healthcard-api/pkg/database"
	"github.com/healthcard/healthcard-api/pkg/logger"
	"github.com/healthcard/healthcard-api/pkg/types"
)

// Repository implements doctor persistence on Postgres
type Repository struct {
	db     *database.DB
	logger *logger.Logger
}

// NewRepository creates a new doctor repository
func NewRepository(db *database.DB, log *logger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: log,
	}
}

// Create inserts a doctor profile
func (r *Repository) Create(ctx context.Context, doctor *types.Doctor) error {
	query := `
		INSERT INTO doctors (user_id, full_name, specialization, hospital_name)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		doctor.UserID,
		doctor.FullName,
		doctor.Specialization,
		doctor.HospitalName,
	).Scan(&doctor.ID, &doctor.CreatedAt, &doctor.UpdatedAt)

	if err != nil {
		return types.NewInternalError(types.ErrCodeInternalError, "failed to create doctor", err)
	}

	r.logger.WithFields(map[string]interface{}{"doctor_id": doctor.ID}).Info("Doctor profile created")
	return nil
}

// GetByUserID retrieves the doctor profile owned by an account
func (r *Repository) GetByUserID(ctx context.Context, userID string) (*types.Doctor, error) {
	query := `
		SELECT id, user_id, full_name, specialization, hospital_name, created_at, updated_at
		FROM doctors
		WHERE user_id = $1`

	var d types.Doctor
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&d.ID,
		&d.UserID,
		&d.FullName,
		&d.Specialization,
		&d.HospitalName,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, types.NewNotFoundError(types.ErrCodeNotFound, "Doctor profile not found")
	}
	if err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to read doctor", err)
	}
	return &d, nil
}

// Update persists the editable profile fields
func (r *Repository) Update(ctx context.Context, doctor *types.Doctor) error {
	query := `
		UPDATE doctors
		SET full_name = $2, specialization = $3, hospital_name = $4, updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query,
		doctor.ID,
		doctor.FullName,
		doctor.Specialization,
		doctor.HospitalName,
	)
	if err != nil {
		return types.NewInternalError(types.ErrCodeInternalError, "failed to update doctor", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return types.NewNotFoundError(types.ErrCodeNotFound, "Doctor profile not found")
	}
	return nil
}
