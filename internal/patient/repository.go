package patient

import (
	"context"
	"database/sql"
	"strings"

	"github.com/lib/pq"

	"github.com/healthcard/healthcard-api/pkg/database"
	"github.com/healthcard/healthcard-api/pkg/interfaces"
	"github.com/healthcard/healthcard-api/pkg/logger"
	"github.com/healthcard/healthcard-api/pkg/types"
)

const patientColumns = `
	id, user_id, full_name, health_card_id, qr_code_id, blood_group,
	dob, phone_number, relative_phone_number, address, allergies,
	otp_code, otp_expires, otp_verified, otp_requested_by,
	created_at, updated_at`

// Repository implements patient persistence on Postgres
type Repository struct {
	db     *database.DB
	logger *logger.Logger
}

// NewRepository creates a new patient repository
func NewRepository(db *database.DB, log *logger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: log,
	}
}

// Create inserts the patient row. A duplicate card or QR code ID
// surfaces as a Conflict error so the caller can regenerate and retry.
func (r *Repository) Create(ctx context.Context, patient *types.Patient) error {
	query := `
		INSERT INTO patients (user_id, full_name, health_card_id, qr_code_id)
		VALUES ($1, $2, $3, NULLIF($4, ''))
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		patient.UserID,
		patient.FullName,
		patient.HealthCardID,
		patient.QRCodeID,
	).Scan(&patient.ID, &patient.CreatedAt, &patient.UpdatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			if strings.Contains(pqErr.Constraint, "qr_code_id") {
				return types.NewConflictError(types.ErrCodeConflict, "QR code ID already exists", "qrCodeId")
			}
			return types.NewConflictError(types.ErrCodeConflict, "health card ID already exists", "healthCardId")
		}
		return types.NewInternalError(types.ErrCodeInternalError, "failed to create patient", err)
	}

	r.logger.WithFields(map[string]interface{}{
		"patient_id": patient.ID,
		"card_id":    patient.HealthCardID,
	}).Info("Patient profile created")
	return nil
}

// GetByUserID retrieves the patient row owned by an account
func (r *Repository) GetByUserID(ctx context.Context, userID string) (*types.Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients WHERE user_id = $1`
	return scanPatient(r.db.QueryRowContext(ctx, query, userID))
}

// GetByCardID retrieves a patient by health card ID
func (r *Repository) GetByCardID(ctx context.Context, cardID string) (*types.Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients WHERE health_card_id = $1`
	return scanPatient(r.db.QueryRowContext(ctx, query, cardID))
}

// GetByCardOrQRID retrieves a patient by either identifier
func (r *Repository) GetByCardOrQRID(ctx context.Context, id string) (*types.Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients WHERE health_card_id = $1 OR qr_code_id = $1`
	return scanPatient(r.db.QueryRowContext(ctx, query, id))
}

// UpdateProfile persists the mutable profile fields. Identity anchors
// and OTP state are untouched.
func (r *Repository) UpdateProfile(ctx context.Context, patient *types.Patient) error {
	query := `
		UPDATE patients
		SET full_name = $2, blood_group = $3, dob = $4, phone_number = $5,
			relative_phone_number = $6, address = $7, allergies = $8, updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query,
		patient.ID,
		patient.FullName,
		patient.BloodGroup,
		patient.DOB,
		patient.PhoneNumber,
		patient.RelativePhoneNumber,
		patient.Address,
		pq.Array(patient.Allergies),
	)
	if err != nil {
		return types.NewInternalError(types.ErrCodeInternalError, "failed to update patient profile", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return types.NewNotFoundError(types.ErrCodeNotFound, "Patient not found")
	}
	return nil
}

// SetOTPChallenge overwrites the live challenge with a fresh unverified one
func (r *Repository) SetOTPChallenge(ctx context.Context, patientID string, challenge interfaces.OTPChallenge) error {
	query := `
		UPDATE patients
		SET otp_code = $2, otp_expires = $3, otp_verified = FALSE,
			otp_requested_by = $4, updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, patientID, challenge.Code, challenge.Expires, challenge.RequestedBy)
	if err != nil {
		return types.NewInternalError(types.ErrCodeInternalError, "failed to store OTP challenge", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return types.NewNotFoundError(types.ErrCodeNotFound, "Patient not found")
	}
	return nil
}

// MarkOTPVerified flips the live challenge to verified
func (r *Repository) MarkOTPVerified(ctx context.Context, patientID string) error {
	query := `
		UPDATE patients
		SET otp_verified = TRUE, updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, patientID)
	if err != nil {
		return types.NewInternalError(types.ErrCodeInternalError, "failed to mark OTP verified", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return types.NewNotFoundError(types.ErrCodeNotFound, "Patient not found")
	}
	return nil
}

// ClearOTPChallenge resets the challenge state to idle
func (r *Repository) ClearOTPChallenge(ctx context.Context, patientID string) error {
	query := `
		UPDATE patients
		SET otp_code = '', otp_expires = NULL, otp_verified = FALSE,
			otp_requested_by = NULL, updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, patientID)
	if err != nil {
		return types.NewInternalError(types.ErrCodeInternalError, "failed to clear OTP challenge", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return types.NewNotFoundError(types.ErrCodeNotFound, "Patient not found")
	}
	return nil
}

// BackfillQRCodeIDs copies health_card_id into empty qr_code_id columns
func (r *Repository) BackfillQRCodeIDs(ctx context.Context) (int64, error) {
	query := `
		UPDATE patients
		SET qr_code_id = health_card_id, updated_at = NOW()
		WHERE qr_code_id IS NULL OR qr_code_id = ''`

	result, err := r.db.ExecContext(ctx, query)
	if err != nil {
		return 0, types.NewInternalError(types.ErrCodeInternalError, "failed to backfill QR code IDs", err)
	}
	rows, _ := result.RowsAffected()
	return rows, nil
}

// scanPatient reads one patient row with its nullable columns
func scanPatient(row *sql.Row) (*types.Patient, error) {
	var p types.Patient
	var qrCodeID, otpRequestedBy sql.NullString
	var dob, otpExpires sql.NullTime

	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.FullName,
		&p.HealthCardID,
		&qrCodeID,
		&p.BloodGroup,
		&dob,
		&p.PhoneNumber,
		&p.RelativePhoneNumber,
		&p.Address,
		pq.Array(&p.Allergies),
		&p.OTPCode,
		&otpExpires,
		&p.OTPVerified,
		&otpRequestedBy,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, types.NewNotFoundError(types.ErrCodeNotFound, "Patient not found")
	}
	if err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to read patient", err)
	}

	p.QRCodeID = qrCodeID.String
	p.OTPRequestedBy = otpRequestedBy.String
	if dob.Valid {
		t := dob.Time
		p.DOB = &t
	}
	if otpExpires.Valid {
		t := otpExpires.Time
		p.OTPExpires = &t
	}
	return &p, nil
}
