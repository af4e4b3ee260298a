package visit

import (
	"context"

	"github.com/lib/pq"

	"github.com/healthcard/healthcard-api/pkg/database"
	"github.com/healthcard/healthcard-api/pkg/logger"
	"github.com/healthcard/healthcard-api/pkg/types"
)

// Repository implements medical record persistence on Postgres
type Repository struct {
	db     *database.DB
	logger *logger.Logger
}

// NewRepository creates a new record repository
func NewRepository(db *database.DB, log *logger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: log,
	}
}

// CreateConsumingOTP appends the record and clears the patient's OTP
// state in one transaction. Either both happen or neither does; a
// crash can never leave a record without the consume.
func (r *Repository) CreateConsumingOTP(ctx context.Context, record *types.MedicalRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.NewInternalError(types.ErrCodeInternalError, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	insert := `
		INSERT INTO medical_records (patient_id, doctor_id, diagnosis, notes, treatments, visit_date)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))
		RETURNING id, visit_date, created_at`

	var visitDate interface{}
	if !record.VisitDate.IsZero() {
		visitDate = record.VisitDate
	}

	err = tx.QueryRowContext(ctx, insert,
		record.PatientID,
		record.DoctorID,
		record.Diagnosis,
		record.Notes,
		pq.Array(record.Treatments),
		visitDate,
	).Scan(&record.ID, &record.VisitDate, &record.CreatedAt)
	if err != nil {
		return types.NewInternalError(types.ErrCodeInternalError, "failed to create medical record", err)
	}

	consume := `
		UPDATE patients
		SET otp_code = '', otp_expires = NULL, otp_verified = FALSE,
			otp_requested_by = NULL, updated_at = NOW()
		WHERE id = $1`

	if _, err := tx.ExecContext(ctx, consume, record.PatientID); err != nil {
		return types.NewInternalError(types.ErrCodeInternalError, "failed to consume OTP challenge", err)
	}

	if err := tx.Commit(); err != nil {
		return types.NewInternalError(types.ErrCodeInternalError, "failed to commit record transaction", err)
	}

	r.logger.WithFields(map[string]interface{}{
		"record_id":  record.ID,
		"patient_id": record.PatientID,
		"doctor_id":  record.DoctorID,
	}).Info("Medical record appended")
	return nil
}

// ListByPatient returns history newest-first with the authoring doctor
func (r *Repository) ListByPatient(ctx context.Context, patientID string) ([]*types.MedicalRecord, error) {
	query := `
		SELECT r.id, r.patient_id, r.doctor_id, r.diagnosis, r.notes, r.treatments,
			r.visit_date, r.created_at,
			d.id, d.user_id, d.full_name, d.specialization, d.hospital_name,
			d.created_at, d.updated_at
		FROM medical_records r
		JOIN doctors d ON d.id = r.doctor_id
		WHERE r.patient_id = $1
		ORDER BY r.visit_date DESC, r.created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, patientID)
	if err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to list medical records", err)
	}
	defer rows.Close()

	records := make([]*types.MedicalRecord, 0)
	for rows.Next() {
		var rec types.MedicalRecord
		var doc types.Doctor
		err := rows.Scan(
			&rec.ID,
			&rec.PatientID,
			&rec.DoctorID,
			&rec.Diagnosis,
			&rec.Notes,
			pq.Array(&rec.Treatments),
			&rec.VisitDate,
			&rec.CreatedAt,
			&doc.ID,
			&doc.UserID,
			&doc.FullName,
			&doc.Specialization,
			&doc.HospitalName,
			&doc.CreatedAt,
			&doc.UpdatedAt,
		)
		if err != nil {
			return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to read medical record", err)
		}
		rec.Doctor = &doc
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to read medical records", err)
	}
	return records, nil
}
