// Package interfaces defines the contracts between the workflow
// services and their collaborators. The core logic depends only on
// these interfaces, never on a concrete backend: the Postgres
// repositories and the in-memory store are interchangeable behind them.
package interfaces

import (
	"context"
	"time"

	"github.com/healthcard/healthcard-api/pkg/types"
)

// UserRepository persists accounts
type UserRepository interface {
	Create(ctx context.Context, user *types.User) error
	GetByID(ctx context.Context, id string) (*types.User, error)
	GetByEmail(ctx context.Context, email string) (*types.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error

	// SetResetChallenge stores the forgot-password state. A nil expires
	// with an empty code clears the challenge.
	SetResetChallenge(ctx context.Context, id, code string, expires *time.Time, verified bool) error
}

// OTPChallenge is the stored doctor-visit challenge state
type OTPChallenge struct {
	Code        string
	Expires     time.Time
	RequestedBy string
}

// PatientRepository persists patient profiles and their OTP state
type PatientRepository interface {
	// Create inserts the patient row. Implementations return a Conflict
	// error on a duplicate health card or QR code ID; callers retry
	// with a freshly generated ID.
	Create(ctx context.Context, patient *types.Patient) error

	GetByUserID(ctx context.Context, userID string) (*types.Patient, error)
	GetByCardID(ctx context.Context, cardID string) (*types.Patient, error)

	// GetByCardOrQRID matches either identifier, covering legacy rows
	// where the two diverge.
	GetByCardOrQRID(ctx context.Context, id string) (*types.Patient, error)

	// UpdateProfile persists the mutable profile fields (blood group,
	// dob, phones, address, allergies, full name). Identity anchors and
	// OTP state are never written by this call.
	UpdateProfile(ctx context.Context, patient *types.Patient) error

	// SetOTPChallenge overwrites any prior challenge with verified=false.
	SetOTPChallenge(ctx context.Context, patientID string, challenge OTPChallenge) error

	// MarkOTPVerified flips the stored challenge to verified.
	MarkOTPVerified(ctx context.Context, patientID string) error

	// ClearOTPChallenge resets the challenge state to idle.
	ClearOTPChallenge(ctx context.Context, patientID string) error

	// BackfillQRCodeIDs copies health_card_id into empty qr_code_id
	// columns. Run best-effort at startup; failures are non-fatal.
	BackfillQRCodeIDs(ctx context.Context) (int64, error)
}

// DoctorRepository persists doctor profiles
type DoctorRepository interface {
	Create(ctx context.Context, doctor *types.Doctor) error
	GetByUserID(ctx context.Context, userID string) (*types.Doctor, error)
	Update(ctx context.Context, doctor *types.Doctor) error
}

// RecordRepository persists the append-only visit history
type RecordRepository interface {
	// CreateConsumingOTP appends the record and clears the patient's
	// OTP challenge in a single storage transaction, so a crash can
	// never leave a record without the consume or the consume without
	// the record.
	CreateConsumingOTP(ctx context.Context, record *types.MedicalRecord) error

	// ListByPatient returns history newest-first by visit date with the
	// authoring doctor populated.
	ListByPatient(ctx context.Context, patientID string) ([]*types.MedicalRecord, error)
}

// Notifier delivers one-time codes out-of-band
type Notifier interface {
	// Configured reports whether a delivery channel exists at all.
	// Unconfigured means hard unavailability, never a silent skip.
	Configured() bool

	// SendCode delivers a code email. A nil error means delivery was
	// confirmed by the channel; anything else and the caller must roll
	// back the issued code.
	SendCode(ctx context.Context, email types.CodeEmail) error
}

// Store bundles the repositories of one storage backend
type Store struct {
	Users    UserRepository
	Patients PatientRepository
	Doctors  DoctorRepository
	Records  RecordRepository
}
