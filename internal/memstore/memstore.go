// Package memstore is the in-memory storage backend. It offers the
// same repository contract as the Postgres backend behind a single
// mutex, which makes it both the demo/offline mode and the fixture for
// service-level tests.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/healthcard/healthcard-api/pkg/interfaces"
	"github.com/healthcard/healthcard-api/pkg/types"
)

// Store holds all in-memory state. Repository views share the store
// and its mutex, so cross-table operations stay atomic.
type Store struct {
	mu       sync.RWMutex
	users    map[string]*types.User
	patients map[string]*types.Patient
	doctors  map[string]*types.Doctor
	records  map[string][]*types.MedicalRecord // keyed by patient ID
}

// New creates an empty store
func New() *Store {
	return &Store{
		users:    make(map[string]*types.User),
		patients: make(map[string]*types.Patient),
		doctors:  make(map[string]*types.Doctor),
		records:  make(map[string][]*types.MedicalRecord),
	}
}

// Repositories returns the typed repository views over this store
func (s *Store) Repositories() *interfaces.Store {
	return &interfaces.Store{
		Users:    &userRepo{s},
		Patients: &patientRepo{s},
		Doctors:  &doctorRepo{s},
		Records:  &recordRepo{s},
	}
}

type userRepo struct{ s *Store }

func (r *userRepo) Create(ctx context.Context, user *types.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	lower := strings.ToLower(user.Email)
	for _, existing := range r.s.users {
		if strings.ToLower(existing.Email) == lower {
			return types.NewConflictError(types.ErrCodeConflict, "email already exists", "email")
		}
	}

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	stored := *user
	r.s.users[user.ID] = &stored
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*types.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	user, ok := r.s.users[id]
	if !ok {
		return nil, types.NewNotFoundError(types.ErrCodeNotFound, "User not found")
	}
	out := *user
	return &out, nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*types.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	lower := strings.ToLower(email)
	for _, user := range r.s.users {
		if strings.ToLower(user.Email) == lower {
			out := *user
			return &out, nil
		}
	}
	return nil, types.NewNotFoundError(types.ErrCodeNotFound, "User not found")
}

func (r *userRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	user, ok := r.s.users[id]
	if !ok {
		return types.NewNotFoundError(types.ErrCodeNotFound, "User not found")
	}
	user.PasswordHash = passwordHash
	user.UpdatedAt = time.Now()
	return nil
}

func (r *userRepo) SetResetChallenge(ctx context.Context, id, code string, expires *time.Time, verified bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	user, ok := r.s.users[id]
	if !ok {
		return types.NewNotFoundError(types.ErrCodeNotFound, "User not found")
	}
	user.ResetCode = code
	user.ResetExpires = expires
	user.ResetVerified = verified
	user.UpdatedAt = time.Now()
	return nil
}

type patientRepo struct{ s *Store }

func (r *patientRepo) Create(ctx context.Context, patient *types.Patient) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.patients {
		if existing.HealthCardID == patient.HealthCardID {
			return types.NewConflictError(types.ErrCodeConflict, "health card ID already exists", "healthCardId")
		}
		if patient.QRCodeID != "" && existing.QRCodeID == patient.QRCodeID {
			return types.NewConflictError(types.ErrCodeConflict, "QR code ID already exists", "qrCodeId")
		}
	}

	if patient.ID == "" {
		patient.ID = uuid.New().String()
	}
	now := time.Now()
	patient.CreatedAt = now
	patient.UpdatedAt = now

	r.s.patients[patient.ID] = clonePatient(patient)
	return nil
}

func (r *patientRepo) GetByUserID(ctx context.Context, userID string) (*types.Patient, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, patient := range r.s.patients {
		if patient.UserID == userID {
			return clonePatient(patient), nil
		}
	}
	return nil, types.NewNotFoundError(types.ErrCodeNotFound, "Patient not found")
}

func (r *patientRepo) GetByCardID(ctx context.Context, cardID string) (*types.Patient, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, patient := range r.s.patients {
		if patient.HealthCardID == cardID {
			return clonePatient(patient), nil
		}
	}
	return nil, types.NewNotFoundError(types.ErrCodeNotFound, "Patient not found")
}

func (r *patientRepo) GetByCardOrQRID(ctx context.Context, id string) (*types.Patient, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, patient := range r.s.patients {
		if patient.HealthCardID == id || patient.QRCodeID == id {
			return clonePatient(patient), nil
		}
	}
	return nil, types.NewNotFoundError(types.ErrCodeNotFound, "Patient not found")
}

func (r *patientRepo) UpdateProfile(ctx context.Context, patient *types.Patient) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.patients[patient.ID]
	if !ok {
		return types.NewNotFoundError(types.ErrCodeNotFound, "Patient not found")
	}

	stored.FullName = patient.FullName
	stored.BloodGroup = patient.BloodGroup
	stored.DOB = patient.DOB
	stored.PhoneNumber = patient.PhoneNumber
	stored.RelativePhoneNumber = patient.RelativePhoneNumber
	stored.Address = patient.Address
	stored.Allergies = append([]string(nil), patient.Allergies...)
	stored.UpdatedAt = time.Now()
	return nil
}

func (r *patientRepo) SetOTPChallenge(ctx context.Context, patientID string, challenge interfaces.OTPChallenge) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.patients[patientID]
	if !ok {
		return types.NewNotFoundError(types.ErrCodeNotFound, "Patient not found")
	}

	expires := challenge.Expires
	stored.OTPCode = challenge.Code
	stored.OTPExpires = &expires
	stored.OTPVerified = false
	stored.OTPRequestedBy = challenge.RequestedBy
	stored.UpdatedAt = time.Now()
	return nil
}

func (r *patientRepo) MarkOTPVerified(ctx context.Context, patientID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.patients[patientID]
	if !ok {
		return types.NewNotFoundError(types.ErrCodeNotFound, "Patient not found")
	}
	stored.OTPVerified = true
	stored.UpdatedAt = time.Now()
	return nil
}

func (r *patientRepo) ClearOTPChallenge(ctx context.Context, patientID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.patients[patientID]
	if !ok {
		return types.NewNotFoundError(types.ErrCodeNotFound, "Patient not found")
	}
	clearOTP(stored)
	return nil
}

func (r *patientRepo) BackfillQRCodeIDs(ctx context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for _, patient := range r.s.patients {
		if patient.QRCodeID == "" {
			patient.QRCodeID = patient.HealthCardID
			n++
		}
	}
	return n, nil
}

type doctorRepo struct{ s *Store }

func (r *doctorRepo) Create(ctx context.Context, doctor *types.Doctor) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if doctor.ID == "" {
		doctor.ID = uuid.New().String()
	}
	now := time.Now()
	doctor.CreatedAt = now
	doctor.UpdatedAt = now

	stored := *doctor
	r.s.doctors[doctor.ID] = &stored
	return nil
}

func (r *doctorRepo) GetByUserID(ctx context.Context, userID string) (*types.Doctor, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, doctor := range r.s.doctors {
		if doctor.UserID == userID {
			out := *doctor
			return &out, nil
		}
	}
	return nil, types.NewNotFoundError(types.ErrCodeNotFound, "Doctor profile not found")
}

func (r *doctorRepo) Update(ctx context.Context, doctor *types.Doctor) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.doctors[doctor.ID]
	if !ok {
		return types.NewNotFoundError(types.ErrCodeNotFound, "Doctor profile not found")
	}
	stored.FullName = doctor.FullName
	stored.Specialization = doctor.Specialization
	stored.HospitalName = doctor.HospitalName
	stored.UpdatedAt = time.Now()
	return nil
}

type recordRepo struct{ s *Store }

// CreateConsumingOTP appends the record and clears the patient's OTP
// state under one lock acquisition.
func (r *recordRepo) CreateConsumingOTP(ctx context.Context, record *types.MedicalRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	patient, ok := r.s.patients[record.PatientID]
	if !ok {
		return types.NewNotFoundError(types.ErrCodeNotFound, "Patient not found")
	}

	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.VisitDate.IsZero() {
		record.VisitDate = time.Now()
	}
	record.CreatedAt = time.Now()

	stored := *record
	stored.Treatments = append([]string(nil), record.Treatments...)
	stored.Doctor = nil
	r.s.records[record.PatientID] = append(r.s.records[record.PatientID], &stored)

	clearOTP(patient)
	return nil
}

func (r *recordRepo) ListByPatient(ctx context.Context, patientID string) ([]*types.MedicalRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	stored := r.s.records[patientID]
	out := make([]*types.MedicalRecord, 0, len(stored))
	for _, record := range stored {
		entry := *record
		entry.Treatments = append([]string(nil), record.Treatments...)
		if doctor, ok := r.s.doctors[record.DoctorID]; ok {
			d := *doctor
			entry.Doctor = &d
		}
		out = append(out, &entry)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].VisitDate.After(out[j].VisitDate)
	})
	return out, nil
}

func clearOTP(p *types.Patient) {
	p.OTPCode = ""
	p.OTPExpires = nil
	p.OTPVerified = false
	p.OTPRequestedBy = ""
	p.UpdatedAt = time.Now()
}

func clonePatient(p *types.Patient) *types.Patient {
	out := *p
	out.Allergies = append([]string(nil), p.Allergies...)
	return &out
}
