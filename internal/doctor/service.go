// Package doctor implements the doctor self-service profile.
package doctor

import (
	"context"

	"github.com/healthcard/healthcard-api/pkg/interfaces"
	"github.com/healthcard/healthcard-api/pkg/logger"
	"github.com/healthcard/healthcard-api/pkg/types"
	"github.com/healthcard/healthcard-api/pkg/validate"
)

// Service implements doctor profile operations
type Service struct {
	store  *interfaces.Store
	logger *logger.Logger
}

// NewService creates the doctor service
func NewService(store *interfaces.Store, log *logger.Logger) *Service {
	return &Service{
		store:  store,
		logger: log,
	}
}

// Me returns the caller's doctor profile
func (s *Service) Me(ctx context.Context, userID string) (*types.Doctor, error) {
	return s.store.Doctors.GetByUserID(ctx, userID)
}

// UpdateMe applies a partial profile update
func (s *Service) UpdateMe(ctx context.Context, userID string, update *types.DoctorUpdate) (*types.Doctor, error) {
	doctor, err := s.store.Doctors.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if update.FullName != nil {
		name := validate.NormalizeFullName(*update.FullName)
		if !validate.IsValidFullName(name) {
			return nil, types.NewValidationError(types.ErrCodeInvalidInput, "A valid full name is required")
		}
		doctor.FullName = name
	}
	if update.Specialization != nil {
		doctor.Specialization = validate.SanitizeText(*update.Specialization, 100)
	}
	if update.HospitalName != nil {
		doctor.HospitalName = validate.SanitizeText(*update.HospitalName, 100)
	}

	if err := s.store.Doctors.Update(ctx, doctor); err != nil {
		return nil, err
	}

	s.logger.Audit(userID, "update_profile", "doctor", true, nil)
	return doctor, nil
}
