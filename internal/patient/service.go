// Package patient implements the patient self-service profile: the
// card-holder's own view of their record and the profile fields they
// may edit. Medical history is read-only here; only doctors append.
package patient

import (
	"context"

	"github.com/healthcard/healthcard-api/pkg/interfaces"
	"github.com/healthcard/healthcard-api/pkg/logger"
	"github.com/healthcard/healthcard-api/pkg/types"
	"github.com/healthcard/healthcard-api/pkg/validate"
)

// Service implements patient profile operations
type Service struct {
	store  *interfaces.Store
	logger *logger.Logger
}

// NewService creates the patient service
func NewService(store *interfaces.Store, log *logger.Logger) *Service {
	return &Service{
		store:  store,
		logger: log,
	}
}

// Me returns the card-holder's own profile with full visit history
func (s *Service) Me(ctx context.Context, userID string) (*types.PatientView, error) {
	patient, err := s.store.Patients.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	history, err := s.store.Records.ListByPatient(ctx, patient.ID)
	if err != nil {
		return nil, err
	}
	return types.NewPatientView(patient, history), nil
}

// UpdateMe applies a partial profile update. Absent fields keep their
// stored value; present fields are normalized then validated. Identity
// anchors cannot be changed here.
func (s *Service) UpdateMe(ctx context.Context, userID string, patch *types.PatientPatch) (*types.PatientView, error) {
	patient, err := s.store.Patients.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := ApplyPatch(patient, patch); err != nil {
		return nil, err
	}

	if err := s.store.Patients.UpdateProfile(ctx, patient); err != nil {
		return nil, err
	}

	s.logger.Audit(userID, "update_profile", "patient", true, nil)

	history, err := s.store.Records.ListByPatient(ctx, patient.ID)
	if err != nil {
		return nil, err
	}
	return types.NewPatientView(patient, history), nil
}

// ApplyPatch mutates the patient in place, validating each supplied
// field. Shared with the doctor-side patient update, which accepts the
// same payload shape.
func ApplyPatch(patient *types.Patient, patch *types.PatientPatch) error {
	if patch.DOB != nil {
		dob, ok := validate.ParseDOB(*patch.DOB)
		if !ok {
			return types.NewValidationError(types.ErrCodeInvalidInput, "Invalid date of birth")
		}
		patient.DOB = dob
	}

	if patch.BloodGroup != nil {
		bg := validate.NormalizeBloodGroup(*patch.BloodGroup)
		if !validate.IsValidBloodGroup(bg) {
			return types.NewValidationError(types.ErrCodeInvalidInput, "Invalid blood group")
		}
		patient.BloodGroup = bg
	}

	if patch.Allergies != nil {
		patient.Allergies = validate.NormalizeList(*patch.Allergies)
	}

	if phone, ok := patch.ResolvedPhone(); ok {
		normalized := validate.NormalizePhone(phone)
		if !validate.IsValidPhone(normalized) {
			return types.NewValidationError(types.ErrCodeInvalidInput, "Invalid phone number")
		}
		patient.PhoneNumber = normalized
	}

	if phone, ok := patch.ResolvedRelativePhone(); ok {
		normalized := validate.NormalizePhone(phone)
		if !validate.IsValidPhone(normalized) {
			return types.NewValidationError(types.ErrCodeInvalidInput, "Invalid relative phone number")
		}
		patient.RelativePhoneNumber = normalized
	}

	if patch.Address != nil {
		patient.Address = validate.SanitizeText(*patch.Address, 200)
	}

	return nil
}
