// Package visit implements the doctor-side visit workflow: issuing and
// verifying the patient-relayed one-time code, and the record append
// that consumes it. This is the only path by which a patient's history
// grows.
package visit

import (
	"context"
	"fmt"
	"time"

	"github.com/healthcard/healthcard-api/internal/patient"
	"github.com/healthcard/healthcard-api/pkg/cardid"
	"github.com/healthcard/healthcard-api/pkg/interfaces"
	"github.com/healthcard/healthcard-api/pkg/logger"
	"github.com/healthcard/healthcard-api/pkg/monitoring"
	"github.com/healthcard/healthcard-api/pkg/types"
	"github.com/healthcard/healthcard-api/pkg/validate"
)

// Service implements the OTP challenge lifecycle and record appends
type Service struct {
	store    *interfaces.Store
	notifier interfaces.Notifier
	logger   *logger.Logger
	appName  string

	// now is swappable in tests to drive expiry
	now func() time.Time
}

// NewService creates the visit service
func NewService(store *interfaces.Store, notifier interfaces.Notifier, log *logger.Logger, appName string) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		logger:   log,
		appName:  appName,
		now:      time.Now,
	}
}

// RequestOTP issues a fresh challenge for the patient and mails the
// code to them. Any prior challenge is overwritten regardless of who
// requested it: only the latest code is ever valid. If the email
// cannot be confirmed sent, the issued code is rolled back.
func (s *Service) RequestOTP(ctx context.Context, doctorUserID string, req *types.OTPRequest) (*types.OTPResponse, error) {
	p, err := s.lookupPatient(ctx, req.HealthCardID)
	if err != nil {
		monitoring.RecordOTPTransition("issue", false)
		return nil, err
	}

	account, err := s.store.Users.GetByID(ctx, p.UserID)
	if err != nil || account.Email == "" {
		monitoring.RecordOTPTransition("issue", false)
		return nil, types.NewNotFoundError(types.ErrCodeNotFound, "Patient email not found")
	}

	if !s.notifier.Configured() {
		monitoring.RecordOTPTransition("issue", false)
		return nil, types.NewUnavailableError(types.ErrCodeServiceUnavailable, "Email service is not configured")
	}

	code, err := cardid.GenerateOTP()
	if err != nil {
		monitoring.RecordOTPTransition("issue", false)
		return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to generate OTP", err)
	}

	challenge := interfaces.OTPChallenge{
		Code:        code,
		Expires:     s.now().Add(cardid.OTPTTL),
		RequestedBy: doctorUserID,
	}
	if err := s.store.Patients.SetOTPChallenge(ctx, p.ID, challenge); err != nil {
		monitoring.RecordOTPTransition("issue", false)
		return nil, err
	}

	minutes := int(cardid.OTPTTL / time.Minute)
	err = s.notifier.SendCode(ctx, types.CodeEmail{
		Channel:          types.ChannelVisitOTP,
		AppName:          s.appName,
		ToEmail:          account.Email,
		ResetCode:        code,
		ExpiresInMinutes: minutes,
		Subject:          fmt.Sprintf("%s visit verification code", s.appName),
		MessageText:      fmt.Sprintf("A doctor is requesting to update your %s record. Your verification code is %s. It expires in %d minutes.", s.appName, code, minutes),
	})
	if err != nil {
		// An Issued state the patient never heard about is a dead end.
		if clearErr := s.store.Patients.ClearOTPChallenge(ctx, p.ID); clearErr != nil {
			s.logger.WithFields(map[string]interface{}{
				"patient_id": p.ID,
			}).WithError(clearErr).Error("Failed to roll back OTP challenge")
		}
		monitoring.RecordOTPTransition("issue", false)
		return nil, err
	}

	monitoring.RecordOTPTransition("issue", true)
	s.logger.Audit(doctorUserID, "request_otp", "patient/"+p.HealthCardID, true, nil)
	return &types.OTPResponse{Success: true, Message: "OTP sent to patient email"}, nil
}

// VerifyOTP checks the patient-relayed code. The challenge must belong
// to the calling doctor; a matching code issued for someone else is
// rejected before the code is even compared.
func (s *Service) VerifyOTP(ctx context.Context, doctorUserID string, req *types.OTPVerifyRequest) (*types.OTPResponse, error) {
	p, err := s.lookupPatient(ctx, req.HealthCardID)
	if err != nil {
		monitoring.RecordOTPTransition("verify", false)
		return nil, err
	}

	if p.OTPRequestedBy == "" || p.OTPRequestedBy != doctorUserID {
		monitoring.RecordOTPTransition("verify", false)
		s.logger.Security("otp_requester_mismatch", doctorUserID, map[string]interface{}{
			"card_id": p.HealthCardID,
		})
		return nil, types.NewForbiddenError(types.ErrCodeForbidden, "OTP request not found for this doctor")
	}

	if !validate.IsValidOTP(req.OTP) || p.OTPCode == "" || p.OTPCode != req.OTP ||
		p.OTPExpires == nil || s.now().After(*p.OTPExpires) {
		monitoring.RecordOTPTransition("verify", false)
		return nil, types.NewCodeInvalidError(types.ErrCodeInvalidOrExpired, "Invalid or expired OTP")
	}

	if err := s.store.Patients.MarkOTPVerified(ctx, p.ID); err != nil {
		monitoring.RecordOTPTransition("verify", false)
		return nil, err
	}

	monitoring.RecordOTPTransition("verify", true)
	s.logger.Audit(doctorUserID, "verify_otp", "patient/"+p.HealthCardID, true, nil)
	return &types.OTPResponse{Success: true, Message: "OTP verified"}, nil
}

// AddRecord appends one visit record. Preconditions run in a fixed
// order: card format, payload, patient existence, verified unexpired
// challenge bound to the caller, doctor profile. The append and the
// challenge consume happen atomically.
func (s *Service) AddRecord(ctx context.Context, doctorUserID string, req *types.AddRecordRequest) ([]*types.MedicalRecord, error) {
	card := cardid.Normalize(req.HealthCardID)
	if !cardid.IsValid(card) {
		monitoring.RecordAppend(false)
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "Invalid health card ID")
	}

	diagnosis := validate.SanitizeText(req.Diagnosis, validate.MaxDiagnosisLength)
	if len(diagnosis) < validate.MinDiagnosisLength {
		monitoring.RecordAppend(false)
		return nil, types.NewValidationError(types.ErrCodeInvalidInput,
			fmt.Sprintf("Diagnosis must be at least %d characters", validate.MinDiagnosisLength))
	}
	notes := validate.SanitizeText(req.Notes, validate.MaxTextLength)
	treatments := validate.NormalizeList(req.Treatments)

	p, err := s.store.Patients.GetByCardOrQRID(ctx, card)
	if err != nil {
		monitoring.RecordAppend(false)
		return nil, err
	}

	if err := s.checkConsumableChallenge(p, doctorUserID); err != nil {
		monitoring.RecordAppend(false)
		return nil, err
	}

	doctor, err := s.store.Doctors.GetByUserID(ctx, doctorUserID)
	if err != nil {
		monitoring.RecordAppend(false)
		return nil, err
	}

	record := &types.MedicalRecord{
		PatientID:  p.ID,
		DoctorID:   doctor.ID,
		Diagnosis:  diagnosis,
		Notes:      notes,
		Treatments: treatments,
	}
	if req.VisitDate != nil {
		record.VisitDate = *req.VisitDate
	}

	if err := s.store.Records.CreateConsumingOTP(ctx, record); err != nil {
		monitoring.RecordAppend(false)
		return nil, err
	}

	monitoring.RecordAppend(true)
	monitoring.RecordOTPTransition("consume", true)
	s.logger.Audit(doctorUserID, "append_record", "patient/"+p.HealthCardID, true, map[string]interface{}{
		"record_id": record.ID,
	})

	return s.store.Records.ListByPatient(ctx, p.ID)
}

// checkConsumableChallenge enforces that a verified, unexpired
// challenge bound to the acting doctor is live. Expiry is re-checked
// here even though verification already checked it: a code verified at
// minute 9 must not unlock an append at minute 11.
func (s *Service) checkConsumableChallenge(p *types.Patient, doctorUserID string) error {
	if p.OTPCode == "" || !p.OTPVerified || p.OTPRequestedBy != doctorUserID {
		return types.NewForbiddenError(types.ErrCodeForbidden, "OTP verification required")
	}
	if p.OTPExpires == nil || s.now().After(*p.OTPExpires) {
		return types.NewCodeInvalidError(types.ErrCodeInvalidOrExpired, "Invalid or expired OTP")
	}
	return nil
}

// GetPatient returns the doctor-facing patient view with full history
func (s *Service) GetPatient(ctx context.Context, rawID string) (*types.PatientView, error) {
	p, err := s.lookupPatient(ctx, rawID)
	if err != nil {
		return nil, err
	}

	history, err := s.store.Records.ListByPatient(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	return types.NewPatientView(p, history), nil
}

// UpdatePatient applies an alias-normalized profile patch on behalf of
// a doctor, typically to complete a partial profile before a visit.
func (s *Service) UpdatePatient(ctx context.Context, doctorUserID, rawID string, patch *types.PatientPatch) (*types.PatientView, error) {
	p, err := s.lookupPatient(ctx, rawID)
	if err != nil {
		return nil, err
	}

	if err := patient.ApplyPatch(p, patch); err != nil {
		return nil, err
	}
	if err := s.store.Patients.UpdateProfile(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Audit(doctorUserID, "update_patient", "patient/"+p.HealthCardID, true, nil)

	history, err := s.store.Records.ListByPatient(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	return types.NewPatientView(p, history), nil
}

// lookupPatient normalizes and validates the identifier, then matches
// either the card or QR ID.
func (s *Service) lookupPatient(ctx context.Context, rawID string) (*types.Patient, error) {
	id := cardid.Normalize(rawID)
	if !cardid.IsValid(id) {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "Invalid health card ID")
	}
	return s.store.Patients.GetByCardOrQRID(ctx, id)
}
