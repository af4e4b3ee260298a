// Package auth implements accounts: registration with role profile
// creation, login, password change and the code-gated forgot-password
// flow. Patient registration also issues the permanent health card ID.
package auth

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/healthcard/healthcard-api/pkg/cardid"
	"github.com/healthcard/healthcard-api/pkg/interfaces"
	"github.com/healthcard/healthcard-api/pkg/logger"
	"github.com/healthcard/healthcard-api/pkg/types"
	"github.com/healthcard/healthcard-api/pkg/validate"
)

// cardIssueAttempts bounds the generate-insert retry loop on a card ID
// collision. The generator is random; collisions are rare and retrying
// a handful of times is enough.
const cardIssueAttempts = 5

// Service implements account operations
type Service struct {
	store    *interfaces.Store
	notifier interfaces.Notifier
	tokens   *TokenManager
	logger   *logger.Logger
	appName  string
}

// NewService creates the auth service
func NewService(store *interfaces.Store, notifier interfaces.Notifier, tokens *TokenManager, log *logger.Logger, appName string) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		tokens:   tokens,
		logger:   log,
		appName:  appName,
	}
}

// Register creates an account plus its role profile and returns a
// signed token. Patients get a health card ID here; it never changes
// afterwards.
func (s *Service) Register(ctx context.Context, req *types.RegisterRequest) (*types.AuthResponse, error) {
	email := validate.NormalizeEmail(req.Email)
	if !validate.IsValidEmail(email) {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "A valid email is required")
	}
	if !validate.IsValidPassword(req.Password) {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput,
			fmt.Sprintf("Password must be between %d and %d characters", validate.MinPasswordLength, validate.MaxPasswordLength))
	}

	fullName := validate.NormalizeFullName(req.DisplayName())
	if !validate.IsValidFullName(fullName) {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "A valid full name is required")
	}

	if req.Role != types.RolePatient && req.Role != types.RoleDoctor {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "Role must be patient or doctor")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to hash password", err)
	}

	user := &types.User{
		Email:        email,
		PasswordHash: string(hash),
		Role:         req.Role,
		License:      validate.SanitizeText(req.License, 100),
	}
	if err := s.store.Users.Create(ctx, user); err != nil {
		return nil, err
	}

	authUser := &types.AuthUser{
		ID:       user.ID,
		Email:    user.Email,
		Role:     user.Role,
		FullName: fullName,
	}

	switch req.Role {
	case types.RolePatient:
		patient, err := s.issuePatient(ctx, user.ID, fullName)
		if err != nil {
			return nil, err
		}
		authUser.CardID = patient.HealthCardID
		authUser.QRCodeID = patient.QRCodeID

	case types.RoleDoctor:
		doctor := &types.Doctor{
			UserID:   user.ID,
			FullName: fullName,
		}
		if err := s.store.Doctors.Create(ctx, doctor); err != nil {
			return nil, err
		}
	}

	token, err := s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		return nil, err
	}

	s.logger.Audit(user.ID, "register", "user", true, map[string]interface{}{"role": user.Role})
	return &types.AuthResponse{Token: token, Role: user.Role, User: authUser}, nil
}

// issuePatient creates the patient row, retrying card ID generation on
// a uniqueness collision.
func (s *Service) issuePatient(ctx context.Context, userID, fullName string) (*types.Patient, error) {
	var lastErr error
	for attempt := 0; attempt < cardIssueAttempts; attempt++ {
		card, err := cardid.Generate()
		if err != nil {
			return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to generate card ID", err)
		}

		patient := &types.Patient{
			UserID:       userID,
			FullName:     fullName,
			HealthCardID: card,
			QRCodeID:     card,
		}
		err = s.store.Patients.Create(ctx, patient)
		if err == nil {
			return patient, nil
		}
		if !types.IsType(err, types.ErrorTypeConflict) {
			return nil, err
		}
		lastErr = err
	}
	return nil, types.NewInternalError(types.ErrCodeInternalError, "failed to issue a unique card ID", lastErr)
}

// Login authenticates a user by email and password. Wrong email and
// wrong password produce the same error.
func (s *Service) Login(ctx context.Context, creds *types.Credentials) (*types.AuthResponse, error) {
	user, err := s.store.Users.GetByEmail(ctx, validate.NormalizeEmail(creds.Email))
	if err != nil {
		if types.IsType(err, types.ErrorTypeNotFound) {
			return nil, types.NewUnauthorizedError(types.ErrCodeUnauthorized, "Invalid email or password")
		}
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password)) != nil {
		s.logger.Security("login_failed", user.ID, map[string]interface{}{"email": user.Email})
		return nil, types.NewUnauthorizedError(types.ErrCodeUnauthorized, "Invalid email or password")
	}

	token, err := s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		return nil, err
	}

	authUser, err := s.authUser(ctx, user)
	if err != nil {
		return nil, err
	}

	s.logger.Audit(user.ID, "login", "user", true, nil)
	return &types.AuthResponse{Token: token, Role: user.Role, User: authUser}, nil
}

// Me returns the role-shaped account view for a token holder
func (s *Service) Me(ctx context.Context, userID string) (*types.AuthUser, error) {
	user, err := s.store.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.authUser(ctx, user)
}

// ChangePassword replaces the password of an authenticated user
func (s *Service) ChangePassword(ctx context.Context, userID string, req *types.ChangePasswordRequest) error {
	user, err := s.store.Users.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)) != nil {
		return types.NewUnauthorizedError(types.ErrCodeUnauthorized, "Current password is incorrect")
	}
	if !validate.IsValidPassword(req.NewPassword) {
		return types.NewValidationError(types.ErrCodeInvalidInput,
			fmt.Sprintf("Password must be between %d and %d characters", validate.MinPasswordLength, validate.MaxPasswordLength))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return types.NewInternalError(types.ErrCodeInternalError, "failed to hash password", err)
	}

	if err := s.store.Users.UpdatePassword(ctx, user.ID, string(hash)); err != nil {
		return err
	}

	s.logger.Audit(user.ID, "change_password", "user", true, nil)
	return nil
}

// ForgotPassword issues a reset code and emails it. An unknown email
// returns success without issuing anything, so the endpoint cannot be
// used to probe which addresses have accounts.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	email = validate.NormalizeEmail(email)
	if !validate.IsValidEmail(email) {
		return types.NewValidationError(types.ErrCodeInvalidInput, "A valid email is required")
	}

	user, err := s.store.Users.GetByEmail(ctx, email)
	if err != nil {
		if types.IsType(err, types.ErrorTypeNotFound) {
			return nil
		}
		return err
	}

	if !s.notifier.Configured() {
		return types.NewUnavailableError(types.ErrCodeServiceUnavailable, "Email service is not configured")
	}

	code, err := cardid.GenerateOTP()
	if err != nil {
		return types.NewInternalError(types.ErrCodeInternalError, "failed to generate reset code", err)
	}
	expires := time.Now().Add(cardid.OTPTTL)

	if err := s.store.Users.SetResetChallenge(ctx, user.ID, code, &expires, false); err != nil {
		return err
	}

	minutes := int(cardid.OTPTTL / time.Minute)
	err = s.notifier.SendCode(ctx, types.CodeEmail{
		Channel:          types.ChannelPasswordReset,
		AppName:          s.appName,
		ToEmail:          user.Email,
		ResetCode:        code,
		ExpiresInMinutes: minutes,
		Subject:          fmt.Sprintf("%s password reset code", s.appName),
		MessageText:      fmt.Sprintf("Your %s password reset code is %s. It expires in %d minutes.", s.appName, code, minutes),
	})
	if err != nil {
		// The code is unusable if the patient never received it.
		if clearErr := s.store.Users.SetResetChallenge(ctx, user.ID, "", nil, false); clearErr != nil {
			s.logger.WithUserID(user.ID).WithError(clearErr).Error("Failed to roll back reset challenge")
		}
		return err
	}

	s.logger.Audit(user.ID, "forgot_password", "user", true, nil)
	return nil
}

// VerifyResetCode checks the emailed code and marks the challenge
// verified for the reset step.
func (s *Service) VerifyResetCode(ctx context.Context, req *types.VerifyResetCodeRequest) error {
	user, err := s.store.Users.GetByEmail(ctx, validate.NormalizeEmail(req.Email))
	if err != nil {
		if types.IsType(err, types.ErrorTypeNotFound) {
			return types.NewCodeInvalidError(types.ErrCodeInvalidOrExpired, "Invalid or expired code")
		}
		return err
	}

	if !validate.IsValidOTP(req.Code) || user.ResetCode == "" || user.ResetCode != req.Code ||
		user.ResetExpires == nil || time.Now().After(*user.ResetExpires) {
		s.logger.Security("reset_code_rejected", user.ID, nil)
		return types.NewCodeInvalidError(types.ErrCodeInvalidOrExpired, "Invalid or expired code")
	}

	return s.store.Users.SetResetChallenge(ctx, user.ID, user.ResetCode, user.ResetExpires, true)
}

// ResetPassword replaces the password after a verified code and clears
// the challenge so the code cannot be reused.
func (s *Service) ResetPassword(ctx context.Context, req *types.ResetPasswordRequest) error {
	user, err := s.store.Users.GetByEmail(ctx, validate.NormalizeEmail(req.Email))
	if err != nil {
		if types.IsType(err, types.ErrorTypeNotFound) {
			return types.NewCodeInvalidError(types.ErrCodeInvalidOrExpired, "Invalid or expired code")
		}
		return err
	}

	if !user.ResetVerified || user.ResetExpires == nil || time.Now().After(*user.ResetExpires) {
		return types.NewCodeInvalidError(types.ErrCodeInvalidOrExpired, "Invalid or expired code")
	}
	if !validate.IsValidPassword(req.NewPassword) {
		return types.NewValidationError(types.ErrCodeInvalidInput,
			fmt.Sprintf("Password must be between %d and %d characters", validate.MinPasswordLength, validate.MaxPasswordLength))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return types.NewInternalError(types.ErrCodeInternalError, "failed to hash password", err)
	}
	if err := s.store.Users.UpdatePassword(ctx, user.ID, string(hash)); err != nil {
		return err
	}
	if err := s.store.Users.SetResetChallenge(ctx, user.ID, "", nil, false); err != nil {
		return err
	}

	s.logger.Audit(user.ID, "reset_password", "user", true, nil)
	return nil
}

// authUser shapes the account view by role, attaching the card and QR
// IDs for patients.
func (s *Service) authUser(ctx context.Context, user *types.User) (*types.AuthUser, error) {
	out := &types.AuthUser{
		ID:    user.ID,
		Email: user.Email,
		Role:  user.Role,
	}

	switch user.Role {
	case types.RolePatient:
		patient, err := s.store.Patients.GetByUserID(ctx, user.ID)
		if err != nil {
			if types.IsType(err, types.ErrorTypeNotFound) {
				return out, nil
			}
			return nil, err
		}
		out.FullName = patient.FullName
		out.CardID = patient.HealthCardID
		out.QRCodeID = patient.QRCodeID
		if out.QRCodeID == "" {
			out.QRCodeID = patient.HealthCardID
		}

	case types.RoleDoctor:
		doctor, err := s.store.Doctors.GetByUserID(ctx, user.ID)
		if err != nil {
			if types.IsType(err, types.ErrorTypeNotFound) {
				return out, nil
			}
			return nil, err
		}
		out.FullName = doctor.FullName
	}

	return out, nil
}
