package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"golang.org/x/crypto/bcrypt"

	"github.com/healthcard/healthcard-api/internal/memstore"
	"github.com/healthcard/healthcard-api/pkg/cardid"
	"github.com/healthcard/healthcard-api/pkg/config"
	"github.com/healthcard/healthcard-api/pkg/interfaces"
	"github.com/healthcard/healthcard-api/pkg/logger"
	"github.com/healthcard/healthcard-api/pkg/types"
)

type MockNotifier struct {
	mock.Mock

	LastEmail types.CodeEmail
}

func (m *MockNotifier) Configured() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockNotifier) SendCode(ctx context.Context, email types.CodeEmail) error {
	m.LastEmail = email
	args := m.Called(ctx, email)
	return args.Error(0)
}

func newTestService(t *testing.T) (*Service, *interfaces.Store, *MockNotifier) {
	t.Helper()

	store := memstore.New().Repositories()
	notifier := &MockNotifier{}
	tokens := NewTokenManager(&config.JWTConfig{
		SecretKey:      "test-secret",
		AccessTokenTTL: 3600,
		Issuer:         "healthcard-api",
	})
	service := NewService(store, notifier, tokens, logger.New("error"), "HealthCard")
	return service, store, notifier
}

func TestRegister(t *testing.T) {
	t.Run("patient registration issues a card ID", func(t *testing.T) {
		service, store, _ := newTestService(t)

		resp, err := service.Register(context.Background(), &types.RegisterRequest{
			Email:    "Pat1@Example.com",
			Password: "pw123456",
			Role:     types.RolePatient,
			FullName: "John Doe",
		})
		assert.NoError(t, err)
		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, types.RolePatient, resp.Role)
		assert.Equal(t, "pat1@example.com", resp.User.Email)
		assert.True(t, cardid.IsValid(resp.User.CardID))
		assert.Equal(t, resp.User.CardID, resp.User.QRCodeID)

		p, err := store.Patients.GetByCardID(context.Background(), resp.User.CardID)
		assert.NoError(t, err)
		assert.Equal(t, "John Doe", p.FullName)
	})

	t.Run("doctor registration creates a doctor profile", func(t *testing.T) {
		service, store, _ := newTestService(t)

		resp, err := service.Register(context.Background(), &types.RegisterRequest{
			Email:    "doc1@example.com",
			Password: "pw123456",
			Role:     types.RoleDoctor,
			Fullname: "Greg House",
		})
		assert.NoError(t, err)
		assert.Empty(t, resp.User.CardID)

		d, err := store.Doctors.GetByUserID(context.Background(), resp.User.ID)
		assert.NoError(t, err)
		assert.Equal(t, "Greg House", d.FullName)
	})

	t.Run("duplicate email conflicts case-insensitively", func(t *testing.T) {
		service, _, _ := newTestService(t)

		req := &types.RegisterRequest{
			Email:    "pat1@example.com",
			Password: "pw123456",
			Role:     types.RolePatient,
			FullName: "John Doe",
		}
		_, err := service.Register(context.Background(), req)
		assert.NoError(t, err)

		req.Email = "PAT1@EXAMPLE.COM"
		_, err = service.Register(context.Background(), req)
		assert.True(t, types.IsType(err, types.ErrorTypeConflict))
	})

	t.Run("rejects bad input before persisting", func(t *testing.T) {
		service, _, _ := newTestService(t)

		cases := []types.RegisterRequest{
			{Email: "not-an-email", Password: "pw123456", Role: types.RolePatient, FullName: "John Doe"},
			{Email: "a@b.co", Password: "short", Role: types.RolePatient, FullName: "John Doe"},
			{Email: "a@b.co", Password: "pw123456", Role: types.RolePatient},
			{Email: "a@b.co", Password: "pw123456", Role: "admin", FullName: "John Doe"},
		}
		for _, req := range cases {
			_, err := service.Register(context.Background(), &req)
			assert.True(t, types.IsType(err, types.ErrorTypeValidation), "expected validation error for %+v", req)
		}
	})
}

func TestLogin(t *testing.T) {
	register := func(t *testing.T, service *Service) {
		t.Helper()
		_, err := service.Register(context.Background(), &types.RegisterRequest{
			Email:    "pat1@example.com",
			Password: "pw123456",
			Role:     types.RolePatient,
			FullName: "John Doe",
		})
		assert.NoError(t, err)
	}

	t.Run("succeeds with the right password", func(t *testing.T) {
		service, _, _ := newTestService(t)
		register(t, service)

		resp, err := service.Login(context.Background(), &types.Credentials{
			Email:    "PAT1@example.com",
			Password: "pw123456",
		})
		assert.NoError(t, err)
		assert.NotEmpty(t, resp.Token)
		assert.True(t, cardid.IsValid(resp.User.CardID))
	})

	t.Run("wrong password and unknown email are indistinguishable", func(t *testing.T) {
		service, _, _ := newTestService(t)
		register(t, service)

		_, err1 := service.Login(context.Background(), &types.Credentials{Email: "pat1@example.com", Password: "wrong-pw"})
		_, err2 := service.Login(context.Background(), &types.Credentials{Email: "nobody@example.com", Password: "pw123456"})

		assert.True(t, types.IsType(err1, types.ErrorTypeUnauthorized))
		assert.True(t, types.IsType(err2, types.ErrorTypeUnauthorized))
		assert.Equal(t, err1.Error(), err2.Error())
	})
}

func TestTokenRoundTrip(t *testing.T) {
	tokens := NewTokenManager(&config.JWTConfig{
		SecretKey:      "test-secret",
		AccessTokenTTL: 3600,
		Issuer:         "healthcard-api",
	})

	signed, err := tokens.Issue("user-1", types.RoleDoctor)
	assert.NoError(t, err)

	claims, err := tokens.Verify(signed)
	assert.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, types.RoleDoctor, claims.Role)

	_, err = tokens.Verify(signed + "tampered")
	assert.True(t, types.IsType(err, types.ErrorTypeUnauthorized))
}

func TestChangePassword(t *testing.T) {
	service, store, _ := newTestService(t)
	resp, err := service.Register(context.Background(), &types.RegisterRequest{
		Email:    "pat1@example.com",
		Password: "pw123456",
		Role:     types.RolePatient,
		FullName: "John Doe",
	})
	assert.NoError(t, err)

	t.Run("rejects a wrong current password", func(t *testing.T) {
		err := service.ChangePassword(context.Background(), resp.User.ID, &types.ChangePasswordRequest{
			CurrentPassword: "wrong-pw",
			NewPassword:     "newpw1234",
		})
		assert.True(t, types.IsType(err, types.ErrorTypeUnauthorized))
	})

	t.Run("replaces the hash", func(t *testing.T) {
		err := service.ChangePassword(context.Background(), resp.User.ID, &types.ChangePasswordRequest{
			CurrentPassword: "pw123456",
			NewPassword:     "newpw1234",
		})
		assert.NoError(t, err)

		user, err := store.Users.GetByID(context.Background(), resp.User.ID)
		assert.NoError(t, err)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("newpw1234")))
	})
}

func TestForgotPasswordFlow(t *testing.T) {
	setup := func(t *testing.T) (*Service, *interfaces.Store, *MockNotifier, string) {
		t.Helper()
		service, store, notifier := newTestService(t)
		resp, err := service.Register(context.Background(), &types.RegisterRequest{
			Email:    "pat1@example.com",
			Password: "pw123456",
			Role:     types.RolePatient,
			FullName: "John Doe",
		})
		assert.NoError(t, err)
		return service, store, notifier, resp.User.ID
	}

	t.Run("unknown email reports success without issuing a code", func(t *testing.T) {
		service, _, notifier, _ := setup(t)

		err := service.ForgotPassword(context.Background(), "nobody@example.com")
		assert.NoError(t, err)
		notifier.AssertNotCalled(t, "SendCode", mock.Anything, mock.Anything)
	})

	t.Run("issues and mails a reset code", func(t *testing.T) {
		service, store, notifier, userID := setup(t)
		notifier.On("Configured").Return(true)
		notifier.On("SendCode", mock.Anything, mock.Anything).Return(nil)

		err := service.ForgotPassword(context.Background(), "pat1@example.com")
		assert.NoError(t, err)
		assert.Equal(t, types.ChannelPasswordReset, notifier.LastEmail.Channel)

		user, err := store.Users.GetByID(context.Background(), userID)
		assert.NoError(t, err)
		assert.Len(t, user.ResetCode, 6)
		assert.Equal(t, user.ResetCode, notifier.LastEmail.ResetCode)
		assert.False(t, user.ResetVerified)
		assert.WithinDuration(t, time.Now().Add(cardid.OTPTTL), *user.ResetExpires, time.Minute)
	})

	t.Run("rolls back the code when delivery fails", func(t *testing.T) {
		service, store, notifier, userID := setup(t)
		notifier.On("Configured").Return(true)
		notifier.On("SendCode", mock.Anything, mock.Anything).
			Return(types.NewUnavailableError(types.ErrCodeServiceUnavailable, "Unable to send code email"))

		err := service.ForgotPassword(context.Background(), "pat1@example.com")
		assert.True(t, types.IsType(err, types.ErrorTypeUnavailable))

		user, err := store.Users.GetByID(context.Background(), userID)
		assert.NoError(t, err)
		assert.Empty(t, user.ResetCode)
		assert.Nil(t, user.ResetExpires)
	})

	t.Run("verify then reset then reuse fails", func(t *testing.T) {
		service, store, notifier, userID := setup(t)
		notifier.On("Configured").Return(true)
		notifier.On("SendCode", mock.Anything, mock.Anything).Return(nil)

		assert.NoError(t, service.ForgotPassword(context.Background(), "pat1@example.com"))
		user, _ := store.Users.GetByID(context.Background(), userID)
		code := user.ResetCode

		wrong := "000000"
		if code == wrong {
			wrong = "000001"
		}
		err := service.VerifyResetCode(context.Background(), &types.VerifyResetCodeRequest{
			Email: "pat1@example.com",
			Code:  wrong,
		})
		assert.True(t, types.IsType(err, types.ErrorTypeCodeInvalid))

		err = service.VerifyResetCode(context.Background(), &types.VerifyResetCodeRequest{
			Email: "pat1@example.com",
			Code:  code,
		})
		assert.NoError(t, err)

		err = service.ResetPassword(context.Background(), &types.ResetPasswordRequest{
			Email:       "pat1@example.com",
			NewPassword: "brand-new-pw",
		})
		assert.NoError(t, err)

		resp, err := service.Login(context.Background(), &types.Credentials{
			Email:    "pat1@example.com",
			Password: "brand-new-pw",
		})
		assert.NoError(t, err)
		assert.NotEmpty(t, resp.Token)

		// Challenge is cleared; the same code cannot unlock a second reset
		err = service.ResetPassword(context.Background(), &types.ResetPasswordRequest{
			Email:       "pat1@example.com",
			NewPassword: "another-pw",
		})
		assert.True(t, types.IsType(err, types.ErrorTypeCodeInvalid))
	})

	t.Run("reset without verification is rejected", func(t *testing.T) {
		service, _, notifier, _ := setup(t)
		notifier.On("Configured").Return(true)
		notifier.On("SendCode", mock.Anything, mock.Anything).Return(nil)

		assert.NoError(t, service.ForgotPassword(context.Background(), "pat1@example.com"))

		err := service.ResetPassword(context.Background(), &types.ResetPasswordRequest{
			Email:       "pat1@example.com",
			NewPassword: "brand-new-pw",
		})
		assert.True(t, types.IsType(err, types.ErrorTypeCodeInvalid))
	})
}
