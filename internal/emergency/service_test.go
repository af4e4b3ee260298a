package emergency

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/healthcard/healthcard-api/internal/memstore"
	"github.com/healthcard/healthcard-api/pkg/interfaces"
	"github.com/healthcard/healthcard-api/pkg/logger"
	"github.com/healthcard/healthcard-api/pkg/types"
)

func seedPatient(t *testing.T, store *interfaces.Store, card, qr string) *types.Patient {
	t.Helper()
	ctx := context.Background()

	user := &types.User{Email: "pat1@example.com", PasswordHash: "x", Role: types.RolePatient}
	assert.NoError(t, store.Users.Create(ctx, user))

	dob := time.Date(1990, time.June, 15, 0, 0, 0, 0, time.UTC)
	p := &types.Patient{
		UserID:              user.ID,
		FullName:            "John Doe",
		HealthCardID:        card,
		QRCodeID:            qr,
		BloodGroup:          "O-",
		DOB:                 &dob,
		PhoneNumber:         "+15551234567",
		RelativePhoneNumber: "+15557654321",
		Allergies:           []string{"penicillin"},
	}
	assert.NoError(t, store.Patients.Create(ctx, p))
	return p
}

func TestScan(t *testing.T) {
	t.Run("either identifier yields the identical projection", func(t *testing.T) {
		store := memstore.New().Repositories()
		seedPatient(t, store, "HC-1234-5678", "HC-1234-5678")
		service := NewService(store, logger.New("error"))

		byCard, err := service.Scan(context.Background(), "HC-1234-5678")
		assert.NoError(t, err)
		byQR, err := service.Scan(context.Background(), "hc-1234-5678 ")
		assert.NoError(t, err)

		assert.Equal(t, byCard, byQR)
		assert.Equal(t, "O-", byCard.BloodGroup)
		assert.Equal(t, []string{"penicillin"}, byCard.Allergies)
		assert.Equal(t, "+15557654321", byCard.RelativePhoneNumber)
		assert.NotNil(t, byCard.History)
	})

	t.Run("legacy rows resolve by either diverged identifier", func(t *testing.T) {
		store := memstore.New().Repositories()
		seedPatient(t, store, "HC-1111-2222", "HC-3333-4444")
		service := NewService(store, logger.New("error"))

		byCard, err := service.Scan(context.Background(), "HC-1111-2222")
		assert.NoError(t, err)
		byQR, err := service.Scan(context.Background(), "HC-3333-4444")
		assert.NoError(t, err)
		assert.Equal(t, byCard.CardID, byQR.CardID)
	})

	t.Run("rejects a malformed identifier", func(t *testing.T) {
		store := memstore.New().Repositories()
		service := NewService(store, logger.New("error"))

		_, err := service.Scan(context.Background(), "not-a-card")
		assert.True(t, types.IsType(err, types.ErrorTypeValidation))
	})

	t.Run("unknown card is not found", func(t *testing.T) {
		store := memstore.New().Repositories()
		service := NewService(store, logger.New("error"))

		_, err := service.Scan(context.Background(), "HC-0000-0000")
		assert.True(t, types.IsType(err, types.ErrorTypeNotFound))
	})
}
