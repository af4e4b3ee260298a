package patient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/healthcard/healthcard-api/internal/memstore"
	"github.com/healthcard/healthcard-api/pkg/interfaces"
	"github.com/healthcard/healthcard-api/pkg/logger"
	"github.com/healthcard/healthcard-api/pkg/types"
)

func newTestService(t *testing.T) (*Service, *interfaces.Store, string) {
	t.Helper()

	store := memstore.New().Repositories()
	ctx := context.Background()

	user := &types.User{Email: "pat1@example.com", PasswordHash: "x", Role: types.RolePatient}
	assert.NoError(t, store.Users.Create(ctx, user))
	assert.NoError(t, store.Patients.Create(ctx, &types.Patient{
		UserID:       user.ID,
		FullName:     "John Doe",
		HealthCardID: "HC-1234-5678",
		QRCodeID:     "HC-1234-5678",
	}))

	return NewService(store, logger.New("error")), store, user.ID
}

func TestMe(t *testing.T) {
	service, _, userID := newTestService(t)

	view, err := service.Me(context.Background(), userID)
	assert.NoError(t, err)
	assert.Equal(t, "HC-1234-5678", view.CardID)
	assert.False(t, view.ProfileComplete, "no blood group yet")
	assert.NotNil(t, view.Allergies)
}

func TestUpdateMe(t *testing.T) {
	str := func(s string) *string { return &s }

	t.Run("normalizes and persists supplied fields", func(t *testing.T) {
		service, store, userID := newTestService(t)

		allergies := types.StringList{"penicillin, latex"}
		view, err := service.UpdateMe(context.Background(), userID, &types.PatientPatch{
			BloodGroup: str(" o+ "),
			DOB:        str("1990-06-15"),
			Allergies:  &allergies,
			Address:    str("  12 Main St  "),
		})
		assert.NoError(t, err)
		assert.Equal(t, "O+", view.BloodGroup)
		assert.Equal(t, []string{"penicillin", "latex"}, view.Allergies)
		assert.Equal(t, "12 Main St", view.Address)
		assert.True(t, view.ProfileComplete)

		stored, err := store.Patients.GetByUserID(context.Background(), userID)
		assert.NoError(t, err)
		assert.Equal(t, "O+", stored.BloodGroup)
	})

	t.Run("accepts both phone aliases with phoneNumber winning", func(t *testing.T) {
		service, _, userID := newTestService(t)

		view, err := service.UpdateMe(context.Background(), userID, &types.PatientPatch{
			Phone:       str("+15550000001"),
			PhoneNumber: str("+15550000002"),
		})
		assert.NoError(t, err)
		assert.Equal(t, "+15550000002", view.Phone)

		view, err = service.UpdateMe(context.Background(), userID, &types.PatientPatch{
			RelativePhone: str("+1 (555) 765-4321"),
		})
		assert.NoError(t, err)
		assert.Equal(t, "+15557654321", view.RelativePhone)
	})

	t.Run("absent fields keep their stored values", func(t *testing.T) {
		service, _, userID := newTestService(t)

		_, err := service.UpdateMe(context.Background(), userID, &types.PatientPatch{BloodGroup: str("AB-")})
		assert.NoError(t, err)

		view, err := service.UpdateMe(context.Background(), userID, &types.PatientPatch{Address: str("somewhere")})
		assert.NoError(t, err)
		assert.Equal(t, "AB-", view.BloodGroup)
	})

	t.Run("rejects invalid values", func(t *testing.T) {
		service, _, userID := newTestService(t)

		_, err := service.UpdateMe(context.Background(), userID, &types.PatientPatch{BloodGroup: str("C+")})
		assert.True(t, types.IsType(err, types.ErrorTypeValidation))

		_, err = service.UpdateMe(context.Background(), userID, &types.PatientPatch{DOB: str("junk")})
		assert.True(t, types.IsType(err, types.ErrorTypeValidation))

		_, err = service.UpdateMe(context.Background(), userID, &types.PatientPatch{Phone: str("0123")})
		assert.True(t, types.IsType(err, types.ErrorTypeValidation))
	})
}
