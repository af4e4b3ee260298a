package patient

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/healthcard/healthcard-api/pkg/database"
	"github.com/healthcard/healthcard-api/pkg/interfaces"
	"github.com/healthcard/healthcard-api/pkg/logger"
	"github.com/healthcard/healthcard-api/pkg/types"
)

func newMockRepo(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	assert.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db := &database.DB{DB: sqlDB}
	return NewRepository(db, logger.New("error")), mock
}

func TestCreate(t *testing.T) {
	t.Run("inserts and fills generated columns", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		now := time.Now()

		mock.ExpectQuery(`INSERT INTO patients`).
			WithArgs("user-1", "John Doe", "HC-1234-5678", "HC-1234-5678").
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
				AddRow("patient-1", now, now))

		p := &types.Patient{
			UserID:       "user-1",
			FullName:     "John Doe",
			HealthCardID: "HC-1234-5678",
			QRCodeID:     "HC-1234-5678",
		}
		assert.NoError(t, repo.Create(context.Background(), p))
		assert.Equal(t, "patient-1", p.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("maps a unique violation to Conflict naming the field", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectQuery(`INSERT INTO patients`).
			WillReturnError(&pq.Error{Code: "23505", Constraint: "patients_health_card_id_key"})

		err := repo.Create(context.Background(), &types.Patient{
			UserID:       "user-1",
			FullName:     "John Doe",
			HealthCardID: "HC-1234-5678",
		})
		assert.True(t, types.IsType(err, types.ErrorTypeConflict))

		appErr := err.(*types.AppError)
		assert.Equal(t, "healthCardId", appErr.Details["field"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGetByCardOrQRID(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()

	rows := sqlmock.NewRows([]string{
		"id", "user_id", "full_name", "health_card_id", "qr_code_id", "blood_group",
		"dob", "phone_number", "relative_phone_number", "address", "allergies",
		"otp_code", "otp_expires", "otp_verified", "otp_requested_by",
		"created_at", "updated_at",
	}).AddRow(
		"patient-1", "user-1", "John Doe", "HC-1234-5678", nil, "O+",
		nil, "", "", "", "{penicillin}",
		"", nil, false, nil,
		now, now,
	)

	mock.ExpectQuery(`SELECT .+ FROM patients WHERE health_card_id = \$1 OR qr_code_id = \$1`).
		WithArgs("HC-1234-5678").
		WillReturnRows(rows)

	p, err := repo.GetByCardOrQRID(context.Background(), "HC-1234-5678")
	assert.NoError(t, err)
	assert.Equal(t, "patient-1", p.ID)
	assert.Empty(t, p.QRCodeID)
	assert.Equal(t, []string{"penicillin"}, p.Allergies)
	assert.Nil(t, p.DOB)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByCardIDNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT .+ FROM patients WHERE health_card_id = \$1`).
		WithArgs("HC-0000-0000").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByCardID(context.Background(), "HC-0000-0000")
	assert.True(t, types.IsType(err, types.ErrorTypeNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetOTPChallenge(t *testing.T) {
	repo, mock := newMockRepo(t)
	expires := time.Now().Add(10 * time.Minute)

	mock.ExpectExec(`UPDATE patients`).
		WithArgs("patient-1", "123456", sqlmock.AnyArg(), "doctor-user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SetOTPChallenge(context.Background(), "patient-1", interfaces.OTPChallenge{
		Code:        "123456",
		Expires:     expires,
		RequestedBy: "doctor-user-1",
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBackfillQRCodeIDs(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`UPDATE patients`).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.BackfillQRCodeIDs(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
