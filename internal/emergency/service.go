// Package emergency implements the unauthenticated first-responder
// lookup. Authorization here is possession of the card: the endpoint
// returns a safety-oriented projection, never a mutation capability.
package emergency

import (
	"context"

	"github.com/healthcard/healthcard-api/pkg/cardid"
	"github.com/healthcard/healthcard-api/pkg/interfaces"
	"github.com/healthcard/healthcard-api/pkg/logger"
	"github.com/healthcard/healthcard-api/pkg/monitoring"
	"github.com/healthcard/healthcard-api/pkg/types"
)

// Service implements the emergency lookup
type Service struct {
	store  *interfaces.Store
	logger *logger.Logger
}

// NewService creates the emergency service
func NewService(store *interfaces.Store, log *logger.Logger) *Service {
	return &Service{
		store:  store,
		logger: log,
	}
}

// Scan resolves a card or QR identifier to the first-responder view.
// Either identifier resolves to the same projection.
func (s *Service) Scan(ctx context.Context, rawID string) (*types.EmergencyView, error) {
	id := cardid.Normalize(rawID)
	if !cardid.IsValid(id) {
		monitoring.RecordEmergencyLookup(false)
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "Invalid health card ID")
	}

	patient, err := s.store.Patients.GetByCardOrQRID(ctx, id)
	if err != nil {
		monitoring.RecordEmergencyLookup(false)
		return nil, err
	}

	history, err := s.store.Records.ListByPatient(ctx, patient.ID)
	if err != nil {
		monitoring.RecordEmergencyLookup(false)
		return nil, err
	}

	monitoring.RecordEmergencyLookup(true)
	s.logger.WithFields(map[string]interface{}{
		"card_id": patient.HealthCardID,
	}).Info("Emergency lookup served")
	return types.NewEmergencyView(patient, history), nil
}
