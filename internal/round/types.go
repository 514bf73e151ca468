package round

import (
	"github.com/google/uuid"
	"github.com/mfield4/skirmish/internal/models"
)

// CreateSessionRequest represents a request to create a new session record.
type CreateSessionRequest struct {
	ID       uuid.UUID              `json:"id"`
	Phase    models.SessionPhase    `json:"phase"`
	Settings models.SessionSettings `json:"settings"`
}

// NewSessionRequest builds a create request for a fresh round in the
// waiting phase with the given settings.
func NewSessionRequest(settings models.SessionSettings) CreateSessionRequest {
	return CreateSessionRequest{
		ID:       uuid.New(),
		Phase:    models.SessionPhaseWaitingForPlayers,
		Settings: settings,
	}
}
