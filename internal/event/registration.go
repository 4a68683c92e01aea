// internal/event/registration.go
package event

import (
	"time"

	"github.com/google/uuid"
)

// ParticipantRegistration admits a user into the program, consuming
// one slot of the global cap. Re-registration is a no-op.
// Idempotency key: registration_id.
type ParticipantRegistration struct {
	RegistrationID uuid.UUID
	UserID         uuid.UUID
	Sequence       int64
	Timestamp      time.Time
}

func (p *ParticipantRegistration) IdempotencyKey() string {
	return p.RegistrationID.String()
}

func (p *ParticipantRegistration) EventType() EventType {
	return EventTypeParticipantRegistration
}

func (p *ParticipantRegistration) Token() *string {
	return nil // Global event
}

func (p *ParticipantRegistration) SourceSequence() int64 {
	return p.Sequence
}
