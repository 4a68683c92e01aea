package state

import (
	"errors"

	"github.com/google/uuid"
)

var (
	ErrParticipantCapReached = errors.New("participant cap reached")
	ErrNotRegistered         = errors.New("user is not a registered participant")
)

// Registration records a participant's admission into the program
type Registration struct {
	UserID       uuid.UUID
	RegisteredAt int64 // Event timestamp, microseconds
	Sequence     int64 // Sequence at which registration was applied
}

// ParticipantRegistry enforces the global participant cap.
// Registration is idempotent: re-registering an admitted user is a
// no-op and never consumes a second slot.
type ParticipantRegistry struct {
	participants map[uuid.UUID]*Registration
	cap          int64
}

func NewParticipantRegistry(cap int64) *ParticipantRegistry {
	return &ParticipantRegistry{
		participants: make(map[uuid.UUID]*Registration),
		cap:          cap,
	}
}

// Register admits a user, returning whether a new slot was consumed.
func (pr *ParticipantRegistry) Register(userID uuid.UUID, timestampUs, sequence int64) (bool, error) {
	if _, ok := pr.participants[userID]; ok {
		return false, nil
	}
	if int64(len(pr.participants)) >= pr.cap {
		return false, ErrParticipantCapReached
	}

	pr.participants[userID] = &Registration{
		UserID:       userID,
		RegisteredAt: timestampUs,
		Sequence:     sequence,
	}
	return true, nil
}

func (pr *ParticipantRegistry) IsRegistered(userID uuid.UUID) bool {
	_, ok := pr.participants[userID]
	return ok
}

func (pr *ParticipantRegistry) Count() int64 {
	return int64(len(pr.participants))
}

func (pr *ParticipantRegistry) Remaining() int64 {
	remaining := pr.cap - int64(len(pr.participants))
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (pr *ParticipantRegistry) Cap() int64 {
	return pr.cap
}

// Snapshot returns all registrations for state serialization
func (pr *ParticipantRegistry) Snapshot() []*Registration {
	out := make([]*Registration, 0, len(pr.participants))
	for _, reg := range pr.participants {
		out = append(out, reg)
	}
	return out
}

// Restore loads registrations from a snapshot
func (pr *ParticipantRegistry) Restore(regs []*Registration) {
	pr.participants = make(map[uuid.UUID]*Registration, len(regs))
	for _, reg := range regs {
		pr.participants[reg.UserID] = reg
	}
}
