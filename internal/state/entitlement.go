package state

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var ErrInsufficientEntitlement = errors.New("insufficient entitlement units")

// EntitlementUnit is a voucher grant. Units are consumable until they
// expire. Consumption is tracked per (user, token, cycle) on the cycle
// record, not here: the book only answers how many unexpired units a
// user holds at a point in time.
type EntitlementUnit struct {
	Amount   int64
	MintedAt int64  // Event timestamp, microseconds
	Origin   string // Campaign or grant source label
}

// EntitlementBook tracks minted voucher units per user
type EntitlementBook struct {
	units    map[uuid.UUID][]*EntitlementUnit
	expiryUs int64
}

func NewEntitlementBook(expiryUs int64) *EntitlementBook {
	return &EntitlementBook{
		units:    make(map[uuid.UUID][]*EntitlementUnit),
		expiryUs: expiryUs,
	}
}

// Mint grants units to a user
func (eb *EntitlementBook) Mint(userID uuid.UUID, amount int64, mintedAtUs int64, origin string) error {
	if amount <= 0 {
		return fmt.Errorf("mint amount must be > 0, got %d", amount)
	}
	eb.units[userID] = append(eb.units[userID], &EntitlementUnit{
		Amount:   amount,
		MintedAt: mintedAtUs,
		Origin:   origin,
	})
	return nil
}

// ActiveUnits returns the user's unexpired unit total at nowUs.
// Grants are few per user, so a linear scan is fine.
func (eb *EntitlementBook) ActiveUnits(userID uuid.UUID, nowUs int64) int64 {
	var total int64
	for _, u := range eb.units[userID] {
		if nowUs-u.MintedAt < eb.expiryUs {
			total += u.Amount
		}
	}
	return total
}

// TotalMinted returns the user's lifetime unit total, expired or not
func (eb *EntitlementBook) TotalMinted(userID uuid.UUID) int64 {
	var total int64
	for _, u := range eb.units[userID] {
		total += u.Amount
	}
	return total
}

// EntitlementSnapshot is the serializable form of one user's grants
type EntitlementSnapshot struct {
	UserID uuid.UUID          `json:"user_id"`
	Units  []*EntitlementUnit `json:"units"`
}

func (eb *EntitlementBook) Snapshot() []*EntitlementSnapshot {
	out := make([]*EntitlementSnapshot, 0, len(eb.units))
	for userID, units := range eb.units {
		out = append(out, &EntitlementSnapshot{UserID: userID, Units: units})
	}
	return out
}

func (eb *EntitlementBook) Restore(snaps []*EntitlementSnapshot) {
	eb.units = make(map[uuid.UUID][]*EntitlementUnit, len(snaps))
	for _, s := range snaps {
		eb.units[s.UserID] = s.Units
	}
}
