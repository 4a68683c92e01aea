package ledger

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// AccountScope represents the top-level account namespace
type AccountScope uint8

const (
	AccountScopeUser AccountScope = iota
	AccountScopeSystem
	AccountScopeExternal
)

// AccountSubType represents the account purpose
type AccountSubType uint8

const (
	// User sub-types
	SubTypePending AccountSubType = iota
	SubTypeReversePending

	// System sub-types
	SubTypeSystemVault
	SubTypeSystemFees
	SubTypeSystemBurnSink

	// External sub-types
	SubTypeExternalTreasury
	SubTypeExternalParticipants
	SubTypeExternalRouter
)

// AssetID maps asset strings to numeric IDs for performance.
// The state token is preregistered; auction tokens register when the
// schedule is installed.
type AssetID uint16

const StateAsset = "STATE"

const StateAssetID AssetID = 1

// The registry is written by the core goroutine when a schedule is
// installed and read from the projection bridge, so access is guarded.
var (
	assetMu   sync.RWMutex
	assetToID = map[string]AssetID{
		StateAsset: StateAssetID,
	}
	idToAsset = map[AssetID]string{
		StateAssetID: StateAsset,
	}
	nextAssetID AssetID = 2
)

func GetAssetID(asset string) (AssetID, bool) {
	assetMu.RLock()
	defer assetMu.RUnlock()
	id, ok := assetToID[asset]
	return id, ok
}

func GetAssetName(id AssetID) (string, bool) {
	assetMu.RLock()
	defer assetMu.RUnlock()
	name, ok := idToAsset[id]
	return name, ok
}

// RegisterAsset assigns an ID to a token, idempotently
func RegisterAsset(asset string) AssetID {
	assetMu.Lock()
	defer assetMu.Unlock()
	if id, ok := assetToID[asset]; ok {
		return id
	}
	id := nextAssetID
	nextAssetID++
	assetToID[asset] = id
	idToAsset[id] = asset
	return id
}

// AccountKey is the in-memory key for balance tracking (21 bytes, cache-friendly)
type AccountKey struct {
	Scope    AccountScope
	EntityID [16]byte // UUID for users, name bytes for system accounts
	SubType  AccountSubType
	AssetID  AssetID
}

// NewUserAccountKey creates a key for user accounts
func NewUserAccountKey(userID uuid.UUID, subType AccountSubType, assetID AssetID) AccountKey {
	return AccountKey{
		Scope:    AccountScopeUser,
		EntityID: userID,
		SubType:  subType,
		AssetID:  assetID,
	}
}

// NewSystemAccountKey creates a key for system accounts
func NewSystemAccountKey(name string, subType AccountSubType, assetID AssetID) AccountKey {
	var entityID [16]byte
	copy(entityID[:], []byte(name))
	return AccountKey{
		Scope:    AccountScopeSystem,
		EntityID: entityID,
		SubType:  subType,
		AssetID:  assetID,
	}
}

// NewExternalAccountKey creates a key for external boundary accounts
func NewExternalAccountKey(subType AccountSubType, assetID AssetID) AccountKey {
	return AccountKey{
		Scope:   AccountScopeExternal,
		SubType: subType,
		AssetID: assetID,
	}
}

// VaultKey returns the settlement vault account for an asset
func VaultKey(assetID AssetID) AccountKey {
	return NewSystemAccountKey("vault", SubTypeSystemVault, assetID)
}

// FeesKey returns the fee sink account for an asset
func FeesKey(assetID AssetID) AccountKey {
	return NewSystemAccountKey("fees", SubTypeSystemFees, assetID)
}

// BurnSinkKey returns the burn sink account for an asset
func BurnSinkKey(assetID AssetID) AccountKey {
	return NewSystemAccountKey("burn", SubTypeSystemBurnSink, assetID)
}

// AccountPath returns the string representation for storage/logging
func (k AccountKey) AccountPath() string {
	assetName, _ := GetAssetName(k.AssetID)

	switch k.Scope {
	case AccountScopeUser:
		uid := uuid.UUID(k.EntityID)
		return fmt.Sprintf("user:%s:%s:%s", uid.String(), k.subTypeName(), assetName)
	case AccountScopeSystem:
		return fmt.Sprintf("system:%s:%s", k.subTypeName(), assetName)
	case AccountScopeExternal:
		return fmt.Sprintf("external:%s:%s", k.subTypeName(), assetName)
	}
	return "unknown"
}

func (k AccountKey) subTypeName() string {
	switch k.SubType {
	case SubTypePending:
		return "pending"
	case SubTypeReversePending:
		return "reverse_pending"
	case SubTypeSystemVault:
		return "vault"
	case SubTypeSystemFees:
		return "fees"
	case SubTypeSystemBurnSink:
		return "burned"
	case SubTypeExternalTreasury:
		return "treasury"
	case SubTypeExternalParticipants:
		return "participants"
	case SubTypeExternalRouter:
		return "router"
	default:
		return "unknown"
	}
}
