package state

import "math/big"

// RatioState tracks the latest pool ratio per token. The ratio is
// state-token per auction token, fixed-point with 10^18 scale.
type RatioState struct {
	Ratio         *big.Int
	RatioSequence int64
	Timestamp     int64
}

// RatioCache holds the current pool ratio per token
type RatioCache struct {
	ratios map[string]*RatioState
}

func NewRatioCache() *RatioCache {
	return &RatioCache{
		ratios: make(map[string]*RatioState),
	}
}

// Update processes a pool ratio update
func (rc *RatioCache) Update(token string, ratio *big.Int, sequence int64, timestamp int64) error {
	current := rc.ratios[token]

	if current != nil {
		// Stale or duplicate - silently ignore (idempotent)
		if sequence <= current.RatioSequence {
			return nil
		}
		// Gaps in ratio feeds are tolerable unlike settlement events
	}

	rc.ratios[token] = &RatioState{
		Ratio:         new(big.Int).Set(ratio),
		RatioSequence: sequence,
		Timestamp:     timestamp,
	}
	return nil
}

// Get returns the current ratio for a token
func (rc *RatioCache) Get(token string) (*big.Int, bool) {
	state := rc.ratios[token]
	if state == nil {
		return nil, false
	}
	return state.Ratio, true
}

// RatioSnapshot is the serializable form of one token's ratio.
// big.Int round-trips through a decimal string.
type RatioSnapshot struct {
	Token         string `json:"token"`
	Ratio         string `json:"ratio"`
	RatioSequence int64  `json:"ratio_sequence"`
	Timestamp     int64  `json:"timestamp"`
}

func (rc *RatioCache) Snapshot() []*RatioSnapshot {
	out := make([]*RatioSnapshot, 0, len(rc.ratios))
	for token, rs := range rc.ratios {
		out = append(out, &RatioSnapshot{
			Token:         token,
			Ratio:         rs.Ratio.String(),
			RatioSequence: rs.RatioSequence,
			Timestamp:     rs.Timestamp,
		})
	}
	return out
}

func (rc *RatioCache) Restore(snaps []*RatioSnapshot) {
	rc.ratios = make(map[string]*RatioState, len(snaps))
	for _, s := range snaps {
		ratio, ok := new(big.Int).SetString(s.Ratio, 10)
		if !ok {
			continue
		}
		rc.ratios[s.Token] = &RatioState{
			Ratio:         ratio,
			RatioSequence: s.RatioSequence,
			Timestamp:     s.Timestamp,
		}
	}
}
