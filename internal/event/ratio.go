// internal/event/ratio.go
package event

import (
	"math/big"
	"strconv"
	"time"
)

// PoolRatioUpdate carries the observed pool ratio for one token.
// Ratio is state per token, fixed-point with 10^18 scale.
// Gaps in the ratio feed are tolerated; stale sequences are ignored.
// Idempotency key: ratio:<token>:<ratio_sequence>.
type PoolRatioUpdate struct {
	AuctionToken  string
	Ratio         *big.Int
	RatioSequence int64
	Timestamp     time.Time
}

func (p *PoolRatioUpdate) IdempotencyKey() string {
	return "ratio:" + p.AuctionToken + ":" + strconv.FormatInt(p.RatioSequence, 10)
}

func (p *PoolRatioUpdate) EventType() EventType {
	return EventTypePoolRatioUpdate
}

func (p *PoolRatioUpdate) Token() *string {
	t := p.AuctionToken
	return &t
}

func (p *PoolRatioUpdate) SourceSequence() int64 {
	return p.RatioSequence
}
