package inter

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// BridgeTransaction records an outbound lock. It is immutable and only
// removed when cancelled after the timeout.
type BridgeTransaction struct {
	Nonce  uint64
	Sender common.Address
	Token  common.Address
	// Amount is what the destination chain should release, fee excluded.
	Amount *big.Int
	Fee    *big.Int

	DestinationChain uint32
	Recipient        []byte
	Timestamp        Timestamp
}

// Cancellable reports whether the transaction may be refunded at time now.
func (tx *BridgeTransaction) Cancellable(now, timeout Timestamp) bool {
	return now.Since(tx.Timestamp) >= timeout
}

// BridgeMetrics aggregates bridge activity for read-only observers.
type BridgeMetrics struct {
	OutboundCount   uint64
	OutboundVolume  *big.Int
	CompletedCount  uint64
	CompletedVolume *big.Int
	CancelledCount  uint64
	CancelledVolume *big.Int
	FeesCollected   *big.Int
}

// NewBridgeMetrics returns zeroed metrics.
func NewBridgeMetrics() BridgeMetrics {
	return BridgeMetrics{
		OutboundVolume:  new(big.Int),
		CompletedVolume: new(big.Int),
		CancelledVolume: new(big.Int),
		FeesCollected:   new(big.Int),
	}
}

// CircuitBreaker caps outbound volume for one chain.
type CircuitBreaker struct {
	ChainID              uint32
	MaxDailyVolume       *big.Int
	CurrentDailyVolume   *big.Int
	MaxTransactionAmount *big.Int
	LastReset            Timestamp
	// Triggered is sticky: only an explicit reset clears it.
	Triggered bool
}

// WindowElapsed reports whether the rolling volume window is over at time now.
func (cb *CircuitBreaker) WindowElapsed(now, window Timestamp) bool {
	return now.Since(cb.LastReset) >= window
}

// Exceeds reports whether accepting amount would break either limit.
func (cb *CircuitBreaker) Exceeds(amount *big.Int) bool {
	if amount.Cmp(cb.MaxTransactionAmount) > 0 {
		return true
	}
	next := new(big.Int).Add(cb.CurrentDailyVolume, amount)
	return next.Cmp(cb.MaxDailyVolume) > 0
}
