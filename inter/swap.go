package inter

import (
	"bytes"
	"crypto/sha256"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// HashlockSize is the length of a SHA-256 hashlock.
const HashlockSize = sha256.Size

// SwapStatus is the lifecycle state of an AtomicSwap.
type SwapStatus uint8

const (
	SwapInitiated SwapStatus = iota
	SwapCompleted
	SwapExpired
	SwapRefunded
)

func (s SwapStatus) String() string {
	switch s {
	case SwapInitiated:
		return "initiated"
	case SwapCompleted:
		return "completed"
	case SwapExpired:
		return "expired"
	case SwapRefunded:
		return "refunded"
	default:
		return "unknown"
	}
}

// AtomicSwap is a two-party hash time-locked swap. The initiator leg is held
// in escrow from creation until completion or refund.
type AtomicSwap struct {
	ID uint64

	Initiator       common.Address
	InitiatorToken  common.Address
	InitiatorAmount *big.Int

	Counterparty       common.Address
	CounterpartyToken  common.Address
	CounterpartyAmount *big.Int

	Hashlock common.Hash
	// Timelock is absolute.
	Timelock  Timestamp
	Status    SwapStatus
	CreatedAt Timestamp
	// Preimage is revealed on completion.
	Preimage []byte
}

// IsExpired reports whether the timelock has passed at time now.
func (s *AtomicSwap) IsExpired(now Timestamp) bool {
	return now > s.Timelock
}

// Unlocks reports whether preimage hashes to the swap's hashlock.
func (s *AtomicSwap) Unlocks(preimage []byte) bool {
	sum := sha256.Sum256(preimage)
	return bytes.Equal(sum[:], s.Hashlock[:])
}

// Hashlock returns the SHA-256 hashlock for a secret.
func Hashlock(secret []byte) common.Hash {
	return common.Hash(sha256.Sum256(secret))
}
