package inter

import (
	"math/big"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/common"
)

// ValidatorInfo is the registry record of a single validator.
//
// Stake is mirrored in a separate stake entry; both locations are always
// written together. Stake is never negative: slashing is capped to the current
// stake.
type ValidatorInfo struct {
	Address common.Address
	// ID is assigned sequentially at registration and is never reused. It is
	// the validator's identity inside the quorum computation.
	ID idx.ValidatorID

	Stake      *big.Int
	Reputation uint32
	Active     bool
	// Status carries drivertype bits describing past misbehaviour.
	Status uint64

	JoinedAt     Timestamp
	LastActivity Timestamp

	TotalValidations  uint64
	MissedValidations uint64
	SlashedAmount     *big.Int
}

// Inactive reports whether the validator has been idle for longer than
// threshold at time now.
func (v *ValidatorInfo) Inactive(now, threshold Timestamp) bool {
	return now.Since(v.LastActivity) > threshold
}

// ConsensusState is derived from the active validator set and recomputed on
// every change to it.
type ConsensusState struct {
	TotalStake         *big.Int
	ActiveValidators   uint32
	ByzantineThreshold uint32
	// LastRound is the time the last proposal reached quorum.
	LastRound Timestamp
}

// MaxFaulty returns the number of Byzantine validators the current active set
// tolerates.
func (s *ConsensusState) MaxFaulty() uint32 {
	if s.ActiveValidators == 0 {
		return 0
	}
	return (s.ActiveValidators - 1) / 3
}
