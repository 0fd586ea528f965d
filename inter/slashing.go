package inter

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// SlashReason classifies a validator misbehaviour.
type SlashReason uint8

const (
	DoubleVote SlashReason = iota
	InvalidSignature
	Inactivity
	ByzantineBehavior
	MaliciousProposal
)

var slashReasonNames = map[SlashReason]string{
	DoubleVote:        "DoubleVote",
	InvalidSignature:  "InvalidSignature",
	Inactivity:        "Inactivity",
	ByzantineBehavior: "ByzantineBehavior",
	MaliciousProposal: "MaliciousProposal",
}

func (r SlashReason) String() string {
	if name, ok := slashReasonNames[r]; ok {
		return name
	}
	return fmt.Sprintf("SlashReason(%d)", uint8(r))
}

// SlashingRecord is an append-only log entry. Records are never mutated and
// outlive the validator's registry entry.
type SlashingRecord struct {
	Validator common.Address
	Amount    *big.Int
	Reason    SlashReason
	Timestamp Timestamp
	Evidence  []byte
	Slasher   common.Address
}

// RewardRecord is an append-only reward payout entry.
type RewardRecord struct {
	Validator  common.Address
	Amount     *big.Int
	RewardType string
	Timestamp  Timestamp
}
