// Package drivertype defines the validator status bits recorded by the
// slashing ledger. A validator's Status is the OR of the bits for every
// misbehaviour it was ever slashed for; bits are never cleared.
package drivertype

import (
	"github.com/rony4d/go-opera-bridge/inter"
)

var (
	// OkStatus is the status of a validator with a clean history.
	OkStatus = uint64(0)

	// InvalidSignatureBit marks a validator slashed for a bad attestation.
	InvalidSignatureBit = uint64(1 << 1)

	// OfflineBit marks a validator slashed for inactivity.
	OfflineBit = uint64(1 << 3)

	// CheaterBit marks byzantine behaviour or a malicious proposal.
	CheaterBit = uint64(1 << 4)

	// DoublesignBit marks a validator caught voting twice.
	DoublesignBit = uint64(1 << 7)
)

// StatusBit returns the status bit set when slashing for reason.
func StatusBit(reason inter.SlashReason) uint64 {
	switch reason {
	case inter.DoubleVote:
		return DoublesignBit
	case inter.InvalidSignature:
		return InvalidSignatureBit
	case inter.Inactivity:
		return OfflineBit
	case inter.ByzantineBehavior, inter.MaliciousProposal:
		return CheaterBit
	default:
		return OkStatus
	}
}

// Describe lists the names of the bits set in status.
func Describe(status uint64) []string {
	var out []string
	for _, b := range []struct {
		bit  uint64
		name string
	}{
		{InvalidSignatureBit, "invalid-signature"},
		{OfflineBit, "offline"},
		{CheaterBit, "cheater"},
		{DoublesignBit, "doublesign"},
	} {
		if status&b.bit != 0 {
			out = append(out, b.name)
		}
	}
	return out
}
