// Package rules defines the bridge core's protocol parameters.
//
// This package provides:
//   - Network presets (MainNet, TestNet, FakeNet)
//   - Validator admission and inactivity rules
//   - Proposal, bridge-cancel, swap timelock and circuit breaker windows
//   - Per-reason slashing percentages and reputation penalties
//
// Rules are consensus critical: every node applying the same invocations must
// run with identical Rules to reach identical state.
package rules

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/rony4d/go-opera-bridge/inter"
)

// Chain identification constants
const (
	// MainChainID is the bridge's own chain id on mainnet
	MainChainID uint32 = 0xb1d

	// TestChainID is the bridge's own chain id on testnet
	TestChainID uint32 = 0xb1d2

	// FakeChainID is used by local networks and tests
	FakeChainID uint32 = 0xb1d3

	// BasisPoints is the denominator of slashing percentages
	BasisPoints = 10000

	// MaxReputation is the reputation of a freshly registered validator
	MaxReputation uint32 = 100
)

// Rules describes the complete parameter set of a bridge deployment.
//
// Note: Copy() must deep-copy every *big.Int field.
type Rules struct {
	Name    string // Network name identifier (e.g., "main", "test", "fake")
	ChainID uint32 // Chain id of this bridge, the destination of inbound messages

	// Validator admission
	Validators ValidatorRules

	// Proposal voting
	Proposals ProposalRules

	// Outbound transfers
	Bridge BridgeRules

	// HTLC swaps
	Swaps SwapRules

	// Outbound volume limits
	Breaker BreakerRules

	// Penalties per slash reason
	Slashing SlashingRules
}

// ValidatorRules bound the validator set.
type ValidatorRules struct {
	// MinStake is the minimum stake to register, and the level below which a
	// validator is deactivated.
	MinStake *big.Int

	// MaxValidators bounds the active set and therefore the work of a single
	// vote or recompute.
	MaxValidators uint32

	// InactivityThreshold is the idle period after which a validator may be
	// slashed for inactivity.
	InactivityThreshold inter.Timestamp
}

// ProposalRules control the voting window.
type ProposalRules struct {
	// Timeout is the voting window of a proposal, measured from creation.
	Timeout inter.Timestamp
}

// BridgeRules control outbound transfers.
type BridgeRules struct {
	// CancelTimeout is the delay after which a pending outbound transfer may be
	// refunded by anyone.
	CancelTimeout inter.Timestamp

	// MaxRecipientSize bounds the destination address bytes.
	MaxRecipientSize uint32
}

// SwapRules bound HTLC timelocks.
type SwapRules struct {
	MinTimelock inter.Timestamp
	MaxTimelock inter.Timestamp
}

// BreakerRules control circuit breakers.
type BreakerRules struct {
	// Window is the rolling period after which daily volume resets.
	Window inter.Timestamp
}

// Penalty is applied for one slash reason.
type Penalty struct {
	// BasisPoints of the current stake confiscated, out of 10000
	BasisPoints uint32
	// Reputation points removed, saturating at 0
	Reputation uint32
}

// Amount returns the part of stake confiscated by p.
func (p Penalty) Amount(stake *big.Int) *big.Int {
	if stake == nil || stake.Sign() <= 0 {
		return new(big.Int)
	}
	out := new(big.Int).Mul(stake, new(big.Int).SetUint64(uint64(p.BasisPoints)))
	return out.Quo(out, big.NewInt(BasisPoints))
}

// Degrade returns reputation after applying p.
func (p Penalty) Degrade(reputation uint32) uint32 {
	if p.Reputation >= reputation {
		return 0
	}
	return reputation - p.Reputation
}

// SlashingRules holds one Penalty per reason.
type SlashingRules struct {
	DoubleVote        Penalty
	InvalidSignature  Penalty
	Inactivity        Penalty
	ByzantineBehavior Penalty
	MaliciousProposal Penalty
}

// For returns the penalty of reason.
func (s SlashingRules) For(reason inter.SlashReason) (Penalty, bool) {
	switch reason {
	case inter.DoubleVote:
		return s.DoubleVote, true
	case inter.InvalidSignature:
		return s.InvalidSignature, true
	case inter.Inactivity:
		return s.Inactivity, true
	case inter.ByzantineBehavior:
		return s.ByzantineBehavior, true
	case inter.MaliciousProposal:
		return s.MaliciousProposal, true
	default:
		return Penalty{}, false
	}
}

// MainNetRules returns the production parameters.
func MainNetRules() Rules {
	return Rules{
		Name:       "main",
		ChainID:    MainChainID,
		Validators: DefaultValidatorRules(),
		Proposals:  ProposalRules{Timeout: inter.FromDuration(24 * time.Hour)},
		Bridge:     DefaultBridgeRules(),
		Swaps:      DefaultSwapRules(),
		Breaker:    BreakerRules{Window: inter.FromDuration(24 * time.Hour)},
		Slashing:   DefaultSlashingRules(),
	}
}

// TestNetRules matches mainnet except for the chain id.
func TestNetRules() Rules {
	r := MainNetRules()
	r.Name = "test"
	r.ChainID = TestChainID
	return r
}

// FakeNetRules is used by local networks and tests. Timeouts are the
// production ones; only the stake floor is lowered so devnet accounts can
// register with small balances.
func FakeNetRules() Rules {
	r := MainNetRules()
	r.Name = "fake"
	r.ChainID = FakeChainID
	r.Validators.MinStake = big.NewInt(1)
	return r
}

// ByName returns the preset called name.
func ByName(name string) (Rules, error) {
	switch name {
	case "main":
		return MainNetRules(), nil
	case "test":
		return TestNetRules(), nil
	case "fake":
		return FakeNetRules(), nil
	default:
		return Rules{}, fmt.Errorf("unknown rules preset %q (valid: main, test, fake)", name)
	}
}

// DefaultValidatorRules returns the mainnet validator rules.
func DefaultValidatorRules() ValidatorRules {
	return ValidatorRules{
		MinStake:            big.NewInt(1000),
		MaxValidators:       100,
		InactivityThreshold: inter.FromDuration(7 * 24 * time.Hour),
	}
}

// DefaultBridgeRules returns the mainnet outbound rules.
func DefaultBridgeRules() BridgeRules {
	return BridgeRules{
		CancelTimeout:    inter.FromDuration(7 * 24 * time.Hour),
		MaxRecipientSize: 64,
	}
}

// DefaultSwapRules returns the HTLC timelock bounds.
func DefaultSwapRules() SwapRules {
	return SwapRules{
		MinTimelock: inter.FromDuration(time.Hour),
		MaxTimelock: inter.FromDuration(7 * 24 * time.Hour),
	}
}

// DefaultSlashingRules returns the per-reason penalties.
func DefaultSlashingRules() SlashingRules {
	return SlashingRules{
		DoubleVote:        Penalty{BasisPoints: 5000, Reputation: 20},
		InvalidSignature:  Penalty{BasisPoints: 1000, Reputation: 10},
		Inactivity:        Penalty{BasisPoints: 500, Reputation: 5},
		ByzantineBehavior: Penalty{BasisPoints: 10000, Reputation: 50},
		MaliciousProposal: Penalty{BasisPoints: 10000, Reputation: 30},
	}
}

// Validate checks internal consistency.
func (r Rules) Validate() error {
	if r.Validators.MinStake == nil || r.Validators.MinStake.Sign() <= 0 {
		return fmt.Errorf("rules %s: min stake must be positive", r.Name)
	}
	if r.Validators.MaxValidators == 0 {
		return fmt.Errorf("rules %s: max validators must be positive", r.Name)
	}
	if r.Swaps.MinTimelock == 0 || r.Swaps.MinTimelock > r.Swaps.MaxTimelock {
		return fmt.Errorf("rules %s: invalid timelock bounds", r.Name)
	}
	if r.Proposals.Timeout == 0 || r.Breaker.Window == 0 || r.Bridge.CancelTimeout == 0 {
		return fmt.Errorf("rules %s: zero timeout", r.Name)
	}
	for _, reason := range []inter.SlashReason{inter.DoubleVote, inter.InvalidSignature, inter.Inactivity, inter.ByzantineBehavior, inter.MaliciousProposal} {
		p, _ := r.Slashing.For(reason)
		if p.BasisPoints > BasisPoints {
			return fmt.Errorf("rules %s: %s penalty above 100%%", r.Name, reason)
		}
	}
	return nil
}

// Copy creates a deep copy of Rules.
func (r Rules) Copy() Rules {
	cp := r
	if r.Validators.MinStake != nil {
		cp.Validators.MinStake = new(big.Int).Set(r.Validators.MinStake)
	}
	return cp
}

// String returns a JSON representation of Rules for logging.
func (r Rules) String() string {
	b, _ := json.Marshal(&r)
	return string(b)
}
