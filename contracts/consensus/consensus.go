// Package consensus implements the validator registry and the proposal voting
// engine of the bridge.
//
// The registry admits validators that stake at least the minimum and keeps a
// derived ConsensusState whose Byzantine threshold is the lachesis quorum of
// an equal-weight validator set: (2n)/3 + 1, and 1 when the set is empty.
// Proposals capture that threshold at creation and reach Approved, with
// execution, inside the vote that meets it.
package consensus

import (
	"math/big"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/Fantom-foundation/lachesis-base/inter/pos"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/rony4d/go-opera-bridge/inter"
	"github.com/rony4d/go-opera-bridge/ledger"
	"github.com/rony4d/go-opera-bridge/rules"
)

var (
	validators  = ledger.NewMap[common.Address, inter.ValidatorInfo](ledger.Persistent, "vinfo", ledger.AddressKey)
	stakes      = ledger.NewMap[common.Address, *big.Int](ledger.Persistent, "stake", ledger.AddressKey)
	activeSet   = ledger.NewValue[[]common.Address](ledger.Instance, "vset")
	state       = ledger.NewValue[inter.ConsensusState](ledger.Instance, "cstate")
	validatorID = ledger.NewCounter("vidseq")

	proposals   = ledger.NewMap[uint64, inter.BridgeProposal](ledger.Persistent, "prop", ledger.U64Key)
	proposalSeq = ledger.NewCounter("propseq")
)

// Consensus is the registry and voting engine.
type Consensus struct {
	rules rules.Rules
	log   logrus.FieldLogger
}

// New creates the component. A nil logger selects the logrus standard logger.
func New(r rules.Rules, log logrus.FieldLogger) *Consensus {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Consensus{
		rules: r.Copy(),
		log:   log.WithField("module", "consensus"),
	}
}

// ByzantineThreshold returns the quorum for n equally weighted validators.
func ByzantineThreshold(n int) uint32 {
	ids := make([]idx.ValidatorID, n)
	for i := range ids {
		ids[i] = idx.ValidatorID(i + 1)
	}
	return uint32(pos.EqualWeightValidators(ids, 1).Quorum())
}

// Event payloads.
type (
	ValidatorRegistered struct {
		Validator common.Address
		ID        uint32
		Stake     *big.Int
	}

	ValidatorUnregistered struct {
		Validator common.Address
		// Stake is returned for off-chain reconciliation; no tokens move.
		Stake *big.Int
	}

	ProposalCreated struct {
		ID            uint64
		Proposer      common.Address
		MessageHash   common.Hash
		RequiredVotes uint32
		ExpiresAt     uint64
	}

	ProposalVoted struct {
		ID        uint64
		Validator common.Address
		Approve   bool
		VoteCount uint32
	}

	ProposalExecuted struct {
		ID          uint64
		MessageHash common.Hash
		VoteCount   uint32
	}

	ProposalExpired struct {
		ID uint64
	}
)
