package inter

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// CrossChainMessage is the payload attested by validators for an inbound
// transfer.
type CrossChainMessage struct {
	SourceChain      uint32
	SourceTxHash     common.Hash
	Nonce            uint64
	Token            common.Address
	Amount           *big.Int
	Recipient        common.Address
	DestinationChain uint32
}

// Hash is the digest validators sign: keccak256 of the RLP encoding.
func (m *CrossChainMessage) Hash() common.Hash {
	b, err := rlp.EncodeToBytes(m)
	if err != nil {
		// only reachable with a negative amount, which is never signed
		return common.Hash{}
	}
	return crypto.Keccak256Hash(b)
}

// ProposalStatus is the lifecycle state of a BridgeProposal.
type ProposalStatus uint8

const (
	ProposalPending ProposalStatus = iota
	ProposalApproved
	ProposalExpired
)

func (s ProposalStatus) String() string {
	switch s {
	case ProposalPending:
		return "pending"
	case ProposalApproved:
		return "approved"
	case ProposalExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Vote is a single validator's recorded vote.
type Vote struct {
	Validator common.Address
	Approve   bool
}

// BridgeProposal is a cross-chain message awaiting validator quorum.
//
// RequiredVotes is captured from the consensus state when the proposal is
// created and never recomputed, so validators joining or leaving during the
// vote cannot move the quorum bar.
type BridgeProposal struct {
	ID       uint64
	Proposer common.Address
	Message  CrossChainMessage

	Votes         []Vote
	VoteCount     uint32
	RequiredVotes uint32
	Status        ProposalStatus

	CreatedAt Timestamp
	ExpiresAt Timestamp
}

// IsExpired reports whether the voting window has passed at time now.
func (p *BridgeProposal) IsExpired(now Timestamp) bool {
	return now > p.ExpiresAt
}

// HasVoted reports whether validator already recorded a vote, approving or not.
func (p *BridgeProposal) HasVoted(validator common.Address) bool {
	for _, v := range p.Votes {
		if v.Validator == validator {
			return true
		}
	}
	return false
}

// Reached reports whether approvals meet the captured quorum.
func (p *BridgeProposal) Reached() bool {
	return p.VoteCount >= p.RequiredVotes
}
