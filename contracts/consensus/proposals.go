package consensus

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/rony4d/go-opera-bridge/errs"
	"github.com/rony4d/go-opera-bridge/host"
	"github.com/rony4d/go-opera-bridge/inter"
)

// CreateProposal opens a vote on msg. The quorum bar is taken from the
// current consensus state and stays fixed for the life of the proposal.
func (c *Consensus) CreateProposal(env *host.Env, proposer common.Address, msg inter.CrossChainMessage) (uint64, error) {
	if err := env.RequireAuth(proposer); err != nil {
		return 0, err
	}
	if err := c.requireActive(env, proposer); err != nil {
		return 0, err
	}
	if msg.Amount == nil || msg.Amount.Sign() <= 0 {
		return 0, errs.ErrAmountMustBePositive
	}
	st, err := c.GetConsensusState(env)
	if err != nil {
		return 0, err
	}

	id, err := proposalSeq.Next(env.Ledger())
	if err != nil {
		return 0, err
	}
	p := inter.BridgeProposal{
		ID:            id,
		Proposer:      proposer,
		Message:       msg,
		RequiredVotes: st.ByzantineThreshold,
		Status:        inter.ProposalPending,
		CreatedAt:     env.Now(),
		ExpiresAt:     env.Now().Add(c.rules.Proposals.Timeout),
	}
	if err := proposals.Put(env.Ledger(), id, p); err != nil {
		return 0, err
	}

	c.log.WithFields(logrus.Fields{
		"proposal": id,
		"proposer": proposer.Hex(),
		"nonce":    msg.Nonce,
		"required": p.RequiredVotes,
	}).Info("Proposal created")
	return id, env.Emit(inter.EventProposalCreated, ProposalCreated{
		ID:            id,
		Proposer:      proposer,
		MessageHash:   msg.Hash(),
		RequiredVotes: p.RequiredVotes,
		ExpiresAt:     uint64(p.ExpiresAt),
	}, host.U64Topic(id), host.AddressTopic(proposer))
}

// VoteOnProposal records the vote of validator. A vote that meets the quorum
// approves and executes the proposal in the same call.
//
// A vote arriving after the voting window marks the proposal Expired; that
// transition is kept even though the vote itself fails.
func (c *Consensus) VoteOnProposal(env *host.Env, validator common.Address, id uint64, approve bool) error {
	if err := env.RequireAuth(validator); err != nil {
		return err
	}
	if err := c.requireActive(env, validator); err != nil {
		return err
	}
	p, err := c.GetProposal(env, id)
	if err != nil {
		return err
	}
	if p.Status != inter.ProposalPending {
		return errs.Wrap(errs.ErrProposalExpired, "proposal %d is %s", id, p.Status)
	}
	if p.IsExpired(env.Now()) {
		p.Status = inter.ProposalExpired
		if err := proposals.Put(env.Ledger(), id, p); err != nil {
			return err
		}
		if err := env.Emit(inter.EventProposalExpired, ProposalExpired{ID: id}, host.U64Topic(id)); err != nil {
			return err
		}
		c.log.WithField("proposal", id).Info("Proposal expired")
		return host.Retain(errs.Wrap(errs.ErrProposalExpired, "proposal %d", id))
	}
	if p.HasVoted(validator) {
		return errs.ErrProposalAlreadyVoted
	}

	p.Votes = append(p.Votes, inter.Vote{Validator: validator, Approve: approve})
	if approve {
		p.VoteCount++
	}
	if err := c.touch(env, validator); err != nil {
		return err
	}
	if err := env.Emit(inter.EventProposalVoted, ProposalVoted{
		ID:        id,
		Validator: validator,
		Approve:   approve,
		VoteCount: p.VoteCount,
	}, host.U64Topic(id), host.AddressTopic(validator)); err != nil {
		return err
	}

	if p.Reached() {
		if err := c.execute(env, &p); err != nil {
			return err
		}
	}
	return proposals.Put(env.Ledger(), id, p)
}

func (c *Consensus) execute(env *host.Env, p *inter.BridgeProposal) error {
	p.Status = inter.ProposalApproved

	st, err := c.GetConsensusState(env)
	if err != nil {
		return err
	}
	st.LastRound = env.Now()
	if err := state.Put(env.Ledger(), st); err != nil {
		return err
	}

	c.log.WithFields(logrus.Fields{"proposal": p.ID, "votes": p.VoteCount}).Info("Proposal approved")
	return env.Emit(inter.EventProposalExecuted, ProposalExecuted{
		ID:          p.ID,
		MessageHash: p.Message.Hash(),
		VoteCount:   p.VoteCount,
	}, host.U64Topic(p.ID))
}

// GetProposal returns the proposal with id.
func (c *Consensus) GetProposal(env *host.Env, id uint64) (inter.BridgeProposal, error) {
	p, found, err := proposals.Get(env.Ledger(), id)
	if err != nil {
		return p, err
	}
	if !found {
		return p, errs.Wrap(errs.ErrProposalNotFound, "proposal %d", id)
	}
	return p, nil
}

// GetProposalCount returns the number of proposals ever created.
func (c *Consensus) GetProposalCount(env *host.Env) (uint64, error) {
	return proposalSeq.Current(env.Ledger())
}

func (c *Consensus) requireActive(env *host.Env, addr common.Address) error {
	active, err := c.IsActiveValidator(env, addr)
	if err != nil {
		return err
	}
	if !active {
		return errs.Wrap(errs.ErrValidatorNotActive, "%s", addr.Hex())
	}
	return nil
}
