package bridge

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/rony4d/go-opera-bridge/errs"
	"github.com/rony4d/go-opera-bridge/host"
	"github.com/rony4d/go-opera-bridge/inter"
	"github.com/rony4d/go-opera-bridge/inter/validatorpk"
)

// CompleteBridge releases an inbound message signed by at least
// MinValidators distinct bridge signers. Each signature is a 65-byte
// secp256k1 signature over msg.Hash().
func (b *Bridge) CompleteBridge(env *host.Env, msg inter.CrossChainMessage, sigs [][]byte) error {
	if err := b.guard.RequireOpen(env, msg.SourceChain); err != nil {
		return err
	}
	cfg, err := b.GetConfig(env)
	if err != nil {
		return err
	}
	if err := b.checkMessage(env, msg); err != nil {
		return err
	}
	if uint32(len(sigs)) < cfg.MinValidators {
		return errs.Wrap(errs.ErrInsufficientSignatures, "%d of %d", len(sigs), cfg.MinValidators)
	}
	set, err := b.GetValidators(env)
	if err != nil {
		return err
	}

	digest := msg.Hash()
	seen := make(map[common.Address]struct{}, len(sigs))
	for i, sig := range sigs {
		signer, err := validatorpk.RecoverAddress(digest, sig)
		if err != nil {
			return errs.Wrap(errs.ErrInvalidSignature, "signature %d: %v", i, err)
		}
		if !contains(set, signer) {
			return errs.Wrap(errs.ErrInvalidSignature, "signature %d by unknown signer %s", i, signer.Hex())
		}
		if _, dup := seen[signer]; dup {
			return errs.Wrap(errs.ErrDuplicateSigner, "%s", signer.Hex())
		}
		seen[signer] = struct{}{}
	}

	return b.release(env, cfg, msg, 0)
}

// CompleteFromProposal releases the message of an approved proposal.
func (b *Bridge) CompleteFromProposal(env *host.Env, id uint64) error {
	p, err := b.proposals.GetProposal(env, id)
	if err != nil {
		return err
	}
	if p.Status != inter.ProposalApproved {
		return errs.Wrap(errs.ErrProposalNotApproved, "proposal %d is %s", id, p.Status)
	}
	if err := b.guard.RequireOpen(env, p.Message.SourceChain); err != nil {
		return err
	}
	cfg, err := b.GetConfig(env)
	if err != nil {
		return err
	}
	if err := b.checkMessage(env, p.Message); err != nil {
		return err
	}
	return b.release(env, cfg, p.Message, id)
}

func (b *Bridge) checkMessage(env *host.Env, msg inter.CrossChainMessage) error {
	if msg.DestinationChain != b.rules.ChainID {
		return errs.Wrap(errs.ErrUnsupportedChain, "message for chain %d", msg.DestinationChain)
	}
	if ok, err := b.IsSupportedChain(env, msg.SourceChain); err != nil {
		return err
	} else if !ok {
		return errs.Wrap(errs.ErrUnsupportedChain, "source chain %d", msg.SourceChain)
	}
	if msg.Amount == nil || msg.Amount.Sign() <= 0 {
		return errs.ErrAmountMustBePositive
	}
	return nil
}

// release marks the nonce processed before anything is minted.
func (b *Bridge) release(env *host.Env, cfg Config, msg inter.CrossChainMessage, proposal uint64) error {
	done, err := b.IsNonceProcessed(env, msg.Nonce)
	if err != nil {
		return err
	}
	if done {
		return errs.Wrap(errs.ErrDuplicateNonce, "nonce %d", msg.Nonce)
	}
	if err := processed.Put(env.Ledger(), msg.Nonce, true); err != nil {
		return err
	}
	if msg.Token != cfg.Token {
		return errs.Wrap(errs.ErrInvalidToken, "%s", msg.Token.Hex())
	}
	if err := b.tokens.Mint(env, cfg.Token, msg.Recipient, msg.Amount); err != nil {
		return err
	}
	if err := b.updateMetrics(env, func(m *inter.BridgeMetrics) {
		m.CompletedCount++
		m.CompletedVolume.Add(m.CompletedVolume, msg.Amount)
	}); err != nil {
		return err
	}

	b.log.WithFields(logrus.Fields{
		"nonce":     msg.Nonce,
		"source":    msg.SourceChain,
		"recipient": msg.Recipient.Hex(),
		"amount":    msg.Amount,
		"proposal":  proposal,
	}).Info("Bridge transfer completed")
	if err := env.Emit(inter.EventBridgeCompleted, BridgeCompleted{
		Nonce:        msg.Nonce,
		SourceChain:  msg.SourceChain,
		SourceTxHash: msg.SourceTxHash,
		MessageHash:  msg.Hash(),
		Proposal:     proposal,
	}, host.U64Topic(msg.Nonce)); err != nil {
		return err
	}
	return env.Emit(inter.EventTokensReleased, TokensReleased{
		Nonce:     msg.Nonce,
		Token:     cfg.Token,
		Recipient: msg.Recipient,
		Amount:    msg.Amount,
	}, host.U64Topic(msg.Nonce), host.AddressTopic(msg.Recipient))
}

// IsNonceProcessed reports whether an inbound nonce was already released.
func (b *Bridge) IsNonceProcessed(env *host.Env, nonce uint64) (bool, error) {
	done, _, err := processed.Get(env.Ledger(), nonce)
	return done, err
}
