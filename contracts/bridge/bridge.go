// Package bridge implements the transfer manager: outbound locks, inbound
// releases and refunds of stale outbound locks.
//
// The two directions are asymmetric. BridgeOut locks tokens unilaterally and
// leaves relaying to the destination chain. CompleteBridge mints for an
// inbound message once enough bridge signers have signed it; this signer
// count is independent of the proposal quorum, which is only consulted by
// CompleteFromProposal. Both inbound paths share one processed-nonce set, so
// a nonce is released at most once whichever path is used.
package bridge

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/rony4d/go-opera-bridge/contracts/access"
	"github.com/rony4d/go-opera-bridge/errs"
	"github.com/rony4d/go-opera-bridge/host"
	"github.com/rony4d/go-opera-bridge/inter"
	"github.com/rony4d/go-opera-bridge/ledger"
	"github.com/rony4d/go-opera-bridge/rules"
	"github.com/rony4d/go-opera-bridge/token"
)

var (
	config    = ledger.NewValue[Config](ledger.Instance, "bcfg")
	signers   = ledger.NewValue[[]common.Address](ledger.Instance, "bsigners")
	chains    = ledger.NewMap[uint32, bool](ledger.Instance, "bchains", ledger.U32Key)
	metrics   = ledger.NewValue[inter.BridgeMetrics](ledger.Instance, "bmetrics")
	nonceSeq  = ledger.NewCounter("bnonce")
	outbound  = ledger.NewMap[uint64, inter.BridgeTransaction](ledger.Persistent, "btx", ledger.U64Key)
	processed = ledger.NewMap[uint64, bool](ledger.Persistent, "bdone", ledger.U64Key)
)

// Config is the bridge configuration.
type Config struct {
	// Token is the only token the bridge locks and mints.
	Token        common.Address
	FeeRecipient common.Address
	// Fee is flat, charged only when smaller than the transferred amount.
	Fee *big.Int
	// MinValidators is the number of signer signatures CompleteBridge needs.
	MinValidators uint32
}

// Guard gates transfers on the emergency controls.
type Guard interface {
	RequireOpen(env *host.Env, chains ...uint32) error
	CheckCircuitBreaker(env *host.Env, chain uint32, amount *big.Int) error
}

// Proposals resolves approved proposals.
type Proposals interface {
	GetProposal(env *host.Env, id uint64) (inter.BridgeProposal, error)
}

// Bridge is the transfer manager.
type Bridge struct {
	rules     rules.Rules
	tokens    token.Ledger
	guard     Guard
	proposals Proposals
	log       logrus.FieldLogger
}

// New creates the manager.
func New(r rules.Rules, tokens token.Ledger, guard Guard, proposals Proposals, log logrus.FieldLogger) *Bridge {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Bridge{
		rules:     r.Copy(),
		tokens:    tokens,
		guard:     guard,
		proposals: proposals,
		log:       log.WithField("module", "bridge"),
	}
}

// Event payloads.
type (
	BridgeInitiated struct {
		Nonce            uint64
		Sender           common.Address
		Amount           *big.Int
		Fee              *big.Int
		DestinationChain uint32
		Recipient        []byte
	}

	TokensDeposited struct {
		Nonce  uint64
		From   common.Address
		Amount *big.Int
	}

	BridgeCompleted struct {
		Nonce        uint64
		SourceChain  uint32
		SourceTxHash common.Hash
		MessageHash  common.Hash
		// Proposal is zero when the release was authorised by signatures.
		Proposal uint64
	}

	TokensReleased struct {
		Nonce     uint64
		Token     common.Address
		Recipient common.Address
		Amount    *big.Int
	}

	BridgeCancelled struct {
		Nonce  uint64
		Sender common.Address
		Amount *big.Int
	}

	BridgeConfigured struct {
		Setting string
	}
)

// Initialize stores cfg together with the supported chains and the initial
// signer set.
func (b *Bridge) Initialize(env *host.Env, cfg Config, supported []uint32, initialSigners []common.Address) error {
	if err := access.RequireAdmin(env); err != nil {
		return err
	}
	ok, err := config.Has(env.Ledger())
	if err != nil {
		return err
	}
	if ok {
		return errs.ErrAlreadyInitialized
	}
	if cfg.Token == (common.Address{}) {
		return errs.Wrap(errs.ErrInvalidToken, "zero token")
	}
	if cfg.MinValidators == 0 {
		return errs.Wrap(errs.ErrInvalidInput, "min validators must be positive")
	}
	if cfg.Fee == nil {
		cfg.Fee = new(big.Int)
	}
	if cfg.Fee.Sign() < 0 {
		return errs.Wrap(errs.ErrInvalidInput, "negative fee")
	}

	if err := config.Put(env.Ledger(), cfg); err != nil {
		return err
	}
	for _, chain := range supported {
		if err := chains.Put(env.Ledger(), chain, true); err != nil {
			return err
		}
	}
	var set []common.Address
	for _, s := range initialSigners {
		if !contains(set, s) {
			set = append(set, s)
		}
	}
	if err := signers.Put(env.Ledger(), set); err != nil {
		return err
	}
	if err := metrics.Put(env.Ledger(), inter.NewBridgeMetrics()); err != nil {
		return err
	}

	b.log.WithFields(logrus.Fields{
		"token":   cfg.Token.Hex(),
		"fee":     cfg.Fee,
		"min":     cfg.MinValidators,
		"chains":  supported,
		"signers": len(set),
	}).Info("Bridge initialized")
	return env.Emit(inter.EventBridgeConfigured, BridgeConfigured{Setting: "init"})
}

// BridgeOut locks amount of the bridge token from from for delivery to
// recipient on destChain, and returns the transfer nonce.
func (b *Bridge) BridgeOut(env *host.Env, from common.Address, amount *big.Int, destChain uint32, recipient []byte) (uint64, error) {
	if err := env.RequireAuth(from); err != nil {
		return 0, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return 0, errs.ErrAmountMustBePositive
	}
	if err := b.guard.RequireOpen(env, destChain); err != nil {
		return 0, err
	}
	cfg, err := b.GetConfig(env)
	if err != nil {
		return 0, err
	}
	if ok, err := b.IsSupportedChain(env, destChain); err != nil {
		return 0, err
	} else if !ok {
		return 0, errs.Wrap(errs.ErrUnsupportedChain, "chain %d", destChain)
	}
	if len(recipient) == 0 || uint32(len(recipient)) > b.rules.Bridge.MaxRecipientSize {
		return 0, errs.Wrap(errs.ErrInvalidInput, "recipient of %d bytes", len(recipient))
	}
	// first write of the invocation: a trip must persist on its own
	if err := b.guard.CheckCircuitBreaker(env, destChain, amount); err != nil {
		return 0, err
	}

	escrow := env.Contract()
	if err := b.tokens.Transfer(env, cfg.Token, from, escrow, amount); err != nil {
		return 0, err
	}
	fee := new(big.Int)
	if cfg.Fee.Sign() > 0 && cfg.Fee.Cmp(amount) < 0 {
		fee.Set(cfg.Fee)
		if err := b.tokens.Transfer(env, cfg.Token, escrow, cfg.FeeRecipient, fee); err != nil {
			return 0, err
		}
	}
	net := new(big.Int).Sub(amount, fee)

	nonce, err := nonceSeq.Next(env.Ledger())
	if err != nil {
		return 0, err
	}
	tx := inter.BridgeTransaction{
		Nonce:            nonce,
		Sender:           from,
		Token:            cfg.Token,
		Amount:           net,
		Fee:              fee,
		DestinationChain: destChain,
		Recipient:        append([]byte(nil), recipient...),
		Timestamp:        env.Now(),
	}
	if err := outbound.Put(env.Ledger(), nonce, tx); err != nil {
		return 0, err
	}
	if err := b.updateMetrics(env, func(m *inter.BridgeMetrics) {
		m.OutboundCount++
		m.OutboundVolume.Add(m.OutboundVolume, amount)
		m.FeesCollected.Add(m.FeesCollected, fee)
	}); err != nil {
		return 0, err
	}

	b.log.WithFields(logrus.Fields{
		"nonce":  nonce,
		"sender": from.Hex(),
		"amount": net,
		"fee":    fee,
		"chain":  destChain,
	}).Info("Bridge transfer initiated")
	if err := env.Emit(inter.EventBridgeInitiated, BridgeInitiated{
		Nonce:            nonce,
		Sender:           from,
		Amount:           net,
		Fee:              fee,
		DestinationChain: destChain,
		Recipient:        tx.Recipient,
	}, host.U64Topic(nonce), host.AddressTopic(from), host.U64Topic(uint64(destChain))); err != nil {
		return 0, err
	}
	return nonce, env.Emit(inter.EventTokensDeposited,
		TokensDeposited{Nonce: nonce, From: from, Amount: amount},
		host.U64Topic(nonce), host.AddressTopic(from))
}

// CancelBridge refunds a pending outbound transfer once the cancel timeout
// has passed. Anyone may call it; the refund always goes to the sender.
func (b *Bridge) CancelBridge(env *host.Env, nonce uint64) error {
	tx, err := b.GetBridgeTransaction(env, nonce)
	if err != nil {
		return err
	}
	if !tx.Cancellable(env.Now(), b.rules.Bridge.CancelTimeout) {
		return errs.Wrap(errs.ErrTimeoutNotReached, "nonce %d", nonce)
	}
	if err := outbound.Delete(env.Ledger(), nonce); err != nil {
		return err
	}
	if err := b.tokens.Transfer(env, tx.Token, env.Contract(), tx.Sender, tx.Amount); err != nil {
		return err
	}
	if err := b.updateMetrics(env, func(m *inter.BridgeMetrics) {
		m.CancelledCount++
		m.CancelledVolume.Add(m.CancelledVolume, tx.Amount)
	}); err != nil {
		return err
	}

	b.log.WithFields(logrus.Fields{"nonce": nonce, "sender": tx.Sender.Hex(), "amount": tx.Amount}).Info("Bridge transfer cancelled")
	return env.Emit(inter.EventBridgeCancelled,
		BridgeCancelled{Nonce: nonce, Sender: tx.Sender, Amount: tx.Amount},
		host.U64Topic(nonce), host.AddressTopic(tx.Sender))
}

// GetBridgeTransaction returns the pending outbound transfer nonce.
func (b *Bridge) GetBridgeTransaction(env *host.Env, nonce uint64) (inter.BridgeTransaction, error) {
	tx, found, err := outbound.Get(env.Ledger(), nonce)
	if err != nil {
		return tx, err
	}
	if !found {
		return tx, errs.Wrap(errs.ErrTransactionNotFound, "nonce %d", nonce)
	}
	return tx, nil
}

// GetConfig returns the configuration.
func (b *Bridge) GetConfig(env *host.Env) (Config, error) {
	cfg, found, err := config.Get(env.Ledger())
	if err != nil {
		return cfg, err
	}
	if !found {
		return cfg, errs.ErrNotInitialized
	}
	return cfg, nil
}

// GetBridgeMetrics returns the activity counters.
func (b *Bridge) GetBridgeMetrics(env *host.Env) (inter.BridgeMetrics, error) {
	m, found, err := metrics.Get(env.Ledger())
	if err != nil {
		return m, err
	}
	if !found {
		return m, errs.ErrNotInitialized
	}
	return m, nil
}

// GetNonce returns the last issued outbound nonce.
func (b *Bridge) GetNonce(env *host.Env) (uint64, error) {
	return nonceSeq.Current(env.Ledger())
}

func (b *Bridge) updateMetrics(env *host.Env, fn func(*inter.BridgeMetrics)) error {
	m, err := b.GetBridgeMetrics(env)
	if err != nil {
		return err
	}
	fn(&m)
	return metrics.Put(env.Ledger(), m)
}

func contains(set []common.Address, addr common.Address) bool {
	for _, a := range set {
		if a == addr {
			return true
		}
	}
	return false
}
