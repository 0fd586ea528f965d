// Package atomicswap implements two-party hash time-locked swaps.
//
// The initiator's leg is escrowed in the contract when the swap is created.
// The counterparty completes the swap by revealing the SHA-256 preimage of
// the hashlock before the timelock; its own leg is pulled into escrow and
// both legs are released in the same invocation. After the timelock the
// initiator alone may reclaim the escrow, once.
package atomicswap

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/rony4d/go-opera-bridge/errs"
	"github.com/rony4d/go-opera-bridge/host"
	"github.com/rony4d/go-opera-bridge/inter"
	"github.com/rony4d/go-opera-bridge/ledger"
	"github.com/rony4d/go-opera-bridge/rules"
	"github.com/rony4d/go-opera-bridge/token"
)

var (
	swaps   = ledger.NewMap[uint64, inter.AtomicSwap](ledger.Persistent, "swap", ledger.U64Key)
	swapSeq = ledger.NewCounter("swapseq")
)

// SwapParams describes a swap to initiate. Timelock is relative to the
// initiation time.
type SwapParams struct {
	Initiator       common.Address
	InitiatorToken  common.Address
	InitiatorAmount *big.Int

	Counterparty       common.Address
	CounterpartyToken  common.Address
	CounterpartyAmount *big.Int

	Hashlock []byte
	Timelock inter.Timestamp
}

// Engine is the HTLC component.
type Engine struct {
	rules  rules.Rules
	tokens token.Ledger
	log    logrus.FieldLogger
}

// New creates the engine settling through tokens.
func New(r rules.Rules, tokens token.Ledger, log logrus.FieldLogger) *Engine {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Engine{
		rules:  r.Copy(),
		tokens: tokens,
		log:    log.WithField("module", "atomicswap"),
	}
}

// Event payloads.
type (
	SwapInitiated struct {
		ID           uint64
		Initiator    common.Address
		Counterparty common.Address
		Hashlock     common.Hash
		Timelock     uint64
	}

	SwapCompleted struct {
		ID       uint64
		Preimage []byte
	}

	SwapClosed struct {
		ID uint64
	}
)

// InitiateSwap escrows the initiator's leg and opens the swap.
func (e *Engine) InitiateSwap(env *host.Env, p SwapParams) (uint64, error) {
	if err := env.RequireAuth(p.Initiator); err != nil {
		return 0, err
	}
	if p.InitiatorAmount == nil || p.InitiatorAmount.Sign() <= 0 ||
		p.CounterpartyAmount == nil || p.CounterpartyAmount.Sign() <= 0 {
		return 0, errs.ErrAmountMustBePositive
	}
	if len(p.Hashlock) != inter.HashlockSize {
		return 0, errs.Wrap(errs.ErrInvalidHashlock, "length %d", len(p.Hashlock))
	}
	if p.Timelock < e.rules.Swaps.MinTimelock || p.Timelock > e.rules.Swaps.MaxTimelock {
		return 0, errs.Wrap(errs.ErrInvalidTimelock, "%s outside [%s, %s]",
			p.Timelock.Duration(), e.rules.Swaps.MinTimelock.Duration(), e.rules.Swaps.MaxTimelock.Duration())
	}
	if p.Initiator == p.Counterparty {
		return 0, errs.Wrap(errs.ErrInvalidInput, "initiator is counterparty")
	}

	if err := e.tokens.Transfer(env, p.InitiatorToken, p.Initiator, env.Contract(), p.InitiatorAmount); err != nil {
		return 0, err
	}
	id, err := swapSeq.Next(env.Ledger())
	if err != nil {
		return 0, err
	}
	s := inter.AtomicSwap{
		ID:                 id,
		Initiator:          p.Initiator,
		InitiatorToken:     p.InitiatorToken,
		InitiatorAmount:    new(big.Int).Set(p.InitiatorAmount),
		Counterparty:       p.Counterparty,
		CounterpartyToken:  p.CounterpartyToken,
		CounterpartyAmount: new(big.Int).Set(p.CounterpartyAmount),
		Hashlock:           common.BytesToHash(p.Hashlock),
		Timelock:           env.Now().Add(p.Timelock),
		Status:             inter.SwapInitiated,
		CreatedAt:          env.Now(),
	}
	if err := swaps.Put(env.Ledger(), id, s); err != nil {
		return 0, err
	}

	e.log.WithFields(logrus.Fields{
		"swap":         id,
		"initiator":    p.Initiator.Hex(),
		"counterparty": p.Counterparty.Hex(),
		"timelock":     s.Timelock,
	}).Info("Swap initiated")
	return id, env.Emit(inter.EventSwapInitiated, SwapInitiated{
		ID:           id,
		Initiator:    s.Initiator,
		Counterparty: s.Counterparty,
		Hashlock:     s.Hashlock,
		Timelock:     uint64(s.Timelock),
	}, host.U64Topic(id), host.AddressTopic(s.Initiator), host.AddressTopic(s.Counterparty))
}

// AcceptSwap completes swap id with preimage. Past the timelock the swap is
// marked Expired and can no longer complete, even with the right preimage.
func (e *Engine) AcceptSwap(env *host.Env, id uint64, counterparty common.Address, preimage []byte) error {
	if err := env.RequireAuth(counterparty); err != nil {
		return err
	}
	s, err := e.GetSwap(env, id)
	if err != nil {
		return err
	}
	if s.Counterparty != counterparty {
		return errs.Wrap(errs.ErrUnauthorized, "not the counterparty of swap %d", id)
	}
	if err := notClosed(s); err != nil {
		return err
	}
	if s.IsExpired(env.Now()) {
		s.Status = inter.SwapExpired
		if err := swaps.Put(env.Ledger(), id, s); err != nil {
			return err
		}
		if err := env.Emit(inter.EventSwapExpired, SwapClosed{ID: id}, host.U64Topic(id)); err != nil {
			return err
		}
		return host.Retain(errs.Wrap(errs.ErrTimelockExpired, "swap %d", id))
	}
	if !s.Unlocks(preimage) {
		return errs.Wrap(errs.ErrInvalidPreimage, "swap %d", id)
	}

	escrow := env.Contract()
	if err := e.tokens.Transfer(env, s.CounterpartyToken, counterparty, escrow, s.CounterpartyAmount); err != nil {
		return err
	}
	if err := e.tokens.Transfer(env, s.CounterpartyToken, escrow, s.Initiator, s.CounterpartyAmount); err != nil {
		return err
	}
	if err := e.tokens.Transfer(env, s.InitiatorToken, escrow, counterparty, s.InitiatorAmount); err != nil {
		return err
	}

	s.Status = inter.SwapCompleted
	s.Preimage = append([]byte(nil), preimage...)
	if err := swaps.Put(env.Ledger(), id, s); err != nil {
		return err
	}
	e.log.WithField("swap", id).Info("Swap completed")
	return env.Emit(inter.EventSwapCompleted, SwapCompleted{ID: id, Preimage: s.Preimage}, host.U64Topic(id))
}

// RefundSwap returns the escrowed leg to the initiator after the timelock.
func (e *Engine) RefundSwap(env *host.Env, id uint64, initiator common.Address) error {
	if err := env.RequireAuth(initiator); err != nil {
		return err
	}
	s, err := e.GetSwap(env, id)
	if err != nil {
		return err
	}
	if s.Initiator != initiator {
		return errs.Wrap(errs.ErrUnauthorized, "not the initiator of swap %d", id)
	}
	switch s.Status {
	case inter.SwapCompleted:
		return errs.Wrap(errs.ErrSwapAlreadyCompleted, "swap %d", id)
	case inter.SwapRefunded:
		return errs.Wrap(errs.ErrSwapAlreadyRefunded, "swap %d", id)
	}
	if !s.IsExpired(env.Now()) {
		return errs.Wrap(errs.ErrTimeoutNotReached, "swap %d locked until %s", id, s.Timelock)
	}

	if err := e.tokens.Transfer(env, s.InitiatorToken, env.Contract(), initiator, s.InitiatorAmount); err != nil {
		return err
	}
	s.Status = inter.SwapRefunded
	if err := swaps.Put(env.Ledger(), id, s); err != nil {
		return err
	}
	e.log.WithField("swap", id).Info("Swap refunded")
	return env.Emit(inter.EventSwapRefunded, SwapClosed{ID: id}, host.U64Topic(id))
}

func notClosed(s inter.AtomicSwap) error {
	switch s.Status {
	case inter.SwapInitiated:
		return nil
	case inter.SwapRefunded:
		return errs.Wrap(errs.ErrSwapAlreadyRefunded, "swap %d", s.ID)
	default:
		return errs.Wrap(errs.ErrSwapAlreadyCompleted, "swap %d is %s", s.ID, s.Status)
	}
}

// GetSwap returns swap id.
func (e *Engine) GetSwap(env *host.Env, id uint64) (inter.AtomicSwap, error) {
	s, found, err := swaps.Get(env.Ledger(), id)
	if err != nil {
		return s, err
	}
	if !found {
		return s, errs.Wrap(errs.ErrSwapNotFound, "swap %d", id)
	}
	return s, nil
}

// GetSwapCount returns the number of swaps ever initiated.
func (e *Engine) GetSwapCount(env *host.Env) (uint64, error) {
	return swapSeq.Current(env.Ledger())
}
