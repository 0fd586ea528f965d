// Package emergency implements per-chain circuit breakers and the bridge's
// pause switches.
package emergency

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
)

var (
	breakers     = ledger.NewMap[uint32, inter.CircuitBreaker](ledger.Persistent, "cbreak", ledger.U32Key)
	bridgePaused = ledger.NewValue[bool](ledger.Instance, "paused")
	chainsPaused = ledger.NewMap[uint32, bool](ledger.Persistent, "cpaused", ledger.U32Key)
)

// Controls is the emergency component.
type Controls struct {
	rules rules.Rules
	log   logrus.FieldLogger
}

// New creates the component.
func New(r rules.Rules, log logrus.FieldLogger) *Controls {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Controls{
		rules: r.Copy(),
		log:   log.WithField("module", "emergency"),
	}
}

// Event payloads.
type (
	BreakerConfigured struct {
		ChainID              uint32
		MaxDailyVolume       *big.Int
		MaxTransactionAmount *big.Int
	}

	BreakerTriggered struct {
		ChainID uint32
		Amount  *big.Int
		Volume  *big.Int
	}

	BreakerReset struct {
		ChainID uint32
	}

	PauseChanged struct {
		By     common.Address
		Chains []uint32
	}
)

// InitializeCircuitBreaker installs the breaker of chain. A chain has at most
// one breaker; limits of an existing one are changed with
// UpdateCircuitBreakerLimits.
func (c *Controls) InitializeCircuitBreaker(env *host.Env, chain uint32, maxDaily, maxTx *big.Int) error {
	if err := access.RequireAdmin(env); err != nil {
		return err
	}
	if err := validLimits(maxDaily, maxTx); err != nil {
		return err
	}
	ok, err := breakers.Has(env.Ledger(), chain)
	if err != nil {
		return err
	}
	if ok {
		return errs.Wrap(errs.ErrCircuitBreakerExists, "chain %d", chain)
	}
	cb := inter.CircuitBreaker{
		ChainID:              chain,
		MaxDailyVolume:       new(big.Int).Set(maxDaily),
		CurrentDailyVolume:   new(big.Int),
		MaxTransactionAmount: new(big.Int).Set(maxTx),
		LastReset:            env.Now(),
	}
	if err := breakers.Put(env.Ledger(), chain, cb); err != nil {
		return err
	}
	c.log.WithFields(logrus.Fields{"chain": chain, "daily": maxDaily, "tx": maxTx}).Info("Circuit breaker initialized")
	return env.Emit(inter.EventCircuitBreakerInitialized,
		BreakerConfigured{ChainID: chain, MaxDailyVolume: maxDaily, MaxTransactionAmount: maxTx},
		host.U64Topic(uint64(chain)))
}

// UpdateCircuitBreakerLimits replaces the limits of an existing breaker
// without touching its volume or trip state.
func (c *Controls) UpdateCircuitBreakerLimits(env *host.Env, chain uint32, maxDaily, maxTx *big.Int) error {
	if err := access.RequireAdmin(env); err != nil {
		return err
	}
	if err := validLimits(maxDaily, maxTx); err != nil {
		return err
	}
	cb, err := c.GetCircuitBreaker(env, chain)
	if err != nil {
		return err
	}
	cb.MaxDailyVolume = new(big.Int).Set(maxDaily)
	cb.MaxTransactionAmount = new(big.Int).Set(maxTx)
	if err := breakers.Put(env.Ledger(), chain, cb); err != nil {
		return err
	}
	return env.Emit(inter.EventCircuitBreakerUpdated,
		BreakerConfigured{ChainID: chain, MaxDailyVolume: maxDaily, MaxTransactionAmount: maxTx},
		host.U64Topic(uint64(chain)))
}

func validLimits(maxDaily, maxTx *big.Int) error {
	if maxDaily == nil || maxDaily.Sign() <= 0 || maxTx == nil || maxTx.Sign() <= 0 {
		return errs.Wrap(errs.ErrAmountMustBePositive, "circuit breaker limits")
	}
	return nil
}

// CheckCircuitBreaker accounts amount against the breaker of chain.
//
// A breaker that is already tripped rejects everything. A breaker that trips
// on this amount stays tripped after the call fails, until ResetCircuitBreaker.
// Callers must not write state before calling it in the same invocation.
func (c *Controls) CheckCircuitBreaker(env *host.Env, chain uint32, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return errs.Wrap(errs.ErrInvalidInput, "negative amount")
	}
	cb, err := c.GetCircuitBreaker(env, chain)
	if err != nil {
		return err
	}
	if cb.Triggered {
		return errs.Wrap(errs.ErrCircuitBreakerTriggered, "chain %d", chain)
	}
	if cb.WindowElapsed(env.Now(), c.rules.Breaker.Window) {
		cb.CurrentDailyVolume = new(big.Int)
		cb.LastReset = env.Now()
	}

	if cb.Exceeds(amount) {
		cb.Triggered = true
		if err := breakers.Put(env.Ledger(), chain, cb); err != nil {
			return err
		}
		if err := env.Emit(inter.EventCircuitBreakerTriggered,
			BreakerTriggered{ChainID: chain, Amount: amount, Volume: cb.CurrentDailyVolume},
			host.U64Topic(uint64(chain))); err != nil {
			return err
		}
		c.log.WithFields(logrus.Fields{
			"chain":  chain,
			"amount": amount,
			"volume": cb.CurrentDailyVolume,
		}).Warn("Circuit breaker triggered")
		return host.Retain(errs.Wrap(errs.ErrCircuitBreakerTriggered, "chain %d, amount %s", chain, amount))
	}

	cb.CurrentDailyVolume = new(big.Int).Add(cb.CurrentDailyVolume, amount)
	return breakers.Put(env.Ledger(), chain, cb)
}

// ResetCircuitBreaker clears the trip and the accumulated volume of chain.
func (c *Controls) ResetCircuitBreaker(env *host.Env, chain uint32) error {
	if err := access.RequireAdmin(env); err != nil {
		return err
	}
	cb, err := c.GetCircuitBreaker(env, chain)
	if err != nil {
		return err
	}
	cb.Triggered = false
	cb.CurrentDailyVolume = new(big.Int)
	cb.LastReset = env.Now()
	if err := breakers.Put(env.Ledger(), chain, cb); err != nil {
		return err
	}
	c.log.WithField("chain", chain).Info("Circuit breaker reset")
	return env.Emit(inter.EventCircuitBreakerReset, BreakerReset{ChainID: chain}, host.U64Topic(uint64(chain)))
}

// GetCircuitBreaker returns the breaker of chain. A missing breaker is an
// error, never an unlimited default.
func (c *Controls) GetCircuitBreaker(env *host.Env, chain uint32) (inter.CircuitBreaker, error) {
	cb, found, err := breakers.Get(env.Ledger(), chain)
	if err != nil {
		return cb, err
	}
	if !found {
		return cb, errs.Wrap(errs.ErrCircuitBreakerNotFound, "chain %d", chain)
	}
	return cb, nil
}

// PauseBridge stops all bridge transfers.
func (c *Controls) PauseBridge(env *host.Env) error {
	return c.setBridgePaused(env, true)
}

// ResumeBridge lifts PauseBridge.
func (c *Controls) ResumeBridge(env *host.Env) error {
	return c.setBridgePaused(env, false)
}

func (c *Controls) setBridgePaused(env *host.Env, paused bool) error {
	if err := access.RequireAdmin(env); err != nil {
		return err
	}
	if err := bridgePaused.Put(env.Ledger(), paused); err != nil {
		return err
	}
	name := inter.EventBridgeResumed
	if paused {
		name = inter.EventBridgePaused
	}
	c.log.WithField("paused", paused).Warn("Bridge pause switched")
	return env.Emit(name, PauseChanged{By: env.Caller()})
}

// PauseChains stops transfers to and from each of chains.
func (c *Controls) PauseChains(env *host.Env, chains []uint32) error {
	return c.setChainsPaused(env, chains, true)
}

// ResumeChains lifts PauseChains for each of chains.
func (c *Controls) ResumeChains(env *host.Env, chains []uint32) error {
	return c.setChainsPaused(env, chains, false)
}

func (c *Controls) setChainsPaused(env *host.Env, chains []uint32, paused bool) error {
	if err := access.RequireAdmin(env); err != nil {
		return err
	}
	if len(chains) == 0 {
		return errs.Wrap(errs.ErrInvalidInput, "no chains")
	}
	for _, chain := range chains {
		var err error
		if paused {
			err = chainsPaused.Put(env.Ledger(), chain, true)
		} else {
			err = chainsPaused.Delete(env.Ledger(), chain)
		}
		if err != nil {
			return err
		}
	}
	name := inter.EventChainsResumed
	if paused {
		name = inter.EventChainsPaused
	}
	c.log.WithFields(logrus.Fields{"chains": chains, "paused": paused}).Warn("Chain pause switched")
	return env.Emit(name, PauseChanged{By: env.Caller(), Chains: chains})
}

// IsBridgePaused reports the global switch.
func (c *Controls) IsBridgePaused(env *host.Env) (bool, error) {
	return bridgePaused.GetOr(env.Ledger(), false)
}

// IsChainPaused reports the switch of chain.
func (c *Controls) IsChainPaused(env *host.Env, chain uint32) (bool, error) {
	paused, _, err := chainsPaused.Get(env.Ledger(), chain)
	return paused, err
}

// RequireOpen fails when the bridge or any of chains is paused.
func (c *Controls) RequireOpen(env *host.Env, chains ...uint32) error {
	paused, err := c.IsBridgePaused(env)
	if err != nil {
		return err
	}
	if paused {
		return errs.ErrBridgePaused
	}
	for _, chain := range chains {
		paused, err := c.IsChainPaused(env, chain)
		if err != nil {
			return err
		}
		if paused {
			return errs.Wrap(errs.ErrChainPaused, "chain %d", chain)
		}
	}
	return nil
}
