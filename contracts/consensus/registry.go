package consensus

import (
	"math/big"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/Fantom-foundation/lachesis-base/inter/pos"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/rony4d/go-opera-bridge/contracts/access"
	"github.com/rony4d/go-opera-bridge/errs"
	"github.com/rony4d/go-opera-bridge/host"
	"github.com/rony4d/go-opera-bridge/inter"
	"github.com/rony4d/go-opera-bridge/rules"
)

// Initialize writes the empty ConsensusState. Every other operation refuses to
// run without it.
func (c *Consensus) Initialize(env *host.Env) error {
	if err := access.RequireAdmin(env); err != nil {
		return err
	}
	ok, err := state.Has(env.Ledger())
	if err != nil {
		return err
	}
	if ok {
		return errs.ErrAlreadyInitialized
	}
	return state.Put(env.Ledger(), inter.ConsensusState{
		TotalStake:         new(big.Int),
		ByzantineThreshold: ByzantineThreshold(0),
	})
}

// RegisterValidator admits validator with stake.
func (c *Consensus) RegisterValidator(env *host.Env, validator common.Address, stake *big.Int) error {
	if err := env.RequireAuth(validator); err != nil {
		return err
	}
	if stake == nil || stake.Cmp(c.rules.Validators.MinStake) < 0 {
		return errs.Wrap(errs.ErrInsufficientStake, "minimum %s", c.rules.Validators.MinStake)
	}
	ok, err := validators.Has(env.Ledger(), validator)
	if err != nil {
		return err
	}
	if ok {
		return errs.ErrValidatorAlreadyRegistered
	}
	set, err := activeSet.GetOr(env.Ledger(), nil)
	if err != nil {
		return err
	}
	if uint32(len(set)) >= c.rules.Validators.MaxValidators {
		return errs.ErrTooManyValidators
	}

	id, err := validatorID.Next(env.Ledger())
	if err != nil {
		return err
	}
	info := inter.ValidatorInfo{
		Address:       validator,
		ID:            idx.ValidatorID(id),
		Stake:         new(big.Int).Set(stake),
		Reputation:    rules.MaxReputation,
		Active:        true,
		JoinedAt:      env.Now(),
		LastActivity:  env.Now(),
		SlashedAmount: new(big.Int),
	}
	if err := c.store(env, info); err != nil {
		return err
	}
	if err := activeSet.Put(env.Ledger(), append(set, validator)); err != nil {
		return err
	}
	if err := c.recompute(env); err != nil {
		return err
	}

	c.log.WithFields(logrus.Fields{"validator": validator.Hex(), "id": info.ID, "stake": stake}).Info("Validator registered")
	return env.Emit(inter.EventValidatorRegistered,
		ValidatorRegistered{Validator: validator, ID: uint32(info.ID), Stake: info.Stake},
		host.AddressTopic(validator))
}

// UnregisterValidator removes validator and returns its stake. The stake is
// only reported in the event; no tokens are transferred back.
func (c *Consensus) UnregisterValidator(env *host.Env, validator common.Address) (*big.Int, error) {
	if err := env.RequireAuth(validator); err != nil {
		return nil, err
	}
	info, err := c.Validator(env, validator)
	if err != nil {
		return nil, err
	}
	stake, found, err := stakes.Get(env.Ledger(), validator)
	if err != nil {
		return nil, err
	}
	if !found || stake == nil {
		stake = info.Stake
	}

	if err := c.removeActive(env, validator); err != nil {
		return nil, err
	}
	if err := validators.Delete(env.Ledger(), validator); err != nil {
		return nil, err
	}
	if err := stakes.Delete(env.Ledger(), validator); err != nil {
		return nil, err
	}
	if err := c.recompute(env); err != nil {
		return nil, err
	}

	c.log.WithFields(logrus.Fields{"validator": validator.Hex(), "stake": stake}).Info("Validator unregistered")
	err = env.Emit(inter.EventValidatorUnregistered,
		ValidatorUnregistered{Validator: validator, Stake: stake},
		host.AddressTopic(validator))
	return stake, err
}

// IsActiveValidator reports whether addr is registered and active.
func (c *Consensus) IsActiveValidator(env *host.Env, addr common.Address) (bool, error) {
	info, found, err := validators.Get(env.Ledger(), addr)
	if err != nil || !found {
		return false, err
	}
	return info.Active, nil
}

// GetValidatorInfo returns the registry record of addr.
func (c *Consensus) GetValidatorInfo(env *host.Env, addr common.Address) (inter.ValidatorInfo, error) {
	return c.Validator(env, addr)
}

// GetActiveValidators returns the active set in registration order.
func (c *Consensus) GetActiveValidators(env *host.Env) ([]common.Address, error) {
	return activeSet.GetOr(env.Ledger(), nil)
}

// GetConsensusState returns the derived state. It fails rather than
// defaulting when the registry was never initialized.
func (c *Consensus) GetConsensusState(env *host.Env) (inter.ConsensusState, error) {
	st, found, err := state.Get(env.Ledger())
	if err != nil {
		return st, err
	}
	if !found {
		return st, errs.ErrNotInitialized
	}
	return st, nil
}

// GetStake returns the stake entry of addr.
func (c *Consensus) GetStake(env *host.Env, addr common.Address) (*big.Int, error) {
	stake, found, err := stakes.Get(env.Ledger(), addr)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errs.ErrValidatorNotFound
	}
	return stake, nil
}

// Validator loads the record of addr or fails with ErrValidatorNotFound.
func (c *Consensus) Validator(env *host.Env, addr common.Address) (inter.ValidatorInfo, error) {
	info, found, err := validators.Get(env.Ledger(), addr)
	if err != nil {
		return info, err
	}
	if !found {
		return info, errs.Wrap(errs.ErrValidatorNotFound, "%s", addr.Hex())
	}
	return info, nil
}

// UpdateValidator persists info after a stake or reputation change made by
// the slashing ledger. Both stake locations are written, activation follows
// the minimum stake, and the consensus state is recomputed.
func (c *Consensus) UpdateValidator(env *host.Env, info inter.ValidatorInfo) error {
	if info.Stake == nil || info.Stake.Sign() < 0 {
		return errs.Wrap(errs.ErrInvalidInput, "negative stake")
	}
	ok, err := validators.Has(env.Ledger(), info.Address)
	if err != nil {
		return err
	}
	if !ok {
		return errs.Wrap(errs.ErrValidatorNotFound, "%s", info.Address.Hex())
	}

	eligible := info.Stake.Cmp(c.rules.Validators.MinStake) >= 0
	switch {
	case info.Active && !eligible:
		info.Active = false
		if err := c.removeActive(env, info.Address); err != nil {
			return err
		}
		c.log.WithField("validator", info.Address.Hex()).Warn("Validator deactivated, stake below minimum")
	case !info.Active && eligible:
		set, err := activeSet.GetOr(env.Ledger(), nil)
		if err != nil {
			return err
		}
		if uint32(len(set)) < c.rules.Validators.MaxValidators {
			info.Active = true
			if err := activeSet.Put(env.Ledger(), append(set, info.Address)); err != nil {
				return err
			}
			c.log.WithField("validator", info.Address.Hex()).Info("Validator reactivated")
		}
	}

	if err := c.store(env, info); err != nil {
		return err
	}
	return c.recompute(env)
}

// touch records a validation by addr.
func (c *Consensus) touch(env *host.Env, addr common.Address) error {
	info, err := c.Validator(env, addr)
	if err != nil {
		return err
	}
	info.LastActivity = env.Now()
	info.TotalValidations++
	return validators.Put(env.Ledger(), addr, info)
}

func (c *Consensus) store(env *host.Env, info inter.ValidatorInfo) error {
	if err := validators.Put(env.Ledger(), info.Address, info); err != nil {
		return err
	}
	return stakes.Put(env.Ledger(), info.Address, info.Stake)
}

func (c *Consensus) removeActive(env *host.Env, addr common.Address) error {
	set, err := activeSet.GetOr(env.Ledger(), nil)
	if err != nil {
		return err
	}
	out := set[:0]
	for _, a := range set {
		if a != addr {
			out = append(out, a)
		}
	}
	return activeSet.Put(env.Ledger(), out)
}

// recompute derives the ConsensusState from the active set.
func (c *Consensus) recompute(env *host.Env) error {
	st, err := c.GetConsensusState(env)
	if err != nil {
		return err
	}
	set, err := activeSet.GetOr(env.Ledger(), nil)
	if err != nil {
		return err
	}

	builder := pos.NewBuilder()
	total := new(big.Int)
	for _, addr := range set {
		info, err := c.Validator(env, addr)
		if err != nil {
			return err
		}
		builder.Set(info.ID, 1)
		total.Add(total, info.Stake)
	}
	vv := builder.Build()

	st.TotalStake = total
	st.ActiveValidators = uint32(vv.Len())
	st.ByzantineThreshold = uint32(vv.Quorum())
	return state.Put(env.Ledger(), st)
}
