// Package slashing keeps validator stake, the reward pool, and the append-only
// slashing and reward histories.
//
// Slashed stake is not burned. It is credited to the reward pool, which is
// the only source of validator rewards. Stake and pool are bookkeeping
// balances: no token moves in or out of this package.
package slashing

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/rony4d/go-opera-bridge/contracts/access"
	"github.com/rony4d/go-opera-bridge/errs"
	"github.com/rony4d/go-opera-bridge/host"
	"github.com/rony4d/go-opera-bridge/inter"
	"github.com/rony4d/go-opera-bridge/inter/drivertype"
	"github.com/rony4d/go-opera-bridge/ledger"
	"github.com/rony4d/go-opera-bridge/rules"
)

var (
	rewardPool = ledger.NewValue[*big.Int](ledger.Instance, "rpool")

	slashes     = ledger.NewMap[ledger.AddressIndex, inter.SlashingRecord](ledger.Persistent, "slash", ledger.AddressIndexKey)
	slashCounts = ledger.NewMap[common.Address, uint64](ledger.Persistent, "slashn", ledger.AddressKey)

	rewards      = ledger.NewMap[ledger.AddressIndex, inter.RewardRecord](ledger.Persistent, "reward", ledger.AddressIndexKey)
	rewardCounts = ledger.NewMap[common.Address, uint64](ledger.Persistent, "rewardn", ledger.AddressKey)
)

// Registry is the part of the validator registry the ledger updates.
type Registry interface {
	Validator(env *host.Env, addr common.Address) (inter.ValidatorInfo, error)
	UpdateValidator(env *host.Env, info inter.ValidatorInfo) error
}

// Ledger is the slashing and rewards component.
type Ledger struct {
	rules    rules.Rules
	registry Registry
	log      logrus.FieldLogger
}

// New creates the ledger over registry.
func New(r rules.Rules, registry Registry, log logrus.FieldLogger) *Ledger {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Ledger{
		rules:    r.Copy(),
		registry: registry,
		log:      log.WithField("module", "slashing"),
	}
}

// Event payloads.
type (
	StakeChanged struct {
		Validator common.Address
		Amount    *big.Int
		Stake     *big.Int
	}

	ValidatorSlashed struct {
		Validator  common.Address
		Slasher    common.Address
		Reason     uint8
		Amount     *big.Int
		Reputation uint32
	}

	ValidatorRewarded struct {
		Validator  common.Address
		Amount     *big.Int
		RewardType string
	}

	RewardPoolFunded struct {
		Funder common.Address
		Amount *big.Int
		Pool   *big.Int
	}
)

// DepositStake adds amount to the stake of validator.
func (l *Ledger) DepositStake(env *host.Env, validator common.Address, amount *big.Int) error {
	if err := env.RequireAuth(validator); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return errs.ErrAmountMustBePositive
	}
	info, err := l.registry.Validator(env, validator)
	if err != nil {
		return err
	}
	info.Stake = new(big.Int).Add(info.Stake, amount)
	if err := l.registry.UpdateValidator(env, info); err != nil {
		return err
	}
	return env.Emit(inter.EventStakeDeposited,
		StakeChanged{Validator: validator, Amount: amount, Stake: info.Stake},
		host.AddressTopic(validator))
}

// WithdrawStake removes amount from the stake of validator. Dropping below
// the minimum stake deactivates the validator.
func (l *Ledger) WithdrawStake(env *host.Env, validator common.Address, amount *big.Int) error {
	if err := env.RequireAuth(validator); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return errs.ErrAmountMustBePositive
	}
	info, err := l.registry.Validator(env, validator)
	if err != nil {
		return err
	}
	if amount.Cmp(info.Stake) > 0 {
		return errs.Wrap(errs.ErrInsufficientBalance, "stake %s, withdraw %s", info.Stake, amount)
	}
	info.Stake = new(big.Int).Sub(info.Stake, amount)
	if err := l.registry.UpdateValidator(env, info); err != nil {
		return err
	}
	return env.Emit(inter.EventStakeWithdrawn,
		StakeChanged{Validator: validator, Amount: amount, Stake: info.Stake},
		host.AddressTopic(validator))
}

// SlashValidator confiscates the reason's share of the validator's stake
// into the reward pool.
func (l *Ledger) SlashValidator(env *host.Env, validator common.Address, reason inter.SlashReason, evidence []byte, slasher common.Address) error {
	if err := env.RequireAuth(slasher); err != nil {
		return err
	}
	_, err := l.slash(env, validator, reason, evidence, slasher)
	return err
}

func (l *Ledger) slash(env *host.Env, validator common.Address, reason inter.SlashReason, evidence []byte, slasher common.Address) (inter.ValidatorInfo, error) {
	if slasher == validator {
		return inter.ValidatorInfo{}, errs.ErrCannotSlashSelf
	}
	penalty, ok := l.rules.Slashing.For(reason)
	if !ok {
		return inter.ValidatorInfo{}, errs.Wrap(errs.ErrInvalidInput, "slash reason %d", uint8(reason))
	}
	info, err := l.registry.Validator(env, validator)
	if err != nil {
		return info, err
	}
	amount := penalty.Amount(info.Stake)
	if amount.Sign() <= 0 {
		return info, errs.Wrap(errs.ErrInvalidSlashingEvidence, "nothing to slash from %s", validator.Hex())
	}
	if amount.Cmp(info.Stake) > 0 {
		amount.Set(info.Stake)
	}

	info.Stake = new(big.Int).Sub(info.Stake, amount)
	info.SlashedAmount = new(big.Int).Add(info.SlashedAmount, amount)
	info.Reputation = penalty.Degrade(info.Reputation)
	info.Status |= drivertype.StatusBit(reason)
	if err := l.registry.UpdateValidator(env, info); err != nil {
		return info, err
	}

	if err := l.credit(env, amount); err != nil {
		return info, err
	}
	record := inter.SlashingRecord{
		Validator: validator,
		Amount:    amount,
		Reason:    reason,
		Timestamp: env.Now(),
		Evidence:  append([]byte(nil), evidence...),
		Slasher:   slasher,
	}
	if err := appendRecord(env, slashes, slashCounts, validator, record); err != nil {
		return info, err
	}

	l.log.WithFields(logrus.Fields{
		"validator":  validator.Hex(),
		"reason":     reason,
		"amount":     amount,
		"reputation": info.Reputation,
		"status":     drivertype.Describe(info.Status),
	}).Warn("Validator slashed")
	return info, env.Emit(inter.EventValidatorSlashed, ValidatorSlashed{
		Validator:  validator,
		Slasher:    slasher,
		Reason:     uint8(reason),
		Amount:     amount,
		Reputation: info.Reputation,
	}, host.AddressTopic(validator), host.AddressTopic(slasher))
}

// RewardValidator pays amount from the reward pool into the validator's
// stake. Only the admin may reward.
func (l *Ledger) RewardValidator(env *host.Env, validator common.Address, amount *big.Int, rewardType string) error {
	if err := access.RequireAdmin(env); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return errs.ErrAmountMustBePositive
	}
	pool, err := l.GetRewardPool(env)
	if err != nil {
		return err
	}
	if amount.Cmp(pool) > 0 {
		return errs.Wrap(errs.ErrInsufficientBalance, "reward pool %s, reward %s", pool, amount)
	}
	info, err := l.registry.Validator(env, validator)
	if err != nil {
		return err
	}

	if err := rewardPool.Put(env.Ledger(), new(big.Int).Sub(pool, amount)); err != nil {
		return err
	}
	info.Stake = new(big.Int).Add(info.Stake, amount)
	if err := l.registry.UpdateValidator(env, info); err != nil {
		return err
	}
	record := inter.RewardRecord{
		Validator:  validator,
		Amount:     amount,
		RewardType: rewardType,
		Timestamp:  env.Now(),
	}
	if err := appendRecord(env, rewards, rewardCounts, validator, record); err != nil {
		return err
	}

	l.log.WithFields(logrus.Fields{"validator": validator.Hex(), "amount": amount, "type": rewardType}).Info("Validator rewarded")
	return env.Emit(inter.EventValidatorRewarded,
		ValidatorRewarded{Validator: validator, Amount: amount, RewardType: rewardType},
		host.AddressTopic(validator))
}

// FundRewardPool credits amount to the pool on behalf of funder.
func (l *Ledger) FundRewardPool(env *host.Env, funder common.Address, amount *big.Int) error {
	if err := env.RequireAuth(funder); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return errs.ErrAmountMustBePositive
	}
	if err := l.credit(env, amount); err != nil {
		return err
	}
	pool, err := l.GetRewardPool(env)
	if err != nil {
		return err
	}
	return env.Emit(inter.EventRewardPoolFunded,
		RewardPoolFunded{Funder: funder, Amount: amount, Pool: pool},
		host.AddressTopic(funder))
}

// CheckInactivity slashes validator for inactivity when it has been idle for
// longer than the threshold, and reports whether it did. Anyone may call it;
// the contract itself is recorded as the slasher.
func (l *Ledger) CheckInactivity(env *host.Env, validator common.Address) (bool, error) {
	info, err := l.registry.Validator(env, validator)
	if err != nil {
		return false, err
	}
	if !info.Active || !info.Inactive(env.Now(), l.rules.Validators.InactivityThreshold) {
		return false, nil
	}

	if _, err := l.slash(env, validator, inter.Inactivity, nil, env.Contract()); err != nil {
		return false, err
	}
	if info, err = l.registry.Validator(env, validator); err != nil {
		return false, err
	}
	info.MissedValidations++
	info.LastActivity = env.Now()
	if err := l.registry.UpdateValidator(env, info); err != nil {
		return false, err
	}
	return true, nil
}

func (l *Ledger) credit(env *host.Env, amount *big.Int) error {
	pool, err := l.GetRewardPool(env)
	if err != nil {
		return err
	}
	return rewardPool.Put(env.Ledger(), new(big.Int).Add(pool, amount))
}

// GetStake returns the current stake of validator.
func (l *Ledger) GetStake(env *host.Env, validator common.Address) (*big.Int, error) {
	info, err := l.registry.Validator(env, validator)
	if err != nil {
		return nil, err
	}
	return info.Stake, nil
}

// GetRewardPool returns the pool balance.
func (l *Ledger) GetRewardPool(env *host.Env) (*big.Int, error) {
	pool, err := rewardPool.GetOr(env.Ledger(), nil)
	if err != nil {
		return nil, err
	}
	if pool == nil {
		pool = new(big.Int)
	}
	return pool, nil
}

// GetSlashingHistory returns every slash of validator, oldest first. The
// history survives unregistration.
func (l *Ledger) GetSlashingHistory(env *host.Env, validator common.Address) ([]inter.SlashingRecord, error) {
	return readRecords(env, slashes, slashCounts, validator)
}

// GetRewardHistory returns every reward of validator, oldest first.
func (l *Ledger) GetRewardHistory(env *host.Env, validator common.Address) ([]inter.RewardRecord, error) {
	return readRecords(env, rewards, rewardCounts, validator)
}

func appendRecord[R any](env *host.Env, log ledger.Map[ledger.AddressIndex, R], counts ledger.Map[common.Address, uint64], addr common.Address, r R) error {
	n, _, err := counts.Get(env.Ledger(), addr)
	if err != nil {
		return err
	}
	if err := log.Put(env.Ledger(), ledger.AddressIndex{Address: addr, Index: n}, r); err != nil {
		return err
	}
	return counts.Put(env.Ledger(), addr, n+1)
}

func readRecords[R any](env *host.Env, log ledger.Map[ledger.AddressIndex, R], counts ledger.Map[common.Address, uint64], addr common.Address) ([]R, error) {
	n, _, err := counts.Get(env.Ledger(), addr)
	if err != nil {
		return nil, err
	}
	out := make([]R, 0, n)
	for i := uint64(0); i < n; i++ {
		r, found, err := log.Get(env.Ledger(), ledger.AddressIndex{Address: addr, Index: i})
		if err != nil {
			return nil, err
		}
		if found {
			out = append(out, r)
		}
	}
	return out, nil
}
