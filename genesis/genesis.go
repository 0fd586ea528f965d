// Package genesis describes the initial state of a bridge network and applies
// it to a fresh engine.
//
// A genesis is applied through ordinary invocations: the admin bootstraps the
// registry, the token, the circuit breakers and the bridge configuration in
// one call, then every validator registers itself. Nothing bypasses the checks
// a live network enforces.
package genesis

import (
	"errors"
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"github.com/rony4d/go-opera-bridge/contracts/access"
	"github.com/rony4d/go-opera-bridge/contracts/bridge"
	"github.com/rony4d/go-opera-bridge/host"
	"github.com/rony4d/go-opera-bridge/integration"
	"github.com/rony4d/go-opera-bridge/inter/validatorpk"
	"github.com/rony4d/go-opera-bridge/rules"
)

// Genesis is the initial state of a network. It loads from YAML or JSON.
type Genesis struct {
	// Rules names a rules preset, see rules.ByName.
	Rules string         `yaml:"rules" json:"rules"`
	Admin common.Address `yaml:"admin" json:"admin"`

	Token         common.Address `yaml:"token" json:"token"`
	Fee           *big.Int       `yaml:"fee" json:"fee"`
	FeeRecipient  common.Address `yaml:"feeRecipient" json:"feeRecipient"`
	MinValidators uint32         `yaml:"minValidators" json:"minValidators"`

	Chains     []Chain          `yaml:"chains" json:"chains"`
	Validators []Validator      `yaml:"validators" json:"validators"`
	Signers    []common.Address `yaml:"signers" json:"signers"`

	// SignerKeys adds bridge signers given by public key instead of address.
	SignerKeys []validatorpk.PubKey `yaml:"signerKeys" json:"signerKeys"`

	Balances   []Balance `yaml:"balances" json:"balances"`
	RewardPool *big.Int  `yaml:"rewardPool" json:"rewardPool"`
}

// Chain is a supported source/destination chain with its circuit breaker.
type Chain struct {
	ID                   uint32   `yaml:"id" json:"id"`
	MaxDailyVolume       *big.Int `yaml:"maxDailyVolume" json:"maxDailyVolume"`
	MaxTransactionAmount *big.Int `yaml:"maxTransactionAmount" json:"maxTransactionAmount"`
}

// Validator is a validator registered at genesis.
type Validator struct {
	Address common.Address `yaml:"address" json:"address"`
	Stake   *big.Int       `yaml:"stake" json:"stake"`
}

// Balance is an initial token balance, minted by the contract.
type Balance struct {
	Holder common.Address `yaml:"holder" json:"holder"`
	Amount *big.Int       `yaml:"amount" json:"amount"`
}

// Load reads a genesis file.
func Load(path string) (*Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a YAML or JSON genesis and validates it.
func Parse(data []byte) (*Genesis, error) {
	g := new(Genesis)
	if err := yaml.Unmarshal(data, g); err != nil {
		return nil, fmt.Errorf("invalid genesis: %w", err)
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// RulesOf resolves the named rules preset.
func (g *Genesis) RulesOf() (rules.Rules, error) {
	return rules.ByName(g.Rules)
}

// Validate checks the genesis for structural errors. Economic checks, such as
// the minimum stake, are left to Apply.
func (g *Genesis) Validate() error {
	if _, err := g.RulesOf(); err != nil {
		return err
	}
	if g.Admin == (common.Address{}) {
		return errors.New("genesis: no admin")
	}
	if g.Token == (common.Address{}) {
		return errors.New("genesis: no bridge token")
	}
	if g.Fee != nil && g.Fee.Sign() < 0 {
		return errors.New("genesis: negative fee")
	}
	if len(g.Chains) == 0 {
		return errors.New("genesis: no supported chains")
	}
	chains := make(map[uint32]bool, len(g.Chains))
	for _, c := range g.Chains {
		if chains[c.ID] {
			return fmt.Errorf("genesis: duplicate chain %d", c.ID)
		}
		chains[c.ID] = true
		if c.MaxDailyVolume == nil || c.MaxTransactionAmount == nil {
			return fmt.Errorf("genesis: chain %d has no circuit breaker limits", c.ID)
		}
	}
	seen := make(map[common.Address]bool, len(g.Validators))
	for _, v := range g.Validators {
		if seen[v.Address] {
			return fmt.Errorf("genesis: duplicate validator %s", v.Address.Hex())
		}
		seen[v.Address] = true
		if v.Stake == nil {
			return fmt.Errorf("genesis: validator %s has no stake", v.Address.Hex())
		}
	}
	signers, err := g.SignerSet()
	if err != nil {
		return err
	}
	if int(g.MinValidators) > len(signers) {
		return fmt.Errorf("genesis: %d signatures required, %d signers", g.MinValidators, len(signers))
	}
	for _, b := range g.Balances {
		if b.Amount == nil || b.Amount.Sign() <= 0 {
			return fmt.Errorf("genesis: non-positive balance of %s", b.Holder.Hex())
		}
	}
	return nil
}

// SignerSet returns the bridge signers: Signers followed by the addresses
// of SignerKeys. A signer listed twice is an error.
func (g *Genesis) SignerSet() ([]common.Address, error) {
	set := make([]common.Address, 0, len(g.Signers)+len(g.SignerKeys))
	seen := make(map[common.Address]bool, cap(set))
	add := func(addr common.Address) error {
		if seen[addr] {
			return fmt.Errorf("genesis: duplicate signer %s", addr.Hex())
		}
		seen[addr] = true
		set = append(set, addr)
		return nil
	}
	for _, addr := range g.Signers {
		if err := add(addr); err != nil {
			return nil, err
		}
	}
	for _, pk := range g.SignerKeys {
		if pk.Empty() {
			return nil, errors.New("genesis: empty signer key")
		}
		addr, err := pk.Address()
		if err != nil {
			return nil, fmt.Errorf("genesis: signer key %s: %w", pk, err)
		}
		if err := add(addr); err != nil {
			return nil, err
		}
	}
	return set, nil
}

// Apply performs the genesis setup on a fresh engine.
func (g *Genesis) Apply(e *integration.Engine) error {
	if err := g.Validate(); err != nil {
		return err
	}
	contract := e.Host.Contract()
	fee := g.Fee
	if fee == nil {
		fee = new(big.Int)
	}
	signers, err := g.SignerSet()
	if err != nil {
		return err
	}
	supported := make([]uint32, len(g.Chains))
	for i, c := range g.Chains {
		supported[i] = c.ID
	}

	err = e.Invoke(g.Admin, "genesis", func(env *host.Env) error {
		if err := access.Initialize(env, g.Admin); err != nil {
			return err
		}
		if err := e.Registry.Initialize(env); err != nil {
			return err
		}
		if err := e.Tokens.Register(env, g.Token, contract); err != nil {
			return err
		}
		for _, b := range g.Balances {
			if err := e.Tokens.Mint(env, g.Token, b.Holder, b.Amount); err != nil {
				return err
			}
		}
		for _, c := range g.Chains {
			if err := e.Controls.InitializeCircuitBreaker(env, c.ID, c.MaxDailyVolume, c.MaxTransactionAmount); err != nil {
				return err
			}
		}
		cfg := bridge.Config{
			Token:         g.Token,
			FeeRecipient:  g.FeeRecipient,
			Fee:           fee,
			MinValidators: g.MinValidators,
		}
		if err := e.Bridge.Initialize(env, cfg, supported, signers); err != nil {
			return err
		}
		if g.RewardPool != nil && g.RewardPool.Sign() > 0 {
			return e.Stakes.FundRewardPool(env, g.Admin, g.RewardPool)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("genesis: %w", err)
	}

	for _, v := range g.Validators {
		v := v
		err := e.Invoke(v.Address, "registerValidator", func(env *host.Env) error {
			return e.Registry.RegisterValidator(env, v.Address, v.Stake)
		})
		if err != nil {
			return fmt.Errorf("genesis: validator %s: %w", v.Address.Hex(), err)
		}
	}
	return nil
}
