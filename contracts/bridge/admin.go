package bridge

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/rony4d/go-opera-bridge/contracts/access"
	"github.com/rony4d/go-opera-bridge/errs"
	"github.com/rony4d/go-opera-bridge/host"
	"github.com/rony4d/go-opera-bridge/inter"
)

// AddValidator adds addr to the signer set. Adding a present signer is a no-op.
func (b *Bridge) AddValidator(env *host.Env, addr common.Address) error {
	return b.admin(env, "validators", func() error {
		set, err := b.GetValidators(env)
		if err != nil || contains(set, addr) {
			return err
		}
		return signers.Put(env.Ledger(), append(set, addr))
	})
}

// RemoveValidator removes addr from the signer set.
func (b *Bridge) RemoveValidator(env *host.Env, addr common.Address) error {
	return b.admin(env, "validators", func() error {
		set, err := b.GetValidators(env)
		if err != nil {
			return err
		}
		out := set[:0]
		for _, a := range set {
			if a != addr {
				out = append(out, a)
			}
		}
		return signers.Put(env.Ledger(), out)
	})
}

// AddSupportedChain enables transfers to and from chain.
func (b *Bridge) AddSupportedChain(env *host.Env, chain uint32) error {
	return b.admin(env, "chains", func() error {
		return chains.Put(env.Ledger(), chain, true)
	})
}

// RemoveSupportedChain disables chain.
func (b *Bridge) RemoveSupportedChain(env *host.Env, chain uint32) error {
	return b.admin(env, "chains", func() error {
		return chains.Delete(env.Ledger(), chain)
	})
}

// SetBridgeFee sets the flat outbound fee.
func (b *Bridge) SetBridgeFee(env *host.Env, fee *big.Int) error {
	return b.setConfig(env, "fee", func(cfg *Config) error {
		if fee == nil || fee.Sign() < 0 {
			return errs.Wrap(errs.ErrInvalidInput, "negative fee")
		}
		cfg.Fee = new(big.Int).Set(fee)
		return nil
	})
}

// SetFeeRecipient sets the receiver of outbound fees.
func (b *Bridge) SetFeeRecipient(env *host.Env, recipient common.Address) error {
	return b.setConfig(env, "feeRecipient", func(cfg *Config) error {
		cfg.FeeRecipient = recipient
		return nil
	})
}

// SetMinValidators sets the signature count CompleteBridge requires.
func (b *Bridge) SetMinValidators(env *host.Env, n uint32) error {
	return b.setConfig(env, "minValidators", func(cfg *Config) error {
		if n == 0 {
			return errs.Wrap(errs.ErrInvalidInput, "min validators must be positive")
		}
		cfg.MinValidators = n
		return nil
	})
}

// setConfig runs fn on the stored config once the caller is authorized as
// admin, so input errors never leak to unauthorized callers.
func (b *Bridge) setConfig(env *host.Env, setting string, fn func(*Config) error) error {
	return b.admin(env, setting, func() error {
		cfg, err := b.GetConfig(env)
		if err != nil {
			return err
		}
		if err := fn(&cfg); err != nil {
			return err
		}
		return config.Put(env.Ledger(), cfg)
	})
}

func (b *Bridge) admin(env *host.Env, setting string, fn func() error) error {
	if err := access.RequireAdmin(env); err != nil {
		return err
	}
	if err := fn(); err != nil {
		return err
	}
	b.log.WithField("setting", setting).Info("Bridge reconfigured")
	return env.Emit(inter.EventBridgeConfigured, BridgeConfigured{Setting: setting})
}

// IsSupportedChain reports whether chain is enabled.
func (b *Bridge) IsSupportedChain(env *host.Env, chain uint32) (bool, error) {
	ok, _, err := chains.Get(env.Ledger(), chain)
	return ok, err
}

// GetValidators returns the signer set.
func (b *Bridge) GetValidators(env *host.Env) ([]common.Address, error) {
	return signers.GetOr(env.Ledger(), nil)
}
