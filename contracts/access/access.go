// Package access holds the contract admin shared by every bridge component.
package access

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/rony4d/go-opera-bridge/errs"
	"github.com/rony4d/go-opera-bridge/host"
	"github.com/rony4d/go-opera-bridge/inter"
	"github.com/rony4d/go-opera-bridge/ledger"
)

var admin = ledger.NewValue[common.Address](ledger.Instance, "admin")

// AdminChanged is the payload of the AdminChanged event.
type AdminChanged struct {
	Previous common.Address
	Admin    common.Address
}

// Initialize sets the admin once. The admin must sign the call.
func Initialize(env *host.Env, addr common.Address) error {
	if err := env.RequireAuth(addr); err != nil {
		return err
	}
	ok, err := admin.Has(env.Ledger())
	if err != nil {
		return err
	}
	if ok {
		return errs.ErrAlreadyInitialized
	}
	if err := admin.Put(env.Ledger(), addr); err != nil {
		return err
	}
	return env.Emit(inter.EventAdminChanged, AdminChanged{Admin: addr}, host.AddressTopic(addr))
}

// Admin returns the stored admin.
func Admin(env *host.Env) (common.Address, error) {
	addr, found, err := admin.Get(env.Ledger())
	if err != nil {
		return common.Address{}, err
	}
	if !found {
		return common.Address{}, errs.ErrNotInitialized
	}
	return addr, nil
}

// RequireAdmin fails unless the stored admin signed the call.
func RequireAdmin(env *host.Env) error {
	addr, err := Admin(env)
	if err != nil {
		return err
	}
	return env.RequireAuth(addr)
}

// TransferAdmin hands the admin role to next.
func TransferAdmin(env *host.Env, next common.Address) error {
	prev, err := Admin(env)
	if err != nil {
		return err
	}
	if err := env.RequireAuth(prev); err != nil {
		return err
	}
	if next == (common.Address{}) {
		return errs.Wrap(errs.ErrInvalidInput, "zero admin")
	}
	if err := admin.Put(env.Ledger(), next); err != nil {
		return err
	}
	return env.Emit(inter.EventAdminChanged, AdminChanged{Previous: prev, Admin: next}, host.AddressTopic(next))
}
