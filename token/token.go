// Package token is the fungible-token capability consumed by the bridge core
// for escrow, fees, minting and swap settlement.
//
// Implementations must either fully apply a transfer or fail; a failed
// transfer fails the enclosing invocation.
package token

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/rony4d/go-opera-bridge/errs"
	"github.com/rony4d/go-opera-bridge/host"
	"github.com/rony4d/go-opera-bridge/inter"
	"github.com/rony4d/go-opera-bridge/ledger"
)

// Ledger moves and mints tokens.
type Ledger interface {
	Balance(env *host.Env, token, holder common.Address) (*big.Int, error)
	Transfer(env *host.Env, token, from, to common.Address, amount *big.Int) error
	Mint(env *host.Env, token, to common.Address, amount *big.Int) error
}

var (
	balances = ledger.NewMap[ledger.AddressPair, *big.Int](ledger.Persistent, "tokbal", ledger.AddressPairKey)
	minters  = ledger.NewMap[common.Address, common.Address](ledger.Instance, "tokminter", ledger.AddressKey)
	supplies = ledger.NewMap[common.Address, *big.Int](ledger.Instance, "toksupply", ledger.AddressKey)
)

// TransferEvent is the payload of Transfer and Mint events.
type TransferEvent struct {
	Token  common.Address
	From   common.Address
	To     common.Address
	Amount *big.Int
}

// Native keeps balances in the host ledger, so token movements commit or roll
// back with the invocation that made them.
type Native struct {
	log logrus.FieldLogger
}

// NewNative returns a storage-backed token ledger.
func NewNative(log logrus.FieldLogger) *Native {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Native{log: log.WithField("module", "token")}
}

// Register declares token with its mint authority. A token can be registered
// once, and only by an invocation that controls minter.
func (n *Native) Register(env *host.Env, token, minter common.Address) error {
	if !env.Authorized(minter) {
		return errs.Wrap(errs.ErrUnauthorized, "minter %s", minter.Hex())
	}
	ok, err := minters.Has(env.Ledger(), token)
	if err != nil {
		return err
	}
	if ok {
		return errs.Wrap(errs.ErrAlreadyInitialized, "token %s", token.Hex())
	}
	if err := minters.Put(env.Ledger(), token, minter); err != nil {
		return err
	}
	return supplies.Put(env.Ledger(), token, new(big.Int))
}

// Balance returns the balance of holder, zero if it has none.
func (n *Native) Balance(env *host.Env, token, holder common.Address) (*big.Int, error) {
	bal, found, err := balances.Get(env.Ledger(), ledger.AddressPair{A: token, B: holder})
	if err != nil {
		return nil, err
	}
	if !found || bal == nil {
		return new(big.Int), nil
	}
	return bal, nil
}

// Supply returns the minted supply of token.
func (n *Native) Supply(env *host.Env, token common.Address) (*big.Int, error) {
	s, found, err := supplies.Get(env.Ledger(), token)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errs.Wrap(errs.ErrInvalidToken, "%s", token.Hex())
	}
	return s, nil
}

// Transfer moves amount from one holder to another.
func (n *Native) Transfer(env *host.Env, token, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return errs.ErrAmountMustBePositive
	}
	if !env.Authorized(from) {
		return errs.Wrap(errs.ErrUnauthorized, "transfer from %s", from.Hex())
	}
	if ok, err := minters.Has(env.Ledger(), token); err != nil {
		return err
	} else if !ok {
		return errs.Wrap(errs.ErrInvalidToken, "%s", token.Hex())
	}
	if amount.Sign() == 0 || from == to {
		return nil
	}

	fromBal, err := n.Balance(env, token, from)
	if err != nil {
		return err
	}
	if fromBal.Cmp(amount) < 0 {
		return errs.Wrap(errs.ErrInsufficientBalance, "%s has %s, needs %s", from.Hex(), fromBal, amount)
	}
	toBal, err := n.Balance(env, token, to)
	if err != nil {
		return err
	}
	if err := balances.Put(env.Ledger(), ledger.AddressPair{A: token, B: from}, new(big.Int).Sub(fromBal, amount)); err != nil {
		return err
	}
	if err := balances.Put(env.Ledger(), ledger.AddressPair{A: token, B: to}, new(big.Int).Add(toBal, amount)); err != nil {
		return err
	}
	return env.Emit(inter.EventTransfer, TransferEvent{Token: token, From: from, To: to, Amount: amount},
		host.AddressTopic(from), host.AddressTopic(to))
}

// Mint creates amount for to. Only the registered minter may mint.
func (n *Native) Mint(env *host.Env, token, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return errs.ErrAmountMustBePositive
	}
	minter, found, err := minters.Get(env.Ledger(), token)
	if err != nil {
		return err
	}
	if !found {
		return errs.Wrap(errs.ErrInvalidToken, "%s", token.Hex())
	}
	if !env.Authorized(minter) {
		return errs.Wrap(errs.ErrUnauthorized, "mint %s", token.Hex())
	}

	bal, err := n.Balance(env, token, to)
	if err != nil {
		return err
	}
	supply, err := n.Supply(env, token)
	if err != nil {
		return err
	}
	if err := balances.Put(env.Ledger(), ledger.AddressPair{A: token, B: to}, new(big.Int).Add(bal, amount)); err != nil {
		return err
	}
	if err := supplies.Put(env.Ledger(), token, new(big.Int).Add(supply, amount)); err != nil {
		return err
	}
	n.log.WithFields(logrus.Fields{"token": token.Hex(), "to": to.Hex(), "amount": amount}).Debug("Minted")
	return env.Emit(inter.EventMint, TransferEvent{Token: token, To: to, Amount: amount}, host.AddressTopic(to))
}
