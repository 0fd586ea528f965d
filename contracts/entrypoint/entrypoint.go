// Package entrypoint exposes the user-facing bridge operations behind an
// Ethereum ABI, so wallets and relayers can submit ABI-encoded calldata the
// same way they call a contract.
//
// Each call is metered with go-ethereum gas constants, decoded, and run as a
// single host invocation authenticated as the caller. A failed call reverts
// with vm.ErrExecutionReverted wrapping the bridge error, and consumes all
// supplied gas.
package entrypoint

import (
	"bytes"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/params"

	"github.com/rony4d/go-opera-bridge/host"
)

// ContractABI is the ABI of the entry point.
const ContractABI = `[
{"type":"function","name":"registerValidator","stateMutability":"nonpayable","inputs":[{"name":"stake","type":"uint256"}],"outputs":[]},
{"type":"function","name":"unregisterValidator","stateMutability":"nonpayable","inputs":[],"outputs":[{"name":"stake","type":"uint256"}]},
{"type":"function","name":"voteOnProposal","stateMutability":"nonpayable","inputs":[{"name":"id","type":"uint256"},{"name":"approve","type":"bool"}],"outputs":[]},
{"type":"function","name":"depositStake","stateMutability":"nonpayable","inputs":[{"name":"amount","type":"uint256"}],"outputs":[]},
{"type":"function","name":"withdrawStake","stateMutability":"nonpayable","inputs":[{"name":"amount","type":"uint256"}],"outputs":[]},
{"type":"function","name":"checkInactivity","stateMutability":"nonpayable","inputs":[{"name":"validator","type":"address"}],"outputs":[{"name":"slashed","type":"bool"}]},
{"type":"function","name":"bridgeOut","stateMutability":"nonpayable","inputs":[{"name":"amount","type":"uint256"},{"name":"destinationChain","type":"uint32"},{"name":"recipient","type":"bytes"}],"outputs":[{"name":"nonce","type":"uint256"}]},
{"type":"function","name":"cancelBridge","stateMutability":"nonpayable","inputs":[{"name":"nonce","type":"uint256"}],"outputs":[]},
{"type":"function","name":"acceptSwap","stateMutability":"nonpayable","inputs":[{"name":"id","type":"uint256"},{"name":"preimage","type":"bytes"}],"outputs":[]},
{"type":"function","name":"refundSwap","stateMutability":"nonpayable","inputs":[{"name":"id","type":"uint256"}],"outputs":[]}
]`

var (
	contractABI abi.ABI

	registerValidatorMethodID   []byte
	unregisterValidatorMethodID []byte
	voteOnProposalMethodID      []byte
	depositStakeMethodID        []byte
	withdrawStakeMethodID       []byte
	checkInactivityMethodID     []byte
	bridgeOutMethodID           []byte
	cancelBridgeMethodID        []byte
	acceptSwapMethodID          []byte
	refundSwapMethodID          []byte
)

func init() {
	var err error
	contractABI, err = abi.JSON(strings.NewReader(ContractABI))
	if err != nil {
		panic(err)
	}

	for name, constID := range map[string]*[]byte{
		"registerValidator":   &registerValidatorMethodID,
		"unregisterValidator": &unregisterValidatorMethodID,
		"voteOnProposal":      &voteOnProposalMethodID,
		"depositStake":        &depositStakeMethodID,
		"withdrawStake":       &withdrawStakeMethodID,
		"checkInactivity":     &checkInactivityMethodID,
		"bridgeOut":           &bridgeOutMethodID,
		"cancelBridge":        &cancelBridgeMethodID,
		"acceptSwap":          &acceptSwapMethodID,
		"refundSwap":          &refundSwapMethodID,
	} {
		method, exist := contractABI.Methods[name]
		if !exist {
			panic("unknown bridge entry point method")
		}
		*constID = make([]byte, len(method.ID))
		copy(*constID, method.ID)
	}
}

// ABI returns the parsed entry point ABI.
func ABI() abi.ABI { return contractABI }

// Invoker runs an authenticated invocation. *host.Host implements it.
type Invoker interface {
	Invoke(caller common.Address, method string, fn func(*host.Env) error) error
}

// The components the entry point dispatches to.
type (
	Registry interface {
		RegisterValidator(env *host.Env, validator common.Address, stake *big.Int) error
		UnregisterValidator(env *host.Env, validator common.Address) (*big.Int, error)
		VoteOnProposal(env *host.Env, validator common.Address, id uint64, approve bool) error
	}

	Stakes interface {
		DepositStake(env *host.Env, validator common.Address, amount *big.Int) error
		WithdrawStake(env *host.Env, validator common.Address, amount *big.Int) error
		CheckInactivity(env *host.Env, validator common.Address) (bool, error)
	}

	Transfers interface {
		BridgeOut(env *host.Env, from common.Address, amount *big.Int, destChain uint32, recipient []byte) (uint64, error)
		CancelBridge(env *host.Env, nonce uint64) error
	}

	Swaps interface {
		AcceptSwap(env *host.Env, id uint64, counterparty common.Address, preimage []byte) error
		RefundSwap(env *host.Env, id uint64, initiator common.Address) error
	}
)

// Contract dispatches ABI calls to the bridge components.
type Contract struct {
	Host      Invoker
	Registry  Registry
	Stakes    Stakes
	Transfers Transfers
	Swaps     Swaps
}

// Run executes input on behalf of caller with suppliedGas and returns the
// ABI-encoded output and the gas left.
func (c *Contract) Run(caller common.Address, input []byte, suppliedGas uint64) ([]byte, uint64, error) {
	if len(input) < 4 {
		return nil, 0, vm.ErrExecutionReverted
	}
	selector := input[:4]
	input = input[4:]

	var (
		name string
		cost uint64
		run  func(args []interface{}) ([]interface{}, error)
	)
	switch {
	case bytes.Equal(selector, registerValidatorMethodID):
		name, cost = "registerValidator", 2*params.SstoreSetGasEIP2200
		run = func(args []interface{}) ([]interface{}, error) {
			stake := args[0].(*big.Int)
			return nil, c.invoke(caller, name, func(env *host.Env) error {
				return c.Registry.RegisterValidator(env, caller, stake)
			})
		}

	case bytes.Equal(selector, unregisterValidatorMethodID):
		name, cost = "unregisterValidator", params.SstoreResetGasEIP2200
		run = func([]interface{}) ([]interface{}, error) {
			var stake *big.Int
			err := c.invoke(caller, name, func(env *host.Env) (err error) {
				stake, err = c.Registry.UnregisterValidator(env, caller)
				return err
			})
			return []interface{}{stake}, err
		}

	case bytes.Equal(selector, voteOnProposalMethodID):
		name, cost = "voteOnProposal", params.SstoreSetGasEIP2200
		run = func(args []interface{}) ([]interface{}, error) {
			id, err := toUint64(args[0])
			if err != nil {
				return nil, err
			}
			approve := args[1].(bool)
			return nil, c.invoke(caller, name, func(env *host.Env) error {
				return c.Registry.VoteOnProposal(env, caller, id, approve)
			})
		}

	case bytes.Equal(selector, depositStakeMethodID):
		name, cost = "depositStake", params.SstoreResetGasEIP2200
		run = func(args []interface{}) ([]interface{}, error) {
			amount := args[0].(*big.Int)
			return nil, c.invoke(caller, name, func(env *host.Env) error {
				return c.Stakes.DepositStake(env, caller, amount)
			})
		}

	case bytes.Equal(selector, withdrawStakeMethodID):
		name, cost = "withdrawStake", params.SstoreResetGasEIP2200
		run = func(args []interface{}) ([]interface{}, error) {
			amount := args[0].(*big.Int)
			return nil, c.invoke(caller, name, func(env *host.Env) error {
				return c.Stakes.WithdrawStake(env, caller, amount)
			})
		}

	case bytes.Equal(selector, checkInactivityMethodID):
		name, cost = "checkInactivity", params.SloadGasEIP2200
		run = func(args []interface{}) ([]interface{}, error) {
			validator := args[0].(common.Address)
			var slashed bool
			err := c.invoke(caller, name, func(env *host.Env) (err error) {
				slashed, err = c.Stakes.CheckInactivity(env, validator)
				return err
			})
			return []interface{}{slashed}, err
		}

	case bytes.Equal(selector, bridgeOutMethodID):
		name, cost = "bridgeOut", params.CallValueTransferGas+params.SstoreSetGasEIP2200
		run = func(args []interface{}) ([]interface{}, error) {
			amount := args[0].(*big.Int)
			chain := args[1].(uint32)
			recipient := args[2].([]byte)
			var nonce uint64
			err := c.invoke(caller, name, func(env *host.Env) (err error) {
				nonce, err = c.Transfers.BridgeOut(env, caller, amount, chain, recipient)
				return err
			})
			return []interface{}{new(big.Int).SetUint64(nonce)}, err
		}

	case bytes.Equal(selector, cancelBridgeMethodID):
		name, cost = "cancelBridge", params.CallValueTransferGas
		run = func(args []interface{}) ([]interface{}, error) {
			nonce, err := toUint64(args[0])
			if err != nil {
				return nil, err
			}
			return nil, c.invoke(caller, name, func(env *host.Env) error {
				return c.Transfers.CancelBridge(env, nonce)
			})
		}

	case bytes.Equal(selector, acceptSwapMethodID):
		name, cost = "acceptSwap", 3*params.CallValueTransferGas+params.Sha256BaseGas
		run = func(args []interface{}) ([]interface{}, error) {
			id, err := toUint64(args[0])
			if err != nil {
				return nil, err
			}
			preimage := args[1].([]byte)
			return nil, c.invoke(caller, name, func(env *host.Env) error {
				return c.Swaps.AcceptSwap(env, id, caller, preimage)
			})
		}

	case bytes.Equal(selector, refundSwapMethodID):
		name, cost = "refundSwap", params.CallValueTransferGas
		run = func(args []interface{}) ([]interface{}, error) {
			id, err := toUint64(args[0])
			if err != nil {
				return nil, err
			}
			return nil, c.invoke(caller, name, func(env *host.Env) error {
				return c.Swaps.RefundSwap(env, id, caller)
			})
		}

	default:
		return nil, 0, vm.ErrExecutionReverted
	}

	if suppliedGas < cost {
		return nil, 0, vm.ErrOutOfGas
	}
	suppliedGas -= cost

	// dynamic arguments are charged per 32-byte word of calldata
	cost = (uint64(len(input)) + 31) / 32 * params.MemoryGas
	if suppliedGas < cost {
		return nil, 0, vm.ErrOutOfGas
	}
	suppliedGas -= cost

	method := contractABI.Methods[name]
	args, err := method.Inputs.Unpack(input)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", vm.ErrExecutionReverted, err)
	}
	results, err := run(args)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", vm.ErrExecutionReverted, err)
	}
	if len(method.Outputs) == 0 {
		return nil, suppliedGas, nil
	}
	out, err := method.Outputs.Pack(results...)
	if err != nil {
		return nil, 0, err
	}
	return out, suppliedGas, nil
}

func (c *Contract) invoke(caller common.Address, method string, fn func(*host.Env) error) error {
	return c.Host.Invoke(caller, method, fn)
}

func toUint64(v interface{}) (uint64, error) {
	n := v.(*big.Int)
	if !n.IsUint64() {
		return 0, fmt.Errorf("%w: %s overflows uint64", vm.ErrExecutionReverted, n)
	}
	return n.Uint64(), nil
}
