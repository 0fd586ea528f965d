package host

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/google/uuid"

	"github.com/rony4d/go-opera-bridge/errs"
	"github.com/rony4d/go-opera-bridge/inter"
	"github.com/rony4d/go-opera-bridge/ledger"
)

// Env is the state handle of one invocation. It is only valid inside the
// callback it was passed to.
type Env struct {
	ledger     *ledger.Ledger
	caller     common.Address
	contract   common.Address
	now        inter.Timestamp
	seq        uint64
	invocation uuid.UUID
	readOnly   bool
	events     []*types.Log
}

// Ledger returns the typed storage of this invocation.
func (e *Env) Ledger() *ledger.Ledger { return e.ledger }

// Now returns the ledger time, fixed for the whole invocation.
func (e *Env) Now() inter.Timestamp { return e.now }

// Sequence returns the host sequence number of this invocation.
func (e *Env) Sequence() uint64 { return e.seq }

// Caller returns the authenticated caller.
func (e *Env) Caller() common.Address { return e.caller }

// Contract returns the address of the bridge contract itself.
func (e *Env) Contract() common.Address { return e.contract }

// Invocation returns the unique id of this invocation.
func (e *Env) Invocation() uuid.UUID { return e.invocation }

// ReadOnly reports whether the invocation is a View.
func (e *Env) ReadOnly() bool { return e.readOnly }

// RequireAuth fails unless addr is the authenticated caller.
func (e *Env) RequireAuth(addr common.Address) error {
	if e.readOnly || addr != e.caller {
		return errs.Wrap(errs.ErrUnauthorized, "%s", addr.Hex())
	}
	return nil
}

// Authorized reports whether funds of addr may be moved in this invocation:
// either addr signed the call or addr is the contract's own escrow.
func (e *Env) Authorized(addr common.Address) bool {
	if e.readOnly {
		return false
	}
	return addr == e.caller || addr == e.contract
}

// Emit buffers an event. It is published only if the invocation commits.
// payload is RLP encoded into the log data; indexed values become topics.
func (e *Env) Emit(name string, payload interface{}, indexed ...common.Hash) error {
	if e.readOnly {
		return nil
	}
	data, err := rlp.EncodeToBytes(payload)
	if err != nil {
		return fmt.Errorf("host: encode %s event: %w", name, err)
	}
	topics := make([]common.Hash, 0, 1+len(indexed))
	topics = append(topics, Topic(name))
	topics = append(topics, indexed...)

	e.events = append(e.events, &types.Log{
		Address:     e.contract,
		Topics:      topics,
		Data:        data,
		BlockNumber: e.seq,
		Index:       uint(len(e.events)),
	})
	return nil
}

// Topic returns the first log topic of the named event.
func Topic(name string) common.Hash {
	return crypto.Keccak256Hash([]byte(name))
}

// AddressTopic pads an address into an indexed topic.
func AddressTopic(a common.Address) common.Hash {
	return common.BytesToHash(a.Bytes())
}

// U64Topic encodes a number into an indexed topic.
func U64Topic(n uint64) common.Hash {
	return common.BigToHash(new(big.Int).SetUint64(n))
}
