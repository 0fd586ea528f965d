// Package ledger is the typed storage facade over a lachesis-base kvdb.Store.
//
// State is split into two tiers. The instance tier holds singletons (admin,
// configuration, counters, small sets); the persistent tier holds per-entity
// records addressed by (namespace, id). Each tier is a kvdb/table prefix of the
// underlying store, and every namespace is a length-prefixed sub-table, so keys
// of different namespaces can never collide.
//
// Values are RLP encoded.
package ledger

import (
	"fmt"
	"sync"

	"github.com/Fantom-foundation/lachesis-base/common/bigendian"
	"github.com/Fantom-foundation/lachesis-base/kvdb"
	"github.com/Fantom-foundation/lachesis-base/kvdb/table"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
)

// Tier selects the storage area of a namespace.
type Tier byte

const (
	Instance   Tier = 'i'
	Persistent Tier = 'p'
)

func (t Tier) String() string {
	switch t {
	case Instance:
		return "instance"
	case Persistent:
		return "persistent"
	default:
		return fmt.Sprintf("tier(%d)", byte(t))
	}
}

// Namespace is a short symbolic storage name.
type Namespace string

// MaxNamespaceLen bounds namespace names.
const MaxNamespaceLen = 32

// Ledger gives typed access to one store. Construct it around the
// per-invocation buffer so writes commit or drop together.
type Ledger struct {
	instance   kvdb.Store
	persistent kvdb.Store
}

// New splits db into the two tiers.
func New(db kvdb.Store) *Ledger {
	return &Ledger{
		instance:   table.New(db, []byte{byte(Instance)}),
		persistent: table.New(db, []byte{byte(Persistent)}),
	}
}

func (l *Ledger) tier(t Tier) kvdb.Store {
	if t == Instance {
		return l.instance
	}
	return l.persistent
}

var (
	registryMu sync.Mutex
	registry   = make(map[string]struct{})
)

// register reserves ns in tier t and returns its key prefix. Registering the
// same namespace twice panics at package init.
func register(t Tier, ns Namespace) []byte {
	if len(ns) == 0 || len(ns) > MaxNamespaceLen {
		panic(fmt.Sprintf("ledger: invalid namespace %q", ns))
	}
	registryMu.Lock()
	defer registryMu.Unlock()

	id := string([]byte{byte(t)}) + string(ns)
	if _, dup := registry[id]; dup {
		panic(fmt.Sprintf("ledger: namespace %q registered twice in %s tier", ns, t))
	}
	registry[id] = struct{}{}

	return append([]byte{byte(len(ns))}, ns...)
}

func get(db kvdb.Store, key []byte, v interface{}) (bool, error) {
	ok, err := db.Has(key)
	if err != nil || !ok {
		return false, err
	}
	raw, err := db.Get(key)
	if err != nil {
		return false, err
	}
	if raw == nil {
		return false, nil
	}
	if err := rlp.DecodeBytes(raw, v); err != nil {
		return false, err
	}
	return true, nil
}

func put(db kvdb.Store, key []byte, v interface{}) error {
	raw, err := rlp.EncodeToBytes(v)
	if err != nil {
		return err
	}
	return db.Put(key, raw)
}

// Key encoders.

func AddressKey(a common.Address) []byte { return a.Bytes() }

func U64Key(n uint64) []byte { return bigendian.Uint64ToBytes(n) }

func U32Key(n uint32) []byte { return bigendian.Uint32ToBytes(n) }

// AddressIndex addresses the n-th entry of a per-address append-only log.
type AddressIndex struct {
	Address common.Address
	Index   uint64
}

func AddressIndexKey(k AddressIndex) []byte {
	return append(k.Address.Bytes(), bigendian.Uint64ToBytes(k.Index)...)
}

// AddressPair addresses an entry owned by two addresses.
type AddressPair struct {
	A, B common.Address
}

func AddressPairKey(k AddressPair) []byte {
	return append(k.A.Bytes(), k.B.Bytes()...)
}
