// Package integration assembles the bridge core: the store, the host and every
// contract component on top of it, the entry point dispatcher and the RPC API.
package integration

import (
	"github.com/Fantom-foundation/lachesis-base/kvdb"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sirupsen/logrus"

	"github.com/rony4d/go-opera-bridge/api"
	"github.com/rony4d/go-opera-bridge/contracts/atomicswap"
	"github.com/rony4d/go-opera-bridge/contracts/bridge"
	"github.com/rony4d/go-opera-bridge/contracts/consensus"
	"github.com/rony4d/go-opera-bridge/contracts/emergency"
	"github.com/rony4d/go-opera-bridge/contracts/entrypoint"
	"github.com/rony4d/go-opera-bridge/contracts/slashing"
	"github.com/rony4d/go-opera-bridge/host"
	"github.com/rony4d/go-opera-bridge/metrics"
	"github.com/rony4d/go-opera-bridge/rules"
	"github.com/rony4d/go-opera-bridge/token"
)

// DefaultContractAddress is the escrow address of the bridge contract.
var DefaultContractAddress = common.HexToAddress("0xb1d9e00000000000000000000000000000000000")

// Config of an Engine.
type Config struct {
	Rules    rules.Rules
	Contract common.Address
	// LogRetention bounds the committed events kept in memory, see host.
	LogRetention int
}

// DefaultConfig returns the mainnet engine configuration.
func DefaultConfig() Config {
	return Config{
		Rules:        rules.MainNetRules(),
		Contract:     DefaultContractAddress,
		LogRetention: host.DefaultLogRetention,
	}
}

// Engine is an assembled bridge core.
type Engine struct {
	Rules rules.Rules
	Host  *host.Host

	Tokens   *token.Native
	Registry *consensus.Consensus
	Stakes   *slashing.Ledger
	Controls *emergency.Controls
	Swaps    *atomicswap.Engine
	Bridge   *bridge.Bridge

	Contract *entrypoint.Contract
	API      *api.PublicBridgeAPI

	db kvdb.Store
}

// NewEngine wires every component over db. The engine owns db from now on.
func NewEngine(db kvdb.Store, clock host.Clock, cfg Config, log logrus.FieldLogger) *Engine {
	if log == nil {
		log = logrus.StandardLogger()
	}
	r := cfg.Rules.Copy()

	e := &Engine{
		Rules: r,
		Host:  host.New(db, clock, cfg.Contract, host.WithLogger(log), host.WithLogRetention(cfg.LogRetention)),
		db:    db,
	}
	e.Tokens = token.NewNative(log)
	e.Registry = consensus.New(r, log)
	e.Stakes = slashing.New(r, e.Registry, log)
	e.Controls = emergency.New(r, log)
	e.Swaps = atomicswap.New(r, e.Tokens, log)
	e.Bridge = bridge.New(r, e.Tokens, e.Controls, e.Registry, log)

	e.Contract = &entrypoint.Contract{
		Host:      e.Host,
		Registry:  e.Registry,
		Stakes:    e.Stakes,
		Transfers: e.Bridge,
		Swaps:     e.Swaps,
	}
	e.API = api.NewPublicBridgeAPI(e.Host, e.Registry, e.Stakes, e.Bridge, e.Swaps, e.Controls)

	metrics.Attach(e.Host)
	return e
}

// Invoke runs fn as one atomic call authenticated as caller.
func (e *Engine) Invoke(caller common.Address, method string, fn func(*host.Env) error) error {
	return e.Host.Invoke(caller, method, fn)
}

// RPCServer returns a server with the bridge API registered.
func (e *Engine) RPCServer() (*rpc.Server, error) {
	return api.NewServer(e.API)
}

// Close closes the underlying store.
func (e *Engine) Close() error {
	return e.db.Close()
}
