// Package api serves the read-only bridge_* JSON-RPC namespace.
package api

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/rony4d/go-opera-bridge/errs"
	"github.com/rony4d/go-opera-bridge/host"
	"github.com/rony4d/go-opera-bridge/inter"
)

// Namespace is the RPC namespace the API is registered under.
const Namespace = "bridge"

// Backend runs read-only calls. *host.Host implements it.
type Backend interface {
	View(fn func(*host.Env) error) error
}

// The components the API reads from.
type (
	Registry interface {
		GetConsensusState(env *host.Env) (inter.ConsensusState, error)
		GetValidatorInfo(env *host.Env, addr common.Address) (inter.ValidatorInfo, error)
		GetActiveValidators(env *host.Env) ([]common.Address, error)
		GetProposal(env *host.Env, id uint64) (inter.BridgeProposal, error)
		GetProposalCount(env *host.Env) (uint64, error)
	}

	Stakes interface {
		GetRewardPool(env *host.Env) (*big.Int, error)
		GetSlashingHistory(env *host.Env, validator common.Address) ([]inter.SlashingRecord, error)
		GetRewardHistory(env *host.Env, validator common.Address) ([]inter.RewardRecord, error)
	}

	Transfers interface {
		GetBridgeTransaction(env *host.Env, nonce uint64) (inter.BridgeTransaction, error)
		GetBridgeMetrics(env *host.Env) (inter.BridgeMetrics, error)
		GetNonce(env *host.Env) (uint64, error)
		IsNonceProcessed(env *host.Env, nonce uint64) (bool, error)
	}

	Swaps interface {
		GetSwap(env *host.Env, id uint64) (inter.AtomicSwap, error)
		GetSwapCount(env *host.Env) (uint64, error)
	}

	Controls interface {
		GetCircuitBreaker(env *host.Env, chain uint32) (inter.CircuitBreaker, error)
		IsBridgePaused(env *host.Env) (bool, error)
		IsChainPaused(env *host.Env, chain uint32) (bool, error)
	}
)

// PublicBridgeAPI provides read access to the bridge state.
type PublicBridgeAPI struct {
	b        Backend
	registry Registry
	stakes   Stakes
	bridge   Transfers
	swaps    Swaps
	controls Controls
}

// NewPublicBridgeAPI creates a new bridge API.
func NewPublicBridgeAPI(b Backend, registry Registry, stakes Stakes, bridge Transfers, swaps Swaps, controls Controls) *PublicBridgeAPI {
	return &PublicBridgeAPI{
		b:        b,
		registry: registry,
		stakes:   stakes,
		bridge:   bridge,
		swaps:    swaps,
		controls: controls,
	}
}

// NewServer returns an RPC server with the API registered.
func NewServer(api *PublicBridgeAPI) (*rpc.Server, error) {
	server := rpc.NewServer()
	if err := server.RegisterName(Namespace, api); err != nil {
		return nil, err
	}
	return server, nil
}

// view runs fn and maps a missing entity to the zero result, the way eth_
// getters answer null for unknown hashes.
func view[T any](ctx context.Context, b Backend, fn func(*host.Env) (T, error)) (T, error) {
	var res T
	if err := ctx.Err(); err != nil {
		return res, err
	}
	err := b.View(func(env *host.Env) (err error) {
		res, err = fn(env)
		return err
	})
	if isNotFound(err) {
		var zero T
		return zero, nil
	}
	return res, err
}

func isNotFound(err error) bool {
	return errors.Is(err, errs.ErrValidatorNotFound) ||
		errors.Is(err, errs.ErrProposalNotFound) ||
		errors.Is(err, errs.ErrSwapNotFound) ||
		errors.Is(err, errs.ErrTransactionNotFound) ||
		errors.Is(err, errs.ErrCircuitBreakerNotFound)
}

// GetConsensusState returns the validator set summary.
func (s *PublicBridgeAPI) GetConsensusState(ctx context.Context) (*RPCConsensusState, error) {
	return view(ctx, s.b, func(env *host.Env) (*RPCConsensusState, error) {
		st, err := s.registry.GetConsensusState(env)
		if err != nil {
			return nil, err
		}
		return newRPCConsensusState(st), nil
	})
}

// GetValidatorInfo returns the registry record of addr, or null.
func (s *PublicBridgeAPI) GetValidatorInfo(ctx context.Context, addr common.Address) (*RPCValidator, error) {
	return view(ctx, s.b, func(env *host.Env) (*RPCValidator, error) {
		info, err := s.registry.GetValidatorInfo(env, addr)
		if err != nil {
			return nil, err
		}
		return newRPCValidator(info), nil
	})
}

// GetActiveValidators returns the active set in registration order.
func (s *PublicBridgeAPI) GetActiveValidators(ctx context.Context) ([]common.Address, error) {
	set, err := view(ctx, s.b, s.registry.GetActiveValidators)
	if set == nil {
		set = []common.Address{}
	}
	return set, err
}

// GetProposal returns the proposal with the given id, or null.
func (s *PublicBridgeAPI) GetProposal(ctx context.Context, id hexutil.Uint64) (*RPCProposal, error) {
	return view(ctx, s.b, func(env *host.Env) (*RPCProposal, error) {
		p, err := s.registry.GetProposal(env, uint64(id))
		if err != nil {
			return nil, err
		}
		return newRPCProposal(p), nil
	})
}

// GetProposalCount returns the number of proposals created so far.
func (s *PublicBridgeAPI) GetProposalCount(ctx context.Context) (hexutil.Uint64, error) {
	n, err := view(ctx, s.b, s.registry.GetProposalCount)
	return hexutil.Uint64(n), err
}

// GetSwap returns the swap with the given id, or null.
func (s *PublicBridgeAPI) GetSwap(ctx context.Context, id hexutil.Uint64) (*RPCSwap, error) {
	return view(ctx, s.b, func(env *host.Env) (*RPCSwap, error) {
		sw, err := s.swaps.GetSwap(env, uint64(id))
		if err != nil {
			return nil, err
		}
		return newRPCSwap(sw), nil
	})
}

// GetSwapCount returns the number of swaps created so far.
func (s *PublicBridgeAPI) GetSwapCount(ctx context.Context) (hexutil.Uint64, error) {
	n, err := view(ctx, s.b, s.swaps.GetSwapCount)
	return hexutil.Uint64(n), err
}

// GetCircuitBreaker returns the breaker of chain, or null.
func (s *PublicBridgeAPI) GetCircuitBreaker(ctx context.Context, chain hexutil.Uint) (*RPCCircuitBreaker, error) {
	return view(ctx, s.b, func(env *host.Env) (*RPCCircuitBreaker, error) {
		cb, err := s.controls.GetCircuitBreaker(env, uint32(chain))
		if err != nil {
			return nil, err
		}
		paused, err := s.controls.IsChainPaused(env, uint32(chain))
		if err != nil {
			return nil, err
		}
		return newRPCCircuitBreaker(cb, paused), nil
	})
}

// IsPaused reports whether the bridge is globally paused.
func (s *PublicBridgeAPI) IsPaused(ctx context.Context) (bool, error) {
	return view(ctx, s.b, s.controls.IsBridgePaused)
}

// GetRewardPool returns the undistributed reward pool.
func (s *PublicBridgeAPI) GetRewardPool(ctx context.Context) (*hexutil.Big, error) {
	pool, err := view(ctx, s.b, s.stakes.GetRewardPool)
	return (*hexutil.Big)(pool), err
}

// GetSlashingHistory returns every slash applied to validator, oldest first.
func (s *PublicBridgeAPI) GetSlashingHistory(ctx context.Context, validator common.Address) ([]*RPCSlashingRecord, error) {
	records, err := view(ctx, s.b, func(env *host.Env) ([]inter.SlashingRecord, error) {
		return s.stakes.GetSlashingHistory(env, validator)
	})
	out := make([]*RPCSlashingRecord, 0, len(records))
	for _, r := range records {
		out = append(out, newRPCSlashingRecord(r))
	}
	return out, err
}

// GetRewardHistory returns every reward paid to validator, oldest first.
func (s *PublicBridgeAPI) GetRewardHistory(ctx context.Context, validator common.Address) ([]*RPCRewardRecord, error) {
	records, err := view(ctx, s.b, func(env *host.Env) ([]inter.RewardRecord, error) {
		return s.stakes.GetRewardHistory(env, validator)
	})
	out := make([]*RPCRewardRecord, 0, len(records))
	for _, r := range records {
		out = append(out, newRPCRewardRecord(r))
	}
	return out, err
}

// GetBridgeTransaction returns the outbound transfer with the given nonce, or
// null once it was cancelled or if it never existed.
func (s *PublicBridgeAPI) GetBridgeTransaction(ctx context.Context, nonce hexutil.Uint64) (*RPCBridgeTransaction, error) {
	return view(ctx, s.b, func(env *host.Env) (*RPCBridgeTransaction, error) {
		tx, err := s.bridge.GetBridgeTransaction(env, uint64(nonce))
		if err != nil {
			return nil, err
		}
		return newRPCBridgeTransaction(tx), nil
	})
}

// GetBridgeMetrics returns the cumulative transfer counters.
func (s *PublicBridgeAPI) GetBridgeMetrics(ctx context.Context) (*RPCBridgeMetrics, error) {
	return view(ctx, s.b, func(env *host.Env) (*RPCBridgeMetrics, error) {
		m, err := s.bridge.GetBridgeMetrics(env)
		if err != nil {
			return nil, err
		}
		nonce, err := s.bridge.GetNonce(env)
		if err != nil {
			return nil, err
		}
		return newRPCBridgeMetrics(m, nonce), nil
	})
}

// IsNonceProcessed reports whether the inbound transfer with nonce was released.
func (s *PublicBridgeAPI) IsNonceProcessed(ctx context.Context, nonce hexutil.Uint64) (bool, error) {
	return view(ctx, s.b, func(env *host.Env) (bool, error) {
		return s.bridge.IsNonceProcessed(env, uint64(nonce))
	})
}
