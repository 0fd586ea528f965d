package bridge

import (
	"crypto/ecdsa"
	"math/big"
	"testing"
	"time"

	"github.com/Fantom-foundation/lachesis-base/kvdb/memorydb"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/rony4d/go-opera-bridge/contracts/access"
	"github.com/rony4d/go-opera-bridge/contracts/consensus"
	"github.com/rony4d/go-opera-bridge/contracts/emergency"
	"github.com/rony4d/go-opera-bridge/errs"
	"github.com/rony4d/go-opera-bridge/host"
	"github.com/rony4d/go-opera-bridge/inter"
	"github.com/rony4d/go-opera-bridge/inter/validatorpk"
	"github.com/rony4d/go-opera-bridge/rules"
	"github.com/rony4d/go-opera-bridge/token"
)

const remote = uint32(137)

var (
	contract     = common.HexToAddress("0xc0")
	admin        = common.HexToAddress("0xad")
	bridgeToken  = common.HexToAddress("0x7e1")
	feeRecipient = common.HexToAddress("0xfee")
	alice        = common.HexToAddress("0xa1")
	bob          = common.HexToAddress("0xb0")
)

type fixture struct {
	h         *host.Host
	clock     *host.ManualClock
	tokens    *token.Native
	controls  *emergency.Controls
	consensus *consensus.Consensus
	b         *Bridge
	keys      []*ecdsa.PrivateKey
}

func newFixture(t *testing.T) *fixture {
	r := rules.MainNetRules()
	clock := host.NewManualClock(inter.FromUnix(1_700_000_000))
	f := &fixture{
		h:         host.New(memorydb.New(), clock, contract),
		clock:     clock,
		tokens:    token.NewNative(nil),
		controls:  emergency.New(r, nil),
		consensus: consensus.New(r, nil),
	}
	f.b = New(r, f.tokens, f.controls, f.consensus, nil)

	var addrs []common.Address
	for i := 0; i < 3; i++ {
		key, err := crypto.GenerateKey()
		require.NoError(t, err)
		f.keys = append(f.keys, key)
		addrs = append(addrs, crypto.PubkeyToAddress(key.PublicKey))
	}

	require.NoError(t, f.h.Invoke(admin, "init", func(env *host.Env) error {
		if err := access.Initialize(env, admin); err != nil {
			return err
		}
		if err := f.consensus.Initialize(env); err != nil {
			return err
		}
		if err := f.tokens.Register(env, bridgeToken, contract); err != nil {
			return err
		}
		if err := f.tokens.Mint(env, bridgeToken, alice, big.NewInt(5000)); err != nil {
			return err
		}
		if err := f.controls.InitializeCircuitBreaker(env, remote, big.NewInt(10000), big.NewInt(2000)); err != nil {
			return err
		}
		cfg := Config{
			Token:         bridgeToken,
			FeeRecipient:  feeRecipient,
			Fee:           big.NewInt(50),
			MinValidators: 2,
		}
		return f.b.Initialize(env, cfg, []uint32{remote}, addrs)
	}))
	return f
}

func (f *fixture) balance(t *testing.T, holder common.Address) int64 {
	var out int64
	require.NoError(t, f.h.View(func(env *host.Env) error {
		b, err := f.tokens.Balance(env, bridgeToken, holder)
		if err == nil {
			out = b.Int64()
		}
		return err
	}))
	return out
}

func (f *fixture) bridgeOut(from common.Address, amount int64) (nonce uint64, err error) {
	err = f.h.Invoke(from, "bridgeOut", func(env *host.Env) (err error) {
		nonce, err = f.b.BridgeOut(env, from, big.NewInt(amount), remote, []byte("remote-recipient"))
		return err
	})
	return
}

func (f *fixture) complete(msg inter.CrossChainMessage, sigs [][]byte) error {
	return f.h.Invoke(bob, "completeBridge", func(env *host.Env) error {
		return f.b.CompleteBridge(env, msg, sigs)
	})
}

func (f *fixture) sign(t *testing.T, msg inter.CrossChainMessage, keys ...*ecdsa.PrivateKey) [][]byte {
	var sigs [][]byte
	for _, key := range keys {
		sig, err := validatorpk.Sign(msg.Hash(), key)
		require.NoError(t, err)
		sigs = append(sigs, sig)
	}
	return sigs
}

func (f *fixture) metrics(t *testing.T) inter.BridgeMetrics {
	var m inter.BridgeMetrics
	require.NoError(t, f.h.View(func(env *host.Env) (err error) {
		m, err = f.b.GetBridgeMetrics(env)
		return err
	}))
	return m
}

func inbound(nonce uint64, recipient common.Address, amount int64) inter.CrossChainMessage {
	return inter.CrossChainMessage{
		SourceChain:      remote,
		SourceTxHash:     common.BigToHash(new(big.Int).SetUint64(nonce)),
		Nonce:            nonce,
		Token:            bridgeToken,
		Amount:           big.NewInt(amount),
		Recipient:        recipient,
		DestinationChain: rules.MainChainID,
	}
}

func TestBridgeOutAndCancel(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)

	nonce, err := f.bridgeOut(alice, 1000)
	require.NoError(err)
	require.Equal(uint64(1), nonce)
	require.Equal(int64(4000), f.balance(t, alice))
	require.Equal(int64(950), f.balance(t, contract))
	require.Equal(int64(50), f.balance(t, feeRecipient))

	require.NoError(f.h.View(func(env *host.Env) error {
		tx, err := f.b.GetBridgeTransaction(env, nonce)
		require.NoError(err)
		require.Equal(0, tx.Amount.Cmp(big.NewInt(950)))
		require.Equal(0, tx.Fee.Cmp(big.NewInt(50)))
		require.Equal(alice, tx.Sender)
		require.Equal([]byte("remote-recipient"), tx.Recipient)
		return nil
	}))
	require.Len(host.FilterLogs(f.h.Logs(), inter.EventBridgeInitiated), 1)
	require.Len(host.FilterLogs(f.h.Logs(), inter.EventTokensDeposited), 1)

	cancel := func() error {
		return f.h.Invoke(bob, "cancelBridge", func(env *host.Env) error {
			return f.b.CancelBridge(env, nonce)
		})
	}
	f.clock.Advance(7*24*time.Hour - time.Second)
	require.ErrorIs(cancel(), errs.ErrTimeoutNotReached)

	f.clock.Advance(time.Second)
	require.NoError(cancel())
	require.Equal(int64(4950), f.balance(t, alice))
	require.Zero(f.balance(t, contract))

	require.NoError(f.h.View(func(env *host.Env) error {
		_, err := f.b.GetBridgeTransaction(env, nonce)
		require.ErrorIs(err, errs.ErrTransactionNotFound)
		return nil
	}))
	require.ErrorIs(cancel(), errs.ErrTransactionNotFound)

	m := f.metrics(t)
	require.Equal(uint64(1), m.OutboundCount)
	require.Equal(uint64(1), m.CancelledCount)
	require.Equal(0, m.CancelledVolume.Cmp(big.NewInt(950)))
	require.Equal(0, m.FeesCollected.Cmp(big.NewInt(50)))
}

func TestBridgeOutFeeNotCharged(t *testing.T) {
	f := newFixture(t)
	_, err := f.bridgeOut(alice, 50)
	require.NoError(t, err)
	require.Equal(t, int64(50), f.balance(t, contract))
	require.Zero(t, f.balance(t, feeRecipient))
}

func TestBridgeOutRejections(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)

	_, err := f.bridgeOut(alice, 0)
	require.ErrorIs(err, errs.ErrAmountMustBePositive)
	_, err = f.bridgeOut(bob, 10)
	require.ErrorIs(err, errs.ErrInsufficientBalance)

	err = f.h.Invoke(alice, "unsupported", func(env *host.Env) error {
		_, err := f.b.BridgeOut(env, alice, big.NewInt(10), 56, []byte{1})
		return err
	})
	require.ErrorIs(err, errs.ErrUnsupportedChain)

	err = f.h.Invoke(bob, "impersonate", func(env *host.Env) error {
		_, err := f.b.BridgeOut(env, alice, big.NewInt(10), remote, []byte{1})
		return err
	})
	require.ErrorIs(err, errs.ErrUnauthorized)

	require.NoError(f.h.Invoke(admin, "pause", f.controls.PauseBridge))
	_, err = f.bridgeOut(alice, 10)
	require.ErrorIs(err, errs.ErrBridgePaused)
	require.NoError(f.h.Invoke(admin, "resume", f.controls.ResumeBridge))

	require.NoError(f.h.Invoke(admin, "pauseChains", func(env *host.Env) error {
		return f.controls.PauseChains(env, []uint32{remote})
	}))
	_, err = f.bridgeOut(alice, 10)
	require.ErrorIs(err, errs.ErrChainPaused)

	require.Equal(int64(5000), f.balance(t, alice))
}

func TestBridgeOutTripsBreaker(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)

	_, err := f.bridgeOut(alice, 2001)
	require.ErrorIs(err, errs.ErrCircuitBreakerTriggered)
	require.True(host.IsRetained(err))
	require.Equal(int64(5000), f.balance(t, alice))
	require.Empty(host.FilterLogs(f.h.Logs(), inter.EventBridgeInitiated))

	_, err = f.bridgeOut(alice, 10)
	require.ErrorIs(err, errs.ErrCircuitBreakerTriggered)

	require.NoError(f.h.View(func(env *host.Env) error {
		n, err := f.b.GetNonce(env)
		require.Zero(n)
		return err
	}))
}

func TestCompleteBridgeOnce(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)

	msg := inbound(7, bob, 300)
	require.NoError(f.complete(msg, f.sign(t, msg, f.keys[0], f.keys[2])))
	require.Equal(int64(300), f.balance(t, bob))

	again := inbound(7, alice, 999)
	err := f.complete(again, f.sign(t, again, f.keys...))
	require.ErrorIs(err, errs.ErrDuplicateNonce)
	require.Equal(int64(5000), f.balance(t, alice))
	require.Equal(int64(300), f.balance(t, bob))

	m := f.metrics(t)
	require.Equal(uint64(1), m.CompletedCount)
	require.Equal(0, m.CompletedVolume.Cmp(big.NewInt(300)))
	require.Len(host.FilterLogs(f.h.Logs(), inter.EventTokensReleased), 1)

	require.NoError(f.h.View(func(env *host.Env) error {
		done, err := f.b.IsNonceProcessed(env, 7)
		require.True(done)
		return err
	}))
}

func TestCompleteBridgeSignatures(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)
	msg := inbound(1, bob, 100)

	require.ErrorIs(f.complete(msg, f.sign(t, msg, f.keys[0])), errs.ErrInsufficientSignatures)
	require.ErrorIs(f.complete(msg, f.sign(t, msg, f.keys[0], f.keys[0])), errs.ErrDuplicateSigner)

	outsider, err := crypto.GenerateKey()
	require.NoError(err)
	require.ErrorIs(f.complete(msg, f.sign(t, msg, f.keys[0], outsider)), errs.ErrInvalidSignature)

	// signed over a different message
	other := inbound(1, alice, 100)
	require.ErrorIs(f.complete(msg, f.sign(t, other, f.keys[0], f.keys[1])), errs.ErrInvalidSignature)

	require.ErrorIs(f.complete(msg, [][]byte{{1, 2, 3}, {4, 5, 6}}), errs.ErrInvalidSignature)

	// removed signers no longer count
	require.NoError(f.h.Invoke(admin, "removeValidator", func(env *host.Env) error {
		return f.b.RemoveValidator(env, crypto.PubkeyToAddress(f.keys[1].PublicKey))
	}))
	require.ErrorIs(f.complete(msg, f.sign(t, msg, f.keys[0], f.keys[1])), errs.ErrInvalidSignature)

	wrongToken := msg
	wrongToken.Token = common.HexToAddress("0xdead")
	require.ErrorIs(f.complete(wrongToken, f.sign(t, wrongToken, f.keys[0], f.keys[2])), errs.ErrInvalidToken)

	wrongChain := msg
	wrongChain.DestinationChain = rules.TestChainID
	require.ErrorIs(f.complete(wrongChain, f.sign(t, wrongChain, f.keys[0], f.keys[2])), errs.ErrUnsupportedChain)

	// none of the failures consumed the nonce
	require.NoError(f.complete(msg, f.sign(t, msg, f.keys[2], f.keys[0])))
	require.Equal(int64(100), f.balance(t, bob))
}

func TestCompleteBridgePaused(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)
	msg := inbound(1, bob, 100)
	sigs := f.sign(t, msg, f.keys[0], f.keys[1])

	require.NoError(f.h.Invoke(admin, "pauseChains", func(env *host.Env) error {
		return f.controls.PauseChains(env, []uint32{remote})
	}))
	require.ErrorIs(f.complete(msg, sigs), errs.ErrChainPaused)

	require.NoError(f.h.Invoke(admin, "resumeChains", func(env *host.Env) error {
		return f.controls.ResumeChains(env, []uint32{remote})
	}))
	require.NoError(f.complete(msg, sigs))
}

func TestCompleteFromProposal(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)

	v := common.HexToAddress("0x1001")
	require.NoError(f.h.Invoke(v, "registerValidator", func(env *host.Env) error {
		return f.consensus.RegisterValidator(env, v, big.NewInt(1000))
	}))
	msg := inbound(3, bob, 250)
	var id uint64
	require.NoError(f.h.Invoke(v, "createProposal", func(env *host.Env) (err error) {
		id, err = f.consensus.CreateProposal(env, v, msg)
		return err
	}))

	release := func() error {
		return f.h.Invoke(bob, "completeFromProposal", func(env *host.Env) error {
			return f.b.CompleteFromProposal(env, id)
		})
	}
	require.ErrorIs(release(), errs.ErrProposalNotApproved)

	require.NoError(f.h.Invoke(v, "vote", func(env *host.Env) error {
		return f.consensus.VoteOnProposal(env, v, id, true)
	}))
	require.NoError(release())
	require.Equal(int64(250), f.balance(t, bob))

	require.ErrorIs(release(), errs.ErrDuplicateNonce)
	require.ErrorIs(f.complete(msg, f.sign(t, msg, f.keys[0], f.keys[1])), errs.ErrDuplicateNonce)
	require.Equal(int64(250), f.balance(t, bob))
}

func TestAdminOperations(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)

	require.ErrorIs(f.h.Invoke(alice, "setFee", func(env *host.Env) error {
		return f.b.SetBridgeFee(env, big.NewInt(1))
	}), errs.ErrUnauthorized)
	require.ErrorIs(f.h.Invoke(admin, "setMin", func(env *host.Env) error {
		return f.b.SetMinValidators(env, 0)
	}), errs.ErrInvalidInput)

	// authorization is checked before the arguments
	require.ErrorIs(f.h.Invoke(alice, "setFee", func(env *host.Env) error {
		return f.b.SetBridgeFee(env, big.NewInt(-1))
	}), errs.ErrUnauthorized)
	require.ErrorIs(f.h.Invoke(alice, "setMin", func(env *host.Env) error {
		return f.b.SetMinValidators(env, 0)
	}), errs.ErrUnauthorized)
	require.ErrorIs(f.h.Invoke(admin, "setFee", func(env *host.Env) error {
		return f.b.SetBridgeFee(env, big.NewInt(-1))
	}), errs.ErrInvalidInput)

	require.NoError(f.h.Invoke(admin, "configure", func(env *host.Env) error {
		if err := f.b.SetBridgeFee(env, big.NewInt(5)); err != nil {
			return err
		}
		if err := f.b.SetFeeRecipient(env, bob); err != nil {
			return err
		}
		if err := f.b.SetMinValidators(env, 3); err != nil {
			return err
		}
		if err := f.b.AddSupportedChain(env, 56); err != nil {
			return err
		}
		if err := f.b.RemoveSupportedChain(env, remote); err != nil {
			return err
		}
		// adding a present signer changes nothing
		return f.b.AddValidator(env, crypto.PubkeyToAddress(f.keys[0].PublicKey))
	}))

	require.NoError(f.h.View(func(env *host.Env) error {
		cfg, err := f.b.GetConfig(env)
		require.NoError(err)
		require.Equal(0, cfg.Fee.Cmp(big.NewInt(5)))
		require.Equal(bob, cfg.FeeRecipient)
		require.Equal(uint32(3), cfg.MinValidators)

		ok, err := f.b.IsSupportedChain(env, 56)
		require.NoError(err)
		require.True(ok)
		ok, err = f.b.IsSupportedChain(env, remote)
		require.NoError(err)
		require.False(ok)

		set, err := f.b.GetValidators(env)
		require.NoError(err)
		require.Len(set, 3)
		return nil
	}))

	err := f.h.Invoke(admin, "init again", func(env *host.Env) error {
		return f.b.Initialize(env, Config{Token: bridgeToken, MinValidators: 1}, nil, nil)
	})
	require.ErrorIs(err, errs.ErrAlreadyInitialized)
}
