package genesis

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/Fantom-foundation/lachesis-base/kvdb/memorydb"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rony4d/go-opera-bridge/contracts/access"
	"github.com/rony4d/go-opera-bridge/host"
	"github.com/rony4d/go-opera-bridge/integration"
	"github.com/rony4d/go-opera-bridge/inter/validatorpk"
	"github.com/rony4d/go-opera-bridge/rules"
)

const sample = `
rules: fake
admin: 0x00000000000000000000000000000000000000ad
token: 0x00000000000000000000000000000000000007e1
fee: 5
feeRecipient: 0x00000000000000000000000000000000000000fe
minValidators: 2
chains:
  - id: 1
    maxDailyVolume: 1000000000000000000000000
    maxTransactionAmount: 1000
  - id: 137
    maxDailyVolume: "50000"
    maxTransactionAmount: "2000"
validators:
  - address: 0x00000000000000000000000000000000000000a1
    stake: 10
  - address: 0x00000000000000000000000000000000000000a2
    stake: 20
signers:
  - 0x00000000000000000000000000000000000000a1
  - 0x00000000000000000000000000000000000000a2
balances:
  - holder: 0x00000000000000000000000000000000000000b0
    amount: 700
rewardPool: 40
`

func newEngine(t *testing.T, g *Genesis) *integration.Engine {
	r, err := g.RulesOf()
	require.NoError(t, err)
	cfg := integration.DefaultConfig()
	cfg.Rules = r
	return integration.NewEngine(memorydb.New(), host.NewManualClock(FakeGenesisTime), cfg, nil)
}

func TestParse(t *testing.T) {
	require := require.New(t)

	g, err := Parse([]byte(sample))
	require.NoError(err)
	require.Equal("fake", g.Rules)
	require.Equal(common.HexToAddress("0xad"), g.Admin)
	require.Equal(int64(5), g.Fee.Int64())
	require.Len(g.Chains, 2)
	require.Equal(uint32(137), g.Chains[1].ID)
	require.Equal("1000000000000000000000000", g.Chains[0].MaxDailyVolume.String())
	require.Equal(int64(2000), g.Chains[1].MaxTransactionAmount.Int64())
	require.Len(g.Validators, 2)
	require.Equal(int64(20), g.Validators[1].Stake.Int64())
	require.Equal(int64(40), g.RewardPool.Int64())
}

func TestParseJSON(t *testing.T) {
	g, err := Parse([]byte(`{"rules": "test", "admin": "0x00000000000000000000000000000000000000ad", ` +
		`"token": "0x00000000000000000000000000000000000007e1", ` +
		`"chains": [{"id": 56, "maxDailyVolume": 100, "maxTransactionAmount": 10}]}`))
	require.NoError(t, err)
	require.Equal(t, uint32(56), g.Chains[0].ID)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genesis.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0600))
	g, err := Load(path)
	require.NoError(t, err)
	require.Len(t, g.Signers, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	for name, mutate := range map[string]func(*Genesis){
		"unknown rules":     func(g *Genesis) { g.Rules = "moon" },
		"no admin":          func(g *Genesis) { g.Admin = common.Address{} },
		"no token":          func(g *Genesis) { g.Token = common.Address{} },
		"negative fee":      func(g *Genesis) { g.Fee = big.NewInt(-1) },
		"no chains":         func(g *Genesis) { g.Chains = nil },
		"duplicate chain":   func(g *Genesis) { g.Chains[1].ID = g.Chains[0].ID },
		"no limits":         func(g *Genesis) { g.Chains[0].MaxDailyVolume = nil },
		"duplicate":         func(g *Genesis) { g.Validators[1].Address = g.Validators[0].Address },
		"no stake":          func(g *Genesis) { g.Validators[0].Stake = nil },
		"too few signers":   func(g *Genesis) { g.MinValidators = 3 },
		"non-positive mint": func(g *Genesis) { g.Balances[0].Amount = new(big.Int) },
	} {
		t.Run(name, func(t *testing.T) {
			g, err := Parse([]byte(sample))
			require.NoError(t, err)
			mutate(g)
			require.Error(t, g.Validate())
		})
	}
}

func TestApply(t *testing.T) {
	require := require.New(t)

	g, err := Parse([]byte(sample))
	require.NoError(err)
	e := newEngine(t, g)
	require.NoError(g.Apply(e))

	require.NoError(e.Host.View(func(env *host.Env) error {
		admin, err := access.Admin(env)
		require.NoError(err)
		require.Equal(g.Admin, admin)

		st, err := e.Registry.GetConsensusState(env)
		require.NoError(err)
		require.Equal(uint32(2), st.ActiveValidators)
		require.Equal(int64(30), st.TotalStake.Int64())

		cfg, err := e.Bridge.GetConfig(env)
		require.NoError(err)
		require.Equal(uint32(2), cfg.MinValidators)
		require.Equal(int64(5), cfg.Fee.Int64())

		for _, c := range g.Chains {
			ok, err := e.Bridge.IsSupportedChain(env, c.ID)
			require.NoError(err)
			require.True(ok)
			cb, err := e.Controls.GetCircuitBreaker(env, c.ID)
			require.NoError(err)
			require.Equal(0, cb.MaxTransactionAmount.Cmp(c.MaxTransactionAmount))
		}

		signers, err := e.Bridge.GetValidators(env)
		require.NoError(err)
		require.ElementsMatch(g.Signers, signers)

		bal, err := e.Tokens.Balance(env, g.Token, common.HexToAddress("0xb0"))
		require.NoError(err)
		require.Equal(int64(700), bal.Int64())

		pool, err := e.Stakes.GetRewardPool(env)
		require.NoError(err)
		require.Equal(int64(40), pool.Int64())
		return nil
	}))

	// a genesis applies once
	require.Error(g.Apply(e))
}

func TestApplyRejectsLowStake(t *testing.T) {
	g, err := Parse([]byte(sample))
	require.NoError(t, err)
	g.Rules = "main"
	e := newEngine(t, g)
	require.Error(t, g.Apply(e))
}

func TestSignerKeys(t *testing.T) {
	require := require.New(t)

	key := validatorpk.FromECDSA(&FakeKey(7).PublicKey)
	g, err := Parse([]byte(sample + "signerKeys:\n  - " + key.String() + "\n"))
	require.NoError(err)
	require.Equal([]validatorpk.PubKey{key}, g.SignerKeys)

	set, err := g.SignerSet()
	require.NoError(err)
	require.Equal(append(append([]common.Address{}, g.Signers...), FakeAddress(7)), set)

	e := newEngine(t, g)
	require.NoError(g.Apply(e))
	require.NoError(e.Host.View(func(env *host.Env) error {
		signers, err := e.Bridge.GetValidators(env)
		require.NoError(err)
		require.ElementsMatch(set, signers)
		return nil
	}))

	// a key whose address is already listed
	g.Signers = append(g.Signers, FakeAddress(7))
	require.Error(g.Validate())

	_, err = Parse([]byte(sample + "signerKeys:\n  - 0x01aa\n"))
	require.ErrorIs(err, validatorpk.ErrUnsupportedCurve)
}

func TestFakeKey(t *testing.T) {
	assert.Equal(t, crypto.FromECDSA(FakeKey(3)), crypto.FromECDSA(FakeKey(3)))
	assert.NotEqual(t, FakeAddress(1), FakeAddress(2))
}

func TestFakeGenesis(t *testing.T) {
	require := require.New(t)

	g := FakeGenesis(4)
	require.NoError(g.Validate())
	require.Len(g.Validators, 4)
	require.Equal(uint32(3), g.MinValidators)

	e := newEngine(t, g)
	require.Equal(rules.FakeChainID, e.Rules.ChainID)
	require.NoError(g.Apply(e))
	require.NoError(e.Host.View(func(env *host.Env) error {
		set, err := e.Registry.GetActiveValidators(env)
		require.NoError(err)
		require.Equal([]common.Address{FakeAddress(1), FakeAddress(2), FakeAddress(3), FakeAddress(4)}, set)
		return nil
	}))
}
