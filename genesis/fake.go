package genesis

import (
	"crypto/ecdsa"
	"math/big"
	"math/rand"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/rony4d/go-opera-bridge/contracts/consensus"
	"github.com/rony4d/go-opera-bridge/inter"
)

// FakeGenesisTime is the start time of fake networks.
var FakeGenesisTime = inter.Timestamp(1608600000 * time.Second)

// FakeToken is the bridge token of fake networks.
var FakeToken = common.HexToAddress("0xb1d70c0000000000000000000000000000000000")

// Chains supported by fake networks.
const (
	FakeEthereumChain uint32 = 1
	FakePolygonChain  uint32 = 137
)

// FakeKey returns the n-th deterministic devnet key. Key 0 is the admin,
// keys 1..n are validators.
func FakeKey(n int) *ecdsa.PrivateKey {
	reader := rand.New(rand.NewSource(int64(n)))
	for {
		seed := make([]byte, 32)
		if _, err := reader.Read(seed); err != nil {
			panic(err)
		}
		// ToECDSA rejects the rare seeds outside the curve order
		if key, err := crypto.ToECDSA(seed); err == nil {
			return key
		}
	}
}

// FakeAddress is the address of FakeKey(n).
func FakeAddress(n int) common.Address {
	return crypto.PubkeyToAddress(FakeKey(n).PublicKey)
}

// FakeGenesis returns a devnet with validators validators, all of them also
// bridge signers with a Byzantine signature threshold.
func FakeGenesis(validators int) *Genesis {
	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	amount := func(n int64) *big.Int {
		return new(big.Int).Mul(big.NewInt(n), unit)
	}

	admin := FakeAddress(0)
	g := &Genesis{
		Rules:         "fake",
		Admin:         admin,
		Token:         FakeToken,
		Fee:           new(big.Int),
		FeeRecipient:  admin,
		MinValidators: consensus.ByzantineThreshold(validators),
		Chains: []Chain{
			{ID: FakeEthereumChain, MaxDailyVolume: amount(1_000_000), MaxTransactionAmount: amount(100_000)},
			{ID: FakePolygonChain, MaxDailyVolume: amount(1_000_000), MaxTransactionAmount: amount(100_000)},
		},
		Balances:   []Balance{{Holder: admin, Amount: amount(1_000_000)}},
		RewardPool: amount(1_000),
	}
	for i := 1; i <= validators; i++ {
		addr := FakeAddress(i)
		g.Validators = append(g.Validators, Validator{Address: addr, Stake: amount(1_000)})
		g.Signers = append(g.Signers, addr)
		g.Balances = append(g.Balances, Balance{Holder: addr, Amount: amount(10_000)})
	}
	return g
}
