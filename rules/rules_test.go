package rules

import (
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/rony4d/go-opera-bridge/inter"
)

// TestChainConstants verifies the chain id constants.
func TestChainConstants(t *testing.T) {
	tests := []struct {
		name     string
		constant uint32
		want     uint32
	}{
		{"MainChainID", MainChainID, 0xb1d},
		{"TestChainID", TestChainID, 0xb1d2},
		{"FakeChainID", FakeChainID, 0xb1d3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.constant != tt.want {
				t.Errorf("%s = %d, want %d", tt.name, tt.constant, tt.want)
			}
		})
	}
}

// TestMainNetRules verifies the production timeouts and admission rules.
func TestMainNetRules(t *testing.T) {
	r := MainNetRules()

	if r.Name != "main" {
		t.Errorf("Name = %q, want %q", r.Name, "main")
	}
	if r.Validators.MinStake.Cmp(big.NewInt(1000)) != 0 {
		t.Errorf("MinStake = %s, want 1000", r.Validators.MinStake)
	}

	durations := []struct {
		name string
		got  inter.Timestamp
		want time.Duration
	}{
		{"ProposalTimeout", r.Proposals.Timeout, 24 * time.Hour},
		{"CancelTimeout", r.Bridge.CancelTimeout, 7 * 24 * time.Hour},
		{"InactivityThreshold", r.Validators.InactivityThreshold, 7 * 24 * time.Hour},
		{"MinTimelock", r.Swaps.MinTimelock, time.Hour},
		{"MaxTimelock", r.Swaps.MaxTimelock, 7 * 24 * time.Hour},
		{"BreakerWindow", r.Breaker.Window, 24 * time.Hour},
	}
	for _, d := range durations {
		t.Run(d.name, func(t *testing.T) {
			if d.got.Duration() != d.want {
				t.Errorf("%s = %v, want %v", d.name, d.got.Duration(), d.want)
			}
		})
	}

	if err := r.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

// TestSlashingPenalties verifies percentages and reputation penalties per reason.
func TestSlashingPenalties(t *testing.T) {
	s := DefaultSlashingRules()
	stake := big.NewInt(1000)

	tests := []struct {
		reason     inter.SlashReason
		wantAmount int64
		wantRep    uint32
	}{
		{inter.DoubleVote, 500, 80},
		{inter.InvalidSignature, 100, 90},
		{inter.Inactivity, 50, 95},
		{inter.ByzantineBehavior, 1000, 50},
		{inter.MaliciousProposal, 1000, 70},
	}
	for _, tt := range tests {
		t.Run(tt.reason.String(), func(t *testing.T) {
			p, ok := s.For(tt.reason)
			if !ok {
				t.Fatalf("no penalty for %s", tt.reason)
			}
			if got := p.Amount(stake); got.Cmp(big.NewInt(tt.wantAmount)) != 0 {
				t.Errorf("Amount = %s, want %d", got, tt.wantAmount)
			}
			if got := p.Degrade(MaxReputation); got != tt.wantRep {
				t.Errorf("Degrade = %d, want %d", got, tt.wantRep)
			}
		})
	}

	if _, ok := s.For(inter.SlashReason(99)); ok {
		t.Error("unknown reason must have no penalty")
	}
}

// TestPenaltyEdges verifies rounding and saturation.
func TestPenaltyEdges(t *testing.T) {
	p := Penalty{BasisPoints: 500, Reputation: 20}

	if got := p.Amount(big.NewInt(19)); got.Sign() != 0 {
		t.Errorf("5%% of 19 = %s, want 0 (rounds down)", got)
	}
	if got := p.Amount(new(big.Int)); got.Sign() != 0 {
		t.Errorf("zero stake slash = %s", got)
	}
	if got := p.Amount(nil); got.Sign() != 0 {
		t.Errorf("nil stake slash = %s", got)
	}
	if got := p.Degrade(15); got != 0 {
		t.Errorf("Degrade(15) = %d, want 0", got)
	}
}

// TestByName verifies preset lookup.
func TestByName(t *testing.T) {
	for _, name := range []string{"main", "test", "fake"} {
		r, err := ByName(name)
		if err != nil {
			t.Fatalf("ByName(%q): %v", name, err)
		}
		if r.Name != name {
			t.Errorf("ByName(%q).Name = %q", name, r.Name)
		}
		if err := r.Validate(); err != nil {
			t.Errorf("%s: Validate() = %v", name, err)
		}
	}
	if _, err := ByName("moon"); err == nil {
		t.Error("ByName(moon) should fail")
	}
	if FakeNetRules().Validators.MinStake.Cmp(big.NewInt(1)) != 0 {
		t.Error("fakenet min stake should be 1")
	}
}

// TestValidate verifies rejected configurations.
func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *Rules)
	}{
		{"zero min stake", func(r *Rules) { r.Validators.MinStake = new(big.Int) }},
		{"no validators", func(r *Rules) { r.Validators.MaxValidators = 0 }},
		{"inverted timelocks", func(r *Rules) { r.Swaps.MinTimelock = r.Swaps.MaxTimelock + 1 }},
		{"zero window", func(r *Rules) { r.Breaker.Window = 0 }},
		{"penalty above 100%", func(r *Rules) { r.Slashing.Inactivity.BasisPoints = BasisPoints + 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := MainNetRules()
			tt.mutate(&r)
			if err := r.Validate(); err == nil {
				t.Errorf("Validate() = nil, want error")
			}
		})
	}
}

// TestCopy verifies that Copy does not share big.Int state.
func TestCopy(t *testing.T) {
	r := MainNetRules()
	cp := r.Copy()
	cp.Validators.MinStake.SetInt64(5)

	if r.Validators.MinStake.Cmp(big.NewInt(1000)) != 0 {
		t.Errorf("original MinStake mutated to %s", r.Validators.MinStake)
	}
}

// TestString verifies the JSON dump.
func TestString(t *testing.T) {
	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(MainNetRules().String()), &decoded); err != nil {
		t.Fatalf("String() is not JSON: %v", err)
	}
	if decoded["Name"] != "main" {
		t.Errorf("Name = %v", decoded["Name"])
	}
}
