package economy

import "testing"

func TestCompute_FirstRegistration(t *testing.T) {
	p, err := NewPolicy(DefaultTiers())
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	g := p.Compute(0)
	if g.Generation != "Gen 0 - Capital" {
		t.Fatalf("generation = %q", g.Generation)
	}
	if g.Amount != 500_000*UnitsPerToken {
		t.Fatalf("amount = %d, want %d", g.Amount, uint64(500_000)*UnitsPerToken)
	}
	if g.Sequence != 1 {
		t.Fatalf("sequence = %d, want 1", g.Sequence)
	}
}

func TestCompute_TierBoundaries(t *testing.T) {
	p, err := NewPolicy(DefaultTiers())
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	cases := []struct {
		population int
		amount     uint64
		generation string
	}{
		{0, 500_000 * UnitsPerToken, "Gen 0 - Capital"},
		{999, 500_000 * UnitsPerToken, "Gen 0 - Capital"},
		{1_000, 100_000 * UnitsPerToken, "Gen 1 - Commerce"},
		{9_999, 100_000 * UnitsPerToken, "Gen 1 - Commerce"},
		{10_000, 50_000 * UnitsPerToken, "Gen 2 - Innovation"},
		{49_999, 50_000 * UnitsPerToken, "Gen 2 - Innovation"},
		{50_000, 32_000 * UnitsPerToken, "Gen 3 - Frontier"},
		{99_999, 32_000 * UnitsPerToken, "Gen 3 - Frontier"},
		{100_000, 0, ClosedGeneration},
		{1_000_000, 0, ClosedGeneration},
	}
	for _, tc := range cases {
		g := p.Compute(tc.population)
		if g.Amount != tc.amount || g.Generation != tc.generation {
			t.Fatalf("population %d: got (%d, %q), want (%d, %q)",
				tc.population, g.Amount, g.Generation, tc.amount, tc.generation)
		}
		if g.Sequence != tc.population+1 {
			t.Fatalf("population %d: sequence = %d", tc.population, g.Sequence)
		}
	}
}

func TestCompute_NonIncreasing(t *testing.T) {
	p, err := NewPolicy(DefaultTiers())
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	prev := p.Compute(0).Amount
	for pop := 1; pop <= 120_000; pop += 500 {
		cur := p.Compute(pop).Amount
		if cur > prev {
			t.Fatalf("allocation increased at population %d: %d -> %d", pop, prev, cur)
		}
		prev = cur
	}
}

func TestNewPolicy_RejectsBadTables(t *testing.T) {
	if _, err := NewPolicy([]Tier{
		{MaxBots: 100, Amount: 10, Name: "a"},
		{MaxBots: 100, Amount: 5, Name: "b"},
	}); err == nil {
		t.Fatalf("expected overlapping ceilings rejected")
	}
	if _, err := NewPolicy([]Tier{
		{MaxBots: 100, Amount: 10, Name: "a"},
		{MaxBots: 200, Amount: 20, Name: "b"},
	}); err == nil {
		t.Fatalf("expected increasing amounts rejected")
	}
}
