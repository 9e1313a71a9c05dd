package economy

import "fmt"

// UnitsPerToken converts whole tokens to ledger base units (9 decimals).
const UnitsPerToken = 1_000_000_000

// ClosedGeneration is the label returned once the population has
// passed every tier ceiling and grants are over.
const ClosedGeneration = "Closed"

// Tier is one generation band: registrations while the population is
// below MaxBots receive Amount base units and the tier's label.
type Tier struct {
	MaxBots int
	Amount  uint64
	Name    string
}

// Grant is the derived allocation for one admission. It is computed,
// never stored on its own.
type Grant struct {
	Amount     uint64
	Generation string
	Sequence   int
}

// Policy maps a population count to a Grant. Pure: it holds only the
// fixed tier table and reads nothing else.
type Policy struct {
	tiers []Tier
}

// NewPolicy validates that ceilings are strictly increasing (ordered,
// non-overlapping) and that amounts never increase across tiers.
func NewPolicy(tiers []Tier) (*Policy, error) {
	prevCeil := 0
	var prevAmount uint64
	for i, tr := range tiers {
		if tr.MaxBots <= prevCeil {
			return nil, fmt.Errorf("tier %d: ceiling %d not above %d", i, tr.MaxBots, prevCeil)
		}
		if i > 0 && tr.Amount > prevAmount {
			return nil, fmt.Errorf("tier %d: amount %d exceeds earlier tier", i, tr.Amount)
		}
		if tr.Name == "" {
			return nil, fmt.Errorf("tier %d: name required", i)
		}
		prevCeil = tr.MaxBots
		prevAmount = tr.Amount
	}
	return &Policy{tiers: tiers}, nil
}

// DefaultTiers is the launch allocation schedule.
func DefaultTiers() []Tier {
	return []Tier{
		{MaxBots: 1_000, Amount: 500_000 * UnitsPerToken, Name: "Gen 0 - Capital"},
		{MaxBots: 10_000, Amount: 100_000 * UnitsPerToken, Name: "Gen 1 - Commerce"},
		{MaxBots: 50_000, Amount: 50_000 * UnitsPerToken, Name: "Gen 2 - Innovation"},
		{MaxBots: 100_000, Amount: 32_000 * UnitsPerToken, Name: "Gen 3 - Frontier"},
	}
}

// Compute returns the grant for an admission observed at the given
// population count. It does not serialize against concurrent
// admissions; the caller owns that (or accepts the race).
func (p *Policy) Compute(population int) Grant {
	for _, tr := range p.tiers {
		if population < tr.MaxBots {
			return Grant{Amount: tr.Amount, Generation: tr.Name, Sequence: population + 1}
		}
	}
	return Grant{Amount: 0, Generation: ClosedGeneration, Sequence: population + 1}
}
