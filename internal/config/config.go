package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the server/economy tuning file. Secrets (hot wallet key,
// seal key) never live here; they come from the environment.
type Config struct {
	Ledger  Ledger  `yaml:"ledger"`
	Economy Economy `yaml:"economy"`
	Verify  Verify  `yaml:"verify"`
	World   World   `yaml:"world"`
}

type Ledger struct {
	RPCURL          string `yaml:"rpc_url"`
	TokenMint       string `yaml:"token_mint"`
	TreasuryAddress string `yaml:"treasury_address"`
	ConfirmTimeoutS int    `yaml:"confirm_timeout_s"`
	// Native base units the hot wallet must hold before it is
	// considered able to pay submission fees.
	MinNativeForFees uint64 `yaml:"min_native_for_fees"`
}

type Economy struct {
	FeeBps      uint64       `yaml:"fee_bps"`
	Allocations []Allocation `yaml:"allocations"`
}

// Allocation is one generation tier. Tokens are whole tokens; the
// economy package converts to base units.
type Allocation struct {
	MaxBots int    `yaml:"max_bots"`
	Tokens  uint64 `yaml:"tokens"`
	Name    string `yaml:"name"`
}

type Verify struct {
	ChallengeTTLS int `yaml:"challenge_ttl_s"`
}

type World struct {
	Width       int `yaml:"width"`
	Height      int `yaml:"height"`
	SpawnX      int `yaml:"spawn_x"`
	SpawnY      int `yaml:"spawn_y"`
	SpawnJitter int `yaml:"spawn_jitter"`
}

func Defaults() Config {
	return Config{
		Ledger: Ledger{
			RPCURL:           "http://127.0.0.1:8899",
			TokenMint:        "D5kbasLi848K3krRoaTQrtRYpCwYoJStoY8AaRQnr6e7",
			TreasuryAddress:  "FWWmAZ7HRJ5JZ9g1mD9XyRikiXJCBSHmpu7FGQqy4cSK",
			ConfirmTimeoutS:  90,
			MinNativeForFees: 5_000_000,
		},
		Economy: Economy{
			FeeBps: 250,
			Allocations: []Allocation{
				{MaxBots: 1_000, Tokens: 500_000, Name: "Gen 0 - Capital"},
				{MaxBots: 10_000, Tokens: 100_000, Name: "Gen 1 - Commerce"},
				{MaxBots: 50_000, Tokens: 50_000, Name: "Gen 2 - Innovation"},
				{MaxBots: 100_000, Tokens: 32_000, Name: "Gen 3 - Frontier"},
			},
		},
		Verify: Verify{ChallengeTTLS: 300},
		World:  World{Width: 100, Height: 100, SpawnX: 50, SpawnY: 50, SpawnJitter: 5},
	}
}

func Load(path string) (Config, error) {
	c := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return c, fmt.Errorf("config.yaml: %w", err)
	}
	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("config.yaml: %w", err)
	}
	return c, nil
}

func (c Config) Validate() error {
	if c.Economy.FeeBps > 10_000 {
		return fmt.Errorf("fee_bps %d exceeds 10000", c.Economy.FeeBps)
	}
	if c.Verify.ChallengeTTLS <= 0 {
		return fmt.Errorf("challenge_ttl_s must be positive")
	}
	if c.World.Width <= 0 || c.World.Height <= 0 {
		return fmt.Errorf("world dimensions must be positive")
	}
	prev := 0
	for i, a := range c.Economy.Allocations {
		if a.MaxBots <= prev {
			return fmt.Errorf("allocations[%d]: max_bots %d not above previous ceiling %d", i, a.MaxBots, prev)
		}
		if a.Name == "" {
			return fmt.Errorf("allocations[%d]: name required", i)
		}
		prev = a.MaxBots
	}
	return nil
}
