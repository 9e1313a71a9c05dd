package world

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"clawworld.ai/internal/economy"
	"clawworld.ai/internal/store"
)

// balanceWorkers bounds the fan-out of live balance lookups.
const balanceWorkers = 8

// BotView is a bot record joined with its live ledger balance.
type BotView struct {
	store.Bot
	Balance float64 // whole tokens
}

// View assembles the public world state: recent bots with live
// balances, recent messages, and structures.
func (s *Service) View(ctx context.Context) ([]BotView, []store.Message, []store.Structure, error) {
	bots, err := s.store.ListBots(ctx, 100)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("bots: %w", err)
	}
	messages, err := s.store.ListMessages(ctx, 50)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("messages: %w", err)
	}
	structures, err := s.store.ListStructures(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("structures: %w", err)
	}
	views, err := s.withBalances(ctx, bots)
	if err != nil {
		return nil, nil, nil, err
	}
	return views, messages, structures, nil
}

// Bot resolves an agent by record id or wallet address and attaches
// its live balance.
func (s *Service) Bot(ctx context.Context, identifier string) (BotView, error) {
	bot, err := s.store.BotByID(ctx, identifier)
	if err != nil {
		bot, err = s.store.BotByWallet(ctx, identifier)
	}
	if err != nil {
		return BotView{}, err
	}
	units, err := s.ledger.TokenBalance(ctx, bot.WalletAddress)
	if err != nil {
		return BotView{}, fmt.Errorf("balance: %w", err)
	}
	return BotView{Bot: bot, Balance: tokens(units)}, nil
}

// Leaderboard ranks agents by live balance, descending.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]BotView, error) {
	if limit <= 0 {
		limit = 10
	}
	bots, err := s.store.ListBots(ctx, 100)
	if err != nil {
		return nil, fmt.Errorf("bots: %w", err)
	}
	views, err := s.withBalances(ctx, bots)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(views, func(i, j int) bool { return views[i].Balance > views[j].Balance })
	if len(views) > limit {
		views = views[:limit]
	}
	return views, nil
}

// Nearby lists agents within a square range of the given bot.
func (s *Service) Nearby(ctx context.Context, botID string, rng int) ([]store.Bot, error) {
	if rng <= 0 {
		rng = 5
	}
	bot, err := s.store.BotByID(ctx, botID)
	if err != nil {
		return nil, err
	}
	return s.store.ListBotsNear(ctx, bot.X, bot.Y, rng, bot.ID)
}

// HotStatus is the operator wallet's funding readiness.
type HotStatus struct {
	Address       string
	TokenBalance  float64 // whole tokens
	NativeBalance uint64  // native base units
	CanDistribute bool
}

func (s *Service) HotWalletStatus(ctx context.Context) (HotStatus, error) {
	if s.hotWallet.IsZero() {
		return HotStatus{}, ErrWalletUnconfigured
	}
	addr := s.hotWallet.Address()
	tokenUnits, err := s.ledger.TokenBalance(ctx, addr)
	if err != nil {
		return HotStatus{}, fmt.Errorf("token balance: %w", err)
	}
	native, err := s.ledger.NativeBalance(ctx, addr)
	if err != nil {
		return HotStatus{}, fmt.Errorf("native balance: %w", err)
	}
	return HotStatus{
		Address:       addr,
		TokenBalance:  tokens(tokenUnits),
		NativeBalance: native,
		CanDistribute: tokenUnits > 0 && native > s.minNativeForFees,
	}, nil
}

// withBalances fans out balance lookups with bounded parallelism.
func (s *Service) withBalances(ctx context.Context, bots []store.Bot) ([]BotView, error) {
	views := make([]BotView, len(bots))
	sem := make(chan struct{}, balanceWorkers)
	var wg sync.WaitGroup
	for i, b := range bots {
		wg.Add(1)
		go func(i int, b store.Bot) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			lctx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			units, _ := s.ledger.TokenBalance(lctx, b.WalletAddress)
			views[i] = BotView{Bot: b, Balance: tokens(units)}
		}(i, b)
	}
	wg.Wait()
	return views, nil
}

func tokens(units uint64) float64 {
	return float64(units) / float64(economy.UnitsPerToken)
}
