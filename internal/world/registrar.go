package world

import (
	"context"
	"errors"
	"fmt"

	"clawworld.ai/internal/economy"
	persistlog "clawworld.ai/internal/persistence/log"
	"clawworld.ai/internal/protocol"
	"clawworld.ai/internal/store"
	"clawworld.ai/internal/verify"
	"clawworld.ai/internal/wallet"
)

type RegisterStatus int

const (
	// Existing: the name is already registered; the existing agent is
	// returned and no challenge or wallet is issued.
	Existing RegisterStatus = iota + 1
	// VerificationRequired: no answer was supplied; a fresh challenge
	// was minted.
	VerificationRequired
	// Rejected: the supplied answer did not verify. Nothing was
	// persisted; the candidate may retry with a new challenge.
	Rejected
	// Created: verified, persisted, and funded best-effort.
	Created
)

type RegisterRequest struct {
	Name         string
	OwnerAddress string
	XHandle      string
	ChallengeID  string
	Answer       string
}

type RegisterResult struct {
	Status    RegisterStatus
	Bot       store.Bot
	Challenge verify.Challenge // set on VerificationRequired
	Reject    verify.Outcome   // set on Rejected
	Grant     economy.Grant    // set on Created

	// Funded reports whether the allocation grant landed on the
	// ledger. A Created result with Funded=false is still a success:
	// the agent exists with status "spawning" and funding is left to
	// operator reconciliation.
	Funded      bool
	TxSignature string
}

// Challenge checks the name and either returns the existing agent or
// mints a verification challenge. This is the same first step the
// register path takes when called without an answer.
func (s *Service) Challenge(ctx context.Context, name string) (RegisterResult, error) {
	if len(name) < 2 {
		return RegisterResult{}, ErrNameTooShort
	}
	existing, err := s.store.BotByName(ctx, name)
	if err == nil {
		return RegisterResult{Status: Existing, Bot: existing}, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return RegisterResult{}, fmt.Errorf("name check: %w", err)
	}
	ch, err := s.bank.Issue(name)
	if err != nil {
		return RegisterResult{}, err
	}
	return RegisterResult{Status: VerificationRequired, Challenge: ch}, nil
}

// Register runs the admission state machine: name check, challenge
// verification, wallet issuance, allocation, persistence, best-effort
// funding. The persisted agent row is the durability checkpoint —
// once the insert succeeds the agent exists even if funding fails.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (RegisterResult, error) {
	if len(req.Name) < 2 {
		return RegisterResult{}, ErrNameTooShort
	}

	// Registration is idempotent per display name.
	existing, err := s.store.BotByName(ctx, req.Name)
	if err == nil {
		return RegisterResult{Status: Existing, Bot: existing}, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return RegisterResult{}, fmt.Errorf("name check: %w", err)
	}

	if req.ChallengeID == "" || req.Answer == "" {
		ch, err := s.bank.Issue(req.Name)
		if err != nil {
			return RegisterResult{}, err
		}
		return RegisterResult{Status: VerificationRequired, Challenge: ch}, nil
	}

	if outcome := s.bank.Verify(req.ChallengeID, req.Answer); outcome != verify.Valid {
		return RegisterResult{Status: Rejected, Reject: outcome}, nil
	}

	kp, err := wallet.Issue()
	if err != nil {
		return RegisterResult{}, fmt.Errorf("issue wallet: %w", err)
	}
	sealed, err := s.sealer.Seal(kp.Secret(), kp.Address())
	if err != nil {
		return RegisterResult{}, fmt.Errorf("seal wallet secret: %w", err)
	}

	// The population read and the insert below are not atomic: two
	// concurrent admissions can observe the same count and share a
	// sequence number. The unique name index still makes the insert
	// itself conditional.
	population, err := s.store.CountBots(ctx)
	if err != nil {
		return RegisterResult{}, fmt.Errorf("population: %w", err)
	}
	grant := s.policy.Compute(population)

	now := s.now().UTC()
	bot := store.Bot{
		ID:            s.newID(),
		Name:          req.Name,
		WalletAddress: kp.Address(),
		OwnerAddress:  req.OwnerAddress,
		XHandle:       req.XHandle,
		X:             s.spawnCoord(s.spawnX, s.width),
		Y:             s.spawnCoord(s.spawnY, s.height),
		Status:        store.StatusSpawning,
		AIVerified:    true,
		VerifiedAt:    now,
		Generation:    grant.Generation,
		CreatedAt:     now,
		LastActive:    now,
	}
	if err := s.store.InsertBot(ctx, bot, sealed); err != nil {
		if errors.Is(err, store.ErrNameTaken) {
			// Lost an admission race on the same name; fold into the
			// idempotent path.
			if winner, lookupErr := s.store.BotByName(ctx, req.Name); lookupErr == nil {
				return RegisterResult{Status: Existing, Bot: winner}, nil
			}
		}
		return RegisterResult{}, fmt.Errorf("persist agent: %w", err)
	}

	s.writeAudit(persistlog.AuditEntry{
		Kind:       persistlog.KindRegistered,
		BotID:      bot.ID,
		Name:       bot.Name,
		Generation: grant.Generation,
		Sequence:   grant.Sequence,
	})
	s.publish(protocol.FeedEvent{
		Type:       protocol.EventBotSpawned,
		BotID:      bot.ID,
		BotName:    bot.Name,
		X:          bot.X,
		Y:          bot.Y,
		Generation: grant.Generation,
	})

	res := RegisterResult{Status: Created, Bot: bot, Grant: grant}
	res.Funded, res.TxSignature = s.fundAgent(&bot, grant)
	if res.Funded {
		res.Bot.Status = store.StatusActive
	}
	return res, nil
}

// fundAgent sends the grant from the hot wallet. It runs under the
// ledger timeout, detached from the request context, so a caller that
// gave up still leaves the system in a defined terminal state.
func (s *Service) fundAgent(bot *store.Bot, grant economy.Grant) (funded bool, sig string) {
	if s.hotWallet.IsZero() || grant.Amount == 0 {
		return false, ""
	}

	lctx, cancel := context.WithTimeout(context.Background(), s.ledgerTimeout)
	defer cancel()

	sig, err := s.ledger.Transfer(lctx, s.hotWallet, bot.WalletAddress, grant.Amount)
	if err != nil {
		// The agent stays at "spawning"; funding is not retried here.
		s.log.Printf("initial funding for %s (%s): %v", bot.Name, bot.ID, err)
		s.writeAudit(persistlog.AuditEntry{
			Kind:     persistlog.KindFundingFailed,
			BotID:    bot.ID,
			Name:     bot.Name,
			ToWallet: bot.WalletAddress,
			Amount:   grant.Amount,
			Error:    err.Error(),
		})
		return false, ""
	}

	status := store.StatusActive
	if err := s.store.PatchBot(lctx, bot.ID, store.BotPatch{Status: &status}); err != nil {
		s.log.Printf("activate %s after funding: %v", bot.ID, err)
	}
	s.writeAudit(persistlog.AuditEntry{
		Kind:        persistlog.KindFunded,
		BotID:       bot.ID,
		Name:        bot.Name,
		ToWallet:    bot.WalletAddress,
		Amount:      grant.Amount,
		TxSignature: sig,
	})
	return true, sig
}

func (s *Service) spawnCoord(center, bound int) int {
	c := center + s.randInt(2*s.spawnJitter+1) - s.spawnJitter
	return clamp(c, 0, bound-1)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
