package world

import (
	"fmt"
	"log"
	mrand "math/rand"
	"time"

	"github.com/google/uuid"

	"clawworld.ai/internal/economy"
	"clawworld.ai/internal/ledger"
	persistlog "clawworld.ai/internal/persistence/log"
	"clawworld.ai/internal/protocol"
	"clawworld.ai/internal/store"
	"clawworld.ai/internal/verify"
	"clawworld.ai/internal/wallet"
)

// AuditWriter receives one entry per registration/funding/transfer
// outcome. Writes are best effort; a failing audit sink never fails
// the operation it describes.
type AuditWriter interface {
	WriteAudit(persistlog.AuditEntry) error
}

// EventSink receives world events for live observers.
type EventSink interface {
	Publish(protocol.FeedEvent)
}

// Config wires a Service. Store, Ledger and Sealer are required; the
// rest defaults sensibly.
type Config struct {
	Store  store.Store
	Ledger ledger.Gateway
	Bank   *verify.Bank
	Policy *economy.Policy
	Sealer wallet.Sealer
	Audit  AuditWriter
	Events EventSink
	Logger *log.Logger

	// HotWallet distributes allocation grants. Zero means funding is
	// disabled and every registration ends unfunded.
	HotWallet        wallet.Keypair
	TreasuryAddress  string
	FeeBps           uint64
	MinNativeForFees uint64

	// Ledger operations run under their own timeout, detached from the
	// request that triggered them.
	LedgerTimeout time.Duration

	Width       int
	Height      int
	SpawnX      int
	SpawnY      int
	SpawnJitter int

	Now     func() time.Time
	NewID   func() string
	RandInt func(n int) int
}

// Service sequences verification, wallet issuance, allocation, ledger
// distribution and persistence for the world's agents.
type Service struct {
	store  store.Store
	ledger ledger.Gateway
	bank   *verify.Bank
	policy *economy.Policy
	sealer wallet.Sealer
	audit  AuditWriter
	events EventSink
	log    *log.Logger

	hotWallet        wallet.Keypair
	treasury         string
	feeBps           uint64
	minNativeForFees uint64
	ledgerTimeout    time.Duration

	width, height  int
	spawnX, spawnY int
	spawnJitter    int

	now     func() time.Time
	newID   func() string
	randInt func(n int) int
}

func New(cfg Config) (*Service, error) {
	if cfg.Store == nil || cfg.Ledger == nil || cfg.Sealer == nil {
		return nil, fmt.Errorf("store, ledger and sealer are required")
	}
	s := &Service{
		store:            cfg.Store,
		ledger:           cfg.Ledger,
		bank:             cfg.Bank,
		policy:           cfg.Policy,
		sealer:           cfg.Sealer,
		audit:            cfg.Audit,
		events:           cfg.Events,
		log:              cfg.Logger,
		hotWallet:        cfg.HotWallet,
		treasury:         cfg.TreasuryAddress,
		feeBps:           cfg.FeeBps,
		minNativeForFees: cfg.MinNativeForFees,
		ledgerTimeout:    cfg.LedgerTimeout,
		width:            cfg.Width,
		height:           cfg.Height,
		spawnX:           cfg.SpawnX,
		spawnY:           cfg.SpawnY,
		spawnJitter:      cfg.SpawnJitter,
		now:              cfg.Now,
		newID:            cfg.NewID,
		randInt:          cfg.RandInt,
	}
	if s.bank == nil {
		s.bank = verify.NewBank(verify.BankConfig{})
	}
	if s.policy == nil {
		p, err := economy.NewPolicy(economy.DefaultTiers())
		if err != nil {
			return nil, err
		}
		s.policy = p
	}
	if s.log == nil {
		s.log = log.Default()
	}
	if s.feeBps == 0 {
		s.feeBps = economy.DefaultFeeBps
	}
	if s.ledgerTimeout <= 0 {
		s.ledgerTimeout = 2 * time.Minute
	}
	if s.width <= 0 {
		s.width = 100
	}
	if s.height <= 0 {
		s.height = 100
	}
	if s.spawnX == 0 && s.spawnY == 0 {
		s.spawnX, s.spawnY = 50, 50
	}
	if s.spawnJitter <= 0 {
		s.spawnJitter = 5
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if s.randInt == nil {
		s.randInt = mrand.Intn
	}
	return s, nil
}

// Bank exposes the challenge bank for metrics.
func (s *Service) Bank() *verify.Bank { return s.bank }

func (s *Service) writeAudit(e persistlog.AuditEntry) {
	if s.audit == nil {
		return
	}
	e.At = s.now().UTC().Format(time.RFC3339)
	if err := s.audit.WriteAudit(e); err != nil {
		s.log.Printf("audit write: %v", err)
	}
}

func (s *Service) publish(e protocol.FeedEvent) {
	if s.events == nil {
		return
	}
	e.At = s.now().UTC().Format(time.RFC3339)
	s.events.Publish(e)
}
