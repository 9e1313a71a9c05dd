package world

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"clawworld.ai/internal/ledger"
	"clawworld.ai/internal/protocol"
	"clawworld.ai/internal/store"
	"clawworld.ai/internal/verify"
	"clawworld.ai/internal/wallet"
)

type fakeTransfer struct {
	From   string
	To     string
	Amount uint64
}

// fakeLedger is an in-memory Gateway with scriptable failures.
type fakeLedger struct {
	mu        sync.Mutex
	balances  map[string]uint64 // token base units by address
	native    map[string]uint64
	transfers []fakeTransfer

	failAll  bool
	failTo   map[string]bool
	sigCount int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		balances: map[string]uint64{},
		native:   map[string]uint64{},
		failTo:   map[string]bool{},
	}
}

func (f *fakeLedger) TokenBalance(_ context.Context, owner string) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[owner], nil
}

func (f *fakeLedger) NativeBalance(_ context.Context, owner string) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.native[owner], nil
}

func (f *fakeLedger) Transfer(_ context.Context, from wallet.Keypair, to string, amount uint64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll || f.failTo[to] {
		return "", &ledger.SubmissionError{Method: "submitTransfer", Err: fmt.Errorf("node rejected")}
	}
	addr := from.Address()
	if f.balances[addr] >= amount {
		f.balances[addr] -= amount
	}
	f.balances[to] += amount
	f.transfers = append(f.transfers, fakeTransfer{From: addr, To: to, Amount: amount})
	f.sigCount++
	return fmt.Sprintf("sig-%d", f.sigCount), nil
}

func (f *fakeLedger) transferCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.transfers)
}

// recordingSink captures published feed events.
type recordingSink struct {
	mu     sync.Mutex
	events []protocol.FeedEvent
}

func (r *recordingSink) Publish(e protocol.FeedEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingSink) byType(kind string) []protocol.FeedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []protocol.FeedEvent
	for _, e := range r.events {
		if e.Type == kind {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	svc    *Service
	store  *store.Memory
	ledger *fakeLedger
	events *recordingSink
	hot    wallet.Keypair
}

func newFixture(t *testing.T, mutate ...func(*Config)) *fixture {
	t.Helper()

	hot, err := wallet.Issue()
	if err != nil {
		t.Fatalf("hot wallet: %v", err)
	}
	mem := store.NewMemory()
	led := newFakeLedger()
	sink := &recordingSink{}

	clock := time.Unix(1_700_000_000, 0)
	var ids, chIDs atomic.Int64
	bank := verify.NewBank(verify.BankConfig{
		TTL: 300 * time.Second,
		Now: func() time.Time { return clock },
		NewID: func() (string, error) {
			return fmt.Sprintf("ch-%d", chIDs.Add(1)), nil
		},
		Pick: func(int) int { return 0 }, // reasoning / north-move
	})

	cfg := Config{
		Store:           mem,
		Ledger:          led,
		Bank:            bank,
		Sealer:          wallet.LegacyCodec{},
		Events:          sink,
		Logger:          log.New(io.Discard, "", 0),
		HotWallet:       hot,
		TreasuryAddress: "treasury-addr",
		LedgerTimeout:   time.Second,
		Now:             func() time.Time { return clock },
		NewID: func() string {
			return fmt.Sprintf("id-%d", ids.Add(1))
		},
		RandInt: func(n int) int { return n / 2 }, // spawn dead center
	}
	for _, m := range mutate {
		m(&cfg)
	}
	svc, err := New(cfg)
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	return &fixture{svc: svc, store: mem, ledger: led, events: sink, hot: hot}
}

const northMoveAnswer = "47, because north decreases Y: 50 - 3 = 47"

// mustWalletAddress returns a well-formed address with no agent behind it.
func mustWalletAddress(t *testing.T) string {
	t.Helper()
	kp, err := wallet.Issue()
	if err != nil {
		t.Fatalf("issue wallet: %v", err)
	}
	return kp.Address()
}

// registerVerified walks the two-step flow to a Created result.
func (f *fixture) registerVerified(t *testing.T, name string) RegisterResult {
	t.Helper()
	ctx := context.Background()
	first, err := f.svc.Register(ctx, RegisterRequest{Name: name})
	if err != nil {
		t.Fatalf("register step 1: %v", err)
	}
	if first.Status != VerificationRequired {
		t.Fatalf("step 1 status = %v, want VerificationRequired", first.Status)
	}
	res, err := f.svc.Register(ctx, RegisterRequest{
		Name:        name,
		ChallengeID: first.Challenge.ID,
		Answer:      northMoveAnswer,
	})
	if err != nil {
		t.Fatalf("register step 2: %v", err)
	}
	return res
}
