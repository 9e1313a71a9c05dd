package verify

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	mrand "math/rand"
	"strings"
	"sync"
	"time"
)

// Outcome of a verification attempt.
type Outcome int

const (
	Valid Outcome = iota + 1
	NotFound
	Expired
	Rejected
)

func (o Outcome) String() string {
	switch o {
	case Valid:
		return "valid"
	case NotFound:
		return "not_found"
	case Expired:
		return "expired"
	case Rejected:
		return "rejected"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Challenge is what a prospective agent receives.
type Challenge struct {
	ID        string
	Question  string
	Category  string
	ExpiresIn int // seconds
}

// Context is the per-challenge state a scoring rule may consult.
type Context struct {
	Name     string
	IssuedAt time.Time
}

type pending struct {
	question string
	category string
	check    CheckFunc
	ctx      Context
	expires  time.Time
}

// BankConfig configures a Bank. Zero fields take defaults; the clock,
// id source and picker are injectable so expiry and collision behavior
// are deterministic in tests.
type BankConfig struct {
	TTL        time.Duration
	Now        func() time.Time
	NewID      func() (string, error)
	Pick       func(n int) int
	Categories []Category
}

// Bank issues and validates proof-of-AI-reasoning challenges. State is
// process-lifetime, in-memory only. Safe for concurrent use.
type Bank struct {
	mu      sync.Mutex
	pending map[string]pending

	ttl        time.Duration
	now        func() time.Time
	newID      func() (string, error)
	pick       func(n int) int
	categories []Category
}

func NewBank(cfg BankConfig) *Bank {
	b := &Bank{
		pending:    make(map[string]pending),
		ttl:        cfg.TTL,
		now:        cfg.Now,
		newID:      cfg.NewID,
		pick:       cfg.Pick,
		categories: cfg.Categories,
	}
	if b.ttl <= 0 {
		b.ttl = 300 * time.Second
	}
	if b.now == nil {
		b.now = time.Now
	}
	if b.newID == nil {
		b.newID = randomID
	}
	if b.pick == nil {
		b.pick = mrand.Intn
	}
	if len(b.categories) == 0 {
		b.categories = DefaultCategories()
	}
	return b
}

// Issue selects a category and a template uniformly at random, binds
// the candidate's name into the prompt, and stores the pending
// challenge. Expired entries are purged opportunistically on each
// issuance; there is no background timer.
func (b *Bank) Issue(name string) (Challenge, error) {
	id, err := b.newID()
	if err != nil {
		return Challenge{}, fmt.Errorf("challenge id: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	for k, p := range b.pending {
		if p.expires.Before(now) {
			delete(b.pending, k)
		}
	}
	if _, dup := b.pending[id]; dup {
		return Challenge{}, fmt.Errorf("challenge id collision")
	}

	cat := b.categories[b.pick(len(b.categories))]
	v := cat.Variants[b.pick(len(cat.Variants))]
	question := strings.ReplaceAll(v.Template, "{name}", name)

	b.pending[id] = pending{
		question: question,
		category: cat.Name,
		check:    v.Check,
		ctx:      Context{Name: name, IssuedAt: now},
		expires:  now.Add(b.ttl),
	}

	return Challenge{
		ID:        id,
		Question:  question,
		Category:  cat.Name,
		ExpiresIn: int(b.ttl / time.Second),
	}, nil
}

// Verify evaluates an answer against the pending challenge. A valid
// answer consumes the challenge; a second call with the same id
// returns NotFound. A scoring-rule panic counts as Rejected, never as
// Valid.
func (b *Bank) Verify(id, answer string) Outcome {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.pending[id]
	if !ok {
		return NotFound
	}
	if p.expires.Before(b.now()) {
		delete(b.pending, id)
		return Expired
	}
	if safeCheck(p.check, answer, p.ctx) {
		delete(b.pending, id)
		return Valid
	}
	return Rejected
}

// Pending reports the number of unexpired outstanding challenges.
func (b *Bank) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	n := 0
	for _, p := range b.pending {
		if !p.expires.Before(now) {
			n++
		}
	}
	return n
}

func safeCheck(check CheckFunc, answer string, ctx Context) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	if check == nil {
		return false
	}
	return check(answer, ctx)
}

func randomID() (string, error) {
	var raw [16]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw[:]), nil
}
