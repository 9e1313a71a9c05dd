package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("store: not found")
	// ErrNameTaken reports a case-insensitive display-name collision
	// on insert (the store-native conditional insert).
	ErrNameTaken = errors.New("store: name taken")
)

// Bot lifecycle statuses.
const (
	StatusSpawning = "spawning"
	StatusActive   = "active"
)

// Bot is an agent record. The sealed wallet secret is deliberately
// not a field here; it moves only through the elevated BotSecret read.
type Bot struct {
	ID            string
	Name          string
	WalletAddress string
	OwnerAddress  string
	XHandle       string
	Avatar        string
	X             int
	Y             int
	Status        string
	AIVerified    bool
	VerifiedAt    time.Time
	Generation    string
	CreatedAt     time.Time
	LastActive    time.Time
}

type Message struct {
	ID        string
	BotID     string
	Text      string
	X         int
	Y         int
	CreatedAt time.Time
}

type Structure struct {
	ID   string
	Kind string
	X    int
	Y    int
}

// TransferRecord is an append-only ledger-outcome entry. It is written
// only after the net transfer confirmed; FeeTxSignature stays nil when
// the fee sweep failed.
type TransferRecord struct {
	ID             string
	FromBotID      string
	ToBotID        string // empty when the recipient is not a known agent
	ToWallet       string
	Amount         uint64
	Fee            uint64
	Memo           string
	TxSignature    string
	FeeTxSignature *string
	CreatedAt      time.Time
}

// BotPatch is a partial update; nil fields are left untouched.
type BotPatch struct {
	X          *int
	Y          *int
	Status     *string
	LastActive *time.Time
}

// Store is the record-store interface the core needs over the bots,
// messages, structures and transfers collections.
type Store interface {
	// InsertBot persists a new agent with its sealed wallet secret.
	// Returns ErrNameTaken on a case-insensitive name collision.
	InsertBot(ctx context.Context, b Bot, sealedSecret string) error
	BotByID(ctx context.Context, id string) (Bot, error)
	BotByName(ctx context.Context, name string) (Bot, error)
	BotByWallet(ctx context.Context, address string) (Bot, error)
	// BotSecret is the elevated read for the sealed wallet secret.
	BotSecret(ctx context.Context, id string) (string, error)
	PatchBot(ctx context.Context, id string, p BotPatch) error
	CountBots(ctx context.Context) (int, error)
	// ListBots returns newest-first, at most limit.
	ListBots(ctx context.Context, limit int) ([]Bot, error)
	// ListBotsNear returns bots within the square [x±rng, y±rng],
	// excluding the given id.
	ListBotsNear(ctx context.Context, x, y, rng int, excludeID string) ([]Bot, error)

	InsertMessage(ctx context.Context, m Message) error
	ListMessages(ctx context.Context, limit int) ([]Message, error)

	ListStructures(ctx context.Context) ([]Structure, error)

	InsertTransfer(ctx context.Context, tr TransferRecord) error
	ListTransfersByBot(ctx context.Context, botID string, limit int) ([]TransferRecord, error)

	Close() error
}
