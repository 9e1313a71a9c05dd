package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLite is the default record-store backend: a single-writer local
// database in WAL mode. Unlike a read-model index this is the primary
// store, so all operations are synchronous.
type SQLite struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLite{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("pragma %s: %w", p, err)
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS bots (
	id                   TEXT PRIMARY KEY,
	name                 TEXT NOT NULL,
	wallet_address       TEXT NOT NULL,
	wallet_secret_sealed TEXT NOT NULL,
	owner_address        TEXT NOT NULL DEFAULT '',
	x_handle             TEXT NOT NULL DEFAULT '',
	avatar               TEXT NOT NULL DEFAULT '',
	x                    INTEGER NOT NULL,
	y                    INTEGER NOT NULL,
	status               TEXT NOT NULL,
	ai_verified          INTEGER NOT NULL DEFAULT 0,
	verified_at          TEXT NOT NULL DEFAULT '',
	generation           TEXT NOT NULL DEFAULT '',
	created_at           TEXT NOT NULL,
	last_active          TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_bots_name ON bots(name COLLATE NOCASE);
CREATE UNIQUE INDEX IF NOT EXISTS idx_bots_wallet ON bots(wallet_address);

CREATE TABLE IF NOT EXISTS messages (
	id         TEXT PRIMARY KEY,
	bot_id     TEXT NOT NULL,
	message    TEXT NOT NULL,
	x          INTEGER NOT NULL,
	y          INTEGER NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_created ON messages(created_at DESC);

CREATE TABLE IF NOT EXISTS structures (
	id   TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	x    INTEGER NOT NULL,
	y    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS transfers (
	id               TEXT PRIMARY KEY,
	from_bot_id      TEXT NOT NULL,
	to_bot_id        TEXT NOT NULL DEFAULT '',
	to_wallet        TEXT NOT NULL,
	amount           INTEGER NOT NULL,
	fee              INTEGER NOT NULL,
	memo             TEXT NOT NULL DEFAULT '',
	tx_signature     TEXT NOT NULL,
	fee_tx_signature TEXT,
	created_at       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transfers_from ON transfers(from_bot_id, created_at DESC);
`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

const timeLayout = time.RFC3339Nano

func encodeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func decodeTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (s *SQLite) InsertBot(ctx context.Context, b Bot, sealedSecret string) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO bots (id, name, wallet_address, wallet_secret_sealed, owner_address, x_handle, avatar,
                  x, y, status, ai_verified, verified_at, generation, created_at, last_active)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Name, b.WalletAddress, sealedSecret, b.OwnerAddress, b.XHandle, b.Avatar,
		b.X, b.Y, b.Status, boolToInt(b.AIVerified), encodeTime(b.VerifiedAt), b.Generation,
		encodeTime(b.CreatedAt), encodeTime(b.LastActive))
	if err != nil {
		// Only a name collision is the caller's ErrNameTaken; the
		// wallet_address index is also unique and must not be folded
		// into the idempotent-name path.
		if strings.Contains(err.Error(), "UNIQUE constraint failed: bots.name") {
			return ErrNameTaken
		}
		return fmt.Errorf("insert bot: %w", err)
	}
	return nil
}

const botColumns = `id, name, wallet_address, owner_address, x_handle, avatar,
	x, y, status, ai_verified, verified_at, generation, created_at, last_active`

func scanBot(row interface{ Scan(...any) error }) (Bot, error) {
	var b Bot
	var verified int
	var verifiedAt, createdAt, lastActive string
	err := row.Scan(&b.ID, &b.Name, &b.WalletAddress, &b.OwnerAddress, &b.XHandle, &b.Avatar,
		&b.X, &b.Y, &b.Status, &verified, &verifiedAt, &b.Generation, &createdAt, &lastActive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Bot{}, ErrNotFound
		}
		return Bot{}, fmt.Errorf("scan bot: %w", err)
	}
	b.AIVerified = verified != 0
	b.VerifiedAt = decodeTime(verifiedAt)
	b.CreatedAt = decodeTime(createdAt)
	b.LastActive = decodeTime(lastActive)
	return b, nil
}

func (s *SQLite) BotByID(ctx context.Context, id string) (Bot, error) {
	return scanBot(s.db.QueryRowContext(ctx, `SELECT `+botColumns+` FROM bots WHERE id = ?`, id))
}

func (s *SQLite) BotByName(ctx context.Context, name string) (Bot, error) {
	return scanBot(s.db.QueryRowContext(ctx,
		`SELECT `+botColumns+` FROM bots WHERE name = ? COLLATE NOCASE`, name))
}

func (s *SQLite) BotByWallet(ctx context.Context, address string) (Bot, error) {
	return scanBot(s.db.QueryRowContext(ctx,
		`SELECT `+botColumns+` FROM bots WHERE wallet_address = ?`, address))
}

func (s *SQLite) BotSecret(ctx context.Context, id string) (string, error) {
	var sealed string
	err := s.db.QueryRowContext(ctx, `SELECT wallet_secret_sealed FROM bots WHERE id = ?`, id).Scan(&sealed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("bot secret: %w", err)
	}
	return sealed, nil
}

func (s *SQLite) PatchBot(ctx context.Context, id string, p BotPatch) error {
	sets := make([]string, 0, 4)
	args := make([]any, 0, 5)
	if p.X != nil {
		sets = append(sets, "x = ?")
		args = append(args, *p.X)
	}
	if p.Y != nil {
		sets = append(sets, "y = ?")
		args = append(args, *p.Y)
	}
	if p.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *p.Status)
	}
	if p.LastActive != nil {
		sets = append(sets, "last_active = ?")
		args = append(args, encodeTime(*p.LastActive))
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	res, err := s.db.ExecContext(ctx, `UPDATE bots SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("patch bot: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) CountBots(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bots`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count bots: %w", err)
	}
	return n, nil
}

func (s *SQLite) ListBots(ctx context.Context, limit int) ([]Bot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+botColumns+` FROM bots ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list bots: %w", err)
	}
	defer rows.Close()
	return collectBots(rows)
}

func (s *SQLite) ListBotsNear(ctx context.Context, x, y, rng int, excludeID string) ([]Bot, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT `+botColumns+` FROM bots
WHERE x BETWEEN ? AND ? AND y BETWEEN ? AND ? AND id != ?
ORDER BY created_at DESC`,
		x-rng, x+rng, y-rng, y+rng, excludeID)
	if err != nil {
		return nil, fmt.Errorf("list bots near: %w", err)
	}
	defer rows.Close()
	return collectBots(rows)
}

func collectBots(rows *sql.Rows) ([]Bot, error) {
	var out []Bot
	for rows.Next() {
		b, err := scanBot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *SQLite) InsertMessage(ctx context.Context, m Message) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, bot_id, message, x, y, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.BotID, m.Text, m.X, m.Y, encodeTime(m.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (s *SQLite) ListMessages(ctx context.Context, limit int) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, bot_id, message, x, y, created_at FROM messages ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()
	var out []Message
	for rows.Next() {
		var m Message
		var created string
		if err := rows.Scan(&m.ID, &m.BotID, &m.Text, &m.X, &m.Y, &created); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.CreatedAt = decodeTime(created)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLite) ListStructures(ctx context.Context) ([]Structure, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, kind, x, y FROM structures`)
	if err != nil {
		return nil, fmt.Errorf("list structures: %w", err)
	}
	defer rows.Close()
	var out []Structure
	for rows.Next() {
		var st Structure
		if err := rows.Scan(&st.ID, &st.Kind, &st.X, &st.Y); err != nil {
			return nil, fmt.Errorf("scan structure: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *SQLite) InsertTransfer(ctx context.Context, tr TransferRecord) error {
	var feeSig sql.NullString
	if tr.FeeTxSignature != nil {
		feeSig = sql.NullString{String: *tr.FeeTxSignature, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO transfers (id, from_bot_id, to_bot_id, to_wallet, amount, fee, memo, tx_signature, fee_tx_signature, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tr.ID, tr.FromBotID, tr.ToBotID, tr.ToWallet, tr.Amount, tr.Fee, tr.Memo,
		tr.TxSignature, feeSig, encodeTime(tr.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert transfer: %w", err)
	}
	return nil
}

func (s *SQLite) ListTransfersByBot(ctx context.Context, botID string, limit int) ([]TransferRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, from_bot_id, to_bot_id, to_wallet, amount, fee, memo, tx_signature, fee_tx_signature, created_at
FROM transfers WHERE from_bot_id = ? OR to_bot_id = ?
ORDER BY created_at DESC LIMIT ?`, botID, botID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	defer rows.Close()
	var out []TransferRecord
	for rows.Next() {
		var tr TransferRecord
		var feeSig sql.NullString
		var created string
		if err := rows.Scan(&tr.ID, &tr.FromBotID, &tr.ToBotID, &tr.ToWallet, &tr.Amount, &tr.Fee,
			&tr.Memo, &tr.TxSignature, &feeSig, &created); err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		if feeSig.Valid {
			v := feeSig.String
			tr.FeeTxSignature = &v
		}
		tr.CreatedAt = decodeTime(created)
		out = append(out, tr)
	}
	return out, rows.Err()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
