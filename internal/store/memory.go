package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Memory is an in-process Store for tests and local development.
type Memory struct {
	mu         sync.RWMutex
	bots       []Bot
	secrets    map[string]string
	messages   []Message
	structures []Structure
	transfers  []TransferRecord
}

func NewMemory() *Memory {
	return &Memory{secrets: make(map[string]string)}
}

func (m *Memory) InsertBot(_ context.Context, b Bot, sealedSecret string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.bots {
		if strings.EqualFold(existing.Name, b.Name) {
			return ErrNameTaken
		}
		if existing.WalletAddress == b.WalletAddress {
			return fmt.Errorf("insert bot: wallet address %s already registered", b.WalletAddress)
		}
	}
	m.bots = append(m.bots, b)
	m.secrets[b.ID] = sealedSecret
	return nil
}

func (m *Memory) BotByID(_ context.Context, id string) (Bot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, b := range m.bots {
		if b.ID == id {
			return b, nil
		}
	}
	return Bot{}, ErrNotFound
}

func (m *Memory) BotByName(_ context.Context, name string) (Bot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, b := range m.bots {
		if strings.EqualFold(b.Name, name) {
			return b, nil
		}
	}
	return Bot{}, ErrNotFound
}

func (m *Memory) BotByWallet(_ context.Context, address string) (Bot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, b := range m.bots {
		if b.WalletAddress == address {
			return b, nil
		}
	}
	return Bot{}, ErrNotFound
}

func (m *Memory) BotSecret(_ context.Context, id string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sealed, ok := m.secrets[id]
	if !ok {
		return "", ErrNotFound
	}
	return sealed, nil
}

func (m *Memory) PatchBot(_ context.Context, id string, p BotPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.bots {
		if m.bots[i].ID != id {
			continue
		}
		if p.X != nil {
			m.bots[i].X = *p.X
		}
		if p.Y != nil {
			m.bots[i].Y = *p.Y
		}
		if p.Status != nil {
			m.bots[i].Status = *p.Status
		}
		if p.LastActive != nil {
			m.bots[i].LastActive = *p.LastActive
		}
		return nil
	}
	return ErrNotFound
}

func (m *Memory) CountBots(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.bots), nil
}

func (m *Memory) ListBots(_ context.Context, limit int) ([]Bot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := append([]Bot(nil), m.bots...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) ListBotsNear(_ context.Context, x, y, rng int, excludeID string) ([]Bot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Bot
	for _, b := range m.bots {
		if b.ID == excludeID {
			continue
		}
		if b.X >= x-rng && b.X <= x+rng && b.Y >= y-rng && b.Y <= y+rng {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *Memory) InsertMessage(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return nil
}

func (m *Memory) ListMessages(_ context.Context, limit int) ([]Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := append([]Message(nil), m.messages...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) ListStructures(_ context.Context) ([]Structure, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Structure(nil), m.structures...), nil
}

// AddStructure seeds a structure; used by tests and dev bootstrap.
func (m *Memory) AddStructure(st Structure) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.structures = append(m.structures, st)
}

func (m *Memory) InsertTransfer(_ context.Context, tr TransferRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transfers = append(m.transfers, tr)
	return nil
}

func (m *Memory) ListTransfersByBot(_ context.Context, botID string, limit int) ([]TransferRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []TransferRecord
	for i := len(m.transfers) - 1; i >= 0 && len(out) < limit; i-- {
		tr := m.transfers[i]
		if tr.FromBotID == botID || tr.ToBotID == botID {
			out = append(out, tr)
		}
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }
