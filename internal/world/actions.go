package world

import (
	"context"
	"fmt"
	"strings"

	"clawworld.ai/internal/protocol"
	"clawworld.ai/internal/store"
)

var moves = map[string][2]int{
	"n": {0, -1}, "north": {0, -1},
	"s": {0, 1}, "south": {0, 1},
	"e": {1, 0}, "east": {1, 0},
	"w": {-1, 0}, "west": {-1, 0},
	"ne": {1, -1}, "nw": {-1, -1},
	"se": {1, 1}, "sw": {-1, 1},
}

// Move steps a bot one cell in the given direction, clamped to the
// world bounds. North decreases Y.
func (s *Service) Move(ctx context.Context, botID, direction string) (x, y int, err error) {
	d, ok := moves[strings.ToLower(direction)]
	if !ok {
		return 0, 0, ErrInvalidDirection
	}
	bot, err := s.store.BotByID(ctx, botID)
	if err != nil {
		return 0, 0, fmt.Errorf("bot: %w", err)
	}

	x = clamp(bot.X+d[0], 0, s.width-1)
	y = clamp(bot.Y+d[1], 0, s.height-1)
	now := s.now().UTC()
	if err := s.store.PatchBot(ctx, botID, store.BotPatch{X: &x, Y: &y, LastActive: &now}); err != nil {
		return 0, 0, fmt.Errorf("move: %w", err)
	}

	s.publish(protocol.FeedEvent{Type: protocol.EventBotMoved, BotID: bot.ID, BotName: bot.Name, X: x, Y: y})
	return x, y, nil
}

// Speak posts a message stamped with the speaker's current position.
func (s *Service) Speak(ctx context.Context, botID, text string) error {
	bot, err := s.store.BotByID(ctx, botID)
	if err != nil {
		return fmt.Errorf("bot: %w", err)
	}
	msg := store.Message{
		ID:        s.newID(),
		BotID:     bot.ID,
		Text:      text,
		X:         bot.X,
		Y:         bot.Y,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.InsertMessage(ctx, msg); err != nil {
		return fmt.Errorf("message: %w", err)
	}
	s.publish(protocol.FeedEvent{Type: protocol.EventSay, BotID: bot.ID, BotName: bot.Name, X: bot.X, Y: bot.Y, Message: text})
	return nil
}
