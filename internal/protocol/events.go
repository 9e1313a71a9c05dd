package protocol

// Feed event types (server -> observer, /v1/feed).
const (
	EventBotSpawned = "BOT_SPAWNED"
	EventBotMoved   = "BOT_MOVED"
	EventSay        = "SAY"
	EventTransfer   = "TRANSFER"
)

type FeedEvent struct {
	Type    string `json:"type"`
	BotID   string `json:"bot_id,omitempty"`
	BotName string `json:"bot_name,omitempty"`

	X int `json:"x,omitempty"`
	Y int `json:"y,omitempty"`

	Message string `json:"message,omitempty"`

	To        string `json:"to,omitempty"`
	Amount    uint64 `json:"amount,omitempty"`
	Fee       uint64 `json:"fee,omitempty"`
	Signature string `json:"signature,omitempty"`

	Generation string `json:"generation,omitempty"`

	At string `json:"at,omitempty"`
}
