package protocol

// Registration flow statuses.
const (
	StatusExisting             = "existing"
	StatusChallengeIssued      = "challenge_issued"
	StatusVerificationRequired = "verification_required"
	StatusVerificationFailed   = "verification_failed"
	StatusCreated              = "created"
)

// POST /api/challenge (client -> server)
type ChallengeRequest struct {
	Name string `json:"name"`
}

type ChallengeIssued struct {
	Status       string `json:"status"`
	ChallengeID  string `json:"challengeId"`
	Question     string `json:"question"`
	Category     string `json:"type"`
	ExpiresIn    int    `json:"expiresIn"`
	Instructions string `json:"instructions,omitempty"`
	NextStep     string `json:"nextStep,omitempty"`
}

// POST /api/register (client -> server)
type RegisterRequest struct {
	Name         string `json:"name"`
	OwnerAddress string `json:"ownerAddress,omitempty"`
	XHandle      string `json:"xHandle,omitempty"`
	ChallengeID  string `json:"challengeId,omitempty"`
	Answer       string `json:"answer,omitempty"`
}

type RegisterResponse struct {
	Success    bool        `json:"success"`
	Status     string      `json:"status"`
	Verified   bool        `json:"verified,omitempty"`
	Generation string      `json:"generation,omitempty"`
	BotNumber  int         `json:"botNumber,omitempty"`
	Bot        *BotProfile `json:"bot,omitempty"`
	// Nil when the agent was persisted but funding did not happen.
	Transaction *string `json:"transaction"`
	Message     string  `json:"message,omitempty"`

	// Set when a new challenge was issued instead of a registration.
	Challenge *ChallengeIssued `json:"challenge,omitempty"`

	ErrorCode string `json:"code,omitempty"`
	Error     string `json:"error,omitempty"`
	Retry     string `json:"retry,omitempty"`
}

// POST /api/action (client -> server)
type ActionRequest struct {
	BotID  string `json:"botId"`
	Action string `json:"action"`

	// move
	Direction string `json:"direction,omitempty"`
	// speak
	Message string `json:"message,omitempty"`
	// transfer
	To     string `json:"to,omitempty"`
	Amount uint64 `json:"amount,omitempty"`
	Memo   string `json:"memo,omitempty"`
}

const (
	ActionMove     = "move"
	ActionSpeak    = "speak"
	ActionTransfer = "transfer"
)

type MoveResponse struct {
	Success  bool     `json:"success"`
	Position Position `json:"position"`
}

type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type SpeakResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type TransferResponse struct {
	Success     bool            `json:"success"`
	Transaction TransferDetails `json:"transaction"`
}

type TransferDetails struct {
	Signature    string  `json:"signature"`
	FeeSignature *string `json:"feeSignature"`
	From         string  `json:"from"`
	To           string  `json:"to"`
	Amount       uint64  `json:"amount"`
	Fee          uint64  `json:"fee"`
	NetAmount    uint64  `json:"netAmount"`
}

// GET /api/bot/:id, embedded in world/leaderboard views.
type BotProfile struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	WalletAddress string  `json:"wallet_address"`
	Avatar        string  `json:"avatar,omitempty"`
	X             int     `json:"x"`
	Y             int     `json:"y"`
	Status        string  `json:"status,omitempty"`
	Generation    string  `json:"generation,omitempty"`
	Balance       float64 `json:"balance"`
	CreatedAt     string  `json:"created_at,omitempty"`
	LastActive    string  `json:"last_active,omitempty"`
}

type WorldMessage struct {
	ID        string `json:"id"`
	BotID     string `json:"bot_id"`
	BotName   string `json:"bot_name,omitempty"`
	Message   string `json:"message"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
	CreatedAt string `json:"created_at,omitempty"`
}

type WorldStructure struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
	X    int    `json:"x"`
	Y    int    `json:"y"`
}

type WorldResponse struct {
	Bots       []BotProfile     `json:"bots"`
	Messages   []WorldMessage   `json:"messages"`
	Structures []WorldStructure `json:"structures"`
	Stats      WorldStats       `json:"stats"`
}

type WorldStats struct {
	TotalBots     int `json:"totalBots"`
	TotalMessages int `json:"totalMessages"`
}

// GET /api/status
type HotWalletStatus struct {
	Address       string  `json:"address"`
	TokenBalance  float64 `json:"tokenBalance"`
	NativeBalance float64 `json:"nativeBalance"`
	CanDistribute bool    `json:"canDistribute"`
}

// ErrorBody is the uniform error envelope. Code is stable; Error is
// human-readable; Retry names the actionable next step when there is one.
type ErrorBody struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Error   string `json:"error"`
	Retry   string `json:"retry,omitempty"`
}
