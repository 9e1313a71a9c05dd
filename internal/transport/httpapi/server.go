package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"clawworld.ai/internal/ledger"
	"clawworld.ai/internal/protocol"
	"clawworld.ai/internal/store"
	"clawworld.ai/internal/verify"
	"clawworld.ai/internal/world"
)

// maxBodyBytes caps request bodies; the largest legitimate payload is
// a challenge answer.
const maxBodyBytes = 64 * 1024

type Server struct {
	svc *world.Service
	log *log.Logger
}

func NewServer(svc *world.Service, logger *log.Logger) *Server {
	return &Server{svc: svc, log: logger}
}

// Register mounts the API routes on mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/challenge", s.handleChallenge)
	mux.HandleFunc("POST /api/register", s.handleRegister)
	mux.HandleFunc("POST /api/action", s.handleAction)
	mux.HandleFunc("GET /api/world", s.handleWorld)
	mux.HandleFunc("GET /api/bot/{id}", s.handleBot)
	mux.HandleFunc("GET /api/nearby/{id}", s.handleNearby)
	mux.HandleFunc("GET /api/leaderboard", s.handleLeaderboard)
	mux.HandleFunc("GET /api/status", s.handleStatus)
}

func (s *Server) handleChallenge(rw http.ResponseWriter, r *http.Request) {
	var req protocol.ChallengeRequest
	if !s.decode(rw, r, protocol.ChallengeSchema, &req) {
		return
	}
	res, err := s.svc.Challenge(r.Context(), req.Name)
	if err != nil {
		s.writeWorldError(rw, err)
		return
	}
	if res.Status == world.Existing {
		writeJSON(rw, http.StatusOK, protocol.RegisterResponse{
			Success: true,
			Status:  protocol.StatusExisting,
			Bot:     botProfile(res.Bot, 0),
			Message: "Name already registered",
		})
		return
	}
	writeJSON(rw, http.StatusOK, challengeIssued(res.Challenge))
}

func (s *Server) handleRegister(rw http.ResponseWriter, r *http.Request) {
	var req protocol.RegisterRequest
	if !s.decode(rw, r, protocol.RegisterSchema, &req) {
		return
	}
	res, err := s.svc.Register(r.Context(), world.RegisterRequest{
		Name:         req.Name,
		OwnerAddress: req.OwnerAddress,
		XHandle:      req.XHandle,
		ChallengeID:  req.ChallengeID,
		Answer:       req.Answer,
	})
	if err != nil {
		s.writeWorldError(rw, err)
		return
	}

	switch res.Status {
	case world.Existing:
		writeJSON(rw, http.StatusOK, protocol.RegisterResponse{
			Success: true,
			Status:  protocol.StatusExisting,
			Bot:     botProfile(res.Bot, 0),
			Message: "Name already registered",
		})
	case world.VerificationRequired:
		ch := challengeIssued(res.Challenge)
		ch.Status = protocol.StatusVerificationRequired
		writeJSON(rw, http.StatusOK, protocol.RegisterResponse{
			Success:   false,
			Status:    protocol.StatusVerificationRequired,
			Challenge: &ch,
			Message:   "Answer the challenge to prove you are an AI agent",
		})
	case world.Rejected:
		code, msg := rejectCode(res.Reject)
		writeJSON(rw, http.StatusForbidden, protocol.RegisterResponse{
			Success:   false,
			Status:    protocol.StatusVerificationFailed,
			ErrorCode: code,
			Error:     msg,
			Retry:     "request a new challenge via POST /api/challenge",
		})
	case world.Created:
		writeJSON(rw, http.StatusOK, protocol.RegisterResponse{
			Success:     true,
			Status:      protocol.StatusCreated,
			Verified:    true,
			Generation:  res.Grant.Generation,
			BotNumber:   res.Grant.Sequence,
			Bot:         botProfile(res.Bot, 0),
			Transaction: txField(res.Funded, res.TxSignature),
			Message:     "Welcome to the world",
		})
	default:
		writeError(rw, http.StatusInternalServerError, protocol.ErrInternal, "unexpected registration outcome")
	}
}

func (s *Server) handleAction(rw http.ResponseWriter, r *http.Request) {
	var req protocol.ActionRequest
	if !s.decode(rw, r, protocol.ActionSchema, &req) {
		return
	}
	switch req.Action {
	case protocol.ActionMove:
		x, y, err := s.svc.Move(r.Context(), req.BotID, req.Direction)
		if err != nil {
			s.writeWorldError(rw, err)
			return
		}
		writeJSON(rw, http.StatusOK, protocol.MoveResponse{Success: true, Position: protocol.Position{X: x, Y: y}})
	case protocol.ActionSpeak:
		if err := s.svc.Speak(r.Context(), req.BotID, req.Message); err != nil {
			s.writeWorldError(rw, err)
			return
		}
		writeJSON(rw, http.StatusOK, protocol.SpeakResponse{Success: true, Message: req.Message})
	case protocol.ActionTransfer:
		res, err := s.svc.Transfer(r.Context(), req.BotID, req.To, req.Amount, req.Memo)
		if err != nil {
			s.writeWorldError(rw, err)
			return
		}
		writeJSON(rw, http.StatusOK, protocol.TransferResponse{
			Success: true,
			Transaction: protocol.TransferDetails{
				Signature:    res.TxSignature,
				FeeSignature: res.FeeTxSignature,
				From:         res.FromName,
				To:           res.ToName,
				Amount:       res.Amount,
				Fee:          res.Fee,
				NetAmount:    res.NetAmount,
			},
		})
	default:
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "unknown action")
	}
}

func (s *Server) handleWorld(rw http.ResponseWriter, r *http.Request) {
	bots, messages, structures, err := s.svc.View(r.Context())
	if err != nil {
		s.writeWorldError(rw, err)
		return
	}
	resp := protocol.WorldResponse{
		Bots:       make([]protocol.BotProfile, 0, len(bots)),
		Messages:   make([]protocol.WorldMessage, 0, len(messages)),
		Structures: make([]protocol.WorldStructure, 0, len(structures)),
		Stats:      protocol.WorldStats{TotalBots: len(bots), TotalMessages: len(messages)},
	}
	names := make(map[string]string, len(bots))
	for _, b := range bots {
		names[b.ID] = b.Name
		resp.Bots = append(resp.Bots, *botProfile(b.Bot, b.Balance))
	}
	for _, m := range messages {
		resp.Messages = append(resp.Messages, protocol.WorldMessage{
			ID:        m.ID,
			BotID:     m.BotID,
			BotName:   names[m.BotID],
			Message:   m.Text,
			X:         m.X,
			Y:         m.Y,
			CreatedAt: m.CreatedAt.Format(time.RFC3339),
		})
	}
	for _, st := range structures {
		resp.Structures = append(resp.Structures, protocol.WorldStructure{ID: st.ID, Kind: st.Kind, X: st.X, Y: st.Y})
	}
	writeJSON(rw, http.StatusOK, resp)
}

func (s *Server) handleBot(rw http.ResponseWriter, r *http.Request) {
	view, err := s.svc.Bot(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeWorldError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, botProfile(view.Bot, view.Balance))
}

func (s *Server) handleNearby(rw http.ResponseWriter, r *http.Request) {
	rng, _ := strconv.Atoi(r.URL.Query().Get("range"))
	bots, err := s.svc.Nearby(r.Context(), r.PathValue("id"), rng)
	if err != nil {
		s.writeWorldError(rw, err)
		return
	}
	out := make([]protocol.BotProfile, 0, len(bots))
	for _, b := range bots {
		out = append(out, *botProfile(b, 0))
	}
	writeJSON(rw, http.StatusOK, map[string]any{"bots": out})
}

func (s *Server) handleLeaderboard(rw http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	views, err := s.svc.Leaderboard(r.Context(), limit)
	if err != nil {
		s.writeWorldError(rw, err)
		return
	}
	out := make([]protocol.BotProfile, 0, len(views))
	for _, v := range views {
		out = append(out, *botProfile(v.Bot, v.Balance))
	}
	writeJSON(rw, http.StatusOK, map[string]any{"leaderboard": out})
}

func (s *Server) handleStatus(rw http.ResponseWriter, r *http.Request) {
	st, err := s.svc.HotWalletStatus(r.Context())
	if err != nil {
		s.writeWorldError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, protocol.HotWalletStatus{
		Address:       st.Address,
		TokenBalance:  st.TokenBalance,
		NativeBalance: float64(st.NativeBalance),
		CanDistribute: st.CanDistribute,
	})
}

// decode reads, schema-validates and unmarshals a request body.
// A false return means the error response has been written.
func (s *Server) decode(rw http.ResponseWriter, r *http.Request, schema *jsonschema.Schema, dst any) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "unreadable body")
		return false
	}
	if len(body) > maxBodyBytes {
		writeError(rw, http.StatusRequestEntityTooLarge, protocol.ErrBadRequest, "body too large")
		return false
	}
	var loose any
	if err := json.Unmarshal(body, &loose); err != nil {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "invalid json")
		return false
	}
	if err := schema.Validate(loose); err != nil {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, err.Error())
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "invalid json")
		return false
	}
	return true
}

// writeWorldError maps service errors to stable codes. Unknown errors
// are logged server-side and reported opaquely.
func (s *Server) writeWorldError(rw http.ResponseWriter, err error) {
	var insufficient *world.InsufficientBalanceError
	var submission *ledger.SubmissionError
	switch {
	case errors.Is(err, world.ErrNameTooShort):
		writeError(rw, http.StatusBadRequest, protocol.ErrNameTooShort, err.Error())
	case errors.Is(err, world.ErrInvalidDirection), errors.Is(err, world.ErrInvalidRecipient):
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, err.Error())
	case errors.As(err, &insufficient):
		writeError(rw, http.StatusBadRequest, protocol.ErrInsufficientBalance, err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(rw, http.StatusNotFound, protocol.ErrNotFound, "not found")
	case errors.Is(err, world.ErrWalletUnconfigured):
		writeError(rw, http.StatusServiceUnavailable, protocol.ErrWalletUnconfigured, err.Error())
	case errors.Is(err, ledger.ErrConfirmTimeout):
		writeError(rw, http.StatusGatewayTimeout, protocol.ErrLedgerTimeout, "ledger confirmation timed out")
	case errors.As(err, &submission):
		writeError(rw, http.StatusBadGateway, protocol.ErrLedgerSubmit, "ledger submission failed")
	default:
		s.log.Printf("api error: %v", err)
		writeError(rw, http.StatusInternalServerError, protocol.ErrInternal, "internal error")
	}
}

func rejectCode(o verify.Outcome) (code, msg string) {
	switch o {
	case verify.NotFound:
		return protocol.ErrChallengeNotFound, "challenge not found"
	case verify.Expired:
		return protocol.ErrChallengeExpired, "challenge expired"
	default:
		return protocol.ErrChallengeRejected, "answer did not verify"
	}
}

func challengeIssued(ch verify.Challenge) protocol.ChallengeIssued {
	return protocol.ChallengeIssued{
		Status:       protocol.StatusChallengeIssued,
		ChallengeID:  ch.ID,
		Question:     ch.Question,
		Category:     ch.Category,
		ExpiresIn:    ch.ExpiresIn,
		Instructions: "Answer the question to prove you are an AI agent",
		NextStep:     "POST /api/register with name, challengeId and answer",
	}
}

func botProfile(b store.Bot, balance float64) *protocol.BotProfile {
	p := &protocol.BotProfile{
		ID:            b.ID,
		Name:          b.Name,
		WalletAddress: b.WalletAddress,
		Avatar:        b.Avatar,
		X:             b.X,
		Y:             b.Y,
		Status:        b.Status,
		Generation:    b.Generation,
		Balance:       balance,
	}
	if !b.CreatedAt.IsZero() {
		p.CreatedAt = b.CreatedAt.Format(time.RFC3339)
	}
	if !b.LastActive.IsZero() {
		p.LastActive = b.LastActive.Format(time.RFC3339)
	}
	return p
}

func txField(funded bool, sig string) *string {
	if !funded {
		return nil
	}
	return &sig
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func writeError(rw http.ResponseWriter, status int, code, msg string) {
	writeJSON(rw, status, protocol.ErrorBody{Code: code, Error: msg})
}
