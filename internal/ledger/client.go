package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/mr-tron/base58"

	"clawworld.ai/internal/wallet"
)

// RPC error code a node returns for an address with no holding
// account for the mint.
const rpcCodeNoAccount = -32009

type ClientConfig struct {
	Endpoint string
	Mint     string
	Logger   *log.Logger

	ConfirmTimeout time.Duration
	PollInterval   time.Duration
}

// Client talks JSON-RPC 2.0 to a ledger node. Submission is opaque:
// sign, submit, poll for confirmation.
type Client struct {
	endpoint string
	mint     string
	log      *log.Logger

	confirmTimeout time.Duration
	pollInterval   time.Duration

	httpClient *http.Client
}

func NewClient(cfg ClientConfig) (*Client, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	mint := strings.TrimSpace(cfg.Mint)
	if endpoint == "" || mint == "" {
		return nil, fmt.Errorf("endpoint and mint are required")
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		return nil, fmt.Errorf("invalid endpoint: %s", endpoint)
	}
	c := &Client{
		endpoint:       strings.TrimRight(endpoint, "/"),
		mint:           mint,
		log:            cfg.Logger,
		confirmTimeout: cfg.ConfirmTimeout,
		pollInterval:   cfg.PollInterval,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	if c.log == nil {
		c.log = log.Default()
	}
	if c.confirmTimeout <= 0 {
		c.confirmTimeout = 90 * time.Second
	}
	if c.pollInterval <= 0 {
		c.pollInterval = 2 * time.Second
	}
	return c, nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc %d: %s", e.Code, e.Message)
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, params, out any) error {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("http %d", resp.StatusCode)
	}

	var r rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if r.Error != nil {
		return r.Error
	}
	if out != nil {
		if err := json.Unmarshal(r.Result, out); err != nil {
			return fmt.Errorf("decode result: %w", err)
		}
	}
	return nil
}

func (c *Client) TokenBalance(ctx context.Context, owner string) (uint64, error) {
	var res struct {
		Amount uint64 `json:"amount"`
	}
	err := c.call(ctx, "getTokenBalance", map[string]any{"owner": owner, "mint": c.mint}, &res)
	if err != nil {
		// Missing holding accounts and transient faults both read as
		// zero; the fault is logged, the caller sees a balance.
		if rpcErr, ok := err.(*rpcError); !ok || rpcErr.Code != rpcCodeNoAccount {
			c.log.Printf("ledger: balance lookup %s: %v", owner, err)
		}
		return 0, nil
	}
	return res.Amount, nil
}

func (c *Client) NativeBalance(ctx context.Context, owner string) (uint64, error) {
	var res struct {
		Amount uint64 `json:"amount"`
	}
	if err := c.call(ctx, "getBalance", map[string]any{"owner": owner}, &res); err != nil {
		return 0, fmt.Errorf("native balance %s: %w", owner, err)
	}
	return res.Amount, nil
}

func (c *Client) Transfer(ctx context.Context, from wallet.Keypair, to string, amount uint64) (string, error) {
	// Holding accounts for both parties; creation is idempotent and
	// the sender pays for it even when the transfer later fails.
	for _, owner := range []string{from.Address(), to} {
		params := map[string]any{"owner": owner, "mint": c.mint, "payer": from.Address()}
		if err := c.call(ctx, "ensureTokenAccount", params, nil); err != nil {
			return "", &SubmissionError{Method: "ensureTokenAccount", Err: err}
		}
	}

	payload := map[string]any{
		"from":   from.Address(),
		"to":     to,
		"mint":   c.mint,
		"amount": amount,
		"nonce":  time.Now().UnixNano(),
	}
	msg, err := json.Marshal(payload)
	if err != nil {
		return "", &SubmissionError{Method: "submitTransfer", Err: err}
	}

	var submitted struct {
		Signature string `json:"signature"`
	}
	err = c.call(ctx, "submitTransfer", map[string]any{
		"payload":   payload,
		"signer":    from.Address(),
		"signature": base58.Encode(from.Sign(msg)),
	}, &submitted)
	if err != nil {
		return "", &SubmissionError{Method: "submitTransfer", Err: err}
	}
	if submitted.Signature == "" {
		return "", &SubmissionError{Method: "submitTransfer", Err: fmt.Errorf("node returned empty signature")}
	}

	if err := c.awaitConfirmation(ctx, submitted.Signature); err != nil {
		return "", err
	}
	return submitted.Signature, nil
}

func (c *Client) awaitConfirmation(ctx context.Context, sig string) error {
	deadline := time.Now().Add(c.confirmTimeout)
	for {
		var res struct {
			Status string `json:"status"`
		}
		err := c.call(ctx, "getSignatureStatus", map[string]any{"signature": sig}, &res)
		switch {
		case err != nil:
			c.log.Printf("ledger: status poll %s: %v", sig, err)
		case res.Status == "confirmed" || res.Status == "finalized":
			return nil
		case res.Status == "failed":
			return &SubmissionError{Method: "getSignatureStatus", Err: fmt.Errorf("transaction failed on ledger")}
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("signature %s: %w", sig, ErrConfirmTimeout)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("signature %s: %w", sig, ErrConfirmTimeout)
		case <-time.After(c.pollInterval):
		}
	}
}
