package world

import (
	"context"
	"errors"
	"testing"

	"clawworld.ai/internal/economy"
	"clawworld.ai/internal/protocol"
	"clawworld.ai/internal/store"
	"clawworld.ai/internal/wallet"
)

// cancelOnConfirm cancels the request context the moment a ledger
// submission confirms, standing in for a caller that disconnects
// while the node finalizes.
type cancelOnConfirm struct {
	*fakeLedger
	cancel context.CancelFunc
}

func (l *cancelOnConfirm) Transfer(ctx context.Context, from wallet.Keypair, to string, amount uint64) (string, error) {
	sig, err := l.fakeLedger.Transfer(ctx, from, to, amount)
	l.cancel()
	return sig, err
}

// ctxStrictStore refuses operations on a dead context, matching the
// sqlite backend's ExecContext behavior.
type ctxStrictStore struct {
	*store.Memory
}

func (s ctxStrictStore) BotByWallet(ctx context.Context, address string) (store.Bot, error) {
	if err := ctx.Err(); err != nil {
		return store.Bot{}, err
	}
	return s.Memory.BotByWallet(ctx, address)
}

func (s ctxStrictStore) InsertTransfer(ctx context.Context, rec store.TransferRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.Memory.InsertTransfer(ctx, rec)
}

func TestTransfer_RecordSurvivesCallerDisconnect(t *testing.T) {
	f := newFixture(t)
	sender := f.registerVerified(t, "Sender")
	recipient := f.registerVerified(t, "Recipient")
	f.ledger.balances[sender.Bot.WalletAddress] = 1000 * economy.UnitsPerToken

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.svc.ledger = &cancelOnConfirm{fakeLedger: f.ledger, cancel: cancel}
	f.svc.store = ctxStrictStore{f.store}

	res, err := f.svc.Transfer(ctx, sender.Bot.ID, recipient.Bot.WalletAddress, 400, "")
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if ctx.Err() == nil {
		t.Fatalf("request context still alive, fixture did not disconnect")
	}

	// The confirmed transfer must leave a record even though the
	// caller's context died while the node confirmed.
	recs, err := f.store.ListTransfersByBot(context.Background(), sender.Bot.ID, 10)
	if err != nil {
		t.Fatalf("records: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("records = %d, want 1", len(recs))
	}
	if recs[0].TxSignature != res.TxSignature {
		t.Fatalf("record signature = %q, want %q", recs[0].TxSignature, res.TxSignature)
	}
	if recs[0].ToBotID != recipient.Bot.ID {
		t.Fatalf("record counterparty = %q, want %q", recs[0].ToBotID, recipient.Bot.ID)
	}
}

func TestTransfer_FeeSplitScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sender := f.registerVerified(t, "Sender")
	recipient := f.registerVerified(t, "Recipient")

	// Balance 1000 tokens, transfer 400: fee 10, net 390.
	f.ledger.balances[sender.Bot.WalletAddress] = 1000 * economy.UnitsPerToken

	res, err := f.svc.Transfer(ctx, sender.Bot.ID, recipient.Bot.WalletAddress, 400, "for the map")
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if res.Fee != 10 || res.NetAmount != 390 {
		t.Fatalf("fee split = (%d, %d), want (10, 390)", res.Fee, res.NetAmount)
	}
	if res.FromName != "Sender" || res.ToName != "Recipient" {
		t.Fatalf("names = (%q, %q)", res.FromName, res.ToName)
	}
	if res.TxSignature == "" || res.FeeTxSignature == nil {
		t.Fatalf("signatures = (%q, %v)", res.TxSignature, res.FeeTxSignature)
	}

	// Two ledger operations after funding: net to recipient, fee to treasury.
	var toRecipient, toTreasury *fakeTransfer
	for i := range f.ledger.transfers {
		tr := &f.ledger.transfers[i]
		switch tr.To {
		case recipient.Bot.WalletAddress:
			if tr.From == sender.Bot.WalletAddress {
				toRecipient = tr
			}
		case "treasury-addr":
			toTreasury = tr
		}
	}
	if toRecipient == nil || toRecipient.Amount != 390*economy.UnitsPerToken {
		t.Fatalf("net transfer = %+v", toRecipient)
	}
	if toTreasury == nil || toTreasury.Amount != 10*economy.UnitsPerToken {
		t.Fatalf("fee sweep = %+v", toTreasury)
	}

	// Record written with resolved counterparty.
	recs, err := f.store.ListTransfersByBot(ctx, sender.Bot.ID, 10)
	if err != nil {
		t.Fatalf("records: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("records = %d, want 1", len(recs))
	}
	rec := recs[0]
	if rec.Amount != 400 || rec.Fee != 10 || rec.ToBotID != recipient.Bot.ID || rec.Memo != "for the map" {
		t.Fatalf("record = %+v", rec)
	}
	if rec.FeeTxSignature == nil {
		t.Fatalf("record fee signature lost")
	}

	if got := f.events.byType(protocol.EventTransfer); len(got) != 1 {
		t.Fatalf("transfer events = %d, want 1", len(got))
	}
}

func TestTransfer_InsufficientBalanceNoLedgerCall(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sender := f.registerVerified(t, "Sender")
	recipient := f.registerVerified(t, "Recipient")

	f.ledger.balances[sender.Bot.WalletAddress] = 100 * economy.UnitsPerToken
	before := f.ledger.transferCount()

	_, err := f.svc.Transfer(ctx, sender.Bot.ID, recipient.Bot.WalletAddress, 400, "")
	var insufficient *InsufficientBalanceError
	if !errors.As(err, &insufficient) {
		t.Fatalf("err = %v, want InsufficientBalanceError", err)
	}
	if insufficient.Have != 100 || insufficient.Need != 400 {
		t.Fatalf("error detail = %+v", insufficient)
	}
	if f.ledger.transferCount() != before {
		t.Fatalf("ledger called despite failed pre-check")
	}
	if recs, _ := f.store.ListTransfersByBot(ctx, sender.Bot.ID, 10); len(recs) != 0 {
		t.Fatalf("record written for failed transfer")
	}
}

func TestTransfer_NetFailureWritesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sender := f.registerVerified(t, "Sender")
	recipient := f.registerVerified(t, "Recipient")

	f.ledger.balances[sender.Bot.WalletAddress] = 1000 * economy.UnitsPerToken
	f.ledger.failTo[recipient.Bot.WalletAddress] = true

	_, err := f.svc.Transfer(ctx, sender.Bot.ID, recipient.Bot.WalletAddress, 400, "")
	if err == nil {
		t.Fatalf("expected ledger failure surfaced")
	}
	if recs, _ := f.store.ListTransfersByBot(ctx, sender.Bot.ID, 10); len(recs) != 0 {
		t.Fatalf("record written after failed net transfer")
	}
	if got := f.events.byType(protocol.EventTransfer); len(got) != 0 {
		t.Fatalf("event published for failed transfer")
	}
}

func TestTransfer_FeeSweepFailureIsPartialSuccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sender := f.registerVerified(t, "Sender")
	recipient := f.registerVerified(t, "Recipient")

	f.ledger.balances[sender.Bot.WalletAddress] = 1000 * economy.UnitsPerToken
	f.ledger.failTo["treasury-addr"] = true

	res, err := f.svc.Transfer(ctx, sender.Bot.ID, recipient.Bot.WalletAddress, 400, "")
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if res.TxSignature == "" {
		t.Fatalf("net transfer signature missing")
	}
	if res.FeeTxSignature != nil {
		t.Fatalf("fee signature = %v, want nil after sweep failure", res.FeeTxSignature)
	}

	recs, err := f.store.ListTransfersByBot(ctx, sender.Bot.ID, 10)
	if err != nil || len(recs) != 1 {
		t.Fatalf("records = (%v, %v), want 1", recs, err)
	}
	if recs[0].FeeTxSignature != nil {
		t.Fatalf("record fee signature = %v, want nil", recs[0].FeeTxSignature)
	}
}

func TestTransfer_TinyAmountNoFee(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sender := f.registerVerified(t, "Sender")
	recipient := f.registerVerified(t, "Recipient")

	f.ledger.balances[sender.Bot.WalletAddress] = 1000 * economy.UnitsPerToken
	before := f.ledger.transferCount()

	// 2.5% of 39 floors to zero; no sweep should be submitted.
	res, err := f.svc.Transfer(ctx, sender.Bot.ID, recipient.Bot.WalletAddress, 39, "")
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if res.Fee != 0 || res.NetAmount != 39 {
		t.Fatalf("fee split = (%d, %d), want (0, 39)", res.Fee, res.NetAmount)
	}
	if res.FeeTxSignature != nil {
		t.Fatalf("unexpected fee signature for zero fee")
	}
	if f.ledger.transferCount() != before+1 {
		t.Fatalf("ledger calls = %d, want exactly one", f.ledger.transferCount()-before)
	}
}

func TestTransfer_UnknownRecipientKeepsAddress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sender := f.registerVerified(t, "Sender")
	f.ledger.balances[sender.Bot.WalletAddress] = 1000 * economy.UnitsPerToken

	outside := mustWalletAddress(t)
	res, err := f.svc.Transfer(ctx, sender.Bot.ID, outside, 400, "")
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if res.ToName != outside {
		t.Fatalf("toName = %q, want raw address", res.ToName)
	}
	recs, _ := f.store.ListTransfersByBot(ctx, sender.Bot.ID, 10)
	if len(recs) != 1 || recs[0].ToBotID != "" {
		t.Fatalf("record = %+v, want empty to_bot_id", recs)
	}
}

func TestTransfer_InvalidRecipientAddress(t *testing.T) {
	f := newFixture(t)
	sender := f.registerVerified(t, "Sender")
	if _, err := f.svc.Transfer(context.Background(), sender.Bot.ID, "not-an-address!!", 10, ""); !errors.Is(err, ErrInvalidRecipient) {
		t.Fatalf("err = %v, want ErrInvalidRecipient", err)
	}
}
