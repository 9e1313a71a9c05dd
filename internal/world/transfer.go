package world

import (
	"context"
	"fmt"

	"clawworld.ai/internal/economy"
	persistlog "clawworld.ai/internal/persistence/log"
	"clawworld.ai/internal/protocol"
	"clawworld.ai/internal/store"
	"clawworld.ai/internal/wallet"
)

// TransferResult reports a completed agent-to-agent transfer. Amounts
// are whole tokens. FeeTxSignature is nil when the fee sweep failed —
// an explicit partial-failure outcome, not an error.
type TransferResult struct {
	TxSignature    string
	FeeTxSignature *string
	FromName       string
	ToName         string // recipient wallet address when not a known agent
	Amount         uint64
	Fee            uint64
	NetAmount      uint64
}

// Transfer moves tokens from an agent's custodial wallet to any
// address. The balance pre-check is advisory: the ledger remains the
// final arbiter, and a ledger rejection of the net transfer fails the
// whole operation with no record written. The transfer record is
// persisted only after the net transfer has confirmed.
func (s *Service) Transfer(ctx context.Context, fromBotID, toAddress string, amount uint64, memo string) (TransferResult, error) {
	if !wallet.ValidAddress(toAddress) {
		return TransferResult{}, ErrInvalidRecipient
	}

	sender, err := s.store.BotByID(ctx, fromBotID)
	if err != nil {
		return TransferResult{}, fmt.Errorf("sender: %w", err)
	}
	sealed, err := s.store.BotSecret(ctx, fromBotID)
	if err != nil {
		return TransferResult{}, fmt.Errorf("sender secret: %w", err)
	}

	balanceUnits, err := s.ledger.TokenBalance(ctx, sender.WalletAddress)
	if err != nil {
		return TransferResult{}, fmt.Errorf("balance: %w", err)
	}
	balance := balanceUnits / economy.UnitsPerToken
	if balance < amount {
		return TransferResult{}, &InsufficientBalanceError{Have: balance, Need: amount}
	}

	fee, net := economy.SplitFee(amount, s.feeBps)

	secret, err := s.sealer.Unseal(sealed, sender.WalletAddress)
	if err != nil {
		return TransferResult{}, fmt.Errorf("unseal sender secret: %w", err)
	}
	kp, err := wallet.FromSecret(secret)
	if err != nil {
		return TransferResult{}, fmt.Errorf("sender keypair: %w", err)
	}

	// Ledger work is detached from the request context: once we start
	// submitting, the operation runs to a defined terminal state even
	// if the caller is gone.
	lctx, cancel := context.WithTimeout(context.Background(), s.ledgerTimeout)
	defer cancel()

	txSig, err := s.ledger.Transfer(lctx, kp, toAddress, net*economy.UnitsPerToken)
	if err != nil {
		return TransferResult{}, err
	}

	// Fee sweep is a secondary, best-effort side payment; its failure
	// never rolls back the net transfer.
	var feeSig *string
	if fee > 0 && s.treasury != "" {
		if sig, err := s.ledger.Transfer(lctx, kp, s.treasury, fee*economy.UnitsPerToken); err != nil {
			s.log.Printf("fee sweep for %s (fee %d): %v", sender.ID, fee, err)
		} else {
			feeSig = &sig
		}
	}

	// From here on the transfer is durable on the ledger; the record
	// work stays on the detached context so a departed caller cannot
	// cancel it.
	toName := toAddress
	toBotID := ""
	if recipient, err := s.store.BotByWallet(lctx, toAddress); err == nil {
		toName = recipient.Name
		toBotID = recipient.ID
	}

	rec := store.TransferRecord{
		ID:             s.newID(),
		FromBotID:      sender.ID,
		ToBotID:        toBotID,
		ToWallet:       toAddress,
		Amount:         amount,
		Fee:            fee,
		Memo:           memo,
		TxSignature:    txSig,
		FeeTxSignature: feeSig,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.store.InsertTransfer(lctx, rec); err != nil {
		// The ledger operation is durable; losing the record is a
		// store fault worth surfacing loudly, but the transfer stands.
		s.log.Printf("record transfer %s: %v", txSig, err)
	}

	entry := persistlog.AuditEntry{
		Kind:        persistlog.KindTransfer,
		BotID:       sender.ID,
		Name:        sender.Name,
		ToWallet:    toAddress,
		Amount:      amount,
		Fee:         fee,
		TxSignature: txSig,
	}
	if feeSig != nil {
		entry.FeeSignature = *feeSig
	}
	s.writeAudit(entry)
	s.publish(protocol.FeedEvent{
		Type:      protocol.EventTransfer,
		BotID:     sender.ID,
		BotName:   sender.Name,
		To:        toName,
		Amount:    amount,
		Fee:       fee,
		Signature: txSig,
	})

	return TransferResult{
		TxSignature:    txSig,
		FeeTxSignature: feeSig,
		FromName:       sender.Name,
		ToName:         toName,
		Amount:         amount,
		Fee:            fee,
		NetAmount:      net,
	}, nil
}
