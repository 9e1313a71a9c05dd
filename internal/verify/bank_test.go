package verify

import (
	"fmt"
	"testing"
	"time"
)

func fixedBank(now *time.Time, ttl time.Duration) *Bank {
	ids := 0
	return NewBank(BankConfig{
		TTL: ttl,
		Now: func() time.Time { return *now },
		NewID: func() (string, error) {
			ids++
			return fmt.Sprintf("ch-%d", ids), nil
		},
		Pick: func(int) int { return 0 }, // always reasoning / north-move
	})
}

func TestIssueAndVerify_NorthMoveScenario(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	b := fixedBank(&now, 300*time.Second)

	ch, err := b.Issue("scout-7")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if ch.Category != CategoryReasoning {
		t.Fatalf("category = %q, want %q", ch.Category, CategoryReasoning)
	}
	if ch.ExpiresIn != 300 {
		t.Fatalf("expiresIn = %d, want 300", ch.ExpiresIn)
	}

	answer := "47, because north increases Y by 3 to 53 then... wait, north decreases Y: 50-3=47"
	if got := b.Verify(ch.ID, answer); got != Valid {
		t.Fatalf("verify = %v, want Valid", got)
	}
}

func TestVerify_SingleUse(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	b := fixedBank(&now, 300*time.Second)

	ch, err := b.Issue("scout-7")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	answer := "The final Y is 47: moving north decreases Y from 50 by 3."
	if got := b.Verify(ch.ID, answer); got != Valid {
		t.Fatalf("first verify = %v, want Valid", got)
	}
	if got := b.Verify(ch.ID, answer); got != NotFound {
		t.Fatalf("second verify = %v, want NotFound", got)
	}
}

func TestVerify_UnknownID(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	b := fixedBank(&now, 300*time.Second)
	if got := b.Verify("no-such-id", "47 and some reasoning text"); got != NotFound {
		t.Fatalf("verify = %v, want NotFound", got)
	}
}

func TestVerify_ExpiredRegardlessOfCorrectness(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	b := fixedBank(&now, 300*time.Second)

	ch, err := b.Issue("scout-7")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	now = now.Add(301 * time.Second)
	answer := "The final Y is 47: moving north decreases Y from 50 by 3."
	if got := b.Verify(ch.ID, answer); got != Expired {
		t.Fatalf("verify = %v, want Expired", got)
	}
	// Expiry deleted the entry.
	if got := b.Verify(ch.ID, answer); got != NotFound {
		t.Fatalf("verify after expiry = %v, want NotFound", got)
	}
}

func TestVerify_RejectedAnswerIsRetriable(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	b := fixedBank(&now, 300*time.Second)

	ch, err := b.Issue("scout-7")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if got := b.Verify(ch.ID, "42"); got != Rejected {
		t.Fatalf("verify = %v, want Rejected", got)
	}
	// A rejection does not consume the challenge.
	answer := "The final Y is 47: moving north decreases Y from 50 by 3."
	if got := b.Verify(ch.ID, answer); got != Valid {
		t.Fatalf("verify after rejection = %v, want Valid", got)
	}
}

func TestIssue_PurgesExpiredEntries(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	b := fixedBank(&now, 300*time.Second)

	if _, err := b.Issue("a"); err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := b.Issue("b"); err != nil {
		t.Fatalf("issue: %v", err)
	}
	if got := b.Pending(); got != 2 {
		t.Fatalf("pending = %d, want 2", got)
	}

	now = now.Add(301 * time.Second)
	if _, err := b.Issue("c"); err != nil {
		t.Fatalf("issue: %v", err)
	}
	if got := b.Pending(); got != 1 {
		t.Fatalf("pending after purge = %d, want 1", got)
	}
}

func TestVerify_PanickingRuleFailsClosed(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	b := NewBank(BankConfig{
		TTL:   300 * time.Second,
		Now:   func() time.Time { return now },
		NewID: func() (string, error) { return "ch-1", nil },
		Pick:  func(int) int { return 0 },
		Categories: []Category{{
			Name: "boom",
			Variants: []Variant{{
				Template: "q",
				Check:    func(string, Context) bool { panic("rule bug") },
			}},
		}},
	})

	ch, err := b.Issue("scout-7")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if got := b.Verify(ch.ID, "anything"); got != Rejected {
		t.Fatalf("verify = %v, want Rejected", got)
	}
}

func TestIssue_DistinctIDs(t *testing.T) {
	b := NewBank(BankConfig{TTL: 300 * time.Second})
	seen := map[string]bool{}
	for i := 0; i < 64; i++ {
		ch, err := b.Issue("scout-7")
		if err != nil {
			t.Fatalf("issue: %v", err)
		}
		if len(ch.ID) != 32 {
			t.Fatalf("id length = %d, want 32 hex chars", len(ch.ID))
		}
		if seen[ch.ID] {
			t.Fatalf("duplicate challenge id: %s", ch.ID)
		}
		seen[ch.ID] = true
	}
}
