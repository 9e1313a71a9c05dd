package log

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
)

func TestAuditLoggerRoundTrip(t *testing.T) {
	dir := t.TempDir()
	l := NewAuditLogger(dir)

	entries := []AuditEntry{
		{At: "2026-08-30T12:00:00Z", Kind: KindRegistered, BotID: "b1", Name: "Scout", Generation: "Gen 0 - Capital", Sequence: 1},
		{At: "2026-08-30T12:00:01Z", Kind: KindFunded, BotID: "b1", ToWallet: "w1", Amount: 500, TxSignature: "sig-1"},
		{At: "2026-08-30T12:00:02Z", Kind: KindTransfer, BotID: "b1", ToWallet: "w2", Amount: 400, Fee: 10, TxSignature: "sig-2"},
	}
	for _, e := range entries {
		if err := l.WriteAudit(e); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := filepath.Glob(filepath.Join(dir, "audit", "audit-*.jsonl.zst"))
	if err != nil || len(files) != 1 {
		t.Fatalf("audit files = %v (%v)", files, err)
	}

	f, err := os.Open(files[0])
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("zstd: %v", err)
	}
	defer dec.Close()

	var got []AuditEntry
	sc := bufio.NewScanner(dec)
	for sc.Scan() {
		var e AuditEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		got = append(got, e)
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(got) != len(entries) {
		t.Fatalf("entries = %d, want %d", len(got), len(entries))
	}
	if got[1].Kind != KindFunded || got[1].TxSignature != "sig-1" {
		t.Fatalf("entry mismatch: %+v", got[1])
	}
}
