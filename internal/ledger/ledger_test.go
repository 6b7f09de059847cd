package ledger

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/dokzlo13/hueshim/internal/db"
)

func testLedger(t *testing.T) *Ledger {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "test.sqlite"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return New(database.DB)
}

func TestAppendAndRecent(t *testing.T) {
	l := testLedger(t)

	if err := l.Append("light.kitchen", "1", "apiv1", ServiceTurnOn, map[string]any{"brightness": 200}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := l.Append("light.bedroom", "2", "apiv1", ServiceTurnOff, nil); err != nil {
		t.Fatalf("Append: %v", err)
	}

	entries, err := l.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d", len(entries))
	}

	// Most recent first.
	if entries[0].EntityID != "light.bedroom" {
		t.Errorf("first entry = %+v", entries[0])
	}
	if entries[0].Service != ServiceTurnOff {
		t.Errorf("service = %q", entries[0].Service)
	}
	if entries[1].Payload["brightness"] != float64(200) {
		t.Errorf("payload = %v", entries[1].Payload)
	}
}

func TestByEntity(t *testing.T) {
	l := testLedger(t)

	for i := 0; i < 3; i++ {
		if err := l.Append("light.kitchen", "1", "apiv1", ServiceTurnOn, nil); err != nil {
			t.Fatal(err)
		}
	}
	if err := l.Append("light.bedroom", "2", "apiv2", ServiceTurnOn, nil); err != nil {
		t.Fatal(err)
	}

	entries, err := l.ByEntity("light.kitchen", 10)
	if err != nil {
		t.Fatalf("ByEntity: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("entries = %d, want 3", len(entries))
	}
	for _, e := range entries {
		if e.EntityID != "light.kitchen" {
			t.Errorf("entry for wrong entity: %+v", e)
		}
	}

	limited, err := l.ByEntity("light.kitchen", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 2 {
		t.Errorf("limited entries = %d, want 2", len(limited))
	}
}

func TestDeleteOlderThan(t *testing.T) {
	l := testLedger(t)

	if err := l.Append("light.kitchen", "1", "apiv1", ServiceTurnOn, nil); err != nil {
		t.Fatal(err)
	}

	// Nothing is older than a long retention.
	n, err := l.DeleteOlderThan(24 * time.Hour)
	if err != nil {
		t.Fatalf("DeleteOlderThan: %v", err)
	}
	if n != 0 {
		t.Errorf("deleted = %d, want 0", n)
	}

	// Zero retention expires everything written so far.
	time.Sleep(1100 * time.Millisecond)
	n, err = l.DeleteOlderThan(time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}

	entries, err := l.Recent(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("entries = %d after pruning", len(entries))
	}
}
