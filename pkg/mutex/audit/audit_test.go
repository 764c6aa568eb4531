package audit

import (
	"testing"
	"time"

	"github.com/jabolina/peer-mutex/pkg/mutex/types"
)

func TestInMemoryLog_AppendAndHistoryPreservesOrder(t *testing.T) {
	log := NewInMemoryLog()
	base := time.Unix(0, 0)

	first := Record{PeerID: "a", EnteredAt: base, ReleasedAt: base.Add(time.Second), Reason: types.User}
	second := Record{PeerID: "a", EnteredAt: base.Add(2 * time.Second), ReleasedAt: base.Add(3 * time.Second), Reason: types.LeaseExpired}

	if err := log.Append(first); err != nil {
		t.Fatalf("failed appending first record: %v", err)
	}
	if err := log.Append(second); err != nil {
		t.Fatalf("failed appending second record: %v", err)
	}

	history, err := log.History()
	if err != nil {
		t.Fatalf("failed reading history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 records, got %d", len(history))
	}
	if history[0].Duration() != time.Second {
		t.Fatalf("unexpected duration for first record: %v", history[0].Duration())
	}
	if history[1].Reason != types.LeaseExpired {
		t.Fatalf("expected second record to be lease-expired")
	}
}

func TestInMemoryLog_HistoryReturnsACopy(t *testing.T) {
	log := NewInMemoryLog()
	_ = log.Append(Record{PeerID: "a"})

	history, err := log.History()
	if err != nil {
		t.Fatalf("failed reading history: %v", err)
	}
	history[0].PeerID = "mutated"

	second, err := log.History()
	if err != nil {
		t.Fatalf("failed reading history a second time: %v", err)
	}
	if second[0].PeerID != "a" {
		t.Fatalf("History leaked a mutable reference to internal state")
	}
}
