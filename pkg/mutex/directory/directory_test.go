package directory

import "testing"

func TestInMemoryDirectory_RegisterAndLookup(t *testing.T) {
	dir := NewInMemoryDirectory()
	if err := dir.Register("peer.mutex.a", "http://127.0.0.1:9001"); err != nil {
		t.Fatalf("failed registering: %v", err)
	}

	endpoint, err := dir.Lookup("peer.mutex.a")
	if err != nil {
		t.Fatalf("failed looking up: %v", err)
	}
	if endpoint != "http://127.0.0.1:9001" {
		t.Fatalf("unexpected endpoint: %s", endpoint)
	}
}

func TestInMemoryDirectory_LookupMissingReturnsErrNotFound(t *testing.T) {
	dir := NewInMemoryDirectory()
	if _, err := dir.Lookup("peer.mutex.ghost"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInMemoryDirectory_ListFiltersByPrefix(t *testing.T) {
	dir := NewInMemoryDirectory()
	_ = dir.Register("peer.mutex.a", "endpoint-a")
	_ = dir.Register("peer.mutex.b", "endpoint-b")
	_ = dir.Register("other.prefix.c", "endpoint-c")

	records, err := dir.List("peer.mutex.")
	if err != nil {
		t.Fatalf("failed listing: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if _, ok := records["other.prefix.c"]; ok {
		t.Fatalf("list leaked a record outside the prefix")
	}
}

func TestInMemoryDirectory_RemoveIsIdempotent(t *testing.T) {
	dir := NewInMemoryDirectory()
	_ = dir.Register("peer.mutex.a", "endpoint-a")

	if err := dir.Remove("peer.mutex.a"); err != nil {
		t.Fatalf("failed removing: %v", err)
	}
	if err := dir.Remove("peer.mutex.a"); err != nil {
		t.Fatalf("removing an already-absent name should be a no-op, got: %v", err)
	}
	if _, err := dir.Lookup("peer.mutex.a"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after removal, got %v", err)
	}
}
