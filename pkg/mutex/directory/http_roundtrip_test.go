package directory

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jabolina/peer-mutex/pkg/mutex/definition"
)

func TestServerClient_RegisterLookupListRemove(t *testing.T) {
	log := definition.NewDefaultLogger()
	server := NewServer(log)
	mux := http.NewServeMux()
	server.Routes(mux)

	httpServer := httptest.NewServer(mux)
	defer httpServer.Close()

	client := NewClient(httpServer.URL)

	if err := client.Register("peer.mutex.a", "http://127.0.0.1:9001"); err != nil {
		t.Fatalf("failed registering over HTTP: %v", err)
	}

	endpoint, err := client.Lookup("peer.mutex.a")
	if err != nil {
		t.Fatalf("failed looking up over HTTP: %v", err)
	}
	if endpoint != "http://127.0.0.1:9001" {
		t.Fatalf("unexpected endpoint: %s", endpoint)
	}

	if err := client.Register("peer.mutex.b", "http://127.0.0.1:9002"); err != nil {
		t.Fatalf("failed registering second peer: %v", err)
	}

	records, err := client.List("peer.mutex.")
	if err != nil {
		t.Fatalf("failed listing over HTTP: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	if err := client.Remove("peer.mutex.a"); err != nil {
		t.Fatalf("failed removing over HTTP: %v", err)
	}
	if _, err := client.Lookup("peer.mutex.a"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after remote removal, got %v", err)
	}
}
