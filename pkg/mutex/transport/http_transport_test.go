package transport

import (
	"context"
	"testing"
	"time"

	"github.com/jabolina/peer-mutex/pkg/mutex/definition"
	"github.com/jabolina/peer-mutex/pkg/mutex/types"
)

func TestHTTPRequestTransport_BindThenServeReusesListener(t *testing.T) {
	log := definition.NewDefaultLogger()
	trans := NewHTTPRequestTransport(log)
	defer trans.Close()

	endpoint, err := trans.Bind("127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed binding: %v", err)
	}
	if endpoint == "" {
		t.Fatalf("expected a non-empty endpoint after Bind")
	}

	if err := trans.Serve("127.0.0.1:0", func(types.PeerId, uint64) types.Decision {
		return types.OK
	}, func(types.PeerId) {}); err != nil {
		t.Fatalf("failed serving: %v", err)
	}

	if trans.LocalEndpoint() != endpoint {
		t.Fatalf("Serve should reuse the bound listener: bound %s, serving on %s", endpoint, trans.LocalEndpoint())
	}
}

func TestHTTPRequestTransport_RequestAndOKRoundTrip(t *testing.T) {
	serverLog := definition.NewDefaultLogger()
	server := NewHTTPRequestTransport(serverLog)
	defer server.Close()

	var receivedOK types.PeerId
	endpoint, err := server.Bind("127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed binding server: %v", err)
	}
	err = server.Serve(endpoint, func(from types.PeerId, ts uint64) types.Decision {
		if ts == 0 {
			return types.Wait
		}
		return types.OK
	}, func(from types.PeerId) {
		receivedOK = from
	})
	if err != nil {
		t.Fatalf("failed serving: %v", err)
	}

	clientLog := definition.NewDefaultLogger()
	client := NewHTTPRequestTransport(clientLog)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	decision, err := client.SendRequest(ctx, endpoint, types.PeerId("client"), 1)
	if err != nil {
		t.Fatalf("failed sending request: %v", err)
	}
	if decision != types.OK {
		t.Fatalf("expected OK, got %s", decision)
	}

	if err := client.SendOK(ctx, endpoint, types.PeerId("client")); err != nil {
		t.Fatalf("failed sending OK: %v", err)
	}
	if receivedOK != types.PeerId("client") {
		t.Fatalf("server never observed the OK from client")
	}
}

func TestHTTPRequestTransport_SendToUnreachableEndpointFails(t *testing.T) {
	log := definition.NewDefaultLogger()
	client := NewHTTPRequestTransport(log)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	_, err := client.SendRequest(ctx, "http://127.0.0.1:1", types.PeerId("client"), 1)
	if err == nil {
		t.Fatalf("expected an error sending to an unreachable endpoint")
	}
}
