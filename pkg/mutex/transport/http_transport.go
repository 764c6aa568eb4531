package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/jabolina/peer-mutex/pkg/mutex/definition"
	"github.com/jabolina/peer-mutex/pkg/mutex/types"
)

// requestPayload mirrors the wire shape of original_source/client.py's
// receber_pedido(requisitante_id, timestamp_req) and
// other_examples' Ricart-Agrawala Message struct.
type requestPayload struct {
	From      types.PeerId `json:"requester_id"`
	Timestamp uint64       `json:"timestamp"`
}

type requestReply struct {
	Decision types.Decision `json:"decision"`
}

type okPayload struct {
	From types.PeerId `json:"sender_id"`
}

// HTTPRequestTransport implements RequestTransport as a JSON/HTTP unary
// RPC, retrying outbound sends with exponential backoff exactly like
// original_source/client.py's sendMessage / sendMessage retry loop.
type HTTPRequestTransport struct {
	mutex     sync.RWMutex
	server    *http.Server
	listener  net.Listener
	client    *http.Client
	log       definition.Logger
	onRequest RequestHandler
	onOK      OKHandler

	maxRetries int
	baseDelay  time.Duration
}

// NewHTTPRequestTransport builds a transport ready to Serve on addr.
func NewHTTPRequestTransport(log definition.Logger) *HTTPRequestTransport {
	return &HTTPRequestTransport{
		client:     &http.Client{Timeout: 5 * time.Second},
		log:        log,
		maxRetries: 3,
		baseDelay:  100 * time.Millisecond,
	}
}

// Bind reserves the listening address without yet serving traffic, so a
// caller can learn LocalEndpoint() (to register with the directory)
// before the handlers that depend on that registration exist. Serve
// must be called afterwards to actually start answering requests.
func (t *HTTPRequestTransport) Bind(addr string) (string, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("peer-mutex: failed binding listener: %w", err)
	}

	t.mutex.Lock()
	t.listener = listener
	t.mutex.Unlock()
	return t.LocalEndpoint(), nil
}

func (t *HTTPRequestTransport) Serve(addr string, onRequest RequestHandler, onOK OKHandler) error {
	t.mutex.Lock()
	listener := t.listener
	t.mutex.Unlock()

	if listener == nil {
		bound, err := t.Bind(addr)
		if err != nil {
			return err
		}
		_ = bound
		t.mutex.Lock()
		listener = t.listener
		t.mutex.Unlock()
	}

	t.mutex.Lock()
	t.onRequest = onRequest
	t.onOK = onOK
	mux := http.NewServeMux()
	mux.HandleFunc("/mutex/request", t.handleRequest)
	mux.HandleFunc("/mutex/ok", t.handleOK)
	t.server = &http.Server{Handler: mux}
	t.mutex.Unlock()

	go func() {
		if err := t.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.log.Errorf("request transport serve error: %v", err)
		}
	}()
	return nil
}

func (t *HTTPRequestTransport) handleRequest(w http.ResponseWriter, r *http.Request) {
	var payload requestPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	t.mutex.RLock()
	handler := t.onRequest
	t.mutex.RUnlock()

	decision := handler(payload.From, payload.Timestamp)
	writeJSON(w, requestReply{Decision: decision})
}

func (t *HTTPRequestTransport) handleOK(w http.ResponseWriter, r *http.Request) {
	var payload okPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	t.mutex.RLock()
	handler := t.onOK
	t.mutex.RUnlock()

	handler(payload.From)
	w.Write([]byte(types.Ack))
}

func (t *HTTPRequestTransport) SendRequest(ctx context.Context, endpoint string, self types.PeerId, timestamp uint64) (types.Decision, error) {
	body, err := json.Marshal(requestPayload{From: self, Timestamp: timestamp})
	if err != nil {
		return "", err
	}

	var reply requestReply
	err = t.postWithRetry(ctx, endpoint+"/mutex/request", body, &reply)
	if err != nil {
		return "", err
	}
	return reply.Decision, nil
}

func (t *HTTPRequestTransport) SendOK(ctx context.Context, endpoint string, self types.PeerId) error {
	body, err := json.Marshal(okPayload{From: self})
	if err != nil {
		return err
	}
	return t.postWithRetry(ctx, endpoint+"/mutex/ok", body, nil)
}

// postWithRetry mirrors original_source/client.py's sendMessage: up to
// maxRetries attempts with exponential backoff, giving up with
// ErrTransientTransport rather than blocking the caller forever.
func (t *HTTPRequestTransport) postWithRetry(ctx context.Context, url string, body []byte, out interface{}) error {
	delay := t.baseDelay
	var lastErr error
	for attempt := 0; attempt < t.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := t.client.Do(req)
		if err == nil {
			defer resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				if out != nil {
					return json.NewDecoder(resp.Body).Decode(out)
				}
				return nil
			}
			lastErr = fmt.Errorf("unexpected status %d", resp.StatusCode)
		} else {
			lastErr = err
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", types.ErrTransientTransport, ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}
	return fmt.Errorf("%w: %v", types.ErrTransientTransport, lastErr)
}

func (t *HTTPRequestTransport) LocalEndpoint() string {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	if t.listener == nil {
		return ""
	}
	return "http://" + t.listener.Addr().String()
}

func (t *HTTPRequestTransport) Close() error {
	t.mutex.RLock()
	server := t.server
	t.mutex.RUnlock()
	if server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
