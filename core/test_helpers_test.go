package core

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
)

const testSecret = "test-shared-secret"

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Auth.SharedSecret = testSecret
	cfg.Telegram.BotToken = "123:abc"
	cfg.Telegram.ChatID = "-100200"
	cfg.State.Dir = "/tmp/relay-test"
	cfg.Server.Port = 8080
	return cfg
}

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// hmacVerifier mirrors the production header verifier without importing it.
type hmacVerifier struct{}

func (hmacVerifier) Verify(_ context.Context, req InboundRequest) error {
	decoded, err := hex.DecodeString(req.Headers["X-Signature"])
	if err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}
	mac := hmac.New(sha256.New, []byte(testSecret))
	_, _ = mac.Write(req.Body)
	if !hmac.Equal(decoded, mac.Sum(nil)) {
		return fmt.Errorf("signature mismatch")
	}
	return nil
}

type memoryStateStore struct {
	mu      sync.Mutex
	entries map[string]StateEntry
	writes  int
	swapErr error
}

func newMemoryStateStore() *memoryStateStore {
	return &memoryStateStore{entries: map[string]StateEntry{}}
}

func (s *memoryStateStore) Load(_ context.Context, key string) (StateEntry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	return entry, ok, nil
}

func (s *memoryStateStore) CompareAndSwap(_ context.Context, key string, next StateEntry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.swapErr != nil {
		return false, s.swapErr
	}
	if current, ok := s.entries[key]; ok && current.Hash == next.Hash {
		return false, nil
	}
	s.entries[key] = next
	s.writes++
	return true, nil
}

type recordingNotifier struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (n *recordingNotifier) Send(_ context.Context, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.texts = append(n.texts, text)
	return n.err
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.texts)
}

type stubLoggerProvider struct {
	logger Logger
}

func (p stubLoggerProvider) GetLogger(string) Logger {
	return p.logger
}

func newTestService(t *testing.T, store StateStore, notifier Notifier, extra ...Option) *Service {
	t.Helper()
	opts := append([]Option{
		WithSignatureVerifier(hmacVerifier{}),
		WithStateStore(store),
		WithNotifier(notifier),
	}, extra...)
	svc, err := NewService(testConfig(), opts...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func signedRequest(t *testing.T, payload map[string]any) InboundRequest {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return InboundRequest{
		RequestID: "req_1",
		Headers:   map[string]string{"X-Signature": sign(body)},
		Body:      body,
	}
}

func devicesPayload(site string, hash string) map[string]any {
	return map[string]any{
		"type": PayloadTypeDevicesV1,
		"ts":   "2026-10-15T10:00:00Z",
		"site": site,
		"mode": "auto",
		"hash": hash,
		"devices": []map[string]any{
			{"name": "gateway", "online": true},
			{"name": "ap-living", "online": true},
			{"name": "ap-garage", "online": false},
		},
	}
}
