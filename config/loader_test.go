package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/railsonsantospb/unifi-relay/core"
)

func mapLookup(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

func writeYAML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "relay.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	return path
}

func TestFileLoader_ReadsNestedYAML(t *testing.T) {
	path := writeYAML(t, `
auth:
  shared_secret: from-file
server:
  port: 9000
metrics:
  enabled: false
`)
	raw, err := FileLoader{Path: path}.LoadRaw(context.Background())
	if err != nil {
		t.Fatalf("load raw: %v", err)
	}
	auth, _ := raw["auth"].(map[string]any)
	if auth["shared_secret"] != "from-file" {
		t.Fatalf("unexpected auth section: %#v", raw["auth"])
	}
	server, _ := raw["server"].(map[string]any)
	if server["port"] != 9000 {
		t.Fatalf("unexpected server section: %#v", raw["server"])
	}
}

func TestFileLoader_EmptyPathAndMissingFile(t *testing.T) {
	raw, err := FileLoader{}.LoadRaw(context.Background())
	if err != nil || len(raw) != 0 {
		t.Fatalf("expected empty map for empty path, got %#v err=%v", raw, err)
	}
	if _, err := (FileLoader{Path: filepath.Join(t.TempDir(), "missing.yaml")}).LoadRaw(context.Background()); err == nil {
		t.Fatalf("expected missing file error")
	}
}

func TestEnvLoader_ConvertsTypedValues(t *testing.T) {
	loader := EnvLoader{Lookup: mapLookup(map[string]string{
		"SHARED_SECRET":   "s3cret",
		"PORT":            "8081",
		"METRICS_ENABLED": "false",
		"DATA_DIR":        "",
	})}
	raw, err := loader.LoadRaw(context.Background())
	if err != nil {
		t.Fatalf("load env: %v", err)
	}
	if raw["auth"].(map[string]any)["shared_secret"] != "s3cret" {
		t.Fatalf("unexpected auth: %#v", raw["auth"])
	}
	if raw["server"].(map[string]any)["port"] != 8081 {
		t.Fatalf("unexpected server: %#v", raw["server"])
	}
	if raw["metrics"].(map[string]any)["enabled"] != false {
		t.Fatalf("unexpected metrics: %#v", raw["metrics"])
	}
	if _, ok := raw["state"]; ok {
		t.Fatalf("expected empty DATA_DIR to be skipped, got %#v", raw["state"])
	}
}

func TestEnvLoader_RejectsBadNumbers(t *testing.T) {
	loader := EnvLoader{Lookup: mapLookup(map[string]string{"PORT": "eighty"})}
	if _, err := loader.LoadRaw(context.Background()); err == nil {
		t.Fatalf("expected conversion error")
	}
}

func TestChainLoader_LaterLoadersWinPerKey(t *testing.T) {
	path := writeYAML(t, `
auth:
  shared_secret: from-file
  signature_header: X-Hub-Signature
`)
	chain := ChainLoader{
		FileLoader{Path: path},
		EnvLoader{Lookup: mapLookup(map[string]string{"SHARED_SECRET": "from-env"})},
	}
	raw, err := chain.LoadRaw(context.Background())
	if err != nil {
		t.Fatalf("load chain: %v", err)
	}
	auth := raw["auth"].(map[string]any)
	if auth["shared_secret"] != "from-env" || auth["signature_header"] != "X-Hub-Signature" {
		t.Fatalf("unexpected merged auth: %#v", auth)
	}
}

func TestLoadWith_ResolvesAndValidates(t *testing.T) {
	path := writeYAML(t, `
telegram:
  chat_id: "-100"
state:
  dir: /var/lib/relay
`)
	chain := ChainLoader{
		FileLoader{Path: path},
		EnvLoader{Lookup: mapLookup(map[string]string{
			"SHARED_SECRET":      "s3cret",
			"TELEGRAM_BOT_TOKEN": "123:abc",
			"PORT":               "8081",
		})},
	}
	runtime := core.Config{Server: core.ServerConfig{Host: "127.0.0.1"}}
	cfg, err := LoadWith(context.Background(), chain, runtime)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Auth.SharedSecret != "s3cret" || cfg.Telegram.ChatID != "-100" || cfg.Server.Port != 8081 {
		t.Fatalf("unexpected config: %#v", cfg)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Fatalf("expected runtime host override, got %q", cfg.Server.Host)
	}
	if cfg.Auth.SignatureHeader != core.DefaultSignatureHeader || cfg.StateDriver() != core.StateDriverFile {
		t.Fatalf("expected defaults to fill unset keys, got %#v", cfg)
	}
}

func TestLoadWith_FailsWithoutRequiredKeys(t *testing.T) {
	chain := ChainLoader{EnvLoader{Lookup: mapLookup(map[string]string{"PORT": "8081"})}}
	if _, err := LoadWith(context.Background(), chain, core.Config{}); err == nil {
		t.Fatalf("expected validation failure without secret and telegram credentials")
	}
}
