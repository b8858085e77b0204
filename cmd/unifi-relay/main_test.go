package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/railsonsantospb/unifi-relay/core"
)

func baseConfig() core.Config {
	cfg := core.DefaultConfig()
	cfg.Auth.SharedSecret = "s3cret"
	cfg.Telegram.BotToken = "123:abc"
	cfg.Telegram.ChatID = "-100"
	cfg.Server.Port = 8080
	return cfg
}

func exerciseStore(t *testing.T, store core.StateStore) {
	t.Helper()
	ctx := context.Background()
	changed, err := store.CompareAndSwap(ctx, "unifi:home", core.StateEntry{Hash: "abc", TS: "t1"})
	if err != nil || !changed {
		t.Fatalf("first swap: changed=%v err=%v", changed, err)
	}
	changed, err = store.CompareAndSwap(ctx, "unifi:home", core.StateEntry{Hash: "abc", TS: "t2"})
	if err != nil || changed {
		t.Fatalf("repeat swap: changed=%v err=%v", changed, err)
	}
}

func TestOpenStateStore_File(t *testing.T) {
	cfg := baseConfig()
	cfg.State.Dir = t.TempDir()
	store, closeStore, err := openStateStore(context.Background(), cfg, glog.Nop())
	if err != nil {
		t.Fatalf("open file store: %v", err)
	}
	defer closeStore()
	exerciseStore(t, store)
}

func TestOpenStateStore_SQLite(t *testing.T) {
	cfg := baseConfig()
	cfg.State.Driver = core.StateDriverSQLite
	cfg.State.DSN = "file:" + filepath.Join(t.TempDir(), "relay.db")
	cfg.State.CacheTTLSec = 30
	store, closeStore, err := openStateStore(context.Background(), cfg, glog.Nop())
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	defer closeStore()
	exerciseStore(t, store)
}

func TestOpenStateStore_Redis(t *testing.T) {
	server := miniredis.RunT(t)
	cfg := baseConfig()
	cfg.State.Driver = core.StateDriverRedis
	cfg.State.RedisURL = "redis://" + server.Addr() + "/0"
	store, closeStore, err := openStateStore(context.Background(), cfg, glog.Nop())
	if err != nil {
		t.Fatalf("open redis store: %v", err)
	}
	defer closeStore()
	exerciseStore(t, store)
}

func TestOpenStateStore_UnknownDriver(t *testing.T) {
	cfg := baseConfig()
	cfg.State.Driver = "etcd"
	if _, closeStore, err := openStateStore(context.Background(), cfg, glog.Nop()); err == nil {
		t.Fatalf("expected unsupported driver error")
	} else {
		closeStore()
	}
}

func TestRun_FailsFastOnMissingConfigFile(t *testing.T) {
	var stderr bytes.Buffer
	err := run(context.Background(), []string{"-config", filepath.Join(t.TempDir(), "missing.yaml")}, &stderr)
	if err == nil {
		t.Fatalf("expected missing config file error")
	}
}
