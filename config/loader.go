// Package config reads relay settings from a YAML file and the environment
// and resolves them into a validated core.Config.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/railsonsantospb/unifi-relay/core"
	"gopkg.in/yaml.v3"
)

type valueKind int

const (
	kindString valueKind = iota
	kindInt
	kindBool
)

type envBinding struct {
	Env  string
	Path string
	kind valueKind
}

var envBindings = []envBinding{
	{Env: "SHARED_SECRET", Path: "auth.shared_secret"},
	{Env: "SIGNATURE_HEADER", Path: "auth.signature_header"},
	{Env: "TELEGRAM_BOT_TOKEN", Path: "telegram.bot_token"},
	{Env: "TELEGRAM_CHAT_ID", Path: "telegram.chat_id"},
	{Env: "TELEGRAM_BASE_URL", Path: "telegram.base_url"},
	{Env: "DATA_DIR", Path: "state.dir"},
	{Env: "STATE_DRIVER", Path: "state.driver"},
	{Env: "STATE_DSN", Path: "state.dsn"},
	{Env: "REDIS_URL", Path: "state.redis_url"},
	{Env: "STATE_CACHE_TTL_SEC", Path: "state.cache_ttl_sec", kind: kindInt},
	{Env: "PORT", Path: "server.port", kind: kindInt},
	{Env: "HOST", Path: "server.host"},
	{Env: "MAX_BODY_BYTES", Path: "server.max_body_bytes", kind: kindInt},
	{Env: "LOG_LEVEL", Path: "log.level"},
	{Env: "LOG_FORMAT", Path: "log.format"},
	{Env: "METRICS_ENABLED", Path: "metrics.enabled", kind: kindBool},
}

// FileLoader reads a YAML document. An empty Path yields an empty map; a
// set Path that does not exist is an error.
type FileLoader struct {
	Path string
}

func (l FileLoader) LoadRaw(context.Context) (map[string]any, error) {
	path := strings.TrimSpace(l.Path)
	if path == "" {
		return map[string]any{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	out := map[string]any{}
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

// EnvLoader maps the relay's environment variables onto nested config keys.
// Unset and empty variables are skipped.
type EnvLoader struct {
	Lookup func(key string) (string, bool)
}

func (l EnvLoader) LoadRaw(context.Context) (map[string]any, error) {
	lookup := l.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	out := map[string]any{}
	var errs []error
	for _, binding := range envBindings {
		raw, ok := lookup(binding.Env)
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}
		value, err := convert(strings.TrimSpace(raw), binding.kind)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: %s: %w", binding.Env, err))
			continue
		}
		setPath(out, binding.Path, value)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

func convert(raw string, kind valueKind) (any, error) {
	switch kind {
	case kindInt:
		return strconv.Atoi(raw)
	case kindBool:
		return strconv.ParseBool(raw)
	default:
		return raw, nil
	}
}

// ChainLoader merges loaders in order; later loaders win key by key.
type ChainLoader []core.RawConfigLoader

func (c ChainLoader) LoadRaw(ctx context.Context) (map[string]any, error) {
	out := map[string]any{}
	for _, loader := range c {
		if loader == nil {
			continue
		}
		raw, err := loader.LoadRaw(ctx)
		if err != nil {
			return nil, err
		}
		mergeInto(out, raw)
	}
	return out, nil
}

// Load resolves defaults, the YAML file at path, the environment and
// runtime overrides, in that order, and validates the result.
func Load(ctx context.Context, path string, runtime core.Config) (core.Config, error) {
	loader := ChainLoader{FileLoader{Path: path}, EnvLoader{}}
	return LoadWith(ctx, loader, runtime)
}

func LoadWith(ctx context.Context, loader core.RawConfigLoader, runtime core.Config) (core.Config, error) {
	return core.ResolveConfig(ctx, runtime, core.NewCfgxConfigProvider(loader), core.GoOptionsResolver{})
}

func setPath(target map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	current := target
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			next = map[string]any{}
			current[part] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
}

func mergeInto(dst map[string]any, src map[string]any) {
	for key, value := range src {
		srcMap, srcIsMap := value.(map[string]any)
		dstMap, dstIsMap := dst[key].(map[string]any)
		if srcIsMap && dstIsMap {
			mergeInto(dstMap, srcMap)
			continue
		}
		if srcIsMap {
			copied := map[string]any{}
			mergeInto(copied, srcMap)
			dst[key] = copied
			continue
		}
		dst[key] = value
	}
}
