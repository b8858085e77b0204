package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	opts "github.com/goliatone/go-options"
)

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type serviceBuilder struct {
	runtimeConfig   Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	configProvider  ConfigProvider
	optionsResolver OptionsResolver
	verifier        SignatureVerifier
	stateStore      StateStore
	notifier        Notifier
	formatter       ReportFormatter
	now             func() time.Time
}

type Option func(*serviceBuilder)

func WithLogger(logger Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *serviceBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *serviceBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *serviceBuilder) {
		b.optionsResolver = resolver
	}
}

func WithSignatureVerifier(verifier SignatureVerifier) Option {
	return func(b *serviceBuilder) {
		b.verifier = verifier
	}
}

func WithStateStore(store StateStore) Option {
	return func(b *serviceBuilder) {
		b.stateStore = store
	}
}

func WithNotifier(notifier Notifier) Option {
	return func(b *serviceBuilder) {
		b.notifier = notifier
	}
}

func WithReportFormatter(formatter ReportFormatter) Option {
	return func(b *serviceBuilder) {
		b.formatter = formatter
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *serviceBuilder) {
		b.now = now
	}
}

func defaultServiceBuilder(runtime Config) serviceBuilder {
	return serviceBuilder{
		runtimeConfig:   runtime,
		metricsRecorder: NopMetricsRecorder{},
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
		formatter:       FormatReport,
		now:             time.Now,
	}
}

// ResolveConfig loads the provider layer over defaults and applies runtime
// overrides on top. Validation runs once on the merged result.
func ResolveConfig(ctx context.Context, runtime Config, provider ConfigProvider, resolver OptionsResolver) (Config, error) {
	if provider == nil {
		provider = NewCfgxConfigProvider(nil)
	}
	if resolver == nil {
		resolver = GoOptionsResolver{}
	}
	defaults := DefaultConfig()
	loaded, err := provider.Load(ctx, defaults)
	if err != nil {
		return Config{}, err
	}
	return resolver.Resolve(defaults, loaded, runtime)
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

// CfgxConfigProvider builds a Config from a raw map over the defaults. It does
// not validate: required settings may still arrive through runtime overrides.
type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw, cfgx.WithDefaults(defaults))
	if err != nil {
		return Config{}, fmt.Errorf("core: build config: %w", err)
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, true)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

// configToLayerMap renders cfg as a nested raw map. Without includeZero only
// set values are emitted so a partial runtime Config never clears lower layers.
func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	putString(layer, "service_name", cfg.ServiceName, includeZero)

	server := map[string]any{}
	putString(server, "host", cfg.Server.Host, includeZero)
	putInt(server, "port", cfg.Server.Port, includeZero)
	putInt(server, "read_timeout_sec", cfg.Server.ReadTimeoutSec, includeZero)
	putInt(server, "write_timeout_sec", cfg.Server.WriteTimeoutSec, includeZero)
	putInt(server, "idle_timeout_sec", cfg.Server.IdleTimeoutSec, includeZero)
	if includeZero || cfg.Server.MaxBodyBytes != 0 {
		server["max_body_bytes"] = cfg.Server.MaxBodyBytes
	}
	putString(server, "ingest_path", cfg.Server.IngestPath, includeZero)
	putString(server, "health_path", cfg.Server.HealthPath, includeZero)
	putString(server, "metrics_path", cfg.Server.MetricsPath, includeZero)
	putSection(layer, "server", server)

	auth := map[string]any{}
	putString(auth, "shared_secret", cfg.Auth.SharedSecret, includeZero)
	putString(auth, "signature_header", cfg.Auth.SignatureHeader, includeZero)
	putSection(layer, "auth", auth)

	telegram := map[string]any{}
	putString(telegram, "bot_token", cfg.Telegram.BotToken, includeZero)
	putString(telegram, "chat_id", cfg.Telegram.ChatID, includeZero)
	putString(telegram, "base_url", cfg.Telegram.BaseURL, includeZero)
	putSection(layer, "telegram", telegram)

	state := map[string]any{}
	putString(state, "driver", cfg.State.Driver, includeZero)
	putString(state, "dir", cfg.State.Dir, includeZero)
	putString(state, "file_name", cfg.State.FileName, includeZero)
	putString(state, "dsn", cfg.State.DSN, includeZero)
	putString(state, "redis_url", cfg.State.RedisURL, includeZero)
	putString(state, "redis_key_prefix", cfg.State.RedisKeyPrefix, includeZero)
	putInt(state, "cache_ttl_sec", cfg.State.CacheTTLSec, includeZero)
	putSection(layer, "state", state)

	logCfg := map[string]any{}
	putString(logCfg, "level", cfg.Log.Level, includeZero)
	putString(logCfg, "format", cfg.Log.Format, includeZero)
	putSection(layer, "log", logCfg)

	if includeZero || cfg.Metrics.Enabled {
		layer["metrics"] = map[string]any{"enabled": cfg.Metrics.Enabled}
	}
	return layer
}

func putString(target map[string]any, key string, value string, includeZero bool) {
	if includeZero || strings.TrimSpace(value) != "" {
		target[key] = value
	}
}

func putInt(target map[string]any, key string, value int, includeZero bool) {
	if includeZero || value != 0 {
		target[key] = value
	}
}

func putSection(target map[string]any, key string, section map[string]any) {
	if len(section) > 0 {
		target[key] = section
	}
}
