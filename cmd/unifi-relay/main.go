// Command unifi-relay receives signed UniFi device reports and forwards
// status changes to a Telegram chat.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/railsonsantospb/unifi-relay/adapters/gologger"
	"github.com/railsonsantospb/unifi-relay/adapters/prommetrics"
	"github.com/railsonsantospb/unifi-relay/command"
	"github.com/railsonsantospb/unifi-relay/config"
	"github.com/railsonsantospb/unifi-relay/core"
	"github.com/railsonsantospb/unifi-relay/providers/telegram"
	"github.com/railsonsantospb/unifi-relay/query"
	filestore "github.com/railsonsantospb/unifi-relay/store/file"
	redisstore "github.com/railsonsantospb/unifi-relay/store/redis"
	sqlstore "github.com/railsonsantospb/unifi-relay/store/sql"
	"github.com/railsonsantospb/unifi-relay/transport/httpapi"
	"github.com/railsonsantospb/unifi-relay/webhooks"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "unifi-relay: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stderr io.Writer) error {
	flags := flag.NewFlagSet("unifi-relay", flag.ContinueOnError)
	flags.SetOutput(stderr)
	configPath := flags.String("config", "", "path to a YAML config file")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(ctx, *configPath, core.Config{})
	if err != nil {
		return err
	}

	logger, err := gologger.New(gologger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, Writer: stderr})
	if err != nil {
		return err
	}

	store, closeStore, err := openStateStore(ctx, cfg, logger.GetLogger("state"))
	if err != nil {
		return err
	}
	defer closeStore()

	notifier, err := telegram.NewNotifier(telegram.Config{
		BaseURL:  cfg.Telegram.BaseURL,
		BotToken: cfg.Telegram.BotToken,
		ChatID:   cfg.Telegram.ChatID,
	}, &http.Client{})
	if err != nil {
		return err
	}

	opts := []core.Option{
		core.WithLogger(logger),
		core.WithLoggerProvider(logger),
		core.WithSignatureVerifier(webhooks.NewHeaderHMACVerifier(cfg.Auth.SignatureHeader, cfg.Auth.SharedSecret)),
		core.WithStateStore(store),
		core.WithNotifier(notifier),
	}
	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		recorder := prommetrics.NewRecorder(prometheus.NewRegistry(), prommetrics.WithLogger(logger.GetLogger("metrics")))
		opts = append(opts, core.WithMetricsRecorder(recorder))
		metricsHandler = recorder.Handler()
	}

	svc, err := core.NewService(cfg, opts...)
	if err != nil {
		return err
	}

	handler := httpapi.NewHandler(command.NewIngestCommand(svc), query.NewLastStateQuery(svc), httpapi.Options{
		IngestPath:   cfg.Server.IngestPath,
		HealthPath:   cfg.Server.HealthPath,
		MetricsPath:  cfg.Server.MetricsPath,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		Metrics:      metricsHandler,
		Logger:       logger.GetLogger("http"),
	})
	server := httpapi.NewServer(httpapi.ServerConfig{
		Addr:         cfg.ListenAddr(),
		ReadTimeout:  seconds(cfg.Server.ReadTimeoutSec),
		WriteTimeout: seconds(cfg.Server.WriteTimeoutSec),
		IdleTimeout:  seconds(cfg.Server.IdleTimeoutSec),
	}, handler, logger.GetLogger("server"))

	logger.Info("relay configured",
		"service", cfg.ServiceName,
		"state_driver", cfg.StateDriver(),
		"metrics", cfg.Metrics.Enabled,
	)
	return server.Start(ctx)
}

// openStateStore builds the backend named by state.driver. The returned
// close func is always safe to call.
func openStateStore(ctx context.Context, cfg core.Config, logger glog.Logger) (core.StateStore, func(), error) {
	noop := func() {}
	switch cfg.StateDriver() {
	case core.StateDriverFile:
		store, err := filestore.NewStateStore(filestore.Options{
			Dir:      cfg.State.Dir,
			FileName: cfg.State.FileName,
			Logger:   logger,
		})
		return store, noop, err
	case core.StateDriverSQLite, core.StateDriverPostgres:
		client, err := sqlstore.Open(ctx, cfg.StateDriver(), cfg.State.DSN)
		if err != nil {
			return nil, noop, err
		}
		closeDB := func() { _ = client.DB().Close() }
		store, err := sqlstore.NewStateStoreFromClient(client, seconds(cfg.State.CacheTTLSec), logger)
		if err != nil {
			closeDB()
			return nil, noop, err
		}
		return store, closeDB, nil
	case core.StateDriverRedis:
		client, err := redisstore.NewClient(cfg.State.RedisURL)
		if err != nil {
			return nil, noop, err
		}
		closeClient := func() { _ = client.Close() }
		if err := client.Ping(ctx).Err(); err != nil {
			closeClient()
			return nil, noop, fmt.Errorf("redis: ping: %w", err)
		}
		store, err := redisstore.NewStateStore(client, redisstore.Options{KeyPrefix: cfg.State.RedisKeyPrefix})
		if err != nil {
			closeClient()
			return nil, noop, err
		}
		return store, closeClient, nil
	default:
		return nil, noop, fmt.Errorf("unsupported state driver %q", cfg.State.Driver)
	}
}

func seconds(value int) time.Duration {
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Second
}
