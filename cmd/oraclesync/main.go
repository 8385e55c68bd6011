package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alejandrodnm/oraclesync/config"
	"github.com/alejandrodnm/oraclesync/internal/actions"
	"github.com/alejandrodnm/oraclesync/internal/adapters/notify"
	"github.com/alejandrodnm/oraclesync/internal/adapters/redis"
	"github.com/alejandrodnm/oraclesync/internal/adapters/storage"
	"github.com/alejandrodnm/oraclesync/internal/adapters/toncenter"
	"github.com/alejandrodnm/oraclesync/internal/ports"
	"github.com/alejandrodnm/oraclesync/internal/reconciler"
)

// tokenDecimals is the precision of the oracle token (nano units).
const tokenDecimals = 9

// store is what both storage backends provide.
type store interface {
	ports.CacheStore
	ports.ParticipantStore
	ports.VoteMarkerStore
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	once := flag.Bool("once", false, "run one reconciliation pass and exit")
	dryRun := flag.Bool("dry-run", false, "keep the cache in memory instead of SQLite")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	network := flag.String("network", "", "network to follow: mainnet|testnet (overrides config)")
	winners := flag.Bool("winners", false, "reconcile once, then print the winners of resolved markets")
	flag.Parse()

	if *network != "" {
		_ = os.Setenv("ORACLE_NETWORK", *network)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	net := cfg.Network()
	protocol := cfg.ProtocolValues()
	slog.Info("oraclesync starting",
		"config", *configPath,
		"network", net.Network,
		"keyed", net.HasAPIKey(),
		"interval", cfg.ReconcileInterval(),
		"dry_run", *dryRun,
		"once", *once,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, err := openStore(cfg, *dryRun)
	if err != nil {
		slog.Error("failed to open cache", "err", err, "dsn", cfg.Cache.DSN)
		os.Exit(1)
	}
	defer st.Close()

	votes, closeVotes, err := openVotes(ctx, cfg, st)
	if err != nil {
		slog.Error("failed to open vote markers", "err", err, "backend", cfg.Votes.Backend)
		os.Exit(1)
	}
	defer closeVotes()

	client := toncenter.NewClient(net, cfg.CallTimeout())
	console := notify.NewConsole(protocol, tokenDecimals)

	rcfg := reconciler.DefaultConfig(net)
	rcfg.Protocol = protocol
	rcfg.Interval = cfg.ReconcileInterval()
	rcfg.PublicBatch = reconciler.BatchPolicy{Size: cfg.Reconciler.Public.Size, Delay: cfg.Reconciler.Public.Delay()}
	rcfg.KeyedBatch = reconciler.BatchPolicy{Size: cfg.Reconciler.Keyed.Size, Delay: cfg.Reconciler.Keyed.Delay()}
	rcfg.Retry = reconciler.RetryPolicy{
		MaxAttempts: cfg.Reconciler.Retry.MaxAttempts,
		BaseDelay:   cfg.Reconciler.Retry.BaseDelay(),
		MaxDelay:    cfg.Reconciler.Retry.MaxDelay(),
		CallTimeout: cfg.CallTimeout(),
	}
	rcfg.ProgressReset = cfg.ProgressReset()
	rcfg.Once = *once
	rcfg.OnProgress = console.PrintProgress

	r := reconciler.New(rcfg, reconciler.Deps{
		Ledger:       client,
		History:      client,
		Cache:        st,
		Participants: st,
		Notifier:     console,
	})

	if *winners {
		svc := actions.New(net.Network, protocol, actions.Deps{
			Staking:      client,
			Cache:        st,
			Participants: st,
			Votes:        votes,
		}, nil)
		runWinners(ctx, r, svc, console, protocol)
		return
	}

	if err := r.Run(ctx); err != nil {
		slog.Error("reconciler exited with error", "err", err)
		os.Exit(1)
	}

	slog.Info("oraclesync stopped cleanly")
}

func openStore(cfg *config.Config, dryRun bool) (store, error) {
	opts := storage.Options{OptimisticTTL: cfg.OptimisticTTL()}
	if dryRun {
		return storage.NewMemoryStore(opts), nil
	}
	return storage.NewSQLiteStore(cfg.Cache.DSN, opts)
}

// openVotes picks the vote marker backend. The sqlite backend shares the
// cache store, so its close func is a no-op.
func openVotes(ctx context.Context, cfg *config.Config, st store) (ports.VoteMarkerStore, func(), error) {
	if cfg.Votes.Backend != "redis" {
		return st, func() {}, nil
	}
	rc := cfg.Votes.Redis
	client, err := redis.New(ctx, redis.ClientConfig{
		Addr:      rc.Addr,
		Password:  rc.Password,
		DB:        rc.DB,
		KeyPrefix: rc.KeyPrefix,
	})
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := client.Close(); err != nil {
			slog.Warn("redis close", "err", err)
		}
	}
	return redis.NewVoteMarkers(client, cfg.VoteMarkerTTL()), closeFn, nil
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
