package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/meetsmatch/matchengine/internal/cache"
	"github.com/meetsmatch/matchengine/internal/config"
	"github.com/meetsmatch/matchengine/internal/database"
	apperrors "github.com/meetsmatch/matchengine/internal/errors"
	"github.com/meetsmatch/matchengine/internal/matching"
	"github.com/meetsmatch/matchengine/internal/monitoring"
	"github.com/meetsmatch/matchengine/internal/telemetry"
)

var version = "dev"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(stderr, "Warning: error loading .env file: %v\n", err)
	}

	cmd, err := parseCommand(args, stderr)
	if err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(stderr, err)
			fmt.Fprint(stderr, usage)
			return 2
		}
		fmt.Fprintln(stderr, err)
		return 1
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load configuration: %v\n", err)
		return 1
	}
	if !cmd.limitSet {
		cmd.limit = cfg.Engine.DefaultLimit
	}
	if err := telemetry.InitGlobalLogger(&cfg.Log); err != nil {
		fmt.Fprintf(stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = telemetry.EnsureCorrelationID(ctx)
	logger := telemetry.LogFromContext(ctx).WithFields(map[string]interface{}{
		"operation": "cli",
		"command":   cmd.name,
	})

	shutdownTelemetry, err := telemetry.InitializeOpenTelemetry(ctx, &cfg.Telemetry)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize OpenTelemetry")
		return 1
	}
	defer shutdownTelemetry()

	engine, health, cleanup, err := buildEngine(ctx, cfg)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize engine")
		return 1
	}
	defer cleanup()

	if err := execute(ctx, engine, health, cmd, stdout); err != nil {
		reportError(stderr, err)
		return 1
	}
	return 0
}

// buildEngine wires storage, the optional Redis ledger and instrumentation
func buildEngine(ctx context.Context, cfg *config.Config) (*matching.Engine, *monitoring.HealthChecker, func(), error) {
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return nil, nil, nil, err
	}
	closers := []func(){func() { _ = db.Close() }}
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	store := database.NewPostgresStore(db)
	health := monitoring.NewHealthChecker("matchengine", version, 5*time.Second)
	health.RegisterDatabaseCheck("database", db.DB)

	inst, err := monitoring.NewEngineInstrumentation()
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}
	opts := []matching.Option{
		matching.WithPolicy(cfg.Engine),
		matching.WithInstrumentation(inst),
	}

	if cfg.Redis.Enabled {
		client, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			cleanup()
			return nil, nil, nil, err
		}
		closers = append(closers, func() { _ = client.Close() })

		ledger := cache.NewRecommendationLedger(client, store, cfg.Redis)
		opts = append(opts, matching.WithHistory(ledger), matching.WithMarker(ledger))
		health.RegisterCheck("redis", ledger.HealthCheck, 500*time.Millisecond, func() interface{} {
			return ledger.Stats()
		})
	}

	return matching.NewEngine(store, opts...), health, cleanup, nil
}

// reportError prints AppErrors as JSON and anything else as text
func reportError(w io.Writer, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if data, jsonErr := appErr.ToJSON(); jsonErr == nil {
			fmt.Fprintln(w, string(data))
			return
		}
	}
	fmt.Fprintln(w, err)
}
