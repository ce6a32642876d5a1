// Command fmmcp is the server entrypoint: it wires the PersistenceAdapter
// and ToolRegistry once at startup, then runs either the HTTP or stdio
// transport according to SERVER_MODE (spec §4.8).
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fortunamind/persistent-mcp/pkg/api"
	"github.com/fortunamind/persistent-mcp/pkg/identity"
	"github.com/fortunamind/persistent-mcp/pkg/logger"
	"github.com/fortunamind/persistent-mcp/pkg/persistence"
	"github.com/fortunamind/persistent-mcp/pkg/ratelimit"
	"github.com/fortunamind/persistent-mcp/pkg/serverconfig"
	"github.com/fortunamind/persistent-mcp/pkg/stdiotransport"
	"github.com/fortunamind/persistent-mcp/pkg/storage"
	"github.com/fortunamind/persistent-mcp/pkg/storage/memory"
	"github.com/fortunamind/persistent-mcp/pkg/storage/postgres"
	"github.com/fortunamind/persistent-mcp/pkg/subscription"
	"github.com/fortunamind/persistent-mcp/pkg/tier"
	"github.com/fortunamind/persistent-mcp/pkg/tools"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fmmcp: %v\n", err)
		os.Exit(exitCodeFor(err))
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "fmmcp",
		Short:        "Subscription-gated, multi-tenant MCP server",
		SilenceUsage: true,
		RunE:         runServer,
	}
	if err := serverconfig.BindFlags(cmd.Flags()); err != nil {
		panic(err)
	}
	return cmd
}

func runServer(_ *cobra.Command, _ []string) error {
	cfg, err := serverconfig.Load()
	if err != nil {
		return fmt.Errorf("%w: %v", stdiotransport.ErrFatalConfig, err)
	}

	log := logger.New(cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	adapter, closeFn, err := buildAdapter(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("%w: %v", stdiotransport.ErrFatalConfig, err)
	}
	defer closeFn()

	switch cfg.ServerMode {
	case serverconfig.ModeStdio:
		creds := stdiotransport.CredentialsFromEnv()
		if err := stdiotransport.Run(ctx, os.Stdin, os.Stdout, creds, adapter, log); err != nil {
			return fmt.Errorf("%w: %v", stdiotransport.ErrUnrecoverable, err)
		}
		return nil
	default:
		if err := api.Serve(ctx, cfg.Addr(), adapter, log); err != nil {
			return fmt.Errorf("%w: %v", stdiotransport.ErrUnrecoverable, err)
		}
		return nil
	}
}

// buildAdapter wires the PersistenceAdapter's collaborators per spec §4,
// choosing the Postgres-backed storage/registry when DATABASE_URL is
// configured and falling back to the in-memory/sqlite test double
// otherwise, the same shape pkg/persistence's own tests use.
func buildAdapter(ctx context.Context, cfg serverconfig.Config, log *zap.SugaredLogger) (*persistence.Adapter, func(), error) {
	var backend storage.Backend
	var registry subscription.Registry
	closeFn := func() {}

	if cfg.DatabaseURL != "" {
		store, err := postgres.Open(ctx, cfg.DatabaseURL, log)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := store.Migrate(ctx); err != nil {
			return nil, nil, fmt.Errorf("migrate postgres: %w", err)
		}
		backend = store
		registry = subscription.NewPostgresRegistry(store.Pool())
		closeFn = func() { _ = store.Close() }
	} else {
		store, err := memory.Open(ctx, ":memory:")
		if err != nil {
			return nil, nil, fmt.Errorf("open in-memory store: %w", err)
		}
		if err := store.Migrate(ctx); err != nil {
			return nil, nil, fmt.Errorf("migrate in-memory store: %w", err)
		}
		backend = store
		registry = subscription.NewStaticRegistry()
		closeFn = func() { _ = store.Close() }
	}

	var validatorOpts []subscription.Option
	var limiter ratelimit.Limiter = ratelimit.NewLocal(tier.New())
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		validatorOpts = append(validatorOpts, subscription.WithRedis(client, "fm:sub:"))
		limiter = ratelimit.NewRedis(client, "fm:rate:", tier.New(), log)
	}

	validator := subscription.New(registry, log, validatorOpts...)
	toolRegistry := tools.NewRegistry(tier.New(), log)
	tools.RegisterBuiltins(toolRegistry)
	deriver := identity.New(cfg.IdentityNamespace)

	adapter := persistence.New(deriver, validator, limiter, toolRegistry, backend, log)
	return adapter, closeFn, nil
}

func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return stdiotransport.ExitClean
	case errors.Is(err, stdiotransport.ErrUnrecoverable):
		return stdiotransport.ExitUnrecoverableDown
	default:
		return stdiotransport.ExitFatalConfig
	}
}
