package cli

import (
	"context"
	"log/slog"

	"github.com/roach88/roomstore/internal/config"
	"github.com/roach88/roomstore/internal/engine"
	"github.com/roach88/roomstore/internal/record"
	"github.com/roach88/roomstore/internal/replay"
	"github.com/roach88/roomstore/internal/store"
)

// runtime is an opened store plus the engine built on it.
type runtime struct {
	cfg    *config.Config
	store  record.Store
	engine *engine.Engine
}

// loadConfig reads the configuration and applies the --db override.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.DB != "" {
		cfg.Storage.Path = opts.DB
	}
	return cfg, nil
}

func openRuntime(ctx context.Context, opts *RootOptions) (*runtime, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	pol, err := cfg.Policy()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid room patterns", err)
	}

	slog.Debug("opening storage", "driver", cfg.Storage.Driver, "path", cfg.Storage.Path)
	st, err := store.OpenBackend(ctx, cfg.Storage)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open storage", err)
	}

	eng := engine.New(st, offlineRegistry{}, discardSender{},
		engine.WithPolicy(pol),
		engine.WithFlags(cfg.ReplayFlags()),
		engine.WithDefaultRoom(cfg.DefaultRoom),
		engine.WithLogger(slog.Default()),
	)
	return &runtime{cfg: cfg, store: st, engine: eng}, nil
}

func (r *runtime) Close() {
	if err := r.store.Close(); err != nil {
		slog.Error("error closing storage", "error", err)
	}
}

// operator is the identity used for events issued from the command line.
type operator struct{}

func (operator) Username() string { return "roomstore-cli" }
func (operator) Identity() record.Identity {
	return record.Identity{ID: "roomstore-cli", Username: "roomstore-cli"}
}

// offlineRegistry stands in for a room registry when no server is running:
// no room is live and no one can receive private records.
type offlineRegistry struct{}

func (offlineRegistry) IsRoomLive(string) bool { return false }
func (offlineRegistry) LiveGlobalVariables(string) replay.LiveVariables {
	return replay.NewMapVariables(nil)
}
func (offlineRegistry) ResolveRecipients(context.Context, string, string) ([]engine.Client, error) {
	return nil, nil
}

type discardSender struct{}

func (discardSender) Send(context.Context, engine.Client, replay.OutboundEvent) error { return nil }
