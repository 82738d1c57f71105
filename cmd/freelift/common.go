package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/claude/freelift/internal/config"
	"github.com/claude/freelift/internal/storage"
	"github.com/claude/freelift/internal/storage/memory"
	"github.com/claude/freelift/internal/storage/sqlite"
	"github.com/spf13/cobra"
)

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: cfg.Logging.SlogLevel()}))
}

// newTextLogger is for commands that run without a config file.
func newTextLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// openStore connects the configured backend. Postgres migrations run first
// so every command sees the current schema; sqlite applies its schema on open.
func openStore(ctx context.Context, cfg *config.Config, migrationsPath string, log *slog.Logger) (storage.Store, error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		dsn := cfg.Database.DSN()
		if err := storage.RunMigrations(dsn, migrationsPath); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		log.Info("migrations applied")
		db, err := storage.New(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		log.Info("database connected", "driver", cfg.Database.Driver, "host", cfg.Database.Host)
		return db, nil
	case config.DriverSQLite:
		s, err := sqlite.Open(cfg.Database.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		log.Info("database opened", "driver", cfg.Database.Driver, "path", cfg.Database.Path)
		return s, nil
	case config.DriverMemory:
		log.Warn("using in-memory store, nothing will be kept after exit")
		return memory.New(), nil
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
}
