package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rustyeddy/optrack/archive"
	"github.com/rustyeddy/optrack/config"
	"github.com/rustyeddy/optrack/journal"
	"github.com/rustyeddy/optrack/lock"
	"github.com/rustyeddy/optrack/pkg/logger"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "optrack",
	Short: "Track option positions from brokerage exports",
	Long: `optrack rebuilds option positions from raw brokerage transaction exports.

It provides tools for:
  - Importing Schwab transaction CSVs, safely re-runnable
  - FIFO lot matching across partial closes
  - Multi-leg spreads, rolls, assignments and expirations
  - Listing positions as a table, Org mode or CSV

Configuration is read from --config (TOML, YAML or JSON), then OPTRACK_*
environment variables.`,
	SilenceUsage: true,
}

var (
	cfgFile  string
	dbPath   string
	logLevel string
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (TOML, YAML or JSON)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (overrides db.path)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
}

// env is what every subcommand needs after flags are parsed.
type env struct {
	cfg   *config.Config
	log   zerolog.Logger
	store journal.Store
}

func (e *env) Close() {
	if e.store != nil {
		_ = e.store.Close()
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.DB.Driver = "sqlite"
		cfg.DB.Path = dbPath
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, cfg.Validate()
}

func setup(ctx context.Context) (*env, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, log: log, store: store}, nil
}

func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (journal.Store, error) {
	switch cfg.DB.Driver {
	case "postgres":
		s, err := journal.NewPostgres(ctx, cfg.DB.DSN, cfg.DB.MaxConns, log)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return s, nil
	default:
		s, err := journal.NewSQLite(cfg.DB.Path, log)
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		return s, nil
	}
}

// newLocker returns the configured lock and a function releasing its
// connection.
func newLocker(ctx context.Context, cfg *config.Config) (lock.Locker, func(), error) {
	switch cfg.Lock.Type {
	case "redis":
		r, err := lock.NewRedis(ctx, lock.RedisConfig{
			Addr:     cfg.Lock.Redis.Addr,
			Password: cfg.Lock.Redis.Password,
			DB:       cfg.Lock.Redis.DB,
		})
		if err != nil {
			return nil, nil, err
		}
		return r, func() { _ = r.Close() }, nil
	case "file":
		dir := os.TempDir()
		if cfg.DB.Driver == "sqlite" {
			dir = filepath.Dir(cfg.DB.Path)
		}
		return lock.NewFile(dir), func() {}, nil
	default:
		return lock.Nop{}, func() {}, nil
	}
}

func newArchiver(ctx context.Context, cfg *config.Config) (archive.Archiver, error) {
	var a archive.Archiver
	switch cfg.Archive.Type {
	case "dir":
		a = archive.NewDir(cfg.Archive.Dir)
	case "s3":
		s3, err := archive.NewS3(ctx, cfg.Archive.S3)
		if err != nil {
			return nil, err
		}
		a = s3
	default:
		return archive.Nop{}, nil
	}
	if cfg.Archive.Compress {
		a = archive.XZ{Inner: a}
	}
	return a, nil
}
