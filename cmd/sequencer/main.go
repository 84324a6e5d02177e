package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ivlev/sequencer/internal/config"
	"github.com/ivlev/sequencer/internal/engine"
	"github.com/ivlev/sequencer/internal/logger"
	"github.com/ivlev/sequencer/internal/metrics"
	"github.com/ivlev/sequencer/internal/store"
	"github.com/ivlev/sequencer/internal/system"
)

// Set by the linker: -X main.version=...
var version = "dev"

var (
	configPath string
	envFile    string
	logLevel   string

	cfg *config.Config
	log *zap.Logger
	met = metrics.New()
)

var rootCmd = &cobra.Command{
	Use:           "sequencer",
	Short:         "Create, inspect and convert sequencer timelines.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var envFiles []string
		if envFile != "" {
			envFiles = append(envFiles, envFile)
		}
		c, err := config.Load(configPath, envFiles...)
		if err != nil {
			return err
		}
		if logLevel != "" {
			c.Log.Level = logLevel
		}
		c.BuildVersion = version
		l, err := logger.New(logger.Config{
			Level:      logger.Level(c.Log.Level),
			OutputPath: c.Log.File,
			MaxSize:    c.Log.MaxSize,
			MaxBackups: c.Log.MaxBackups,
			MaxAge:     c.Log.MaxAge,
			Compress:   c.Log.Compress,
		})
		if err != nil {
			return err
		}
		cfg, log = c, l
		// Увеличиваем лимит открытых файлов под воркеры
		system.InitResourceLimits(uint64(max(c.Workers, 1))*16+256, log)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "YAML config file")
	pf.StringVar(&envFile, "env", "", "env file (default .env)")
	pf.StringVar(&logLevel, "log-level", "", "debug, info, warn or error")

	rootCmd.AddCommand(newCmd, inspectCmd, upgradeCmd, exportCmd, importCmd,
		storyboardCmd, storeCmd, watchCmd, statsCmd)
}

// newSession opens a session on the configured store when withStore is set.
func newSession(ctx context.Context, withStore bool) (*engine.Session, error) {
	opts := engine.Options{Config: cfg, Metrics: met, Logger: log}
	if withStore {
		st, err := store.New(ctx, cfg.Store, log)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		opts.Store = st
	}
	return engine.NewSession(opts)
}

// openOrCreate loads path into a fresh session. A missing file yields an
// empty timeline.
func openOrCreate(ctx context.Context, path string) (*engine.Session, error) {
	s, err := newSession(ctx, false)
	if err != nil {
		return nil, err
	}
	if err := s.OpenFile(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return s, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "[-] Error: %v\n", err)
		os.Exit(1)
	}
}
