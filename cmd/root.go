package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/minidosis/minidosis/internal/config"
	"github.com/minidosis/minidosis/internal/index"
	"github.com/minidosis/minidosis/internal/logging"
	"github.com/minidosis/minidosis/internal/metrics"
)

var configPath string

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")
}

var rootCmd = &cobra.Command{
	Use:   "minidosis",
	Short: "Minidosis: a linked graph of small topic files",
	Long: `Minidosis reads a directory tree of topic files, links every topic to
its bases, children and related topics, and keeps the graph current while
the files change.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app is what every subcommand needs: settings, a logger and a built index.
type app struct {
	cfg   *config.Config
	log   *zap.Logger
	index *index.Index
}

// openIndex loads configuration and builds the graph once.
func openIndex(ctx context.Context, m *metrics.Metrics) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	ix := index.New(cfg, log, m)
	if err := ix.Rebuild(ctx); err != nil {
		_ = log.Sync()
		return nil, err
	}
	return &app{cfg: cfg, log: log, index: ix}, nil
}

func (a *app) close() {
	_ = a.index.Close()
	_ = a.log.Sync()
}
