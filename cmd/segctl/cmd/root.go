// Package cmd implements the segctl subcommands.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/store"
	"github.com/Adithya-Monish-Kumar-K/segment-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/segment-search/pkg/logger"
)

type options struct {
	configPath string
	indexPath  string
	dirKind    string
	analyzer   string
	logLevel   string
	cfg        *config.Config
}

// NewRootCmd builds the segctl command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "segctl",
		Short: "Manage and query a segment index",
		Long: `segctl works on an index directory in place: it adds files, deletes
documents, merges segments and runs queries using the same query syntax as
the search service.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to a service config file")
	flags.StringVarP(&opts.indexPath, "index", "i", "", "index directory (overrides index.dataDir)")
	flags.StringVar(&opts.dirKind, "dir", "", "directory implementation: fs or mmap")
	flags.StringVar(&opts.analyzer, "analyzer", "", "analyzer: simple, stop or standard")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level")

	cmd.AddCommand(newIndexCmd(opts))
	cmd.AddCommand(newSearchCmd(opts))
	cmd.AddCommand(newDeleteCmd(opts))
	cmd.AddCommand(newOptimizeCmd(opts))
	cmd.AddCommand(newTermsCmd(opts))
	cmd.AddCommand(newInfoCmd(opts))
	return cmd
}

// Execute runs segctl until it finishes or is interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}

func (o *options) load(cmd *cobra.Command) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	if o.indexPath != "" {
		cfg.Index.DataDir = o.indexPath
	}
	if o.dirKind != "" {
		cfg.Index.Directory = o.dirKind
	}
	if o.analyzer != "" {
		cfg.Index.Analyzer = o.analyzer
	}
	if cfg.Index.Directory == "ram" {
		return fmt.Errorf("segctl needs a persistent directory, not %q", cfg.Index.Directory)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	slog.SetDefault(logger.New(cmd.ErrOrStderr(), o.logLevel, "text"))
	o.cfg = cfg
	return nil
}

func (o *options) openDir(create bool) (store.Directory, error) {
	if !create {
		if _, err := os.Stat(o.cfg.Index.DataDir); err != nil {
			return nil, fmt.Errorf("no index at %s: %w", o.cfg.Index.DataDir, err)
		}
	}
	return store.Open(o.cfg.Index.Directory, o.cfg.Index.DataDir, create)
}
