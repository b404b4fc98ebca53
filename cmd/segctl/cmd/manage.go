package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/index"
	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/indexer"
)

func newDeleteCmd(opts *options) *cobra.Command {
	var field string
	cmd := &cobra.Command{
		Use:   "delete <value>...",
		Short: "Delete every document whose field equals a value",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := opts.openDir(false)
			if err != nil {
				return err
			}
			defer dir.Close()
			if index.IsLocked(dir) {
				return fmt.Errorf("index %s is locked by a writer", opts.cfg.Index.DataDir)
			}
			r, err := index.Open(dir)
			if err != nil {
				return err
			}
			total := 0
			for _, v := range args {
				n, err := r.DeleteTerm(index.NewTerm(field, v))
				if err != nil {
					r.Close()
					return err
				}
				total += n
			}
			if err := r.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d documents\n", total)
			return nil
		},
	}
	cmd.Flags().StringVar(&field, "field", indexer.IDField, "field to match values against")
	return cmd
}

func newOptimizeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "optimize",
		Short: "Merge the index into a single segment and purge deletions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := opts.openDir(false)
			if err != nil {
				return err
			}
			defer dir.Close()
			engine, err := indexer.NewEngine(dir, opts.cfg.Index, nil)
			if err != nil {
				return err
			}
			optErr := engine.Optimize(cmd.Context())
			if err := engine.Close(); err != nil && optErr == nil {
				optErr = err
			}
			if optErr != nil {
				return optErr
			}
			fmt.Fprintln(cmd.OutOrStdout(), "index optimized")
			return nil
		},
	}
}
