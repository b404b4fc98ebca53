package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/searcher/executor"
)

func newSearchCmd(opts *options) *cobra.Command {
	var (
		req        executor.Request
		jsonOutput bool
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a query against the index",
		Example: `  segctl search -i ./data/index 'contents:"inverted index" -draft'
  segctl search -i ./data/index --op AND 'merge segments'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := opts.openDir(false)
			if err != nil {
				return err
			}
			defer dir.Close()
			a, err := analysis.ByName(opts.cfg.Index.Analyzer)
			if err != nil {
				return err
			}
			exec, err := executor.New(dir, a, opts.cfg.Search)
			if err != nil {
				return err
			}
			defer exec.Close()

			req.Query = args[0]
			res, err := exec.Execute(cmd.Context(), req)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			fmt.Fprintf(out, "%s\n%d total matching documents\n", res.Parsed, res.TotalHits)
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for i, hit := range res.Results {
				fmt.Fprintf(tw, "%d.\t%.4f\t%s\n", req.Offset+i+1, hit.Score, hit.Fields[indexer.IDField])
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&req.Field, "field", "", "default field for unqualified terms")
	cmd.Flags().StringVar(&req.Operator, "op", "", "default operator: AND or OR")
	cmd.Flags().IntVarP(&req.Limit, "limit", "n", 10, "number of hits to print")
	cmd.Flags().IntVar(&req.Offset, "offset", 0, "number of hits to skip")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print results as JSON")
	return cmd
}
