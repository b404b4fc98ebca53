package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/index"
)

func newTermsCmd(opts *options) *cobra.Command {
	var (
		from  string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "terms <field>",
		Short: "List the terms of a field with their document frequencies",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := opts.openDir(false)
			if err != nil {
				return err
			}
			defer dir.Close()
			r, err := index.Open(dir)
			if err != nil {
				return err
			}
			defer r.Close()

			field := args[0]
			enum, err := r.TermsFrom(index.NewTerm(field, from))
			if err != nil {
				return err
			}
			defer enum.Close()

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for n := 0; limit <= 0 || n < limit; n++ {
				t := enum.Term()
				if t == nil || t.Field != field {
					break
				}
				fmt.Fprintf(tw, "%s\t%d\n", t.Text, enum.DocFreq())
				more, err := enum.Next()
				if err != nil {
					return err
				}
				if !more {
					break
				}
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "start at the first term >= this text")
	cmd.Flags().IntVarP(&limit, "limit", "n", 100, "maximum terms to list, 0 for all")
	return cmd
}

type indexInfo struct {
	Path     string        `json:"path"`
	Locked   bool          `json:"locked"`
	Modified string        `json:"modified"`
	NumDocs  int           `json:"num_docs"`
	MaxDoc   int           `json:"max_doc"`
	Fields   []string      `json:"fields"`
	Segments []segmentInfo `json:"segments"`
}

type segmentInfo struct {
	Name     string `json:"name"`
	DocCount int    `json:"doc_count"`
}

func newInfoCmd(opts *options) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show segments, document counts and fields",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := opts.openDir(false)
			if err != nil {
				return err
			}
			defer dir.Close()
			if !index.IndexExists(dir) {
				return fmt.Errorf("no index at %s", opts.cfg.Index.DataDir)
			}

			info := indexInfo{Path: opts.cfg.Index.DataDir, Locked: index.IsLocked(dir)}
			if mod, err := index.LastModified(dir); err == nil {
				info.Modified = mod.UTC().Format(time.RFC3339)
			}
			locker := dir.Locker()
			locker.Lock()
			infos, err := index.ReadSegmentInfos(dir)
			locker.Unlock()
			if err != nil {
				return err
			}
			for _, si := range infos.Segments {
				info.Segments = append(info.Segments, segmentInfo{Name: si.Name, DocCount: si.DocCount})
			}

			r, err := index.Open(dir)
			if err != nil {
				return err
			}
			info.NumDocs = r.NumDocs()
			info.MaxDoc = r.MaxDoc()
			info.Fields = r.FieldNames()
			if err := r.Close(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}
			fmt.Fprintf(out, "index:    %s\n", info.Path)
			fmt.Fprintf(out, "modified: %s\n", info.Modified)
			fmt.Fprintf(out, "locked:   %t\n", info.Locked)
			fmt.Fprintf(out, "docs:     %d live of %d\n", info.NumDocs, info.MaxDoc)
			fmt.Fprintf(out, "fields:   %v\n", info.Fields)
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SEGMENT\tDOCS")
			for _, si := range info.Segments {
				fmt.Fprintf(tw, "%s\t%d\n", si.Name, si.DocCount)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print as JSON")
	return cmd
}
