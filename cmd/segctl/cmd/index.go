package cmd

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/segment-search/internal/indexer"
)

// Fields of an indexed file. The path is the document id so files can be
// deleted or replaced by path.
const (
	modifiedField = "modified"
	nameField     = indexer.TitleField
)

func newIndexCmd(opts *options) *cobra.Command {
	var create, optimize bool
	cmd := &cobra.Command{
		Use:   "index <path>...",
		Short: "Add files to the index",
		Long: `Index every regular file under the given paths. Each file becomes a
document with its path as id, its base name as title, its modification time
as a date keyword and its text as unstored contents.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := opts.openDir(create)
			if err != nil {
				return err
			}
			defer dir.Close()

			engine, err := indexer.NewEngine(dir, opts.cfg.Index, nil)
			if err != nil {
				return err
			}
			n, indexErr := indexPaths(cmd.Context(), engine, args)
			if indexErr == nil && optimize {
				indexErr = engine.Optimize(cmd.Context())
			}
			if err := engine.Close(); err != nil && indexErr == nil {
				indexErr = err
			}
			if indexErr != nil {
				return indexErr
			}
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d files into %s\n", n, opts.cfg.Index.DataDir)
			return nil
		},
	}
	cmd.Flags().BoolVar(&create, "create", false, "replace any existing index")
	cmd.Flags().BoolVar(&optimize, "optimize", false, "merge into one segment when done")
	return cmd
}

func indexPaths(ctx context.Context, engine *indexer.Engine, roots []string) (int, error) {
	n := 0
	for _, root := range roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if !d.Type().IsRegular() {
				return nil
			}
			if err := indexFile(engine, path); err != nil {
				return err
			}
			n++
			return nil
		})
		if err != nil {
			return n, fmt.Errorf("indexing %s: %w", root, err)
		}
	}
	return n, nil
}

func indexFile(engine *indexer.Engine, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}
	modified, err := document.DateToString(info.ModTime())
	if err != nil {
		return err
	}
	doc := document.New(
		document.Keyword(indexer.IDField, filepath.ToSlash(path)),
		document.Text(nameField, filepath.Base(path)),
		document.Keyword(modifiedField, modified),
		document.TextReader(indexer.ContentsField, f),
	)
	return engine.IndexDocument(doc)
}
