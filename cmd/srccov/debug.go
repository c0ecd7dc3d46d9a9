package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jupierce/source-coverage/pkg/data"
	"github.com/jupierce/source-coverage/pkg/files"
)

func newDebugCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "debug",
		Short: "Show internal information",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "data",
		Short: "Summarize what the data file holds",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			store, err := loadOrNew(cmd.Context(), cfg.DataFile)
			if err != nil {
				return err
			}
			path, err := filepath.Abs(cfg.DataFile)
			if err != nil {
				path = cfg.DataFile
			}
			fmt.Fprint(cmd.OutOrStdout(), describeData(path, store, cfg.Report.Root))
			return nil
		},
	})

	return cmd
}

// describeData renders the files, contexts and runs of store, one per line.
func describeData(path string, store *data.Store, root string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "-- data %s\n", strings.Repeat("-", 50))
	fmt.Fprintf(&b, "path: %s\n", path)
	fmt.Fprintf(&b, "mode: %s\n", store.Mode())

	measured := store.MeasuredFiles()
	if len(measured) == 1 {
		b.WriteString("1 file:\n")
	} else {
		fmt.Fprintf(&b, "%d files:\n", len(measured))
	}
	sel := files.Selector{Root: root}
	for _, key := range sel.Select(measured) {
		name := files.RelativeName(key, root)
		if store.HasArcs() {
			fmt.Fprintf(&b, "%s: %d arcs\n", name, len(store.Arcs(key)))
		} else {
			fmt.Fprintf(&b, "%s: %d lines\n", name, len(store.Lines(key)))
		}
	}

	if contexts := store.Contexts(); len(contexts) > 0 {
		quoted := make([]string, len(contexts))
		for i, c := range contexts {
			quoted[i] = fmt.Sprintf("%q", c)
		}
		fmt.Fprintf(&b, "contexts: %s\n", strings.Join(quoted, ", "))
	}
	for _, r := range store.Runs() {
		fmt.Fprintf(&b, "run %s: %s at %s", r.ID, r.Source, r.RecordedAt.Format("2006-01-02T15:04:05Z"))
		if r.Context != "" {
			fmt.Fprintf(&b, " [%s]", r.Context)
		}
		b.WriteString("\n")
	}
	return b.String()
}
