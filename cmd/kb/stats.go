package main

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/shirokuma-go/kb/internal/ui"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show item counts by type and status, tag and dangling-reference totals",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		h, _, err := openEngine(ctx, false)
		if err != nil {
			return err
		}
		defer h.Close()

		stats, err := h.GetStats(ctx)
		if err != nil {
			return err
		}

		if jsonOutput {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s\n\n", ui.RenderBold(fmt.Sprintf("%d items total", stats.TotalItems)))

		fmt.Fprintln(out, ui.RenderAccent("By type:"))
		fmt.Fprintln(out, ui.RenderTable([]string{"type", "count"}, countRows(stats.ItemsByType), ui.GetWidth()))

		fmt.Fprintln(out, ui.RenderAccent("By status:"))
		fmt.Fprintln(out, ui.RenderTable([]string{"status", "count"}, countRows(stats.ItemsByStatus), ui.GetWidth()))

		fmt.Fprintf(out, "%d tags, %d statuses, %d types, %d dangling reference(s)\n",
			stats.TotalTags, stats.TotalStatuses, stats.TotalTypes, stats.DanglingRefs)
		if stats.DanglingRefs > 0 {
			fmt.Fprintln(out, ui.RenderWarn("run `kb rebuild` or inspect relations to resolve dangling references"))
		}
		return nil
	},
}

func countRows(m map[string]int64) [][]string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []string{k, fmt.Sprintf("%d", m[k])})
	}
	return rows
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
