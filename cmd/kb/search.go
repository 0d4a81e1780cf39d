package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shirokuma-go/kb/internal/search"
	"github.com/shirokuma-go/kb/internal/ui"
)

var searchLimit int

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search items with the boolean query language, ranked by bm25",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		h, _, err := openEngine(ctx, false)
		if err != nil {
			return err
		}
		defer h.Close()

		hits, err := h.SearchItems(ctx, args[0], searchLimit)
		if err != nil {
			return err
		}

		if jsonOutput {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(hits)
		}

		out := cmd.OutOrStdout()
		if len(hits) == 0 {
			fmt.Fprintln(out, ui.RenderMuted("(no matches)"))
			return nil
		}
		fmt.Fprintln(out, ui.RenderTable([]string{"type", "id", "score", "snippet"}, hitRows(hits), ui.GetWidth()))
		return nil
	},
}

func hitRows(hits []search.Hit) [][]string {
	rows := make([][]string, 0, len(hits))
	for _, hit := range hits {
		snippet := strings.ReplaceAll(hit.Snippet, "\n", " ")
		rows = append(rows, []string{hit.Type, hit.ID, strconv.FormatFloat(hit.Score, 'f', 3, 64), snippet})
	}
	return rows
}

func init() {
	searchCmd.Flags().IntVar(&searchLimit, "limit", 20, "maximum results to return")
	rootCmd.AddCommand(searchCmd)
}
