package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shirokuma-go/kb/internal/itemstore"
	"github.com/shirokuma-go/kb/internal/kbtypes"
	"github.com/shirokuma-go/kb/internal/ui"
)

var (
	listType          string
	listStatuses      []string
	listIncludeClosed bool
	listLimit         int
	listOffset        int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List items, optionally filtered by type and status",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		h, _, err := openEngine(ctx, false)
		if err != nil {
			return err
		}
		defer h.Close()

		items, err := h.ListItems(ctx, itemstore.ListParams{
			Type:          listType,
			IncludeClosed: listIncludeClosed,
			Statuses:      listStatuses,
			Limit:         listLimit,
			Offset:        listOffset,
		})
		if err != nil {
			return err
		}

		if jsonOutput {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(items)
		}

		out := cmd.OutOrStdout()
		if len(items) == 0 {
			fmt.Fprintln(out, ui.RenderMuted("(no items)"))
			return nil
		}
		fmt.Fprintln(out, ui.RenderTable([]string{"type", "id", "title", "status", "priority", "tags"}, summaries(items), ui.GetWidth()))
		return nil
	},
}

func summaries(items []kbtypes.Summary) [][]string {
	rows := make([][]string, 0, len(items))
	for _, it := range items {
		rows = append(rows, []string{
			it.Type,
			it.ID,
			it.Title,
			it.StatusName,
			string(it.Priority),
			strings.Join(it.Tags, ","),
		})
	}
	return rows
}

func init() {
	listCmd.Flags().StringVar(&listType, "type", "", "filter by item type")
	listCmd.Flags().StringSliceVar(&listStatuses, "status", nil, "filter by status name (repeatable)")
	listCmd.Flags().BoolVar(&listIncludeClosed, "include-closed", false, "include items in closed statuses")
	listCmd.Flags().IntVar(&listLimit, "limit", 50, "maximum items to return")
	listCmd.Flags().IntVar(&listOffset, "offset", 0, "offset into the result set")
	rootCmd.AddCommand(listCmd)
}
