package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rescan the data root and rebuild the relational index from Markdown",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		h, _, err := openEngine(ctx, false)
		if err != nil {
			return err
		}
		defer h.Close()

		report, err := h.Rebuild(ctx)
		if err != nil {
			return err
		}

		if jsonOutput {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "indexed %d items, skipped %d files, seeded types: %v\n",
			report.ItemsIndexed, report.FilesSkipped, report.TypesSeeded)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rebuildCmd)
}
