// Command kb is the knowledge-base engine's CLI and tool-server
// entrypoint. Grounded on BeadsLog/cmd/bd's flat cobra command package:
// one file per command, each registering itself onto rootCmd from its
// own init(), with persistent flags on rootCmd shared by every
// subcommand.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	dataDirFlag string
	jsonOutput  bool
)

var rootCmd = &cobra.Command{
	Use:   "kb",
	Short: "A Markdown-backed personal knowledge base with a SQLite search index",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "data root (defaults to the resolved config's data_dir)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "emit machine-readable JSON instead of a table")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
