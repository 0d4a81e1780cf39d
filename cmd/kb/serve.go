package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shirokuma-go/kb/internal/toolserver"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Speak the line-delimited JSON tool protocol on stdin/stdout",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		h, _, err := openEngine(ctx, true)
		if err != nil {
			return err
		}
		defer h.Close()

		srv := toolserver.New(h, nil)
		return srv.Serve(ctx, os.Stdin, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
