package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	servePort   int
	serveNoOpen bool
)

var serveCmd = &cobra.Command{
	Use:   "serve <artifact.html>",
	Short: "Serve a previously exported globe",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if _, err := os.Stat(args[0]); err != nil {
			return eris.Wrapf(err, "serve: artifact %s", args[0])
		}
		if cmd.Flags().Changed("port") {
			cfg.Publish.Port = servePort
		}
		if serveNoOpen {
			cfg.Publish.OpenBrowser = false
		}

		srv, err := publishArtifact(ctx, cfg, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), srv.URL(filepath.Base(args[0])))

		zap.L().Info("serve: running until interrupted", zap.Int("port", srv.Port()))
		return srv.Wait()
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "preferred port (default from config)")
	serveCmd.Flags().BoolVar(&serveNoOpen, "no-open", false, "do not open a browser")
	rootCmd.AddCommand(serveCmd)
}
