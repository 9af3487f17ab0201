package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/flightglobe/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "flightglobe",
	Short: "Export UAV trajectories to an animated 3D globe",
	Long:  "Loads a trajectory table, downsamples it, composes an animated CesiumJS scene with credential-gated imagery, writes a self-contained HTML file and serves it locally.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
