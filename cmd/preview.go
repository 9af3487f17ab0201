package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/flightglobe/internal/ingest"
	"github.com/sells-group/flightglobe/internal/preview"
	"github.com/sells-group/flightglobe/internal/trajectory"
)

var (
	previewDir  string
	previewFrom int
)

var previewCmd = &cobra.Command{
	Use:   "preview <trajectory.csv|.tsv|.xlsx>",
	Short: "Render 2D, 3D and altitude previews of a trajectory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		tbl, err := ingest.ReadFile(ctx, args[0])
		if err != nil {
			return err
		}
		traj, err := trajectory.Load(tbl)
		if err != nil {
			return eris.Wrapf(err, "preview: load %s", args[0])
		}
		traj = trajectory.SortByTime(traj).From(previewFrom)

		paths, err := preview.WriteAll(ctx, traj, previewDir)
		if err != nil {
			return err
		}
		for _, p := range paths {
			fmt.Fprintln(cmd.OutOrStdout(), p)
		}
		return nil
	},
}

func init() {
	previewCmd.Flags().StringVar(&previewDir, "dir", "previews", "output directory")
	previewCmd.Flags().IntVar(&previewFrom, "from", 0, "start at this sample index")
	rootCmd.AddCommand(previewCmd)
}
