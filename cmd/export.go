package main

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/flightglobe/internal/artifact"
	"github.com/sells-group/flightglobe/internal/config"
	"github.com/sells-group/flightglobe/internal/ingest"
	"github.com/sells-group/flightglobe/internal/provider"
	"github.com/sells-group/flightglobe/internal/publish"
	"github.com/sells-group/flightglobe/internal/scene"
	"github.com/sells-group/flightglobe/internal/trajectory"
)

var (
	exportStride  int
	exportOut     string
	exportToken   string
	exportPort    int
	exportGeoJSON string
	exportNoServe bool
	exportNoOpen  bool
)

var exportCmd = &cobra.Command{
	Use:   "export <trajectory.csv|.tsv|.xlsx>",
	Short: "Build the 3D globe for a trajectory and open it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		applyExportFlags(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}

		res, err := runExport(ctx, cfg, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), res.Handle.Path)

		if !cfg.Publish.Enabled {
			return nil
		}
		srv, err := publishArtifact(ctx, cfg, res.Handle.Path)
		if err != nil {
			// The artifact stands on its own; a publisher failure is not fatal.
			zap.L().Warn("export: artifact written but not served", zap.String("path", res.Handle.Path), zap.Error(err))
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), srv.URL(filepath.Base(res.Handle.Path)))

		zap.L().Info("export: serving until interrupted")
		return srv.Wait()
	},
}

func init() {
	exportCmd.Flags().IntVar(&exportStride, "stride", 0, "keep every n-th sample (default from config)")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "artifact path (default from config)")
	exportCmd.Flags().StringVar(&exportToken, "token", "", "Cesium ion access token; empty selects OpenStreetMap imagery")
	exportCmd.Flags().IntVar(&exportPort, "port", 0, "preferred publisher port (default from config)")
	exportCmd.Flags().StringVar(&exportGeoJSON, "geojson", "", "also write the path as GeoJSON to this file")
	exportCmd.Flags().BoolVar(&exportNoServe, "no-serve", false, "write the artifact without serving it")
	exportCmd.Flags().BoolVar(&exportNoOpen, "no-open", false, "serve without opening a browser")
	rootCmd.AddCommand(exportCmd)
}

// applyExportFlags lets explicitly set flags win over config.
func applyExportFlags(cmd *cobra.Command, c *config.Config) {
	f := cmd.Flags()
	if f.Changed("stride") {
		c.Export.Stride = exportStride
	}
	if f.Changed("out") {
		c.Export.Output = exportOut
	}
	if f.Changed("token") {
		c.Cesium.Token = exportToken
	}
	if f.Changed("port") {
		c.Publish.Port = exportPort
	}
	if f.Changed("geojson") {
		c.Export.GeoJSON = exportGeoJSON
	}
	if exportNoServe {
		c.Publish.Enabled = false
	}
	if exportNoOpen {
		c.Publish.OpenBrowser = false
	}
}

type exportResult struct {
	Handle  *artifact.Handle
	Summary trajectory.Summary
	Scene   *scene.Scene
}

// runExport is the synchronous pipeline: ingest, sample, select providers,
// compose and write. Input errors abort before anything is written.
func runExport(ctx context.Context, c *config.Config, input string) (*exportResult, error) {
	tbl, err := ingest.ReadFile(ctx, input)
	if err != nil {
		return nil, err
	}
	traj, err := trajectory.Load(tbl)
	if err != nil {
		return nil, eris.Wrapf(err, "export: load %s", input)
	}
	traj = trajectory.SortByTime(traj)

	sum := trajectory.Summarize(traj.Samples())
	zap.L().Info("export: trajectory loaded", sum.Fields()...)

	sampled, err := trajectory.Sample(traj, c.Export.Stride)
	if err != nil {
		return nil, err
	}
	zap.L().Info(fmt.Sprintf("%d points sampled", sampled.Len()),
		zap.Int("source", sampled.SourceLen()),
		zap.Int("stride", sampled.Stride()),
	)

	creds := provider.Credentials{Token: c.Cesium.Token}
	policy := provider.Select(creds)
	sc := scene.Compose(sampled, policy)

	h, err := artifact.Write(sc, policy, c.Export.Output,
		artifact.WithTitle(c.Export.Title),
		artifact.WithCesium(c.Cesium.BaseURL, c.Cesium.Version),
		artifact.WithCredentials(creds),
		artifact.WithSources(sourcesFor(c)),
	)
	if err != nil {
		return nil, err
	}

	if c.Export.GeoJSON != "" {
		if err := artifact.WriteGeoJSON(sc, c.Export.GeoJSON); err != nil {
			return nil, err
		}
	}

	return &exportResult{Handle: h, Summary: sum, Scene: sc}, nil
}

// sourcesFor maps config onto provider sources. With the tile proxy on,
// the primary layer asks the publisher for OSM tiles; the fallback layer
// stays on the upstream.
func sourcesFor(c *config.Config) provider.Sources {
	s := provider.Sources{
		OSMURL:          c.Imagery.OSMURL,
		OSMCredit:       c.Imagery.OSMCredit,
		IonImageryAsset: c.Imagery.IonImageryAsset,
		IonTerrainAsset: c.Imagery.IonTerrainAsset,
	}
	if c.Publish.Enabled && c.Publish.TileProxy {
		s.ProxyURL = publish.TileProxyRoute
	}
	return s
}

func publishConfig(c *config.Config) publish.Config {
	pc := publish.Config{
		Port:         c.Publish.Port,
		Scan:         c.Publish.PortScan,
		ReadyTimeout: time.Duration(c.Publish.ReadyTimeoutMS) * time.Millisecond,
	}
	if c.Publish.TileProxy {
		var opts []publish.TileProxyOption
		if c.Publish.TileCacheSize > 0 {
			opts = append(opts, publish.WithTileCache(publish.NewTileCache(c.Publish.TileCacheSize, time.Hour)))
		}
		opts = append(opts, publish.WithRateLimit(c.Publish.TileRPS, 4))
		pc.Tiles = publish.NewTileProxy(c.Imagery.OSMURL, opts...)
	}
	return pc
}

// publishArtifact serves the artifact's directory and, if configured,
// opens it in the browser. A browser failure is logged only.
func publishArtifact(ctx context.Context, c *config.Config, path string) (*publish.Server, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &publish.PublisherError{Op: "serve", Err: err}
	}

	srv, err := publish.Serve(ctx, filepath.Dir(abs), publishConfig(c))
	if err != nil {
		return nil, err
	}

	url := srv.URL(filepath.Base(abs))
	zap.L().Info("export: artifact available", zap.String("url", url))
	if c.Publish.OpenBrowser {
		if err := publish.Open(url); err != nil {
			zap.L().Warn("export: could not open browser", zap.Error(err))
		}
	}
	return srv, nil
}
