// Package preview renders quick-look charts of a trajectory: a 2D map
// scatter, a 3D track and an altitude profile.
package preview

import (
	"context"
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/sells-group/flightglobe/internal/trajectory"
)

// Output file names written by WriteAll.
const (
	Map2DFile    = "uav_2d_map.html"
	Track3DFile  = "uav_3d_track.html"
	ProfileFile  = "uav_altitude.png"
	defaultTitle = "UAV Flight"
)

// ErrNoData is returned when a trajectory has no plottable sample.
var ErrNoData = eris.New("preview: no in-bounds samples")

var altitudeRamp = []string{"#313695", "#4575b4", "#74add1", "#abd9e9", "#fee090", "#fdae61", "#f46d43", "#d73027", "#a50026"}

type point struct {
	t, lon, lat, alt float64
}

// points keeps in-bounds samples; missing altitude plots at 0. Time falls
// back to the sample index when the timestamp is unknown.
func points(t *trajectory.Trajectory) []point {
	out := make([]point, 0, t.Len())
	for i, s := range t.Samples() {
		if !s.InBounds() {
			continue
		}
		alt := s.Altitude
		if math.IsNaN(alt) || math.IsInf(alt, 0) {
			alt = 0
		}
		ts := s.Timestamp
		if math.IsNaN(ts) || math.IsInf(ts, 0) {
			ts = float64(i)
		}
		out = append(out, point{t: ts, lon: s.Longitude, lat: s.Latitude, alt: alt})
	}
	return out
}

func altitudeRange(pts []point) (float32, float32) {
	lo, hi := pts[0].alt, pts[0].alt
	for _, p := range pts[1:] {
		lo = min(lo, p.alt)
		hi = max(hi, p.alt)
	}
	if lo == hi {
		hi = lo + 1
	}
	return float32(lo), float32(hi)
}

func visualMap(pts []point) charts.GlobalOpts {
	lo, hi := altitudeRange(pts)
	return charts.WithVisualMapOpts(opts.VisualMap{
		Show:       opts.Bool(true),
		Calculable: opts.Bool(true),
		Min:        lo,
		Max:        hi,
		Dimension:  "2",
		InRange:    &opts.VisualMapInRange{Color: altitudeRamp},
	})
}

// Map2D writes an HTML scatter of longitude/latitude coloured by altitude.
func Map2D(t *trajectory.Trajectory, w io.Writer) error {
	pts := points(t)
	if len(pts) == 0 {
		return ErrNoData
	}

	data := make([]opts.ScatterData, 0, len(pts))
	for _, p := range pts {
		data = append(data, opts.ScatterData{Value: []interface{}{p.lon, p.lat, p.alt}})
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: defaultTitle + " (2D)", Width: "1000px", Height: "800px"}),
		charts.WithTitleOpts(opts.Title{Title: "UAV Flight Path", Subtitle: fmt.Sprintf("points=%d", len(pts))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Longitude", NameLocation: "middle", NameGap: 25, Min: "dataMin", Max: "dataMax"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Latitude", NameLocation: "middle", NameGap: 40, Min: "dataMin", Max: "dataMax"}),
		visualMap(pts),
	)
	scatter.AddSeries("path", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}))

	return eris.Wrap(scatter.Render(w), "preview: render 2d map")
}

// Track3D writes an HTML 3D scatter of longitude/latitude/altitude.
func Track3D(t *trajectory.Trajectory, w io.Writer) error {
	pts := points(t)
	if len(pts) == 0 {
		return ErrNoData
	}

	data := make([]opts.Chart3DData, 0, len(pts))
	for _, p := range pts {
		data = append(data, opts.Chart3DData{Value: []interface{}{p.lon, p.lat, p.alt}})
	}

	track := charts.NewScatter3D()
	track.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: defaultTitle + " (3D)", Width: "1000px", Height: "800px"}),
		charts.WithTitleOpts(opts.Title{Title: "UAV 3D Flight Path"}),
		charts.WithXAxis3DOpts(opts.XAxis3D{Name: "Longitude"}),
		charts.WithYAxis3DOpts(opts.YAxis3D{Name: "Latitude"}),
		charts.WithZAxis3DOpts(opts.ZAxis3D{Name: "Altitude (m)"}),
		visualMap(pts),
	)
	track.AddSeries("path", data)

	return eris.Wrap(track.Render(w), "preview: render 3d track")
}

// AltitudeProfile writes a PNG line chart of altitude over elapsed time.
func AltitudeProfile(t *trajectory.Trajectory, w io.Writer) error {
	pts := points(t)
	if len(pts) == 0 {
		return ErrNoData
	}

	xys := make(plotter.XYs, 0, len(pts))
	t0 := pts[0].t
	for _, p := range pts {
		xys = append(xys, plotter.XY{X: p.t - t0, Y: p.alt})
	}

	p := plot.New()
	p.Title.Text = "Altitude profile"
	p.X.Label.Text = "Elapsed (s)"
	p.Y.Label.Text = "Altitude (m)"
	p.Add(plotter.NewGrid())

	line, err := plotter.NewLine(xys)
	if err != nil {
		return eris.Wrap(err, "preview: altitude line")
	}
	line.Width = vg.Points(1)
	line.Color = color.RGBA{R: 215, G: 48, B: 39, A: 255}
	p.Add(line)

	wt, err := p.WriterTo(10*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		return eris.Wrap(err, "preview: encode png")
	}
	_, err = wt.WriteTo(w)
	return eris.Wrap(err, "preview: write png")
}

// WriteAll renders every preview into dir concurrently and returns the
// written paths in a stable order.
func WriteAll(ctx context.Context, t *trajectory.Trajectory, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "preview: create %s", dir)
	}

	jobs := []struct {
		name   string
		render func(*trajectory.Trajectory, io.Writer) error
	}{
		{Map2DFile, Map2D},
		{Track3DFile, Track3D},
		{ProfileFile, AltitudeProfile},
	}

	paths := make([]string, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	for i, job := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			path := filepath.Join(dir, job.name)
			if err := writeFile(path, t, job.render); err != nil {
				return err
			}
			paths[i] = path
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	zap.L().Info("preview: written", zap.String("dir", dir), zap.Strings("files", paths))
	return paths, nil
}

func writeFile(path string, t *trajectory.Trajectory, render func(*trajectory.Trajectory, io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "preview: create %s", path)
	}
	if err := render(t, f); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	return eris.Wrapf(f.Close(), "preview: close %s", path)
}
