// Package artifact renders a composed scene into a self-contained CesiumJS
// document. The document embeds the provider policy with its fallback row,
// the flattened path and marker data, and the camera-focus directive, all
// produced in a single template pass.
package artifact

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/template"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/flightglobe/internal/provider"
	"github.com/sells-group/flightglobe/internal/scene"
)

// Document defaults.
const (
	DefaultTitle         = "UAV 3D Globe (Cesium)"
	DefaultCesiumBaseURL = "https://unpkg.com/cesium"
	DefaultCesiumVersion = "1.121"

	// The initial camera sits CameraLift meters above the first sample,
	// never lower than CameraMinAltitude before the lift.
	CameraMinAltitude = 50.0
	CameraLift        = 300.0
	CameraFlySeconds  = 3.0

	minTrailSeconds = 300
)

//go:embed globe.html.tmpl
var globeTemplate string

var globe = template.Must(template.New("globe").Parse(globeTemplate))

// Handle describes a written artifact.
type Handle struct {
	Path          string
	Bytes         int64
	Positions     int
	CameraFocused bool
	ExportID      string
	Policy        provider.Policy
}

// Option configures rendering.
type Option func(*options)

type options struct {
	title         string
	cesiumBaseURL string
	cesiumVersion string
	credentials   provider.Credentials
	sources       provider.Sources
	exportID      string
}

// WithTitle sets the document title. Empty keeps DefaultTitle.
func WithTitle(title string) Option {
	return func(o *options) {
		if title != "" {
			o.title = title
		}
	}
}

// WithCesium sets the CesiumJS distribution base URL and version.
func WithCesium(baseURL, version string) Option {
	return func(o *options) {
		if baseURL != "" {
			o.cesiumBaseURL = strings.TrimRight(baseURL, "/")
		}
		if version != "" {
			o.cesiumVersion = version
		}
	}
}

// WithCredentials sets the token embedded for the imagery service.
func WithCredentials(c provider.Credentials) Option {
	return func(o *options) { o.credentials = c }
}

// WithSources overrides the tile and asset identifiers.
func WithSources(s provider.Sources) Option {
	return func(o *options) { o.sources = s }
}

// WithExportID pins the export id; by default a random UUID is used.
func WithExportID(id string) Option {
	return func(o *options) { o.exportID = id }
}

type cameraView struct {
	Longitude string
	Latitude  string
	Height    string
	Duration  string
}

type document struct {
	ExportID     string
	Title        string
	CesiumBase   string
	Token        string
	Policy       string
	Fallback     string
	PrimaryLayer string
	OSMLayer     string
	TerrainAsset int
	Positions    string
	Offsets      string
	TrailTime    int
	ClockSeconds string
	ClockRange   string
	Multiplier   string
	Camera       *cameraView
}

// Rendered is an artifact body plus what went into it.
type Rendered struct {
	Body          []byte
	ExportID      string
	Policy        provider.Policy
	CameraFocused bool
}

// Render produces the document for sc without touching the filesystem.
// The policy passes through one construction check of its imagery layer;
// a failure switches to the fallback row instead of returning an error.
func Render(sc *scene.Scene, p provider.Policy, opts ...Option) (*Rendered, error) {
	o := options{
		title:         DefaultTitle,
		cesiumBaseURL: DefaultCesiumBaseURL,
		cesiumVersion: DefaultCesiumVersion,
		sources:       provider.DefaultSources(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.exportID == "" {
		o.exportID = uuid.NewString()
	}

	layer, err := o.sources.Imagery(p, o.credentials)
	p = provider.Recover(p, err)
	if err != nil {
		layer = o.sources.OSM()
	}

	positions, offsets := DataBlock(sc)
	doc := document{
		ExportID:     o.exportID,
		Title:        o.title,
		CesiumBase:   o.cesiumBaseURL + "@" + o.cesiumVersion,
		Token:        o.credentials.Token,
		TerrainAsset: o.sources.IonTerrainAsset,
		Positions:    positions,
		Offsets:      offsets,
		TrailTime:    max(sc.Len(), minTrailSeconds),
		ClockSeconds: formatNumber(sc.Duration().Seconds()),
		ClockRange:   string(sc.ClockRange),
		Multiplier:   formatNumber(sc.Multiplier),
		Camera:       focus(sc),
	}

	for dst, v := range map[*string]any{
		&doc.Policy:       p,
		&doc.Fallback:     p.Fallback(),
		&doc.PrimaryLayer: layer,
		&doc.OSMLayer:     o.sources.OSM(),
	} {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, eris.Wrap(err, "artifact: encode viewer config")
		}
		*dst = string(raw)
	}

	var buf bytes.Buffer
	if err := globe.Execute(&buf, doc); err != nil {
		return nil, eris.Wrap(err, "artifact: render template")
	}

	return &Rendered{
		Body:          buf.Bytes(),
		ExportID:      o.exportID,
		Policy:        p,
		CameraFocused: doc.Camera != nil,
	}, nil
}

// Write renders sc and replaces whatever is at dest with the result.
func Write(sc *scene.Scene, p provider.Policy, dest string, opts ...Option) (*Handle, error) {
	if strings.TrimSpace(dest) == "" {
		return nil, eris.New("artifact: empty destination")
	}

	r, err := Render(sc, p, opts...)
	if err != nil {
		return nil, err
	}

	if err := writeAtomic(dest, r.Body); err != nil {
		return nil, err
	}

	h := &Handle{
		Path:          dest,
		Bytes:         int64(len(r.Body)),
		Positions:     sc.Len(),
		CameraFocused: r.CameraFocused,
		ExportID:      r.ExportID,
		Policy:        r.Policy,
	}
	zap.L().Info("artifact: wrote globe",
		zap.String("path", dest),
		zap.Int64("bytes", h.Bytes),
		zap.Int("positions", h.Positions),
		zap.Bool("camera_focused", h.CameraFocused),
		zap.String("imagery", string(h.Policy.Imagery)),
		zap.String("export_id", h.ExportID),
	)
	return h, nil
}

// DataBlock serializes the path as comma-separated lon,lat,height triples
// and the marker offsets in seconds. Output depends only on the scene data.
func DataBlock(sc *scene.Scene) (positions, offsets string) {
	var pb strings.Builder
	if sc.Path != nil {
		for i, v := range sc.Path.FlatCoords() {
			if i > 0 {
				pb.WriteByte(',')
			}
			pb.WriteString(formatNumber(v))
		}
	}

	var ob strings.Builder
	for i, m := range sc.Markers {
		if i > 0 {
			ob.WriteByte(',')
		}
		ob.WriteString(formatNumber(m.Offset.Seconds()))
	}
	return pb.String(), ob.String()
}

func focus(sc *scene.Scene) *cameraView {
	first, ok := sc.First()
	if !ok {
		return nil
	}
	return &cameraView{
		Longitude: formatNumber(first.Longitude),
		Latitude:  formatNumber(first.Latitude),
		Height:    formatNumber(math.Max(CameraMinAltitude, first.Altitude) + CameraLift),
		Duration:  formatNumber(CameraFlySeconds),
	}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// writeAtomic writes data to a temp file beside dest and renames it over
// dest, so readers never see a partial document.
func writeAtomic(dest string, data []byte) error {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "artifact: create dir %s", dir)
	}

	tmp, err := os.CreateTemp(dir, ".flightglobe-*")
	if err != nil {
		return eris.Wrap(err, "artifact: create temp file")
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return eris.Wrap(err, "artifact: write temp file")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "artifact: close temp file")
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return eris.Wrap(err, "artifact: chmod temp file")
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return eris.Wrapf(err, "artifact: replace %s", dest)
	}
	return nil
}
