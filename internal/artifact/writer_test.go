package artifact

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/flightglobe/internal/provider"
	"github.com/sells-group/flightglobe/internal/scene"
	"github.com/sells-group/flightglobe/internal/trajectory"
)

var (
	flatRe    = regexp.MustCompile(`const flat = \[(.*)\];`)
	offsetsRe = regexp.MustCompile(`const offsets = \[(.*)\];`)
	flyToRe   = regexp.MustCompile(`viewer\.camera\.flyTo`)
)

func composeAt(samples []trajectory.PositionSample, p provider.Policy, start time.Time) *scene.Scene {
	return scene.Compose(trajectory.NewSampled(samples), p, scene.WithClock(func() time.Time { return start }))
}

func sampleTrack() []trajectory.PositionSample {
	return []trajectory.PositionSample{
		{Timestamp: 0, Latitude: 46.5, Longitude: 7.25, Altitude: 10},
		{Timestamp: 1, Latitude: 46.6, Longitude: 7.5, Altitude: 120.5},
		{Timestamp: 2, Latitude: 46.7, Longitude: 7.75, Altitude: 200},
	}
}

func osm() provider.Policy { return provider.Select(provider.Credentials{}) }

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestWrite_EmbedsData(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "globe.html")
	sc := composeAt(sampleTrack(), osm(), time.Now())

	h, err := Write(sc, osm(), dest, WithExportID("run-1"))
	require.NoError(t, err)
	assert.Equal(t, dest, h.Path)
	assert.Equal(t, 3, h.Positions)
	assert.True(t, h.CameraFocused)
	assert.Equal(t, "run-1", h.ExportID)

	body := readFile(t, dest)
	assert.Equal(t, int64(len(body)), h.Bytes)
	assert.Contains(t, body, `<meta name="export-id" content="run-1" />`)
	assert.Contains(t, body, "https://unpkg.com/cesium@1.121/Build/Cesium/Cesium.js")
	assert.Contains(t, body, "const flat = [7.25,46.5,40,7.5,46.6,150.5,7.75,46.7,230];")
	assert.Contains(t, body, "const offsets = [0,1,2];")
	assert.Contains(t, body, "Cesium.JulianDate.addSeconds(start, 3, new Cesium.JulianDate())")
	assert.Contains(t, body, "viewer.clock.clockRange = Cesium.ClockRange.CLAMPED;")
	assert.Contains(t, body, "viewer.clock.multiplier = 10;")
	assert.Contains(t, body, "trailTime: 300,")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(body), "</html>"))
}

func TestWrite_CameraFocusOnFirstSample(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "globe.html")
	samples := sampleTrack()
	samples[0].Latitude = 120 // dropped, so the second sample is first retained

	sc := composeAt(samples, osm(), time.Now())
	_, err := Write(sc, osm(), dest)
	require.NoError(t, err)

	body := readFile(t, dest)
	directive := "Cesium.Cartesian3.fromDegrees(7.5, 46.6, 420.5), duration: 3"
	require.Contains(t, body, directive)

	// Directive sits immediately before the closing body tag.
	idx := strings.Index(body, directive)
	closing := strings.Index(body, "</body>")
	assert.Less(t, idx, closing)
	assert.Equal(t, "</script>\n</body>", strings.TrimSpace(body[strings.LastIndex(body[:closing], "</script>"):closing+len("</body>")]))
}

func TestWrite_CameraMinimumAltitude(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "globe.html")
	sc := composeAt(sampleTrack()[:1], osm(), time.Now())
	_, err := Write(sc, osm(), dest)
	require.NoError(t, err)

	// First sample altitude 10 is raised to 50 before the 300 m lift.
	assert.Contains(t, readFile(t, dest), "Cesium.Cartesian3.fromDegrees(7.25, 46.5, 350)")
}

func TestWrite_EmptySceneSkipsCamera(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "globe.html")
	sc := composeAt(nil, osm(), time.Now())

	h, err := Write(sc, osm(), dest)
	require.NoError(t, err)
	assert.False(t, h.CameraFocused)
	assert.Equal(t, 0, h.Positions)

	body := readFile(t, dest)
	assert.Contains(t, body, "const flat = [];")
	assert.Contains(t, body, "const offsets = [];")
	assert.False(t, flyToRe.MatchString(body))
}

func TestWrite_OnlyInvalidSample(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "globe.html")
	sc := composeAt([]trajectory.PositionSample{{Latitude: 200, Longitude: 5, Altitude: 1}}, osm(), time.Now())

	h, err := Write(sc, osm(), dest)
	require.NoError(t, err)
	assert.Equal(t, 0, h.Positions)
	assert.Contains(t, readFile(t, dest), "const flat = [];")
}

func TestWrite_OverwritesExisting(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "globe.html")
	require.NoError(t, os.WriteFile(dest, []byte(strings.Repeat("stale ", 100000)), 0o644))

	_, err := Write(composeAt(sampleTrack(), osm(), time.Now()), osm(), dest)
	require.NoError(t, err)

	body := readFile(t, dest)
	assert.NotContains(t, body, "stale")
	assert.Equal(t, 1, strings.Count(body, "<!DOCTYPE html>"))

	entries, err := os.ReadDir(filepath.Dir(dest))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file cleaned up")
}

func TestWrite_CreatesParentDirs(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "a", "b", "globe.html")
	_, err := Write(composeAt(sampleTrack(), osm(), time.Now()), osm(), dest)
	require.NoError(t, err)
	assert.FileExists(t, dest)
}

func TestWrite_EmptyDestination(t *testing.T) {
	_, err := Write(composeAt(nil, osm(), time.Now()), osm(), " ")
	require.Error(t, err)
}

func TestDataBlock_Deterministic(t *testing.T) {
	sampled := trajectory.NewSampled(sampleTrack())
	a := scene.Compose(sampled, osm(), scene.WithClock(func() time.Time { return time.Unix(0, 0) }))
	b := scene.Compose(sampled, osm(), scene.WithClock(func() time.Time { return time.Unix(1e9, 0) }))

	pa, oa := DataBlock(a)
	pb, ob := DataBlock(b)
	assert.Equal(t, pa, pb)
	assert.Equal(t, oa, ob)

	dir := t.TempDir()
	_, err := Write(a, osm(), filepath.Join(dir, "a.html"))
	require.NoError(t, err)
	_, err = Write(b, osm(), filepath.Join(dir, "b.html"))
	require.NoError(t, err)

	bodyA, bodyB := readFile(t, filepath.Join(dir, "a.html")), readFile(t, filepath.Join(dir, "b.html"))
	assert.Equal(t, flatRe.FindString(bodyA), flatRe.FindString(bodyB))
	assert.Equal(t, offsetsRe.FindString(bodyA), offsetsRe.FindString(bodyB))
}

func TestRender_FixedExportIDIsByteIdentical(t *testing.T) {
	sampled := trajectory.NewSampled(sampleTrack())
	r1, err := Render(scene.Compose(sampled, osm()), osm(), WithExportID("x"))
	require.NoError(t, err)
	r2, err := Render(scene.Compose(sampled, osm()), osm(), WithExportID("x"))
	require.NoError(t, err)
	assert.Equal(t, r1.Body, r2.Body)
}

func TestRender_PolicyWithoutCredential(t *testing.T) {
	r, err := Render(composeAt(sampleTrack(), osm(), time.Now()), osm())
	require.NoError(t, err)

	body := string(r.Body)
	assert.Contains(t, body, `Cesium.Ion.defaultAccessToken = "";`)
	assert.Contains(t, body, `const policy = {"has_credential":false,"imagery":"openstreetmap","terrain":"none","buildings":false,"lighting":false};`)
	assert.Contains(t, body, `"kind":"openstreetmap","url":"https://tile.openstreetmap.org/{z}/{x}/{y}.png"`)
	assert.NotContains(t, body, `"kind":"satellite"`)
}

func TestRender_PolicyWithCredential(t *testing.T) {
	creds := provider.Credentials{Token: `tok"en`}
	p := provider.Select(creds)

	r, err := Render(composeAt(sampleTrack(), p, time.Now()), p, WithCredentials(creds))
	require.NoError(t, err)
	assert.Equal(t, provider.ImagerySatellite, r.Policy.Imagery)

	body := string(r.Body)
	assert.Contains(t, body, `Cesium.Ion.defaultAccessToken = "tok\"en";`)
	assert.Contains(t, body, `primary: {"kind":"satellite","asset_id":2}`)
	assert.Contains(t, body, `const fallbackPolicy = {"has_credential":true,"imagery":"openstreetmap","terrain":"world","buildings":true,"lighting":true};`)
	assert.Contains(t, body, "const ionTerrainAsset = 1;")
}

func TestRender_ConstructionFailureFallsBack(t *testing.T) {
	p := provider.Resolve(true, true)
	src := provider.DefaultSources()
	src.IonImageryAsset = 0

	r, err := Render(composeAt(sampleTrack(), p, time.Now()), p,
		WithCredentials(provider.Credentials{Token: "tok"}), WithSources(src))
	require.NoError(t, err)
	assert.Equal(t, provider.ImageryOpenStreetMap, r.Policy.Imagery)
	assert.Contains(t, string(r.Body), `primary: {"kind":"openstreetmap"`)
}

func TestRender_TitleEscapedAndCesiumOverride(t *testing.T) {
	r, err := Render(composeAt(nil, osm(), time.Now()), osm(),
		WithTitle("<Flight & Co>"), WithCesium("https://cdn.example.com/cesium/", "1.120"))
	require.NoError(t, err)

	body := string(r.Body)
	assert.Contains(t, body, "<title>&lt;Flight &amp; Co&gt;</title>")
	assert.Contains(t, body, "https://cdn.example.com/cesium@1.120/Build/Cesium/Cesium.js")
}

func TestWriteGeoJSON(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "path.geojson")
	sc := composeAt(sampleTrack(), osm(), time.Now())
	require.NoError(t, WriteGeoJSON(sc, dest))

	var doc struct {
		Type     string `json:"type"`
		ID       string `json:"id"`
		Geometry struct {
			Type        string      `json:"type"`
			Coordinates [][]float64 `json:"coordinates"`
		} `json:"geometry"`
		Properties map[string]any `json:"properties"`
	}
	require.NoError(t, json.Unmarshal([]byte(readFile(t, dest)), &doc))
	assert.Equal(t, "Feature", doc.Type)
	assert.Equal(t, "uav-path", doc.ID)
	assert.Equal(t, "LineString", doc.Geometry.Type)
	require.Len(t, doc.Geometry.Coordinates, 3)
	assert.Equal(t, []float64{7.25, 46.5, 40}, doc.Geometry.Coordinates[0])
	assert.EqualValues(t, 3, doc.Properties["positions"])
}
