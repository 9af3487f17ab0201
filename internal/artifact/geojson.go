package artifact

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/flightglobe/internal/scene"
)

// WriteGeoJSON writes the lifted path as a single LineString feature.
func WriteGeoJSON(sc *scene.Scene, dest string) error {
	f := &geojson.Feature{
		ID:       "uav-path",
		BBox:     sc.Bounds(),
		Geometry: sc.Path,
		Properties: map[string]any{
			"positions":     sc.Len(),
			"dropped":       len(sc.Dropped),
			"height_offset": sc.HeightOffset,
			"imagery":       string(sc.Policy.Imagery),
		},
	}

	data, err := json.Marshal(f)
	if err != nil {
		return eris.Wrap(err, "artifact: encode geojson")
	}
	if err := writeAtomic(dest, data); err != nil {
		return err
	}

	zap.L().Info("artifact: wrote geojson", zap.String("path", dest), zap.Int("positions", sc.Len()))
	return nil
}
