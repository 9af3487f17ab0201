package trajectory

import (
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary describes a trajectory for logging and previews.
type Summary struct {
	Count        int     `json:"count"`
	InBounds     int     `json:"in_bounds"`
	StartTime    float64 `json:"start_time"`
	EndTime      float64 `json:"end_time"`
	MinLatitude  float64 `json:"min_latitude"`
	MaxLatitude  float64 `json:"max_latitude"`
	MinLongitude float64 `json:"min_longitude"`
	MaxLongitude float64 `json:"max_longitude"`
	MinAltitude  float64 `json:"min_altitude"`
	MaxAltitude  float64 `json:"max_altitude"`
	MeanAltitude float64 `json:"mean_altitude"`
}

// Summarize computes extent and altitude statistics over in-bounds samples.
// Fields without any contributing value are NaN.
func Summarize(samples []PositionSample) Summary {
	sum := Summary{Count: len(samples)}

	var lats, lons, alts, times []float64
	for _, s := range samples {
		if !math.IsNaN(s.Timestamp) {
			times = append(times, s.Timestamp)
		}
		if !s.InBounds() {
			continue
		}
		sum.InBounds++
		lats = append(lats, s.Latitude)
		lons = append(lons, s.Longitude)
		if !math.IsNaN(s.Altitude) && !math.IsInf(s.Altitude, 0) {
			alts = append(alts, s.Altitude)
		}
	}

	sum.StartTime, sum.EndTime = extent(times)
	sum.MinLatitude, sum.MaxLatitude = extent(lats)
	sum.MinLongitude, sum.MaxLongitude = extent(lons)
	sum.MinAltitude, sum.MaxAltitude = extent(alts)
	sum.MeanAltitude = math.NaN()
	if len(alts) > 0 {
		sum.MeanAltitude = stat.Mean(alts, nil)
	}
	return sum
}

// Fields renders the summary as zap fields.
func (s Summary) Fields() []zap.Field {
	return []zap.Field{
		zap.Int("count", s.Count),
		zap.Int("in_bounds", s.InBounds),
		zap.Float64("min_lat", s.MinLatitude),
		zap.Float64("max_lat", s.MaxLatitude),
		zap.Float64("min_lon", s.MinLongitude),
		zap.Float64("max_lon", s.MaxLongitude),
		zap.Float64("min_alt", s.MinAltitude),
		zap.Float64("max_alt", s.MaxAltitude),
		zap.Float64("mean_alt", s.MeanAltitude),
	}
}

func extent(v []float64) (float64, float64) {
	if len(v) == 0 {
		return math.NaN(), math.NaN()
	}
	return floats.Min(v), floats.Max(v)
}
