package trajectory

import (
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// timeLayouts are tried in order when a timestamp cell is not numeric.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// Load builds a Trajectory from a table. Latitude, longitude and altitude
// columns are required; a missing one yields a *SchemaError before any row
// is read. Cells that do not parse become NaN and are dealt with at scene
// composition. A table without a timestamp column is ordered by row.
func Load(tbl Table) (*Trajectory, error) {
	cols := indexColumns(tbl.Header)

	var missing []string
	for _, name := range []string{ColLatitude, ColLongitude, ColAltitude} {
		if _, ok := cols[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Missing: missing}
	}

	tsCol, hasTS := cols[ColTimestamp]
	latCol, lonCol, altCol := cols[ColLatitude], cols[ColLongitude], cols[ColAltitude]

	badTS := 0
	samples := make([]PositionSample, 0, len(tbl.Records))
	for i, rec := range tbl.Records {
		s := PositionSample{
			Timestamp: float64(i),
			Latitude:  parseFloat(cell(rec, latCol)),
			Longitude: parseFloat(cell(rec, lonCol)),
			Altitude:  parseFloat(cell(rec, altCol)),
		}
		if hasTS {
			s.Timestamp = ParseTimestamp(cell(rec, tsCol))
			if math.IsNaN(s.Timestamp) {
				badTS++
			}
		}
		samples = append(samples, s)
	}

	if badTS > 0 {
		zap.L().Warn("trajectory: unparseable timestamps sort last",
			zap.Int("rows", badTS),
		)
	}

	return &Trajectory{samples: samples}, nil
}

// SortByTime returns a new Trajectory stably sorted by timestamp. Equal
// timestamps keep their input order; NaN timestamps sort last.
func SortByTime(t *Trajectory) *Trajectory {
	out := t.Samples()
	slices.SortStableFunc(out, func(a, b PositionSample) int {
		an, bn := math.IsNaN(a.Timestamp), math.IsNaN(b.Timestamp)
		switch {
		case an && bn:
			return 0
		case an:
			return 1
		case bn:
			return -1
		case a.Timestamp < b.Timestamp:
			return -1
		case a.Timestamp > b.Timestamp:
			return 1
		}
		return 0
	})
	return &Trajectory{samples: out}
}

// ParseTimestamp converts a timestamp cell to an ordinal: numeric cells are
// used as-is, date-time cells become Unix seconds. Anything else is NaN.
func ParseTimestamp(raw string) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return math.NaN()
	}
	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		return v
	}
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return float64(ts.UnixNano()) / 1e9
		}
	}
	return math.NaN()
}

func indexColumns(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := cols[key]; !dup {
			cols[key] = i
		}
	}
	return cols
}

func cell(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return rec[i]
}

func parseFloat(raw string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
