// Package trajectory holds the in-memory position-sample model, the table
// loader that builds it, and the stride sampler applied before scene
// composition. Nothing in this package performs I/O.
package trajectory

// Required and optional column names of the input table.
const (
	ColTimestamp = "timestamp"
	ColLatitude  = "latitude"
	ColLongitude = "longitude"
	ColAltitude  = "altitude"
)

// PositionSample is one timestamped geodetic fix.
type PositionSample struct {
	Timestamp float64 `json:"timestamp"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Altitude  float64 `json:"altitude"`
}

// InBounds reports whether latitude and longitude are finite and inside
// [-90,90] and [-180,180]. NaN fails every comparison, so it is rejected.
func (s PositionSample) InBounds() bool {
	return s.Latitude >= -90 && s.Latitude <= 90 &&
		s.Longitude >= -180 && s.Longitude <= 180
}

// Table is the raw tabular input: a header row and the data records.
type Table struct {
	Header  []string
	Records [][]string
}

// Trajectory is an ordered, immutable sequence of samples.
type Trajectory struct {
	samples []PositionSample
}

// New builds a Trajectory from a copy of samples.
func New(samples []PositionSample) *Trajectory {
	return &Trajectory{samples: clone(samples)}
}

// Len returns the number of samples. A nil Trajectory is empty.
func (t *Trajectory) Len() int {
	if t == nil {
		return 0
	}
	return len(t.samples)
}

// At returns sample i.
func (t *Trajectory) At(i int) PositionSample {
	return t.samples[i]
}

// Samples returns a copy of the samples.
func (t *Trajectory) Samples() []PositionSample {
	if t == nil {
		return nil
	}
	return clone(t.samples)
}

// From returns the tail of the trajectory starting at index i. Out-of-range
// indexes are clamped.
func (t *Trajectory) From(i int) *Trajectory {
	n := t.Len()
	if i < 0 {
		i = 0
	}
	if i > n {
		i = n
	}
	if n == 0 {
		return New(nil)
	}
	return New(t.samples[i:])
}

// Sampled is a downsampled, independent copy of a Trajectory.
type Sampled struct {
	samples   []PositionSample
	stride    int
	sourceLen int
}

// Len returns the number of retained samples.
func (s *Sampled) Len() int {
	if s == nil {
		return 0
	}
	return len(s.samples)
}

// At returns retained sample i.
func (s *Sampled) At(i int) PositionSample {
	return s.samples[i]
}

// Samples returns a copy of the retained samples.
func (s *Sampled) Samples() []PositionSample {
	if s == nil {
		return nil
	}
	return clone(s.samples)
}

// Stride is the factor the source was reduced by.
func (s *Sampled) Stride() int { return s.stride }

// SourceLen is the length of the trajectory that was sampled.
func (s *Sampled) SourceLen() int { return s.sourceLen }

func clone(in []PositionSample) []PositionSample {
	if len(in) == 0 {
		return []PositionSample{}
	}
	out := make([]PositionSample, len(in))
	copy(out, in)
	return out
}
