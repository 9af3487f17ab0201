// Package scene composes the animated path-and-marker scene from a sampled
// trajectory: geodetic to ECEF conversion, bounds filtering, the static path
// geometry, and the 1 Hz marker track with its playback clock.
package scene

import (
	"fmt"
	"math"
	"time"

	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/flightglobe/internal/provider"
	"github.com/sells-group/flightglobe/internal/trajectory"
)

// Scene defaults.
const (
	// HeightOffset lifts every retained position above imagery and terrain.
	HeightOffset = 30.0
	// StepSeconds is the marker spacing on the playback grid.
	StepSeconds = 1
	// DefaultMultiplier is the playback rate relative to real time.
	DefaultMultiplier = 10.0
)

// ClockRange is the viewer behaviour at the ends of the clock interval.
type ClockRange string

// ClockClamped stops playback at the boundary instead of looping.
const ClockClamped ClockRange = "CLAMPED"

// MarkerSample is one keyframe of the animated marker.
type MarkerSample struct {
	Offset   time.Duration
	Time     time.Time
	Position Cartesian3
}

// CoordinateOutOfRangeError describes a sample dropped during composition.
type CoordinateOutOfRangeError struct {
	Index     int
	Latitude  float64
	Longitude float64
}

func (e *CoordinateOutOfRangeError) Error() string {
	return fmt.Sprintf("scene: sample %d out of range (lat=%v lon=%v)", e.Index, e.Latitude, e.Longitude)
}

// Scene is the composed, read-only result of one export.
type Scene struct {
	Policy provider.Policy

	// Samples are the retained samples in order; non-finite altitudes are 0.
	Samples       []trajectory.PositionSample
	PathPositions []Cartesian3
	Markers       []MarkerSample
	// Path is the retained track as lon, lat, lifted height.
	Path *geom.LineString

	ClockStart time.Time
	ClockStop  time.Time
	Multiplier float64
	ClockRange ClockRange

	HeightOffset float64
	Dropped      []*CoordinateOutOfRangeError
}

// Len returns the number of retained positions.
func (s *Scene) Len() int { return len(s.PathPositions) }

// Empty reports whether no positions were retained.
func (s *Scene) Empty() bool { return len(s.PathPositions) == 0 }

// First returns the first retained sample.
func (s *Scene) First() (trajectory.PositionSample, bool) {
	if len(s.Samples) == 0 {
		return trajectory.PositionSample{}, false
	}
	return s.Samples[0], true
}

// Duration is the clock span.
func (s *Scene) Duration() time.Duration {
	return s.ClockStop.Sub(s.ClockStart)
}

// Bounds returns the lon/lat/height extent of the path, nil when empty.
func (s *Scene) Bounds() *geom.Bounds {
	if s.Empty() {
		return nil
	}
	return s.Path.Bounds()
}

// Option configures Compose.
type Option func(*options)

type options struct {
	now          func() time.Time
	multiplier   float64
	heightOffset float64
}

// WithClock sets the source of the clock start.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithMultiplier overrides the playback multiplier.
func WithMultiplier(m float64) Option {
	return func(o *options) {
		if m > 0 {
			o.multiplier = m
		}
	}
}

// WithHeightOffset overrides the vertical lift.
func WithHeightOffset(h float64) Option {
	return func(o *options) { o.heightOffset = h }
}

// Compose builds the scene. Samples with non-finite or out-of-range
// latitude or longitude are skipped and recorded in Dropped; an input with
// no valid samples yields an empty but valid scene.
func Compose(sampled *trajectory.Sampled, policy provider.Policy, opts ...Option) *Scene {
	o := options{now: time.Now, multiplier: DefaultMultiplier, heightOffset: HeightOffset}
	for _, opt := range opts {
		opt(&o)
	}

	n := sampled.Len()
	sc := &Scene{
		Policy:        policy,
		Samples:       make([]trajectory.PositionSample, 0, n),
		PathPositions: make([]Cartesian3, 0, n),
		Markers:       make([]MarkerSample, 0, n),
		Multiplier:    o.multiplier,
		ClockRange:    ClockClamped,
		HeightOffset:  o.heightOffset,
	}

	flat := make([]float64, 0, 3*n)
	for i := 0; i < n; i++ {
		s := sampled.At(i)
		if !s.InBounds() {
			sc.Dropped = append(sc.Dropped, &CoordinateOutOfRangeError{Index: i, Latitude: s.Latitude, Longitude: s.Longitude})
			continue
		}
		if math.IsNaN(s.Altitude) || math.IsInf(s.Altitude, 0) {
			s.Altitude = 0
		}
		h := s.Altitude + o.heightOffset
		sc.Samples = append(sc.Samples, s)
		sc.PathPositions = append(sc.PathPositions, FromDegrees(s.Longitude, s.Latitude, h))
		flat = append(flat, s.Longitude, s.Latitude, h)
	}
	sc.Path = geom.NewLineStringFlat(geom.XYZ, flat)

	sc.ClockStart = o.now()
	for i, pos := range sc.PathPositions {
		off := time.Duration(i*StepSeconds) * time.Second
		sc.Markers = append(sc.Markers, MarkerSample{
			Offset:   off,
			Time:     sc.ClockStart.Add(off),
			Position: pos,
		})
	}
	sc.ClockStop = sc.ClockStart.Add(time.Duration(len(sc.PathPositions)*StepSeconds) * time.Second)

	for _, d := range sc.Dropped {
		zap.L().Debug("scene: dropped sample", zap.Error(d))
	}
	zap.L().Info("scene: composed",
		zap.Int("sampled", n),
		zap.Int("retained", sc.Len()),
		zap.Int("dropped", len(sc.Dropped)),
		zap.Duration("clock", sc.Duration()),
	)
	if sc.Empty() {
		zap.L().Warn("scene: no valid positions")
	}

	return sc
}
