package scene

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/flightglobe/internal/provider"
	"github.com/sells-group/flightglobe/internal/trajectory"
)

var fixedStart = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedStart }

func osmPolicy() provider.Policy { return provider.Select(provider.Credentials{}) }

func track(n int) []trajectory.PositionSample {
	out := make([]trajectory.PositionSample, n)
	for i := range out {
		out[i] = trajectory.PositionSample{
			Timestamp: float64(i),
			Latitude:  46.5 + float64(i)*0.01,
			Longitude: 7.5 + float64(i)*0.01,
			Altitude:  500,
		}
	}
	return out
}

func TestFromDegrees(t *testing.T) {
	p := FromDegrees(0, 0, 0)
	assert.InDelta(t, wgs84A, p.X, 1e-6)
	assert.InDelta(t, 0, p.Y, 1e-6)
	assert.InDelta(t, 0, p.Z, 1e-6)

	// North pole: semi-minor axis.
	p = FromDegrees(0, 90, 0)
	assert.InDelta(t, 0, p.X, 1e-6)
	assert.InDelta(t, 6356752.314245, p.Z, 1e-3)

	p = FromDegrees(90, 0, 100)
	assert.InDelta(t, wgs84A+100, p.Y, 1e-6)
}

func TestCompose_Basic(t *testing.T) {
	sc := Compose(trajectory.NewSampled(track(3)), osmPolicy(), WithClock(fixedClock))

	require.Equal(t, 3, sc.Len())
	require.Len(t, sc.Markers, 3)
	assert.Equal(t, fixedStart, sc.ClockStart)
	assert.Equal(t, 3*time.Second, sc.Duration())
	assert.Equal(t, ClockClamped, sc.ClockRange)
	assert.Equal(t, DefaultMultiplier, sc.Multiplier)

	for i, m := range sc.Markers {
		assert.Equal(t, time.Duration(i)*time.Second, m.Offset)
		assert.Equal(t, fixedStart.Add(time.Duration(i)*time.Second), m.Time)
		assert.Equal(t, sc.PathPositions[i], m.Position)
	}

	want := FromDegrees(7.5, 46.5, 500+HeightOffset)
	assert.InDelta(t, want.X, sc.PathPositions[0].X, 1e-6)
	assert.InDelta(t, want.Z, sc.PathPositions[0].Z, 1e-6)

	assert.Equal(t, 3, sc.Path.NumCoords())
	assert.Equal(t, []float64{7.5, 46.5, 530}, []float64(sc.Path.Coord(0)))
}

func TestCompose_DropsOutOfRange(t *testing.T) {
	samples := track(6)
	samples[1].Latitude = 200
	samples[3].Longitude = -181
	samples[4].Latitude = math.NaN()

	sc := Compose(trajectory.NewSampled(samples), osmPolicy(), WithClock(fixedClock))

	assert.Equal(t, 3, sc.Len())
	assert.Len(t, sc.Markers, 3)
	require.Len(t, sc.Dropped, 3)
	assert.Equal(t, 1, sc.Dropped[0].Index)
	assert.Equal(t, 3, sc.Dropped[1].Index)
	assert.Equal(t, 4, sc.Dropped[2].Index)
	assert.Contains(t, sc.Dropped[0].Error(), "lat=200")
	assert.Equal(t, 3*time.Second, sc.Duration())

	// Order preserved among survivors.
	assert.Equal(t, []float64{0, 2, 5}, []float64{sc.Samples[0].Timestamp, sc.Samples[1].Timestamp, sc.Samples[2].Timestamp})
}

func TestCompose_BoundaryCoordinatesKept(t *testing.T) {
	sc := Compose(trajectory.NewSampled([]trajectory.PositionSample{
		{Latitude: 90, Longitude: 180},
		{Latitude: -90, Longitude: -180},
	}), osmPolicy(), WithClock(fixedClock))
	assert.Equal(t, 2, sc.Len())
}

func TestCompose_NonFiniteAltitudeIsZero(t *testing.T) {
	samples := track(2)
	samples[0].Altitude = math.NaN()
	samples[1].Altitude = math.Inf(-1)

	sc := Compose(trajectory.NewSampled(samples), osmPolicy(), WithClock(fixedClock))
	require.Equal(t, 2, sc.Len())
	assert.Equal(t, 0.0, sc.Samples[0].Altitude)
	assert.Equal(t, HeightOffset, sc.Path.Coord(1)[2])
}

func TestCompose_Empty(t *testing.T) {
	sc := Compose(trajectory.NewSampled(nil), osmPolicy(), WithClock(fixedClock))

	assert.True(t, sc.Empty())
	assert.Empty(t, sc.PathPositions)
	assert.Empty(t, sc.Markers)
	assert.Equal(t, time.Duration(0), sc.Duration())
	assert.Nil(t, sc.Bounds())
	_, ok := sc.First()
	assert.False(t, ok)
}

func TestCompose_SingleInvalidSample(t *testing.T) {
	sc := Compose(trajectory.NewSampled([]trajectory.PositionSample{{Latitude: 200, Longitude: 10, Altitude: 5}}),
		osmPolicy(), WithClock(fixedClock))
	assert.Equal(t, 0, sc.Len())
	assert.Len(t, sc.Dropped, 1)
}

func TestCompose_TwelveByFive(t *testing.T) {
	sampled, err := trajectory.Sample(trajectory.New(track(12)), 5)
	require.NoError(t, err)

	sc := Compose(sampled, osmPolicy(), WithClock(fixedClock))
	assert.Equal(t, 3, sc.Len())
	assert.Equal(t, 3*time.Second, sc.ClockStop.Sub(sc.ClockStart))
}

func TestCompose_ClockSpanMatchesRetained(t *testing.T) {
	for n := 1; n <= 20; n++ {
		samples := track(n)
		if n > 2 {
			samples[n/2].Latitude = -95
		}
		sc := Compose(trajectory.NewSampled(samples), osmPolicy(), WithClock(fixedClock))
		assert.Equal(t, time.Duration(sc.Len())*time.Second, sc.Duration(), "n=%d", n)
	}
}

func TestCompose_Options(t *testing.T) {
	sc := Compose(trajectory.NewSampled(track(1)), osmPolicy(),
		WithClock(fixedClock), WithMultiplier(25), WithHeightOffset(0))
	assert.Equal(t, 25.0, sc.Multiplier)
	assert.Equal(t, 500.0, sc.Path.Coord(0)[2])

	sc = Compose(trajectory.NewSampled(track(1)), osmPolicy(), WithClock(fixedClock), WithMultiplier(-1))
	assert.Equal(t, DefaultMultiplier, sc.Multiplier)
}

func TestScene_BoundsAndFirst(t *testing.T) {
	sc := Compose(trajectory.NewSampled(track(3)), osmPolicy(), WithClock(fixedClock))

	b := sc.Bounds()
	require.NotNil(t, b)
	assert.InDelta(t, 7.5, b.Min(0), 1e-9)
	assert.InDelta(t, 7.52, b.Max(0), 1e-9)
	assert.InDelta(t, 46.5, b.Min(1), 1e-9)

	first, ok := sc.First()
	require.True(t, ok)
	assert.Equal(t, 46.5, first.Latitude)
}

func TestCompose_CarriesPolicy(t *testing.T) {
	p := provider.Select(provider.Credentials{Token: "tok"})
	sc := Compose(trajectory.NewSampled(track(1)), p, WithClock(fixedClock))
	assert.Equal(t, p, sc.Policy)
}
