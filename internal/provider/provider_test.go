package provider

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelect_WithCredential(t *testing.T) {
	p := Select(Credentials{Token: "abc"})
	assert.Equal(t, Policy{
		HasCredential: true,
		Imagery:       ImagerySatellite,
		Terrain:       TerrainWorld,
		Buildings:     true,
		Lighting:      true,
	}, p)
	assert.True(t, p.Valid())
}

func TestSelect_WithoutCredential(t *testing.T) {
	for _, token := range []string{"", "   ", "\t\n"} {
		p := Select(Credentials{Token: token})
		assert.Equal(t, Policy{
			Imagery: ImageryOpenStreetMap,
			Terrain: TerrainNone,
		}, p, "token %q", token)
	}
}

func TestResolve_NoCredentialNeverSatellite(t *testing.T) {
	for _, ok := range []bool{true, false} {
		p := Resolve(false, ok)
		assert.NotEqual(t, ImagerySatellite, p.Imagery)
		assert.NotEqual(t, TerrainWorld, p.Terrain)
		assert.False(t, p.Buildings)
		assert.False(t, p.Lighting)
		assert.True(t, p.Valid())
	}
}

func TestResolve_ConstructionFailureForcesOSM(t *testing.T) {
	p := Resolve(true, false)
	assert.Equal(t, ImageryOpenStreetMap, p.Imagery)
	assert.Equal(t, TerrainWorld, p.Terrain)
	assert.True(t, p.Buildings)
}

func TestFallback(t *testing.T) {
	assert.Equal(t, ImageryOpenStreetMap, Select(Credentials{Token: "t"}).Fallback().Imagery)
	assert.Equal(t, Select(Credentials{}), Select(Credentials{}).Fallback())
}

func TestRecover(t *testing.T) {
	p := Select(Credentials{Token: "t"})
	assert.Equal(t, p, Recover(p, nil))

	got := Recover(p, &InitError{Imagery: ImagerySatellite, Reason: "boom"})
	assert.Equal(t, ImageryOpenStreetMap, got.Imagery)
	assert.True(t, got.HasCredential)
}

func TestValid_RejectsSatelliteWithoutCredential(t *testing.T) {
	assert.False(t, Policy{Imagery: ImagerySatellite, Terrain: TerrainNone}.Valid())
	assert.False(t, Policy{Imagery: ImageryOpenStreetMap, Terrain: TerrainWorld}.Valid())
}

func TestSources_Imagery(t *testing.T) {
	src := DefaultSources()
	sat := Select(Credentials{Token: "tok"})

	layer, err := src.Imagery(sat, Credentials{Token: "tok"})
	require.NoError(t, err)
	assert.Equal(t, Layer{Kind: ImagerySatellite, AssetID: 2}, layer)

	layer, err = src.Imagery(Select(Credentials{}), Credentials{})
	require.NoError(t, err)
	assert.Equal(t, DefaultOSMURL, layer.URL)
	assert.Equal(t, DefaultOSMCredit, layer.Credit)
}

func TestSources_ProxiedPrimaryKeepsUpstreamFallback(t *testing.T) {
	src := DefaultSources()
	src.ProxyURL = "/tiles/osm/{z}/{x}/{y}.png"

	layer, err := src.Imagery(Select(Credentials{}), Credentials{})
	require.NoError(t, err)
	assert.Equal(t, "/tiles/osm/{z}/{x}/{y}.png", layer.URL)
	assert.True(t, layer.Proxied)

	fallback := src.OSM()
	assert.Equal(t, DefaultOSMURL, fallback.URL)
	assert.False(t, fallback.Proxied)

	src.ProxyURL = "/tiles"
	_, err = src.Imagery(Select(Credentials{}), Credentials{})
	var initErr *InitError
	require.True(t, errors.As(err, &initErr))
}

func TestSources_ImageryInitErrors(t *testing.T) {
	sat := Resolve(true, true)

	_, err := DefaultSources().Imagery(sat, Credentials{})
	var initErr *InitError
	require.True(t, errors.As(err, &initErr))
	assert.Equal(t, ImagerySatellite, initErr.Imagery)

	src := DefaultSources()
	src.IonImageryAsset = 0
	_, err = src.Imagery(sat, Credentials{Token: "tok"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid asset id")

	src = DefaultSources()
	src.OSMURL = "https://example.com/tiles.png"
	_, err = src.Imagery(Resolve(false, true), Credentials{})
	require.True(t, errors.As(err, &initErr))
	assert.Equal(t, ImageryOpenStreetMap, initErr.Imagery)
}
