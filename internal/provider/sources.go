package provider

import (
	"fmt"
	"strings"
)

// Default endpoints. Any equivalent XYZ tile service can be substituted.
const (
	DefaultOSMURL          = "https://tile.openstreetmap.org/{z}/{x}/{y}.png"
	DefaultOSMCredit       = "© OpenStreetMap contributors"
	DefaultIonImageryAsset = 2
	DefaultIonTerrainAsset = 1
)

// Sources holds the tile and asset identifiers behind each policy choice.
type Sources struct {
	OSMURL          string
	OSMCredit       string
	IonImageryAsset int
	IonTerrainAsset int

	// ProxyURL, when set, routes the primary OSM layer through the local
	// publisher. The fallback layer always keeps OSMURL so an artifact
	// opened without the publisher still loads tiles.
	ProxyURL string
}

// DefaultSources returns the stock OSM and ion identifiers.
func DefaultSources() Sources {
	return Sources{
		OSMURL:          DefaultOSMURL,
		OSMCredit:       DefaultOSMCredit,
		IonImageryAsset: DefaultIonImageryAsset,
		IonTerrainAsset: DefaultIonTerrainAsset,
	}
}

// Layer describes one imagery provider for the viewer.
type Layer struct {
	Kind    Imagery `json:"kind"`
	URL     string  `json:"url,omitempty"`
	Credit  string  `json:"credit,omitempty"`
	AssetID int     `json:"asset_id,omitempty"`
	Proxied bool    `json:"proxied,omitempty"`
}

// InitError reports an imagery provider that could not be constructed.
type InitError struct {
	Imagery Imagery
	Reason  string
}

func (e *InitError) Error() string {
	return fmt.Sprintf("provider: init %s imagery: %s", e.Imagery, e.Reason)
}

// OSM returns the upstream OpenStreetMap layer description.
func (s Sources) OSM() Layer {
	return Layer{Kind: ImageryOpenStreetMap, URL: s.OSMURL, Credit: s.OSMCredit}
}

// Imagery constructs the layer description for p. A satellite choice
// without a usable token or asset id yields an *InitError.
func (s Sources) Imagery(p Policy, c Credentials) (Layer, error) {
	switch p.Imagery {
	case ImagerySatellite:
		if !c.Present() {
			return Layer{}, &InitError{Imagery: p.Imagery, Reason: "no access token"}
		}
		if s.IonImageryAsset <= 0 {
			return Layer{}, &InitError{Imagery: p.Imagery, Reason: fmt.Sprintf("invalid asset id %d", s.IonImageryAsset)}
		}
		return Layer{Kind: ImagerySatellite, AssetID: s.IonImageryAsset}, nil
	default:
		if !validTemplate(s.OSMURL) {
			return Layer{}, &InitError{Imagery: ImageryOpenStreetMap, Reason: fmt.Sprintf("bad url template %q", s.OSMURL)}
		}
		layer := s.OSM()
		if s.ProxyURL != "" {
			if !validTemplate(s.ProxyURL) {
				return Layer{}, &InitError{Imagery: ImageryOpenStreetMap, Reason: fmt.Sprintf("bad proxy template %q", s.ProxyURL)}
			}
			layer.URL = s.ProxyURL
			layer.Proxied = true
		}
		return layer, nil
	}
}

func validTemplate(u string) bool {
	return strings.Contains(u, "{z}") && strings.Contains(u, "{x}") && strings.Contains(u, "{y}")
}
