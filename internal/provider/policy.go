// Package provider decides which imagery and terrain sources back the globe.
//
// The decision is a two-level table keyed by credential availability and by
// whether the chosen imagery provider could be constructed. It is evaluated
// once at build time with construction assumed to succeed, and again only
// when construction fails, either on the Go side while assembling layer
// descriptions or in the viewer, which receives the fallback row.
package provider

import (
	"strings"

	"go.uber.org/zap"
)

// Imagery identifies the base imagery layer.
type Imagery string

// Imagery choices.
const (
	ImagerySatellite     Imagery = "satellite"
	ImageryOpenStreetMap Imagery = "openstreetmap"
)

// Terrain identifies the terrain source.
type Terrain string

// Terrain choices.
const (
	TerrainWorld Terrain = "world"
	TerrainNone  Terrain = "none"
)

// Policy is the resolved choice of imagery, terrain, buildings and lighting.
type Policy struct {
	HasCredential bool    `json:"has_credential"`
	Imagery       Imagery `json:"imagery"`
	Terrain       Terrain `json:"terrain"`
	Buildings     bool    `json:"buildings"`
	Lighting      bool    `json:"lighting"`
}

// Credentials carries the optional imagery service token.
type Credentials struct {
	Token string
}

// Present reports whether a non-blank token is set.
func (c Credentials) Present() bool {
	return strings.TrimSpace(c.Token) != ""
}

type decisionKey struct {
	hasCredential         bool
	constructionSucceeded bool
}

var decisionTable = map[decisionKey]Policy{
	{hasCredential: true, constructionSucceeded: true}: {
		HasCredential: true, Imagery: ImagerySatellite, Terrain: TerrainWorld, Buildings: true, Lighting: true,
	},
	{hasCredential: true, constructionSucceeded: false}: {
		HasCredential: true, Imagery: ImageryOpenStreetMap, Terrain: TerrainWorld, Buildings: true, Lighting: true,
	},
	{hasCredential: false, constructionSucceeded: true}: {
		HasCredential: false, Imagery: ImageryOpenStreetMap, Terrain: TerrainNone,
	},
	{hasCredential: false, constructionSucceeded: false}: {
		HasCredential: false, Imagery: ImageryOpenStreetMap, Terrain: TerrainNone,
	},
}

// Resolve returns the policy for the given credential state and imagery
// construction outcome.
func Resolve(hasCredential, constructionSucceeded bool) Policy {
	return decisionTable[decisionKey{hasCredential: hasCredential, constructionSucceeded: constructionSucceeded}]
}

// Select makes the build-time decision from the configured credentials.
func Select(c Credentials) Policy {
	p := Resolve(c.Present(), true)
	zap.L().Debug("provider: selected policy",
		zap.Bool("has_credential", p.HasCredential),
		zap.String("imagery", string(p.Imagery)),
		zap.String("terrain", string(p.Terrain)),
	)
	return p
}

// Fallback is the policy to switch to if the imagery provider fails to
// initialize.
func (p Policy) Fallback() Policy {
	return Resolve(p.HasCredential, false)
}

// Recover re-enters the table after an imagery construction attempt. A nil
// err keeps p. Any error is logged and absorbed.
func Recover(p Policy, err error) Policy {
	if err == nil {
		return p
	}
	next := p.Fallback()
	zap.L().Warn("provider: imagery construction failed, falling back",
		zap.String("from", string(p.Imagery)),
		zap.String("to", string(next.Imagery)),
		zap.Error(err),
	)
	return next
}

// Valid reports whether p honours the credential rule: satellite
// imagery, world terrain, buildings and lighting all require a credential.
func (p Policy) Valid() bool {
	if p.HasCredential {
		return true
	}
	return p.Imagery != ImagerySatellite && p.Terrain != TerrainWorld && !p.Buildings && !p.Lighting
}
