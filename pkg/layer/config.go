package layer

import (
	"fmt"

	"github.com/norngeo/norngeo/pkg/geo"
)

// Geometry derivation config keys, matching the layer creation protocol.
const (
	GeometryTypeKey = "geometry_type"
	LatPropertyKey  = "lat"
	LonPropertyKey  = "lon"
	WKTPropertyKey  = "wkt"
	WKBPropertyKey  = "wkb"

	// PointGeometryType is the only recognized geometry_type value.
	PointGeometryType = "point"
)

// Config selects how a layer derives geometry from an entity's properties.
// Exactly one of the three strategies must be configured:
//   - point: GeometryType "point" with Lat and Lon property names
//   - WKT: the name of a property holding well-known text
//   - WKB: the name of a property holding well-known binary
//
// Validation happens at layer construction; an invalid Config is a fatal
// construction error, never a deferred failure.
type Config struct {
	GeometryType string `yaml:"geometry_type,omitempty"`
	Lat          string `yaml:"lat,omitempty"`
	Lon          string `yaml:"lon,omitempty"`
	WKT          string `yaml:"wkt,omitempty"`
	WKB          string `yaml:"wkb,omitempty"`
}

// ConfigFromMap builds a Config from the key/value form used by index
// creation protocols.
func ConfigFromMap(m map[string]string) Config {
	return Config{
		GeometryType: m[GeometryTypeKey],
		Lat:          m[LatPropertyKey],
		Lon:          m[LonPropertyKey],
		WKT:          m[WKTPropertyKey],
		WKB:          m[WKBPropertyKey],
	}
}

// Validate checks that exactly one derivation strategy is configured.
func (c Config) Validate() error {
	selected := 0
	if c.GeometryType != "" || c.Lat != "" || c.Lon != "" {
		if c.GeometryType != PointGeometryType {
			return fmt.Errorf("%w: geometry_type must be %q, got %q", ErrConfig, PointGeometryType, c.GeometryType)
		}
		if c.Lat == "" || c.Lon == "" {
			return fmt.Errorf("%w: point layers need both lat and lon property names", ErrConfig)
		}
		selected++
	}
	if c.WKT != "" {
		selected++
	}
	if c.WKB != "" {
		selected++
	}

	switch selected {
	case 0:
		return fmt.Errorf("%w: need (geometry_type=point and lat/lon), wkt or wkb property config", ErrConfig)
	case 1:
		return nil
	default:
		return fmt.Errorf("%w: point, wkt and wkb strategies are mutually exclusive", ErrConfig)
	}
}

// encoder returns the geometry encoder for the configured strategy.
// Call Validate first.
func (c Config) encoder() geo.Encoder {
	switch {
	case c.WKT != "":
		return geo.WKTEncoder{Property: c.WKT}
	case c.WKB != "":
		return geo.WKBEncoder{Property: c.WKB}
	default:
		return geo.PointEncoder{LatProperty: c.Lat, LonProperty: c.Lon}
	}
}
