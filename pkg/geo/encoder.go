package geo

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/go-spatial/geom"
	"github.com/go-spatial/geom/encoding/wkb"
	"github.com/go-spatial/geom/encoding/wkt"

	"github.com/norngeo/norngeo/pkg/storage"
)

// Encoder derives a geometry from a node's properties. Exactly one encoder
// is chosen per layer at construction time (point, WKT, or WKB).
type Encoder interface {
	// Decode derives the node's geometry.
	// Returns ErrNoGeometry if the geometry-bearing properties are absent.
	Decode(node *storage.Node) (geom.Geometry, error)
}

// PointEncoder derives a point from two numeric properties.
type PointEncoder struct {
	LatProperty string
	LonProperty string
}

// Decode builds a point from the configured lat/lon properties.
func (e PointEncoder) Decode(node *storage.Node) (geom.Geometry, error) {
	lat, ok := toFloat(node.Property(e.LatProperty))
	if !ok {
		return nil, fmt.Errorf("%w: missing or non-numeric property %q", ErrNoGeometry, e.LatProperty)
	}
	lon, ok := toFloat(node.Property(e.LonProperty))
	if !ok {
		return nil, fmt.Errorf("%w: missing or non-numeric property %q", ErrNoGeometry, e.LonProperty)
	}
	return geom.Point{lon, lat}, nil
}

// WKTEncoder derives a geometry from a well-known-text property.
type WKTEncoder struct {
	Property string
}

// Decode parses the configured WKT property.
func (e WKTEncoder) Decode(node *storage.Node) (geom.Geometry, error) {
	raw, ok := node.Property(e.Property).(string)
	if !ok || raw == "" {
		return nil, fmt.Errorf("%w: missing property %q", ErrNoGeometry, e.Property)
	}
	return ParseWKT(raw)
}

// WKBEncoder derives a geometry from a well-known-binary property.
// The property may hold raw bytes, or hex/base64 text (common after JSON
// round-trips through the storage engine).
type WKBEncoder struct {
	Property string
}

// Decode parses the configured WKB property.
func (e WKBEncoder) Decode(node *storage.Node) (geom.Geometry, error) {
	val := node.Property(e.Property)
	if val == nil {
		return nil, fmt.Errorf("%w: missing property %q", ErrNoGeometry, e.Property)
	}

	var data []byte
	switch v := val.(type) {
	case []byte:
		data = v
	case string:
		decoded, err := hex.DecodeString(v)
		if err != nil {
			decoded, err = base64.StdEncoding.DecodeString(v)
			if err != nil {
				return nil, fmt.Errorf("%w: property %q is not hex or base64 WKB", ErrInvalidGeometry, e.Property)
			}
		}
		data = decoded
	default:
		return nil, fmt.Errorf("%w: property %q has type %T", ErrInvalidGeometry, e.Property, val)
	}

	g, err := wkb.DecodeBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%w: parse WKB: %v", ErrInvalidGeometry, err)
	}
	return g, nil
}

// ParseWKT parses well-known text into a geometry.
func ParseWKT(text string) (geom.Geometry, error) {
	g, err := wkt.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("%w: parse WKT %q: %v", ErrInvalidGeometry, text, err)
	}
	return g, nil
}

// toFloat coerces the numeric representations that survive JSON and YAML
// round-trips into a float64.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
