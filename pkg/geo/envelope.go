// Package geo wraps the geometry engine used by the spatial layer.
//
// It decodes node geometry (lat/lon point properties, WKT text, WKB bytes)
// into go-spatial geometries, and provides the envelope and distance math
// the query dispatcher needs. All coordinates are lon/lat (X=lon, Y=lat).
package geo

import (
	"errors"
	"fmt"

	"github.com/go-spatial/geom"
)

// Errors returned by the geo package.
var (
	ErrNoGeometry      = errors.New("node has no geometry")
	ErrInvalidGeometry = errors.New("invalid geometry")
	ErrInvalidEnvelope = errors.New("invalid envelope")
)

// Envelope is an axis-aligned bounding rectangle in the
// [minX, maxX, minY, maxY] order used by the query protocol.
type Envelope struct {
	MinX, MaxX, MinY, MaxY float64
}

// NewEnvelope builds an envelope from [minX, maxX, minY, maxY].
func NewEnvelope(minX, maxX, minY, maxY float64) (Envelope, error) {
	if minX > maxX || minY > maxY {
		return Envelope{}, fmt.Errorf("%w: [%v, %v, %v, %v]", ErrInvalidEnvelope, minX, maxX, minY, maxY)
	}
	return Envelope{MinX: minX, MaxX: maxX, MinY: minY, MaxY: maxY}, nil
}

// EnvelopeFromList builds an envelope from a decoded JSON list.
func EnvelopeFromList(coords []float64) (Envelope, error) {
	if len(coords) != 4 {
		return Envelope{}, fmt.Errorf("%w: want 4 coordinates, got %d", ErrInvalidEnvelope, len(coords))
	}
	return NewEnvelope(coords[0], coords[1], coords[2], coords[3])
}

// EnvelopeOf computes the bounding envelope of a geometry.
func EnvelopeOf(g geom.Geometry) (Envelope, error) {
	ext, err := geom.NewExtentFromGeometry(g)
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
	}
	return Envelope{MinX: ext.MinX(), MaxX: ext.MaxX(), MinY: ext.MinY(), MaxY: ext.MaxY()}, nil
}

// Extent converts to the go-spatial [minX, minY, maxX, maxY] extent.
func (e Envelope) Extent() *geom.Extent {
	return &geom.Extent{e.MinX, e.MinY, e.MaxX, e.MaxY}
}

// Contains reports whether other lies entirely inside e.
func (e Envelope) Contains(other Envelope) bool {
	return other.MinX >= e.MinX && other.MaxX <= e.MaxX &&
		other.MinY >= e.MinY && other.MaxY <= e.MaxY
}

// Intersects reports whether the two envelopes overlap.
func (e Envelope) Intersects(other Envelope) bool {
	return other.MinX <= e.MaxX && other.MaxX >= e.MinX &&
		other.MinY <= e.MaxY && other.MaxY >= e.MinY
}

// Center returns the envelope midpoint. For point geometries this is the
// point itself.
func (e Envelope) Center() (x, y float64) {
	return (e.MinX + e.MaxX) / 2, (e.MinY + e.MaxY) / 2
}

// IsPoint reports whether the envelope is degenerate (a single point).
func (e Envelope) IsPoint() bool {
	return e.MinX == e.MaxX && e.MinY == e.MaxY
}
