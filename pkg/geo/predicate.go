package geo

import (
	"github.com/go-spatial/geom"
)

// ContainsEnvelope reports whether the candidate envelope lies within the
// geometry. Containment is tested against the geometry's extent, refined
// with a point-in-polygon test when the geometry is polygonal and the
// candidate is a point.
func ContainsEnvelope(g geom.Geometry, env Envelope) (bool, error) {
	bound, err := EnvelopeOf(g)
	if err != nil {
		return false, err
	}
	if !bound.Contains(env) {
		return false, nil
	}
	if env.IsPoint() {
		x, y := env.Center()
		return coversPoint(g, x, y), nil
	}
	return true, nil
}

// IntersectsEnvelope reports whether the candidate envelope intersects the
// geometry, with the same polygon refinement as ContainsEnvelope.
func IntersectsEnvelope(g geom.Geometry, env Envelope) (bool, error) {
	bound, err := EnvelopeOf(g)
	if err != nil {
		return false, err
	}
	if !bound.Intersects(env) {
		return false, nil
	}
	if env.IsPoint() {
		x, y := env.Center()
		return coversPoint(g, x, y), nil
	}
	return true, nil
}

// coversPoint tests whether a geometry covers the point. Polygonal
// geometries get an exact ring test; everything else falls back to the
// extent test already performed by the caller.
func coversPoint(g geom.Geometry, x, y float64) bool {
	switch t := g.(type) {
	case geom.Polygon:
		return polygonCoversPoint(t.LinearRings(), x, y)
	case *geom.Polygon:
		return polygonCoversPoint(t.LinearRings(), x, y)
	case geom.MultiPolygon:
		for _, p := range t.Polygons() {
			if polygonCoversPoint(p, x, y) {
				return true
			}
		}
		return false
	case *geom.MultiPolygon:
		for _, p := range t.Polygons() {
			if polygonCoversPoint(p, x, y) {
				return true
			}
		}
		return false
	default:
		return true
	}
}

// polygonCoversPoint runs an even-odd ray cast over the polygon's rings.
// The first ring is the exterior; subsequent rings are holes.
func polygonCoversPoint(rings [][][2]float64, x, y float64) bool {
	if len(rings) == 0 {
		return false
	}
	if !ringContains(rings[0], x, y) {
		return false
	}
	for _, hole := range rings[1:] {
		if ringContains(hole, x, y) {
			return false
		}
	}
	return true
}

func ringContains(ring [][2]float64, x, y float64) bool {
	inside := false
	n := len(ring)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := ring[i][0], ring[i][1]
		xj, yj := ring[j][0], ring[j][1]
		if (yi > y) != (yj > y) &&
			x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}
