package geo

import (
	"testing"

	"github.com/go-spatial/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/norngeo/norngeo/pkg/storage"
)

func TestEnvelope(t *testing.T) {
	t.Run("contains and intersects", func(t *testing.T) {
		outer, err := NewEnvelope(0, 10, 0, 10)
		require.NoError(t, err)
		inner, err := NewEnvelope(2, 4, 2, 4)
		require.NoError(t, err)
		beside, err := NewEnvelope(11, 12, 0, 10)
		require.NoError(t, err)
		overlap, err := NewEnvelope(8, 12, 8, 12)
		require.NoError(t, err)

		assert.True(t, outer.Contains(inner))
		assert.False(t, inner.Contains(outer))
		assert.True(t, outer.Intersects(overlap))
		assert.False(t, outer.Intersects(beside))
		assert.False(t, outer.Contains(overlap))
	})

	t.Run("rejects inverted bounds", func(t *testing.T) {
		_, err := NewEnvelope(10, 0, 0, 10)
		assert.ErrorIs(t, err, ErrInvalidEnvelope)
	})

	t.Run("from list", func(t *testing.T) {
		env, err := EnvelopeFromList([]float64{1, 2, 3, 4})
		require.NoError(t, err)
		assert.Equal(t, Envelope{MinX: 1, MaxX: 2, MinY: 3, MaxY: 4}, env)

		_, err = EnvelopeFromList([]float64{1, 2, 3})
		assert.ErrorIs(t, err, ErrInvalidEnvelope)
	})

	t.Run("center and point", func(t *testing.T) {
		env := Envelope{MinX: 5, MaxX: 5, MinY: 7, MaxY: 7}
		assert.True(t, env.IsPoint())
		x, y := env.Center()
		assert.Equal(t, 5.0, x)
		assert.Equal(t, 7.0, y)
	})
}

func TestPointEncoder(t *testing.T) {
	enc := PointEncoder{LatProperty: "lat", LonProperty: "lon"}

	t.Run("decodes numeric properties", func(t *testing.T) {
		node := &storage.Node{ID: "n", Properties: map[string]any{"lat": 59.91, "lon": 10.75}}
		g, err := enc.Decode(node)
		require.NoError(t, err)
		pt, ok := g.(geom.Point)
		require.True(t, ok)
		assert.Equal(t, 10.75, pt.X())
		assert.Equal(t, 59.91, pt.Y())
	})

	t.Run("tolerates string coordinates", func(t *testing.T) {
		node := &storage.Node{ID: "n", Properties: map[string]any{"lat": "59.91", "lon": "10.75"}}
		_, err := enc.Decode(node)
		assert.NoError(t, err)
	})

	t.Run("missing property", func(t *testing.T) {
		node := &storage.Node{ID: "n", Properties: map[string]any{"lat": 59.91}}
		_, err := enc.Decode(node)
		assert.ErrorIs(t, err, ErrNoGeometry)
	})
}

func TestWKTEncoder(t *testing.T) {
	enc := WKTEncoder{Property: "wkt"}

	t.Run("decodes point", func(t *testing.T) {
		node := &storage.Node{ID: "n", Properties: map[string]any{"wkt": "POINT(10.75 59.91)"}}
		g, err := enc.Decode(node)
		require.NoError(t, err)

		env, err := EnvelopeOf(g)
		require.NoError(t, err)
		assert.True(t, env.IsPoint())
	})

	t.Run("invalid text", func(t *testing.T) {
		node := &storage.Node{ID: "n", Properties: map[string]any{"wkt": "PINT(1 2)"}}
		_, err := enc.Decode(node)
		assert.ErrorIs(t, err, ErrInvalidGeometry)
	})

	t.Run("missing property", func(t *testing.T) {
		node := &storage.Node{ID: "n", Properties: map[string]any{}}
		_, err := enc.Decode(node)
		assert.ErrorIs(t, err, ErrNoGeometry)
	})
}

func TestWKBEncoder(t *testing.T) {
	// Little-endian WKB for POINT(1 2)
	const pointWKBHex = "0101000000000000000000f03f0000000000000040"

	enc := WKBEncoder{Property: "wkb"}

	t.Run("decodes hex text", func(t *testing.T) {
		node := &storage.Node{ID: "n", Properties: map[string]any{"wkb": pointWKBHex}}
		g, err := enc.Decode(node)
		require.NoError(t, err)

		env, err := EnvelopeOf(g)
		require.NoError(t, err)
		assert.Equal(t, 1.0, env.MinX)
		assert.Equal(t, 2.0, env.MinY)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		node := &storage.Node{ID: "n", Properties: map[string]any{"wkb": "zz-not-encoded"}}
		_, err := enc.Decode(node)
		assert.ErrorIs(t, err, ErrInvalidGeometry)
	})

	t.Run("missing property", func(t *testing.T) {
		node := &storage.Node{ID: "n", Properties: map[string]any{}}
		_, err := enc.Decode(node)
		assert.ErrorIs(t, err, ErrNoGeometry)
	})
}

func TestHaversineKm(t *testing.T) {
	// Oslo -> Bergen is roughly 305 km great-circle.
	d := HaversineKm(10.75, 59.91, 5.32, 60.39)
	assert.InDelta(t, 305, d, 10)

	// Zero distance to self.
	assert.Equal(t, 0.0, HaversineKm(10, 60, 10, 60))
}

func TestPlanarKm(t *testing.T) {
	// One degree of longitude at the equator.
	d := PlanarKm(0, 0, 1, 0)
	assert.InDelta(t, 111.195, d, 0.001)

	// Planar ignores latitude convergence, haversine does not.
	planar := PlanarKm(0, 80, 1, 80)
	geodesic := HaversineKm(0, 80, 1, 80)
	assert.Greater(t, planar, geodesic)
}

func TestContainsEnvelope(t *testing.T) {
	// 10x10 square with a 2x2 hole in the middle.
	poly := geom.Polygon{
		{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}},
		{{4, 4}, {6, 4}, {6, 6}, {4, 6}, {4, 4}},
	}

	t.Run("point inside", func(t *testing.T) {
		ok, err := ContainsEnvelope(poly, Envelope{MinX: 2, MaxX: 2, MinY: 2, MaxY: 2})
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("point in hole", func(t *testing.T) {
		ok, err := ContainsEnvelope(poly, Envelope{MinX: 5, MaxX: 5, MinY: 5, MaxY: 5})
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("point outside extent", func(t *testing.T) {
		ok, err := ContainsEnvelope(poly, Envelope{MinX: 20, MaxX: 20, MinY: 20, MaxY: 20})
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestIntersectsEnvelope(t *testing.T) {
	poly := geom.Polygon{{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}}}

	ok, err := IntersectsEnvelope(poly, Envelope{MinX: 8, MaxX: 12, MinY: 8, MaxY: 12})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = IntersectsEnvelope(poly, Envelope{MinX: 11, MaxX: 12, MinY: 0, MaxY: 10})
	require.NoError(t, err)
	assert.False(t, ok)
}
