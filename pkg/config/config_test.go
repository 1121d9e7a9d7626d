package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/norngeo/norngeo/pkg/layer"
)

func pointGeometry() layer.Config {
	return layer.Config{GeometryType: layer.PointGeometryType, Lat: "lat", Lon: "lon"}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "norngeo.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, ":7664", cfg.HTTPAddr)
	assert.Equal(t, EngineMemory, cfg.Engine)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	t.Run("full config", func(t *testing.T) {
		path := writeConfig(t, `
http_addr: ":9000"
engine: badger
data_dir: /tmp/norngeo-test
layers:
  - name: places
    geometry:
      geometry_type: point
      lat: lat
      lon: lon
  - name: shapes
    geometry:
      wkt: geometry
`)
		cfg, err := LoadFromFile(path)
		require.NoError(t, err)
		assert.Equal(t, ":9000", cfg.HTTPAddr)
		assert.Equal(t, EngineBadger, cfg.Engine)
		require.Len(t, cfg.Layers, 2)
		assert.Equal(t, "places", cfg.Layers[0].Name)
		assert.Equal(t, "geometry", cfg.Layers[1].Geometry.WKT)
	})

	t.Run("empty path uses defaults", func(t *testing.T) {
		cfg, err := LoadFromFile("")
		require.NoError(t, err)
		assert.Equal(t, Default().HTTPAddr, cfg.HTTPAddr)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFromFile("/does/not/exist.yaml")
		assert.Error(t, err)
	})

	t.Run("env overrides file", func(t *testing.T) {
		path := writeConfig(t, `http_addr: ":9000"`)
		t.Setenv("NORNGEO_HTTP_ADDR", ":9999")
		t.Setenv("NORNGEO_ENGINE", "memory")

		cfg, err := LoadFromFile(path)
		require.NoError(t, err)
		assert.Equal(t, ":9999", cfg.HTTPAddr)
	})

	t.Run("invalid layer geometry fails validation", func(t *testing.T) {
		path := writeConfig(t, `
layers:
  - name: broken
    geometry:
      geometry_type: point
      lat: lat
`)
		_, err := LoadFromFile(path)
		assert.ErrorContains(t, err, "broken")
	})
}

func TestValidate(t *testing.T) {
	t.Run("unknown engine", func(t *testing.T) {
		cfg := Default()
		cfg.Engine = "postgres"
		assert.Error(t, cfg.Validate())
	})

	t.Run("badger without data dir", func(t *testing.T) {
		cfg := Default()
		cfg.Engine = EngineBadger
		cfg.DataDir = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("duplicate layer names", func(t *testing.T) {
		cfg := Default()
		cfg.Layers = []LayerConfig{
			{Name: "dup", Geometry: pointGeometry()},
			{Name: "dup", Geometry: pointGeometry()},
		}
		assert.ErrorContains(t, cfg.Validate(), "twice")
	})

	t.Run("unnamed layer", func(t *testing.T) {
		cfg := Default()
		cfg.Layers = []LayerConfig{{Geometry: pointGeometry()}}
		assert.Error(t, cfg.Validate())
	})
}
