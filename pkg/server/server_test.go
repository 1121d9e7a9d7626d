package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/norngeo/norngeo/pkg/layer"
	"github.com/norngeo/norngeo/pkg/storage"
)

func newTestServer(t *testing.T) (*httptest.Server, *storage.MemoryEngine) {
	t.Helper()
	store := storage.NewMemoryEngine()
	ix, err := layer.New("places", store, layer.Config{
		GeometryType: layer.PointGeometryType,
		Lat:          "lat",
		Lon:          "lon",
	})
	require.NoError(t, err)

	s := New(":0", map[string]*layer.LayerIndex{"places": ix})
	ts := httptest.NewServer(s.buildRouter())
	t.Cleanup(ts.Close)
	return ts, store
}

func seedPlace(t *testing.T, store *storage.MemoryEngine, id string, lon, lat float64) {
	t.Helper()
	require.NoError(t, store.CreateNode(&storage.Node{
		ID:         storage.NodeID(id),
		Labels:     []string{"Place"},
		Properties: map[string]any{"lat": lat, "lon": lon},
	}))
}

func postQuery(t *testing.T, ts *httptest.Server, layerName string, body any) (*http.Response, queryResponse) {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(ts.URL+"/layers/"+layerName+"/query", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var out queryResponse
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func TestServer_Health(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestServer_Query(t *testing.T) {
	ts, store := newTestServer(t)
	seedPlace(t, store, "n1", 10, 60)
	seedPlace(t, store, "n2", 30, 30)

	// Index both via the write protocol, then search.
	for _, id := range []string{"n1", "n2"} {
		resp, _ := postQuery(t, ts, "places", queryRequest{
			Type:   layer.AddNodeToLayerQuery,
			Params: json.RawMessage(`"` + id + `"`),
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	t.Run("typed form", func(t *testing.T) {
		resp, out := postQuery(t, ts, "places", queryRequest{
			Type:   layer.WithinQuery,
			Params: json.RawMessage(`{"envelope": [9, 11, 59, 61]}`),
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, 1, out.Count)
		assert.Equal(t, storage.NodeID("n1"), out.Nodes[0].ID)
	})

	t.Run("string form", func(t *testing.T) {
		resp, out := postQuery(t, ts, "places", queryRequest{
			Query: `bbox:[9, 11, 59, 61]`,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, 1, out.Count)
	})

	t.Run("distance query returns distances", func(t *testing.T) {
		resp, out := postQuery(t, ts, "places", queryRequest{
			Type:   layer.WithinDistanceQuery,
			Params: json.RawMessage(`"[10.0, 60.0, 50.0]"`),
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, 1, out.Count)
		require.Len(t, out.Distances, 1)
		assert.Less(t, out.Distances[0], 1.0)
	})
}

func TestServer_Errors(t *testing.T) {
	ts, store := newTestServer(t)
	seedPlace(t, store, "n1", 10, 60)

	t.Run("unknown layer", func(t *testing.T) {
		resp, _ := postQuery(t, ts, "nowhere", queryRequest{Query: "bbox:[0,1,0,1]"})
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("unsupported query type", func(t *testing.T) {
		resp, _ := postQuery(t, ts, "places", queryRequest{Type: "teleport"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("malformed payload", func(t *testing.T) {
		resp, _ := postQuery(t, ts, "places", queryRequest{
			Type:   layer.WithinQuery,
			Params: json.RawMessage(`"not an envelope"`),
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unresolvable entity", func(t *testing.T) {
		resp, _ := postQuery(t, ts, "places", queryRequest{
			Type:   layer.AddNodeToLayerQuery,
			Params: json.RawMessage(`"ghost"`),
		})
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("empty request", func(t *testing.T) {
		resp, _ := postQuery(t, ts, "places", queryRequest{})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("GET is rejected", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/layers/places/query")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})

	t.Run("bad path", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/layers/places")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}
