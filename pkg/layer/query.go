package layer

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-spatial/geom"

	"github.com/norngeo/norngeo/pkg/flowquery"
	"github.com/norngeo/norngeo/pkg/geo"
	"github.com/norngeo/norngeo/pkg/spatial"
	"github.com/norngeo/norngeo/pkg/storage"
)

// Query types recognized by the dispatcher. The set is closed: any other
// type fails with ErrUnsupportedQuery.
const (
	// Search-shaped (read-only) query types.
	WithinQuery            = "within"
	WithinWKTGeometryQuery = "withinWKTGeometry"
	IntersectWKTQuery      = "intersectWKTGeometry"
	WithinDistanceQuery    = "withinDistance"
	IntersectDistanceQuery = "intersectDistance"
	BBoxQuery              = "bbox"
	IntersectBBoxQuery     = "intersectBBox"

	// Write-shaped query types, multiplexed through Query because the
	// index contract offers no other extension point.
	AddNodeToLayerQuery           = "addNodeToLayer"
	AddNodeToLayerByFlowIDQuery   = "addNodeToLayerByFlowId"
	CreateSpatialIndexByLabelQuery = "createSpatialIndexByLabel"
	RemoveNodeFromLayerQuery      = "removeNodeFromLayer"
)

// Payload parameter keys for the structured (map) payload forms.
const (
	EnvelopeParameter     = "envelope"
	PointParameter        = "point"
	DistanceInKmParameter = "distanceInKm"
)

// Query decodes the payload according to the query type, runs the matching
// search or write, and wraps the outcome in a uniform Results collection.
//
// Decode failures are reported to the caller as ErrDecode-wrapped errors,
// never as an empty result.
func (ix *LayerIndex) Query(queryType string, params any) (*Results, error) {
	cmd, err := decodeCommand(queryType, params)
	if err != nil {
		return nil, err
	}
	return cmd.run(ix)
}

// QueryString runs a query in the single-string "type:payload" form,
// split at the first colon.
func (ix *LayerIndex) QueryString(query string) (*Results, error) {
	i := strings.Index(query, ":")
	if i < 0 {
		return nil, fmt.Errorf("%w: query %q has no \"type:payload\" separator", ErrDecode, query)
	}
	return ix.Query(query[:i], query[i+1:])
}

// command is the decoded form of one query: a tagged variant dispatched
// through a single polymorphic handler, search- and write-shaped alike.
type command interface {
	run(ix *LayerIndex) (*Results, error)
}

// decodeCommand decodes a payload into the typed command for its query type.
func decodeCommand(queryType string, params any) (command, error) {
	switch queryType {
	case WithinQuery:
		env, err := decodeEnvelopeMap(params)
		if err != nil {
			return nil, decodeErr(queryType, err)
		}
		return envelopeSearch{env: env, intersect: false}, nil

	case BBoxQuery, IntersectBBoxQuery:
		coords, err := decodeFloatList(params, 4)
		if err != nil {
			return nil, decodeErr(queryType, err)
		}
		env, err := geo.EnvelopeFromList(coords)
		if err != nil {
			return nil, decodeErr(queryType, err)
		}
		return envelopeSearch{env: env, intersect: queryType == IntersectBBoxQuery}, nil

	case WithinWKTGeometryQuery, IntersectWKTQuery:
		text, ok := params.(string)
		if !ok {
			return nil, decodeErr(queryType, fmt.Errorf("want WKT text, got %T", params))
		}
		g, err := geo.ParseWKT(text)
		if err != nil {
			return nil, decodeErr(queryType, err)
		}
		return geometrySearch{g: g, intersect: queryType == IntersectWKTQuery}, nil

	case WithinDistanceQuery, IntersectDistanceQuery:
		lon, lat, km, err := decodeDistanceParams(params)
		if err != nil {
			return nil, decodeErr(queryType, err)
		}
		return distanceSearch{lon: lon, lat: lat, km: km, planar: queryType == IntersectDistanceQuery}, nil

	case AddNodeToLayerQuery:
		id, err := decodeNodeID(params)
		if err != nil {
			return nil, decodeErr(queryType, err)
		}
		return addByID{id: id}, nil

	case AddNodeToLayerByFlowIDQuery:
		items, err := decodeStringList(params, 3)
		if err != nil {
			return nil, decodeErr(queryType, err)
		}
		return addByFlowID{dataset: items[0], geomType: items[1], flowID: items[2]}, nil

	case CreateSpatialIndexByLabelQuery:
		items, err := decodeStringList(params, 2)
		if err != nil {
			return nil, decodeErr(queryType, err)
		}
		batchSize, err := strconv.Atoi(items[1])
		if err != nil || batchSize <= 0 {
			return nil, decodeErr(queryType, fmt.Errorf("batch size %q is not a positive integer", items[1]))
		}
		return batchIndex{label: items[0], batchSize: batchSize}, nil

	case RemoveNodeFromLayerQuery:
		id, err := decodeNodeID(params)
		if err != nil {
			return nil, decodeErr(queryType, err)
		}
		return removeByID{id: id}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedQuery, queryType)
	}
}

func decodeErr(queryType string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrDecode, queryType, err)
}

// envelopeSearch handles within, bbox and intersectBBox.
type envelopeSearch struct {
	env       geo.Envelope
	intersect bool
}

func (c envelopeSearch) run(ix *LayerIndex) (*Results, error) {
	var recs []*spatial.Record
	if c.intersect {
		recs = ix.layer.SearchIntersects(c.env)
	} else {
		recs = ix.layer.SearchWithin(c.env)
	}
	return ix.resolveRecords(recs)
}

// geometrySearch handles withinWKTGeometry and intersectWKTGeometry.
type geometrySearch struct {
	g         geom.Geometry
	intersect bool
}

func (c geometrySearch) run(ix *LayerIndex) (*Results, error) {
	var (
		recs []*spatial.Record
		err  error
	)
	if c.intersect {
		recs, err = ix.layer.SearchIntersectsGeometry(c.g)
	} else {
		recs, err = ix.layer.SearchWithinGeometry(c.g)
	}
	if err != nil {
		return nil, err
	}
	return ix.resolveRecords(recs)
}

// distanceSearch handles withinDistance (geodesic) and intersectDistance
// (planar); both return entities in ascending distance order.
type distanceSearch struct {
	lon, lat, km float64
	planar       bool
}

func (c distanceSearch) run(ix *LayerIndex) (*Results, error) {
	metric := geo.HaversineKm
	if c.planar {
		metric = geo.PlanarKm
	}
	neighbors := ix.layer.Nearest(c.lon, c.lat, c.km, metric)

	results := &Results{}
	for _, nb := range neighbors {
		node, err := ix.store.GetNode(nb.Record.EntityID)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		results.Nodes = append(results.Nodes, node)
		results.Distances = append(results.Distances, nb.DistanceKm)
	}
	return results, nil
}

// addByID upserts one entity by raw identity.
type addByID struct {
	id storage.NodeID
}

func (c addByID) run(ix *LayerIndex) (*Results, error) {
	node, err := ix.store.GetNode(c.id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: node %s", ErrResolution, c.id)
	}
	if err != nil {
		return nil, err
	}
	if err := ix.Add(node); err != nil {
		return nil, err
	}
	return &Results{Nodes: []*storage.Node{node}}, nil
}

// addByFlowID resolves a business key through the declarative lookup, then
// upserts the resolved entity.
type addByFlowID struct {
	dataset  string
	geomType string
	flowID   string
}

func (c addByFlowID) run(ix *LayerIndex) (*Results, error) {
	label := fmt.Sprintf("flowdb/dataset/%s/geometry/%s/instance", c.dataset, c.geomType)
	query := fmt.Sprintf("MATCH (n:`%s` {flowid: $flowid}) RETURN n", label)

	node, err := ix.flow.FindNode(query, map[string]any{"flowid": c.flowID})
	if errors.Is(err, flowquery.ErrNoMatch) {
		return nil, fmt.Errorf("%w: flowid %q in dataset %q type %q", ErrResolution, c.flowID, c.dataset, c.geomType)
	}
	if err != nil {
		return nil, err
	}
	if err := ix.Add(node); err != nil {
		return nil, err
	}
	return &Results{Nodes: []*storage.Node{node}}, nil
}

// removeByID removes one entity by raw identity. Removing an identity that
// was never indexed is a no-op with an empty result.
type removeByID struct {
	id storage.NodeID
}

func (c removeByID) run(ix *LayerIndex) (*Results, error) {
	node, err := ix.store.GetNode(c.id)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	if err := ix.RemoveByID(c.id); err != nil {
		return nil, err
	}

	results := &Results{}
	if node != nil {
		results.Nodes = []*storage.Node{node}
	}
	return results, nil
}

// batchIndex runs the label-driven batch indexing job.
type batchIndex struct {
	label     string
	batchSize int
}

func (c batchIndex) run(ix *LayerIndex) (*Results, error) {
	return ix.indexByLabel(c.label, c.batchSize)
}

// resolveRecords maps geometry records back to their entities, preserving
// record order. Entities deleted from storage but still indexed are skipped.
func (ix *LayerIndex) resolveRecords(recs []*spatial.Record) (*Results, error) {
	results := &Results{}
	for _, rec := range recs {
		node, err := ix.store.GetNode(rec.EntityID)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		results.Nodes = append(results.Nodes, node)
	}
	return results, nil
}

// Payload decode helpers. Payloads arrive either as structured maps or as
// textual JSON lists; each query type accepts exactly one shape (except the
// distance queries, which accept both).

func decodeEnvelopeMap(params any) (geo.Envelope, error) {
	m, ok := params.(map[string]any)
	if !ok {
		return geo.Envelope{}, fmt.Errorf("want map with %q, got %T", EnvelopeParameter, params)
	}
	coords, ok := floatSlice(m[EnvelopeParameter])
	if !ok {
		return geo.Envelope{}, fmt.Errorf("missing or malformed %q parameter", EnvelopeParameter)
	}
	return geo.EnvelopeFromList(coords)
}

func decodeDistanceParams(params any) (lon, lat, km float64, err error) {
	switch p := params.(type) {
	case string:
		coords, err := decodeFloatList(p, 3)
		if err != nil {
			return 0, 0, 0, err
		}
		return coords[0], coords[1], coords[2], nil
	case map[string]any:
		point, ok := floatSlice(p[PointParameter])
		if !ok || len(point) != 2 {
			return 0, 0, 0, fmt.Errorf("missing or malformed %q parameter", PointParameter)
		}
		km, ok := toFloat(p[DistanceInKmParameter])
		if !ok {
			return 0, 0, 0, fmt.Errorf("missing or malformed %q parameter", DistanceInKmParameter)
		}
		return point[0], point[1], km, nil
	default:
		return 0, 0, 0, fmt.Errorf("want [lon, lat, distanceKm] text or {point, distanceInKm} map, got %T", params)
	}
}

// decodeFloatList parses a textual JSON list of exactly wantLen numbers.
func decodeFloatList(params any, wantLen int) ([]float64, error) {
	text, ok := params.(string)
	if !ok {
		return nil, fmt.Errorf("want JSON list text, got %T", params)
	}
	var coords []float64
	if err := json.Unmarshal([]byte(text), &coords); err != nil {
		return nil, fmt.Errorf("parse %q: %v", text, err)
	}
	if len(coords) != wantLen {
		return nil, fmt.Errorf("want %d numbers, got %d", wantLen, len(coords))
	}
	return coords, nil
}

// decodeStringList parses a textual JSON list of exactly wantLen items,
// coercing numbers to their string form.
func decodeStringList(params any, wantLen int) ([]string, error) {
	text, ok := params.(string)
	if !ok {
		return nil, fmt.Errorf("want JSON list text, got %T", params)
	}
	var raw []any
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("parse %q: %v", text, err)
	}
	if len(raw) != wantLen {
		return nil, fmt.Errorf("want %d items, got %d", wantLen, len(raw))
	}
	items := make([]string, wantLen)
	for i, v := range raw {
		switch t := v.(type) {
		case string:
			items[i] = t
		case float64:
			items[i] = strconv.FormatFloat(t, 'f', -1, 64)
		default:
			return nil, fmt.Errorf("item %d has type %T", i, v)
		}
	}
	return items, nil
}

// decodeNodeID parses a textual single identity: a JSON string, a JSON
// number, or a bare identifier.
func decodeNodeID(params any) (storage.NodeID, error) {
	text, ok := params.(string)
	if !ok {
		return "", fmt.Errorf("want identity text, got %T", params)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("empty identity")
	}

	var decoded any
	if err := json.Unmarshal([]byte(text), &decoded); err == nil {
		switch t := decoded.(type) {
		case string:
			if t == "" {
				return "", fmt.Errorf("empty identity")
			}
			return storage.NodeID(t), nil
		case float64:
			return storage.NodeID(strconv.FormatFloat(t, 'f', -1, 64)), nil
		}
	}
	return storage.NodeID(text), nil
}

func floatSlice(v any) ([]float64, bool) {
	switch t := v.(type) {
	case []float64:
		return t, true
	case []any:
		out := make([]float64, len(t))
		for i, item := range t {
			f, ok := toFloat(item)
			if !ok {
				return nil, false
			}
			out[i] = f
		}
		return out, true
	default:
		return nil, false
	}
}

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
	default:
		return 0, false
	}
}
