// Package spatial implements the tree-backed geometry record layer.
//
// A Layer stores one geometry Record per indexed entity, keyed by an
// internal record ID that is distinct from the entity's identity. Search
// primitives (within, intersects, nearest-by-distance) run against an
// in-memory R-tree; identity bookkeeping is the caller's concern.
package spatial

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/go-spatial/geom"
	"github.com/google/uuid"
	"github.com/tidwall/rtree"

	"github.com/norngeo/norngeo/pkg/geo"
	"github.com/norngeo/norngeo/pkg/storage"
)

// ErrRecordNotFound is returned when a record ID has no record.
var ErrRecordNotFound = errors.New("geometry record not found")

// RecordID identifies a geometry record inside a layer.
type RecordID string

// Record is the layer's internal representation of one entity's geometry.
// EntityID tags the record with the owning entity, mirroring the auxiliary
// "id" attribute the layer sets on every record it creates.
type Record struct {
	ID         RecordID
	EntityID   storage.NodeID
	Geometry   geom.Geometry
	Envelope   geo.Envelope
	Properties map[string]any
}

// Layer is a tree-indexed store of geometry records.
type Layer struct {
	name string

	mu      sync.RWMutex
	tree    rtree.RTreeG[*Record]
	records map[RecordID]*Record
}

// NewLayer creates an empty spatial layer.
func NewLayer(name string) *Layer {
	return &Layer{
		name:    name,
		records: make(map[RecordID]*Record),
	}
}

// Name returns the layer name.
func (l *Layer) Name() string { return l.name }

// Add creates a new geometry record for the entity and returns it.
func (l *Layer) Add(g geom.Geometry, entityID storage.NodeID, props map[string]any) (*Record, error) {
	env, err := geo.EnvelopeOf(g)
	if err != nil {
		return nil, err
	}

	rec := &Record{
		ID:         RecordID(uuid.NewString()),
		EntityID:   entityID,
		Geometry:   g,
		Envelope:   env,
		Properties: map[string]any{"id": string(entityID)},
	}
	for k, v := range props {
		rec.Properties[k] = v
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.records[rec.ID] = rec
	l.tree.Insert(envMin(env), envMax(env), rec)

	return copyRecord(rec), nil
}

// Update replaces the geometry of an existing record in place.
func (l *Layer) Update(id RecordID, g geom.Geometry) (*Record, error) {
	env, err := geo.EnvelopeOf(g)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}

	l.tree.Delete(envMin(rec.Envelope), envMax(rec.Envelope), rec)
	rec.Geometry = g
	rec.Envelope = env
	l.tree.Insert(envMin(env), envMax(env), rec)

	return copyRecord(rec), nil
}

// Remove deletes a record from the layer.
func (l *Layer) Remove(id RecordID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}

	l.tree.Delete(envMin(rec.Envelope), envMax(rec.Envelope), rec)
	delete(l.records, id)
	return nil
}

// Get returns a record by ID.
func (l *Layer) Get(id RecordID) (*Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	rec, ok := l.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	return copyRecord(rec), nil
}

// Count returns the number of records in the layer.
func (l *Layer) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// Drop removes every record from the layer. Irreversible.
func (l *Layer) Drop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tree = rtree.RTreeG[*Record]{}
	l.records = make(map[RecordID]*Record)
}

// SearchWithin returns records whose envelope lies entirely inside env,
// ordered by record ID for deterministic results.
func (l *Layer) SearchWithin(env geo.Envelope) []*Record {
	return l.search(env, func(rec *Record) bool {
		return env.Contains(rec.Envelope)
	})
}

// SearchIntersects returns records whose envelope overlaps env.
func (l *Layer) SearchIntersects(env geo.Envelope) []*Record {
	return l.search(env, func(rec *Record) bool {
		return env.Intersects(rec.Envelope)
	})
}

// SearchWithinGeometry returns records contained in the geometry.
func (l *Layer) SearchWithinGeometry(g geom.Geometry) ([]*Record, error) {
	bound, err := geo.EnvelopeOf(g)
	if err != nil {
		return nil, err
	}
	var predErr error
	out := l.search(bound, func(rec *Record) bool {
		ok, err := geo.ContainsEnvelope(g, rec.Envelope)
		if err != nil && predErr == nil {
			predErr = err
		}
		return err == nil && ok
	})
	if predErr != nil {
		return nil, predErr
	}
	return out, nil
}

// SearchIntersectsGeometry returns records intersecting the geometry.
func (l *Layer) SearchIntersectsGeometry(g geom.Geometry) ([]*Record, error) {
	bound, err := geo.EnvelopeOf(g)
	if err != nil {
		return nil, err
	}
	var predErr error
	out := l.search(bound, func(rec *Record) bool {
		ok, err := geo.IntersectsEnvelope(g, rec.Envelope)
		if err != nil && predErr == nil {
			predErr = err
		}
		return err == nil && ok
	})
	if predErr != nil {
		return nil, predErr
	}
	return out, nil
}

// Neighbor pairs a record with its distance from a reference point.
type Neighbor struct {
	Record     *Record
	DistanceKm float64
}

// Nearest returns records within maxKm of the reference point, in strictly
// ascending distance order under the given metric. Record envelopes are
// reduced to their center point for the distance computation.
func (l *Layer) Nearest(lon, lat, maxKm float64, metric geo.DistanceMetric) []Neighbor {
	// Expand the search window so the tree scan covers the radius.
	// Longitude degrees shrink with latitude; guard against the poles.
	dLat := maxKm / 111.195
	cos := math.Cos(lat * math.Pi / 180)
	if cos < 0.01 {
		cos = 0.01
	}
	dLon := dLat / cos
	window := geo.Envelope{
		MinX: lon - dLon, MaxX: lon + dLon,
		MinY: lat - dLat, MaxY: lat + dLat,
	}

	l.mu.RLock()
	var neighbors []Neighbor
	l.tree.Search(envMin(window), envMax(window), func(_, _ [2]float64, rec *Record) bool {
		cx, cy := rec.Envelope.Center()
		d := metric(lon, lat, cx, cy)
		if d <= maxKm {
			neighbors = append(neighbors, Neighbor{Record: copyRecord(rec), DistanceKm: d})
		}
		return true
	})
	l.mu.RUnlock()

	sort.Slice(neighbors, func(i, j int) bool {
		if neighbors[i].DistanceKm != neighbors[j].DistanceKm {
			return neighbors[i].DistanceKm < neighbors[j].DistanceKm
		}
		return neighbors[i].Record.ID < neighbors[j].Record.ID
	})
	return neighbors
}

// search runs a tree scan over env and keeps records matching the predicate.
func (l *Layer) search(env geo.Envelope, match func(*Record) bool) []*Record {
	l.mu.RLock()
	var out []*Record
	l.tree.Search(envMin(env), envMax(env), func(_, _ [2]float64, rec *Record) bool {
		if match(rec) {
			out = append(out, copyRecord(rec))
		}
		return true
	})
	l.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func envMin(e geo.Envelope) [2]float64 { return [2]float64{e.MinX, e.MinY} }
func envMax(e geo.Envelope) [2]float64 { return [2]float64{e.MaxX, e.MaxY} }

// copyRecord returns a copy safe to hand to callers. Geometries are
// treated as immutable and shared.
func copyRecord(r *Record) *Record {
	if r == nil {
		return nil
	}
	copied := &Record{
		ID:         r.ID,
		EntityID:   r.EntityID,
		Geometry:   r.Geometry,
		Envelope:   r.Envelope,
		Properties: make(map[string]any, len(r.Properties)),
	}
	for k, v := range r.Properties {
		copied.Properties[k] = v
	}
	return copied
}
