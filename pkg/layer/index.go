// Package layer implements the identity-keyed spatial index facade.
//
// A LayerIndex makes a tree-backed spatial layer look like a uniform
// key/value index over graph nodes: Add and Remove keep a privately owned
// consistency index (entity identity -> geometry record) in step with the
// spatial layer, and Query multiplexes both searches and writes through a
// single (queryType, payload) entry point.
//
// The write-via-query protocol is a deliberate, documented compromise
// inherited from index contracts that expose no generic upsert operation:
// addNodeToLayer, addNodeToLayerByFlowId, createSpatialIndexByLabel and
// removeNodeFromLayer are write-shaped query types. Callers with access to
// the typed API should prefer Add and Remove directly.
package layer

import (
	"fmt"
	"sync"

	"github.com/norngeo/norngeo/pkg/flowquery"
	"github.com/norngeo/norngeo/pkg/geo"
	"github.com/norngeo/norngeo/pkg/spatial"
	"github.com/norngeo/norngeo/pkg/storage"
)

// LayerIndex is an identity-keyed spatial index over graph nodes.
type LayerIndex struct {
	name    string
	store   storage.Engine
	encoder geo.Encoder
	layer   *spatial.Layer
	ids     *consistencyIndex
	flow    *flowquery.Executor
}

// New creates a layer index over the given storage engine.
// The config must select exactly one geometry derivation strategy;
// anything else is a construction error.
func New(name string, store storage.Engine, cfg Config) (*LayerIndex, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &LayerIndex{
		name:    name,
		store:   store,
		encoder: cfg.encoder(),
		layer:   spatial.NewLayer(name),
		ids:     newConsistencyIndex(),
		flow:    flowquery.NewExecutor(store),
	}, nil
}

// Name returns the layer name.
func (ix *LayerIndex) Name() string { return ix.name }

// EntityType returns the kind of entity the index holds.
func (ix *LayerIndex) EntityType() string { return "node" }

// IsWriteable reports whether the index accepts writes. Always true.
func (ix *LayerIndex) IsWriteable() bool { return true }

// Count returns the number of indexed entities.
func (ix *LayerIndex) Count() int { return ix.layer.Count() }

// Add indexes the node, deriving its geometry per the layer configuration.
//
// Add is an upsert: if the entity is already indexed its geometry record
// is updated in place, never duplicated. Safe to call repeatedly on any
// attribute change without checking existence first.
func (ix *LayerIndex) Add(node *storage.Node) error {
	if node == nil || node.ID == "" {
		return storage.ErrInvalidID
	}

	g, err := ix.encoder.Decode(node)
	if err != nil {
		return fmt.Errorf("add %s: %w", node.ID, err)
	}

	if recID, ok := ix.ids.lookup(node.ID); ok {
		if _, err := ix.layer.Update(recID, g); err != nil {
			return fmt.Errorf("add %s: %w", node.ID, err)
		}
		return nil
	}

	rec, err := ix.layer.Add(g, node.ID, nil)
	if err != nil {
		return fmt.Errorf("add %s: %w", node.ID, err)
	}
	if err := ix.ids.register(node.ID, rec.ID); err != nil {
		// Another record won the race; roll back ours so exactly one
		// geometry record exists per entity.
		_ = ix.layer.Remove(rec.ID)
		return fmt.Errorf("add %s: %w", node.ID, err)
	}
	return nil
}

// Remove unindexes the node. Removing a never-indexed node is a no-op.
func (ix *LayerIndex) Remove(node *storage.Node) error {
	if node == nil || node.ID == "" {
		return storage.ErrInvalidID
	}
	return ix.RemoveByID(node.ID)
}

// RemoveByID unindexes an entity by raw identity.
// Removing a never-indexed identity is a no-op, not an error.
func (ix *LayerIndex) RemoveByID(id storage.NodeID) error {
	recID, ok := ix.ids.lookup(id)
	if !ok {
		return nil
	}
	if err := ix.layer.Remove(recID); err != nil {
		return fmt.Errorf("remove %s: %w", id, err)
	}
	ix.ids.unregister(id)
	return nil
}

// Delete drops the entire layer: every geometry record and every
// consistency index entry. Irreversible, no confirmation step.
func (ix *LayerIndex) Delete() {
	ix.layer.Drop()
	ix.ids.clear()
}

// PutIfAbsent is not supported; use Add, which upserts by identity.
func (ix *LayerIndex) PutIfAbsent(*storage.Node) error {
	return fmt.Errorf("putIfAbsent: %w", ErrUnsupported)
}

// consistencyIndex is the exact-match secondary index from entity identity
// to geometry record. It must never hold a stale entry: every remove path
// unregisters, and registration is rejected when an entry already exists.
type consistencyIndex struct {
	mu       sync.RWMutex
	byEntity map[storage.NodeID]spatial.RecordID
}

func newConsistencyIndex() *consistencyIndex {
	return &consistencyIndex{byEntity: make(map[storage.NodeID]spatial.RecordID)}
}

func (c *consistencyIndex) lookup(id storage.NodeID) (spatial.RecordID, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	recID, ok := c.byEntity[id]
	return recID, ok
}

func (c *consistencyIndex) register(id storage.NodeID, recID spatial.RecordID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.byEntity[id]; ok {
		return fmt.Errorf("entity %s already registered to record %s", id, existing)
	}
	c.byEntity[id] = recID
	return nil
}

func (c *consistencyIndex) unregister(id storage.NodeID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byEntity, id)
}

func (c *consistencyIndex) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byEntity = make(map[storage.NodeID]spatial.RecordID)
}

func (c *consistencyIndex) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byEntity)
}
