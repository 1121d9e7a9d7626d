// Package storage provides graph storage engines for NornGeo.
//
// The storage layer holds the application entities (graph nodes) that the
// spatial layer indexes. Two engines are provided:
//   - MemoryEngine: thread-safe in-memory storage for testing and small datasets
//   - BadgerEngine: persistent disk-based storage using BadgerDB
package storage

import (
	"errors"
	"time"
)

// Errors returned by storage engines.
var (
	ErrNotFound      = errors.New("node not found")
	ErrAlreadyExists = errors.New("node already exists")
	ErrInvalidID     = errors.New("invalid node ID")
	ErrInvalidData   = errors.New("invalid node data")
	ErrStorageClosed = errors.New("storage is closed")
)

// NodeID uniquely identifies a node.
type NodeID string

// Node is a graph node: a stable identity plus labels and properties.
// Geometry-bearing properties (lat/lon, wkt, wkb) live in Properties and
// are interpreted by the layer's geometry encoder, not by storage.
type Node struct {
	ID         NodeID         `json:"id"`
	Labels     []string       `json:"labels"`
	Properties map[string]any `json:"properties"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Property returns a named property, or nil if absent.
func (n *Node) Property(key string) any {
	if n == nil || n.Properties == nil {
		return nil
	}
	return n.Properties[key]
}

// HasLabel reports whether the node carries the given label.
func (n *Node) HasLabel(label string) bool {
	for _, l := range n.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// NodeIterator streams nodes from a label scan.
//
// Callers must Close the iterator on every exit path, including early
// termination; the Badger implementation holds a read transaction open
// until Close is called.
type NodeIterator interface {
	// Next returns the next node, or (nil, false) when exhausted.
	Next() (*Node, bool)
	// Err returns the first error encountered during iteration.
	Err() error
	// Close releases the underlying scan resources. Safe to call twice.
	Close() error
}

// Engine is the storage interface the layer composes against.
type Engine interface {
	CreateNode(node *Node) error
	GetNode(id NodeID) (*Node, error)
	UpdateNode(node *Node) error
	DeleteNode(id NodeID) error

	// GetNodesByLabel returns all nodes carrying the label.
	GetNodesByLabel(label string) ([]*Node, error)

	// ScanLabel returns an iterator over nodes carrying the label.
	// The caller owns the iterator and must Close it.
	ScanLabel(label string) (NodeIterator, error)

	NodeCount() (int64, error)
	Close() error
}
