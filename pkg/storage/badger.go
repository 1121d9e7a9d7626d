// BadgerEngine provides persistent disk-based storage using BadgerDB.
package storage

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

// Key prefixes for BadgerDB storage organization
// Using single-byte prefixes for efficiency
const (
	prefixNode       = byte(0x01) // node:nodeID -> JSON(Node)
	prefixLabelIndex = byte(0x02) // label:labelName:nodeID -> []byte{}
)

// BadgerEngine provides persistent storage using BadgerDB.
//
// Key Structure:
//   - Nodes: 0x01 + nodeID -> JSON(Node)
//   - Label Index: 0x02 + label + 0x00 + nodeID -> empty
//
// Example:
//
//	engine, err := storage.NewBadgerEngine("/path/to/data")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer engine.Close()
type BadgerEngine struct {
	db     *badger.DB
	mu     sync.RWMutex
	closed bool
}

// NewBadgerEngine opens (or creates) a Badger-backed engine at dataDir.
func NewBadgerEngine(dataDir string) (*BadgerEngine, error) {
	opts := badger.DefaultOptions(dataDir)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", dataDir, err)
	}

	return &BadgerEngine{db: db}, nil
}

// NewInMemoryBadgerEngine opens an in-memory Badger engine (testing).
func NewInMemoryBadgerEngine() (*BadgerEngine, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open in-memory badger: %w", err)
	}

	return &BadgerEngine{db: db}, nil
}

func nodeKey(id NodeID) []byte {
	return append([]byte{prefixNode}, []byte(id)...)
}

// labelIndexKey builds a label index entry key.
// Format: prefix + label + 0x00 + nodeID
func labelIndexKey(label string, id NodeID) []byte {
	key := make([]byte, 0, 2+len(label)+len(id))
	key = append(key, prefixLabelIndex)
	key = append(key, []byte(label)...)
	key = append(key, 0x00)
	key = append(key, []byte(id)...)
	return key
}

// labelIndexPrefix returns the prefix for scanning all nodes with a label.
func labelIndexPrefix(label string) []byte {
	key := make([]byte, 0, 2+len(label))
	key = append(key, prefixLabelIndex)
	key = append(key, []byte(label)...)
	key = append(key, 0x00)
	return key
}

func badgerIterOptsKeyOnly(prefix []byte) badger.IteratorOptions {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	return opts
}

// CreateNode creates a new node.
func (b *BadgerEngine) CreateNode(node *Node) error {
	if node == nil {
		return ErrInvalidData
	}
	if node.ID == "" {
		return ErrInvalidID
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrStorageClosed
	}

	data, err := json.Marshal(node)
	if err != nil {
		return fmt.Errorf("marshal node %s: %w", node.ID, err)
	}

	return b.db.Update(func(txn *badger.Txn) error {
		key := nodeKey(node.ID)
		if _, err := txn.Get(key); err == nil {
			return ErrAlreadyExists
		} else if err != badger.ErrKeyNotFound {
			return err
		}

		if err := txn.Set(key, data); err != nil {
			return err
		}
		for _, label := range node.Labels {
			if err := txn.Set(labelIndexKey(label, node.ID), nil); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetNode retrieves a node by ID.
func (b *BadgerEngine) GetNode(id NodeID) (*Node, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrStorageClosed
	}

	var node *Node
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(nodeKey(id))
		if err == badger.ErrKeyNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			node = &Node{}
			return json.Unmarshal(val, node)
		})
	})
	if err != nil {
		return nil, err
	}
	return node, nil
}

// UpdateNode updates an existing node, maintaining the label index.
func (b *BadgerEngine) UpdateNode(node *Node) error {
	if node == nil {
		return ErrInvalidData
	}
	if node.ID == "" {
		return ErrInvalidID
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrStorageClosed
	}

	data, err := json.Marshal(node)
	if err != nil {
		return fmt.Errorf("marshal node %s: %w", node.ID, err)
	}

	return b.db.Update(func(txn *badger.Txn) error {
		key := nodeKey(node.ID)
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		var existing Node
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &existing)
		}); err != nil {
			return err
		}

		for _, label := range existing.Labels {
			if err := txn.Delete(labelIndexKey(label, node.ID)); err != nil {
				return err
			}
		}
		if err := txn.Set(key, data); err != nil {
			return err
		}
		for _, label := range node.Labels {
			if err := txn.Set(labelIndexKey(label, node.ID), nil); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteNode removes a node and its label index entries.
func (b *BadgerEngine) DeleteNode(id NodeID) error {
	if id == "" {
		return ErrInvalidID
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrStorageClosed
	}

	return b.db.Update(func(txn *badger.Txn) error {
		key := nodeKey(id)
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		var existing Node
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &existing)
		}); err != nil {
			return err
		}

		for _, label := range existing.Labels {
			if err := txn.Delete(labelIndexKey(label, id)); err != nil {
				return err
			}
		}
		return txn.Delete(key)
	})
}

// GetNodesByLabel returns all nodes with the given label.
func (b *BadgerEngine) GetNodesByLabel(label string) ([]*Node, error) {
	it, err := b.ScanLabel(label)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	nodes := []*Node{}
	for {
		node, ok := it.Next()
		if !ok {
			break
		}
		nodes = append(nodes, node)
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return nodes, nil
}

// ScanLabel returns an iterator over nodes with the given label.
//
// The iterator holds a Badger read transaction open until Close is called;
// callers must Close on every exit path.
func (b *BadgerEngine) ScanLabel(label string) (NodeIterator, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrStorageClosed
	}

	prefix := labelIndexPrefix(label)
	txn := b.db.NewTransaction(false)
	iter := txn.NewIterator(badgerIterOptsKeyOnly(prefix))
	iter.Rewind()

	return &badgerIterator{
		engine: b,
		txn:    txn,
		iter:   iter,
		prefix: prefix,
	}, nil
}

// NodeCount returns the number of nodes.
func (b *BadgerEngine) NodeCount() (int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return 0, ErrStorageClosed
	}

	var count int64
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badgerIterOptsKeyOnly([]byte{prefixNode}))
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// Close closes the storage engine.
func (b *BadgerEngine) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	return b.db.Close()
}

// badgerIterator walks a label index prefix, resolving each entry to its node.
type badgerIterator struct {
	engine *BadgerEngine
	txn    *badger.Txn
	iter   *badger.Iterator
	prefix []byte
	err    error
	closed bool
}

func (it *badgerIterator) Next() (*Node, bool) {
	if it.closed || it.err != nil {
		return nil, false
	}
	for it.iter.ValidForPrefix(it.prefix) {
		key := it.iter.Item().Key()
		id := NodeID(key[len(it.prefix):])
		it.iter.Next()

		item, err := it.txn.Get(nodeKey(id))
		if err == badger.ErrKeyNotFound {
			// Dangling index entry; skip.
			continue
		}
		if err != nil {
			it.err = err
			return nil, false
		}

		node := &Node{}
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, node)
		}); err != nil {
			it.err = err
			return nil, false
		}
		return node, true
	}
	return nil, false
}

func (it *badgerIterator) Err() error { return it.err }

func (it *badgerIterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	it.iter.Close()
	it.txn.Discard()
	return nil
}

// Verify BadgerEngine implements Engine interface
var _ Engine = (*BadgerEngine)(nil)
