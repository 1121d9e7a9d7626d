package layer

import (
	"errors"
	"fmt"
	"log"

	"github.com/norngeo/norngeo/pkg/storage"
)

// MarkerProperty flags a node as needing (re-)indexing. The batch indexer
// clears it after a successful upsert; the persisted marker is the only
// resumption state between batches.
const MarkerProperty = "indexRequired"

// indexByLabel scans nodes carrying the label with the marker property set,
// upserts up to batchSize of them, and clears each node's marker.
//
// Partial batches are valid: the job is meant to be called repeatedly until
// no flagged nodes remain. A failure on one node does not abort the rest of
// the batch; per-node errors are joined and returned alongside the nodes
// that did index, and the failed nodes keep their marker for the next run.
func (ix *LayerIndex) indexByLabel(label string, batchSize int) (*Results, error) {
	it, err := ix.store.ScanLabel(label)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	results := &Results{}
	var errs []error
	processed := 0

	for processed < batchSize {
		node, ok := it.Next()
		if !ok {
			break
		}
		if !markerSet(node.Property(MarkerProperty)) {
			continue
		}
		processed++

		if err := ix.Add(node); err != nil {
			log.Printf("layer %s: batch index of node %s failed: %v", ix.name, node.ID, err)
			errs = append(errs, fmt.Errorf("node %s: %w", node.ID, err))
			continue
		}
		if err := ix.clearMarker(node); err != nil {
			errs = append(errs, fmt.Errorf("node %s: clear marker: %w", node.ID, err))
			continue
		}
		results.Nodes = append(results.Nodes, node)
	}
	if err := it.Err(); err != nil {
		errs = append(errs, err)
	}

	return results, errors.Join(errs...)
}

// clearMarker persists indexRequired=false on the node.
func (ix *LayerIndex) clearMarker(node *storage.Node) error {
	if node.Properties == nil {
		node.Properties = make(map[string]any)
	}
	node.Properties[MarkerProperty] = false
	return ix.store.UpdateNode(node)
}

// markerSet interprets the marker property, tolerating the string form
// some import pipelines write.
func markerSet(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t == "true"
	default:
		return false
	}
}
