package layer

import "github.com/norngeo/norngeo/pkg/storage"

// Results is the uniform result collection every query returns: an ordered
// sequence of matched entities for search queries, or the single affected
// entity for write-shaped queries.
type Results struct {
	// Nodes are the matched entities. Distance queries order them by
	// ascending distance; other searches order by record ID.
	Nodes []*storage.Node

	// Distances holds the per-node distance in kilometers for distance
	// queries, parallel to Nodes. Nil for other query types.
	Distances []float64
}

// Len returns the number of matched entities.
func (r *Results) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Nodes)
}

// IDs returns the matched entity IDs in result order.
func (r *Results) IDs() []storage.NodeID {
	ids := make([]storage.NodeID, 0, r.Len())
	for _, n := range r.Nodes {
		ids = append(ids, n.ID)
	}
	return ids
}
