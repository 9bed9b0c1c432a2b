package topology

import "sort"

// NodeInfo is the membership entry for one storage node in a topology
// snapshot.
type NodeInfo struct {
    Up   bool   `json:"up"`
    Addr string `json:"addr,omitempty"`
}

// Map is the authoritative topology snapshot published on every topology
// change. It is always the full topology, never a diff: consumers resolve
// "what changed" themselves by re-scanning their own state against it.
type Map struct {
    Epoch uint64 `json:"epoch"`
    // Pools maps pool id to pool name.
    Pools map[int64]string `json:"pools"`
    // Nodes maps node id to its current membership state.
    Nodes map[string]NodeInfo `json:"nodes"`
}

// New returns an empty topology snapshot at the given epoch.
func New(epoch uint64) *Map {
    return &Map{Epoch: epoch, Pools: make(map[int64]string), Nodes: make(map[string]NodeInfo)}
}

// HasPool reports whether the pool exists in this snapshot.
func (m *Map) HasPool(pool int64) bool {
    _, ok := m.Pools[pool]
    return ok
}

// HasNode reports whether the node is part of the topology at all.
func (m *Map) HasNode(node string) bool {
    _, ok := m.Nodes[node]
    return ok
}

// NodeUp reports whether the node is present and marked up.
func (m *Map) NodeUp(node string) bool {
    n, ok := m.Nodes[node]
    return ok && n.Up
}

// PoolIDs returns the pool ids in ascending order.
func (m *Map) PoolIDs() []int64 {
    out := make([]int64, 0, len(m.Pools))
    for id := range m.Pools {
        out = append(out, id)
    }
    sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
    return out
}
