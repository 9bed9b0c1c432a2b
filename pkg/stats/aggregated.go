package stats

import "time"

// AggregatedMap is the committed global view of the cluster: the union of the
// most recent accepted node and partition stats, stamped with a monotonic
// version that advances by exactly one per commit.
//
// The aggregator owns the live instance; external readers get deep copies via
// Clone so they can never observe a half-applied commit.
type AggregatedMap struct {
    Version uint64    `json:"version"`
    Stamp   time.Time `json:"stamp"`

    Nodes      map[string]NodeStats           `json:"nodes"`
    Partitions map[PartitionID]PartitionStats `json:"partitions"`
}

// NewAggregatedMap returns an empty map at version 0.
func NewAggregatedMap() *AggregatedMap {
    return &AggregatedMap{
        Nodes:      make(map[string]NodeStats),
        Partitions: make(map[PartitionID]PartitionStats),
    }
}

// ApplyDelta folds a staged delta into the map: whole-value replace per key,
// then removals. The delta's version and stamp become the map's. Cost is
// proportional to the size of the delta, not the map.
func (m *AggregatedMap) ApplyDelta(d *Delta) {
    for node, ns := range d.Nodes {
        m.Nodes[node] = ns
    }
    for id, ps := range d.Partitions {
        m.Partitions[id] = ps
    }
    for node := range d.RemovedNodes {
        delete(m.Nodes, node)
    }
    for id := range d.RemovedPartitions {
        delete(m.Partitions, id)
    }
    m.Version = d.Version
    m.Stamp = d.Stamp
}

// Clone returns a deep copy safe to hand to readers outside the lock.
func (m *AggregatedMap) Clone() *AggregatedMap {
    out := &AggregatedMap{
        Version:    m.Version,
        Stamp:      m.Stamp,
        Nodes:      make(map[string]NodeStats, len(m.Nodes)),
        Partitions: make(map[PartitionID]PartitionStats, len(m.Partitions)),
    }
    for node, ns := range m.Nodes {
        cp := ns
        if ns.PeerPings != nil {
            cp.PeerPings = make(map[string]PeerPing, len(ns.PeerPings))
            for peer, pp := range ns.PeerPings {
                cp.PeerPings[peer] = pp
            }
        }
        out.Nodes[node] = cp
    }
    for id, ps := range m.Partitions {
        cp := ps
        if ps.Acting != nil {
            cp.Acting = append([]string(nil), ps.Acting...)
        }
        out.Partitions[id] = cp
    }
    return out
}
