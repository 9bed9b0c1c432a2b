package stats

import "time"

// Delta is the append-only staging area for updates not yet folded into the
// aggregated map. It is owned by the aggregator and replaced wholesale (never
// field-cleared) on every commit, so no stale entry can survive a commit.
type Delta struct {
    // Version and Stamp are the values the next commit will publish. Version
    // must equal the aggregated map's version plus one at commit time.
    Version uint64
    Stamp   time.Time

    // Whole-value replacements keyed by node / partition id.
    Nodes      map[string]NodeStats
    Partitions map[PartitionID]PartitionStats

    // Keys to drop from the aggregated map at commit. Removals are staged by
    // the topology corrective pass only, never by ingestion.
    RemovedNodes      map[string]struct{}
    RemovedPartitions map[PartitionID]struct{}
}

// NewDelta returns an empty staging delta.
func NewDelta() *Delta {
    return &Delta{
        Nodes:             make(map[string]NodeStats),
        Partitions:        make(map[PartitionID]PartitionStats),
        RemovedNodes:      make(map[string]struct{}),
        RemovedPartitions: make(map[PartitionID]struct{}),
    }
}

// Empty reports whether the delta stages no updates and no removals.
func (d *Delta) Empty() bool {
    return len(d.Nodes) == 0 && len(d.Partitions) == 0 &&
        len(d.RemovedNodes) == 0 && len(d.RemovedPartitions) == 0
}

// StageNode stages a whole-value node stat replacement.
func (d *Delta) StageNode(node string, ns NodeStats) {
    delete(d.RemovedNodes, node)
    d.Nodes[node] = ns
}

// StagePartition stages a whole-value partition stat replacement.
func (d *Delta) StagePartition(id PartitionID, ps PartitionStats) {
    delete(d.RemovedPartitions, id)
    d.Partitions[id] = ps
}

// RemoveNode stages removal of a node's stats, dropping any staged update.
func (d *Delta) RemoveNode(node string) {
    delete(d.Nodes, node)
    d.RemovedNodes[node] = struct{}{}
}

// RemovePartition stages removal of a partition, dropping any staged update.
func (d *Delta) RemovePartition(id PartitionID) {
    delete(d.Partitions, id)
    d.RemovedPartitions[id] = struct{}{}
}
