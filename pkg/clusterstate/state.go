package clusterstate

import (
    "context"
    "encoding/json"
    "log"
    "sync"
    "time"

    "github.com/amirimatin/go-clusterstate/pkg/internal/logutil"
    obsmetrics "github.com/amirimatin/go-clusterstate/pkg/observability/metrics"
    "github.com/amirimatin/go-clusterstate/pkg/stats"
    "github.com/amirimatin/go-clusterstate/pkg/topology"
)

// Options carries runtime configuration for the aggregator. The ping
// threshold knobs feed the default-threshold derivation of DumpNetwork.
type Options struct {
    // Logger is used for operational messages. If nil, log.Default() is used.
    Logger *log.Logger

    // WarnSlowPingUsec is the default threshold (µs) for dump_osd_network
    // when the caller supplies none. Zero means derive from
    // HeartbeatGrace*SlowPingRatio instead.
    WarnSlowPingUsec uint64
    // HeartbeatGrace is how long a node may stay silent before its peers
    // consider it unhealthy.
    HeartbeatGrace time.Duration
    // SlowPingRatio scales HeartbeatGrace into the derived warn threshold.
    SlowPingRatio float64
}

func (o *Options) defaults() {
    if o.Logger == nil { o.Logger = log.Default() }
    if o.HeartbeatGrace <= 0 { o.HeartbeatGrace = 20 * time.Second }
    if o.SlowPingRatio <= 0 { o.SlowPingRatio = 0.05 }
}

// ClusterState aggregates the periodic status reports of all storage nodes
// into one consistent global view and reconciles it against topology changes.
//
// A single mutex guards every piece of mutable state: the committed map, the
// pending delta, the pool admission filter and the auxiliary snapshot blobs.
// All public entry points take it for their full duration and never block
// while holding it; the coarse discipline is what makes the cross-field
// invariants (admission filter in lockstep with partition stats, no stale
// overwrite of newer data) hold without finer ordering rules.
type ClusterState struct {
    opts Options

    mu      sync.Mutex
    agg     *stats.AggregatedMap
    pending *stats.Delta

    // validPools is the admission filter: partitions of pools outside this
    // set are discarded on ingestion. Replaced wholesale on topology change.
    validPools map[int64]struct{}

    // Replace-on-write snapshot mirrors from collaborators. Opaque here;
    // they only share the lock so diagnostics never see torn values.
    fsMap      json.RawMessage
    mgrMap     json.RawMessage
    serviceMap json.RawMessage
    healthJSON []byte
    monStatus  []byte
}

// New constructs an empty aggregator at map version 0 with an empty
// admission filter (every partition report is discarded until the first
// topology notification arrives).
func New(opts Options) *ClusterState {
    opts.defaults()
    return &ClusterState{
        opts:       opts,
        agg:        stats.NewAggregatedMap(),
        pending:    stats.NewDelta(),
        validPools: make(map[int64]struct{}),
    }
}

// IngestReport merges one node status report into the pending delta.
//
// Node-level stats are recorded unconditionally: reports carry the full
// payload and the most recent arrival wins. Partition entries pass two
// filters: the pool must be in the admission filter, and the entry's version
// pair must be strictly newer than what is already known (the staged value if
// one exists, else the committed one). Discards are expected outcomes of
// concurrent multi-source reporting, never errors, and never abort the rest
// of the batch. Nothing is committed here.
func (c *ClusterState) IngestReport(r *stats.Report) {
    c.mu.Lock()
    defer c.mu.Unlock()

    ns := r.Stats
    ns.Epoch = r.Epoch
    c.pending.StageNode(r.Node, ns)
    obsmetrics.ReportsIngested.Inc()

    for _, e := range r.Partitions {
        // A partition that, per the last topology update, should not exist.
        if _, ok := c.validPools[e.ID.Pool]; !ok {
            logutil.Debugf(c.opts.Logger, "ingest: dropping %s reported at %s state %q: pool not in current topology",
                e.ID, e.Stats.Reported, e.Stats.State)
            obsmetrics.PartitionUpdatesRejected.WithLabelValues("admission").Inc()
            continue
        }
        // Another node may already have told us something newer.
        if known, ok := c.knownVersionLocked(e.ID); ok && !known.Less(e.Stats.Reported) {
            logutil.Debugf(c.opts.Logger, "ingest: dropping %s at %s: already have %s",
                e.ID, e.Stats.Reported, known)
            obsmetrics.PartitionUpdatesRejected.WithLabelValues("stale").Inc()
            continue
        }
        c.pending.StagePartition(e.ID, e.Stats)
        obsmetrics.PartitionUpdatesAccepted.Inc()
    }
}

// knownVersionLocked returns the version pair the aggregator currently holds
// for a partition: the staged value when one exists, the committed value
// otherwise.
func (c *ClusterState) knownVersionLocked(id stats.PartitionID) (stats.VersionPair, bool) {
    if ps, ok := c.pending.Partitions[id]; ok {
        return ps.Reported, true
    }
    if ps, ok := c.agg.Partitions[id]; ok {
        return ps.Reported, true
    }
    return stats.VersionPair{}, false
}

// latestPartitionLocked returns the freshest stats known for a partition,
// preferring a staged update over the committed value.
func (c *ClusterState) latestPartitionLocked(id stats.PartitionID) (stats.PartitionStats, bool) {
    if ps, ok := c.pending.Partitions[id]; ok {
        return ps, true
    }
    ps, ok := c.agg.Partitions[id]
    return ps, ok
}

// OnTopologyChange reconciles the aggregated view against a new authoritative
// topology snapshot: it stages corrective updates for state the topology
// invalidated, replaces the admission filter wholesale, and commits
// immediately. Topology-driven changes are never left pending. The whole
// sequence runs inside one critical section so ingestion can never interleave
// with a half-applied filter.
func (c *ClusterState) OnTopologyChange(t *topology.Map) {
    c.mu.Lock()
    defer c.mu.Unlock()

    c.pending.Stamp = time.Now()
    c.pending.Version = c.agg.Version + 1
    logutil.Infof(c.opts.Logger, "topology change: epoch %d, %d pools, %d nodes (map v%d)",
        t.Epoch, len(t.Pools), len(t.Nodes), c.pending.Version)

    c.checkTopologyLocked(t)

    // Replace the pool admission filter in synchrony with this topology, so
    // later ingestion is filtered against the same view we corrected for.
    c.validPools = make(map[int64]struct{}, len(t.Pools))
    for pool := range t.Pools {
        c.validPools[pool] = struct{}{}
    }

    c.commitLocked()
    obsmetrics.TopologyChanges.Inc()
}

// checkTopologyLocked is the corrective pass: a full re-scan of all tracked
// state against the new topology. Partitions of deleted pools are staged for
// removal; partitions whose primary is gone or down are staged as stale;
// stats of departed nodes are dropped. Brute force on purpose: no diffing of
// what changed, the scan cost is accepted for its simplicity.
func (c *ClusterState) checkTopologyLocked(t *topology.Map) {
    for id := range c.agg.Partitions {
        if !t.HasPool(id.Pool) {
            logutil.Debugf(c.opts.Logger, "topology: purging %s: pool %d deleted", id, id.Pool)
            c.pending.RemovePartition(id)
            continue
        }
        ps, _ := c.latestPartitionLocked(id)
        if ps.Primary != "" && !t.NodeUp(ps.Primary) && ps.State != StateStale {
            logutil.Debugf(c.opts.Logger, "topology: marking %s stale: primary %s not up", id, ps.Primary)
            ps.State = StateStale
            c.pending.StagePartition(id, ps)
        }
    }
    // Staged-but-uncommitted partitions of deleted pools must not survive
    // the commit either.
    for id := range c.pending.Partitions {
        if !t.HasPool(id.Pool) {
            c.pending.RemovePartition(id)
        }
    }
    for node := range c.agg.Nodes {
        if !t.HasNode(node) {
            logutil.Debugf(c.opts.Logger, "topology: dropping stats of departed node %s", node)
            c.pending.RemoveNode(node)
        }
    }
}

// StateStale marks a partition whose primary the topology no longer lists as
// up; its stats are kept but cannot be trusted to be current.
const StateStale = "stale"

// Flush folds the pending delta into the aggregated map. It is the periodic
// committer's entry point for ingestion-only deltas; topology changes commit
// on their own.
func (c *ClusterState) Flush() {
    c.mu.Lock()
    defer c.mu.Unlock()
    c.commitLocked()
}

// commitLocked is the only path that advances the aggregated map's version:
// stamp now, version = committed+1, fold, then swap in a fresh empty delta.
func (c *ClusterState) commitLocked() {
    c.pending.Stamp = time.Now()
    c.pending.Version = c.agg.Version + 1
    c.agg.ApplyDelta(c.pending)
    c.pending = stats.NewDelta()

    obsmetrics.Commits.Inc()
    obsmetrics.MapVersion.Set(float64(c.agg.Version))
    obsmetrics.TrackedNodes.Set(float64(len(c.agg.Nodes)))
    obsmetrics.TrackedPartitions.Set(float64(len(c.agg.Partitions)))
}

// RunCommitter periodically flushes ingestion-only deltas until ctx is done.
// An empty delta still commits (version bump with no payload), keeping the
// map stamp fresh for consumers that watch it.
func (c *ClusterState) RunCommitter(ctx context.Context, interval time.Duration) {
    if interval <= 0 { interval = 5 * time.Second }
    ticker := time.NewTicker(interval)
    defer ticker.Stop()
    for {
        select {
        case <-ctx.Done():
            return
        case <-ticker.C:
            c.Flush()
        }
    }
}

// Snapshot returns a deep copy of the committed aggregated map. Readers never
// observe a partially applied commit and may keep the copy as long as they
// like.
func (c *ClusterState) Snapshot() *stats.AggregatedMap {
    c.mu.Lock()
    defer c.mu.Unlock()
    return c.agg.Clone()
}

// WithAggregated runs fn against the live committed map under the lock. This
// is the boundary for the map-apply collaborator that persists/replicates the
// map; fn must not retain the pointer and must not block.
func (c *ClusterState) WithAggregated(fn func(m *stats.AggregatedMap)) {
    c.mu.Lock()
    defer c.mu.Unlock()
    fn(c.agg)
}

// SetFilesystemMap replaces the mirrored filesystem map snapshot.
func (c *ClusterState) SetFilesystemMap(m json.RawMessage) {
    c.mu.Lock()
    defer c.mu.Unlock()
    c.fsMap = m
}

// SetManagerMap replaces the mirrored manager map snapshot.
func (c *ClusterState) SetManagerMap(m json.RawMessage) {
    c.mu.Lock()
    defer c.mu.Unlock()
    c.mgrMap = m
}

// SetServiceMap replaces the mirrored service map snapshot.
func (c *ClusterState) SetServiceMap(m json.RawMessage) {
    c.mu.Lock()
    defer c.mu.Unlock()
    c.serviceMap = m
}

// LoadDigest replaces the health and monitor status blobs wholesale. The
// payloads are opaque: no merge, no validation.
func (c *ClusterState) LoadDigest(health, monStatus []byte) {
    c.mu.Lock()
    defer c.mu.Unlock()
    c.healthJSON = health
    c.monStatus = monStatus
}

// Status is a cheap summary of the aggregator for the management endpoint.
type Status struct {
    Version    uint64    `json:"version"`
    Stamp      time.Time `json:"stamp"`
    Nodes      int       `json:"nodes"`
    Partitions int       `json:"partitions"`
    Pools      int       `json:"pools"`
    Pending    int       `json:"pending"`
    Health     json.RawMessage `json:"health,omitempty"`
    Filesystem json.RawMessage `json:"filesystem,omitempty"`
    Manager    json.RawMessage `json:"manager,omitempty"`
    Services   json.RawMessage `json:"services,omitempty"`
}

// Status returns a point-in-time summary of the committed map and the
// admission filter.
func (c *ClusterState) Status() Status {
    c.mu.Lock()
    defer c.mu.Unlock()
    return Status{
        Version:    c.agg.Version,
        Stamp:      c.agg.Stamp,
        Nodes:      len(c.agg.Nodes),
        Partitions: len(c.agg.Partitions),
        Pools:      len(c.validPools),
        Pending:    len(c.pending.Nodes) + len(c.pending.Partitions),
        Health:     json.RawMessage(c.healthJSON),
        Filesystem: c.fsMap,
        Manager:    c.mgrMap,
        Services:   c.serviceMap,
    }
}
