package clusterstate

import (
    "bytes"
    "encoding/json"
    "testing"

    "github.com/amirimatin/go-clusterstate/pkg/stats"
    "github.com/amirimatin/go-clusterstate/pkg/topology"
)

func newTopology(epoch uint64, pools []int64, nodes ...string) *topology.Map {
    t := topology.New(epoch)
    for _, p := range pools {
        t.Pools[p] = "pool"
    }
    for _, n := range nodes {
        t.Nodes[n] = topology.NodeInfo{Up: true}
    }
    return t
}

func report(node string, epoch uint64, entries ...stats.PartitionEntry) *stats.Report {
    return &stats.Report{Node: node, Epoch: epoch, Stats: stats.NodeStats{CapacityKB: 100, UsedKB: 10}, Partitions: entries}
}

func entry(pool int64, idx uint32, state string, ep, seq uint64, primary string) stats.PartitionEntry {
    return stats.PartitionEntry{
        ID:    stats.PartitionID{Pool: pool, Index: idx},
        Stats: stats.PartitionStats{State: state, Reported: stats.VersionPair{Epoch: ep, Seq: seq}, Primary: primary},
    }
}

func TestIngestBeforeTopologyDiscardsPartitions(t *testing.T) {
    c := New(Options{})
    c.IngestReport(report("osd.0", 1, entry(1, 0, "active", 1, 1, "osd.0")))
    c.Flush()

    snap := c.Snapshot()
    if len(snap.Partitions) != 0 {
        t.Fatalf("empty admission filter must discard all partitions, got %d", len(snap.Partitions))
    }
    // Node-level stats are unconditional.
    if _, ok := snap.Nodes["osd.0"]; !ok {
        t.Fatal("node stats should be recorded regardless of admission")
    }
    if snap.Nodes["osd.0"].Epoch != 1 {
        t.Fatalf("node epoch: got %d want 1", snap.Nodes["osd.0"].Epoch)
    }
}

func TestStaleVersionPairRejected(t *testing.T) {
    c := New(Options{})
    c.OnTopologyChange(newTopology(1, []int64{1}, "osd.0", "osd.1"))

    c.IngestReport(report("osd.0", 1, entry(1, 0, "active", 5, 10, "osd.0")))
    c.Flush()

    // A slower reporter delivers an older observation of the same partition.
    c.IngestReport(report("osd.1", 1, entry(1, 0, "degraded", 5, 9, "osd.0")))
    c.Flush()

    ps := c.Snapshot().Partitions[stats.PartitionID{Pool: 1, Index: 0}]
    if ps.State != "active" || ps.Reported != (stats.VersionPair{Epoch: 5, Seq: 10}) {
        t.Fatalf("old report overwrote newer state: %+v", ps)
    }

    // Equal version pairs are stale too: acceptance requires strictly newer.
    c.IngestReport(report("osd.1", 1, entry(1, 0, "degraded", 5, 10, "osd.0")))
    c.Flush()
    if got := c.Snapshot().Partitions[stats.PartitionID{Pool: 1, Index: 0}].State; got != "active" {
        t.Fatalf("equal version pair accepted: state %q", got)
    }

    // Strictly newer wins.
    c.IngestReport(report("osd.1", 1, entry(1, 0, "degraded", 5, 11, "osd.0")))
    c.Flush()
    if got := c.Snapshot().Partitions[stats.PartitionID{Pool: 1, Index: 0}].State; got != "degraded" {
        t.Fatalf("newer report rejected: state %q", got)
    }
}

func TestStagedVersionGuardsWithinOneDelta(t *testing.T) {
    c := New(Options{})
    c.OnTopologyChange(newTopology(1, []int64{1}, "osd.0", "osd.1"))

    // Both reports land before any commit; the second must be checked against
    // the staged value, not the (empty) committed one.
    c.IngestReport(report("osd.0", 1, entry(1, 0, "active", 5, 10, "osd.0")))
    c.IngestReport(report("osd.1", 1, entry(1, 0, "degraded", 5, 9, "osd.0")))
    c.Flush()

    ps := c.Snapshot().Partitions[stats.PartitionID{Pool: 1, Index: 0}]
    if ps.State != "active" {
        t.Fatalf("staged value not used for staleness check: %+v", ps)
    }
}

func TestCommitAdvancesVersionByOne(t *testing.T) {
    c := New(Options{})
    if v := c.Snapshot().Version; v != 0 {
        t.Fatalf("fresh map version: got %d want 0", v)
    }
    c.Flush()
    c.Flush()
    if v := c.Snapshot().Version; v != 2 {
        t.Fatalf("two empty commits: got version %d want 2", v)
    }

    before := c.Snapshot().Version
    c.IngestReport(report("osd.0", 1))
    c.Flush()
    if v := c.Snapshot().Version; v != before+1 {
        t.Fatalf("commit advanced version by %d, want 1", v-before)
    }
}

func TestTopologyChangePurgesDeletedPool(t *testing.T) {
    c := New(Options{})
    c.OnTopologyChange(newTopology(1, []int64{1, 7}, "osd.0"))

    c.IngestReport(report("osd.0", 1,
        entry(1, 0, "active", 1, 1, "osd.0"),
        entry(7, 0, "active", 1, 1, "osd.0")))
    c.Flush()
    if n := len(c.Snapshot().Partitions); n != 2 {
        t.Fatalf("setup: got %d partitions want 2", n)
    }

    // Stage one more pool-7 update that is still uncommitted when the pool
    // disappears; it must not survive either.
    c.IngestReport(report("osd.0", 2, entry(7, 1, "active", 2, 1, "osd.0")))

    c.OnTopologyChange(newTopology(2, []int64{1}, "osd.0"))

    snap := c.Snapshot()
    for id := range snap.Partitions {
        if id.Pool == 7 {
            t.Fatalf("partition %s of deleted pool survived", id)
        }
    }
    if n := len(snap.Partitions); n != 1 {
        t.Fatalf("got %d partitions want 1", n)
    }

    // Later reports for the deleted pool are discarded outright.
    c.IngestReport(report("osd.0", 2, entry(7, 0, "active", 3, 1, "osd.0")))
    c.Flush()
    if n := len(c.Snapshot().Partitions); n != 1 {
        t.Fatalf("report for deleted pool admitted: %d partitions", n)
    }
}

func TestTopologyChangeMarksStaleAndDropsDeparted(t *testing.T) {
    c := New(Options{})
    c.OnTopologyChange(newTopology(1, []int64{1}, "osd.0", "osd.1"))

    c.IngestReport(report("osd.0", 1, entry(1, 0, "active", 1, 1, "osd.0")))
    c.IngestReport(report("osd.1", 1, entry(1, 1, "active", 1, 1, "osd.1")))
    c.Flush()

    // osd.1 leaves the topology: its node stats go away and the partition it
    // was primary for is marked stale.
    c.OnTopologyChange(newTopology(2, []int64{1}, "osd.0"))

    snap := c.Snapshot()
    if _, ok := snap.Nodes["osd.1"]; ok {
        t.Fatal("departed node stats survived")
    }
    if got := snap.Partitions[stats.PartitionID{Pool: 1, Index: 1}].State; got != StateStale {
        t.Fatalf("partition of departed primary: state %q want %q", got, StateStale)
    }
    if got := snap.Partitions[stats.PartitionID{Pool: 1, Index: 0}].State; got != "active" {
        t.Fatalf("unaffected partition changed: state %q", got)
    }

    // Topology changes commit immediately, nothing stays pending.
    if st := c.Status(); st.Pending != 0 {
        t.Fatalf("pending after topology change: %d", st.Pending)
    }
}

func TestSnapshotIsIsolatedAndDeterministic(t *testing.T) {
    c := New(Options{})
    c.OnTopologyChange(newTopology(1, []int64{1}, "osd.0"))
    c.IngestReport(report("osd.0", 1, entry(1, 0, "active", 1, 1, "osd.0")))
    c.Flush()

    s1 := c.Snapshot()
    s2 := c.Snapshot()
    b1, err := json.Marshal(s1)
    if err != nil { t.Fatal(err) }
    b2, err := json.Marshal(s2)
    if err != nil { t.Fatal(err) }
    if !bytes.Equal(b1, b2) {
        t.Fatalf("identical state produced different encodings:\n%s\n%s", b1, b2)
    }

    // Mutating a snapshot must not leak back.
    delete(s1.Nodes, "osd.0")
    if _, ok := c.Snapshot().Nodes["osd.0"]; !ok {
        t.Fatal("snapshot mutation affected live state")
    }
}

func TestStatusCounters(t *testing.T) {
    c := New(Options{})
    c.OnTopologyChange(newTopology(1, []int64{1, 2}, "osd.0"))
    c.IngestReport(report("osd.0", 1, entry(1, 0, "active", 1, 1, "osd.0")))

    st := c.Status()
    if st.Pools != 2 { t.Fatalf("pools: got %d want 2", st.Pools) }
    if st.Pending != 2 { t.Fatalf("pending: got %d want 2 (node + partition)", st.Pending) }

    c.Flush()
    st = c.Status()
    if st.Pending != 0 { t.Fatalf("pending after flush: got %d", st.Pending) }
    if st.Nodes != 1 || st.Partitions != 1 {
        t.Fatalf("committed counts: %d nodes %d partitions", st.Nodes, st.Partitions)
    }

    c.LoadDigest([]byte(`{"status":"HEALTH_OK"}`), nil)
    if st := c.Status(); string(st.Health) != `{"status":"HEALTH_OK"}` {
        t.Fatalf("health digest: %s", st.Health)
    }

    c.SetFilesystemMap(json.RawMessage(`{"epoch":4}`))
    c.SetServiceMap(json.RawMessage(`{"rgw":1}`))
    st = c.Status()
    if string(st.Filesystem) != `{"epoch":4}` || string(st.Services) != `{"rgw":1}` {
        t.Fatalf("mirrored maps not surfaced: fs=%s svc=%s", st.Filesystem, st.Services)
    }
}

func TestWithAggregatedSeesLiveMap(t *testing.T) {
    c := New(Options{})
    c.OnTopologyChange(newTopology(1, []int64{1}, "osd.0"))
    c.IngestReport(report("osd.0", 1, entry(1, 0, "active", 1, 1, "osd.0")))
    c.Flush()

    var v uint64
    c.WithAggregated(func(m *stats.AggregatedMap) { v = m.Version })
    if got := c.Snapshot().Version; got != v {
        t.Fatalf("live map version %d, snapshot %d", v, got)
    }
}
