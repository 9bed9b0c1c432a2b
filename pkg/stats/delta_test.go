package stats

import (
    "testing"
    "time"
)

func TestDeltaStageRemoveCancel(t *testing.T) {
    d := NewDelta()
    if !d.Empty() { t.Fatal("new delta should be empty") }

    id := PartitionID{Pool: 1, Index: 3}
    d.StagePartition(id, PartitionStats{State: "active"})
    d.RemovePartition(id)
    if _, ok := d.Partitions[id]; ok {
        t.Fatal("removal should drop the staged update")
    }
    if _, ok := d.RemovedPartitions[id]; !ok {
        t.Fatal("removal not recorded")
    }

    // Staging again cancels the pending removal.
    d.StagePartition(id, PartitionStats{State: "active"})
    if _, ok := d.RemovedPartitions[id]; ok {
        t.Fatal("staging should cancel the pending removal")
    }

    d.StageNode("osd.1", NodeStats{CapacityKB: 10})
    d.RemoveNode("osd.1")
    if _, ok := d.Nodes["osd.1"]; ok {
        t.Fatal("node removal should drop the staged update")
    }
}

func TestApplyDelta(t *testing.T) {
    m := NewAggregatedMap()
    id1 := PartitionID{Pool: 1, Index: 0}
    id2 := PartitionID{Pool: 1, Index: 1}

    d := NewDelta()
    d.Version = 1
    d.Stamp = time.Now()
    d.StageNode("osd.0", NodeStats{CapacityKB: 100, UsedKB: 10})
    d.StagePartition(id1, PartitionStats{State: "active", Reported: VersionPair{1, 1}})
    d.StagePartition(id2, PartitionStats{State: "active", Reported: VersionPair{1, 1}})
    m.ApplyDelta(d)

    if m.Version != 1 { t.Fatalf("version: got %d want 1", m.Version) }
    if len(m.Nodes) != 1 || len(m.Partitions) != 2 {
        t.Fatalf("unexpected sizes: %d nodes %d partitions", len(m.Nodes), len(m.Partitions))
    }

    // Second delta: replace one partition, remove the other, drop the node.
    d2 := NewDelta()
    d2.Version = 2
    d2.Stamp = time.Now()
    d2.StagePartition(id1, PartitionStats{State: "degraded", Reported: VersionPair{1, 2}})
    d2.RemovePartition(id2)
    d2.RemoveNode("osd.0")
    m.ApplyDelta(d2)

    if m.Version != 2 { t.Fatalf("version: got %d want 2", m.Version) }
    if len(m.Nodes) != 0 { t.Fatalf("node not removed: %#v", m.Nodes) }
    if _, ok := m.Partitions[id2]; ok { t.Fatal("partition not removed") }
    if got := m.Partitions[id1].State; got != "degraded" {
        t.Fatalf("partition state: got %q want degraded", got)
    }
}

func TestCloneIsDeep(t *testing.T) {
    m := NewAggregatedMap()
    id := PartitionID{Pool: 2, Index: 5}
    m.Nodes["osd.0"] = NodeStats{PeerPings: map[string]PeerPing{"osd.1": {Back: PingWindows{Last: 9}}}}
    m.Partitions[id] = PartitionStats{State: "active", Acting: []string{"osd.0", "osd.1"}}

    c := m.Clone()
    c.Nodes["osd.0"].PeerPings["osd.1"] = PeerPing{Back: PingWindows{Last: 42}}
    c.Partitions[id].Acting[0] = "osd.9"
    delete(c.Partitions, id)

    if got := m.Nodes["osd.0"].PeerPings["osd.1"].Back.Last; got != 9 {
        t.Fatalf("clone shares ping map: got %d", got)
    }
    if got := m.Partitions[id].Acting[0]; got != "osd.0" {
        t.Fatalf("clone shares acting slice: got %q", got)
    }
    if _, ok := m.Partitions[id]; !ok {
        t.Fatal("clone shares partition map")
    }
}
