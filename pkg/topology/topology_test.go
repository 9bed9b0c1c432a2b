package topology

import "testing"

func TestMapLookups(t *testing.T) {
    m := New(3)
    m.Pools[1] = "volumes"
    m.Nodes["osd.0"] = NodeInfo{Up: true}
    m.Nodes["osd.1"] = NodeInfo{Up: false}

    if !m.HasPool(1) || m.HasPool(2) {
        t.Fatal("HasPool wrong")
    }
    if !m.HasNode("osd.0") || !m.HasNode("osd.1") || m.HasNode("osd.2") {
        t.Fatal("HasNode wrong")
    }
    if !m.NodeUp("osd.0") {
        t.Fatal("osd.0 should be up")
    }
    if m.NodeUp("osd.1") {
        t.Fatal("osd.1 is down but reported up")
    }
    if m.NodeUp("osd.2") {
        t.Fatal("unknown node reported up")
    }
}

func TestPoolIDsSorted(t *testing.T) {
    m := New(1)
    m.Pools[9] = "c"
    m.Pools[1] = "a"
    m.Pools[4] = "b"
    got := m.PoolIDs()
    want := []int64{1, 4, 9}
    if len(got) != len(want) {
        t.Fatalf("len: got %d want %d", len(got), len(want))
    }
    for i := range want {
        if got[i] != want[i] {
            t.Fatalf("ids[%d]: got %d want %d", i, got[i], want[i])
        }
    }
}
