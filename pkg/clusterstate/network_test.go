package clusterstate

import (
    "testing"
    "time"

    "github.com/amirimatin/go-clusterstate/pkg/stats"
)

func ingestPings(c *ClusterState, node string, pings map[string]stats.PeerPing) {
    c.IngestReport(&stats.Report{Node: node, Epoch: 1, Stats: stats.NodeStats{PeerPings: pings}})
    c.Flush()
}

func backPing(avg uint32) stats.PeerPing {
    return stats.PeerPing{Back: stats.PingWindows{Avg: [3]uint32{avg, avg, avg}, Last: avg}}
}

func TestDumpNetworkThresholdFilter(t *testing.T) {
    c := New(Options{})
    ingestPings(c, "osd.0", map[string]stats.PeerPing{
        "osd.1": backPing(200),
        "osd.2": backPing(300),
    })

    rep := c.DumpNetwork(250)
    if rep.ThresholdUsec != 250 {
        t.Fatalf("threshold: got %d want 250", rep.ThresholdUsec)
    }
    if len(rep.Entries) != 1 {
        t.Fatalf("entries: got %d want 1", len(rep.Entries))
    }
    e := rep.Entries[0]
    if e.To != "osd.2" || e.Interface != stats.InterfaceBack {
        t.Fatalf("unexpected entry: %+v", e)
    }

    // The boundary is inclusive.
    rep = c.DumpNetwork(300)
    if len(rep.Entries) != 1 || rep.Entries[0].To != "osd.2" {
        t.Fatalf("threshold == observed must match: %+v", rep.Entries)
    }
}

func TestDumpNetworkZeroThresholdKeepsAll(t *testing.T) {
    c := New(Options{})
    ingestPings(c, "osd.0", map[string]stats.PeerPing{
        "osd.1": backPing(1),
        "osd.2": backPing(2),
    })
    rep := c.DumpNetwork(0)
    if len(rep.Entries) != 2 {
        t.Fatalf("zero threshold: got %d entries want 2", len(rep.Entries))
    }
}

func TestDumpNetworkDefaultThreshold(t *testing.T) {
    // No explicit warn threshold: derived as grace seconds * ratio * 1e6 µs.
    c := New(Options{HeartbeatGrace: 20 * time.Second, SlowPingRatio: 0.05})
    rep := c.DumpNetwork(-1)
    if rep.ThresholdUsec != 1_000_000 {
        t.Fatalf("derived threshold: got %d want 1000000", rep.ThresholdUsec)
    }

    // An explicit warn threshold takes precedence over derivation.
    c = New(Options{WarnSlowPingUsec: 5000, HeartbeatGrace: 20 * time.Second, SlowPingRatio: 0.05})
    if rep := c.DumpNetwork(-1); rep.ThresholdUsec != 5000 {
        t.Fatalf("configured threshold: got %d want 5000", rep.ThresholdUsec)
    }
}

func TestDumpNetworkFrontRequiresSample(t *testing.T) {
    c := New(Options{})
    ingestPings(c, "osd.0", map[string]stats.PeerPing{
        // Split network: both interfaces sampled.
        "osd.1": {
            Back:  stats.PingWindows{Avg: [3]uint32{100, 100, 100}, Last: 100},
            Front: stats.PingWindows{Avg: [3]uint32{90, 90, 90}, Last: 90},
        },
        // Single network: front never sampled, Last stays zero.
        "osd.2": {
            Back:  stats.PingWindows{Avg: [3]uint32{100, 100, 100}, Last: 100},
            Front: stats.PingWindows{Avg: [3]uint32{999, 999, 999}},
        },
    })
    rep := c.DumpNetwork(0)
    if len(rep.Entries) != 3 {
        t.Fatalf("got %d entries want 3 (2 back + 1 front)", len(rep.Entries))
    }
    for _, e := range rep.Entries {
        if e.To == "osd.2" && e.Interface == stats.InterfaceFront {
            t.Fatal("front entry emitted without a front sample")
        }
    }
}

func TestDumpNetworkOrdering(t *testing.T) {
    c := New(Options{})
    ingestPings(c, "osd.1", map[string]stats.PeerPing{"osd.2": backPing(500)})
    ingestPings(c, "osd.0", map[string]stats.PeerPing{
        "osd.2": backPing(500),
        "osd.1": {
            Back:  stats.PingWindows{Avg: [3]uint32{500, 500, 500}, Last: 500},
            Front: stats.PingWindows{Avg: [3]uint32{500, 500, 500}, Last: 500},
        },
        "osd.3": backPing(900),
    })

    rep := c.DumpNetwork(0)
    want := []struct {
        from, to, iface string
    }{
        {"osd.0", "osd.3", stats.InterfaceBack},   // worst latency first
        {"osd.0", "osd.1", stats.InterfaceFront},  // then from, to, front before back
        {"osd.0", "osd.1", stats.InterfaceBack},
        {"osd.0", "osd.2", stats.InterfaceBack},
        {"osd.1", "osd.2", stats.InterfaceBack},
    }
    if len(rep.Entries) != len(want) {
        t.Fatalf("got %d entries want %d", len(rep.Entries), len(want))
    }
    for i, w := range want {
        e := rep.Entries[i]
        if e.From != w.from || e.To != w.to || e.Interface != w.iface {
            t.Fatalf("entry %d: got %s->%s/%s want %s->%s/%s", i, e.From, e.To, e.Interface, w.from, w.to, w.iface)
        }
    }

    // Same state, same order: the dump is deterministic.
    rep2 := c.DumpNetwork(0)
    for i := range rep.Entries {
        if rep.Entries[i] != rep2.Entries[i] {
            t.Fatalf("entry %d differs between identical dumps", i)
        }
    }
}
