package clusterstate

import (
    "sort"

    "github.com/amirimatin/go-clusterstate/pkg/stats"
)

// PingEntry is one (source, target, interface) latency observation in a
// network dump: the three rolling averages with their window min/max plus the
// most recent instantaneous sample, all in microseconds.
type PingEntry struct {
    From      string    `json:"from"`
    To        string    `json:"to"`
    Interface string    `json:"interface"`
    Average   [3]uint32 `json:"average"` // 1min, 5min, 15min
    Min       [3]uint32 `json:"min"`
    Max       [3]uint32 `json:"max"`
    Last      uint32    `json:"last"`
}

// observed is the figure entries are ranked and filtered by: the worst of the
// three rolling averages.
func (e PingEntry) observed() uint32 {
    v := e.Average[0]
    if e.Average[1] > v { v = e.Average[1] }
    if e.Average[2] > v { v = e.Average[2] }
    return v
}

// NetworkReport is the ordered result of DumpNetwork.
type NetworkReport struct {
    ThresholdUsec int64       `json:"threshold"`
    Entries       []PingEntry `json:"entries"`
}

// ifaceRank fixes the interface tie-break order: front sorts before back.
func ifaceRank(iface string) int {
    if iface == stats.InterfaceFront { return 0 }
    return 1
}

// DumpNetwork reports all peer latency observations at or above the
// threshold, worst first. A negative thresholdUsec means "not supplied":
// default to the configured warn threshold, else derive one from the
// heartbeat grace times the slow-ping ratio; a negative resolved value clamps
// to zero, and zero keeps every recorded sample.
//
// The result is a stable total order (latency desc, then source, target,
// interface with back after front) independent of map iteration order, since
// it is user-facing diagnostic output and must be deterministic.
func (c *ClusterState) DumpNetwork(thresholdUsec int64) *NetworkReport {
    c.mu.Lock()
    defer c.mu.Unlock()

    value := thresholdUsec
    if value < 0 {
        value = int64(c.opts.WarnSlowPingUsec)
        if value == 0 {
            value = int64(c.opts.HeartbeatGrace.Seconds() * c.opts.SlowPingRatio * 1e6)
        }
    }
    if value < 0 {
        value = 0
    }

    var entries []PingEntry
    for from, ns := range c.agg.Nodes {
        for to, pp := range ns.PeerPings {
            // The back interface is always sampled; front only exists on
            // nodes with a split network, flagged by a nonzero last sample.
            back := PingEntry{
                From:      from,
                To:        to,
                Interface: stats.InterfaceBack,
                Average:   pp.Back.Avg,
                Min:       pp.Back.Min,
                Max:       pp.Back.Max,
                Last:      pp.Back.Last,
            }
            if value == 0 || int64(back.observed()) >= value {
                entries = append(entries, back)
            }
            if pp.Front.Last == 0 {
                continue
            }
            front := PingEntry{
                From:      from,
                To:        to,
                Interface: stats.InterfaceFront,
                Average:   pp.Front.Avg,
                Min:       pp.Front.Min,
                Max:       pp.Front.Max,
                Last:      pp.Front.Last,
            }
            if value == 0 || int64(front.observed()) >= value {
                entries = append(entries, front)
            }
        }
    }

    sort.Slice(entries, func(i, j int) bool {
        a, b := entries[i], entries[j]
        if oa, ob := a.observed(), b.observed(); oa != ob {
            return oa > ob
        }
        if a.From != b.From {
            return a.From < b.From
        }
        if a.To != b.To {
            return a.To < b.To
        }
        return ifaceRank(a.Interface) < ifaceRank(b.Interface)
    })

    return &NetworkReport{ThresholdUsec: value, Entries: entries}
}
