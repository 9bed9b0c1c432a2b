package stats

import (
    "fmt"
    "strconv"
    "strings"
)

// VersionPair is the two-level logical clock stamped on partition stats by the
// reporting node: the map epoch the node observed, plus a per-partition
// sequence counter. It orders reports for the same partition without relying
// on wall-clock time.
type VersionPair struct {
    Epoch uint64 `json:"epoch"`
    Seq   uint64 `json:"seq"`
}

// Less reports whether v orders strictly before o (epoch first, then seq).
func (v VersionPair) Less(o VersionPair) bool {
    if v.Epoch != o.Epoch {
        return v.Epoch < o.Epoch
    }
    return v.Seq < o.Seq
}

func (v VersionPair) String() string { return fmt.Sprintf("%d:%d", v.Epoch, v.Seq) }

// PartitionID identifies a replicated shard: the pool it belongs to plus the
// shard index within the pool.
type PartitionID struct {
    Pool  int64
    Index uint32
}

func (p PartitionID) String() string { return fmt.Sprintf("%d.%x", p.Pool, p.Index) }

// ParsePartitionID parses the "pool.index" form produced by String.
func ParsePartitionID(s string) (PartitionID, error) {
    dot := strings.IndexByte(s, '.')
    if dot <= 0 || dot == len(s)-1 {
        return PartitionID{}, fmt.Errorf("stats: malformed partition id %q", s)
    }
    pool, err := strconv.ParseInt(s[:dot], 10, 64)
    if err != nil {
        return PartitionID{}, fmt.Errorf("stats: malformed partition id %q: %v", s, err)
    }
    idx, err := strconv.ParseUint(s[dot+1:], 16, 32)
    if err != nil {
        return PartitionID{}, fmt.Errorf("stats: malformed partition id %q: %v", s, err)
    }
    return PartitionID{Pool: pool, Index: uint32(idx)}, nil
}

// MarshalText lets PartitionID serve as a JSON map key.
func (p PartitionID) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *PartitionID) UnmarshalText(b []byte) error {
    id, err := ParsePartitionID(string(b))
    if err != nil {
        return err
    }
    *p = id
    return nil
}

// Interface classes over which inter-node latency is sampled. Back is the
// replication path, front the client-facing path.
const (
    InterfaceBack  = "back"
    InterfaceFront = "front"
)

// Ping rolling-average windows, in order: 1min, 5min, 15min.
var WindowNames = [3]string{"1min", "5min", "15min"}

// PingWindows carries the rolling latency figures for one peer over one
// interface class, all in microseconds. Index i corresponds to WindowNames[i].
type PingWindows struct {
    Avg  [3]uint32 `json:"avg"`
    Min  [3]uint32 `json:"min"`
    Max  [3]uint32 `json:"max"`
    Last uint32    `json:"last"`
}

// Observed is the latency figure diagnostics report for this sample set: the
// worst of the three rolling averages.
func (w PingWindows) Observed() uint32 {
    v := w.Avg[0]
    if w.Avg[1] > v { v = w.Avg[1] }
    if w.Avg[2] > v { v = w.Avg[2] }
    return v
}

// PeerPing holds latency samples toward a single peer for both interface
// classes. The front set is only meaningful when Front.Last is nonzero (nodes
// without a split network never sample the front path).
type PeerPing struct {
    Back  PingWindows `json:"back"`
    Front PingWindows `json:"front"`
}

// NodeStats is the node-level statistics payload of a status report. The most
// recent report for a node wins wholesale; there is no per-field merging.
type NodeStats struct {
    // Epoch is the topology epoch the node had seen when it reported.
    Epoch uint64 `json:"epoch"`
    // Capacity/usage of the node's local storage, in KiB.
    CapacityKB uint64 `json:"capacityKb"`
    UsedKB     uint64 `json:"usedKb"`
    // PeerPings maps peer node id to latency samples toward that peer.
    PeerPings map[string]PeerPing `json:"peerPings,omitempty"`
}

// PartitionStats is the per-partition status carried in a report, stamped with
// the reporting node's version pair.
type PartitionStats struct {
    State    string      `json:"state"`
    Reported VersionPair `json:"reported"`
    // Primary is the node currently acting as primary for the partition.
    Primary string   `json:"primary"`
    Acting  []string `json:"acting,omitempty"`
}

// PartitionEntry pairs a partition id with its reported stats.
type PartitionEntry struct {
    ID    PartitionID    `json:"id"`
    Stats PartitionStats `json:"stats"`
}

// Report is the decoded node status report as delivered by the transport. The
// aggregator takes ownership of the payload; senders must not retain it.
type Report struct {
    Node       string           `json:"node"`
    Epoch      uint64           `json:"epoch"`
    Stats      NodeStats        `json:"stats"`
    Partitions []PartitionEntry `json:"partitions,omitempty"`
}
