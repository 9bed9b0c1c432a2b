package watch

import (
    "context"
    "log"
    "sort"
    "strconv"
    "strings"
    "sync/atomic"

    "github.com/amirimatin/go-clusterstate/pkg/internal/logutil"
    "github.com/amirimatin/go-clusterstate/pkg/membership"
    "github.com/amirimatin/go-clusterstate/pkg/topology"
)

// MetaMgmtAddr is the gossip metadata key carrying a member's management
// API address. Bootstrap publishes it; build() prefers it over the gossip
// address when present.
const MetaMgmtAddr = "mgmt"

// Notifier receives full topology snapshots. The aggregator's
// ClusterState.OnTopologyChange satisfies it.
type Notifier interface {
    OnTopologyChange(t *topology.Map)
}

// Publisher derives authoritative topology snapshots from the gossip
// membership view plus a configured pool table, and pushes one to the
// notifier on every membership change. Snapshots are always rebuilt in full
// from Members(); individual events only trigger the rebuild, they are never
// applied as diffs.
type Publisher struct {
    mem    membership.Membership
    pools  map[int64]string
    sink   Notifier
    logger *log.Logger
    epoch  atomic.Uint64
}

// New constructs a Publisher. pools is the authoritative pool table
// (id → name); membership contributes the node up/down view.
func New(mem membership.Membership, pools map[int64]string, sink Notifier, logger *log.Logger) *Publisher {
    if logger == nil { logger = log.Default() }
    cp := make(map[int64]string, len(pools))
    for id, name := range pools {
        cp[id] = name
    }
    return &Publisher{mem: mem, pools: cp, sink: sink, logger: logger}
}

// Epoch returns the epoch of the last published snapshot.
func (p *Publisher) Epoch() uint64 { return p.epoch.Load() }

// Publish builds a snapshot from the current membership view and pushes it to
// the notifier. Called once at startup and after every membership event.
func (p *Publisher) Publish() {
    t := p.build()
    logutil.Infof(p.logger, "publishing topology epoch %d: %d pools, %d nodes", t.Epoch, len(t.Pools), len(t.Nodes))
    p.sink.OnTopologyChange(t)
}

// Run consumes membership events until ctx is done, republishing the full
// topology after each one. It publishes an initial snapshot first so the
// aggregator's admission filter is populated before any report arrives.
func (p *Publisher) Run(ctx context.Context) {
    p.Publish()
    evch := p.mem.Events()
    for {
        select {
        case <-ctx.Done():
            return
        case e, ok := <-evch:
            if !ok {
                return
            }
            logutil.Debugf(p.logger, "membership event %s for %s", e.Type, e.Member.ID)
            p.Publish()
        }
    }
}

func (p *Publisher) build() *topology.Map {
    t := topology.New(p.epoch.Add(1))
    for id, name := range p.pools {
        t.Pools[id] = name
    }
    for _, m := range p.mem.Members() {
        addr := m.Addr
        if m.Meta != nil {
            if mgmt := m.Meta[MetaMgmtAddr]; mgmt != "" { addr = mgmt }
        }
        t.Nodes[m.ID] = topology.NodeInfo{Up: true, Addr: addr}
    }
    return t
}

// ParsePools parses a pool table from "id:name,id:name" form (name optional).
// Used by the CLI to configure the authoritative pool set.
func ParsePools(csv string) (map[int64]string, error) {
    out := make(map[int64]string)
    if csv == "" {
        return out, nil
    }
    for _, part := range strings.Split(csv, ",") {
        part = strings.TrimSpace(part)
        if part == "" {
            continue
        }
        idStr, name := part, ""
        if colon := strings.IndexByte(part, ':'); colon >= 0 {
            idStr, name = part[:colon], part[colon+1:]
        }
        id, err := strconv.ParseInt(idStr, 10, 64)
        if err != nil {
            return nil, err
        }
        if name == "" {
            name = "pool-" + idStr
        }
        out[id] = name
    }
    return out, nil
}

// PoolList renders the table as "id:name" pairs in id order, for logs.
func PoolList(pools map[int64]string) string {
    ids := make([]int64, 0, len(pools))
    for id := range pools {
        ids = append(ids, id)
    }
    sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
    parts := make([]string, 0, len(ids))
    for _, id := range ids {
        parts = append(parts, strconv.FormatInt(id, 10)+":"+pools[id])
    }
    return strings.Join(parts, ",")
}
