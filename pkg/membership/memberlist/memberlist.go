package memberlist

import (
    "context"
    "encoding/json"
    "fmt"
    "log"
    "net"
    "strconv"
    "sync"
    "time"

    "github.com/hashicorp/memberlist"

    base "github.com/amirimatin/go-clusterstate/pkg/membership"
)

// Options configures the memberlist-backed membership implementation.
type Options struct {
    // NodeID is the unique node identifier gossiped to peers.
    NodeID string

    // Bind is the gossip bind address in host:port form (e.g. ":7946").
    Bind string

    // Advertise is the address peers use to reach this node. If empty,
    // memberlist derives it from Bind.
    Advertise string

    // Meta is optional metadata gossiped with the node (e.g. service addr).
    Meta map[string]string

    // Logger is optional. If nil, log.Default() is used.
    Logger *log.Logger

    // Tuning parameters (optional). Zero means use memberlist defaults.
    ProbeInterval time.Duration
    ProbeTimeout  time.Duration
    SuspicionMult int
}

// gossip implements base.Membership using HashiCorp memberlist.
type gossip struct {
    mu     sync.RWMutex
    opts   Options
    ml     *memberlist.Memberlist
    evts   chan base.Event
    closed bool
}

// New constructs a memberlist-backed membership.
func New(opts Options) (base.Membership, error) {
    if opts.NodeID == "" {
        return nil, fmt.Errorf("memberlist: empty NodeID")
    }
    if opts.Bind == "" {
        return nil, fmt.Errorf("memberlist: empty Bind address")
    }
    if opts.Logger == nil {
        opts.Logger = log.Default()
    }
    return &gossip{opts: opts, evts: make(chan base.Event, 64)}, nil
}

// Start creates and launches the underlying memberlist instance.
func (g *gossip) Start(ctx context.Context) error {
    g.mu.Lock()
    defer g.mu.Unlock()
    if g.ml != nil {
        return nil
    }

    cfg := memberlist.DefaultLANConfig()
    cfg.Name = g.opts.NodeID
    host, port, err := splitHostPort(g.opts.Bind)
    if err != nil {
        return fmt.Errorf("memberlist: invalid bind address %q: %w", g.opts.Bind, err)
    }
    cfg.BindAddr = host
    cfg.BindPort = port

    if g.opts.Advertise != "" {
        ahost, aport, err := splitHostPort(g.opts.Advertise)
        if err != nil {
            return fmt.Errorf("memberlist: invalid advertise address %q: %w", g.opts.Advertise, err)
        }
        cfg.AdvertiseAddr = ahost
        cfg.AdvertisePort = aport
    }

    if g.opts.ProbeInterval > 0 { cfg.ProbeInterval = g.opts.ProbeInterval }
    if g.opts.ProbeTimeout > 0 { cfg.ProbeTimeout = g.opts.ProbeTimeout }
    if g.opts.SuspicionMult > 0 { cfg.SuspicionMult = g.opts.SuspicionMult }

    // Event delegate feeds the topology watcher; node delegate gossips the
    // static metadata blob.
    cfg.Events = &eventDelegate{emit: g.emit}
    metaBytes, _ := json.Marshal(g.opts.Meta)
    cfg.Delegate = &nodeDelegate{meta: metaBytes}

    ml, err := memberlist.Create(cfg)
    if err != nil {
        return err
    }
    g.ml = ml

    go func() {
        <-ctx.Done()
        _ = g.Stop()
    }()
    return nil
}

func (g *gossip) Join(seeds []string) error {
    g.mu.RLock()
    ml := g.ml
    g.mu.RUnlock()
    if ml == nil {
        return fmt.Errorf("memberlist: not started")
    }
    if len(seeds) == 0 {
        return nil
    }
    _, err := ml.Join(seeds)
    return err
}

func (g *gossip) Local() base.MemberInfo {
    g.mu.RLock()
    defer g.mu.RUnlock()
    if g.ml == nil {
        return base.MemberInfo{}
    }
    mi := toMemberInfo(g.ml.LocalNode())
    if len(mi.Meta) == 0 && g.opts.Meta != nil {
        mi.Meta = g.opts.Meta
    }
    return mi
}

func (g *gossip) Members() []base.MemberInfo {
    g.mu.RLock()
    defer g.mu.RUnlock()
    if g.ml == nil {
        return nil
    }
    nodes := g.ml.Members()
    out := make([]base.MemberInfo, 0, len(nodes))
    for _, n := range nodes {
        out = append(out, toMemberInfo(n))
    }
    return out
}

func (g *gossip) Events() <-chan base.Event { return g.evts }

func (g *gossip) Leave() error {
    g.mu.RLock()
    ml := g.ml
    g.mu.RUnlock()
    if ml == nil {
        return nil
    }
    // best-effort: give the leave a moment to broadcast
    _ = ml.Leave(time.Second)
    return nil
}

func (g *gossip) Stop() error {
    g.mu.Lock()
    defer g.mu.Unlock()
    if g.closed {
        return nil
    }
    g.closed = true
    if g.ml != nil {
        _ = g.ml.Shutdown()
        g.ml = nil
    }
    close(g.evts)
    return nil
}

// HealthScore exposes memberlist's awareness score.
// Implements membership.HealthReporter.
func (g *gossip) HealthScore() int {
    g.mu.RLock()
    defer g.mu.RUnlock()
    if g.ml == nil {
        return -1
    }
    return g.ml.GetHealthScore()
}

func (g *gossip) emit(e base.Event) {
    defer func() { recover() }()
    select {
    case g.evts <- e:
    default:
        // drop if the watcher is slow; it rebuilds from Members() anyway
        if g.opts.Logger != nil {
            g.opts.Logger.Printf("memberlist: dropping event %v: channel full", e.Type)
        }
    }
}

func toMemberInfo(n *memberlist.Node) base.MemberInfo {
    meta := map[string]string{}
    if len(n.Meta) > 0 {
        _ = json.Unmarshal(n.Meta, &meta)
    }
    return base.MemberInfo{
        ID:   n.Name,
        Addr: net.JoinHostPort(n.Addr.String(), strconv.Itoa(int(n.Port))),
        Meta: meta,
    }
}

func splitHostPort(hp string) (string, int, error) {
    host, portStr, err := net.SplitHostPort(hp)
    if err != nil {
        return "", 0, err
    }
    port, err := strconv.Atoi(portStr)
    if err != nil || port < 0 || port > 65535 {
        return "", 0, fmt.Errorf("invalid port: %q", portStr)
    }
    return host, port, nil
}

// eventDelegate adapts memberlist events to base.Event.
type eventDelegate struct {
    emit func(e base.Event)
}

func (d *eventDelegate) NotifyJoin(n *memberlist.Node) {
    if d.emit == nil || n == nil { return }
    d.emit(base.Event{Type: base.EventJoin, Member: toMemberInfo(n), At: time.Now()})
}

func (d *eventDelegate) NotifyLeave(n *memberlist.Node) {
    if d.emit == nil || n == nil { return }
    // memberlist conflates explicit leave with failure timeouts; both end up
    // as EventLeave and the watcher treats them identically (node no longer
    // up).
    d.emit(base.Event{Type: base.EventLeave, Member: toMemberInfo(n), At: time.Now()})
}

func (d *eventDelegate) NotifyUpdate(n *memberlist.Node) {
    if d.emit == nil || n == nil { return }
    d.emit(base.Event{Type: base.EventJoin, Member: toMemberInfo(n), At: time.Now()})
}

// nodeDelegate implements memberlist.Delegate to gossip static node metadata.
type nodeDelegate struct{ meta []byte }

func (d *nodeDelegate) NodeMeta(limit int) []byte {
    if len(d.meta) <= limit { return d.meta }
    if limit <= 0 { return nil }
    return d.meta[:limit]
}

// Unused hooks; required to satisfy the interface.
func (d *nodeDelegate) NotifyMsg([]byte)                       {}
func (d *nodeDelegate) GetBroadcasts(int, int) [][]byte        { return nil }
func (d *nodeDelegate) LocalState(join bool) []byte            { return nil }
func (d *nodeDelegate) MergeRemoteState(buf []byte, join bool) {}
