package daemon

import (
    "context"
    "encoding/json"
    "errors"
    "log"
    "sync"
    "time"

    "github.com/amirimatin/go-clusterstate/pkg/clusterstate"
    "github.com/amirimatin/go-clusterstate/pkg/discovery"
    "github.com/amirimatin/go-clusterstate/pkg/internal/logutil"
    "github.com/amirimatin/go-clusterstate/pkg/membership"
    obsmetrics "github.com/amirimatin/go-clusterstate/pkg/observability/metrics"
    "github.com/amirimatin/go-clusterstate/pkg/topology/watch"
    "github.com/amirimatin/go-clusterstate/pkg/transport"
)

// Options carries dependency-injected components and runtime configuration
// used to assemble the aggregator daemon. Instances are typically produced
// from bootstrap.Config.
type Options struct {
    // NodeID is the unique identifier of this daemon within the cluster.
    NodeID string
    // Discovery provides seed nodes for the gossip join.
    Discovery discovery.Discovery
    // Logger is used to report operational messages.
    Logger *log.Logger

    // Membership implementation (required): the liveness source the topology
    // watcher derives snapshots from.
    Membership membership.Membership

    // Pools is the authoritative pool table (id → name).
    Pools map[int64]string

    // Management RPC server (required).
    RPCServer transport.RPCServer

    // CommitInterval is how often ingestion-only deltas are flushed into the
    // aggregated map. Zero means the 5s default.
    CommitInterval time.Duration

    // State tunes the aggregator core (ping thresholds etc).
    State clusterstate.Options
}

// Validate performs a minimal validation of Options. It does not start any
// network activity and is safe to call before New.
func (o Options) Validate() error {
    if o.NodeID == "" {
        return errors.New("daemon: empty NodeID")
    }
    if o.Membership == nil {
        return errors.New("daemon: nil Membership")
    }
    if o.RPCServer == nil {
        return errors.New("daemon: nil RPCServer")
    }
    if o.Logger == nil {
        return errors.New("daemon: nil Logger")
    }
    return nil
}

// Daemon wires the aggregator core to its collaborators: gossip membership,
// the topology watcher, the periodic committer and the management RPC
// endpoint.
type Daemon struct {
    opts Options
    mu   sync.Mutex
    run  struct {
        started bool
        closed  bool
    }
    cs  *clusterstate.ClusterState
    mem membership.Membership
    pub *watch.Publisher
}

// New constructs a Daemon from validated options. It performs no network
// activity; call Start to launch.
func New(opts Options) (*Daemon, error) {
    if err := opts.Validate(); err != nil {
        return nil, err
    }
    opts.State.Logger = opts.Logger
    d := &Daemon{opts: opts, mem: opts.Membership}
    d.cs = clusterstate.New(opts.State)
    d.pub = watch.New(d.mem, opts.Pools, d.cs, opts.Logger)
    return d, nil
}

// State exposes the aggregator core (e.g. for embedding applications that
// feed digests or consume snapshots directly).
func (d *Daemon) State() *clusterstate.ClusterState { return d.cs }

// Start launches membership, the topology watcher, the periodic committer
// and the management endpoint.
func (d *Daemon) Start(ctx context.Context) error {
    d.mu.Lock()
    defer d.mu.Unlock()
    if d.run.started {
        return nil
    }
    d.run.started = true
    obsmetrics.Register()

    if err := d.mem.Start(ctx); err != nil {
        return err
    }
    if d.opts.Discovery != nil {
        if seeds := d.opts.Discovery.Seeds(); len(seeds) > 0 {
            logutil.Infof(d.opts.Logger, "joining gossip seeds: %v", seeds)
            _ = d.mem.Join(seeds)
        }
    }
    go d.pub.Run(ctx)
    go d.cs.RunCommitter(ctx, d.opts.CommitInterval)

    statusFn := func(ctx context.Context) ([]byte, error) { return d.statusJSON() }
    reportFn := func(ctx context.Context, req transport.ReportRequest) (transport.ReportResponse, error) {
        d.cs.IngestReport(&req.Report)
        return transport.ReportResponse{}, nil
    }
    digestFn := func(ctx context.Context, req transport.DigestRequest) (transport.DigestResponse, error) {
        d.cs.LoadDigest(req.Health, req.MonStatus)
        return transport.DigestResponse{}, nil
    }
    commandFn := func(ctx context.Context, req transport.CommandRequest) (transport.CommandResponse, error) {
        if !d.knownCommand(req.Name) {
            // User-facing rejection. Only commands present in the dispatch
            // table reach AdminCommand; it asserts on anything else.
            return transport.CommandResponse{Error: "unknown command: " + req.Name}, nil
        }
        out, err := d.cs.AdminCommand(req.Name, req.Args)
        if err != nil {
            return transport.CommandResponse{Error: err.Error()}, nil
        }
        return transport.CommandResponse{Data: out}, nil
    }
    if err := d.opts.RPCServer.Start(ctx, statusFn, reportFn, digestFn, commandFn); err != nil {
        return err
    }
    logutil.Infof(d.opts.Logger, "management endpoint listening at %s (status/report/command/metrics)", d.opts.RPCServer.Addr())
    return nil
}

func (d *Daemon) knownCommand(name string) bool {
    for _, cd := range d.cs.Commands() {
        if cd.Name == name {
            return true
        }
    }
    return false
}

// DaemonStatus is the JSON payload served on /status.
type DaemonStatus struct {
    NodeID      string              `json:"nodeId"`
    Aggregator  clusterstate.Status `json:"aggregator"`
    Members     int                 `json:"members"`
    GossipScore int                 `json:"gossipScore"`
}

func (d *Daemon) statusJSON() ([]byte, error) {
    st := DaemonStatus{
        NodeID:      d.opts.NodeID,
        Aggregator:  d.cs.Status(),
        GossipScore: -1,
    }
    st.Members = len(d.mem.Members())
    if hr, ok := d.mem.(membership.HealthReporter); ok {
        st.GossipScore = hr.HealthScore()
    }
    return json.Marshal(st)
}

// Stop gracefully shuts down membership and the management server.
func (d *Daemon) Stop(ctx context.Context) error {
    d.mu.Lock()
    defer d.mu.Unlock()
    if d.run.closed {
        return nil
    }
    d.run.closed = true
    _ = d.mem.Leave()
    _ = d.mem.Stop()
    return d.opts.RPCServer.Stop(ctx)
}

// Close is a convenience alias for Stop with a background context.
func (d *Daemon) Close() error { return d.Stop(context.Background()) }
