package bootstrap

import (
    "context"
    "crypto/tls"
    "log"
    "time"

    "github.com/amirimatin/go-clusterstate/pkg/clusterstate"
    "github.com/amirimatin/go-clusterstate/pkg/daemon"
    "github.com/amirimatin/go-clusterstate/pkg/discovery"
    dDNS "github.com/amirimatin/go-clusterstate/pkg/discovery/dns"
    dFile "github.com/amirimatin/go-clusterstate/pkg/discovery/file"
    dStatic "github.com/amirimatin/go-clusterstate/pkg/discovery/static"
    ml "github.com/amirimatin/go-clusterstate/pkg/membership/memberlist"
    tlsx "github.com/amirimatin/go-clusterstate/pkg/security/tlsconfig"
    "github.com/amirimatin/go-clusterstate/pkg/topology/watch"
    "github.com/amirimatin/go-clusterstate/pkg/transport"
    mgmtgrpc "github.com/amirimatin/go-clusterstate/pkg/transport/grpc"
    httpjson "github.com/amirimatin/go-clusterstate/pkg/transport/httpjson"
)

// Config defines high-level inputs to assemble an aggregator daemon with
// sensible defaults. Applications embed the aggregator by providing this
// structure and calling Build/Run.
type Config struct {
    // Identity and addresses
    NodeID  string
    MemBind string // gossip bind host:port
    MemAdv  string // optional advertise host:port

    // Management API (status/report/digest/command/metrics)
    MgmtAddr  string // host:port for management API (HTTP or gRPC)
    MgmtProto string // "http" (default) or "grpc"

    // Discovery settings
    DiscoveryKind string        // "static" (default), "dns", or "file"
    SeedsCSV      string        // used when DiscoveryKind=static
    DNSNamesCSV   string        // used when kind=dns
    DNSPort       int           // used when kind=dns (A/AAAA)
    DiscRefresh   time.Duration // cache/refresh duration for discovery
    FilePath      string        // used when kind=file
    FileEnv       string        // used when kind=file

    // Pool table, "id:name,id:name" form. Reports for partitions of pools
    // outside this table are discarded on ingest.
    PoolsCSV string

    // Aggregation tuning
    CommitInterval   time.Duration // ingestion flush cadence (default 5s)
    WarnSlowPingUsec uint64        // explicit slow-ping threshold in µs; 0 derives from grace*ratio
    HeartbeatGrace   time.Duration // heartbeat grace used for threshold derivation
    SlowPingRatio    float64       // fraction of grace considered slow

    // TLS (optional) for management API
    TLSEnable     bool
    TLSCA         string
    TLSCert       string
    TLSKey        string
    TLSServerName string
    TLSSkipVerify bool

    // Logger (optional). If nil, log.Default() is used.
    Logger *log.Logger
}

// Build assembles a daemon.Daemon from Config without starting it.
func Build(cfg Config) (*daemon.Daemon, error) {
    if cfg.Logger == nil { cfg.Logger = log.Default() }

    pools, err := watch.ParsePools(cfg.PoolsCSV)
    if err != nil { return nil, err }

    // Discovery backend
    var disc discovery.Discovery
    switch cfg.DiscoveryKind {
    case "dns":
        names := dStatic.Parse(cfg.DNSNamesCSV)
        opts := dDNS.Options{Names: names, Port: cfg.DNSPort}
        if cfg.DiscRefresh > 0 { opts.Refresh = cfg.DiscRefresh }
        disc = dDNS.New(opts)
    case "file":
        opts := dFile.Options{Path: cfg.FilePath, Env: cfg.FileEnv}
        if cfg.DiscRefresh > 0 { opts.Refresh = cfg.DiscRefresh }
        disc = dFile.New(opts)
    default:
        seeds := dStatic.Parse(cfg.SeedsCSV)
        disc = dStatic.New(seeds...)
    }

    // Membership (memberlist)
    // Pass the management address via gossip metadata so peers and tooling
    // can locate each other's endpoints.
    memMeta := map[string]string{}
    if cfg.MgmtAddr != "" { memMeta[watch.MetaMgmtAddr] = cfg.MgmtAddr }
    mem, err := ml.New(ml.Options{NodeID: cfg.NodeID, Bind: cfg.MemBind, Advertise: cfg.MemAdv, Logger: cfg.Logger, Meta: memMeta})
    if err != nil { return nil, err }

    // Management API
    var srv transport.RPCServer
    var srvTLS *tls.Config
    if cfg.TLSEnable {
        topts := tlsx.Options{Enable: true, CAFile: cfg.TLSCA, CertFile: cfg.TLSCert, KeyFile: cfg.TLSKey, InsecureSkipVerify: cfg.TLSSkipVerify, ServerName: cfg.TLSServerName}
        // Prefer hot-reload configs to allow manual rotation by replacing files
        if s, err := topts.ServerHotReload(); err == nil { srvTLS = s } else { return nil, err }
    }
    switch cfg.MgmtProto {
    case "grpc":
        s := mgmtgrpc.NewServer(cfg.MgmtAddr)
        if srvTLS != nil { s.UseTLS(srvTLS) }
        srv = s
    default:
        s := httpjson.NewServer(cfg.MgmtAddr, cfg.Logger)
        if srvTLS != nil { s.UseTLS(srvTLS) }
        srv = s
    }

    opts := daemon.Options{
        NodeID:         cfg.NodeID,
        Discovery:      disc,
        Logger:         cfg.Logger,
        Membership:     mem,
        Pools:          pools,
        RPCServer:      srv,
        CommitInterval: cfg.CommitInterval,
        State: clusterstate.Options{
            WarnSlowPingUsec: cfg.WarnSlowPingUsec,
            HeartbeatGrace:   cfg.HeartbeatGrace,
            SlowPingRatio:    cfg.SlowPingRatio,
        },
    }
    return daemon.New(opts)
}

// Client constructs an RPCClient matching Config's protocol and TLS settings,
// for tooling that talks to a running daemon.
func Client(cfg Config) (transport.RPCClient, error) {
    var cliTLS *tls.Config
    if cfg.TLSEnable {
        topts := tlsx.Options{Enable: true, CAFile: cfg.TLSCA, CertFile: cfg.TLSCert, KeyFile: cfg.TLSKey, InsecureSkipVerify: cfg.TLSSkipVerify, ServerName: cfg.TLSServerName}
        c, err := topts.ClientHotReload()
        if err != nil { return nil, err }
        cliTLS = c
    }
    switch cfg.MgmtProto {
    case "grpc":
        c := mgmtgrpc.NewClient(3 * time.Second)
        if cliTLS != nil { c.UseTLS(cliTLS) }
        return c, nil
    default:
        c := httpjson.NewClient(3 * time.Second)
        if cliTLS != nil { c.UseTLS(cliTLS) }
        return c, nil
    }
}

// Run builds and starts the daemon, returning the instance for lifecycle
// control. The caller is responsible for calling Close() when finished.
func Run(ctx context.Context, cfg Config) (*daemon.Daemon, error) {
    d, err := Build(cfg)
    if err != nil { return nil, err }
    if err := d.Start(ctx); err != nil { return nil, err }
    return d, nil
}
