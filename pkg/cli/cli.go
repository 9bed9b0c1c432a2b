package cli

import (
    "context"
    "crypto/tls"
    "fmt"
    "log"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/spf13/cobra"

    "github.com/amirimatin/go-clusterstate/pkg/bootstrap"
    "github.com/amirimatin/go-clusterstate/pkg/clusterstate"
    tracing "github.com/amirimatin/go-clusterstate/pkg/observability/tracing"
    tlsx "github.com/amirimatin/go-clusterstate/pkg/security/tlsconfig"
    "github.com/amirimatin/go-clusterstate/pkg/transport"
    mgmtgrpc "github.com/amirimatin/go-clusterstate/pkg/transport/grpc"
    httpjson "github.com/amirimatin/go-clusterstate/pkg/transport/httpjson"
)

// AddAll attaches aggregator subcommands (run/status/dump-network) to the provided root command.
func AddAll(root *cobra.Command) {
    root.AddCommand(NewRunCmd())
    root.AddCommand(NewStatusCmd())
    root.AddCommand(NewDumpNetworkCmd())
}

// NewAggregatorCommand returns a parent command "aggregator" containing run/status/dump-network as subcommands.
func NewAggregatorCommand() *cobra.Command {
    parent := &cobra.Command{Use: "aggregator", Short: "cluster state aggregator commands"}
    parent.AddCommand(NewRunCmd())
    parent.AddCommand(NewStatusCmd())
    parent.AddCommand(NewDumpNetworkCmd())
    return parent
}

// NewRunCmd returns the "run" command used to start an aggregator daemon.
func NewRunCmd() *cobra.Command {
    var (
        id, memBind, memAdv, joinCSV, mgmtAddr, mgmtProto, discoveryKind string
        dnsNames, filePath, fileEnv, poolsCSV                            string
        dnsPort                                                          int
        discRefresh, commitEvery, hbGrace                                time.Duration
        warnSlowPing                                                     uint64
        slowPingRatio                                                    float64
        tlsEnable, tlsSkip, traceEnable                                  bool
        tlsCA, tlsCert, tlsKey, tlsServerName                            string
    )
    cmd := &cobra.Command{
        Use:   "run",
        Short: "Run an aggregator daemon",
        RunE: func(cmd *cobra.Command, args []string) error {
            if id == "" { return fmt.Errorf("missing -id") }
            ctx, cancel := signalContext()
            defer cancel()

            if traceEnable {
                shutdown, err := tracing.Setup(true)
                if err != nil {
                    log.Printf("tracing setup error: %v", err)
                } else {
                    defer func() { _ = shutdown(context.Background()) }()
                }
            }

            cfg := bootstrap.Config{
                NodeID:           id,
                MemBind:          memBind,
                MemAdv:           memAdv,
                MgmtAddr:         mgmtAddr,
                MgmtProto:        mgmtProto,
                DiscoveryKind:    discoveryKind,
                SeedsCSV:         joinCSV,
                DNSNamesCSV:      dnsNames,
                DNSPort:          dnsPort,
                DiscRefresh:      discRefresh,
                FilePath:         filePath,
                FileEnv:          fileEnv,
                PoolsCSV:         poolsCSV,
                CommitInterval:   commitEvery,
                WarnSlowPingUsec: warnSlowPing,
                HeartbeatGrace:   hbGrace,
                SlowPingRatio:    slowPingRatio,
                TLSEnable:        tlsEnable,
                TLSCA:            tlsCA,
                TLSCert:          tlsCert,
                TLSKey:           tlsKey,
                TLSServerName:    tlsServerName,
                TLSSkipVerify:    tlsSkip,
                Logger:           log.Default(),
            }
            d, err := bootstrap.Run(ctx, cfg)
            if err != nil { return err }
            defer d.Close()

            fmt.Println("aggregator running. Press Ctrl+C to exit.")
            <-ctx.Done()
            return nil
        },
    }
    cmd.Flags().StringVar(&id, "id", "", "node id (required)")
    cmd.Flags().StringVar(&memBind, "mem-bind", ":7946", "membership bind addr (host:port)")
    cmd.Flags().StringVar(&memAdv, "mem-adv", "", "membership advertise addr (host:port, optional)")
    cmd.Flags().StringVar(&joinCSV, "join", "", "comma-separated seed nodes (host:port) — used by discovery=static")
    cmd.Flags().StringVar(&mgmtAddr, "mgmt-addr", ":17946", "management address (tcp), separate from membership port")
    cmd.Flags().StringVar(&mgmtProto, "mgmt-proto", "http", "management RPC protocol: http|grpc")
    cmd.Flags().StringVar(&discoveryKind, "discovery", "static", "discovery backend: static|dns|file")
    cmd.Flags().StringVar(&dnsNames, "dns-names", "", "comma-separated DNS names or SRV records (e.g., _clusterstate._tcp.example.com)")
    cmd.Flags().IntVar(&dnsPort, "dns-port", 7946, "port used for A/AAAA lookups")
    cmd.Flags().DurationVar(&discRefresh, "disc-refresh", 5*time.Second, "discovery refresh/cache duration")
    cmd.Flags().StringVar(&filePath, "file-path", "", "path to a file with seeds (one per line or CSV)")
    cmd.Flags().StringVar(&fileEnv, "file-env", "", "ENV var name containing CSV seeds; overrides file when set")
    cmd.Flags().StringVar(&poolsCSV, "pools", "", "pool table as id:name pairs (e.g., 1:volumes,2:metadata)")
    cmd.Flags().DurationVar(&commitEvery, "commit-interval", 5*time.Second, "how often pending report deltas are committed")
    cmd.Flags().Uint64Var(&warnSlowPing, "warn-slow-ping-usec", 0, "explicit slow ping threshold in microseconds (0 derives from grace*ratio)")
    cmd.Flags().DurationVar(&hbGrace, "heartbeat-grace", 20*time.Second, "heartbeat grace used to derive the slow ping threshold")
    cmd.Flags().Float64Var(&slowPingRatio, "slow-ping-ratio", 0.05, "fraction of heartbeat grace considered a slow ping")
    cmd.Flags().BoolVar(&tlsEnable, "tls-enable", false, "enable mTLS for management transport")
    cmd.Flags().StringVar(&tlsCA, "tls-ca", "", "path to CA cert (PEM)")
    cmd.Flags().StringVar(&tlsCert, "tls-cert", "", "path to node certificate (PEM)")
    cmd.Flags().StringVar(&tlsKey, "tls-key", "", "path to node private key (PEM)")
    cmd.Flags().BoolVar(&tlsSkip, "tls-skip-verify", false, "skip server cert verification (DEV ONLY)")
    cmd.Flags().StringVar(&tlsServerName, "tls-server-name", "", "expected server name (for TLS validation)")
    cmd.Flags().BoolVar(&traceEnable, "trace", false, "enable OpenTelemetry stdout tracing (dev)")
    return cmd
}

// NewStatusCmd returns the "status" command.
func NewStatusCmd() *cobra.Command {
    var (
        addr    string
        timeout time.Duration
    )
    cmd := &cobra.Command{
        Use:   "status",
        Short: "Fetch aggregator status as JSON",
        RunE: func(cmd *cobra.Command, args []string) error {
            ctx, cancel := context.WithTimeout(context.Background(), timeout)
            defer cancel()
            client := httpjson.NewClient(timeout)
            data, err := client.GetStatus(ctx, addr)
            if err != nil { return fmt.Errorf("status error: %w", err) }
            os.Stdout.Write(data)
            if len(data) == 0 || data[len(data)-1] != '\n' { os.Stdout.Write([]byte("\n")) }
            return nil
        },
    }
    cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:17946", "management HTTP address of a daemon (host:port)")
    cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Second, "request timeout")
    return cmd
}

// NewDumpNetworkCmd returns the "dump-network" command, which runs the
// dump_osd_network admin command against a daemon and prints its JSON output.
func NewDumpNetworkCmd() *cobra.Command {
    var (
        addr, mgmtProto, threshold            string
        timeout                               time.Duration
        tlsEnable, tlsSkip                    bool
        tlsCA, tlsCert, tlsKey, tlsServerName string
    )
    cmd := &cobra.Command{
        Use:   "dump-network",
        Short: "Dump heartbeat ping times at or above a threshold",
        RunE: func(cmd *cobra.Command, args []string) error {
            var client transport.RPCClient
            var cliTLS *tls.Config
            if tlsEnable {
                topts := tlsx.Options{Enable: true, CAFile: tlsCA, CertFile: tlsCert, KeyFile: tlsKey, InsecureSkipVerify: tlsSkip, ServerName: tlsServerName}
                var err error
                cliTLS, err = topts.Client()
                if err != nil { return fmt.Errorf("tls client config: %w", err) }
            }
            switch mgmtProto {
            case "grpc":
                cli := mgmtgrpc.NewClient(timeout)
                if cliTLS != nil { cli.UseTLS(cliTLS) }
                client = cli
            default:
                cli := httpjson.NewClient(timeout)
                if cliTLS != nil { cli.UseTLS(cliTLS) }
                client = cli
            }
            ctx, cancel := context.WithTimeout(context.Background(), timeout)
            defer cancel()
            req := transport.CommandRequest{Name: clusterstate.CommandDumpNetwork}
            if threshold != "" { req.Args = map[string]string{"value": threshold} }
            resp, err := client.PostCommand(ctx, addr, req)
            if err != nil { return fmt.Errorf("command error: %w", err) }
            if resp.Error != "" { return fmt.Errorf("command error: %s", resp.Error) }
            os.Stdout.Write(resp.Data)
            if len(resp.Data) == 0 || resp.Data[len(resp.Data)-1] != '\n' { os.Stdout.Write([]byte("\n")) }
            return nil
        },
    }
    cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:17946", "management address of a daemon (host:port)")
    cmd.Flags().StringVar(&mgmtProto, "mgmt-proto", "http", "management RPC protocol: http|grpc")
    cmd.Flags().StringVar(&threshold, "threshold", "", "threshold in microseconds (empty uses the daemon default)")
    cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Second, "request timeout")
    cmd.Flags().BoolVar(&tlsEnable, "tls-enable", false, "enable mTLS for management transport")
    cmd.Flags().StringVar(&tlsCA, "tls-ca", "", "path to CA cert (PEM)")
    cmd.Flags().StringVar(&tlsCert, "tls-cert", "", "path to client certificate (PEM)")
    cmd.Flags().StringVar(&tlsKey, "tls-key", "", "path to client private key (PEM)")
    cmd.Flags().BoolVar(&tlsSkip, "tls-skip-verify", false, "skip server cert verification (DEV ONLY)")
    cmd.Flags().StringVar(&tlsServerName, "tls-server-name", "", "expected server name (for TLS validation)")
    return cmd
}

func signalContext() (context.Context, context.CancelFunc) {
    ctx, cancel := context.WithCancel(context.Background())
    go func() {
        ch := make(chan os.Signal, 1)
        signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
        <-ch
        cancel()
    }()
    return ctx, cancel
}
