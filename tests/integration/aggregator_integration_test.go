//go:build integration

package integration

import (
    "context"
    "encoding/json"
    "errors"
    "testing"
    "time"

    "github.com/amirimatin/go-clusterstate/pkg/bootstrap"
    "github.com/amirimatin/go-clusterstate/pkg/stats"
    "github.com/amirimatin/go-clusterstate/pkg/transport"
    httpjson "github.com/amirimatin/go-clusterstate/pkg/transport/httpjson"
)

const mgmtAddr = "127.0.0.1:17956"

var errNotYet = errors.New("not yet")

type daemonStatus struct {
    NodeID     string `json:"nodeId"`
    Aggregator struct {
        Version    uint64 `json:"version"`
        Nodes      int    `json:"nodes"`
        Partitions int    `json:"partitions"`
        Pools      int    `json:"pools"`
    } `json:"aggregator"`
    Members int `json:"members"`
}

func waitUntil(t *testing.T, d time.Duration, fn func() error) {
    t.Helper()
    deadline := time.Now().Add(d)
    for {
        err := fn()
        if err == nil { return }
        if time.Now().After(deadline) {
            t.Fatalf("condition not met within %v: %v", d, err)
        }
        time.Sleep(200 * time.Millisecond)
    }
}

func fetchStatus(ctx context.Context, cli *httpjson.Client, addr string) (daemonStatus, error) {
    var s daemonStatus
    data, err := cli.GetStatus(ctx, addr)
    if err != nil { return s, err }
    err = json.Unmarshal(data, &s)
    return s, err
}

func TestAggregatorEndToEnd(t *testing.T) {
    ctx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
    defer cancel()

    d, err := bootstrap.Run(ctx, bootstrap.Config{
        NodeID:         "agg-1",
        MemBind:        "127.0.0.1:7956",
        MgmtAddr:       mgmtAddr,
        PoolsCSV:       "1:volumes,7:scratch",
        CommitInterval: 200 * time.Millisecond,
        SeedsCSV:       "127.0.0.1:7956",
    })
    if err != nil { t.Fatalf("bootstrap: %v", err) }
    defer d.Close()

    cli := httpjson.NewClient(3 * time.Second)

    // Daemon serves status and the pool filter is populated from config.
    waitUntil(t, 10*time.Second, func() error {
        s, err := fetchStatus(ctx, cli, mgmtAddr)
        if err != nil { return err }
        if s.Aggregator.Pools != 2 { return errNotYet }
        return nil
    })

    // A node report: one admitted partition, one for an unknown pool.
    rep := transport.ReportRequest{Report: stats.Report{
        Node:  "osd.0",
        Epoch: 1,
        Stats: stats.NodeStats{
            CapacityKB: 1 << 20,
            UsedKB:     4096,
            PeerPings: map[string]stats.PeerPing{
                "osd.1": {Back: stats.PingWindows{Avg: [3]uint32{300, 300, 300}, Last: 300}},
            },
        },
        Partitions: []stats.PartitionEntry{
            {ID: stats.PartitionID{Pool: 1, Index: 0}, Stats: stats.PartitionStats{State: "active", Reported: stats.VersionPair{Epoch: 1, Seq: 1}, Primary: "osd.0"}},
            {ID: stats.PartitionID{Pool: 99, Index: 0}, Stats: stats.PartitionStats{State: "active", Reported: stats.VersionPair{Epoch: 1, Seq: 1}, Primary: "osd.0"}},
        },
    }}
    if _, err := cli.PostReport(ctx, mgmtAddr, rep); err != nil {
        t.Fatalf("report: %v", err)
    }

    // The periodic committer folds it in: exactly the admitted partition.
    waitUntil(t, 10*time.Second, func() error {
        s, err := fetchStatus(ctx, cli, mgmtAddr)
        if err != nil { return err }
        if s.Aggregator.Nodes != 1 || s.Aggregator.Partitions != 1 { return errNotYet }
        return nil
    })

    // dump_osd_network over the command endpoint sees the ping sample.
    resp, err := cli.PostCommand(ctx, mgmtAddr, transport.CommandRequest{Name: "dump_osd_network", Args: map[string]string{"value": "250"}})
    if err != nil { t.Fatalf("command: %v", err) }
    if resp.Error != "" { t.Fatalf("command error: %s", resp.Error) }
    var nr struct {
        Threshold int64 `json:"threshold"`
        Entries   []struct {
            From, To, Interface string
        } `json:"entries"`
    }
    if err := json.Unmarshal(resp.Data, &nr); err != nil { t.Fatal(err) }
    if nr.Threshold != 250 || len(nr.Entries) != 1 {
        t.Fatalf("unexpected dump: %s", resp.Data)
    }
    if nr.Entries[0].From != "osd.0" || nr.Entries[0].To != "osd.1" || nr.Entries[0].Interface != "back" {
        t.Fatalf("unexpected entry: %+v", nr.Entries[0])
    }

    // Unknown commands are rejected, not dispatched.
    resp, err = cli.PostCommand(ctx, mgmtAddr, transport.CommandRequest{Name: "bogus"})
    if err != nil { t.Fatalf("command: %v", err) }
    if resp.Error == "" { t.Fatal("unknown command accepted") }

    // Digest is mirrored into status.
    if _, err := cli.PostDigest(ctx, mgmtAddr, transport.DigestRequest{Health: json.RawMessage(`{"status":"HEALTH_OK"}`)}); err != nil {
        t.Fatalf("digest: %v", err)
    }
    data, err := cli.GetStatus(ctx, mgmtAddr)
    if err != nil { t.Fatalf("status: %v", err) }
    var full struct {
        Aggregator struct {
            Health json.RawMessage `json:"health"`
        } `json:"aggregator"`
    }
    if err := json.Unmarshal(data, &full); err != nil { t.Fatal(err) }
    if string(full.Aggregator.Health) != `{"status":"HEALTH_OK"}` {
        t.Fatalf("health not mirrored: %s", data)
    }
}
