package clusterstate

import (
    "encoding/json"
    "fmt"
    "strconv"

    "github.com/amirimatin/go-clusterstate/pkg/internal/logutil"
    obsmetrics "github.com/amirimatin/go-clusterstate/pkg/observability/metrics"
)

// Admin commands served by the aggregator.
const (
    CommandDumpNetwork = "dump_osd_network"
)

// CommandDesc describes one admin command for registration with the
// management endpoint's dispatch table.
type CommandDesc struct {
    Name string `json:"name"`
    Help string `json:"help"`
}

// Commands lists the admin commands this aggregator serves. The management
// endpoint registers exactly these; routing anything else here is a wiring
// bug, not user input.
func (c *ClusterState) Commands() []CommandDesc {
    return []CommandDesc{
        {Name: CommandDumpNetwork, Help: "Dump node heartbeat network ping times (optional arg: threshold in microseconds)"},
    }
}

// AdminCommand executes a registered admin command and returns its
// JSON-encoded output.
//
// dump_osd_network takes an optional "value" argument, the threshold in
// microseconds; a missing or unparseable value falls back to the configured
// default derivation, and a negative value is clamped to 0 (show all). An unknown command panics: the dispatch table and this
// handler have desynchronized, which must never happen in a correctly wired
// process.
func (c *ClusterState) AdminCommand(name string, args map[string]string) ([]byte, error) {
    obsmetrics.AdminCommands.WithLabelValues(name).Inc()
    switch name {
    case CommandDumpNetwork:
        threshold := int64(-1)
        if raw, ok := args["value"]; ok {
            v, err := strconv.ParseInt(raw, 10, 64)
            if err != nil {
                logutil.Warnf(c.opts.Logger, "admin: unparseable threshold %q, using default", raw)
            } else if v < 0 {
                // A supplied negative means "show everything", not "use the
                // default"; keep it distinct from the missing-value sentinel.
                threshold = 0
            } else {
                threshold = v
            }
        }
        return json.MarshalIndent(c.DumpNetwork(threshold), "", "  ")
    default:
        panic(fmt.Sprintf("clusterstate: broken admin command registration: %q", name))
    }
}
