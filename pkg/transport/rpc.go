package transport

import (
    "context"
    "encoding/json"

    "github.com/amirimatin/go-clusterstate/pkg/stats"
)

// StatusFunc returns a JSON-encoded status payload for the management
// /status endpoint. Using []byte avoids import cycles on aggregator types.
type StatusFunc func(ctx context.Context) ([]byte, error)

// ReportRequest delivers one decoded node status report. Reporting is
// fire-and-forget: the response never tells the sender whether individual
// entries were accepted or discarded.
type ReportRequest struct {
    Report stats.Report `json:"report"`
}

type ReportResponse struct {
    // Error is set only on transport/decoding failures, never for discarded
    // entries.
    Error string `json:"error,omitempty"`
}

// ReportFunc hands a report to the aggregator.
type ReportFunc func(ctx context.Context, req ReportRequest) (ReportResponse, error)

// DigestRequest replaces the health and monitor status blobs wholesale.
type DigestRequest struct {
    Health    json.RawMessage `json:"health,omitempty"`
    MonStatus json.RawMessage `json:"monStatus,omitempty"`
}

type DigestResponse struct {
    Error string `json:"error,omitempty"`
}

type DigestFunc func(ctx context.Context, req DigestRequest) (DigestResponse, error)

// CommandRequest dispatches a registered admin command (e.g.
// dump_osd_network) with its string arguments.
type CommandRequest struct {
    Name string            `json:"name"`
    Args map[string]string `json:"args,omitempty"`
}

type CommandResponse struct {
    Data  json.RawMessage `json:"data,omitempty"`
    Error string          `json:"error,omitempty"`
}

type CommandFunc func(ctx context.Context, req CommandRequest) (CommandResponse, error)

// RPCServer exposes the management endpoints (status, report ingestion,
// digest, admin commands, metrics) over the chosen protocol.
type RPCServer interface {
    Start(ctx context.Context, status StatusFunc, report ReportFunc, digest DigestFunc, command CommandFunc) error
    Addr() string
    Stop(ctx context.Context) error
}

// RPCClient performs calls against a management endpoint. Used by reporting
// nodes and by the diagnostic CLI.
type RPCClient interface {
    GetStatus(ctx context.Context, addr string) ([]byte, error)
    PostReport(ctx context.Context, addr string, req ReportRequest) (ReportResponse, error)
    PostDigest(ctx context.Context, addr string, req DigestRequest) (DigestResponse, error)
    PostCommand(ctx context.Context, addr string, req CommandRequest) (CommandResponse, error)
}
