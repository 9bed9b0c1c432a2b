package httpjson

import (
    "context"
    "crypto/tls"
    "encoding/json"
    "fmt"
    "log"
    "net"
    "net/http"
    "time"

    "github.com/prometheus/client_golang/prometheus/promhttp"

    "github.com/amirimatin/go-clusterstate/pkg/observability/tracing"
    "github.com/amirimatin/go-clusterstate/pkg/transport"
)

// Server is a minimal HTTP server exposing the aggregator's management
// endpoints: status, report ingestion, digest, admin commands, metrics and
// healthz. It is intended for intra-cluster calls and diagnostic tooling.
type Server struct {
    bind   string
    srv    *http.Server
    logger *log.Logger
    tlsCfg *tls.Config
}

// NewServer binds to the given TCP address (e.g., ":17946").
func NewServer(bind string, logger *log.Logger) *Server {
    if logger == nil { logger = log.Default() }
    return &Server{bind: bind, logger: logger}
}

// UseTLS enables TLS for the HTTP server using the provided config.
func (s *Server) UseTLS(cfg *tls.Config) *Server { s.tlsCfg = cfg; return s }

// Start launches the HTTP server and registers handlers backed by the
// provided functions. The server is shut down when the context is canceled.
func (s *Server) Start(ctx context.Context, status transport.StatusFunc, report transport.ReportFunc, digest transport.DigestFunc, command transport.CommandFunc) error {
    mux := http.NewServeMux()
    mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
        if r.Method != http.MethodGet { http.Error(w, "method not allowed", http.StatusMethodNotAllowed); return }
        ctx, end := tracing.StartSpan(r.Context(), "http.status")
        defer end()
        data, err := status(ctx)
        if err != nil { http.Error(w, fmt.Sprintf("status error: %v", err), http.StatusInternalServerError); return }
        w.Header().Set("Content-Type", "application/json")
        _, _ = w.Write(data)
    })
    mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
        if r.Method != http.MethodGet { http.Error(w, "method not allowed", http.StatusMethodNotAllowed); return }
        w.WriteHeader(http.StatusOK)
        _, _ = w.Write([]byte("ok"))
    })
    // Prometheus metrics
    mux.Handle("/metrics", promhttp.Handler())
    mux.HandleFunc("/report", func(w http.ResponseWriter, r *http.Request) {
        if r.Method != http.MethodPost { http.Error(w, "method not allowed", http.StatusMethodNotAllowed); return }
        if report == nil { http.Error(w, "report not supported", http.StatusNotImplemented); return }
        var req transport.ReportRequest
        if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
            http.Error(w, fmt.Sprintf("bad request: %v", err), http.StatusBadRequest)
            return
        }
        ctx, end := tracing.StartSpan(r.Context(), "http.report")
        defer end()
        resp, err := report(ctx, req)
        w.Header().Set("Content-Type", "application/json")
        if err != nil {
            if resp.Error == "" { resp.Error = err.Error() }
            w.WriteHeader(http.StatusInternalServerError)
        }
        _ = json.NewEncoder(w).Encode(resp)
    })
    mux.HandleFunc("/digest", func(w http.ResponseWriter, r *http.Request) {
        if r.Method != http.MethodPost { http.Error(w, "method not allowed", http.StatusMethodNotAllowed); return }
        if digest == nil { http.Error(w, "digest not supported", http.StatusNotImplemented); return }
        var req transport.DigestRequest
        if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
            http.Error(w, fmt.Sprintf("bad request: %v", err), http.StatusBadRequest)
            return
        }
        ctx, end := tracing.StartSpan(r.Context(), "http.digest")
        defer end()
        resp, err := digest(ctx, req)
        w.Header().Set("Content-Type", "application/json")
        if err != nil {
            if resp.Error == "" { resp.Error = err.Error() }
            w.WriteHeader(http.StatusInternalServerError)
        }
        _ = json.NewEncoder(w).Encode(resp)
    })
    mux.HandleFunc("/command", func(w http.ResponseWriter, r *http.Request) {
        if r.Method != http.MethodPost { http.Error(w, "method not allowed", http.StatusMethodNotAllowed); return }
        if command == nil { http.Error(w, "command not supported", http.StatusNotImplemented); return }
        var req transport.CommandRequest
        if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
            http.Error(w, fmt.Sprintf("bad request: %v", err), http.StatusBadRequest)
            return
        }
        ctx, end := tracing.StartSpan(r.Context(), "http.command")
        defer end()
        resp, err := command(ctx, req)
        w.Header().Set("Content-Type", "application/json")
        if err != nil {
            if resp.Error == "" { resp.Error = err.Error() }
            w.WriteHeader(http.StatusInternalServerError)
        }
        _ = json.NewEncoder(w).Encode(resp)
    })

    s.srv = &http.Server{Addr: s.bind, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
    ln, err := net.Listen("tcp", s.bind)
    if err != nil { return err }
    if s.tlsCfg != nil {
        ln = tls.NewListener(ln, s.tlsCfg)
    }
    go func() {
        <-ctx.Done()
        sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
        defer cancel()
        _ = s.srv.Shutdown(sctx)
    }()
    go func() {
        if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
            s.logger.Printf("httpjson: serve: %v", err)
        }
    }()
    return nil
}

func (s *Server) Addr() string { return s.bind }

func (s *Server) Stop(ctx context.Context) error {
    if s.srv == nil { return nil }
    err := s.srv.Shutdown(ctx)
    s.srv = nil
    return err
}

var _ transport.RPCServer = (*Server)(nil)
