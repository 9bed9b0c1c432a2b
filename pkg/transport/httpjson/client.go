package httpjson

import (
    "bytes"
    "context"
    "crypto/tls"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "net/http"
    "time"

    "github.com/amirimatin/go-clusterstate/pkg/transport"
)

// Client is a thin HTTP client for the management API. It supports optional
// TLS configuration and simple retry with backoff for robustness.
type Client struct {
    httpc     *http.Client
    transport *http.Transport
    isTLS     bool
}

// NewClient constructs a new Client with the given timeout.
func NewClient(timeout time.Duration) *Client {
    if timeout <= 0 { timeout = 3 * time.Second }
    tr := &http.Transport{}
    return &Client{httpc: &http.Client{Timeout: timeout, Transport: tr}, transport: tr}
}

// UseTLS sets the TLS config for the underlying HTTP client and switches the
// request scheme to https.
func (c *Client) UseTLS(cfg *tls.Config) *Client {
    if c.transport != nil { c.transport.TLSClientConfig = cfg }
    c.isTLS = cfg != nil
    return c
}

func (c *Client) url(addr, path string) string {
    scheme := "http"
    if c.isTLS { scheme = "https" }
    return fmt.Sprintf("%s://%s%s", scheme, addr, path)
}

func (c *Client) GetStatus(ctx context.Context, addr string) ([]byte, error) {
    req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(addr, "/status"), nil)
    if err != nil { return nil, err }
    var lastErr error
    for attempt := 0; attempt < 3; attempt++ {
        resp, err := c.httpc.Do(req)
        if err != nil {
            lastErr = err
        } else {
            b, rerr := io.ReadAll(resp.Body)
            resp.Body.Close()
            if rerr != nil {
                lastErr = rerr
            } else if resp.StatusCode != http.StatusOK {
                lastErr = fmt.Errorf("status %d: %s", resp.StatusCode, string(b))
            } else {
                return b, nil
            }
        }
        select {
        case <-ctx.Done():
            return nil, ctx.Err()
        case <-time.After(time.Duration(100*(1<<attempt)) * time.Millisecond):
        }
    }
    return nil, lastErr
}

// postJSON posts req as JSON to path and decodes the response into out. One
// retry loop with exponential backoff; a non-200 with a decoded Error field
// surfaces that error.
func (c *Client) postJSON(ctx context.Context, addr, path string, req any, out any, errField func() string) error {
    body, err := json.Marshal(req)
    if err != nil { return err }
    var lastErr error
    for attempt := 0; attempt < 3; attempt++ {
        httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(addr, path), bytes.NewReader(body))
        if err != nil { return err }
        httpReq.Header.Set("Content-Type", "application/json")
        resp, err := c.httpc.Do(httpReq)
        if err != nil {
            lastErr = err
        } else {
            b, rerr := io.ReadAll(resp.Body)
            resp.Body.Close()
            if rerr != nil {
                lastErr = rerr
            } else {
                _ = json.Unmarshal(b, out)
                if resp.StatusCode != http.StatusOK {
                    if msg := errField(); msg != "" {
                        lastErr = errors.New(msg)
                    } else {
                        lastErr = fmt.Errorf("%s status %d: %s", path, resp.StatusCode, string(b))
                    }
                } else {
                    return nil
                }
            }
        }
        select {
        case <-ctx.Done():
            if lastErr == nil { lastErr = ctx.Err() }
            return lastErr
        case <-time.After(time.Duration(100*(1<<attempt)) * time.Millisecond):
        }
    }
    return lastErr
}

func (c *Client) PostReport(ctx context.Context, addr string, req transport.ReportRequest) (transport.ReportResponse, error) {
    var out transport.ReportResponse
    err := c.postJSON(ctx, addr, "/report", req, &out, func() string { return out.Error })
    return out, err
}

func (c *Client) PostDigest(ctx context.Context, addr string, req transport.DigestRequest) (transport.DigestResponse, error) {
    var out transport.DigestResponse
    err := c.postJSON(ctx, addr, "/digest", req, &out, func() string { return out.Error })
    return out, err
}

func (c *Client) PostCommand(ctx context.Context, addr string, req transport.CommandRequest) (transport.CommandResponse, error) {
    var out transport.CommandResponse
    err := c.postJSON(ctx, addr, "/command", req, &out, func() string { return out.Error })
    return out, err
}

var _ transport.RPCClient = (*Client)(nil)
