package dns

import (
    "context"
    "net"
    "sort"
    "strconv"
    "strings"
    "sync"
    "time"

    "github.com/amirimatin/go-clusterstate/pkg/discovery"
)

// Options configures DNS-based seed discovery.
type Options struct {
    // Names are SRV records or hostnames to resolve. Examples:
    // "_clusterstate._tcp.example.com" (SRV) or "node1.example.com" (A/AAAA).
    Names []string

    // Port used when resolving A/AAAA records (DNS answers carry no port).
    Port int

    // Refresh controls cache staleness; if zero, defaults to 5s.
    Refresh time.Duration

    // Resolver optionally overrides the DNS resolver used.
    Resolver *net.Resolver
}

type resolver struct {
    opts  Options
    mu    sync.Mutex
    last  time.Time
    cache []string
}

// New returns a DNS-backed discovery that resolves SRV and A/AAAA names and
// caches results for the Refresh duration.
func New(opts Options) discovery.Discovery {
    if opts.Refresh <= 0 { opts.Refresh = 5 * time.Second }
    if opts.Port == 0 { opts.Port = 7946 }
    return &resolver{opts: opts}
}

func (d *resolver) Seeds() []string {
    d.mu.Lock()
    defer d.mu.Unlock()
    if time.Since(d.last) < d.opts.Refresh && len(d.cache) > 0 {
        return append([]string(nil), d.cache...)
    }
    d.cache = d.resolveAll(context.Background())
    d.last = time.Now()
    return append([]string(nil), d.cache...)
}

func (d *resolver) resolveAll(ctx context.Context) []string {
    seen := make(map[string]struct{})
    var out []string
    add := func(hp string) {
        if _, ok := seen[hp]; !ok {
            out = append(out, hp)
            seen[hp] = struct{}{}
        }
    }
    for _, name := range d.opts.Names {
        name = strings.TrimSpace(name)
        if name == "" { continue }
        // Already host:port, take as-is.
        if strings.Contains(name, ":") && !strings.HasPrefix(name, "_") {
            add(name)
            continue
        }
        // SRV pattern first.
        if strings.HasPrefix(name, "_") && strings.Contains(name, "._") {
            if recs := d.lookupSRV(ctx, name); len(recs) > 0 {
                for _, hp := range recs { add(hp) }
                continue
            }
        }
        for _, hp := range d.lookupHost(ctx, name, d.opts.Port) {
            add(hp)
        }
    }
    sort.Strings(out)
    return out
}

func (d *resolver) lookupSRV(ctx context.Context, fqdn string) []string {
    // Expect pattern: _service._proto.name
    parts := strings.SplitN(fqdn, ".", 3)
    if len(parts) < 3 { return nil }
    svc := strings.TrimPrefix(parts[0], "_")
    proto := strings.TrimPrefix(parts[1], "_")
    res := d.opts.Resolver
    if res == nil { res = net.DefaultResolver }
    _, addrs, err := res.LookupSRV(ctx, svc, proto, parts[2])
    if err != nil { return nil }
    var out []string
    for _, a := range addrs {
        host := strings.TrimSuffix(a.Target, ".")
        out = append(out, net.JoinHostPort(host, strconv.Itoa(int(a.Port))))
    }
    return out
}

func (d *resolver) lookupHost(ctx context.Context, host string, port int) []string {
    res := d.opts.Resolver
    if res == nil { res = net.DefaultResolver }
    ips, err := res.LookupHost(ctx, host)
    if err != nil { return nil }
    out := make([]string, 0, len(ips))
    for _, ip := range ips {
        out = append(out, net.JoinHostPort(ip, strconv.Itoa(port)))
    }
    return out
}
