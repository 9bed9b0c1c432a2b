package file

import (
    "bufio"
    "os"
    "sort"
    "strings"
    "sync"
    "time"

    "github.com/amirimatin/go-clusterstate/pkg/discovery"
)

// Options configures file/ENV-based seed discovery.
type Options struct {
    // Path to a file with one seed per line (comma-separated also allowed).
    Path string
    // Env overrides the file when the variable is set and non-empty.
    Env string
    // Refresh controls cache staleness; if zero, defaults to 5s.
    Refresh time.Duration
}

type source struct {
    opts  Options
    mu    sync.Mutex
    last  time.Time
    mtime time.Time
    cache []string
}

func New(opts Options) discovery.Discovery {
    if opts.Refresh <= 0 { opts.Refresh = 5 * time.Second }
    return &source{opts: opts}
}

func (s *source) Seeds() []string {
    s.mu.Lock()
    defer s.mu.Unlock()
    // ENV takes precedence.
    if s.opts.Env != "" {
        if v := strings.TrimSpace(os.Getenv(s.opts.Env)); v != "" {
            return parseSeeds(v)
        }
    }
    if s.opts.Path == "" {
        return nil
    }
    stat, err := os.Stat(s.opts.Path)
    if err != nil {
        return append([]string(nil), s.cache...)
    }
    now := time.Now()
    if stat.ModTime().After(s.mtime) || now.Sub(s.last) >= s.opts.Refresh {
        s.cache = loadFile(s.opts.Path)
        s.last = now
        s.mtime = stat.ModTime()
    }
    return append([]string(nil), s.cache...)
}

func loadFile(path string) []string {
    f, err := os.Open(path)
    if err != nil { return nil }
    defer f.Close()
    set := make(map[string]struct{})
    sc := bufio.NewScanner(f)
    for sc.Scan() {
        line := strings.TrimSpace(sc.Text())
        if line == "" || strings.HasPrefix(line, "#") { continue }
        for _, p := range strings.Split(line, ",") {
            p = strings.TrimSpace(p)
            if p != "" { set[p] = struct{}{} }
        }
    }
    if err := sc.Err(); err != nil { return nil }
    out := make([]string, 0, len(set))
    for x := range set { out = append(out, x) }
    sort.Strings(out)
    return out
}

func parseSeeds(csv string) []string {
    var out []string
    for _, p := range strings.Split(csv, ",") {
        p = strings.TrimSpace(p)
        if p != "" { out = append(out, p) }
    }
    sort.Strings(out)
    return out
}
