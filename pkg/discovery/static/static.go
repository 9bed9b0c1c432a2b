package static

import (
    "strings"

    "github.com/amirimatin/go-clusterstate/pkg/discovery"
)

type fixed struct {
    seeds []string
}

func (f *fixed) Seeds() []string { return append([]string(nil), f.seeds...) }

// New returns a Discovery over a fixed seed list. Blank entries are dropped
// and whitespace trimmed, so the list can come straight from flag values.
func New(seeds ...string) discovery.Discovery {
    out := make([]string, 0, len(seeds))
    for _, s := range seeds {
        if s = strings.TrimSpace(s); s != "" {
            out = append(out, s)
        }
    }
    return &fixed{seeds: out}
}

// Parse splits a comma-separated seed list, trimming blanks.
func Parse(csv string) []string {
    if csv == "" {
        return nil
    }
    var out []string
    for _, p := range strings.Split(csv, ",") {
        if p = strings.TrimSpace(p); p != "" {
            out = append(out, p)
        }
    }
    return out
}
