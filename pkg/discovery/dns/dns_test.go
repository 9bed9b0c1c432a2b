package dns

import (
    "strings"
    "testing"
    "time"
)

func TestHostPortPassthrough(t *testing.T) {
    d := New(Options{Names: []string{"1.2.3.4:7946", " ", "1.2.3.4:7946"}, Refresh: 5 * time.Millisecond})
    got := d.Seeds()
    if len(got) != 1 || got[0] != "1.2.3.4:7946" {
        t.Fatalf("unexpected seeds: %#v", got)
    }
}

func TestResolveLocalhost(t *testing.T) {
    d := New(Options{Names: []string{"localhost"}, Port: 12345, Refresh: 5 * time.Millisecond})
    got := d.Seeds()
    if len(got) == 0 {
        t.Fatalf("expected at least one resolved host:port, got %#v", got)
    }
    for _, s := range got {
        if strings.HasSuffix(s, ":12345") || strings.HasSuffix(s, "]:12345") {
            return
        }
    }
    t.Fatalf("no result carries the configured port: %#v", got)
}
