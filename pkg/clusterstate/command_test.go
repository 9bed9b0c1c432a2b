package clusterstate

import (
    "encoding/json"
    "testing"

    "github.com/amirimatin/go-clusterstate/pkg/stats"
)

func TestAdminCommandDumpNetwork(t *testing.T) {
    c := New(Options{})
    ingestPings(c, "osd.0", map[string]stats.PeerPing{
        "osd.1": backPing(200),
        "osd.2": backPing(300),
    })

    out, err := c.AdminCommand(CommandDumpNetwork, map[string]string{"value": "250"})
    if err != nil { t.Fatalf("command: %v", err) }

    var rep NetworkReport
    if err := json.Unmarshal(out, &rep); err != nil {
        t.Fatalf("output not valid JSON: %v\n%s", err, out)
    }
    if rep.ThresholdUsec != 250 {
        t.Fatalf("threshold: got %d want 250", rep.ThresholdUsec)
    }
    if len(rep.Entries) != 1 || rep.Entries[0].To != "osd.2" {
        t.Fatalf("unexpected entries: %+v", rep.Entries)
    }
}

func TestAdminCommandUnparseableThreshold(t *testing.T) {
    c := New(Options{WarnSlowPingUsec: 5000})
    out, err := c.AdminCommand(CommandDumpNetwork, map[string]string{"value": "not-a-number"})
    if err != nil { t.Fatalf("command: %v", err) }

    var rep NetworkReport
    if err := json.Unmarshal(out, &rep); err != nil { t.Fatal(err) }
    if rep.ThresholdUsec != 5000 {
        t.Fatalf("unparseable value must fall back to the default: got %d", rep.ThresholdUsec)
    }
}

func TestAdminCommandNegativeThresholdShowsAll(t *testing.T) {
    c := New(Options{WarnSlowPingUsec: 5000})
    ingestPings(c, "osd.0", map[string]stats.PeerPing{
        "osd.1": backPing(200),
    })

    out, err := c.AdminCommand(CommandDumpNetwork, map[string]string{"value": "-5"})
    if err != nil { t.Fatalf("command: %v", err) }

    var rep NetworkReport
    if err := json.Unmarshal(out, &rep); err != nil { t.Fatal(err) }
    if rep.ThresholdUsec != 0 {
        t.Fatalf("negative value must clamp to 0, not the default: got %d", rep.ThresholdUsec)
    }
    if len(rep.Entries) != 1 {
        t.Fatalf("threshold 0 keeps every entry: %+v", rep.Entries)
    }
}

func TestAdminCommandMissingValue(t *testing.T) {
    c := New(Options{WarnSlowPingUsec: 7})
    out, err := c.AdminCommand(CommandDumpNetwork, nil)
    if err != nil { t.Fatalf("command: %v", err) }
    var rep NetworkReport
    if err := json.Unmarshal(out, &rep); err != nil { t.Fatal(err) }
    if rep.ThresholdUsec != 7 {
        t.Fatalf("missing value must use the default: got %d", rep.ThresholdUsec)
    }
}

func TestAdminCommandUnknownPanics(t *testing.T) {
    c := New(Options{})
    defer func() {
        if recover() == nil {
            t.Fatal("unknown command must panic")
        }
    }()
    _, _ = c.AdminCommand("no_such_command", nil)
}

func TestCommandsListsDumpNetwork(t *testing.T) {
    c := New(Options{})
    found := false
    for _, cd := range c.Commands() {
        if cd.Name == CommandDumpNetwork {
            found = true
            if cd.Help == "" { t.Fatal("dump command has no help text") }
        }
    }
    if !found { t.Fatal("dump_osd_network not registered") }
}
