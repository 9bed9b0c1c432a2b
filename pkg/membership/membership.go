package membership

import (
    "context"
    "time"
)

// MemberInfo describes one storage node as observed by the gossip layer.
// Meta can carry auxiliary data such as the node's service address.
type MemberInfo struct {
    ID   string
    Addr string
    Meta map[string]string
}

type EventType string

const (
    // EventJoin indicates a node joined or became visible.
    EventJoin EventType = "join"
    // EventLeave indicates a node left the cluster.
    EventLeave EventType = "leave"
    // EventFailed indicates the gossip layer marked the node as unreachable.
    EventFailed EventType = "failed"
)

// Event is the translated membership change notification. The topology
// watcher folds these into full topology snapshots for the aggregator.
type Event struct {
    Type   EventType
    Member MemberInfo
    At     time.Time
}

// Membership abstracts the gossip/failure-detection layer tracking which
// storage nodes are alive. It provides discovery, join/leave and event
// delivery; it does not decide topology, it only observes liveness.
type Membership interface {
    Start(ctx context.Context) error
    Join(seeds []string) error
    Local() MemberInfo
    Members() []MemberInfo
    Events() <-chan Event
    Leave() error
    Stop() error
}

// HealthReporter is an optional interface a Membership implementation may
// provide to expose a gossip health score. Higher scores indicate degraded
// health; -1 means not started or unavailable.
type HealthReporter interface {
    HealthScore() int
}
