package metrics

import (
    "sync"

    "github.com/prometheus/client_golang/prometheus"
)

var (
    once sync.Once

    ReportsIngested = prometheus.NewCounter(prometheus.CounterOpts{
        Namespace: "clusterstate",
        Name:      "reports_ingested_total",
        Help:      "Total node status reports ingested",
    })

    PartitionUpdatesAccepted = prometheus.NewCounter(prometheus.CounterOpts{
        Namespace: "clusterstate",
        Name:      "partition_updates_accepted_total",
        Help:      "Total partition stat updates accepted into the pending delta",
    })

    // reason is "admission" (pool unknown) or "stale" (version pair not newer)
    PartitionUpdatesRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
        Namespace: "clusterstate",
        Name:      "partition_updates_rejected_total",
        Help:      "Total partition stat updates discarded during ingestion",
    }, []string{"reason"})

    Commits = prometheus.NewCounter(prometheus.CounterOpts{
        Namespace: "clusterstate",
        Name:      "commits_total",
        Help:      "Total delta commits folded into the aggregated map",
    })

    TopologyChanges = prometheus.NewCounter(prometheus.CounterOpts{
        Namespace: "clusterstate",
        Name:      "topology_changes_total",
        Help:      "Total topology change notifications processed",
    })

    MapVersion = prometheus.NewGauge(prometheus.GaugeOpts{
        Namespace: "clusterstate",
        Name:      "map_version",
        Help:      "Version of the committed aggregated map",
    })

    TrackedNodes = prometheus.NewGauge(prometheus.GaugeOpts{
        Namespace: "clusterstate",
        Name:      "tracked_nodes",
        Help:      "Number of nodes present in the aggregated map",
    })

    TrackedPartitions = prometheus.NewGauge(prometheus.GaugeOpts{
        Namespace: "clusterstate",
        Name:      "tracked_partitions",
        Help:      "Number of partitions present in the aggregated map",
    })

    AdminCommands = prometheus.NewCounterVec(prometheus.CounterOpts{
        Namespace: "clusterstate",
        Name:      "admin_commands_total",
        Help:      "Total admin commands dispatched to the aggregator",
    }, []string{"command"})

    GRPCConnDials = prometheus.NewCounter(prometheus.CounterOpts{
        Namespace: "clusterstate",
        Subsystem: "grpc_conn",
        Name:      "dials_total",
        Help:      "Total number of new gRPC connections dialed",
    })
    GRPCConnReuse = prometheus.NewCounter(prometheus.CounterOpts{
        Namespace: "clusterstate",
        Subsystem: "grpc_conn",
        Name:      "reuse_total",
        Help:      "Total number of gRPC connection reuses from cache",
    })
    GRPCConnEvictions = prometheus.NewCounter(prometheus.CounterOpts{
        Namespace: "clusterstate",
        Subsystem: "grpc_conn",
        Name:      "evictions_total",
        Help:      "Total number of cached gRPC connections evicted",
    })
    GRPCConnActive = prometheus.NewGauge(prometheus.GaugeOpts{
        Namespace: "clusterstate",
        Subsystem: "grpc_conn",
        Name:      "active",
        Help:      "Number of active cached gRPC connections",
    })
)

// Register registers metrics into the default Prometheus registry (idempotent).
func Register() {
    once.Do(func() {
        prometheus.MustRegister(ReportsIngested)
        prometheus.MustRegister(PartitionUpdatesAccepted)
        prometheus.MustRegister(PartitionUpdatesRejected)
        prometheus.MustRegister(Commits)
        prometheus.MustRegister(TopologyChanges)
        prometheus.MustRegister(MapVersion)
        prometheus.MustRegister(TrackedNodes)
        prometheus.MustRegister(TrackedPartitions)
        prometheus.MustRegister(AdminCommands)
        prometheus.MustRegister(GRPCConnDials)
        prometheus.MustRegister(GRPCConnReuse)
        prometheus.MustRegister(GRPCConnEvictions)
        prometheus.MustRegister(GRPCConnActive)
    })
}
