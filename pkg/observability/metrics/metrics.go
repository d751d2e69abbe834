package metrics

import (
    "sync"

    "github.com/prometheus/client_golang/prometheus"
)

var (
    once sync.Once

    ProvisionStageSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
        Namespace: "searchnode",
        Subsystem: "provision",
        Name:      "stage_seconds",
        Help:      "Duration of each provisioning stage",
        Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
    }, []string{"stage"})

    ArtifactDownloads = prometheus.NewCounterVec(prometheus.CounterOpts{
        Namespace: "searchnode",
        Subsystem: "artifact",
        Name:      "downloads_total",
        Help:      "Artifact fetches by source kind and result",
    }, []string{"source", "result"})

    PluginsExtracted = prometheus.NewCounterVec(prometheus.CounterOpts{
        Namespace: "searchnode",
        Subsystem: "plugins",
        Name:      "extracted_total",
        Help:      "Plugin archive extractions by result",
    }, []string{"result"})

    ProcessRunning = prometheus.NewGauge(prometheus.GaugeOpts{
        Namespace: "searchnode",
        Subsystem: "process",
        Name:      "running",
        Help:      "1 while the supervised service process is running, else 0",
    })

    ProcessStarts = prometheus.NewCounter(prometheus.CounterOpts{
        Namespace: "searchnode",
        Subsystem: "process",
        Name:      "starts_total",
        Help:      "Total number of service process launches",
    })

    ClusterCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
        Namespace: "searchnode",
        Subsystem: "cluster",
        Name:      "calls_total",
        Help:      "Cluster API calls by operation and result",
    }, []string{"op", "result"})

    RefreshTicks = prometheus.NewCounterVec(prometheus.CounterOpts{
        Namespace: "searchnode",
        Subsystem: "refresh",
        Name:      "ticks_total",
        Help:      "Refresh scheduler ticks by outcome (healthy, unhealthy, error)",
    }, []string{"result"})

    BootstrapperRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
        Namespace: "searchnode",
        Subsystem: "refresh",
        Name:      "bootstrapper_runs_total",
        Help:      "Bootstrapper completions by name and result",
    }, []string{"name", "result"})
)

// Register registers metrics into the default Prometheus registry (idempotent).
func Register() {
    once.Do(func() {
        prometheus.MustRegister(
            ProvisionStageSeconds,
            ArtifactDownloads,
            PluginsExtracted,
            ProcessRunning,
            ProcessStarts,
            ClusterCalls,
            RefreshTicks,
            BootstrapperRuns,
        )
    })
}

// Result maps an error to the "ok"/"error" label used by the counters above.
func Result(err error) string {
    if err != nil { return "error" }
    return "ok"
}
