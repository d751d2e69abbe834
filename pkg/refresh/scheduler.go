package refresh

import (
    "context"
    "log"
    "sort"
    "sync"
    "time"

    "go.opentelemetry.io/otel/attribute"

    "github.com/amirimatin/go-searchnode/pkg/internal/logutil"
    "github.com/amirimatin/go-searchnode/pkg/observability/metrics"
    "github.com/amirimatin/go-searchnode/pkg/observability/tracing"
)

// DefaultInterval is the period between ticks.
const DefaultInterval = time.Minute

type Options struct {
    NodeName string
    Interval time.Duration
    Cluster  Cluster
    Logger   *log.Logger
    // Now defaults to time.Now.
    Now func() time.Time
}

// TickResult summarises one tick.
type TickResult struct {
    Healthy    bool
    Err        error
    Dispatched []string
    Skipped    []string
}

// Snapshot is the reportable scheduler state.
type Snapshot struct {
    Running     bool      `json:"running"`
    Ticks       uint64    `json:"ticks"`
    LastTick    time.Time `json:"lastTick,omitempty"`
    LastHealthy bool      `json:"lastHealthy"`
}

// Scheduler runs one timer that is stopped while a tick works and re-armed
// afterwards, so ticks never overlap.
type Scheduler struct {
    opts Options

    mu            sync.Mutex
    bootstrappers []Bootstrapper
    ctx           context.Context
    done          chan struct{}
    timer         *time.Timer
    started       bool
    stopped       bool
    ticking       bool
    ticks         uint64
    lastTick      time.Time
    lastHealthy   bool
}

func New(opts Options) *Scheduler {
    if opts.Interval <= 0 { opts.Interval = DefaultInterval }
    if opts.Logger == nil { opts.Logger = log.Default() }
    if opts.Now == nil { opts.Now = time.Now }
    return &Scheduler{opts: opts, done: make(chan struct{})}
}

// Add registers bootstrappers. It may be called while running; new entries
// take part from the next tick.
func (s *Scheduler) Add(b ...Bootstrapper) {
    s.mu.Lock()
    s.bootstrappers = append(s.bootstrappers, b...)
    s.mu.Unlock()
}

// Start arms the timer. ctx bounds every tick and state write; cancelling it
// has the same effect as Stop.
func (s *Scheduler) Start(ctx context.Context) {
    s.mu.Lock()
    defer s.mu.Unlock()
    if s.started { return }
    s.started = true
    s.ctx = ctx
    s.timer = time.AfterFunc(s.opts.Interval, s.fire)
    go func() {
        select {
        case <-ctx.Done():
            s.Stop()
        case <-s.done:
        }
    }()
    logutil.Infof(s.opts.Logger, "refresh scheduler started (interval %s, %d bootstrappers)", s.opts.Interval, len(s.bootstrappers))
}

// Stop disarms the timer. A tick in progress finishes but is not re-armed.
func (s *Scheduler) Stop() {
    s.mu.Lock()
    defer s.mu.Unlock()
    if s.stopped { return }
    s.stopped = true
    close(s.done)
    if s.timer != nil { s.timer.Stop() }
}

// Running reports whether the timer is armed or a tick is in progress.
func (s *Scheduler) Running() bool {
    s.mu.Lock()
    defer s.mu.Unlock()
    return s.started && !s.stopped && (s.timer != nil || s.ticking)
}

func (s *Scheduler) Snapshot() Snapshot {
    s.mu.Lock()
    defer s.mu.Unlock()
    return Snapshot{
        Running:     s.started && !s.stopped && (s.timer != nil || s.ticking),
        Ticks:       s.ticks,
        LastTick:    s.lastTick,
        LastHealthy: s.lastHealthy,
    }
}

func (s *Scheduler) fire() {
    s.mu.Lock()
    if s.stopped {
        s.mu.Unlock()
        return
    }
    s.timer = nil
    s.ticking = true
    ctx := s.ctx
    s.mu.Unlock()

    s.Tick(ctx)

    s.mu.Lock()
    s.ticking = false
    if !s.stopped { s.timer = time.AfterFunc(s.opts.Interval, s.fire) }
    s.mu.Unlock()
}

// Tick runs one health check and, when healthy, evaluates every bootstrapper
// concurrently. It returns once every evaluation has run or dispatched its
// bootstrapper.
func (s *Scheduler) Tick(ctx context.Context) TickResult {
    ctx, end := tracing.StartSpan(ctx, "refresh.tick", attribute.String("node", s.opts.NodeName))
    var res TickResult
    defer func() {
        s.mu.Lock()
        s.ticks++
        s.lastTick = s.opts.Now()
        s.lastHealthy = res.Healthy
        s.mu.Unlock()
        end(res.Err)
    }()

    healthy, err := s.opts.Cluster.IsHealthy(ctx)
    switch {
    case err != nil:
        res.Err = err
        metrics.RefreshTicks.WithLabelValues("error").Inc()
        logutil.Warnf(s.opts.Logger, "cluster health check failed: %v", err)
        return res
    case !healthy:
        metrics.RefreshTicks.WithLabelValues("unhealthy").Inc()
        logutil.Infof(s.opts.Logger, "cluster not healthy yet, skipping data bootstrap")
        return res
    }
    res.Healthy = true
    metrics.RefreshTicks.WithLabelValues("healthy").Inc()

    s.mu.Lock()
    list := append([]Bootstrapper(nil), s.bootstrappers...)
    persistCtx := s.ctx
    s.mu.Unlock()
    if persistCtx == nil { persistCtx = ctx }

    var (
        wg sync.WaitGroup
        mu sync.Mutex
    )
    for _, b := range list {
        wg.Add(1)
        go func(b Bootstrapper) {
            defer wg.Done()
            ran := s.evaluate(ctx, persistCtx, b)
            mu.Lock()
            if ran {
                res.Dispatched = append(res.Dispatched, b.Name())
            } else {
                res.Skipped = append(res.Skipped, b.Name())
            }
            mu.Unlock()
        }(b)
    }
    wg.Wait()
    sort.Strings(res.Dispatched)
    sort.Strings(res.Skipped)
    return res
}

func (s *Scheduler) evaluate(ctx, persistCtx context.Context, b Bootstrapper) bool {
    name := b.Name()
    master, err := s.opts.Cluster.IsMaster(ctx, s.opts.NodeName)
    if err != nil {
        logutil.Warnf(s.opts.Logger, "bootstrapper %s: master check failed: %v", name, err)
        return false
    }
    if !master { return false }

    prev, found, err := s.opts.Cluster.GetState(ctx, name)
    if err != nil {
        logutil.Warnf(s.opts.Logger, "bootstrapper %s: state lookup failed: %v", name, err)
        return false
    }
    if found && !prev.Due(s.opts.Now()) { return false }

    logutil.Infof(s.opts.Logger, "running bootstrapper %s", name)
    var once sync.Once
    b.Run(ctx, func(next time.Time, errMsg string) {
        once.Do(func() { s.complete(persistCtx, name, prev, next, errMsg) })
    })
    return true
}

func (s *Scheduler) complete(ctx context.Context, name string, prev DataSourceState, next time.Time, errMsg string) {
    now := s.opts.Now()
    st := DataSourceState{Name: name, NextUpdate: &next, LastUpdated: prev.LastUpdated}
    result := "ok"
    if errMsg == "" {
        st.LastUpdated = &now
    } else {
        result = "error"
        st.LastErrorDate = &now
        st.LastErrorMessage = errMsg
        logutil.Warnf(s.opts.Logger, "bootstrapper %s failed: %s", name, errMsg)
    }
    metrics.BootstrapperRuns.WithLabelValues(name, result).Inc()
    if err := s.opts.Cluster.PutState(ctx, st); err != nil {
        logutil.Errorf(s.opts.Logger, "bootstrapper %s: saving state failed: %v", name, err)
        return
    }
    logutil.Infof(s.opts.Logger, "bootstrapper %s next update %s", name, next.Format(time.RFC3339))
}
