// Package node is the hosting-facing service object: OnStart builds the
// runtime pieces, Run provisions and then blocks in the process supervisor,
// OnStop cancels, stops the process and waits for Run to unwind.
package node

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "log"
    "runtime"
    "sync"

    "github.com/amirimatin/go-searchnode/pkg/bridge"
    "github.com/amirimatin/go-searchnode/pkg/internal/logutil"
    "github.com/amirimatin/go-searchnode/pkg/observability/metrics"
    "github.com/amirimatin/go-searchnode/pkg/plugins"
    "github.com/amirimatin/go-searchnode/pkg/refresh"
    "github.com/amirimatin/go-searchnode/pkg/supervisor"
)

var (
    ErrNotStarted     = errors.New("node: OnStart has not been called")
    ErrAlreadyRunning = errors.New("node: Run already called")
)

// lifecycle is implemented by directories that own background resources
// (gossip).
type lifecycle interface {
    Start(ctx context.Context) error
    Stop() error
}

type Service struct {
    opts  Options
    sched *refresh.Scheduler

    mu       sync.Mutex
    phase    Phase
    lastErr  error
    ctx      context.Context
    cancel   context.CancelFunc
    bridge   *bridge.Server
    sup      *supervisor.Supervisor
    javaHome string
    ran      bool
    runDone  chan struct{}
}

func New(opts Options) (*Service, error) {
    if err := opts.Validate(); err != nil { return nil, err }
    if opts.Logger == nil { opts.Logger = log.Default() }
    s := &Service{opts: opts, phase: PhaseCreated, runDone: make(chan struct{})}
    if opts.Cluster != nil {
        s.sched = refresh.New(refresh.Options{NodeName: opts.NodeName, Interval: opts.RefreshInterval, Cluster: opts.Cluster, Logger: opts.Logger})
    }
    return s, nil
}

// AddBootstrapper registers a recurring data loader. It is a no-op when the
// refresh scheduler is disabled.
func (s *Service) AddBootstrapper(b ...refresh.Bootstrapper) {
    if s.sched == nil {
        logutil.Warnf(s.opts.Logger, "data bootstrap disabled, ignoring %d bootstrappers", len(b))
        return
    }
    s.sched.Add(b...)
}

// Scheduler returns the refresh scheduler, or nil when disabled.
func (s *Service) Scheduler() *refresh.Scheduler { return s.sched }

// OnStart prepares the node: locates the Java runtime, opens the runtime
// bridge and the management endpoint. It does no provisioning.
func (s *Service) OnStart(ctx context.Context) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    if s.ctx != nil { return nil }
    metrics.Register()
    s.ctx, s.cancel = context.WithCancel(ctx)

    if s.opts.Locator != nil {
        if home, err := s.opts.Locator.JavaHome(s.ctx); err == nil {
            s.javaHome = home
        } else {
            logutil.Warnf(s.opts.Logger, "java runtime not located: %v", err)
        }
    }
    if lc, ok := s.opts.Directory.(lifecycle); ok {
        if err := lc.Start(s.ctx); err != nil { return s.failLocked(fmt.Errorf("node: directory: %w", err)) }
    }
    if s.opts.Directory != nil {
        b, err := bridge.Listen(s.opts.BridgeAddr, s.opts.Directory, s.opts.Endpoint, s.opts.Logger)
        if err != nil { return s.failLocked(err) }
        s.bridge = b
        s.opts.Pipeline.Runtime.BridgeAddress = b.Addr()
        go func() {
            if err := b.Serve(s.ctx); err != nil { logutil.Errorf(s.opts.Logger, "runtime bridge stopped: %v", err) }
        }()
    }
    if s.opts.Mgmt != nil {
        if err := s.opts.Mgmt.Start(s.ctx, s.statusJSON, s.healthz); err != nil { return s.failLocked(fmt.Errorf("node: management server: %w", err)) }
    }
    s.phase = PhaseStarted
    logutil.Infof(s.opts.Logger, "node %s started", s.opts.NodeName)
    return nil
}

func (s *Service) failLocked(err error) error {
    s.phase = PhaseFailed
    s.lastErr = err
    logutil.Errorf(s.opts.Logger, "%v", err)
    return err
}

func (s *Service) setPhase(p Phase, err error) {
    s.mu.Lock()
    s.phase = p
    if err != nil { s.lastErr = err }
    s.mu.Unlock()
}

// Run provisions the installation, installs named plugins and blocks in the
// process supervisor until the service exits or OnStop is called. A
// provisioning failure is returned and the process is never launched.
func (s *Service) Run() error {
    s.mu.Lock()
    if s.ctx == nil {
        s.mu.Unlock()
        return ErrNotStarted
    }
    if s.ran {
        s.mu.Unlock()
        return ErrAlreadyRunning
    }
    s.ran = true
    ctx := s.ctx
    s.phase = PhaseProvisioning
    s.mu.Unlock()
    defer close(s.runDone)

    err := s.run(ctx)
    switch {
    case err != nil && ctx.Err() == nil:
        s.setPhase(PhaseFailed, err)
        logutil.Errorf(s.opts.Logger, "node %s failed: %v", s.opts.NodeName, err)
    default:
        s.setPhase(PhaseStopped, nil)
        if ctx.Err() != nil { err = nil }
    }
    return err
}

func (s *Service) run(ctx context.Context) error {
    p := s.opts.Pipeline
    if err := p.EnsureConfigured(ctx); err != nil { return err }
    if len(s.opts.NamedPlugins) > 0 {
        inst := &plugins.NamedInstaller{Home: p.Home(), JavaHome: s.javaHome, Logger: s.opts.Logger}
        if err := inst.Install(ctx, s.opts.NamedPlugins); err != nil { return err }
    }

    exe := s.opts.Executable
    if exe == "" { exe = p.Executable(runtime.GOOS == "windows") }
    bridgePort := 0
    if s.bridge != nil { bridgePort = s.bridge.Port() }
    sup := supervisor.New(supervisor.Options{
        Executable: exe,
        Args:       s.opts.Args,
        Dir:        p.Home(),
        HeapMB:     p.Runtime.HeapMB,
        BridgePort: bridgePort,
        JavaHome:   s.javaHome,
        Logger:     s.opts.Logger,
    })
    s.mu.Lock()
    s.sup = sup
    s.phase = PhaseRunning
    s.mu.Unlock()

    if s.sched != nil {
        s.sched.Start(ctx)
        defer s.sched.Stop()
    }
    return sup.StartAndBlock(ctx, s.opts.Env)
}

// OnStop cancels the node, asks the process to stop and waits until Run has
// returned or ctx is done.
func (s *Service) OnStop(ctx context.Context) error {
    s.mu.Lock()
    if s.ctx == nil {
        s.mu.Unlock()
        return nil
    }
    if s.phase != PhaseFailed && s.phase != PhaseStopped { s.phase = PhaseStopping }
    cancel, sup, ran, b := s.cancel, s.sup, s.ran, s.bridge
    s.mu.Unlock()

    logutil.Infof(s.opts.Logger, "stopping node %s", s.opts.NodeName)
    cancel()
    if sup != nil { sup.Stop() }
    if s.sched != nil { s.sched.Stop() }

    var err error
    if ran {
        select {
        case <-s.runDone:
        case <-ctx.Done():
            err = fmt.Errorf("node: waiting for run to finish: %w", ctx.Err())
        }
    } else {
        s.setPhase(PhaseStopped, nil)
    }
    if b != nil { _ = b.Close() }
    if s.opts.Mgmt != nil { _ = s.opts.Mgmt.Stop(context.Background()) }
    if lc, ok := s.opts.Directory.(lifecycle); ok { _ = lc.Stop() }
    return err
}

// Status returns the current node snapshot.
func (s *Service) Status() Status {
    s.mu.Lock()
    st := Status{Node: s.opts.NodeName, Phase: s.phase, Process: supervisor.NotStarted.String()}
    if s.lastErr != nil { st.Error = s.lastErr.Error() }
    if s.bridge != nil { st.Bridge = s.bridge.Addr() }
    sup := s.sup
    s.mu.Unlock()

    st.Configured = s.opts.Pipeline.Configured()
    if sup != nil {
        st.Process = sup.State().String()
        st.PID = sup.PID()
        if t := sup.StartedAt(); !t.IsZero() { st.StartedAt = &t }
    }
    if s.sched != nil {
        snap := s.sched.Snapshot()
        st.Scheduler = &snap
    }
    return st
}

func (s *Service) statusJSON(context.Context) ([]byte, error) { return json.Marshal(s.Status()) }

func (s *Service) healthz(context.Context) error {
    st := s.Status()
    if st.Phase == PhaseFailed { return fmt.Errorf("node failed: %s", st.Error) }
    return nil
}
