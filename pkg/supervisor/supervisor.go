// Package supervisor runs the search service process and blocks until it
// exits or the node is asked to stop.
package supervisor

import (
    "context"
    "errors"
    "fmt"
    "log"
    "os"
    "os/exec"
    "strconv"
    "strings"
    "sync"
    "sync/atomic"
    "time"

    "github.com/dustin/go-humanize"

    "github.com/amirimatin/go-searchnode/pkg/internal/logutil"
    "github.com/amirimatin/go-searchnode/pkg/observability/metrics"
)

// StartError reports an executable that could not be launched.
type StartError struct {
    Path string
    Err  error
}

func (e *StartError) Error() string { return fmt.Sprintf("supervisor: start %s: %v", e.Path, e.Err) }

func (e *StartError) Unwrap() error { return e.Err }

// Options configure the supervised process.
type Options struct {
    Executable string
    Args       []string
    Dir        string
    // HeapMB sets ES_JAVA_OPTS when positive.
    HeapMB     int
    BridgePort int
    JavaHome   string
    // WaitDelay bounds how long output pipes may stay open once the process
    // has exited, e.g. held by a child it left behind. Zero means 5s.
    WaitDelay time.Duration
    // StderrLimit caps the stderr bytes retained for the exit log. Zero
    // means 64 KiB.
    StderrLimit int
    Logger      *log.Logger
}

const (
    defaultWaitDelay   = 5 * time.Second
    defaultStderrLimit = 64 << 10
)

// Supervisor owns one launch of the service process.
type Supervisor struct {
    opts  Options
    state atomic.Int32

    mu      sync.Mutex
    cmd     *exec.Cmd
    exited  chan struct{}
    started time.Time
    stopped bool
}

func New(opts Options) *Supervisor {
    if opts.Logger == nil { opts.Logger = log.Default() }
    if opts.WaitDelay <= 0 { opts.WaitDelay = defaultWaitDelay }
    if opts.StderrLimit <= 0 { opts.StderrLimit = defaultStderrLimit }
    return &Supervisor{opts: opts, exited: make(chan struct{})}
}

func (s *Supervisor) State() State { return State(s.state.Load()) }

// PID returns the running process id, or 0.
func (s *Supervisor) PID() int {
    s.mu.Lock()
    defer s.mu.Unlock()
    if s.cmd == nil || s.cmd.Process == nil { return 0 }
    return s.cmd.Process.Pid
}

// StartedAt is the launch time, zero before launch.
func (s *Supervisor) StartedAt() time.Time {
    s.mu.Lock()
    defer s.mu.Unlock()
    return s.started
}

// Environment returns the variables added to the inherited environment.
func (s *Supervisor) Environment(extra map[string]string) []string {
    var env []string
    if s.opts.HeapMB > 0 {
        env = append(env, fmt.Sprintf("ES_JAVA_OPTS=-Xms%dm -Xmx%dm", s.opts.HeapMB, s.opts.HeapMB))
    }
    if s.opts.BridgePort > 0 { env = append(env, "BRIDGE_PORT="+strconv.Itoa(s.opts.BridgePort)) }
    if s.opts.JavaHome != "" { env = append(env, "JAVA_HOME="+s.opts.JavaHome) }
    for k, v := range extra { env = append(env, k+"="+v) }
    return env
}

// StartAndBlock launches the process and waits for it to exit or for ctx to
// be cancelled, whichever comes first. On cancellation a graceful stop is
// requested and the call returns once the process is gone; the result is
// then nil. A non-zero exit is returned as an error. If ctx is already done
// nothing is launched, and the same holds after Stop.
func (s *Supervisor) StartAndBlock(ctx context.Context, extraEnv map[string]string) error {
    if ctx.Err() != nil {
        logutil.Warnf(s.opts.Logger, "cancellation requested before start, not launching %s", s.opts.Executable)
        return nil
    }
    s.mu.Lock()
    if s.cmd != nil {
        s.mu.Unlock()
        return errors.New("supervisor: already started")
    }
    if s.stopped {
        s.mu.Unlock()
        logutil.Warnf(s.opts.Logger, "stop requested before start, not launching %s", s.opts.Executable)
        return nil
    }
    cmd := exec.Command(s.opts.Executable, s.opts.Args...)
    cmd.Dir = s.opts.Dir
    cmd.Env = append(os.Environ(), s.Environment(extraEnv)...)
    stdout := logutil.LineWriter(s.opts.Logger, logutil.LevelInfo, "service: ")
    stderr := newTailBuffer(s.opts.StderrLimit)
    cmd.Stdout = stdout
    cmd.Stderr = stderr
    cmd.WaitDelay = s.opts.WaitDelay
    configureProcess(cmd)
    if err := cmd.Start(); err != nil {
        s.mu.Unlock()
        s.state.Store(int32(Exited))
        close(s.exited)
        return &StartError{Path: s.opts.Executable, Err: err}
    }
    s.cmd = cmd
    s.started = time.Now()
    s.state.Store(int32(Running))
    s.mu.Unlock()
    metrics.ProcessStarts.Inc()
    metrics.ProcessRunning.Set(1)
    logutil.Infof(s.opts.Logger, "started %s (pid %d)", s.opts.Executable, cmd.Process.Pid)

    done := make(chan error, 1)
    go func() {
        err := cmd.Wait()
        cleanupProcess(cmd.Process)
        metrics.ProcessRunning.Set(0)
        s.state.Store(int32(Exited))
        close(s.exited)
        done <- err
    }()

    var err error
    select {
    case err = <-done:
    case <-ctx.Done():
        s.state.CompareAndSwap(int32(Running), int32(CancelRequested))
        logutil.Infof(s.opts.Logger, "cancellation requested, stopping service")
        s.Stop()
        <-done
    }
    _ = stdout.Close()
    if msg := strings.TrimSpace(stderr.String()); msg != "" {
        if n := stderr.Dropped(); n > 0 {
            logutil.Warnf(s.opts.Logger, "service stderr (last %s, %s dropped): %s", humanize.IBytes(uint64(s.opts.StderrLimit)), humanize.IBytes(uint64(n)), msg)
        } else {
            logutil.Warnf(s.opts.Logger, "service stderr: %s", msg)
        }
    }
    if errors.Is(err, exec.ErrWaitDelay) {
        logutil.Warnf(s.opts.Logger, "service output still open %s after exit, closed", s.opts.WaitDelay)
        err = nil
    }
    if err != nil {
        logutil.Errorf(s.opts.Logger, "service exited: %v", err)
        return fmt.Errorf("supervisor: %s: %w", s.opts.Executable, err)
    }
    logutil.Infof(s.opts.Logger, "service exited")
    return nil
}

// Stop requests a cooperative shutdown of the process and everything it
// spawned. It is safe to call at any time and more than once; it does not
// wait.
func (s *Supervisor) Stop() {
    s.mu.Lock()
    if s.stopped {
        s.mu.Unlock()
        return
    }
    s.stopped = true
    launched := s.cmd != nil
    s.mu.Unlock()
    if !launched { return }
    s.signalStop()
}

func (s *Supervisor) signalStop() {
    select {
    case <-s.exited:
        return
    default:
    }
    s.state.CompareAndSwap(int32(Running), int32(ShuttingDown))
    s.state.CompareAndSwap(int32(CancelRequested), int32(ShuttingDown))
    if err := requestStop(s.cmd.Process); err != nil && !errors.Is(err, os.ErrProcessDone) {
        logutil.Warnf(s.opts.Logger, "stop request failed: %v", err)
    }
}

// Wait blocks until the launched process has exited or ctx is done.
func (s *Supervisor) Wait(ctx context.Context) error {
    select {
    case <-s.exited:
        return nil
    case <-ctx.Done():
        return ctx.Err()
    }
}
