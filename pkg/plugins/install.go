package plugins

import (
    "bytes"
    "context"
    "errors"
    "fmt"
    "log"
    "os"
    "os/exec"
    "path/filepath"
    "runtime"
    "strings"

    "github.com/hashicorp/go-multierror"

    "github.com/amirimatin/go-searchnode/pkg/internal/logutil"
)

// InstallError reports a named plugin whose installer did not succeed.
type InstallError struct {
    Plugin   string
    ExitCode int
    Stderr   string
    Err      error
}

func (e *InstallError) Error() string {
    msg := fmt.Sprintf("plugins: install %q failed (exit %d)", e.Plugin, e.ExitCode)
    if e.Err != nil { msg += ": " + e.Err.Error() }
    if s := strings.TrimSpace(e.Stderr); s != "" { msg += ": " + s }
    return msg
}

func (e *InstallError) Unwrap() error { return e.Err }

// NamedInstaller installs plugins by name through the service's own plugin
// tool. Explicitly named plugins are required: any failure is returned.
type NamedInstaller struct {
    // Executable defaults to <Home>/bin/elasticsearch-plugin.
    Executable string
    Home       string
    JavaHome   string
    Logger     *log.Logger
}

func (n *NamedInstaller) executable() string {
    if n.Executable != "" { return n.Executable }
    name := "elasticsearch-plugin"
    if runtime.GOOS == "windows" { name += ".bat" }
    return filepath.Join(n.Home, "bin", name)
}

// Install runs one installer per name concurrently and waits for all.
func (n *NamedInstaller) Install(ctx context.Context, names []string) error {
    results := make(chan error, len(names))
    for _, name := range names {
        go func(name string) { results <- n.installOne(ctx, name) }(name)
    }
    var errs *multierror.Error
    for range names {
        if err := <-results; err != nil { errs = multierror.Append(errs, err) }
    }
    return errs.ErrorOrNil()
}

func (n *NamedInstaller) installOne(ctx context.Context, name string) error {
    if err := ctx.Err(); err != nil { return &InstallError{Plugin: name, ExitCode: -1, Err: err} }
    cmd := exec.Command(n.executable(), "install", "--batch", name)
    cmd.Dir = n.Home
    cmd.Env = os.Environ()
    if n.JavaHome != "" { cmd.Env = append(cmd.Env, "JAVA_HOME="+n.JavaHome) }
    var stderr bytes.Buffer
    stdout := logutil.LineWriter(n.Logger, logutil.LevelInfo, "plugin "+name+": ")
    defer stdout.Close()
    cmd.Stdout = stdout
    cmd.Stderr = &stderr
    logutil.Infof(n.Logger, "installing plugin %s", name)
    if err := cmd.Start(); err != nil { return &InstallError{Plugin: name, ExitCode: -1, Err: err} }

    done := make(chan error, 1)
    go func() { done <- cmd.Wait() }()
    var err error
    select {
    case <-ctx.Done():
        _ = cmd.Process.Kill()
        <-done
        return &InstallError{Plugin: name, ExitCode: -1, Stderr: stderr.String(), Err: ctx.Err()}
    case err = <-done:
    }
    if err != nil {
        code := -1
        var ee *exec.ExitError
        if errors.As(err, &ee) { code = ee.ExitCode() }
        return &InstallError{Plugin: name, ExitCode: code, Stderr: stderr.String()}
    }
    logutil.Infof(n.Logger, "installed plugin %s", name)
    return nil
}
