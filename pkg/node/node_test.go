package node

import (
    "archive/zip"
    "bytes"
    "context"
    "encoding/json"
    "errors"
    "io"
    "net"
    "os"
    "path/filepath"
    "runtime"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/amirimatin/go-searchnode/pkg/artifact"
    "github.com/amirimatin/go-searchnode/pkg/bridge"
    "github.com/amirimatin/go-searchnode/pkg/discovery"
    "github.com/amirimatin/go-searchnode/pkg/discovery/static"
    "github.com/amirimatin/go-searchnode/pkg/provision"
    "github.com/amirimatin/go-searchnode/pkg/refresh"
    "github.com/amirimatin/go-searchnode/pkg/transport/httpjson"
)

type bundleSource map[string][]byte

func (b bundleSource) Kind() string { return "mem" }

func (b bundleSource) Download(_ context.Context, locator string, w io.Writer) (int64, error) {
    data, ok := b[locator]
    if !ok { return 0, &artifact.FetchError{Locator: locator, StatusCode: 404, Err: errors.New("missing")} }
    n, err := w.Write(data)
    return int64(n), err
}

func bundle(t *testing.T) []byte {
    t.Helper()
    var buf bytes.Buffer
    zw := zip.NewWriter(&buf)
    w, err := zw.Create("es/config/jvm.options")
    require.NoError(t, err)
    _, _ = io.WriteString(w, "-Xms1g\n")
    require.NoError(t, zw.Close())
    return buf.Bytes()
}

func pipeline(t *testing.T, src artifact.Source) *provision.Pipeline {
    dir := t.TempDir()
    return &provision.Pipeline{
        Bundle:      artifact.Artifact{Locator: "mem://es.zip", Name: "es.zip", Source: src},
        Archives:    artifact.NewProvisioner(filepath.Join(dir, "archive"), nil),
        InstallRoot: filepath.Join(dir, "install"),
        Runtime:     provision.RuntimeConfig{DataPath: filepath.Join(dir, "data"), LogPath: filepath.Join(dir, "log"), NodeName: "es0", HeapMB: 256},
    }
}

func serviceScript(t *testing.T, out string) string {
    t.Helper()
    if runtime.GOOS == "windows" { t.Skip("requires /bin/sh") }
    p := filepath.Join(t.TempDir(), "elasticsearch")
    body := "#!/bin/sh\necho \"$BRIDGE_PORT $ES_JAVA_OPTS\" > " + out + "\ntrap 'exit 0' TERM\nwhile true; do sleep 0.1; done\n"
    require.NoError(t, os.WriteFile(p, []byte(body), 0o755))
    return p
}

type idleCluster struct{}

func (idleCluster) IsHealthy(context.Context) (bool, error)      { return false, nil }
func (idleCluster) IsMaster(context.Context, string) (bool, error) { return false, nil }
func (idleCluster) GetState(context.Context, string) (refresh.DataSourceState, bool, error) {
    return refresh.DataSourceState{}, false, nil
}
func (idleCluster) PutState(context.Context, refresh.DataSourceState) error { return nil }

func TestLifecycle(t *testing.T) {
    out := filepath.Join(t.TempDir(), "env")
    exe := serviceScript(t, out)
    mgmt := httpjson.NewServer("127.0.0.1:0", nil)
    svc, err := New(Options{
        NodeName:   "es0",
        Endpoint:   "es",
        Pipeline:   pipeline(t, bundleSource{"mem://es.zip": bundle(t)}),
        Executable: exe,
        Directory:  static.New(discovery.Instance{ID: "es0", Address: "10.0.0.4", Port: 9300}),
        Cluster:    idleCluster{},
        Mgmt:       mgmt,
        Locator:    provision.StaticLocator("/opt/jdk"),
    })
    require.NoError(t, err)
    svc.AddBootstrapper(refresh.FuncBootstrapper{ID: "noop", Fn: func(_ context.Context, done refresh.Done) { done(time.Now(), "") }})

    require.NoError(t, svc.OnStart(context.Background()))
    assert.Equal(t, PhaseStarted, svc.Status().Phase)

    runErr := make(chan error, 1)
    go func() { runErr <- svc.Run() }()
    require.Eventually(t, func() bool { return svc.Status().Process == "running" }, 10*time.Second, 10*time.Millisecond)
    require.Eventually(t, func() bool { _, err := os.Stat(out); return err == nil }, 5*time.Second, 10*time.Millisecond)

    st := svc.Status()
    assert.Equal(t, PhaseRunning, st.Phase)
    assert.True(t, st.Configured)
    assert.NotZero(t, st.PID)
    require.NotNil(t, st.Scheduler)
    assert.True(t, st.Scheduler.Running)

    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    list, err := bridge.Fetch(ctx, st.Bridge)
    require.NoError(t, err)
    require.Len(t, list, 1)
    assert.Equal(t, "es0", list[0].ID)

    raw, err := httpjson.NewClient(time.Second).GetStatus(ctx, mgmt.Addr())
    require.NoError(t, err)
    var remote map[string]any
    require.NoError(t, json.Unmarshal(raw, &remote))
    assert.Equal(t, "running", remote["state"])

    stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer stopCancel()
    require.NoError(t, svc.OnStop(stopCtx))
    select {
    case err := <-runErr:
        assert.NoError(t, err)
    case <-time.After(5 * time.Second):
        t.Fatal("Run did not return")
    }
    assert.Equal(t, PhaseStopped, svc.Status().Phase)

    b, err := os.ReadFile(out)
    require.NoError(t, err)
    _, port, err := net.SplitHostPort(st.Bridge)
    require.NoError(t, err)
    assert.Equal(t, port+" -Xms256m -Xmx256m\n", string(b))
}

func TestProvisioningFailureIsFatal(t *testing.T) {
    svc, err := New(Options{NodeName: "es0", Pipeline: pipeline(t, bundleSource{}), Executable: "/not/launched"})
    require.NoError(t, err)
    require.NoError(t, svc.OnStart(context.Background()))
    err = svc.Run()
    var fe *artifact.FetchError
    require.ErrorAs(t, err, &fe)
    st := svc.Status()
    assert.Equal(t, PhaseFailed, st.Phase)
    assert.Equal(t, "not_started", st.Process)
    assert.NotEmpty(t, st.Error)
    assert.NoError(t, svc.OnStop(context.Background()))
    assert.ErrorIs(t, svc.Run(), ErrAlreadyRunning)
}

func TestRunRequiresOnStart(t *testing.T) {
    svc, err := New(Options{NodeName: "es0", Pipeline: pipeline(t, bundleSource{})})
    require.NoError(t, err)
    assert.ErrorIs(t, svc.Run(), ErrNotStarted)
    assert.NoError(t, svc.OnStop(context.Background()))

    _, err = New(Options{NodeName: "es0"})
    assert.Error(t, err)
}

func TestStopBeforeRun(t *testing.T) {
    svc, err := New(Options{NodeName: "es0", Pipeline: pipeline(t, bundleSource{})})
    require.NoError(t, err)
    svc.AddBootstrapper(refresh.FuncBootstrapper{ID: "ignored"})
    require.NoError(t, svc.OnStart(context.Background()))
    require.NoError(t, svc.OnStop(context.Background()))
    assert.Equal(t, PhaseStopped, svc.Status().Phase)
    // cancelled before launch: nothing runs
    assert.NoError(t, svc.Run())
}
