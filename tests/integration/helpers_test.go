//go:build integration

package integration

import (
    "archive/zip"
    "bytes"
    "encoding/json"
    "errors"
    "io"
    "net/http"
    "net/http/httptest"
    "os"
    "path/filepath"
    "strings"
    "sync"
    "testing"
    "time"

    "github.com/amirimatin/go-searchnode/pkg/refresh"
)

var errNotYet = errors.New("not yet")

func waitUntil(t *testing.T, timeout time.Duration, fn func() error) {
    t.Helper()
    deadline := time.Now().Add(timeout)
    var last error
    for time.Now().Before(deadline) {
        if last = fn(); last == nil { return }
        time.Sleep(50 * time.Millisecond)
    }
    t.Fatalf("condition not met within %s: %v", timeout, last)
}

// bundleZip builds a service bundle: home/bin/elasticsearch is a shell
// script that records its environment to envOut and sleeps until TERM.
func bundleZip(t *testing.T, home, envOut string) []byte {
    t.Helper()
    var buf bytes.Buffer
    zw := zip.NewWriter(&buf)
    add := func(name string, mode os.FileMode, body string) {
        h := &zip.FileHeader{Name: home + "/" + name, Method: zip.Deflate}
        h.SetMode(mode)
        w, err := zw.CreateHeader(h)
        if err != nil { t.Fatal(err) }
        _, _ = io.WriteString(w, body)
    }
    add("bin/elasticsearch", 0o755, "#!/bin/sh\necho \"BRIDGE_PORT=$BRIDGE_PORT ES_JAVA_OPTS=$ES_JAVA_OPTS\" > "+envOut+"\ntrap 'exit 0' TERM\nwhile true; do sleep 0.1; done\n")
    add("config/jvm.options", 0o644, "-Xms1g\n-Xmx1g\n-XX:+UseG1GC\n")
    add("config/elasticsearch.yml", 0o644, "cluster.name: shipped\n")
    if err := zw.Close(); err != nil { t.Fatal(err) }
    return buf.Bytes()
}

// fakeCluster serves a bundle download plus the cluster health, state and
// document endpoints from memory.
type fakeCluster struct {
    mu      sync.Mutex
    master  string
    health  string
    docs    map[string][]byte
    puts    int
    bundles map[string][]byte
}

func newFakeCluster(master string) *fakeCluster {
    return &fakeCluster{master: master, health: "green", docs: map[string][]byte{}, bundles: map[string][]byte{}}
}

func (f *fakeCluster) state(name string) (refresh.DataSourceState, bool) {
    f.mu.Lock()
    defer f.mu.Unlock()
    raw, ok := f.docs[refresh.Collection+"/"+name]
    if !ok { return refresh.DataSourceState{}, false }
    var s refresh.DataSourceState
    _ = json.Unmarshal(raw, &s)
    return s, true
}

func (f *fakeCluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
    f.mu.Lock()
    defer f.mu.Unlock()
    switch {
    case strings.HasPrefix(r.URL.Path, "/downloads/"):
        b, ok := f.bundles[filepath.Base(r.URL.Path)]
        if !ok { http.NotFound(w, r); return }
        _, _ = w.Write(b)
    case r.URL.Path == "/_cluster/health":
        _ = json.NewEncoder(w).Encode(map[string]string{"status": f.health})
    case r.URL.Path == "/_cluster/state/master_node,nodes":
        _ = json.NewEncoder(w).Encode(map[string]any{
            "master_node": "id-1",
            "nodes":       map[string]any{"id-1": map[string]string{"name": f.master}},
        })
    case strings.Contains(r.URL.Path, "/_doc/"):
        key := strings.Replace(strings.TrimPrefix(r.URL.Path, "/"), "/_doc/", "/", 1)
        switch r.Method {
        case http.MethodGet:
            raw, ok := f.docs[key]
            if !ok {
                w.WriteHeader(http.StatusNotFound)
                _, _ = w.Write([]byte(`{"found":false}`))
                return
            }
            _, _ = w.Write([]byte(`{"found":true,"_source":` + string(raw) + `}`))
        case http.MethodPut:
            body, _ := io.ReadAll(r.Body)
            f.docs[key] = body
            f.puts++
            w.WriteHeader(http.StatusCreated)
            _, _ = w.Write([]byte(`{"result":"created"}`))
        }
    default:
        http.NotFound(w, r)
    }
}

func startFake(t *testing.T, f *fakeCluster) *httptest.Server {
    srv := httptest.NewServer(f)
    t.Cleanup(srv.Close)
    return srv
}
