package artifact

import (
    "context"
    "errors"
    "io"
    "net/http"
    "net/http/httptest"
    "os"
    "path/filepath"
    "strings"
    "sync/atomic"
    "testing"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

type countingSource struct {
    calls atomic.Int32
    body  string
    err   error
}

func (c *countingSource) Kind() string { return "fake" }

func (c *countingSource) Download(ctx context.Context, locator string, w io.Writer) (int64, error) {
    c.calls.Add(1)
    if c.err != nil { return 0, c.err }
    n, err := io.Copy(w, strings.NewReader(c.body))
    return n, err
}

func TestEnsureInstalledIsIdempotent(t *testing.T) {
    src := &countingSource{body: "bundle"}
    p := NewProvisioner(t.TempDir(), nil)
    a := Artifact{Locator: "mem://bundle", Name: "es.zip", Source: src}

    path, err := p.EnsureInstalled(context.Background(), a)
    require.NoError(t, err)
    b, err := os.ReadFile(path)
    require.NoError(t, err)
    assert.Equal(t, "bundle", string(b))

    _, err = p.EnsureInstalled(context.Background(), a)
    require.NoError(t, err)
    _, err = p.EnsureInstalled(context.Background(), a)
    require.NoError(t, err)
    assert.Equal(t, int32(1), src.calls.Load())
}

func TestEnsureInstalledSkipsPreexistingFile(t *testing.T) {
    root := t.TempDir()
    require.NoError(t, os.WriteFile(filepath.Join(root, "es.zip"), []byte("local"), 0o644))
    src := &countingSource{body: "remote"}
    _, err := NewProvisioner(root, nil).EnsureInstalled(context.Background(), Artifact{Name: "es.zip", Source: src})
    require.NoError(t, err)
    assert.Equal(t, int32(0), src.calls.Load())
}

func TestFetchFailureLeavesNoFiles(t *testing.T) {
    root := t.TempDir()
    src := &countingSource{err: &FetchError{Locator: "x", StatusCode: 500}}
    _, err := NewProvisioner(root, nil).EnsureInstalled(context.Background(), Artifact{Name: "es.zip", Source: src})
    var fe *FetchError
    require.ErrorAs(t, err, &fe)
    assert.Equal(t, 500, fe.StatusCode)
    entries, err := os.ReadDir(root)
    require.NoError(t, err)
    assert.Empty(t, entries, "no partial or temp file may remain")
}

func TestFetchToWrapsForeignErrors(t *testing.T) {
    src := &countingSource{err: errors.New("socket closed")}
    _, err := FetchTo(context.Background(), Artifact{Locator: "l", Name: "n", Source: src}, filepath.Join(t.TempDir(), "n"))
    var fe *FetchError
    require.ErrorAs(t, err, &fe)
}

func TestFetchToReportsIOError(t *testing.T) {
    root := t.TempDir()
    blocker := filepath.Join(root, "file")
    require.NoError(t, os.WriteFile(blocker, nil, 0o644))
    _, err := FetchTo(context.Background(), Artifact{Name: "x", Source: &countingSource{}}, filepath.Join(blocker, "x"))
    var ioe *IOError
    require.ErrorAs(t, err, &ioe)
}

func TestFetchToWithoutSource(t *testing.T) {
    _, err := FetchTo(context.Background(), Artifact{Name: "x"}, filepath.Join(t.TempDir(), "x"))
    assert.ErrorIs(t, err, ErrNoSource)
}

func TestWebSource(t *testing.T) {
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        if r.URL.Path == "/missing.zip" { http.NotFound(w, r); return }
        _, _ = w.Write([]byte("zipdata"))
    }))
    defer srv.Close()
    root := t.TempDir()
    p := NewProvisioner(root, nil)
    src := NewWebSource(0)

    path, err := p.EnsureInstalled(context.Background(), Artifact{Locator: srv.URL + "/es.zip", Name: "es.zip", Source: src})
    require.NoError(t, err)
    b, _ := os.ReadFile(path)
    assert.Equal(t, "zipdata", string(b))

    _, err = p.EnsureInstalled(context.Background(), Artifact{Locator: srv.URL + "/missing.zip", Name: "missing.zip", Source: src})
    var fe *FetchError
    require.ErrorAs(t, err, &fe)
    assert.Equal(t, http.StatusNotFound, fe.StatusCode)
    assert.NoFileExists(t, filepath.Join(root, "missing.zip"))
}

func TestWebSourceUnreachable(t *testing.T) {
    srv := httptest.NewServer(http.NotFoundHandler())
    url := srv.URL
    srv.Close()
    _, err := NewWebSource(0).Download(context.Background(), url+"/x", io.Discard)
    var fe *FetchError
    require.ErrorAs(t, err, &fe)
    assert.Zero(t, fe.StatusCode)
}

type fakeStore struct {
    container, blob string
}

func (f *fakeStore) Download(ctx context.Context, container, blob string, w io.Writer) (int64, error) {
    f.container, f.blob = container, blob
    n, err := w.Write([]byte("blob"))
    return int64(n), err
}
func (f *fakeStore) List(ctx context.Context, container string) ([]string, error) { return nil, nil }
func (f *fakeStore) EnsureContainer(ctx context.Context, container string) error  { return nil }
func (f *fakeStore) URL(container, blob string) string {
    return "https://acct.blob.core.windows.net/" + container + "/" + blob
}

func TestStorageSourceResolvesContainerAndBlob(t *testing.T) {
    store := &fakeStore{}
    src := &StorageSource{Store: store}
    n, err := src.Download(context.Background(), "https://acct.blob.core.windows.net/installers/elasticsearch.zip", io.Discard)
    require.NoError(t, err)
    assert.Equal(t, int64(4), n)
    assert.Equal(t, "installers", store.container)
    assert.Equal(t, "elasticsearch.zip", store.blob)
}

func TestStorageSourceRejectsContainerOnlyLocator(t *testing.T) {
    _, err := (&StorageSource{Store: &fakeStore{}}).Download(context.Background(), "https://acct.blob.core.windows.net/installers", io.Discard)
    var fe *FetchError
    assert.ErrorAs(t, err, &fe)
}
