package bootstrap

import (
    "os"
    "path/filepath"
    "testing"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/amirimatin/go-searchnode/pkg/artifact"
    "github.com/amirimatin/go-searchnode/pkg/config"
    "github.com/amirimatin/go-searchnode/pkg/discovery/gossip"
    "github.com/amirimatin/go-searchnode/pkg/node"
    "github.com/amirimatin/go-searchnode/pkg/provision"
)

func load(t *testing.T, body string) *config.Settings {
    t.Helper()
    path := filepath.Join(t.TempDir(), "searchnode.yaml")
    require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
    s, err := config.Load(path)
    require.NoError(t, err)
    return s
}

func TestBuildStaticWithScheduler(t *testing.T) {
    root := t.TempDir()
    s := load(t, `
node_name: es-0
installer:
  name: elasticsearch-8.13.0.zip
  url: https://downloads.example.com/elasticsearch-8.13.0.zip
bootstrap:
  enabled: true
  interval: 30s
heap_mb: 512
dirs:
  root: `+root+`
discovery:
  static: "es-0=10.0.0.4:9300,es-1=10.0.0.5:9300"
mgmt:
  addr: 127.0.0.1:0
`)
    svc, err := Build(s, nil)
    require.NoError(t, err)
    require.NotNil(t, svc.Scheduler())

    st := svc.Status()
    assert.Equal(t, "es-0", st.Node)
    assert.Equal(t, node.PhaseCreated, st.Phase)
    assert.False(t, st.Configured)
}

func TestBuildWithoutBootstrapHasNoScheduler(t *testing.T) {
    s := load(t, `
node_name: es-0
installer: {name: es.zip, url: "http://127.0.0.1/es.zip"}
dirs: {root: `+t.TempDir()+`}
mgmt: {addr: ""}
`)
    svc, err := Build(s, nil)
    require.NoError(t, err)
    assert.Nil(t, svc.Scheduler())
}

func TestPipelineLayout(t *testing.T) {
    root := t.TempDir()
    s := load(t, `
node_name: es-1
emulated: true
installer: {name: elasticsearch-8.13.0.zip, url: "http://127.0.0.1/es.zip"}
dirs: {root: `+root+`}
`)
    p, err := Pipeline(s, nil)
    require.NoError(t, err)

    assert.Equal(t, filepath.Join(root, "var", "install", "elasticsearch-8.13.0"), p.Home())
    assert.Equal(t, filepath.Join(root, "plugins"), p.PackagedPlugins)
    assert.Equal(t, filepath.Join(root, "config", "elasticsearch.yml"), p.Runtime.ConfigTemplatePath)
    assert.Equal(t, filepath.Join(root, "var", "data"), p.Runtime.DataPath)
    assert.Equal(t, provision.EmulatedHeapMB, p.Runtime.HeapMB)
    assert.Equal(t, "es-1", p.Runtime.NodeName)
    assert.Equal(t, "web", p.Bundle.Source.Kind())
}

func TestPipelineStorageDownload(t *testing.T) {
    s := load(t, `
node_name: es-0
installer:
  name: es.zip
  url: https://acct.blob.core.windows.net/installers/es.zip
  download_type: storage
storage: {account: acct, key: a2V5}
plugins: {container: plugins}
dirs: {root: `+t.TempDir()+`}
`)
    p, err := Pipeline(s, nil)
    require.NoError(t, err)
    src, ok := p.Bundle.Source.(*artifact.StorageSource)
    require.True(t, ok)
    assert.NotNil(t, src.Store)
}

func TestDirectoryKinds(t *testing.T) {
    s := load(t, `
node_name: es-0
installer: {name: es.zip, url: "http://127.0.0.1/es.zip"}
dirs: {root: `+t.TempDir()+`}
discovery:
  kind: gossip
  gossip: {bind: "127.0.0.1:0", transport: "127.0.0.1:9300"}
`)
    dir, err := Directory(s, nil)
    require.NoError(t, err)
    _, ok := dir.(*gossip.Directory)
    assert.True(t, ok)

    s.Discovery.Kind = config.DiscoveryStatic
    s.Discovery.Static = "es-0=not-a-hostport"
    _, err = Directory(s, nil)
    assert.Error(t, err)
}
