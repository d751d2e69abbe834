package render

import (
    "os"
    "path/filepath"
    "testing"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
    "gopkg.in/yaml.v3"
)

type kv struct{ k, v string }

// pairs decodes a rendered document into its top-level entries in order.
func pairs(t *testing.T, data []byte) []kv {
    t.Helper()
    var doc yaml.Node
    require.NoError(t, yaml.Unmarshal(data, &doc))
    require.Equal(t, yaml.DocumentNode, doc.Kind)
    root := doc.Content[0]
    require.Equal(t, yaml.MappingNode, root.Kind)
    var out []kv
    for i := 0; i+1 < len(root.Content); i += 2 {
        out = append(out, kv{root.Content[i].Value, root.Content[i+1].Value})
    }
    return out
}

func TestDocumentPassthroughThenOverrides(t *testing.T) {
    tmpl := []byte("foo: bar\npath.data: ignored\n")
    out, err := Document(tmpl, nil, []Override{{KeyDataPath, "/data/node1"}, {KeyNodeName, "node1"}})
    require.NoError(t, err)
    assert.Equal(t, []kv{{"foo", "bar"}, {"path.data", "/data/node1"}, {"node.name", "node1"}}, pairs(t, out))
}

func TestReservedKeysAlwaysTakeRuntimeValue(t *testing.T) {
    values := []string{"x", "/elsewhere", "'quoted'", "123", "true", "[a, b]"}
    for _, v := range values {
        tmpl := []byte("cluster.name: es\npath.logs: " + v + "\npath.data: " + v + "\nnode.name: " + v + "\n")
        out, err := Document(tmpl, nil, []Override{
            {KeyDataPath, "/d"}, {KeyLogsPath, "/l"}, {KeyNodeName, "n1"},
        })
        require.NoError(t, err, v)
        got := pairs(t, out)
        assert.Equal(t, []kv{{"cluster.name", "es"}, {"path.data", "/d"}, {"path.logs", "/l"}, {"node.name", "n1"}}, got, v)
    }
}

func TestReservedKeyWithoutOverrideIsDropped(t *testing.T) {
    out, err := Document([]byte("path.work: /w\na: 1\n"), []string{KeyWorkPath}, nil)
    require.NoError(t, err)
    assert.Equal(t, []kv{{"a", "1"}}, pairs(t, out))
}

func TestNestedValuesPassThrough(t *testing.T) {
    tmpl := []byte("discovery:\n  seed_hosts:\n    - a\n    - b\nhttp.port: 9200\n")
    out, err := Document(tmpl, nil, []Override{{KeyNodeName, "n"}})
    require.NoError(t, err)
    var m map[string]any
    require.NoError(t, yaml.Unmarshal(out, &m))
    assert.Equal(t, map[string]any{"seed_hosts": []any{"a", "b"}}, m["discovery"])
    assert.Equal(t, 9200, m["http.port"])
    assert.Equal(t, "n", m["node.name"])
}

func TestNestedReservedKeysAreStripped(t *testing.T) {
    tmpl := []byte("path:\n  data: /template\ncluster.name: c\nnode:\n  name: x\n")
    out, err := Document(tmpl, nil, []Override{{KeyDataPath, "/data/node1"}, {KeyNodeName, "n1"}})
    require.NoError(t, err)
    assert.Equal(t, []kv{{"cluster.name", "c"}, {"path.data", "/data/node1"}, {"node.name", "n1"}}, pairs(t, out))
    assert.NotContains(t, string(out), "/template")
}

func TestNestedStripKeepsSiblings(t *testing.T) {
    tmpl := []byte("path:\n  data: /x\n  repo: /r\n")
    out, err := Document(tmpl, nil, []Override{{KeyDataPath, "/d"}})
    require.NoError(t, err)

    var doc map[string]any
    require.NoError(t, yaml.Unmarshal(out, &doc))
    assert.Equal(t, map[string]any{"repo": "/r"}, doc["path"])
    assert.Equal(t, "/d", doc["path.data"])
    assert.NotContains(t, string(out), "/x")
}

func TestEmptyTemplateYieldsOverridesOnly(t *testing.T) {
    for _, tmpl := range [][]byte{nil, []byte(""), []byte("~\n"), []byte("# only a comment\n")} {
        out, err := Document(tmpl, nil, []Override{{KeyDataPath, "/d"}})
        require.NoError(t, err)
        assert.Equal(t, []kv{{"path.data", "/d"}}, pairs(t, out))
    }
}

func TestUnparsableOrNonMappingTemplate(t *testing.T) {
    _, err := Document([]byte("a: [unclosed\n"), nil, nil)
    assert.Error(t, err)
    _, err = Document([]byte("- a\n- b\n"), nil, nil)
    assert.Error(t, err)
}

func TestRenderWritesFileAndWrapsConfigError(t *testing.T) {
    dir := t.TempDir()
    tmpl := filepath.Join(dir, "elasticsearch.yml")
    require.NoError(t, os.WriteFile(tmpl, []byte("foo: bar\n"), 0o644))
    outPath := filepath.Join(dir, "home", "config", "elasticsearch.yml")
    r := &Renderer{}

    got, err := r.Render(tmpl, outPath, []Override{{KeyNodeName, "n1"}})
    require.NoError(t, err)
    assert.Equal(t, outPath, got)
    data, err := os.ReadFile(outPath)
    require.NoError(t, err)
    assert.Equal(t, []kv{{"foo", "bar"}, {"node.name", "n1"}}, pairs(t, data))

    require.NoError(t, os.WriteFile(tmpl, []byte("- not\n- a map\n"), 0o644))
    _, err = r.Render(tmpl, outPath, nil)
    var ce *ConfigError
    require.ErrorAs(t, err, &ce)
    assert.Equal(t, tmpl, ce.Path)
}

func TestRenderMissingTemplateIsAccepted(t *testing.T) {
    dir := t.TempDir()
    outPath := filepath.Join(dir, "out.yml")
    _, err := (&Renderer{}).Render(filepath.Join(dir, "absent.yml"), outPath, []Override{{KeyNodeName, "n1"}})
    require.NoError(t, err)
    data, _ := os.ReadFile(outPath)
    assert.Equal(t, []kv{{"node.name", "n1"}}, pairs(t, data))
}

func TestPatchMemoryFlags(t *testing.T) {
    p := filepath.Join(t.TempDir(), "jvm.options")
    require.NoError(t, os.WriteFile(p, []byte("## heap\n-Xms1g\n  -Xmx1g\n-XX:+UseG1GC\n# -Xms2g\n"), 0o644))
    require.NoError(t, PatchMemoryFlags(p, nil))
    b, _ := os.ReadFile(p)
    want := "## heap\n# -Xms1g\n  # -Xmx1g\n-XX:+UseG1GC\n# -Xms2g\n"
    assert.Equal(t, want, string(b))

    require.NoError(t, PatchMemoryFlags(p, nil))
    b, _ = os.ReadFile(p)
    assert.Equal(t, want, string(b))

    assert.NoError(t, PatchMemoryFlags(filepath.Join(t.TempDir(), "missing"), nil))
}
