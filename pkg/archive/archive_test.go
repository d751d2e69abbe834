package archive

import (
    "archive/zip"
    "context"
    "os"
    "path/filepath"
    "sync"
    "testing"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func writeZip(t *testing.T, path string, files map[string]string) {
    t.Helper()
    f, err := os.Create(path)
    require.NoError(t, err)
    zw := zip.NewWriter(f)
    for name, body := range files {
        w, err := zw.Create(name)
        require.NoError(t, err)
        _, err = w.Write([]byte(body))
        require.NoError(t, err)
    }
    require.NoError(t, zw.Close())
    require.NoError(t, f.Close())
}

func TestExtract(t *testing.T) {
    dir := t.TempDir()
    src := filepath.Join(dir, "bundle.zip")
    writeZip(t, src, map[string]string{"es/bin/run": "#!/bin/sh", "es/config/jvm.options": "-Xms1g"})
    dst := filepath.Join(dir, "install")
    require.NoError(t, Extract(src, dst))
    b, err := os.ReadFile(filepath.Join(dst, "es", "config", "jvm.options"))
    require.NoError(t, err)
    assert.Equal(t, "-Xms1g", string(b))
}

func TestExtractRejectsTraversal(t *testing.T) {
    dir := t.TempDir()
    src := filepath.Join(dir, "evil.zip")
    writeZip(t, src, map[string]string{"../outside.txt": "x"})
    err := Extract(src, filepath.Join(dir, "dst"))
    assert.Error(t, err)
    assert.NoFileExists(t, filepath.Join(dir, "outside.txt"))
}

func TestExtractCleanResetsDirectory(t *testing.T) {
    dir := t.TempDir()
    src := filepath.Join(dir, "b.zip")
    writeZip(t, src, map[string]string{"es/new.txt": "new"})
    install := filepath.Join(dir, "install")
    require.NoError(t, os.MkdirAll(filepath.Join(install, "es"), 0o755))
    require.NoError(t, os.WriteFile(filepath.Join(install, "es", "stale.txt"), nil, 0o644))
    require.NoError(t, ExtractClean(src, install, filepath.Join(install, "es")))
    assert.NoFileExists(t, filepath.Join(install, "es", "stale.txt"))
    assert.FileExists(t, filepath.Join(install, "es", "new.txt"))
}

func TestGlobAndStem(t *testing.T) {
    dir := t.TempDir()
    for _, n := range []string{"a.zip", "b.ZIP", "c.txt"} {
        require.NoError(t, os.WriteFile(filepath.Join(dir, n), nil, 0o644))
    }
    got, err := Glob(dir)
    require.NoError(t, err)
    assert.Len(t, got, 2)
    assert.Equal(t, "analysis-icu", Stem("/tmp/analysis-icu.zip"))

    none, err := Glob(filepath.Join(dir, "missing"))
    require.NoError(t, err)
    assert.Empty(t, none)
}

func TestExtractEachAttemptsAllAndAggregates(t *testing.T) {
    dir := t.TempDir()
    good1 := filepath.Join(dir, "one.zip")
    good2 := filepath.Join(dir, "two.zip")
    bad := filepath.Join(dir, "bad.zip")
    writeZip(t, good1, map[string]string{"plugin.properties": "1"})
    writeZip(t, good2, map[string]string{"plugin.properties": "2"})
    require.NoError(t, os.WriteFile(bad, []byte("not a zip"), 0o644))

    root := filepath.Join(dir, "plugins")
    var mu sync.Mutex
    seen := map[string]error{}
    err := ExtractEach(context.Background(), root, []string{good1, bad, good2}, func(a string, err error) {
        mu.Lock(); seen[Stem(a)] = err; mu.Unlock()
    })
    require.Error(t, err)
    assert.Len(t, seen, 3)
    assert.NoError(t, seen["one"])
    assert.NoError(t, seen["two"])
    assert.Error(t, seen["bad"])
    assert.FileExists(t, filepath.Join(root, "one", "plugin.properties"))
    assert.FileExists(t, filepath.Join(root, "two", "plugin.properties"))
}
