package logutil

import (
    "bytes"
    "encoding/json"
    "log"
    "strings"
    "testing"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func TestLevelPrefixes(t *testing.T) {
    SetJSON(false)
    var buf bytes.Buffer
    l := log.New(&buf, "", 0)
    Infof(l, "hello %d", 1)
    Warnf(l, "careful")
    Errorf(l, "boom")
    assert.Equal(t, "INFO hello 1\nWARN careful\nERROR boom\n", buf.String())
}

func TestJSONMode(t *testing.T) {
    SetJSON(true)
    defer SetJSON(false)
    var buf bytes.Buffer
    Warnf(log.New(&buf, "", 0), "disk %s", "full")
    var evt map[string]any
    require.NoError(t, json.Unmarshal(buf.Bytes(), &evt))
    assert.Equal(t, "warn", evt["level"])
    assert.Equal(t, "disk full", evt["msg"])
}

func TestLineWriterSplitsAndFlushes(t *testing.T) {
    SetJSON(false)
    var buf bytes.Buffer
    w := LineWriter(log.New(&buf, "", 0), LevelInfo, "es: ")
    _, _ = w.Write([]byte("first\nsec"))
    _, _ = w.Write([]byte("ond\r\n\n"))
    _, _ = w.Write([]byte("tail"))
    assert.Equal(t, "INFO es: first\nINFO es: second\n", buf.String())
    require.NoError(t, w.Close())
    lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
    assert.Equal(t, "INFO es: tail", lines[len(lines)-1])
}
