package logutil

import (
    "bytes"
    "encoding/json"
    "fmt"
    "io"
    "log"
    "os"
    "strings"
    "sync"
    "sync/atomic"
    "time"
)

// Levels accepted by Logf and LineWriter.
const (
    LevelInfo  = "info"
    LevelWarn  = "warn"
    LevelError = "error"
)

var jsonMode atomic.Bool

func init() {
    if os.Getenv("SEARCHNODE_LOG_JSON") == "1" || os.Getenv("SEARCHNODE_LOG_FORMAT") == "json" {
        jsonMode.Store(true)
    }
}

func SetJSON(enabled bool) { jsonMode.Store(enabled) }

func Infof(l *log.Logger, f string, args ...any)  { Logf(l, LevelInfo, f, args...) }
func Warnf(l *log.Logger, f string, args ...any)  { Logf(l, LevelWarn, f, args...) }
func Errorf(l *log.Logger, f string, args ...any) { Logf(l, LevelError, f, args...) }

// Logf writes one record at the given level. Unknown levels are logged as errors.
func Logf(l *log.Logger, level, f string, args ...any) {
    if l == nil { l = log.Default() }
    msg := fmt.Sprintf(f, args...)
    if jsonMode.Load() {
        evt := map[string]any{
            "ts":    time.Now().UTC().Format(time.RFC3339Nano),
            "level": level,
            "msg":   msg,
        }
        b, _ := json.Marshal(evt)
        l.Println(string(b))
        return
    }
    switch level {
    case LevelInfo:
        l.Print("INFO " + msg)
    case LevelWarn:
        l.Print("WARN " + msg)
    default:
        l.Print("ERROR " + msg)
    }
}

// LineWriter returns a writer that emits one log record per complete line.
// A trailing partial line is flushed on Close. Safe for concurrent writers.
func LineWriter(l *log.Logger, level, prefix string) io.WriteCloser {
    return &lineWriter{l: l, level: level, prefix: prefix}
}

type lineWriter struct {
    mu     sync.Mutex
    l      *log.Logger
    level  string
    prefix string
    buf    bytes.Buffer
}

func (w *lineWriter) Write(p []byte) (int, error) {
    w.mu.Lock()
    defer w.mu.Unlock()
    w.buf.Write(p)
    for {
        i := bytes.IndexByte(w.buf.Bytes(), '\n')
        if i < 0 { break }
        line := string(w.buf.Next(i + 1))
        w.emit(line)
    }
    return len(p), nil
}

func (w *lineWriter) Close() error {
    w.mu.Lock()
    defer w.mu.Unlock()
    if w.buf.Len() > 0 {
        w.emit(w.buf.String())
        w.buf.Reset()
    }
    return nil
}

func (w *lineWriter) emit(line string) {
    line = strings.TrimRight(line, "\r\n")
    if strings.TrimSpace(line) == "" { return }
    Logf(w.l, w.level, "%s%s", w.prefix, line)
}
