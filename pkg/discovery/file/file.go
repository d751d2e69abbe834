package file

import (
    "bufio"
    "bytes"
    "context"
    "fmt"
    "os"
    "path/filepath"
    "strings"
    "sync"
    "time"

    "gopkg.in/yaml.v3"

    "github.com/amirimatin/go-searchnode/pkg/discovery"
)

// Options configures file/ENV-based discovery.
type Options struct {
    // Path to a file (or glob) listing instances. Plain files hold one
    // "id=host:port" per line or comma-separated; .yml/.yaml files hold
    // either a list of {nodeName, ip, port} or a map of endpoint to list.
    Path string
    // Env overrides file when non-empty (comma-separated instances).
    Env string
    // Refresh controls cache staleness; if zero, defaults to 5s.
    Refresh time.Duration
}

// table maps endpoint to instances; the "" key holds unscoped entries.
type table map[string][]discovery.Instance

func (t table) lookup(endpoint string) []discovery.Instance {
    if v, ok := t[endpoint]; ok && endpoint != "" { return v }
    return t[""]
}

type impl struct {
    opts  Options
    mu    sync.Mutex
    last  time.Time
    mtime time.Time
    cache table
}

func New(opts Options) discovery.Directory {
    if opts.Refresh <= 0 { opts.Refresh = 5 * time.Second }
    return &impl{opts: opts}
}

func (i *impl) Instances(_ context.Context, endpoint string) ([]discovery.Instance, error) {
    i.mu.Lock(); defer i.mu.Unlock()
    // ENV takes precedence
    if v := strings.TrimSpace(os.Getenv(i.opts.Env)); i.opts.Env != "" && v != "" {
        list, err := parseLines([]byte(v))
        if err != nil { return nil, err }
        return discovery.Normalize(list), nil
    }
    if i.opts.Path == "" { return nil, nil }
    now := time.Now()
    if stat, err := os.Stat(i.opts.Path); err == nil {
        if i.cache == nil || stat.ModTime().After(i.mtime) || now.Sub(i.last) >= i.opts.Refresh {
            t, err := loadFile(i.opts.Path)
            if err != nil { return nil, err }
            i.cache, i.last, i.mtime = t, now, stat.ModTime()
        }
        return discovery.Normalize(i.cache.lookup(endpoint)), nil
    }
    // try glob
    matches, _ := filepath.Glob(i.opts.Path)
    if len(matches) == 0 { return discovery.Normalize(i.cache.lookup(endpoint)), nil }
    merged := table{}
    for _, m := range matches {
        t, err := loadFile(m)
        if err != nil { return nil, err }
        for k, v := range t { merged[k] = append(merged[k], v...) }
    }
    i.cache, i.last = merged, now
    return discovery.Normalize(merged.lookup(endpoint)), nil
}

func loadFile(path string) (table, error) {
    data, err := os.ReadFile(path)
    if err != nil { return nil, err }
    switch strings.ToLower(filepath.Ext(path)) {
    case ".yml", ".yaml":
        return parseYAML(data)
    }
    list, err := parseLines(data)
    if err != nil { return nil, err }
    return table{"": list}, nil
}

func parseYAML(data []byte) (table, error) {
    var doc yaml.Node
    if err := yaml.Unmarshal(data, &doc); err != nil { return nil, err }
    if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 { return table{}, nil }
    root := doc.Content[0]
    switch root.Kind {
    case yaml.SequenceNode:
        var list []discovery.Instance
        if err := root.Decode(&list); err != nil { return nil, err }
        return table{"": list}, nil
    case yaml.MappingNode:
        var m map[string][]discovery.Instance
        if err := root.Decode(&m); err != nil { return nil, err }
        return table(m), nil
    }
    return nil, fmt.Errorf("discovery: unsupported YAML layout")
}

func parseLines(data []byte) ([]discovery.Instance, error) {
    var out []discovery.Instance
    s := bufio.NewScanner(bytes.NewReader(data))
    for s.Scan() {
        line := strings.TrimSpace(s.Text())
        if line == "" || strings.HasPrefix(line, "#") { continue }
        // allow comma-separated per line
        for _, p := range strings.Split(line, ",") {
            if strings.TrimSpace(p) == "" { continue }
            in, err := discovery.ParseInstance(p)
            if err != nil { return nil, err }
            out = append(out, in)
        }
    }
    return out, s.Err()
}
