// Package gossip is a memberlist-backed Directory: every agent gossips the
// endpoints it serves and any member can list the instances of an endpoint.
package gossip

import (
    "context"
    "encoding/json"
    "fmt"
    "log"
    "net"
    "sort"
    "strconv"
    "sync"
    "time"

    "github.com/hashicorp/memberlist"

    "github.com/amirimatin/go-searchnode/pkg/discovery"
    "github.com/amirimatin/go-searchnode/pkg/internal/logutil"
)

// Options configures the memberlist-based directory.
type Options struct {
    // NodeID is the unique node identifier; it becomes Instance.ID.
    NodeID string

    // Bind is the gossip bind address in host:port form (e.g. ":7946").
    Bind string

    // Advertise is the address (host:port) peers use to reach this node.
    // If empty, memberlist derives it from Bind.
    Advertise string

    // Endpoints maps endpoint name to the host:port this node serves it on.
    Endpoints map[string]string

    // Seeds are joined after start.
    Seeds []string

    // Logger is optional. If nil, log.Default() is used.
    Logger *log.Logger

    // Tuning parameters (optional). Zero means use defaults.
    ProbeInterval time.Duration
    ProbeTimeout  time.Duration
    SuspicionMult int
}

// Directory implements discovery.Directory over HashiCorp memberlist.
type Directory struct {
    mu     sync.RWMutex
    opts   Options
    ml     *memberlist.Memberlist
    closed bool
}

var _ discovery.Directory = (*Directory)(nil)

func New(opts Options) (*Directory, error) {
    if opts.NodeID == "" { return nil, fmt.Errorf("gossip: empty NodeID") }
    if opts.Bind == "" { return nil, fmt.Errorf("gossip: empty Bind address") }
    for ep, hp := range opts.Endpoints {
        if _, _, err := net.SplitHostPort(hp); err != nil { return nil, fmt.Errorf("gossip: endpoint %s: %w", ep, err) }
    }
    if opts.Logger == nil { opts.Logger = log.Default() }
    return &Directory{opts: opts}, nil
}

// Start creates the memberlist instance and joins the configured seeds.
// The directory stops when ctx is done.
func (d *Directory) Start(ctx context.Context) error {
    d.mu.Lock()
    defer d.mu.Unlock()
    if d.ml != nil { return nil }

    cfg := memberlist.DefaultLANConfig()
    cfg.Name = d.opts.NodeID
    host, port, err := splitPort(d.opts.Bind)
    if err != nil { return fmt.Errorf("gossip: invalid bind address %q: %w", d.opts.Bind, err) }
    cfg.BindAddr = host
    cfg.BindPort = port
    if d.opts.Advertise != "" {
        ahost, aport, err := splitPort(d.opts.Advertise)
        if err != nil { return fmt.Errorf("gossip: invalid advertise address %q: %w", d.opts.Advertise, err) }
        cfg.AdvertiseAddr = ahost
        cfg.AdvertisePort = aport
    }
    if d.opts.ProbeInterval > 0 { cfg.ProbeInterval = d.opts.ProbeInterval }
    if d.opts.ProbeTimeout > 0 { cfg.ProbeTimeout = d.opts.ProbeTimeout }
    if d.opts.SuspicionMult > 0 { cfg.SuspicionMult = d.opts.SuspicionMult }
    cfg.LogOutput = logutil.LineWriter(d.opts.Logger, logutil.LevelInfo, "gossip: ")

    meta, err := json.Marshal(d.opts.Endpoints)
    if err != nil { return err }
    if len(meta) > memberlist.MetaMaxSize { return fmt.Errorf("gossip: endpoint metadata exceeds %d bytes", memberlist.MetaMaxSize) }
    cfg.Delegate = &nodeDelegate{meta: meta}

    ml, err := memberlist.Create(cfg)
    if err != nil { return err }
    d.ml = ml
    if len(d.opts.Seeds) > 0 {
        if n, err := ml.Join(d.opts.Seeds); err != nil {
            logutil.Warnf(d.opts.Logger, "gossip: joined %d of %d seeds: %v", n, len(d.opts.Seeds), err)
        }
    }
    go func() {
        <-ctx.Done()
        _ = d.Stop()
    }()
    return nil
}

func (d *Directory) Join(seeds []string) error {
    d.mu.RLock()
    ml := d.ml
    d.mu.RUnlock()
    if ml == nil { return fmt.Errorf("gossip: not started") }
    if len(seeds) == 0 { return nil }
    _, err := ml.Join(seeds)
    return err
}

// LocalAddr is the gossip address of this node.
func (d *Directory) LocalAddr() string {
    d.mu.RLock()
    defer d.mu.RUnlock()
    if d.ml == nil { return "" }
    n := d.ml.LocalNode()
    return net.JoinHostPort(n.Addr.String(), strconv.Itoa(int(n.Port)))
}

// Members returns the IDs of all live members, sorted.
func (d *Directory) Members() []string {
    d.mu.RLock()
    defer d.mu.RUnlock()
    if d.ml == nil { return nil }
    var out []string
    for _, n := range d.ml.Members() { out = append(out, n.Name) }
    sort.Strings(out)
    return out
}

// Instances lists the members that advertise endpoint.
func (d *Directory) Instances(_ context.Context, endpoint string) ([]discovery.Instance, error) {
    d.mu.RLock()
    defer d.mu.RUnlock()
    if d.ml == nil { return nil, fmt.Errorf("gossip: not started") }
    var out []discovery.Instance
    for _, n := range d.ml.Members() {
        eps := map[string]string{}
        if len(n.Meta) > 0 { _ = json.Unmarshal(n.Meta, &eps) }
        hp, ok := eps[endpoint]
        if !ok { continue }
        host, port, err := splitPort(hp)
        if err != nil { continue }
        if host == "" || host == "0.0.0.0" || host == "::" { host = n.Addr.String() }
        out = append(out, discovery.Instance{ID: n.Name, Address: host, Port: port})
    }
    return discovery.Normalize(out), nil
}

func (d *Directory) Leave() error {
    d.mu.RLock()
    ml := d.ml
    d.mu.RUnlock()
    if ml == nil { return nil }
    // best-effort: leave and give some time to broadcast
    _ = ml.Leave(time.Second)
    return nil
}

func (d *Directory) Stop() error {
    d.mu.Lock()
    defer d.mu.Unlock()
    if d.closed { return nil }
    d.closed = true
    if d.ml != nil {
        _ = d.ml.Shutdown()
        d.ml = nil
    }
    return nil
}

// HealthScore exposes memberlist's awareness score, -1 when not started.
func (d *Directory) HealthScore() int {
    d.mu.RLock()
    defer d.mu.RUnlock()
    if d.ml == nil { return -1 }
    return d.ml.GetHealthScore()
}

func splitPort(hp string) (string, int, error) {
    host, ps, err := net.SplitHostPort(hp)
    if err != nil { return "", 0, err }
    p, err := strconv.Atoi(ps)
    if err != nil || p < 0 || p > 65535 { return "", 0, fmt.Errorf("invalid port: %q", ps) }
    return host, p, nil
}

// nodeDelegate propagates the endpoint map as node metadata.
type nodeDelegate struct{ meta []byte }

func (d *nodeDelegate) NodeMeta(limit int) []byte {
    if len(d.meta) <= limit { return d.meta }
    return nil
}

func (d *nodeDelegate) NotifyMsg([]byte)                       {}
func (d *nodeDelegate) GetBroadcasts(int, int) [][]byte        { return nil }
func (d *nodeDelegate) LocalState(join bool) []byte            { return nil }
func (d *nodeDelegate) MergeRemoteState(buf []byte, join bool) {}
