package dns

import (
    "context"
    "log"
    "net"
    "sort"
    "strings"
    "sync"
    "time"

    "github.com/amirimatin/go-searchnode/pkg/discovery"
    "github.com/amirimatin/go-searchnode/pkg/internal/logutil"
)

// Options configures DNS-based discovery.
type Options struct {
    // Names are SRV records or hostnames to resolve.
    // Examples: "_transport._tcp.search.internal" (SRV) or "es0.search.internal" (A/AAAA).
    Names []string

    // Domain, when set, adds the SRV name _<endpoint>._tcp.<Domain> for the
    // requested endpoint.
    Domain string

    // Port used when resolving A/AAAA records (no port info in DNS answer).
    Port int

    // Refresh controls cache staleness; if zero, defaults to 5s.
    Refresh time.Duration

    // Resolver optionally overrides the DNS resolver used.
    Resolver *net.Resolver

    // Logger optional.
    Logger *log.Logger
}

type entry struct {
    at   time.Time
    list []discovery.Instance
}

type impl struct {
    opts  Options
    mu    sync.Mutex
    cache map[string]entry
}

// New returns a DNS-backed directory that resolves SRV and A/AAAA names
// and caches results per endpoint for the Refresh duration.
func New(opts Options) discovery.Directory {
    if opts.Refresh <= 0 { opts.Refresh = 5 * time.Second }
    if opts.Port == 0 { opts.Port = 9300 }
    if opts.Logger == nil { opts.Logger = log.Default() }
    return &impl{opts: opts, cache: map[string]entry{}}
}

func (d *impl) Instances(ctx context.Context, endpoint string) ([]discovery.Instance, error) {
    d.mu.Lock()
    defer d.mu.Unlock()
    if e, ok := d.cache[endpoint]; ok && time.Since(e.at) < d.opts.Refresh && len(e.list) > 0 {
        return append([]discovery.Instance(nil), e.list...), nil
    }
    names := append([]string(nil), d.opts.Names...)
    if d.opts.Domain != "" && endpoint != "" {
        names = append(names, "_"+strings.ToLower(endpoint)+"._tcp."+d.opts.Domain)
    }
    res := d.resolveAll(ctx, names)
    d.cache[endpoint] = entry{at: time.Now(), list: res}
    return append([]discovery.Instance(nil), res...), nil
}

func (d *impl) resolveAll(ctx context.Context, names []string) []discovery.Instance {
    seen := make(map[string]struct{})
    var out []discovery.Instance
    add := func(in discovery.Instance) {
        key := in.HostPort()
        if _, ok := seen[key]; ok { return }
        seen[key] = struct{}{}
        out = append(out, in)
    }
    for _, name := range names {
        name = strings.TrimSpace(name)
        if name == "" { continue }
        // If already host:port, take as-is
        if strings.Contains(name, ":") && !strings.HasPrefix(name, "_") {
            if in, err := discovery.ParseInstance(name); err == nil { add(in) }
            continue
        }
        // Try SRV first if pattern matches
        if strings.HasPrefix(name, "_") && strings.Contains(name, "._") {
            if recs := d.lookupSRV(ctx, name); len(recs) > 0 {
                for _, in := range recs { add(in) }
                continue
            }
        }
        // Fallback to A/AAAA
        for _, in := range d.lookupHost(ctx, name, d.opts.Port) { add(in) }
    }
    sort.Slice(out, func(a, b int) bool { return out[a].HostPort() < out[b].HostPort() })
    return out
}

func (d *impl) resolver() *net.Resolver {
    if d.opts.Resolver != nil { return d.opts.Resolver }
    return net.DefaultResolver
}

func (d *impl) lookupSRV(ctx context.Context, fqdn string) []discovery.Instance {
    svc, proto, domain := parseSRVName(fqdn)
    if svc == "" || proto == "" || domain == "" { return nil }
    _, addrs, err := d.resolver().LookupSRV(ctx, svc, proto, domain)
    if err != nil {
        logutil.Warnf(d.opts.Logger, "dns: SRV %s: %v", fqdn, err)
        return nil
    }
    var out []discovery.Instance
    for _, a := range addrs {
        host := strings.TrimSuffix(a.Target, ".")
        id := host
        if i := strings.IndexByte(host, '.'); i > 0 { id = host[:i] }
        out = append(out, discovery.Instance{ID: id, Address: host, Port: int(a.Port)})
    }
    return out
}

func (d *impl) lookupHost(ctx context.Context, host string, port int) []discovery.Instance {
    ips, err := d.resolver().LookupHost(ctx, host)
    if err != nil {
        logutil.Warnf(d.opts.Logger, "dns: lookup %s: %v", host, err)
        return nil
    }
    out := make([]discovery.Instance, 0, len(ips))
    for _, ip := range ips {
        out = append(out, discovery.Instance{ID: ip, Address: ip, Port: port})
    }
    return out
}

func parseSRVName(fqdn string) (service, proto, name string) {
    // Expect pattern: _service._proto.name
    parts := strings.SplitN(fqdn, ".", 3)
    if len(parts) < 3 { return "", "", "" }
    s := strings.TrimPrefix(parts[0], "_")
    p := strings.TrimPrefix(parts[1], "_")
    return s, p, parts[2]
}
