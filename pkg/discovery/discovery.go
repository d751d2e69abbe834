// Package discovery lists the instances that make up a deployment endpoint.
// Variants live in subpackages: static, file, dns and gossip.
package discovery

import (
    "context"
    "fmt"
    "net"
    "sort"
    "strconv"
    "strings"
)

// Instance is one reachable node of an endpoint. The JSON form is what the
// runtime bridge serves to the search service.
type Instance struct {
    ID      string `json:"nodeName" yaml:"nodeName"`
    Address string `json:"ip" yaml:"ip"`
    Port    int    `json:"port" yaml:"port"`
}

func (i Instance) HostPort() string { return net.JoinHostPort(i.Address, strconv.Itoa(i.Port)) }

// Directory is the membership capability: every current instance of endpoint.
type Directory interface {
    Instances(ctx context.Context, endpoint string) ([]Instance, error)
}

// Func adapts a function to Directory.
type Func func(ctx context.Context, endpoint string) ([]Instance, error)

func (f Func) Instances(ctx context.Context, endpoint string) ([]Instance, error) { return f(ctx, endpoint) }

// ParseInstance accepts "id=host:port" or "host:port"; without an id the
// host is used.
func ParseInstance(s string) (Instance, error) {
    s = strings.TrimSpace(s)
    id, addr, ok := strings.Cut(s, "=")
    if !ok { addr, id = s, "" }
    host, portStr, err := net.SplitHostPort(strings.TrimSpace(addr))
    if err != nil { return Instance{}, fmt.Errorf("discovery: instance %q: %w", s, err) }
    port, err := strconv.Atoi(portStr)
    if err != nil || port <= 0 || port > 65535 { return Instance{}, fmt.Errorf("discovery: instance %q: invalid port", s) }
    id = strings.TrimSpace(id)
    if id == "" { id = host }
    return Instance{ID: id, Address: host, Port: port}, nil
}

// Normalize drops duplicates (same ID) and sorts by ID.
func Normalize(in []Instance) []Instance {
    seen := make(map[string]struct{}, len(in))
    out := make([]Instance, 0, len(in))
    for _, i := range in {
        if _, ok := seen[i.ID]; ok { continue }
        seen[i.ID] = struct{}{}
        out = append(out, i)
    }
    sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
    return out
}
