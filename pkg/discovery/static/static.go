package static

import (
    "context"
    "strings"

    "github.com/amirimatin/go-searchnode/pkg/discovery"
)

type staticDirectory struct {
    instances []discovery.Instance
}

// Instances ignores endpoint: a static list describes a single endpoint.
func (s *staticDirectory) Instances(context.Context, string) ([]discovery.Instance, error) {
    return append([]discovery.Instance(nil), s.instances...), nil
}

// New returns a Directory that always returns the given instances.
func New(instances ...discovery.Instance) discovery.Directory {
    return &staticDirectory{instances: discovery.Normalize(instances)}
}

// Parse converts a comma-separated "id=host:port" list into instances.
func Parse(csv string) ([]discovery.Instance, error) {
    if strings.TrimSpace(csv) == "" { return nil, nil }
    var out []discovery.Instance
    for _, p := range strings.Split(csv, ",") {
        if strings.TrimSpace(p) == "" { continue }
        i, err := discovery.ParseInstance(p)
        if err != nil { return nil, err }
        out = append(out, i)
    }
    return out, nil
}
