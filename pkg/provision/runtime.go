package provision

import (
    "context"
    "errors"
    "os"

    "github.com/pbnjay/memory"
)

// EmulatedHeapMB is the fixed heap used for local and emulated runs.
const EmulatedHeapMB = 250

// RuntimeConfig is computed once per node start and never mutated.
type RuntimeConfig struct {
    DataPath           string
    LogPath            string
    TempPath           string
    NodeName           string
    BridgeAddress      string
    PluginStagingPath  string
    ConfigTemplatePath string
    HeapMB             int
}

// ComputeHeapMB picks the service heap: emulated runs always get
// EmulatedHeapMB, otherwise an explicit override, otherwise half of physical
// memory. Zero means unknown and no heap flags should be passed.
func ComputeHeapMB(emulated bool, override int) int {
    if emulated { return EmulatedHeapMB }
    if override > 0 { return override }
    total := memory.TotalMemory()
    return int(total / (1 << 20) / 2)
}

// ErrRuntimeNotFound is returned when no Java runtime can be located.
var ErrRuntimeNotFound = errors.New("provision: java runtime not found")

// RuntimeLocator finds the Java home the service should run with.
type RuntimeLocator interface {
    JavaHome(ctx context.Context) (string, error)
}

// EnvLocator reads JAVA_HOME from the process environment.
type EnvLocator struct{}

func (EnvLocator) JavaHome(context.Context) (string, error) {
    if v := os.Getenv("JAVA_HOME"); v != "" { return v, nil }
    return "", ErrRuntimeNotFound
}

// StaticLocator returns a configured path.
type StaticLocator string

func (s StaticLocator) JavaHome(context.Context) (string, error) {
    if s == "" { return "", ErrRuntimeNotFound }
    return string(s), nil
}

// FirstLocator tries each locator in order.
type FirstLocator []RuntimeLocator

func (f FirstLocator) JavaHome(ctx context.Context) (string, error) {
    for _, l := range f {
        if l == nil { continue }
        if home, err := l.JavaHome(ctx); err == nil && home != "" { return home, nil }
    }
    return "", ErrRuntimeNotFound
}
