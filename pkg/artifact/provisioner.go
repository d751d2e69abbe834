package artifact

import (
    "context"
    "log"
    "os"
    "path/filepath"

    "github.com/dustin/go-humanize"

    "github.com/amirimatin/go-searchnode/pkg/internal/logutil"
    "github.com/amirimatin/go-searchnode/pkg/observability/metrics"
)

// Provisioner is the idempotent "ensure installed" primitive: an artifact is
// fetched into Root only if no file with its name exists there yet.
type Provisioner struct {
    Root   string
    Logger *log.Logger
}

func NewProvisioner(root string, logger *log.Logger) *Provisioner {
    if logger == nil { logger = log.Default() }
    return &Provisioner{Root: root, Logger: logger}
}

// Path returns the local path an artifact is materialised at.
func (p *Provisioner) Path(a Artifact) string { return filepath.Join(p.Root, a.Name) }

// EnsureInstalled makes sure a readable copy of a exists under Root and
// returns its path. A present file is never re-fetched.
func (p *Provisioner) EnsureInstalled(ctx context.Context, a Artifact) (string, error) {
    path := p.Path(a)
    if st, err := os.Stat(path); err == nil && st.Mode().IsRegular() {
        return path, nil
    }
    kind := "none"
    if a.Source != nil { kind = a.Source.Kind() }
    logutil.Infof(p.Logger, "%s not found, downloading from %s (%s)", path, a.Locator, kind)
    n, err := FetchTo(ctx, a, path)
    metrics.ArtifactDownloads.WithLabelValues(kind, metrics.Result(err)).Inc()
    if err != nil {
        logutil.Errorf(p.Logger, "download of %s failed: %v", a.Name, err)
        return "", err
    }
    logutil.Infof(p.Logger, "%s download complete (%s)", path, humanize.Bytes(uint64(n)))
    return path, nil
}
