package plugins

import (
    "context"
    "log"
    "path/filepath"

    "go.opentelemetry.io/otel/attribute"
    "golang.org/x/sync/errgroup"

    "github.com/amirimatin/go-searchnode/pkg/archive"
    "github.com/amirimatin/go-searchnode/pkg/artifact"
    "github.com/amirimatin/go-searchnode/pkg/internal/logutil"
    "github.com/amirimatin/go-searchnode/pkg/observability/metrics"
    "github.com/amirimatin/go-searchnode/pkg/observability/tracing"
)

// Aggregator collects plugin archives from every registered source into
// ArchiveRoot.
type Aggregator struct {
    Provisioner *artifact.Provisioner
    Logger      *log.Logger

    sources []Source
}

// NewAggregator stores downloaded archives under archiveRoot.
func NewAggregator(archiveRoot string, logger *log.Logger) *Aggregator {
    if logger == nil { logger = log.Default() }
    return &Aggregator{Provisioner: artifact.NewProvisioner(archiveRoot, logger), Logger: logger}
}

// Add registers sources. Not safe to call concurrently with Collect.
func (a *Aggregator) Add(src ...Source) { a.sources = append(a.sources, src...) }

// Collect evaluates all sources concurrently and ensures every discovered
// archive is present locally, fetching missing ones concurrently. It returns
// only after every enumeration and every download has finished.
func (a *Aggregator) Collect(ctx context.Context) (*Set, error) {
    ctx, end := tracing.StartSpan(ctx, "plugins.aggregate", attribute.Int("sources", len(a.sources)))
    set := NewSet()
    var discover, fetch errgroup.Group
    for _, src := range a.sources {
        src := src
        discover.Go(func() error {
            items, err := src(ctx)
            if err != nil { return err }
            for _, it := range items {
                it := it
                if it.Name == "" || !set.Add(it.Name, a.Provisioner.Path(it)) { continue }
                fetch.Go(func() error {
                    _, err := a.Provisioner.EnsureInstalled(ctx, it)
                    return err
                })
            }
            return nil
        })
    }
    derr := discover.Wait()
    ferr := fetch.Wait()
    err := derr
    if err == nil { err = ferr }
    end(err)
    if err != nil { return nil, err }
    logutil.Infof(a.Logger, "collected %d plugin archives from %d sources", set.Len(), len(a.sources))
    return set, nil
}

// Extract unpacks each archive of set into root/<stem>, skipping names in
// exclude. Every extraction is attempted; failures are returned together.
func (a *Aggregator) Extract(ctx context.Context, root string, set *Set, exclude *Set) error {
    var todo []string
    for _, p := range set.Paths() {
        if exclude != nil && exclude.Has(filepath.Base(p)) { continue }
        todo = append(todo, p)
    }
    return ExtractAll(ctx, root, todo, a.Logger)
}

// ExtractAll unpacks archives into root, one task per archive.
func ExtractAll(ctx context.Context, root string, archives []string, logger *log.Logger) error {
    return archive.ExtractEach(ctx, root, archives, func(path string, err error) {
        metrics.PluginsExtracted.WithLabelValues(metrics.Result(err)).Inc()
        if err != nil {
            logutil.Errorf(logger, "plugin %s: %v", filepath.Base(path), err)
            return
        }
        logutil.Infof(logger, "extracted plugin %s", archive.Stem(path))
    })
}
