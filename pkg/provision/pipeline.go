// Package provision prepares the service installation: bundle download and
// extraction, packaged and aggregated plugins, rendered config and patched
// JVM options.
package provision

import (
    "context"
    "fmt"
    "log"
    "path/filepath"
    "sync/atomic"
    "time"

    "github.com/dustin/go-humanize"
    "golang.org/x/sync/errgroup"

    "github.com/amirimatin/go-searchnode/pkg/archive"
    "github.com/amirimatin/go-searchnode/pkg/artifact"
    "github.com/amirimatin/go-searchnode/pkg/internal/logutil"
    "github.com/amirimatin/go-searchnode/pkg/observability/metrics"
    "github.com/amirimatin/go-searchnode/pkg/observability/tracing"
    "github.com/amirimatin/go-searchnode/pkg/plugins"
    "github.com/amirimatin/go-searchnode/pkg/render"
)

// Stage names, used for metrics, spans and error messages.
const (
    StageDownload        = "download"
    StageExtract         = "extract"
    StagePackagedPlugins = "packaged_plugins"
    StageRender          = "render"
    StageMemoryFlags     = "memory_flags"
    StagePlugins         = "plugins"
)

// Pipeline runs the provisioning stages for one node. It is meant to run
// once per process; concurrent runs against the same roots are unsafe.
type Pipeline struct {
    Bundle      artifact.Artifact
    Archives    *artifact.Provisioner
    InstallRoot string
    // HomeDir is the top-level directory the bundle unpacks to; defaults to
    // the bundle name without extension.
    HomeDir         string
    PackagedPlugins string
    Plugins         *plugins.Aggregator
    Renderer        *render.Renderer
    Runtime         RuntimeConfig
    Logger          *log.Logger

    configured atomic.Bool
}

func (p *Pipeline) logger() *log.Logger {
    if p.Logger == nil { return log.Default() }
    return p.Logger
}

// Home is the extracted installation directory.
func (p *Pipeline) Home() string {
    dir := p.HomeDir
    if dir == "" { dir = archive.Stem(p.Bundle.Name) }
    return filepath.Join(p.InstallRoot, dir)
}

func (p *Pipeline) PluginRoot() string { return filepath.Join(p.Home(), "plugins") }

func (p *Pipeline) ConfigPath() string { return filepath.Join(p.Home(), "config", "elasticsearch.yml") }

func (p *Pipeline) JVMOptionsPath() string { return filepath.Join(p.Home(), "config", "jvm.options") }

// Executable is the service launcher inside Home.
func (p *Pipeline) Executable(windows bool) string {
    if windows { return filepath.Join(p.Home(), "bin", "elasticsearch.bat") }
    return filepath.Join(p.Home(), "bin", "elasticsearch")
}

// Configured reports whether EnsureConfigured has completed successfully.
func (p *Pipeline) Configured() bool { return p.configured.Load() }

// Overrides returns the runtime keys written into the rendered config.
func (p *Pipeline) Overrides() []render.Override {
    rc := p.Runtime
    out := []render.Override{
        {Key: render.KeyDataPath, Value: rc.DataPath},
        {Key: render.KeyLogsPath, Value: rc.LogPath},
        {Key: render.KeyNodeName, Value: rc.NodeName},
    }
    if rc.BridgeAddress != "" { out = append(out, render.Override{Key: render.KeyBridgeAddress, Value: rc.BridgeAddress}) }
    return out
}

// EnsureConfigured runs the bundle stages and plugin aggregation
// concurrently and joins them. Cancelling ctx aborts the join with the
// context error; in-flight downloads or extractions may still finish.
func (p *Pipeline) EnsureConfigured(ctx context.Context) error {
    start := time.Now()
    logutil.Infof(p.logger(), "provisioning %s into %s (heap %s)", p.Bundle.Name, p.Home(), humanize.IBytes(uint64(p.Runtime.HeapMB)<<20))

    var (
        packaged  = plugins.NewSet()
        collected = plugins.NewSet()
    )
    g, gctx := errgroup.WithContext(ctx)
    g.Go(func() error { return p.bundleStages(gctx, packaged) })
    if p.Plugins != nil {
        g.Go(func() error {
            set, err := p.Plugins.Collect(gctx)
            if err == nil { collected = set }
            return err
        })
    }
    joined := make(chan error, 1)
    go func() { joined <- g.Wait() }()
    select {
    case <-ctx.Done():
        return fmt.Errorf("provision: configuration aborted: %w", ctx.Err())
    case err := <-joined:
        if err != nil { return err }
    }

    if p.Plugins != nil {
        err := p.stage(ctx, StagePlugins, func(ctx context.Context) error {
            return p.Plugins.Extract(ctx, p.PluginRoot(), collected, packaged)
        })
        if err != nil { return err }
    }
    p.configured.Store(true)
    logutil.Infof(p.logger(), "node configured in %s", time.Since(start).Round(time.Millisecond))
    return nil
}

func (p *Pipeline) bundleStages(ctx context.Context, packaged *plugins.Set) error {
    var archivePath string
    err := p.stage(ctx, StageDownload, func(ctx context.Context) error {
        var err error
        archivePath, err = p.Archives.EnsureInstalled(ctx, p.Bundle)
        return err
    })
    if err != nil { return err }

    err = p.stage(ctx, StageExtract, func(context.Context) error {
        return archive.ExtractClean(archivePath, p.InstallRoot, p.Home())
    })
    if err != nil { return err }

    err = p.stage(ctx, StagePackagedPlugins, func(ctx context.Context) error {
        found, err := archive.Glob(p.PackagedPlugins)
        if err != nil { return err }
        for _, a := range found { packaged.AddPath(a) }
        return plugins.ExtractAll(ctx, p.PluginRoot(), found, p.logger())
    })
    if err != nil { return err }

    err = p.stage(ctx, StageRender, func(context.Context) error {
        _, err := p.renderer().Render(p.Runtime.ConfigTemplatePath, p.ConfigPath(), p.Overrides())
        return err
    })
    if err != nil { return err }

    return p.stage(ctx, StageMemoryFlags, func(context.Context) error {
        return render.PatchMemoryFlags(p.JVMOptionsPath(), p.logger())
    })
}

func (p *Pipeline) renderer() *render.Renderer {
    if p.Renderer != nil { return p.Renderer }
    return &render.Renderer{Logger: p.logger()}
}

func (p *Pipeline) stage(ctx context.Context, name string, fn func(context.Context) error) error {
    start := time.Now()
    ctx, end := tracing.StartSpan(ctx, "provision."+name)
    err := fn(ctx)
    end(err)
    metrics.ProvisionStageSeconds.WithLabelValues(name).Observe(time.Since(start).Seconds())
    if err != nil {
        logutil.Errorf(p.logger(), "provisioning stage %s failed: %v", name, err)
        return fmt.Errorf("provision: %s: %w", name, err)
    }
    return nil
}
