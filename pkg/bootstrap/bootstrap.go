// Package bootstrap assembles a node.Service from config.Settings.
// Applications embed the agent by loading Settings and calling Build, then
// driving the returned service through OnStart/Run/OnStop.
package bootstrap

import (
    "fmt"
    "log"

    "github.com/amirimatin/go-searchnode/pkg/artifact"
    "github.com/amirimatin/go-searchnode/pkg/clusterapi"
    "github.com/amirimatin/go-searchnode/pkg/config"
    "github.com/amirimatin/go-searchnode/pkg/discovery"
    dDNS "github.com/amirimatin/go-searchnode/pkg/discovery/dns"
    dFile "github.com/amirimatin/go-searchnode/pkg/discovery/file"
    "github.com/amirimatin/go-searchnode/pkg/discovery/gossip"
    dStatic "github.com/amirimatin/go-searchnode/pkg/discovery/static"
    "github.com/amirimatin/go-searchnode/pkg/node"
    "github.com/amirimatin/go-searchnode/pkg/plugins"
    "github.com/amirimatin/go-searchnode/pkg/provision"
    "github.com/amirimatin/go-searchnode/pkg/refresh"
    "github.com/amirimatin/go-searchnode/pkg/render"
    httpjson "github.com/amirimatin/go-searchnode/pkg/transport/httpjson"
)

// Build assembles a node.Service from s without starting it.
func Build(s *config.Settings, logger *log.Logger) (*node.Service, error) {
    if logger == nil { logger = log.Default() }

    pipe, err := Pipeline(s, logger)
    if err != nil { return nil, err }

    dir, err := Directory(s, logger)
    if err != nil { return nil, err }

    locator := provision.FirstLocator{provision.EnvLocator{}}
    if s.JavaHome != "" { locator = append(provision.FirstLocator{provision.StaticLocator(s.JavaHome)}, locator...) }

    opts := node.Options{
        NodeName:     s.NodeName,
        Endpoint:     s.EndpointName,
        Logger:       logger,
        Pipeline:     pipe,
        NamedPlugins: s.NamedPlugins(),
        Locator:      locator,
        Directory:    dir,
        BridgeAddr:   s.Bridge.Addr,
    }

    if s.Bootstrap.Enabled {
        client, err := ClusterClient(s)
        if err != nil { return nil, err }
        opts.Cluster = refresh.API{Client: client}
        opts.RefreshInterval = s.Bootstrap.Interval
    }

    if s.Mgmt.Addr != "" {
        srv := httpjson.NewServer(s.Mgmt.Addr, logger)
        srvTLS, err := s.Mgmt.TLS.Server()
        if err != nil { return nil, fmt.Errorf("bootstrap: management tls: %w", err) }
        if srvTLS != nil { srv.UseTLS(srvTLS) }
        opts.Mgmt = srv
    }
    return node.New(opts)
}

// Pipeline builds the provisioning pipeline for s: the bundle artifact, the
// plugin aggregator and the runtime config. The bridge address is filled in
// by the node once its listener is open.
func Pipeline(s *config.Settings, logger *log.Logger) (*provision.Pipeline, error) {
    if logger == nil { logger = log.Default() }

    var store artifact.BlobStore
    if s.Installer.DownloadType == config.DownloadStorage || s.Plugins.Container != "" {
        az, err := artifact.NewAzureStore(s.Storage.Account, s.Storage.Key, s.Storage.Endpoint)
        if err != nil { return nil, err }
        store = az
    }

    var src artifact.Source
    switch s.Installer.DownloadType {
    case config.DownloadStorage:
        src = &artifact.StorageSource{Store: store}
    default:
        src = artifact.NewWebSource(s.Installer.Timeout)
    }

    agg := plugins.NewAggregator(s.PluginArchiveDir(), logger)
    if s.Plugins.Container != "" { agg.Add(plugins.ContainerSource(store, s.Plugins.Container)) }

    return &provision.Pipeline{
        Bundle:          artifact.Artifact{Locator: s.Installer.URL, Name: s.Installer.Name, Source: src},
        Archives:        artifact.NewProvisioner(s.Dirs.Archive, logger),
        InstallRoot:     s.Dirs.Install,
        PackagedPlugins: s.PackagedPluginsDir(),
        Plugins:         agg,
        Renderer:        &render.Renderer{Logger: logger},
        Runtime: provision.RuntimeConfig{
            DataPath:           s.DataPath(),
            LogPath:            s.Dirs.Log,
            TempPath:           s.Dirs.Temp,
            NodeName:           s.NodeName,
            PluginStagingPath:  s.PluginArchiveDir(),
            ConfigTemplatePath: s.TemplatePath(),
            HeapMB:             provision.ComputeHeapMB(s.Emulated, s.HeapMB),
        },
        Logger: logger,
    }, nil
}

// Directory selects the membership directory for discovery.kind.
func Directory(s *config.Settings, logger *log.Logger) (discovery.Directory, error) {
    d := s.Discovery
    switch d.Kind {
    case config.DiscoveryDNS:
        return dDNS.New(dDNS.Options{Names: d.DNS.Names, Domain: d.DNS.Domain, Port: d.DNS.Port, Refresh: d.Refresh, Logger: logger}), nil
    case config.DiscoveryFile:
        return dFile.New(dFile.Options{Path: d.File.Path, Env: d.File.Env, Refresh: d.Refresh}), nil
    case config.DiscoveryGossip:
        eps := map[string]string{}
        if d.Gossip.Transport != "" { eps[s.EndpointName] = d.Gossip.Transport }
        g, err := gossip.New(gossip.Options{
            NodeID:    s.NodeName,
            Bind:      d.Gossip.Bind,
            Advertise: d.Gossip.Advertise,
            Endpoints: eps,
            Seeds:     d.Gossip.Seeds,
            Logger:    logger,
        })
        if err != nil { return nil, fmt.Errorf("bootstrap: discovery.gossip: %w", err) }
        return g, nil
    default:
        seeds, err := dStatic.Parse(d.Static)
        if err != nil { return nil, fmt.Errorf("bootstrap: discovery.static: %w", err) }
        return dStatic.New(seeds...), nil
    }
}

// ClusterClient returns the cluster API client for cluster.url.
func ClusterClient(s *config.Settings) (*clusterapi.Client, error) {
    c := clusterapi.NewClient(s.Cluster.URL, s.Cluster.Timeout)
    cliTLS, err := s.Cluster.TLS.Client()
    if err != nil { return nil, fmt.Errorf("bootstrap: cluster tls: %w", err) }
    if cliTLS != nil { c.UseTLS(cliTLS) }
    return c, nil
}
