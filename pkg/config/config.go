// Package config loads the node settings surface from an optional YAML file
// and SEARCHNODE_* environment variables.
package config

import (
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "strings"
    "time"

    "github.com/spf13/viper"

    "github.com/amirimatin/go-searchnode/pkg/security/tlsconfig"
)

// EnvPrefix is prepended to every environment override (SEARCHNODE_NODE_NAME, ...).
const EnvPrefix = "SEARCHNODE"

// Download types.
const (
    DownloadWeb     = "web"
    DownloadStorage = "storage"
)

// Discovery kinds.
const (
    DiscoveryStatic = "static"
    DiscoveryFile   = "file"
    DiscoveryDNS    = "dns"
    DiscoveryGossip = "gossip"
)

// Settings is read once at startup and treated as read-only afterwards.
type Settings struct {
    NodeName     string `mapstructure:"node_name"`
    EndpointName string `mapstructure:"endpoint_name"`
    Emulated     bool   `mapstructure:"emulated"`
    HeapMB       int    `mapstructure:"heap_mb"`
    JavaHome     string `mapstructure:"java_home"`
    Trace        bool   `mapstructure:"trace"`

    Installer InstallerConfig `mapstructure:"installer"`
    Storage   StorageConfig   `mapstructure:"storage"`
    Plugins   PluginsConfig   `mapstructure:"plugins"`
    Data      DataConfig      `mapstructure:"data"`
    Bootstrap BootstrapConfig `mapstructure:"bootstrap"`
    Dirs      DirsConfig      `mapstructure:"dirs"`
    Cluster   ClusterConfig   `mapstructure:"cluster"`
    Mgmt      MgmtConfig      `mapstructure:"mgmt"`
    Bridge    BridgeConfig    `mapstructure:"bridge"`
    Discovery DiscoveryConfig `mapstructure:"discovery"`
    Log       LogConfig       `mapstructure:"log"`
}

type InstallerConfig struct {
    Name         string        `mapstructure:"name"`
    URL          string        `mapstructure:"url"`
    DownloadType string        `mapstructure:"download_type"`
    Timeout      time.Duration `mapstructure:"timeout"`
}

type StorageConfig struct {
    Account  string `mapstructure:"account"`
    Key      string `mapstructure:"key"`
    Endpoint string `mapstructure:"endpoint"`
}

type PluginsConfig struct {
    Container string `mapstructure:"container"`
    // Named is a '|' separated list of plugins installed by name.
    Named string `mapstructure:"named"`
}

type DataConfig struct {
    ShareName  string `mapstructure:"share_name"`
    ShareMount string `mapstructure:"share_mount"`
    UseLocal   bool   `mapstructure:"use_local"`
}

type BootstrapConfig struct {
    Enabled  bool          `mapstructure:"enabled"`
    Interval time.Duration `mapstructure:"interval"`
}

// DirsConfig holds the platform-provided local roots.
type DirsConfig struct {
    Archive string `mapstructure:"archive"`
    Log     string `mapstructure:"log"`
    Install string `mapstructure:"install"`
    Temp    string `mapstructure:"temp"`
    Data    string `mapstructure:"data"`
    // Root is the agent's own directory, holding config/ and plugins/.
    Root string `mapstructure:"root"`
}

type ClusterConfig struct {
    URL     string            `mapstructure:"url"`
    Timeout time.Duration     `mapstructure:"timeout"`
    TLS     tlsconfig.Options `mapstructure:"tls"`
}

type MgmtConfig struct {
    Addr string            `mapstructure:"addr"`
    TLS  tlsconfig.Options `mapstructure:"tls"`
}

type BridgeConfig struct {
    Addr string `mapstructure:"addr"`
}

type DiscoveryConfig struct {
    Kind    string        `mapstructure:"kind"`
    Refresh time.Duration `mapstructure:"refresh"`
    // Static is a comma-separated "id=host:port" list.
    Static string          `mapstructure:"static"`
    File   FileDiscovery   `mapstructure:"file"`
    DNS    DNSDiscovery    `mapstructure:"dns"`
    Gossip GossipDiscovery `mapstructure:"gossip"`
}

type FileDiscovery struct {
    Path string `mapstructure:"path"`
    Env  string `mapstructure:"env"`
}

type DNSDiscovery struct {
    Names  []string `mapstructure:"names"`
    Domain string   `mapstructure:"domain"`
    Port   int      `mapstructure:"port"`
}

type GossipDiscovery struct {
    Bind      string   `mapstructure:"bind"`
    Advertise string   `mapstructure:"advertise"`
    Seeds     []string `mapstructure:"seeds"`
    // Transport is the host:port this node advertises for the endpoint.
    Transport string `mapstructure:"transport"`
}

type LogConfig struct {
    JSON bool `mapstructure:"json"`
}

// Load reads path (optional; empty searches ./searchnode.yaml and
// /etc/searchnode) and the environment, applies defaults and validates.
func Load(path string) (*Settings, error) {
    v := viper.New()
    v.SetConfigName("searchnode")
    v.SetConfigType("yaml")
    if path != "" {
        v.SetConfigFile(path)
    } else {
        v.AddConfigPath(".")
        v.AddConfigPath("/etc/searchnode")
    }
    setDefaults(v)
    v.SetEnvPrefix(EnvPrefix)
    v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
    v.AutomaticEnv()

    if err := v.ReadInConfig(); err != nil {
        var nf viper.ConfigFileNotFoundError
        if !errors.As(err, &nf) { return nil, fmt.Errorf("config: read %s: %w", path, err) }
    }
    var s Settings
    if err := v.Unmarshal(&s); err != nil { return nil, fmt.Errorf("config: decode: %w", err) }
    if err := validate(&s); err != nil { return nil, err }
    return &s, nil
}

func setDefaults(v *viper.Viper) {
    v.SetDefault("node_name", "")
    v.SetDefault("endpoint_name", "elasticsearch")
    v.SetDefault("emulated", false)
    v.SetDefault("heap_mb", 0)
    v.SetDefault("java_home", "")
    v.SetDefault("trace", false)

    v.SetDefault("installer.name", "")
    v.SetDefault("installer.url", "")
    v.SetDefault("installer.download_type", DownloadWeb)
    v.SetDefault("installer.timeout", "0s")

    v.SetDefault("storage.account", "")
    v.SetDefault("storage.key", "")
    v.SetDefault("storage.endpoint", "")

    v.SetDefault("plugins.container", "")
    v.SetDefault("plugins.named", "")

    v.SetDefault("data.share_name", "")
    v.SetDefault("data.share_mount", "")
    v.SetDefault("data.use_local", true)

    v.SetDefault("bootstrap.enabled", false)
    v.SetDefault("bootstrap.interval", "1m")

    v.SetDefault("dirs.root", ".")
    v.SetDefault("dirs.archive", "")
    v.SetDefault("dirs.log", "")
    v.SetDefault("dirs.install", "")
    v.SetDefault("dirs.temp", "")
    v.SetDefault("dirs.data", "")

    v.SetDefault("cluster.url", "http://127.0.0.1:9200")
    v.SetDefault("cluster.timeout", "5s")
    for _, prefix := range []string{"cluster.tls", "mgmt.tls"} {
        v.SetDefault(prefix+".enable", false)
        v.SetDefault(prefix+".ca", "")
        v.SetDefault(prefix+".cert", "")
        v.SetDefault(prefix+".key", "")
        v.SetDefault(prefix+".skip_verify", false)
        v.SetDefault(prefix+".server_name", "")
    }

    v.SetDefault("mgmt.addr", "127.0.0.1:17900")
    v.SetDefault("bridge.addr", "127.0.0.1:0")

    v.SetDefault("discovery.kind", DiscoveryStatic)
    v.SetDefault("discovery.refresh", "5s")
    v.SetDefault("discovery.static", "")
    v.SetDefault("discovery.file.path", "")
    v.SetDefault("discovery.file.env", "")
    v.SetDefault("discovery.dns.names", []string{})
    v.SetDefault("discovery.dns.domain", "")
    v.SetDefault("discovery.dns.port", 9300)
    v.SetDefault("discovery.gossip.bind", "0.0.0.0:7946")
    v.SetDefault("discovery.gossip.advertise", "")
    v.SetDefault("discovery.gossip.seeds", []string{})
    v.SetDefault("discovery.gossip.transport", "")

    v.SetDefault("log.json", false)
}

func validate(s *Settings) error {
    if s.NodeName == "" {
        host, err := os.Hostname()
        if err != nil || host == "" { return fmt.Errorf("config: node_name is required") }
        s.NodeName = host
    }
    if s.Installer.Name == "" { return fmt.Errorf("config: installer.name is required") }
    if s.Installer.URL == "" { return fmt.Errorf("config: installer.url is required") }
    switch s.Installer.DownloadType {
    case "", DownloadWeb:
        s.Installer.DownloadType = DownloadWeb
    case DownloadStorage:
    default:
        return fmt.Errorf("config: unknown installer.download_type %q", s.Installer.DownloadType)
    }
    if (s.Installer.DownloadType == DownloadStorage || s.Plugins.Container != "") && (s.Storage.Account == "" || s.Storage.Key == "") {
        return fmt.Errorf("config: storage.account and storage.key are required for storage downloads")
    }
    switch s.Discovery.Kind {
    case DiscoveryStatic, DiscoveryFile, DiscoveryDNS, DiscoveryGossip:
    default:
        return fmt.Errorf("config: unknown discovery.kind %q", s.Discovery.Kind)
    }
    if s.Bootstrap.Enabled && s.Bootstrap.Interval <= 0 {
        return fmt.Errorf("config: bootstrap.interval must be positive")
    }
    if s.HeapMB < 0 { return fmt.Errorf("config: heap_mb must not be negative") }
    if !s.Data.UseLocal && !s.Emulated && s.Data.ShareMount == "" {
        return fmt.Errorf("config: data.share_mount is required when data.use_local is false")
    }

    d := &s.Dirs
    d.Root = filepath.Clean(d.Root)
    base := filepath.Join(d.Root, "var")
    if d.Archive == "" { d.Archive = filepath.Join(base, "archive") }
    if d.Log == "" { d.Log = filepath.Join(base, "log") }
    if d.Install == "" { d.Install = filepath.Join(base, "install") }
    if d.Data == "" { d.Data = filepath.Join(base, "data") }
    if d.Temp == "" { d.Temp = os.TempDir() }
    for _, p := range []*string{&d.Archive, &d.Log, &d.Install, &d.Data, &d.Temp} { *p = filepath.Clean(*p) }
    return nil
}

// NamedPlugins splits plugins.named on '|' and drops blanks.
func (s *Settings) NamedPlugins() []string {
    var out []string
    for _, p := range strings.Split(s.Plugins.Named, "|") {
        if p = strings.TrimSpace(p); p != "" { out = append(out, p) }
    }
    return out
}

// DataPath is the shared mount unless running emulated or with local data.
func (s *Settings) DataPath() string {
    if s.Emulated || s.Data.UseLocal || s.Data.ShareMount == "" { return s.Dirs.Data }
    return s.Data.ShareMount
}

func (s *Settings) PackagedPluginsDir() string { return filepath.Join(s.Dirs.Root, "plugins") }

func (s *Settings) TemplatePath() string { return filepath.Join(s.Dirs.Root, "config", "elasticsearch.yml") }

// PluginArchiveDir is where downloaded plugin archives are kept.
func (s *Settings) PluginArchiveDir() string { return filepath.Join(s.Dirs.Archive, "plugins") }
