package node

import (
    "errors"
    "log"
    "time"

    "github.com/amirimatin/go-searchnode/pkg/discovery"
    "github.com/amirimatin/go-searchnode/pkg/provision"
    "github.com/amirimatin/go-searchnode/pkg/refresh"
    "github.com/amirimatin/go-searchnode/pkg/transport/httpjson"
)

// Options carries the assembled components of one node. Instances are
// typically produced by bootstrap.Build.
type Options struct {
    NodeName string
    Endpoint string
    Logger   *log.Logger

    // Pipeline provisions the installation (required).
    Pipeline *provision.Pipeline
    // NamedPlugins are installed through the service's plugin tool after
    // provisioning; any failure aborts startup.
    NamedPlugins []string
    // Locator finds JAVA_HOME; a failed lookup leaves it to the service.
    Locator provision.RuntimeLocator

    // Executable overrides the launcher inside the installation.
    Executable string
    Args       []string
    Env        map[string]string

    // Directory feeds the runtime bridge; nil disables the bridge.
    Directory  discovery.Directory
    BridgeAddr string

    // Cluster enables the refresh scheduler when non-nil.
    Cluster         refresh.Cluster
    RefreshInterval time.Duration

    // Mgmt is the optional local management server.
    Mgmt *httpjson.Server
}

// Validate performs a minimal validation of Options.
func (o Options) Validate() error {
    if o.NodeName == "" { return errors.New("node: empty NodeName") }
    if o.Pipeline == nil { return errors.New("node: nil Pipeline") }
    return nil
}
