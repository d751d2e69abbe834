package cli

import (
    "context"
    "encoding/json"
    "fmt"
    "log"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/spf13/cobra"

    "github.com/amirimatin/go-searchnode/pkg/bootstrap"
    "github.com/amirimatin/go-searchnode/pkg/bridge"
    "github.com/amirimatin/go-searchnode/pkg/config"
    "github.com/amirimatin/go-searchnode/pkg/discovery"
    "github.com/amirimatin/go-searchnode/pkg/internal/logutil"
    tracing "github.com/amirimatin/go-searchnode/pkg/observability/tracing"
    "github.com/amirimatin/go-searchnode/pkg/render"
    tlsx "github.com/amirimatin/go-searchnode/pkg/security/tlsconfig"
    httpjson "github.com/amirimatin/go-searchnode/pkg/transport/httpjson"
)

// AddAll attaches the node subcommands (run/status/render/nodes) and the
// shared --config/--log-json flags to root.
func AddAll(root *cobra.Command) {
    var logJSON bool
    root.PersistentFlags().String("config", "", "path to searchnode.yaml (default ./searchnode.yaml or /etc/searchnode)")
    root.PersistentFlags().BoolVar(&logJSON, "log-json", false, "emit JSON log lines")
    prev := root.PersistentPreRunE
    root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
        if logJSON { logutil.SetJSON(true) }
        if prev != nil { return prev(cmd, args) }
        return nil
    }
    root.AddCommand(NewRunCmd())
    root.AddCommand(NewStatusCmd())
    root.AddCommand(NewRenderCmd())
    root.AddCommand(NewNodesCmd())
}

func loadSettings(cmd *cobra.Command) (*config.Settings, error) {
    path, _ := cmd.Flags().GetString("config")
    return config.Load(path)
}

// NewRunCmd returns the "run" command: provision the node, start the service
// and supervise it until SIGINT/SIGTERM.
func NewRunCmd() *cobra.Command {
    var (
        traceEnable bool
        stopTimeout time.Duration
    )
    cmd := &cobra.Command{
        Use:   "run",
        Short: "Provision and run a search node",
        RunE: func(cmd *cobra.Command, args []string) error {
            s, err := loadSettings(cmd)
            if err != nil { return err }
            if traceEnable || s.Trace {
                shutdown, err := tracing.Setup(true)
                if err != nil {
                    log.Printf("tracing setup error: %v", err)
                } else {
                    defer func() { _ = shutdown(context.Background()) }()
                }
            }

            svc, err := bootstrap.Build(s, log.Default())
            if err != nil { return err }

            ctx, cancel := signalContext()
            defer cancel()
            if err := svc.OnStart(ctx); err != nil { return err }

            runErr := make(chan error, 1)
            go func() { runErr <- svc.Run() }()

            select {
            case err = <-runErr:
            case <-ctx.Done():
            }
            sctx, scancel := context.WithTimeout(context.Background(), stopTimeout)
            defer scancel()
            if serr := svc.OnStop(sctx); serr != nil && err == nil { err = serr }
            return err
        },
    }
    cmd.Flags().BoolVar(&traceEnable, "trace", false, "enable OpenTelemetry stdout tracing (dev)")
    cmd.Flags().DurationVar(&stopTimeout, "stop-timeout", 30*time.Second, "time allowed for the service to exit on shutdown")
    return cmd
}

// NewStatusCmd returns the "status" command.
func NewStatusCmd() *cobra.Command {
    var (
        addr                                  string
        timeout                               time.Duration
        tlsEnable, tlsSkip                    bool
        tlsCA, tlsCert, tlsKey, tlsServerName string
    )
    cmd := &cobra.Command{
        Use:   "status",
        Short: "Fetch node status as JSON",
        RunE: func(cmd *cobra.Command, args []string) error {
            client := httpjson.NewClient(timeout)
            topts := tlsx.Options{Enable: tlsEnable, CAFile: tlsCA, CertFile: tlsCert, KeyFile: tlsKey, InsecureSkipVerify: tlsSkip, ServerName: tlsServerName}
            cliTLS, err := topts.Client()
            if err != nil { return fmt.Errorf("tls client config: %w", err) }
            if cliTLS != nil { client.UseTLS(cliTLS) }

            ctx, cancel := context.WithTimeout(context.Background(), timeout)
            defer cancel()
            data, err := client.GetStatus(ctx, addr)
            if err != nil { return fmt.Errorf("status error: %w", err) }
            out := cmd.OutOrStdout()
            out.Write(data)
            if len(data) == 0 || data[len(data)-1] != '\n' { out.Write([]byte("\n")) }
            return nil
        },
    }
    cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:17900", "management address of a node (host:port)")
    cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Second, "request timeout")
    cmd.Flags().BoolVar(&tlsEnable, "tls-enable", false, "use TLS for the management endpoint")
    cmd.Flags().StringVar(&tlsCA, "tls-ca", "", "path to CA cert (PEM)")
    cmd.Flags().StringVar(&tlsCert, "tls-cert", "", "path to client certificate (PEM)")
    cmd.Flags().StringVar(&tlsKey, "tls-key", "", "path to client private key (PEM)")
    cmd.Flags().BoolVar(&tlsSkip, "tls-skip-verify", false, "skip server cert verification (DEV ONLY)")
    cmd.Flags().StringVar(&tlsServerName, "tls-server-name", "", "expected server name (for TLS validation)")
    return cmd
}

// NewRenderCmd returns the "render" command, which prints the service config
// the node would write, without provisioning anything.
func NewRenderCmd() *cobra.Command {
    var template, out string
    cmd := &cobra.Command{
        Use:   "render",
        Short: "Render the service configuration from the template",
        RunE: func(cmd *cobra.Command, args []string) error {
            s, err := loadSettings(cmd)
            if err != nil { return err }
            pipe, err := bootstrap.Pipeline(s, log.Default())
            if err != nil { return err }
            if template == "" { template = s.TemplatePath() }

            if out != "" {
                _, err := pipe.Renderer.Render(template, out, pipe.Overrides())
                return err
            }
            data, err := os.ReadFile(template)
            if err != nil && !os.IsNotExist(err) { return &render.ConfigError{Path: template, Err: err} }
            doc, err := render.Document(data, pipe.Renderer.Reserved, pipe.Overrides())
            if err != nil { return &render.ConfigError{Path: template, Err: err} }
            _, err = cmd.OutOrStdout().Write(doc)
            return err
        },
    }
    cmd.Flags().StringVar(&template, "template", "", "template path (defaults to <dirs.root>/config/elasticsearch.yml)")
    cmd.Flags().StringVarP(&out, "out", "o", "", "write to this file instead of stdout")
    return cmd
}

// NewNodesCmd returns the "nodes" command. It lists the membership seen
// through the configured directory, or through a running node's bridge when
// --bridge is set.
func NewNodesCmd() *cobra.Command {
    var (
        bridgeAddr string
        endpoint   string
        timeout    time.Duration
    )
    cmd := &cobra.Command{
        Use:   "nodes",
        Short: "List cluster instances as JSON",
        RunE: func(cmd *cobra.Command, args []string) error {
            ctx, cancel := context.WithTimeout(context.Background(), timeout)
            defer cancel()

            var list []discovery.Instance
            if bridgeAddr != "" {
                var err error
                list, err = bridge.Fetch(ctx, bridgeAddr)
                if err != nil { return fmt.Errorf("bridge error: %w", err) }
            } else {
                s, err := loadSettings(cmd)
                if err != nil { return err }
                dir, err := bootstrap.Directory(s, log.Default())
                if err != nil { return err }
                if lc, ok := dir.(interface {
                    Start(context.Context) error
                    Stop() error
                }); ok {
                    if err := lc.Start(ctx); err != nil { return err }
                    defer lc.Stop()
                }
                if endpoint == "" { endpoint = s.EndpointName }
                list, err = dir.Instances(ctx, endpoint)
                if err != nil { return fmt.Errorf("discovery error: %w", err) }
            }
            if list == nil { list = []discovery.Instance{} }
            return json.NewEncoder(cmd.OutOrStdout()).Encode(list)
        },
    }
    cmd.Flags().StringVar(&bridgeAddr, "bridge", "", "runtime bridge address of a running node (host:port)")
    cmd.Flags().StringVar(&endpoint, "endpoint", "", "endpoint name (defaults to endpoint_name)")
    cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "lookup timeout")
    return cmd
}

func signalContext() (context.Context, context.CancelFunc) {
    return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
