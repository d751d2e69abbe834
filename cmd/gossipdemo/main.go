package main

import (
    "context"
    "encoding/json"
    "flag"
    "fmt"
    "log"
    "os"
    "os/signal"
    "strings"
    "syscall"
    "time"

    "github.com/amirimatin/go-searchnode/pkg/discovery/gossip"
)

func main() {
    var (
        id        = flag.String("id", "node-1", "node id")
        bind      = flag.String("bind", ":7946", "bind host:port")
        advertise = flag.String("advertise", "", "advertise host:port (optional)")
        joinCSV   = flag.String("join", "", "comma-separated seeds (host:port)")
        endpoint  = flag.String("endpoint", "elasticsearch", "endpoint name announced by this node")
        serve     = flag.String("serve", "0.0.0.0:9300", "host:port announced for the endpoint")
        every     = flag.Duration("every", 5*time.Second, "listing interval")
    )
    flag.Parse()

    ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
    defer cancel()

    d, err := gossip.New(gossip.Options{
        NodeID:    *id,
        Bind:      *bind,
        Advertise: *advertise,
        Endpoints: map[string]string{*endpoint: *serve},
        Seeds:     splitCSV(*joinCSV),
        Logger:    log.Default(),
    })
    if err != nil { log.Fatal(err) }
    if err := d.Start(ctx); err != nil { log.Fatal(err) }

    fmt.Printf("gossipdemo started on %s. Press Ctrl+C to exit.\n", d.LocalAddr())
    t := time.NewTicker(*every)
    defer t.Stop()
    enc := json.NewEncoder(os.Stdout)
    for {
        select {
        case <-ctx.Done():
            _ = d.Leave()
            _ = d.Stop()
            return
        case <-t.C:
            list, err := d.Instances(ctx, *endpoint)
            if err != nil { log.Printf("instances error: %v", err); continue }
            fmt.Printf("members=%d health=%d ", len(d.Members()), d.HealthScore())
            _ = enc.Encode(list)
        }
    }
}

func splitCSV(s string) []string {
    if s == "" { return nil }
    parts := strings.Split(s, ",")
    out := make([]string, 0, len(parts))
    for _, p := range parts { p = strings.TrimSpace(p); if p != "" { out = append(out, p) } }
    return out
}
