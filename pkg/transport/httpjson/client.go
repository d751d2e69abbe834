// Package httpjson is the node's local management surface: an HTTP server
// for status, health and metrics and the client used by the CLI.
package httpjson

import (
    "context"
    "crypto/tls"
    "fmt"
    "io"
    "net/http"
    "time"
)

// Client reads a node's management endpoint. Transport errors and 5xx
// answers are retried with a short backoff; other statuses fail at once.
type Client struct {
    httpc   *http.Client
    tr      *http.Transport
    scheme  string
    backoff []time.Duration
}

func NewClient(timeout time.Duration) *Client {
    if timeout <= 0 { timeout = 3 * time.Second }
    tr := &http.Transport{}
    return &Client{
        httpc:   &http.Client{Timeout: timeout, Transport: tr},
        tr:      tr,
        scheme:  "http",
        backoff: []time.Duration{100 * time.Millisecond, 200 * time.Millisecond},
    }
}

// UseTLS switches the client to https with cfg; nil reverts to plain http.
func (c *Client) UseTLS(cfg *tls.Config) *Client {
    c.tr.TLSClientConfig = cfg
    c.scheme = "http"
    if cfg != nil { c.scheme = "https" }
    return c
}

// GetStatus fetches /status from addr (host:port).
func (c *Client) GetStatus(ctx context.Context, addr string) ([]byte, error) {
    return c.get(ctx, addr, "/status")
}

// Healthz returns nil when addr answers /healthz with 200.
func (c *Client) Healthz(ctx context.Context, addr string) error {
    _, err := c.get(ctx, addr, "/healthz")
    return err
}

func (c *Client) get(ctx context.Context, addr, path string) ([]byte, error) {
    url := c.scheme + "://" + addr + path
    for attempt := 0; ; attempt++ {
        body, retry, err := c.fetch(ctx, url)
        if err == nil || !retry || attempt >= len(c.backoff) { return body, err }
        t := time.NewTimer(c.backoff[attempt])
        select {
        case <-ctx.Done():
            t.Stop()
            return nil, ctx.Err()
        case <-t.C:
        }
    }
}

// fetch performs one GET and reports whether a failure is worth retrying.
func (c *Client) fetch(ctx context.Context, url string) ([]byte, bool, error) {
    req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
    if err != nil { return nil, false, err }
    resp, err := c.httpc.Do(req)
    if err != nil { return nil, ctx.Err() == nil, err }
    defer resp.Body.Close()
    body, err := io.ReadAll(resp.Body)
    if err != nil { return nil, true, err }
    if resp.StatusCode != http.StatusOK {
        return nil, resp.StatusCode >= 500, fmt.Errorf("%s %s: status %d: %s", req.Method, url, resp.StatusCode, body)
    }
    return body, false, nil
}
