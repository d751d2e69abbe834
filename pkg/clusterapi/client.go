// Package clusterapi is a minimal typed client for the search cluster's HTTP
// API. Calls make exactly one attempt and never return errors: failures of
// any kind come back in the Result envelope.
package clusterapi

import (
    "bytes"
    "context"
    "crypto/tls"
    "encoding/json"
    "fmt"
    "io"
    "net/http"
    "net/url"
    "strings"
    "time"

    "go.opentelemetry.io/otel/attribute"

    "github.com/amirimatin/go-searchnode/pkg/observability/metrics"
    "github.com/amirimatin/go-searchnode/pkg/observability/tracing"
)

// HealthGreen is the fully available health tier.
const HealthGreen = "green"

type Client struct {
    base      string
    httpc     *http.Client
    transport *http.Transport
}

// NewClient targets baseURL (e.g. http://localhost:9200).
func NewClient(baseURL string, timeout time.Duration) *Client {
    if timeout <= 0 { timeout = 5 * time.Second }
    tr := &http.Transport{}
    return &Client{base: strings.TrimRight(baseURL, "/"), httpc: &http.Client{Timeout: timeout, Transport: tr}, transport: tr}
}

// UseTLS sets the TLS config for the underlying transport.
func (c *Client) UseTLS(cfg *tls.Config) *Client {
    if c.transport != nil { c.transport.TLSClientConfig = cfg }
    return c
}

func (c *Client) BaseURL() string { return c.base }

type healthResponse struct {
    Status string `json:"status"`
}

type stateResponse struct {
    MasterNode string `json:"master_node"`
    Nodes      map[string]struct {
        Name string `json:"name"`
    } `json:"nodes"`
}

type docResponse[T any] struct {
    Found  *bool `json:"found"`
    Source T     `json:"_source"`
}

// IsHealthy is true when the cluster reports the green tier.
func (c *Client) IsHealthy(ctx context.Context) Result[bool] {
    r := call[healthResponse](ctx, c, "health", http.MethodGet, "/_cluster/health", nil)
    if r.IsError { return failure[bool](r.StatusCode, r.ErrorMessage) }
    return Result[bool]{Result: r.Result.Status == HealthGreen, StatusCode: r.StatusCode}
}

// IsMaster is true when the elected master node is named nodeName.
func (c *Client) IsMaster(ctx context.Context, nodeName string) Result[bool] {
    r := call[stateResponse](ctx, c, "is_master", http.MethodGet, "/_cluster/state/master_node,nodes", nil)
    if r.IsError { return failure[bool](r.StatusCode, r.ErrorMessage) }
    node, ok := r.Result.Nodes[r.Result.MasterNode]
    return Result[bool]{Result: ok && r.Result.MasterNode != "" && node.Name == nodeName, StatusCode: r.StatusCode}
}

// Get fetches document id of collection. A missing document is an error
// result with StatusCode 404.
func Get[T any](ctx context.Context, c *Client, collection, id string) Result[T] {
    r := call[docResponse[T]](ctx, c, "get", http.MethodGet, docPath(collection, id), nil)
    if r.IsError { return failure[T](r.StatusCode, r.ErrorMessage) }
    if r.Result.Found != nil && !*r.Result.Found { return failure[T](http.StatusNotFound, "document not found") }
    return Result[T]{Result: r.Result.Source, StatusCode: r.StatusCode}
}

// Put stores value as document id of collection, replacing any previous
// version, and echoes value back on success.
func Put[T any](ctx context.Context, c *Client, collection, id string, value T) Result[T] {
    body, err := json.Marshal(value)
    if err != nil { return failure[T](0, err.Error()) }
    r := call[json.RawMessage](ctx, c, "put", http.MethodPut, docPath(collection, id), body)
    if r.IsError { return failure[T](r.StatusCode, r.ErrorMessage) }
    return Result[T]{Result: value, StatusCode: r.StatusCode}
}

func docPath(collection, id string) string {
    return "/" + url.PathEscape(collection) + "/_doc/" + url.PathEscape(id)
}

func call[T any](ctx context.Context, c *Client, op, method, path string, body []byte) (res Result[T]) {
    ctx, end := tracing.StartSpan(ctx, "clusterapi."+op, attribute.String("http.method", method), attribute.String("http.path", path))
    defer func() {
        var err error
        if res.IsError { err = fmt.Errorf("%s", res.ErrorMessage) }
        end(err)
        metrics.ClusterCalls.WithLabelValues(op, metrics.Result(err)).Inc()
    }()

    var rd io.Reader
    if body != nil { rd = bytes.NewReader(body) }
    req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
    if err != nil { return failure[T](0, err.Error()) }
    req.Header.Set("Accept", "application/json")
    if body != nil { req.Header.Set("Content-Type", "application/json") }
    resp, err := c.httpc.Do(req)
    if err != nil { return failure[T](0, err.Error()) }
    defer resp.Body.Close()
    b, err := io.ReadAll(resp.Body)
    if err != nil { return failure[T](resp.StatusCode, err.Error()) }
    if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
        msg := strings.TrimSpace(string(b))
        if msg == "" { msg = resp.Status }
        return failure[T](resp.StatusCode, msg)
    }
    var out T
    if len(b) > 0 {
        if err := json.Unmarshal(b, &out); err != nil { return failure[T](resp.StatusCode, "decode response: "+err.Error()) }
    }
    return Result[T]{Result: out, StatusCode: resp.StatusCode}
}
