package artifact

import (
    "context"
    "fmt"
    "io"
    "net/http"
    "time"
)

// WebSource fetches artifacts with a plain HTTP(S) GET.
type WebSource struct {
    Client *http.Client
}

// NewWebSource returns a WebSource with the given overall request timeout.
// Zero disables the timeout, which suits large bundles on slow links.
func NewWebSource(timeout time.Duration) *WebSource {
    return &WebSource{Client: &http.Client{Timeout: timeout}}
}

func (s *WebSource) Kind() string { return "web" }

func (s *WebSource) Download(ctx context.Context, locator string, w io.Writer) (int64, error) {
    httpc := s.Client
    if httpc == nil { httpc = http.DefaultClient }
    req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
    if err != nil { return 0, &FetchError{Locator: locator, Err: err} }
    resp, err := httpc.Do(req)
    if err != nil { return 0, &FetchError{Locator: locator, Err: err} }
    defer resp.Body.Close()
    if resp.StatusCode < 200 || resp.StatusCode > 299 {
        _, _ = io.Copy(io.Discard, resp.Body)
        return 0, &FetchError{Locator: locator, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected status %s", resp.Status)}
    }
    n, err := io.Copy(w, resp.Body)
    if err != nil { return n, &FetchError{Locator: locator, Err: err} }
    return n, nil
}
