// Package artifact fetches named binaries (installers, plugin archives) from
// remote sources into local paths without ever exposing a partial file.
package artifact

import (
    "context"
    "io"
)

// Artifact is an immutable descriptor of something fetchable: where it lives
// (Locator, interpreted by Source) and the file name it gets locally.
type Artifact struct {
    Locator string
    Name    string
    Source  Source
}

// Source downloads the content addressed by locator into w and returns the
// number of bytes written. Remote failures are reported as *FetchError.
type Source interface {
    Kind() string
    Download(ctx context.Context, locator string, w io.Writer) (int64, error)
}
