package artifact

import (
    "errors"
    "fmt"
)

var ErrNoSource = errors.New("artifact: no source configured")

// FetchError reports an unreachable source or a non-success response.
type FetchError struct {
    Locator    string
    StatusCode int // zero for transport failures
    Err        error
}

func (e *FetchError) Error() string {
    if e.StatusCode != 0 {
        return fmt.Sprintf("artifact: fetch %s: status %d", e.Locator, e.StatusCode)
    }
    return fmt.Sprintf("artifact: fetch %s: %v", e.Locator, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IOError reports a local filesystem failure while materialising an artifact.
type IOError struct {
    Op   string
    Path string
    Err  error
}

func (e *IOError) Error() string { return fmt.Sprintf("artifact: %s %s: %v", e.Op, e.Path, e.Err) }

func (e *IOError) Unwrap() error { return e.Err }
