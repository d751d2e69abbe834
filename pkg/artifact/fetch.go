package artifact

import (
    "context"
    "errors"
    "io"
    "os"
    "path/filepath"

    "github.com/google/uuid"
)

// FetchTo downloads a into dst atomically: content lands in a uniquely named
// sibling file which is renamed over dst only after a complete download.
func FetchTo(ctx context.Context, a Artifact, dst string) (int64, error) {
    if a.Source == nil { return 0, ErrNoSource }
    dir := filepath.Dir(dst)
    if err := os.MkdirAll(dir, 0o755); err != nil { return 0, &IOError{Op: "mkdir", Path: dir, Err: err} }
    tmp := filepath.Join(dir, "."+uuid.NewString()+".part")
    f, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
    if err != nil { return 0, &IOError{Op: "create", Path: tmp, Err: err} }
    fw := &trackingWriter{w: f}
    n, err := a.Source.Download(ctx, a.Locator, fw)
    cerr := f.Close()
    if err != nil {
        _ = os.Remove(tmp)
        if fw.err != nil { return 0, &IOError{Op: "write", Path: tmp, Err: fw.err} }
        var fe *FetchError
        if !errors.As(err, &fe) { err = &FetchError{Locator: a.Locator, Err: err} }
        return 0, err
    }
    if cerr != nil {
        _ = os.Remove(tmp)
        return 0, &IOError{Op: "close", Path: tmp, Err: cerr}
    }
    if err := os.Rename(tmp, dst); err != nil {
        _ = os.Remove(tmp)
        return 0, &IOError{Op: "rename", Path: dst, Err: err}
    }
    return n, nil
}

// trackingWriter remembers the first local write failure so it can be told
// apart from a remote read failure.
type trackingWriter struct {
    w   io.Writer
    err error
}

func (t *trackingWriter) Write(p []byte) (int, error) {
    n, err := t.w.Write(p)
    if err != nil && t.err == nil { t.err = err }
    return n, err
}
