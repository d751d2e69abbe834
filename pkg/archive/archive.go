// Package archive unpacks zip bundles into install and plugin directories.
package archive

import (
    "archive/zip"
    "context"
    "fmt"
    "io"
    "os"
    "path/filepath"
    "strings"
    "sync"

    "github.com/hashicorp/go-multierror"
)

// Extract unpacks the zip at src into dst, creating dst as needed. Entries
// that would land outside dst are rejected.
func Extract(src, dst string) error {
    r, err := zip.OpenReader(src)
    if err != nil { return fmt.Errorf("archive: open %s: %w", src, err) }
    defer r.Close()
    if err := os.MkdirAll(dst, 0o755); err != nil { return fmt.Errorf("archive: mkdir %s: %w", dst, err) }
    root, err := filepath.Abs(dst)
    if err != nil { return err }
    for _, f := range r.File {
        if err := extractFile(f, root); err != nil { return fmt.Errorf("archive: %s: %w", src, err) }
    }
    return nil
}

// ExtractClean removes clean, then unpacks src into dst. clean is usually
// the top-level directory the archive is known to create under dst.
func ExtractClean(src, dst, clean string) error {
    if clean != "" {
        if err := os.RemoveAll(clean); err != nil { return fmt.Errorf("archive: reset %s: %w", clean, err) }
    }
    return Extract(src, dst)
}

// Stem returns the archive file name without directory and extension.
func Stem(path string) string {
    base := filepath.Base(path)
    return strings.TrimSuffix(base, filepath.Ext(base))
}

// Glob lists the *.zip files directly under dir. A missing dir yields none.
func Glob(dir string) ([]string, error) {
    entries, err := os.ReadDir(dir)
    if os.IsNotExist(err) { return nil, nil }
    if err != nil { return nil, err }
    var out []string
    for _, e := range entries {
        if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".zip") { continue }
        out = append(out, filepath.Join(dir, e.Name()))
    }
    return out, nil
}

// ExtractEach unpacks every archive into root/<stem> as an independent task.
// All archives are attempted even when some fail; failures are returned
// together. done, if set, is called once per archive.
func ExtractEach(ctx context.Context, root string, archives []string, done func(archive string, err error)) error {
    var (
        mu   sync.Mutex
        errs *multierror.Error
        wg   sync.WaitGroup
    )
    for _, a := range archives {
        wg.Add(1)
        go func(a string) {
            defer wg.Done()
            var err error
            if cerr := ctx.Err(); cerr != nil {
                err = cerr
            } else {
                err = Extract(a, filepath.Join(root, Stem(a)))
            }
            if done != nil { done(a, err) }
            if err != nil {
                mu.Lock()
                errs = multierror.Append(errs, err)
                mu.Unlock()
            }
        }(a)
    }
    wg.Wait()
    return errs.ErrorOrNil()
}

func extractFile(f *zip.File, root string) error {
    name := filepath.FromSlash(f.Name)
    target := filepath.Join(root, name)
    if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
        return fmt.Errorf("entry %q escapes destination", f.Name)
    }
    if f.FileInfo().IsDir() {
        return os.MkdirAll(target, 0o755)
    }
    if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil { return err }
    mode := f.Mode().Perm()
    if mode == 0 { mode = 0o644 }
    rc, err := f.Open()
    if err != nil { return err }
    defer rc.Close()
    out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
    if err != nil { return err }
    if _, err := io.Copy(out, rc); err != nil {
        out.Close()
        return err
    }
    return out.Close()
}
