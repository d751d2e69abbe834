package render

import (
    "errors"
    "io/fs"
    "log"
    "os"
    "regexp"

    "github.com/amirimatin/go-searchnode/pkg/internal/logutil"
)

var heapDirective = regexp.MustCompile(`(?m)^([ \t]*)(-Xm[sx]\S*)`)

// PatchMemoryFlags comments out fixed -Xms/-Xmx directives in a JVM options
// file so the heap passed through the environment wins. Already commented
// lines are left alone, so patching twice is harmless. A missing file is
// not an error.
func PatchMemoryFlags(path string, logger *log.Logger) error {
    data, err := os.ReadFile(path)
    if errors.Is(err, fs.ErrNotExist) {
        logutil.Warnf(logger, "memory options file %s not found, nothing to patch", path)
        return nil
    }
    if err != nil { return err }
    patched := heapDirective.ReplaceAll(data, []byte("${1}# ${2}"))
    if string(patched) == string(data) { return nil }
    logutil.Infof(logger, "disabled fixed heap directives in %s", path)
    return os.WriteFile(path, patched, 0o644)
}
