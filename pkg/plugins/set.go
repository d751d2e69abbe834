package plugins

import (
    "path/filepath"
    "sort"
    "sync"
)

// Set maps plugin archive names to local paths. The first path added for a
// name wins; later duplicates are ignored.
type Set struct {
    mu    sync.Mutex
    paths map[string]string
}

func NewSet() *Set { return &Set{paths: map[string]string{}} }

// Add records name at path and reports whether name was new.
func (s *Set) Add(name, path string) bool {
    s.mu.Lock()
    defer s.mu.Unlock()
    if _, ok := s.paths[name]; ok { return false }
    s.paths[name] = path
    return true
}

// AddPath adds path under its base name.
func (s *Set) AddPath(path string) bool { return s.Add(filepath.Base(path), path) }

func (s *Set) Has(name string) bool {
    s.mu.Lock()
    defer s.mu.Unlock()
    _, ok := s.paths[name]
    return ok
}

func (s *Set) Len() int {
    s.mu.Lock()
    defer s.mu.Unlock()
    return len(s.paths)
}

// Names returns the archive names in sorted order.
func (s *Set) Names() []string {
    s.mu.Lock()
    defer s.mu.Unlock()
    out := make([]string, 0, len(s.paths))
    for n := range s.paths { out = append(out, n) }
    sort.Strings(out)
    return out
}

// Paths returns the local paths ordered by name.
func (s *Set) Paths() []string {
    names := s.Names()
    s.mu.Lock()
    defer s.mu.Unlock()
    out := make([]string, 0, len(names))
    for _, n := range names { out = append(out, s.paths[n]) }
    return out
}
