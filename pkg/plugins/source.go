// Package plugins merges plugin archives from independent sources into one
// deduplicated local set and unpacks them into the service's plugin root.
package plugins

import (
    "context"
    "path"

    "github.com/amirimatin/go-searchnode/pkg/artifact"
)

// Source is a deferred enumeration of plugin artifacts. It is invoked once
// per aggregation and may make network calls.
type Source func(ctx context.Context) ([]artifact.Artifact, error)

// Static yields a fixed list.
func Static(items ...artifact.Artifact) Source {
    return func(context.Context) ([]artifact.Artifact, error) { return items, nil }
}

// ContainerSource yields every blob of container as a storage artifact. The
// container is created when missing so a fresh deployment sees an empty set.
func ContainerSource(store artifact.BlobStore, container string) Source {
    src := &artifact.StorageSource{Store: store}
    return func(ctx context.Context) ([]artifact.Artifact, error) {
        if err := store.EnsureContainer(ctx, container); err != nil { return nil, err }
        names, err := store.List(ctx, container)
        if err != nil { return nil, err }
        out := make([]artifact.Artifact, 0, len(names))
        for _, n := range names {
            out = append(out, artifact.Artifact{Locator: store.URL(container, n), Name: path.Base(n), Source: src})
        }
        return out, nil
    }
}
