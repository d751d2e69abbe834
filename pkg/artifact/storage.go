package artifact

import (
    "context"
    "errors"
    "fmt"
    "io"
    "strings"

    "github.com/Azure/azure-sdk-for-go/sdk/azcore"
    "github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
    "github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// BlobStore is the slice of an object store the provisioner needs.
type BlobStore interface {
    Download(ctx context.Context, container, blob string, w io.Writer) (int64, error)
    List(ctx context.Context, container string) ([]string, error)
    EnsureContainer(ctx context.Context, container string) error
    URL(container, blob string) string
}

// StorageSource fetches artifacts from an authenticated object store. The
// locator is the blob URL (https://<account>.blob.core.windows.net/<container>/<blob>).
type StorageSource struct {
    Store BlobStore
}

func (s *StorageSource) Kind() string { return "storage" }

func (s *StorageSource) Download(ctx context.Context, locator string, w io.Writer) (int64, error) {
    if s.Store == nil { return 0, &FetchError{Locator: locator, Err: ErrNoSource} }
    parts, err := azblob.ParseURL(locator)
    if err != nil { return 0, &FetchError{Locator: locator, Err: err} }
    if parts.ContainerName == "" || parts.BlobName == "" {
        return 0, &FetchError{Locator: locator, Err: errors.New("locator does not name a container and blob")}
    }
    return s.Store.Download(ctx, parts.ContainerName, parts.BlobName, w)
}

// AzureStore implements BlobStore over an azblob client authenticated with a
// shared account key.
type AzureStore struct {
    client *azblob.Client
}

// NewAzureStore builds a store for account. endpoint overrides the default
// public service URL (e.g. an emulator).
func NewAzureStore(account, key, endpoint string) (*AzureStore, error) {
    if account == "" || key == "" { return nil, errors.New("artifact: storage account and key are required") }
    cred, err := azblob.NewSharedKeyCredential(account, key)
    if err != nil { return nil, fmt.Errorf("artifact: storage credential: %w", err) }
    if endpoint == "" { endpoint = fmt.Sprintf("https://%s.blob.core.windows.net/", account) }
    client, err := azblob.NewClientWithSharedKeyCredential(endpoint, cred, nil)
    if err != nil { return nil, fmt.Errorf("artifact: storage client: %w", err) }
    return &AzureStore{client: client}, nil
}

func (a *AzureStore) Download(ctx context.Context, container, blob string, w io.Writer) (int64, error) {
    locator := a.URL(container, blob)
    resp, err := a.client.DownloadStream(ctx, container, blob, nil)
    if err != nil { return 0, &FetchError{Locator: locator, StatusCode: statusOf(err), Err: err} }
    defer resp.Body.Close()
    n, err := io.Copy(w, resp.Body)
    if err != nil { return n, &FetchError{Locator: locator, Err: err} }
    return n, nil
}

func (a *AzureStore) List(ctx context.Context, container string) ([]string, error) {
    var names []string
    pager := a.client.NewListBlobsFlatPager(container, nil)
    for pager.More() {
        page, err := pager.NextPage(ctx)
        if err != nil { return nil, &FetchError{Locator: a.URL(container, ""), StatusCode: statusOf(err), Err: err} }
        if page.Segment == nil { continue }
        for _, item := range page.Segment.BlobItems {
            if item == nil || item.Name == nil { continue }
            names = append(names, *item.Name)
        }
    }
    return names, nil
}

func (a *AzureStore) EnsureContainer(ctx context.Context, container string) error {
    _, err := a.client.CreateContainer(ctx, container, nil)
    if err == nil || bloberror.HasCode(err, bloberror.ContainerAlreadyExists) { return nil }
    return &FetchError{Locator: a.URL(container, ""), StatusCode: statusOf(err), Err: err}
}

func (a *AzureStore) URL(container, blob string) string {
    u := strings.TrimRight(a.client.URL(), "/") + "/" + container
    if blob != "" { u += "/" + blob }
    return u
}

func statusOf(err error) int {
    var re *azcore.ResponseError
    if errors.As(err, &re) { return re.StatusCode }
    return 0
}
