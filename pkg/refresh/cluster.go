package refresh

import (
    "context"
    "errors"
    "fmt"

    "github.com/amirimatin/go-searchnode/pkg/clusterapi"
)

// Cluster is what the scheduler needs from the search cluster.
type Cluster interface {
    IsHealthy(ctx context.Context) (bool, error)
    IsMaster(ctx context.Context, nodeName string) (bool, error)
    // GetState returns found=false, err=nil when no state exists yet.
    GetState(ctx context.Context, name string) (state DataSourceState, found bool, err error)
    PutState(ctx context.Context, state DataSourceState) error
}

// API implements Cluster over the cluster HTTP client.
type API struct {
    Client *clusterapi.Client
}

func resultErr[T any](op string, r clusterapi.Result[T]) error {
    msg := r.ErrorMessage
    if msg == "" { msg = "unknown error" }
    if r.StatusCode == 0 { return fmt.Errorf("%s: %s", op, msg) }
    return fmt.Errorf("%s: status %d: %s", op, r.StatusCode, msg)
}

func (a API) IsHealthy(ctx context.Context) (bool, error) {
    r := a.Client.IsHealthy(ctx)
    if r.IsError { return false, resultErr("health", r) }
    return r.Result, nil
}

func (a API) IsMaster(ctx context.Context, nodeName string) (bool, error) {
    r := a.Client.IsMaster(ctx, nodeName)
    if r.IsError { return false, resultErr("master", r) }
    return r.Result, nil
}

func (a API) GetState(ctx context.Context, name string) (DataSourceState, bool, error) {
    r := clusterapi.Get[DataSourceState](ctx, a.Client, Collection, name)
    if r.NotFound() { return DataSourceState{}, false, nil }
    if r.IsError { return DataSourceState{}, false, resultErr("get state", r) }
    return r.Result, true, nil
}

func (a API) PutState(ctx context.Context, state DataSourceState) error {
    if state.Name == "" { return errors.New("refresh: state without name") }
    r := clusterapi.Put(ctx, a.Client, Collection, state.Name, state)
    if r.IsError { return resultErr("put state", r) }
    return nil
}
