package bridge

import (
    "context"
    "errors"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/amirimatin/go-searchnode/pkg/discovery"
    "github.com/amirimatin/go-searchnode/pkg/discovery/static"
)

func TestServesMembershipPerConnection(t *testing.T) {
    dir := static.New(
        discovery.Instance{ID: "es0", Address: "10.0.0.4", Port: 9300},
        discovery.Instance{ID: "es1", Address: "10.0.0.5", Port: 9300},
    )
    s, err := Listen("", dir, "es", nil)
    require.NoError(t, err)
    assert.NotZero(t, s.Port())
    ctx, cancel := context.WithCancel(context.Background())
    served := make(chan error, 1)
    go func() { served <- s.Serve(ctx) }()

    for i := 0; i < 3; i++ {
        fctx, fcancel := context.WithTimeout(context.Background(), 2*time.Second)
        got, err := Fetch(fctx, s.Addr())
        fcancel()
        require.NoError(t, err)
        require.Len(t, got, 2)
        assert.Equal(t, "es0", got[0].ID)
        assert.Equal(t, "10.0.0.5", got[1].Address)
    }

    cancel()
    select {
    case err := <-served:
        assert.NoError(t, err)
    case <-time.After(2 * time.Second):
        t.Fatal("Serve did not return after cancel")
    }
}

func TestDirectoryFailureServesEmptyList(t *testing.T) {
    dir := discovery.Func(func(context.Context, string) ([]discovery.Instance, error) {
        return nil, errors.New("platform unavailable")
    })
    s, err := Listen("127.0.0.1:0", dir, "es", nil)
    require.NoError(t, err)
    defer s.Close()
    go func() { _ = s.Serve(context.Background()) }()

    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    got, err := Fetch(ctx, s.Addr())
    require.NoError(t, err)
    assert.Empty(t, got)
    assert.NoError(t, s.Close())
}

func TestListenRejectsNilDirectory(t *testing.T) {
    _, err := Listen("", nil, "es", nil)
    assert.Error(t, err)
}
