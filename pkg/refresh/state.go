// Package refresh schedules recurring data bootstrappers across the cluster.
// The cluster's own master election gates which node runs them, and progress
// markers are stored back into the cluster.
package refresh

import (
    "context"
    "time"
)

// Collection holds one DataSourceState document per bootstrapper name.
const Collection = "databootstrap"

// DataSourceState is the persisted progress marker of a bootstrapper. It is
// overwritten on every run and never deleted.
type DataSourceState struct {
    Name             string     `json:"name"`
    LastUpdated      *time.Time `json:"lastUpdated"`
    NextUpdate       *time.Time `json:"nextUpdate"`
    LastErrorDate    *time.Time `json:"lastErrorDate"`
    LastErrorMessage string     `json:"lastErrorMessage"`
}

// Due reports whether a bootstrapper with this state should run at now: it
// has never been scheduled or its next update time has passed.
func (s DataSourceState) Due(now time.Time) bool {
    return s.NextUpdate == nil || now.After(*s.NextUpdate)
}

// Done is the completion callback handed to a bootstrapper. next is when it
// wants to run again; errMsg is empty on success.
type Done func(next time.Time, errMsg string)

// Bootstrapper is a named unit of recurring, idempotent data loading. Run
// must call done exactly once, synchronously or later.
type Bootstrapper interface {
    Name() string
    Run(ctx context.Context, done Done)
}

// FuncBootstrapper adapts a function to Bootstrapper.
type FuncBootstrapper struct {
    ID string
    Fn func(ctx context.Context, done Done)
}

func (f FuncBootstrapper) Name() string { return f.ID }

func (f FuncBootstrapper) Run(ctx context.Context, done Done) { f.Fn(ctx, done) }
