package node

import (
    "time"

    "github.com/amirimatin/go-searchnode/pkg/refresh"
)

// Phase is the coarse node lifecycle position.
type Phase string

const (
    PhaseCreated      Phase = "created"
    PhaseStarted      Phase = "started"
    PhaseProvisioning Phase = "provisioning"
    PhaseRunning      Phase = "running"
    PhaseStopping     Phase = "stopping"
    PhaseStopped      Phase = "stopped"
    PhaseFailed       Phase = "failed"
)

// Status is the JSON snapshot served on /status.
type Status struct {
    Node       string            `json:"node"`
    Phase      Phase             `json:"state"`
    Process    string            `json:"process"`
    Configured bool              `json:"configured"`
    PID        int               `json:"pid,omitempty"`
    StartedAt  *time.Time        `json:"startedAt,omitempty"`
    Bridge     string            `json:"bridge,omitempty"`
    Scheduler  *refresh.Snapshot `json:"scheduler,omitempty"`
    Error      string            `json:"error,omitempty"`
}
