package supervisor

// State is the supervisor lifecycle position.
type State int32

const (
    NotStarted State = iota
    Running
    CancelRequested
    ShuttingDown
    Exited
)

func (s State) String() string {
    switch s {
    case NotStarted:
        return "not_started"
    case Running:
        return "running"
    case CancelRequested:
        return "cancel_requested"
    case ShuttingDown:
        return "shutting_down"
    case Exited:
        return "exited"
    default:
        return "unknown"
    }
}
