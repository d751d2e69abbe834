//go:build !windows

package supervisor

import (
    "errors"
    "os"
    "os/exec"
    "syscall"
)

// The service runs in its own process group so a stop reaches the helpers
// it forks as well.
func configureProcess(cmd *exec.Cmd) {
    cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func requestStop(p *os.Process) error {
    if err := syscall.Kill(-p.Pid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
        return p.Signal(syscall.SIGTERM)
    }
    return nil
}

// cleanupProcess kills whatever is left in the group once the leader is gone.
func cleanupProcess(p *os.Process) {
    _ = syscall.Kill(-p.Pid, syscall.SIGKILL)
}
