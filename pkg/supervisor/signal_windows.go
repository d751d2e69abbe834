//go:build windows

package supervisor

import (
    "os"
    "os/exec"
    "strconv"
    "syscall"
)

func configureProcess(cmd *exec.Cmd) {
    cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
}

// Windows has no portable console-close signal for a child, so the whole
// tree is ended. Kill covers hosts without taskkill.
func requestStop(p *os.Process) error {
    if err := exec.Command("taskkill", "/T", "/F", "/PID", strconv.Itoa(p.Pid)).Run(); err != nil {
        return p.Kill()
    }
    return nil
}

func cleanupProcess(*os.Process) {}
