//go:build windows

package daemon

import (
	"fmt"
	"os"
	"syscall"
)

// IsRunning returns the recorded PID and whether that process is alive.
func (p *PIDFile) IsRunning() (int, bool) {
	pid, err := p.Read()
	if err != nil {
		return 0, false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return pid, false
	}
	// On Windows, FindProcess always succeeds; test with Signal(0) equivalent.
	err = proc.Signal(syscall.Signal(0))
	return pid, err == nil
}

// Signal delivers sig to the recorded process. Only os.Kill is reliable on Windows.
func (p *PIDFile) Signal(sig syscall.Signal) error {
	pid, err := p.Read()
	if err != nil {
		return fmt.Errorf("read PID file: %w", err)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find process %d: %w", pid, err)
	}
	return proc.Signal(sig)
}
