// Package daemon tracks the background "todoai serve" process through a PID file.
package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrAlreadyRunning is returned by Acquire when a live process owns the file.
var ErrAlreadyRunning = errors.New("server already running")

// PIDFile records the PID of the running server.
type PIDFile struct {
	Path string
}

// NewPIDFile creates a PIDFile for the given path.
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{Path: path}
}

// Write records the current process's PID.
func (p *PIDFile) Write() error {
	return p.WritePID(os.Getpid())
}

// WritePID records pid, creating the parent directory when needed.
func (p *PIDFile) WritePID(pid int) error {
	if err := os.MkdirAll(filepath.Dir(p.Path), 0o755); err != nil {
		return fmt.Errorf("create PID directory: %w", err)
	}
	return os.WriteFile(p.Path, []byte(strconv.Itoa(pid)+"\n"), 0o644)
}

// Read returns the recorded PID.
func (p *PIDFile) Read() (int, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID file content: %w", err)
	}
	return pid, nil
}

// Remove deletes the PID file.
func (p *PIDFile) Remove() error {
	return os.Remove(p.Path)
}

// Acquire claims the file for the current process. A file left behind by a
// dead process is replaced.
func (p *PIDFile) Acquire() error {
	if pid, running := p.IsRunning(); running {
		return fmt.Errorf("%w (PID %d)", ErrAlreadyRunning, pid)
	}
	return p.Write()
}

// Release removes the file if it still names the current process.
func (p *PIDFile) Release() error {
	pid, err := p.Read()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if pid != os.Getpid() {
		return nil
	}
	return p.Remove()
}

// WaitExit polls until the recorded process is gone or timeout elapses.
// It reports whether the process exited.
func (p *PIDFile) WaitExit(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if _, running := p.IsRunning(); !running {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(100 * time.Millisecond)
	}
}
