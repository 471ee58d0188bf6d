package server

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"syscall"
)

// InstanceManager enforces single-instance operation and provides
// lifecycle control through a PID file.
type InstanceManager struct {
	pidFile string
}

// NewInstanceManager creates a new instance manager
func NewInstanceManager() *InstanceManager {
	return &InstanceManager{pidFile: filepath.Join(pidDir(), "chatrelay.pid")}
}

// pidDir returns the directory for the PID file
func pidDir() string {
	if runtime.GOOS == "windows" {
		if dir := os.Getenv("PROGRAMDATA"); dir != "" {
			return filepath.Join(dir, "ChatRelay")
		}
		return filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Local", "ChatRelay")
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "chatrelay")
	}
	return filepath.Join(os.TempDir(), "chatrelay")
}

// PIDFile returns the path to the PID file
func (im *InstanceManager) PIDFile() string { return im.pidFile }

// WritePID writes the current process PID, creating the directory if needed
func (im *InstanceManager) WritePID() error {
	if err := os.MkdirAll(filepath.Dir(im.pidFile), 0o700); err != nil {
		return err
	}
	return os.WriteFile(im.pidFile, []byte(strconv.Itoa(os.Getpid())), 0o600)
}

// ReadPID reads the PID from file
func (im *InstanceManager) ReadPID() (int, error) {
	data, err := os.ReadFile(im.pidFile)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, err
	}
	return pid, nil
}

// RemovePID deletes the PID file
func (im *InstanceManager) RemovePID() { _ = os.Remove(im.pidFile) }

// isProcessRunning tries to detect if a PID refers to a running process
func isProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	switch runtime.GOOS {
	case "windows":
		out, err := exec.Command("tasklist", "/FI", fmt.Sprintf("PID eq %d", pid)).Output()
		if err != nil {
			return false
		}
		return strings.Contains(string(out), strconv.Itoa(pid))
	default:
		proc, err := os.FindProcess(pid)
		if err != nil {
			return false
		}
		return proc.Signal(syscall.Signal(0)) == nil
	}
}

// IsRunning reports whether an existing instance (via PID file) is alive
func (im *InstanceManager) IsRunning() (bool, int) {
	pid, err := im.ReadPID()
	if err != nil {
		return false, 0
	}
	if isProcessRunning(pid) {
		return true, pid
	}
	// Stale PID file.
	im.RemovePID()
	return false, 0
}

// Kill attempts to terminate the process recorded in the PID file
func (im *InstanceManager) Kill() error {
	pid, err := im.ReadPID()
	if err != nil {
		return err
	}
	if !isProcessRunning(pid) {
		im.RemovePID()
		return errors.New("process not running")
	}
	switch runtime.GOOS {
	case "windows":
		if err := exec.Command("taskkill", "/PID", strconv.Itoa(pid), "/F").Run(); err != nil {
			return fmt.Errorf("taskkill failed: %w", err)
		}
	default:
		proc, err := os.FindProcess(pid)
		if err != nil {
			return err
		}
		if err := proc.Signal(syscall.SIGTERM); err != nil {
			_ = proc.Signal(syscall.SIGKILL)
		}
	}
	im.RemovePID()
	return nil
}
