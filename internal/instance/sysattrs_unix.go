//go:build !windows

package instance

import (
	"os/exec"
	"syscall"
)

// configureSysProcAttr places the child in its own process group so that
// Signal/Kill can target the whole group, not just the direct child.
func configureSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func signalGroup(pid int, sig int) error {
	return syscall.Kill(-pid, syscall.Signal(sig))
}

func killGroup(pid int) error {
	return syscall.Kill(-pid, syscall.SIGKILL)
}

// applyUmask swaps the process umask around cmd.Start() so the child
// inherits it, then restores the supervisor's own umask. Go's os/exec has no
// fork/exec hook to apply a umask only to the child, so this short race
// window (other goroutines starting files during the swap) is an accepted
// approximation, documented in DESIGN.md.
func applyUmask(cfg SpawnConfig) func() {
	if !cfg.HasUmask {
		return func() {}
	}
	old := syscall.Umask(cfg.Umask)
	return func() { syscall.Umask(old) }
}
