//go:build windows

package instance

import (
	"os/exec"
	"syscall"
)

const createNewProcessGroup = 0x00000200

// configureSysProcAttr creates a new process group; Windows has no setpgid,
// but CREATE_NEW_PROCESS_GROUP lets GenerateConsoleCtrlEvent (not used here)
// and TerminateProcess target the group's lead process uniformly.
func configureSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: createNewProcessGroup}
}

// signalGroup has no POSIX-signal equivalent on Windows; any stop_signal
// maps to terminating the process, matching the teacher's Windows signal
// shim which only distinguishes "exists" (signal 0) from "terminate".
func signalGroup(pid int, sig int) error {
	if sig == 0 {
		return nil
	}
	return killGroup(pid)
}

func killGroup(pid int) error {
	p, err := syscall.OpenProcess(syscall.PROCESS_TERMINATE, false, uint32(pid))
	if err != nil {
		return nil
	}
	defer syscall.CloseHandle(p)
	return syscall.TerminateProcess(p, 1)
}

// applyUmask is a no-op on Windows, which has no umask concept.
func applyUmask(cfg SpawnConfig) func() {
	return func() {}
}
