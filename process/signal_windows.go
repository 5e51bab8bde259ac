//go:build windows

package process

import (
	"os/exec"
	"strconv"
	"strings"
	"syscall"
)

func (p *Process) setupProcessGroup() {
	// Process groups are a unix concept; on windows we rely on TASKKILL /T to
	// take out the process tree.
}

func (p *Process) terminateProcessGroup() error {
	p.logger.Debug("[Process] Running TASKKILL.EXE /F /T /PID %d", p.pid)
	return exec.Command("CMD", "/C", "TASKKILL.EXE", "/F", "/T", "/PID", strconv.Itoa(p.pid)).Run()
}

func (p *Process) interruptProcessGroup() error {
	// Sending Interrupt on Windows is not implemented.
	// https://golang.org/src/os/exec.go?s=3842:3884#L110
	p.logger.Debug("[Process] Running TASKKILL.EXE /T /PID %d", p.pid)
	return exec.Command("CMD", "/C", "TASKKILL.EXE", "/T", "/PID", strconv.Itoa(p.pid)).Run()
}

func ignoreExited(err error) error {
	if err == nil {
		return nil
	}
	// TASKKILL reports "not found" for processes that have already exited.
	if strings.Contains(err.Error(), "exit status 128") {
		return nil
	}
	return err
}

func GetPgid(pid int) (int, error) {
	return pid, nil
}

// SignalString returns the windows representation of a syscall signal.
func SignalString(s syscall.Signal) string {
	return s.String()
}
