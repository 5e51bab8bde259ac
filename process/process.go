// Package process provides a helper for running and managing a subprocess.
//
// It is intended for internal use by the energy-supervisor only.
package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/gridhome/energy-supervisor/logger"
)

const (
	// defaultSignalGracePeriod is how long to wait between interrupting and
	// forcefully killing a process that hasn't exited.
	defaultSignalGracePeriod = 9 * time.Second
)

var ErrAlreadyRunning = errors.New("process is already running")

// Config contains everything necessary to run a subprocess.
type Config struct {
	Path            string
	Args            []string
	Env             []string
	Dir             string
	PTY             bool
	Stdout, Stderr  io.Writer
	InterruptSignal Signal

	// SignalGracePeriod is how long to wait between interrupting the process
	// and forcefully terminating it.
	SignalGracePeriod time.Duration
}

// Process is an operating system level process that can be started, interrupted
// and waited upon.
type Process struct {
	logger logger.Logger
	conf   Config

	command *exec.Cmd

	mu            sync.Mutex
	started, done chan struct{}
	pid           int
	waitResult    error
	status        WaitStatus
}

// New returns a new instance of Process.
func New(l logger.Logger, c Config) *Process {
	if c.SignalGracePeriod <= 0 {
		c.SignalGracePeriod = defaultSignalGracePeriod
	}
	return &Process{
		logger:  l,
		conf:    c,
		started: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Pid returns the pid of the running process, or zero before it has started.
func (p *Process) Pid() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pid
}

// WaitResult returns the raw error returned by wait()
func (p *Process) WaitResult() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waitResult
}

// WaitStatus returns the status of the Wait() call
func (p *Process) WaitStatus() WaitStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Started returns a channel that is closed when the process is started.
func (p *Process) Started() <-chan struct{} {
	return p.started
}

// Done returns a channel that is closed when the process finishes, or fails to
// start.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Run the command and block until it finishes or the context is cancelled.
// Cancelling the context interrupts the process, and forcefully terminates it
// once the signal grace period elapses.
func (p *Process) Run(ctx context.Context) error {
	p.mu.Lock()
	if p.command != nil {
		p.mu.Unlock()
		return ErrAlreadyRunning
	}

	p.command = exec.Command(p.conf.Path, p.conf.Args...)
	p.command.Dir = p.conf.Dir

	// Copy the current process' ENV and merge in the config's on top, so the
	// subprocess gets PATH etc, but the configured env takes precedence.
	p.command.Env = append(os.Environ(), p.conf.Env...)

	// Create a process group so that signals can be delivered to the whole
	// tree rather than just the direct child.
	p.setupProcessGroup()
	p.mu.Unlock()

	stdout := p.conf.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := p.conf.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	var ptyWait sync.WaitGroup

	if p.conf.PTY {
		pty, err := StartPTY(p.command)
		if err != nil {
			p.finishWithError(err)
			return err
		}

		p.mu.Lock()
		p.pid = p.command.Process.Pid
		p.mu.Unlock()
		close(p.started)

		ptyWait.Add(1)
		go func() {
			defer ptyWait.Done()

			// Copy the pty to the writer. This blocks until the pty closes.
			_, err := io.Copy(stdout, pty)

			// An EIO from the pty just means it closed successfully.
			var pathErr *os.PathError
			if errors.As(err, &pathErr) && pathErr.Err == syscall.EIO {
				err = nil
			}
			if err != nil {
				p.logger.Error("[Process] PTY output copy failed with error: %T: %v", err, err)
			} else {
				p.logger.Debug("[Process] PTY has finished being copied to the buffer")
			}
		}()
	} else {
		p.command.Stdout = stdout
		p.command.Stderr = stderr
		p.command.Stdin = nil

		if err := p.command.Start(); err != nil {
			p.finishWithError(err)
			return err
		}

		p.mu.Lock()
		p.pid = p.command.Process.Pid
		p.mu.Unlock()
		close(p.started)
	}

	p.logger.Info("[Process] Process %s is running with PID: %d", p.conf.Path, p.Pid())

	// Interrupt the process when the context is cancelled, and terminate it
	// if it still hasn't exited after the grace period.
	cancelDone := make(chan struct{})
	go func() {
		defer close(cancelDone)
		select {
		case <-p.done:
			return
		case <-ctx.Done():
		}

		if err := p.Interrupt(); err != nil {
			p.logger.Error("[Process] Failed to interrupt PID %d: %v", p.Pid(), err)
		}

		select {
		case <-p.done:
		case <-time.After(p.conf.SignalGracePeriod):
			p.logger.Debug("[Process] PID %d didn't exit within the %v grace period, terminating", p.Pid(), p.conf.SignalGracePeriod)
			if err := p.Terminate(); err != nil {
				p.logger.Error("[Process] Failed to terminate PID %d: %v", p.Pid(), err)
			}
		}
	}()

	// Wait until the process has finished. The returned error is nil if the
	// command runs, has no problems copying stdout and stderr, and exits with
	// a zero exit status.
	waitResult := p.command.Wait()

	p.mu.Lock()
	p.waitResult = waitResult
	p.status = waitStatusFrom(p.command, waitResult)
	p.mu.Unlock()

	// Signal waiting consumers in Done() by closing the done channel.
	close(p.done)
	<-cancelDone

	p.logger.Info("[Process] Process with PID: %d finished with Exit Status: %d", p.Pid(), p.status.ExitStatus())

	// Sometimes (in docker containers) the pty copy never seems to finish.
	// If it doesn't finish within a couple of seconds, just continue.
	if p.conf.PTY {
		if err := timeoutWait(&ptyWait, 2*time.Second); err != nil {
			p.logger.Debug("[Process] Timed out waiting for PTY copy: %v", err)
		}
	}

	return nil
}

// Interrupt sends the configured interrupt signal (SIGTERM unless configured
// otherwise) to the process group. Interrupting a process that has already
// exited is a no-op.
func (p *Process) Interrupt() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pid == 0 {
		p.logger.Debug("[Process] No process to interrupt yet")
		return nil
	}

	select {
	case <-p.done:
		p.logger.Debug("[Process] PID %d has already exited, not interrupting", p.pid)
		return nil
	default:
	}

	if err := p.interruptProcessGroup(); err != nil {
		return ignoreExited(err)
	}
	return nil
}

// Terminate forcefully kills the process group. Terminating a process that has
// already exited is a no-op.
func (p *Process) Terminate() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pid == 0 {
		p.logger.Debug("[Process] No process to terminate yet")
		return nil
	}

	select {
	case <-p.done:
		p.logger.Debug("[Process] PID %d has already exited, not terminating", p.pid)
		return nil
	default:
	}

	if err := p.terminateProcessGroup(); err != nil {
		return ignoreExited(err)
	}
	return nil
}

// finishWithError is used when the process fails to start at all.
func (p *Process) finishWithError(err error) {
	p.mu.Lock()
	p.waitResult = err
	p.status = unknownWaitStatus{}
	p.mu.Unlock()
	close(p.done)
	p.logger.Error("[Process] Failed to start %s: %v", p.conf.Path, err)
}

// WaitStatus is the status of a process after it has exited, decoupled from
// syscall.WaitStatus so that a value exists even when wait() never ran.
type WaitStatus interface {
	ExitStatus() int
	Signaled() bool
	Signal() syscall.Signal
}

// unknownWaitStatus is the WaitStatus for processes that failed to start; by
// convention the exit status is -1.
type unknownWaitStatus struct{}

func (unknownWaitStatus) ExitStatus() int        { return -1 }
func (unknownWaitStatus) Signaled() bool         { return false }
func (unknownWaitStatus) Signal() syscall.Signal { return syscall.Signal(-1) }

func waitStatusFrom(cmd *exec.Cmd, waitResult error) WaitStatus {
	if cmd.ProcessState != nil {
		if ws, ok := cmd.ProcessState.Sys().(syscall.WaitStatus); ok {
			return ws
		}
	}

	var exitErr *exec.ExitError
	if errors.As(waitResult, &exitErr) {
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			return ws
		}
	}

	return unknownWaitStatus{}
}

// FormatCommand formats a command and arguments for human reading.
func FormatCommand(command string, args []string) string {
	s := command
	for _, a := range args {
		s += " " + a
	}
	return s
}

func timeoutWait(wg *sync.WaitGroup, timeout time.Duration) error {
	c := make(chan struct{})
	go func() {
		wg.Wait()
		close(c)
	}()

	select {
	case <-c:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("timed out after %v", timeout)
	}
}
