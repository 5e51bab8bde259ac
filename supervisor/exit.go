package supervisor

import (
	"fmt"
	"strings"

	"github.com/gridhome/energy-supervisor/process"
)

// ProcessExit describes how a child process exited: if it was signaled, what
// its exit code was, and which child it was.
type ProcessExit struct {
	Name   string
	Status int
	Signal string
}

// Error allows ProcessExit to be passed through error returns.
func (e ProcessExit) Error() string {
	if e.Status == 0 {
		return e.Name + " exited normally"
	}
	bits := []string{fmt.Sprintf("status=%d", e.Status)}
	if e.Signal != "" {
		bits = append(bits, "signal="+e.Signal)
	}
	return e.Name + " exited with " + strings.Join(bits, ", ")
}

// exitFrom converts a wait status into a ProcessExit, using the shell
// convention of 128+signal for signal deaths.
func exitFrom(name string, ws process.WaitStatus) ProcessExit {
	exit := ProcessExit{
		Name:   name,
		Status: ws.ExitStatus(),
	}
	if ws.Signaled() {
		exit.Signal = process.SignalString(ws.Signal())
		exit.Status = 128 + int(ws.Signal())
	}
	return exit
}
