package process_test

import (
	"runtime"
	"syscall"
	"testing"

	"github.com/gridhome/energy-supervisor/process"
	"github.com/stretchr/testify/assert"
)

func TestParseSignal(t *testing.T) {
	for _, row := range []struct {
		in  string
		sig process.Signal
	}{
		{"SIGTERM", process.SIGTERM},
		{"sigint", process.SIGINT},
		{" SIGHUP ", process.SIGHUP},
	} {
		sig, err := process.ParseSignal(row.in)
		if assert.NoError(t, err) {
			assert.Equal(t, row.sig, sig)
		}
	}

	_, err := process.ParseSignal("SIGLLAMA")
	assert.Error(t, err)
}

func TestSignalStringUnix(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("Unix signal names are not used on Windows")
	}

	for _, row := range []struct {
		n int
		s string
	}{
		{2, "SIGINT"},
		{9, "SIGKILL"},
		{15, "SIGTERM"},
		{100, "100"},
	} {
		assert.Equal(t, row.s, process.SignalString(syscall.Signal(row.n)))
	}
}
