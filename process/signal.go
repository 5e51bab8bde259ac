package process

import (
	"fmt"
	"strings"
)

// Signal is a process signal, from the portable subset that can be relayed to
// a child on every supported platform.
type Signal int

const (
	SIGHUP  Signal = 1
	SIGINT  Signal = 2
	SIGQUIT Signal = 3
	SIGKILL Signal = 9
	SIGTERM Signal = 15
)

var signalMap = map[string]Signal{
	"SIGHUP":  SIGHUP,
	"SIGINT":  SIGINT,
	"SIGQUIT": SIGQUIT,
	"SIGKILL": SIGKILL,
	"SIGTERM": SIGTERM,
}

func (s Signal) String() string {
	for name, signal := range signalMap {
		if signal == s {
			return name
		}
	}
	return fmt.Sprintf("%d", int(s))
}

// ParseSignal returns the Signal for a name like "SIGTERM" or "term".
func ParseSignal(sig string) (Signal, error) {
	s, ok := signalMap[strings.ToUpper(strings.TrimSpace(sig))]
	if !ok {
		return Signal(0), fmt.Errorf("unknown signal %q", sig)
	}
	return s, nil
}
