// Package signalwatcher converts OS termination signals into values on a
// channel, so the supervisor can relay them with a select loop instead of
// signal-handler globals.
package signalwatcher

type Signal string

func (s Signal) String() string {
	return string(s)
}

const (
	HUP  = Signal("HUP")
	QUIT = Signal("QUIT")
)
