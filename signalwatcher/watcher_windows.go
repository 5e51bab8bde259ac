//go:build windows

package signalwatcher

import (
	"context"
	"os"
	"os/signal"
)

// Watch subscribes to interrupt signals and delivers them on the returned
// channel until the context ends, at which point the signal registration is
// released and the channel is closed.
func Watch(ctx context.Context) <-chan Signal {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt)

	out := make(chan Signal, 1)

	go func() {
		defer close(out)
		defer signal.Stop(signals)
		for {
			select {
			case <-ctx.Done():
				return
			case <-signals:
				select {
				case out <- QUIT:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}
