//go:build !windows

package signalwatcher

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// Watch subscribes to interrupt and termination signals and delivers them on
// the returned channel until the context ends, at which point the signal
// registration is released and the channel is closed. The channel is buffered
// so that a signal arriving while the consumer is busy is not lost.
func Watch(ctx context.Context) <-chan Signal {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt,
		syscall.SIGHUP,
		syscall.SIGTERM,
		syscall.SIGINT,
		syscall.SIGQUIT)

	out := make(chan Signal, 1)

	go func() {
		defer close(out)
		defer signal.Stop(signals)
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-signals:
				var translated Signal
				if sig == syscall.SIGHUP {
					translated = HUP
				} else {
					translated = QUIT
				}

				select {
				case out <- translated:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}
