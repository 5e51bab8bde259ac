//go:build !windows

package signalwatcher_test

import (
	"context"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/gridhome/energy-supervisor/signalwatcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchDeliversHUP(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signals := signalwatcher.Watch(ctx)

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGHUP))

	select {
	case sig := <-signals:
		assert.Equal(t, signalwatcher.HUP, sig)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the signal to be delivered")
	}
}

func TestWatchClosesChannelOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	signals := signalwatcher.Watch(ctx)
	cancel()

	select {
	case sig, ok := <-signals:
		if ok {
			t.Fatalf("expected channel to close, got signal %v", sig)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("channel was not closed after the context was cancelled")
	}
}
