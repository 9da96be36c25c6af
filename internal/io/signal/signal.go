// Package signal wires POSIX termination signals into context
// cancellation for the linescan tools.
package signal

import (
	"context"
	"os"
	gosignal "os/signal"
	"syscall"

	"github.com/mimecast/linescan/internal/dlog"
)

// ShutdownContext returns a context that is canceled on the first
// interrupt or termination signal, letting the caller finish the current
// line and flush output. A second signal exits immediately.
func ShutdownContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 2)
	gosignal.Notify(sigCh, os.Interrupt, syscall.SIGHUP, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigCh:
			dlog.Debugf("Received %v, shutting down", sig)
			cancel()
		case <-ctx.Done():
			gosignal.Stop(sigCh)
			return
		}
		<-sigCh
		os.Exit(1)
	}()

	return ctx, cancel
}
