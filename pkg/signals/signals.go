// Package signals sets up graceful shutdown on SIGINT/SIGTERM.
package signals

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-logr/logr"
)

// Context returns a context canceled on the first SIGINT/SIGTERM. A second
// signal during shutdown exits the process immediately rather than waiting
// on a wedged engine loop.
func Context(logger logr.Logger) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, beginning shutdown", "signal", sig.String())
		cancel()
		sig = <-sigCh
		logger.Error(nil, "received signal during shutdown, exiting immediately", "signal", sig.String())
		os.Exit(1)
	}()
	return ctx
}
