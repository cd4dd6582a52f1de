package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// shutdownContext returns a context that cancels on the first SIGINT or
// SIGTERM and force-exits on the second. Canceling lets a running download
// stop cleanly and keep its .partial file for the next run.
func shutdownContext(parent context.Context) context.Context {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go watchSignals(ctx, parent, cancel, sigCh, func() { os.Exit(1) })

	return ctx
}

// watchSignals cancels on the first signal and calls forceExit on the
// second.
func watchSignals(ctx, parent context.Context, cancel context.CancelFunc, sigCh chan os.Signal, forceExit func()) {
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		statusf("Received %s, stopping (press again to force)\n", sig)
		cancel()
	case <-ctx.Done():
		return
	}

	select {
	case <-sigCh:
		fmt.Fprintln(os.Stderr, "Forced exit.")
		forceExit()
	case <-parent.Done():
	}
}
