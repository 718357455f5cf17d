// Package gatewayproc wires OS signals to a cancellable context and a
// reload flag: SIGINT/SIGTERM shut the gateway down, SIGHUP tears it down
// and rebuilds it from a freshly reloaded configuration.
package gatewayproc

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	log "github.com/sirupsen/logrus"
)

// Supervisor owns the process-level signal handling for one gateway run.
// SIGINT/SIGTERM cancel the context for a clean shutdown; SIGHUP cancels
// it too but also sets the reload flag, so the caller's outer loop knows
// to rebuild the gateway from a freshly reloaded config and run again.
type Supervisor struct {
	ctx    context.Context
	cancel context.CancelFunc
	reload atomic.Bool
	sigCh  chan os.Signal
}

// New installs signal handlers and returns a ready Supervisor.
func New() *Supervisor {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Supervisor{
		ctx:    ctx,
		cancel: cancel,
		sigCh:  make(chan os.Signal, 1),
	}

	signal.Notify(s.sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	go s.wait()

	return s
}

func (s *Supervisor) wait() {
	sig := <-s.sigCh
	switch sig {
	case syscall.SIGHUP:
		log.Info("Restarting on receipt of SIGHUP")
		s.reload.Store(true)
	default:
		log.Info("Shutting down...")
	}
	s.cancel()
}

// Context returns the context that is cancelled on any handled signal.
func (s *Supervisor) Context() context.Context {
	return s.ctx
}

// ShouldReload reports whether the most recent shutdown was triggered by
// SIGHUP rather than SIGINT/SIGTERM.
func (s *Supervisor) ShouldReload() bool {
	return s.reload.Load()
}

// Stop cancels the context and deregisters the signal channel, used for
// tests and for an orderly stop from outside the signal path. Each call
// to New should be paired with exactly one Stop to avoid leaking a
// registration with the runtime signal dispatcher across restarts.
func (s *Supervisor) Stop() {
	signal.Stop(s.sigCh)
	s.cancel()
}
