package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// DefaultShutdownTimeout bounds a graceful shutdown when none is configured
const DefaultShutdownTimeout = 30 * time.Second

// ShutdownFunc is a function to call during shutdown
type ShutdownFunc func(context.Context) error

type shutdownStep struct {
	name string
	fn   ShutdownFunc
}

// ShutdownManager stops the process's components in registration order:
// HTTP servers first so no new payment is accepted, then background work,
// then the stores and telemetry they write to.
type ShutdownManager struct {
	logger  *Logger
	timeout time.Duration

	mu    sync.Mutex
	steps []shutdownStep
	done  bool
}

// NewShutdownManager creates a new shutdown manager
func NewShutdownManager(logger *Logger, timeout time.Duration) *ShutdownManager {
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	if logger == nil {
		logger = NewLogger(InfoLevel, nil)
	}
	return &ShutdownManager{
		logger:  logger,
		timeout: timeout,
	}
}

// Register adds a named shutdown step. Nil functions are ignored.
func (sm *ShutdownManager) Register(name string, fn ShutdownFunc) {
	if fn == nil {
		return
	}
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.steps = append(sm.steps, shutdownStep{name: name, fn: fn})
}

// RegisterServer adds a step that drains server
func (sm *ShutdownManager) RegisterServer(name string, server *http.Server) {
	if server == nil {
		return
	}
	sm.Register(name, server.Shutdown)
}

// Run blocks until ctx is done and then shuts everything down with a fresh
// deadline
func (sm *ShutdownManager) Run(ctx context.Context) error {
	<-ctx.Done()
	sm.logger.Info("Starting graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sm.timeout)
	defer cancel()
	return sm.Shutdown(shutdownCtx)
}

// Shutdown runs every step once, in order, even when earlier steps fail. It
// stops early only when ctx expires. Later calls are no-ops.
func (sm *ShutdownManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	if sm.done {
		sm.mu.Unlock()
		return nil
	}
	sm.done = true
	steps := append([]shutdownStep(nil), sm.steps...)
	sm.mu.Unlock()

	var errs []error
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			sm.logger.Warn("Shutdown timeout reached, skipping remaining steps")
			errs = append(errs, fmt.Errorf("shutdown interrupted before %s: %w", step.name, err))
			break
		}

		logger := sm.logger.WithField("step", step.name)
		if err := step.fn(ctx); err != nil {
			logger.WithError(err).Error("Shutdown step failed")
			errs = append(errs, fmt.Errorf("%s: %w", step.name, err))
			continue
		}
		logger.Debug("Shutdown step complete")
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}
	sm.logger.Info("Graceful shutdown complete")
	return nil
}
