package serverapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"ecosystem-api/internal/logging"
)

// cleanupStack releases resources in reverse order of acquisition.
type cleanupStack struct {
	steps []cleanupStep
}

type cleanupStep struct {
	component string
	release   func(context.Context) error
}

func (s *cleanupStack) push(component string, release func(context.Context) error) {
	s.steps = append(s.steps, cleanupStep{component: component, release: release})
}

// run releases every step even when earlier ones fail, and reports all
// failures together.
func (s *cleanupStack) run(ctx context.Context, logger *logging.Logger) error {
	var errs []error
	for i := len(s.steps) - 1; i >= 0; i-- {
		step := s.steps[i]
		if logger != nil {
			logger.Info("releasing " + step.component)
		}
		err := step.release(ctx)
		if err == nil {
			continue
		}
		if logger != nil {
			logger.Warn("cleanup failed",
				slog.String("component", step.component),
				slog.String("error", err.Error()),
			)
		}
		errs = append(errs, fmt.Errorf("%s: %w", step.component, err))
	}
	return errors.Join(errs...)
}

// Shutdown releases everything Init acquired. Only the first call does any
// work; later calls return nil.
func (a *App) Shutdown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var err error
	a.shutdownOnce.Do(func() {
		a.stateMu.Lock()
		cleanup := a.cleanup
		a.started = false
		a.stateMu.Unlock()

		err = cleanup.run(ctx, a.logger)
	})
	return err
}
