package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/foodmart/foodmart-backend/pkg/logger"
)

// Runner is a long-lived consumer loop.
type Runner interface {
	Run(ctx context.Context) error
}

// Dependency is pinged once before any consumer starts.
type Dependency struct {
	Name string
	Ping func(context.Context) error
}

type ServiceParams struct {
	Logger       *logger.Logger
	Dependencies []Dependency
	Consumers    map[string]Runner
}

// Service supervises the worker's consumers; the first one to stop ends the process.
type Service struct {
	logg      *logger.Logger
	deps      []Dependency
	consumers map[string]Runner
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if len(params.Consumers) == 0 {
		return nil, errors.New("at least one consumer is required")
	}
	for name, c := range params.Consumers {
		if c == nil {
			return nil, fmt.Errorf("consumer %s is nil", name)
		}
	}
	return &Service{logg: params.Logger, deps: params.Dependencies, consumers: params.Consumers}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	var err error
	for _, dep := range s.deps {
		if pingErr := dep.Ping(ctx); pingErr != nil {
			s.logg.Error(ctx, fmt.Sprintf("%s ping failed", dep.Name), pingErr)
			err = multierr.Append(err, fmt.Errorf("%s ping failed: %w", dep.Name, pingErr))
		}
	}
	if err == nil {
		s.logg.Info(ctx, "all worker dependencies are ready")
	}
	return err
}

// Run blocks until ctx is cancelled or a consumer exits. The remaining consumers are
// cancelled and awaited before returning.
func (s *Service) Run(ctx context.Context) error {
	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type exit struct {
		name string
		err  error
	}
	exits := make(chan exit, len(s.consumers))
	for name, c := range s.consumers {
		go func() {
			exits <- exit{name: name, err: c.Run(runCtx)}
		}()
	}

	first := <-exits
	cancel()
	for range len(s.consumers) - 1 {
		<-exits
	}

	if ctx.Err() != nil {
		s.logg.Info(ctx, "worker context canceled")
		return ctx.Err()
	}
	if first.err != nil && !errors.Is(first.err, context.Canceled) {
		s.logg.Error(s.logg.WithField(ctx, "consumer", first.name), "consumer stopped unexpectedly", first.err)
		return fmt.Errorf("%s: %w", first.name, first.err)
	}
	return fmt.Errorf("consumer %s exited", first.name)
}
