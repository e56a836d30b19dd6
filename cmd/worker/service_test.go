package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/foodmart/foodmart-backend/pkg/logger"
)

type blockingRunner struct{ stopped chan struct{} }

func (b *blockingRunner) Run(ctx context.Context) error {
	<-ctx.Done()
	close(b.stopped)
	return ctx.Err()
}

type failingRunner struct{ err error }

func (f failingRunner) Run(context.Context) error { return f.err }

func TestRunStopsSiblingsWhenConsumerFails(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))

	sibling := &blockingRunner{stopped: make(chan struct{})}
	svc, err := NewService(ServiceParams{
		Logger: logger.Nop(),
		Consumers: map[string]Runner{
			"notifications": failingRunner{err: errors.New("subscription deleted")},
			"other":         sibling,
		},
	})
	require.NoError(t, err)

	err = svc.Run(context.Background())
	assert.ErrorContains(t, err, "notifications: subscription deleted")
	<-sibling.stopped
}

func TestRunReturnsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))

	ctx, cancel := context.WithCancel(context.Background())
	runner := &blockingRunner{stopped: make(chan struct{})}
	svc, err := NewService(ServiceParams{Logger: logger.Nop(), Consumers: map[string]Runner{"notifications": runner}})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()
	cancel()

	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestRunRequiresHealthyDependencies(t *testing.T) {
	svc, err := NewService(ServiceParams{
		Logger: logger.Nop(),
		Dependencies: []Dependency{
			{Name: "redis", Ping: func(context.Context) error { return errors.New("refused") }},
			{Name: "database", Ping: func(context.Context) error { return errors.New("timeout") }},
		},
		Consumers: map[string]Runner{"notifications": failingRunner{}},
	})
	require.NoError(t, err)

	err = svc.Run(context.Background())
	assert.ErrorContains(t, err, "redis ping failed")
	assert.ErrorContains(t, err, "database ping failed")
}

func TestNewServiceValidates(t *testing.T) {
	_, err := NewService(ServiceParams{Logger: logger.Nop()})
	assert.Error(t, err)
	_, err = NewService(ServiceParams{Logger: logger.Nop(), Consumers: map[string]Runner{"x": nil}})
	assert.Error(t, err)
}
