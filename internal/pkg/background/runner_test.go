package background

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRunner_Go_RunsTask(t *testing.T) {
	r := NewRunner(zap.NewNop(), 0)

	var ran atomic.Bool
	r.Go("test-task", func(ctx context.Context) error {
		ran.Store(true)
		return nil
	})

	require.NoError(t, r.Wait(context.Background()))
	assert.True(t, ran.Load())
}

func TestRunner_Go_RecoversPanic(t *testing.T) {
	r := NewRunner(zap.NewNop(), 0)

	r.Go("panicking-task", func(ctx context.Context) error {
		panic("boom")
	})

	// Wait should return normally despite the panic
	require.NoError(t, r.Wait(context.Background()))
}

func TestRunner_Go_SwallowsError(t *testing.T) {
	r := NewRunner(zap.NewNop(), 0)

	r.Go("failing-task", func(ctx context.Context) error {
		return errors.New("task failed")
	})

	require.NoError(t, r.Wait(context.Background()))
}

func TestRunner_Go_AppliesTimeout(t *testing.T) {
	r := NewRunner(zap.NewNop(), 10*time.Millisecond)

	deadline := make(chan bool, 1)
	r.Go("timed-task", func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		deadline <- ok
		return nil
	})

	require.NoError(t, r.Wait(context.Background()))
	assert.True(t, <-deadline)
}

func TestRunner_Wait_HonorsContext(t *testing.T) {
	r := NewRunner(zap.NewNop(), 0)

	release := make(chan struct{})
	r.Go("slow-task", func(ctx context.Context) error {
		<-release
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := r.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.NoError(t, r.Wait(context.Background()))
}
