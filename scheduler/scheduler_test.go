package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddValidation(t *testing.T) {
	s := New(nil)
	noop := func(ctx context.Context) error { return nil }

	assert.Error(t, s.Add(Task{Interval: time.Second, Run: noop}))
	assert.Error(t, s.Add(Task{Name: "x", Interval: time.Second}))
	assert.Error(t, s.Add(Task{Name: "x", Run: noop}))
	require.NoError(t, s.Add(Task{Name: "x", Interval: time.Second, Run: noop}))
	assert.Equal(t, []string{"x"}, s.Tasks())
}

func TestStartRunsImmediatelyAndRepeats(t *testing.T) {
	s := New(nil)
	var runs atomic.Int32

	require.NoError(t, s.Add(Task{
		Name:     "tick",
		Interval: 20 * time.Millisecond,
		Run: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 110*time.Millisecond)
	defer cancel()
	require.NoError(t, s.Start(ctx))

	assert.GreaterOrEqual(t, runs.Load(), int32(3))
}

func TestTaskNeverOverlapsItself(t *testing.T) {
	s := New(nil)
	var (
		active  atomic.Int32
		overlap atomic.Bool
	)

	require.NoError(t, s.Add(Task{
		Name:     "slow",
		Interval: 5 * time.Millisecond,
		Run: func(ctx context.Context) error {
			if active.Add(1) > 1 {
				overlap.Store(true)
			}
			time.Sleep(20 * time.Millisecond)
			active.Add(-1)
			return nil
		},
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	require.NoError(t, s.Start(ctx))

	assert.False(t, overlap.Load())
}

func TestFailingAndPanickingTasksKeepRunning(t *testing.T) {
	s := New(nil)
	var mu sync.Mutex
	counts := map[string]int{}
	record := func(name string) {
		mu.Lock()
		counts[name]++
		mu.Unlock()
	}

	require.NoError(t, s.Add(Task{Name: "fails", Interval: 15 * time.Millisecond, Run: func(ctx context.Context) error {
		record("fails")
		return errors.New("boom")
	}}))
	require.NoError(t, s.Add(Task{Name: "panics", Interval: 15 * time.Millisecond, Run: func(ctx context.Context) error {
		record("panics")
		panic("bad cycle")
	}}))

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()
	require.NoError(t, s.Start(ctx))

	mu.Lock()
	defer mu.Unlock()
	assert.GreaterOrEqual(t, counts["fails"], 2)
	assert.GreaterOrEqual(t, counts["panics"], 2)
}

func TestStartTwice(t *testing.T) {
	s := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, s.Start(ctx))
	assert.Error(t, s.Start(ctx))
	assert.Error(t, s.Add(Task{Name: "late", Interval: time.Second, Run: func(ctx context.Context) error { return nil }}))
}
