package scheduler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func runAsync(ctx context.Context, s *Scheduler) <-chan error {
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	return done
}

func TestScheduler_Interval(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var calls atomic.Int32
	s := New(func(ctx context.Context) error {
		if calls.Add(1) == 3 {
			cancel()
		}
		return nil
	}, WithInterval(5*time.Millisecond))

	select {
	case err := <-runAsync(ctx, s):
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.EqualValues(t, 3, calls.Load())
	assert.EqualValues(t, 3, s.Cycles())
}

func TestScheduler_TriggerAndFailures(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ran := make(chan struct{}, 4)
	s := New(func(ctx context.Context) error {
		ran <- struct{}{}
		return errors.New("source unavailable")
	}, WithRunAtStart(true))
	done := runAsync(ctx, s)

	<-ran
	s.Trigger()
	<-ran
	cancel()
	require.NoError(t, <-done)
	assert.EqualValues(t, 2, s.Cycles())
	assert.EqualValues(t, 2, s.Failures())
}

func TestScheduler_Watch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	dir := t.TempDir()
	path := filepath.Join(dir, "patients.db")
	require.NoError(t, os.WriteFile(path, []byte("v0"), 0o644))

	ran := make(chan struct{}, 16)
	s := New(func(ctx context.Context) error {
		ran <- struct{}{}
		return nil
	}, WithWatch(path), WithDebounce(10*time.Millisecond))
	done := runAsync(ctx, s)

	deadline := time.After(5 * time.Second)
	for observed := false; !observed; {
		require.NoError(t, os.WriteFile(path, []byte(time.Now().String()), 0o644))
		select {
		case <-ran:
			observed = true
		case <-time.After(50 * time.Millisecond):
		case <-deadline:
			t.Fatal("no cycle after file change")
		}
	}
	cancel()
	require.NoError(t, <-done)
}

func TestScheduler_WatchMissingDirectory(t *testing.T) {
	s := New(func(ctx context.Context) error { return nil },
		WithWatch(filepath.Join(t.TempDir(), "missing", "patients.db")))
	assert.Error(t, s.Run(context.Background()))
}

func TestScheduler_Relevant(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "patients.db")
	s := New(nil, WithWatch(path))
	s.watched = map[string]bool{path: true}

	assert.True(t, s.relevant(fsnotify.Event{Name: path, Op: fsnotify.Write}))
	assert.True(t, s.relevant(fsnotify.Event{Name: path, Op: fsnotify.Rename}))
	assert.False(t, s.relevant(fsnotify.Event{Name: path, Op: fsnotify.Chmod}))
	assert.False(t, s.relevant(fsnotify.Event{Name: filepath.Join(dir, "other.db"), Op: fsnotify.Write}))
}
