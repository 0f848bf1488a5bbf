package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"courtwatch/internal/schedule"
	"courtwatch/internal/source"
)

type memRunStates struct {
	mu sync.Mutex
	m  map[string]time.Time
}

func (s *memRunStates) LastRun(_ context.Context, name string) (*time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if at, ok := s.m[name]; ok {
		return &at, nil
	}
	return nil, nil
}

func (s *memRunStates) RecordRun(_ context.Context, name string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.m == nil {
		s.m = map[string]time.Time{}
	}
	s.m[name] = at
	return nil
}

type stubFetcher struct {
	name     string
	inserted int
	err      error
}

func (f *stubFetcher) Name() string { return f.name }

func (f *stubFetcher) Policy() schedule.Policy { return schedule.Policy{DefaultMinutes: 15} }

func (f *stubFetcher) Fetch(context.Context) (int, error) { return f.inserted, f.err }

func TestRunAllIsolatesFailures(t *testing.T) {
	states := &memRunStates{}
	runner := source.NewRunner(schedule.NewGate(states, nil), discardLogger())

	registry := source.NewRegistry()
	registry.Register(&stubFetcher{name: "alpha", inserted: 2})
	registry.Register(&stubFetcher{name: "beta", err: errors.New("connection refused")})
	registry.Register(&stubFetcher{name: "gamma", inserted: 1})

	in := NewIngest(registry, runner, discardLogger())
	results := in.RunAll(context.Background())

	require.Len(t, results, 3)
	require.Equal(t, 2, results[0].Inserted)
	require.Error(t, results[1].Err)
	require.NoError(t, results[2].Err)
	require.Equal(t, 1, results[2].Inserted)

	// every attempt stamped its run state, the failed one included
	for _, name := range []string{"alpha", "beta", "gamma"} {
		last, err := states.LastRun(context.Background(), name)
		require.NoError(t, err)
		require.NotNil(t, last, name)
	}
}

func TestRunOne(t *testing.T) {
	states := &memRunStates{}
	runner := source.NewRunner(schedule.NewGate(states, nil), discardLogger())

	registry := source.NewRegistry()
	registry.Register(&stubFetcher{name: "alpha", inserted: 3})

	in := NewIngest(registry, runner, discardLogger())

	res, err := in.RunOne(context.Background(), "alpha")
	require.NoError(t, err)
	require.Equal(t, 3, res.Inserted)

	_, err = in.RunOne(context.Background(), "missing")
	require.Error(t, err)
}
