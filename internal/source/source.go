package source

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"courtwatch/internal/schedule"
)

// Fetcher is one polling adapter for a single external source. Fetch
// retrieves, parses, filters, and upserts; it returns how many records
// it inserted.
type Fetcher interface {
	Name() string
	Policy() schedule.Policy
	Fetch(ctx context.Context) (int, error)
}

// Registry keeps a mapping from fetcher names to their implementations.
type Registry struct {
	fetchers []Fetcher
	byName   map[string]Fetcher
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: map[string]Fetcher{}}
}

// Register adds or replaces a fetcher implementation.
func (r *Registry) Register(f Fetcher) {
	if _, ok := r.byName[f.Name()]; !ok {
		r.fetchers = append(r.fetchers, f)
	}
	r.byName[f.Name()] = f
}

// Resolve returns a fetcher by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Fetcher, error) {
	if f, ok := r.byName[name]; ok {
		return f, nil
	}
	return nil, fmt.Errorf("fetcher %s is not registered", name)
}

// All returns fetchers in registration order.
func (r *Registry) All() []Fetcher {
	return r.fetchers
}

// Result is the per-fetcher outcome of one attempt.
type Result struct {
	Name     string
	Inserted int
	Skipped  bool
	Err      error
}

// Runner wraps a fetch attempt with the cooldown gate and the
// unconditional run-state stamp.
type Runner struct {
	gate   *schedule.Gate
	logger *slog.Logger
}

// NewRunner wires the cooldown gate.
func NewRunner(gate *schedule.Gate, logger *slog.Logger) *Runner {
	return &Runner{gate: gate, logger: logger}
}

// Run gates the fetcher on its cooldown policy and, once past the gate,
// guarantees exactly one RecordRun per attempt regardless of how the
// fetch itself ends.
func (r *Runner) Run(ctx context.Context, f Fetcher) Result {
	name := f.Name()

	ok, err := r.gate.ShouldRun(ctx, name, f.Policy())
	if err != nil {
		return Result{Name: name, Err: err}
	}
	if !ok {
		r.debug("fetcher in cooldown", "fetcher", name)
		return Result{Name: name, Skipped: true}
	}

	started := time.Now()
	inserted, fetchErr := f.Fetch(ctx)

	if err := r.gate.RecordRun(ctx, name); err != nil {
		r.warn("run-state stamp failed", "fetcher", name, "error", err)
	}

	if fetchErr != nil {
		return Result{Name: name, Inserted: inserted, Err: fetchErr}
	}

	r.debug("fetcher done", "fetcher", name,
		"inserted", inserted, "elapsed", time.Since(started))
	return Result{Name: name, Inserted: inserted}
}

func (r *Runner) debug(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}
}

func (r *Runner) warn(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Warn(msg, args...)
	}
}
