package usecase

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"courtwatch/internal/source"
)

// Ingest fans one trigger out to every registered fetcher. Fetchers run
// concurrently and a failure in one never blocks or aborts the others;
// each failure stays inside its own Result.
type Ingest struct {
	registry *source.Registry
	runner   *source.Runner
	logger   *slog.Logger
}

// NewIngest wires the fetcher registry to the gated runner.
func NewIngest(registry *source.Registry, runner *source.Runner, logger *slog.Logger) *Ingest {
	return &Ingest{registry: registry, runner: runner, logger: logger}
}

// RunAll runs every fetcher concurrently and returns one Result per
// fetcher in registration order.
func (in *Ingest) RunAll(ctx context.Context) []source.Result {
	fetchers := in.registry.All()
	results := make([]source.Result, len(fetchers))

	var g errgroup.Group
	for i, f := range fetchers {
		i, f := i, f
		g.Go(func() error {
			results[i] = in.runner.Run(ctx, f)
			return nil
		})
	}
	_ = g.Wait()

	for _, res := range results {
		if res.Err != nil {
			in.logger.Warn("fetcher failed", "fetcher", res.Name, "error", res.Err)
		}
	}
	return results
}

// RunOne runs a single fetcher by name, still subject to its cooldown.
func (in *Ingest) RunOne(ctx context.Context, name string) (source.Result, error) {
	f, err := in.registry.Resolve(name)
	if err != nil {
		return source.Result{Name: name}, err
	}
	return in.runner.Run(ctx, f), nil
}
