package pipeline

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Branch names one pipeline in a parallel composition
type Branch struct {
	Name     string
	Pipeline *Pipeline
}

// RunParallel runs the branches concurrently over the same request input and
// joins the results by branch name. The branches share no mutable state; the
// combined result becomes available only once every branch completes. The
// composition is fail-fast: if any branch fails the whole call fails and no
// partial results are surfaced, even for branches that had already finished.
func RunParallel(ctx context.Context, req Request, branches ...Branch) (map[string]string, error) {
	if len(branches) == 0 {
		return nil, errors.New("parallel run requires at least one branch")
	}

	g, gctx := errgroup.WithContext(ctx)

	var mu sync.Mutex
	results := make(map[string]string, len(branches))

	for _, b := range branches {
		b := b
		g.Go(func() error {
			res, err := b.Pipeline.Run(gctx, req)
			if err != nil {
				return err
			}
			mu.Lock()
			results[b.Name] = res.Output
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
