package analysis

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/rulesift/rulesift/internal/relations"
)

type sweepStats struct {
	pairs  int
	pruned int
}

// sweep walks pairs in execution order. With prune set, a rule found
// shadowed is skipped in every later comparison.
func sweep(ctx context.Context, env *relations.Env, kinds []relations.Kind, prune bool) ([]relations.Relationship, sweepStats, error) {
	var (
		out      []relations.Relationship
		stats    sweepStats
		shadowed = make([]bool, len(env.Subjects))
	)

	for i := range env.Subjects {
		if err := ctx.Err(); err != nil {
			return nil, sweepStats{}, err
		}
		if prune && shadowed[i] {
			stats.pruned++
			continue
		}
		a := env.Subjects[i]
		for j := i + 1; j < len(env.Subjects); j++ {
			if prune && shadowed[j] {
				continue
			}
			found := relations.Detect(env, kinds, a, env.Subjects[j])
			stats.pairs++
			for _, rel := range found {
				if rel.Kind == relations.Shadowing {
					shadowed[j] = true
				}
			}
			out = append(out, found...)
		}
	}

	return out, stats, nil
}

// sweepParallel evaluates every pair without pruning. Rows are computed
// concurrently and joined in execution order.
func sweepParallel(ctx context.Context, env *relations.Env, kinds []relations.Kind, workers int) ([]relations.Relationship, sweepStats, error) {
	rows := make([][]relations.Relationship, len(env.Subjects))
	pairs := make([]int, len(env.Subjects))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range env.Subjects {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("%w: %v", ErrInternal, r)
				}
			}()
			if err := gctx.Err(); err != nil {
				return err
			}
			a := env.Subjects[i]
			for j := i + 1; j < len(env.Subjects); j++ {
				rows[i] = append(rows[i], relations.Detect(env, kinds, a, env.Subjects[j])...)
				pairs[i]++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, sweepStats{}, err
	}
	if err := ctx.Err(); err != nil {
		return nil, sweepStats{}, err
	}

	var out []relations.Relationship
	var stats sweepStats
	for i := range rows {
		out = append(out, rows[i]...)
		stats.pairs += pairs[i]
	}
	return out, stats, nil
}
