package app

import (
	"context"
	"fmt"

	"github.com/Francii-B/Phylign-Fulgor/internal/artifact"
	"github.com/Francii-B/Phylign-Fulgor/internal/stats"
)

// runStats summarizes the existing match artifacts per query file without
// executing any pipeline units. Batches whose match artifact is not yet
// complete are reported as pending and excluded from the scan.
func (a *App) runStats(ctx context.Context, store *artifact.Store, layout artifact.Layout, queryNames []string) error {
	for _, q := range queryNames {
		var batches, paths []string
		pending := 0
		for _, b := range a.cfg.Pipeline.Batches {
			rel := layout.MatchOutput(b, q)
			if !store.Complete(rel) {
				pending++
				continue
			}
			batches = append(batches, b)
			paths = append(paths, store.Abs(rel))
		}

		fmt.Fprintf(a.outW, "== %s (%d/%d batches matched", q, len(batches), len(a.cfg.Pipeline.Batches))
		if pending > 0 {
			fmt.Fprintf(a.outW, ", %d pending", pending)
		}
		fmt.Fprintln(a.outW, ")")

		if len(paths) == 0 {
			continue
		}
		report, err := stats.Collect(ctx, batches, paths)
		if err != nil {
			return fmt.Errorf("collecting statistics for %s: %w", q, err)
		}
		report.Render(a.outW)
	}
	return nil
}
