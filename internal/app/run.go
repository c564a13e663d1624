package app

import (
	"context"
	"fmt"
	"time"

	"github.com/Francii-B/Phylign-Fulgor/internal/artifact"
	"github.com/Francii-B/Phylign-Fulgor/internal/ctxlog"
	"github.com/Francii-B/Phylign-Fulgor/internal/executor"
	"github.com/Francii-B/Phylign-Fulgor/internal/fetch"
	"github.com/Francii-B/Phylign-Fulgor/internal/fsutil"
	"github.com/Francii-B/Phylign-Fulgor/internal/plan"
	"github.com/Francii-B/Phylign-Fulgor/internal/stage"
)

// Run executes the pipeline end to end. It returns an error when the run as
// a whole must be reported as failed: configuration/graph errors before any
// unit executes, or any requested summary failing to materialize.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	logger := a.logger

	queries, err := fsutil.FindQueryFiles(a.cfg.Pipeline.QueriesDir)
	if err != nil {
		return fmt.Errorf("discovering query files: %w", err)
	}
	queryNames := fsutil.Names(queries)
	logger.Info("Run starting.",
		"batches", len(a.cfg.Pipeline.Batches), "query_files", len(queryNames))

	store, err := artifact.NewStore(a.cfg.Pipeline.Workdir)
	if err != nil {
		return err
	}
	if err := store.ReapStale(); err != nil {
		return fmt.Errorf("reaping stale temp files: %w", err)
	}

	var layout artifact.Layout
	units := stage.Build(ctx, layout, a.cfg.Pipeline.Batches, queryNames, stage.Options{
		MatchThreads: a.cfg.Pipeline.MatchThreads,
		AlignThreads: a.cfg.Pipeline.AlignThreads,
		QuerySources: queries,
	})

	// Pre-existing match artifacts keep their protection across runs.
	for _, u := range units {
		if u.Protected && store.Complete(u.Output) {
			store.Protect(u.Output)
		}
	}

	if a.appCfg.Stats {
		return a.runStats(ctx, store, layout, queryNames)
	}

	requested := make([]string, 0, len(queryNames))
	for _, q := range queryNames {
		requested = append(requested, layout.Summary(q))
	}

	p, err := plan.Resolve(ctx, units, store, requested, a.appCfg.Force)
	if err != nil {
		return fmt.Errorf("resolving plan: %w", err)
	}

	if len(p.Units) == 0 {
		logger.Info("All requested artifacts are complete; nothing to execute.")
		fmt.Fprintln(a.outW, "Nothing to do: all summaries are up to date.")
		return nil
	}

	if a.appCfg.DryRun {
		fmt.Fprintf(a.outW, "Plan: %d unit(s)\n", len(p.Units))
		for _, u := range p.Units {
			fmt.Fprintf(a.outW, "  %s\n", u.ID())
		}
		return nil
	}

	temporaries := make(map[string]bool)
	for _, u := range units {
		if u.Temporary {
			temporaries[u.Output] = true
		}
	}

	downloader := fetch.NewDownloader(a.cfg.Pipeline.DownloadRetries, 30*time.Minute)
	defer downloader.Close()

	exec := executor.New(store, a.actions(store, downloader), a.cfg.Slots(), temporaries, a.appCfg.Progress)
	logger.Info("Executing plan.", "units", len(p.Units))
	report, err := exec.Run(ctx, p)
	if err != nil {
		return fmt.Errorf("execution failed: %w", err)
	}

	return a.finalReport(p, report)
}

// finalReport checks every requested summary against the execution report
// and prints which ones failed to materialize and why. The run succeeds
// only when all requested summaries are complete.
func (a *App) finalReport(p *plan.Plan, report *executor.Report) error {
	producers := make(map[string]string) // artifact -> unit ID
	for _, u := range p.Units {
		producers[u.Output] = u.ID()
	}

	failed := 0
	for _, rel := range p.Requested {
		id, planned := producers[rel]
		if !planned {
			continue // already complete before the run
		}
		switch report.States[id] {
		case executor.Done:
			continue
		case executor.Failed:
			failed++
			fmt.Fprintf(a.outW, "FAILED %s: %v\n", rel, report.Errors[id])
		case executor.Skipped:
			failed++
			cause := report.Causes[id]
			if rootErr, ok := report.Errors[cause]; ok {
				fmt.Fprintf(a.outW, "FAILED %s: blocked by %s: %v\n", rel, cause, rootErr)
			} else {
				fmt.Fprintf(a.outW, "FAILED %s: %s\n", rel, cause)
			}
		default:
			failed++
			fmt.Fprintf(a.outW, "FAILED %s: unit %s ended in state %s\n", rel, id, report.States[id])
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d requested summaries failed", failed, len(p.Requested))
	}
	a.logger.Info("Run complete.", "summaries", len(p.Requested), "executed", report.Executed)
	fmt.Fprintf(a.outW, "All %d summaries complete.\n", len(p.Requested))
	return nil
}
