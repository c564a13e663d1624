// Package stats summarizes the protected match artifacts without running
// the pipeline: per batch and overall, how many queries were seen, how many
// matched, how many distinct references were hit, and how many (query,
// reference) pairs exist.
package stats

import (
	"context"
	"fmt"
	"io"

	"github.com/exascience/pargo/parallel"

	"github.com/Francii-B/Phylign-Fulgor/internal/cobs"
	"github.com/Francii-B/Phylign-Fulgor/internal/ctxlog"
)

// BatchReport is the summary for one match artifact.
type BatchReport struct {
	Batch          string
	Queries        int // query reads seen in the stream
	MatchedQueries int // query reads with at least one match
	Genomes        int // distinct matched references
	Pairs          int // (query, reference) match pairs
}

// Report aggregates all batch reports for one query file.
type Report struct {
	Batches        []BatchReport
	Queries        int // distinct query reads across all batches
	MatchedQueries int // distinct query reads with at least one match anywhere
	BatchesWithHit int
}

// fileStats is the per-artifact scan result before aggregation.
type fileStats struct {
	report  BatchReport
	queries map[string]bool
	matched map[string]bool
}

// Collect parses the match artifacts at paths (one per entry of batches, in
// the same order) in parallel and aggregates them.
func Collect(ctx context.Context, batches, paths []string) (*Report, error) {
	logger := ctxlog.FromContext(ctx)
	if len(batches) != len(paths) {
		return nil, fmt.Errorf("batch/path mismatch: %d batches, %d paths", len(batches), len(paths))
	}

	perFile := make([]fileStats, len(paths))
	errs := make([]error, len(paths))
	parallel.Range(0, len(paths), 0, func(low, high int) {
		for i := low; i < high; i++ {
			perFile[i], errs[i] = scanFile(batches[i], paths[i])
		}
	})
	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", paths[i], err)
		}
	}

	report := &Report{}
	allQueries := make(map[string]bool)
	allMatched := make(map[string]bool)
	for _, fs := range perFile {
		report.Batches = append(report.Batches, fs.report)
		if fs.report.Pairs > 0 {
			report.BatchesWithHit++
		}
		for q := range fs.queries {
			allQueries[q] = true
		}
		for q := range fs.matched {
			allMatched[q] = true
		}
	}
	report.Queries = len(allQueries)
	report.MatchedQueries = len(allMatched)

	logger.Debug("Statistics collected.", "batches", len(batches), "queries", report.Queries)
	return report, nil
}

// Render writes the report as a tab-separated table.
func (r *Report) Render(w io.Writer) {
	fmt.Fprintln(w, "batch\tqueries\tmatched\tgenomes\tpairs")
	for _, b := range r.Batches {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\n",
			b.Batch, b.Queries, b.MatchedQueries, b.Genomes, b.Pairs)
	}
	fmt.Fprintf(w, "total\t%d\t%d\t(batches with hits: %d/%d)\n",
		r.Queries, r.MatchedQueries, r.BatchesWithHit, len(r.Batches))
}

func scanFile(batch, path string) (fileStats, error) {
	fs := fileStats{
		queries: make(map[string]bool),
		matched: make(map[string]bool),
	}
	fs.report.Batch = batch

	rc, err := cobs.Open(path)
	if err != nil {
		return fs, err
	}
	defer rc.Close()

	genomes := make(map[string]bool)
	r := cobs.NewReader(rc)
	for {
		rec, readErr := r.Read()
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return fs, readErr
		}
		fs.queries[rec.Query] = true
		if len(rec.Matches) > 0 {
			fs.matched[rec.Query] = true
		}
		for _, m := range rec.Matches {
			genomes[m.Ref] = true
			fs.report.Pairs++
		}
	}

	fs.report.Queries = len(fs.queries)
	fs.report.MatchedQueries = len(fs.matched)
	fs.report.Genomes = len(genomes)
	return fs, nil
}
