package stage

import (
	"context"

	"github.com/Francii-B/Phylign-Fulgor/internal/artifact"
	"github.com/Francii-B/Phylign-Fulgor/internal/ctxlog"
)

// Options carries the per-stage tuning knobs the builder stamps onto units.
type Options struct {
	// MatchThreads is the thread hint for each membership-query invocation.
	MatchThreads int
	// AlignThreads is the thread hint for each aligner invocation.
	AlignThreads int
	// QuerySources maps each query-file name to the absolute path of its raw
	// input file.
	QuerySources map[string]string
}

// Build expands the stage templates into the complete unit set for the given
// batches and query files: one unit per batch for batch-keyed stages, one per
// query file for query-keyed stages, and the full cross product for
// pair-keyed stages. Query-keyed fan-in stages declare every pair-keyed
// output of the preceding stage for their query file as input.
//
// An empty batch or query list yields no pair-keyed units; the run then
// trivially succeeds with no output.
func Build(ctx context.Context, layout artifact.Layout, batches, queries []string, opts Options) []*Unit {
	logger := ctxlog.FromContext(ctx)

	units := make([]*Unit, 0, 3*len(batches)+3*len(queries)+2*len(batches)*len(queries))

	// Batch-keyed stages.
	for _, b := range batches {
		units = append(units,
			unit(DownloadAsm, b, "", nil, layout.AsmArchive(b), opts),
			unit(DownloadIndex, b, "", nil, layout.IndexArchive(b), opts),
			unit(Decompress, b, "",
				[]string{layout.IndexArchive(b)},
				layout.DecompressedIndex(b), opts),
		)
	}

	// Query-keyed normalization plus the pair-keyed cross products and the
	// fan-in stages that consume them.
	for _, q := range queries {
		fix := unit(FixQuery, q, "", nil, layout.FixedQuery(q), opts)
		fix.Source = opts.QuerySources[q]
		units = append(units, fix)

		matchOutputs := make([]string, 0, len(batches))
		for _, b := range batches {
			u := unit(Match, b, q,
				[]string{layout.DecompressedIndex(b), layout.FixedQuery(q)},
				layout.MatchOutput(b, q), opts)
			units = append(units, u)
			matchOutputs = append(matchOutputs, u.Output)
		}

		// The fixed query is input[0]; the per-batch match outputs follow in
		// batch order, which fixes the fan-in merge order.
		filterInputs := append([]string{layout.FixedQuery(q)}, matchOutputs...)
		units = append(units, unit(Filter, q, "", filterInputs, layout.FilteredQuery(q), opts))

		alignOutputs := make([]string, 0, len(batches))
		for _, b := range batches {
			u := unit(Align, b, q,
				[]string{layout.AsmArchive(b), layout.FilteredQuery(q)},
				layout.Alignment(b, q), opts)
			units = append(units, u)
			alignOutputs = append(alignOutputs, u.Output)
		}

		units = append(units, unit(Aggregate, q, "", alignOutputs, layout.Summary(q), opts))
	}

	logger.Debug("Stage expansion complete.",
		"batches", len(batches), "queries", len(queries), "units", len(units))
	return units
}

// unit binds one stage template to its keys. The first key argument is the
// batch for batch- and pair-keyed stages and the query for query-keyed ones.
func unit(k Kind, key1, key2 string, inputs []string, output string, opts Options) *Unit {
	u := &Unit{
		Kind:     k,
		Inputs:   inputs,
		Output:   output,
		Class:    k.Class(),
		Priority: k.Priority(),
	}
	switch k.Shape() {
	case BatchKey:
		u.Batch = key1
	case QueryKey:
		u.Query = key1
	case PairKey:
		u.Batch, u.Query = key1, key2
	}
	switch k {
	case Match:
		u.Threads = opts.MatchThreads
		u.Protected = true
	case Align:
		u.Threads = opts.AlignThreads
	case Decompress:
		u.Temporary = true
	}
	return u
}
