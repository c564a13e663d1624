// Package filter implements the fan-in stage between approximate matching
// and exact alignment: it reads every per-batch match artifact for one query
// file, keeps each read's best matches, and emits the filtered FASTA that
// the aligner consumes.
package filter

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/exascience/pargo/parallel"
	"github.com/shenwei356/bio/seqio/fastx"

	"github.com/Francii-B/Phylign-Fulgor/internal/cobs"
	"github.com/Francii-B/Phylign-Fulgor/internal/ctxlog"
)

// Run merges the match artifacts at matchPaths (one per batch, in batch
// order), selects each read's matches with Select, and writes the reads of
// fixedQuery that kept at least one match to w as FASTA, each header
// annotated with its matched references.
//
// keep bounds matches per read: the top keep by k-mer count plus any match
// tied with the keep-th score; keep = 0 retains everything. Every match
// artifact must be present; a missing one fails the whole unit rather than
// silently filtering against partial evidence.
func Run(ctx context.Context, matchPaths []string, fixedQuery string, keep int, w io.Writer) error {
	logger := ctxlog.FromContext(ctx)

	// Parse the per-batch files in parallel; each slot of the results slice
	// belongs to one input file, so no locking is needed.
	perFile := make([]map[string][]cobs.Match, len(matchPaths))
	errs := make([]error, len(matchPaths))
	parallel.Range(0, len(matchPaths), 0, func(low, high int) {
		for i := low; i < high; i++ {
			perFile[i], errs[i] = readMatches(matchPaths[i])
		}
	})
	for i, err := range errs {
		if err != nil {
			return fmt.Errorf("reading matches %s: %w", matchPaths[i], err)
		}
	}

	// Merge in batch order so the selection input, and therefore the output
	// bytes, are deterministic.
	merged := make(map[string][]cobs.Match)
	for _, m := range perFile {
		for qname, matches := range m {
			merged[qname] = append(merged[qname], matches...)
		}
	}
	for qname, matches := range merged {
		merged[qname] = Select(matches, keep)
	}

	reader, err := fastx.NewReader(nil, fixedQuery, "")
	if err != nil {
		return fmt.Errorf("opening fixed query %s: %w", fixedQuery, err)
	}
	defer reader.Close()

	bw := bufio.NewWriter(w)
	total, kept := 0, 0
	for {
		record, err := reader.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("reading fixed query %s: %w", fixedQuery, err)
		}
		total++

		qname, _, _ := strings.Cut(string(record.Name), " ")
		matches := merged[qname]
		if len(matches) == 0 {
			continue
		}
		kept++

		refs := make([]string, len(matches))
		for i, m := range matches {
			refs[i] = m.Ref
		}
		fmt.Fprintf(bw, ">%s %s\n%s\n", qname, strings.Join(refs, ","), record.Seq.Seq)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("writing filtered query: %w", err)
	}

	logger.Debug("Filter complete.", "reads", total, "kept", kept)
	return nil
}

// readMatches parses one match artifact into a per-read match map. Reads
// without matches are dropped here; they cannot contribute to filtering.
func readMatches(path string) (map[string][]cobs.Match, error) {
	rc, err := cobs.Open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	out := make(map[string][]cobs.Match)
	r := cobs.NewReader(rc)
	for {
		rec, err := r.Read()
		if err != nil {
			if err == io.EOF {
				return out, nil
			}
			return nil, err
		}
		if len(rec.Matches) > 0 {
			out[rec.Query] = append(out[rec.Query], rec.Matches...)
		}
	}
}

// Select returns the matches to keep for one read: the keep best by k-mer
// count plus every match tied with the keep-th score, or all of them when
// keep is zero. Ordering of the result is by descending k-mer count, ties by
// reference name, so downstream output is reproducible.
func Select(matches []cobs.Match, keep int) []cobs.Match {
	sorted := make([]cobs.Match, len(matches))
	copy(sorted, matches)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Kmers != sorted[j].Kmers {
			return sorted[i].Kmers > sorted[j].Kmers
		}
		return sorted[i].Ref < sorted[j].Ref
	})

	if keep <= 0 || len(sorted) <= keep {
		return sorted
	}

	// Keep ties with the keep-th score.
	cutoff := sorted[keep-1].Kmers
	end := keep
	for end < len(sorted) && sorted[end].Kmers == cutoff {
		end++
	}
	return sorted[:end]
}
