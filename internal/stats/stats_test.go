package stats

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeMatches(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCollectAggregatesAcrossBatches(t *testing.T) {
	dir := t.TempDir()
	a := writeMatches(t, dir, "a.txt",
		"*read1\t2\n0001_refA\t40\n0002_refB\t10\n*read2\t0\n")
	b := writeMatches(t, dir, "b.txt",
		"*read1\t1\n0003_refA\t7\n*read2\t1\n0004_refC\t3\n")
	c := writeMatches(t, dir, "c.txt",
		"*read1\t0\n*read2\t0\n")

	report, err := Collect(context.Background(),
		[]string{"generaA__01", "generaB__02", "generaC__03"},
		[]string{a, b, c})
	require.NoError(t, err)

	require.Len(t, report.Batches, 3)

	assert.Equal(t, BatchReport{
		Batch: "generaA__01", Queries: 2, MatchedQueries: 1, Genomes: 2, Pairs: 2,
	}, report.Batches[0])
	assert.Equal(t, BatchReport{
		Batch: "generaB__02", Queries: 2, MatchedQueries: 2, Genomes: 2, Pairs: 2,
	}, report.Batches[1])
	assert.Equal(t, BatchReport{
		Batch: "generaC__03", Queries: 2, MatchedQueries: 0, Genomes: 0, Pairs: 0,
	}, report.Batches[2])

	assert.Equal(t, 2, report.Queries)
	assert.Equal(t, 2, report.MatchedQueries, "read2 matched in batch B only")
	assert.Equal(t, 2, report.BatchesWithHit)
}

func TestCollectRejectsMismatchedLists(t *testing.T) {
	_, err := Collect(context.Background(), []string{"generaA__01"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mismatch")
}

func TestCollectFailsOnUnreadableArtifact(t *testing.T) {
	_, err := Collect(context.Background(),
		[]string{"generaA__01"},
		[]string{filepath.Join(t.TempDir(), "absent.txt")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scanning")
}

func TestRenderTable(t *testing.T) {
	report := &Report{
		Batches: []BatchReport{
			{Batch: "generaA__01", Queries: 2, MatchedQueries: 1, Genomes: 2, Pairs: 2},
		},
		Queries:        2,
		MatchedQueries: 1,
		BatchesWithHit: 1,
	}

	var buf bytes.Buffer
	report.Render(&buf)

	out := buf.String()
	assert.Contains(t, out, "batch\tqueries\tmatched\tgenomes\tpairs")
	assert.Contains(t, out, "generaA__01\t2\t1\t2\t2")
	assert.Contains(t, out, "batches with hits: 1/1")
}
