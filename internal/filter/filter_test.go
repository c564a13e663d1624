package filter

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Francii-B/Phylign-Fulgor/internal/cobs"
)

func TestSelect(t *testing.T) {
	matches := []cobs.Match{
		{Ref: "e", Kmers: 10},
		{Ref: "a", Kmers: 50},
		{Ref: "c", Kmers: 30},
		{Ref: "b", Kmers: 30},
		{Ref: "d", Kmers: 30},
	}

	cases := []struct {
		name string
		keep int
		want []cobs.Match
	}{
		{
			name: "zero keeps everything sorted",
			keep: 0,
			want: []cobs.Match{
				{Ref: "a", Kmers: 50}, {Ref: "b", Kmers: 30}, {Ref: "c", Kmers: 30},
				{Ref: "d", Kmers: 30}, {Ref: "e", Kmers: 10},
			},
		},
		{
			name: "top one",
			keep: 1,
			want: []cobs.Match{{Ref: "a", Kmers: 50}},
		},
		{
			name: "ties at the cutoff survive",
			keep: 2,
			want: []cobs.Match{
				{Ref: "a", Kmers: 50}, {Ref: "b", Kmers: 30}, {Ref: "c", Kmers: 30},
				{Ref: "d", Kmers: 30},
			},
		},
		{
			name: "keep beyond length",
			keep: 10,
			want: []cobs.Match{
				{Ref: "a", Kmers: 50}, {Ref: "b", Kmers: 30}, {Ref: "c", Kmers: 30},
				{Ref: "d", Kmers: 30}, {Ref: "e", Kmers: 10},
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Select(matches, tc.keep))
		})
	}
}

func TestSelectDoesNotMutateInput(t *testing.T) {
	matches := []cobs.Match{{Ref: "b", Kmers: 1}, {Ref: "a", Kmers: 2}}
	Select(matches, 1)
	assert.Equal(t, []cobs.Match{{Ref: "b", Kmers: 1}, {Ref: "a", Kmers: 2}}, matches)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRunFiltersAndAnnotates(t *testing.T) {
	dir := t.TempDir()

	// Two per-batch match artifacts; read2 matched nothing anywhere.
	batchA := writeFile(t, dir, "a.txt",
		"*read1\t2\n0001_refA\t40\n0002_refB\t10\n*read2\t0\n*read3\t1\n0003_refC\t5\n")
	batchB := writeFile(t, dir, "b.txt",
		"*read1\t1\n0004_refD\t40\n*read2\t0\n*read3\t0\n")

	fixed := writeFile(t, dir, "reads.fa",
		">read1\nACGTACGT\n>read2\nGGGGCCCC\n>read3\nTTTTAAAA\n")

	var buf bytes.Buffer
	err := Run(context.Background(), []string{batchA, batchB}, fixed, 2, &buf)
	require.NoError(t, err)

	// read1 keeps the two 40-kmer matches (refB at 10 falls off), read2 is
	// dropped entirely, read3 keeps its single match.
	want := ">read1 refA,refD\nACGTACGT\n" +
		">read3 refC\nTTTTAAAA\n"
	assert.Equal(t, want, buf.String())
}

func TestRunKeepZeroRetainsAllMatches(t *testing.T) {
	dir := t.TempDir()
	matches := writeFile(t, dir, "a.txt", "*read1\t2\n0001_refB\t10\n0002_refA\t10\n")
	fixed := writeFile(t, dir, "reads.fa", ">read1\nACGT\n")

	var buf bytes.Buffer
	err := Run(context.Background(), []string{matches}, fixed, 0, &buf)
	require.NoError(t, err)
	assert.Equal(t, ">read1 refA,refB\nACGT\n", buf.String())
}

func TestRunFailsOnMissingMatchArtifact(t *testing.T) {
	dir := t.TempDir()
	fixed := writeFile(t, dir, "reads.fa", ">read1\nACGT\n")

	var buf bytes.Buffer
	err := Run(context.Background(), []string{filepath.Join(dir, "absent.txt")}, fixed, 0, &buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading matches")
}
