package aggregate

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSAM(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func gunzip(t *testing.T, compressed []byte) string {
	t.Helper()
	gz, err := gzip.NewReader(bytes.NewReader(compressed))
	require.NoError(t, err)
	out, err := io.ReadAll(gz)
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	return string(out)
}

func TestMergeStripsHeadersAndKeepsOrder(t *testing.T) {
	dir := t.TempDir()
	a := writeSAM(t, dir, "a.sam",
		"@HD\tVN:1.6\n@SQ\tSN:refA\tLN:100\nread1\t0\trefA\t1\t60\t8M\t*\t0\t0\tACGTACGT\t*\n")
	b := writeSAM(t, dir, "b.sam",
		"@HD\tVN:1.6\nread2\t16\trefB\t5\t60\t4M\t*\t0\t0\tACGT\t*\n")

	var buf bytes.Buffer
	require.NoError(t, Merge(context.Background(), []string{a, b}, &buf))

	want := "read1\t0\trefA\t1\t60\t8M\t*\t0\t0\tACGTACGT\t*\n" +
		"read2\t16\trefB\t5\t60\t4M\t*\t0\t0\tACGT\t*\n"
	assert.Equal(t, want, gunzip(t, buf.Bytes()))
}

func TestMergeIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	a := writeSAM(t, dir, "a.sam", "read1\t0\trefA\t1\t60\t4M\t*\t0\t0\tACGT\t*\n")
	b := writeSAM(t, dir, "b.sam", "read2\t0\trefB\t1\t60\t4M\t*\t0\t0\tGGGG\t*\n")

	var first, second bytes.Buffer
	require.NoError(t, Merge(context.Background(), []string{a, b}, &first))
	require.NoError(t, Merge(context.Background(), []string{a, b}, &second))
	assert.Equal(t, first.Bytes(), second.Bytes(), "same inputs, same compressed bytes")
}

func TestMergeEmptyInputsYieldEmptySummary(t *testing.T) {
	dir := t.TempDir()
	a := writeSAM(t, dir, "a.sam", "@HD\tVN:1.6\n")

	var buf bytes.Buffer
	require.NoError(t, Merge(context.Background(), []string{a}, &buf))
	assert.Empty(t, gunzip(t, buf.Bytes()), "header-only input leaves no records")
}

func TestMergeFailsOnMissingInput(t *testing.T) {
	dir := t.TempDir()
	a := writeSAM(t, dir, "a.sam", "read1\t0\trefA\t1\t60\t4M\t*\t0\t0\tACGT\t*\n")

	var buf bytes.Buffer
	err := Merge(context.Background(), []string{a, filepath.Join(dir, "absent.sam")}, &buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "alignment input missing")
	assert.Zero(t, buf.Len(), "inputs are checked before any output is written")
}
