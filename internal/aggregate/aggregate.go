// Package aggregate merges all per-batch alignments for one query file into
// its final compressed summary.
package aggregate

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"

	"github.com/Francii-B/Phylign-Fulgor/internal/ctxlog"
)

// Merge concatenates the SAM alignment files at samPaths, in the given
// order, into one gzip-compressed summary written to w. Header lines
// (prefix '@') are stripped unconditionally; alignment records are copied
// unconditionally. Every input must exist: a missing input fails the
// summary instead of silently producing a partial one.
//
// samPaths must be in a fixed batch order, which makes the output bytes
// reproducible across runs.
func Merge(ctx context.Context, samPaths []string, w io.Writer) error {
	logger := ctxlog.FromContext(ctx)

	for _, p := range samPaths {
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("alignment input missing: %w", err)
		}
	}

	gz := gzip.NewWriter(w)
	records := 0
	for _, p := range samPaths {
		n, err := appendRecords(gz, p)
		if err != nil {
			return err
		}
		records += n
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("compressing summary: %w", err)
	}

	logger.Debug("Summary merged.", "inputs", len(samPaths), "records", records)
	return nil
}

func appendRecords(w io.Writer, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening alignment %s: %w", path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	n := 0
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 || line[0] == '@' {
			continue
		}
		if _, err := w.Write(line); err != nil {
			return n, fmt.Errorf("writing summary: %w", err)
		}
		if _, err := w.Write([]byte{'\n'}); err != nil {
			return n, fmt.Errorf("writing summary: %w", err)
		}
		n++
	}
	if err := sc.Err(); err != nil {
		return n, fmt.Errorf("reading alignment %s: %w", path, err)
	}
	return n, nil
}
