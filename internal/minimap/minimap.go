// Package minimap is the boundary to the exact aligner. minimap2 is a black
// box: it gets a reference archive, a filtered FASTA, and a preset, and
// emits SAM text with @-prefixed header lines.
package minimap

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/Francii-B/Phylign-Fulgor/internal/tool"
)

// Aligner invokes the minimap2 binary for one (batch, query) pair.
type Aligner struct {
	Bin     string // minimap2 binary name or path
	Preset  string // minimap2 preset, e.g. "sr"
	Threads int    // aligner-internal threads per invocation
}

// Align aligns the filtered reads at queryFA against the batch assembly
// archive and writes the SAM output to dst.
func (a Aligner) Align(ctx context.Context, asmArchive, queryFA, dst string) error {
	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating alignment output: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	err = tool.Run(ctx, w, a.Bin,
		"-x", a.Preset,
		"-a",
		"-t", strconv.Itoa(a.Threads),
		asmArchive,
		queryFA,
	)
	if err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing alignment output: %w", err)
	}
	return f.Close()
}
