package cobs

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/klauspost/compress/gzip"

	"github.com/Francii-B/Phylign-Fulgor/internal/tool"
)

// Engine invokes the COBS binary for one (index, query) pair.
type Engine struct {
	Bin       string  // cobs binary name or path
	Threshold float64 // k-mer membership threshold
	Threads   int     // engine-internal worker threads per invocation
}

// Query runs the membership query against index for the normalized FASTA at
// queryFA and writes the gzip-compressed match stream to dst. A non-zero
// engine exit fails the unit; the error carries the engine's stderr tail.
func (e Engine) Query(ctx context.Context, index, queryFA, dst string) error {
	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating match output: %w", err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	gz := gzip.NewWriter(bw)

	err = tool.Run(ctx, gz, e.Bin, "query",
		"-i", index,
		"-f", queryFA,
		"-t", strconv.FormatFloat(e.Threshold, 'f', -1, 64),
		"-T", strconv.Itoa(e.Threads),
	)
	if err != nil {
		return err
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("compressing match output: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flushing match output: %w", err)
	}
	return f.Close()
}
