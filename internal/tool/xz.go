package tool

import (
	"bufio"
	"context"
	"fmt"
	"os"
)

// Decompressor shells out to the xz binary; archive handling is a
// collaborator concern, not reimplemented here.
type Decompressor struct {
	Bin string // xz binary name or path
}

// Decompress streams the plaintext content of archive into dst.
func (d Decompressor) Decompress(ctx context.Context, archive, dst string) error {
	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating decompression target: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := Run(ctx, w, d.Bin, "--decompress", "--stdout", archive); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing decompressed output: %w", err)
	}
	return f.Close()
}
