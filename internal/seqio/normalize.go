// Package seqio normalizes raw query files into the plain FASTA the match
// and align engines expect: FASTA or FASTQ input, optionally gzipped, comes
// out as uppercase single-line FASTA records.
package seqio

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/shenwei356/bio/seqio/fastx"
)

// Normalize reads the sequence file at src and writes normalized FASTA to w.
// It returns the number of records written.
func Normalize(src string, w io.Writer) (int, error) {
	reader, err := fastx.NewReader(nil, src, "")
	if err != nil {
		return 0, fmt.Errorf("opening query file %s: %w", src, err)
	}
	defer reader.Close()

	bw := bufio.NewWriter(w)
	n := 0
	for {
		record, err := reader.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return n, fmt.Errorf("reading record %d of %s: %w", n, src, err)
		}

		bw.WriteByte('>')
		bw.Write(record.Name)
		bw.WriteByte('\n')
		bw.Write(bytes.ToUpper(record.Seq.Seq))
		bw.WriteByte('\n')
		n++
	}
	if err := bw.Flush(); err != nil {
		return n, fmt.Errorf("writing normalized FASTA: %w", err)
	}
	return n, nil
}
