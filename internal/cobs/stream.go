// Package cobs is the boundary to the approximate k-mer membership engine:
// it invokes the COBS binary and parses its match stream.
//
// The stream is line oriented. A header line `*<qname>\t<n>` opens the match
// block for one query read; each following line `<rid>_<ref>\t<kmers>` is
// one matched reference with its shared k-mer count. `<rid>` is the random
// sorting prefix embedded in the index at build time; parsing strips it.
package cobs

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// Match is one matched reference for a query read.
type Match struct {
	Ref   string
	Kmers int
}

// Record is the full match block for one query read. Reads with no matches
// still produce a Record with an empty Matches slice.
type Record struct {
	Query   string
	Matches []Match
}

// Reader parses a COBS match stream into Records.
type Reader struct {
	sc      *bufio.Scanner
	pending string // qname of the block being accumulated, "" before first header
	done    bool
}

// NewReader wraps a plaintext match stream.
func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	return &Reader{sc: sc}
}

// Read returns the next record, or io.EOF after the last one.
func (r *Reader) Read() (*Record, error) {
	if r.done {
		return nil, io.EOF
	}

	var rec *Record
	if r.pending != "" {
		rec = &Record{Query: r.pending, Matches: []Match{}}
		r.pending = ""
	}

	for r.sc.Scan() {
		line := strings.TrimSpace(r.sc.Text())
		if line == "" {
			continue
		}
		if line[0] == '*' {
			qname := parseHeader(line)
			if rec != nil {
				r.pending = qname
				return rec, nil
			}
			rec = &Record{Query: qname, Matches: []Match{}}
			continue
		}
		if rec == nil {
			return nil, fmt.Errorf("match line before any header: %q", line)
		}
		m, err := parseMatch(line)
		if err != nil {
			return nil, err
		}
		rec.Matches = append(rec.Matches, m)
	}
	if err := r.sc.Err(); err != nil {
		return nil, fmt.Errorf("reading match stream: %w", err)
	}

	r.done = true
	if rec != nil {
		return rec, nil
	}
	return nil, io.EOF
}

// parseHeader extracts the query name from a `*<qname>\t<n>` line; FASTA
// comments after the first space are dropped.
func parseHeader(line string) string {
	fields := strings.SplitN(line[1:], "\t", 2)
	name, _, _ := strings.Cut(fields[0], " ")
	return name
}

// parseMatch translates one `<rid>_<ref>\t<kmers>` line, stripping the
// random sorting prefix from the reference name.
func parseMatch(line string) (Match, error) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return Match{}, fmt.Errorf("malformed match line: %q", line)
	}
	_, ref, found := strings.Cut(fields[0], "_")
	if !found {
		return Match{}, fmt.Errorf("reference name %q has no sorting prefix", fields[0])
	}
	kmers, err := strconv.Atoi(fields[1])
	if err != nil {
		return Match{}, fmt.Errorf("bad k-mer count in %q: %w", line, err)
	}
	return Match{Ref: ref, Kmers: kmers}, nil
}

// Open opens a match artifact for reading, transparently decompressing
// gzip-suffixed files.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return &gzipReadCloser{gz: gz, f: f}, nil
}

type gzipReadCloser struct {
	gz *gzip.Reader
	f  *os.File
}

func (g *gzipReadCloser) Read(p []byte) (int, error) { return g.gz.Read(p) }

func (g *gzipReadCloser) Close() error {
	gzErr := g.gz.Close()
	fErr := g.f.Close()
	if gzErr != nil {
		return gzErr
	}
	return fErr
}
