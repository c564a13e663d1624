// Package fsutil provides file system discovery helpers.
package fsutil

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// seqExtensions are the recognized query read file suffixes, optionally
// gzipped.
var seqExtensions = []string{".fa", ".fasta", ".fna", ".fq", ".fastq"}

// FindQueryFiles recursively scans dir for sequence files and returns their
// identifiers mapped to absolute paths. The identifier is the basename with
// the sequence extension (and a trailing .gz) stripped.
//
// Two files reducing to the same identifier are a configuration error, since
// the identifier keys every downstream artifact.
func FindQueryFiles(dir string) (map[string]string, error) {
	found := make(map[string]string)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name, ok := queryName(d.Name())
		if !ok {
			return nil
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		if prev, dup := found[name]; dup {
			return fmt.Errorf("query files %s and %s both map to identifier %q", prev, abs, name)
		}
		found[name] = abs
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// Names returns the sorted identifiers of a discovery result.
func Names(files map[string]string) []string {
	names := make([]string, 0, len(files))
	for n := range files {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// queryName strips a recognized sequence extension (and a leading .gz) from
// a file name, reporting whether the file is a query read file at all.
func queryName(base string) (string, bool) {
	trimmed := strings.TrimSuffix(base, ".gz")
	for _, ext := range seqExtensions {
		if strings.HasSuffix(trimmed, ext) {
			return strings.TrimSuffix(trimmed, ext), true
		}
	}
	return "", false
}
