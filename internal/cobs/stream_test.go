package cobs

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, r *Reader) []*Record {
	t.Helper()
	var recs []*Record
	for {
		rec, err := r.Read()
		if err == io.EOF {
			return recs
		}
		require.NoError(t, err)
		recs = append(recs, rec)
	}
}

func TestReaderParsesBlocks(t *testing.T) {
	stream := "*read1\t2\n" +
		"0007_genome.fa\t41\n" +
		"0123_other.fa\t12\n" +
		"*read2\t0\n" +
		"*read3\t1\n" +
		"9999_genome.fa\t3\n"

	recs := readAll(t, NewReader(strings.NewReader(stream)))
	require.Len(t, recs, 3)

	assert.Equal(t, "read1", recs[0].Query)
	assert.Equal(t, []Match{{Ref: "genome.fa", Kmers: 41}, {Ref: "other.fa", Kmers: 12}}, recs[0].Matches)

	assert.Equal(t, "read2", recs[1].Query)
	assert.Empty(t, recs[1].Matches, "a zero-match read still yields a record")

	assert.Equal(t, "read3", recs[2].Query)
	assert.Equal(t, []Match{{Ref: "genome.fa", Kmers: 3}}, recs[2].Matches)
}

func TestReaderDropsHeaderComment(t *testing.T) {
	recs := readAll(t, NewReader(strings.NewReader("*read1 length=150 plate=7\t1\n0001_ref\t9\n")))
	require.Len(t, recs, 1)
	assert.Equal(t, "read1", recs[0].Query)
}

func TestReaderStripsOnlyFirstPrefixSegment(t *testing.T) {
	// Reference names may themselves contain underscores; only the leading
	// sorting prefix comes off.
	recs := readAll(t, NewReader(strings.NewReader("*r\t1\n0042_Mustela_furo.fa\t7\n")))
	require.Len(t, recs, 1)
	assert.Equal(t, "Mustela_furo.fa", recs[0].Matches[0].Ref)
}

func TestReaderEmptyStream(t *testing.T) {
	r := NewReader(strings.NewReader(""))
	_, err := r.Read()
	assert.Equal(t, io.EOF, err)
}

func TestReaderRejectsMatchBeforeHeader(t *testing.T) {
	r := NewReader(strings.NewReader("0001_ref\t5\n"))
	_, err := r.Read()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "before any header")
}

func TestReaderRejectsMalformedLines(t *testing.T) {
	cases := map[string]string{
		"missing count":     "*r\t1\n0001_ref\n",
		"no sorting prefix": "*r\t1\nref\t5\n",
		"non-numeric count": "*r\t1\n0001_ref\tmany\n",
	}
	for name, stream := range cases {
		t.Run(name, func(t *testing.T) {
			r := NewReader(strings.NewReader(stream))
			_, err := r.Read()
			assert.Error(t, err)
		})
	}
}

func TestOpenHandlesGzipByName(t *testing.T) {
	dir := t.TempDir()

	plain := filepath.Join(dir, "matches.txt")
	require.NoError(t, os.WriteFile(plain, []byte("*r\t1\n0001_ref\t5\n"), 0o644))

	packed := filepath.Join(dir, "matches.gz")
	f, err := os.Create(packed)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	_, err = gz.Write([]byte("*r\t1\n0001_ref\t5\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	for _, path := range []string{plain, packed} {
		rc, err := Open(path)
		require.NoError(t, err)
		recs := readAll(t, NewReader(rc))
		require.NoError(t, rc.Close())
		require.Len(t, recs, 1)
		assert.Equal(t, []Match{{Ref: "ref", Kmers: 5}}, recs[0].Matches)
	}
}
