// Package stage defines the pipeline's stage templates and expands them into
// concrete units of work over the configured batches and discovered query
// files.
package stage

// Kind identifies one of the fixed stage templates of the pipeline.
type Kind int

const (
	// DownloadAsm fetches a batch's assembly archive.
	DownloadAsm Kind = iota
	// DownloadIndex fetches a batch's COBS index archive.
	DownloadIndex
	// Decompress unpacks a batch's index archive into a temporary plaintext
	// index consumed by the match stage.
	Decompress
	// FixQuery normalizes one raw query file into plain FASTA.
	FixQuery
	// Match runs the approximate k-mer membership query for one
	// (batch, query) pair.
	Match
	// Filter fans in all per-batch match results for one query file and
	// emits the filtered query FASTA.
	Filter
	// Align runs the exact aligner for one (batch, query) pair.
	Align
	// Aggregate fans in all per-batch alignments for one query file and
	// emits the compressed summary.
	Aggregate
)

// KeyShape describes which wildcard keys a stage binds.
type KeyShape int

const (
	// BatchKey stages emit one unit per batch.
	BatchKey KeyShape = iota
	// QueryKey stages emit one unit per query file.
	QueryKey
	// PairKey stages emit one unit per (batch, query) pair.
	PairKey
)

// Resource class names. Slot counts for each class come from the
// configuration; the executor admits at most that many units of the class
// at once.
const (
	ClassDownload   = "downloads"
	ClassDecompress = "decompressions"
	ClassMatch      = "matches"
	ClassAlign      = "alignments"
	ClassCPU        = "cpu"
)

var kindNames = map[Kind]string{
	DownloadAsm:   "download-asm",
	DownloadIndex: "download-index",
	Decompress:    "decompress",
	FixQuery:      "fix-query",
	Match:         "match",
	Filter:        "filter",
	Align:         "align",
	Aggregate:     "aggregate",
}

func (k Kind) String() string { return kindNames[k] }

// Shape returns the wildcard key shape of the stage.
func (k Kind) Shape() KeyShape {
	switch k {
	case DownloadAsm, DownloadIndex, Decompress:
		return BatchKey
	case Match, Align:
		return PairKey
	default:
		return QueryKey
	}
}

// Layer is the topological layer of the stage. Stages in a lower layer never
// depend on stages in a higher one; the resolver uses the layer as the
// primary ordering key.
func (k Kind) Layer() int {
	switch k {
	case DownloadAsm, DownloadIndex, FixQuery:
		return 0
	case Decompress:
		return 1
	case Match:
		return 2
	case Filter:
		return 3
	case Align:
		return 4
	case Aggregate:
		return 5
	}
	return -1
}

// Priority is the admission weight of the stage; higher wins. Downstream
// stages strictly outrank the stages that feed them so the executor drains
// expensive alignment work before starting new decompressed indexes.
func (k Kind) Priority() int {
	switch k {
	case DownloadAsm, DownloadIndex:
		return 10
	case Decompress:
		return 20
	case FixQuery:
		return 30
	case Match:
		return 40
	case Filter:
		return 60
	case Align:
		return 80
	case Aggregate:
		return 90
	}
	return 0
}

// Class returns the resource class the stage's units draw a slot from.
func (k Kind) Class() string {
	switch k {
	case DownloadAsm, DownloadIndex:
		return ClassDownload
	case Decompress:
		return ClassDecompress
	case Match:
		return ClassMatch
	case Align:
		return ClassAlign
	default:
		return ClassCPU
	}
}
