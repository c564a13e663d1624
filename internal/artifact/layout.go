package artifact

import "path"

// Layout maps wildcard keys to the artifact paths of each stage. All paths
// are relative to the work directory; the directory structure is the run's
// persisted execution state, so these names must stay stable across runs.
type Layout struct{}

// PairSep separates the batch and query keys in pair-keyed artifact names.
// The originating pipeline used four underscores so that batch names, which
// may themselves contain double underscores, stay unambiguous.
const PairSep = "____"

func (Layout) AsmArchive(batch string) string {
	return path.Join("asms", batch+".tar.xz")
}

func (Layout) IndexArchive(batch string) string {
	return path.Join("cobs", batch+".cobs_classic.xz")
}

// DecompressedIndex is a temporary artifact: the executor reclaims it once
// every match unit reading it is terminal.
func (Layout) DecompressedIndex(batch string) string {
	return path.Join("decompressed", batch+".cobs_classic")
}

func (Layout) FixedQuery(query string) string {
	return path.Join("fixed_queries", query+".fa")
}

// MatchOutput is protected: once complete it is never auto-deleted, because
// re-creating it means re-running the membership query against a large
// decompressed index.
func (Layout) MatchOutput(batch, query string) string {
	return path.Join("intermediate", "00_match", batch+PairSep+query+".gz")
}

func (Layout) FilteredQuery(query string) string {
	return path.Join("intermediate", "01_filter", query+".fa")
}

func (Layout) Alignment(batch, query string) string {
	return path.Join("intermediate", "02_align", batch+PairSep+query+".sam")
}

func (Layout) Summary(query string) string {
	return path.Join("output", query+".sam_summary")
}
