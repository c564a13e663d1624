package stage

import "fmt"

// Unit is one schedulable unit of work: a stage template bound to its
// wildcard key(s). Units are immutable once built; all execution state lives
// in the executor.
type Unit struct {
	Kind  Kind
	Batch string // set for BatchKey and PairKey stages
	Query string // set for QueryKey and PairKey stages

	// Inputs are the artifact paths that must be complete before the unit
	// may start. Source inputs with no producing unit (the raw query file)
	// are not listed here; they are validated at plan time.
	Inputs []string
	// Output is the single artifact the unit produces.
	Output string
	// Source is the absolute path of the raw query file; set only on
	// fix-query units, whose input is not a managed artifact.
	Source string

	// Class is the resource class the unit draws one slot from while running.
	Class string
	// Threads is the internal parallelism hint handed to the collaborator
	// binary. It is independent of Class slot accounting; the two compose.
	Threads int
	// Priority is the admission weight; higher runs first.
	Priority int

	// Temporary marks the output for reclamation once all readers are done.
	Temporary bool
	// Protected marks the output as never auto-deleted once complete.
	Protected bool
}

// ID returns the canonical unit identifier, unique across the graph.
func (u *Unit) ID() string {
	switch u.Kind.Shape() {
	case BatchKey:
		return fmt.Sprintf("%s:%s", u.Kind, u.Batch)
	case QueryKey:
		return fmt.Sprintf("%s:%s", u.Kind, u.Query)
	default:
		return fmt.Sprintf("%s:%s:%s", u.Kind, u.Batch, u.Query)
	}
}
