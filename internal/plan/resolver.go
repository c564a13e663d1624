// Package plan computes the minimal ordered execution plan for a set of
// requested final artifacts, skipping units whose outputs already exist.
package plan

import (
	"context"
	"fmt"
	"sort"

	"github.com/Francii-B/Phylign-Fulgor/internal/ctxlog"
	"github.com/Francii-B/Phylign-Fulgor/internal/graph"
	"github.com/Francii-B/Phylign-Fulgor/internal/stage"
)

// ArtifactStates is the slice of the artifact store the resolver needs.
type ArtifactStates interface {
	Complete(rel string) bool
}

// Plan is an ordered execution plan. Units appears in a stable topological
// order: ascending stage layer, then batch key, then query key, so two runs
// over the same inputs always execute in the same order.
type Plan struct {
	// Units are the units that must execute, in deterministic order.
	Units []*stage.Unit
	// Deps maps a unit ID to the IDs of its dependencies within the plan.
	// Dependencies whose outputs are already complete do not appear.
	Deps map[string][]string
	// Requested are the final artifact paths the plan was resolved for.
	Requested []string
}

// Resolve walks backward from the requested artifacts through declared unit
// inputs and returns the minimal plan that produces them. A unit whose
// output is already complete is skipped, along with its entire upstream
// cone, unless force is set. Cycles and requested artifacts with no
// producing unit are fatal configuration errors.
func Resolve(ctx context.Context, units []*stage.Unit, states ArtifactStates, requested []string, force bool) (*Plan, error) {
	logger := ctxlog.FromContext(ctx)

	producers := make(map[string]*stage.Unit, len(units))
	for _, u := range units {
		if prev, ok := producers[u.Output]; ok {
			return nil, fmt.Errorf("artifact %s has two producers: %s and %s", u.Output, prev.ID(), u.ID())
		}
		producers[u.Output] = u
	}

	// Validate the full graph before selecting anything; a cyclic or
	// malformed graph must abort the run before any unit executes.
	g := graph.New()
	for _, u := range units {
		g.AddVertex(u.ID())
	}
	for _, u := range units {
		for _, in := range u.Inputs {
			if p, ok := producers[in]; ok {
				if err := g.AddEdge(p.ID(), u.ID()); err != nil {
					return nil, err
				}
			}
		}
	}
	if err := g.DetectCycles(); err != nil {
		return nil, err
	}

	needed := make(map[string]*stage.Unit)
	var walk func(u *stage.Unit)
	walk = func(u *stage.Unit) {
		if _, ok := needed[u.ID()]; ok {
			return
		}
		if !force && states.Complete(u.Output) {
			return
		}
		needed[u.ID()] = u
		for _, in := range u.Inputs {
			if p, ok := producers[in]; ok {
				walk(p)
			}
		}
	}

	for _, rel := range requested {
		p, ok := producers[rel]
		if !ok {
			return nil, fmt.Errorf("requested artifact %s has no producing unit", rel)
		}
		walk(p)
	}

	ordered := make([]*stage.Unit, 0, len(needed))
	for _, u := range needed {
		ordered = append(ordered, u)
	}
	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if la, lb := a.Kind.Layer(), b.Kind.Layer(); la != lb {
			return la < lb
		}
		if a.Batch != b.Batch {
			return a.Batch < b.Batch
		}
		return a.Query < b.Query
	})

	deps := make(map[string][]string, len(ordered))
	for _, u := range ordered {
		var ds []string
		for _, in := range u.Inputs {
			if p, ok := producers[in]; ok {
				if _, planned := needed[p.ID()]; planned {
					ds = append(ds, p.ID())
				}
			}
		}
		sort.Strings(ds)
		deps[u.ID()] = ds
	}

	logger.Debug("Plan resolved.",
		"requested", len(requested), "total_units", len(units), "planned_units", len(ordered))

	return &Plan{Units: ordered, Deps: deps, Requested: requested}, nil
}
