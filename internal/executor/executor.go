// Package executor runs a resolved plan: it admits ready units under the
// per-class slot limits, dispatches each as its own goroutine, and applies
// the failure-isolation and artifact-lifecycle rules.
package executor

import (
	"context"
	"fmt"
	"sort"

	"github.com/Francii-B/Phylign-Fulgor/internal/artifact"
	"github.com/Francii-B/Phylign-Fulgor/internal/ctxlog"
	"github.com/Francii-B/Phylign-Fulgor/internal/plan"
	"github.com/Francii-B/Phylign-Fulgor/internal/stage"
)

// Action executes one unit. It writes the unit's output to tmpOutput; the
// executor commits or aborts the artifact around the call.
type Action func(ctx context.Context, u *stage.Unit, tmpOutput string) error

// UnitState is the terminal-tracking state of a planned unit.
type UnitState int

const (
	// Pending units wait on unmet dependencies.
	Pending UnitState = iota
	// Ready units have all inputs complete and wait for a slot.
	Ready
	// Running units hold a slot and execute.
	Running
	// Done units completed and committed their output.
	Done
	// Failed units returned an error; their output is invalid and removed.
	Failed
	// Skipped units never ran because an upstream unit failed.
	Skipped
)

func (s UnitState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Done:
		return "done"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	}
	return "unknown"
}

// Report is the outcome of one executed plan.
type Report struct {
	// Executed counts units that ran to completion, successfully or not.
	Executed int
	// States holds the terminal state of every planned unit.
	States map[string]UnitState
	// Errors holds the failure of every Failed unit.
	Errors map[string]error
	// Causes maps each Skipped unit to the ID of the failed unit at the
	// root of its blocked upstream chain, or a cancellation note.
	Causes map[string]string
}

// Success reports whether every planned unit completed.
func (r *Report) Success() bool {
	return len(r.Errors) == 0 && len(r.Causes) == 0
}

// Executor coordinates unit execution. All mutable scheduling state (slot
// counters, dependency counters, unit states) is touched only by the Run
// loop goroutine, which makes the updates atomic relative to unit start and
// finish without extra locking.
type Executor struct {
	store   *artifact.Store
	actions map[stage.Kind]Action
	slots   map[string]*slotPool

	// temporaries flags artifact paths subject to reclamation once every
	// planned reader is terminal.
	temporaries map[string]bool

	progress bool
}

type slotPool struct {
	capacity int
	used     int
}

// New builds an executor over the given artifact store. slots maps resource
// class name to capacity; temporaries flags reclaimable artifact paths.
func New(store *artifact.Store, actions map[stage.Kind]Action, slots map[string]int, temporaries map[string]bool, progress bool) *Executor {
	pools := make(map[string]*slotPool, len(slots))
	for class, n := range slots {
		if n < 1 {
			n = 1
		}
		pools[class] = &slotPool{capacity: n}
	}
	return &Executor{
		store:       store,
		actions:     actions,
		slots:       pools,
		temporaries: temporaries,
		progress:    progress,
	}
}

// result travels from a unit goroutine back to the Run loop.
type result struct {
	unit *stage.Unit
	err  error
}

// unitRuntime is the per-unit mutable scheduling state.
type unitRuntime struct {
	unit       *stage.Unit
	state      UnitState
	missing    int      // unmet planned dependencies
	dependents []string // planned unit IDs that depend on this one
}

// Run executes the plan and returns the per-unit outcome. The returned
// error is non-nil only for orchestration-level problems (unknown stage
// kind, broken plan); unit failures are reported in the Report.
func (e *Executor) Run(ctx context.Context, p *plan.Plan) (*Report, error) {
	logger := ctxlog.FromContext(ctx)

	units := make(map[string]*unitRuntime, len(p.Units))
	for _, u := range p.Units {
		if _, ok := e.actions[u.Kind]; !ok {
			return nil, fmt.Errorf("no action registered for stage %s", u.Kind)
		}
		units[u.ID()] = &unitRuntime{unit: u, missing: len(p.Deps[u.ID()])}
	}
	for id, deps := range p.Deps {
		for _, dep := range deps {
			units[dep].dependents = append(units[dep].dependents, id)
		}
	}

	// Planned readers per temporary artifact. The producer may have run in
	// an earlier run; only the readers decide when reclamation is safe.
	tempReaders := make(map[string]int)
	for _, u := range p.Units {
		for _, in := range u.Inputs {
			if e.temporaries[in] {
				tempReaders[in]++
			}
		}
	}

	report := &Report{
		States: make(map[string]UnitState, len(units)),
		Errors: make(map[string]error),
		Causes: make(map[string]string),
	}

	bar := newProgress(e.progress, len(p.Units))
	defer bar.wait()

	var ready []*stage.Unit
	for _, rt := range units {
		if rt.missing == 0 {
			rt.state = Ready
			ready = append(ready, rt.unit)
		}
	}

	results := make(chan result)
	running := 0

	admit := func() {
		if ctx.Err() != nil {
			return
		}
		sortReady(ready)
		kept := ready[:0]
		for _, u := range ready {
			pool := e.slots[u.Class]
			if pool == nil {
				// Unknown classes get a private single slot; admission must
				// never deadlock on a configuration hole.
				pool = &slotPool{capacity: 1}
				e.slots[u.Class] = pool
			}
			if pool.used >= pool.capacity {
				kept = append(kept, u)
				continue
			}
			pool.used++
			units[u.ID()].state = Running
			running++
			logger.Debug("Unit admitted.", "unit", u.ID(), "class", u.Class, "slots_used", pool.used)
			go e.runUnit(ctx, u, results)
		}
		ready = kept
	}

	reclaim := func(rel string) {
		if err := e.store.Reclaim(rel); err != nil {
			logger.Warn("Failed to reclaim temporary artifact.", "artifact", rel, "error", err)
		} else {
			logger.Debug("Temporary artifact reclaimed.", "artifact", rel)
		}
	}

	// finishTemp decrements the reader counts of a terminal unit and
	// reclaims drained temporaries.
	finishTemp := func(u *stage.Unit) {
		for _, in := range u.Inputs {
			if !e.temporaries[in] {
				continue
			}
			tempReaders[in]--
			if tempReaders[in] == 0 {
				reclaim(in)
			}
		}
	}

	// skipCone marks the transitive dependents of a failed unit as skipped
	// without touching unrelated branches of the graph.
	var skipCone func(id, rootID string)
	skipCone = func(id, rootID string) {
		for _, depID := range units[id].dependents {
			rt := units[depID]
			if rt.state == Skipped {
				continue
			}
			rt.state = Skipped
			report.Causes[depID] = rootID
			bar.increment()
			finishTemp(rt.unit)
			logger.Debug("Unit skipped.", "unit", depID, "cause", rootID)
			skipCone(depID, rootID)
		}
	}

	admit()
	for running > 0 {
		res := <-results
		running--
		rt := units[res.unit.ID()]
		e.slots[res.unit.Class].used--
		report.Executed++
		bar.increment()

		if res.err != nil {
			rt.state = Failed
			report.Errors[res.unit.ID()] = res.err
			logger.Error("Unit failed.", "unit", res.unit.ID(), "error", res.err)
			skipCone(res.unit.ID(), res.unit.ID())
		} else {
			rt.state = Done
			logger.Info("Unit complete.", "unit", res.unit.ID(), "stage", res.unit.Kind.String())
			// All readers may already be skipped; the producer then reclaims
			// its own temporary output on completion.
			if e.temporaries[res.unit.Output] && tempReaders[res.unit.Output] == 0 {
				reclaim(res.unit.Output)
			}
			for _, depID := range rt.dependents {
				drt := units[depID]
				drt.missing--
				if drt.missing == 0 && drt.state == Pending {
					drt.state = Ready
					ready = append(ready, drt.unit)
				}
			}
		}
		finishTemp(res.unit)
		admit()
	}

	// Anything still pending or ready was starved by cancellation.
	for id, rt := range units {
		if rt.state == Pending || rt.state == Ready {
			rt.state = Skipped
			if ctx.Err() != nil {
				report.Causes[id] = "run cancelled"
			} else {
				report.Causes[id] = "unschedulable"
			}
			bar.increment()
		}
		report.States[id] = rt.state
	}

	logger.Debug("Execution finished.",
		"executed", report.Executed, "failed", len(report.Errors), "skipped", len(report.Causes))
	return report, nil
}

// runUnit executes one unit inside its own goroutine, owning the artifact
// write lock for the unit's output from Begin to Commit or Abort.
func (e *Executor) runUnit(ctx context.Context, u *stage.Unit, results chan<- result) {
	logger := ctxlog.FromContext(ctx).With(
		"unit", u.ID(), "stage", u.Kind.String(), "batch", u.Batch, "query", u.Query)
	ctx = ctxlog.WithLogger(ctx, logger)

	tmp, err := e.store.Begin(u.Output)
	if err != nil {
		results <- result{unit: u, err: unitErr(u, err)}
		return
	}

	if err := e.actions[u.Kind](ctx, u, tmp); err != nil {
		e.store.Abort(u.Output)
		results <- result{unit: u, err: unitErr(u, err)}
		return
	}

	if err := e.store.Commit(u.Output); err != nil {
		results <- result{unit: u, err: unitErr(u, err)}
		return
	}
	if u.Protected {
		e.store.Protect(u.Output)
	}
	results <- result{unit: u}
}

// unitErr attaches the unit's full context to a failure so the final report
// can name the stage and wildcard keys.
func unitErr(u *stage.Unit, err error) error {
	switch u.Kind.Shape() {
	case stage.BatchKey:
		return fmt.Errorf("%s [batch %s]: %w", u.Kind, u.Batch, err)
	case stage.QueryKey:
		return fmt.Errorf("%s [query %s]: %w", u.Kind, u.Query, err)
	default:
		return fmt.Errorf("%s [batch %s, query %s]: %w", u.Kind, u.Batch, u.Query, err)
	}
}

// sortReady orders the ready queue by descending priority, then by the
// deterministic (layer, batch, query) tie-break.
func sortReady(ready []*stage.Unit) {
	sort.Slice(ready, func(i, j int) bool {
		a, b := ready[i], ready[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if la, lb := a.Kind.Layer(), b.Kind.Layer(); la != lb {
			return la < lb
		}
		if a.Batch != b.Batch {
			return a.Batch < b.Batch
		}
		return a.Query < b.Query
	})
}
