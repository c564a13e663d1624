package executor

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Francii-B/Phylign-Fulgor/internal/artifact"
	"github.com/Francii-B/Phylign-Fulgor/internal/plan"
	"github.com/Francii-B/Phylign-Fulgor/internal/stage"
)

func newTestStore(t *testing.T) *artifact.Store {
	t.Helper()
	s, err := artifact.NewStore(t.TempDir())
	require.NoError(t, err)
	return s
}

// touch is an Action that writes a marker byte to the unit's temp output.
func touch(_ context.Context, _ *stage.Unit, tmpOutput string) error {
	return os.WriteFile(tmpOutput, []byte("x"), 0o644)
}

func touchAll() map[stage.Kind]Action {
	actions := make(map[stage.Kind]Action)
	for _, k := range []stage.Kind{
		stage.DownloadAsm, stage.DownloadIndex, stage.Decompress, stage.FixQuery,
		stage.Match, stage.Filter, stage.Align, stage.Aggregate,
	} {
		actions[k] = touch
	}
	return actions
}

func resolveAll(t *testing.T, units []*stage.Unit, states plan.ArtifactStates, requested []string) *plan.Plan {
	t.Helper()
	p, err := plan.Resolve(context.Background(), units, states, requested, false)
	require.NoError(t, err)
	return p
}

func fullPlan(t *testing.T, batches, queries []string) *plan.Plan {
	t.Helper()
	var layout artifact.Layout
	units := stage.Build(context.Background(), layout, batches, queries, stage.Options{})
	requested := make([]string, 0, len(queries))
	for _, q := range queries {
		requested = append(requested, layout.Summary(q))
	}
	return resolveAll(t, units, emptyStates{}, requested)
}

type emptyStates struct{}

func (emptyStates) Complete(string) bool { return false }

func defaultSlots() map[string]int {
	return map[string]int{
		stage.ClassDownload:   2,
		stage.ClassDecompress: 1,
		stage.ClassMatch:      2,
		stage.ClassAlign:      4,
		stage.ClassCPU:        4,
	}
}

func TestRunExecutesWholePlan(t *testing.T) {
	store := newTestStore(t)
	p := fullPlan(t, []string{"generaA__01", "generaB__02"}, []string{"reads1"})

	ex := New(store, touchAll(), defaultSlots(), nil, false)
	report, err := ex.Run(context.Background(), p)
	require.NoError(t, err)

	assert.True(t, report.Success())
	assert.Equal(t, len(p.Units), report.Executed)
	for id, state := range report.States {
		assert.Equal(t, Done, state, "unit %s", id)
	}
	assert.True(t, store.Complete("output/reads1.sam_summary"))
}

func TestRunEmptyPlanSucceeds(t *testing.T) {
	store := newTestStore(t)
	ex := New(store, touchAll(), defaultSlots(), nil, false)

	report, err := ex.Run(context.Background(), &plan.Plan{Deps: map[string][]string{}})
	require.NoError(t, err)
	assert.True(t, report.Success())
	assert.Zero(t, report.Executed)
}

func TestRunRespectsClassSlotLimits(t *testing.T) {
	store := newTestStore(t)
	var layout artifact.Layout

	// Many independent match units competing for two match slots.
	batches := []string{"a__01", "b__02", "c__03", "d__04", "e__05", "f__06"}
	var units []*stage.Unit
	for _, b := range batches {
		units = append(units, &stage.Unit{
			Kind:   stage.Match,
			Batch:  b,
			Query:  "reads1",
			Output: layout.MatchOutput(b, "reads1"),
			Class:  stage.ClassMatch,
		})
	}
	var requested []string
	for _, u := range units {
		requested = append(requested, u.Output)
	}
	p := resolveAll(t, units, emptyStates{}, requested)

	var inFlight, peak int64
	actions := map[stage.Kind]Action{
		stage.Match: func(_ context.Context, _ *stage.Unit, tmpOutput string) error {
			n := atomic.AddInt64(&inFlight, 1)
			for {
				old := atomic.LoadInt64(&peak)
				if n <= old || atomic.CompareAndSwapInt64(&peak, old, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt64(&inFlight, -1)
			return os.WriteFile(tmpOutput, []byte("x"), 0o644)
		},
	}

	ex := New(store, actions, map[string]int{stage.ClassMatch: 2}, nil, false)
	report, err := ex.Run(context.Background(), p)
	require.NoError(t, err)
	assert.True(t, report.Success())
	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(2),
		"never more than two concurrent matches")
}

func TestRunIsolatesFailureToItsCone(t *testing.T) {
	store := newTestStore(t)
	p := fullPlan(t, []string{"generaA__01"}, []string{"reads1", "reads2"})

	actions := touchAll()
	actions[stage.Match] = func(_ context.Context, u *stage.Unit, tmpOutput string) error {
		if u.Query == "reads1" {
			return errors.New("index refused the query")
		}
		return touch(nil, u, tmpOutput)
	}

	ex := New(store, actions, defaultSlots(), nil, false)
	report, err := ex.Run(context.Background(), p)
	require.NoError(t, err)

	assert.False(t, report.Success())
	assert.Equal(t, Failed, report.States["match:generaA__01:reads1"])
	assert.Equal(t, Skipped, report.States["filter:reads1"])
	assert.Equal(t, Skipped, report.States["align:generaA__01:reads1"])
	assert.Equal(t, Skipped, report.States["aggregate:reads1"])
	assert.Equal(t, "match:generaA__01:reads1", report.Causes["aggregate:reads1"])

	// The sibling query is unaffected.
	assert.Equal(t, Done, report.States["aggregate:reads2"])
	assert.True(t, store.Complete("output/reads2.sam_summary"))
	assert.False(t, store.Complete("output/reads1.sam_summary"))

	require.Error(t, report.Errors["match:generaA__01:reads1"])
	assert.Contains(t, report.Errors["match:generaA__01:reads1"].Error(), "batch generaA__01")
}

func TestRunPrefersHigherPriorityWhenSlotsContend(t *testing.T) {
	store := newTestStore(t)
	var layout artifact.Layout

	// One CPU slot, a filter (priority 60) and a fix-query (priority 30)
	// both ready: the filter must be admitted first.
	units := []*stage.Unit{
		{Kind: stage.FixQuery, Query: "reads9", Output: layout.FixedQuery("reads9"),
			Class: stage.ClassCPU, Priority: stage.FixQuery.Priority()},
		{Kind: stage.Filter, Query: "reads1", Output: layout.FilteredQuery("reads1"),
			Class: stage.ClassCPU, Priority: stage.Filter.Priority()},
	}
	p := resolveAll(t, units, emptyStates{},
		[]string{layout.FixedQuery("reads9"), layout.FilteredQuery("reads1")})

	var mu sync.Mutex
	var order []string
	record := func(_ context.Context, u *stage.Unit, tmpOutput string) error {
		mu.Lock()
		order = append(order, u.ID())
		mu.Unlock()
		return os.WriteFile(tmpOutput, []byte("x"), 0o644)
	}
	actions := map[stage.Kind]Action{stage.FixQuery: record, stage.Filter: record}

	ex := New(store, actions, map[string]int{stage.ClassCPU: 1}, nil, false)
	report, err := ex.Run(context.Background(), p)
	require.NoError(t, err)
	require.True(t, report.Success())
	assert.Equal(t, []string{"filter:reads1", "fix-query:reads9"}, order)
}

func TestRunReclaimsTemporariesAfterLastReader(t *testing.T) {
	store := newTestStore(t)
	var layout artifact.Layout

	p := fullPlan(t, []string{"generaA__01"}, []string{"reads1", "reads2"})
	tempIndex := layout.DecompressedIndex("generaA__01")
	temporaries := map[string]bool{tempIndex: true}

	ex := New(store, touchAll(), defaultSlots(), temporaries, false)
	report, err := ex.Run(context.Background(), p)
	require.NoError(t, err)
	require.True(t, report.Success())

	assert.False(t, store.Complete(tempIndex),
		"decompressed index must be reclaimed after both match units finish")
	assert.True(t, store.Complete(layout.MatchOutput("generaA__01", "reads1")))
	assert.True(t, store.Complete(layout.MatchOutput("generaA__01", "reads2")))
}

func TestRunReclaimsTemporaryWhenReaderIsSkipped(t *testing.T) {
	store := newTestStore(t)
	var layout artifact.Layout

	p := fullPlan(t, []string{"generaA__01"}, []string{"reads1"})
	tempIndex := layout.DecompressedIndex("generaA__01")

	actions := touchAll()
	actions[stage.FixQuery] = func(context.Context, *stage.Unit, string) error {
		return errors.New("unreadable query file")
	}

	ex := New(store, actions, defaultSlots(), map[string]bool{tempIndex: true}, false)
	report, err := ex.Run(context.Background(), p)
	require.NoError(t, err)

	assert.Equal(t, Skipped, report.States["match:generaA__01:reads1"])
	assert.False(t, store.Complete(tempIndex),
		"a skipped reader still releases the temporary")
}

func TestRunProtectsMatchOutputsOnDownstreamFailure(t *testing.T) {
	store := newTestStore(t)
	var layout artifact.Layout

	p := fullPlan(t, []string{"generaA__01"}, []string{"reads1"})

	actions := touchAll()
	actions[stage.Align] = func(context.Context, *stage.Unit, string) error {
		return errors.New("aligner crashed")
	}

	ex := New(store, actions, defaultSlots(), nil, false)
	report, err := ex.Run(context.Background(), p)
	require.NoError(t, err)

	assert.False(t, report.Success())
	matchOut := layout.MatchOutput("generaA__01", "reads1")
	assert.True(t, store.Complete(matchOut))
	assert.True(t, store.Protected(matchOut),
		"match outputs stay protected for the resumed run")
}

func TestRunFailedUnitLeavesNoPartialOutput(t *testing.T) {
	store := newTestStore(t)
	p := fullPlan(t, []string{"generaA__01"}, []string{"reads1"})

	actions := touchAll()
	actions[stage.Decompress] = func(_ context.Context, _ *stage.Unit, tmpOutput string) error {
		if err := os.WriteFile(tmpOutput, []byte("half an index"), 0o644); err != nil {
			return err
		}
		return errors.New("archive truncated")
	}

	ex := New(store, actions, defaultSlots(), nil, false)
	report, err := ex.Run(context.Background(), p)
	require.NoError(t, err)

	var layout artifact.Layout
	rel := layout.DecompressedIndex("generaA__01")
	assert.Equal(t, artifact.Invalid, store.State(rel))
	_, statErr := os.Stat(store.Abs(rel))
	assert.True(t, os.IsNotExist(statErr), "partial output must be removed")
	assert.Equal(t, Failed, report.States["decompress:generaA__01"])
}

func TestRunCancellationSkipsUnstartedUnits(t *testing.T) {
	store := newTestStore(t)
	p := fullPlan(t, []string{"generaA__01"}, []string{"reads1"})

	ctx, cancel := context.WithCancel(context.Background())
	actions := touchAll()
	actions[stage.DownloadAsm] = func(_ context.Context, u *stage.Unit, tmpOutput string) error {
		cancel()
		return touch(nil, u, tmpOutput)
	}

	ex := New(store, actions, defaultSlots(), nil, false)
	report, err := ex.Run(ctx, p)
	require.NoError(t, err)

	assert.False(t, report.Success())
	assert.Equal(t, "run cancelled", report.Causes["aggregate:reads1"])
	assert.NotEqual(t, Done, report.States["aggregate:reads1"])
}

func TestRunRejectsUnregisteredStage(t *testing.T) {
	store := newTestStore(t)
	p := fullPlan(t, []string{"generaA__01"}, []string{"reads1"})

	actions := touchAll()
	delete(actions, stage.Aggregate)

	ex := New(store, actions, defaultSlots(), nil, false)
	_, err := ex.Run(context.Background(), p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no action registered")
}
