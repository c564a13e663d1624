// Package graph provides the directed acyclic dependency graph the resolver
// and executor operate on. Vertices are unit IDs; an edge A -> B means B
// depends on A.
package graph

import (
	"fmt"
	"sort"
	"sync"
)

type vertex struct {
	id         string
	deps       map[string]*vertex
	dependents map[string]*vertex
}

// Graph is a mutable DAG keyed by string IDs. It is safe for concurrent
// reads; mutation happens only during construction.
type Graph struct {
	mu       sync.RWMutex
	vertices map[string]*vertex
}

// New returns an initialized empty graph.
func New() *Graph {
	return &Graph{vertices: make(map[string]*vertex)}
}

// AddVertex registers an ID. Adding an existing ID is a no-op.
func (g *Graph) AddVertex(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.vertices[id]; ok {
		return
	}
	g.vertices[id] = &vertex{
		id:         id,
		deps:       make(map[string]*vertex),
		dependents: make(map[string]*vertex),
	}
}

// AddEdge records that `toID` depends on `fromID`. Both vertices must exist
// and self-edges are rejected.
func (g *Graph) AddEdge(fromID, toID string) error {
	if fromID == toID {
		return fmt.Errorf("self-referential edge not allowed: %s", fromID)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	from, ok := g.vertices[fromID]
	if !ok {
		return fmt.Errorf("source vertex not found: %s", fromID)
	}
	to, ok := g.vertices[toID]
	if !ok {
		return fmt.Errorf("destination vertex not found: %s", toID)
	}

	to.deps[fromID] = from
	from.dependents[toID] = to
	return nil
}

// Len returns the number of vertices.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.vertices)
}

// Dependencies returns the sorted IDs the given vertex depends on.
func (g *Graph) Dependencies(id string) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	v, ok := g.vertices[id]
	if !ok {
		return nil, fmt.Errorf("vertex not found: %s", id)
	}
	return sortedKeys(v.deps), nil
}

// Dependents returns the sorted IDs that depend on the given vertex.
func (g *Graph) Dependents(id string) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	v, ok := g.vertices[id]
	if !ok {
		return nil, fmt.Errorf("vertex not found: %s", id)
	}
	return sortedKeys(v.dependents), nil
}

// DetectCycles returns an error naming a vertex on the first cycle found.
// The stage layering makes cycles impossible by construction, so a detected
// cycle is a fatal configuration error, never a recoverable one.
func (g *Graph) DetectCycles() error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	// Depth-first search with the classic three-color scheme: done vertices
	// are known safe, the active set is the current recursion stack.
	done := make(map[string]bool, len(g.vertices))
	active := make(map[string]bool)

	var visit func(v *vertex) error
	visit = func(v *vertex) error {
		if done[v.id] {
			return nil
		}
		if active[v.id] {
			return fmt.Errorf("dependency cycle involving %s", v.id)
		}
		active[v.id] = true
		for _, dep := range v.dependents {
			if err := visit(dep); err != nil {
				return err
			}
		}
		delete(active, v.id)
		done[v.id] = true
		return nil
	}

	// Visit in sorted order so the reported vertex is stable across runs.
	for _, id := range sortedKeys(g.vertices) {
		if !done[id] {
			if err := visit(g.vertices[id]); err != nil {
				return err
			}
		}
	}
	return nil
}

func sortedKeys(m map[string]*vertex) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
