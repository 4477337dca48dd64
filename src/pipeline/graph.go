package pipeline

import (
	"fmt"
	"strings"
)

// Graph is a validated, acyclic set of stages.
type Graph struct {
	stages []Stage
	index  map[string]int
	order  []string
}

// NewGraph validates stages and computes a stable topological order.
// Stages with no edge between them keep their declaration order.
func NewGraph(stages ...Stage) (*Graph, error) {
	g := &Graph{
		stages: stages,
		index:  make(map[string]int, len(stages)),
	}

	for i, s := range stages {
		if s.Name == "" {
			return nil, fmt.Errorf("stage %d: empty name", i)
		}
		if _, dup := g.index[s.Name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateStage, s.Name)
		}
		g.index[s.Name] = i
	}

	for _, s := range stages {
		for _, dep := range s.Needs {
			if _, ok := g.index[dep]; !ok {
				return nil, fmt.Errorf("%w: stage %q needs %q", ErrUnknownDependency, s.Name, dep)
			}
		}
	}

	if cycle := g.findCycle(); cycle != nil {
		return nil, fmt.Errorf("%w: %s", ErrCycle, strings.Join(cycle, " -> "))
	}

	g.order = g.topoSort()
	return g, nil
}

// Order returns stage names in dependency order.
func (g *Graph) Order() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Stage returns the named stage.
func (g *Graph) Stage(name string) (Stage, bool) {
	i, ok := g.index[name]
	if !ok {
		return Stage{}, false
	}
	return g.stages[i], true
}

// Len returns the number of stages.
func (g *Graph) Len() int { return len(g.stages) }

// Dependents returns the stages that directly need name, in declaration order.
func (g *Graph) Dependents(name string) []string {
	var out []string
	for _, s := range g.stages {
		for _, dep := range s.Needs {
			if dep == name {
				out = append(out, s.Name)
				break
			}
		}
	}
	return out
}

// topoSort is Kahn's algorithm, always picking the earliest-declared ready
// stage so the order is deterministic.
func (g *Graph) topoSort() []string {
	indegree := make([]int, len(g.stages))
	for i, s := range g.stages {
		indegree[i] = len(uniq(s.Needs))
	}

	done := make([]bool, len(g.stages))
	order := make([]string, 0, len(g.stages))
	for len(order) < len(g.stages) {
		for i, s := range g.stages {
			if done[i] || indegree[i] > 0 {
				continue
			}
			done[i] = true
			order = append(order, s.Name)
			for _, dependent := range g.Dependents(s.Name) {
				indegree[g.index[dependent]]--
			}
			break
		}
	}
	return order
}

// findCycle returns the stage names forming a cycle (first name repeated at
// the end), or nil.
func (g *Graph) findCycle() []string {
	const (
		white = iota
		grey
		black
	)
	color := make([]int, len(g.stages))
	var stack []string

	var visit func(i int) []string
	visit = func(i int) []string {
		color[i] = grey
		stack = append(stack, g.stages[i].Name)
		for _, dep := range g.stages[i].Needs {
			j := g.index[dep]
			switch color[j] {
			case grey:
				for k, name := range stack {
					if name == dep {
						cycle := append([]string{}, stack[k:]...)
						return append(cycle, dep)
					}
				}
			case white:
				if c := visit(j); c != nil {
					return c
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[i] = black
		return nil
	}

	for i := range g.stages {
		if color[i] == white {
			if c := visit(i); c != nil {
				return c
			}
		}
	}
	return nil
}

func uniq(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
