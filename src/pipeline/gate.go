package pipeline

import "github.com/sofmeright/slipway/src/event"

// Gate is a pure predicate over the run deciding whether a stage or step
// executes. A nil Gate is treated as Always.
type Gate func(*Run) bool

// Always is the gate that always holds.
func Always(*Run) bool { return true }

// OnRelease holds for release events.
func OnRelease(r *Run) bool { return r.Meta.IsRelease }

// OnTagPush holds for pushes of a tag-shaped reference.
func OnTagPush(r *Run) bool { return r.Meta.IsTagPush }

// OnPublishable holds when artifacts built by the run may be published:
// tag pushes and releases.
func OnPublishable(r *Run) bool { return r.Meta.Publishable() }

// Events holds when the run was triggered by one of kinds.
func Events(kinds ...event.Kind) Gate {
	return func(r *Run) bool {
		for _, k := range kinds {
			if r.Event == k {
				return true
			}
		}
		return false
	}
}

// All holds when every gate holds. No gates = Always.
func All(gates ...Gate) Gate {
	return func(r *Run) bool {
		for _, g := range gates {
			if !g.Eval(r) {
				return false
			}
		}
		return true
	}
}

// Not inverts a gate.
func Not(g Gate) Gate {
	return func(r *Run) bool { return !g.Eval(r) }
}

// Eval evaluates the gate, treating nil as Always.
func (g Gate) Eval(r *Run) bool {
	if g == nil {
		return true
	}
	return g(r)
}
