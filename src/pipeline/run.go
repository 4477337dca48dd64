// Package pipeline evaluates a DAG of gated stages for one pipeline run.
//
// A single coordinator walks the graph in dependency order. A stage is
// dispatched only when every dependency succeeded and its gate holds for the
// run; otherwise it is skipped with a reason that distinguishes "gate not
// met" from "upstream broke". Stage bodies run on their own goroutines and
// report back to the coordinator when they finish.
package pipeline

import "github.com/sofmeright/slipway/src/event"

// Run is one immutable pipeline execution instance.
type Run struct {
	ID         string
	Event      event.Kind
	Ref        string
	Commit     string
	Repository string

	// Meta is the Event Matcher output for the trigger.
	Meta event.Metadata
}

// NewRun builds a Run from a trigger and its classified metadata.
func NewRun(t event.Trigger, meta event.Metadata) *Run {
	return &Run{
		ID:         t.RunID,
		Event:      t.Kind,
		Ref:        t.Ref,
		Commit:     t.Commit,
		Repository: t.Repository,
		Meta:       meta,
	}
}

// Token returns the run's version token.
func (r *Run) Token() string { return r.Meta.VersionToken }

// ShortCommit returns the first 8 characters of the commit.
func (r *Run) ShortCommit() string {
	if len(r.Commit) > 8 {
		return r.Commit[:8]
	}
	return r.Commit
}
