package pipeline

// Prediction is the expected fate of a stage when every dispatched stage
// succeeds. It is computed without running anything.
type Prediction struct {
	Name   string
	Run    bool
	Reason SkipReason // when !Run

	// Steps lists the steps whose When gate holds, in order.
	Steps []string

	// Gated lists the steps a gate would skip.
	Gated []string
}

// Plan predicts each stage's outcome for run in dependency order.
func (g *Graph) Plan(run *Run) []Prediction {
	predicted := make(map[string]Prediction, len(g.order))
	out := make([]Prediction, 0, len(g.order))

	for _, name := range g.order {
		s, _ := g.Stage(name)
		p := Prediction{Name: name}

		for _, dep := range s.Needs {
			if !predicted[dep].Run {
				p.Reason = DependencySkipped
				break
			}
		}
		if p.Reason == NoReason {
			if s.Gate.Eval(run) {
				p.Run = true
			} else {
				p.Reason = GateNotMet
			}
		}

		if p.Run {
			for _, step := range s.Steps {
				if step.When.Eval(run) {
					p.Steps = append(p.Steps, step.Name)
				} else {
					p.Gated = append(p.Gated, step.Name)
				}
			}
		}

		predicted[name] = p
		out = append(out, p)
	}
	return out
}
