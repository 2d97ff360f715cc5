package api

// Validate validates the pipeline specification
// Rules are:
// - At least one task is declared
// - Task names are unique
// - Task dependencies refer to existing tasks
// - No circular dependencies (a task cannot depend on itself either)
// Errors are returned as DefinitionError so callers can refuse to start a run.
func (p PipelineSpec) Validate() error {
	if len(p.Tasks) == 0 {
		return EmptyPipelineError()
	}
	names := make(map[string]bool, len(p.Tasks))
	for _, t := range p.Tasks {
		if names[t.Name] {
			return DuplicateTaskError(t.Name)
		}
		names[t.Name] = true
	}
	for _, t := range p.Tasks {
		for _, d := range t.Dependencies {
			if !names[d] {
				return UnknownDependencyError(t.Name, d)
			}
		}
	}
	if _, err := p.TopologicalOrder(); err != nil {
		return err
	}
	return nil
}

// TopologicalOrder returns a total order of task names consistent with the
// declared dependencies. The order is deterministic: among eligible tasks,
// declaration order breaks ties. Returns a DefinitionError of kind cycle if
// the dependency graph is not acyclic.
func (p PipelineSpec) TopologicalOrder() ([]string, error) {
	indegree := make(map[string]int, len(p.Tasks))
	for _, t := range p.Tasks {
		indegree[t.Name] = len(t.Dependencies)
	}

	order := make([]string, 0, len(p.Tasks))
	placed := make(map[string]bool, len(p.Tasks))
	for len(order) < len(p.Tasks) {
		// Pick the earliest declared task whose dependencies are all placed.
		progressed := false
		for _, t := range p.Tasks {
			if placed[t.Name] || indegree[t.Name] != 0 {
				continue
			}
			order = append(order, t.Name)
			placed[t.Name] = true
			progressed = true
			for _, other := range p.Tasks {
				for _, d := range other.Dependencies {
					if d == t.Name {
						indegree[other.Name]--
					}
				}
			}
			break
		}
		if !progressed {
			var remaining []string
			for _, t := range p.Tasks {
				if !placed[t.Name] {
					remaining = append(remaining, t.Name)
				}
			}
			return nil, CycleError(remaining)
		}
	}
	return order, nil
}
