// Package export ships a run's final artifacts to a destination outside the
// pipeline. The destination variant is chosen at pipeline construction time;
// each variant carries its own failure semantics (a remote upload may be
// retried aggressively, a local copy usually not).
package export

import (
	"sort"

	"github.com/volgapavel/popov-exem/pkg/task"
	"github.com/volgapavel/popov-exem/pkg/util/context"
)

// Exporter ships a set of named artifacts to a destination. Export succeeds
// only if every artifact reaches the destination: a partial upload is a
// failure, not a partial success.
type Exporter interface {
	Export(ctx context.Context, artifacts map[string][]byte) error
}

// Body adapts an Exporter into a task body, conventionally the terminal task
// of a pipeline. Every artifact received from the upstream dependencies is
// exported; the task itself produces no artifact.
func Body(exp Exporter) task.Body {
	return func(ctx context.Context, in task.Inputs) (task.Artifacts, error) {
		artifacts := make(map[string][]byte)
		for _, byTask := range in {
			for name, data := range byTask {
				artifacts[name] = data
			}
		}
		if len(artifacts) == 0 {
			return nil, task.Permanentf("nothing to export")
		}
		if err := exp.Export(ctx, artifacts); err != nil {
			return nil, err
		}
		ctx.Logger().Infof("exported %d artifacts: %v", len(artifacts), names(artifacts))
		return task.Artifacts{}, nil
	}
}

func names(artifacts map[string][]byte) []string {
	res := make([]string, 0, len(artifacts))
	for n := range artifacts {
		res = append(res, n)
	}
	sort.Strings(res)
	return res
}
