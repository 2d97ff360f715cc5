package etl

import (
	"os"

	"github.com/pkg/errors"

	"github.com/volgapavel/popov-exem/pkg/task"
	"github.com/volgapavel/popov-exem/pkg/util/context"
)

// NewLoader returns the body of the load task: it reads the raw dataset from
// the given path and publishes it unchanged, so every downstream task works
// from the run's own copy of the data.
func NewLoader(path string) task.Body {
	return func(ctx context.Context, in task.Inputs) (task.Artifacts, error) {
		ctx.Logger().Infof("loading dataset from %s", path)
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, task.Permanent(errors.Wrapf(err, "dataset %s does not exist", path))
			}
			return nil, errors.Wrapf(err, "cannot read dataset %s", path)
		}
		// Reject structurally broken data before it enters the pipeline.
		if _, err := readTable(data); err != nil {
			return nil, task.Permanent(errors.Wrapf(err, "dataset %s is not a valid csv", path))
		}
		return task.Artifacts{ArtifactRawData: data}, nil
	}
}
