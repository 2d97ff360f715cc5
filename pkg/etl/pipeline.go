package etl

import (
	"time"

	"github.com/volgapavel/popov-exem/pkg/api"
	"github.com/volgapavel/popov-exem/pkg/export"
	"github.com/volgapavel/popov-exem/pkg/task"
)

// Pipeline returns the spec of the diagnosis training pipeline. The compute
// tasks run once, only the I/O bound edges of the graph retry.
func Pipeline() api.PipelineSpec {
	ioRetry := api.RetryPolicy{MaxAttempts: 3, InitialInterval: 2 * time.Second}
	return api.PipelineSpec{
		Name: "diagnosis-training",
		Tasks: []api.TaskSpec{
			{
				Name:    TaskLoad,
				Outputs: []string{ArtifactRawData},
				Retry:   ioRetry,
				Timeout: time.Minute,
			},
			{
				Name:         TaskPreprocess,
				Dependencies: []string{TaskLoad},
				Outputs:      []string{ArtifactCleanData, ArtifactScaler},
			},
			{
				Name:         TaskTrain,
				Dependencies: []string{TaskPreprocess},
				Outputs:      []string{ArtifactModel, ArtifactTestData},
			},
			{
				Name:         TaskEvaluate,
				Dependencies: []string{TaskTrain},
				Outputs:      []string{ArtifactMetrics},
			},
			{
				Name:         TaskExport,
				Dependencies: []string{TaskTrain, TaskEvaluate},
				Retry:        ioRetry,
				Timeout:      5 * time.Minute,
			},
		},
	}
}

// RegisterTasks binds the pipeline's bodies to the registry. The dataset
// path and the exporter are the only two external touch points of the
// pipeline.
func RegisterTasks(r *task.Registry, datasetPath string, exp export.Exporter) {
	r.Register(TaskLoad, NewLoader(datasetPath))
	r.Register(TaskPreprocess, Preprocess)
	r.Register(TaskTrain, Train)
	r.Register(TaskEvaluate, Evaluate)
	r.Register(TaskExport, export.Body(exp))
}
