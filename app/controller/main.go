package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/labstack/echo/v4"
	"github.com/neko-neko/echo-logrus/v2/log"
	"github.com/pkg/errors"

	"github.com/volgapavel/popov-exem/pkg/api"
	"github.com/volgapavel/popov-exem/pkg/artifact"
	"github.com/volgapavel/popov-exem/pkg/broker"
	"github.com/volgapavel/popov-exem/pkg/client"
	"github.com/volgapavel/popov-exem/pkg/etl"
	"github.com/volgapavel/popov-exem/pkg/export"
	"github.com/volgapavel/popov-exem/pkg/scheduler"
	"github.com/volgapavel/popov-exem/pkg/store"
	"github.com/volgapavel/popov-exem/pkg/task"
	"github.com/volgapavel/popov-exem/pkg/util/config"
	"github.com/volgapavel/popov-exem/pkg/util/context"
)

const configFileEnv = "CONFIG_FILE"

type controllerConfig struct {
	Port           int    `env:"PORT" envDefault:"8080"`
	DataDir        string `env:"DATA_DIR" envDefault:"data"`
	Dataset        string `env:"DATASET" envDefault:"data/dataset.csv"`
	EventsExchange string `env:"EVENTS_EXCHANGE" envDefault:"pipelines.ex.events"`
}

func main() {
	// Create context, echo object and set logger
	e := echo.New()
	ctx := context.Background()
	l := log.MyLogger{Logger: ctx.Logger().Logger}
	e.Logger = &l

	if path := os.Getenv(configFileEnv); path != "" {
		config.SetConfigFile(path)
	}
	if err := config.ReadInConfig(); err != nil {
		e.Logger.Fatal(errors.Wrap(err, "failed to read config"))
		os.Exit(1)
	}
	var conf controllerConfig
	if err := config.Unmarshal("controller", &conf); err != nil {
		e.Logger.Fatal(errors.Wrap(err, "failed to parse controller config"))
		os.Exit(1)
	}

	runs, err := store.NewFSStore(filepath.Join(conf.DataDir, "runs"))
	if err != nil {
		e.Logger.Fatal(errors.Wrap(err, "failed to instantiate run store"))
		os.Exit(1)
	}
	artifacts, err := artifact.NewFSStore(filepath.Join(conf.DataDir, "artifacts"))
	if err != nil {
		e.Logger.Fatal(errors.Wrap(err, "failed to instantiate artifact store"))
		os.Exit(1)
	}

	sc, err := newScheduler(ctx, conf, runs, artifacts)
	if err != nil {
		e.Logger.Fatal(errors.Wrap(err, "failed to instantiate scheduler"))
		os.Exit(1)
	}

	// Setup routes
	h := handlers{
		sc:        sc,
		artifacts: artifacts,
		pipeline:  etl.Pipeline(),
	}
	e.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, "pipeline controller up")
	})
	e.Add(client.PipelineMethod, client.PipelinePath, h.Pipeline)
	e.Add(client.SubmitMethod, client.SubmitPath, h.Submit)
	e.Add(client.ListRunsMethod, client.ListRunsPath, h.ListRuns)
	e.Add(client.RunStateMethod, client.RunStatePath, h.RunState)
	e.Add(client.TaskStateMethod, client.TaskStatePath, h.TaskState)
	e.Add(client.ArtifactMethod, client.ArtifactPath, h.Artifact)
	e.Add(client.CancelMethod, client.CancelPath, h.Cancel)
	e.Add(client.RerunMethod, client.RerunPath, h.RerunFailed)

	e.HideBanner = true
	e.HidePort = true

	e.Logger.Infof("http server started on 127.0.0.1:%d", conf.Port)
	e.Logger.Fatal(e.Start(fmt.Sprintf(":%d", conf.Port)))
}

// newScheduler wires the engine: the registered pipeline tasks, the exporter
// chosen by config and the optional event broker.
func newScheduler(ctx context.Context, conf controllerConfig, runs store.Store, artifacts artifact.Store) (scheduler.Scheduler, error) {
	exp, err := newExporter()
	if err != nil {
		return nil, err
	}
	registry := task.NewRegistry()
	etl.RegisterTasks(registry, conf.Dataset, exp)

	b, err := broker.NewFromConfig(ctx, "broker")
	if err != nil {
		return nil, err
	}
	return scheduler.NewScheduler(runs, artifacts, registry, scheduler.WithBroker(b, conf.EventsExchange))
}

// newExporter returns the exporter selected by the export.mode config key,
// local copy by default.
func newExporter() (export.Exporter, error) {
	mode := "local"
	if v, ok := config.Get("export.mode").(string); ok && v != "" {
		mode = v
	}
	if v := os.Getenv("EXPORT_MODE"); v != "" {
		mode = v
	}
	switch mode {
	case "s3":
		var c export.RemoteUploadConfig
		if err := config.Unmarshal("export.s3", &c); err != nil {
			return nil, err
		}
		return export.NewRemoteUpload(c)
	case "local":
		var c export.LocalCopyConfig
		if err := config.Unmarshal("export.local", &c); err != nil {
			return nil, err
		}
		return export.NewLocalCopy(c)
	default:
		return nil, errors.Errorf("unknown export mode %s", mode)
	}
}

type handlers struct {
	sc        scheduler.Scheduler
	artifacts artifact.Store
	pipeline  api.PipelineSpec
}
