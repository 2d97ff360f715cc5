package context

import (
	gocontext "context"

	"github.com/sirupsen/logrus"
)

// Context extends the regular golang context.Context interface with access to
// the identifiers of the current run and task, and a logger scoped to them.
type Context interface {
	gocontext.Context
	Logger() *logrus.Entry
	RunID() string
	Task() string
	CorrelationID() string
}

// Background returns a non-nil, empty Context.
func Background() Context {
	return ctx{
		Context: gocontext.Background(),
	}
}

// FromContext returns a new context from the given go context.
func FromContext(c gocontext.Context) Context {
	return ctx{
		Context: c,
	}
}

// WithRunID returns a copy of the context with a runID.
func WithRunID(c Context, runID string) Context {
	return ctx{
		c,
		runID,
		c.Task(),
		c.CorrelationID(),
	}
}

// WithTask returns a copy of the context with a task name.
func WithTask(c Context, task string) Context {
	return ctx{
		c,
		c.RunID(),
		task,
		c.CorrelationID(),
	}
}

// WithCorrelationID returns a copy of the context with a correlationID.
func WithCorrelationID(c Context, correlationID string) Context {
	return ctx{
		c,
		c.RunID(),
		c.Task(),
		correlationID,
	}
}

type ctx struct {
	gocontext.Context
	runID         string
	task          string
	correlationID string
}

func (c ctx) Logger() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.TraceLevel)
	l.SetFormatter(&logrus.TextFormatter{
		DisableColors: true,
		FullTimestamp: true,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyMsg: "message",
		},
	})
	e := logrus.NewEntry(l)
	if c.RunID() != "" {
		e = e.WithField("run_id", c.RunID())
	}
	if c.Task() != "" {
		e = e.WithField("task", c.Task())
	}
	return e
}

func (c ctx) RunID() string {
	return c.runID
}

func (c ctx) Task() string {
	return c.task
}

func (c ctx) CorrelationID() string {
	return c.correlationID
}
