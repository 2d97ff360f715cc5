package common

import (
	"fmt"
	"io"
	"math"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/volgapavel/popov-exem/pkg/api"
)

var (
	statusIconMap map[api.Status]string
)

func init() {
	statusIconMap = map[api.Status]string{
		api.StatusPending:   "◷",
		api.StatusRunning:   "●",
		api.StatusSucceeded: "✔",
		api.StatusFailed:    "✖",
		api.StatusSkipped:   "○",
	}
}

// PrintOptions defines print options
type PrintOptions struct{}

// PrintRun prints the run state in the given writer
func PrintRun(w io.Writer, run api.RunState, opts PrintOptions) {
	fmt.Fprintln(w)

	// Header
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "Pipeline:\t%s\n", run.Pipeline)
	fmt.Fprintf(tw, "RunID:\t%s\n", run.RunID)
	fmt.Fprintf(tw, "Status:\t%s\n", run.Status)
	fmt.Fprintf(tw, "Promoted:\t%t\n", run.Promoted)
	fmt.Fprintf(tw, "Created:\t%s\n", date(run.CreateTime))
	fmt.Fprintf(tw, "Started:\t%s\n", date(run.StartTime))
	fmt.Fprintf(tw, "Finished:\t%s\n", date(run.EndTime))
	fmt.Fprintf(tw, "Duration:\t%s\n", duration(run.StartTime, run.EndTime))
	tw.Flush()
	fmt.Fprintln(w)

	tw.Init(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TASK\tDURATION\tATTEMPTS\tDETAIL")
	fmt.Fprintf(tw, "%s %s\t\t\t\n", statusIconMap[run.Status], run.Pipeline)

	// Tasks that ran first, pending ones at the end.
	tasks := append([]api.TaskState{}, run.Tasks...)
	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].StartTime == nil {
			return false
		} else if tasks[j].StartTime == nil {
			return true
		}
		return tasks[i].StartTime.Before(*tasks[j].StartTime)
	})

	for i := 0; i < len(tasks); i++ {
		prefix := "├"
		if i == len(tasks)-1 {
			prefix = "└"
		}
		printTask(tw, tasks[i], prefix)
	}
	tw.Flush()
}

// PrintRuns prints basic information about the given runs in the given writer
func PrintRuns(w io.Writer, runs []api.RunInfo) {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "RUN\tPIPELINE\tSTATUS")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s %s\n", r.RunID, r.Pipeline, statusIconMap[r.Status], r.Status)
	}
	tw.Flush()
}

func printTask(w io.Writer, task api.TaskState, prefix string) {
	fmt.Fprintf(w, "%s %s %s\t%s\t%s\t%s\n", prefix, statusIconMap[task.Status], task.Name, duration(task.StartTime, task.EndTime), attempts(task), detail(task))
}

func attempts(task api.TaskState) string {
	if task.Attempts == 0 {
		return ""
	}
	return fmt.Sprintf("%d", task.Attempts)
}

func detail(task api.TaskState) string {
	if task.Failure == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", task.Failure.Kind, task.Failure.Cause)
}

func date(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2 Jan 2006 15:04:05.000")
}

func duration(start, end *time.Time) string {
	var d time.Duration
	if start == nil {
		return ""
	}
	if end == nil {
		d = time.Now().Sub(*start)
	} else {
		d = end.Sub(*start)
	}

	// Print
	if d.Seconds() <= 60.0 {
		return fmt.Sprintf("%0.0fs", d.Seconds())
	} else if d.Minutes() <= 60.0 {
		m := int64(d.Minutes())
		s := math.Mod(d.Seconds(), 60)
		return fmt.Sprintf("%0.dm %0.0fs", m, s)
	} else {
		h := int64(d.Hours())
		m := int64(math.Mod(d.Minutes(), 60))
		s := math.Mod(d.Seconds(), 60)
		return fmt.Sprintf("%0.dh %0.dm %0.0fs", h, m, s)
	}
}
