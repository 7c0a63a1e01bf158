package domain

import (
	"context"
	"time"
)

// Stage names the pipeline step a Result belongs to.
type Stage string

const (
	StageGenerate Stage = "generate"
	StageFetch    Stage = "fetch"
	StagePublish  Stage = "publish"
)

// Result is the outcome of a single item in one pipeline stage. Err is nil on
// success, in which case Value carries the produced job id, image URL or
// upload location.
type Result struct {
	Stage   Stage
	Subject string
	Value   string
	Err     error
}

// OK reports whether the item succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// Report collects everything one pipeline run produced
type Report struct {
	RunID      string
	Prompt     string
	Jobs       []GenerationJob
	Images     []GeneratedImage
	Results    []Result
	StartedAt  time.Time
	FinishedAt time.Time
}

// Failures returns the error Results in order.
func (r *Report) Failures() []Result {
	var failed []Result
	for _, res := range r.Results {
		if !res.OK() {
			failed = append(failed, res)
		}
	}
	return failed
}

// Published returns the successful publish Results in order.
func (r *Report) Published() []Result {
	var published []Result
	for _, res := range r.Results {
		if res.Stage == StagePublish && res.OK() {
			published = append(published, res)
		}
	}
	return published
}

// Reporter consumes Results as the pipeline produces them.
type Reporter interface {
	Report(ctx context.Context, runID string, res Result)
}

// ReporterFunc adapts a function to a Reporter.
type ReporterFunc func(ctx context.Context, runID string, res Result)

func (f ReporterFunc) Report(ctx context.Context, runID string, res Result) {
	f(ctx, runID, res)
}

// Runner runs one pass of the pipeline. UIs depend on this rather than on
// the service directly.
type Runner interface {
	Run(ctx context.Context, prompt string, reporters ...Reporter) (*Report, error)
}
