package notify

import (
	"context"
	"log"

	"github.com/basel-ax/leonardo-publisher/internal/domain"
)

// LogReporter writes one log line per Result
type LogReporter struct {
	logger *log.Logger
}

// NewLogReporter creates a LogReporter. A nil logger uses the standard one.
func NewLogReporter(logger *log.Logger) *LogReporter {
	if logger == nil {
		logger = log.Default()
	}
	return &LogReporter{logger: logger}
}

func (r *LogReporter) Report(ctx context.Context, runID string, res domain.Result) {
	if res.OK() {
		r.logger.Printf("[%s] %s %s: %s", runID, res.Stage, res.Subject, Message(res))
		return
	}
	r.logger.Printf("[%s] %s %s failed: %v", runID, res.Stage, res.Subject, res.Err)
}

// Fanout forwards every Result to each reporter in order
type Fanout []domain.Reporter

func (f Fanout) Report(ctx context.Context, runID string, res domain.Result) {
	for _, r := range f {
		if r != nil {
			r.Report(ctx, runID, res)
		}
	}
}
