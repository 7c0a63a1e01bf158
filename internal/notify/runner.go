package notify

import (
	"context"
	"log"

	"github.com/basel-ax/leonardo-publisher/internal/domain"
)

// Notifier is told about every finished run
type Notifier interface {
	Notify(ctx context.Context, report *domain.Report, runErr error) error
}

// SummarizingRunner notifies after each run of the wrapped runner
type SummarizingRunner struct {
	runner    domain.Runner
	notifiers []Notifier
}

// WithNotifiers wraps runner. With no notifiers runner is returned as is.
func WithNotifiers(runner domain.Runner, notifiers ...Notifier) domain.Runner {
	if len(notifiers) == 0 {
		return runner
	}
	return &SummarizingRunner{runner: runner, notifiers: notifiers}
}

func (s *SummarizingRunner) Run(ctx context.Context, prompt string, reporters ...domain.Reporter) (*domain.Report, error) {
	report, err := s.runner.Run(ctx, prompt, reporters...)
	if report == nil {
		return report, err
	}

	for _, n := range s.notifiers {
		if notifyErr := n.Notify(ctx, report, err); notifyErr != nil {
			log.Printf("Error sending run %s summary: %v", report.RunID, notifyErr)
		}
	}

	return report, err
}
