package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"demand-foresight/internal/task"
)

type Summarizer interface {
	RunSummary(ctx context.Context, job task.Job) (string, error)
}

type TaskReporter interface {
	Complete(ctx context.Context, handle task.Handle, value string) error
	Fail(ctx context.Context, handle task.Handle, cause error) error
	Forget(ctx context.Context, handle task.Handle) error
}

// SummaryWorker executes summarize jobs and reports each outcome to the task
// registry. Job failures are reported, not retried. A job whose document
// was deleted mid-run leaves no record behind.
type SummaryWorker struct {
	summarizer Summarizer
	reporter   TaskReporter
	logger     *zap.Logger
}

func NewSummaryWorker(summarizer Summarizer, reporter TaskReporter, logger *zap.Logger) *SummaryWorker {
	return &SummaryWorker{summarizer: summarizer, reporter: reporter, logger: logger}
}

func (w *SummaryWorker) Handle(ctx context.Context, body []byte) error {
	var job task.Job
	if err := json.Unmarshal(body, &job); err != nil {
		return fmt.Errorf("decode task failed: %w", err)
	}
	if job.Kind != task.KindSummarize {
		return fmt.Errorf("unexpected task kind %q", job.Kind)
	}

	summary, err := w.summarizer.RunSummary(ctx, job)
	if errors.Is(err, task.ErrSubjectGone) {
		w.logger.Info("summary subject deleted", zap.String("handle", string(job.Handle)))
		if forgetErr := w.reporter.Forget(ctx, job.Handle); forgetErr != nil {
			return fmt.Errorf("forget task failed: %w", forgetErr)
		}
		return nil
	}
	if err != nil {
		w.logger.Warn("summary task failed", zap.String("handle", string(job.Handle)), zap.Error(err))
		if reportErr := w.reporter.Fail(ctx, job.Handle, err); reportErr != nil {
			return fmt.Errorf("report task failure failed: %w", reportErr)
		}
		return nil
	}
	if err := w.reporter.Complete(ctx, job.Handle, summary); err != nil {
		return fmt.Errorf("report task result failed: %w", err)
	}
	return nil
}
