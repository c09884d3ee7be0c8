package reconciliation

import (
	"context"
	"fmt"

	"github.com/meridianfin/ledgermirror/pkg/logger"
)

const retryJobName = "reconciliation-retry"

// RetryJob periodically re-checks unmatched entries. It backstops the
// notification consumer: entries whose posting event was missed still get
// matched on the next cycle.
type RetryJob struct {
	service   Service
	batchSize int
	logg      *logger.Logger
}

// NewRetryJob builds the unmatched retry job.
func NewRetryJob(service Service, batchSize int, logg *logger.Logger) (*RetryJob, error) {
	if service == nil {
		return nil, fmt.Errorf("reconciliation service required")
	}
	if batchSize < 1 {
		return nil, fmt.Errorf("batch size must be positive")
	}
	return &RetryJob{service: service, batchSize: batchSize, logg: logg}, nil
}

// Name identifies the job in logs and metrics.
func (j *RetryJob) Name() string {
	return retryJobName
}

// Run re-checks one batch of unmatched entries.
func (j *RetryJob) Run(ctx context.Context) error {
	resolved, err := j.service.RetryUnmatched(ctx, j.batchSize)
	if err != nil {
		return fmt.Errorf("retry unmatched: %w", err)
	}
	if j.logg != nil && resolved > 0 {
		logCtx := j.logg.WithField(ctx, "resolved", resolved)
		j.logg.Info(logCtx, "unmatched entries settled")
	}
	return nil
}
