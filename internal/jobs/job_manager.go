package jobs

import (
	"fmt"

	"go.uber.org/zap"
)

// Job is a scheduled background task.
type Job interface {
	Start() error
	Stop()
}

// JobManager starts and stops the scheduled jobs of the node together.
type JobManager struct {
	jobs   []namedJob
	logger *zap.Logger
}

type namedJob struct {
	name string
	job  Job
}

func NewJobManager(headAudit *HeadAuditJob, logger *zap.Logger) *JobManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	jm := &JobManager{logger: logger}
	if headAudit != nil {
		jm.jobs = append(jm.jobs, namedJob{name: "head audit", job: headAudit})
	}
	return jm
}

// StartAll starts every job. When one fails to start, the jobs already
// started are stopped again.
func (jm *JobManager) StartAll() error {
	for i, nj := range jm.jobs {
		if err := nj.job.Start(); err != nil {
			for _, started := range jm.jobs[:i] {
				started.job.Stop()
			}
			return fmt.Errorf("failed to start %s job: %w", nj.name, err)
		}
	}
	jm.logger.Info("jobs started", zap.Int("count", len(jm.jobs)))
	return nil
}

// StopAll stops the jobs in reverse start order.
func (jm *JobManager) StopAll() {
	for i := len(jm.jobs) - 1; i >= 0; i-- {
		jm.jobs[i].job.Stop()
	}
}
