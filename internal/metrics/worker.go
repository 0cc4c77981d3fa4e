package metrics

import "time"

// Job outcomes recorded on hearth_jobs_total.
const (
	JobOutcomeStarted   = "started"
	JobOutcomeCompleted = "completed"
	JobOutcomeRetried   = "retried"
	JobOutcomeFailed    = "failed"
)

// RecordJob counts a job lifecycle event. Duration is observed only for
// completed jobs.
func RecordJob(jobType, outcome string, duration time.Duration) {
	JobsTotal.WithLabelValues(jobType, outcome).Inc()
	switch outcome {
	case JobOutcomeCompleted:
		JobDuration.WithLabelValues(jobType).Observe(duration.Seconds())
	case JobOutcomeRetried:
		JobRetriesTotal.WithLabelValues(jobType).Inc()
	}
}
