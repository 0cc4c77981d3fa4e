// Package notify delivers "you have a new lead" events to agents.
//
// Notification is best-effort: the assignment is authoritative and is never
// rolled back because an agent could not be told about it. Notifier
// implementations therefore return nothing; they log and count failures.
package notify

import (
	"context"
	"log/slog"

	"github.com/DukeRupert/hearth/internal/metrics"
	"github.com/DukeRupert/hearth/internal/worker"
	"github.com/google/uuid"
)

// Notifier tells an agent about a lead that has just been assigned to them.
type Notifier interface {
	NotifyAgentOfLead(ctx context.Context, agentID, leadID uuid.UUID)
}

// JobNotifier hands notifications to the background worker. The worker
// sends email and SMS with its own retries.
type JobNotifier struct {
	queue  worker.Enqueuer
	logger *slog.Logger
}

// NewJobNotifier creates a notifier that enqueues notify_agent_lead jobs.
func NewJobNotifier(queue worker.Enqueuer, logger *slog.Logger) *JobNotifier {
	return &JobNotifier{
		queue:  queue,
		logger: logger,
	}
}

// NotifyAgentOfLead enqueues a notification job. Failures are logged only.
func (n *JobNotifier) NotifyAgentOfLead(ctx context.Context, agentID, leadID uuid.UUID) {
	job, err := worker.EnqueueNotifyAgentLead(ctx, n.queue, agentID, leadID, worker.WithPriority(worker.PriorityHigh))
	if err != nil {
		metrics.NotificationFailed("queue")
		n.logger.Warn("Failed to enqueue lead notification",
			"agent_id", agentID,
			"lead_id", leadID,
			"error", err,
		)
		return
	}

	n.logger.Debug("Lead notification queued",
		"job_id", job.ID,
		"agent_id", agentID,
		"lead_id", leadID,
	)
}

// Discard drops every notification. Used when notifications are disabled.
type Discard struct{}

// NotifyAgentOfLead does nothing.
func (Discard) NotifyAgentOfLead(context.Context, uuid.UUID, uuid.UUID) {}
