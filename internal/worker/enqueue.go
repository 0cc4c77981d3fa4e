package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/DukeRupert/hearth/internal/repository"
	"github.com/google/uuid"
)

// Job type constants - these must match the JobHandler.Type() values
const (
	JobTypeNotifyAgentLead = "notify_agent_lead"
)

// Priority constants for job scheduling
const (
	PriorityLow    = 0
	PriorityNormal = 10
	PriorityHigh   = 20
)

// NotifyAgentLeadPayload is the payload for lead notification jobs.
type NotifyAgentLeadPayload struct {
	AgentID uuid.UUID `json:"agent_id"`
	LeadID  uuid.UUID `json:"lead_id"`
}

// Enqueuer is the part of the repository needed to add jobs. Both
// *repository.Queries and a transaction-scoped Querier satisfy it.
type Enqueuer interface {
	EnqueueJob(ctx context.Context, arg repository.EnqueueJobParams) (repository.Job, error)
}

// EnqueueOption is a functional option for customizing job enqueue parameters.
type EnqueueOption func(*repository.EnqueueJobParams)

// WithPriority sets the job priority.
func WithPriority(priority int32) EnqueueOption {
	return func(p *repository.EnqueueJobParams) {
		p.Priority = priority
	}
}

// WithMaxAttempts sets the maximum number of retry attempts.
func WithMaxAttempts(attempts int32) EnqueueOption {
	return func(p *repository.EnqueueJobParams) {
		p.MaxAttempts = attempts
	}
}

// WithDelay schedules the job to run after a delay.
func WithDelay(delay time.Duration) EnqueueOption {
	return func(p *repository.EnqueueJobParams) {
		p.ScheduledAt = time.Now().Add(delay)
	}
}

// EnqueueJob is a generic helper for enqueuing jobs with custom options.
func EnqueueJob(
	ctx context.Context,
	queue Enqueuer,
	jobType string,
	payload interface{},
	opts ...EnqueueOption,
) (repository.Job, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return repository.Job{}, fmt.Errorf("marshal payload: %w", err)
	}

	params := repository.EnqueueJobParams{
		JobType:     jobType,
		Payload:     payloadJSON,
		Priority:    PriorityNormal,
		MaxAttempts: 5,
		ScheduledAt: time.Now(),
	}

	for _, opt := range opts {
		opt(&params)
	}

	job, err := queue.EnqueueJob(ctx, params)
	if err != nil {
		return repository.Job{}, fmt.Errorf("enqueue job: %w", err)
	}

	return job, nil
}

// EnqueueNotifyAgentLead enqueues a job telling an agent about a lead that
// was just assigned to them.
func EnqueueNotifyAgentLead(
	ctx context.Context,
	queue Enqueuer,
	agentID uuid.UUID,
	leadID uuid.UUID,
	opts ...EnqueueOption,
) (repository.Job, error) {
	payload := NotifyAgentLeadPayload{
		AgentID: agentID,
		LeadID:  leadID,
	}

	return EnqueueJob(ctx, queue, JobTypeNotifyAgentLead, payload, opts...)
}
