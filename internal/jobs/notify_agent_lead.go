// Package jobs contains the background job handlers run by the worker.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/DukeRupert/hearth/internal/domain"
	"github.com/DukeRupert/hearth/internal/email"
	"github.com/DukeRupert/hearth/internal/metrics"
	"github.com/DukeRupert/hearth/internal/repository"
	"github.com/DukeRupert/hearth/internal/sms"
	"github.com/DukeRupert/hearth/internal/worker"
	"golang.org/x/sync/errgroup"
)

// NotifyAgentLeadHandler tells an agent about a newly assigned lead by email
// and, when the agent has a phone number, by SMS.
type NotifyAgentLeadHandler struct {
	queries      repository.Querier
	emailService email.EmailService
	smsSender    sms.Sender
	logger       *slog.Logger
}

// NewNotifyAgentLeadHandler creates a new handler for lead notification jobs.
// Either channel may be nil to disable it.
func NewNotifyAgentLeadHandler(
	queries repository.Querier,
	emailService email.EmailService,
	smsSender sms.Sender,
	logger *slog.Logger,
) *NotifyAgentLeadHandler {
	return &NotifyAgentLeadHandler{
		queries:      queries,
		emailService: emailService,
		smsSender:    smsSender,
		logger:       logger,
	}
}

// Type returns the job type identifier.
func (h *NotifyAgentLeadHandler) Type() string {
	return worker.JobTypeNotifyAgentLead
}

// Handle executes the notification job.
//
// Channels are sent in parallel. The job is retried only when every channel
// that was attempted failed with a transient error, so a delivered email is
// not repeated because SMS was down.
func (h *NotifyAgentLeadHandler) Handle(ctx context.Context, payload []byte) error {
	var p worker.NotifyAgentLeadPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return worker.NewPermanentError(fmt.Errorf("invalid payload: %w", err))
	}

	lead, err := h.queries.GetLead(ctx, p.LeadID)
	if err != nil {
		if repository.IsNotFound(err) {
			return worker.Permanentf("lead not found: %s", p.LeadID)
		}
		return fmt.Errorf("fetch lead: %w", err)
	}

	// The lead moved on before the job ran; the new agent has a job of
	// their own.
	if !lead.AssignedTo.Valid || lead.AssignedTo.UUID != p.AgentID {
		h.logger.Info("Lead no longer assigned to agent, skipping notification",
			"lead_id", p.LeadID,
			"agent_id", p.AgentID,
		)
		return nil
	}

	agent, err := h.queries.GetUser(ctx, p.AgentID)
	if err != nil {
		if repository.IsNotFound(err) {
			return worker.Permanentf("agent not found: %s", p.AgentID)
		}
		return fmt.Errorf("fetch agent: %w", err)
	}

	listing, err := h.queries.GetListing(ctx, lead.ListingID)
	if err != nil {
		return fmt.Errorf("fetch listing: %w", err)
	}

	msg := email.LeadAssigned{
		AgentName:    agent.Name,
		LeadID:       lead.ID,
		BuyerName:    lead.Name,
		BuyerEmail:   lead.Email,
		BuyerPhone:   domain.NullStringValue(lead.Phone),
		Message:      domain.NullStringValue(lead.Message),
		ListingTitle: listing.Title,
		ListingCity:  listing.City,
	}

	var (
		attempted int
		results   = make([]error, 2)
	)
	g, gctx := errgroup.WithContext(ctx)

	if h.emailService != nil && agent.Email != "" {
		attempted++
		g.Go(func() error {
			results[0] = h.deliver(gctx, "email", func(ctx context.Context) error {
				return h.emailService.SendLeadAssignedEmail(ctx, agent.Email, msg)
			})
			return nil
		})
	}

	phone := domain.NullStringValue(agent.Phone)
	if h.smsSender != nil && phone != "" {
		attempted++
		g.Go(func() error {
			results[1] = h.deliver(gctx, "sms", func(ctx context.Context) error {
				return h.smsSender.Send(ctx, phone, smsText(msg))
			})
			return nil
		})
	}

	_ = g.Wait()

	if attempted == 0 {
		h.logger.Warn("No notification channel for agent", "agent_id", p.AgentID, "lead_id", p.LeadID)
		return nil
	}

	var transient []error
	for _, err := range results {
		if err != nil && !sms.IsPermanent(err) {
			transient = append(transient, err)
		}
	}
	delivered := attempted - countErrors(results)

	if delivered == 0 && len(transient) > 0 {
		return errors.Join(transient...)
	}

	h.logger.Info("Lead notification sent",
		"lead_id", p.LeadID,
		"agent_id", p.AgentID,
		"channels", delivered,
	)
	return nil
}

// deliver runs one channel and records the outcome.
func (h *NotifyAgentLeadHandler) deliver(ctx context.Context, channel string, send func(context.Context) error) error {
	if err := send(ctx); err != nil {
		metrics.NotificationFailed(channel)
		h.logger.Warn("Lead notification channel failed",
			"channel", channel,
			"permanent", sms.IsPermanent(err),
			"error", err,
		)
		return err
	}
	metrics.NotificationSent(channel)
	return nil
}

func countErrors(errs []error) int {
	n := 0
	for _, err := range errs {
		if err != nil {
			n++
		}
	}
	return n
}

// smsText keeps the message within a single SMS segment where possible.
func smsText(m email.LeadAssigned) string {
	text := fmt.Sprintf("Hearth: new lead from %s for %s.", m.BuyerName, m.ListingTitle)
	if m.BuyerPhone != "" {
		text += " Call " + m.BuyerPhone
	}
	if len(text) > 160 {
		text = text[:157] + "..."
	}
	return text
}
