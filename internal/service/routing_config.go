package service

import (
	"context"
	"log/slog"

	"github.com/DukeRupert/hearth/internal/domain"
	"github.com/DukeRupert/hearth/internal/repository"
	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

// RoutingConfigService manages an organization's routing policy and the
// per-agent routing settings.
type RoutingConfigService interface {
	// Get returns the stored config, or the default one (round-robin, no cap)
	// with IsDefault set.
	Get(ctx context.Context, organizationID, actorID uuid.UUID) (*domain.RoutingConfig, error)

	// Put validates and overwrites the config. Requires a manager, and an
	// organization plan that includes lead routing.
	Put(ctx context.Context, actorID uuid.UUID, cfg domain.RoutingConfig) (*domain.RoutingConfig, error)

	// SetAgentAvailability toggles whether an agent receives routed leads.
	// Agents may change their own availability; managers anyone's.
	SetAgentAvailability(ctx context.Context, organizationID, actorID, agentID uuid.UUID, available bool) (*domain.AssignmentTracking, error)

	// SetAgentLimits sets an agent's daily cap and explicit weight. Zero
	// clears either override. Managers only.
	SetAgentLimits(ctx context.Context, organizationID, actorID, agentID uuid.UUID, maxLeadsPerDay, weight int) (*domain.AssignmentTracking, error)
}

type routingConfigService struct {
	queries repository.Querier
	logger  *slog.Logger
}

// NewRoutingConfigService creates a new RoutingConfigService.
func NewRoutingConfigService(queries repository.Querier, logger *slog.Logger) RoutingConfigService {
	return &routingConfigService{
		queries: queries,
		logger:  logger,
	}
}

func (s *routingConfigService) Get(ctx context.Context, organizationID, actorID uuid.UUID) (*domain.RoutingConfig, error) {
	const op = "routing_config.get"

	org, err := s.getOrganization(ctx, op, organizationID)
	if err != nil {
		return nil, err
	}
	if _, err := requireMember(ctx, s.queries, org, actorID, op); err != nil {
		return nil, err
	}

	row, err := s.queries.GetRoutingConfig(ctx, organizationID)
	if err != nil {
		if repository.IsNotFound(err) {
			cfg := domain.DefaultRoutingConfig(organizationID)
			return &cfg, nil
		}
		return nil, domain.Internal(err, op, "failed to get routing config")
	}
	cfg := toDomainRoutingConfig(row, s.logger)
	return &cfg, nil
}

func (s *routingConfigService) Put(ctx context.Context, actorID uuid.UUID, cfg domain.RoutingConfig) (*domain.RoutingConfig, error) {
	const op = "routing_config.put"

	if err := cfg.Validate(); err != nil {
		return nil, domain.Invalid(op, err.Error())
	}

	org, err := s.getOrganization(ctx, op, cfg.OrganizationID)
	if err != nil {
		return nil, err
	}
	if err := requireManager(ctx, s.queries, org, actorID, op); err != nil {
		return nil, err
	}
	if !toDomainOrganization(org).Flags().LeadRouting {
		return nil, domain.Errorf(domain.EPAYMENT, op, "Your organization's plan does not include lead routing. Upgrade to unlock it.")
	}

	var hours pqtype.NullRawMessage
	if cfg.WorkingHours != nil {
		if hours, err = marshalNullJSON(cfg.WorkingHours); err != nil {
			return nil, domain.Internal(err, op, "failed to encode working hours")
		}
	}

	row, err := s.queries.UpsertRoutingConfig(ctx, repository.UpsertRoutingConfigParams{
		OrganizationID:   cfg.OrganizationID,
		RoutingType:      string(cfg.RoutingType),
		IsActive:         cfg.IsActive,
		MaxLeadsPerAgent: int32(cfg.MaxLeadsPerAgent),
		WorkingHours:     hours,
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to save routing config")
	}

	s.logger.Info("Routing config changed",
		"organization_id", cfg.OrganizationID,
		"actor_id", actorID,
		"routing_type", cfg.RoutingType,
		"is_active", cfg.IsActive,
		"max_leads_per_agent", cfg.MaxLeadsPerAgent,
		"working_hours", cfg.WorkingHours != nil,
	)

	saved := toDomainRoutingConfig(row, s.logger)
	return &saved, nil
}

func (s *routingConfigService) SetAgentAvailability(ctx context.Context, organizationID, actorID, agentID uuid.UUID, available bool) (*domain.AssignmentTracking, error) {
	const op = "routing_config.set_agent_availability"

	org, err := s.getOrganization(ctx, op, organizationID)
	if err != nil {
		return nil, err
	}
	if actorID != agentID {
		if err := requireManager(ctx, s.queries, org, actorID, op); err != nil {
			return nil, err
		}
	}
	if _, err := requireMember(ctx, s.queries, org, agentID, op); err != nil {
		return nil, err
	}

	row, err := s.queries.UpsertAgentAvailability(ctx, repository.UpsertAgentAvailabilityParams{
		OrganizationID: organizationID,
		AgentID:        agentID,
		IsAvailable:    available,
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to update availability")
	}

	s.logger.Info("Agent availability changed",
		"organization_id", organizationID,
		"agent_id", agentID,
		"actor_id", actorID,
		"available", available,
	)
	return toDomainTracking(row), nil
}

func (s *routingConfigService) SetAgentLimits(ctx context.Context, organizationID, actorID, agentID uuid.UUID, maxLeadsPerDay, weight int) (*domain.AssignmentTracking, error) {
	const op = "routing_config.set_agent_limits"

	if maxLeadsPerDay < 0 {
		return nil, domain.Invalid(op, "max leads per day must not be negative")
	}
	if weight < 0 || weight > 100 {
		return nil, domain.Invalid(op, "weight must be between 0 and 100")
	}

	org, err := s.getOrganization(ctx, op, organizationID)
	if err != nil {
		return nil, err
	}
	if err := requireManager(ctx, s.queries, org, actorID, op); err != nil {
		return nil, err
	}
	if _, err := requireMember(ctx, s.queries, org, agentID, op); err != nil {
		return nil, err
	}

	row, err := s.queries.UpsertAgentLimits(ctx, repository.UpsertAgentLimitsParams{
		OrganizationID: organizationID,
		AgentID:        agentID,
		MaxLeadsPerDay: int32(maxLeadsPerDay),
		Weight:         int32(weight),
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to update agent limits")
	}

	s.logger.Info("Agent routing limits changed",
		"organization_id", organizationID,
		"agent_id", agentID,
		"actor_id", actorID,
		"max_leads_per_day", maxLeadsPerDay,
		"weight", weight,
	)
	return toDomainTracking(row), nil
}

func (s *routingConfigService) getOrganization(ctx context.Context, op string, id uuid.UUID) (repository.Organization, error) {
	org, err := s.queries.GetOrganization(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return org, domain.NotFound(op, "organization", id.String())
		}
		return org, domain.Internal(err, op, "failed to get organization")
	}
	return org, nil
}
