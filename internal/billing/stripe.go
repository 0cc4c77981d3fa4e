// Package billing provides the Stripe integration that drives subscription
// roles.
package billing

import (
	"fmt"

	"github.com/DukeRupert/hearth/internal/domain"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
)

// Service defines the interface for billing operations.
type Service interface {
	// VerifyWebhookSignature verifies the Stripe webhook signature and returns the event.
	VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error)

	// RoleForPriceID returns the role a Stripe price grants, or "" if the
	// price is not configured.
	RoleForPriceID(priceID string) domain.Role
}

// PriceConfig holds the Stripe price IDs for each paid role. Monthly and
// yearly prices may both map to the same role.
type PriceConfig struct {
	PremiumPriceIDs []string
	AgentPriceIDs   []string
	AgencyPriceIDs  []string
	ExpertPriceIDs  []string
}

// stripeService is the concrete implementation of Service.
type stripeService struct {
	webhookSecret string
	priceToRole   map[string]domain.Role
}

// NewStripeService creates a new Stripe billing service.
//
// The secretKey is used to authenticate Stripe API calls.
// The webhookSecret is used to verify incoming webhook signatures.
func NewStripeService(secretKey, webhookSecret string, prices PriceConfig) Service {
	stripe.Key = secretKey

	return &stripeService{
		webhookSecret: webhookSecret,
		priceToRole:   buildPriceMap(prices),
	}
}

func buildPriceMap(prices PriceConfig) map[string]domain.Role {
	m := make(map[string]domain.Role)
	add := func(ids []string, role domain.Role) {
		for _, id := range ids {
			if id != "" {
				m[id] = role
			}
		}
	}
	add(prices.PremiumPriceIDs, domain.RolePremium)
	add(prices.AgentPriceIDs, domain.RoleAgent)
	add(prices.AgencyPriceIDs, domain.RoleAgency)
	add(prices.ExpertPriceIDs, domain.RoleExpert)
	return m
}

func (s *stripeService) VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error) {
	event, err := webhook.ConstructEvent(payload, signature, s.webhookSecret)
	if err != nil {
		return stripe.Event{}, fmt.Errorf("stripe webhook signature verification failed: %w", err)
	}
	return event, nil
}

func (s *stripeService) RoleForPriceID(priceID string) domain.Role {
	return s.priceToRole[priceID]
}
