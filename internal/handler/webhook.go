// This file implements the Stripe webhook handler that keeps subscription
// roles in sync with billing.
//
// Route:
//   - POST /webhooks/stripe -> HandleStripeWebhook
//
// This route is PUBLIC (no identity middleware) because Stripe calls it
// directly. Authentication is via the Stripe webhook signature verification.
package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/DukeRupert/hearth/internal/billing"
	"github.com/DukeRupert/hearth/internal/domain"
	"github.com/DukeRupert/hearth/internal/service"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
)

// WebhookHandler handles incoming webhook events from Stripe.
type WebhookHandler struct {
	billing     billing.Service
	userService service.UserService
	logger      *slog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
// billingService may be nil when Stripe is not configured.
func NewWebhookHandler(billingService billing.Service, userService service.UserService, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		billing:     billingService,
		userService: userService,
		logger:      logger,
	}
}

// RegisterRoutes registers webhook routes on the provided mux.
// These routes are PUBLIC.
func (h *WebhookHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /webhooks/stripe", h.HandleStripeWebhook)
}

// HandleStripeWebhook processes incoming Stripe webhook events.
//
// Only storage failures are answered with 500 so Stripe redelivers the event.
// Events for unknown customers are acknowledged and dropped.
func (h *WebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	if h.billing == nil {
		h.logger.Warn("stripe webhook received but billing is not configured")
		w.WriteHeader(http.StatusOK)
		return
	}

	// Read body (limit to 64KB)
	body, err := io.ReadAll(io.LimitReader(r.Body, 65536))
	if err != nil {
		h.logger.Error("failed to read webhook body", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	// Verify signature
	signature := r.Header.Get("Stripe-Signature")
	event, err := h.billing.VerifyWebhookSignature(body, signature)
	if err != nil {
		h.logger.Warn("webhook signature verification failed", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	h.logger.Info("stripe webhook received", "type", event.Type, "id", event.ID)

	ctx := r.Context()

	// Route to event-specific handler
	switch event.Type {
	case "checkout.session.completed":
		err = h.handleCheckoutCompleted(ctx, event)
	case "customer.subscription.created", "customer.subscription.updated":
		err = h.handleSubscriptionChanged(ctx, event)
	case "customer.subscription.deleted":
		err = h.handleSubscriptionDeleted(ctx, event)
	case "invoice.payment_failed":
		err = h.handlePaymentFailed(ctx, event)
	default:
		h.logger.Debug("unhandled webhook event type", "type", event.Type)
	}

	if err != nil {
		h.logger.Error("failed to process webhook event", "type", event.Type, "id", event.ID, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// handleCheckoutCompleted links the Stripe customer to the user named in the
// session's client_reference_id. The role itself arrives with the
// subscription event.
func (h *WebhookHandler) handleCheckoutCompleted(ctx context.Context, event stripe.Event) error {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		h.logger.Error("failed to parse checkout session", "error", err)
		return nil
	}

	if session.Customer == nil || session.Subscription == nil {
		h.logger.Warn("checkout session missing customer or subscription", "session_id", session.ID)
		return nil
	}

	user, ok, err := h.userForCheckout(ctx, session)
	if err != nil || !ok {
		return err
	}

	_, err = h.userService.ApplySubscription(ctx, domain.SubscriptionUpdate{
		UserID:         user.ID,
		CustomerID:     session.Customer.ID,
		SubscriptionID: session.Subscription.ID,
		Status:         domain.SubscriptionStatusActive,
	})
	return ignoreMissingUser(err)
}

func (h *WebhookHandler) userForCheckout(ctx context.Context, session stripe.CheckoutSession) (*domain.User, bool, error) {
	user, err := h.userService.GetByStripeCustomerID(ctx, session.Customer.ID)
	if err == nil {
		return user, true, nil
	}
	if domain.ErrorCode(err) != domain.ENOTFOUND {
		return nil, false, err
	}

	if session.ClientReferenceID == "" {
		h.logger.Info("user not found by customer ID, checkout may update on subscription event",
			"customer_id", session.Customer.ID, "subscription_id", session.Subscription.ID)
		return nil, false, nil
	}

	userID, err := uuid.Parse(session.ClientReferenceID)
	if err != nil {
		h.logger.Warn("checkout session has malformed client reference", "session_id", session.ID)
		return nil, false, nil
	}
	user, err = h.userService.GetByID(ctx, userID)
	if err != nil {
		return nil, false, ignoreMissingUser(err)
	}
	return user, true, nil
}

func (h *WebhookHandler) handleSubscriptionChanged(ctx context.Context, event stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		h.logger.Error("failed to parse subscription event", "error", err, "type", event.Type)
		return nil
	}

	if sub.Customer == nil {
		h.logger.Warn("subscription event missing customer", "subscription_id", sub.ID)
		return nil
	}

	user, err := h.userService.GetByStripeCustomerID(ctx, sub.Customer.ID)
	if err != nil {
		h.logger.Warn("user not found for subscription event",
			"customer_id", sub.Customer.ID, "subscription_id", sub.ID)
		return ignoreMissingUser(err)
	}

	// Determine role from price
	var role domain.Role
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		role = h.billing.RoleForPriceID(sub.Items.Data[0].Price.ID)
	}

	updated, err := h.userService.ApplySubscription(ctx, domain.SubscriptionUpdate{
		UserID:         user.ID,
		CustomerID:     sub.Customer.ID,
		SubscriptionID: sub.ID,
		Status:         domain.SubscriptionStatus(sub.Status),
		Role:           role,
	})
	if err != nil {
		return ignoreMissingUser(err)
	}

	h.logger.Info("subscription event processed",
		"user_id", user.ID, "status", sub.Status, "role", updated.Role)
	return nil
}

func (h *WebhookHandler) handleSubscriptionDeleted(ctx context.Context, event stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		h.logger.Error("failed to parse subscription deleted event", "error", err)
		return nil
	}

	if sub.Customer == nil {
		h.logger.Warn("subscription deleted event missing customer", "subscription_id", sub.ID)
		return nil
	}

	user, err := h.userService.GetByStripeCustomerID(ctx, sub.Customer.ID)
	if err != nil {
		h.logger.Warn("user not found for subscription deletion", "customer_id", sub.Customer.ID)
		return ignoreMissingUser(err)
	}

	if _, err := h.userService.ApplySubscription(ctx, domain.SubscriptionUpdate{
		UserID:     user.ID,
		CustomerID: sub.Customer.ID,
		Status:     domain.SubscriptionStatusCanceled,
	}); err != nil {
		return ignoreMissingUser(err)
	}

	h.logger.Info("subscription deleted", "user_id", user.ID, "subscription_id", sub.ID)
	return nil
}

// handlePaymentFailed marks the subscription past_due. The role is kept for
// the grace period; the subscription event that follows decides the rest.
func (h *WebhookHandler) handlePaymentFailed(ctx context.Context, event stripe.Event) error {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		h.logger.Error("failed to parse invoice payment failed event", "error", err)
		return nil
	}

	if invoice.Customer == nil {
		return nil
	}

	user, err := h.userService.GetByStripeCustomerID(ctx, invoice.Customer.ID)
	if err != nil {
		h.logger.Debug("user not found for payment failed", "customer_id", invoice.Customer.ID)
		return ignoreMissingUser(err)
	}

	if _, err := h.userService.ApplySubscription(ctx, domain.SubscriptionUpdate{
		UserID:         user.ID,
		CustomerID:     invoice.Customer.ID,
		SubscriptionID: user.SubscriptionID,
		Status:         domain.SubscriptionStatusPastDue,
		Role:           user.Role,
	}); err != nil {
		return ignoreMissingUser(err)
	}

	h.logger.Warn("payment failed", "user_id", user.ID, "customer_id", invoice.Customer.ID)
	return nil
}

// ignoreMissingUser turns not-found into success so Stripe stops redelivering
// events for customers this system does not know.
func ignoreMissingUser(err error) error {
	if err == nil || domain.ErrorCode(err) == domain.ENOTFOUND {
		return nil
	}
	return err
}
