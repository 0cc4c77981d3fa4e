// Package service contains the business logic layer.
//
// Services orchestrate interactions between repositories, external APIs,
// and domain logic. They are responsible for:
// - Input validation
// - Business rule enforcement
// - Transaction coordination
// - Error translation (database errors -> domain errors)
package service

import (
	"context"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/DukeRupert/hearth/internal/domain"
	"github.com/DukeRupert/hearth/internal/repository"
	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// UserService manages accounts and the subscription state that decides a
// user's role. Authentication happens upstream.
type UserService interface {
	// Create adds an account with the registered role.
	// Returns domain.ECONFLICT if the email already exists.
	Create(ctx context.Context, params domain.CreateUserParams) (*domain.User, error)

	// GetByID retrieves a user by their ID.
	// Returns domain.ENOTFOUND if the user doesn't exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)

	// GetByStripeCustomerID retrieves a user by their Stripe customer ID.
	// Returns domain.ENOTFOUND if no user has this customer ID.
	GetByStripeCustomerID(ctx context.Context, stripeCustomerID string) (*domain.User, error)

	// ApplySubscription records a subscription change and derives the role
	// from it. A status that no longer pays drops the user to registered.
	ApplySubscription(ctx context.Context, update domain.SubscriptionUpdate) (*domain.User, error)
}

// =============================================================================
// Implementation
// =============================================================================

type userService struct {
	queries repository.Querier
	logger  *slog.Logger
}

// NewUserService creates a new UserService.
func NewUserService(queries repository.Querier, logger *slog.Logger) UserService {
	return &userService{
		queries: queries,
		logger:  logger,
	}
}

// Create registers a new account.
func (s *userService) Create(ctx context.Context, params domain.CreateUserParams) (*domain.User, error) {
	const op = "user.create"

	email := strings.ToLower(strings.TrimSpace(params.Email))
	if err := validateEmail(email); err != nil {
		return nil, domain.Invalid(op, err.Error())
	}
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, domain.Invalid(op, "name is required")
	}

	row, err := s.queries.CreateUser(ctx, repository.CreateUserParams{
		Email: email,
		Name:  name,
		Phone: domain.ToNullString(strings.TrimSpace(params.Phone)),
		Role:  string(domain.RoleRegistered),
	})
	if err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, domain.Conflict(op, "an account with this email already exists")
		}
		return nil, domain.Internal(err, op, "failed to create user")
	}

	s.logger.Info("User created", "user_id", row.ID)
	return toDomainUser(row), nil
}

// GetByID retrieves a user by their ID.
func (s *userService) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	const op = "user.get"

	row, err := s.queries.GetUser(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, domain.NotFound(op, "user", id.String())
		}
		return nil, domain.Internal(err, op, "failed to get user")
	}
	return toDomainUser(row), nil
}

// GetByStripeCustomerID retrieves a user by their Stripe customer ID.
func (s *userService) GetByStripeCustomerID(ctx context.Context, stripeCustomerID string) (*domain.User, error) {
	const op = "user.get_by_stripe_customer"

	if stripeCustomerID == "" {
		return nil, domain.Invalid(op, "customer ID is required")
	}

	row, err := s.queries.GetUserByStripeCustomerID(ctx, domain.ToNullString(stripeCustomerID))
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, domain.NotFound(op, "user", stripeCustomerID)
		}
		return nil, domain.Internal(err, op, "failed to get user by customer ID")
	}
	return toDomainUser(row), nil
}

// ApplySubscription stores the new subscription state.
func (s *userService) ApplySubscription(ctx context.Context, update domain.SubscriptionUpdate) (*domain.User, error) {
	const op = "user.apply_subscription"

	row, err := s.queries.GetUser(ctx, update.UserID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, domain.NotFound(op, "user", update.UserID.String())
		}
		return nil, domain.Internal(err, op, "failed to get user")
	}
	user := toDomainUser(row)

	role := update.RoleFor(user.Role)
	if role == domain.RoleAdmin || user.Role == domain.RoleAdmin {
		// Admin is granted by hand and never comes from billing.
		role = user.Role
	}

	if err := s.queries.UpdateUserSubscription(ctx, repository.UpdateUserSubscriptionParams{
		ID:                 update.UserID,
		Role:               string(role),
		StripeCustomerID:   domain.ToNullString(update.CustomerID),
		SubscriptionStatus: domain.ToNullString(string(update.Status)),
		SubscriptionID:     domain.ToNullString(update.SubscriptionID),
	}); err != nil {
		return nil, domain.Internal(err, op, "failed to update subscription")
	}

	if role != user.Role {
		s.logger.Info("User role changed by subscription",
			"user_id", user.ID,
			"from", user.Role,
			"to", role,
			"status", update.Status,
		)
	}

	user.Role = role
	user.StoredRole = string(role)
	user.SubscriptionStatus = update.Status
	user.SubscriptionID = update.SubscriptionID
	if update.CustomerID != "" {
		user.StripeCustomerID = update.CustomerID
	}
	return user, nil
}

func validateEmail(email string) error {
	if email == "" {
		return errEmailRequired
	}
	if len(email) > 254 {
		return errEmailTooLong
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return errEmailInvalid
	}
	return nil
}

var (
	errEmailRequired = domain.Errorf(domain.EINVALID, "", "email is required")
	errEmailTooLong  = domain.Errorf(domain.EINVALID, "", "email must be 254 characters or less")
	errEmailInvalid  = domain.Errorf(domain.EINVALID, "", "email address is not valid")
)
