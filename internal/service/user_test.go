package service

import (
	"context"
	"strings"
	"testing"

	"github.com/DukeRupert/hearth/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserService_Create(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := NewUserService(store, testLogger())

	user, err := svc.Create(ctx, domain.CreateUserParams{
		Email: "  Jamie@Example.COM ",
		Name:  " Jamie Realtor ",
		Phone: "503-555-0199",
	})
	require.NoError(t, err)
	assert.Equal(t, "jamie@example.com", user.Email)
	assert.Equal(t, "Jamie Realtor", user.Name)
	assert.Equal(t, domain.RoleRegistered, user.Role)

	fetched, err := svc.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Email, fetched.Email)

	_, err = svc.Create(ctx, domain.CreateUserParams{Email: "jamie@example.com", Name: "Someone Else"})
	assert.Equal(t, domain.ECONFLICT, domain.ErrorCode(err))
}

func TestUserService_Create_Validation(t *testing.T) {
	ctx := context.Background()
	svc := NewUserService(newFakeStore(), testLogger())

	tests := []struct {
		name   string
		params domain.CreateUserParams
		want   string
	}{
		{"missing email", domain.CreateUserParams{Name: "Jamie"}, "email is required"},
		{"bad email", domain.CreateUserParams{Email: "jamie at example", Name: "Jamie"}, "not valid"},
		{"long email", domain.CreateUserParams{Email: strings.Repeat("j", 250) + "@example.com", Name: "Jamie"}, "254 characters"},
		{"missing name", domain.CreateUserParams{Email: "jamie@example.com", Name: "  "}, "name is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.params)
			require.Error(t, err)
			assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
			assert.Contains(t, domain.ErrorMessage(err), tt.want)
		})
	}
}

func TestUserService_GetByStripeCustomerID(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := NewUserService(store, testLogger())

	_, err := svc.GetByStripeCustomerID(ctx, "")
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))

	_, err = svc.GetByStripeCustomerID(ctx, "cus_missing")
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))

	id := store.addUser(t, domain.RoleRegistered)
	_, err = svc.ApplySubscription(ctx, domain.SubscriptionUpdate{
		UserID:         id,
		CustomerID:     "cus_123",
		SubscriptionID: "sub_123",
		Status:         domain.SubscriptionStatusActive,
		Role:           domain.RoleAgent,
	})
	require.NoError(t, err)

	user, err := svc.GetByStripeCustomerID(ctx, "cus_123")
	require.NoError(t, err)
	assert.Equal(t, id, user.ID)
	assert.Equal(t, domain.RoleAgent, user.Role)
}

func TestUserService_ApplySubscription(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		current domain.Role
		status  domain.SubscriptionStatus
		granted domain.Role
		want    domain.Role
	}{
		{"checkout grants agent", domain.RoleRegistered, domain.SubscriptionStatusActive, domain.RoleAgent, domain.RoleAgent},
		{"trial grants agency", domain.RoleRegistered, domain.SubscriptionStatusTrialing, domain.RoleAgency, domain.RoleAgency},
		{"upgrade to expert", domain.RoleAgent, domain.SubscriptionStatusActive, domain.RoleExpert, domain.RoleExpert},
		{"past due keeps role", domain.RoleAgent, domain.SubscriptionStatusPastDue, "", domain.RoleAgent},
		{"unknown price keeps role", domain.RolePremium, domain.SubscriptionStatusActive, "", domain.RolePremium},
		{"canceled drops to registered", domain.RoleAgency, domain.SubscriptionStatusCanceled, domain.RoleAgency, domain.RoleRegistered},
		{"unpaid drops to registered", domain.RoleAgent, domain.SubscriptionStatusUnpaid, "", domain.RoleRegistered},
		{"free user paying without price becomes registered", domain.RoleFree, domain.SubscriptionStatusActive, "", domain.RoleRegistered},
		{"admin untouched by cancel", domain.RoleAdmin, domain.SubscriptionStatusCanceled, "", domain.RoleAdmin},
		{"admin untouched by new price", domain.RoleAdmin, domain.SubscriptionStatusActive, domain.RoleAgent, domain.RoleAdmin},
		{"billing never grants admin", domain.RoleAgent, domain.SubscriptionStatusActive, domain.RoleAdmin, domain.RoleAgent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			svc := NewUserService(store, testLogger())
			id := store.addUser(t, tt.current)

			user, err := svc.ApplySubscription(ctx, domain.SubscriptionUpdate{
				UserID:         id,
				SubscriptionID: "sub_1",
				Status:         tt.status,
				Role:           tt.granted,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, user.Role)
			assert.Equal(t, tt.status, user.SubscriptionStatus)

			stored := store.user(id)
			assert.Equal(t, string(tt.want), stored.Role)
			assert.Equal(t, string(tt.status), stored.SubscriptionStatus.String)
		})
	}
}

func TestUserService_ApplySubscription_UnknownUser(t *testing.T) {
	svc := NewUserService(newFakeStore(), testLogger())

	_, err := svc.ApplySubscription(context.Background(), domain.SubscriptionUpdate{
		UserID: uuid.New(),
		Status: domain.SubscriptionStatusActive,
	})
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
}
