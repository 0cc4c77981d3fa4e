package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/DukeRupert/hearth/internal/auth"
	"github.com/DukeRupert/hearth/internal/domain"
	"github.com/DukeRupert/hearth/internal/service"
	"github.com/google/uuid"
)

// =============================================================================
// Service fakes
// =============================================================================

type fakeEntitlements struct {
	forUser func(ctx context.Context, userID uuid.UUID) (*service.UserEntitlements, error)
}

func (f *fakeEntitlements) ForUser(ctx context.Context, userID uuid.UUID) (*service.UserEntitlements, error) {
	return f.forUser(ctx, userID)
}

func (f *fakeEntitlements) Can(ctx context.Context, userID uuid.UUID, action domain.Action) (bool, error) {
	return false, nil
}

type fakeCapGuard struct {
	reserveListing   func(ctx context.Context, params domain.CreateListingParams) (*domain.Listing, error)
	setListingStatus func(ctx context.Context, actorID, listingID uuid.UUID, status domain.ListingStatus) (*domain.Listing, error)
	reserveSeat      func(ctx context.Context, params domain.AddMemberParams) (*domain.Member, error)
	removeMember     func(ctx context.Context, organizationID, actorID, userID uuid.UUID) error
}

func (f *fakeCapGuard) ReserveListing(ctx context.Context, params domain.CreateListingParams) (*domain.Listing, error) {
	return f.reserveListing(ctx, params)
}

func (f *fakeCapGuard) SetListingStatus(ctx context.Context, actorID, listingID uuid.UUID, status domain.ListingStatus) (*domain.Listing, error) {
	return f.setListingStatus(ctx, actorID, listingID, status)
}

func (f *fakeCapGuard) ReserveSeat(ctx context.Context, params domain.AddMemberParams) (*domain.Member, error) {
	return f.reserveSeat(ctx, params)
}

func (f *fakeCapGuard) RemoveMember(ctx context.Context, organizationID, actorID, userID uuid.UUID) error {
	return f.removeMember(ctx, organizationID, actorID, userID)
}

type fakeLeads struct {
	intake         func(ctx context.Context, params domain.CreateLeadParams) (*service.RouteResult, error)
	updateStatus   func(ctx context.Context, leadID, actorID uuid.UUID, status domain.LeadStatus) (*domain.Lead, error)
	listUnassigned func(ctx context.Context, organizationID, actorID uuid.UUID, limit int) ([]domain.Lead, error)
	history        func(ctx context.Context, leadID, actorID uuid.UUID) ([]domain.LeadAssignment, error)
}

func (f *fakeLeads) Intake(ctx context.Context, params domain.CreateLeadParams) (*service.RouteResult, error) {
	return f.intake(ctx, params)
}

func (f *fakeLeads) UpdateStatus(ctx context.Context, leadID, actorID uuid.UUID, status domain.LeadStatus) (*domain.Lead, error) {
	return f.updateStatus(ctx, leadID, actorID, status)
}

func (f *fakeLeads) ListUnassigned(ctx context.Context, organizationID, actorID uuid.UUID, limit int) ([]domain.Lead, error) {
	return f.listUnassigned(ctx, organizationID, actorID, limit)
}

func (f *fakeLeads) History(ctx context.Context, leadID, actorID uuid.UUID) ([]domain.LeadAssignment, error) {
	return f.history(ctx, leadID, actorID)
}

type fakeRouter struct {
	assignLead   func(ctx context.Context, leadID, agentID, actorID uuid.UUID) (*domain.Lead, error)
	reassignLead func(ctx context.Context, leadID, agentID, actorID uuid.UUID, reason string) (*domain.Lead, error)
}

func (f *fakeRouter) Route(ctx context.Context, leadID uuid.UUID) (*service.RouteResult, error) {
	return nil, domain.Internal(nil, "fake.route", "not used")
}

func (f *fakeRouter) AssignLead(ctx context.Context, leadID, agentID, actorID uuid.UUID) (*domain.Lead, error) {
	return f.assignLead(ctx, leadID, agentID, actorID)
}

func (f *fakeRouter) ReassignLead(ctx context.Context, leadID, agentID, actorID uuid.UUID, reason string) (*domain.Lead, error) {
	return f.reassignLead(ctx, leadID, agentID, actorID, reason)
}

type fakeRouting struct {
	get             func(ctx context.Context, organizationID, actorID uuid.UUID) (*domain.RoutingConfig, error)
	put             func(ctx context.Context, actorID uuid.UUID, cfg domain.RoutingConfig) (*domain.RoutingConfig, error)
	setAvailability func(ctx context.Context, organizationID, actorID, agentID uuid.UUID, available bool) (*domain.AssignmentTracking, error)
	setLimits       func(ctx context.Context, organizationID, actorID, agentID uuid.UUID, maxLeadsPerDay, weight int) (*domain.AssignmentTracking, error)
}

func (f *fakeRouting) Get(ctx context.Context, organizationID, actorID uuid.UUID) (*domain.RoutingConfig, error) {
	return f.get(ctx, organizationID, actorID)
}

func (f *fakeRouting) Put(ctx context.Context, actorID uuid.UUID, cfg domain.RoutingConfig) (*domain.RoutingConfig, error) {
	return f.put(ctx, actorID, cfg)
}

func (f *fakeRouting) SetAgentAvailability(ctx context.Context, organizationID, actorID, agentID uuid.UUID, available bool) (*domain.AssignmentTracking, error) {
	return f.setAvailability(ctx, organizationID, actorID, agentID, available)
}

func (f *fakeRouting) SetAgentLimits(ctx context.Context, organizationID, actorID, agentID uuid.UUID, maxLeadsPerDay, weight int) (*domain.AssignmentTracking, error) {
	return f.setLimits(ctx, organizationID, actorID, agentID, maxLeadsPerDay, weight)
}

var (
	_ service.EntitlementService   = (*fakeEntitlements)(nil)
	_ service.CapGuard             = (*fakeCapGuard)(nil)
	_ service.LeadService          = (*fakeLeads)(nil)
	_ service.LeadRouter           = (*fakeRouter)(nil)
	_ service.RoutingConfigService = (*fakeRouting)(nil)
)

// =============================================================================
// Request helpers
// =============================================================================

// passThrough stands in for RequireUser; handlers answer 401 themselves when
// no user is in the context.
func passThrough(next http.Handler) http.Handler { return next }

// serve registers routes on a fresh mux and runs one request through it.
// A non-nil user is placed in the request context.
func serve(register func(mux *http.ServeMux), user *domain.User, method, path, body string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	register(mux)

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		req = req.WithContext(auth.SetUser(req.Context(), user))
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func testAgent() *domain.User {
	return &domain.User{ID: uuid.New(), Email: "morgan@example.com", Name: "Morgan Reyes", Role: domain.RoleAgent}
}
