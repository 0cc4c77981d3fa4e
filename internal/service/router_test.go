package service

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DukeRupert/hearth/internal/domain"
	"github.com/DukeRupert/hearth/internal/notify"
	"github.com/DukeRupert/hearth/internal/repository"
	"github.com/DukeRupert/hearth/internal/worker"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

var (
	agentA = uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	agentB = uuid.MustParse("00000000-0000-0000-0000-00000000000b")
	agentC = uuid.MustParse("00000000-0000-0000-0000-00000000000c")
)

// testClock advances one minute per reading, starting Monday 2026-03-02
// 15:00 UTC.
type testClock struct {
	ticks atomic.Int64
}

func (c *testClock) now() time.Time {
	n := c.ticks.Add(1)
	return time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC).Add(time.Duration(n) * time.Minute)
}

type routingFixture struct {
	store   *fakeStore
	router  *leadRouter
	orgID   uuid.UUID
	owner   uuid.UUID
	listing uuid.UUID
}

// newRoutingFixture builds an agency brokerage whose owner does not take
// leads, with agents A, B and C on the roster and one active listing.
func newRoutingFixture(t *testing.T) *routingFixture {
	t.Helper()
	store := newFakeStore()

	owner := store.addUser(t, domain.RoleRegistered)
	orgID := store.addOrganization(t, domain.RoleAgency, owner)
	for _, id := range []uuid.UUID{agentA, agentB, agentC} {
		store.addUserWithID(t, id, string(domain.RoleAgent))
		store.addMember(t, orgID, id, domain.MemberRoleAgent)
	}
	listing := store.addListing(t, agentA, &orgID, domain.ListingStatusActive)

	clock := &testClock{}
	router := NewLeadRouter(store, notify.NewJobNotifier(store, testLogger()), DefaultTxAttempts, testLogger()).(*leadRouter)
	router.now = clock.now

	return &routingFixture{
		store:   store,
		router:  router,
		orgID:   orgID,
		owner:   owner,
		listing: listing,
	}
}

func (f *routingFixture) route(t *testing.T) *RouteResult {
	t.Helper()
	result, err := f.router.Route(context.Background(), f.store.addLead(t, f.listing))
	require.NoError(t, err)
	return result
}

func assignedAgent(t *testing.T, result *RouteResult) uuid.UUID {
	t.Helper()
	require.Equal(t, OutcomeAssigned, result.Outcome, "reason: %s", result.Decision.Reason)
	require.NotNil(t, result.Lead.AssignedTo)
	return *result.Lead.AssignedTo
}

func TestRoute_RoundRobinSequence(t *testing.T) {
	f := newRoutingFixture(t)

	var got []uuid.UUID
	for i := 0; i < 6; i++ {
		got = append(got, assignedAgent(t, f.route(t)))
	}

	assert.Equal(t, []uuid.UUID{agentA, agentB, agentC, agentA, agentB, agentC}, got)

	for _, id := range []uuid.UUID{agentA, agentB, agentC} {
		tr, ok := f.store.tracking(f.orgID, id)
		require.True(t, ok)
		assert.Equal(t, int64(2), tr.TotalAssigned)
	}
}

func TestRoute_WritesAuditAndNotifies(t *testing.T) {
	f := newRoutingFixture(t)

	result := f.route(t)
	agent := assignedAgent(t, result)
	assert.Equal(t, domain.RoutingRoundRobin, result.Decision.Policy)
	assert.Equal(t, 3, result.Decision.Eligible)
	require.NotNil(t, result.Config)
	assert.True(t, result.Config.IsDefault)

	stored := f.store.lead(result.Lead.ID)
	assert.Equal(t, agent, stored.AssignedTo.UUID)
	assert.True(t, stored.AssignedAt.Valid)

	audit := f.store.assignmentsFor(result.Lead.ID)
	require.Len(t, audit, 1)
	assert.Equal(t, string(domain.AssignmentAuto), audit[0].Kind)
	assert.Equal(t, string(domain.RoutingRoundRobin), audit[0].Policy.String)
	assert.Equal(t, agent, audit[0].AgentID)
	assert.True(t, audit[0].Meta.Valid)

	jobs := f.store.jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, worker.JobTypeNotifyAgentLead, jobs[0].JobType)
	var payload worker.NotifyAgentLeadPayload
	require.NoError(t, json.Unmarshal(jobs[0].Payload, &payload))
	assert.Equal(t, agent, payload.AgentID)
	assert.Equal(t, result.Lead.ID, payload.LeadID)
}

func TestRoute_ManualAssignmentVisibleToPolicy(t *testing.T) {
	ctx := context.Background()
	f := newRoutingFixture(t)

	// A was never auto-routed a lead but takes one by hand.
	manual := f.store.addLead(t, f.listing)
	_, err := f.router.AssignLead(ctx, manual, agentA, f.owner)
	require.NoError(t, err)

	tr, ok := f.store.tracking(f.orgID, agentA)
	require.True(t, ok)
	assert.Equal(t, int64(1), tr.TotalAssigned)

	assert.Equal(t, agentB, assignedAgent(t, f.route(t)))
	assert.Equal(t, agentC, assignedAgent(t, f.route(t)))
	assert.Equal(t, agentA, assignedAgent(t, f.route(t)))
}

func TestRoute_NoEligibleAgentLeavesLeadUnassigned(t *testing.T) {
	ctx := context.Background()
	f := newRoutingFixture(t)

	for _, id := range []uuid.UUID{agentA, agentB, agentC} {
		_, err := f.store.UpsertAgentAvailability(ctx, upsertAvailability(f.orgID, id, false))
		require.NoError(t, err)
	}

	result := f.route(t)
	assert.Equal(t, OutcomeNoEligibleAgent, result.Outcome)
	assert.Equal(t, domain.ReasonNoAvailableAgents, result.Decision.Reason)
	assert.Nil(t, result.Lead.AssignedTo)

	stored := f.store.lead(result.Lead.ID)
	assert.False(t, stored.AssignedTo.Valid)
	assert.Empty(t, f.store.assignmentsFor(result.Lead.ID))
	assert.Empty(t, f.store.jobs())

	// The lead waits in the manual queue and can be routed once someone is back.
	_, err := f.store.UpsertAgentAvailability(ctx, upsertAvailability(f.orgID, agentC, true))
	require.NoError(t, err)
	again, err := f.router.Route(ctx, result.Lead.ID)
	require.NoError(t, err)
	assert.Equal(t, agentC, assignedAgent(t, again))
}

func TestRoute_DailyLimit(t *testing.T) {
	f := newRoutingFixture(t)
	f.store.setRoutingConfig(t, domain.RoutingConfig{
		OrganizationID:   f.orgID,
		RoutingType:      domain.RoutingRoundRobin,
		IsActive:         true,
		MaxLeadsPerAgent: 1,
	})

	seen := map[uuid.UUID]bool{}
	for i := 0; i < 3; i++ {
		seen[assignedAgent(t, f.route(t))] = true
	}
	assert.Len(t, seen, 3)

	result := f.route(t)
	assert.Equal(t, OutcomeNoEligibleAgent, result.Outcome)
}

func TestRoute_OutsideWorkingHours(t *testing.T) {
	f := newRoutingFixture(t)
	f.store.setRoutingConfig(t, domain.RoutingConfig{
		OrganizationID: f.orgID,
		RoutingType:    domain.RoutingRoundRobin,
		IsActive:       true,
		WorkingHours: &domain.WorkingHours{
			Start:    "09:00",
			End:      "10:00",
			Timezone: "UTC",
		},
	})

	result := f.route(t)
	assert.Equal(t, OutcomeNoEligibleAgent, result.Outcome)
	assert.Equal(t, domain.ReasonOutsideWorkingHours, result.Decision.Reason)
}

func TestRoute_AvailabilityPolicy(t *testing.T) {
	ctx := context.Background()
	f := newRoutingFixture(t)
	f.store.setRoutingConfig(t, domain.RoutingConfig{
		OrganizationID: f.orgID,
		RoutingType:    domain.RoutingAvailability,
		IsActive:       true,
	})

	// A and B already hold open leads; C's only lead is closed.
	for _, id := range []uuid.UUID{agentA, agentA, agentB, agentC} {
		lead := f.store.addLead(t, f.listing)
		_, err := f.router.AssignLead(ctx, lead, id, f.owner)
		require.NoError(t, err)
		if id == agentC {
			f.store.setLeadStatus(lead, domain.LeadStatusLost)
		}
	}

	result := f.route(t)
	assert.Equal(t, agentC, assignedAgent(t, result))
	assert.Equal(t, domain.RoutingAvailability, result.Decision.Policy)
}

func TestRoute_OwnerFallback(t *testing.T) {
	t.Run("routing switched off", func(t *testing.T) {
		f := newRoutingFixture(t)
		f.store.setRoutingConfig(t, domain.RoutingConfig{
			OrganizationID: f.orgID,
			RoutingType:    domain.RoutingWeighted,
			IsActive:       false,
		})

		result := f.route(t)
		assert.Equal(t, OutcomeOwner, result.Outcome)
		require.NotNil(t, result.Lead.AssignedTo)
		assert.Equal(t, agentA, *result.Lead.AssignedTo)

		audit := f.store.assignmentsFor(result.Lead.ID)
		require.Len(t, audit, 1)
		assert.Equal(t, string(domain.AssignmentOwner), audit[0].Kind)
		assert.False(t, audit[0].Policy.Valid)
	})

	t.Run("plan without lead routing", func(t *testing.T) {
		store := newFakeStore()
		owner := store.addUser(t, domain.RoleAgent)
		orgID := store.addOrganization(t, domain.RoleAgent, owner)
		listing := store.addListing(t, owner, &orgID, domain.ListingStatusActive)
		router := NewLeadRouter(store, nil, DefaultTxAttempts, testLogger())

		result, err := router.Route(context.Background(), store.addLead(t, listing))
		require.NoError(t, err)
		assert.Equal(t, OutcomeOwner, result.Outcome)
		assert.Equal(t, owner, *result.Lead.AssignedTo)

		tr, ok := store.tracking(orgID, owner)
		require.True(t, ok)
		assert.Equal(t, int64(1), tr.TotalAssigned)
	})

	t.Run("personal listing", func(t *testing.T) {
		store := newFakeStore()
		agent := store.addUser(t, domain.RoleAgent)
		listing := store.addListing(t, agent, nil, domain.ListingStatusActive)
		router := NewLeadRouter(store, nil, DefaultTxAttempts, testLogger())

		result, err := router.Route(context.Background(), store.addLead(t, listing))
		require.NoError(t, err)
		assert.Equal(t, OutcomeOwner, result.Outcome)
		assert.Equal(t, agent, *result.Lead.AssignedTo)
		assert.Nil(t, result.Config)

		audit := store.assignmentsFor(result.Lead.ID)
		require.Len(t, audit, 1)
		assert.False(t, audit[0].OrganizationID.Valid)
	})
}

func TestRoute_SkipsMembersWhoCannotReceiveLeads(t *testing.T) {
	f := newRoutingFixture(t)

	// The owner is registered and never receives routed leads.
	for i := 0; i < 6; i++ {
		assert.NotEqual(t, f.owner, assignedAgent(t, f.route(t)))
	}
	_, ok := f.store.tracking(f.orgID, f.owner)
	assert.False(t, ok)
}

func TestRoute_AlreadyAssigned(t *testing.T) {
	f := newRoutingFixture(t)
	result := f.route(t)

	_, err := f.router.Route(context.Background(), result.Lead.ID)
	require.Error(t, err)
	assert.Equal(t, domain.ECONFLICT, domain.ErrorCode(err))
	assert.Len(t, f.store.assignmentsFor(result.Lead.ID), 1)
}

func TestRoute_UnknownLead(t *testing.T) {
	f := newRoutingFixture(t)

	_, err := f.router.Route(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
}

func TestRoute_ConcurrentLeadsStayFair(t *testing.T) {
	f := newRoutingFixture(t)

	const leads = 30
	ids := make([]uuid.UUID, leads)
	for i := range ids {
		ids[i] = f.store.addLead(t, f.listing)
	}

	g, ctx := errgroup.WithContext(context.Background())
	for _, id := range ids {
		g.Go(func() error {
			_, err := f.router.Route(ctx, id)
			return err
		})
	}
	require.NoError(t, g.Wait())

	counts := map[uuid.UUID]int{}
	for _, id := range ids {
		l := f.store.lead(id)
		require.True(t, l.AssignedTo.Valid)
		counts[l.AssignedTo.UUID]++
	}
	assert.Equal(t, map[uuid.UUID]int{agentA: 10, agentB: 10, agentC: 10}, counts)
}

func TestRoute_StorageConflictLeavesLeadUnassigned(t *testing.T) {
	f := newRoutingFixture(t)
	lead := f.store.addLead(t, f.listing)

	f.store.failNextTx(DefaultTxAttempts)

	_, err := f.router.Route(context.Background(), lead)
	require.Error(t, err)
	assert.True(t, domain.IsStorageConflict(err))
	assert.False(t, f.store.lead(lead).AssignedTo.Valid)
	assert.Empty(t, f.store.assignmentsFor(lead))
	_, ok := f.store.tracking(f.orgID, agentA)
	assert.False(t, ok)
}

func TestAssignLead(t *testing.T) {
	ctx := context.Background()
	f := newRoutingFixture(t)
	outsider := f.store.addUser(t, domain.RoleAgent)

	lead := f.store.addLead(t, f.listing)

	_, err := f.router.AssignLead(ctx, lead, agentB, agentC)
	require.Error(t, err)
	assert.Equal(t, domain.EFORBIDDEN, domain.ErrorCode(err), "agents cannot assign")

	_, err = f.router.AssignLead(ctx, lead, outsider, f.owner)
	require.Error(t, err)
	assert.Equal(t, domain.EFORBIDDEN, domain.ErrorCode(err), "assignee must hold a seat")

	assigned, err := f.router.AssignLead(ctx, lead, agentB, f.owner)
	require.NoError(t, err)
	assert.Equal(t, agentB, *assigned.AssignedTo)

	audit := f.store.assignmentsFor(lead)
	require.Len(t, audit, 1)
	assert.Equal(t, string(domain.AssignmentManual), audit[0].Kind)
	assert.Equal(t, f.owner, audit[0].ActorID.UUID)

	_, err = f.router.AssignLead(ctx, lead, agentC, f.owner)
	require.Error(t, err)
	assert.Equal(t, domain.ECONFLICT, domain.ErrorCode(err))
	assert.Equal(t, agentB, f.store.lead(lead).AssignedTo.UUID)
}

func TestAssignLead_ClosedLead(t *testing.T) {
	ctx := context.Background()
	f := newRoutingFixture(t)

	lead := f.store.addLead(t, f.listing)
	f.store.setLeadStatus(lead, domain.LeadStatusLost)

	_, err := f.router.AssignLead(ctx, lead, agentB, f.owner)
	require.Error(t, err)
	assert.Equal(t, domain.ECONFLICT, domain.ErrorCode(err))

	assert.False(t, f.store.lead(lead).AssignedTo.Valid)
	assert.Empty(t, f.store.assignmentsFor(lead))
	_, tracked := f.store.tracking(f.orgID, agentB)
	assert.False(t, tracked, "a closed lead must not count toward the agent")
	assert.Empty(t, f.store.jobs(), "no notification for a closed lead")
}

func TestAssignLead_PersonalLead(t *testing.T) {
	store := newFakeStore()
	agent := store.addUser(t, domain.RoleAgent)
	listing := store.addListing(t, agent, nil, domain.ListingStatusActive)
	router := NewLeadRouter(store, nil, DefaultTxAttempts, testLogger())

	_, err := router.AssignLead(context.Background(), store.addLead(t, listing), agent, agent)
	require.Error(t, err)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

func TestReassignLead(t *testing.T) {
	ctx := context.Background()
	f := newRoutingFixture(t)

	result := f.route(t)
	require.Equal(t, agentA, assignedAgent(t, result))
	lead := result.Lead.ID

	_, err := f.router.ReassignLead(ctx, lead, agentA, f.owner, "")
	require.Error(t, err)
	assert.Equal(t, domain.ECONFLICT, domain.ErrorCode(err), "same agent")

	_, err = f.router.ReassignLead(ctx, lead, agentC, agentB, "")
	require.Error(t, err)
	assert.Equal(t, domain.EFORBIDDEN, domain.ErrorCode(err))

	moved, err := f.router.ReassignLead(ctx, lead, agentC, f.owner, "agent on vacation")
	require.NoError(t, err)
	assert.Equal(t, agentC, *moved.AssignedTo)

	// The previous agent keeps their lifetime count.
	trA, _ := f.store.tracking(f.orgID, agentA)
	trC, _ := f.store.tracking(f.orgID, agentC)
	assert.Equal(t, int64(1), trA.TotalAssigned)
	assert.Equal(t, int64(1), trC.TotalAssigned)

	audit := f.store.assignmentsFor(lead)
	require.Len(t, audit, 2)
	last := audit[1]
	assert.Equal(t, string(domain.AssignmentReassign), last.Kind)
	assert.Equal(t, agentA, last.PreviousAgentID.UUID)
	assert.Equal(t, "agent on vacation", last.Reason)

	jobs := f.store.jobs()
	require.Len(t, jobs, 2)
}

func TestReassignLead_Rejections(t *testing.T) {
	ctx := context.Background()
	f := newRoutingFixture(t)

	unassigned := f.store.addLead(t, f.listing)
	_, err := f.router.ReassignLead(ctx, unassigned, agentB, f.owner, "")
	require.Error(t, err)
	assert.Equal(t, domain.ECONFLICT, domain.ErrorCode(err))

	closed := f.route(t).Lead.ID
	f.store.setLeadStatus(closed, domain.LeadStatusConverted)
	_, err = f.router.ReassignLead(ctx, closed, agentB, f.owner, "")
	require.Error(t, err)
	assert.Equal(t, domain.ECONFLICT, domain.ErrorCode(err))
}

func upsertAvailability(orgID, agentID uuid.UUID, available bool) repository.UpsertAgentAvailabilityParams {
	return repository.UpsertAgentAvailabilityParams{
		OrganizationID: orgID,
		AgentID:        agentID,
		IsAvailable:    available,
	}
}
