package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"runtime"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DukeRupert/hearth/internal/domain"
	"github.com/DukeRupert/hearth/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeStore is an in-memory repository.Store with Postgres-like row locks.
//
// Transactions run concurrently. The *ForUpdate queries and UPDATEs of user,
// organization, listing, lead and tracking rows take a row lock that is held
// until the transaction ends, and a transaction that would close a wait cycle
// fails with SQLSTATE 40P01. Writes are visible to other transactions as soon
// as they happen; a failed transaction replays its undo log. Only the row
// locks keep two transactions from both passing a count-then-insert check.
type fakeStore struct {
	mu    *sync.Mutex
	data  *fakeData
	locks *rowLocks
	tx    *fakeTx

	// conflicts makes the next N transactions fail with ErrSerialization
	// after running, as if a concurrent writer won.
	conflicts *int
}

type memberKey struct {
	org  uuid.UUID
	user uuid.UUID
}

type fakeData struct {
	users       map[uuid.UUID]repository.User
	orgs        map[uuid.UUID]repository.Organization
	members     map[memberKey]repository.OrganizationMember
	listings    map[uuid.UUID]repository.Listing
	leads       map[uuid.UUID]repository.Lead
	configs     map[uuid.UUID]repository.RoutingConfig
	tracking    map[memberKey]repository.AssignmentTracking
	assignments []repository.LeadAssignment
	jobs        []repository.Job
	seq         int
	txCount     int
}

func newFakeStore() *fakeStore {
	conflicts := 0
	return &fakeStore{
		mu: &sync.Mutex{},
		data: &fakeData{
			users:    map[uuid.UUID]repository.User{},
			orgs:     map[uuid.UUID]repository.Organization{},
			members:  map[memberKey]repository.OrganizationMember{},
			listings: map[uuid.UUID]repository.Listing{},
			leads:    map[uuid.UUID]repository.Lead{},
			configs:  map[uuid.UUID]repository.RoutingConfig{},
			tracking: map[memberKey]repository.AssignmentTracking{},
		},
		locks:     newRowLocks(),
		conflicts: &conflicts,
	}
}

// tick returns a strictly increasing timestamp for created_at columns.
func (d *fakeData) tick() time.Time {
	d.seq++
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(d.seq) * time.Millisecond)
}

// =============================================================================
// Transactions and row locks
// =============================================================================

// fakeTx is one open transaction: the lock owner and its undo log.
type fakeTx struct {
	undo []func()
}

type rowLocks struct {
	mu      sync.Mutex
	cond    *sync.Cond
	held    map[string]*fakeTx
	waiting map[*fakeTx]string
}

func newRowLocks() *rowLocks {
	l := &rowLocks{
		held:    map[string]*fakeTx{},
		waiting: map[*fakeTx]string{},
	}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// acquire blocks until tx owns key. It fails with a deadlock error instead
// of waiting on a transaction that is itself waiting on tx.
func (l *rowLocks) acquire(tx *fakeTx, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for {
		owner, ok := l.held[key]
		if !ok || owner == tx {
			l.held[key] = tx
			delete(l.waiting, tx)
			return nil
		}
		if l.waitsOn(owner, tx) {
			delete(l.waiting, tx)
			return &pgconn.PgError{Code: "40P01", Message: "deadlock detected"}
		}
		l.waiting[tx] = key
		l.cond.Wait()
	}
}

// waitsOn reports whether from is blocked, directly or through other
// waiters, on a lock held by target.
func (l *rowLocks) waitsOn(from, target *fakeTx) bool {
	cur := from
	for range len(l.waiting) + 1 {
		if cur == target {
			return true
		}
		key, ok := l.waiting[cur]
		if !ok {
			return false
		}
		if cur, ok = l.held[key]; !ok {
			return false
		}
	}
	return false
}

func (l *rowLocks) release(tx *fakeTx) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, owner := range l.held {
		if owner == tx {
			delete(l.held, key)
		}
	}
	delete(l.waiting, tx)
	l.cond.Broadcast()
}

func (l *rowLocks) holder(key string) *fakeTx {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held[key]
}

func rowKey(table string, id uuid.UUID) string {
	return table + ":" + id.String()
}

func trackingKey(org, agent uuid.UUID) string {
	return "tracking:" + org.String() + ":" + agent.String()
}

// lockRow takes the row lock for key. Inside a transaction it is held until
// the transaction ends; outside one it is released by the returned func, as
// for an autocommit statement.
func (s *fakeStore) lockRow(key string) (func(), error) {
	if s.tx != nil {
		return func() {}, s.locks.acquire(s.tx, key)
	}
	stmt := &fakeTx{}
	if err := s.locks.acquire(stmt, key); err != nil {
		return nil, err
	}
	return func() { s.locks.release(stmt) }, nil
}

// guard latches the data maps for one statement. Inside a transaction it
// yields afterwards so concurrent transactions interleave between statements.
func (s *fakeStore) guard() func() {
	s.mu.Lock()
	return func() {
		s.mu.Unlock()
		if s.tx != nil {
			runtime.Gosched()
		}
	}
}

// onRollback records how to undo a write. Called with s.mu held.
func (s *fakeStore) onRollback(undo func()) {
	if s.tx != nil {
		s.tx.undo = append(s.tx.undo, undo)
	}
}

func putRow[K comparable, V any](s *fakeStore, m map[K]V, k K, v V) {
	old, had := m[k]
	m[k] = v
	s.onRollback(func() {
		if had {
			m[k] = old
		} else {
			delete(m, k)
		}
	})
}

func deleteRow[K comparable, V any](s *fakeStore, m map[K]V, k K) {
	old, had := m[k]
	if !had {
		return
	}
	delete(m, k)
	s.onRollback(func() { m[k] = old })
}

// failNextTx makes the next n transactions report a serialization failure.
func (s *fakeStore) failNextTx(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	*s.conflicts = n
}

func (s *fakeStore) txCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.txCount
}

func (s *fakeStore) ExecTx(ctx context.Context, fn func(repository.Querier) error) error {
	tx := &fakeTx{}
	q := &fakeStore{mu: s.mu, data: s.data, locks: s.locks, tx: tx, conflicts: s.conflicts}

	s.mu.Lock()
	s.data.txCount++
	s.mu.Unlock()

	err := fn(q)

	s.mu.Lock()
	if err == nil && *s.conflicts > 0 {
		*s.conflicts--
		err = repository.ErrSerialization
	}
	if err != nil {
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
	}
	s.mu.Unlock()

	s.locks.release(tx)
	return err
}

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint}
}

// =============================================================================
// Users and organizations
// =============================================================================

func (s *fakeStore) CreateUser(ctx context.Context, arg repository.CreateUserParams) (repository.User, error) {
	defer s.guard()()
	for _, u := range s.data.users {
		if u.Email == arg.Email {
			return repository.User{}, uniqueViolation("users_email_key")
		}
	}
	now := s.data.tick()
	u := repository.User{
		ID:        uuid.New(),
		Email:     arg.Email,
		Name:      arg.Name,
		Phone:     arg.Phone,
		Role:      arg.Role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	putRow(s, s.data.users, u.ID, u)
	return u, nil
}

func (s *fakeStore) GetUser(ctx context.Context, id uuid.UUID) (repository.User, error) {
	defer s.guard()()
	u, ok := s.data.users[id]
	if !ok {
		return u, sql.ErrNoRows
	}
	return u, nil
}

func (s *fakeStore) LockUserForUpdate(ctx context.Context, id uuid.UUID) (repository.User, error) {
	release, err := s.lockRow(rowKey("users", id))
	if err != nil {
		return repository.User{}, err
	}
	defer release()
	return s.GetUser(ctx, id)
}

func (s *fakeStore) GetUserByStripeCustomerID(ctx context.Context, stripeCustomerID sql.NullString) (repository.User, error) {
	defer s.guard()()
	for _, u := range s.data.users {
		if u.StripeCustomerID.Valid && u.StripeCustomerID == stripeCustomerID {
			return u, nil
		}
	}
	return repository.User{}, sql.ErrNoRows
}

func (s *fakeStore) SetUserOrganization(ctx context.Context, arg repository.SetUserOrganizationParams) error {
	release, err := s.lockRow(rowKey("users", arg.ID))
	if err != nil {
		return err
	}
	defer release()
	defer s.guard()()
	u, ok := s.data.users[arg.ID]
	if !ok {
		return nil
	}
	u.OrganizationID = arg.OrganizationID
	putRow(s, s.data.users, arg.ID, u)
	return nil
}

func (s *fakeStore) UpdateUserSubscription(ctx context.Context, arg repository.UpdateUserSubscriptionParams) error {
	release, err := s.lockRow(rowKey("users", arg.ID))
	if err != nil {
		return err
	}
	defer release()
	defer s.guard()()
	u, ok := s.data.users[arg.ID]
	if !ok {
		return nil
	}
	u.Role = arg.Role
	if arg.StripeCustomerID.Valid {
		u.StripeCustomerID = arg.StripeCustomerID
	}
	u.SubscriptionStatus = arg.SubscriptionStatus
	u.SubscriptionID = arg.SubscriptionID
	putRow(s, s.data.users, arg.ID, u)
	return nil
}

func (s *fakeStore) GetOrganization(ctx context.Context, id uuid.UUID) (repository.Organization, error) {
	defer s.guard()()
	o, ok := s.data.orgs[id]
	if !ok {
		return o, sql.ErrNoRows
	}
	return o, nil
}

func (s *fakeStore) LockOrganizationForUpdate(ctx context.Context, id uuid.UUID) (repository.Organization, error) {
	release, err := s.lockRow(rowKey("organizations", id))
	if err != nil {
		return repository.Organization{}, err
	}
	defer release()
	return s.GetOrganization(ctx, id)
}

func (s *fakeStore) SetOrganizationSeatsUsed(ctx context.Context, arg repository.SetOrganizationSeatsUsedParams) error {
	release, err := s.lockRow(rowKey("organizations", arg.ID))
	if err != nil {
		return err
	}
	defer release()
	defer s.guard()()
	o, ok := s.data.orgs[arg.ID]
	if !ok {
		return nil
	}
	o.SeatsUsed = arg.SeatsUsed
	putRow(s, s.data.orgs, arg.ID, o)
	return nil
}

func (s *fakeStore) CountOrganizationMembers(ctx context.Context, organizationID uuid.UUID) (int64, error) {
	defer s.guard()()
	var n int64
	for k := range s.data.members {
		if k.org == organizationID {
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) GetOrganizationMember(ctx context.Context, arg repository.GetOrganizationMemberParams) (repository.OrganizationMember, error) {
	defer s.guard()()
	m, ok := s.data.members[memberKey{arg.OrganizationID, arg.UserID}]
	if !ok {
		return m, sql.ErrNoRows
	}
	return m, nil
}

func (s *fakeStore) InsertMember(ctx context.Context, arg repository.InsertMemberParams) (repository.OrganizationMember, error) {
	defer s.guard()()
	for k := range s.data.members {
		if k.user == arg.UserID {
			return repository.OrganizationMember{}, uniqueViolation("organization_members_user_id_key")
		}
	}
	m := repository.OrganizationMember{
		OrganizationID: arg.OrganizationID,
		UserID:         arg.UserID,
		Role:           arg.Role,
		CreatedAt:      s.data.tick(),
	}
	putRow(s, s.data.members, memberKey{arg.OrganizationID, arg.UserID}, m)
	return m, nil
}

func (s *fakeStore) DeleteMember(ctx context.Context, arg repository.DeleteMemberParams) (int64, error) {
	defer s.guard()()
	k := memberKey{arg.OrganizationID, arg.UserID}
	if _, ok := s.data.members[k]; !ok {
		return 0, nil
	}
	deleteRow(s, s.data.members, k)
	return 1, nil
}

// =============================================================================
// Listings
// =============================================================================

func (s *fakeStore) GetListing(ctx context.Context, id uuid.UUID) (repository.Listing, error) {
	defer s.guard()()
	l, ok := s.data.listings[id]
	if !ok {
		return l, sql.ErrNoRows
	}
	return l, nil
}

func (s *fakeStore) GetListingForUpdate(ctx context.Context, id uuid.UUID) (repository.Listing, error) {
	release, err := s.lockRow(rowKey("listings", id))
	if err != nil {
		return repository.Listing{}, err
	}
	defer release()
	return s.GetListing(ctx, id)
}

func (s *fakeStore) CountActivePersonalListings(ctx context.Context, agentID uuid.UUID) (int64, error) {
	defer s.guard()()
	var n int64
	for _, l := range s.data.listings {
		if l.AgentID == agentID && !l.OrganizationID.Valid && l.Status == string(domain.ListingStatusActive) {
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) CountActiveOrganizationListings(ctx context.Context, organizationID uuid.UUID) (int64, error) {
	defer s.guard()()
	var n int64
	for _, l := range s.data.listings {
		if l.OrganizationID.Valid && l.OrganizationID.UUID == organizationID && l.Status == string(domain.ListingStatusActive) {
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) InsertListing(ctx context.Context, arg repository.InsertListingParams) (repository.Listing, error) {
	defer s.guard()()
	now := s.data.tick()
	l := repository.Listing{
		ID:             uuid.New(),
		AgentID:        arg.AgentID,
		OrganizationID: arg.OrganizationID,
		Title:          arg.Title,
		Address:        arg.Address,
		City:           arg.City,
		State:          arg.State,
		PostalCode:     arg.PostalCode,
		PriceCents:     arg.PriceCents,
		Status:         string(domain.ListingStatusActive),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	putRow(s, s.data.listings, l.ID, l)
	return l, nil
}

func (s *fakeStore) UpdateListingStatus(ctx context.Context, arg repository.UpdateListingStatusParams) (repository.Listing, error) {
	release, err := s.lockRow(rowKey("listings", arg.ID))
	if err != nil {
		return repository.Listing{}, err
	}
	defer release()
	defer s.guard()()
	l, ok := s.data.listings[arg.ID]
	if !ok {
		return l, sql.ErrNoRows
	}
	l.Status = arg.Status
	l.UpdatedAt = s.data.tick()
	putRow(s, s.data.listings, arg.ID, l)
	return l, nil
}

// =============================================================================
// Leads
// =============================================================================

func (s *fakeStore) GetLead(ctx context.Context, id uuid.UUID) (repository.Lead, error) {
	defer s.guard()()
	l, ok := s.data.leads[id]
	if !ok {
		return l, sql.ErrNoRows
	}
	return l, nil
}

func (s *fakeStore) GetLeadForUpdate(ctx context.Context, id uuid.UUID) (repository.Lead, error) {
	release, err := s.lockRow(rowKey("leads", id))
	if err != nil {
		return repository.Lead{}, err
	}
	defer release()
	return s.GetLead(ctx, id)
}

func (s *fakeStore) InsertLead(ctx context.Context, arg repository.InsertLeadParams) (repository.Lead, error) {
	defer s.guard()()
	now := s.data.tick()
	l := repository.Lead{
		ID:             uuid.New(),
		ListingID:      arg.ListingID,
		OwnerAgentID:   arg.OwnerAgentID,
		OrganizationID: arg.OrganizationID,
		Name:           arg.Name,
		Email:          arg.Email,
		Phone:          arg.Phone,
		Message:        arg.Message,
		Status:         string(domain.LeadStatusNew),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	putRow(s, s.data.leads, l.ID, l)
	return l, nil
}

func (s *fakeStore) AssignLead(ctx context.Context, arg repository.AssignLeadParams) (repository.Lead, error) {
	release, err := s.lockRow(rowKey("leads", arg.ID))
	if err != nil {
		return repository.Lead{}, err
	}
	defer release()
	defer s.guard()()
	l, ok := s.data.leads[arg.ID]
	if !ok || l.AssignedTo.Valid {
		return repository.Lead{}, sql.ErrNoRows
	}
	l.AssignedTo = uuid.NullUUID{UUID: arg.AssignedTo, Valid: true}
	l.AssignedAt = sql.NullTime{Time: arg.AssignedAt, Valid: true}
	putRow(s, s.data.leads, arg.ID, l)
	return l, nil
}

func (s *fakeStore) ReassignLead(ctx context.Context, arg repository.ReassignLeadParams) (repository.Lead, error) {
	release, err := s.lockRow(rowKey("leads", arg.ID))
	if err != nil {
		return repository.Lead{}, err
	}
	defer release()
	defer s.guard()()
	l, ok := s.data.leads[arg.ID]
	if !ok || !l.AssignedTo.Valid || l.AssignedTo.UUID != arg.PreviousAgentID {
		return repository.Lead{}, sql.ErrNoRows
	}
	l.AssignedTo = uuid.NullUUID{UUID: arg.AssignedTo, Valid: true}
	l.AssignedAt = sql.NullTime{Time: arg.AssignedAt, Valid: true}
	putRow(s, s.data.leads, arg.ID, l)
	return l, nil
}

func (s *fakeStore) UpdateLeadStatus(ctx context.Context, arg repository.UpdateLeadStatusParams) (repository.Lead, error) {
	release, err := s.lockRow(rowKey("leads", arg.ID))
	if err != nil {
		return repository.Lead{}, err
	}
	defer release()
	defer s.guard()()
	l, ok := s.data.leads[arg.ID]
	if !ok || l.Status != arg.FromStatus {
		return repository.Lead{}, sql.ErrNoRows
	}
	l.Status = arg.Status
	putRow(s, s.data.leads, arg.ID, l)
	return l, nil
}

func (s *fakeStore) ListUnassignedLeads(ctx context.Context, arg repository.ListUnassignedLeadsParams) ([]repository.Lead, error) {
	defer s.guard()()
	var out []repository.Lead
	for _, l := range s.data.leads {
		if l.OrganizationID == arg.OrganizationID && !l.AssignedTo.Valid && !domain.LeadStatus(l.Status).IsTerminal() {
			out = append(out, l)
		}
	}
	slices.SortFunc(out, func(a, b repository.Lead) int { return a.CreatedAt.Compare(b.CreatedAt) })
	if len(out) > int(arg.Limit) {
		out = out[:arg.Limit]
	}
	return out, nil
}

func (s *fakeStore) InsertLeadAssignment(ctx context.Context, arg repository.InsertLeadAssignmentParams) (repository.LeadAssignment, error) {
	defer s.guard()()
	a := repository.LeadAssignment{
		ID:              uuid.New(),
		LeadID:          arg.LeadID,
		OrganizationID:  arg.OrganizationID,
		AgentID:         arg.AgentID,
		PreviousAgentID: arg.PreviousAgentID,
		ActorID:         arg.ActorID,
		Kind:            arg.Kind,
		Policy:          arg.Policy,
		Reason:          arg.Reason,
		Meta:            arg.Meta,
		AssignedAt:      arg.AssignedAt,
	}
	s.data.assignments = append(s.data.assignments, a)
	s.onRollback(func() {
		s.data.assignments = slices.DeleteFunc(s.data.assignments, func(x repository.LeadAssignment) bool { return x.ID == a.ID })
	})
	return a, nil
}

func (s *fakeStore) ListLeadAssignments(ctx context.Context, leadID uuid.UUID) ([]repository.LeadAssignment, error) {
	defer s.guard()()
	var out []repository.LeadAssignment
	for _, a := range s.data.assignments {
		if a.LeadID == leadID {
			out = append(out, a)
		}
	}
	return out, nil
}

// =============================================================================
// Routing
// =============================================================================

func (s *fakeStore) GetRoutingConfig(ctx context.Context, organizationID uuid.UUID) (repository.RoutingConfig, error) {
	defer s.guard()()
	c, ok := s.data.configs[organizationID]
	if !ok {
		return c, sql.ErrNoRows
	}
	return c, nil
}

func (s *fakeStore) UpsertRoutingConfig(ctx context.Context, arg repository.UpsertRoutingConfigParams) (repository.RoutingConfig, error) {
	defer s.guard()()
	c := repository.RoutingConfig{
		OrganizationID:   arg.OrganizationID,
		RoutingType:      arg.RoutingType,
		IsActive:         arg.IsActive,
		MaxLeadsPerAgent: arg.MaxLeadsPerAgent,
		WorkingHours:     arg.WorkingHours,
		UpdatedAt:        s.data.tick(),
	}
	putRow(s, s.data.configs, arg.OrganizationID, c)
	return c, nil
}

func (s *fakeStore) ListRoutingCandidates(ctx context.Context, arg repository.ListRoutingCandidatesParams) ([]repository.ListRoutingCandidatesRow, error) {
	defer s.guard()()
	var rows []repository.ListRoutingCandidatesRow
	for k := range s.data.members {
		if k.org != arg.OrganizationID {
			continue
		}
		u := s.data.users[k.user]
		row := repository.ListRoutingCandidatesRow{
			AgentID:     k.user,
			UserRole:    u.Role,
			IsAvailable: true,
		}
		if t, ok := s.data.tracking[k]; ok {
			row.IsAvailable = t.IsAvailable
			row.MaxLeadsPerDay = t.MaxLeadsPerDay
			row.Weight = t.Weight
			row.LastAssignedAt = t.LastAssignedAt
			row.TotalAssigned = t.TotalAssigned
		}
		for _, a := range s.data.assignments {
			if a.OrganizationID.Valid && a.OrganizationID.UUID == k.org && a.AgentID == k.user && !a.AssignedAt.Before(arg.DayStart) {
				row.TodaysAssigned++
			}
		}
		for _, l := range s.data.leads {
			if !l.OrganizationID.Valid || l.OrganizationID.UUID != k.org || !l.AssignedTo.Valid || l.AssignedTo.UUID != k.user {
				continue
			}
			if slices.Contains(arg.OpenStatuses, l.Status) {
				row.OpenLeads++
			}
			switch domain.LeadStatus(l.Status) {
			case domain.LeadStatusConverted:
				row.ConvertedLeads++
				row.ClosedLeads++
			case domain.LeadStatusLost:
				row.ClosedLeads++
			}
		}
		rows = append(rows, row)
	}
	slices.SortFunc(rows, func(a, b repository.ListRoutingCandidatesRow) int {
		return strings.Compare(a.AgentID.String(), b.AgentID.String())
	})
	return rows, nil
}

func (s *fakeStore) GetAssignmentTracking(ctx context.Context, arg repository.GetAssignmentTrackingParams) (repository.AssignmentTracking, error) {
	defer s.guard()()
	t, ok := s.data.tracking[memberKey{arg.OrganizationID, arg.AgentID}]
	if !ok {
		return t, sql.ErrNoRows
	}
	return t, nil
}

func (s *fakeStore) trackingRow(org, agent uuid.UUID) repository.AssignmentTracking {
	k := memberKey{org, agent}
	t, ok := s.data.tracking[k]
	if !ok {
		t = repository.AssignmentTracking{OrganizationID: org, AgentID: agent, IsAvailable: true}
	}
	return t
}

func (s *fakeStore) BumpAssignmentTracking(ctx context.Context, arg repository.BumpAssignmentTrackingParams) (repository.AssignmentTracking, error) {
	release, err := s.lockRow(trackingKey(arg.OrganizationID, arg.AgentID))
	if err != nil {
		return repository.AssignmentTracking{}, err
	}
	defer release()
	defer s.guard()()
	t := s.trackingRow(arg.OrganizationID, arg.AgentID)
	t.TotalAssigned++
	t.LastAssignedAt = sql.NullTime{Time: arg.AssignedAt, Valid: true}
	t.UpdatedAt = s.data.tick()
	putRow(s, s.data.tracking, memberKey{arg.OrganizationID, arg.AgentID}, t)
	return t, nil
}

func (s *fakeStore) UpsertAgentAvailability(ctx context.Context, arg repository.UpsertAgentAvailabilityParams) (repository.AssignmentTracking, error) {
	release, err := s.lockRow(trackingKey(arg.OrganizationID, arg.AgentID))
	if err != nil {
		return repository.AssignmentTracking{}, err
	}
	defer release()
	defer s.guard()()
	t := s.trackingRow(arg.OrganizationID, arg.AgentID)
	t.IsAvailable = arg.IsAvailable
	t.UpdatedAt = s.data.tick()
	putRow(s, s.data.tracking, memberKey{arg.OrganizationID, arg.AgentID}, t)
	return t, nil
}

func (s *fakeStore) UpsertAgentLimits(ctx context.Context, arg repository.UpsertAgentLimitsParams) (repository.AssignmentTracking, error) {
	release, err := s.lockRow(trackingKey(arg.OrganizationID, arg.AgentID))
	if err != nil {
		return repository.AssignmentTracking{}, err
	}
	defer release()
	defer s.guard()()
	t := s.trackingRow(arg.OrganizationID, arg.AgentID)
	t.MaxLeadsPerDay = arg.MaxLeadsPerDay
	t.Weight = arg.Weight
	t.UpdatedAt = s.data.tick()
	putRow(s, s.data.tracking, memberKey{arg.OrganizationID, arg.AgentID}, t)
	return t, nil
}

// =============================================================================
// Jobs
// =============================================================================

func (s *fakeStore) EnqueueJob(ctx context.Context, arg repository.EnqueueJobParams) (repository.Job, error) {
	defer s.guard()()
	j := repository.Job{
		ID:          uuid.New(),
		JobType:     arg.JobType,
		Payload:     arg.Payload,
		Status:      "pending",
		Priority:    arg.Priority,
		MaxAttempts: arg.MaxAttempts,
		ScheduledAt: arg.ScheduledAt,
		CreatedAt:   s.data.tick(),
	}
	s.data.jobs = append(s.data.jobs, j)
	s.onRollback(func() {
		s.data.jobs = slices.DeleteFunc(s.data.jobs, func(x repository.Job) bool { return x.ID == j.ID })
	})
	return j, nil
}

func (s *fakeStore) DequeueJob(ctx context.Context) (repository.Job, error) {
	defer s.guard()()
	for i, j := range s.data.jobs {
		if j.Status == "pending" {
			s.data.jobs[i].Status = "running"
			s.onRollback(func() {
				if k := slices.IndexFunc(s.data.jobs, func(x repository.Job) bool { return x.ID == j.ID }); k >= 0 {
					s.data.jobs[k].Status = "pending"
				}
			})
			return s.data.jobs[i], nil
		}
	}
	return repository.Job{}, sql.ErrNoRows
}

func (s *fakeStore) UpdateJobStarted(ctx context.Context, id uuid.UUID) error {
	return nil
}

func (s *fakeStore) UpdateJobCompleted(ctx context.Context, id uuid.UUID) error {
	return nil
}

func (s *fakeStore) UpdateJobFailed(ctx context.Context, arg repository.UpdateJobFailedParams) error {
	return nil
}

func (s *fakeStore) RecoverStaleJobs(ctx context.Context, thresholdSeconds float64) (int64, error) {
	return 0, nil
}

var _ repository.Store = (*fakeStore)(nil)

// =============================================================================
// Fixtures
// =============================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (s *fakeStore) addUser(t *testing.T, role domain.Role) uuid.UUID {
	t.Helper()
	return s.addUserWithRole(t, string(role))
}

func (s *fakeStore) addUserWithRole(t *testing.T, role string) uuid.UUID {
	t.Helper()
	return s.addUserWithID(t, uuid.New(), role)
}

func (s *fakeStore) addUserWithID(t *testing.T, id uuid.UUID, role string) uuid.UUID {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.data.tick()
	s.data.users[id] = repository.User{
		ID:        id,
		Email:     id.String() + "@example.com",
		Name:      "Agent " + id.String()[:8],
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return id
}

// addOrganization creates an organization whose owner holds the first seat.
func (s *fakeStore) addOrganization(t *testing.T, tier domain.Role, ownerID uuid.UUID) uuid.UUID {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.data.tick()
	id := uuid.New()
	s.data.orgs[id] = repository.Organization{
		ID:        id,
		Name:      "Brokerage " + id.String()[:8],
		Tier:      string(tier),
		SeatsUsed: 1,
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.data.members[memberKey{id, ownerID}] = repository.OrganizationMember{
		OrganizationID: id,
		UserID:         ownerID,
		Role:           string(domain.MemberRoleOwner),
		CreatedAt:      now,
	}
	u := s.data.users[ownerID]
	u.OrganizationID = uuid.NullUUID{UUID: id, Valid: true}
	s.data.users[ownerID] = u
	return id
}

func (s *fakeStore) setOrganizationCaps(orgID uuid.UUID, listingCap, seatLimit *int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.data.orgs[orgID]
	o.ListingCap = domain.ToNullInt64(listingCap)
	o.SeatLimit = domain.ToNullInt64(seatLimit)
	s.data.orgs[orgID] = o
}

func (s *fakeStore) addMember(t *testing.T, orgID, userID uuid.UUID, role domain.MemberRole) {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.members[memberKey{orgID, userID}] = repository.OrganizationMember{
		OrganizationID: orgID,
		UserID:         userID,
		Role:           string(role),
		CreatedAt:      s.data.tick(),
	}
	u := s.data.users[userID]
	u.OrganizationID = uuid.NullUUID{UUID: orgID, Valid: true}
	s.data.users[userID] = u
	o := s.data.orgs[orgID]
	o.SeatsUsed++
	s.data.orgs[orgID] = o
}

func (s *fakeStore) addListing(t *testing.T, agentID uuid.UUID, orgID *uuid.UUID, status domain.ListingStatus) uuid.UUID {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.data.tick()
	id := uuid.New()
	s.data.listings[id] = repository.Listing{
		ID:             id,
		AgentID:        agentID,
		OrganizationID: domain.ToNullUUID(orgID),
		Title:          "Listing " + id.String()[:8],
		Address:        "1 Main St",
		City:           "Portland",
		State:          "OR",
		PostalCode:     "97201",
		PriceCents:     50000000,
		Status:         string(status),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return id
}

// addLead inserts an unassigned lead on a listing, bypassing intake.
func (s *fakeStore) addLead(t *testing.T, listingID uuid.UUID) uuid.UUID {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	listing, ok := s.data.listings[listingID]
	if !ok {
		t.Fatalf("addLead: unknown listing %s", listingID)
	}
	now := s.data.tick()
	id := uuid.New()
	s.data.leads[id] = repository.Lead{
		ID:             id,
		ListingID:      listingID,
		OwnerAgentID:   listing.AgentID,
		OrganizationID: listing.OrganizationID,
		Name:           "Buyer",
		Email:          "buyer@example.com",
		Status:         string(domain.LeadStatusNew),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return id
}

func (s *fakeStore) setLeadStatus(leadID uuid.UUID, status domain.LeadStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.data.leads[leadID]
	l.Status = string(status)
	s.data.leads[leadID] = l
}

func (s *fakeStore) setRoutingConfig(t *testing.T, cfg domain.RoutingConfig) {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	var hours repository.RoutingConfig
	if cfg.WorkingHours != nil {
		raw, err := json.Marshal(cfg.WorkingHours)
		if err != nil {
			t.Fatalf("marshal working hours: %v", err)
		}
		hours.WorkingHours.RawMessage = raw
		hours.WorkingHours.Valid = true
	}
	s.data.configs[cfg.OrganizationID] = repository.RoutingConfig{
		OrganizationID:   cfg.OrganizationID,
		RoutingType:      string(cfg.RoutingType),
		IsActive:         cfg.IsActive,
		MaxLeadsPerAgent: int32(cfg.MaxLeadsPerAgent),
		WorkingHours:     hours.WorkingHours,
		UpdatedAt:        s.data.tick(),
	}
}

func (s *fakeStore) lead(id uuid.UUID) repository.Lead {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.leads[id]
}

func (s *fakeStore) listing(id uuid.UUID) repository.Listing {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.listings[id]
}

func (s *fakeStore) user(id uuid.UUID) repository.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.users[id]
}

func (s *fakeStore) organization(id uuid.UUID) repository.Organization {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.orgs[id]
}

func (s *fakeStore) tracking(org, agent uuid.UUID) (repository.AssignmentTracking, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.data.tracking[memberKey{org, agent}]
	return t, ok
}

func (s *fakeStore) assignmentsFor(leadID uuid.UUID) []repository.LeadAssignment {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []repository.LeadAssignment
	for _, a := range s.data.assignments {
		if a.LeadID == leadID {
			out = append(out, a)
		}
	}
	return out
}

func (s *fakeStore) jobs() []repository.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.data.jobs)
}

func (s *fakeStore) activeListings(agentID uuid.UUID, orgID *uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, l := range s.data.listings {
		if l.Status != string(domain.ListingStatusActive) {
			continue
		}
		if orgID != nil {
			if l.OrganizationID.Valid && l.OrganizationID.UUID == *orgID {
				n++
			}
			continue
		}
		if l.AgentID == agentID && !l.OrganizationID.Valid {
			n++
		}
	}
	return n
}

func int64Ptr(v int64) *int64 { return &v }
