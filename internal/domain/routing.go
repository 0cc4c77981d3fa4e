// Package domain contains core business types and interfaces.
//
// This file defines routing configuration and the pure agent selection used
// by the lead router. Selection reads the fairness ledger but never writes
// it; persisting the outcome is the caller's job.
package domain

import (
	"bytes"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Routing configuration
// =============================================================================

// RoutingType is the policy used to pick an agent for a new lead.
type RoutingType string

const (
	RoutingRoundRobin   RoutingType = "round_robin"
	RoutingWeighted     RoutingType = "weighted"
	RoutingAvailability RoutingType = "availability"
)

// IsValid returns true if the routing type is a recognized value.
func (t RoutingType) IsValid() bool {
	switch t {
	case RoutingRoundRobin, RoutingWeighted, RoutingAvailability:
		return true
	}
	return false
}

// WorkingHours is the daily window in which leads are routed automatically.
// Start and End are "HH:MM". A window whose End is before its Start wraps
// past midnight. Empty Days means every day.
type WorkingHours struct {
	Start    string         `json:"start"`
	End      string         `json:"end"`
	Timezone string         `json:"timezone"`
	Days     []time.Weekday `json:"days,omitempty"`
}

// Validate checks the window for well-formed values.
func (w WorkingHours) Validate() error {
	if _, err := parseClock(w.Start); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	if _, err := parseClock(w.End); err != nil {
		return fmt.Errorf("end: %w", err)
	}
	if w.Start == w.End {
		return fmt.Errorf("start and end must differ")
	}
	if _, err := w.location(); err != nil {
		return fmt.Errorf("timezone: %w", err)
	}
	for _, d := range w.Days {
		if d < time.Sunday || d > time.Saturday {
			return fmt.Errorf("invalid weekday %d", d)
		}
	}
	return nil
}

// Contains reports whether now falls inside the window. A malformed window
// contains nothing.
func (w WorkingHours) Contains(now time.Time) bool {
	loc, err := w.location()
	if err != nil {
		return false
	}
	start, err := parseClock(w.Start)
	if err != nil {
		return false
	}
	end, err := parseClock(w.End)
	if err != nil {
		return false
	}

	local := now.In(loc)
	minute := local.Hour()*60 + local.Minute()
	day := local.Weekday()

	if start < end {
		return w.onDay(day) && minute >= start && minute < end
	}
	// Overnight window: the late part belongs to today, the early part to
	// the window that opened yesterday.
	if minute >= start {
		return w.onDay(day)
	}
	if minute < end {
		return w.onDay((day + 6) % 7)
	}
	return false
}

func (w WorkingHours) onDay(d time.Weekday) bool {
	if len(w.Days) == 0 {
		return true
	}
	return slices.Contains(w.Days, d)
}

func (w WorkingHours) location() (*time.Location, error) {
	if w.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(w.Timezone)
}

// parseClock converts "HH:MM" to minutes since midnight.
func parseClock(s string) (int, error) {
	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h*60 + m, nil
}

// RoutingConfig is an organization's routing policy. There is one per
// organization and writes overwrite it.
type RoutingConfig struct {
	OrganizationID   uuid.UUID
	RoutingType      RoutingType
	IsActive         bool
	MaxLeadsPerAgent int // per agent per day when the agent has no own limit; 0 = unlimited
	WorkingHours     *WorkingHours
	UpdatedAt        time.Time

	// IsDefault is set when no config was stored and defaults were used.
	IsDefault bool
}

// DefaultRoutingConfig is used when an organization has no stored config:
// round-robin, active, no per-agent cap. A lead is never dropped for lack of
// configuration.
func DefaultRoutingConfig(orgID uuid.UUID) RoutingConfig {
	return RoutingConfig{
		OrganizationID: orgID,
		RoutingType:    RoutingRoundRobin,
		IsActive:       true,
		IsDefault:      true,
	}
}

// Validate checks the config before it is stored.
func (c RoutingConfig) Validate() error {
	if !c.RoutingType.IsValid() {
		return fmt.Errorf("unknown routing type %q", c.RoutingType)
	}
	if c.MaxLeadsPerAgent < 0 {
		return fmt.Errorf("max leads per agent must not be negative")
	}
	if c.WorkingHours != nil {
		if err := c.WorkingHours.Validate(); err != nil {
			return fmt.Errorf("working hours: %w", err)
		}
	}
	return nil
}

// DayStart returns the start of the routing day containing now, in the
// config's timezone. Daily caps count assignments since this instant.
func (c RoutingConfig) DayStart(now time.Time) time.Time {
	loc := time.UTC
	if c.WorkingHours != nil {
		if l, err := c.WorkingHours.location(); err == nil {
			loc = l
		}
	}
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// =============================================================================
// Fairness ledger
// =============================================================================

// AssignmentTracking is the per (organization, agent) fairness ledger.
// TotalAssigned only ever grows.
type AssignmentTracking struct {
	OrganizationID uuid.UUID
	AgentID        uuid.UUID
	LastAssignedAt *time.Time
	TotalAssigned  int64
	IsAvailable    bool
	MaxLeadsPerDay int // 0 = use the organization default
	Weight         int // 0 = derive from conversion history
	UpdatedAt      time.Time
}

// Candidate is one agent considered for a lead, joined from the roster,
// the ledger and lead statistics.
type Candidate struct {
	AgentID        uuid.UUID
	IsAvailable    bool
	MaxLeadsPerDay int
	TodaysAssigned int
	LastAssignedAt *time.Time
	TotalAssigned  int64
	OpenLeads      int
	Weight         int
	Converted      int
	Closed         int
}

// DailyLimit returns the agent's effective per-day cap; 0 means none.
func (c Candidate) DailyLimit(cfg RoutingConfig) int {
	if c.MaxLeadsPerDay > 0 {
		return c.MaxLeadsPerDay
	}
	return cfg.MaxLeadsPerAgent
}

// IsEligible applies the availability and daily-limit filter.
func (c Candidate) IsEligible(cfg RoutingConfig) bool {
	if !c.IsAvailable {
		return false
	}
	limit := c.DailyLimit(cfg)
	return limit == 0 || c.TodaysAssigned < limit
}

// EffectiveWeight returns the explicit weight or, without one, a weight of
// 1..10 derived from the agent's conversion rate.
func (c Candidate) EffectiveWeight() int {
	if c.Weight > 0 {
		return c.Weight
	}
	if c.Closed <= 0 {
		return 1
	}
	converted := c.Converted
	if converted > c.Closed {
		converted = c.Closed
	}
	return 1 + (9*converted)/c.Closed
}

// =============================================================================
// Selection
// =============================================================================

// Decision is the outcome of SelectAgent. When Found is false the lead stays
// unassigned and Reason says why.
type Decision struct {
	Found    bool
	AgentID  uuid.UUID
	Policy   RoutingType
	Eligible int
	Reason   string
}

const (
	ReasonOutsideWorkingHours = "outside working hours"
	ReasonNoAvailableAgents   = "no available agents under their daily limit"
	ReasonNoCandidates        = "organization has no agents"
)

// SelectAgent picks the agent for a new lead under cfg. It is deterministic:
// the same inputs always produce the same decision.
func SelectAgent(cfg RoutingConfig, candidates []Candidate, now time.Time) Decision {
	policy := cfg.RoutingType
	if !policy.IsValid() {
		policy = RoutingRoundRobin
	}
	d := Decision{Policy: policy}

	if len(candidates) == 0 {
		d.Reason = ReasonNoCandidates
		return d
	}
	if cfg.WorkingHours != nil && !cfg.WorkingHours.Contains(now) {
		d.Reason = ReasonOutsideWorkingHours
		return d
	}

	eligible := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.IsEligible(cfg) {
			eligible = append(eligible, c)
		}
	}
	d.Eligible = len(eligible)
	if len(eligible) == 0 {
		d.Reason = ReasonNoAvailableAgents
		return d
	}

	var winner Candidate
	switch policy {
	case RoutingWeighted:
		winner = slices.MinFunc(eligible, compareWeighted)
		d.Reason = fmt.Sprintf("weighted: lowest assignments per weight (weight %d)", winner.EffectiveWeight())
	case RoutingAvailability:
		winner = slices.MinFunc(eligible, compareAvailability)
		d.Reason = fmt.Sprintf("availability: fewest open leads (%d)", winner.OpenLeads)
	default:
		winner = slices.MinFunc(eligible, compareRoundRobin)
		d.Reason = "round_robin: longest since last assignment"
	}

	d.Found = true
	d.AgentID = winner.AgentID
	return d
}

// compareRoundRobin orders by oldest (nil first) last assignment, then fewest
// total assignments, then agent id.
func compareRoundRobin(a, b Candidate) int {
	switch {
	case a.LastAssignedAt == nil && b.LastAssignedAt != nil:
		return -1
	case a.LastAssignedAt != nil && b.LastAssignedAt == nil:
		return 1
	case a.LastAssignedAt != nil && b.LastAssignedAt != nil:
		if c := a.LastAssignedAt.Compare(*b.LastAssignedAt); c != 0 {
			return c
		}
	}
	if a.TotalAssigned != b.TotalAssigned {
		if a.TotalAssigned < b.TotalAssigned {
			return -1
		}
		return 1
	}
	return bytes.Compare(a.AgentID[:], b.AgentID[:])
}

// compareWeighted orders by the next virtual finish time
// (TotalAssigned+1)/weight, compared without division.
func compareWeighted(a, b Candidate) int {
	lhs := (a.TotalAssigned + 1) * int64(b.EffectiveWeight())
	rhs := (b.TotalAssigned + 1) * int64(a.EffectiveWeight())
	switch {
	case lhs < rhs:
		return -1
	case lhs > rhs:
		return 1
	}
	return compareRoundRobin(a, b)
}

// compareAvailability orders by fewest open leads.
func compareAvailability(a, b Candidate) int {
	if a.OpenLeads != b.OpenLeads {
		if a.OpenLeads < b.OpenLeads {
			return -1
		}
		return 1
	}
	return compareRoundRobin(a, b)
}

// Apply records an assignment on a candidate the same way the ledger is
// updated in storage. Callers that simulate sequences of routing decisions
// use it to advance state between leads.
func (c *Candidate) Apply(at time.Time) {
	t := at
	c.LastAssignedAt = &t
	c.TotalAssigned++
	c.TodaysAssigned++
	c.OpenLeads++
}
