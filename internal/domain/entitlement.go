// Package domain contains core business types and interfaces.
//
// This file defines the pure entitlement checks: whether a flag set permits
// an action and how much of a capped resource remains.
package domain

// Action is something a user may try to do. Requires is only consulted for
// graded features.
type Action struct {
	Name     string
	Feature  Feature
	Requires Level
}

var (
	ActionViewContactInfo       = Action{Name: "view_contact_info", Feature: FeatureViewContactInfo}
	ActionSaveSearch            = Action{Name: "save_search", Feature: FeatureSaveSearches}
	ActionCreateListing         = Action{Name: "create_listing", Feature: FeatureCreateListings}
	ActionFeatureListing        = Action{Name: "feature_listing", Feature: FeatureFeaturedListings}
	ActionReceiveLeads          = Action{Name: "receive_leads", Feature: FeatureReceiveLeads}
	ActionManageTeam            = Action{Name: "manage_team", Feature: FeatureManageTeam}
	ActionAdminPanel            = Action{Name: "admin_panel", Feature: FeatureAdminPanel}
	ActionViewBasicAnalytics    = Action{Name: "view_basic_analytics", Feature: FeatureAnalytics, Requires: LevelBasic}
	ActionViewAdvancedAnalytics = Action{Name: "view_advanced_analytics", Feature: FeatureAnalytics, Requires: LevelAdvanced}
	ActionViewMarketSummary     = Action{Name: "view_market_summary", Feature: FeatureMarketData, Requires: LevelLimited}
	ActionExportMarketData      = Action{Name: "export_market_data", Feature: FeatureMarketData, Requires: LevelFull}
)

// Actions lists every named action, for entitlement summaries.
func Actions() []Action {
	return []Action{
		ActionViewContactInfo,
		ActionSaveSearch,
		ActionCreateListing,
		ActionFeatureListing,
		ActionReceiveLeads,
		ActionManageTeam,
		ActionAdminPanel,
		ActionViewBasicAnalytics,
		ActionViewAdvancedAnalytics,
		ActionViewMarketSummary,
		ActionExportMarketData,
	}
}

// CanPerform reports whether flags permit the action. Gates pass through,
// graded features compare through the level ordering, counters only need
// their gate to be open (usage is checked with RemainingQuota). Unknown
// features are denied.
func CanPerform(flags FeatureFlags, action Action) bool {
	switch action.Feature.Kind() {
	case KindGate:
		v, _ := flags.Gate(action.Feature)
		return v
	case KindLevel:
		lvl, _ := flags.Grade(action.Feature)
		return lvl.Satisfies(action.Requires)
	case KindCounter:
		if gate, ok := counterGates[action.Feature]; ok {
			v, _ := flags.Gate(gate)
			return v
		}
		_, ok := flags.Counter(action.Feature)
		return ok
	}
	return false
}

// Quota is the remaining headroom on a counter.
type Quota struct {
	Limit     Limit
	Used      int64
	Remaining int64 // meaningless when Unlimited
	Unlimited bool
}

// Allowed reports whether one more unit may be used.
func (q Quota) Allowed() bool {
	return q.Unlimited || q.Remaining > 0
}

// QuotaFor computes the quota for a raw limit. Usage at the limit leaves zero
// remaining, and usage above it (after a downgrade) is clamped to zero.
func QuotaFor(limit Limit, used int64) Quota {
	if limit.IsUnlimited() {
		return Quota{Limit: Unlimited, Used: used, Unlimited: true}
	}
	remaining := int64(limit) - used
	if remaining < 0 {
		remaining = 0
	}
	return Quota{Limit: limit, Used: used, Remaining: remaining}
}

// closedQuota is returned for counters whose gate is shut or that the flag
// set does not carry.
func closedQuota(used int64) Quota {
	return Quota{Limit: 0, Used: used, Remaining: 0}
}

// RemainingQuota returns the quota for a personal counter feature. If the
// counter's gate is closed the quota is zero, never unlimited.
func RemainingQuota(flags FeatureFlags, counter Feature, used int64) Quota {
	if gate, ok := counterGates[counter]; ok {
		if open, _ := flags.Gate(gate); !open {
			return closedQuota(used)
		}
	}
	limit, ok := flags.Counter(counter)
	if !ok {
		return closedQuota(used)
	}
	return QuotaFor(limit, used)
}

// RemainingOrgQuota returns the quota for an organization counter feature.
func RemainingOrgQuota(flags OrgFlags, counter Feature, used int64) Quota {
	limit, ok := flags.Counter(counter)
	if !ok {
		return closedQuota(used)
	}
	return QuotaFor(limit, used)
}
