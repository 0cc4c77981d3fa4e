package domain

import (
	"fmt"
	"strings"
)

// =============================================================================
// Limits
// =============================================================================

// Limit is a bounded counter value. Zero or Unlimited means no cap.
type Limit int64

// Unlimited is the explicit "no cap" sentinel.
const Unlimited Limit = -1

// IsUnlimited reports whether the limit imposes no cap.
func (l Limit) IsUnlimited() bool {
	return l <= 0
}

// Allows reports whether one more unit fits under the limit given the
// current usage. A limit of N allows while used < N.
func (l Limit) Allows(used int64) bool {
	if l.IsUnlimited() {
		return true
	}
	return used < int64(l)
}

func (l Limit) String() string {
	if l.IsUnlimited() {
		return "unlimited"
	}
	return fmt.Sprintf("%d", int64(l))
}

// =============================================================================
// Graded levels
// =============================================================================

// Level is a graded capability. Two vocabularies share the same scale:
// none|limited|full and none|basic|advanced.
type Level uint8

const (
	LevelNone    Level = 0
	LevelLimited Level = 1
	LevelFull    Level = 2

	LevelBasic    = LevelLimited
	LevelAdvanced = LevelFull
)

// levelOrder is the single ordering table for levels; "full implies limited"
// lives here and nowhere else.
var levelOrder = map[Level]int{
	LevelNone:    0,
	LevelLimited: 1,
	LevelFull:    2,
}

// Satisfies reports whether l meets the required level. Unknown levels
// satisfy nothing but LevelNone.
func (l Level) Satisfies(required Level) bool {
	have, ok := levelOrder[l]
	if !ok {
		have = 0
	}
	need, ok := levelOrder[required]
	if !ok {
		return false
	}
	return have >= need
}

func (l Level) String() string {
	switch l {
	case LevelNone:
		return "none"
	case LevelLimited:
		return "limited"
	case LevelFull:
		return "full"
	}
	return fmt.Sprintf("level(%d)", uint8(l))
}

// ParseLevel accepts either vocabulary.
func ParseLevel(s string) (Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none":
		return LevelNone, true
	case "limited", "basic":
		return LevelLimited, true
	case "full", "advanced":
		return LevelFull, true
	}
	return LevelNone, false
}

// =============================================================================
// Features
// =============================================================================

// Feature names a single capability in FeatureFlags or OrgFlags.
type Feature string

// FeatureKind says how a feature's value is interpreted.
type FeatureKind int

const (
	KindUnknown FeatureKind = iota
	KindGate
	KindCounter
	KindLevel
)

const (
	FeatureViewContactInfo  Feature = "view_contact_info"
	FeatureSaveSearches     Feature = "save_searches"
	FeatureCreateListings   Feature = "create_listings"
	FeatureFeaturedListings Feature = "featured_listings"
	FeatureReceiveLeads     Feature = "receive_leads"
	FeatureManageTeam       Feature = "manage_team"
	FeatureAdminPanel       Feature = "admin_panel"

	FeatureMaxActiveListings Feature = "max_active_listings"
	FeatureMaxSavedSearches  Feature = "max_saved_searches"

	FeatureAnalytics  Feature = "analytics"
	FeatureMarketData Feature = "market_data"

	FeatureOrgMaxActiveListings Feature = "org_max_active_listings"
	FeatureOrgSeats             Feature = "org_seats"
	FeatureOrgLeadRouting       Feature = "org_lead_routing"
)

var featureKinds = map[Feature]FeatureKind{
	FeatureViewContactInfo:      KindGate,
	FeatureSaveSearches:         KindGate,
	FeatureCreateListings:       KindGate,
	FeatureFeaturedListings:     KindGate,
	FeatureReceiveLeads:         KindGate,
	FeatureManageTeam:           KindGate,
	FeatureAdminPanel:           KindGate,
	FeatureMaxActiveListings:    KindCounter,
	FeatureMaxSavedSearches:     KindCounter,
	FeatureAnalytics:            KindLevel,
	FeatureMarketData:           KindLevel,
	FeatureOrgMaxActiveListings: KindCounter,
	FeatureOrgSeats:             KindCounter,
	FeatureOrgLeadRouting:       KindGate,
}

// counterGates names the gate that must be open before a counter applies.
var counterGates = map[Feature]Feature{
	FeatureMaxActiveListings: FeatureCreateListings,
	FeatureMaxSavedSearches:  FeatureSaveSearches,
}

// Kind returns how the feature's value is interpreted.
func (f Feature) Kind() FeatureKind {
	return featureKinds[f]
}

// =============================================================================
// Counters
// =============================================================================

// Counter names a capped resource.
type Counter string

const (
	CounterListings Counter = "listings"
	CounterSeats    Counter = "seats"
)

// Noun returns a human-readable plural for prompts.
func (c Counter) Noun() string {
	switch c {
	case CounterListings:
		return "active listings"
	case CounterSeats:
		return "team seats"
	}
	return string(c)
}

// =============================================================================
// Flag sets
// =============================================================================

// FeatureFlags is the personal capability set derived from a role. It is
// immutable and recomputed on demand; it is never stored.
type FeatureFlags struct {
	Role Role

	ViewContactInfo  bool
	SaveSearches     bool
	CreateListings   bool
	FeaturedListings bool
	ReceiveLeads     bool
	ManageTeam       bool
	AdminPanel       bool

	MaxActiveListings Limit
	MaxSavedSearches  Limit

	Analytics  Level // none|basic|advanced
	MarketData Level // none|limited|full
}

// Gate returns the value of a boolean feature. ok is false when the feature
// is not a personal gate.
func (f FeatureFlags) Gate(feature Feature) (value bool, ok bool) {
	switch feature {
	case FeatureViewContactInfo:
		return f.ViewContactInfo, true
	case FeatureSaveSearches:
		return f.SaveSearches, true
	case FeatureCreateListings:
		return f.CreateListings, true
	case FeatureFeaturedListings:
		return f.FeaturedListings, true
	case FeatureReceiveLeads:
		return f.ReceiveLeads, true
	case FeatureManageTeam:
		return f.ManageTeam, true
	case FeatureAdminPanel:
		return f.AdminPanel, true
	}
	return false, false
}

// Counter returns the value of a counter feature.
func (f FeatureFlags) Counter(feature Feature) (Limit, bool) {
	switch feature {
	case FeatureMaxActiveListings:
		return f.MaxActiveListings, true
	case FeatureMaxSavedSearches:
		return f.MaxSavedSearches, true
	}
	return 0, false
}

// Grade returns the value of a graded feature.
func (f FeatureFlags) Grade(feature Feature) (Level, bool) {
	switch feature {
	case FeatureAnalytics:
		return f.Analytics, true
	case FeatureMarketData:
		return f.MarketData, true
	}
	return LevelNone, false
}

// OrgFlags holds the aggregate caps an organization's tier grants. They apply
// to organization-scoped actions only.
type OrgFlags struct {
	Tier Role

	MaxActiveListings Limit
	Seats             Limit
	LeadRouting       bool
}

// Counter returns the value of an organization counter feature.
func (o OrgFlags) Counter(feature Feature) (Limit, bool) {
	switch feature {
	case FeatureOrgMaxActiveListings:
		return o.MaxActiveListings, true
	case FeatureOrgSeats:
		return o.Seats, true
	}
	return 0, false
}

// WithOverrides replaces catalog caps with an organization's negotiated caps.
// A nil override keeps the catalog value.
func (o OrgFlags) WithOverrides(listingCap, seatLimit *int64) OrgFlags {
	if listingCap != nil {
		o.MaxActiveListings = Limit(*listingCap)
	}
	if seatLimit != nil {
		o.Seats = Limit(*seatLimit)
	}
	return o
}

// Entitlements is the result of resolving a role. Personal and organization
// flags are kept apart so that membership never widens personal access.
type Entitlements struct {
	Personal FeatureFlags
	Org      *OrgFlags
}

// HasOrg reports whether organization flags were resolved.
func (e Entitlements) HasOrg() bool {
	return e.Org != nil
}
