// Package domain contains core business types and interfaces.
//
// This file defines the tier catalog: the static mapping from a role to the
// capabilities it grants. It replaces storing a per-user flags blob; flags are
// always derived from (role, organization tier).
package domain

// tierCatalog maps each role to its personal flags.
var tierCatalog = map[Role]FeatureFlags{
	RoleFree: {
		Role: RoleFree,
	},
	RoleRegistered: {
		Role:             RoleRegistered,
		ViewContactInfo:  true,
		SaveSearches:     true,
		MaxSavedSearches: 5,
		MarketData:       LevelLimited,
	},
	RolePremium: {
		Role:             RolePremium,
		ViewContactInfo:  true,
		SaveSearches:     true,
		MaxSavedSearches: 50,
		Analytics:        LevelBasic,
		MarketData:       LevelFull,
	},
	RoleAgent: {
		Role:              RoleAgent,
		ViewContactInfo:   true,
		SaveSearches:      true,
		CreateListings:    true,
		FeaturedListings:  true,
		ReceiveLeads:      true,
		MaxActiveListings: 25,
		MaxSavedSearches:  Unlimited,
		Analytics:         LevelBasic,
		MarketData:        LevelFull,
	},
	RoleAgency: {
		Role:              RoleAgency,
		ViewContactInfo:   true,
		SaveSearches:      true,
		CreateListings:    true,
		FeaturedListings:  true,
		ReceiveLeads:      true,
		ManageTeam:        true,
		MaxActiveListings: 100,
		MaxSavedSearches:  Unlimited,
		Analytics:         LevelAdvanced,
		MarketData:        LevelFull,
	},
	RoleExpert: {
		Role:              RoleExpert,
		ViewContactInfo:   true,
		SaveSearches:      true,
		CreateListings:    true,
		FeaturedListings:  true,
		ReceiveLeads:      true,
		ManageTeam:        true,
		MaxActiveListings: Unlimited,
		MaxSavedSearches:  Unlimited,
		Analytics:         LevelAdvanced,
		MarketData:        LevelFull,
	},
	RoleAdmin: {
		Role:              RoleAdmin,
		ViewContactInfo:   true,
		SaveSearches:      true,
		CreateListings:    true,
		FeaturedListings:  true,
		ReceiveLeads:      true,
		ManageTeam:        true,
		AdminPanel:        true,
		MaxActiveListings: Unlimited,
		MaxSavedSearches:  Unlimited,
		Analytics:         LevelAdvanced,
		MarketData:        LevelFull,
	},
}

// orgCatalog maps an organization tier to its aggregate caps.
var orgCatalog = map[Role]OrgFlags{
	RoleFree:       {Tier: RoleFree, Seats: 1, MaxActiveListings: 1},
	RoleRegistered: {Tier: RoleRegistered, Seats: 1, MaxActiveListings: 1},
	RolePremium:    {Tier: RolePremium, Seats: 1, MaxActiveListings: 1},
	RoleAgent:      {Tier: RoleAgent, Seats: 1, MaxActiveListings: 25},
	RoleAgency:     {Tier: RoleAgency, Seats: 10, MaxActiveListings: 250, LeadRouting: true},
	RoleExpert:     {Tier: RoleExpert, Seats: 50, MaxActiveListings: Unlimited, LeadRouting: true},
	RoleAdmin:      {Tier: RoleAdmin, Seats: Unlimited, MaxActiveListings: Unlimited, LeadRouting: true},
}

// PersonalFlags returns the personal flags for a role. Unknown roles get the
// free set.
func PersonalFlags(role Role) FeatureFlags {
	if flags, ok := tierCatalog[role]; ok {
		return flags
	}
	return tierCatalog[RoleFree]
}

// OrganizationFlags returns the aggregate caps for an organization tier.
// Unknown tiers get the free set.
func OrganizationFlags(tier Role) OrgFlags {
	if flags, ok := orgCatalog[tier]; ok {
		return flags
	}
	return orgCatalog[RoleFree]
}

// Resolve derives the entitlements for a user's role and, when the user
// belongs to an organization, that organization's tier. It is pure and total.
func Resolve(role Role, orgTier *Role) Entitlements {
	ent := Entitlements{Personal: PersonalFlags(role)}
	if orgTier != nil {
		org := OrganizationFlags(*orgTier)
		ent.Org = &org
	}
	return ent
}
