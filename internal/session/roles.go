package session

import "slices"

// Roles known to the gateway, highest privilege first.
const (
	RoleAdmin      = "ADMIN"
	RoleAirline    = "AIRLINE_USER"
	RoleEnterprise = "ENTERPRISE_USER"
	RolePersonal   = "PERSONAL_USER"
)

// RootPath is where unknown or absent landing pages resolve.
const RootPath = "/"

// Ranking selects a primary role and maps roles to landing pages.
type Ranking struct {
	order      []string
	fallback   string
	dashboards map[string]string
}

// NewRanking builds a ranking. order lists roles highest first; fallback is
// the primary role of users holding none of them.
func NewRanking(order []string, fallback string, dashboards map[string]string) Ranking {
	return Ranking{
		order:      slices.Clone(order),
		fallback:   fallback,
		dashboards: dashboards,
	}
}

// DefaultRanking is ADMIN > AIRLINE_USER > ENTERPRISE_USER > PERSONAL_USER,
// falling back to PERSONAL_USER.
func DefaultRanking() Ranking {
	return NewRanking(
		[]string{RoleAdmin, RoleAirline, RoleEnterprise, RolePersonal},
		RolePersonal,
		map[string]string{
			RoleAdmin:      "/dashboard/admin",
			RolePersonal:   "/dashboard/personal",
			RoleEnterprise: "/dashboard/enterprise",
			RoleAirline:    "/dashboard/airline",
		},
	)
}

// Primary returns the highest ranked role in roles, or the fallback.
func (r Ranking) Primary(roles []string) string {
	for _, candidate := range r.order {
		if slices.Contains(roles, candidate) {
			return candidate
		}
	}
	return r.fallback
}

// Dashboard returns the landing page of role, or RootPath when the role has
// none.
func (r Ranking) Dashboard(role string) string {
	if p, ok := r.dashboards[role]; ok {
		return p
	}
	return RootPath
}
