package auth

import "tutoria/server/internal/model"

// Scope is the visibility filter derived once per request and threaded
// through every roster and tracker query. Admins see everything; tutors see
// exactly their own team.
type Scope struct {
	Role   string
	TeamID *int64
	// Empty forces every scoped query to return no rows. Set for tutor
	// accounts that have no team assigned: fail safe, not open.
	Empty bool
}

// ScopeFor resolves the scope for an authenticated principal. Unrecognized
// roles yield no scope at all (the caller must answer 403).
func ScopeFor(claims *Claims) (Scope, bool) {
	switch claims.Role {
	case model.RoleAdmin:
		return Scope{Role: model.RoleAdmin}, true
	case model.RoleTutor:
		if claims.TeamID == nil {
			return Scope{Role: model.RoleTutor, Empty: true}, true
		}
		return Scope{Role: model.RoleTutor, TeamID: claims.TeamID}, true
	default:
		return Scope{}, false
	}
}

// Admin reports whether the scope carries no team restriction.
func (s Scope) Admin() bool { return s.Role == model.RoleAdmin }

// Allows reports whether an entity in the given team is visible.
func (s Scope) Allows(teamID int64) bool {
	if s.Empty {
		return false
	}
	if s.TeamID == nil {
		return true
	}
	return *s.TeamID == teamID
}

// Narrow combines the scope with an explicit team filter from the request.
// Admins may filter freely; a tutor's own restriction always wins.
func (s Scope) Narrow(teamID *int64) Scope {
	if s.TeamID != nil || s.Empty || teamID == nil {
		return s
	}
	out := s
	out.TeamID = teamID
	return out
}
