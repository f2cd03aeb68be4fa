// Package staff implements the admin panel backend: the role hierarchy
// policy, privileged user management, the live user roster, and the
// security event log.
package staff

import "slices"

// Hierarchy is the staff role ordering from most to least privileged. The
// database-side guard in the profile repository encodes the same ordering;
// keep the two in sync.
var Hierarchy = []string{"CEO", "Manager", "Administrator"}

// Policy decides which staff members may modify which users. Decisions are
// derived purely from positions in the hierarchy, so adding a tier never
// requires touching the decision logic.
type Policy struct {
	// AllowSameRank lets members of the bottom tier act on their peers.
	// Higher tiers can always act on their own tier regardless.
	AllowSameRank bool
}

// rankOf returns a role's position in the hierarchy. Non-staff and unknown
// roles sort below every real tier.
func rankOf(role string) int {
	if i := slices.Index(Hierarchy, role); i >= 0 {
		return i
	}
	return len(Hierarchy)
}

// CanModify reports whether a staff member holding actorRole may modify a
// user holding targetRole. Non-staff actors can modify no one; pass "" for
// targets outside the staff hierarchy.
func (p Policy) CanModify(actorRole, targetRole string) bool {
	actor := rankOf(actorRole)
	if actor == len(Hierarchy) {
		return false
	}

	target := rankOf(targetRole)
	if actor < target {
		return true
	}
	if actor == target {
		return actor < len(Hierarchy)-1 || p.AllowSameRank
	}
	return false
}

// CanAssign reports whether the actor may hand out the given role. Granting
// a role is modifying whoever would hold it, so the same ordering applies:
// nobody can assign a role above their own.
func (p Policy) CanAssign(actorRole, role string) bool {
	return p.CanModify(actorRole, role)
}
