package staff

import "time"

// Decision is the policy outcome of a privileged operation. It is separate
// from the error return: a denial is a definitive answer from a reachable
// backend, a transport failure is no answer at all, and callers must be
// able to tell the two apart.
type Decision string

const (
	// DecisionGranted means the hierarchy check passed and the change was
	// applied.
	DecisionGranted Decision = "granted"

	// DecisionDenied means the backend answered and refused: the actor does
	// not outrank the target (or the role being assigned).
	DecisionDenied Decision = "denied"
)

// Security event types follow the "resource.verb" pattern so the event log
// filters group cleanly.
const (
	EventRoleChanged   = "staff.role_changed"
	EventRoleDenied    = "staff.role_denied"
	EventUserBanned    = "staff.user_banned"
	EventUserUnbanned  = "staff.user_unbanned"
	EventPasswordReset = "staff.password_reset"
)

// SecurityEvent is one entry in the site-wide security log: privileged
// actions taken through the staff panel, with enough context to audit who
// did what to whom.
type SecurityEvent struct {
	ID        int64          `json:"id"`
	EventType string         `json:"event_type"`
	UserID    string         `json:"user_id,omitempty"`
	ActorID   string         `json:"actor_id,omitempty"`
	IPAddress string         `json:"ip_address"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
