package staff

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/TheRockzi/hackacademy/internal/apperror"
	"github.com/TheRockzi/hackacademy/internal/identity"
	"github.com/TheRockzi/hackacademy/internal/profile"
)

// Service is the staff panel business-logic interface. Privileged mutations
// return a Decision alongside the error: the Decision answers "did policy
// allow this", the error answers "did the backend respond at all". A denial
// always comes with a nil error; when the error is non-nil the Decision is
// empty and meaningless.
type Service interface {
	// ListUsers returns every profile for the roster view.
	ListUsers(ctx context.Context) ([]profile.Profile, error)

	// UpdateRole assigns target a staff role (or removes staff status with
	// an empty role) on behalf of actor. The hierarchy is enforced twice:
	// the assignment ceiling locally, the actor-versus-target ordering
	// atomically inside the database write.
	UpdateRole(ctx context.Context, actor *profile.Profile, targetID, role, ip string) (Decision, error)

	// ToggleBan flips target's ban flag and returns the new state.
	ToggleBan(ctx context.Context, actor *profile.Profile, targetID, ip string) (Decision, bool, error)

	// ResetPassword replaces target's password.
	ResetPassword(ctx context.Context, actor *profile.Profile, targetID, newPassword, ip string) (Decision, error)

	// ListEvents returns the paginated security log.
	ListEvents(ctx context.Context, eventType string, limit, offset int) ([]SecurityEvent, int, error)
}

type service struct {
	profiles          profile.Repository
	provider          identity.Provider
	events            SecurityEventRepository
	policy            Policy
	minPasswordLength int
}

// NewService creates the staff service.
func NewService(profiles profile.Repository, provider identity.Provider, events SecurityEventRepository, policy Policy, minPasswordLength int) Service {
	return &service{
		profiles:          profiles,
		provider:          provider,
		events:            events,
		policy:            policy,
		minPasswordLength: minPasswordLength,
	}
}

func (s *service) ListUsers(ctx context.Context) ([]profile.Profile, error) {
	return s.profiles.ListAll(ctx)
}

func (s *service) UpdateRole(ctx context.Context, actor *profile.Profile, targetID, role, ip string) (Decision, error) {
	if role != "" && !profile.ValidStaffRole(role) {
		return "", apperror.NewBadRequest("unknown staff role")
	}
	if actor.ID == targetID {
		return "", apperror.NewBadRequest("cannot change your own role")
	}

	// Assignment ceiling: nobody hands out a role above their own. The
	// database write only re-checks actor versus target, so this must be
	// caught here.
	if role != "" && !s.policy.CanAssign(actor.StaffRole, role) {
		s.logDenial(ctx, actor, targetID, role, ip)
		return DecisionDenied, nil
	}

	granted, err := s.profiles.UpdateRole(ctx, actor.ID, targetID, role, s.policy.AllowSameRank)
	if err != nil {
		return "", err
	}
	if !granted {
		s.logDenial(ctx, actor, targetID, role, ip)
		return DecisionDenied, nil
	}

	s.log(ctx, &SecurityEvent{
		EventType: EventRoleChanged,
		UserID:    targetID,
		ActorID:   actor.ID,
		IPAddress: ip,
		Details:   map[string]any{"role": role},
	})

	slog.Info("staff role changed",
		slog.String("actor_id", actor.ID),
		slog.String("target_id", targetID),
		slog.String("role", role),
	)

	return DecisionGranted, nil
}

func (s *service) ToggleBan(ctx context.Context, actor *profile.Profile, targetID, ip string) (Decision, bool, error) {
	if actor.ID == targetID {
		return "", false, apperror.NewBadRequest("cannot ban yourself")
	}

	target, err := s.profiles.FindByID(ctx, targetID)
	if err != nil {
		return "", false, err
	}

	if !s.policy.CanModify(actor.StaffRole, target.StaffRole) {
		return DecisionDenied, false, nil
	}

	banned, err := s.profiles.ToggleBan(ctx, targetID)
	if err != nil {
		return "", false, err
	}

	eventType := EventUserUnbanned
	if banned {
		eventType = EventUserBanned
	}
	s.log(ctx, &SecurityEvent{
		EventType: eventType,
		UserID:    targetID,
		ActorID:   actor.ID,
		IPAddress: ip,
	})

	return DecisionGranted, banned, nil
}

func (s *service) ResetPassword(ctx context.Context, actor *profile.Profile, targetID, newPassword, ip string) (Decision, error) {
	if len(newPassword) < s.minPasswordLength {
		return "", apperror.NewValidation(
			fmt.Sprintf("password must be at least %d characters", s.minPasswordLength))
	}

	target, err := s.profiles.FindByID(ctx, targetID)
	if err != nil {
		return "", err
	}

	if !s.policy.CanModify(actor.StaffRole, target.StaffRole) {
		return DecisionDenied, nil
	}

	if err := s.provider.UpdateCredential(ctx, targetID, newPassword); err != nil {
		return "", err
	}

	s.log(ctx, &SecurityEvent{
		EventType: EventPasswordReset,
		UserID:    targetID,
		ActorID:   actor.ID,
		IPAddress: ip,
	})

	return DecisionGranted, nil
}

func (s *service) ListEvents(ctx context.Context, eventType string, limit, offset int) ([]SecurityEvent, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.events.List(ctx, eventType, limit, offset)
}

func (s *service) logDenial(ctx context.Context, actor *profile.Profile, targetID, role, ip string) {
	s.log(ctx, &SecurityEvent{
		EventType: EventRoleDenied,
		UserID:    targetID,
		ActorID:   actor.ID,
		IPAddress: ip,
		Details:   map[string]any{"role": role},
	})
}

// log writes a security event. Best-effort: the privileged operation already
// happened, a full audit table must not undo it.
func (s *service) log(ctx context.Context, event *SecurityEvent) {
	if err := s.events.Log(ctx, event); err != nil {
		slog.Error("failed to record security event",
			slog.String("event_type", event.EventType),
			slog.Any("error", err),
		)
	}
}
