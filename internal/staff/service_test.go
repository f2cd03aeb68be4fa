package staff

import (
	"context"
	"errors"
	"testing"

	"github.com/TheRockzi/hackacademy/internal/apperror"
	"github.com/TheRockzi/hackacademy/internal/identity"
	"github.com/TheRockzi/hackacademy/internal/profile"
)

// mockProfileRepo is a test double for profile.Repository.
type mockProfileRepo struct {
	insertFunc          func(ctx context.Context, p *profile.Profile) error
	findByIDFunc        func(ctx context.Context, id string) (*profile.Profile, error)
	listAllFunc         func(ctx context.Context) ([]profile.Profile, error)
	updateUsernameFunc  func(ctx context.Context, id, username string) error
	incrementSolvedFunc func(ctx context.Context, id, category string) error
	toggleBanFunc       func(ctx context.Context, id string) (bool, error)
	updateRoleFunc      func(ctx context.Context, actorID, targetID, role string, allowSameRank bool) (bool, error)
	subscribeFunc       func(ctx context.Context) (<-chan profile.Notification, error)
}

func (m *mockProfileRepo) Insert(ctx context.Context, p *profile.Profile) error {
	return m.insertFunc(ctx, p)
}

func (m *mockProfileRepo) FindByID(ctx context.Context, id string) (*profile.Profile, error) {
	return m.findByIDFunc(ctx, id)
}

func (m *mockProfileRepo) ListAll(ctx context.Context) ([]profile.Profile, error) {
	return m.listAllFunc(ctx)
}

func (m *mockProfileRepo) UpdateUsername(ctx context.Context, id, username string) error {
	return m.updateUsernameFunc(ctx, id, username)
}

func (m *mockProfileRepo) IncrementSolved(ctx context.Context, id, category string) error {
	return m.incrementSolvedFunc(ctx, id, category)
}

func (m *mockProfileRepo) ToggleBan(ctx context.Context, id string) (bool, error) {
	return m.toggleBanFunc(ctx, id)
}

func (m *mockProfileRepo) UpdateRole(ctx context.Context, actorID, targetID, role string, allowSameRank bool) (bool, error) {
	return m.updateRoleFunc(ctx, actorID, targetID, role, allowSameRank)
}

func (m *mockProfileRepo) Subscribe(ctx context.Context) (<-chan profile.Notification, error) {
	return m.subscribeFunc(ctx)
}

// mockEventRepo records logged security events.
type mockEventRepo struct {
	events []SecurityEvent
}

func (m *mockEventRepo) Log(ctx context.Context, event *SecurityEvent) error {
	m.events = append(m.events, *event)
	return nil
}

func (m *mockEventRepo) List(ctx context.Context, eventType string, limit, offset int) ([]SecurityEvent, int, error) {
	return m.events, len(m.events), nil
}

// mockIdentityProvider stubs identity.Provider for password resets.
type mockIdentityProvider struct {
	updateCredentialFunc func(ctx context.Context, userID, newPassword string) error
}

func (m *mockIdentityProvider) GetSession(ctx context.Context, token string) (*identity.Identity, error) {
	return nil, nil
}

func (m *mockIdentityProvider) SignInWithPassword(ctx context.Context, email, password string) (*identity.Identity, string, error) {
	return nil, "", nil
}

func (m *mockIdentityProvider) SignUp(ctx context.Context, email, password string) (*identity.Identity, string, error) {
	return nil, "", nil
}

func (m *mockIdentityProvider) SignOut(ctx context.Context, token string) error {
	return nil
}

func (m *mockIdentityProvider) SessionEvents(ctx context.Context, token string) (<-chan identity.Event, error) {
	return nil, nil
}

func (m *mockIdentityProvider) UpdateCredential(ctx context.Context, userID, newPassword string) error {
	return m.updateCredentialFunc(ctx, userID, newPassword)
}

func ceoActor() *profile.Profile {
	return &profile.Profile{ID: "ceo-1", IsStaff: true, StaffRole: "CEO"}
}

func managerActor() *profile.Profile {
	return &profile.Profile{ID: "mgr-1", IsStaff: true, StaffRole: "Manager"}
}

func adminActor() *profile.Profile {
	return &profile.Profile{ID: "adm-1", IsStaff: true, StaffRole: "Administrator"}
}

func newTestService(repo *mockProfileRepo, provider identity.Provider, events *mockEventRepo) Service {
	return NewService(repo, provider, events, Policy{}, 6)
}

func TestUpdateRoleGranted(t *testing.T) {
	var gotActor, gotTarget, gotRole string
	repo := &mockProfileRepo{
		updateRoleFunc: func(ctx context.Context, actorID, targetID, role string, allowSameRank bool) (bool, error) {
			gotActor, gotTarget, gotRole = actorID, targetID, role
			return true, nil
		},
	}
	events := &mockEventRepo{}
	svc := newTestService(repo, &mockIdentityProvider{}, events)

	decision, err := svc.UpdateRole(context.Background(), ceoActor(), "user-2", "Manager", "10.0.0.1")
	if err != nil {
		t.Fatalf("UpdateRole failed: %v", err)
	}
	if decision != DecisionGranted {
		t.Errorf("decision = %q, want granted", decision)
	}
	if gotActor != "ceo-1" || gotTarget != "user-2" || gotRole != "Manager" {
		t.Errorf("repository got (%q, %q, %q)", gotActor, gotTarget, gotRole)
	}
	if len(events.events) != 1 || events.events[0].EventType != EventRoleChanged {
		t.Errorf("events = %+v, want one role_changed", events.events)
	}
}

func TestUpdateRoleDeniedByDatabaseGuard(t *testing.T) {
	repo := &mockProfileRepo{
		updateRoleFunc: func(ctx context.Context, actorID, targetID, role string, allowSameRank bool) (bool, error) {
			return false, nil
		},
	}
	events := &mockEventRepo{}
	svc := newTestService(repo, &mockIdentityProvider{}, events)

	decision, err := svc.UpdateRole(context.Background(), managerActor(), "ceo-1x", "Administrator", "10.0.0.1")
	if err != nil {
		t.Fatalf("a denial must not be an error, got: %v", err)
	}
	if decision != DecisionDenied {
		t.Errorf("decision = %q, want denied", decision)
	}
	if len(events.events) != 1 || events.events[0].EventType != EventRoleDenied {
		t.Errorf("events = %+v, want one role_denied", events.events)
	}
}

func TestUpdateRoleTransportFailure(t *testing.T) {
	repo := &mockProfileRepo{
		updateRoleFunc: func(ctx context.Context, actorID, targetID, role string, allowSameRank bool) (bool, error) {
			return false, apperror.NewInternal(errors.New("connection reset"))
		},
	}
	svc := newTestService(repo, &mockIdentityProvider{}, &mockEventRepo{})

	decision, err := svc.UpdateRole(context.Background(), ceoActor(), "user-2", "Manager", "10.0.0.1")
	if err == nil {
		t.Fatal("expected a transport error")
	}
	if decision == DecisionDenied || decision == DecisionGranted {
		t.Errorf("decision = %q on transport failure, want neither granted nor denied", decision)
	}
}

func TestUpdateRoleAssignmentCeiling(t *testing.T) {
	repo := &mockProfileRepo{
		updateRoleFunc: func(ctx context.Context, actorID, targetID, role string, allowSameRank bool) (bool, error) {
			t.Fatal("database write attempted above the actor's assignment ceiling")
			return false, nil
		},
	}
	events := &mockEventRepo{}
	svc := newTestService(repo, &mockIdentityProvider{}, events)

	// A Manager promoting someone to CEO would mint a role above their own.
	decision, err := svc.UpdateRole(context.Background(), managerActor(), "user-2", "CEO", "10.0.0.1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision != DecisionDenied {
		t.Errorf("decision = %q, want denied", decision)
	}
}

func TestUpdateRoleRejectsSelfAndUnknownRole(t *testing.T) {
	svc := newTestService(&mockProfileRepo{}, &mockIdentityProvider{}, &mockEventRepo{})

	if _, err := svc.UpdateRole(context.Background(), ceoActor(), "ceo-1", "Manager", ""); err == nil {
		t.Error("expected an error for a self role change")
	}
	if _, err := svc.UpdateRole(context.Background(), ceoActor(), "user-2", "Overlord", ""); err == nil {
		t.Error("expected an error for an unknown role")
	}
}

func TestToggleBanFlipsBothWays(t *testing.T) {
	banned := false
	repo := &mockProfileRepo{
		findByIDFunc: func(ctx context.Context, id string) (*profile.Profile, error) {
			return &profile.Profile{ID: id}, nil
		},
		toggleBanFunc: func(ctx context.Context, id string) (bool, error) {
			banned = !banned
			return banned, nil
		},
	}
	events := &mockEventRepo{}
	svc := newTestService(repo, &mockIdentityProvider{}, events)

	decision, nowBanned, err := svc.ToggleBan(context.Background(), adminActor(), "user-2", "10.0.0.1")
	if err != nil || decision != DecisionGranted || !nowBanned {
		t.Fatalf("first toggle = (%q, %v, %v), want granted/banned", decision, nowBanned, err)
	}

	decision, nowBanned, err = svc.ToggleBan(context.Background(), adminActor(), "user-2", "10.0.0.1")
	if err != nil || decision != DecisionGranted || nowBanned {
		t.Fatalf("second toggle = (%q, %v, %v), want granted/unbanned", decision, nowBanned, err)
	}

	if len(events.events) != 2 ||
		events.events[0].EventType != EventUserBanned ||
		events.events[1].EventType != EventUserUnbanned {
		t.Errorf("events = %+v, want banned then unbanned", events.events)
	}
}

func TestToggleBanDeniedByPolicy(t *testing.T) {
	repo := &mockProfileRepo{
		findByIDFunc: func(ctx context.Context, id string) (*profile.Profile, error) {
			return &profile.Profile{ID: id, IsStaff: true, StaffRole: "Manager"}, nil
		},
		toggleBanFunc: func(ctx context.Context, id string) (bool, error) {
			t.Fatal("ban applied despite policy denial")
			return false, nil
		},
	}
	svc := newTestService(repo, &mockIdentityProvider{}, &mockEventRepo{})

	decision, _, err := svc.ToggleBan(context.Background(), adminActor(), "mgr-2", "10.0.0.1")
	if err != nil {
		t.Fatalf("a denial must not be an error, got: %v", err)
	}
	if decision != DecisionDenied {
		t.Errorf("decision = %q, want denied", decision)
	}
}

func TestResetPassword(t *testing.T) {
	var resetUser string
	provider := &mockIdentityProvider{
		updateCredentialFunc: func(ctx context.Context, userID, newPassword string) error {
			resetUser = userID
			return nil
		},
	}
	repo := &mockProfileRepo{
		findByIDFunc: func(ctx context.Context, id string) (*profile.Profile, error) {
			return &profile.Profile{ID: id}, nil
		},
	}
	events := &mockEventRepo{}
	svc := newTestService(repo, provider, events)

	// Local validation fires before any lookup.
	if _, err := svc.ResetPassword(context.Background(), ceoActor(), "user-2", "short", ""); err == nil {
		t.Error("expected a validation error for a short password")
	}

	decision, err := svc.ResetPassword(context.Background(), ceoActor(), "user-2", "long-enough", "10.0.0.1")
	if err != nil || decision != DecisionGranted {
		t.Fatalf("ResetPassword = (%q, %v), want granted", decision, err)
	}
	if resetUser != "user-2" {
		t.Errorf("credential updated for %q, want user-2", resetUser)
	}
	if len(events.events) != 1 || events.events[0].EventType != EventPasswordReset {
		t.Errorf("events = %+v, want one password_reset", events.events)
	}
}
