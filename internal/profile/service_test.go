package profile

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/TheRockzi/hackacademy/internal/apperror"
)

// mockRepository is a test double for Repository.
type mockRepository struct {
	insertFunc          func(ctx context.Context, p *Profile) error
	findByIDFunc        func(ctx context.Context, id string) (*Profile, error)
	listAllFunc         func(ctx context.Context) ([]Profile, error)
	updateUsernameFunc  func(ctx context.Context, id, username string) error
	incrementSolvedFunc func(ctx context.Context, id, category string) error
	toggleBanFunc       func(ctx context.Context, id string) (bool, error)
	updateRoleFunc      func(ctx context.Context, actorID, targetID, role string, allowSameRank bool) (bool, error)
	subscribeFunc       func(ctx context.Context) (<-chan Notification, error)
}

func (m *mockRepository) Insert(ctx context.Context, p *Profile) error {
	return m.insertFunc(ctx, p)
}

func (m *mockRepository) FindByID(ctx context.Context, id string) (*Profile, error) {
	return m.findByIDFunc(ctx, id)
}

func (m *mockRepository) ListAll(ctx context.Context) ([]Profile, error) {
	return m.listAllFunc(ctx)
}

func (m *mockRepository) UpdateUsername(ctx context.Context, id, username string) error {
	return m.updateUsernameFunc(ctx, id, username)
}

func (m *mockRepository) IncrementSolved(ctx context.Context, id, category string) error {
	return m.incrementSolvedFunc(ctx, id, category)
}

func (m *mockRepository) ToggleBan(ctx context.Context, id string) (bool, error) {
	return m.toggleBanFunc(ctx, id)
}

func (m *mockRepository) UpdateRole(ctx context.Context, actorID, targetID, role string, allowSameRank bool) (bool, error) {
	return m.updateRoleFunc(ctx, actorID, targetID, role, allowSameRank)
}

func (m *mockRepository) Subscribe(ctx context.Context) (<-chan Notification, error) {
	return m.subscribeFunc(ctx)
}

func TestEnsureReturnsExistingProfile(t *testing.T) {
	existing := &Profile{ID: "user-1", Username: "alice"}
	inserted := false
	repo := &mockRepository{
		findByIDFunc: func(ctx context.Context, id string) (*Profile, error) {
			return existing, nil
		},
		insertFunc: func(ctx context.Context, p *Profile) error {
			inserted = true
			return nil
		},
	}

	p, err := NewService(repo).Ensure(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	if p != existing {
		t.Errorf("Ensure returned %+v, want the existing profile", p)
	}
	if inserted {
		t.Error("Ensure inserted despite existing profile")
	}
}

func TestEnsureCreatesDefaultProfile(t *testing.T) {
	var store *Profile
	repo := &mockRepository{
		findByIDFunc: func(ctx context.Context, id string) (*Profile, error) {
			if store == nil {
				return nil, apperror.NewNotFound("profile not found")
			}
			return store, nil
		},
		insertFunc: func(ctx context.Context, p *Profile) error {
			store = p
			return nil
		},
	}

	p, err := NewService(repo).Ensure(context.Background(), "3f2504e0-4f89-11d3-9a0c-0305e82c3301")
	if err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	if p.Username != "user_3f2504e0" {
		t.Errorf("default username = %q, want %q", p.Username, "user_3f2504e0")
	}
	if p.WebSolved != 0 || p.ProgrammingSolved != 0 || p.CryptoSolved != 0 {
		t.Errorf("default counters not zeroed: %+v", p)
	}
	if p.IsStaff || p.IsBanned {
		t.Errorf("default flags not cleared: %+v", p)
	}
}

func TestEnsureLosingInsertRaceRetriesLookup(t *testing.T) {
	winner := &Profile{ID: "user-1", Username: "winner"}
	calls := 0
	repo := &mockRepository{
		findByIDFunc: func(ctx context.Context, id string) (*Profile, error) {
			calls++
			if calls == 1 {
				return nil, apperror.NewNotFound("profile not found")
			}
			return winner, nil
		},
		insertFunc: func(ctx context.Context, p *Profile) error {
			return ErrDuplicate
		},
	}

	p, err := NewService(repo).Ensure(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Ensure failed after losing the race: %v", err)
	}
	if p != winner {
		t.Errorf("Ensure returned %+v, want the winner's row", p)
	}
}

func TestEnsureInsertFailureStillFindsDurableRow(t *testing.T) {
	// The insert errors out but the write itself landed (response lost in
	// transit). The follow-up lookup must return the row instead of
	// reporting the store unavailable.
	durable := &Profile{ID: "user-1", Username: "user_user-1"}
	calls := 0
	repo := &mockRepository{
		findByIDFunc: func(ctx context.Context, id string) (*Profile, error) {
			calls++
			if calls == 1 {
				return nil, apperror.NewNotFound("profile not found")
			}
			return durable, nil
		},
		insertFunc: func(ctx context.Context, p *Profile) error {
			return apperror.NewInternal(errors.New("connection reset mid-response"))
		},
	}

	p, err := NewService(repo).Ensure(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Ensure failed despite a durable row: %v", err)
	}
	if p != durable {
		t.Errorf("Ensure returned %+v, want the durable row", p)
	}
}

func TestEnsureInsertFailureAndMissingRow(t *testing.T) {
	// The insert fails and the re-lookup confirms nothing was written.
	repo := &mockRepository{
		findByIDFunc: func(ctx context.Context, id string) (*Profile, error) {
			return nil, apperror.NewNotFound("profile not found")
		},
		insertFunc: func(ctx context.Context, p *Profile) error {
			return apperror.NewInternal(errors.New("connection refused"))
		},
	}

	_, err := NewService(repo).Ensure(context.Background(), "user-1")
	assertUnavailable(t, err)
}

func TestEnsureConcurrentCallersConverge(t *testing.T) {
	var mu sync.Mutex
	var store *Profile

	repo := &mockRepository{
		findByIDFunc: func(ctx context.Context, id string) (*Profile, error) {
			mu.Lock()
			defer mu.Unlock()
			if store == nil {
				return nil, apperror.NewNotFound("profile not found")
			}
			return store, nil
		},
		insertFunc: func(ctx context.Context, p *Profile) error {
			mu.Lock()
			defer mu.Unlock()
			if store != nil {
				return ErrDuplicate
			}
			store = p
			return nil
		},
	}

	svc := NewService(repo)

	const callers = 16
	results := make([]*Profile, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.Ensure(context.Background(), "user-1")
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d failed: %v", i, errs[i])
		}
		if results[i].ID != "user-1" {
			t.Errorf("caller %d got profile %q", i, results[i].ID)
		}
	}
}

func TestEnsureStoreUnreachable(t *testing.T) {
	repo := &mockRepository{
		findByIDFunc: func(ctx context.Context, id string) (*Profile, error) {
			return nil, apperror.NewInternal(errors.New("connection refused"))
		},
	}

	_, err := NewService(repo).Ensure(context.Background(), "user-1")
	assertUnavailable(t, err)
}

func TestEnsureRetryExhausted(t *testing.T) {
	// The insert reports a duplicate but the follow-up read still fails:
	// the store is lying or mid-outage, surface unavailability.
	repo := &mockRepository{
		findByIDFunc: func(ctx context.Context, id string) (*Profile, error) {
			return nil, apperror.NewNotFound("profile not found")
		},
		insertFunc: func(ctx context.Context, p *Profile) error {
			return ErrDuplicate
		},
	}

	_, err := NewService(repo).Ensure(context.Background(), "user-1")
	assertUnavailable(t, err)
}

func TestCreateSanitizesUsername(t *testing.T) {
	var inserted *Profile
	repo := &mockRepository{
		insertFunc: func(ctx context.Context, p *Profile) error {
			inserted = p
			return nil
		},
	}

	err := NewService(repo).Create(context.Background(), "user-1", "  <script>x</script>neo  ")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if inserted.Username != "neo" {
		t.Errorf("stored username = %q, want %q", inserted.Username, "neo")
	}
}

func TestCreateFallsBackToDefaultUsername(t *testing.T) {
	var inserted *Profile
	repo := &mockRepository{
		insertFunc: func(ctx context.Context, p *Profile) error {
			inserted = p
			return nil
		},
	}

	// A username that is pure markup sanitizes to nothing.
	err := NewService(repo).Create(context.Background(), "abcdef1234", "<b></b>")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if inserted.Username != "user_abcdef12" {
		t.Errorf("stored username = %q, want the placeholder", inserted.Username)
	}
}

func TestCreateIgnoresExistingProfile(t *testing.T) {
	repo := &mockRepository{
		insertFunc: func(ctx context.Context, p *Profile) error {
			return ErrDuplicate
		},
	}

	if err := NewService(repo).Create(context.Background(), "user-1", "alice"); err != nil {
		t.Errorf("Create on existing profile returned error: %v", err)
	}
}

func TestUpdateUsernameValidation(t *testing.T) {
	repo := &mockRepository{
		updateUsernameFunc: func(ctx context.Context, id, username string) error {
			t.Fatalf("repository reached with invalid username %q", username)
			return nil
		},
	}
	svc := NewService(repo)

	cases := []struct {
		name     string
		username string
	}{
		{"too short", "ab"},
		{"markup only", "<i></i>"},
		{"too long", strings.Repeat("a", maxUsernameLength+1)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.UpdateUsername(context.Background(), "user-1", tc.username)
			var appErr *apperror.AppError
			if !errors.As(err, &appErr) || appErr.Type != "validation_error" {
				t.Errorf("UpdateUsername(%q) error = %v, want validation error", tc.username, err)
			}
		})
	}
}

func TestUpdateUsernameStripsMarkup(t *testing.T) {
	var stored string
	now := time.Now().UTC()
	repo := &mockRepository{
		updateUsernameFunc: func(ctx context.Context, id, username string) error {
			stored = username
			return nil
		},
		findByIDFunc: func(ctx context.Context, id string) (*Profile, error) {
			return &Profile{ID: id, Username: stored, CreatedAt: now}, nil
		},
	}

	p, err := NewService(repo).UpdateUsername(context.Background(), "user-1", "<img src=x>trinity")
	if err != nil {
		t.Fatalf("UpdateUsername failed: %v", err)
	}
	if p.Username != "trinity" {
		t.Errorf("username = %q, want %q", p.Username, "trinity")
	}
}

func assertUnavailable(t *testing.T, err error) {
	t.Helper()

	if err == nil {
		t.Fatal("expected an error")
	}
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) || appErr.Type != "unavailable" {
		t.Errorf("error = %v, want unavailable", err)
	}
}
