package session

import (
	"context"
	"sync"
	"testing"

	"github.com/TheRockzi/hackacademy/internal/apperror"
	"github.com/TheRockzi/hackacademy/internal/profile"
	"github.com/TheRockzi/hackacademy/internal/rank"
)

// memoryProfileRepo is an in-memory profile.Repository, used to exercise
// the manager against the real profile service instead of a service double.
type memoryProfileRepo struct {
	mu       sync.Mutex
	profiles map[string]*profile.Profile
}

func newMemoryProfileRepo() *memoryProfileRepo {
	return &memoryProfileRepo{profiles: make(map[string]*profile.Profile)}
}

func (r *memoryProfileRepo) Insert(ctx context.Context, p *profile.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.profiles[p.ID]; ok {
		return profile.ErrDuplicate
	}
	cp := *p
	r.profiles[p.ID] = &cp
	return nil
}

func (r *memoryProfileRepo) FindByID(ctx context.Context, id string) (*profile.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[id]
	if !ok {
		return nil, apperror.NewNotFound("profile not found")
	}
	cp := *p
	return &cp, nil
}

func (r *memoryProfileRepo) ListAll(ctx context.Context) ([]profile.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]profile.Profile, 0, len(r.profiles))
	for _, p := range r.profiles {
		out = append(out, *p)
	}
	return out, nil
}

func (r *memoryProfileRepo) UpdateUsername(ctx context.Context, id, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[id]
	if !ok {
		return apperror.NewNotFound("profile not found")
	}
	p.Username = username
	return nil
}

func (r *memoryProfileRepo) IncrementSolved(ctx context.Context, id, category string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[id]
	if !ok {
		return apperror.NewNotFound("profile not found")
	}
	switch category {
	case "web":
		p.WebSolved++
	case "programming":
		p.ProgrammingSolved++
	case "crypto":
		p.CryptoSolved++
	default:
		return apperror.NewBadRequest("unknown challenge category")
	}
	return nil
}

func (r *memoryProfileRepo) ToggleBan(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[id]
	if !ok {
		return false, apperror.NewNotFound("profile not found")
	}
	p.IsBanned = !p.IsBanned
	return p.IsBanned, nil
}

func (r *memoryProfileRepo) UpdateRole(ctx context.Context, actorID, targetID, role string, allowSameRank bool) (bool, error) {
	return false, nil
}

func (r *memoryProfileRepo) Subscribe(ctx context.Context) (<-chan profile.Notification, error) {
	ch := make(chan profile.Notification)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

func TestSignUpProducesUnrankedProfile(t *testing.T) {
	repo := newMemoryProfileRepo()
	m := NewManager(happyProvider(), profile.NewService(repo), 6)

	state, err := m.SignUp(context.Background(), "alice@example.com", "correct-horse", "alice")
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}

	p := state.Profile
	if p == nil {
		t.Fatal("profile not loaded after sign-up")
	}
	if p.Username != "alice" {
		t.Errorf("username = %q, want %q", p.Username, "alice")
	}
	if p.WebSolved != 0 || p.ProgrammingSolved != 0 || p.CryptoSolved != 0 {
		t.Errorf("fresh profile has non-zero counters: %+v", p)
	}
	if p.IsStaff || p.StaffRole != "" {
		t.Errorf("fresh profile carries staff standing: %+v", p)
	}

	ranks := p.Ranks()
	if ranks.Web != rank.Unranked || ranks.Programming != rank.Unranked || ranks.Crypto != rank.Unranked {
		t.Errorf("fresh profile ranks = %+v, want all %q", ranks, rank.Unranked)
	}

	// The row is durable, not just session state: a later resolution for
	// the same user gets the same profile back.
	again, err := profile.NewService(repo).Ensure(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("Ensure after sign-up failed: %v", err)
	}
	if again.Username != "alice" {
		t.Errorf("re-ensured username = %q, want %q", again.Username, "alice")
	}
}
