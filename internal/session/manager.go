// Package session tracks one client's authentication state: the resolved
// identity, its profile, and a loading flag, kept consistent under
// concurrent sign-ins, sign-outs, and remote session events.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/TheRockzi/hackacademy/internal/apperror"
	"github.com/TheRockzi/hackacademy/internal/identity"
	"github.com/TheRockzi/hackacademy/internal/profile"
)

// State is a point-in-time snapshot of a client's session.
type State struct {
	// Identity is the authenticated user, nil when anonymous.
	Identity *identity.Identity `json:"identity"`

	// Profile is the user's platform record. May lag Identity while the
	// profile store is being consulted, and stays nil if it is unreachable.
	Profile *profile.Profile `json:"profile"`

	// Loading is true from manager creation until the first session
	// resolution completes.
	Loading bool `json:"loading"`
}

// Manager owns one client's session state. All mutations funnel through a
// single lock, and every mutation bumps a generation counter so that slow
// asynchronous work (a profile fetch that outlives a sign-out) can detect
// it went stale and discard its result instead of resurrecting old state.
type Manager struct {
	provider          identity.Provider
	profiles          profile.Service
	minPasswordLength int

	mu     sync.Mutex
	state  State
	gen    uint64
	token  string
	subs   map[chan State]struct{}
	closed bool
}

// NewManager creates a manager in the loading state. Call Activate to
// resolve an existing token, or SignIn/SignUp to establish a session.
func NewManager(provider identity.Provider, profiles profile.Service, minPasswordLength int) *Manager {
	return &Manager{
		provider:          provider,
		profiles:          profiles,
		minPasswordLength: minPasswordLength,
		state:             State{Loading: true},
		subs:              make(map[chan State]struct{}),
	}
}

// Snapshot returns the current state.
func (m *Manager) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Token returns the session token backing the current state, or "".
func (m *Manager) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

// Updates subscribes to state changes. Each change is delivered as a full
// snapshot; slow consumers see the latest state, intermediate ones may be
// coalesced away. The returned cancel func releases the subscription.
func (m *Manager) Updates() (<-chan State, func()) {
	ch := make(chan State, 1)

	m.mu.Lock()
	m.subs[ch] = struct{}{}
	m.mu.Unlock()

	cancel := func() {
		m.mu.Lock()
		if _, ok := m.subs[ch]; ok {
			delete(m.subs, ch)
			close(ch)
		}
		m.mu.Unlock()
	}

	return ch, cancel
}

// Resolve maps token to its identity and loads the profile. An empty or
// expired token settles into the anonymous state. One-shot: remote session
// events are not watched; use Activate for that.
func (m *Manager) Resolve(ctx context.Context, token string) (State, error) {
	id, err := m.provider.GetSession(ctx, token)
	if err != nil {
		m.apply(func(s *State) { s.Loading = false })
		return m.Snapshot(), err
	}

	if id == nil {
		m.apply(func(s *State) {
			s.Identity = nil
			s.Profile = nil
			s.Loading = false
		})
		return m.Snapshot(), nil
	}

	gen := m.apply(func(s *State) {
		s.Identity = id
	})
	m.mu.Lock()
	m.token = token
	m.mu.Unlock()

	m.loadProfile(ctx, id.ID, gen)

	return m.Snapshot(), nil
}

// Activate resolves token like Resolve, then keeps the state in sync with
// remote session events until ctx is done: a sign-out elsewhere clears this
// client too.
func (m *Manager) Activate(ctx context.Context, token string) error {
	if _, err := m.Resolve(ctx, token); err != nil {
		return err
	}

	if m.Token() == "" {
		// Anonymous sessions have no event stream to watch.
		return nil
	}

	events, err := m.provider.SessionEvents(ctx, token)
	if err != nil {
		return err
	}

	go m.watch(ctx, events)

	return nil
}

// SignIn authenticates with email and password and loads the profile.
func (m *Manager) SignIn(ctx context.Context, email, password string) (State, error) {
	if email == "" || password == "" {
		return m.Snapshot(), apperror.NewValidation("email and password are required")
	}

	id, token, err := m.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		return m.Snapshot(), err
	}

	gen := m.apply(func(s *State) {
		s.Identity = id
		s.Profile = nil
		s.Loading = false
	})
	m.mu.Lock()
	m.token = token
	m.mu.Unlock()

	m.loadProfile(ctx, id.ID, gen)

	return m.Snapshot(), nil
}

// SignUp validates locally, registers the credential, records the chosen
// username, and leaves the client signed in. Username persistence is
// best-effort: the fallback profile is created on first session resolution
// if it fails here.
func (m *Manager) SignUp(ctx context.Context, email, password, username string) (State, error) {
	if email == "" {
		return m.Snapshot(), apperror.NewValidation("email is required")
	}
	if len(password) < m.minPasswordLength {
		return m.Snapshot(), apperror.NewValidation(
			fmt.Sprintf("password must be at least %d characters", m.minPasswordLength))
	}

	id, token, err := m.provider.SignUp(ctx, email, password)
	if err != nil {
		return m.Snapshot(), err
	}

	if err := m.profiles.Create(ctx, id.ID, username); err != nil {
		slog.Warn("could not create profile at registration, deferring to first session",
			slog.String("user_id", id.ID),
			slog.Any("error", err),
		)
	}

	gen := m.apply(func(s *State) {
		s.Identity = id
		s.Profile = nil
		s.Loading = false
	})
	m.mu.Lock()
	m.token = token
	m.mu.Unlock()

	m.loadProfile(ctx, id.ID, gen)

	return m.Snapshot(), nil
}

// SignOut revokes the session with the provider and only then clears local
// state: if revocation fails the client keeps its state and sees the error,
// rather than looking signed out while the token is still live.
func (m *Manager) SignOut(ctx context.Context) error {
	token := m.Token()
	if token == "" {
		return nil
	}

	if err := m.provider.SignOut(ctx, token); err != nil {
		return err
	}

	m.clear()

	return nil
}

// Close drops all subscribers. The manager stays readable but stops
// delivering updates.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.closed = true
	for ch := range m.subs {
		delete(m.subs, ch)
		close(ch)
	}
}

// apply is the single mutation entry point: it bumps the generation, runs
// the mutation under the lock, and broadcasts the new snapshot. It returns
// the generation of the resulting state for staleness checks.
func (m *Manager) apply(mutate func(*State)) uint64 {
	m.mu.Lock()
	m.gen++
	gen := m.gen
	mutate(&m.state)
	st := m.state
	m.mu.Unlock()

	m.broadcast(st)

	return gen
}

// loadProfile fetches or creates the profile for the identity established at
// generation gen. If the state has moved on by the time the store answers
// (sign-out, different sign-in), the result is discarded.
func (m *Manager) loadProfile(ctx context.Context, userID string, gen uint64) {
	p, err := m.profiles.Ensure(ctx, userID)

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		slog.Debug("discarding stale profile load", slog.String("user_id", userID))
		return
	}
	if err != nil {
		m.state.Loading = false
		st := m.state
		m.mu.Unlock()
		m.broadcast(st)
		slog.Warn("profile unavailable for active session",
			slog.String("user_id", userID),
			slog.Any("error", err),
		)
		return
	}
	m.gen++
	m.state.Profile = p
	m.state.Loading = false
	st := m.state
	m.mu.Unlock()

	m.broadcast(st)
}

// watch applies remote session events until ctx is done or the provider
// closes the stream.
func (m *Manager) watch(ctx context.Context, events <-chan identity.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.Type {
			case identity.EventSignedOut:
				m.clear()
			case identity.EventSignedIn, identity.EventTokenRefreshed:
				// Replace the identity and re-resolve dependent state.
				if ev.Identity != nil {
					gen := m.apply(func(s *State) {
						s.Identity = ev.Identity
						s.Loading = true
					})
					m.loadProfile(ctx, ev.Identity.ID, gen)
				}
			}
		}
	}
}

// clear resets to the anonymous state.
func (m *Manager) clear() {
	m.mu.Lock()
	m.gen++
	m.token = ""
	m.state = State{}
	st := m.state
	m.mu.Unlock()

	m.broadcast(st)
}

// broadcast pushes a snapshot to every subscriber, replacing an undelivered
// older snapshot rather than blocking.
func (m *Manager) broadcast(st State) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for ch := range m.subs {
		select {
		case ch <- st:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- st
		}
	}
}
