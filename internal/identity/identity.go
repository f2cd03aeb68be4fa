// Package identity implements the identity-provider collaborator: credential
// storage, session issuance, and session-change notifications. Credentials
// live in MariaDB, sessions are opaque bearer tokens stored in Redis, and
// session-change events are delivered over Redis pub/sub.
//
// Everything above this package consumes the Provider interface only; the
// concrete adapter is wired once at startup.
package identity

import (
	"context"
	"time"
)

// Identity is the authenticated principal issued by the provider. Only the
// attributes the platform consumes are carried.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// EventType classifies a session-change event.
type EventType string

const (
	// EventSignedIn fires when a session is established for the token.
	EventSignedIn EventType = "signed_in"

	// EventSignedOut fires when the token's session is revoked, whether by
	// this client or elsewhere (another tab, an administrator).
	EventSignedOut EventType = "signed_out"

	// EventTokenRefreshed fires when the session's lifetime is extended.
	// The identity is unchanged but consumers re-resolve dependent state.
	EventTokenRefreshed EventType = "token_refreshed"
)

// Event is a single session-change notification. Identity is nil for
// EventSignedOut.
type Event struct {
	Type     EventType `json:"type"`
	Identity *Identity `json:"identity,omitempty"`
}

// Provider is the identity-provider contract. Implementations must convert
// infrastructure failures into apperror types at this boundary; callers never
// see raw driver errors.
type Provider interface {
	// GetSession resolves a bearer token to its identity. Returns (nil, nil)
	// when no session exists for the token.
	GetSession(ctx context.Context, token string) (*Identity, error)

	// SignInWithPassword verifies credentials and establishes a session.
	// Rejected credentials surface as an unauthorized apperror, passed
	// through to the caller unmodified.
	SignInWithPassword(ctx context.Context, email, password string) (*Identity, string, error)

	// SignUp enrolls a new credential record and establishes a session for
	// it immediately.
	SignUp(ctx context.Context, email, password string) (*Identity, string, error)

	// SignOut revokes the token's session and notifies subscribers.
	SignOut(ctx context.Context, token string) error

	// SessionEvents subscribes to session-change events for the token. The
	// channel is closed when ctx is cancelled; cancelling the context is how
	// the subscription is released.
	SessionEvents(ctx context.Context, token string) (<-chan Event, error)

	// UpdateCredential replaces a user's password. Privileged: the caller is
	// a staff administrator, not the account owner, so no old-password
	// confirmation happens here.
	UpdateCredential(ctx context.Context, userID, newPassword string) error
}

// Credential is a stored credential record. The password hash never leaves
// this package.
type Credential struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// CredentialRepository defines the data access contract for credential
// records. All SQL lives in the concrete implementation.
type CredentialRepository interface {
	Create(ctx context.Context, cred *Credential) error
	FindByID(ctx context.Context, id string) (*Credential, error)
	FindByEmail(ctx context.Context, email string) (*Credential, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
}
