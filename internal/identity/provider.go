package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/TheRockzi/hackacademy/internal/apperror"
)

// sessionKeyPrefix is the Redis key prefix for session data.
const sessionKeyPrefix = "session:"

// eventChannelPrefix is the Redis pub/sub channel prefix for per-token
// session-change events.
const eventChannelPrefix = "session:events:"

// provider implements Provider with MariaDB credentials, Redis sessions,
// and Redis pub/sub session-change delivery.
type provider struct {
	creds      CredentialRepository
	redis      *redis.Client
	sessionTTL time.Duration
}

// NewProvider creates the concrete identity provider.
func NewProvider(creds CredentialRepository, rdb *redis.Client, sessionTTL time.Duration) Provider {
	return &provider{
		creds:      creds,
		redis:      rdb,
		sessionTTL: sessionTTL,
	}
}

// GetSession resolves a bearer token to its identity. A missing or expired
// session is not an error: it returns (nil, nil) so callers can distinguish
// "anonymous" from "provider unreachable".
func (p *provider) GetSession(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, nil
	}

	data, err := p.redis.Get(ctx, sessionKeyPrefix+token).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("reading session from Redis: %w", err))
	}

	var id Identity
	if err := json.Unmarshal(data, &id); err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("unmarshaling session: %w", err))
	}

	return &id, nil
}

// SignInWithPassword verifies credentials and establishes a new session.
func (p *provider) SignInWithPassword(ctx context.Context, email, password string) (*Identity, string, error) {
	cred, err := p.creds.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		// Don't reveal whether the email exists -- use a generic message.
		return nil, "", apperror.NewUnauthorized("invalid email or password")
	}

	if !verifyPassword(password, cred.PasswordHash) {
		return nil, "", apperror.NewUnauthorized("invalid email or password")
	}

	id := &Identity{ID: cred.ID, Email: cred.Email}

	token, err := p.createSession(ctx, id)
	if err != nil {
		return nil, "", apperror.NewInternal(fmt.Errorf("creating session: %w", err))
	}

	p.publish(ctx, token, Event{Type: EventSignedIn, Identity: id})

	slog.Info("user signed in", slog.String("user_id", id.ID))

	return id, token, nil
}

// SignUp enrolls a new credential record and signs it in immediately, so
// the caller holds an authenticated session for the fresh identity.
func (p *provider) SignUp(ctx context.Context, email, password string) (*Identity, string, error) {
	cred := &Credential{
		ID:        uuid.NewString(),
		Email:     normalizeEmail(email),
		CreatedAt: time.Now().UTC(),
	}

	hash, err := hashPassword(password)
	if err != nil {
		return nil, "", apperror.NewInternal(fmt.Errorf("hashing password: %w", err))
	}
	cred.PasswordHash = hash

	if err := p.creds.Create(ctx, cred); err != nil {
		return nil, "", err
	}

	id := &Identity{ID: cred.ID, Email: cred.Email}

	token, err := p.createSession(ctx, id)
	if err != nil {
		return nil, "", apperror.NewInternal(fmt.Errorf("creating session: %w", err))
	}

	slog.Info("user registered", slog.String("user_id", id.ID))

	return id, token, nil
}

// SignOut revokes the token's session and notifies subscribers. Revoking an
// already-gone session succeeds (idempotent).
func (p *provider) SignOut(ctx context.Context, token string) error {
	if err := p.redis.Del(ctx, sessionKeyPrefix+token).Err(); err != nil {
		return apperror.NewInternal(fmt.Errorf("deleting session from Redis: %w", err))
	}

	p.publish(ctx, token, Event{Type: EventSignedOut})

	return nil
}

// SessionEvents subscribes to session-change events for the token. Events
// are decoded off the Redis pub/sub channel and forwarded until ctx is done.
func (p *provider) SessionEvents(ctx context.Context, token string) (<-chan Event, error) {
	sub := p.redis.Subscribe(ctx, eventChannelPrefix+token)

	// Force the subscription to be established before returning so no event
	// published after this call is missed.
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, apperror.NewInternal(fmt.Errorf("subscribing to session events: %w", err))
	}

	events := make(chan Event)

	go func() {
		defer close(events)
		defer sub.Close()

		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					slog.Warn("dropping malformed session event",
						slog.String("payload", msg.Payload),
						slog.Any("error", err),
					)
					continue
				}
				select {
				case events <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return events, nil
}

// UpdateCredential replaces a user's password hash. Privileged operation:
// authorization is the caller's responsibility.
func (p *provider) UpdateCredential(ctx context.Context, userID, newPassword string) error {
	hash, err := hashPassword(newPassword)
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("hashing password: %w", err))
	}

	if err := p.creds.UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}

	slog.Info("credential updated", slog.String("user_id", userID))

	return nil
}

// createSession generates a random session token and stores the identity in
// Redis with the configured TTL.
func (p *provider) createSession(ctx context.Context, id *Identity) (string, error) {
	token, err := generateSessionToken()
	if err != nil {
		return "", fmt.Errorf("generating session token: %w", err)
	}

	data, err := json.Marshal(id)
	if err != nil {
		return "", fmt.Errorf("marshaling session: %w", err)
	}

	if err := p.redis.Set(ctx, sessionKeyPrefix+token, data, p.sessionTTL).Err(); err != nil {
		return "", fmt.Errorf("storing session in Redis: %w", err)
	}

	return token, nil
}

// publish sends a session-change event to the token's channel. Delivery is
// best-effort: a publish failure must not fail the operation that caused it.
func (p *provider) publish(ctx context.Context, token string, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := p.redis.Publish(ctx, eventChannelPrefix+token, data).Err(); err != nil {
		slog.Warn("failed to publish session event",
			slog.String("type", string(ev.Type)),
			slog.Any("error", err),
		)
	}
}

// normalizeEmail lowercases and trims an email address for storage and lookup.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
