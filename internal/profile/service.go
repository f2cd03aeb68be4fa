package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/TheRockzi/hackacademy/internal/apperror"
	"github.com/TheRockzi/hackacademy/internal/sanitize"
)

// maxUsernameLength bounds usernames after sanitization.
const maxUsernameLength = 32

// Service is the profile business-logic interface.
type Service interface {
	// Ensure returns the user's profile, creating a default one if none
	// exists yet. Safe to call concurrently for the same user: exactly one
	// caller wins the insert and every caller gets the same row back.
	Ensure(ctx context.Context, userID string) (*Profile, error)

	// Create inserts a profile with the chosen username at registration
	// time. An already-existing profile is not an error.
	Create(ctx context.Context, userID, username string) error

	// Get fetches a profile without creating one.
	Get(ctx context.Context, userID string) (*Profile, error)

	// UpdateUsername sanitizes, validates, and stores a new username, then
	// returns the updated profile.
	UpdateUsername(ctx context.Context, userID, username string) (*Profile, error)

	// RecordSolve bumps the user's counter for a challenge category.
	RecordSolve(ctx context.Context, userID, category string) (*Profile, error)
}

type service struct {
	repo Repository
}

// NewService creates the profile service.
func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) Ensure(ctx context.Context, userID string) (*Profile, error) {
	p, err := s.repo.FindByID(ctx, userID)
	if err == nil {
		return p, nil
	}
	if !isNotFound(err) {
		return nil, apperror.NewUnavailable("profile store unreachable", err)
	}

	// No row yet: attempt to create the default profile. A concurrent
	// caller may beat us to the insert, which is fine -- their row is ours.
	// Any insert failure gets one more lookup before giving up: a lost race
	// means the row exists, and a write whose response was lost in transit
	// may have landed anyway.
	if insertErr := s.repo.Insert(ctx, defaultProfile(userID)); insertErr != nil {
		if errors.Is(insertErr, ErrDuplicate) {
			slog.Debug("profile insert lost creation race", slog.String("user_id", userID))
		} else {
			slog.Warn("profile insert failed, re-checking for a durable row",
				slog.String("user_id", userID), slog.Any("error", insertErr))
		}
	}

	p, err = s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, apperror.NewUnavailable("could not load profile", err)
	}

	return p, nil
}

func (s *service) Create(ctx context.Context, userID, username string) error {
	p := defaultProfile(userID)
	if clean := sanitize.Username(username); clean != "" {
		p.Username = truncate(clean, maxUsernameLength)
	}

	err := s.repo.Insert(ctx, p)
	if errors.Is(err, ErrDuplicate) {
		return nil
	}
	return err
}

func (s *service) Get(ctx context.Context, userID string) (*Profile, error) {
	return s.repo.FindByID(ctx, userID)
}

func (s *service) UpdateUsername(ctx context.Context, userID, username string) (*Profile, error) {
	clean := sanitize.Username(username)
	if len(clean) < 3 {
		return nil, apperror.NewValidation("username must be at least 3 characters")
	}
	if len(clean) > maxUsernameLength {
		return nil, apperror.NewValidation(
			fmt.Sprintf("username must be at most %d characters", maxUsernameLength))
	}

	if err := s.repo.UpdateUsername(ctx, userID, clean); err != nil {
		return nil, err
	}

	return s.repo.FindByID(ctx, userID)
}

func (s *service) RecordSolve(ctx context.Context, userID, category string) (*Profile, error) {
	if err := s.repo.IncrementSolved(ctx, userID, category); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, userID)
}

// defaultProfile is the row written when a session resolves for a user who
// has no profile yet: a placeholder username derived from the user ID and
// zeroed counters.
func defaultProfile(userID string) *Profile {
	short := userID
	if len(short) > 8 {
		short = short[:8]
	}
	return &Profile{
		ID:        userID,
		Username:  "user_" + short,
		CreatedAt: time.Now().UTC(),
	}
}

func isNotFound(err error) bool {
	var appErr *apperror.AppError
	return errors.As(err, &appErr) && appErr.Type == "not_found"
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
