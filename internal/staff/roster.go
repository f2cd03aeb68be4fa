package staff

import (
	"context"
	"log/slog"

	"github.com/TheRockzi/hackacademy/internal/profile"
)

// Roster delivers live snapshots of the full user list to staff panel
// clients. Change notifications are treated purely as invalidation: every
// one triggers a refetch from storage, so the stream can never drift from
// the database.
type Roster struct {
	profiles profile.Repository
}

// NewRoster creates a roster backed by the profile store and its change feed.
func NewRoster(profiles profile.Repository) *Roster {
	return &Roster{profiles: profiles}
}

// Watch streams user-list snapshots until ctx is done. The first snapshot
// is sent immediately; bursts of change notifications are coalesced into a
// single refetch. The channel closes when ctx is cancelled or the change
// feed drops.
func (r *Roster) Watch(ctx context.Context) (<-chan []profile.Profile, error) {
	// Subscribe before the initial fetch so a change landing between the
	// two is never lost, only refetched redundantly.
	changes, err := r.profiles.Subscribe(ctx)
	if err != nil {
		return nil, err
	}

	initial, err := r.profiles.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan []profile.Profile, 1)
	out <- initial

	go func() {
		defer close(out)

		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-changes:
				if !ok {
					return
				}

				// Coalesce a burst into one refetch.
				drained := false
				for !drained {
					select {
					case _, ok := <-changes:
						if !ok {
							drained = true
						}
					default:
						drained = true
					}
				}

				users, err := r.profiles.ListAll(ctx)
				if err != nil {
					slog.Warn("roster refetch failed, keeping last snapshot", slog.Any("error", err))
					continue
				}

				select {
				case out <- users:
				case <-ctx.Done():
					return
				default:
					// Replace an undelivered older snapshot.
					select {
					case <-out:
					default:
					}
					out <- users
				}
			}
		}
	}()

	return out, nil
}
