package profile

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"

	"github.com/TheRockzi/hackacademy/internal/apperror"
)

// changeChannel is the Redis pub/sub channel carrying profile-change
// notifications for roster and session subscribers.
const changeChannel = "profiles:changes"

// mysqlDuplicateEntry is the MariaDB error number for unique-key violations.
const mysqlDuplicateEntry = 1062

// ErrDuplicate is returned by Insert when a profile row already exists for
// the ID. The ensure flow treats it as "someone else won the race" and
// retries the lookup instead of failing.
var ErrDuplicate = apperror.NewConflict("profile already exists")

// staffRoles is the staff hierarchy from most to least privileged. The
// guarded role update encodes the same ordering in SQL via FIELD().
var staffRoles = []string{"CEO", "Manager", "Administrator"}

// ValidStaffRole reports whether role names a tier of the staff hierarchy.
func ValidStaffRole(role string) bool {
	for _, r := range staffRoles {
		if r == role {
			return true
		}
	}
	return false
}

// Repository is the profile storage and change-feed interface.
type Repository interface {
	// Insert creates a profile row. Returns ErrDuplicate when a row with
	// the same ID already exists.
	Insert(ctx context.Context, p *Profile) error

	// FindByID fetches a single profile. Missing rows are a not-found error.
	FindByID(ctx context.Context, id string) (*Profile, error)

	// ListAll returns every profile ordered by creation time, newest first.
	ListAll(ctx context.Context) ([]Profile, error)

	// UpdateUsername replaces a profile's username.
	UpdateUsername(ctx context.Context, id, username string) error

	// IncrementSolved bumps one of the per-category solve counters.
	// Category must be "web", "programming", or "crypto".
	IncrementSolved(ctx context.Context, id, category string) error

	// ToggleBan flips the ban flag and returns the new state.
	ToggleBan(ctx context.Context, id string) (bool, error)

	// UpdateRole assigns targetID the given staff role, but only if the
	// database still agrees that actorID outranks the target at the moment
	// the statement runs. An empty role removes staff status. Returns true
	// when the hierarchy check passed and the row was written.
	UpdateRole(ctx context.Context, actorID, targetID, role string, allowSameRank bool) (bool, error)

	// Subscribe delivers profile-change notifications until ctx is done.
	Subscribe(ctx context.Context) (<-chan Notification, error)
}

type repository struct {
	db    *sql.DB
	redis *redis.Client
}

// NewRepository creates the MariaDB+Redis profile repository.
func NewRepository(db *sql.DB, rdb *redis.Client) Repository {
	return &repository{db: db, redis: rdb}
}

const profileColumns = `
	id, username, created_at,
	web_challenges_completed, programming_challenges_completed, crypto_challenges_completed,
	is_staff, staff_role, is_banned`

func (r *repository) Insert(ctx context.Context, p *Profile) error {
	query := `
		INSERT INTO profiles (id, username, created_at,
			web_challenges_completed, programming_challenges_completed, crypto_challenges_completed,
			is_staff, staff_role, is_banned)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.Username, p.CreatedAt,
		p.WebSolved, p.ProgrammingSolved, p.CryptoSolved,
		p.IsStaff, nullableRole(p.StaffRole), p.IsBanned,
	)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry {
			return ErrDuplicate
		}
		return apperror.NewInternal(fmt.Errorf("inserting profile: %w", err))
	}

	r.publish(ctx, Notification{Type: ChangeCreated, ProfileID: p.ID})

	return nil
}

func (r *repository) FindByID(ctx context.Context, id string) (*Profile, error) {
	query := `SELECT` + profileColumns + ` FROM profiles WHERE id = ?`

	p, err := scanProfile(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, apperror.NewNotFound("profile not found")
	}
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("fetching profile: %w", err))
	}
	return p, nil
}

func (r *repository) ListAll(ctx context.Context) ([]Profile, error) {
	query := `SELECT` + profileColumns + ` FROM profiles ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("listing profiles: %w", err))
	}
	defer rows.Close()

	var profiles []Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, apperror.NewInternal(fmt.Errorf("scanning profile: %w", err))
		}
		profiles = append(profiles, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("iterating profiles: %w", err))
	}

	return profiles, nil
}

func (r *repository) UpdateUsername(ctx context.Context, id, username string) error {
	query := `UPDATE profiles SET username = ? WHERE id = ?`

	if err := r.execOnProfile(ctx, query, username, id); err != nil {
		return err
	}

	r.publish(ctx, Notification{Type: ChangeUpdated, ProfileID: id})

	return nil
}

func (r *repository) IncrementSolved(ctx context.Context, id, category string) error {
	// Column names cannot be bound as parameters, so the category is mapped
	// through a fixed table rather than interpolated.
	columns := map[string]string{
		"web":         "web_challenges_completed",
		"programming": "programming_challenges_completed",
		"crypto":      "crypto_challenges_completed",
	}
	column, ok := columns[category]
	if !ok {
		return apperror.NewBadRequest("unknown challenge category")
	}

	query := fmt.Sprintf(`UPDATE profiles SET %s = %s + 1 WHERE id = ?`, column, column)

	if err := r.execOnProfile(ctx, query, id); err != nil {
		return err
	}

	r.publish(ctx, Notification{Type: ChangeUpdated, ProfileID: id})

	return nil
}

func (r *repository) ToggleBan(ctx context.Context, id string) (bool, error) {
	query := `UPDATE profiles SET is_banned = NOT is_banned WHERE id = ?`

	if err := r.execOnProfile(ctx, query, id); err != nil {
		return false, err
	}

	var banned bool
	err := r.db.QueryRowContext(ctx, `SELECT is_banned FROM profiles WHERE id = ?`, id).Scan(&banned)
	if err != nil {
		return false, apperror.NewInternal(fmt.Errorf("reading ban state: %w", err))
	}

	r.publish(ctx, Notification{Type: ChangeUpdated, ProfileID: id})

	return banned, nil
}

// roleRankExpr maps a profiles row to its hierarchy position: 1 for CEO,
// 2 for Manager, 3 for Administrator, 4 for everyone else. FIELD() returns
// 0 for NULL or unknown values, which NULLIF+COALESCE folds into 4.
const roleRankExpr = `
	COALESCE(NULLIF(
		CASE WHEN %s.is_staff THEN FIELD(%s.staff_role, 'CEO', 'Manager', 'Administrator') ELSE 0 END,
	0), 4)`

func (r *repository) UpdateRole(ctx context.Context, actorID, targetID, role string, allowSameRank bool) (bool, error) {
	// The hierarchy check runs inside the UPDATE itself: the actor's rank is
	// re-read in the same statement, so a concurrent demotion of the actor
	// cannot slip through between an application-side check and the write.
	// RowsAffected counts matched rows (ClientFoundRows), so a no-op write
	// to an already-correct role still reports the check as passed.
	actorRank := fmt.Sprintf(roleRankExpr, "a", "a")
	targetRank := fmt.Sprintf(roleRankExpr, "t", "t")

	query := fmt.Sprintf(`
		UPDATE profiles t
		JOIN profiles a ON a.id = ?
		SET t.is_staff = ?, t.staff_role = ?
		WHERE t.id = ?
		  AND %[1]s < 4
		  AND (%[1]s < %[2]s
		       OR (%[1]s = %[2]s AND (%[1]s < 3 OR ?)))`,
		actorRank, targetRank)

	isStaff := role != ""

	result, err := r.db.ExecContext(ctx, query,
		actorID, isStaff, nullableRole(role), targetID, allowSameRank)
	if err != nil {
		return false, apperror.NewInternal(fmt.Errorf("updating staff role: %w", err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, apperror.NewInternal(fmt.Errorf("checking role update result: %w", err))
	}
	if rows == 0 {
		return false, nil
	}

	r.publish(ctx, Notification{Type: ChangeUpdated, ProfileID: targetID})

	return true, nil
}

func (r *repository) Subscribe(ctx context.Context) (<-chan Notification, error) {
	sub := r.redis.Subscribe(ctx, changeChannel)

	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, apperror.NewInternal(fmt.Errorf("subscribing to profile changes: %w", err))
	}

	notifications := make(chan Notification)

	go func() {
		defer close(notifications)
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
				var n Notification
				if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
					slog.Warn("dropping malformed profile notification",
						slog.String("payload", msg.Payload),
						slog.Any("error", err),
					)
					continue
				}
				select {
				case notifications <- n:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return notifications, nil
}

// execOnProfile runs a single-row update and converts "no row matched" into
// a not-found error.
func (r *repository) execOnProfile(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("updating profile: %w", err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("checking update result: %w", err))
	}
	if rows == 0 {
		return apperror.NewNotFound("profile not found")
	}

	return nil
}

// publish sends a change notification. Best-effort: storage writes must not
// fail because the feed is down.
func (r *repository) publish(ctx context.Context, n Notification) {
	data, err := json.Marshal(n)
	if err != nil {
		return
	}
	if err := r.redis.Publish(ctx, changeChannel, data).Err(); err != nil {
		slog.Warn("failed to publish profile notification",
			slog.String("profile_id", n.ProfileID),
			slog.Any("error", err),
		)
	}
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanProfile(row scanner) (*Profile, error) {
	var p Profile
	var staffRole sql.NullString

	err := row.Scan(
		&p.ID, &p.Username, &p.CreatedAt,
		&p.WebSolved, &p.ProgrammingSolved, &p.CryptoSolved,
		&p.IsStaff, &staffRole, &p.IsBanned,
	)
	if err != nil {
		return nil, err
	}

	p.StaffRole = staffRole.String
	return &p, nil
}

func nullableRole(role string) sql.NullString {
	return sql.NullString{String: role, Valid: role != ""}
}
