package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/TheRockzi/hackacademy/internal/apperror"
)

// mysqlDuplicateEntry is the MariaDB error number for unique-key violations.
const mysqlDuplicateEntry = 1062

// credentialRepository is the MariaDB implementation of CredentialRepository.
type credentialRepository struct {
	db *sql.DB
}

// NewCredentialRepository creates a MariaDB-backed credential repository.
func NewCredentialRepository(db *sql.DB) CredentialRepository {
	return &credentialRepository{db: db}
}

func (r *credentialRepository) Create(ctx context.Context, cred *Credential) error {
	query := `
		INSERT INTO credentials (id, email, password_hash, created_at)
		VALUES (?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query, cred.ID, cred.Email, cred.PasswordHash, cred.CreatedAt)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry {
			return apperror.NewConflict("an account with this email already exists")
		}
		return apperror.NewInternal(fmt.Errorf("inserting credential: %w", err))
	}

	return nil
}

func (r *credentialRepository) FindByID(ctx context.Context, id string) (*Credential, error) {
	query := `
		SELECT id, email, password_hash, created_at
		FROM credentials
		WHERE id = ?`

	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *credentialRepository) FindByEmail(ctx context.Context, email string) (*Credential, error) {
	query := `
		SELECT id, email, password_hash, created_at
		FROM credentials
		WHERE email = ?`

	return r.scanOne(r.db.QueryRowContext(ctx, query, email))
}

func (r *credentialRepository) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	query := `
		UPDATE credentials
		SET password_hash = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, passwordHash, userID)
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("updating password: %w", err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("checking update result: %w", err))
	}
	if rows == 0 {
		return apperror.NewNotFound("user not found")
	}

	return nil
}

func (r *credentialRepository) scanOne(row *sql.Row) (*Credential, error) {
	var cred Credential
	err := row.Scan(&cred.ID, &cred.Email, &cred.PasswordHash, &cred.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, apperror.NewNotFound("user not found")
	}
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("scanning credential: %w", err))
	}
	return &cred, nil
}
