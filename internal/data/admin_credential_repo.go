package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	domainauth "github.com/hasifahmed52-lang/mecha-29-hub/internal/domain/auth"
	apperrors "github.com/hasifahmed52-lang/mecha-29-hub/internal/errors"
	"github.com/hasifahmed52-lang/mecha-29-hub/internal/ports"
)

var _ ports.CredentialStore = (*AdminCredentialRepo)(nil)

// AdminCredentialRepo reads and provisions rows in admin_users.
type AdminCredentialRepo struct {
	DB *sql.DB
}

// NewAdminCredentialRepo creates a new AdminCredentialRepo.
func NewAdminCredentialRepo(db *sql.DB) *AdminCredentialRepo {
	return &AdminCredentialRepo{DB: db}
}

// PasswordHash returns the stored hash for username, matched exactly.
func (r *AdminCredentialRepo) PasswordHash(ctx context.Context, username string) (string, error) {
	var hash string
	err := r.DB.QueryRowContext(ctx,
		`SELECT password_hash FROM admin_users WHERE username = $1`, username).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ports.ErrCredentialNotFound
	}
	if err != nil {
		return "", fmt.Errorf("select admin credential: %w", apperrors.MapDBError(err))
	}
	return hash, nil
}

// Upsert creates the credential or replaces its hash. Re-provisioning the
// exact username updates it; a case variant of an existing username fails
// with ErrUsernameTaken.
func (r *AdminCredentialRepo) Upsert(ctx context.Context, cred domainauth.AdminCredential) error {
	username := strings.TrimSpace(cred.Username)
	if username == "" {
		return ErrUsernameRequired
	}
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO admin_users (username, password_hash)
		VALUES ($1, $2)
		ON CONFLICT (username)
		DO UPDATE SET password_hash = EXCLUDED.password_hash, updated_at = now()`,
		username, cred.PasswordHash)
	if err != nil {
		mapped := apperrors.MapDBError(err)
		if apperrors.IsConflict(mapped) {
			return fmt.Errorf("upsert admin credential %q: %w: %w", username, ErrUsernameTaken, mapped)
		}
		return fmt.Errorf("upsert admin credential: %w", mapped)
	}
	return nil
}

// Delete removes the credential. Deleting an unknown username is not an error.
func (r *AdminCredentialRepo) Delete(ctx context.Context, username string) error {
	if _, err := r.DB.ExecContext(ctx, `DELETE FROM admin_users WHERE username = $1`, username); err != nil {
		return fmt.Errorf("delete admin credential: %w", apperrors.MapDBError(err))
	}
	return nil
}

// Usernames lists provisioned usernames in order.
func (r *AdminCredentialRepo) Usernames(ctx context.Context) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT username FROM admin_users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("list admin credentials: %w", apperrors.MapDBError(err))
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan admin credential: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
