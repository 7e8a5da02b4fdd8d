package data

import (
	"context"
	"database/sql"
	"fmt"

	domainauth "github.com/hasifahmed52-lang/mecha-29-hub/internal/domain/auth"
	apperrors "github.com/hasifahmed52-lang/mecha-29-hub/internal/errors"
	"github.com/hasifahmed52-lang/mecha-29-hub/internal/ports"
)

var _ ports.RoleStore = (*RoleGrantRepo)(nil)

// RoleGrantRepo is the Postgres-backed role store over user_roles.
type RoleGrantRepo struct {
	DB *sql.DB
}

// NewRoleGrantRepo creates a new RoleGrantRepo.
func NewRoleGrantRepo(db *sql.DB) *RoleGrantRepo {
	return &RoleGrantRepo{DB: db}
}

// HasRole calls the has_role SQL function so direct and RPC callers share one definition.
func (r *RoleGrantRepo) HasRole(ctx context.Context, userID string, role domainauth.Role) (bool, error) {
	var ok bool
	if err := r.DB.QueryRowContext(ctx, `SELECT has_role($1, $2)`, userID, string(role)).Scan(&ok); err != nil {
		return false, fmt.Errorf("has_role: %w", apperrors.MapDBError(err))
	}
	return ok, nil
}

// AssignRole inserts the grant; an existing grant is left untouched.
func (r *RoleGrantRepo) AssignRole(ctx context.Context, userID, username string, role domainauth.Role) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO user_roles (user_id, role, username)
		VALUES ($1, $2, NULLIF($3, ''))
		ON CONFLICT (user_id, role) DO NOTHING`,
		userID, string(role), username)
	if err != nil {
		return fmt.Errorf("assign role: %w", apperrors.MapDBError(err))
	}
	return nil
}

// Revoke deletes the grant if present.
func (r *RoleGrantRepo) Revoke(ctx context.Context, userID string, role domainauth.Role) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM user_roles WHERE user_id = $1 AND role = $2`, userID, string(role))
	if err != nil {
		return fmt.Errorf("revoke role: %w", apperrors.MapDBError(err))
	}
	return nil
}
