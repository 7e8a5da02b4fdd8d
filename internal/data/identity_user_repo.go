package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hasifahmed52-lang/mecha-29-hub/internal/data/pgxutil"
	apperrors "github.com/hasifahmed52-lang/mecha-29-hub/internal/errors"
)

// IdentityUser is a principal owned by the local identity provider.
type IdentityUser struct {
	ID           uuid.UUID         `db:"id"`
	Email        string            `db:"email"`
	PasswordHash string            `db:"password_hash"`
	Metadata     map[string]string `db:"metadata"`
	CreatedAt    time.Time         `db:"created_at"`
}

// IdentityUserRepo stores auth_users rows.
type IdentityUserRepo struct {
	DB *sql.DB
}

// NewIdentityUserRepo creates a new IdentityUserRepo.
func NewIdentityUserRepo(db *sql.DB) *IdentityUserRepo {
	return &IdentityUserRepo{DB: db}
}

const identityColumns = `id, email, password_hash, metadata, created_at`

// Create inserts user, assigning an ID when it is zero. Emails are stored lowercased.
// A duplicate email returns ErrIdentityExists.
func (r *IdentityUserRepo) Create(ctx context.Context, user IdentityUser) (*IdentityUser, error) {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.Metadata == nil {
		user.Metadata = map[string]string{}
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))

	var created IdentityUser
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO auth_users (id, email, password_hash, metadata)
			VALUES ($1, $2, $3, $4)
			RETURNING `+identityColumns,
			user.ID, user.Email, user.PasswordHash, user.Metadata)
		if err != nil {
			return err
		}
		created, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[IdentityUser])
		return err
	})
	if err != nil {
		mapped := apperrors.MapDBError(err)
		if apperrors.IsConflict(mapped) {
			return nil, ErrIdentityExists
		}
		return nil, fmt.Errorf("insert identity: %w", mapped)
	}
	return &created, nil
}

// GetByEmail looks up a user by lowercased email.
func (r *IdentityUserRepo) GetByEmail(ctx context.Context, email string) (*IdentityUser, error) {
	return r.getOne(ctx, `SELECT `+identityColumns+` FROM auth_users WHERE email = $1`,
		strings.ToLower(strings.TrimSpace(email)))
}

// GetByID looks up a user by id.
func (r *IdentityUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*IdentityUser, error) {
	return r.getOne(ctx, `SELECT `+identityColumns+` FROM auth_users WHERE id = $1`, id)
}

func (r *IdentityUserRepo) getOne(ctx context.Context, query string, arg any) (*IdentityUser, error) {
	var u IdentityUser
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, arg)
		if err != nil {
			return err
		}
		u, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[IdentityUser])
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrIdentityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select identity: %w", apperrors.MapDBError(err))
	}
	return &u, nil
}

// UpdatePassword replaces the stored hash in a transaction that locks the row.
func (r *IdentityUserRepo) UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error {
	err := pgxutil.WithPgxTx(ctx, r.DB, func(tx pgx.Tx) error {
		var locked uuid.UUID
		if err := tx.QueryRow(ctx, `SELECT id FROM auth_users WHERE id = $1 FOR UPDATE`, id).Scan(&locked); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `UPDATE auth_users SET password_hash = $2 WHERE id = $1`, id, hash)
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrIdentityNotFound
	}
	if err != nil {
		return fmt.Errorf("update identity password: %w", apperrors.MapDBError(err))
	}
	return nil
}
