package errors

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapDBError_NilError(t *testing.T) {
	assert.NoError(t, MapDBError(nil))
}

func TestMapDBError_Sentinels(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode ErrorCode
	}{
		{name: "deadline exceeded", err: context.DeadlineExceeded, wantCode: ErrCodeTimeout},
		{name: "canceled", err: context.Canceled, wantCode: ErrCodeCanceled},
		{name: "sql no rows", err: sql.ErrNoRows, wantCode: ErrCodeNotFound},
		{name: "pgx no rows", err: fmt.Errorf("scan: %w", pgx.ErrNoRows), wantCode: ErrCodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := MapDBError(tt.err)
			assert.Equal(t, tt.wantCode, GetCode(err))
			require.ErrorIs(t, err, tt.err)
		})
	}
}

func TestMapDBError_UniqueViolation(t *testing.T) {
	tests := []struct {
		name      string
		pgErr     *pgconn.PgError
		wantField string
		wantMsg   string
	}{
		{
			name: "column name",
			pgErr: &pgconn.PgError{
				Code: pgerrcode.UniqueViolation, TableName: "admin_users", ColumnName: "username",
			},
			wantField: "username",
			wantMsg:   "admin credential already exists",
		},
		{
			name: "detail key list",
			pgErr: &pgconn.PgError{
				Code:      pgerrcode.UniqueViolation,
				TableName: "user_roles",
				Detail:    "Key (user_id, role)=(u1, admin) already exists.",
			},
			wantField: "user_id,role",
			wantMsg:   "role grant already exists",
		},
		{
			name: "expression index key",
			pgErr: &pgconn.PgError{
				Code:           pgerrcode.UniqueViolation,
				TableName:      "admin_users",
				ConstraintName: "admin_users_username_lower_key",
				Detail:         "Key (lower(username))=(ops) already exists.",
			},
			wantField: "username",
			wantMsg:   "admin credential already exists",
		},
		{
			name: "constraint name",
			pgErr: &pgconn.PgError{
				Code: pgerrcode.UniqueViolation, TableName: "auth_users", ConstraintName: "auth_users_email_key",
			},
			wantField: "email",
			wantMsg:   "identity already exists",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := MapDBError(tt.pgErr)
			require.True(t, IsConflict(err))
			assert.Equal(t, tt.wantField, GetField(err))
			var appErr *AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.wantMsg, appErr.Message)
		})
	}
}

func TestMapDBError_Validation(t *testing.T) {
	for _, code := range []string{pgerrcode.CheckViolation, pgerrcode.NotNullViolation} {
		err := MapDBError(&pgconn.PgError{Code: code, TableName: "admin_users", ColumnName: "username"})
		assert.True(t, IsValidation(err), code)
		assert.Equal(t, "username", GetField(err))
	}
}

func TestMapDBError_Unavailable(t *testing.T) {
	err := MapDBError(&pgconn.PgError{Code: pgerrcode.ConnectionFailure})
	assert.True(t, IsUnavailable(err))

	err = MapDBError(&pgconn.PgError{Code: pgerrcode.AdminShutdown})
	assert.True(t, IsUnavailable(err))
}

func TestMapDBError_MissingSchema(t *testing.T) {
	err := MapDBError(&pgconn.PgError{Code: pgerrcode.UndefinedTable})
	assert.Equal(t, ErrCodeInternal, GetCode(err))
	assert.Contains(t, err.Error(), "run migrations")
}

func TestMapDBError_Passthrough(t *testing.T) {
	orig := errors.New("something else")
	assert.Same(t, orig, MapDBError(orig))
}
