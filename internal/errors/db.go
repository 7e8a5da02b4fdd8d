package errors

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// reKeyField extracts the key list from "Key (field)=(value) already exists.".
// Expression keys such as "lower(username)" keep their inner parentheses.
var reKeyField = regexp.MustCompile(`Key \((.+?)\)=\(`)

// reKeyExpr unwraps a single-column expression key: "lower(username)" → "username".
var reKeyExpr = regexp.MustCompile(`^\w+\((\w+)\)$`)

// MapDBError maps database errors to AppError instances:
//   - sql.ErrNoRows / pgx.ErrNoRows → NotFound
//   - unique violations → Conflict
//   - check and NOT NULL violations → Validation
//   - connection failures → Unavailable
//   - context deadline / cancellation → Timeout / Canceled
//
// Unrecognised errors are returned unchanged.
func MapDBError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &AppError{Code: ErrCodeTimeout, Message: "database call timed out", Cause: err}
	case errors.Is(err, context.Canceled):
		return &AppError{Code: ErrCodeCanceled, Message: "database call canceled", Cause: err}
	case errors.Is(err, sql.ErrNoRows), errors.Is(err, pgx.ErrNoRows):
		return &AppError{Code: ErrCodeNotFound, Message: "row not found", Cause: err}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return mapPgError(pgErr)
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return &AppError{Code: ErrCodeUnavailable, Message: "database unavailable", Cause: err}
	}

	return err
}

func mapPgError(pgErr *pgconn.PgError) error {
	table := describeTable(pgErr.TableName)
	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		return &AppError{
			Code:    ErrCodeConflict,
			Message: table + " already exists",
			Field:   conflictField(pgErr),
			Cause:   pgErr,
		}
	case pgerrcode.CheckViolation, pgerrcode.NotNullViolation:
		return &AppError{
			Code:    ErrCodeValidation,
			Message: "invalid " + table + " value",
			Field:   pgErr.ColumnName,
			Cause:   pgErr,
		}
	case pgerrcode.UndefinedTable, pgerrcode.UndefinedFunction:
		return &AppError{
			Code:    ErrCodeInternal,
			Message: "database schema is missing objects; run migrations",
			Cause:   pgErr,
		}
	}
	if pgerrcode.IsConnectionException(pgErr.Code) || pgErr.Code == pgerrcode.AdminShutdown ||
		pgErr.Code == pgerrcode.CannotConnectNow {
		return &AppError{Code: ErrCodeUnavailable, Message: "database unavailable", Cause: pgErr}
	}
	return &AppError{Code: ErrCodeInternal, Message: "database error", Cause: pgErr}
}

// conflictField prefers ColumnName, then the Detail key list, then the
// constraint name ("admin_users_username_key" → "username").
func conflictField(pgErr *pgconn.PgError) string {
	if pgErr.ColumnName != "" {
		return pgErr.ColumnName
	}
	if m := reKeyField.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
		key := strings.ReplaceAll(m[1], " ", "")
		if e := reKeyExpr.FindStringSubmatch(key); len(e) == 2 {
			return e[1]
		}
		return key
	}
	name := pgErr.ConstraintName
	if table := pgErr.TableName; table != "" {
		name = strings.TrimPrefix(name, table+"_")
	}
	for _, suffix := range []string{"_key", "_unique", "_idx"} {
		if trimmed, ok := strings.CutSuffix(name, suffix); ok && trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func describeTable(table string) string {
	switch strings.ToLower(strings.TrimSpace(table)) {
	case "admin_users":
		return "admin credential"
	case "user_roles":
		return "role grant"
	case "auth_users":
		return "identity"
	case "":
		return "record"
	default:
		return strings.ReplaceAll(table, "_", " ")
	}
}
