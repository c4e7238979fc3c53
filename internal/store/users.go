package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

const userColumns = `id, name, email, password_hash, email_verified, created_at, updated_at`

func scanUser(row rowScanner) (User, error) {
	var (
		user      User
		verified  dbBool
		createdAt dbTime
		updatedAt dbTime
	)
	if err := row.Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &verified, &createdAt, &updatedAt); err != nil {
		return User{}, err
	}
	user.EmailVerified = bool(verified)
	user.CreatedAt = createdAt.Time()
	user.UpdatedAt = updatedAt.Time()
	return user, nil
}

// CreateUser returns ErrEmailTaken when the email is already registered.
func (s *SQLStore) CreateUser(ctx context.Context, user User) error {
	if _, err := s.GetUserByEmail(ctx, user.Email); err == nil {
		return ErrEmailTaken
	} else if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	now := user.CreatedAt
	if now.IsZero() {
		now = time.Now()
	}
	_, err := s.exec(ctx, `
		INSERT INTO users (id, name, email, password_hash, email_verified, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, user.ID, user.Name, strings.ToLower(user.Email), user.PasswordHash, user.EmailVerified,
		s.dialect.timeArg(now), s.dialect.timeArg(now))
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err is a unique constraint failure from
// either driver. It covers sign-ups that race past the email lookup.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

func (s *SQLStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	user, err := scanUser(s.queryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE email = ?
	`, strings.ToLower(strings.TrimSpace(email))))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, err
		}
		return User{}, fmt.Errorf("lookup user by email: %w", err)
	}
	return user, nil
}

func (s *SQLStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	user, err := scanUser(s.queryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = ?
	`, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, err
		}
		return User{}, fmt.Errorf("lookup user: %w", err)
	}
	return user, nil
}
