package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

func (s *SQLStore) SaveSession(ctx context.Context, session Session) error {
	createdAt := session.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.exec(ctx, `
		INSERT INTO sessions (id, token_hash, user_id, expires_at, ip_address, user_agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, session.ID, session.TokenHash, session.UserID, s.dialect.timeArg(session.ExpiresAt),
		session.IPAddress, session.UserAgent, s.dialect.timeArg(createdAt))
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// LookupSession returns sql.ErrNoRows for unknown or expired sessions.
func (s *SQLStore) LookupSession(ctx context.Context, tokenHash string) (Session, error) {
	var (
		session   Session
		expiresAt dbTime
		createdAt dbTime
	)
	err := s.queryRow(ctx, `
		SELECT id, token_hash, user_id, expires_at, ip_address, user_agent, created_at
		FROM sessions
		WHERE token_hash = ?
	`, tokenHash).Scan(&session.ID, &session.TokenHash, &session.UserID, &expiresAt,
		&session.IPAddress, &session.UserAgent, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, err
		}
		return Session{}, fmt.Errorf("lookup session: %w", err)
	}
	session.ExpiresAt = expiresAt.Time()
	session.CreatedAt = createdAt.Time()
	if session.Expired(time.Now()) {
		return Session{}, sql.ErrNoRows
	}
	return session, nil
}

func (s *SQLStore) RevokeSession(ctx context.Context, tokenHash string) error {
	if _, err := s.exec(ctx, `DELETE FROM sessions WHERE token_hash = ?`, tokenHash); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes sessions that expired before now.
func (s *SQLStore) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.exec(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, s.dialect.timeArg(now))
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return result.RowsAffected()
}
