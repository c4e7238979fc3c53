package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"todoapp/api/internal/auth"
	"todoapp/api/internal/authpw"
	"todoapp/api/internal/session"
	"todoapp/api/internal/store"
	"todoapp/api/internal/util"
)

// AuthResult is returned by sign-up and sign-in. Credential is the value
// clients send back as a bearer token or cookie.
type AuthResult struct {
	Credential string
	User       store.User
	Session    store.Session
}

// ClientInfo is recorded on new sessions.
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

func (s *Service) SignUp(ctx context.Context, req authpw.SignUpRequest, client ClientInfo) (AuthResult, error) {
	user, err := s.auth.SignUp(ctx, req)
	if err != nil {
		var inputErr *authpw.InputError
		switch {
		case errors.As(err, &inputErr):
			return AuthResult{}, invalid(Issue{Code: "invalid_string", Path: []any{inputErr.Field}, Message: inputErr.Message})
		case errors.Is(err, authpw.ErrUserExists):
			return AuthResult{}, domainError(http.StatusUnprocessableEntity, "USER_ALREADY_EXISTS", "User already exists", nil)
		default:
			s.logger.Error("sign up", zap.Error(err))
			return AuthResult{}, errInternal("Failed to create user")
		}
	}
	return s.issueSession(ctx, user, client)
}

func (s *Service) SignIn(ctx context.Context, req authpw.SignInRequest, client ClientInfo) (AuthResult, error) {
	user, err := s.auth.SignIn(ctx, req)
	if err != nil {
		if errors.Is(err, authpw.ErrInvalidCredentials) {
			return AuthResult{}, domainError(http.StatusUnauthorized, "INVALID_EMAIL_OR_PASSWORD", "Invalid email or password", nil)
		}
		s.logger.Error("sign in", zap.Error(err))
		return AuthResult{}, errInternal("Failed to sign in")
	}
	return s.issueSession(ctx, user, client)
}

func (s *Service) issueSession(ctx context.Context, user store.User, client ClientInfo) (AuthResult, error) {
	token, err := auth.NewSessionToken()
	if err != nil {
		return AuthResult{}, fmt.Errorf("new session token: %w", err)
	}
	now := s.now().UTC()
	sess := store.Session{
		ID:        util.NewID(""),
		TokenHash: auth.HashToken(token),
		UserID:    user.ID,
		ExpiresAt: now.Add(s.cfg.SessionTTL),
		IPAddress: client.IPAddress,
		UserAgent: client.UserAgent,
		CreatedAt: now,
	}
	if err := s.sessions.SaveSession(ctx, sess); err != nil {
		s.logger.Error("save session", zap.String("user_id", user.ID), zap.Error(err))
		return AuthResult{}, errInternal("Failed to create session")
	}
	return AuthResult{
		Credential: auth.Sign([]byte(s.cfg.AuthSecret), token),
		User:       user,
		Session:    sess,
	}, nil
}

// ResolveSession maps a credential to its caller. Every form of unusable
// credential returns ErrAuthRequired; other errors are infrastructure
// failures.
func (s *Service) ResolveSession(ctx context.Context, credential string) (Identity, error) {
	if credential == "" {
		return Identity{}, ErrAuthRequired
	}
	token, err := auth.Verify([]byte(s.cfg.AuthSecret), credential)
	if err != nil {
		return Identity{}, ErrAuthRequired
	}

	sess, err := s.sessions.LookupSession(ctx, auth.HashToken(token))
	if err != nil {
		if isNotFound(err) {
			return Identity{}, ErrAuthRequired
		}
		return Identity{}, fmt.Errorf("lookup session: %w", err)
	}
	if sess.Expired(s.now()) {
		return Identity{}, ErrAuthRequired
	}

	user, err := s.store.GetUserByID(ctx, sess.UserID)
	if err != nil {
		if isNotFound(err) {
			return Identity{}, ErrAuthRequired
		}
		return Identity{}, fmt.Errorf("lookup session user: %w", err)
	}
	return Identity{User: user, Session: sess, Credential: credential}, nil
}

func (s *Service) SignOut(ctx context.Context, caller Identity) error {
	if err := s.sessions.RevokeSession(ctx, caller.Session.TokenHash); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || errors.Is(err, session.ErrNotFound)
}
