package app

import (
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"todoapp/api/internal/authpw"
	"todoapp/api/internal/store"
)

// Auth handlers for email/password authentication

func (s *HTTPServer) handleAuthSignUp(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		writeServiceError(w, err)
		return
	}

	result, err := s.service.SignUp(r.Context(), authpw.SignUpRequest{
		Name:     body.Name,
		Email:    body.Email,
		Password: body.Password,
	}, s.clientInfo(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	setSessionCookie(w, r, result.Credential, result.Session.ExpiresAt)
	writeJSON(w, http.StatusCreated, map[string]any{
		"token": result.Credential,
		"user":  userJSON(result.User),
	})
}

func (s *HTTPServer) handleAuthSignIn(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		writeServiceError(w, err)
		return
	}

	result, err := s.service.SignIn(r.Context(), authpw.SignInRequest{
		Email:    body.Email,
		Password: body.Password,
	}, s.clientInfo(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	setSessionCookie(w, r, result.Credential, result.Session.ExpiresAt)
	writeJSON(w, http.StatusOK, map[string]any{
		"token": result.Credential,
		"user":  userJSON(result.User),
	})
}

// handleAuthGetSession answers null rather than 401 for anonymous callers.
func (s *HTTPServer) handleAuthGetSession(w http.ResponseWriter, r *http.Request) {
	identity, err := s.service.ResolveSession(r.Context(), credential(r))
	if err != nil {
		if errors.Is(err, ErrAuthRequired) {
			writeJSON(w, http.StatusOK, nil)
			return
		}
		s.logger.Error("session lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Session lookup failed", nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session": sessionJSON(identity.Session, identity.Credential),
		"user":    userJSON(identity.User),
	})
}

func (s *HTTPServer) handleAuthSignOut(w http.ResponseWriter, r *http.Request) {
	caller, _ := IdentityFrom(r.Context())
	if err := s.service.SignOut(r.Context(), caller); err != nil {
		s.logger.Error("sign out", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Failed to sign out", nil)
		return
	}
	clearSessionCookie(w, r)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// clientInfo records the peer address. X-Forwarded-For is only honored when
// the server runs behind a trusted proxy, since clients can set it freely.
func (s *HTTPServer) clientInfo(r *http.Request) ClientInfo {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		ip = host
	}
	if s.service.cfg.TrustProxy {
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			ip, _, _ = strings.Cut(forwarded, ",")
		}
	}
	return ClientInfo{IPAddress: strings.TrimSpace(ip), UserAgent: r.UserAgent()}
}

func setSessionCookie(w http.ResponseWriter, r *http.Request, value string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    value,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   int(time.Until(expiresAt).Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

func userJSON(user store.User) map[string]any {
	return map[string]any{
		"id":            user.ID,
		"name":          user.Name,
		"email":         user.Email,
		"emailVerified": user.EmailVerified,
		"image":         nil,
		"createdAt":     formatTime(user.CreatedAt),
		"updatedAt":     formatTime(user.UpdatedAt),
	}
}

func sessionJSON(sess store.Session, token string) map[string]any {
	return map[string]any{
		"id":        sess.ID,
		"userId":    sess.UserID,
		"token":     token,
		"expiresAt": formatTime(sess.ExpiresAt),
		"ipAddress": sess.IPAddress,
		"userAgent": sess.UserAgent,
		"createdAt": formatTime(sess.CreatedAt),
	}
}
