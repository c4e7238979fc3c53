package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"todoapp/api/internal/metrics"
	"todoapp/api/internal/store"
)

const (
	sessionCookie  = "todo_session"
	maxBodyBytes   = 1 << 20
	wireTimeLayout = "2006-01-02T15:04:05.000Z"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
	logger     *zap.Logger
	metrics    *metrics.HTTP
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin, logger: service.logger.Named("http")}
}

// WithMetrics records request metrics and serves them on /metrics.
func (s *HTTPServer) WithMetrics(m *metrics.HTTP) *HTTPServer {
	s.metrics = m
	return s
}

func (s *HTTPServer) Handler() http.Handler {
	return chain(http.HandlerFunc(s.handle),
		s.requestID,
		s.accessLog,
		s.observe,
		s.recoverPanics,
		s.cors,
	)
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	isRead := r.Method == http.MethodGet || r.Method == http.MethodHead

	if isRead && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if isRead && r.URL.Path == "/api/ready" {
		s.handleReady(w, r)
		return
	}

	if isRead && r.URL.Path == "/metrics" && s.metrics != nil {
		s.metrics.Handler().ServeHTTP(w, r)
		return
	}

	// Auth routes (no session required)
	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/sign-up/email" {
		s.handleAuthSignUp(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/sign-in/email" {
		s.handleAuthSignIn(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/auth/get-session" {
		s.handleAuthGetSession(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/auth/sign-out" {
		s.requireSession(http.HandlerFunc(s.handleAuthSignOut)).ServeHTTP(w, r)
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) >= 2 && parts[0] == "api" && parts[1] == "todos" {
		s.requireSession(http.HandlerFunc(s.handleTodos)).ServeHTTP(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/chat" {
		s.requireSession(http.HandlerFunc(s.handleChat)).ServeHTTP(w, r)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{
		"database": map[string]any{"status": "ok"},
	}

	if err := s.service.Ping(ctx); err != nil {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
		checks["database"] = map[string]any{
			"status": "error",
			"error":  err.Error(),
		}
	}

	if checked, err := s.service.PingSessions(ctx); checked {
		checks["sessions"] = map[string]any{"status": "ok"}
		if err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["sessions"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}
	}

	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

// handleTodos serves /api/todos and /api/todos/{id}. The caller has already
// been resolved by requireSession.
func (s *HTTPServer) handleTodos(w http.ResponseWriter, r *http.Request) {
	caller, _ := IdentityFrom(r.Context())
	parts := splitPath(r.URL.Path)

	if len(parts) == 2 {
		switch r.Method {
		case http.MethodGet:
			items, err := s.service.ListTodos(r.Context(), caller)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, todosJSON(items))
		case http.MethodPost:
			body, err := readBody(w, r)
			if err != nil {
				writeServiceError(w, malformedJSON())
				return
			}
			title, err := parseCreateTodo(body)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			item, err := s.service.CreateTodo(r.Context(), caller, title)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, toTodoJSON(item))
		default:
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		}
		return
	}

	if len(parts) == 3 && parts[2] == "search" && r.Method == http.MethodGet {
		query := r.URL.Query()
		limit, _ := strconv.Atoi(query.Get("limit"))
		items, err := s.service.SearchTodos(r.Context(), caller, query.Get("q"), limit)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, todosJSON(items))
		return
	}

	if len(parts) != 3 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	rawID := parts[2]

	switch r.Method {
	case http.MethodGet:
		item, err := s.service.GetTodo(r.Context(), caller, rawID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toTodoJSON(item))
	case http.MethodPut:
		body, err := readBody(w, r)
		if err != nil {
			writeServiceError(w, malformedJSON())
			return
		}
		patch, err := parseUpdateTodo(body)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		item, err := s.service.UpdateTodo(r.Context(), caller, rawID, patch)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toTodoJSON(item))
	case http.MethodDelete:
		if err := s.service.DeleteTodo(r.Context(), caller, rawID); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "Todo deleted successfully"})
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

type todoJSON struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
	UserID    string `json:"userId"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(wireTimeLayout)
}

func toTodoJSON(item store.Todo) todoJSON {
	return todoJSON{
		ID:        item.ID,
		Title:     item.Title,
		Completed: item.Completed,
		UserID:    item.OwnerID,
		CreatedAt: formatTime(item.CreatedAt),
		UpdatedAt: formatTime(item.UpdatedAt),
	}
}

func todosJSON(items []store.Todo) []todoJSON {
	out := make([]todoJSON, 0, len(items))
	for _, item := range items {
		out = append(out, toTodoJSON(item))
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func writeValidation(w http.ResponseWriter, verr *ValidationError) {
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"success": false,
		"error": map[string]any{
			"name":   "ValidationError",
			"issues": verr.Issues,
		},
	})
}

func writeServiceError(w http.ResponseWriter, err error) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		writeValidation(w, verr)
		return
	}
	status, code, message, details := mapError(err)
	writeError(w, status, code, message, details)
}

// readBody reads at most maxBodyBytes of the request body.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer r.Body.Close()
	return io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
}

func decodeBody(w http.ResponseWriter, r *http.Request, target any) error {
	body, err := readBody(w, r)
	if err != nil {
		return malformedJSON()
	}
	if err := json.Unmarshal(body, target); err != nil {
		return malformedJSON()
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

// credential prefers the bearer header and falls back to the session cookie.
func credential(r *http.Request) string {
	if token := bearerToken(r); token != "" {
		return token
	}
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		return strings.TrimSpace(cookie.Value)
	}
	return ""
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	if errors.Is(err, ErrAuthRequired) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
