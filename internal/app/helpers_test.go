package app

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"todoapp/api/internal/config"
	"todoapp/api/internal/store"
)

// stepClock advances by one millisecond on every reading so that successive
// writes get distinct, increasing timestamps.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Now().UTC().Truncate(time.Second)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func testConfig() config.Config {
	cfg := config.Defaults()
	cfg.AuthSecret = "test-secret"
	cfg.SessionTTL = time.Hour
	cfg.CORSOrigin = "*"
	return cfg
}

type testEnv struct {
	t       *testing.T
	store   *store.SQLStore
	service *Service
	server  *HTTPServer
	handler http.Handler
}

// newTestEnv wires the service and HTTP server to a migrated SQLite database.
func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	ctx := context.Background()
	db, err := store.Open(ctx, store.DialectSQLite, filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	migrationsDir := store.MigrationsPath(filepath.Join("..", "..", "db", "migrations"), store.DialectSQLite)
	if err := store.ApplyMigrations(ctx, db, store.DialectSQLite, migrationsDir); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	st := store.NewSQLStore(db, store.DialectSQLite)
	svc := New(testConfig(), st, append([]Option{WithClock(newStepClock().Now)}, opts...)...)
	server := NewHTTPServer(svc, "*")
	return &testEnv{t: t, store: st, service: svc, server: server, handler: server.Handler()}
}

func (e *testEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var reader *bytes.Reader
	switch value := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(value))
	default:
		raw, err := json.Marshal(value)
		if err != nil {
			e.t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

// signUp registers a user through the API and returns its credential.
func (e *testEnv) signUp(name string) (token string, userID string) {
	e.t.Helper()
	rr := e.do(http.MethodPost, "/api/auth/sign-up/email", "", map[string]string{
		"name":     name,
		"email":    name + "@example.com",
		"password": "password123",
	})
	if rr.Code != http.StatusCreated {
		e.t.Fatalf("sign up %s: status %d body=%s", name, rr.Code, rr.Body.String())
	}
	var payload struct {
		Token string `json:"token"`
		User  struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	decode(e.t, rr, &payload)
	return payload.Token, payload.User.ID
}

func (e *testEnv) createTodo(token, title string) todoJSON {
	e.t.Helper()
	rr := e.do(http.MethodPost, "/api/todos", token, map[string]string{"title": title})
	if rr.Code != http.StatusCreated {
		e.t.Fatalf("create todo: status %d body=%s", rr.Code, rr.Body.String())
	}
	var item todoJSON
	decode(e.t, rr, &item)
	return item
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), target); err != nil {
		t.Fatalf("parse response: %v body=%s", err, rr.Body.String())
	}
}

func errorMessage(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var payload map[string]any
	decode(t, rr, &payload)
	message, _ := payload["error"].(string)
	return message
}

var errNoRows = sql.ErrNoRows

// fakeStore lets tests inject store failures.
type fakeStore struct {
	listTodosFn     func(context.Context, string) ([]store.Todo, error)
	insertTodoFn    func(context.Context, string, string, time.Time) (store.Todo, error)
	getTodoFn       func(context.Context, int64, string) (store.Todo, error)
	updateTodoFn    func(context.Context, int64, string, store.TodoPatch, time.Time) (store.Todo, error)
	deleteTodoFn    func(context.Context, int64, string) error
	searchTodosFn   func(context.Context, string, string, int) ([]store.Todo, error)
	getUserByIDFn   func(context.Context, string) (store.User, error)
	lookupSessionFn func(context.Context, string) (store.Session, error)
	pingFn          func(context.Context) error
	todos           []store.Todo
	savedSessions   []store.Session
	revokedSessions []string
	createdUsers    []store.User
}

func (f *fakeStore) ListTodos(ctx context.Context, ownerID string) ([]store.Todo, error) {
	if f.listTodosFn != nil {
		return f.listTodosFn(ctx, ownerID)
	}
	return []store.Todo{}, nil
}

func (f *fakeStore) InsertTodo(ctx context.Context, ownerID, title string, now time.Time) (store.Todo, error) {
	if f.insertTodoFn != nil {
		return f.insertTodoFn(ctx, ownerID, title, now)
	}
	return store.Todo{ID: 1, Title: title, OwnerID: ownerID, CreatedAt: now, UpdatedAt: now}, nil
}

func (f *fakeStore) GetTodo(ctx context.Context, id int64, ownerID string) (store.Todo, error) {
	if f.getTodoFn != nil {
		return f.getTodoFn(ctx, id, ownerID)
	}
	for _, item := range f.todos {
		if item.ID == id && item.OwnerID == ownerID {
			return item, nil
		}
	}
	return store.Todo{}, errNoRows
}

func (f *fakeStore) UpdateTodo(ctx context.Context, id int64, ownerID string, patch store.TodoPatch, now time.Time) (store.Todo, error) {
	if f.updateTodoFn != nil {
		return f.updateTodoFn(ctx, id, ownerID, patch, now)
	}
	for i, item := range f.todos {
		if item.ID == id && item.OwnerID == ownerID {
			f.todos[i] = patch.Apply(item, now)
			return f.todos[i], nil
		}
	}
	return store.Todo{}, errNoRows
}

func (f *fakeStore) DeleteTodo(ctx context.Context, id int64, ownerID string) error {
	if f.deleteTodoFn != nil {
		return f.deleteTodoFn(ctx, id, ownerID)
	}
	return errNoRows
}

func (f *fakeStore) SearchTodos(ctx context.Context, ownerID, text string, limit int) ([]store.Todo, error) {
	if f.searchTodosFn != nil {
		return f.searchTodosFn(ctx, ownerID, text, limit)
	}
	return []store.Todo{}, nil
}

func (f *fakeStore) ListTodosByIDs(context.Context, string, []int64) ([]store.Todo, error) {
	return []store.Todo{}, nil
}

func (f *fakeStore) GetUserByID(ctx context.Context, userID string) (store.User, error) {
	if f.getUserByIDFn != nil {
		return f.getUserByIDFn(ctx, userID)
	}
	return store.User{ID: userID, Name: "Avery", Email: "avery@example.com"}, nil
}

func (f *fakeStore) GetUserByEmail(context.Context, string) (store.User, error) {
	return store.User{}, errNoRows
}

func (f *fakeStore) CreateUser(_ context.Context, user store.User) error {
	f.createdUsers = append(f.createdUsers, user)
	return nil
}

func (f *fakeStore) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}

func (f *fakeStore) SaveSession(_ context.Context, sess store.Session) error {
	f.savedSessions = append(f.savedSessions, sess)
	return nil
}

func (f *fakeStore) LookupSession(ctx context.Context, tokenHash string) (store.Session, error) {
	if f.lookupSessionFn != nil {
		return f.lookupSessionFn(ctx, tokenHash)
	}
	for _, sess := range f.savedSessions {
		if sess.TokenHash == tokenHash {
			return sess, nil
		}
	}
	return store.Session{}, errNoRows
}

func (f *fakeStore) RevokeSession(_ context.Context, tokenHash string) error {
	f.revokedSessions = append(f.revokedSessions, tokenHash)
	return nil
}

func newFakeService(fs *fakeStore, opts ...Option) (*Service, http.Handler) {
	svc := newService(testConfig(), fs, opts...)
	return svc, NewHTTPServer(svc, "*").Handler()
}

// fakeCaller issues a real session for userID against the fake store and
// returns the bearer credential.
func fakeCaller(t *testing.T, svc *Service, userID string) string {
	t.Helper()
	result, err := svc.issueSession(context.Background(), store.User{ID: userID}, ClientInfo{})
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}
	return result.Credential
}

func request(handler http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	req := newRequest(method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return serve(handler, req)
}

func newRequest(method, path, body string) *http.Request {
	return httptest.NewRequest(method, path, bytes.NewBufferString(body))
}

func serve(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
