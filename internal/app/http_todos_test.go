package app

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTodoLifecycle(t *testing.T) {
	env := newTestEnv(t)
	token, userID := env.signUp("avery")

	created := env.createTodo(token, "Buy milk")
	assert.Positive(t, created.ID)
	assert.Equal(t, "Buy milk", created.Title)
	assert.False(t, created.Completed)
	assert.Equal(t, userID, created.UserID)
	assert.Equal(t, created.CreatedAt, created.UpdatedAt)
	_, err := time.Parse(wireTimeLayout, created.CreatedAt)
	require.NoError(t, err)

	path := fmt.Sprintf("/api/todos/%d", created.ID)

	rr := env.do(http.MethodGet, path, token, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var fetched todoJSON
	decode(t, rr, &fetched)
	if diff := cmp.Diff(created, fetched); diff != "" {
		t.Fatalf("fetched todo mismatch (-want +got):\n%s", diff)
	}

	rr = env.do(http.MethodPut, path, token, map[string]any{"completed": true})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var updated todoJSON
	decode(t, rr, &updated)
	assert.True(t, updated.Completed)
	assert.Equal(t, "Buy milk", updated.Title)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.Greater(t, updated.UpdatedAt, created.UpdatedAt)

	rr = env.do(http.MethodDelete, path, token, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.JSONEq(t, `{"message":"Todo deleted successfully"}`, rr.Body.String())

	rr = env.do(http.MethodGet, path, token, nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "Todo not found", errorMessage(t, rr))

	rr = env.do(http.MethodDelete, path, token, nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestTodosRequireSession(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		method string
		path   string
		token  string
	}{
		{http.MethodGet, "/api/todos", ""},
		{http.MethodPost, "/api/todos", ""},
		{http.MethodGet, "/api/todos/1", ""},
		{http.MethodPut, "/api/todos/1", ""},
		{http.MethodDelete, "/api/todos/1", ""},
		{http.MethodGet, "/api/todos/search?q=x", ""},
		{http.MethodGet, "/api/todos", "not-a-credential"},
		{http.MethodGet, "/api/todos", "forged.c2lnbmF0dXJl"},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			rr := env.do(tc.method, tc.path, tc.token, map[string]string{"title": "x"})
			require.Equal(t, http.StatusUnauthorized, rr.Code)
			assert.Equal(t, "Authentication required", errorMessage(t, rr))
		})
	}
}

func TestTodosAreScopedToOwner(t *testing.T) {
	env := newTestEnv(t)
	aliceToken, _ := env.signUp("alice")
	bobToken, _ := env.signUp("bob")

	item := env.createTodo(aliceToken, "Alice's secret")
	path := fmt.Sprintf("/api/todos/%d", item.ID)

	rr := env.do(http.MethodGet, "/api/todos", bobToken, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		rr := env.do(method, path, bobToken, map[string]any{"title": "stolen"})
		assert.Equal(t, http.StatusNotFound, rr.Code, method)
		assert.Equal(t, "Todo not found", errorMessage(t, rr), method)
	}

	rr = env.do(http.MethodGet, path, aliceToken, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var still todoJSON
	decode(t, rr, &still)
	assert.Equal(t, "Alice's secret", still.Title)
}

func TestListTodosNewestFirst(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.signUp("avery")

	first := env.createTodo(token, "first")
	second := env.createTodo(token, "second")
	third := env.createTodo(token, "third")

	rr := env.do(http.MethodGet, "/api/todos", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var items []todoJSON
	decode(t, rr, &items)

	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	assert.Equal(t, []int64{third.ID, second.ID, first.ID}, ids)
}

func TestEmptyListIsArray(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.signUp("avery")

	rr := env.do(http.MethodGet, "/api/todos", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func TestUpdatesAdvanceUpdatedAt(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.signUp("avery")
	item := env.createTodo(token, "iterate")
	path := fmt.Sprintf("/api/todos/%d", item.ID)

	previous := item.UpdatedAt
	for i := 0; i < 3; i++ {
		rr := env.do(http.MethodPut, path, token, map[string]any{})
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		var updated todoJSON
		decode(t, rr, &updated)
		assert.Greater(t, updated.UpdatedAt, previous)
		assert.Equal(t, item.Title, updated.Title)
		previous = updated.UpdatedAt
	}
}

func TestUpdatedAtAdvancesWithWallClock(t *testing.T) {
	env := newTestEnv(t, WithClock(time.Now))
	token, _ := env.signUp("avery")

	for i := 0; i < 50; i++ {
		item := env.createTodo(token, "quick")
		rr := env.do(http.MethodPut, "/api/todos/"+itoa(item.ID), token, map[string]any{"completed": true})
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		var updated todoJSON
		decode(t, rr, &updated)
		require.Greater(t, updated.UpdatedAt, item.UpdatedAt, "iteration %d", i)
	}
}

func TestTodoValidation(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.signUp("avery")
	item := env.createTodo(token, "valid")
	path := fmt.Sprintf("/api/todos/%d", item.ID)

	cases := []struct {
		name     string
		method   string
		path     string
		body     string
		wantCode string
		wantPath []any
	}{
		{"create missing title", http.MethodPost, "/api/todos", `{}`, "invalid_type", []any{"title"}},
		{"create empty title", http.MethodPost, "/api/todos", `{"title":""}`, "too_small", []any{"title"}},
		{"create numeric title", http.MethodPost, "/api/todos", `{"title":42}`, "invalid_type", []any{"title"}},
		{"create malformed", http.MethodPost, "/api/todos", `{"title":`, "invalid_json", []any{}},
		{"create array body", http.MethodPost, "/api/todos", `["x"]`, "invalid_type", []any{}},
		{"update empty title", http.MethodPut, path, `{"title":""}`, "too_small", []any{"title"}},
		{"update string completed", http.MethodPut, path, `{"completed":"yes"}`, "invalid_type", []any{"completed"}},
		{"update malformed", http.MethodPut, path, `nope`, "invalid_json", []any{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := env.do(tc.method, tc.path, token, tc.body)
			require.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())

			var payload struct {
				Success bool `json:"success"`
				Error   struct {
					Name   string `json:"name"`
					Issues []struct {
						Code    string `json:"code"`
						Path    []any  `json:"path"`
						Message string `json:"message"`
					} `json:"issues"`
				} `json:"error"`
			}
			decode(t, rr, &payload)
			assert.False(t, payload.Success)
			assert.Equal(t, "ValidationError", payload.Error.Name)
			require.NotEmpty(t, payload.Error.Issues)
			assert.Equal(t, tc.wantCode, payload.Error.Issues[0].Code)
			assert.Equal(t, tc.wantPath, payload.Error.Issues[0].Path)
		})
	}

	rr := env.do(http.MethodGet, path, token, nil)
	var unchanged todoJSON
	decode(t, rr, &unchanged)
	assert.Equal(t, "valid", unchanged.Title)
	assert.False(t, unchanged.Completed)
}

func TestCreateTodoMissingTitleMessage(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.signUp("avery")

	rr := env.do(http.MethodPost, "/api/todos", token, `{"completed":true}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), `"message":"Title is required"`)
}

func TestNonNumericTodoIDIsNotFound(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.signUp("avery")

	for _, id := range []string{"abc", "1.5", "-1", "0", "99999"} {
		for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
			rr := env.do(method, "/api/todos/"+id, token, map[string]any{"completed": true})
			assert.Equal(t, http.StatusNotFound, rr.Code, "%s %s", method, id)
		}
	}
}

func TestSearchTodos(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.signUp("avery")
	otherToken, _ := env.signUp("blake")

	env.createTodo(token, "Buy milk")
	env.createTodo(token, "Walk the dog")
	oat := env.createTodo(token, "Buy oat MILK")
	env.createTodo(otherToken, "Buy milk too")

	rr := env.do(http.MethodGet, "/api/todos/search?q=milk", token, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var items []todoJSON
	decode(t, rr, &items)
	require.Len(t, items, 2)
	assert.Equal(t, oat.ID, items[0].ID)

	rr = env.do(http.MethodGet, "/api/todos/search?q=milk&limit=1", token, nil)
	decode(t, rr, &items)
	assert.Len(t, items, 1)

	rr = env.do(http.MethodGet, "/api/todos/search?q=", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func TestCookieCredentialAuthenticates(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(http.MethodPost, "/api/auth/sign-up/email", "", map[string]string{
		"name": "Casey", "email": "casey@example.com", "password": "password123",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var cookie *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == sessionCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	req := newRequest(http.MethodPost, "/api/todos", `{"title":"from cookie"}`)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: cookie.Value})
	created := serve(env.handler, req)
	require.Equal(t, http.StatusCreated, created.Code, created.Body.String())
}
