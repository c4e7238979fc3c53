package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrEmailTaken = errors.New("email already registered")

// SQLStore serves todos, users and sessions from Postgres or SQLite.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

func (s *SQLStore) DB() *sql.DB {
	return s.db
}

func (s *SQLStore) Dialect() Dialect {
	return s.dialect
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.dialect.rebind(query), args...)
}

func (s *SQLStore) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
}

func (s *SQLStore) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.dialect.rebind(query), args...)
}

const todoColumns = `id, title, completed, user_id, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTodo(row rowScanner) (Todo, error) {
	var (
		item      Todo
		completed dbBool
		createdAt dbTime
		updatedAt dbTime
	)
	if err := row.Scan(&item.ID, &item.Title, &completed, &item.OwnerID, &createdAt, &updatedAt); err != nil {
		return Todo{}, err
	}
	item.Completed = bool(completed)
	item.CreatedAt = createdAt.Time()
	item.UpdatedAt = updatedAt.Time()
	return item, nil
}

func scanTodos(rows *sql.Rows) ([]Todo, error) {
	defer rows.Close()
	items := make([]Todo, 0)
	for rows.Next() {
		item, err := scanTodo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan todo: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate todos: %w", err)
	}
	return items, nil
}

func (s *SQLStore) ListTodos(ctx context.Context, ownerID string) ([]Todo, error) {
	rows, err := s.query(ctx, `
		SELECT `+todoColumns+`
		FROM todos
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	return scanTodos(rows)
}

func (s *SQLStore) InsertTodo(ctx context.Context, ownerID, title string, now time.Time) (Todo, error) {
	item, err := scanTodo(s.queryRow(ctx, `
		INSERT INTO todos (title, completed, user_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING `+todoColumns,
		title, false, ownerID, s.dialect.timeArg(now), s.dialect.timeArg(now)))
	if err != nil {
		return Todo{}, fmt.Errorf("insert todo: %w", err)
	}
	return item, nil
}

// GetTodo returns sql.ErrNoRows when the todo does not exist or belongs to
// another owner.
func (s *SQLStore) GetTodo(ctx context.Context, id int64, ownerID string) (Todo, error) {
	item, err := scanTodo(s.queryRow(ctx, `
		SELECT `+todoColumns+`
		FROM todos
		WHERE id = ? AND user_id = ?
	`, id, ownerID))
	if err != nil {
		return Todo{}, err
	}
	return item, nil
}

// UpdateTodo applies patch to the owner's todo. The stored updated_at always
// moves forward by at least one millisecond, the precision todos are served
// with, even when now does not.
func (s *SQLStore) UpdateTodo(ctx context.Context, id int64, ownerID string, patch TodoPatch, now time.Time) (Todo, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Todo{}, fmt.Errorf("begin update todo: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	lock := ""
	if s.dialect == DialectPostgres {
		lock = " FOR UPDATE"
	}
	var previous dbTime
	err = tx.QueryRowContext(ctx, s.dialect.rebind(`
		SELECT updated_at
		FROM todos
		WHERE id = ? AND user_id = ?`+lock), id, ownerID).Scan(&previous)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Todo{}, err
		}
		return Todo{}, fmt.Errorf("lock todo: %w", err)
	}

	assignments := []string{"updated_at = ?"}
	args := []any{s.dialect.timeArg(nextUpdatedAt(previous.Time(), now))}
	for _, field := range patch.fields() {
		assignments = append(assignments, field.column+" = ?")
		args = append(args, field.value)
	}
	args = append(args, id, ownerID)

	item, err := scanTodo(tx.QueryRowContext(ctx, s.dialect.rebind(`
		UPDATE todos
		SET `+strings.Join(assignments, ", ")+`
		WHERE id = ? AND user_id = ?
		RETURNING `+todoColumns),
		args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Todo{}, err
		}
		return Todo{}, fmt.Errorf("update todo: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Todo{}, fmt.Errorf("commit update todo: %w", err)
	}
	return item, nil
}

// nextUpdatedAt returns now at millisecond precision, bumped past previous
// when the clock has not advanced a full millisecond.
func nextUpdatedAt(previous, now time.Time) time.Time {
	next := now.UTC().Truncate(time.Millisecond)
	floor := previous.UTC().Truncate(time.Millisecond).Add(time.Millisecond)
	if next.Before(floor) {
		return floor
	}
	return next
}

func (s *SQLStore) DeleteTodo(ctx context.Context, id int64, ownerID string) error {
	var deleted int64
	err := s.queryRow(ctx, `
		DELETE FROM todos
		WHERE id = ? AND user_id = ?
		RETURNING id
	`, id, ownerID).Scan(&deleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return err
		}
		return fmt.Errorf("delete todo: %w", err)
	}
	return nil
}

// SearchTodos matches titles case-insensitively.
func (s *SQLStore) SearchTodos(ctx context.Context, ownerID, text string, limit int) ([]Todo, error) {
	pattern := "%" + escapeLike(strings.ToLower(strings.TrimSpace(text))) + "%"
	rows, err := s.query(ctx, `
		SELECT `+todoColumns+`
		FROM todos
		WHERE user_id = ? AND LOWER(title) LIKE ? ESCAPE '\'
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, ownerID, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("search todos: %w", err)
	}
	return scanTodos(rows)
}

// ListTodosByIDs keeps the order of ids and drops ids the owner does not own.
func (s *SQLStore) ListTodosByIDs(ctx context.Context, ownerID string, ids []int64) ([]Todo, error) {
	if len(ids) == 0 {
		return []Todo{}, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	args := make([]any, 0, len(ids)+1)
	args = append(args, ownerID)
	for _, id := range ids {
		args = append(args, id)
	}
	rows, err := s.query(ctx, `
		SELECT `+todoColumns+`
		FROM todos
		WHERE user_id = ? AND id IN (`+placeholders+`)
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("list todos by id: %w", err)
	}
	found, err := scanTodos(rows)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]Todo, len(found))
	for _, item := range found {
		byID[item.ID] = item
	}
	items := make([]Todo, 0, len(found))
	for _, id := range ids {
		if item, ok := byID[id]; ok {
			items = append(items, item)
		}
	}
	return items, nil
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}
