package search

import "todoapp/api/internal/store"

const (
	defaultLimit = 20
	maxLimit     = 100
)

// Query describes an owner-scoped title search.
type Query struct {
	OwnerID string
	Text    string
	Limit   int
}

// normalized clamps the limit into 1..maxLimit, defaulting when unset.
func (q Query) normalized() Query {
	if q.Limit <= 0 {
		q.Limit = defaultLimit
	}
	if q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	return q
}

// TodoRecord is the data we index for a todo.
type TodoRecord struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	OwnerID   string `json:"ownerId"`
	Completed bool   `json:"completed"`
}

func RecordFromTodo(item store.Todo) TodoRecord {
	return TodoRecord{
		ID:        item.ID,
		Title:     item.Title,
		OwnerID:   item.OwnerID,
		Completed: item.Completed,
	}
}

// Index is a full-text index of todo titles. Search returns matching todo
// ids, best match first.
type Index interface {
	Healthy() bool
	Search(q Query) ([]int64, error)
	IndexTodo(rec TodoRecord) error
	DeleteTodo(id int64) error
}
