package search

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"
	"todoapp/api/internal/store"
)

// TodoReader is the SQL side of search. Hits from the index are re-read
// through it so that results are always owner-scoped and current.
type TodoReader interface {
	SearchTodos(ctx context.Context, ownerID, text string, limit int) ([]store.Todo, error)
	ListTodosByIDs(ctx context.Context, ownerID string, ids []int64) ([]store.Todo, error)
}

// Service is the facade that tries the index first and falls back to SQL.
type Service struct {
	index  Index
	db     TodoReader
	logger *zap.Logger
	wg     sync.WaitGroup
}

// NewService creates a search service. index may be nil if Meilisearch is not configured.
func NewService(index Index, db TodoReader, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{index: index, db: db, logger: logger.Named("search")}
}

func (s *Service) indexAvailable() bool {
	return s.index != nil && s.index.Healthy()
}

// Search tries the index if healthy, otherwise falls back to a SQL LIKE match.
func (s *Service) Search(ctx context.Context, q Query) ([]store.Todo, error) {
	q = q.normalized()
	if strings.TrimSpace(q.Text) == "" {
		return []store.Todo{}, nil
	}

	if s.indexAvailable() {
		ids, err := s.index.Search(q)
		if err == nil {
			return s.db.ListTodosByIDs(ctx, q.OwnerID, ids)
		}
		s.logger.Warn("index search failed, falling back to sql", zap.Error(err))
	}

	return s.db.SearchTodos(ctx, q.OwnerID, q.Text, q.Limit)
}

// IndexTodo indexes a todo (fire-and-forget).
func (s *Service) IndexTodo(item store.Todo) {
	if !s.indexAvailable() {
		return
	}
	rec := RecordFromTodo(item)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.index.IndexTodo(rec); err != nil {
			s.logger.Warn("index todo failed", zap.Int64("todo_id", rec.ID), zap.Error(err))
		}
	}()
}

// DeleteTodo removes a todo from the index (fire-and-forget).
func (s *Service) DeleteTodo(id int64) {
	if !s.indexAvailable() {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.index.DeleteTodo(id); err != nil {
			s.logger.Warn("unindex todo failed", zap.Int64("todo_id", id), zap.Error(err))
		}
	}()
}

// Wait blocks until pending index writes finish.
func (s *Service) Wait() {
	s.wg.Wait()
}
