package app

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"todoapp/api/internal/authpw"
	"todoapp/api/internal/chat"
	"todoapp/api/internal/config"
	"todoapp/api/internal/events"
	"todoapp/api/internal/search"
	"todoapp/api/internal/store"
)

type dataStore interface {
	ListTodos(ctx context.Context, ownerID string) ([]store.Todo, error)
	InsertTodo(ctx context.Context, ownerID, title string, now time.Time) (store.Todo, error)
	GetTodo(ctx context.Context, id int64, ownerID string) (store.Todo, error)
	UpdateTodo(ctx context.Context, id int64, ownerID string, patch store.TodoPatch, now time.Time) (store.Todo, error)
	DeleteTodo(ctx context.Context, id int64, ownerID string) error
	SearchTodos(ctx context.Context, ownerID, text string, limit int) ([]store.Todo, error)
	ListTodosByIDs(ctx context.Context, ownerID string, ids []int64) ([]store.Todo, error)
	GetUserByID(ctx context.Context, userID string) (store.User, error)
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	CreateUser(ctx context.Context, user store.User) error
	Ping(ctx context.Context) error
}

type sessionStore interface {
	SaveSession(ctx context.Context, session store.Session) error
	LookupSession(ctx context.Context, tokenHash string) (store.Session, error)
	RevokeSession(ctx context.Context, tokenHash string) error
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions sessionStore
	auth     *authpw.Service
	index    search.Index
	search   *search.Service
	events   events.Publisher
	chat     chat.Streamer
	logger   *zap.Logger
	now      func() time.Time
}

type Option func(*Service)

// WithSessionStore replaces the SQL sessions table, e.g. with Redis.
func WithSessionStore(sessions sessionStore) Option {
	return func(s *Service) { s.sessions = sessions }
}

func WithSearchIndex(index search.Index) Option {
	return func(s *Service) { s.index = index }
}

func WithPublisher(publisher events.Publisher) Option {
	return func(s *Service) { s.events = publisher }
}

func WithChat(streamer chat.Streamer) Option {
	return func(s *Service) { s.chat = streamer }
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(cfg config.Config, dataStore *store.SQLStore, opts ...Option) *Service {
	return newService(cfg, dataStore, opts...)
}

func newService(cfg config.Config, dataStore dataStore, opts ...Option) *Service {
	s := &Service{
		cfg:    cfg,
		store:  dataStore,
		events: events.Nop{},
		logger: zap.NewNop(),
		now:    time.Now,
	}
	if sessions, ok := dataStore.(sessionStore); ok {
		s.sessions = sessions
	}
	for _, opt := range opts {
		opt(s)
	}
	s.search = search.NewService(s.index, s.store, s.logger)
	s.auth = authpw.NewService(s.store)
	return s
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

type pinger interface {
	Ping(ctx context.Context) error
}

// PingSessions checks the session backend when it is separate from the
// database. checked is false when sessions live in the database.
func (s *Service) PingSessions(ctx context.Context) (checked bool, err error) {
	p, ok := s.sessions.(pinger)
	if !ok || any(s.sessions) == any(s.store) {
		return false, nil
	}
	return true, p.Ping(ctx)
}

// Wait blocks until background index writes finish.
func (s *Service) Wait() {
	s.search.Wait()
}

// parseTodoID accepts base-10 integer ids only. Anything else cannot name a
// todo and is reported as not found.
func parseTodoID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (s *Service) ListTodos(ctx context.Context, caller Identity) ([]store.Todo, error) {
	items, err := s.store.ListTodos(ctx, caller.User.ID)
	if err != nil {
		s.logger.Error("list todos", zap.String("user_id", caller.User.ID), zap.Error(err))
		return nil, errInternal("Failed to fetch todos")
	}
	return items, nil
}

func (s *Service) CreateTodo(ctx context.Context, caller Identity, title string) (store.Todo, error) {
	if title == "" {
		return store.Todo{}, invalid(titleTooSmall())
	}
	item, err := s.store.InsertTodo(ctx, caller.User.ID, title, s.now())
	if err != nil {
		s.logger.Error("create todo", zap.String("user_id", caller.User.ID), zap.Error(err))
		return store.Todo{}, errInternal("Failed to create todo")
	}
	s.afterWrite(ctx, events.SubjectTodoCreated, item)
	return item, nil
}

func (s *Service) GetTodo(ctx context.Context, caller Identity, rawID string) (store.Todo, error) {
	id, ok := parseTodoID(rawID)
	if !ok {
		return store.Todo{}, errTodoNotFound()
	}
	item, err := s.store.GetTodo(ctx, id, caller.User.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Todo{}, errTodoNotFound()
		}
		s.logger.Error("get todo", zap.Int64("todo_id", id), zap.Error(err))
		return store.Todo{}, errInternal("Failed to fetch todo")
	}
	return item, nil
}

// UpdateTodo reports every store failure as not found, matching DeleteTodo.
func (s *Service) UpdateTodo(ctx context.Context, caller Identity, rawID string, patch store.TodoPatch) (store.Todo, error) {
	if patch.Title != nil && *patch.Title == "" {
		return store.Todo{}, invalid(titleTooSmall())
	}
	id, ok := parseTodoID(rawID)
	if !ok {
		return store.Todo{}, errTodoNotFound()
	}
	item, err := s.store.UpdateTodo(ctx, id, caller.User.ID, patch, s.now())
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Error("update todo", zap.Int64("todo_id", id), zap.Error(err))
		}
		return store.Todo{}, errTodoNotFound()
	}
	s.afterWrite(ctx, events.SubjectTodoUpdated, item)
	return item, nil
}

func (s *Service) DeleteTodo(ctx context.Context, caller Identity, rawID string) error {
	id, ok := parseTodoID(rawID)
	if !ok {
		return errTodoNotFound()
	}
	if err := s.store.DeleteTodo(ctx, id, caller.User.ID); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Error("delete todo", zap.Int64("todo_id", id), zap.Error(err))
		}
		return errTodoNotFound()
	}
	s.afterWrite(ctx, events.SubjectTodoDeleted, store.Todo{ID: id, OwnerID: caller.User.ID})
	return nil
}

func (s *Service) SearchTodos(ctx context.Context, caller Identity, text string, limit int) ([]store.Todo, error) {
	items, err := s.search.Search(ctx, search.Query{OwnerID: caller.User.ID, Text: text, Limit: limit})
	if err != nil {
		s.logger.Error("search todos", zap.String("user_id", caller.User.ID), zap.Error(err))
		return nil, errInternal("Failed to search todos")
	}
	return items, nil
}

// afterWrite updates the search index and publishes the lifecycle event.
// Failures are logged and never reach the caller.
func (s *Service) afterWrite(ctx context.Context, subject string, item store.Todo) {
	if subject == events.SubjectTodoDeleted {
		s.search.DeleteTodo(item.ID)
	} else {
		s.search.IndexTodo(item)
	}

	event := events.TodoEvent{
		TodoID:     item.ID,
		OwnerID:    item.OwnerID,
		Title:      item.Title,
		Completed:  item.Completed,
		OccurredAt: s.now().UTC(),
	}
	if err := s.events.Publish(context.WithoutCancel(ctx), subject, event); err != nil {
		s.logger.Warn("publish todo event", zap.String("subject", subject), zap.Int64("todo_id", item.ID), zap.Error(err))
	}
}

// Chat streams a completion for messages into stream.
func (s *Service) Chat(ctx context.Context, messages []chat.Message, stream *chat.UIStream) error {
	if s.chat == nil {
		return errChatDisabled
	}
	return chat.Relay(ctx, s.chat, messages, stream)
}

func (s *Service) ChatConfigured() bool {
	return s.chat != nil
}
