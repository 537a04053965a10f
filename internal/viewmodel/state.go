// Package viewmodel はクライアント側のTodo一覧を保持し、サーバーの確定を
// 待たずに変更を反映 (楽観的更新) します。
//
// 変更操作は二段階です。State のメソッドはローカルの一覧を即座に更新して
// Commit を返し、Commit が API を呼び出してサーバーの結果で一覧を確定するか、
// 失敗時に変更を取り消します。Commit は並行に実行できます。
package viewmodel

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"go-todo-app/internal/models"
	"go-todo-app/internal/services"
)

// PlaceholderPrefix はサーバーが未確定のTodoにローカルで付けるIDの接頭辞です。
// サーバーのIDは UUID なのでこの接頭辞は付きません。
const PlaceholderPrefix = "tmp-"

// 呼び出しが失敗したときに表示するメッセージ
const (
	MsgLoadFailed   = "could not load todos"
	MsgAddFailed    = "could not add todo"
	MsgUpdateFailed = "could not update todo"
	MsgDeleteFailed = "could not delete todo"
)

var now = func() time.Time { return time.Now().UTC() }

// ErrEmptyTitle はタイトルが空のときに Add が返すエラーです。
var ErrEmptyTitle = errors.New("title required")

// API は State が利用するサーバー側の操作です。
type API interface {
	List(ctx context.Context) ([]models.Todo, error)
	Create(ctx context.Context, title string, description *string) (models.Todo, error)
	MarkDone(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

// Commit は変更のネットワーク部分を実行し、状態を確定させます。
// 取り消しを適用したあとで API のエラーを返します。
type Commit func(ctx context.Context) error

// Snapshot はロックなしで読める状態のコピーです。
type Snapshot struct {
	Todos     []models.Todo
	Loading   bool
	Pending   int
	LastError string
}

// State はビューモデルです。ゼロ値は使えないので New で作成してください。
type State struct {
	api API

	mu        sync.Mutex
	todos     []models.Todo
	loading   bool
	pending   int
	lastError string
	// 確定済みのプレースホルダー。値が nil なら作成に失敗している
	settled map[string]*models.Todo
}

// New は api に紐づいた空の State を返します。
func New(api API) *State {
	return &State{api: api, settled: map[string]*models.Todo{}}
}

// IsPlaceholder は id がローカルで生成されたものかを返します。
func IsPlaceholder(id string) bool {
	return strings.HasPrefix(id, PlaceholderPrefix)
}

// Snapshot は現在の状態のディープコピーを返します。
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Todos:     cloneTodos(s.todos),
		Loading:   s.loading,
		Pending:   s.pending,
		LastError: s.lastError,
	}
}

// Load はサーバーから一覧を取得してローカルの一覧を置き換えます。
// 失敗した場合は一覧をそのままにして LastError を設定します。
func (s *State) Load(ctx context.Context) error {
	s.mu.Lock()
	s.loading = true
	s.lastError = ""
	s.mu.Unlock()

	todos, err := s.api.List(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		s.lastError = MsgLoadFailed
		return err
	}
	s.todos = cloneTodos(todos)
	return nil
}

// Add はプレースホルダーのTodoを先頭に追加し、サーバーに作成する Commit を返します。
func (s *State) Add(title, description string) (Commit, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrEmptyTitle
	}
	optimistic := models.Todo{
		ID:          PlaceholderPrefix + uuid.NewString(),
		Title:       title,
		Description: services.NormalizeDescription(description),
		Done:        false,
		CreatedAt:   now(),
	}

	s.mu.Lock()
	s.lastError = ""
	s.pending++
	s.todos = append([]models.Todo{optimistic.Clone()}, s.todos...)
	s.mu.Unlock()

	return func(ctx context.Context) error {
		created, err := s.api.Create(ctx, optimistic.Title, optimistic.Description)

		s.mu.Lock()
		defer s.mu.Unlock()
		defer s.done()
		rest := removeByID(s.todos, optimistic.ID)
		if err != nil {
			s.todos = rest
			s.settled[optimistic.ID] = nil
			s.lastError = MsgAddFailed
			return err
		}
		s.todos = append([]models.Todo{created.Clone()}, rest...)
		saved := created.Clone()
		s.settled[optimistic.ID] = &saved
		return nil
	}, nil
}

// MarkDone はTodoをローカルで完了にし、サーバーで確定する Commit を返します。
// Commit が失敗すると元の値に戻します。
func (s *State) MarkDone(id string) Commit {
	s.mu.Lock()
	s.lastError = ""
	s.pending++
	prev := setDone(s.todos, id, true)
	s.mu.Unlock()

	return func(ctx context.Context) error {
		err := s.api.MarkDone(ctx, id)

		s.mu.Lock()
		defer s.mu.Unlock()
		defer s.done()
		if err != nil {
			setDone(s.todos, id, prev)
			s.lastError = MsgUpdateFailed
			return err
		}
		return nil
	}
}

// Delete はTodoをローカルで削除し、サーバーで削除する Commit を返します。
// Commit が失敗すると削除前の一覧を復元します。その間に確定した
// プレースホルダーは確定後のTodoに置き換えます。
func (s *State) Delete(id string) Commit {
	s.mu.Lock()
	s.lastError = ""
	s.pending++
	keep := cloneTodos(s.todos)
	s.todos = removeByID(s.todos, id)
	s.mu.Unlock()

	return func(ctx context.Context) error {
		err := s.api.Delete(ctx, id)

		s.mu.Lock()
		defer s.mu.Unlock()
		defer s.done()
		if err != nil {
			s.todos = s.resolve(keep)
			s.lastError = MsgDeleteFailed
			return err
		}
		return nil
	}
}

// resolve は確定済みのプレースホルダーを置き換えた todos を返します。
// s.mu を保持した状態で呼び出してください。
func (s *State) resolve(todos []models.Todo) []models.Todo {
	out := make([]models.Todo, 0, len(todos))
	for _, t := range todos {
		if IsPlaceholder(t.ID) {
			if saved, ok := s.settled[t.ID]; ok {
				if saved != nil {
					out = append(out, saved.Clone())
				}
				continue
			}
		}
		out = append(out, t)
	}
	return out
}

// done は Commit の完了を記録します。s.mu を保持した状態で呼び出してください。
func (s *State) done() {
	s.pending--
	// 実行中の Commit が無ければ古いスナップショットも残っていない
	if s.pending == 0 {
		s.settled = map[string]*models.Todo{}
	}
}

func removeByID(todos []models.Todo, id string) []models.Todo {
	out := make([]models.Todo, 0, len(todos))
	for _, t := range todos {
		if t.ID != id {
			out = append(out, t)
		}
	}
	return out
}

// setDone はTodoをその場で更新し、更新前の値を返します。
func setDone(todos []models.Todo, id string, done bool) bool {
	for i := range todos {
		if todos[i].ID == id {
			prev := todos[i].Done
			todos[i].Done = done
			return prev
		}
	}
	return false
}

func cloneTodos(todos []models.Todo) []models.Todo {
	if todos == nil {
		return nil
	}
	out := make([]models.Todo, len(todos))
	for i, t := range todos {
		out[i] = t.Clone()
	}
	return out
}
