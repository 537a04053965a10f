// Package services はTodoのビジネスロジックを扱います。
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go-todo-app/internal/models"
)

var (
	// ErrTitleRequired はタイトルが空 (空白のみを含む) の場合のエラーです。
	ErrTitleRequired = errors.New("title required")
	// ErrTodoNotFound は対象のTodoが存在しない (または既に完了している) 場合のエラーです。
	ErrTodoNotFound = errors.New("not found")
)

// TodoStore はTodoServiceが利用する永続化層です。
type TodoStore interface {
	FindAll(ctx context.Context) ([]*models.Todo, error)
	Create(ctx context.Context, title string, description *string) (*models.Todo, error)
	MarkDone(ctx context.Context, id string) (int64, error)
	Delete(ctx context.Context, id string) (int64, error)
}

// TodoService はTodo関連のビジネスロジックを扱います。
type TodoService struct {
	store TodoStore
}

// NewTodoService は新しいTodoServiceを作成します。
func NewTodoService(store TodoStore) *TodoService {
	return &TodoService{store: store}
}

// GetTodos はすべてのTodoを新しい順に取得します。
func (s *TodoService) GetTodos(ctx context.Context) ([]*models.Todo, error) {
	todos, err := s.store.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not list todos: %w", err)
	}
	return todos, nil
}

// CreateTodo はタイトルと説明を正規化してTodoを作成します。
// タイトルは前後の空白を除いて空なら ErrTitleRequired、説明は空なら未設定になります。
func (s *TodoService) CreateTodo(ctx context.Context, title, description string) (*models.Todo, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrTitleRequired
	}

	todo, err := s.store.Create(ctx, title, NormalizeDescription(description))
	if err != nil {
		return nil, fmt.Errorf("could not create todo: %w", err)
	}
	return todo, nil
}

// MarkDone はTodoを完了にします。更新対象が無ければ ErrTodoNotFound を返します。
// 既に完了しているTodoも更新行数が 0 になるため ErrTodoNotFound です。
func (s *TodoService) MarkDone(ctx context.Context, id string) (int64, error) {
	n, err := s.store.MarkDone(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("could not mark todo done: %w", err)
	}
	if n == 0 {
		return 0, ErrTodoNotFound
	}
	return n, nil
}

// DeleteTodo はTodoを削除します。削除対象が無ければ ErrTodoNotFound を返します。
func (s *TodoService) DeleteTodo(ctx context.Context, id string) (int64, error) {
	n, err := s.store.Delete(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("could not delete todo: %w", err)
	}
	if n == 0 {
		return 0, ErrTodoNotFound
	}
	return n, nil
}

// NormalizeDescription は説明の前後の空白を除き、空なら nil を返します。
func NormalizeDescription(description string) *string {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil
	}
	return &description
}
