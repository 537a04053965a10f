// Package repositories はデータベース操作を行うリポジトリを提供します。
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"go-todo-app/internal/models"
)

// ErrTodoNotFound はTODOが見つからない場合のエラーです。
var ErrTodoNotFound = errors.New("todo not found")

// TodoRepository はtodosテーブルを操作するための構造体です。
type TodoRepository struct {
	DB *sql.DB

	// Now は作成日時の採番に使う時計です。テストで差し替えます。
	Now func() time.Time
}

// NewTodoRepository は新しいTodoRepositoryインスタンスを作成します。
func NewTodoRepository(db *sql.DB) *TodoRepository {
	return &TodoRepository{
		DB:  db,
		Now: func() time.Time { return time.Now().UTC() },
	}
}

const todoColumns = "id, title, description, done, created_at"

// Create は新しいTodoタスクをデータベースに挿入します。
// IDと作成日時はここで採番し、doneは常にfalseで作成されます。
func (r *TodoRepository) Create(ctx context.Context, title string, description *string) (*models.Todo, error) {
	t := &models.Todo{
		ID:          uuid.NewString(),
		Title:       title,
		Description: description,
		Done:        false,
		// MySQL の DATETIME(6) に合わせてマイクロ秒で丸める
		CreatedAt: r.Now().UTC().Truncate(time.Microsecond),
	}

	query := "INSERT INTO todos (" + todoColumns + ") VALUES (?, ?, ?, ?, ?)"
	if _, err := r.DB.ExecContext(ctx, query, t.ID, t.Title, t.Description, t.Done, t.CreatedAt); err != nil {
		log.WithError(err).Error("failed to insert todo")
		return nil, fmt.Errorf("could not insert todo: %w", err)
	}
	return t, nil
}

// FindAll はすべてのTodoタスクを作成日時の降順で取得します。
func (r *TodoRepository) FindAll(ctx context.Context) ([]*models.Todo, error) {
	query := "SELECT " + todoColumns + " FROM todos ORDER BY created_at DESC"

	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		log.WithError(err).Error("failed to query todos")
		return nil, fmt.Errorf("could not query todos: %w", err)
	}
	defer rows.Close()

	todos := []*models.Todo{}
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			log.WithError(err).Error("failed to scan todo")
			return nil, fmt.Errorf("could not scan todo: %w", err)
		}
		todos = append(todos, t)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating todos: %w", err)
	}

	return todos, nil
}

// FindByID は指定されたIDのTodoタスクをデータベースから取得します。
func (r *TodoRepository) FindByID(ctx context.Context, id string) (*models.Todo, error) {
	query := "SELECT " + todoColumns + " FROM todos WHERE id = ?"

	t, err := scanTodo(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTodoNotFound
		}
		log.WithError(err).WithField("id", id).Error("failed to query todo by ID")
		return nil, fmt.Errorf("could not query todo: %w", err)
	}
	return t, nil
}

// MarkDone は未完了のTodoを完了にし、更新された行数 (0 または 1) を返します。
// 存在しないID、または既に完了しているTodoに対しては何もしません。
func (r *TodoRepository) MarkDone(ctx context.Context, id string) (int64, error) {
	query := "UPDATE todos SET done = ? WHERE id = ? AND done = ?"

	result, err := r.DB.ExecContext(ctx, query, true, id, false)
	if err != nil {
		log.WithError(err).WithField("id", id).Error("failed to update todo")
		return 0, fmt.Errorf("could not update todo: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("could not get rows affected: %w", err)
	}
	return rowsAffected, nil
}

// Delete は指定されたIDのTodoタスクを削除し、削除された行数を返します。
func (r *TodoRepository) Delete(ctx context.Context, id string) (int64, error) {
	query := "DELETE FROM todos WHERE id = ?"

	result, err := r.DB.ExecContext(ctx, query, id)
	if err != nil {
		log.WithError(err).WithField("id", id).Error("failed to delete todo")
		return 0, fmt.Errorf("could not delete todo: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("could not get rows affected: %w", err)
	}
	return rowsAffected, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTodo(s rowScanner) (*models.Todo, error) {
	var (
		t    models.Todo
		desc sql.NullString
	)
	if err := s.Scan(&t.ID, &t.Title, &desc, &t.Done, &t.CreatedAt); err != nil {
		return nil, err
	}
	if desc.Valid {
		d := desc.String
		t.Description = &d
	}
	t.CreatedAt = t.CreatedAt.UTC()
	return &t, nil
}
