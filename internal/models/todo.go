// Package modelsはTodoを定義します。
package models

import (
	"time"
)

// Todo は ToDoタスクを表します。
// Description は任意項目で、未設定の場合は JSON で null になります。
type Todo struct {
	ID          string    `json:"id"`          // 主キー (UUID)
	Title       string    `json:"title"`       // タスクのタイトル（必須、前後の空白は除去済み）
	Description *string   `json:"description"` // 説明 (任意)
	Done        bool      `json:"done"`        // 完了状態 (false -> true のみ)
	CreatedAt   time.Time `json:"createdAt"`   // 作成日時
}

// Clone は Todo のディープコピーを返します。
func (t Todo) Clone() Todo {
	if t.Description != nil {
		d := *t.Description
		t.Description = &d
	}
	return t
}

// CreateTodoRequest は POST /api/todos のリクエストボディです。
type CreateTodoRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
}
