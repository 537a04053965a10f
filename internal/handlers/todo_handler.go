// Package handlers はHTTPリクエストをサービス呼び出しに変換します。
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"go-todo-app/internal/services"
)

// maxCreateBodyBytes は作成リクエストのボディの上限です。
const maxCreateBodyBytes = 1 << 20

// TodoHandler はTodo関連のハンドラーを管理します。
type TodoHandler struct {
	todoService *services.TodoService
	logger      *log.Logger
}

// NewTodoHandler は新しいTodoHandlerを作成します。
func NewTodoHandler(todoService *services.TodoService, logger *log.Logger) *TodoHandler {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &TodoHandler{todoService: todoService, logger: logger}
}

// GetTodosHandler はTodoリストを新しい順に返します。
func (h *TodoHandler) GetTodosHandler(c *gin.Context) {
	todos, err := h.todoService.GetTodos(c.Request.Context())
	if err != nil {
		h.internalError(c, err, "failed to fetch todos")
		return
	}
	c.JSON(http.StatusOK, todos)
}

// CreateTodoHandler は新しいTodoを作成します。
// 不正なJSONは空のオブジェクトとして扱い、タイトル必須エラーになります。
func (h *TodoHandler) CreateTodoHandler(c *gin.Context) {
	if c.Request.Body != nil {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxCreateBodyBytes)
	}

	var body map[string]any
	raw, err := c.GetRawData()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
			return
		}
	} else if err := json.Unmarshal(raw, &body); err != nil {
		body = nil
	}
	// 文字列以外の値は未指定とみなす
	title, _ := body["title"].(string)
	description, _ := body["description"].(string)

	createdTodo, err := h.todoService.CreateTodo(c.Request.Context(), title, description)
	if err != nil {
		if errors.Is(err, services.ErrTitleRequired) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "title required"})
			return
		}
		h.internalError(c, err, "failed to save todo")
		return
	}
	c.JSON(http.StatusCreated, createdTodo)
}

// MarkDoneHandler はTodoを完了にします。
func (h *TodoHandler) MarkDoneHandler(c *gin.Context) {
	id := c.Param("id")

	n, err := h.todoService.MarkDone(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrTodoNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		h.internalError(c, err, "failed to update todo")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "updated": n})
}

// DeleteTodoHandler はTodoを削除します。
func (h *TodoHandler) DeleteTodoHandler(c *gin.Context) {
	id := c.Param("id")

	n, err := h.todoService.DeleteTodo(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrTodoNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		h.internalError(c, err, "failed to delete todo")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "deleted": n})
}

// internalError は内部エラーをログに残し、詳細を含まない 500 を返します。
func (h *TodoHandler) internalError(c *gin.Context, err error, msg string) {
	h.logger.WithError(err).WithFields(log.Fields{
		"method": c.Request.Method,
		"path":   c.FullPath(),
	}).Error(msg)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
