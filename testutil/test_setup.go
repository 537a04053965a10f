// Package testutil はハンドラーやリポジトリのテストで共有するセットアップ処理です。
package testutil

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"go-todo-app/internal/config"
	"go-todo-app/internal/database"
	"go-todo-app/internal/models"
	"go-todo-app/internal/repositories"
	"go-todo-app/internal/routes"
	"go-todo-app/internal/services"
)

// SetupTestDB はテスト用のデータベース接続を確立し、テーブルを作成します。
// 既定ではインメモリの SQLite を使い、TEST_DB_DRIVER=mysql のときは
// TEST_DB_* の MySQL に接続して todos テーブルを空にします。
func SetupTestDB(t *testing.T) (*sql.DB, *gin.Engine, *repositories.TodoRepository) {
	t.Helper()

	for _, f := range []string{"../../.env", "../.env"} {
		_ = godotenv.Load(f)
	}

	cfg := &config.Config{
		DBDriver:   os.Getenv("TEST_DB_DRIVER"),
		DBUser:     os.Getenv("TEST_DB_USER"),
		DBPass:     os.Getenv("TEST_DB_PASS"),
		DBHost:     os.Getenv("TEST_DB_HOST"),
		DBPort:     os.Getenv("TEST_DB_PORT"),
		DBName:     os.Getenv("TEST_DB_NAME"),
		SQLitePath: ":memory:",
	}
	if cfg.DBDriver == "" {
		cfg.DBDriver = config.DriverSQLite
	}

	ctx := context.Background()
	db, err := database.Open(ctx, cfg)
	if err != nil {
		t.Fatalf("Failed to open database connection: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := database.Migrate(ctx, db, cfg.DBDriver); err != nil {
		t.Fatalf("Failed to create todos table: %v", err)
	}
	// テストのたびにクリーンな状態にする
	if _, err := db.Exec("DELETE FROM todos"); err != nil {
		t.Fatalf("Failed to clear todos table: %v", err)
	}

	todoRepo := repositories.NewTodoRepository(db)
	todoRepo.Now = NewClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Second).Now

	router := SetupTestRouter(t, db, todoRepo)
	return db, router, todoRepo
}

// SetupTestRouter はテスト用のGinルーターをセットアップします。
// store にはキャッシュ付きのリポジトリも渡せます。
func SetupTestRouter(t *testing.T, db *sql.DB, store services.TodoStore) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := log.New()
	logger.SetOutput(testWriter{t})

	return routes.SetupRouter(routes.Deps{
		DB:           db,
		TodoStore:    store,
		Logger:       logger,
		AllowOrigins: []string{"http://localhost:3000"},
	})
}

// CreateTestTodo は API 経由でTODOを作成し、作成されたTODOを返します。
func CreateTestTodo(t *testing.T, router *gin.Engine, title string, description *string) *models.Todo {
	t.Helper()

	body, _ := json.Marshal(models.CreateTodoRequest{Title: title, Description: description})
	req, _ := http.NewRequest(http.MethodPost, "/api/todos", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	require.Equal(t, http.StatusCreated, resp.Code, "TODO作成に失敗しました: %s", resp.Body.String())

	var createdTodo models.Todo
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &createdTodo))
	return &createdTodo
}

// ListTodos は GET /api/todos の結果を返します。
func ListTodos(t *testing.T, router *gin.Engine) []models.Todo {
	t.Helper()

	req, _ := http.NewRequest(http.MethodGet, "/api/todos", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)

	var todos []models.Todo
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &todos))
	return todos
}

// Clock は呼び出すたびに step ずつ進む決定的な時計です。
type Clock struct {
	mu   sync.Mutex
	next time.Time
	step time.Duration
}

// NewClock は start から始まる Clock を作成します。最初の Now は start を返します。
func NewClock(start time.Time, step time.Duration) *Clock {
	return &Clock{next: start, step: step}
}

// Now は現在の時刻を返し、時計を step 進めます。
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.next
	c.next = c.next.Add(c.step)
	return now
}

// Set は次に返す時刻を設定します。
func (c *Clock) Set(next time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next = next
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(bytes.TrimRight(p, "\n")))
	return len(p), nil
}
