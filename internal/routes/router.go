// Package routesはroutingを行います。
package routes

import (
	"database/sql"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"go-todo-app/internal/handlers"
	"go-todo-app/internal/services"
)

// Deps はルーターが必要とする依存関係です。
type Deps struct {
	DB           *sql.DB
	TodoStore    services.TodoStore
	Logger       *log.Logger
	AllowOrigins []string
}

// SetupRouter はGinルーターをセットアップし、すべてのエンドポイントを登録します。
func SetupRouter(deps Deps) *gin.Engine {
	logger := deps.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(logger))

	// CORS対策
	config := cors.DefaultConfig()
	if len(deps.AllowOrigins) == 0 {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = deps.AllowOrigins
	}
	config.AllowMethods = []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	config.MaxAge = 12 * time.Hour
	r.Use(cors.New(config))

	// サービス
	todoService := services.NewTodoService(deps.TodoStore)

	// ハンドラー
	todoHandler := handlers.NewTodoHandler(todoService, logger)

	// ルーティング
	api := r.Group("/api")
	{
		api.GET("/hello", handlers.HelloHandler)
		api.GET("/dbcheck", handlers.DBCheckHandler(deps.DB, logger))

		api.GET("/todos", todoHandler.GetTodosHandler)
		api.POST("/todos", todoHandler.CreateTodoHandler)
		api.PATCH("/todos/:id", todoHandler.MarkDoneHandler)
		api.DELETE("/todos/:id", todoHandler.DeleteTodoHandler)
	}

	return r
}
