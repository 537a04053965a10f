package handlers

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// HelloHandler はシンプルなヘルスチェックエンドポイントです。
func HelloHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Hello from Go Backend!"})
}

// DBCheckHandler はデータベース接続の健全性を確認するハンドラーを返します。
func DBCheckHandler(db *sql.DB, logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db == nil {
			c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "Database is not configured"})
			return
		}
		if err := db.PingContext(c.Request.Context()); err != nil {
			logger.WithError(err).Error("DB ping failed")
			c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "Database connection failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "Database connection is healthy"})
	}
}
