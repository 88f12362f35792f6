package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nao1215/sg-stats-relay/pkg/logger"
)

// contextKeyRelayPath は検証済みリレーパスを保持するGinコンテキストキー。
const contextKeyRelayPath = "relay_path"

// SetRelayPath は検証済みリレーパスをGinコンテキストに設定する。
// リレーハンドラがパス検証後に呼び出し、完了ログで参照される。
func SetRelayPath(c *gin.Context, path string) {
	c.Set(contextKeyRelayPath, path)
}

// GetRelayPath はGinコンテキストから検証済みリレーパスを取得する。
func GetRelayPath(c *gin.Context) string {
	v, _ := c.Get(contextKeyRelayPath)
	if path, ok := v.(string); ok {
		return path
	}
	return ""
}

// RequestLog はリクエスト完了時に1行の構造化ログを出力するGinミドルウェアを返す。
// リクエストIDを採番し、後続のミドルウェアが設定したリレーコンテキスト
// （ユーザー名・フィンガープリント・リレーパス）も併せて記録する。
func RequestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		startedAt := time.Now()
		requestID := uuid.New().String()

		c.Next()

		logger.Info("リクエストが完了", logger.Fields{
			"requestId":        requestID,
			"statusCode":       c.Writer.Status(),
			"method":           c.Request.Method,
			"url":              c.Request.URL.String(),
			"relayPath":        GetRelayPath(c),
			"relayUser":        GetRelayUser(c),
			"tokenFingerprint": GetTokenFingerprint(c),
			"ip":               c.ClientIP(),
			"userAgent":        c.Request.UserAgent(),
			"durationMs":       time.Since(startedAt).Milliseconds(),
		})
	}
}
