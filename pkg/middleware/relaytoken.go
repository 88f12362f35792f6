package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/sg-stats-relay/pkg/logger"
	"github.com/nao1215/sg-stats-relay/pkg/token"
)

// legacyTokenHeader は旧クライアント向けのトークンヘッダー名。
// Authorizationヘッダーが存在する場合はそちらを優先する。
const legacyTokenHeader = "X-Relay-Token"

// contextKeyRelayUser はリレーユーザー名を保持するGinコンテキストキー。
const contextKeyRelayUser = "relay_user"

// contextKeyTokenFingerprint はトークンフィンガープリントを保持するGinコンテキストキー。
const contextKeyTokenFingerprint = "token_fingerprint"

// RelayTokenAuth はリレートークンを検証するGinミドルウェアを返す。
// 検証失敗の詳細はログにのみ記録し、クライアントには汎用メッセージを返す。
// 成功時はコンテキストに検証済みユーザー名とフィンガープリントを設定する。
func RelayTokenAuth(svc *token.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		relayToken := relayTokenFromRequest(c)
		if relayToken == "" {
			logger.Warn("リレーリクエストを拒否: トークンがありません", logger.Fields{
				"method": c.Request.Method,
				"url":    c.Request.URL.String(),
				"ip":     c.ClientIP(),
			})
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "リレートークンが必要です",
			})
			return
		}

		claims, err := svc.Verify(relayToken)
		if err != nil {
			logger.Warn("リレーリクエストを拒否: トークンが無効です", logger.Fields{
				"method":           c.Request.Method,
				"url":              c.Request.URL.String(),
				"ip":               c.ClientIP(),
				"tokenFingerprint": svc.Fingerprint(relayToken),
				"error":            err.Error(),
			})
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "リレートークンが無効です",
			})
			return
		}

		c.Set(contextKeyRelayUser, claims.Subject)
		c.Set(contextKeyTokenFingerprint, svc.Fingerprint(relayToken))
		c.Next()
	}
}

// relayTokenFromRequest はリクエストからリレートークンを取り出す。
// Authorization: Bearer 形式を優先し、無ければ旧ヘッダーを参照する。
func relayTokenFromRequest(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if tokenStr, found := strings.CutPrefix(authHeader, "Bearer "); found {
		return tokenStr
	}
	return c.GetHeader(legacyTokenHeader)
}

// GetRelayUser はGinコンテキストから検証済みリレーユーザー名を取得する。
// RelayTokenAuthミドルウェアが事前に適用されている必要がある。
func GetRelayUser(c *gin.Context) string {
	v, _ := c.Get(contextKeyRelayUser)
	if user, ok := v.(string); ok {
		return user
	}
	return ""
}

// GetTokenFingerprint はGinコンテキストからトークンフィンガープリントを取得する。
func GetTokenFingerprint(c *gin.Context) string {
	v, _ := c.Get(contextKeyTokenFingerprint)
	if fp, ok := v.(string); ok {
		return fp
	}
	return ""
}
