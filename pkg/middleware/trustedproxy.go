package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/sg-stats-relay/pkg/logger"
)

// contextKeyAccessEmail は管理者メールアドレスを保持するGinコンテキストキー。
const contextKeyAccessEmail = "access_email"

// contextKeyAccessUser は管理者の表示ユーザー名を保持するGinコンテキストキー。
const contextKeyAccessUser = "access_user"

// TrustedProxyConfig は前段の認証プロキシを信頼するための設定。
type TrustedProxyConfig struct {
	// SecretHeader は共有シークレットを運ぶヘッダー名。
	SecretHeader string
	// EmailHeader は認証済みメールアドレスを運ぶヘッダー名。
	EmailHeader string
	// UserHeader は表示ユーザー名を運ぶヘッダー名。
	UserHeader string
	// SharedSecret は認証プロキシとのみ共有するシークレット。
	SharedSecret string
	// AdminEmails は管理操作を許可するメールアドレスの集合（小文字）。
	AdminEmails map[string]struct{}
}

// TrustedAuthProxy は前段の認証プロキシ経由のリクエストのみを通す
// Ginミドルウェアを返す。共有シークレットの一致（タイミング攻撃を防ぐ
// 定数時間比較）、認証済みメールの存在、許可リスト所属の順に検査し、
// 成功時はコンテキストに正規化済みメールと表示ユーザー名を設定する。
func TrustedAuthProxy(cfg TrustedProxyConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		secret := c.GetHeader(cfg.SecretHeader)
		if secret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(cfg.SharedSecret)) != 1 {
			logger.Warn("管理リクエストを拒否: 認証プロキシのシークレットが不一致", logger.Fields{
				"method": c.Request.Method,
				"url":    c.Request.URL.String(),
				"ip":     c.ClientIP(),
			})
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "認証プロキシ経由のリクエストではありません",
			})
			return
		}

		email := c.GetHeader(cfg.EmailHeader)
		if email == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "認証済みメールアドレスのヘッダーがありません",
			})
			return
		}

		normalized := strings.ToLower(strings.TrimSpace(email))
		if _, ok := cfg.AdminEmails[normalized]; !ok {
			logger.Warn("管理リクエストを拒否: 許可リストに含まれないユーザー", logger.Fields{
				"method": c.Request.Method,
				"url":    c.Request.URL.String(),
				"email":  normalized,
				"ip":     c.ClientIP(),
			})
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "このユーザーにはアクセス権がありません",
			})
			return
		}

		user := c.GetHeader(cfg.UserHeader)
		if user == "" {
			user = normalized
		}

		c.Set(contextKeyAccessEmail, normalized)
		c.Set(contextKeyAccessUser, user)
		c.Next()
	}
}

// GetAccessEmail はGinコンテキストから管理者メールアドレスを取得する。
// TrustedAuthProxyミドルウェアが事前に適用されている必要がある。
func GetAccessEmail(c *gin.Context) string {
	v, _ := c.Get(contextKeyAccessEmail)
	if email, ok := v.(string); ok {
		return email
	}
	return ""
}

// GetAccessUser はGinコンテキストから管理者の表示ユーザー名を取得する。
func GetAccessUser(c *gin.Context) string {
	v, _ := c.Get(contextKeyAccessUser)
	if user, ok := v.(string); ok {
		return user
	}
	return ""
}
