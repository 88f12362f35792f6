package relay

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/nao1215/sg-stats-relay/internal/config"
	"github.com/nao1215/sg-stats-relay/pkg/logger"
	"github.com/nao1215/sg-stats-relay/pkg/middleware"
	"github.com/nao1215/sg-stats-relay/pkg/token"
)

// Server はリレーサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// cfg はプロセス起動時に検証済みの設定。
	cfg *config.Config
	// tokens はリレートークンの発行・検証サービス。
	tokens *token.Service
	// audit は発行済みトークンの監査ストア。
	audit *auditStore
	// db はSQLiteデータベース接続。
	db *sql.DB
	// forwarder はアップストリームへの転送処理。
	forwarder *Forwarder
}

// NewServer は新しいリレーサーバーを生成する。
// 監査用SQLiteデータベースの初期化とスキーマ作成を行う。
func NewServer(cfg *config.Config) (*Server, error) {
	tokens, err := token.New(cfg.TokenSecret)
	if err != nil {
		return nil, fmt.Errorf("トークンサービスの初期化に失敗: %w", err)
	}

	if err := os.MkdirAll(cfg.LogsDir, 0o755); err != nil {
		return nil, fmt.Errorf("ログディレクトリの作成に失敗: %w", err)
	}

	dbPath := filepath.Join(cfg.LogsDir, "issued-tokens.db")
	sqlDB, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	if err := initSchema(sqlDB); err != nil {
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}

	router := gin.New()
	// 信頼するプロキシを明示しない限りX-Forwarded-Forを参照しない。
	// 参照を許すとレート制限キーとログのIPを偽装できてしまう。
	if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("信頼するプロキシの設定に失敗: %w", err)
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.SecureHeaders())
	router.Use(middleware.RequestLog())

	s := &Server{
		router:    router,
		cfg:       cfg,
		tokens:    tokens,
		audit:     newAuditStore(sqlDB),
		db:        sqlDB,
		forwarder: NewForwarder(cfg.RelayTargetURL, credentialHeaders(cfg)),
	}
	s.setupRoutes()

	return s, nil
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port))
}

// maxRequestBodyBytes は管理面で受け付けるJSONボディの上限（64KB）。
const maxRequestBodyBytes = 64 << 10

// credentialHeaders はアップストリームへ転送しない資格情報ヘッダーの一覧を返す。
func credentialHeaders(cfg *config.Config) []string {
	return []string{
		"Authorization",
		"X-Relay-Token",
		cfg.TrustedAuthSecretHeader,
		cfg.TrustedAuthEmailHeader,
		cfg.TrustedAuthUserHeader,
	}
}

// setupRoutes はAPIルーティングを設定する。
// レート制限 → 認証 → 入力検証の順でゲートを通す。
func (s *Server) setupRoutes() {
	// ヘルスチェック（ゲートなし）
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	// 管理面。管理用レート制限と認証プロキシゲートを通す。
	// リレー面とはカウンタを分離し、互いに枯渇させない。
	adminGate := middleware.TrustedAuthProxy(middleware.TrustedProxyConfig{
		SecretHeader: s.cfg.TrustedAuthSecretHeader,
		EmailHeader:  s.cfg.TrustedAuthEmailHeader,
		UserHeader:   s.cfg.TrustedAuthUserHeader,
		SharedSecret: s.cfg.TrustedAuthSharedSecret,
		AdminEmails:  s.cfg.AdminEmails,
	})
	admin := s.router.Group("/admin",
		middleware.RateLimit(s.cfg.AdminRateLimitPerMinute, middleware.NewMemoryCounterStore()),
		middleware.BodyLimit(maxRequestBodyBytes),
		adminGate,
	)
	{
		admin.GET("", s.handleAdminPage())
		admin.POST("/tokens", s.handleIssueToken())
		admin.GET("/tokens", s.handleListIssuedTokens())
	}

	// リレー面
	s.router.GET("/relay",
		middleware.RateLimit(s.cfg.RelayRateLimitPerMinute, middleware.NewMemoryCounterStore()),
		middleware.RelayTokenAuth(s.tokens),
		s.handleRelay(),
	)
}

// handleAdminPage はトークン発行フォームを返すハンドラを返す。
func (s *Server) handleAdminPage() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(adminPageHTML))
	}
}

// issueTokenRequest はトークン発行リクエストのJSON構造。
type issueTokenRequest struct {
	// Username はトークン所有者のユーザー名（2〜64文字）。
	Username string `json:"username" binding:"required,min=2,max=64"`
	// ExpiresInDays はトークンの有効日数（1〜3650、省略時は設定のデフォルト）。
	ExpiresInDays *int `json:"expiresInDays" binding:"omitempty,min=1,max=3650"`
}

// handleIssueToken はリレートークンを発行するハンドラを返す。
// 発行は認証プロキシゲートを通過した管理者のみが実行でき、
// 発行のたびに監査台帳へ記録される。
func (s *Server) handleIssueToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req issueTokenRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			var maxBytesErr *http.MaxBytesError
			if errors.As(err, &maxBytesErr) {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "リクエストボディが大きすぎます"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "リクエストボディが不正です"})
			return
		}

		username := strings.TrimSpace(req.Username)
		if len(username) < 2 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "ユーザー名は2文字以上が必要です"})
			return
		}

		expiresInDays := s.cfg.TokenTTLDays
		if req.ExpiresInDays != nil {
			expiresInDays = *req.ExpiresInDays
		}

		tokenStr, err := s.tokens.Issue(username, expiresInDays)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "トークンの発行に失敗しました"})
			logger.Error("リレートークンの発行に失敗", logger.Fields{
				"username": username,
				"issuedBy": middleware.GetAccessEmail(c),
				"error":    err.Error(),
			})
			return
		}

		fingerprint := s.tokens.Fingerprint(tokenStr)
		issuedBy := middleware.GetAccessEmail(c)

		if err := s.audit.record(c.Request.Context(), issuedTokenRecord{
			ID:               uuid.New().String(),
			Username:         username,
			IssuedBy:         issuedBy,
			ExpiresInDays:    expiresInDays,
			TokenFingerprint: fingerprint,
		}); err != nil {
			// 監査台帳に残せない発行は成立させない
			c.JSON(http.StatusInternalServerError, gin.H{"error": "トークンの発行に失敗しました"})
			logger.Error("監査レコードの書き込みに失敗", logger.Fields{
				"username": username,
				"issuedBy": issuedBy,
				"error":    err.Error(),
			})
			return
		}

		logger.Info("リレートークンを発行", logger.Fields{
			"username":         username,
			"issuedBy":         issuedBy,
			"expiresInDays":    expiresInDays,
			"tokenFingerprint": fingerprint,
		})

		c.JSON(http.StatusOK, gin.H{
			"username":         username,
			"issuedBy":         issuedBy,
			"expiresInDays":    expiresInDays,
			"token":            tokenStr,
			"tokenFingerprint": fingerprint,
		})
	}
}

// issuedTokenResponse は監査レコードのJSONレスポンス構造。
type issuedTokenResponse struct {
	// ID は監査レコードの一意識別子。
	ID string `json:"id"`
	// Username はトークン所有者のユーザー名。
	Username string `json:"username"`
	// IssuedBy は発行を実行した管理者のメールアドレス。
	IssuedBy string `json:"issuedBy"`
	// ExpiresInDays はトークンの有効日数。
	ExpiresInDays int `json:"expiresInDays"`
	// TokenFingerprint はトークンのフィンガープリント。
	TokenFingerprint string `json:"tokenFingerprint"`
	// IssuedAt は発行日時（RFC3339形式）。
	IssuedAt string `json:"issuedAt"`
}

// handleListIssuedTokens は発行済みトークンの監査一覧を返すハンドラを返す。
func (s *Server) handleListIssuedTokens() gin.HandlerFunc {
	return func(c *gin.Context) {
		records, err := s.audit.list(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "発行履歴の取得に失敗しました"})
			logger.Error("監査レコードの取得に失敗", logger.Fields{"error": err.Error()})
			return
		}

		responses := make([]issuedTokenResponse, 0, len(records))
		for _, rec := range records {
			responses = append(responses, issuedTokenResponse{
				ID:               rec.ID,
				Username:         rec.Username,
				IssuedBy:         rec.IssuedBy,
				ExpiresInDays:    rec.ExpiresInDays,
				TokenFingerprint: rec.TokenFingerprint,
				IssuedAt:         rec.IssuedAt.Format(time.RFC3339),
			})
		}

		c.JSON(http.StatusOK, gin.H{"tokens": responses})
	}
}

// handleRelay は検証済みリクエストをアップストリームへ転送するハンドラを返す。
func (s *Server) handleRelay() gin.HandlerFunc {
	return func(c *gin.Context) {
		relayPath := c.Query("path")
		if err := validateRelayPath(relayPath); err != nil {
			logger.Warn("リレーリクエストを拒否: 不正なパス", logger.Fields{
				"method":           c.Request.Method,
				"url":              c.Request.URL.String(),
				"path":             relayPath,
				"relayUser":        middleware.GetRelayUser(c),
				"tokenFingerprint": middleware.GetTokenFingerprint(c),
				"reason":           err.Error(),
			})
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		middleware.SetRelayPath(c, relayPath)
		s.forwarder.Forward(c, relayPath)
	}
}

// validateRelayPath はリレーパスの妥当性を検査する。
// 最初に失敗した検査のメッセージを返す。
func validateRelayPath(path string) error {
	if path == "" {
		return errors.New("パスが指定されていません")
	}
	if !strings.HasPrefix(path, "/") {
		return errors.New("パスは/で始まる必要があります")
	}
	if strings.HasPrefix(path, "//") {
		return errors.New("パスを//で始めることはできません")
	}
	if strings.Contains(path, "://") {
		return errors.New("パスは相対パスである必要があります")
	}
	return nil
}
