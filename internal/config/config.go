// Package config は環境変数からのリレー設定の読み込みと検証を提供する。
//
// 設定はプロセス起動時に一度だけ読み込まれ、以降は不変として扱う。
// 検証に失敗した場合は起動を中止する（フェイルファスト）。
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// minSecretLength は各シークレットの最小バイト長。
const minSecretLength = 32

// Config はリレーサーバーの全設定を保持する。Load以降は変更しない。
type Config struct {
	// Env は実行環境（development / test / production）。
	Env string
	// Host はリッスンするホスト。
	Host string
	// Port はリッスンするポート。
	Port int
	// RelayTargetURL は転送先アップストリームのオリジン（パスは持たない）。
	RelayTargetURL *url.URL
	// TrustedProxies はX-Forwarded-Forを信頼する前段プロキシのIP/CIDR一覧。
	// 空の場合はどのプロキシも信頼せず、接続元アドレスをクライアントIPとする。
	TrustedProxies []string
	// RelayRateLimitPerMinute はリレー面の1分あたりリクエスト上限。
	RelayRateLimitPerMinute int
	// AdminRateLimitPerMinute は管理面の1分あたりリクエスト上限。
	AdminRateLimitPerMinute int
	// TokenSecret はリレートークンのHMAC署名秘密鍵（32バイト以上）。
	TokenSecret string
	// TokenTTLDays はexpiresInDays未指定時のデフォルト有効日数。
	TokenTTLDays int
	// AdminEmails はトークン発行を許可するメールアドレスの集合（小文字）。
	AdminEmails map[string]struct{}
	// TrustedAuthEmailHeader は認証プロキシがメールアドレスを載せるヘッダー名。
	TrustedAuthEmailHeader string
	// TrustedAuthUserHeader は認証プロキシが表示ユーザー名を載せるヘッダー名。
	TrustedAuthUserHeader string
	// TrustedAuthSecretHeader は認証プロキシが共有シークレットを載せるヘッダー名。
	TrustedAuthSecretHeader string
	// TrustedAuthSharedSecret は認証プロキシとの共有シークレット（32バイト以上）。
	TrustedAuthSharedSecret string
	// LogsDir はログ出力先のルートディレクトリ。
	LogsDir string
}

// Load は環境変数から設定を読み込み、検証して返す。
func Load() (*Config, error) {
	port, err := getEnvIntOr("PORT", 8787, 1, 65535)
	if err != nil {
		return nil, err
	}

	relayLimit, err := getEnvIntOr("RELAY_RATE_LIMIT_PER_MINUTE", 600, 1, 100000)
	if err != nil {
		return nil, err
	}

	adminLimit, err := getEnvIntOr("RELAY_ADMIN_RATE_LIMIT_PER_MINUTE", 30, 1, 1000)
	if err != nil {
		return nil, err
	}

	ttlDays, err := getEnvIntOr("RELAY_TOKEN_TTL_DAYS", 30, 1, 3650)
	if err != nil {
		return nil, err
	}

	targetURL, err := parseTargetURL(getEnvOr("RELAY_TARGET_URL", "https://sg.zone"))
	if err != nil {
		return nil, err
	}

	tokenSecret := os.Getenv("RELAY_TOKEN_SECRET")
	if len(tokenSecret) < minSecretLength {
		return nil, fmt.Errorf("RELAY_TOKEN_SECRETは%dバイト以上が必要", minSecretLength)
	}

	sharedSecret := os.Getenv("TRUSTED_AUTH_SHARED_SECRET")
	if len(sharedSecret) < minSecretLength {
		return nil, fmt.Errorf("TRUSTED_AUTH_SHARED_SECRETは%dバイト以上が必要", minSecretLength)
	}

	adminEmails := parseAdminEmails(os.Getenv("RELAY_ADMIN_EMAILS"))
	if len(adminEmails) == 0 {
		return nil, fmt.Errorf("RELAY_ADMIN_EMAILSには少なくとも1件のメールアドレスが必要")
	}

	return &Config{
		Env:                     getEnvOr("RELAY_ENV", "production"),
		Host:                    getEnvOr("HOST", "127.0.0.1"),
		Port:                    port,
		RelayTargetURL:          targetURL,
		TrustedProxies:          parseTrustedProxies(os.Getenv("TRUST_PROXY")),
		RelayRateLimitPerMinute: relayLimit,
		AdminRateLimitPerMinute: adminLimit,
		TokenSecret:             tokenSecret,
		TokenTTLDays:            ttlDays,
		AdminEmails:             adminEmails,
		TrustedAuthEmailHeader:  strings.ToLower(getEnvOr("TRUSTED_AUTH_EMAIL_HEADER", "remote-email")),
		TrustedAuthUserHeader:   strings.ToLower(getEnvOr("TRUSTED_AUTH_USER_HEADER", "remote-user")),
		TrustedAuthSecretHeader: strings.ToLower(getEnvOr("TRUSTED_AUTH_SECRET_HEADER", "x-auth-proxy-secret")),
		TrustedAuthSharedSecret: sharedSecret,
		LogsDir:                 getEnvOr("RELAY_LOGS_DIR", "logs"),
	}, nil
}

// parseTargetURL は転送先URLを検証し、オリジン（スキームとホスト）のみを残す。
// 設定にパスが含まれていても転送時には使用しないため、ここで破棄する。
func parseTargetURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("RELAY_TARGET_URLの解析に失敗: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("RELAY_TARGET_URLはhttpまたはhttpsのURLが必要: %q", raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("RELAY_TARGET_URLにホストが含まれていない: %q", raw)
	}
	return &url.URL{Scheme: u.Scheme, Host: u.Host}, nil
}

// parseTrustedProxies はカンマ区切りのIP/CIDR一覧を分割して返す。
// 未設定の場合はnilを返し、どのプロキシも信頼しない。
func parseTrustedProxies(raw string) []string {
	var proxies []string
	for _, p := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(p)
		if trimmed == "" {
			continue
		}
		proxies = append(proxies, trimmed)
	}
	return proxies
}

// parseAdminEmails はカンマ区切りのメールアドレスを正規化して集合にする。
// 重複や空要素は無視される。
func parseAdminEmails(raw string) map[string]struct{} {
	emails := make(map[string]struct{})
	for _, e := range strings.Split(raw, ",") {
		normalized := strings.ToLower(strings.TrimSpace(e))
		if normalized == "" {
			continue
		}
		emails[normalized] = struct{}{}
	}
	return emails
}

// getEnvOr は環境変数を取得し、設定されていない場合はデフォルト値を返す。
func getEnvOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// getEnvIntOr は整数の環境変数を取得して範囲を検証する。
// 設定されていない場合はデフォルト値を返す。
func getEnvIntOr(key string, defaultValue, min, max int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%sは整数が必要: %q", key, raw)
	}
	if v < min || v > max {
		return 0, fmt.Errorf("%sは%d〜%dの範囲が必要: %d", key, min, max, v)
	}
	return v, nil
}
