package config

import (
	"testing"
)

// setRequiredEnv は必須の環境変数をテスト用の値に設定する。
func setRequiredEnv(t *testing.T) {
	t.Helper()

	t.Setenv("RELAY_TOKEN_SECRET", "config-test-token-secret-0123456789")
	t.Setenv("TRUSTED_AUTH_SHARED_SECRET", "config-test-shared-secret-0123456789")
	t.Setenv("RELAY_ADMIN_EMAILS", "admin@example.com")
}

// TestLoad は設定の読み込みと検証を確認する。
// t.Setenvを使用するためサブテストは並列化しない。
func TestLoad(t *testing.T) {
	t.Run("必須項目のみでデフォルト値が適用されること", func(t *testing.T) {
		setRequiredEnv(t)

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load()でエラーが発生: %v", err)
		}

		if cfg.Host != "127.0.0.1" {
			t.Errorf("Host = %q, want %q", cfg.Host, "127.0.0.1")
		}
		if cfg.Port != 8787 {
			t.Errorf("Port = %d, want %d", cfg.Port, 8787)
		}
		if cfg.RelayRateLimitPerMinute != 600 {
			t.Errorf("RelayRateLimitPerMinute = %d, want %d", cfg.RelayRateLimitPerMinute, 600)
		}
		if cfg.AdminRateLimitPerMinute != 30 {
			t.Errorf("AdminRateLimitPerMinute = %d, want %d", cfg.AdminRateLimitPerMinute, 30)
		}
		if cfg.TokenTTLDays != 30 {
			t.Errorf("TokenTTLDays = %d, want %d", cfg.TokenTTLDays, 30)
		}
		if cfg.TrustedAuthEmailHeader != "remote-email" {
			t.Errorf("TrustedAuthEmailHeader = %q, want %q", cfg.TrustedAuthEmailHeader, "remote-email")
		}
		if cfg.TrustedAuthSecretHeader != "x-auth-proxy-secret" {
			t.Errorf("TrustedAuthSecretHeader = %q, want %q", cfg.TrustedAuthSecretHeader, "x-auth-proxy-secret")
		}
	})

	t.Run("トークン秘密鍵が短い場合にエラーになること", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("RELAY_TOKEN_SECRET", "short")

		if _, err := Load(); err == nil {
			t.Error("短いRELAY_TOKEN_SECRETでLoad()がエラーを返すべき")
		}
	})

	t.Run("共有シークレットが短い場合にエラーになること", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("TRUSTED_AUTH_SHARED_SECRET", "short")

		if _, err := Load(); err == nil {
			t.Error("短いTRUSTED_AUTH_SHARED_SECRETでLoad()がエラーを返すべき")
		}
	})

	t.Run("管理者メールが空の場合にエラーになること", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("RELAY_ADMIN_EMAILS", " , ,")

		if _, err := Load(); err == nil {
			t.Error("空のRELAY_ADMIN_EMAILSでLoad()がエラーを返すべき")
		}
	})

	t.Run("管理者メールが正規化されて集合になること", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("RELAY_ADMIN_EMAILS", " Alice@Example.com , bob@example.com, alice@example.com ")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load()でエラーが発生: %v", err)
		}

		if len(cfg.AdminEmails) != 2 {
			t.Errorf("AdminEmails数 = %d, want 2", len(cfg.AdminEmails))
		}
		if _, ok := cfg.AdminEmails["alice@example.com"]; !ok {
			t.Error("alice@example.comが集合に含まれない")
		}
		if _, ok := cfg.AdminEmails["bob@example.com"]; !ok {
			t.Error("bob@example.comが集合に含まれない")
		}
	})

	t.Run("転送先URLがオリジンに正規化されること", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("RELAY_TARGET_URL", "https://stats.example.com/some/path?q=1")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load()でエラーが発生: %v", err)
		}

		if cfg.RelayTargetURL.String() != "https://stats.example.com" {
			t.Errorf("RelayTargetURL = %q, want %q", cfg.RelayTargetURL.String(), "https://stats.example.com")
		}
	})

	t.Run("転送先URLのスキームが不正な場合にエラーになること", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("RELAY_TARGET_URL", "ftp://stats.example.com")

		if _, err := Load(); err == nil {
			t.Error("不正なスキームでLoad()がエラーを返すべき")
		}
	})

	t.Run("レート制限が範囲外の場合にエラーになること", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("RELAY_RATE_LIMIT_PER_MINUTE", "0")

		if _, err := Load(); err == nil {
			t.Error("範囲外のRELAY_RATE_LIMIT_PER_MINUTEでLoad()がエラーを返すべき")
		}
	})

	t.Run("レート制限が整数でない場合にエラーになること", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("RELAY_RATE_LIMIT_PER_MINUTE", "many")

		if _, err := Load(); err == nil {
			t.Error("整数でないRELAY_RATE_LIMIT_PER_MINUTEでLoad()がエラーを返すべき")
		}
	})

	t.Run("TRUST_PROXY未設定時はどのプロキシも信頼しないこと", func(t *testing.T) {
		setRequiredEnv(t)

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load()でエラーが発生: %v", err)
		}

		if cfg.TrustedProxies != nil {
			t.Errorf("TrustedProxies = %v, want nil", cfg.TrustedProxies)
		}
	})

	t.Run("TRUST_PROXYのカンマ区切りIP/CIDRが分割されること", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("TRUST_PROXY", " 10.0.0.1 , 192.168.0.0/16 ,")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load()でエラーが発生: %v", err)
		}

		want := []string{"10.0.0.1", "192.168.0.0/16"}
		if len(cfg.TrustedProxies) != len(want) {
			t.Fatalf("TrustedProxies数 = %d, want %d", len(cfg.TrustedProxies), len(want))
		}
		for i, w := range want {
			if cfg.TrustedProxies[i] != w {
				t.Errorf("TrustedProxies[%d] = %q, want %q", i, cfg.TrustedProxies[i], w)
			}
		}
	})

	t.Run("ヘッダー名が小文字に正規化されること", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("TRUSTED_AUTH_EMAIL_HEADER", "Remote-Email")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load()でエラーが発生: %v", err)
		}

		if cfg.TrustedAuthEmailHeader != "remote-email" {
			t.Errorf("TrustedAuthEmailHeader = %q, want %q", cfg.TrustedAuthEmailHeader, "remote-email")
		}
	})
}
